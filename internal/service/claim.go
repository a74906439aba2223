package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
	apperrors "github.com/dispatchworks/fieldserve/internal/errors"
	"github.com/dispatchworks/fieldserve/internal/observability/notify"
	"github.com/dispatchworks/fieldserve/internal/observability/statsd"
)

// ClaimServiceOptions groups dependencies for ClaimService.
type ClaimServiceOptions struct {
	Jobs         core.JobRepository     // Required: job repository
	Partners     core.PartnerRepository // Required: partner repository
	Counter      core.ClaimCounter      // Required: daily/shift claim limits
	TimeProvider data.TimeProvider      // Optional: defaults to real time
	Logger       *slog.Logger           // Optional: structured logger
	JobSink      notify.JobSink         // Optional: job event fan-out
	Metrics      statsd.Sink            // Optional: metrics sink
}

// ClaimService turns an available job into an exclusively owned one. The
// eligibility gates (ban state, access level, claim limits) run first; the
// final word on the race is the store's atomic claim, so at most one
// concurrent caller ever wins a job.
type ClaimService struct {
	jobs         core.JobRepository
	partners     core.PartnerRepository
	counter      core.ClaimCounter
	timeProvider data.TimeProvider
	logger       *slog.Logger
	jobSink      notify.JobSink
	metrics      statsd.Sink
}

// NewClaimService constructs a new ClaimService.
func NewClaimService(opts ClaimServiceOptions) (*ClaimService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Partners == nil {
		return nil, errors.New("PartnerRepository is required")
	}
	if opts.Counter == nil {
		return nil, errors.New("ClaimCounter is required")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "claim_service")
	}

	return &ClaimService{
		jobs:         opts.Jobs,
		partners:     opts.Partners,
		counter:      opts.Counter,
		timeProvider: tp,
		logger:       logger,
		jobSink:      opts.JobSink,
		metrics:      opts.Metrics,
	}, nil
}

// MustNewClaimService constructs a new ClaimService and panics on error.
func MustNewClaimService(opts ClaimServiceOptions) *ClaimService {
	svc, err := NewClaimService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ClaimService: %v", err))
	}
	return svc
}

// Claim attempts to take ownership of an available job for the partner.
// Losing the race returns an already-claimed error; an ineligible partner
// is rejected before the store is touched.
func (s *ClaimService) Claim(ctx context.Context, jobID, partnerID string) (*model.Job, error) {
	account, err := s.partners.GetByID(ctx, partnerID)
	if errors.Is(err, data.ErrPartnerNotFound) {
		return nil, apperrors.NotFoundf("partner %s not found", partnerID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "get partner %s", partnerID)
	}
	if account.Blocked() {
		return nil, apperrors.Unauthorizedf("partner %s is banned", partnerID)
	}

	policy := reputation.AccessLevel(account.UnifiedScore)
	if !policy.CanAcceptJobs {
		return nil, apperrors.Unauthorizedf(
			"partner %s score %.2f is below the claim threshold", partnerID, account.UnifiedScore)
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "get job %s", jobID)
	}
	if job.Status != model.JobStatusAvailable {
		return nil, apperrors.AlreadyClaimedf("job %s is no longer available", jobID)
	}

	slot := core.ClaimSlot{PartnerID: partnerID, Date: job.ScheduledDate, Shift: job.Shift}
	reserved := false
	if !policy.Unlimited {
		ok, reserveErr := s.counter.Reserve(ctx, slot, policy)
		if reserveErr != nil {
			return nil, apperrors.Wrapf(reserveErr, apperrors.ErrCodeInternal,
				"reserve claim slot for partner %s", partnerID)
		}
		if !ok {
			s.count("claims.limit_rejected", map[string]string{"level": policy.Label})
			return nil, apperrors.Unauthorizedf(
				"partner %s has reached the claim limit for %s",
				partnerID, job.ScheduledDate.Format("2006-01-02"))
		}
		reserved = true
	}

	claimed, err := s.jobs.Claim(ctx, jobID, partnerID)
	if err != nil {
		if reserved {
			if releaseErr := s.counter.Release(ctx, slot); releaseErr != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "claim slot release failed",
					"partner_id", partnerID, "job_id", jobID, "error", releaseErr)
			}
		}
		switch {
		case errors.Is(err, data.ErrJobUnavailable):
			s.count("claims.lost_race", nil)
			return nil, apperrors.AlreadyClaimedf("job %s was claimed by another partner", jobID)
		case errors.Is(err, data.ErrJobNotFound):
			return nil, apperrors.NotFoundf("job %s not found", jobID)
		default:
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "claim job %s", jobID)
		}
	}

	s.count("claims.won", map[string]string{"shift": string(claimed.Shift)})
	s.emitStatus(ctx, claimed, model.JobStatusAvailable, partnerID)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job claimed",
			"job_id", claimed.ID,
			"partner_id", partnerID,
			"scheduled_date", claimed.ScheduledDate.Format("2006-01-02"),
			"shift", claimed.Shift,
		)
	}
	return claimed, nil
}

func (s *ClaimService) count(name string, tags map[string]string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, tags)
	}
}

func (s *ClaimService) emitStatus(
	ctx context.Context,
	job *model.Job,
	from model.JobStatus,
	partnerID string,
) {
	if s.jobSink == nil {
		return
	}
	payload := notify.JobStatusPayload{
		JobID:      job.ID,
		From:       string(from),
		To:         string(job.Status),
		PartnerID:  partnerID,
		OccurredAt: s.timeProvider.Now().UTC(),
	}
	if err := s.jobSink.SendJobStatus(ctx, payload); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "job status notification failed",
			"job_id", job.ID, "error", err)
	}
}
