package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data"
	"github.com/dispatchworks/fieldserve/internal/domain/jobflow"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
	apperrors "github.com/dispatchworks/fieldserve/internal/errors"
	"github.com/dispatchworks/fieldserve/internal/observability/notify"
	"github.com/dispatchworks/fieldserve/internal/observability/statsd"
)

// ReliabilityLedger records reliability outcomes against partner accounts.
// ReputationService is the production implementation.
type ReliabilityLedger interface {
	CreditReliability(ctx context.Context, partnerID string) error
	PenalizeReliability(ctx context.Context, partnerID string) error
}

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo         core.JobRepository // Required: job repository
	Ledger       ReliabilityLedger  // Required: reliability credit/penalty recording
	TimeProvider data.TimeProvider  // Optional: defaults to real time
	Logger       *slog.Logger       // Optional: structured logger
	JobSink      notify.JobSink     // Optional: job event fan-out
	Metrics      statsd.Sink        // Optional: metrics sink
}

// JobService drives a claimed job through its lifecycle: forward status
// transitions with their guards, on-site checklist updates, item edits, the
// manual payment authorization, cancellation, and the finalization award.
type JobService struct {
	repo         core.JobRepository
	ledger       ReliabilityLedger
	timeProvider data.TimeProvider
	logger       *slog.Logger
	jobSink      notify.JobSink
	metrics      statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("ReliabilityLedger is required")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:         opts.Repo,
		ledger:       opts.Ledger,
		timeProvider: tp,
		logger:       logger,
		jobSink:      opts.JobSink,
		metrics:      opts.Metrics,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Get retrieves a job by ID.
func (s *JobService) Get(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "get job %s", jobID)
	}
	return job, nil
}

// Checklist returns the derived on-site checklist state for a job.
func (s *JobService) Checklist(ctx context.Context, jobID string) (jobflow.ChecklistState, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return jobflow.ChecklistState{}, err
	}
	payments, err := s.payments(ctx, jobID)
	if err != nil {
		return jobflow.ChecklistState{}, err
	}
	return jobflow.Checklist(job, payments), nil
}

// Transition advances a job one step forward through the status machine.
// The guards run against a snapshot; the conditional store write settles
// any race, so a lost race surfaces as an invalid transition.
func (s *JobService) Transition(
	ctx context.Context,
	jobID string,
	target model.JobStatus,
	actor string,
) (*model.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var payments []model.PaymentRecord
	if target == model.JobStatusAwaitingPayment || target == model.JobStatusFinalized {
		payments, err = s.payments(ctx, jobID)
		if err != nil {
			return nil, err
		}
	}

	tc := jobflow.TransitionContext{Actor: actor, Now: s.timeProvider.Now()}
	if validateErr := jobflow.Validate(job, payments, target, tc); validateErr != nil {
		return nil, validateErr
	}

	updated, err := s.repo.UpdateStatus(ctx, core.StatusChange{
		JobID: jobID,
		From:  job.Status,
		To:    target,
	})
	switch {
	case errors.Is(err, data.ErrJobUnavailable):
		return nil, apperrors.InvalidTransitionf(
			"job %s changed concurrently; transition to %s not applied", jobID, target)
	case errors.Is(err, data.ErrJobNotFound):
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	case err != nil:
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal,
			"transition job %s to %s", jobID, target)
	}

	if target == model.JobStatusFinalized {
		s.finalize(ctx, updated, actor)
	}

	s.count("jobs.transitions", map[string]string{"to": string(target)})
	s.emitStatus(ctx, updated, job.Status, actor)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job transitioned",
			"job_id", jobID, "from", job.Status, "to", target, "actor", actor)
	}
	return updated, nil
}

// finalize persists the points award and records the one-shot reliability
// credit. The award write is first-writer-wins so a duplicate finalization
// observer never double-credits.
func (s *JobService) finalize(ctx context.Context, job *model.Job, actor string) {
	points := model.PointsForValue(job.ItemsTotalCents())
	won, err := s.repo.FinalizeAward(ctx, job.ID, points)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "finalize award failed",
				"job_id", job.ID, "error", err)
		}
		return
	}
	job.Points = points
	job.ReliabilityCredited = true
	if !won {
		return
	}

	s.count("jobs.finalized", nil)
	if creditErr := s.ledger.CreditReliability(ctx, actor); creditErr != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "reliability credit failed",
			"job_id", job.ID, "partner_id", actor, "error", creditErr)
	}
}

// UpdateChecklist applies on-site checklist updates. Photo counts only ever
// grow; the store refuses updates once the job has left the arrived status.
func (s *JobService) UpdateChecklist(
	ctx context.Context,
	jobID, actor string,
	update core.ChecklistUpdate,
) (*model.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(actor) {
		return nil, apperrors.Unauthorizedf("partner %s does not own job %s", actor, jobID)
	}
	if job.Status != model.JobStatusArrived {
		return nil, apperrors.InvalidTransitionf(
			"job %s checklist can only be updated on site (status %s)", jobID, job.Status)
	}
	if update.Empty() {
		return nil, apperrors.Validation("checklist update carries no changes")
	}
	if update.BeforePhotos != nil && *update.BeforePhotos < 0 {
		return nil, apperrors.ValidationField("before_photos", "photo count cannot be negative")
	}
	if update.AfterPhotos != nil && *update.AfterPhotos < 0 {
		return nil, apperrors.ValidationField("after_photos", "photo count cannot be negative")
	}

	updated, err := s.repo.SetChecklist(ctx, jobID, update)
	switch {
	case errors.Is(err, data.ErrJobUnavailable):
		return nil, apperrors.InvalidTransitionf(
			"job %s left the on-site status before the checklist update", jobID)
	case errors.Is(err, data.ErrJobNotFound):
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	case err != nil:
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "update checklist for job %s", jobID)
	}
	return updated, nil
}

// UpdateItems replaces the job's item list under the upward-only value
// policy: edits happen only on site, only by the owner, and never reduce
// the total below the contracted value.
func (s *JobService) UpdateItems(
	ctx context.Context,
	jobID, actor string,
	items []model.LineItem,
) (*model.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if validateErr := jobflow.ValidateItemEdit(job, actor, items); validateErr != nil {
		return nil, validateErr
	}

	updated, err := s.repo.UpdateItems(ctx, jobID, items)
	switch {
	case errors.Is(err, data.ErrJobUnavailable):
		return nil, apperrors.InvalidTransitionf(
			"job %s left the on-site status before the item edit", jobID)
	case errors.Is(err, data.ErrJobNotFound):
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	case err != nil:
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "update items for job %s", jobID)
	}
	return updated, nil
}

// Authorize records the manual out-of-band approval that settles cash and
// remote payments. It is an operator action, not a partner one.
func (s *JobService) Authorize(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.repo.SetExternalAuthorized(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "authorize job %s", jobID)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "job externally authorized", "job_id", jobID)
	}
	return job, nil
}

// Cancel releases a claimed or en-route job back to the available pool. A
// cancellation inside the contractual window before the slot start (or
// after it, a no-show) records the reliability penalty against the owner.
func (s *JobService) Cancel(ctx context.Context, jobID, actor string) (*model.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(actor) {
		return nil, apperrors.Unauthorizedf("partner %s does not own job %s", actor, jobID)
	}
	if job.Status != model.JobStatusClaimed && job.Status != model.JobStatusEnRoute {
		return nil, apperrors.InvalidTransitionf(
			"job %s cannot be cancelled from status %s", jobID, job.Status)
	}

	released, err := s.repo.Release(ctx, jobID)
	switch {
	case errors.Is(err, data.ErrJobUnavailable):
		return nil, apperrors.InvalidTransitionf(
			"job %s changed concurrently; cancellation not applied", jobID)
	case errors.Is(err, data.ErrJobNotFound):
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	case err != nil:
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "release job %s", jobID)
	}

	now := s.timeProvider.Now()
	slotStart := job.Shift.StartOn(job.ScheduledDate)
	if reputation.PenaltyApplies(slotStart, now) {
		s.count("jobs.late_cancellations", nil)
		if penaltyErr := s.ledger.PenalizeReliability(ctx, actor); penaltyErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "cancellation penalty failed",
				"job_id", jobID, "partner_id", actor, "error", penaltyErr)
		}
	}

	s.count("jobs.cancellations", nil)
	s.emitStatus(ctx, released, job.Status, actor)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job cancelled",
			"job_id", jobID, "partner_id", actor, "from", job.Status)
	}
	return released, nil
}

func (s *JobService) payments(ctx context.Context, jobID string) ([]model.PaymentRecord, error) {
	payments, err := s.repo.GetPayments(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "list payments for job %s", jobID)
	}
	return payments, nil
}

func (s *JobService) count(name string, tags map[string]string) {
	if s.metrics != nil {
		s.metrics.Count(name, 1, tags)
	}
}

func (s *JobService) emitStatus(
	ctx context.Context,
	job *model.Job,
	from model.JobStatus,
	actor string,
) {
	if s.jobSink == nil {
		return
	}
	payload := notify.JobStatusPayload{
		JobID:      job.ID,
		From:       string(from),
		To:         string(job.Status),
		PartnerID:  actor,
		OccurredAt: s.timeProvider.Now().UTC(),
	}
	if err := s.jobSink.SendJobStatus(ctx, payload); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "job status notification failed",
			"job_id", job.ID, "error", err)
	}
}
