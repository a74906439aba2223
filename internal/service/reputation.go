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

// ReputationServiceOptions groups dependencies for ReputationService.
type ReputationServiceOptions struct {
	Partners     core.PartnerRepository // Required: partner repository
	TimeProvider data.TimeProvider      // Optional: defaults to real time
	Logger       *slog.Logger           // Optional: structured logger
	BanSink      notify.BanSink         // Optional: ban event fan-out
	Metrics      statsd.Sink            // Optional: metrics sink
}

// ReputationService owns every mutation of partner rating histories and the
// derived trust fields. All writes funnel through the repository's
// serialized recalculation so concurrent rating events never lose updates.
type ReputationService struct {
	partners     core.PartnerRepository
	timeProvider data.TimeProvider
	logger       *slog.Logger
	banSink      notify.BanSink
	metrics      statsd.Sink
}

// NewReputationService constructs a new ReputationService.
func NewReputationService(opts ReputationServiceOptions) (*ReputationService, error) {
	if opts.Partners == nil {
		return nil, errors.New("PartnerRepository is required")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reputation_service")
	}

	return &ReputationService{
		partners:     opts.Partners,
		timeProvider: tp,
		logger:       logger,
		banSink:      opts.BanSink,
		metrics:      opts.Metrics,
	}, nil
}

// MustNewReputationService constructs a new ReputationService and panics on error.
func MustNewReputationService(opts ReputationServiceOptions) *ReputationService {
	svc, err := NewReputationService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create ReputationService: %v", err))
	}
	return svc
}

// Get retrieves a partner account.
func (s *ReputationService) Get(ctx context.Context, partnerID string) (*model.PartnerAccount, error) {
	account, err := s.partners.GetByID(ctx, partnerID)
	if errors.Is(err, data.ErrPartnerNotFound) {
		return nil, apperrors.NotFoundf("partner %s not found", partnerID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "get partner %s", partnerID)
	}
	return account, nil
}

// AccessLevel returns the account together with the claim policy its
// current unified score maps to.
func (s *ReputationService) AccessLevel(
	ctx context.Context,
	partnerID string,
) (*model.PartnerAccount, reputation.AccessPolicy, error) {
	account, err := s.Get(ctx, partnerID)
	if err != nil {
		return nil, reputation.AccessPolicy{}, err
	}
	return account, reputation.AccessLevel(account.UnifiedScore), nil
}

// RecordRatings merges new rating entries into the partner's histories and
// recomputes the derived scores, applying the suspension ladder. Ban events
// that fire are fanned out to the configured sink.
func (s *ReputationService) RecordRatings(
	ctx context.Context,
	partnerID string,
	delta reputation.Delta,
) (*model.PartnerAccount, error) {
	if delta.Empty() {
		return nil, apperrors.Validation("rating delta carries no entries")
	}
	for _, vs := range [][]float64{delta.Quality, delta.Reliability, delta.Warranty} {
		for _, v := range vs {
			if v < model.RatingMin || v > model.RatingMax {
				return nil, apperrors.ValidationField("ratings",
					fmt.Sprintf("rating %.2f outside [%.0f, %.0f]", v, model.RatingMin, model.RatingMax))
			}
		}
	}

	var events []reputation.Event
	account, err := s.partners.Recalculate(ctx, partnerID,
		func(current model.PartnerAccount) (reputation.Result, error) {
			result := reputation.Recalculate(current, delta, s.timeProvider.Now())
			events = result.Events
			return result, nil
		})
	if errors.Is(err, data.ErrPartnerNotFound) {
		return nil, apperrors.NotFoundf("partner %s not found", partnerID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "recalculate partner %s", partnerID)
	}

	if s.metrics != nil {
		s.metrics.Gauge("partner.unified_score", account.UnifiedScore,
			map[string]string{"partner": partnerID})
	}
	s.emitBanEvents(ctx, account, events)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "partner recalculated",
			"partner_id", partnerID,
			"unified_score", account.UnifiedScore,
			"suspension_count", account.SuspensionCount,
			"events", len(events),
		)
	}
	return account, nil
}

// CreditReliability records the finalization reliability credit for the
// partner. Callers guarantee at-most-once delivery per job.
func (s *ReputationService) CreditReliability(ctx context.Context, partnerID string) error {
	_, err := s.RecordRatings(ctx, partnerID,
		reputation.Delta{Reliability: []float64{reputation.ReliabilityCredit}})
	return err
}

// PenalizeReliability records the late-cancellation / no-show penalty.
func (s *ReputationService) PenalizeReliability(ctx context.Context, partnerID string) error {
	_, err := s.RecordRatings(ctx, partnerID,
		reputation.Delta{Reliability: []float64{reputation.ReliabilityPenalty}})
	return err
}

// AppealEligible reports whether the partner's temporary suspension has
// completed its cooldown. The unban itself is an external manual step.
func (s *ReputationService) AppealEligible(ctx context.Context, partnerID string) (bool, error) {
	account, err := s.Get(ctx, partnerID)
	if err != nil {
		return false, err
	}
	return reputation.AppealEligible(account, s.timeProvider.Now()), nil
}

func (s *ReputationService) emitBanEvents(
	ctx context.Context,
	account *model.PartnerAccount,
	events []reputation.Event,
) {
	if len(events) == 0 {
		return
	}
	now := s.timeProvider.Now().UTC()
	for _, event := range events {
		if s.metrics != nil {
			s.metrics.Count("partner.ban_events", 1, map[string]string{"event": string(event)})
		}
		if s.banSink == nil {
			continue
		}
		payload := notify.BanPayload{
			PartnerID:       account.ID,
			Event:           string(event),
			UnifiedScore:    account.UnifiedScore,
			SuspensionCount: account.SuspensionCount,
			Permanent:       account.PermanentlyBanned,
			OccurredAt:      now,
		}
		if sendErr := s.banSink.SendPartnerBan(ctx, payload); sendErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "ban notification failed",
				"partner_id", account.ID, "event", event, "error", sendErr)
		}
	}
}
