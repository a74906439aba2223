package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	apperrors "github.com/dispatchworks/fieldserve/internal/errors"
	"github.com/dispatchworks/fieldserve/internal/observability/statsd"
)

// VerificationConfig tunes the external verification protocol. The zero
// value is replaced by the defaults below.
type VerificationConfig struct {
	// BaseTimeout bounds the first external call; each retry gets
	// TimeoutStep more.
	BaseTimeout time.Duration
	// TimeoutStep is added to the per-call timeout on every retry.
	TimeoutStep time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryDelay is the backoff unit: the wait before retry n is n times
	// this delay.
	RetryDelay time.Duration
	// WaitBudget is the absolute bound on waiting for the asynchronous
	// confirmation after a successful submission.
	WaitBudget time.Duration
}

const (
	defaultVerifyBaseTimeout = 2 * time.Second
	defaultVerifyTimeoutStep = 2 * time.Second
	defaultVerifyMaxRetries  = 2
	defaultVerifyRetryDelay  = 1 * time.Second
	defaultVerifyWaitBudget  = 30 * time.Second
)

func (c VerificationConfig) withDefaults() VerificationConfig {
	if c.BaseTimeout <= 0 {
		c.BaseTimeout = defaultVerifyBaseTimeout
	}
	if c.TimeoutStep <= 0 {
		c.TimeoutStep = defaultVerifyTimeoutStep
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultVerifyMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultVerifyRetryDelay
	}
	if c.WaitBudget <= 0 {
		c.WaitBudget = defaultVerifyWaitBudget
	}
	return c
}

// PaymentServiceOptions groups dependencies for PaymentService.
type PaymentServiceOptions struct {
	Repo         core.JobRepository  // Required: job repository
	Verifier     core.VerifierClient // Required: external payment verifier
	Config       VerificationConfig  // Optional: protocol tuning
	TimeProvider data.TimeProvider   // Optional: defaults to real time
	Logger       *slog.Logger        // Optional: structured logger
	Metrics      statsd.Sink         // Optional: metrics sink
}

// PaymentService records payments against jobs and runs the electronic
// verification protocol: a local-first confirmation check, a retried
// external submission, and a bounded cancellable wait for the verifier's
// asynchronous write-back.
type PaymentService struct {
	repo         core.JobRepository
	verifier     core.VerifierClient
	cfg          VerificationConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewPaymentService constructs a new PaymentService.
func NewPaymentService(opts PaymentServiceOptions) (*PaymentService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("VerifierClient is required")
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "payment_service")
	}

	return &PaymentService{
		repo:         opts.Repo,
		verifier:     opts.Verifier,
		cfg:          opts.Config.withDefaults(),
		timeProvider: tp,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// MustNewPaymentService constructs a new PaymentService and panics on error.
func MustNewPaymentService(opts PaymentServiceOptions) *PaymentService {
	svc, err := NewPaymentService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create PaymentService: %v", err))
	}
	return svc
}

// AddPayment records a technician-entered payment against an owned job.
// Payments can only be entered while on site or awaiting settlement.
func (s *PaymentService) AddPayment(
	ctx context.Context,
	jobID, actor string,
	req *model.AddPaymentRequest,
) (*model.PaymentRecord, error) {
	if req == nil {
		return nil, apperrors.Validation("payment request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(actor) {
		return nil, apperrors.Unauthorizedf("partner %s does not own job %s", actor, jobID)
	}
	if job.Status != model.JobStatusArrived && job.Status != model.JobStatusAwaitingPayment {
		return nil, apperrors.InvalidTransitionf(
			"job %s does not accept payments in status %s", jobID, job.Status)
	}

	rec, err := s.repo.AddPayment(ctx, jobID, req)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	if s.metrics != nil {
		s.metrics.Count("payments.recorded", 1, map[string]string{"method": string(rec.Method)})
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "payment recorded",
			"job_id", jobID, "seq", rec.Seq, "method", rec.Method, "amount_cents", rec.AmountCents)
	}
	return rec, nil
}

// ListPayments returns the job's payment records in sequence order.
func (s *PaymentService) ListPayments(ctx context.Context, jobID string) ([]model.PaymentRecord, error) {
	if _, err := s.getJob(ctx, jobID); err != nil {
		return nil, err
	}
	payments, err := s.repo.GetPayments(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "list payments for job %s", jobID)
	}
	return payments, nil
}

// Verify runs the verification protocol for one payment record and returns
// exactly one terminal outcome: Verified, Failed, or TimedOut. A record
// already verified returns Verified immediately without touching the
// external service. Cash and remote payments are rejected; they settle
// through the manual authorization flag instead.
func (s *PaymentService) Verify(
	ctx context.Context,
	jobID string,
	seq int,
	actor string,
) (*model.VerificationOutcome, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.OwnedBy(actor) {
		return nil, apperrors.Unauthorizedf("partner %s does not own job %s", actor, jobID)
	}

	rec, err := s.getPayment(ctx, jobID, seq)
	if err != nil {
		return nil, err
	}
	if rec.Verified {
		return &model.VerificationOutcome{Status: model.VerificationVerified}, nil
	}
	if !rec.Method.RequiresVerification() {
		return nil, apperrors.Validationf(
			"%s payments settle through manual authorization, not verification", rec.Method)
	}

	started := s.timeProvider.Now()

	// Local-first: a confirmation may already have arrived.
	if outcome, done, evalErr := s.evaluate(ctx, rec, 0); done || evalErr != nil {
		s.observe(outcome, started)
		return outcome, evalErr
	}

	attempts, err := s.submit(ctx, core.VerificationRequest{
		VerificationID:      rec.VerificationID,
		ExternalReference:   rec.JobID,
		ExpectedAmountCents: rec.AmountCents,
		Timestamp:           started.UTC(),
	})
	if err != nil {
		return nil, err
	}

	outcome, err := s.awaitConfirmation(ctx, jobID, seq, attempts)
	s.observe(outcome, started)
	return outcome, err
}

// submit issues the external verification request with growing per-attempt
// timeouts and linear backoff. A caller cancellation is never retried.
func (s *PaymentService) submit(ctx context.Context, req core.VerificationRequest) (int, error) {
	maxAttempts := s.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		timeout := s.cfg.BaseTimeout + time.Duration(attempt-1)*s.cfg.TimeoutStep
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err := s.verifier.Submit(attemptCtx, req)
		cancel()

		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempt, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled,
				"verification submission abandoned")
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "verification submission failed",
				"verification_id", req.VerificationID, "attempt", attempt, "error", err)
		}

		if attempt < maxAttempts {
			backoff := time.Duration(attempt) * s.cfg.RetryDelay
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled,
					"verification submission abandoned")
			case <-timer.C:
			}
		}
	}

	if s.metrics != nil {
		s.metrics.Count("payments.verify_transport_errors", 1, nil)
	}
	return maxAttempts, apperrors.Transport(
		fmt.Sprintf("verification submission failed after %d attempts", maxAttempts), lastErr)
}

// awaitConfirmation waits, bounded by the configured budget, for the
// verifier's asynchronous write-back and re-evaluates the record on every
// wake-up. Elapsing the budget is the TimedOut outcome; a caller
// cancellation tears the wait down immediately.
func (s *PaymentService) awaitConfirmation(
	ctx context.Context,
	jobID string,
	seq, attempts int,
) (*model.VerificationOutcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.WaitBudget)
	defer cancel()

	for {
		// Re-read before blocking: the write-back may have landed between
		// the submission and the LISTEN.
		rec, err := s.getPayment(waitCtx, jobID, seq)
		if err != nil {
			if ctx.Err() == nil && waitCtx.Err() != nil {
				return s.settleElapsedBudget(ctx, jobID, seq, attempts)
			}
			return nil, err
		}
		if outcome, done, evalErr := s.evaluate(ctx, rec, attempts); done || evalErr != nil {
			return outcome, evalErr
		}

		if waitErr := s.repo.WaitForPaymentUpdate(waitCtx, jobID); waitErr != nil {
			if ctx.Err() != nil {
				return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled,
					"verification wait abandoned")
			}
			if errors.Is(waitErr, context.DeadlineExceeded) || waitCtx.Err() != nil {
				return s.settleElapsedBudget(ctx, jobID, seq, attempts)
			}
			return nil, apperrors.Wrapf(waitErr, apperrors.ErrCodeInternal,
				"wait for payment update on job %s", jobID)
		}
	}
}

// settleElapsedBudget decides the outcome once the wait budget has elapsed.
// A write-back can land between the last read and the listener teardown, so
// the record gets one final read, on the caller's context, before the
// timeout becomes the answer.
func (s *PaymentService) settleElapsedBudget(
	ctx context.Context,
	jobID string,
	seq, attempts int,
) (*model.VerificationOutcome, error) {
	if rec, err := s.getPayment(ctx, jobID, seq); err == nil {
		if outcome, done, evalErr := s.evaluate(ctx, rec, attempts); done || evalErr != nil {
			return outcome, evalErr
		}
	}
	return &model.VerificationOutcome{
		Status:   model.VerificationTimedOut,
		Reason:   "no confirmation within the wait budget",
		Attempts: attempts,
	}, nil
}

// evaluate maps the record's confirmation fields to a terminal outcome.
// An exact amount match verifies and locks the record; anything else the
// verifier reported is a failure. done is false while no confirmation has
// arrived.
func (s *PaymentService) evaluate(
	ctx context.Context,
	rec *model.PaymentRecord,
	attempts int,
) (*model.VerificationOutcome, bool, error) {
	switch {
	case rec.Verified:
		return &model.VerificationOutcome{Status: model.VerificationVerified, Attempts: attempts}, true, nil

	case rec.VerificationError != nil:
		return &model.VerificationOutcome{
			Status:   model.VerificationFailed,
			Reason:   *rec.VerificationError,
			Attempts: attempts,
		}, true, nil

	case rec.ConfirmedAmountCents != nil:
		if *rec.ConfirmedAmountCents != rec.AmountCents {
			return &model.VerificationOutcome{
				Status: model.VerificationFailed,
				Reason: fmt.Sprintf("confirmed amount %d does not match recorded amount %d",
					*rec.ConfirmedAmountCents, rec.AmountCents),
				Attempts: attempts,
			}, true, nil
		}
		if err := s.repo.MarkPaymentVerified(ctx, rec.JobID, rec.Seq); err != nil {
			return nil, false, apperrors.Wrapf(err, apperrors.ErrCodeInternal,
				"mark payment %s/%d verified", rec.JobID, rec.Seq)
		}
		return &model.VerificationOutcome{Status: model.VerificationVerified, Attempts: attempts}, true, nil

	default:
		return nil, false, nil
	}
}

// RecordConfirmation stores the external verifier's asynchronous write-back
// and wakes any bounded waiters. Confirmations for already verified
// (locked) records are dropped.
func (s *PaymentService) RecordConfirmation(ctx context.Context, conf core.ExternalConfirmation) error {
	if conf.JobID == "" {
		return apperrors.ValidationField("job_id", "job id is required")
	}
	if conf.Seq < 0 {
		return apperrors.ValidationField("seq", "sequence cannot be negative")
	}
	if conf.ConfirmedAmountCents == nil && conf.VerificationError == nil {
		return apperrors.Validation("confirmation carries neither an amount nor an error")
	}

	err := s.repo.RecordExternalConfirmation(ctx, conf)
	switch {
	case errors.Is(err, data.ErrPaymentNotFound):
		return apperrors.NotFoundf("payment %s/%d not found", conf.JobID, conf.Seq)
	case errors.Is(err, data.ErrJobNotFound):
		return apperrors.NotFoundf("job %s not found", conf.JobID)
	case err != nil:
		return apperrors.Wrapf(err, apperrors.ErrCodeInternal,
			"record confirmation for payment %s/%d", conf.JobID, conf.Seq)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "external confirmation recorded",
			"job_id", conf.JobID, "seq", conf.Seq, "has_error", conf.VerificationError != nil)
	}
	return nil
}

func (s *PaymentService) getJob(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.NotFoundf("job %s not found", jobID)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "get job %s", jobID)
	}
	return job, nil
}

func (s *PaymentService) getPayment(ctx context.Context, jobID string, seq int) (*model.PaymentRecord, error) {
	rec, err := s.repo.GetPayment(ctx, jobID, seq)
	if errors.Is(err, data.ErrPaymentNotFound) {
		return nil, apperrors.NotFoundf("payment %s/%d not found", jobID, seq)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeInternal, "get payment %s/%d", jobID, seq)
	}
	return rec, nil
}

func (s *PaymentService) observe(outcome *model.VerificationOutcome, started time.Time) {
	if s.metrics == nil || outcome == nil {
		return
	}
	tags := map[string]string{"status": string(outcome.Status)}
	s.metrics.Count("payments.verifications", 1, tags)
	s.metrics.Timing("payments.verification_duration", s.timeProvider.Now().Sub(started), tags)
}
