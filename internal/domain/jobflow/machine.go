// Package jobflow implements the job status state machine: the closed
// transition table, the per-edge guards, and the on-site checklist that
// gates progression past arrival.
package jobflow

import (
	"time"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
	apperrors "github.com/dispatchworks/fieldserve/internal/errors"
)

// TransitionContext carries the actor and clock for guard evaluation.
type TransitionContext struct {
	Actor string
	Now   time.Time
}

// Next returns the single forward edge from the given status, or an
// invalid status when the state is terminal or unknown.
func Next(status model.JobStatus) (model.JobStatus, bool) {
	rank := status.Rank()
	if rank < 0 || status.Terminal() {
		return "", false
	}
	return statusAt(rank + 1), true
}

func statusAt(rank int) model.JobStatus {
	order := []model.JobStatus{
		model.JobStatusAvailable,
		model.JobStatusClaimed,
		model.JobStatusEnRoute,
		model.JobStatusArrived,
		model.JobStatusAwaitingPayment,
		model.JobStatusFinalized,
	}
	if rank < 0 || rank >= len(order) {
		return ""
	}
	return order[rank]
}

// CanTransition reports whether from→to is an edge of the machine. Only
// single forward steps exist; there are no backward or skipping edges.
func CanTransition(from, to model.JobStatus) bool {
	next, ok := Next(from)
	return ok && next == to
}

// Validate checks a requested transition against the machine's table and
// guards. It returns nil when the transition may be applied, and an
// AppError (invalid_transition, unauthorized, or validation) otherwise.
// The payments slice is consulted for the settlement guards.
func Validate(
	job *model.Job,
	payments []model.PaymentRecord,
	target model.JobStatus,
	tc TransitionContext,
) error {
	if !target.Valid() {
		return apperrors.Validationf("unknown target status %q", target)
	}
	if !CanTransition(job.Status, target) {
		return apperrors.InvalidTransitionf(
			"job %s cannot move from %s to %s", job.ID, job.Status, target)
	}
	if target == model.JobStatusClaimed {
		// Claiming goes through the claim coordinator, never through the
		// generic transition path.
		return apperrors.InvalidTransitionf("job %s must be claimed through the claim coordinator", job.ID)
	}
	if !job.OwnedBy(tc.Actor) {
		return apperrors.Unauthorizedf("partner %s does not own job %s", tc.Actor, job.ID)
	}

	switch target {
	case model.JobStatusEnRoute:
		if dateOnly(tc.Now).Before(dateOnly(job.ScheduledDate)) {
			return apperrors.InvalidTransitionf(
				"job %s is scheduled for %s and cannot start early",
				job.ID, job.ScheduledDate.Format("2006-01-02"))
		}
	case model.JobStatusAwaitingPayment:
		cl := Checklist(job, payments)
		if !cl.Complete {
			return apperrors.InvalidTransitionf(
				"job %s checklist incomplete: next step %s", job.ID, cl.NextStep())
		}
	case model.JobStatusFinalized:
		if !paymentsSettled(job, payments) {
			return apperrors.InvalidTransitionf(
				"job %s has unsettled payments", job.ID)
		}
	}

	return nil
}

// ValidateItemEdit checks the upward-only item-list edit policy: edits are
// permitted only while on site (arrived), only by the owner, and only when
// the new total does not fall below the originally contracted value.
func ValidateItemEdit(job *model.Job, actor string, items []model.LineItem) error {
	if job.Status != model.JobStatusArrived {
		return apperrors.InvalidTransitionf(
			"job %s items can only be edited on site (status %s)", job.ID, job.Status)
	}
	if !job.OwnedBy(actor) {
		return apperrors.Unauthorizedf("partner %s does not own job %s", actor, job.ID)
	}
	if len(items) == 0 {
		return apperrors.ValidationField("items", "item list cannot be empty")
	}
	var total int64
	for _, it := range items {
		if it.ID == "" {
			return apperrors.ValidationField("items", "item id is required")
		}
		if it.PriceCents < 0 {
			return apperrors.ValidationField("items", "item price cannot be negative")
		}
		total += it.PriceCents
	}
	if total < job.ContractedValueCents {
		return apperrors.Validationf(
			"new item total %d is below the contracted value %d",
			total, job.ContractedValueCents)
	}
	return nil
}

// paymentsSettled reports whether every payment record is verified or, for
// cash/remote methods, covered by the job's manual authorization flag.
// A job with no recorded payments is not settled.
func paymentsSettled(job *model.Job, payments []model.PaymentRecord) bool {
	if len(payments) == 0 {
		return false
	}
	for i := range payments {
		if !payments[i].Settled(job.ExternalAuthorized) {
			return false
		}
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
