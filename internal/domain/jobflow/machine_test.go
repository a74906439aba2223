package jobflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
	apperrors "github.com/dispatchworks/fieldserve/internal/errors"
)

var (
	scheduleDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	onDate       = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
)

func flowJob(owner string, status model.JobStatus) *model.Job {
	return &model.Job{
		ID:             "j1",
		Status:         status,
		OwnerPartnerID: &owner,
		ScheduledDate:  scheduleDate,
		Shift:          model.ShiftMorning,
		Items: []model.LineItem{
			{ID: "sofa", PriceCents: 12_000},
		},
		ContractedValueCents: 12_000,
	}
}

func completeChecklist(job *model.Job) {
	job.ItemsConfirmed = true
	job.BeforePhotos = 2
	job.AfterPhotos = 2
	job.Report = "done"
}

func verifiedPayments() []model.PaymentRecord {
	return []model.PaymentRecord{{
		JobID:       "j1",
		Seq:         0,
		AmountCents: 12_000,
		Method:      model.PaymentMethodElectronic,
		Verified:    true,
		Locked:      true,
	}}
}

func TestNextAndCanTransition(t *testing.T) {
	t.Run("each status has a single forward edge", func(t *testing.T) {
		edges := map[model.JobStatus]model.JobStatus{
			model.JobStatusAvailable:       model.JobStatusClaimed,
			model.JobStatusClaimed:         model.JobStatusEnRoute,
			model.JobStatusEnRoute:         model.JobStatusArrived,
			model.JobStatusArrived:         model.JobStatusAwaitingPayment,
			model.JobStatusAwaitingPayment: model.JobStatusFinalized,
		}
		for from, to := range edges {
			next, ok := Next(from)
			require.True(t, ok, from)
			assert.Equal(t, to, next)
			assert.True(t, CanTransition(from, to))
		}
	})

	t.Run("the terminal status has no edge", func(t *testing.T) {
		_, ok := Next(model.JobStatusFinalized)
		assert.False(t, ok)
	})

	t.Run("no backward or skipping edges", func(t *testing.T) {
		assert.False(t, CanTransition(model.JobStatusArrived, model.JobStatusEnRoute))
		assert.False(t, CanTransition(model.JobStatusClaimed, model.JobStatusArrived))
		assert.False(t, CanTransition(model.JobStatusFinalized, model.JobStatusAvailable))
	})
}

func TestValidate(t *testing.T) {
	tc := TransitionContext{Actor: "p1", Now: onDate}

	t.Run("owner advances claimed to en route on the scheduled day", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusClaimed)
		assert.NoError(t, Validate(job, nil, model.JobStatusEnRoute, tc))
	})

	t.Run("unknown target status", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusClaimed)
		err := Validate(job, nil, model.JobStatus("teleported"), tc)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("claiming bypasses the generic transition path", func(t *testing.T) {
		job := &model.Job{ID: "j1", Status: model.JobStatusAvailable, ScheduledDate: scheduleDate}
		err := Validate(job, nil, model.JobStatusClaimed, tc)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusClaimed)
		err := Validate(job, nil, model.JobStatusEnRoute, TransitionContext{Actor: "p2", Now: onDate})
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("departure before the scheduled date is refused", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusClaimed)
		early := TransitionContext{Actor: "p1", Now: scheduleDate.Add(-time.Hour)}
		err := Validate(job, nil, model.JobStatusEnRoute, early)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("departure later the same day is fine", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusClaimed)
		lateSameDay := TransitionContext{Actor: "p1", Now: scheduleDate.Add(23 * time.Hour)}
		assert.NoError(t, Validate(job, nil, model.JobStatusEnRoute, lateSameDay))
	})

	t.Run("awaiting payment requires a complete checklist", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		err := Validate(job, nil, model.JobStatusAwaitingPayment, tc)
		assert.True(t, apperrors.IsInvalidTransition(err))

		completeChecklist(job)
		assert.NoError(t, Validate(job, verifiedPayments(), model.JobStatusAwaitingPayment, tc))
	})

	t.Run("finalization requires settled payments", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusAwaitingPayment)
		completeChecklist(job)

		err := Validate(job, nil, model.JobStatusFinalized, tc)
		assert.True(t, apperrors.IsInvalidTransition(err))

		assert.NoError(t, Validate(job, verifiedPayments(), model.JobStatusFinalized, tc))
	})

	t.Run("cash payments settle through the authorization flag", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusAwaitingPayment)
		completeChecklist(job)
		cash := []model.PaymentRecord{{
			JobID: "j1", Seq: 0, AmountCents: 12_000, Method: model.PaymentMethodCash,
		}}

		err := Validate(job, cash, model.JobStatusFinalized, tc)
		assert.True(t, apperrors.IsInvalidTransition(err))

		job.ExternalAuthorized = true
		assert.NoError(t, Validate(job, cash, model.JobStatusFinalized, tc))
	})

	t.Run("an unverified electronic payment is not covered by authorization", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusAwaitingPayment)
		completeChecklist(job)
		job.ExternalAuthorized = true
		electronic := []model.PaymentRecord{{
			JobID: "j1", Seq: 0, AmountCents: 12_000, Method: model.PaymentMethodElectronic,
		}}

		err := Validate(job, electronic, model.JobStatusFinalized, tc)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})
}

func TestValidateItemEdit(t *testing.T) {
	t.Run("raising the total on site is allowed", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		items := []model.LineItem{
			{ID: "sofa", PriceCents: 12_000},
			{ID: "armchair", PriceCents: 3_000},
		}
		assert.NoError(t, ValidateItemEdit(job, "p1", items))
	})

	t.Run("keeping the exact contracted value is allowed", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		items := []model.LineItem{{ID: "sofa", PriceCents: 12_000}}
		assert.NoError(t, ValidateItemEdit(job, "p1", items))
	})

	t.Run("reducing the total below the contract is rejected", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		items := []model.LineItem{{ID: "sofa", PriceCents: 11_999}}
		err := ValidateItemEdit(job, "p1", items)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("edits are on-site only", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusEnRoute)
		items := []model.LineItem{{ID: "sofa", PriceCents: 15_000}}
		err := ValidateItemEdit(job, "p1", items)
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("only the owner edits", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		items := []model.LineItem{{ID: "sofa", PriceCents: 15_000}}
		err := ValidateItemEdit(job, "p2", items)
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("empty lists and negative prices are rejected", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		assert.True(t, apperrors.IsValidation(ValidateItemEdit(job, "p1", nil)))

		bad := []model.LineItem{{ID: "sofa", PriceCents: -1}}
		assert.True(t, apperrors.IsValidation(ValidateItemEdit(job, "p1", bad)))

		missingID := []model.LineItem{{PriceCents: 20_000}}
		assert.True(t, apperrors.IsValidation(ValidateItemEdit(job, "p1", missingID)))
	})
}
