package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data"
	"github.com/dispatchworks/fieldserve/internal/domain/model"
	apperrors "github.com/dispatchworks/fieldserve/internal/errors"
)

func ownedJob(id, owner string, status model.JobStatus) *model.Job {
	return &model.Job{
		ID:             id,
		Status:         status,
		OwnerPartnerID: &owner,
		ScheduledDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Shift:          model.ShiftMorning,
		Items: []model.LineItem{
			{ID: "sofa", PriceCents: 12_000},
		},
		ContractedValueCents: 12_000,
	}
}

func newJobService(t *testing.T, opts JobServiceOptions) *JobService {
	t.Helper()
	if opts.Ledger == nil {
		opts.Ledger = &stubLedger{}
	}
	svc, err := NewJobService(opts)
	require.NoError(t, err)
	return svc
}

func TestJobServiceTransition(t *testing.T) {
	ctx := context.Background()
	onDate := data.NewFixedTimeProvider(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	t.Run("owner advances one step forward", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
			updateStatus: func(_ context.Context, change core.StatusChange) (*model.Job, error) {
				assert.Equal(t, model.JobStatusClaimed, change.From)
				assert.Equal(t, model.JobStatusEnRoute, change.To)
				updated := *job
				updated.Status = change.To
				return &updated, nil
			},
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo, TimeProvider: onDate})

		updated, err := svc.Transition(ctx, "j1", model.JobStatusEnRoute, "p1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusEnRoute, updated.Status)
	})

	t.Run("departure before the scheduled date is refused", func(t *testing.T) {
		early := data.NewFixedTimeProvider(time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC))
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo, TimeProvider: early})

		_, err := svc.Transition(ctx, "j1", model.JobStatusEnRoute, "p1")
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo, TimeProvider: onDate})

		_, err := svc.Transition(ctx, "j1", model.JobStatusEnRoute, "intruder")
		assert.True(t, apperrors.IsUnauthorized(err))
	})

	t.Run("skipping a status is refused", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo, TimeProvider: onDate})

		_, err := svc.Transition(ctx, "j1", model.JobStatusArrived, "p1")
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("incomplete checklist blocks awaiting payment", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusArrived)
		job.ItemsConfirmed = true
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo, TimeProvider: onDate})

		_, err := svc.Transition(ctx, "j1", model.JobStatusAwaitingPayment, "p1")
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("lost transition race surfaces as invalid transition", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
			updateStatus: func(_ context.Context, _ core.StatusChange) (*model.Job, error) {
				return nil, data.ErrJobUnavailable
			},
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo, TimeProvider: onDate})

		_, err := svc.Transition(ctx, "j1", model.JobStatusEnRoute, "p1")
		assert.True(t, apperrors.IsInvalidTransition(err))
	})
}

func TestJobServiceFinalization(t *testing.T) {
	ctx := context.Background()
	onDate := data.NewFixedTimeProvider(time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC))

	verifiedPayment := model.PaymentRecord{
		JobID:       "j1",
		Seq:         0,
		AmountCents: 12_000,
		Method:      model.PaymentMethodElectronic,
		Verified:    true,
		Locked:      true,
	}

	setup := func(won bool) (*stubJobRepo, *stubLedger, *int64) {
		job := ownedJob("j1", "p1", model.JobStatusAwaitingPayment)
		var awarded int64
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
			getPayments: func(_ context.Context, _ string) ([]model.PaymentRecord, error) {
				return []model.PaymentRecord{verifiedPayment}, nil
			},
			updateStatus: func(_ context.Context, change core.StatusChange) (*model.Job, error) {
				updated := *job
				updated.Status = change.To
				return &updated, nil
			},
			finalizeAward: func(_ context.Context, _ string, points int64) (bool, error) {
				awarded = points
				return won, nil
			},
		}
		return repo, &stubLedger{}, &awarded
	}

	t.Run("finalization awards points and credits reliability once", func(t *testing.T) {
		repo, ledger, awarded := setup(true)
		svc := newJobService(t, JobServiceOptions{Repo: repo, Ledger: ledger, TimeProvider: onDate})

		updated, err := svc.Transition(ctx, "j1", model.JobStatusFinalized, "p1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFinalized, updated.Status)
		// 12000 cents = 120 units, already a multiple of ten.
		assert.Equal(t, int64(120), *awarded)
		assert.Equal(t, []string{"p1"}, ledger.credits)
	})

	t.Run("duplicate finalization observer skips the credit", func(t *testing.T) {
		repo, ledger, _ := setup(false)
		svc := newJobService(t, JobServiceOptions{Repo: repo, Ledger: ledger, TimeProvider: onDate})

		_, err := svc.Transition(ctx, "j1", model.JobStatusFinalized, "p1")
		require.NoError(t, err)
		assert.Empty(t, ledger.credits)
	})

	t.Run("unsettled payments block finalization", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusAwaitingPayment)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
			getPayments: func(_ context.Context, _ string) ([]model.PaymentRecord, error) {
				unverified := verifiedPayment
				unverified.Verified = false
				unverified.Locked = false
				return []model.PaymentRecord{unverified}, nil
			},
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo, TimeProvider: onDate})

		_, err := svc.Transition(ctx, "j1", model.JobStatusFinalized, "p1")
		assert.True(t, apperrors.IsInvalidTransition(err))
	})
}

func TestJobServiceChecklistAndItems(t *testing.T) {
	ctx := context.Background()

	t.Run("checklist updates require the on-site status", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo})

		confirmed := true
		_, err := svc.UpdateChecklist(ctx, "j1", "p1", core.ChecklistUpdate{ConfirmItems: &confirmed})
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("empty checklist update is rejected", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusArrived)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo})

		_, err := svc.UpdateChecklist(ctx, "j1", "p1", core.ChecklistUpdate{})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("checklist update is applied on site", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusArrived)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
			setChecklist: func(_ context.Context, _ string, update core.ChecklistUpdate) (*model.Job, error) {
				updated := *job
				if update.BeforePhotos != nil {
					updated.BeforePhotos = *update.BeforePhotos
				}
				return &updated, nil
			},
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo})

		photos := 3
		updated, err := svc.UpdateChecklist(ctx, "j1", "p1", core.ChecklistUpdate{BeforePhotos: &photos})
		require.NoError(t, err)
		assert.Equal(t, 3, updated.BeforePhotos)
	})

	t.Run("item edit below the contracted value is rejected", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusArrived)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo})

		_, err := svc.UpdateItems(ctx, "j1", "p1", []model.LineItem{{ID: "sofa", PriceCents: 9_000}})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("item edit raising the total is applied", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusArrived)
		repo := &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
			updateItems: func(_ context.Context, _ string, items []model.LineItem) (*model.Job, error) {
				updated := *job
				updated.Items = items
				return &updated, nil
			},
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo})

		items := []model.LineItem{
			{ID: "sofa", PriceCents: 12_000},
			{ID: "armchair", PriceCents: 4_500},
		}
		updated, err := svc.UpdateItems(ctx, "j1", "p1", items)
		require.NoError(t, err)
		assert.Equal(t, int64(16_500), updated.ItemsTotalCents())
	})
}

func TestJobServiceCancel(t *testing.T) {
	ctx := context.Background()

	releaseRepo := func(job *model.Job) *stubJobRepo {
		return &stubJobRepo{
			getByID: func(_ context.Context, _ string) (*model.Job, error) { return job, nil },
			release: func(_ context.Context, _ string) (*model.Job, error) {
				released := *job
				released.Status = model.JobStatusAvailable
				released.OwnerPartnerID = nil
				return &released, nil
			},
		}
	}

	t.Run("cancellation inside the window records the penalty", func(t *testing.T) {
		// Morning slot starts 08:00; cancelling at 05:00 is inside 6 hours.
		clock := data.NewFixedTimeProvider(time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC))
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		ledger := &stubLedger{}
		svc := newJobService(t, JobServiceOptions{
			Repo:         releaseRepo(job),
			Ledger:       ledger,
			TimeProvider: clock,
		})

		released, err := svc.Cancel(ctx, "j1", "p1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusAvailable, released.Status)
		assert.Equal(t, []string{"p1"}, ledger.penalties)
	})

	t.Run("early cancellation carries no penalty", func(t *testing.T) {
		clock := data.NewFixedTimeProvider(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		ledger := &stubLedger{}
		svc := newJobService(t, JobServiceOptions{
			Repo:         releaseRepo(job),
			Ledger:       ledger,
			TimeProvider: clock,
		})

		_, err := svc.Cancel(ctx, "j1", "p1")
		require.NoError(t, err)
		assert.Empty(t, ledger.penalties)
	})

	t.Run("no-show after the slot start is penalized", func(t *testing.T) {
		clock := data.NewFixedTimeProvider(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
		job := ownedJob("j1", "p1", model.JobStatusEnRoute)
		ledger := &stubLedger{}
		svc := newJobService(t, JobServiceOptions{
			Repo:         releaseRepo(job),
			Ledger:       ledger,
			TimeProvider: clock,
		})

		_, err := svc.Cancel(ctx, "j1", "p1")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, ledger.penalties)
	})

	t.Run("on-site jobs cannot be cancelled", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusArrived)
		svc := newJobService(t, JobServiceOptions{Repo: releaseRepo(job)})

		_, err := svc.Cancel(ctx, "j1", "p1")
		assert.True(t, apperrors.IsInvalidTransition(err))
	})

	t.Run("non-owner cannot cancel", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusClaimed)
		svc := newJobService(t, JobServiceOptions{Repo: releaseRepo(job)})

		_, err := svc.Cancel(ctx, "j1", "intruder")
		assert.True(t, apperrors.IsUnauthorized(err))
	})
}

func TestJobServiceAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("sets the manual authorization flag", func(t *testing.T) {
		job := ownedJob("j1", "p1", model.JobStatusAwaitingPayment)
		repo := &stubJobRepo{
			setExternalAuth: func(_ context.Context, _ string) (*model.Job, error) {
				updated := *job
				updated.ExternalAuthorized = true
				return &updated, nil
			},
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo})

		updated, err := svc.Authorize(ctx, "j1")
		require.NoError(t, err)
		assert.True(t, updated.ExternalAuthorized)
	})

	t.Run("unknown job returns not found", func(t *testing.T) {
		repo := &stubJobRepo{
			setExternalAuth: func(_ context.Context, _ string) (*model.Job, error) {
				return nil, data.ErrJobNotFound
			},
		}
		svc := newJobService(t, JobServiceOptions{Repo: repo})

		_, err := svc.Authorize(ctx, "ghost")
		assert.True(t, apperrors.IsNotFound(err))
	})
}
