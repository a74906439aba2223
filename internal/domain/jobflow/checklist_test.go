package jobflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
)

func TestChecklist(t *testing.T) {
	t.Run("a fresh job points at item confirmation", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		state := Checklist(job, nil)
		assert.False(t, state.Complete)
		assert.Equal(t, StepConfirmItems, state.NextStep())
	})

	t.Run("steps advance in the fixed order", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		job.ItemsConfirmed = true
		assert.Equal(t, StepBeforePhotos, Checklist(job, nil).NextStep())

		job.BeforePhotos = 1
		assert.Equal(t, StepAfterPhotos, Checklist(job, nil).NextStep())

		job.AfterPhotos = 1
		assert.Equal(t, StepReport, Checklist(job, nil).NextStep())

		job.Report = "done"
		assert.Equal(t, StepPayment, Checklist(job, nil).NextStep())
	})

	t.Run("settled payments complete the checklist", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		completeChecklist(job)

		state := Checklist(job, verifiedPayments())
		assert.True(t, state.Complete)
		assert.Equal(t, Step(""), state.NextStep())
		for _, step := range state.Steps {
			assert.True(t, step.Done, step.Step)
		}
	})

	t.Run("a job with no payments is never settled", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		completeChecklist(job)
		job.ExternalAuthorized = true

		state := Checklist(job, nil)
		assert.False(t, state.Complete)
		assert.Equal(t, StepPayment, state.NextStep())
	})

	t.Run("an earlier gap takes precedence", func(t *testing.T) {
		job := flowJob("p1", model.JobStatusArrived)
		completeChecklist(job)
		job.BeforePhotos = 0

		state := Checklist(job, verifiedPayments())
		require.False(t, state.Complete)
		assert.Equal(t, StepBeforePhotos, state.NextStep())
	})
}
