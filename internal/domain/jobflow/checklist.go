package jobflow

import "github.com/dispatchworks/fieldserve/internal/domain/model"

// Step identifies one required on-site checklist action.
type Step string

const (
	// StepConfirmItems requires the technician to confirm the item list.
	StepConfirmItems Step = "confirm_items"
	// StepBeforePhotos requires at least one before-photo.
	StepBeforePhotos Step = "before_photos"
	// StepAfterPhotos requires at least one after-photo.
	StepAfterPhotos Step = "after_photos"
	// StepReport requires the technician report.
	StepReport Step = "report"
	// StepPayment requires every payment record to be settled.
	StepPayment Step = "payment"
)

// orderedSteps is the fixed checklist sequence presented to the partner.
var orderedSteps = []Step{
	StepConfirmItems,
	StepBeforePhotos,
	StepAfterPhotos,
	StepReport,
	StepPayment,
}

// StepState pairs a checklist step with its completion flag.
type StepState struct {
	Step Step `json:"step"`
	Done bool `json:"done"`
}

// ChecklistState is the derived checklist view for a job: every step with
// its status, the index of the next incomplete step, and the overall flag.
type ChecklistState struct {
	Steps     []StepState `json:"steps"`
	NextIndex int         `json:"next_index"`
	Complete  bool        `json:"complete"`
}

// NextStep returns the next incomplete step, or empty when complete.
func (c ChecklistState) NextStep() Step {
	if c.Complete || c.NextIndex < 0 || c.NextIndex >= len(c.Steps) {
		return ""
	}
	return c.Steps[c.NextIndex].Step
}

// Checklist derives the checklist state for a job. The machine presents the
// partner with exactly the next incomplete step and refuses to advance past
// arrived until every step is satisfied.
func Checklist(job *model.Job, payments []model.PaymentRecord) ChecklistState {
	done := map[Step]bool{
		StepConfirmItems: job.ItemsConfirmed,
		StepBeforePhotos: job.BeforePhotos > 0,
		StepAfterPhotos:  job.AfterPhotos > 0,
		StepReport:       job.Report != "",
		StepPayment:      paymentsSettled(job, payments),
	}

	state := ChecklistState{
		Steps:     make([]StepState, 0, len(orderedSteps)),
		NextIndex: -1,
		Complete:  true,
	}
	for i, step := range orderedSteps {
		state.Steps = append(state.Steps, StepState{Step: step, Done: done[step]})
		if !done[step] && state.NextIndex == -1 {
			state.NextIndex = i
			state.Complete = false
		}
	}
	return state
}
