package testutil

import (
	"time"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
)

// JobBuilder provides a fluent interface for building Job objects for testing.
type JobBuilder struct {
	job *model.Job
}

// NewJob creates a new JobBuilder with sensible defaults: an available
// morning job with a single contracted item.
func NewJob() *JobBuilder {
	return &JobBuilder{
		job: &model.Job{
			ID:            "job-1",
			Status:        model.JobStatusAvailable,
			ScheduledDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Shift:         model.ShiftMorning,
			Items: []model.LineItem{
				{ID: "sofa", PriceCents: 12_000},
			},
			ContractedValueCents: 12_000,
		},
	}
}

// WithID sets the job ID.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithStatus sets the job status.
func (b *JobBuilder) WithStatus(status model.JobStatus) *JobBuilder {
	b.job.Status = status
	return b
}

// WithOwner sets the owning partner.
func (b *JobBuilder) WithOwner(partnerID string) *JobBuilder {
	b.job.OwnerPartnerID = &partnerID
	return b
}

// WithSchedule sets the service date and shift.
func (b *JobBuilder) WithSchedule(date time.Time, shift model.Shift) *JobBuilder {
	b.job.ScheduledDate = date
	b.job.Shift = shift
	return b
}

// WithItems sets the item list and the contracted value to its total.
func (b *JobBuilder) WithItems(items ...model.LineItem) *JobBuilder {
	b.job.Items = items
	var total int64
	for _, it := range items {
		total += it.PriceCents
	}
	b.job.ContractedValueCents = total
	return b
}

// WithChecklistComplete marks every on-site checklist field done.
func (b *JobBuilder) WithChecklistComplete() *JobBuilder {
	b.job.ItemsConfirmed = true
	b.job.BeforePhotos = 1
	b.job.AfterPhotos = 1
	b.job.Report = "work completed"
	return b
}

// Build returns the constructed job.
func (b *JobBuilder) Build() *model.Job {
	job := *b.job
	return &job
}

// PartnerBuilder provides a fluent interface for building PartnerAccount
// objects for testing.
type PartnerBuilder struct {
	account *model.PartnerAccount
}

// NewPartner creates a new PartnerBuilder with a seasoned account in good
// standing.
func NewPartner() *PartnerBuilder {
	history := make([]float64, 25)
	for i := range history {
		history[i] = 8.0
	}
	return &PartnerBuilder{
		account: &model.PartnerAccount{
			ID:                 "partner-1",
			QualityHistory:     history,
			ReliabilityHistory: append([]float64(nil), history...),
			WarrantyHistory:    append([]float64(nil), history...),
			QualityScore:       8.0,
			ReliabilityScore:   8.0,
			WarrantyScore:      8.0,
			UnifiedScore:       8.0,
		},
	}
}

// WithID sets the partner ID.
func (b *PartnerBuilder) WithID(id string) *PartnerBuilder {
	b.account.ID = id
	return b
}

// WithUnifiedScore sets the derived unified score.
func (b *PartnerBuilder) WithUnifiedScore(score float64) *PartnerBuilder {
	b.account.UnifiedScore = score
	return b
}

// WithHistories sets all three rating histories.
func (b *PartnerBuilder) WithHistories(quality, reliability, warranty []float64) *PartnerBuilder {
	b.account.QualityHistory = quality
	b.account.ReliabilityHistory = reliability
	b.account.WarrantyHistory = warranty
	return b
}

// WithSuspension sets the suspension ladder state.
func (b *PartnerBuilder) WithSuspension(count int, bannedAt *time.Time) *PartnerBuilder {
	b.account.SuspensionCount = count
	b.account.BannedAt = bannedAt
	return b
}

// PermanentlyBanned marks the account terminally banned.
func (b *PartnerBuilder) PermanentlyBanned() *PartnerBuilder {
	b.account.PermanentlyBanned = true
	return b
}

// Build returns the constructed account.
func (b *PartnerBuilder) Build() *model.PartnerAccount {
	account := *b.account
	return &account
}
