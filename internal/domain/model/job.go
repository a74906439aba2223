// Package model defines the core data types used throughout the fieldserve
// partner coordination system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a field-service job.
type JobStatus string

const (
	// JobStatusAvailable indicates a job is open for claiming.
	JobStatusAvailable JobStatus = "available"
	// JobStatusClaimed indicates a partner holds exclusive ownership.
	JobStatusClaimed JobStatus = "claimed"
	// JobStatusEnRoute indicates the owner is traveling to the site.
	JobStatusEnRoute JobStatus = "en_route"
	// JobStatusArrived indicates the owner is on site working the checklist.
	JobStatusArrived JobStatus = "arrived"
	// JobStatusAwaitingPayment indicates the checklist is complete and
	// payment settlement is pending.
	JobStatusAwaitingPayment JobStatus = "awaiting_payment"
	// JobStatusFinalized is the terminal status.
	JobStatusFinalized JobStatus = "finalized"
)

// statusOrder defines the forward-only progression of job statuses.
var statusOrder = []JobStatus{
	JobStatusAvailable,
	JobStatusClaimed,
	JobStatusEnRoute,
	JobStatusArrived,
	JobStatusAwaitingPayment,
	JobStatusFinalized,
}

// Valid returns true if the JobStatus is one of the closed set.
func (s JobStatus) Valid() bool {
	return s.Rank() >= 0
}

// Rank returns the position of the status in the forward progression, or -1
// for an unknown status.
func (s JobStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Terminal returns true for the finalized status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinalized
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses parse from
// request payloads and env values.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", string(text))
	}
	*s = v
	return nil
}

// Shift identifies the scheduled slot of a job within its service date.
type Shift string

const (
	// ShiftMorning covers the first service window of the day.
	ShiftMorning Shift = "morning"
	// ShiftAfternoon covers the midday service window.
	ShiftAfternoon Shift = "afternoon"
	// ShiftEvening covers the last service window of the day.
	ShiftEvening Shift = "evening"
)

// ErrUnknownShift is returned when a shift value is outside the closed set.
var ErrUnknownShift = errors.New("unknown shift")

// Valid returns true if the Shift is one of the closed set.
func (s Shift) Valid() bool {
	return s == ShiftMorning || s == ShiftAfternoon || s == ShiftEvening
}

// UnmarshalText implements encoding.TextUnmarshaler so shifts parse from
// request payloads and env values.
func (s *Shift) UnmarshalText(text []byte) error {
	v := Shift(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownShift, string(text))
	}
	*s = v
	return nil
}

// StartOn returns the slot start timestamp for the shift on the given
// service date, in UTC. Morning slots start at 08:00, afternoon at 13:00,
// evening at 18:00.
func (s Shift) StartOn(date time.Time) time.Time {
	y, m, d := date.UTC().Date()
	hour := 8
	switch s {
	case ShiftAfternoon:
		hour = 13
	case ShiftEvening:
		hour = 18
	case ShiftMorning:
	}
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

// LineItem is a single contracted service line on a job.
type LineItem struct {
	ID         string `json:"id"          db:"id"`
	PriceCents int64  `json:"price_cents" db:"price_cents"`
}

// Job represents a field-service job with its ownership, checklist, and
// settlement state.
type Job struct {
	ID                   string     `json:"id"                         db:"id"`
	Status               JobStatus  `json:"status"                     db:"status"`
	OwnerPartnerID       *string    `json:"owner_partner_id,omitempty" db:"owner_partner_id"`
	ScheduledDate        time.Time  `json:"scheduled_date"             db:"scheduled_date"`
	Shift                Shift      `json:"shift"                      db:"shift"`
	Items                []LineItem `json:"items"                      db:"items"`
	ContractedValueCents int64      `json:"contracted_value_cents"     db:"contracted_value_cents"`
	ItemsConfirmed       bool       `json:"items_confirmed"            db:"items_confirmed"`
	BeforePhotos         int        `json:"before_photos"              db:"before_photos"`
	AfterPhotos          int        `json:"after_photos"               db:"after_photos"`
	Report               string     `json:"report"                     db:"report"`
	ExternalAuthorized   bool       `json:"external_authorized"        db:"external_authorized"`
	ReliabilityCredited  bool       `json:"reliability_credited"       db:"reliability_credited"`
	Points               int64      `json:"points"                     db:"points"`
	ClaimedAt            *time.Time `json:"claimed_at,omitempty"       db:"claimed_at"`
	FinalizedAt          *time.Time `json:"finalized_at,omitempty"     db:"finalized_at"`
	CreatedAt            time.Time  `json:"created_at"                 db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"                 db:"updated_at"`
}

// OwnedBy reports whether the given partner holds ownership of the job.
func (j *Job) OwnedBy(partnerID string) bool {
	return j.OwnerPartnerID != nil && *j.OwnerPartnerID == partnerID
}

// ItemsTotalCents returns the current total value of the item list.
func (j *Job) ItemsTotalCents() int64 {
	var total int64
	for _, it := range j.Items {
		total += it.PriceCents
	}
	return total
}

// PointsForValue computes the loyalty points awarded at finalization:
// the job value in whole currency units rounded up to the next multiple
// of ten.
func PointsForValue(valueCents int64) int64 {
	if valueCents <= 0 {
		return 0
	}
	units := valueCents / 100
	if valueCents%100 != 0 {
		units++
	}
	if units%10 == 0 {
		return units
	}
	return (units/10 + 1) * 10
}
