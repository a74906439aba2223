// Package notify defines the outbound event payloads the coordination core
// emits for downstream consumers (dispatch dashboards, partner apps).
package notify

import (
	"context"
	"time"
)

// JobStatusPayload captures the canonical data emitted when a job changes
// status, including the claim that starts ownership.
type JobStatusPayload struct {
	JobID      string
	From       string
	To         string
	PartnerID  string
	OccurredAt time.Time
	Metadata   map[string]string
}

// BanPayload captures the data emitted when a partner account is suspended
// or permanently banned.
type BanPayload struct {
	PartnerID       string
	Event           string
	UnifiedScore    float64
	SuspensionCount int
	Permanent       bool
	OccurredAt      time.Time
}

// JobSink describes a destination capable of consuming job status events.
type JobSink interface {
	SendJobStatus(ctx context.Context, payload JobStatusPayload) error
}

// JobSinkFunc adapts a function to the JobSink interface (useful for tests).
type JobSinkFunc func(ctx context.Context, payload JobStatusPayload) error

// SendJobStatus implements the JobSink interface.
func (f JobSinkFunc) SendJobStatus(ctx context.Context, payload JobStatusPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// BanSink describes a destination capable of consuming ban events.
type BanSink interface {
	SendPartnerBan(ctx context.Context, payload BanPayload) error
}

// BanSinkFunc adapts a function to the BanSink interface.
type BanSinkFunc func(ctx context.Context, payload BanPayload) error

// SendPartnerBan implements the BanSink interface.
func (f BanSinkFunc) SendPartnerBan(ctx context.Context, payload BanPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
