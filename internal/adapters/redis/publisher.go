package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchworks/fieldserve/internal/observability/notify"
)

// Channel names for outbound events.
const (
	JobStatusChannel  = "fieldserve:job_status"
	PartnerBanChannel = "fieldserve:partner_bans"
)

// Publisher fans job status and ban events out over Redis pub/sub for
// dispatch dashboards and partner apps.
type Publisher struct {
	client redis.UniversalClient
}

// NewPublisher creates a Redis-based event publisher.
func NewPublisher(client redis.UniversalClient) *Publisher {
	return &Publisher{client: client}
}

var (
	_ notify.JobSink = (*Publisher)(nil)
	_ notify.BanSink = (*Publisher)(nil)
)

// SendJobStatus publishes a job status change.
func (p *Publisher) SendJobStatus(ctx context.Context, payload notify.JobStatusPayload) error {
	return p.publish(ctx, JobStatusChannel, payload)
}

// SendPartnerBan publishes a suspension or permanent ban.
func (p *Publisher) SendPartnerBan(ctx context.Context, payload notify.BanPayload) error {
	return p.publish(ctx, PartnerBanChannel, payload)
}

func (p *Publisher) publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
