// Package redis provides Redis-based adapters for the fieldserve system.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/domain/reputation"
)

// counterTTL keeps spent counters around long enough to cover timezone
// skew around the service date before Redis reclaims them.
const counterTTL = 48 * time.Hour

// ClaimCounter enforces the per-day and per-shift claim limits with Redis
// counters keyed by partner and service date. Reserve increments first and
// compensates on rejection, so two racing claimers can never both slip
// under the last remaining slot.
type ClaimCounter struct {
	client redis.UniversalClient
	prefix string
}

// NewClaimCounter creates a Redis-based claim counter.
func NewClaimCounter(client redis.UniversalClient) *ClaimCounter {
	return &ClaimCounter{client: client, prefix: "claims:"}
}

// NewClaimCounterWithPrefix creates a claim counter with a custom key prefix.
func NewClaimCounterWithPrefix(client redis.UniversalClient, prefix string) *ClaimCounter {
	return &ClaimCounter{client: client, prefix: prefix}
}

var _ core.ClaimCounter = (*ClaimCounter)(nil)

func (c *ClaimCounter) dayKey(slot core.ClaimSlot) string {
	return fmt.Sprintf("%s%s:%s", c.prefix, slot.PartnerID, slot.Date.UTC().Format("2006-01-02"))
}

func (c *ClaimCounter) shiftKey(slot core.ClaimSlot) string {
	return c.dayKey(slot) + ":" + string(slot.Shift)
}

// Reserve takes one claim slot for the partner on the given date and shift.
// It reports false, leaving the counters unchanged, when either limit is
// already spent.
func (c *ClaimCounter) Reserve(
	ctx context.Context,
	slot core.ClaimSlot,
	policy reputation.AccessPolicy,
) (bool, error) {
	if policy.Unlimited {
		return true, nil
	}
	if !policy.CanAcceptJobs || policy.DailyJobLimit <= 0 {
		return false, nil
	}

	dayKey := c.dayKey(slot)
	shiftKey := c.shiftKey(slot)

	pipe := c.client.TxPipeline()
	dayCount := pipe.Incr(ctx, dayKey)
	shiftCount := pipe.Incr(ctx, shiftKey)
	pipe.Expire(ctx, dayKey, counterTTL)
	pipe.Expire(ctx, shiftKey, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("reserve claim slot: %w", err)
	}

	if dayCount.Val() > int64(policy.DailyJobLimit) ||
		(policy.PerShiftLimit > 0 && shiftCount.Val() > int64(policy.PerShiftLimit)) {
		if err := c.decrement(ctx, slot); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Release returns a previously reserved slot, used when the claim itself
// fails after the reservation succeeded.
func (c *ClaimCounter) Release(ctx context.Context, slot core.ClaimSlot) error {
	return c.decrement(ctx, slot)
}

func (c *ClaimCounter) decrement(ctx context.Context, slot core.ClaimSlot) error {
	pipe := c.client.TxPipeline()
	pipe.Decr(ctx, c.dayKey(slot))
	pipe.Decr(ctx, c.shiftKey(slot))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("release claim slot: %w", err)
	}
	return nil
}
