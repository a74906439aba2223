// Package reputation implements the pure trust-score computation for
// partner accounts: category means, probationary gating, and the
// suspension/ban escalation ladder. All mutation of derived partner fields
// flows through Recalculate; nothing else writes them.
package reputation

import (
	"math"
	"time"

	"github.com/dispatchworks/fieldserve/internal/domain/model"
)

const (
	// ProbationThreshold is the reliability-history length below which an
	// account is probationary.
	ProbationThreshold = 20
	// ProbationStrikeValue is the minimum penalty rating; two of these
	// during probation force an effective ban.
	ProbationStrikeValue = 1.0
	// ProbationStrikeLimit is how many strike entries trigger the forced score.
	ProbationStrikeLimit = 2
	// ForcedBanScore is the unified score assigned on a probation two-strike.
	ForcedBanScore = 1.0
	// SuspensionScoreCeiling is the unified score at or below which a
	// suspension (or permanent ban) is triggered.
	SuspensionScoreCeiling = 3.0
	// MaxSuspensions is the number of temporary suspensions before the next
	// trigger becomes permanent.
	MaxSuspensions = 2
	// CooldownDuration is the fixed appeal cooldown after a temporary suspension.
	CooldownDuration = 7 * 24 * time.Hour

	// ReliabilityCredit is the reliability rating recorded on job finalization.
	ReliabilityCredit = 10.0
	// ReliabilityPenalty is the rating recorded for a late cancellation or no-show.
	ReliabilityPenalty = 1.0
	// CancellationWindow is how close to the scheduled slot a cancellation
	// counts as a reliability penalty.
	CancellationWindow = 6 * time.Hour
)

// Delta carries new rating entries to merge into an account's histories,
// newest first.
type Delta struct {
	Quality     []float64
	Reliability []float64
	Warranty    []float64
}

// Empty reports whether the delta carries no entries.
func (d Delta) Empty() bool {
	return len(d.Quality) == 0 && len(d.Reliability) == 0 && len(d.Warranty) == 0
}

// Event identifies a ban-state change produced by a recalculation.
type Event string

const (
	// EventSuspended indicates a temporary suspension started.
	EventSuspended Event = "suspended"
	// EventPermanentlyBanned indicates the terminal third-strike ban fired.
	EventPermanentlyBanned Event = "permanently_banned"
)

// Result captures the outcome of a recalculation: the updated account plus
// any ban events that fired.
type Result struct {
	Account model.PartnerAccount
	Events  []Event
}

// Recalculate merges the delta into the account's histories, recomputes the
// derived scores, and applies the ban escalation ladder. The input account
// is not mutated. now is used as the suspension start timestamp.
func Recalculate(account model.PartnerAccount, delta Delta, now time.Time) Result {
	out := account
	out.QualityHistory = merge(account.QualityHistory, delta.Quality)
	out.ReliabilityHistory = merge(account.ReliabilityHistory, delta.Reliability)
	out.WarrantyHistory = merge(account.WarrantyHistory, delta.Warranty)

	out.QualityScore = round2(categoryMean(out.QualityHistory))
	out.ReliabilityScore = round2(categoryMean(out.ReliabilityHistory))
	out.WarrantyScore = round2(categoryMean(out.WarrantyHistory))

	out.UnifiedScore = round2(clamp(unifiedScore(&out), model.RatingMin, model.RatingMax))

	events := escalate(&out, now)
	return Result{Account: out, Events: events}
}

// Probationary reports whether the account is still under the stricter
// probation scoring rules.
func Probationary(account *model.PartnerAccount) bool {
	return len(account.ReliabilityHistory) < ProbationThreshold
}

// AppealEligible reports whether a temporarily suspended account has
// completed its cooldown. Unbanning itself is a manual external operation;
// the core never clears BannedAt.
func AppealEligible(account *model.PartnerAccount, now time.Time) bool {
	if account.PermanentlyBanned || account.BannedAt == nil {
		return false
	}
	return !now.Before(account.BannedAt.Add(CooldownDuration))
}

// unifiedScore applies the probation rules: a two-strike probationary
// account is forced to the ban score; otherwise probation takes the worst
// category so a single strong metric cannot mask a critical failure, and a
// seasoned account takes the plain average.
func unifiedScore(account *model.PartnerAccount) float64 {
	if Probationary(account) {
		if strikes(account.ReliabilityHistory) >= ProbationStrikeLimit {
			return ForcedBanScore
		}
		return math.Min(account.QualityScore,
			math.Min(account.ReliabilityScore, account.WarrantyScore))
	}
	return (account.QualityScore + account.ReliabilityScore + account.WarrantyScore) / 3
}

// escalate applies the suspension ladder in place and returns the events
// that fired. An account already in cooldown or already permanent is never
// punished again for the same condition.
func escalate(account *model.PartnerAccount, now time.Time) []Event {
	if account.UnifiedScore > SuspensionScoreCeiling {
		return nil
	}
	if account.PermanentlyBanned || account.BannedAt != nil {
		return nil
	}

	if account.SuspensionCount >= MaxSuspensions {
		account.PermanentlyBanned = true
		return []Event{EventPermanentlyBanned}
	}

	account.SuspensionCount++
	bannedAt := now.UTC()
	account.BannedAt = &bannedAt
	return []Event{EventSuspended}
}

// merge prepends delta entries (newest first) and caps the result.
func merge(history, delta []float64) []float64 {
	if len(delta) == 0 && len(history) <= model.HistoryCap {
		return history
	}
	merged := make([]float64, 0, len(delta)+len(history))
	merged = append(merged, delta...)
	merged = append(merged, history...)
	if len(merged) > model.HistoryCap {
		merged = merged[:model.HistoryCap]
	}
	return merged
}

// categoryMean averages a history. An empty history contributes a single
// implicit zero entry (divide by one) to match the upstream scoring system;
// see DESIGN.md for the recorded decision.
func categoryMean(history []float64) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, v := range history {
		sum += v
	}
	return sum / float64(len(history))
}

func strikes(history []float64) int {
	count := 0
	for _, v := range history {
		if v == ProbationStrikeValue {
			count++
		}
	}
	return count
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// PenaltyApplies reports whether a cancellation at cancelledAt against the
// given scheduled slot start incurs the reliability penalty. A no-show is
// modeled as a cancellation after the slot started.
func PenaltyApplies(slotStart, cancelledAt time.Time) bool {
	return cancelledAt.After(slotStart.Add(-CancellationWindow))
}
