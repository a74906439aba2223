package model

import "time"

// HistoryCap is the maximum number of rating entries retained per category,
// newest first.
const HistoryCap = 100

// RatingMin and RatingMax bound individual rating entries.
const (
	RatingMin = 0.0
	RatingMax = 10.0
)

// PartnerAccount is the persistent per-partner trust record. Histories are
// ordered most-recent-first and capped at HistoryCap entries. The derived
// scores and ban fields are only ever written by the reputation engine.
type PartnerAccount struct {
	ID                 string     `json:"id"                     db:"id"`
	QualityHistory     []float64  `json:"quality_history"        db:"quality_history"`
	ReliabilityHistory []float64  `json:"reliability_history"    db:"reliability_history"`
	WarrantyHistory    []float64  `json:"warranty_history"       db:"warranty_history"`
	QualityScore       float64    `json:"quality_score"          db:"quality_score"`
	ReliabilityScore   float64    `json:"reliability_score"      db:"reliability_score"`
	WarrantyScore      float64    `json:"warranty_score"         db:"warranty_score"`
	UnifiedScore       float64    `json:"unified_score"          db:"unified_score"`
	SuspensionCount    int        `json:"suspension_count"       db:"suspension_count"`
	BannedAt           *time.Time `json:"banned_at,omitempty"    db:"banned_at"`
	PermanentlyBanned  bool       `json:"permanently_banned"     db:"permanently_banned"`
	CreatedAt          time.Time  `json:"created_at"             db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"             db:"updated_at"`
}

// InCooldown reports whether the account is inside an unresolved temporary
// suspension. The cooldown is only ever cleared by an external manual unban.
func (a *PartnerAccount) InCooldown() bool {
	return a.BannedAt != nil
}

// Blocked reports whether the account may act at all: permanently banned
// accounts and accounts in an unresolved cooldown are both blocked.
func (a *PartnerAccount) Blocked() bool {
	return a.PermanentlyBanned || a.InCooldown()
}
