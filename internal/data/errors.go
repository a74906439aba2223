package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Job repository sentinels.
	ErrJobNotFound    = errors.New("job not found")
	ErrJobUnavailable = errors.New("job is no longer available")

	// Partner repository sentinels.
	ErrPartnerNotFound = errors.New("partner not found")

	// Payment repository sentinels.
	ErrPaymentNotFound = errors.New("payment record not found")
	ErrPaymentLocked   = errors.New("payment record is locked")
)
