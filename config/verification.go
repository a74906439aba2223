package config

import "time"

// VerifierConfig contains the external payment verifier connection settings.
type VerifierConfig struct {
	// BaseURL is the verifier service root. Empty disables external
	// verification; electronic payments then settle only through the
	// asynchronous write-back.
	BaseURL string `env:"VERIFIER_BASE_URL" envDefault:""`
}

// VerificationConfig tunes the payment verification protocol: the per-call
// submission timeouts, the retry schedule, and the bounded confirmation wait.
type VerificationConfig struct {
	// BaseTimeout is the first submission attempt's timeout. Every further
	// attempt grows it by TimeoutStep.
	BaseTimeout time.Duration `env:"VERIFICATION_BASE_TIMEOUT" envDefault:"2s"`
	TimeoutStep time.Duration `env:"VERIFICATION_TIMEOUT_STEP" envDefault:"2s"`

	// MaxRetries is how many times a failed submission is retried after the
	// first attempt.
	MaxRetries int `env:"VERIFICATION_MAX_RETRIES" envDefault:"2"`
	// RetryDelay is the linear backoff unit between attempts.
	RetryDelay time.Duration `env:"VERIFICATION_RETRY_DELAY" envDefault:"1s"`

	// WaitBudget bounds the wait for the verifier's asynchronous
	// confirmation before the outcome is reported as timed out.
	WaitBudget time.Duration `env:"VERIFICATION_WAIT_BUDGET" envDefault:"30s"`
}

// Sanitize applies guardrails to verification protocol values.
func (v *VerificationConfig) Sanitize() {
	if v.BaseTimeout <= 0 {
		v.BaseTimeout = 2 * time.Second
	}
	if v.TimeoutStep < 0 {
		v.TimeoutStep = 0
	}
	if v.MaxRetries < 0 {
		v.MaxRetries = 0
	}
	if v.RetryDelay < 0 {
		v.RetryDelay = 0
	}
	if v.WaitBudget <= 0 {
		v.WaitBudget = 30 * time.Second
	}
}
