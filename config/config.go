// Package config holds the environment-driven application configuration.
// Values are loaded with github.com/caarlos0/env; Sanitize applies the
// guardrails that keep out-of-range values from reaching the services.
package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files:
//   - database.go: PostgreSQL and Redis configuration
//   - http.go: HTTP server configuration
//   - verification.go: external payment verifier configuration
//   - observability.go: metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior. Set DEV=true for
	// development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	Verifier     VerifierConfig
	Verification VerificationConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment
// variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Verification.Sanitize()
	c.Observability.Sanitize()
}
