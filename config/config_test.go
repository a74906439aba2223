package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfigDefaults(t *testing.T) {
	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.False(t, cfg.IsDev)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "fieldserve", cfg.Postgres.Name)
	assert.True(t, cfg.Postgres.RunMigrationsOnStart)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Second, cfg.Verification.BaseTimeout)
	assert.Equal(t, 2, cfg.Verification.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Verification.WaitBudget)
	assert.Empty(t, cfg.Verifier.BaseURL)
}

func TestAppConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("VERIFIER_BASE_URL", "https://verifier.internal")
	t.Setenv("VERIFICATION_MAX_RETRIES", "5")
	t.Setenv("VERIFICATION_WAIT_BUDGET", "10s")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "https://verifier.internal", cfg.Verifier.BaseURL)
	assert.Equal(t, 5, cfg.Verification.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Verification.WaitBudget)
}

func TestVerificationSanitize(t *testing.T) {
	cfg := VerificationConfig{
		BaseTimeout: -time.Second,
		TimeoutStep: -time.Second,
		MaxRetries:  -3,
		RetryDelay:  -time.Second,
		WaitBudget:  0,
	}
	cfg.Sanitize()

	assert.Equal(t, 2*time.Second, cfg.BaseTimeout)
	assert.Equal(t, time.Duration(0), cfg.TimeoutStep)
	assert.Zero(t, cfg.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.WaitBudget)
}

func TestMetricsSanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "   "}
	cfg.Sanitize()

	assert.False(t, cfg.IsEnabled())

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: "127.0.0.1:8125"}
	cfg.Sanitize()
	assert.True(t, cfg.IsEnabled())
}
