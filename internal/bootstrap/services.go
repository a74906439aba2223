package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/dispatchworks/fieldserve/config"
	redisadapter "github.com/dispatchworks/fieldserve/internal/adapters/redis"
	"github.com/dispatchworks/fieldserve/internal/adapters/verifier"
	"github.com/dispatchworks/fieldserve/internal/core"
	"github.com/dispatchworks/fieldserve/internal/data"
	"github.com/dispatchworks/fieldserve/internal/observability/statsd"
	"github.com/dispatchworks/fieldserve/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Reputation *service.ReputationService
	Claims     *service.ClaimService
	Jobs       *service.JobService
	Payments   *service.PaymentService

	// MetricsSink is shared by every service; nil-safe when disabled.
	MetricsSink *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, adapters, and services.
func NewServices(deps *ServiceDeps) ServiceContainer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
	}

	metricsSink := buildMetricsSink(logger, cfg.Observability.Metrics)

	jobRepo := data.NewJobRepo(data.JobRepoOptions{DB: deps.DB, Logger: logger})
	partnerRepo := data.NewPartnerRepo(data.PartnerRepoOptions{DB: deps.DB, Logger: logger})

	counter := redisadapter.NewClaimCounter(deps.RedisClient)
	publisher := redisadapter.NewPublisher(deps.RedisClient)

	reputationSvc := service.MustNewReputationService(service.ReputationServiceOptions{
		Partners: partnerRepo,
		Logger:   logger,
		BanSink:  publisher,
		Metrics:  metricsSink,
	})

	claimSvc := service.MustNewClaimService(service.ClaimServiceOptions{
		Jobs:     jobRepo,
		Partners: partnerRepo,
		Counter:  counter,
		Logger:   logger,
		JobSink:  publisher,
		Metrics:  metricsSink,
	})

	jobSvc := service.MustNewJobService(service.JobServiceOptions{
		Repo:    jobRepo,
		Ledger:  reputationSvc,
		Logger:  logger,
		JobSink: publisher,
		Metrics: metricsSink,
	})

	paymentSvc := service.MustNewPaymentService(service.PaymentServiceOptions{
		Repo:     jobRepo,
		Verifier: buildVerifier(logger, cfg.Verifier),
		Config: service.VerificationConfig{
			BaseTimeout: cfg.Verification.BaseTimeout,
			TimeoutStep: cfg.Verification.TimeoutStep,
			MaxRetries:  cfg.Verification.MaxRetries,
			RetryDelay:  cfg.Verification.RetryDelay,
			WaitBudget:  cfg.Verification.WaitBudget,
		},
		Logger:  logger,
		Metrics: metricsSink,
	})

	return ServiceContainer{
		Reputation:  reputationSvc,
		Claims:      claimSvc,
		Jobs:        jobSvc,
		Payments:    paymentSvc,
		MetricsSink: metricsSink,
	}
}

func buildMetricsSink(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) *statsd.Client {
	client, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.IsEnabled(),
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

//nolint:ireturn // the disabled fallback and the HTTP client share the port type.
func buildVerifier(logger *slog.Logger, cfg config.VerifierConfig) core.VerifierClient {
	if cfg.BaseURL == "" {
		logger.Warn("no verifier base URL configured; external verification disabled")
		return disabledVerifier{}
	}
	client, err := verifier.New(verifier.Options{BaseURL: cfg.BaseURL, Logger: logger})
	if err != nil {
		logger.Error("failed to initialise verifier client; external verification disabled", "error", err)
		return disabledVerifier{}
	}
	return client
}

// disabledVerifier rejects every submission. Electronic payments can still
// settle through the asynchronous confirmation write-back.
type disabledVerifier struct{}

func (disabledVerifier) Submit(ctx context.Context, req core.VerificationRequest) error {
	return errors.New("external verification is disabled")
}
