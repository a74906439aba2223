package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dispatchworks/fieldserve/config"
	httpx "github.com/dispatchworks/fieldserve/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// NewHTTPServer builds the HTTP server with the full routing stack.
func NewHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
		appCfg.Sanitize()
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Jobs:     cfg.Services.Jobs,
		Claims:   cfg.Services.Claims,
		Payments: cfg.Services.Payments,
		Partners: cfg.Services.Reputation,
		Logger:   logger,
	})

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		// WriteTimeout must outlast the bounded verification wait, which
		// can hold a request open for the full wait budget.
		WriteTimeout: appCfg.Verification.WaitBudget + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// RunHTTPServer runs the server until the context is cancelled or a signal
// arrives, then drains in-flight requests within the shutdown grace.
func RunHTTPServer(ctx context.Context, cfg *HTTPServerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	server := NewHTTPServer(cfg)

	grace := 15 * time.Second
	if cfg.Config != nil {
		grace = cfg.Config.HTTP.ShutdownGrace
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}

		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}
