// Package verifier is the HTTP client for the external payment verifier.
// Submissions are accepted asynchronously; the verifier confirms later by
// posting back to the confirmation endpoint.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/dispatchworks/fieldserve/internal/core"
)

// Options groups dependencies for Client.
type Options struct {
	BaseURL string       // Required: verifier base URL
	Logger  *slog.Logger // Optional: structured logger
}

// Client submits verification requests over HTTP. Per-call deadlines come
// from the caller's context; the protocol's retry and timeout schedule
// lives in the payment service, not here.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

var _ core.VerifierClient = (*Client)(nil)

// New constructs a verifier client.
func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("verifier base URL is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "verifier_client")
	}

	return &Client{
		http:   resty.New().SetBaseURL(baseURL),
		logger: logger,
	}, nil
}

// Submit posts one verification request. A 2xx answer means the verifier
// accepted the request for asynchronous processing; anything else is a
// transport-level failure the caller may retry.
func (c *Client) Submit(ctx context.Context, req core.VerificationRequest) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/api/verifications")
	if err != nil {
		return fmt.Errorf("submit verification %s: %w", req.VerificationID, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusAccepted, http.StatusCreated:
		if c.logger != nil {
			c.logger.DebugContext(ctx, "verification submitted",
				"verification_id", req.VerificationID, "status", resp.StatusCode())
		}
		return nil
	default:
		return fmt.Errorf("submit verification %s: unexpected status %d",
			req.VerificationID, resp.StatusCode())
	}
}
