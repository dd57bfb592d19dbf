// Package backend is the thin SDK boundary to the remote application
// backend. It owns transport-level error classification: timeouts are kept
// distinct from definitive protocol failures so callers never conflate a
// slow network with an unreachable backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/wavechat/client/internal/infrastructure/config"
)

// Client calls the remote backend over HTTP
type Client struct {
	baseURL    string
	healthPath string
	deviceID   string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, used by tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a backend client from configuration
func NewClient(cfg config.BackendConfig, deviceID string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		healthPath: cfg.HealthPath,
		deviceID:   deviceID,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger.Named("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health probes the liveness endpoint. A nil error means the backend is
// confirmed up; the returned error class tells the caller whether the
// failure was definitive or transient.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.healthPath, "", nil, nil)
}

// do issues one request and classifies the outcome. token may be empty for
// unauthenticated paths; out may be nil when the body is irrelevant.
func (c *Client) do(ctx context.Context, method, path, token string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Device-ID", c.deviceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := classifyTransport(err)
		c.logger.Debug("request transport failure",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return classified
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode); err != nil {
		c.logger.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
