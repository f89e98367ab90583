// Package places talks to the Google Places web service: paginated nearby
// search for discovery and the details endpoint for contact enrichment.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/logging"
	"github.com/JakeFAU/leadscan/internal/metrics"
	"github.com/JakeFAU/leadscan/internal/policy/ratelimit"
)

// DefaultBaseURL is the production Places web service root.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// ErrMissingAPIKey is returned by Discover when no provider key is configured.
var ErrMissingAPIKey = errors.New("places api key not configured")

// Config controls provider access.
type Config struct {
	APIKey string
	// BaseURL overrides DefaultBaseURL (tests point this at httptest).
	BaseURL string
	// OmniCategories replaces DefaultOmniCategories when non-empty.
	OmniCategories []string
	// PageDelay is the wait before a next_page_token becomes valid.
	PageDelay time.Duration
	// EventBuffer sizes the discovery channel.
	EventBuffer int
	Timeout     time.Duration
}

// Client implements discovery and detail lookups against the provider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	quota      lead.QuotaStore
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter paces provider calls.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// New builds a Client. quota may be nil, in which case usage is not tracked.
func New(cfg Config, quota lead.QuotaStore, logger *zap.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.EventBuffer < 0 {
		cfg.EventBuffer = 0
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		quota:      quota,
		logger:     logging.Component(logger, "places"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// countCall bumps a usage counter. Failures are logged and otherwise ignored.
func (c *Client) countCall(ctx context.Context, counter string) {
	if c.quota == nil {
		return
	}
	if _, err := c.quota.Increment(ctx, counter, 1); err != nil {
		c.logger.Warn("failed to increment api counter", zap.String("counter", counter), zap.Error(err))
	}
}

// getJSON performs a GET against endpoint with params and decodes the body.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := c.cfg.BaseURL + endpoint
	if err := c.limiter.Wait(ctx, target); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("call %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}
