package places

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/metrics"
)

const nearbyEndpoint = "/nearbysearch/json"

// Query describes one discovery request.
type Query struct {
	Lat          float64
	Lng          float64
	RadiusMeters int
	Keyword      string
}

// StatusError reports a provider status other than OK or ZERO_RESULTS.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider status %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("provider status %s", e.Status)
}

type nearbyResponse struct {
	Status        string      `json:"status"`
	ErrorMessage  string      `json:"error_message"`
	Results       []nearbyRow `json:"results"`
	NextPageToken string      `json:"next_page_token"`
}

type nearbyRow struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Types    []string `json:"types"`
	Rating   *float64 `json:"rating"`
}

// Discover streams progress logs and accepted candidates for q. Categories
// are searched in order on a single goroutine; the channel closes after the
// completion log or when ctx is done.
func (c *Client) Discover(ctx context.Context, q Query) (<-chan lead.Event, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	categories := c.Categories(q.Keyword)
	events := make(chan lead.Event, c.cfg.EventBuffer)

	go func() {
		defer close(events)
		send := func(evt lead.Event) bool {
			select {
			case events <- evt:
				return true
			case <-ctx.Done():
				return false
			}
		}

		seen := make(map[string]struct{})
		for _, category := range categories {
			if !send(lead.LogEvent("🔍 Scanning category: %s...", titleCase(category))) {
				return
			}
			err := c.runCategory(ctx, q, category, seen, send)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				c.logger.Info("discovery canceled", zap.String("category", category))
				return
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				c.logger.Warn("provider rejected category",
					zap.String("category", category), zap.Error(statusErr))
				if !send(lead.LogEvent("❌ Google API Error (%s): %s", category, statusErr.Status)) {
					return
				}
				continue
			}
			c.logger.Warn("category failed", zap.String("category", category), zap.Error(err))
			if !send(lead.LogEvent("⚠️ Error fetching %s: %v", category, err)) {
				return
			}
		}
		send(lead.LogEvent("🏁 Scan complete."))
	}()

	return events, nil
}

// runCategory walks every page for one category. It returns errors instead of
// emitting them so the caller decides how the failure is reported.
func (c *Client) runCategory(
	ctx context.Context,
	q Query,
	category string,
	seen map[string]struct{},
	send func(lead.Event) bool,
) error {
	params := url.Values{}
	params.Set("location", strconv.FormatFloat(q.Lat, 'f', -1, 64)+","+strconv.FormatFloat(q.Lng, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(q.RadiusMeters))
	params.Set("keyword", category)
	params.Set("key", c.cfg.APIKey)

	for {
		c.countCall(ctx, lead.CounterNearby)

		var page nearbyResponse
		if err := c.getJSON(ctx, nearbyEndpoint, params, &page); err != nil {
			metrics.ObservePlacesRequest("nearby", "transport_error")
			return err
		}
		metrics.ObservePlacesRequest("nearby", page.Status)
		if page.Status != "OK" && page.Status != "ZERO_RESULTS" {
			return &StatusError{Status: page.Status, Message: page.ErrorMessage}
		}

		found := 0
		for _, row := range page.Results {
			if row.PlaceID == "" {
				continue
			}
			if _, dup := seen[row.PlaceID]; dup {
				continue
			}
			if blocked(row.Name, row.Types) {
				continue
			}
			seen[row.PlaceID] = struct{}{}
			found++
			metrics.ObserveCandidate()
			if !send(lead.ResultEvent(lead.PlaceCandidate{
				PlaceID: row.PlaceID,
				Name:    row.Name,
				Address: row.Vicinity,
				Types:   row.Types,
				Rating:  row.Rating,
			})) {
				return ctx.Err()
			}
		}
		if found > 0 {
			if !send(lead.LogEvent("  ✨ Found %d unique leads", found)) {
				return ctx.Err()
			}
		}

		if page.NextPageToken == "" {
			return nil
		}
		params = url.Values{}
		params.Set("pagetoken", page.NextPageToken)
		params.Set("key", c.cfg.APIKey)
		if err := sleep(ctx, c.cfg.PageDelay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for page token: %w", ctx.Err())
	}
}
