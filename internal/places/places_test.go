package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/leadscan/internal/lead"
)

type fakeQuota struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeQuota() *fakeQuota {
	return &fakeQuota{counts: make(map[string]int64)}
}

func (f *fakeQuota) Get(context.Context, string, string) (string, error) { return "", nil }
func (f *fakeQuota) Set(context.Context, string, string) error { return nil }

func (f *fakeQuota) Increment(_ context.Context, key string, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key] += amount
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[key], nil
}

func (f *fakeQuota) Usage(context.Context) (map[string]int64, error) { return nil, nil }

func (f *fakeQuota) count(key string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key]
}

func newTestClient(baseURL string, quota lead.QuotaStore, categories ...string) *Client {
	return New(Config{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		OmniCategories: categories,
		PageDelay:      0,
		EventBuffer:    4,
		Timeout:        2 * time.Second,
	}, quota, zap.NewNop())
}

func collect(t *testing.T, ch <-chan lead.Event) []lead.Event {
	t.Helper()
	var out []lead.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, evt)
		case <-timeout:
			t.Fatal("discovery stream did not close")
		}
	}
}

func resultIDs(events []lead.Event) []string {
	var ids []string
	for _, evt := range events {
		if evt.Kind == lead.EventResult {
			ids = append(ids, evt.Candidate.PlaceID)
		}
	}
	return ids
}

func logMessages(events []lead.Event) []string {
	var msgs []string
	for _, evt := range events {
		if evt.Kind == lead.EventLog {
			msgs = append(msgs, evt.Message)
		}
	}
	return msgs
}

func TestDiscoverMissingAPIKey(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	quota := newFakeQuota()
	client := New(Config{BaseURL: srv.URL}, quota, nil)
	ch, err := client.Discover(context.Background(), Query{Keyword: "plumber"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.Nil(t, ch)
	require.Zero(t, hits.Load())
	require.Zero(t, quota.count(lead.CounterNearby))
}

func TestCategories(t *testing.T) {
	t.Parallel()

	client := New(Config{}, nil, nil)
	require.Len(t, client.Categories("Business"), 26)
	require.Equal(t, DefaultOmniCategories, client.Categories("BUSINESS"))
	require.Equal(t, []string{"roofer"}, client.Categories("roofer"))

	override := New(Config{OmniCategories: []string{"dentist", "lawyer"}}, nil, nil)
	require.Equal(t, []string{"dentist", "lawyer"}, override.Categories("business"))
	require.Equal(t, []string{"business services"}, override.Categories("business services"))
}

func TestParseCategories(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"plumber", "pest control"}, ParseCategories(" plumber, ,pest control ,,"))
	require.Empty(t, ParseCategories(""))
	require.Empty(t, ParseCategories(" , "))
}

func TestBlocked(t *testing.T) {
	t.Parallel()

	require.True(t, blocked("WALMART Supercenter", nil))
	require.True(t, blocked("Joe's McDonald's", nil))
	require.True(t, blocked("Corner Market", []string{"store", "supermarket"}))
	require.True(t, blocked("Quick Fill", []string{"gas_station"}))
	require.False(t, blocked("Acme Plumbing", []string{"plumber", "point_of_interest"}))
}

func TestDiscoverDedupesAndFilters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, nearbyEndpoint, r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.Equal(t, "37.7749,-122.4194", r.URL.Query().Get("location"))
		require.Equal(t, "1500", r.URL.Query().Get("radius"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("keyword") {
		case "plumber":
			_, _ = w.Write([]byte(`{"status":"OK","results":[
				{"place_id":"p1","name":"Acme Plumbing","vicinity":"1 Main St","types":["plumber"],"rating":4.5}
			]}`))
		case "roofer":
			_, _ = w.Write([]byte(`{"status":"OK","results":[
				{"place_id":"p1","name":"Acme Plumbing","vicinity":"1 Main St","types":["plumber"]},
				{"place_id":"p2","name":"Top Roofing","vicinity":"2 Oak Ave","types":["roofing_contractor"]},
				{"place_id":"p3","name":"Walmart Supercenter","vicinity":"3 Elm","types":["store"]},
				{"place_id":"p4","name":"Fuel Stop","vicinity":"4 Pine","types":["gas_station"]}
			]}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, newFakeQuota(), "plumber", "roofer", "dentist")
	ch, err := client.Discover(context.Background(), Query{Lat: 37.7749, Lng: -122.4194, RadiusMeters: 1500, Keyword: "Business"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []string{"p1", "p2"}, resultIDs(events))
	msgs := logMessages(events)
	require.Equal(t, "🔍 Scanning category: Plumber...", msgs[0])
	require.Contains(t, msgs, "  ✨ Found 1 unique leads")
	require.Contains(t, msgs, "🔍 Scanning category: Dentist...")
	require.Equal(t, "🏁 Scan complete.", msgs[len(msgs)-1])

	first := events[1]
	require.Equal(t, lead.EventResult, first.Kind)
	require.Equal(t, "1 Main St", first.Candidate.Address)
	require.NotNil(t, first.Candidate.Rating)
	require.InDelta(t, 4.5, *first.Candidate.Rating, 0.001)
}

func TestDiscoverPaginationAndQuota(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		if token := q.Get("pagetoken"); token != "" {
			require.Equal(t, "tok-1", token)
			require.Empty(t, q.Get("keyword"))
			require.Empty(t, q.Get("location"))
			require.Equal(t, "test-key", q.Get("key"))
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"p2","name":"Second Page Co"}]}`))
			return
		}
		switch q.Get("keyword") {
		case "plumber":
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"First Page Co"}],"next_page_token":"tok-1"}`))
		case "painter":
			_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"quota"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS"}`))
		}
	}))
	defer srv.Close()

	quota := newFakeQuota()
	client := newTestClient(srv.URL, quota, "plumber", "painter", "roofer")
	ch, err := client.Discover(context.Background(), Query{Keyword: "business", RadiusMeters: 1000})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []string{"p1", "p2"}, resultIDs(events))
	require.Equal(t, int32(4), requests.Load())
	require.Equal(t, int64(requests.Load()), quota.count(lead.CounterNearby))
	require.Contains(t, logMessages(events), "❌ Google API Error (painter): OVER_QUERY_LIMIT")
}

func TestDiscoverTransportErrorContinues(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("keyword") {
		case "plumber":
			w.WriteHeader(http.StatusInternalServerError)
		case "roofer":
			_, _ = w.Write([]byte(`{not json`))
		default:
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"p9","name":"Good Fences"}]}`))
		}
	}))
	defer srv.Close()

	quota := newFakeQuota()
	client := newTestClient(srv.URL, quota, "plumber", "roofer", "fencing")
	ch, err := client.Discover(context.Background(), Query{Keyword: "business"})
	require.NoError(t, err)
	events := collect(t, ch)

	require.Equal(t, []string{"p9"}, resultIDs(events))
	var errorLogs int
	for _, msg := range logMessages(events) {
		if strings.HasPrefix(msg, "⚠️ Error fetching ") {
			errorLogs++
		}
	}
	require.Equal(t, 2, errorLogs)
	require.Equal(t, int64(3), quota.count(lead.CounterNearby))
}

func TestDiscoverSurvivesQuotaFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"Acme"}]}`))
	}))
	defer srv.Close()

	quota := newFakeQuota()
	quota.err = errors.New("database is locked")
	client := newTestClient(srv.URL, quota)
	ch, err := client.Discover(context.Background(), Query{Keyword: "locksmith"})
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []string{"p1"}, resultIDs(events))
}

func TestDiscoverStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"p1","name":"Acme"}],"next_page_token":"again"}`))
	}))
	defer srv.Close()

	client := New(Config{APIKey: "k", BaseURL: srv.URL, PageDelay: time.Hour}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := client.Discover(ctx, Query{Keyword: "plumber"})
	require.NoError(t, err)

	// Read until the first result, then abandon the stream.
	for evt := range ch {
		if evt.Kind == lead.EventResult {
			break
		}
	}
	cancel()
	collect(t, ch)
}

func TestFetchDetails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, detailsEndpoint, r.URL.Path)
		q := r.URL.Query()
		require.Equal(t, detailsFields, q.Get("fields"))
		switch q.Get("place_id") {
		case "p1":
			_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"Acme","formatted_phone_number":"(555) 123-4567",
				"website":"https://acme.example","formatted_address":"1 Main St, Springfield"}}`))
		case "broken":
			_, _ = w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	quota := newFakeQuota()
	client := newTestClient(srv.URL, quota)

	details := client.FetchDetails(context.Background(), "p1")
	require.Equal(t, lead.PlaceDetails{
		Phone:   "(555) 123-4567",
		Website: "https://acme.example",
		Address: "1 Main St, Springfield",
	}, details)

	require.True(t, client.FetchDetails(context.Background(), "broken").Empty())
	require.True(t, client.FetchDetails(context.Background(), "missing").Empty())
	require.Equal(t, int64(3), quota.count(lead.CounterDetails))
	require.Zero(t, quota.count(lead.CounterNearby))
}

func TestFetchDetailsLogsProviderStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"key invalid"}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	client := New(Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second},
		newFakeQuota(), zap.New(core))

	require.True(t, client.FetchDetails(context.Background(), "p1").Empty())

	entries := logs.FilterMessage("place details returned non-OK status").All()
	require.Len(t, entries, 1)
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	require.Equal(t, "p1", fields["place_id"])
	require.Equal(t, "REQUEST_DENIED", fields["status"])
}

func TestTitleCase(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Pest Control", titleCase("pest control"))
	require.Equal(t, "Hvac", titleCase("hvac"))
}
