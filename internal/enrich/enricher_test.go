package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/JakeFAU/leadscan/internal/clock/system"
	"github.com/JakeFAU/leadscan/internal/lead"
	pubmemory "github.com/JakeFAU/leadscan/internal/publisher/memory"
	"github.com/JakeFAU/leadscan/internal/storage/memory"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fakeDetails struct {
	mu      sync.Mutex
	details map[string]lead.PlaceDetails
	calls   []string
}

func (f *fakeDetails) FetchDetails(_ context.Context, placeID string) lead.PlaceDetails {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, placeID)
	return f.details[placeID]
}

type fakeProber struct {
	mu     sync.Mutex
	report lead.AnalysisReport
	urls   []string
}

func (f *fakeProber) Probe(_ context.Context, rawURL string) lead.AnalysisReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, rawURL)
	r := f.report
	r.URL = rawURL
	return r
}

type failingStore struct {
	lead.Store
	err error
}

func (s failingStore) SaveAnalysis(context.Context, lead.AnalysisUpdate) error {
	return s.err
}

func seed(t *testing.T, store *memory.LeadStore, placeID string) lead.Lead {
	t.Helper()
	l, created, err := store.CreateIfAbsent(context.Background(), lead.PlaceCandidate{
		PlaceID: placeID,
		Name:    "Lead " + placeID,
		Address: "old address",
	}, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, created)
	return l
}

func fullReport() lead.AnalysisReport {
	year := 2024
	return lead.AnalysisReport{
		Exists:           true,
		StatusCode:       200,
		SSLActive:        true,
		MobileViewport:   true,
		ContactInfoFound: true,
		TechStack:        "WordPress",
		LoadTimeMs:       80,
		CopyrightYear:    &year,
		Logs:             []string{"📡 Connecting to https://joes.example...", "✅ Status: 200 | Speed: 80ms"},
	}
}

func TestEnrichScoresAndAdvancesScrapedLead(t *testing.T) {
	t.Parallel()

	store := memory.NewLeadStore()
	l := seed(t, store, "p1")
	details := &fakeDetails{details: map[string]lead.PlaceDetails{
		"p1": {Phone: "(555) 123-4567", Website: "https://joes.example"},
	}}
	prober := &fakeProber{report: fullReport()}
	pub := pubmemory.New()
	e := New(store, details, prober, pub, system.NewFrozen(now), Config{Topic: "lead-analyzed"}, nil)

	require.NoError(t, e.Enrich(context.Background(), l.ID))

	got, err := store.GetLead(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, lead.StatusAnalyzed, got.Status)
	require.Equal(t, 100, got.Score)
	require.Equal(t, "(555) 123-4567", got.Phone)
	require.Equal(t, "https://joes.example", got.WebsiteURL)
	require.Equal(t, "old address", got.Address, "empty fetched address keeps the stored one")
	require.Equal(t, "WordPress", *got.TechStack)
	require.Equal(t, 2024, *got.CopyrightYear)
	require.Contains(t, got.AnalysisNotes, "\n✅ Status: 200")
	require.Equal(t, now, *got.LastAnalyzedAt)
	require.Equal(t, []string{"https://joes.example"}, prober.urls)

	payloads := pub.Topic("lead-analyzed")
	require.Len(t, payloads, 1)
	payload := payloads[0].(map[string]any)
	require.Equal(t, EventLeadAnalyzed, payload["type"])
	require.Equal(t, 100, payload["score"])
}

func TestEnrichMissingLead(t *testing.T) {
	t.Parallel()

	details := &fakeDetails{}
	e := New(memory.NewLeadStore(), details, &fakeProber{}, nil, nil, Config{}, nil)

	err := e.Enrich(context.Background(), 404)
	require.ErrorIs(t, err, lead.ErrLeadNotFound)
	require.Empty(t, details.calls, "no provider call for a missing lead")
}

func TestEnrichWithoutWebsiteSkipsProbe(t *testing.T) {
	t.Parallel()

	store := memory.NewLeadStore()
	l := seed(t, store, "p1")
	prober := &fakeProber{report: fullReport()}
	e := New(store, &fakeDetails{}, prober, nil, system.NewFrozen(now), Config{}, nil)

	require.NoError(t, e.Enrich(context.Background(), l.ID))

	got, err := store.GetLead(context.Background(), l.ID)
	require.NoError(t, err)
	require.Empty(t, prober.urls)
	require.Equal(t, 0, got.Score)
	require.Equal(t, lead.StatusAnalyzed, got.Status)
	require.NotNil(t, got.LastAnalyzedAt)
}

func TestEnrichKeepsProgressedStatus(t *testing.T) {
	t.Parallel()

	store := memory.NewLeadStore()
	l := seed(t, store, "p1")
	require.NoError(t, store.UpdateStatus(context.Background(), l.ID, lead.StatusContacted))

	report := fullReport()
	report.SSLActive = false
	details := &fakeDetails{details: map[string]lead.PlaceDetails{"p1": {Website: "http://joes.example"}}}
	e := New(store, details, &fakeProber{report: report}, nil, system.NewFrozen(now), Config{}, nil)

	for range 2 {
		require.NoError(t, e.Enrich(context.Background(), l.ID))
		got, err := store.GetLead(context.Background(), l.ID)
		require.NoError(t, err)
		require.Equal(t, lead.StatusContacted, got.Status)
		require.Equal(t, 75, got.Score)
	}
}

func TestEnrichPersistFailure(t *testing.T) {
	t.Parallel()

	store := memory.NewLeadStore()
	l := seed(t, store, "p1")
	pub := pubmemory.New()
	e := New(failingStore{Store: store, err: errors.New("tx aborted")}, &fakeDetails{}, &fakeProber{},
		pub, nil, Config{Topic: "lead-analyzed"}, nil)

	err := e.Enrich(context.Background(), l.ID)
	require.ErrorIs(t, err, ErrPersist)
	require.ErrorContains(t, err, "tx aborted")
	require.Empty(t, pub.Messages(), "nothing is published without a commit")

	got, err := store.GetLead(context.Background(), l.ID)
	require.NoError(t, err)
	require.Equal(t, lead.StatusScraped, got.Status)
}

func TestEnrichPublishFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	store := memory.NewLeadStore()
	l := seed(t, store, "p1")
	pub := pubmemory.New()
	pub.FailWith(errors.New("broker down"))
	e := New(store, &fakeDetails{}, &fakeProber{}, pub, nil, Config{Topic: "lead-analyzed"}, nil)

	require.NoError(t, e.Enrich(context.Background(), l.ID))
}

func TestMergeDetails(t *testing.T) {
	t.Parallel()

	update := lead.AnalysisUpdate{Phone: "1", WebsiteURL: "w", Address: "a"}
	mergeDetails(&update, lead.PlaceDetails{Website: "https://new.example"})
	require.Equal(t, "1", update.Phone)
	require.Equal(t, "https://new.example", update.WebsiteURL)
	require.Equal(t, "a", update.Address)
}

func TestEnrichRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	e := New(memory.NewLeadStore(), nil, nil, nil, system.NewFrozen(now), Config{}, nil)
	err := e.Enrich(context.Background(), 404)
	require.ErrorIs(t, err, lead.ErrLeadNotFound)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "enrich.Lead", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
}
