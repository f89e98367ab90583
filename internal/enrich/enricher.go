// Package enrich turns a stored lead into an analyzed lead: it refreshes the
// contact fields from the place provider, probes the website, scores the
// result and persists everything in one unit of work.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/clock/system"
	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/metrics"
)

// EventLeadAnalyzed is the notification type published after a commit.
const EventLeadAnalyzed = "lead.analyzed"

const tracerName = "github.com/JakeFAU/leadscan/internal/enrich"

// ErrPersist marks a failed commit of the analysis result.
var ErrPersist = errors.New("persist analysis")

// Config controls Enricher behavior.
type Config struct {
	// Concurrency bounds EnrichBatch; 1 runs leads strictly in order.
	Concurrency int
	Topic       string
}

// Enricher runs the enrichment pipeline for single leads and batches.
type Enricher struct {
	store     lead.Store
	details   lead.DetailFetcher
	prober    lead.Prober
	publisher lead.Publisher
	clock     lead.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Enricher. details and publisher may be nil.
func New(
	store lead.Store,
	details lead.DetailFetcher,
	prober lead.Prober,
	publisher lead.Publisher,
	clock lead.Clock,
	cfg Config,
	logger *zap.Logger,
) *Enricher {
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Enricher{
		store:     store,
		details:   details,
		prober:    prober,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Enrich analyzes one lead. A nil error means the result was committed.
// A missing lead returns lead.ErrLeadNotFound before any provider call; a
// failed commit returns an error wrapping ErrPersist.
func (e *Enricher) Enrich(ctx context.Context, leadID int64) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "enrich.Lead",
		trace.WithAttributes(attribute.Int64("lead.id", leadID)))
	defer span.End()
	if err := e.enrich(ctx, leadID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (e *Enricher) enrich(ctx context.Context, leadID int64) error {
	l, err := e.store.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, lead.ErrLeadNotFound) {
			metrics.ObserveEnrichment("not_found")
		} else {
			metrics.ObserveEnrichment("error")
		}
		return fmt.Errorf("load lead %d: %w", leadID, err)
	}

	update := lead.AnalysisUpdate{
		LeadID:     l.ID,
		Phone:      l.Phone,
		WebsiteURL: l.WebsiteURL,
		Address:    l.Address,
		Score:      l.Score,
	}
	if e.details != nil {
		mergeDetails(&update, e.details.FetchDetails(ctx, l.PlaceID))
	}

	if update.WebsiteURL != "" && e.prober != nil {
		report := e.prober.Probe(ctx, update.WebsiteURL)
		update.Report = &report
		update.Score = report.Score()
	}

	update.Status = l.Status.Advance()
	update.LastAnalyzedAt = e.clock.Now()

	if err := e.store.SaveAnalysis(ctx, update); err != nil {
		metrics.ObserveEnrichment("persist_failed")
		e.logger.Error("save analysis failed", zap.Int64("lead_id", leadID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	metrics.ObserveEnrichment("success")
	e.logger.Debug("lead analyzed",
		zap.Int64("lead_id", leadID),
		zap.Int("score", update.Score),
		zap.String("status", string(update.Status)),
	)

	e.publishAnalyzed(ctx, l, update)
	return nil
}

// mergeDetails overwrites contact fields only with non-empty fetched values.
func mergeDetails(update *lead.AnalysisUpdate, d lead.PlaceDetails) {
	if d.Phone != "" {
		update.Phone = d.Phone
	}
	if d.Website != "" {
		update.WebsiteURL = d.Website
	}
	if d.Address != "" {
		update.Address = d.Address
	}
}

func (e *Enricher) publishAnalyzed(ctx context.Context, l lead.Lead, update lead.AnalysisUpdate) {
	if e.publisher == nil || e.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"type":        EventLeadAnalyzed,
		"lead_id":     l.ID,
		"place_id":    l.PlaceID,
		"name":        l.Name,
		"website_url": update.WebsiteURL,
		"score":       update.Score,
		"status":      string(update.Status),
		"timestamp":   update.LastAnalyzedAt.Format(time.RFC3339),
	}
	if update.Report != nil {
		payload["exists"] = update.Report.Exists
	}
	if _, err := e.publisher.Publish(ctx, e.cfg.Topic, payload); err != nil {
		e.logger.Warn("publish lead.analyzed failed", zap.Int64("lead_id", l.ID), zap.Error(err))
	}
}
