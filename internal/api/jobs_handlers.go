package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	idgen "github.com/JakeFAU/leadscan/internal/id/uuid"
	"github.com/JakeFAU/leadscan/internal/lead"
)

const submitTimeout = 5 * time.Second

type bulkRequest struct {
	Limit *int `json:"limit"`
	All   bool `json:"all"`
}

func (s *Server) bulkAnalyze(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if s.dispatcher == nil {
		writeError(w, http.StatusServiceUnavailable, "bulk analysis is not configured")
		return
	}

	scraped := lead.StatusScraped
	filter := lead.ListFilter{Status: &scraped, OldestFirst: true}
	if !req.All {
		filter.Limit = s.cfg.Enrich.BulkDefaultLimit
		if req.Limit != nil {
			if *req.Limit <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be > 0")
				return
			}
			filter.Limit = *req.Limit
		}
	}

	leads, err := s.leads.ListLeads(r.Context(), filter)
	if err != nil {
		s.logger.Error("select leads for bulk analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to select leads")
		return
	}
	if len(leads) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"queued": 0, "message": `No "Scraped" leads found to analyze.`})
		return
	}
	ids := make([]int64, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	job, err := s.dispatcher.Submit(ctx, ids)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "queue is full, try again later")
			return
		}
		s.logger.Error("submit bulk job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to queue job")
		return
	}
	s.logger.Info("bulk analysis queued", zap.String("job_id", job.ID), zap.Int("leads", len(ids)))
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "queued": len(ids)})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if !idgen.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, lead.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type usageCounter struct {
	Used    int64   `json:"used"`
	Limit   int64   `json:"limit"`
	Percent float64 `json:"percent"`
}

func (s *Server) usage(w http.ResponseWriter, r *http.Request) {
	counts, err := s.quota.Usage(r.Context())
	if err != nil {
		s.logger.Error("load usage failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"billing_month": lead.BillingMonth(s.clock.Now()),
		"nearby":        newUsageCounter(counts[lead.CounterNearby], s.cfg.Places.NearbyMonthlyLimit),
		"details":       newUsageCounter(counts[lead.CounterDetails], s.cfg.Places.DetailsMonthlyLimit),
	})
}

func newUsageCounter(used, limit int64) usageCounter {
	c := usageCounter{Used: used, Limit: limit}
	if limit > 0 {
		c.Percent = math.Round(float64(used)/float64(limit)*1000) / 10
	}
	return c
}
