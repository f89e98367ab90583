package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/lead"
	"github.com/JakeFAU/leadscan/internal/places"
)

const (
	minRadius     = 100
	maxRadius     = 50000
	defaultRadius = 1000
)

type discoverRequest struct {
	Keyword string   `json:"keyword"`
	Radius  int      `json:"radius"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// discoverLine is one NDJSON line of the discovery stream.
type discoverLine struct {
	Type    string               `json:"type"`
	Message string               `json:"message,omitempty"`
	Result  *lead.PlaceCandidate `json:"result,omitempty"`
	LeadID  int64                `json:"lead_id,omitempty"`
	Created *bool                `json:"created,omitempty"`
	Added   *int                 `json:"added,omitempty"`
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	q := places.Query{
		Lat:          s.cfg.Places.DefaultLat,
		Lng:          s.cfg.Places.DefaultLng,
		RadiusMeters: clampRadius(req.Radius),
		Keyword:      req.Keyword,
	}
	if q.Keyword == "" {
		q.Keyword = places.OmniKeyword
	}
	if req.Lat != nil {
		q.Lat = *req.Lat
	}
	if req.Lng != nil {
		q.Lng = *req.Lng
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	events, err := s.discoverer.Discover(ctx, q)
	if err != nil {
		if errors.Is(err, places.ErrMissingAPIKey) {
			writeError(w, http.StatusServiceUnavailable, "places API key is not configured")
			return
		}
		s.logger.Error("discovery failed to start", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "discovery failed")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	emit := func(line discoverLine) bool {
		if err := enc.Encode(line); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	added := 0
	for evt := range events {
		line := discoverLine{Type: string(evt.Kind), Message: evt.Message, Result: evt.Candidate}
		if evt.Kind == lead.EventResult && evt.Candidate != nil {
			l, created, err := s.leads.CreateIfAbsent(ctx, *evt.Candidate, s.clock.Now())
			if err != nil {
				s.logger.Error("save candidate failed", zap.String("place_id", evt.Candidate.PlaceID), zap.Error(err))
				line = discoverLine{
					Type:    string(lead.EventLog),
					Message: fmt.Sprintf("⚠️ Could not save %s: %v", evt.Candidate.Name, err),
				}
			} else {
				line.LeadID = l.ID
				line.Created = &created
				if created {
					added++
				}
			}
		}
		if !emit(line) {
			// Client went away; stop the producer before draining.
			cancel()
			for range events {
			}
			return
		}
	}

	summary := "Scan complete. No new leads found (all duplicates)."
	if added > 0 {
		summary = fmt.Sprintf("Scan complete. Added %d new leads.", added)
	}
	emit(discoverLine{Type: "done", Message: summary, Added: &added})
}

func clampRadius(r int) int {
	switch {
	case r == 0:
		return defaultRadius
	case r < minRadius:
		return minRadius
	case r > maxRadius:
		return maxRadius
	default:
		return r
	}
}
