package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadscan/internal/enrich"
	"github.com/JakeFAU/leadscan/internal/lead"
)

// boardOrder is the column order of the lead board. Ignored leads are hidden.
var boardOrder = []lead.Status{
	lead.StatusAnalyzed,
	lead.StatusScraped,
	lead.StatusContacted,
	lead.StatusWon,
	lead.StatusLost,
	lead.StatusGoodCondition,
}

type boardColumn struct {
	Status lead.Status `json:"status"`
	Leads  []lead.Lead `json:"leads"`
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	filter := lead.ListFilter{ExcludeIgnored: true}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := lead.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter = lead.ListFilter{Status: &status}
	}
	leads, err := s.leads.ListLeads(r.Context(), filter)
	if err != nil {
		s.logger.Error("list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []lead.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

func (s *Server) board(w http.ResponseWriter, r *http.Request) {
	leads, err := s.leads.ListLeads(r.Context(), lead.ListFilter{ExcludeIgnored: true})
	if err != nil {
		s.logger.Error("list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	columns := make([]boardColumn, len(boardOrder))
	index := make(map[lead.Status]int, len(boardOrder))
	for i, status := range boardOrder {
		columns[i] = boardColumn{Status: status, Leads: []lead.Lead{}}
		index[status] = i
	}
	for _, l := range leads {
		if i, ok := index[l.Status]; ok {
			columns[i].Leads = append(columns[i].Leads, l)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": columns})
}

func (s *Server) getLead(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	l, err := s.leads.GetLead(r.Context(), id)
	if err != nil {
		s.writeLeadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) analyzeLead(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	err := s.enricher.Enrich(r.Context(), id)
	switch {
	case errors.Is(err, lead.ErrLeadNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "lead not found"})
		return
	case errors.Is(err, enrich.ErrPersist):
		s.logger.Error("analysis not saved", zap.Int64("lead_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "analysis could not be saved"})
		return
	case err != nil:
		s.logger.Error("analysis failed", zap.Int64("lead_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "analysis failed"})
		return
	}
	l, err := s.leads.GetLead(r.Context(), id)
	if err != nil {
		s.writeLeadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lead": l})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	status, err := lead.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.leads.UpdateStatus(r.Context(), id, status); err != nil {
		s.writeLeadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) updateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.leads.UpdateNotes(r.Context(), id, req.Notes); err != nil {
		s.writeLeadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "notes": req.Notes})
}

func (s *Server) hideLead(w http.ResponseWriter, r *http.Request) {
	id, ok := leadID(w, r)
	if !ok {
		return
	}
	if err := s.leads.UpdateStatus(r.Context(), id, lead.StatusIgnored); err != nil {
		s.writeLeadError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": lead.StatusIgnored})
}

func leadID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid lead id")
		return 0, false
	}
	return id, true
}

func (s *Server) writeLeadError(w http.ResponseWriter, id int64, err error) {
	if errors.Is(err, lead.ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	s.logger.Error("lead operation failed", zap.Int64("lead_id", id), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "lead operation failed")
}
