package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/leadgen"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// clampCap normalizes a requested run size into [1, MaxCap], using the
// configured default when the request left it out.
func (s *Server) clampCap(requested int) int {
	if requested == 0 {
		return s.cfg.DefaultCap
	}
	if requested < 1 {
		return 1
	}
	if requested > s.cfg.MaxCap {
		return s.cfg.MaxCap
	}
	return requested
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Segment string `json:"segment"`
		Cap     int    `json:"cap"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Segment == "" {
		writeError(w, http.StatusBadRequest, "segment is required")
		return
	}

	stream := newNDJSONStream(w)
	err := s.importer.Run(r.Context(), req.Segment, s.clampCap(req.Cap), stream.Write)
	if err == nil {
		return
	}
	if stream.Started() {
		// Mid-stream there is no status code left to send.
		zap.L().Warn("server: search stream aborted", zap.String("segment", req.Segment), zap.Error(err))
		return
	}
	if errors.Is(err, leadgen.ErrUnknownSegment) {
		writeError(w, http.StatusBadRequest, "unknown segment")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) handleAutomation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Automation string   `json:"automation"`
		LeadIDs    []string `json:"leadIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Automation != "email" {
		writeError(w, http.StatusBadRequest, "unknown automation")
		return
	}
	if len(req.LeadIDs) == 0 {
		writeError(w, http.StatusBadRequest, "leadIds is required")
		return
	}

	type automationLine struct {
		LeadID         string `json:"leadId"`
		LeadName       string `json:"leadName"`
		Success        bool   `json:"success"`
		EmailGenerated bool   `json:"emailGenerated,omitempty"`
		Error          string `json:"error,omitempty"`
	}

	stream := newNDJSONStream(w)
	for _, id := range req.LeadIDs {
		line := automationLine{LeadID: id}

		contact, err := s.store.GetContact(r.Context(), id)
		if err != nil {
			line.Error = "lead not found"
			if !errors.Is(err, store.ErrNotFound) {
				line.Error = err.Error()
			}
		} else {
			line.LeadName = contact.DisplayName()
			if _, err := s.enricher.DraftEmail(r.Context(), id); err != nil {
				line.Error = err.Error()
			} else {
				line.Success = true
				line.EmailGenerated = true
			}
		}

		if err := stream.Write(line); err != nil {
			return
		}
	}
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadID string `json:"leadId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LeadID == "" {
		writeError(w, http.StatusBadRequest, "leadId is required")
		return
	}

	outcome, err := s.enricher.Enrich(r.Context(), req.LeadID)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "lead not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success    bool                    `json:"success"`
		Enrichment model.EnrichmentResult  `json:"enrichment"`
		Email      *model.EmailDraftResult `json:"email,omitempty"`
	}{
		Success:    true,
		Enrichment: outcome.Enrichment,
		Email:      outcome.Email,
	})
}

func (s *Server) handleBulkEnrich(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// An unconfigured token locks the endpoint rather than opening it.
	if s.cfg.BulkToken == "" ||
		subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.cfg.BulkToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	report, err := s.bulk.Run(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
