package api

import (
	"net/http"
)

// handleVisitorSummary serves GET /analytics/visitors.
func (s *Server) handleVisitorSummary(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		respondError(w, http.StatusServiceUnavailable, "ANALYTICS_DISABLED", "Visitor analytics is not enabled on this instance", nil)
		return
	}

	summary, err := s.analytics.Summary(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
