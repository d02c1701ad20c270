package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lok-dashboard/internal/types"
)

// handleBatchTrigger serves POST /batch/trigger.
func (s *Server) handleBatchTrigger(w http.ResponseWriter, r *http.Request) {
	if s.batch == nil {
		respondError(w, http.StatusServiceUnavailable, "BATCH_DISABLED", "Batch crawling is not enabled on this instance", nil)
		return
	}

	if !s.batch.TriggerManual() {
		respondJSON(w, http.StatusConflict, map[string]string{
			"status": "already queued",
		})
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
	})
}

// handleBatchStatus serves GET /batch/status/{date}.
func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateVar(w, r, "date")
	if !ok {
		return
	}

	s.respondBatchStatus(w, r, date)
}

// handleBatchStatusToday serves GET /batch/status/today. The daily sweep
// targets yesterday's data, so "today" means the run expected today.
func (s *Server) handleBatchStatusToday(w http.ResponseWriter, r *http.Request) {
	s.respondBatchStatus(w, r, types.Yesterday(s.now()))
}

func (s *Server) respondBatchStatus(w http.ResponseWriter, r *http.Request, date types.Date) {
	status, err := s.jobs.LatestStatusForDate(r.Context(), date)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if status == nil {
		respondError(w, http.StatusNotFound, types.ErrCodeNotFound,
			"no batch run recorded for "+date.String(), nil)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// handleListBadLands serves GET /batch/badlands.
func (s *Server) handleListBadLands(w http.ResponseWriter, r *http.Request) {
	ids, err := s.jobs.BadLandIDs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"badLands": ids,
		"count":    len(ids),
	})
}

// handleMarkBadLand serves POST /batch/badlands/{landId}.
func (s *Server) handleMarkBadLand(w http.ResponseWriter, r *http.Request) {
	if s.badLands == nil {
		respondError(w, http.StatusServiceUnavailable, "BATCH_DISABLED", "Batch crawling is not enabled on this instance", nil)
		return
	}

	landID := mux.Vars(r)["landId"]
	if err := s.badLands.MarkBad(r.Context(), landID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"landId": landID,
		"status": "quarantined",
	})
}
