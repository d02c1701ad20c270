package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lok-dashboard/internal/types"
)

// parseDateVar parses a route variable as a civil date, responding with 400
// when it is malformed. The bool reports whether parsing succeeded.
func parseDateVar(w http.ResponseWriter, r *http.Request, name string) (types.Date, bool) {
	raw := mux.Vars(r)[name]
	date, err := types.ParseDate(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, types.ErrCodeInvalidDateRange,
			"invalid date "+raw+" (want YYYY-MM-DD)", nil)
		return types.Date{}, false
	}
	return date, true
}

// handleGetDay serves GET /land/{landId}/{date}.
func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	landID := mux.Vars(r)["landId"]
	date, ok := parseDateVar(w, r, "date")
	if !ok {
		return
	}

	land, err := s.contributions.GetDay(r.Context(), landID, date)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, land)
}

// handleGetRange serves GET /land/{landId}/{from}/{to}.
func (s *Server) handleGetRange(w http.ResponseWriter, r *http.Request) {
	landID := mux.Vars(r)["landId"]
	from, ok := parseDateVar(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseDateVar(w, r, "to")
	if !ok {
		return
	}

	land, err := s.contributions.GetRange(r.Context(), landID, from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, land)
}

// handleContributionLeaderboard serves GET /land/contributionLeaderboard/{date}.
func (s *Server) handleContributionLeaderboard(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateVar(w, r, "date")
	if !ok {
		return
	}

	board, err := s.contributions.ContributionLeaderboard(r.Context(), date)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, board)
}

// handleLandLeaderboard serves GET /land/landLeaderboard/{date}.
func (s *Server) handleLandLeaderboard(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateVar(w, r, "date")
	if !ok {
		return
	}

	board, err := s.contributions.LandLeaderboard(r.Context(), date)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, board)
}
