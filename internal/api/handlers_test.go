package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/service"
	"github.com/lok-dashboard/internal/types"
)

// stubContributions serves canned lands and leaderboards.
type stubContributions struct {
	err error
}

func (s *stubContributions) land(landID string, lastUpdated types.Date) *models.Land {
	owner := "owner-1"
	return &models.Land{
		ID:          landID,
		Owner:       &owner,
		LastUpdated: lastUpdated,
		Contributions: []models.Contribution{
			{LandID: landID, KingdomID: "k1", KingdomName: "First", Continent: 2, TotalPoints: decimal.NewFromInt(100)},
		},
	}
}

func (s *stubContributions) GetDay(_ context.Context, landID string, date types.Date) (*models.Land, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.land(landID, date), nil
}

func (s *stubContributions) GetRange(_ context.Context, landID string, start, end types.Date) (*models.Land, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := validateStubWindow(start, end); err != nil {
		return nil, err
	}
	return s.land(landID, end), nil
}

func validateStubWindow(start, end types.Date) error {
	if end.Before(start) || end.After(start.AddDays(7)) {
		return types.NewServiceError(types.ErrCodeInvalidDateRange, "bad window")
	}
	return nil
}

func (s *stubContributions) ContributionLeaderboard(_ context.Context, _ types.Date) (*models.ContributionLeaderboard, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ContributionLeaderboard{
		Contributions: []models.TotalContribution{
			{KingdomID: "k1", KingdomName: "First", TotalPoints: decimal.NewFromInt(500)},
		},
	}, nil
}

func (s *stubContributions) LandLeaderboard(_ context.Context, _ types.Date) (*models.LandLeaderboard, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.LandLeaderboard{
		Points: []models.LandTotalPoints{
			{LandID: "140000", TotalPoints: decimal.NewFromInt(900)},
		},
	}, nil
}

type stubBatch struct {
	accepted  bool
	triggered int
}

func (s *stubBatch) TriggerManual() bool {
	s.triggered++
	return s.accepted
}

type stubBadLands struct {
	marked []string
}

func (s *stubBadLands) MarkBad(_ context.Context, landID string) error {
	s.marked = append(s.marked, landID)
	return nil
}

type stubJobs struct {
	statuses map[string]*models.BatchJobStatus
	bad      []string
}

func (s *stubJobs) LatestStatusForDate(_ context.Context, date types.Date) (*models.BatchJobStatus, error) {
	return s.statuses[date.String()], nil
}

func (s *stubJobs) BadLandIDs(_ context.Context) ([]string, error) {
	return s.bad, nil
}

type stubAnalytics struct{}

func (s *stubAnalytics) Summary(_ context.Context) (*service.VisitorSummary, error) {
	return &service.VisitorSummary{
		TotalVisitors:      12,
		TodayVisitors:      3,
		TotalRequests:      40,
		TodayRequests:      9,
		RequestsByEndpoint: map[string]int{"/health": 40},
	}, nil
}

type testServerOption func(*ServerDeps)

func newTestServer(t *testing.T, opts ...testServerOption) *Server {
	t.Helper()

	deps := &ServerDeps{
		Contributions: &stubContributions{},
		Batch:         &stubBatch{accepted: true},
		BadLands:      &stubBadLands{},
		Jobs:          &stubJobs{statuses: make(map[string]*models.BatchJobStatus)},
		Analytics:     &stubAnalytics{},
		Now:           func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(deps)
	}

	server, err := NewServer(&ServerConfig{
		Host:           "127.0.0.1",
		Port:           "0",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}, deps)
	require.NoError(t, err)
	return server
}

func doRequest(server *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)
	w := doRequest(server, "GET", "/health")

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "lok-dashboard", body["service"])
}

func TestGetDayEndpoint(t *testing.T) {
	server := newTestServer(t)
	w := doRequest(server, "GET", "/land/140000/2026-08-27")

	require.Equal(t, http.StatusOK, w.Code)

	var land models.Land
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &land))
	assert.Equal(t, "140000", land.ID)
	require.Len(t, land.Contributions, 1)
	assert.Equal(t, "k1", land.Contributions[0].KingdomID)
}

func TestGetDayRejectsMalformedDate(t *testing.T) {
	server := newTestServer(t)
	w := doRequest(server, "GET", "/land/140000/27-08-2026")

	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.ErrCodeInvalidDateRange, resp.Error.Code)
}

func TestGetRangeEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doRequest(server, "GET", "/land/140000/2026-08-20/2026-08-27")
	assert.Equal(t, http.StatusOK, w.Code)

	// Inverted window maps to 400.
	w = doRequest(server, "GET", "/land/140000/2026-08-27/2026-08-20")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid range", types.NewServiceError(types.ErrCodeInvalidDateRange, "bad window"), http.StatusBadRequest},
		{"empty response", types.NewServiceError(types.ErrCodeEmptyResponse, "empty response from API for land 140000"), http.StatusNotFound},
		{"forbidden exhausted", types.NewServiceError(types.ErrCodeForbiddenExhausted, "request failed after 5 attempts"), http.StatusBadGateway},
		{"upstream", types.NewServiceError(types.ErrCodeUpstreamError, "request failed with status 500"), http.StatusBadGateway},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(d *ServerDeps) {
				d.Contributions = &stubContributions{err: tt.err}
			})

			w := doRequest(server, "GET", "/land/140000/2026-08-27")
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestLeaderboardEndpoints(t *testing.T) {
	server := newTestServer(t)

	w := doRequest(server, "GET", "/land/contributionLeaderboard/2026-08-27")
	require.Equal(t, http.StatusOK, w.Code)

	var kingdoms models.ContributionLeaderboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &kingdoms))
	require.Len(t, kingdoms.Contributions, 1)
	assert.Equal(t, "k1", kingdoms.Contributions[0].KingdomID)

	w = doRequest(server, "GET", "/land/landLeaderboard/2026-08-27")
	require.Equal(t, http.StatusOK, w.Code)

	var lands models.LandLeaderboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lands))
	require.Len(t, lands.Points, 1)
	assert.Equal(t, "140000", lands.Points[0].LandID)
}

func TestBatchTrigger(t *testing.T) {
	batch := &stubBatch{accepted: true}
	server := newTestServer(t, func(d *ServerDeps) { d.Batch = batch })

	w := doRequest(server, "POST", "/batch/trigger")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, batch.triggered)

	// A queued run makes further triggers conflict.
	batch.accepted = false
	w = doRequest(server, "POST", "/batch/trigger")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBatchStatusByDate(t *testing.T) {
	jobs := &stubJobs{statuses: map[string]*models.BatchJobStatus{
		"2026-08-27": {
			Date:    types.NewDate(2026, 8, 27),
			Status:  models.JobStatusSuccess,
			Message: "Processed 5/5 lands successfully",
		},
	}}
	server := newTestServer(t, func(d *ServerDeps) { d.Jobs = jobs })

	w := doRequest(server, "GET", "/batch/status/2026-08-27")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.BatchJobStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.JobStatusSuccess, status.Status)

	w = doRequest(server, "GET", "/batch/status/2026-08-01")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBatchStatusToday(t *testing.T) {
	// The injected clock says 2026-08-28, so "today" resolves to the sweep
	// over 2026-08-27.
	jobs := &stubJobs{statuses: map[string]*models.BatchJobStatus{
		"2026-08-27": {
			Date:   types.NewDate(2026, 8, 27),
			Status: models.JobStatusSuccess,
		},
	}}
	server := newTestServer(t, func(d *ServerDeps) { d.Jobs = jobs })

	w := doRequest(server, "GET", "/batch/status/today")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.BatchJobStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Date.Equal(types.NewDate(2026, 8, 27)))
}

func TestBadLandEndpoints(t *testing.T) {
	badLands := &stubBadLands{}
	jobs := &stubJobs{bad: []string{"140001", "150002"}}
	server := newTestServer(t, func(d *ServerDeps) {
		d.BadLands = badLands
		d.Jobs = jobs
	})

	w := doRequest(server, "GET", "/batch/badlands")
	require.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		BadLands []string `json:"badLands"`
		Count    int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	assert.Equal(t, 2, listing.Count)
	assert.Equal(t, []string{"140001", "150002"}, listing.BadLands)

	w = doRequest(server, "POST", "/batch/badlands/140003")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"140003"}, badLands.marked)
}

func TestVisitorSummaryEndpoint(t *testing.T) {
	server := newTestServer(t)

	w := doRequest(server, "GET", "/analytics/visitors")
	require.Equal(t, http.StatusOK, w.Code)

	var summary service.VisitorSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 12, summary.TotalVisitors)
	assert.Equal(t, map[string]int{"/health": 40}, summary.RequestsByEndpoint)
}

func TestDisabledCollaborators(t *testing.T) {
	server := newTestServer(t, func(d *ServerDeps) {
		d.Batch = nil
		d.BadLands = nil
		d.Analytics = nil
	})

	assert.Equal(t, http.StatusServiceUnavailable, doRequest(server, "POST", "/batch/trigger").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(server, "POST", "/batch/badlands/140000").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(server, "GET", "/analytics/visitors").Code)
}
