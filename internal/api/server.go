// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/service"
	"github.com/lok-dashboard/internal/types"
)

// Service interfaces for dependency injection and testing

// ContributionReader defines the contribution service operations the API uses.
type ContributionReader interface {
	GetDay(ctx context.Context, landID string, date types.Date) (*models.Land, error)
	GetRange(ctx context.Context, landID string, start, end types.Date) (*models.Land, error)
	ContributionLeaderboard(ctx context.Context, date types.Date) (*models.ContributionLeaderboard, error)
	LandLeaderboard(ctx context.Context, date types.Date) (*models.LandLeaderboard, error)
}

// BatchController defines the crawler operations exposed over HTTP.
type BatchController interface {
	TriggerManual() bool
}

// BadLandAdmin quarantines lands on request.
type BadLandAdmin interface {
	MarkBad(ctx context.Context, landID string) error
}

// JobStatusReader reads batch run history and the quarantine list.
type JobStatusReader interface {
	LatestStatusForDate(ctx context.Context, date types.Date) (*models.BatchJobStatus, error)
	BadLandIDs(ctx context.Context) ([]string, error)
}

// AnalyticsReader serves the visitor analytics summary.
type AnalyticsReader interface {
	Summary(ctx context.Context) (*service.VisitorSummary, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server.
type Server struct {
	router        *mux.Router
	httpServer    *http.Server
	contributions ContributionReader
	batch         BatchController
	badLands      BadLandAdmin
	jobs          JobStatusReader
	analytics     AnalyticsReader
	visitors      VisitorRecorder
	db            Pinger
	cache         Pinger
	now           func() time.Time
	logger        *logging.Logger
	config        *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
}

// ServerDeps bundles the server's collaborators.
type ServerDeps struct {
	Contributions ContributionReader
	Batch         BatchController
	BadLands      BadLandAdmin
	Jobs          JobStatusReader
	Analytics     AnalyticsReader
	Visitors      VisitorRecorder

	// DB and Cache are pinged by the health endpoint. Optional.
	DB    Pinger
	Cache Pinger

	// Now overrides the clock. Tests use this.
	Now func() time.Time

	Logger *logging.Logger
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps *ServerDeps) (*Server, error) {
	if deps.Contributions == nil {
		return nil, fmt.Errorf("contribution reader is required")
	}
	if deps.Jobs == nil {
		return nil, fmt.Errorf("job status reader is required")
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Server{
		router:        mux.NewRouter(),
		contributions: deps.Contributions,
		batch:         deps.Batch,
		badLands:      deps.BadLands,
		jobs:          deps.Jobs,
		analytics:     deps.Analytics,
		visitors:      deps.Visitors,
		db:            deps.DB,
		cache:         deps.Cache,
		now:           now,
		logger:        logger.WithField("component", "api"),
		config:        config,
	}

	s.setupRouter()

	return s, nil
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst)

	// Middleware order matters: logging wraps everything, tracking sees the
	// final status code.
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(TrackingMiddleware(s.visitors, s.logger))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Leaderboard routes are registered before the generic land routes so
	// "contributionLeaderboard" never matches as a land id.
	s.router.HandleFunc("/land/contributionLeaderboard/{date}", s.handleContributionLeaderboard).Methods("GET")
	s.router.HandleFunc("/land/landLeaderboard/{date}", s.handleLandLeaderboard).Methods("GET")
	s.router.HandleFunc("/land/{landId}/{date}", s.handleGetDay).Methods("GET")
	s.router.HandleFunc("/land/{landId}/{from}/{to}", s.handleGetRange).Methods("GET")

	s.router.HandleFunc("/batch/trigger", s.handleBatchTrigger).Methods("POST")
	s.router.HandleFunc("/batch/status/today", s.handleBatchStatusToday).Methods("GET")
	s.router.HandleFunc("/batch/status/{date}", s.handleBatchStatus).Methods("GET")
	s.router.HandleFunc("/batch/badlands", s.handleListBadLands).Methods("GET")
	s.router.HandleFunc("/batch/badlands/{landId}", s.handleMarkBadLand).Methods("POST")

	s.router.HandleFunc("/analytics/visitors", s.handleVisitorSummary).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":  "healthy",
		"service": "lok-dashboard",
	}
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}
	if s.cache != nil {
		if err := s.cache.Ping(r.Context()); err != nil {
			status["cache"] = "unreachable"
		} else {
			status["cache"] = "ok"
		}
	}

	respondJSON(w, code, status)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured router. Tests drive it directly.
func (s *Server) Router() http.Handler {
	return s.router
}
