// Package service implements the dashboard business logic on top of the
// storage and upstream client layers.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/lok"
	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/types"
)

// Fetcher retrieves contribution snapshots from the upstream API.
type Fetcher interface {
	FetchContributions(ctx context.Context, landID string, start, end types.Date) (*models.Land, error)
}

// LandStore is the persistence surface the contribution service depends on.
type LandStore interface {
	ExistsForDate(ctx context.Context, landID string, date types.Date) (bool, error)
	ExistsInRange(ctx context.Context, landID string, start, end types.Date) (bool, error)
	SaveLand(ctx context.Context, land *models.Land, date types.Date) error
	ContributionsForDay(ctx context.Context, landID string, date types.Date) ([]models.Contribution, error)
	ContributionsForRange(ctx context.Context, landID string, start, end types.Date) ([]models.Contribution, error)
	Owner(ctx context.Context, landID string) (*string, error)
	ContributionLeaderboard(ctx context.Context, date types.Date) ([]models.TotalContribution, error)
	LandLeaderboard(ctx context.Context, date types.Date) ([]models.LandTotalPoints, error)
}

// Cache is the response cache surface. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// IsCacheMiss reports whether a Cache.Get error means the key was absent.
// Injected so the service does not depend on the cache implementation.
type IsCacheMiss func(error) bool

// ContributionService serves land contribution reads, fetching lazily from
// the upstream API on first access.
type ContributionService struct {
	store    LandStore
	fetcher  Fetcher
	cache    Cache
	isMiss   IsCacheMiss
	cacheTTL time.Duration
	logger   *logging.Logger
}

// ContributionServiceConfig holds dependencies for the contribution service.
type ContributionServiceConfig struct {
	Store    LandStore
	Fetcher  Fetcher
	Cache    Cache
	IsMiss   IsCacheMiss
	CacheTTL time.Duration
	Logger   *logging.Logger
}

// NewContributionService creates a new contribution service
func NewContributionService(cfg *ContributionServiceConfig) (*ContributionService, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	isMiss := cfg.IsMiss
	if isMiss == nil {
		isMiss = func(error) bool { return false }
	}

	return &ContributionService{
		store:    cfg.Store,
		fetcher:  cfg.Fetcher,
		cache:    cfg.Cache,
		isMiss:   isMiss,
		cacheTTL: cacheTTL,
		logger:   logger.WithField("component", "contribution_service"),
	}, nil
}

// GetDay returns the contribution snapshot for one land and date, fetching
// from upstream and persisting it if it is not stored yet.
func (s *ContributionService) GetDay(ctx context.Context, landID string, date types.Date) (*models.Land, error) {
	exists, err := s.store.ExistsForDate(ctx, landID, date)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := s.fetchAndSave(ctx, landID, date, date); err != nil {
			return nil, err
		}
	}

	contributions, err := s.store.ContributionsForDay(ctx, landID, date)
	if err != nil {
		return nil, err
	}

	return s.buildLand(ctx, landID, date, contributions)
}

// GetRange returns the stored contributions for a land across [start, end].
// The existence gate is coarse on purpose: any stored row inside the window
// suppresses the upstream fetch. The window limit applies only to the fetch
// path, so stored data is served for ranges wider than the upstream allows.
func (s *ContributionService) GetRange(ctx context.Context, landID string, start, end types.Date) (*models.Land, error) {
	exists, err := s.store.ExistsInRange(ctx, landID, start, end)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := lok.ValidateWindow(start, end); err != nil {
			return nil, err
		}
		// Range fetches are stored under the start date.
		if err := s.fetchAndSave(ctx, landID, start, end); err != nil {
			return nil, err
		}
	}

	contributions, err := s.store.ContributionsForRange(ctx, landID, start, end)
	if err != nil {
		return nil, err
	}

	return s.buildLand(ctx, landID, end, contributions)
}

// EnsureDay makes sure the snapshot for one land and date is stored, without
// reading it back. The crawler uses this path.
func (s *ContributionService) EnsureDay(ctx context.Context, landID string, date types.Date) error {
	exists, err := s.store.ExistsForDate(ctx, landID, date)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return s.fetchAndSave(ctx, landID, date, date)
}

func (s *ContributionService) fetchAndSave(ctx context.Context, landID string, start, end types.Date) error {
	land, err := s.fetcher.FetchContributions(ctx, landID, start, end)
	if err != nil {
		return err
	}

	if err := s.store.SaveLand(ctx, land, start); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"land_id":       landID,
		"date":          start.String(),
		"contributions": len(land.Contributions),
	}).Debug("Fetched and stored contribution snapshot")

	return nil
}

func (s *ContributionService) buildLand(ctx context.Context, landID string, lastUpdated types.Date, contributions []models.Contribution) (*models.Land, error) {
	owner, err := s.store.Owner(ctx, landID)
	if err != nil {
		return nil, err
	}

	return &models.Land{
		ID:            landID,
		Owner:         owner,
		LastUpdated:   lastUpdated,
		Contributions: contributions,
	}, nil
}

// ContributionLeaderboard returns the top kingdoms by summed points for a
// date. Results are cached; cache failures degrade to a direct query.
func (s *ContributionService) ContributionLeaderboard(ctx context.Context, date types.Date) (*models.ContributionLeaderboard, error) {
	key := fmt.Sprintf("leaderboard:kingdom:%s", date)

	var cached models.ContributionLeaderboard
	if s.readCached(ctx, key, &cached) {
		return &cached, nil
	}

	entries, err := s.store.ContributionLeaderboard(ctx, date)
	if err != nil {
		return nil, err
	}

	board := &models.ContributionLeaderboard{Contributions: entries}
	s.writeCached(ctx, key, board)
	return board, nil
}

// LandLeaderboard returns the top lands by summed points for a date. Results
// are cached; cache failures degrade to a direct query.
func (s *ContributionService) LandLeaderboard(ctx context.Context, date types.Date) (*models.LandLeaderboard, error) {
	key := fmt.Sprintf("leaderboard:land:%s", date)

	var cached models.LandLeaderboard
	if s.readCached(ctx, key, &cached) {
		return &cached, nil
	}

	entries, err := s.store.LandLeaderboard(ctx, date)
	if err != nil {
		return nil, err
	}

	board := &models.LandLeaderboard{Points: entries}
	s.writeCached(ctx, key, board)
	return board, nil
}

func (s *ContributionService) readCached(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !s.isMiss(err) {
			s.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Discarding malformed cache entry")
		return false
	}

	return true
}

func (s *ContributionService) writeCached(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache serialization failed")
		return
	}

	if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}
