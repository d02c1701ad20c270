// Package crawler implements the daily batch sweep over the land-ID range
// and its recovery scheduling.
package crawler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/types"
)

// ContributionLoader is the slice of the contribution service the crawler
// uses: make one (land, date) snapshot durable without reading it back.
type ContributionLoader interface {
	EnsureDay(ctx context.Context, landID string, date types.Date) error
}

// JobStore records sweep outcomes and the bad-land quarantine list.
type JobStore interface {
	SaveStatus(ctx context.Context, status *models.BatchJobStatus) error
	LatestStatusForDate(ctx context.Context, date types.Date) (*models.BatchJobStatus, error)
	MarkBad(ctx context.Context, landID string, discoveredAt time.Time) error
	BadLandIDs(ctx context.Context) ([]string, error)
	IsBadLand(ctx context.Context, landID string) (bool, error)
}

// Crawler sweeps the fixed land-ID range once per day.
type Crawler struct {
	contributions ContributionLoader
	jobs          JobStore
	policy        QuarantinePolicy
	startLandID   int
	endLandID     int
	now           func() time.Time
	logger        *logging.Logger
}

// CrawlerConfig holds dependencies for the crawler.
type CrawlerConfig struct {
	Contributions ContributionLoader
	Jobs          JobStore

	// Policy decides when failing lands are quarantined. Optional; when nil
	// no land is ever marked bad by the crawler.
	Policy QuarantinePolicy

	StartLandID int
	EndLandID   int

	// Now overrides the clock. Tests use this.
	Now func() time.Time

	Logger *logging.Logger
}

// NewCrawler creates a new batch crawler
func NewCrawler(cfg *CrawlerConfig) (*Crawler, error) {
	if cfg.Contributions == nil {
		return nil, fmt.Errorf("contribution loader is required")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if cfg.StartLandID > cfg.EndLandID {
		return nil, fmt.Errorf("land range is inverted: %d > %d", cfg.StartLandID, cfg.EndLandID)
	}

	policy := cfg.Policy
	if policy == nil {
		policy = NewConsecutiveFailures(0)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Crawler{
		contributions: cfg.Contributions,
		jobs:          cfg.Jobs,
		policy:        policy,
		startLandID:   cfg.StartLandID,
		endLandID:     cfg.EndLandID,
		now:           now,
		logger:        logger.WithField("component", "crawler"),
	}, nil
}

// RunDaily sweeps yesterday's date (UTC).
func (c *Crawler) RunDaily(ctx context.Context) error {
	return c.RunSweep(ctx, types.Yesterday(c.now()))
}

// RunSweep walks the whole land-ID range for one date, skipping quarantined
// lands. Individual land failures are isolated; the sweep itself only fails
// when the quarantine list cannot be loaded or the context is cancelled. One
// status record is appended per run.
func (c *Crawler) RunSweep(ctx context.Context, date types.Date) error {
	start := c.now()
	c.logger.WithFields(map[string]interface{}{
		"date":  date.String(),
		"range": fmt.Sprintf("%d-%d", c.startLandID, c.endLandID),
	}).Info("Starting batch sweep")

	badIDs, err := c.jobs.BadLandIDs(ctx)
	if err != nil {
		c.recordStatus(date, models.JobStatusFailed, fmt.Sprintf("Batch job failed: %v", err))
		return fmt.Errorf("failed to load bad lands: %w", err)
	}

	badSet := make(map[string]bool, len(badIDs))
	for _, id := range badIDs {
		badSet[id] = true
	}

	var total, processed, failed int
	for id := c.startLandID; id <= c.endLandID; id++ {
		if err := ctx.Err(); err != nil {
			c.recordStatus(date, models.JobStatusFailed, fmt.Sprintf("Batch job cancelled: %v", err))
			return err
		}

		landID := strconv.Itoa(id)
		if badSet[landID] {
			continue
		}
		total++

		if err := c.contributions.EnsureDay(ctx, landID, date); err != nil {
			failed++
			c.logger.WithError(err).WithField("land_id", landID).Warn("Failed to process land")
			if c.policy.RecordFailure(landID) {
				c.quarantine(ctx, landID)
			}
			continue
		}

		c.policy.RecordSuccess(landID)
		processed++
	}

	message := fmt.Sprintf("Processed %d/%d lands successfully", processed, total)
	c.recordStatus(date, models.JobStatusSuccess, message)

	c.logger.WithFields(map[string]interface{}{
		"date":      date.String(),
		"processed": processed,
		"failed":    failed,
		"duration":  c.now().Sub(start).String(),
	}).Info("Batch sweep finished")

	return nil
}

// CheckAndRecover re-runs yesterday's sweep when its latest status is absent
// or FAILED. It reports whether a sweep was run.
func (c *Crawler) CheckAndRecover(ctx context.Context) (bool, error) {
	date := types.Yesterday(c.now())

	status, err := c.jobs.LatestStatusForDate(ctx, date)
	if err != nil {
		return false, fmt.Errorf("failed to check batch status for %s: %w", date, err)
	}

	if status != nil && status.Status == models.JobStatusSuccess {
		return false, nil
	}

	if status == nil {
		c.logger.WithField("date", date.String()).Info("No batch run recorded, recovering")
	} else {
		c.logger.WithField("date", date.String()).Info("Last batch run failed, recovering")
	}

	return true, c.RunSweep(ctx, date)
}

// MarkBad quarantines a land immediately. Exposed for the manual API path.
// Already-quarantined lands are left untouched.
func (c *Crawler) MarkBad(ctx context.Context, landID string) error {
	bad, err := c.jobs.IsBadLand(ctx, landID)
	if err != nil {
		return err
	}
	if bad {
		c.logger.WithField("land_id", landID).Debug("Land already quarantined")
		return nil
	}
	return c.jobs.MarkBad(ctx, landID, c.now().UTC())
}

func (c *Crawler) quarantine(ctx context.Context, landID string) {
	c.logger.WithField("land_id", landID).Warn("Quarantining land")
	if err := c.jobs.MarkBad(ctx, landID, c.now().UTC()); err != nil {
		c.logger.WithError(err).WithField("land_id", landID).Error("Failed to quarantine land")
	}
}

// recordStatus appends one status row. Status persistence failures are logged
// but never mask the sweep outcome.
func (c *Crawler) recordStatus(date types.Date, status, message string) {
	// The sweep context may already be cancelled; the status write gets its
	// own deadline so the outcome is still recorded.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	record := &models.BatchJobStatus{
		Date:          date,
		ExecutionTime: c.now().UTC(),
		Status:        status,
		Message:       message,
	}
	if err := c.jobs.SaveStatus(ctx, record); err != nil {
		c.logger.WithError(err).WithField("date", date.String()).Error("Failed to record batch status")
	}
}
