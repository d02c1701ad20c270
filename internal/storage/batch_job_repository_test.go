package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/types"
)

func TestBatchJobRepository_StatusHistory(t *testing.T) {
	db := testPostgresDB(t)
	repo := NewBatchJobRepository(db)
	ctx := testContext(t)

	date := types.NewDate(2026, 8, 24)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.Pool().Exec(ctx, `DELETE FROM batch_job_status WHERE job_date = $1`, date.Time())
	})

	status, err := repo.LatestStatusForDate(ctx, date)
	require.NoError(t, err)
	assert.Nil(t, status)

	base := time.Date(2026, 8, 25, 6, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SaveStatus(ctx, &models.BatchJobStatus{
		Date:          date,
		ExecutionTime: base,
		Status:        models.JobStatusFailed,
		Message:       "Batch job failed: upstream unavailable",
	}))
	require.NoError(t, repo.SaveStatus(ctx, &models.BatchJobStatus{
		Date:          date,
		ExecutionTime: base.Add(8 * time.Hour),
		Status:        models.JobStatusSuccess,
		Message:       "Processed 32768/32768 lands successfully",
	}))

	// The history is append-only, the latest record wins.
	status, err = repo.LatestStatusForDate(ctx, date)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.JobStatusSuccess, status.Status)
	assert.True(t, status.Date.Equal(date))
}

func TestBatchJobRepository_BadLands(t *testing.T) {
	db := testPostgresDB(t)
	repo := NewBatchJobRepository(db)
	ctx := testContext(t)

	landID := "test-bad-land"
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.Pool().Exec(ctx, `DELETE FROM bad_land WHERE land_id = $1`, landID)
	})

	bad, err := repo.IsBadLand(ctx, landID)
	require.NoError(t, err)
	assert.False(t, bad)

	now := time.Now().UTC()
	require.NoError(t, repo.MarkBad(ctx, landID, now))
	// Re-marking is a no-op.
	require.NoError(t, repo.MarkBad(ctx, landID, now.Add(time.Hour)))

	bad, err = repo.IsBadLand(ctx, landID)
	require.NoError(t, err)
	assert.True(t, bad)

	ids, err := repo.BadLandIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, landID)
}
