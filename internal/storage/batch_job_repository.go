package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/types"
)

// BatchJobRepository handles batch job status history and the bad-land
// quarantine list.
type BatchJobRepository struct {
	db *PostgresDB
}

// NewBatchJobRepository creates a new batch job repository
func NewBatchJobRepository(db *PostgresDB) *BatchJobRepository {
	return &BatchJobRepository{db: db}
}

// SaveStatus appends one job status record. Records are never updated.
func (r *BatchJobRepository) SaveStatus(ctx context.Context, status *models.BatchJobStatus) error {
	query := `
		INSERT INTO batch_job_status (job_date, execution_time, status, message)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		status.Date.Time(),
		status.ExecutionTime,
		status.Status,
		status.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to save batch job status: %w", err)
	}

	return nil
}

// LatestStatusForDate returns the most recent status record for a date, or
// nil when no run has been recorded yet.
func (r *BatchJobRepository) LatestStatusForDate(ctx context.Context, date types.Date) (*models.BatchJobStatus, error) {
	query := `
		SELECT job_date, execution_time, status, message
		FROM batch_job_status
		WHERE job_date = $1
		ORDER BY execution_time DESC
		LIMIT 1
	`

	var (
		status  models.BatchJobStatus
		jobDate time.Time
	)
	err := r.db.Pool().QueryRow(ctx, query, date.Time()).Scan(
		&jobDate,
		&status.ExecutionTime,
		&status.Status,
		&status.Message,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest batch job status: %w", err)
	}

	status.Date = types.DateOf(jobDate)
	return &status, nil
}

// MarkBad quarantines a land identifier. Marking an already quarantined land
// is a no-op.
func (r *BatchJobRepository) MarkBad(ctx context.Context, landID string, discoveredAt time.Time) error {
	query := `
		INSERT INTO bad_land (land_id, discovered_at)
		VALUES ($1, $2)
		ON CONFLICT (land_id) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, query, landID, discoveredAt); err != nil {
		return fmt.Errorf("failed to mark bad land %s: %w", landID, err)
	}

	return nil
}

// BadLandIDs returns every quarantined land identifier.
func (r *BatchJobRepository) BadLandIDs(ctx context.Context) ([]string, error) {
	query := `SELECT land_id FROM bad_land`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bad lands: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bad land id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bad lands: %w", err)
	}

	return ids, nil
}

// IsBadLand reports whether a land identifier is quarantined.
func (r *BatchJobRepository) IsBadLand(ctx context.Context, landID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM bad_land WHERE land_id = $1)`

	var exists bool
	if err := r.db.Pool().QueryRow(ctx, query, landID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check bad land %s: %w", landID, err)
	}

	return exists, nil
}
