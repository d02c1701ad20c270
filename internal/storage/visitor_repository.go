package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lok-dashboard/internal/models"
)

// VisitorRepository handles visitor and activity analytics persistence.
type VisitorRepository struct {
	db *PostgresDB
}

// NewVisitorRepository creates a new visitor repository
func NewVisitorRepository(db *PostgresDB) *VisitorRepository {
	return &VisitorRepository{db: db}
}

// FindByIP returns the visitor record for an IP address, or nil when the IP
// has not been seen.
func (r *VisitorRepository) FindByIP(ctx context.Context, ipAddress string) (*models.VisitorLog, error) {
	query := `
		SELECT id, ip_address, user_agent, first_visit_time, last_visit_time, visit_count
		FROM visitor_log
		WHERE ip_address = $1
	`

	var visitor models.VisitorLog
	err := r.db.Pool().QueryRow(ctx, query, ipAddress).Scan(
		&visitor.ID,
		&visitor.IPAddress,
		&visitor.UserAgent,
		&visitor.FirstVisitTime,
		&visitor.LastVisitTime,
		&visitor.VisitCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find visitor: %w", err)
	}

	return &visitor, nil
}

// SaveVisitor inserts a new visitor and fills in its generated id.
func (r *VisitorRepository) SaveVisitor(ctx context.Context, visitor *models.VisitorLog) error {
	query := `
		INSERT INTO visitor_log (ip_address, user_agent, first_visit_time, last_visit_time, visit_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.Pool().QueryRow(ctx, query,
		visitor.IPAddress,
		visitor.UserAgent,
		visitor.FirstVisitTime,
		visitor.LastVisitTime,
		visitor.VisitCount,
	).Scan(&visitor.ID)
	if err != nil {
		return fmt.Errorf("failed to save visitor: %w", err)
	}

	return nil
}

// UpdateVisitor refreshes the last visit time and count of a returning
// visitor.
func (r *VisitorRepository) UpdateVisitor(ctx context.Context, visitor *models.VisitorLog) error {
	query := `
		UPDATE visitor_log
		SET last_visit_time = $2, visit_count = $3
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, visitor.ID, visitor.LastVisitTime, visitor.VisitCount)
	if err != nil {
		return fmt.Errorf("failed to update visitor: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("visitor %d not found", visitor.ID)
	}

	return nil
}

// SaveActivity appends one activity record.
func (r *VisitorRepository) SaveActivity(ctx context.Context, activity *models.ActivityLog) error {
	query := `
		INSERT INTO activity_log (visitor_id, endpoint, method, timestamp, status_code)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		activity.VisitorID,
		activity.Endpoint,
		activity.Method,
		activity.Timestamp,
		activity.StatusCode,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}

	return nil
}

// TotalVisitorCount returns the number of unique visitors ever seen.
func (r *VisitorRepository) TotalVisitorCount(ctx context.Context) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM visitor_log`)
}

// TodayVisitorCount returns the number of visitors seen today (UTC).
func (r *VisitorRepository) TodayVisitorCount(ctx context.Context) (int, error) {
	return r.countQuery(ctx, `
		SELECT COUNT(*) FROM visitor_log
		WHERE last_visit_time >= date_trunc('day', now() AT TIME ZONE 'UTC')
	`)
}

// TotalActivityCount returns the number of requests ever recorded.
func (r *VisitorRepository) TotalActivityCount(ctx context.Context) (int, error) {
	return r.countQuery(ctx, `SELECT COUNT(*) FROM activity_log`)
}

// TodayActivityCount returns the number of requests recorded today (UTC).
func (r *VisitorRepository) TodayActivityCount(ctx context.Context) (int, error) {
	return r.countQuery(ctx, `
		SELECT COUNT(*) FROM activity_log
		WHERE timestamp >= date_trunc('day', now() AT TIME ZONE 'UTC')
	`)
}

func (r *VisitorRepository) countQuery(ctx context.Context, query string) (int, error) {
	var count int
	if err := r.db.Pool().QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to run count query: %w", err)
	}
	return count, nil
}

// ActivityCountByEndpoint returns request counts grouped by endpoint.
func (r *VisitorRepository) ActivityCountByEndpoint(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT endpoint, COUNT(*)
		FROM activity_log
		GROUP BY endpoint
		ORDER BY COUNT(*) DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity by endpoint: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			endpoint string
			count    int
		)
		if err := rows.Scan(&endpoint, &count); err != nil {
			return nil, fmt.Errorf("failed to scan activity count: %w", err)
		}
		counts[endpoint] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity counts: %w", err)
	}

	return counts, nil
}
