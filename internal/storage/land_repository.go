package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lok-dashboard/internal/models"
	"github.com/lok-dashboard/internal/types"
)

// leaderboardSize is the number of entries returned by leaderboard queries.
const leaderboardSize = 10

// LandRepository handles land and contribution persistence.
type LandRepository struct {
	db *PostgresDB
}

// NewLandRepository creates a new land repository
func NewLandRepository(db *PostgresDB) *LandRepository {
	return &LandRepository{db: db}
}

// ExistsForDate reports whether any contribution rows are stored for the
// (land, date) pair. The crawler keys its idempotency off this check.
func (r *LandRepository) ExistsForDate(ctx context.Context, landID string, date types.Date) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM contribution
			WHERE land_id = $1 AND contribution_date = $2
		)
	`

	var exists bool
	if err := r.db.Pool().QueryRow(ctx, query, landID, date.Time()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check contribution existence: %w", err)
	}

	return exists, nil
}

// ExistsInRange reports whether any contribution rows are stored for the land
// anywhere inside [start, end]. Deliberately coarser than per-day: once any
// row exists in the range, range reads never re-fetch interior days.
func (r *LandRepository) ExistsInRange(ctx context.Context, landID string, start, end types.Date) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM contribution
			WHERE land_id = $1 AND contribution_date >= $2 AND contribution_date <= $3
		)
	`

	var exists bool
	if err := r.db.Pool().QueryRow(ctx, query, landID, start.Time(), end.Time()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check contribution range existence: %w", err)
	}

	return exists, nil
}

// SaveLand upserts the land row and appends one contribution row per entry,
// stamped with date. Both writes run in one transaction and contribution
// inserts are keyed on (land_id, kingdom_id, contribution_date), so a stored
// daily snapshot is never duplicated.
func (r *LandRepository) SaveLand(ctx context.Context, land *models.Land, date types.Date) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	upsert := `
		INSERT INTO land (land_id, owner, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (land_id)
		DO UPDATE SET owner = EXCLUDED.owner, last_updated = EXCLUDED.last_updated
	`

	if _, err := tx.Exec(ctx, upsert, land.ID, land.Owner, land.LastUpdated.Time()); err != nil {
		return fmt.Errorf("failed to upsert land %s: %w", land.ID, err)
	}

	insert := `
		INSERT INTO contribution (contribution_date, kingdom_id, total_points, kingdom_name, continent, land_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (land_id, kingdom_id, contribution_date) DO NOTHING
	`

	for _, contribution := range land.Contributions {
		_, err := tx.Exec(ctx, insert,
			date.Time(),
			contribution.KingdomID,
			contribution.TotalPoints.String(),
			contribution.KingdomName,
			contribution.Continent,
			contribution.LandID,
		)
		if err != nil {
			return fmt.Errorf("failed to insert contribution for land %s kingdom %s: %w",
				land.ID, contribution.KingdomID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit land save: %w", err)
	}

	return nil
}

// ContributionsForDay reads the stored contribution rows for one (land, date)
// pair.
func (r *LandRepository) ContributionsForDay(ctx context.Context, landID string, date types.Date) ([]models.Contribution, error) {
	query := `
		SELECT kingdom_id, kingdom_name, total_points::text, continent
		FROM contribution
		WHERE land_id = $1 AND contribution_date = $2
	`

	rows, err := r.db.Pool().Query(ctx, query, landID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer rows.Close()

	return scanContributions(rows, landID, date)
}

// ContributionsForRange reads the stored contribution rows for a land across
// [start, end].
func (r *LandRepository) ContributionsForRange(ctx context.Context, landID string, start, end types.Date) ([]models.Contribution, error) {
	query := `
		SELECT kingdom_id, kingdom_name, total_points::text, continent
		FROM contribution
		WHERE land_id = $1 AND contribution_date >= $2 AND contribution_date <= $3
	`

	rows, err := r.db.Pool().Query(ctx, query, landID, start.Time(), end.Time())
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution range: %w", err)
	}
	defer rows.Close()

	return scanContributions(rows, landID, types.Date{})
}

func scanContributions(rows pgx.Rows, landID string, date types.Date) ([]models.Contribution, error) {
	var contributions []models.Contribution
	for rows.Next() {
		var (
			c         models.Contribution
			pointsRaw string
		)
		if err := rows.Scan(&c.KingdomID, &c.KingdomName, &pointsRaw, &c.Continent); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}

		points, err := decimal.NewFromString(pointsRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored total_points %q: %w", pointsRaw, err)
		}

		c.LandID = landID
		c.TotalPoints = points
		c.Date = date
		contributions = append(contributions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contributions: %w", err)
	}

	return contributions, nil
}

// Owner returns the stored owner for a land, or nil when the land is unknown
// or unclaimed.
func (r *LandRepository) Owner(ctx context.Context, landID string) (*string, error) {
	query := `SELECT owner FROM land WHERE land_id = $1`

	var owner *string
	err := r.db.Pool().QueryRow(ctx, query, landID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get land owner: %w", err)
	}

	return owner, nil
}

// ContributionLeaderboard returns the top kingdoms by summed points for a
// date, descending.
func (r *LandRepository) ContributionLeaderboard(ctx context.Context, date types.Date) ([]models.TotalContribution, error) {
	query := `
		SELECT kingdom_id, kingdom_name, SUM(total_points)::text AS total_cumulative_points
		FROM contribution
		WHERE contribution_date = $1
		GROUP BY kingdom_id, kingdom_name
		ORDER BY SUM(total_points) DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, date.Time(), leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.TotalContribution
	for rows.Next() {
		var (
			entry     models.TotalContribution
			pointsRaw string
		)
		if err := rows.Scan(&entry.KingdomID, &entry.KingdomName, &pointsRaw); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}

		points, err := decimal.NewFromString(pointsRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid summed total_points %q: %w", pointsRaw, err)
		}

		entry.TotalPoints = points
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return entries, nil
}

// LandLeaderboard returns the top lands by summed points for a date,
// descending. The owner is resolved per land.
func (r *LandRepository) LandLeaderboard(ctx context.Context, date types.Date) ([]models.LandTotalPoints, error) {
	query := `
		SELECT land_id, SUM(total_points)::text AS total_cumulative_points
		FROM contribution
		WHERE contribution_date = $1
		GROUP BY land_id
		ORDER BY SUM(total_points) DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, date.Time(), leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query land leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []models.LandTotalPoints
	for rows.Next() {
		var (
			entry     models.LandTotalPoints
			pointsRaw string
		)
		if err := rows.Scan(&entry.LandID, &pointsRaw); err != nil {
			return nil, fmt.Errorf("failed to scan land leaderboard entry: %w", err)
		}

		points, err := decimal.NewFromString(pointsRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid summed total_points %q: %w", pointsRaw, err)
		}

		entry.TotalPoints = points
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating land leaderboard: %w", err)
	}

	for i := range entries {
		owner, err := r.Owner(ctx, entries[i].LandID)
		if err != nil {
			return nil, err
		}
		entries[i].Owner = owner
	}

	return entries, nil
}
