// Package models defines the persisted entities of the dashboard.
package models

import (
	"github.com/shopspring/decimal"

	"github.com/lok-dashboard/internal/types"
)

// Land is one territory in the polled game, together with the contribution
// rows loaded for it. Owner is nil for unclaimed lands.
type Land struct {
	ID            string         `json:"id" db:"land_id"`
	Owner         *string        `json:"owner,omitempty" db:"owner"`
	LastUpdated   types.Date     `json:"lastUpdated" db:"last_updated"`
	Contributions []Contribution `json:"contributions"`
}

// Contribution records one kingdom's point total toward one land on one date.
// The logical key is (LandID, KingdomID, Date).
type Contribution struct {
	LandID      string          `json:"landId" db:"land_id"`
	KingdomID   string          `json:"kingdomId" db:"kingdom_id"`
	KingdomName string          `json:"kingdomName" db:"kingdom_name"`
	Continent   int             `json:"continent" db:"continent"`
	TotalPoints decimal.Decimal `json:"totalPoints" db:"total_points"`
	Date        types.Date      `json:"date,omitempty" db:"contribution_date"`
}
