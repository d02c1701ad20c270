package models

import "github.com/shopspring/decimal"

// TotalContribution is one kingdom's summed points for a date.
type TotalContribution struct {
	KingdomID   string          `json:"kingdomId" db:"kingdom_id"`
	KingdomName string          `json:"kingdomName" db:"kingdom_name"`
	TotalPoints decimal.Decimal `json:"totalPoints" db:"total_cumulative_points"`
}

// ContributionLeaderboard ranks kingdoms by summed points, descending.
type ContributionLeaderboard struct {
	Contributions []TotalContribution `json:"contributions"`
}

// LandTotalPoints is one land's summed points for a date.
type LandTotalPoints struct {
	LandID      string          `json:"landId" db:"land_id"`
	Owner       *string         `json:"owner,omitempty" db:"owner"`
	TotalPoints decimal.Decimal `json:"totalPoints" db:"total_cumulative_points"`
}

// LandLeaderboard ranks lands by summed points, descending.
type LandLeaderboard struct {
	Points []LandTotalPoints `json:"points"`
}
