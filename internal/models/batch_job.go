package models

import (
	"time"

	"github.com/lok-dashboard/internal/types"
)

// Job status values. Records are append-only; the latest by execution time
// for a date is authoritative.
const (
	JobStatusSuccess = "SUCCESS"
	JobStatusFailed  = "FAILED"
)

// BatchJobStatus is the outcome of one crawl run for a target date.
type BatchJobStatus struct {
	Date          types.Date `json:"date" db:"job_date"`
	ExecutionTime time.Time  `json:"executionTime" db:"execution_time"`
	Status        string     `json:"status" db:"status"`
	Message       string     `json:"message" db:"message"`
}

// BadLand quarantines a land identifier. Once present the ID is permanently
// excluded from every future sweep.
type BadLand struct {
	LandID       string    `json:"landId" db:"land_id"`
	DiscoveredAt time.Time `json:"discoveredAt" db:"discovered_at"`
}
