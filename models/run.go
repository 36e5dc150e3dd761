package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type CrawlRun struct {
	ID           int64      `json:"id" db:"id"`
	RunUUID      uuid.UUID  `json:"run_uuid" db:"run_uuid"`
	SiteID       string     `json:"site_id" db:"site_id"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	Status       RunStatus  `json:"status" db:"status"`
	PagesVisited int        `json:"pages_visited" db:"pages_visited"`
	DealersFound int        `json:"dealers_found" db:"dealers_found"`
	OffersFound  int        `json:"offers_found" db:"offers_found"`
	OffersSold   int        `json:"offers_sold" db:"offers_sold"`
	ErrorsCount  int        `json:"errors_count" db:"errors_count"`
	ErrorMessage string     `json:"error_message" db:"error_message"`
}

// Duration is zero while the run is still going.
func (r *CrawlRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
