package models

import "time"

// Update run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// UpdateRun is the bookkeeping record for one batch price-update run.
type UpdateRun struct {
	ID            int64      `json:"run_id"`
	Status        string     `json:"status"`
	TotalProducts int        `json:"total_products"`
	CheckedCount  int        `json:"checked_count"`
	ChangedCount  int        `json:"changed_count"`
	FailedCount   int        `json:"failed_count"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

func (r *UpdateRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
