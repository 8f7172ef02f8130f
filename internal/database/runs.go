package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pricehawk-th/pricehawk/internal/models"
)

// RunRepository handles update-run bookkeeping
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create opens a new run in running state.
func (r *RunRepository) Create(ctx context.Context, totalProducts int) (*models.UpdateRun, error) {
	query := `
		INSERT INTO update_runs (status, total_products, started_at)
		VALUES ($1, $2, NOW())
		RETURNING run_id, started_at`

	run := &models.UpdateRun{
		Status:        models.RunStatusRunning,
		TotalProducts: totalProducts,
	}
	err := r.db.QueryRow(ctx, query, run.Status, totalProducts).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create update run: %w", err)
	}

	return run, nil
}

// UpdateProgress overwrites the running counters. Workers report
// aggregated totals, so the write is idempotent.
func (r *RunRepository) UpdateProgress(ctx context.Context, runID int64, checked, changed, failed int) error {
	query := `
		UPDATE update_runs
		SET checked_count = $2, changed_count = $3, failed_count = $4
		WHERE run_id = $1`

	result, err := r.db.Exec(ctx, query, runID, checked, changed, failed)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("update run not found: %d", runID)
	}

	return nil
}

// Finish closes the run with its final counters.
func (r *RunRepository) Finish(ctx context.Context, runID int64, status string, checked, changed, failed int) error {
	query := `
		UPDATE update_runs
		SET status = $2, checked_count = $3, changed_count = $4, failed_count = $5,
			finished_at = NOW()
		WHERE run_id = $1`

	result, err := r.db.Exec(ctx, query, runID, status, checked, changed, failed)
	if err != nil {
		return fmt.Errorf("failed to finish run %d: %w", runID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("update run not found: %d", runID)
	}

	return nil
}

// LatestFinished returns the most recently completed run, nil when no run
// has finished yet.
func (r *RunRepository) LatestFinished(ctx context.Context) (*models.UpdateRun, error) {
	query := `
		SELECT run_id, status, total_products, checked_count, changed_count, failed_count,
			started_at, finished_at
		FROM update_runs
		WHERE finished_at IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT 1`

	var run models.UpdateRun
	err := r.db.QueryRow(ctx, query).Scan(
		&run.ID, &run.Status, &run.TotalProducts,
		&run.CheckedCount, &run.ChangedCount, &run.FailedCount,
		&run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &run, nil
}
