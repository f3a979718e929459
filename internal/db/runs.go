package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stale locks are reclaimable after this long; covers crashed workers
const lockStaleAfter = 30 * time.Minute

// TryAcquireTimeframeLock attempts the per-timeframe pipeline lock without
// blocking. Returns false when another worker holds a fresh lock.
func (db *DB) TryAcquireTimeframeLock(ctx context.Context, timeframe string, owner uuid.UUID) (bool, error) {
	query := `
		INSERT INTO pipeline_locks (timeframe, locked_by, locked_at)
		VALUES ($1, $2, now())
		ON CONFLICT (timeframe) DO UPDATE
		SET locked_by = EXCLUDED.locked_by, locked_at = EXCLUDED.locked_at
		WHERE pipeline_locks.locked_by IS NULL
		   OR pipeline_locks.locked_at < now() - make_interval(secs => $3)
	`

	tag, err := db.pool.Exec(ctx, query, timeframe, owner, lockStaleAfter.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to acquire pipeline lock for %s: %w", timeframe, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseTimeframeLock releases the lock if still held by the owner
func (db *DB) ReleaseTimeframeLock(ctx context.Context, timeframe string, owner uuid.UUID) error {
	query := `
		UPDATE pipeline_locks
		SET locked_by = NULL
		WHERE timeframe = $1 AND locked_by = $2
	`

	if _, err := db.pool.Exec(ctx, query, timeframe, owner); err != nil {
		return fmt.Errorf("failed to release pipeline lock for %s: %w", timeframe, err)
	}
	return nil
}

// CreateRun inserts a ComputationRun in running state
func (db *DB) CreateRun(ctx context.Context, timeframe string) (*ComputationRun, error) {
	run := &ComputationRun{
		ID:        uuid.New(),
		Timeframe: timeframe,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}

	query := `
		INSERT INTO computation_runs (id, timeframe, started_at, status)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := db.pool.Exec(ctx, query, run.ID, run.Timeframe, run.StartedAt, run.Status); err != nil {
		return nil, fmt.Errorf("failed to create computation run: %w", err)
	}
	return run, nil
}

// CompleteRun finalizes a run with its symbol count
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, symbolCount int) error {
	query := `
		UPDATE computation_runs
		SET status = $2, finished_at = now(), symbol_count = $3
		WHERE id = $1
	`

	if _, err := db.pool.Exec(ctx, query, runID, RunStatusCompleted, symbolCount); err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	return nil
}

// FailRun marks a run failed with the error message
func (db *DB) FailRun(ctx context.Context, runID uuid.UUID, errMsg string) error {
	query := `
		UPDATE computation_runs
		SET status = $2, finished_at = now(), error_message = $3
		WHERE id = $1
	`

	if _, err := db.pool.Exec(ctx, query, runID, RunStatusFailed, errMsg); err != nil {
		return fmt.Errorf("failed to mark run %s failed: %w", runID, err)
	}
	return nil
}

// GetLatestCompletedRun returns the latest completed run for a timeframe.
// Partial runs are never surfaced to readers.
func (db *DB) GetLatestCompletedRun(ctx context.Context, timeframe string) (*ComputationRun, error) {
	query := `
		SELECT id, timeframe, started_at, finished_at, symbol_count, status, error_message
		FROM computation_runs
		WHERE timeframe = $1 AND status = 'completed'
		ORDER BY finished_at DESC
		LIMIT 1
	`

	var run ComputationRun
	err := db.pool.QueryRow(ctx, query, timeframe).Scan(
		&run.ID, &run.Timeframe, &run.StartedAt, &run.FinishedAt,
		&run.SymbolCount, &run.Status, &run.ErrorMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest completed run for %s: %w", timeframe, err)
	}
	return &run, nil
}
