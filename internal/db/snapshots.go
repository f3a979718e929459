package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/facubara/alphaboard/internal/scoring"
)

// InsertSnapshots persists one run's snapshot set inside the caller's
// transaction. Snapshots are immutable once written.
func (db *DB) InsertSnapshots(ctx context.Context, q Executor, snapshots []scoring.RankedSnapshot) error {
	query := `
		INSERT INTO snapshots (
			id, run_id, symbol, timeframe, bullish_score, confidence, rank,
			highlights, indicator_signals, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, snap := range snapshots {
		highlights, err := json.Marshal(snap.Chips)
		if err != nil {
			return fmt.Errorf("failed to marshal highlights for %s: %w", snap.Symbol, err)
		}
		signals, err := json.Marshal(snap.Signals)
		if err != nil {
			return fmt.Errorf("failed to marshal signals for %s: %w", snap.Symbol, err)
		}

		_, err = q.Exec(ctx, query,
			uuid.New(), snap.RunID, snap.Symbol, snap.Timeframe,
			snap.Bullish, snap.Confidence, snap.Rank,
			highlights, signals, snap.ComputedAt)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", snap.Symbol, err)
		}
	}
	return nil
}

// GetSnapshotsForRun returns a run's snapshots ordered by rank, up to limit
// (0 for all).
func (db *DB) GetSnapshotsForRun(ctx context.Context, runID uuid.UUID, limit int) ([]SnapshotRow, error) {
	query := `
		SELECT id, run_id, symbol, timeframe, bullish_score, confidence, rank,
		       highlights, indicator_signals, computed_at
		FROM snapshots
		WHERE run_id = $1
		ORDER BY rank
	`
	args := []any{runID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for run %s: %w", runID, err)
	}
	defer rows.Close()

	var snapshots []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		if err := rows.Scan(&s.ID, &s.RunID, &s.Symbol, &s.Timeframe, &s.BullishScore,
			&s.Confidence, &s.Rank, &s.Highlights, &s.IndicatorSignals, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// GetLatestSnapshots returns the latest completed run's snapshots for a
// timeframe, ordered by rank.
func (db *DB) GetLatestSnapshots(ctx context.Context, timeframe string, limit int) ([]SnapshotRow, error) {
	run, err := db.GetLatestCompletedRun(ctx, timeframe)
	if err != nil {
		return nil, err
	}
	return db.GetSnapshotsForRun(ctx, run.ID, limit)
}

// LatestScore pairs a symbol with its bullish score in a timeframe's latest run
type LatestScore struct {
	Symbol  string
	Bullish float64
}

// GetLatestScoresByTimeframe returns symbol -> bullish score maps for every
// timeframe that has a completed run. Used for the cross-timeframe context.
func (db *DB) GetLatestScoresByTimeframe(ctx context.Context, timeframes []string) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(timeframes))
	for _, tf := range timeframes {
		run, err := db.GetLatestCompletedRun(ctx, tf)
		if err != nil {
			continue // timeframe has no completed run yet
		}

		query := `SELECT symbol, bullish_score FROM snapshots WHERE run_id = $1`
		rows, err := db.pool.Query(ctx, query, run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to query scores for %s: %w", tf, err)
		}

		scores := make(map[string]float64)
		for rows.Next() {
			var ls LatestScore
			if err := rows.Scan(&ls.Symbol, &ls.Bullish); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan score: %w", err)
			}
			scores[ls.Symbol] = ls.Bullish
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		out[tf] = scores
	}
	return out, nil
}
