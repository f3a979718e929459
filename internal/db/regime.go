package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// RegimeInput is one snapshot's contribution to the regime aggregates. ADX
// and bandwidth are pulled out of the indicator_signals JSON in SQL.
type RegimeInput struct {
	Bullish   float64
	ADX       *float64
	Bandwidth *float64
}

// GetRegimeInputs reads the top-ranked snapshots of a run with the raw ADX
// and Bollinger bandwidth values needed by the regime classifier.
func (db *DB) GetRegimeInputs(ctx context.Context, runID uuid.UUID, limit int) ([]RegimeInput, error) {
	query := `
		SELECT bullish_score,
		       (indicator_signals->'adx_14'->'raw'->>'adx')::float8,
		       (indicator_signals->'bbands_20_2'->'raw'->>'bandwidth')::float8
		FROM snapshots
		WHERE run_id = $1
		ORDER BY rank
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime inputs for run %s: %w", runID, err)
	}
	defer rows.Close()

	var inputs []RegimeInput
	for rows.Next() {
		var in RegimeInput
		if err := rows.Scan(&in.Bullish, &in.ADX, &in.Bandwidth); err != nil {
			return nil, fmt.Errorf("failed to scan regime input: %w", err)
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// UpsertRegime overwrites the single per-timeframe regime row
func (db *DB) UpsertRegime(ctx context.Context, regime TimeframeRegime) error {
	query := `
		INSERT INTO timeframe_regimes (
			timeframe, regime, confidence, avg_score, avg_adx, avg_bandwidth,
			symbols_analyzed, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (timeframe) DO UPDATE SET
			regime = EXCLUDED.regime,
			confidence = EXCLUDED.confidence,
			avg_score = EXCLUDED.avg_score,
			avg_adx = EXCLUDED.avg_adx,
			avg_bandwidth = EXCLUDED.avg_bandwidth,
			symbols_analyzed = EXCLUDED.symbols_analyzed,
			computed_at = EXCLUDED.computed_at
	`

	_, err := db.pool.Exec(ctx, query,
		regime.Timeframe, regime.Regime, regime.Confidence, regime.AvgScore,
		regime.AvgADX, regime.AvgBandwidth, regime.SymbolsAnalyzed, regime.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert regime for %s: %w", regime.Timeframe, err)
	}
	return nil
}

// GetRegimes returns the persisted regime row for every timeframe
func (db *DB) GetRegimes(ctx context.Context) (map[string]TimeframeRegime, error) {
	query := `
		SELECT timeframe, regime, confidence, avg_score, avg_adx, avg_bandwidth,
		       symbols_analyzed, computed_at
		FROM timeframe_regimes
	`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query regimes: %w", err)
	}
	defer rows.Close()

	regimes := make(map[string]TimeframeRegime)
	for rows.Next() {
		var r TimeframeRegime
		if err := rows.Scan(&r.Timeframe, &r.Regime, &r.Confidence, &r.AvgScore,
			&r.AvgADX, &r.AvgBandwidth, &r.SymbolsAnalyzed, &r.ComputedAt); err != nil {
			return nil, fmt.Errorf("failed to scan regime: %w", err)
		}
		regimes[r.Timeframe] = r
	}
	return regimes, rows.Err()
}
