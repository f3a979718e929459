package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateBacktestRun inserts a backtest run in running state
func (db *DB) CreateBacktestRun(ctx context.Context, run *BacktestRun) error {
	query := `
		INSERT INTO backtest_runs (
			id, archetype, symbol, timeframe, start_date, end_date,
			initial_balance, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = BacktestStatusRunning

	_, err := db.pool.Exec(ctx, query,
		run.ID, run.Archetype, run.Symbol, run.Timeframe, run.StartDate,
		run.EndDate, run.InitialBalance, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create backtest run: %w", err)
	}
	return nil
}

// FinalizeBacktestRun writes the results and terminal status of a backtest
func (db *DB) FinalizeBacktestRun(ctx context.Context, run *BacktestRun) error {
	query := `
		UPDATE backtest_runs
		SET final_equity = $2, total_pnl = $3, total_trades = $4, winning_trades = $5,
		    max_drawdown_pct = $6, sharpe_ratio = $7, status = $8, error_message = $9,
		    finished_at = $10
		WHERE id = $1
	`

	now := time.Now()
	run.FinishedAt = &now

	_, err := db.pool.Exec(ctx, query,
		run.ID, run.FinalEquity, run.TotalPnL, run.TotalTrades, run.WinningTrades,
		run.MaxDrawdownPct, run.SharpeRatio, run.Status, run.ErrorMsg, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to finalize backtest run %s: %w", run.ID, err)
	}
	return nil
}

// InsertBacktestTrade records one simulated trade of a backtest run
func (db *DB) InsertBacktestTrade(ctx context.Context, runID uuid.UUID, t *AgentTrade) error {
	query := `
		INSERT INTO backtest_trades (
			id, run_id, symbol, direction, entry_price, exit_price, position_size,
			pnl, fees, exit_reason, opened_at, closed_at, duration_minutes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err := db.pool.Exec(ctx, query,
		t.ID, runID, t.Symbol, t.Direction, t.EntryPrice, t.ExitPrice,
		t.PositionSize, t.PnL, t.Fees, t.ExitReason, t.OpenedAt, t.ClosedAt,
		t.DurationMinutes)
	if err != nil {
		return fmt.Errorf("failed to insert backtest trade: %w", err)
	}
	return nil
}
