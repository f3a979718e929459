package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetPortfolio reads an agent's portfolio row, optionally inside a transaction
func (db *DB) GetPortfolio(ctx context.Context, q Executor, agentID uuid.UUID) (*AgentPortfolio, error) {
	query := `
		SELECT agent_id, cash_balance, total_equity, total_realized_pnl,
		       total_fees_paid, peak_equity, trough_equity, updated_at
		FROM agent_portfolios
		WHERE agent_id = $1
	`

	var p AgentPortfolio
	err := q.QueryRow(ctx, query, agentID).Scan(
		&p.AgentID, &p.CashBalance, &p.TotalEquity, &p.TotalRealizedPnL,
		&p.TotalFeesPaid, &p.PeakEquity, &p.TroughEquity, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio for agent %s: %w", agentID, err)
	}
	return &p, nil
}

// UpdatePortfolio writes the full money state of an agent
func (db *DB) UpdatePortfolio(ctx context.Context, q Executor, p *AgentPortfolio) error {
	query := `
		UPDATE agent_portfolios
		SET cash_balance = $2, total_equity = $3, total_realized_pnl = $4,
		    total_fees_paid = $5, peak_equity = $6, trough_equity = $7, updated_at = $8
		WHERE agent_id = $1
	`

	p.UpdatedAt = time.Now()
	tag, err := q.Exec(ctx, query,
		p.AgentID, p.CashBalance, p.TotalEquity, p.TotalRealizedPnL,
		p.TotalFeesPaid, p.PeakEquity, p.TroughEquity, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update portfolio for agent %s: %w", p.AgentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio not found for agent %s", p.AgentID)
	}
	return nil
}

// GetOpenPositions returns all open positions for an agent
func (db *DB) GetOpenPositions(ctx context.Context, q Executor, agentID uuid.UUID) ([]AgentPosition, error) {
	query := `
		SELECT id, agent_id, symbol, direction, entry_price, position_size,
		       stop_loss, take_profit, opened_at, unrealized_pnl, open_decision_id
		FROM agent_positions
		WHERE agent_id = $1
		ORDER BY opened_at
	`

	rows, err := q.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for agent %s: %w", agentID, err)
	}
	defer rows.Close()

	var positions []AgentPosition
	for rows.Next() {
		var p AgentPosition
		if err := rows.Scan(&p.ID, &p.AgentID, &p.Symbol, &p.Direction, &p.EntryPrice,
			&p.PositionSize, &p.StopLoss, &p.TakeProfit, &p.OpenedAt, &p.UnrealizedPnL,
			&p.OpenDecisionID); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CreatePosition inserts a new open position
func (db *DB) CreatePosition(ctx context.Context, q Executor, p *AgentPosition) error {
	query := `
		INSERT INTO agent_positions (
			id, agent_id, symbol, direction, entry_price, position_size,
			stop_loss, take_profit, opened_at, unrealized_pnl, open_decision_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now()
	}

	_, err := q.Exec(ctx, query,
		p.ID, p.AgentID, p.Symbol, p.Direction, p.EntryPrice, p.PositionSize,
		p.StopLoss, p.TakeProfit, p.OpenedAt, p.UnrealizedPnL, p.OpenDecisionID)
	if err != nil {
		return fmt.Errorf("failed to create position for agent %s: %w", p.AgentID, err)
	}
	return nil
}

// UpdatePositionPnL caches a position's unrealized PnL
func (db *DB) UpdatePositionPnL(ctx context.Context, q Executor, positionID uuid.UUID, unrealized decimal.Decimal) error {
	query := `UPDATE agent_positions SET unrealized_pnl = $2 WHERE id = $1`

	if _, err := q.Exec(ctx, query, positionID, unrealized); err != nil {
		return fmt.Errorf("failed to update position pnl: %w", err)
	}
	return nil
}

// DeletePosition removes a position on close
func (db *DB) DeletePosition(ctx context.Context, q Executor, positionID uuid.UUID) error {
	query := `DELETE FROM agent_positions WHERE id = $1`

	tag, err := q.Exec(ctx, query, positionID)
	if err != nil {
		return fmt.Errorf("failed to delete position %s: %w", positionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position not found: %s", positionID)
	}
	return nil
}

// InsertTrade records an immutable closed trade
func (db *DB) InsertTrade(ctx context.Context, q Executor, t *AgentTrade) error {
	query := `
		INSERT INTO agent_trades (
			id, agent_id, symbol, direction, entry_price, exit_price, position_size,
			pnl, fees, exit_reason, opened_at, closed_at, duration_minutes,
			open_decision_id, close_decision_id, stop_loss, take_profit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err := q.Exec(ctx, query,
		t.ID, t.AgentID, t.Symbol, t.Direction, t.EntryPrice, t.ExitPrice,
		t.PositionSize, t.PnL, t.Fees, t.ExitReason, t.OpenedAt, t.ClosedAt,
		t.DurationMinutes, t.OpenDecisionID, t.CloseDecisionID, t.StopLoss, t.TakeProfit)
	if err != nil {
		return fmt.Errorf("failed to insert trade for agent %s: %w", t.AgentID, err)
	}
	return nil
}

// SumTradePnL returns the sum of recorded trade PnL for reconciliation
func (db *DB) SumTradePnL(ctx context.Context, q Executor, agentID uuid.UUID) (string, error) {
	query := `SELECT COALESCE(SUM(pnl), 0)::text FROM agent_trades WHERE agent_id = $1`

	var total string
	if err := q.QueryRow(ctx, query, agentID).Scan(&total); err != nil {
		return "", fmt.Errorf("failed to sum trade pnl for agent %s: %w", agentID, err)
	}
	return total, nil
}

// TradeStats aggregates an agent's closed-trade performance
type TradeStats struct {
	TotalTrades     int
	WinningTrades   int
	AvgDurationMins float64
}

// GetTradeStats returns trade counts and average duration for an agent
func (db *DB) GetTradeStats(ctx context.Context, agentID uuid.UUID) (*TradeStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE pnl > 0),
		       COALESCE(AVG(duration_minutes), 0)
		FROM agent_trades
		WHERE agent_id = $1
	`

	var stats TradeStats
	err := db.pool.QueryRow(ctx, query, agentID).Scan(
		&stats.TotalTrades, &stats.WinningTrades, &stats.AvgDurationMins)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade stats for agent %s: %w", agentID, err)
	}
	return &stats, nil
}

// InsertDecision persists an immutable per-cycle decision log row
func (db *DB) InsertDecision(ctx context.Context, q Executor, d *AgentDecision) error {
	query := `
		INSERT INTO agent_decisions (
			id, agent_id, action, symbol, reasoning, reasoning_summary, params,
			model, prompt_version, input_tokens, output_tokens, cost_usd, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}

	_, err := q.Exec(ctx, query,
		d.ID, d.AgentID, d.Action, d.Symbol, d.Reasoning, d.ReasoningSummary,
		d.Params, d.Model, d.PromptVersion, d.InputTokens, d.OutputTokens,
		d.CostUSD, d.DecidedAt)
	if err != nil {
		return fmt.Errorf("failed to insert decision for agent %s: %w", d.AgentID, err)
	}
	return nil
}
