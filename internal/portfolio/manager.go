// Package portfolio owns every mutation to agent portfolios, positions and
// trades. All mutations for one agent cycle run on the caller's transaction.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/strategy"
)

// ValidationResult reports whether an action is feasible before execution
type ValidationResult struct {
	Valid        bool
	ErrorMessage string
	Warnings     []string
}

// ExecutionResult describes one executed (or rejected) portfolio mutation
type ExecutionResult struct {
	Success    bool
	Error      string
	Action     strategy.ActionType
	Symbol     string
	Price      decimal.Decimal
	Notional   decimal.Decimal
	Fee        decimal.Decimal
	PnL        decimal.Decimal
	ExitReason db.ExitReason
	TradeID    uuid.UUID
}

// CandleHL is the candle extent used for stop-loss and take-profit checks
type CandleHL struct {
	High  float64
	Low   float64
	Close float64
}

// ReconcileReport is the read-only outcome of a reconciliation pass
type ReconcileReport struct {
	AgentID         uuid.UUID
	RecordedPnL     decimal.Decimal
	ComputedPnL     decimal.Decimal
	PnLDrift        decimal.Decimal
	RecordedEquity  decimal.Decimal
	ComputedEquity  decimal.Decimal
	EquityDrift     decimal.Decimal
	HasDiscrepancy  bool
}

// reconcileTolerance is one cent; drifts at or below it are rounding noise
var reconcileTolerance = decimal.NewFromFloat(0.01)

// Manager executes validated portfolio mutations against the store
type Manager struct {
	store  *db.DB
	fee    decimal.Decimal // per-leg fee rate
	maxPos int
	maxPct decimal.Decimal
	logger zerolog.Logger
}

// NewManager builds a portfolio manager from the trading config
func NewManager(store *db.DB, cfg config.TradingConfig) *Manager {
	return &Manager{
		store:  store,
		fee:    decimal.NewFromFloat(cfg.FeeRate),
		maxPos: cfg.MaxPositions,
		maxPct: decimal.NewFromFloat(cfg.MaxPositionSize),
		logger: config.NewLogger("portfolio"),
	}
}

// Validate checks feasibility of an action against the agent's current state.
// It never mutates anything.
func (m *Manager) Validate(ctx context.Context, q db.Executor, agentID uuid.UUID, act strategy.Action, prices map[string]float64) (*ValidationResult, error) {
	res := &ValidationResult{Valid: true}

	if act.Type == strategy.ActionHold {
		return res, nil
	}
	if act.Confidence < 0.5 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("low confidence %.2f", act.Confidence))
	}

	positions, err := m.store.GetOpenPositions(ctx, q, agentID)
	if err != nil {
		return nil, err
	}

	switch act.Type {
	case strategy.ActionOpenLong, strategy.ActionOpenShort:
		price, ok := prices[act.Symbol]
		if act.Symbol == "" || !ok || price <= 0 {
			return invalid("no current price for symbol %q", act.Symbol), nil
		}
		if len(positions) >= m.maxPos {
			return invalid("position cap reached (%d)", m.maxPos), nil
		}
		for _, p := range positions {
			if p.Symbol == act.Symbol {
				return invalid("position already open in %s", act.Symbol), nil
			}
		}
		sizePct := decimal.NewFromFloat(act.SizePct)
		if sizePct.LessThanOrEqual(decimal.Zero) || sizePct.GreaterThan(m.maxPct) {
			return invalid("size %.4f outside (0, %s]", act.SizePct, m.maxPct), nil
		}

		pf, err := m.store.GetPortfolio(ctx, q, agentID)
		if err != nil {
			return nil, err
		}
		notional := pf.TotalEquity.Mul(sizePct)
		// Reserve both legs of fees up front so the close can never go negative.
		required := notional.Add(notional.Mul(m.fee).Mul(decimal.NewFromInt(2)))
		if pf.CashBalance.LessThan(required) {
			return invalid("insufficient cash: need %s, have %s", required.StringFixed(2), pf.CashBalance.StringFixed(2)), nil
		}

	case strategy.ActionClose:
		found := false
		for _, p := range positions {
			if p.Symbol == act.Symbol {
				found = true
				break
			}
		}
		if !found {
			return invalid("no open position in %q", act.Symbol), nil
		}

	default:
		return invalid("unknown action %q", act.Type), nil
	}

	return res, nil
}

func invalid(format string, args ...any) *ValidationResult {
	return &ValidationResult{Valid: false, ErrorMessage: fmt.Sprintf(format, args...)}
}

// OpenPosition opens a new position at the given price, charging the entry fee
func (m *Manager) OpenPosition(ctx context.Context, q db.Executor, agentID uuid.UUID, act strategy.Action, price float64, decisionID *uuid.UUID) (*ExecutionResult, error) {
	pf, err := m.store.GetPortfolio(ctx, q, agentID)
	if err != nil {
		return nil, err
	}

	entryPrice := decimal.NewFromFloat(price)
	notional := pf.TotalEquity.Mul(decimal.NewFromFloat(act.SizePct))
	entryFee := notional.Mul(m.fee)

	direction := db.DirectionLong
	if act.Type == strategy.ActionOpenShort {
		direction = db.DirectionShort
	}

	var stopLoss, takeProfit *decimal.Decimal
	if act.StopLossPct > 0 {
		sl := slPrice(entryPrice, act.StopLossPct, direction)
		stopLoss = &sl
	}
	if act.TakeProfitPct > 0 {
		tp := tpPrice(entryPrice, act.TakeProfitPct, direction)
		takeProfit = &tp
	}

	pos := &db.AgentPosition{
		AgentID:        agentID,
		Symbol:         act.Symbol,
		Direction:      direction,
		EntryPrice:     entryPrice,
		PositionSize:   notional,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		OpenDecisionID: decisionID,
	}
	if err := m.store.CreatePosition(ctx, q, pos); err != nil {
		return nil, err
	}

	pf.CashBalance = pf.CashBalance.Sub(notional).Sub(entryFee)
	pf.TotalFeesPaid = pf.TotalFeesPaid.Add(entryFee)
	// Equity drops by exactly the entry fee at open.
	pf.TotalEquity = pf.TotalEquity.Sub(entryFee)
	if err := m.store.UpdatePortfolio(ctx, q, pf); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("agent_id", agentID.String()).
		Str("symbol", act.Symbol).
		Str("direction", string(direction)).
		Str("notional", notional.StringFixed(2)).
		Str("entry", entryPrice.String()).
		Msg("Position opened")

	return &ExecutionResult{
		Success:  true,
		Action:   act.Type,
		Symbol:   act.Symbol,
		Price:    entryPrice,
		Notional: notional,
		Fee:      entryFee,
	}, nil
}

// ClosePosition closes an open position at the given price, settling PnL net
// of the exit fee and recording an immutable trade row.
func (m *Manager) ClosePosition(ctx context.Context, q db.Executor, agentID uuid.UUID, symbol string, exitPrice float64, reason db.ExitReason, decisionID *uuid.UUID) (*ExecutionResult, error) {
	positions, err := m.store.GetOpenPositions(ctx, q, agentID)
	if err != nil {
		return nil, err
	}
	var pos *db.AgentPosition
	for i := range positions {
		if positions[i].Symbol == symbol {
			pos = &positions[i]
			break
		}
	}
	if pos == nil {
		return nil, fmt.Errorf("no open position in %q for agent %s", symbol, agentID)
	}

	exit := decimal.NewFromFloat(exitPrice)
	grossPnL := positionPnL(pos.Direction, pos.EntryPrice, exit, pos.PositionSize)
	exitFee := pos.PositionSize.Mul(m.fee)
	netPnL := grossPnL.Sub(exitFee)

	now := time.Now()
	durationMins := int(math.Round(now.Sub(pos.OpenedAt).Minutes()))
	if durationMins < 1 {
		durationMins = 1
	}

	trade := &db.AgentTrade{
		AgentID:         agentID,
		Symbol:          symbol,
		Direction:       pos.Direction,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       exit,
		PositionSize:    pos.PositionSize,
		PnL:             netPnL,
		Fees:            exitFee,
		ExitReason:      reason,
		OpenedAt:        pos.OpenedAt,
		ClosedAt:        now,
		DurationMinutes: durationMins,
		OpenDecisionID:  pos.OpenDecisionID,
		CloseDecisionID: decisionID,
		StopLoss:        pos.StopLoss,
		TakeProfit:      pos.TakeProfit,
	}
	if err := m.store.InsertTrade(ctx, q, trade); err != nil {
		return nil, err
	}
	if err := m.store.DeletePosition(ctx, q, pos.ID); err != nil {
		return nil, err
	}

	pf, err := m.store.GetPortfolio(ctx, q, agentID)
	if err != nil {
		return nil, err
	}
	pf.CashBalance = pf.CashBalance.Add(pos.PositionSize).Add(netPnL)
	pf.TotalRealizedPnL = pf.TotalRealizedPnL.Add(netPnL)
	pf.TotalFeesPaid = pf.TotalFeesPaid.Add(exitFee)
	if err := m.refreshEquity(ctx, q, pf); err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("agent_id", agentID.String()).
		Str("symbol", symbol).
		Str("reason", string(reason)).
		Str("pnl", netPnL.StringFixed(2)).
		Int("duration_mins", durationMins).
		Msg("Position closed")

	return &ExecutionResult{
		Success:    true,
		Action:     strategy.ActionClose,
		Symbol:     symbol,
		Price:      exit,
		Notional:   pos.PositionSize,
		Fee:        exitFee,
		PnL:        netPnL,
		ExitReason: reason,
		TradeID:    trade.ID,
	}, nil
}

// UpdateUnrealizedPnL recomputes per-position unrealized PnL at current prices
// and refreshes total equity. Positions without a price keep their cached PnL.
func (m *Manager) UpdateUnrealizedPnL(ctx context.Context, q db.Executor, agentID uuid.UUID, prices map[string]float64) error {
	positions, err := m.store.GetOpenPositions(ctx, q, agentID)
	if err != nil {
		return err
	}

	for i := range positions {
		price, ok := prices[positions[i].Symbol]
		if !ok || price <= 0 {
			continue
		}
		unrealized := positionPnL(positions[i].Direction, positions[i].EntryPrice,
			decimal.NewFromFloat(price), positions[i].PositionSize)
		positions[i].UnrealizedPnL = unrealized
		if err := m.store.UpdatePositionPnL(ctx, q, positions[i].ID, unrealized); err != nil {
			return err
		}
	}

	pf, err := m.store.GetPortfolio(ctx, q, agentID)
	if err != nil {
		return err
	}
	equity := pf.CashBalance
	for _, p := range positions {
		equity = equity.Add(p.PositionSize).Add(p.UnrealizedPnL)
	}
	pf.TotalEquity = equity
	if equity.GreaterThan(pf.PeakEquity) {
		pf.PeakEquity = equity
	}
	if equity.LessThan(pf.TroughEquity) {
		pf.TroughEquity = equity
	}
	return m.store.UpdatePortfolio(ctx, q, pf)
}

// CheckStopLossTakeProfit closes positions whose stop or target is inside the
// candle's (low, high) range. The stop is evaluated before the target on the
// same candle, and only the first hit fires per position.
func (m *Manager) CheckStopLossTakeProfit(ctx context.Context, q db.Executor, agentID uuid.UUID, candles map[string]CandleHL) ([]*ExecutionResult, error) {
	positions, err := m.store.GetOpenPositions(ctx, q, agentID)
	if err != nil {
		return nil, err
	}

	var results []*ExecutionResult
	for _, pos := range positions {
		candle, ok := candles[pos.Symbol]
		if !ok {
			continue
		}

		exitPrice, reason := triggeredExit(pos, candle)
		if reason == "" {
			continue
		}

		res, err := m.ClosePosition(ctx, q, agentID, pos.Symbol, exitPrice, reason, nil)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// triggeredExit returns the exit price and reason if the candle crossed the
// position's stop or target, preferring the stop.
func triggeredExit(pos db.AgentPosition, candle CandleHL) (float64, db.ExitReason) {
	if pos.StopLoss != nil {
		sl, _ := pos.StopLoss.Float64()
		if pos.Direction == db.DirectionLong && candle.Low <= sl {
			return sl, db.ExitStopLoss
		}
		if pos.Direction == db.DirectionShort && candle.High >= sl {
			return sl, db.ExitStopLoss
		}
	}
	if pos.TakeProfit != nil {
		tp, _ := pos.TakeProfit.Float64()
		if pos.Direction == db.DirectionLong && candle.High >= tp {
			return tp, db.ExitTakeProfit
		}
		if pos.Direction == db.DirectionShort && candle.Low <= tp {
			return tp, db.ExitTakeProfit
		}
	}
	return 0, ""
}

// Reconcile recomputes realized PnL from the trade log and equity from open
// positions, reporting drifts above one cent. Read-only.
func (m *Manager) Reconcile(ctx context.Context, agentID uuid.UUID) (*ReconcileReport, error) {
	pf, err := m.store.GetPortfolio(ctx, m.store.Pool(), agentID)
	if err != nil {
		return nil, err
	}

	sumText, err := m.store.SumTradePnL(ctx, m.store.Pool(), agentID)
	if err != nil {
		return nil, err
	}
	computedPnL, err := decimal.NewFromString(sumText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trade pnl sum %q: %w", sumText, err)
	}

	positions, err := m.store.GetOpenPositions(ctx, m.store.Pool(), agentID)
	if err != nil {
		return nil, err
	}
	computedEquity := pf.CashBalance
	for _, p := range positions {
		computedEquity = computedEquity.Add(p.PositionSize).Add(p.UnrealizedPnL)
	}

	report := &ReconcileReport{
		AgentID:        agentID,
		RecordedPnL:    pf.TotalRealizedPnL,
		ComputedPnL:    computedPnL,
		PnLDrift:       pf.TotalRealizedPnL.Sub(computedPnL).Abs(),
		RecordedEquity: pf.TotalEquity,
		ComputedEquity: computedEquity,
		EquityDrift:    pf.TotalEquity.Sub(computedEquity).Abs(),
	}
	report.HasDiscrepancy = report.PnLDrift.GreaterThan(reconcileTolerance) ||
		report.EquityDrift.GreaterThan(reconcileTolerance)

	if report.HasDiscrepancy {
		m.logger.Warn().
			Str("agent_id", agentID.String()).
			Str("pnl_drift", report.PnLDrift.StringFixed(4)).
			Str("equity_drift", report.EquityDrift.StringFixed(4)).
			Msg("Portfolio reconciliation discrepancy")
	}
	return report, nil
}

// CloseAll liquidates every open position at current prices. Used on pause.
func (m *Manager) CloseAll(ctx context.Context, q db.Executor, agentID uuid.UUID, prices map[string]float64, reason db.ExitReason) ([]*ExecutionResult, error) {
	positions, err := m.store.GetOpenPositions(ctx, q, agentID)
	if err != nil {
		return nil, err
	}

	var results []*ExecutionResult
	for _, pos := range positions {
		price, ok := prices[pos.Symbol]
		if !ok || price <= 0 {
			entry, _ := pos.EntryPrice.Float64()
			price = entry
		}
		res, err := m.ClosePosition(ctx, q, agentID, pos.Symbol, price, reason, nil)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// refreshEquity recomputes equity from cash plus remaining open positions
func (m *Manager) refreshEquity(ctx context.Context, q db.Executor, pf *db.AgentPortfolio) error {
	positions, err := m.store.GetOpenPositions(ctx, q, pf.AgentID)
	if err != nil {
		return err
	}
	equity := pf.CashBalance
	for _, p := range positions {
		equity = equity.Add(p.PositionSize).Add(p.UnrealizedPnL)
	}
	pf.TotalEquity = equity
	if equity.GreaterThan(pf.PeakEquity) {
		pf.PeakEquity = equity
	}
	if equity.LessThan(pf.TroughEquity) {
		pf.TroughEquity = equity
	}
	return m.store.UpdatePortfolio(ctx, q, pf)
}

// positionPnL is the direction-signed PnL of a position at an exit price
func positionPnL(direction db.Direction, entry, exit, notional decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	move := exit.Sub(entry)
	if direction == db.DirectionShort {
		move = entry.Sub(exit)
	}
	return move.Mul(notional.Div(entry))
}

func slPrice(entry decimal.Decimal, pct float64, direction db.Direction) decimal.Decimal {
	d := decimal.NewFromFloat(pct)
	if direction == db.DirectionLong {
		return entry.Mul(decimal.NewFromInt(1).Sub(d))
	}
	return entry.Mul(decimal.NewFromInt(1).Add(d))
}

func tpPrice(entry decimal.Decimal, pct float64, direction db.Direction) decimal.Decimal {
	d := decimal.NewFromFloat(pct)
	if direction == db.DirectionLong {
		return entry.Mul(decimal.NewFromInt(1).Add(d))
	}
	return entry.Mul(decimal.NewFromInt(1).Sub(d))
}
