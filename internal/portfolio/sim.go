package portfolio

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/strategy"
)

// Sim is an in-memory mirror of the persistent portfolio manager. Backtests
// run the same fee and PnL arithmetic without touching the store.
type Sim struct {
	fee       decimal.Decimal
	cash      decimal.Decimal
	positions []db.AgentPosition
	trades    []db.AgentTrade
	peak      decimal.Decimal
}

// NewSim builds a simulated portfolio with a starting cash balance
func NewSim(initialBalance decimal.Decimal, feeRate float64) *Sim {
	return &Sim{
		fee:  decimal.NewFromFloat(feeRate),
		cash: initialBalance,
		peak: initialBalance,
	}
}

// Cash returns the current cash balance
func (s *Sim) Cash() decimal.Decimal { return s.cash }

// Trades returns all closed trades so far
func (s *Sim) Trades() []db.AgentTrade { return s.trades }

// Positions returns the currently open positions
func (s *Sim) Positions() []db.AgentPosition { return s.positions }

// Equity values the portfolio at the given prices
func (s *Sim) Equity(prices map[string]float64) decimal.Decimal {
	equity := s.cash
	for _, p := range s.positions {
		equity = equity.Add(p.PositionSize)
		if price, ok := prices[p.Symbol]; ok && price > 0 {
			equity = equity.Add(positionPnL(p.Direction, p.EntryPrice,
				decimal.NewFromFloat(price), p.PositionSize))
		}
	}
	if equity.GreaterThan(s.peak) {
		s.peak = equity
	}
	return equity
}

// PeakEquity returns the running equity high-water mark
func (s *Sim) PeakEquity() decimal.Decimal { return s.peak }

// View builds the strategy-facing portfolio state at the given prices
func (s *Sim) View(prices map[string]float64, maxPositions int, maxSizePct float64) strategy.PortfolioView {
	equity := s.Equity(prices)
	view := strategy.PortfolioView{
		Cash:         decimalToFloat(s.cash),
		Equity:       decimalToFloat(equity),
		MaxPositions: maxPositions,
	}
	for _, p := range s.positions {
		pv := strategy.PositionView{
			Symbol:     p.Symbol,
			Direction:  string(p.Direction),
			EntryPrice: decimalToFloat(p.EntryPrice),
			Notional:   decimalToFloat(p.PositionSize),
			OpenedAt:   p.OpenedAt,
		}
		if price, ok := prices[p.Symbol]; ok && price > 0 {
			pv.UnrealizedPnL = decimalToFloat(positionPnL(p.Direction, p.EntryPrice,
				decimal.NewFromFloat(price), p.PositionSize))
		}
		if p.StopLoss != nil {
			v := decimalToFloat(*p.StopLoss)
			pv.StopLoss = &v
		}
		if p.TakeProfit != nil {
			v := decimalToFloat(*p.TakeProfit)
			pv.TakeProfit = &v
		}
		view.Positions = append(view.Positions, pv)
	}
	if len(view.Positions) < maxPositions {
		available := equity.Mul(decimal.NewFromFloat(maxSizePct))
		if s.cash.LessThan(available) {
			available = s.cash
		}
		view.Available = decimalToFloat(available)
	}
	return view
}

// Open opens a simulated position at the given price and timestamp
func (s *Sim) Open(act strategy.Action, price float64, at time.Time) error {
	for _, p := range s.positions {
		if p.Symbol == act.Symbol {
			return fmt.Errorf("position already open in %s", act.Symbol)
		}
	}

	entry := decimal.NewFromFloat(price)
	equity := s.Equity(map[string]float64{act.Symbol: price})
	notional := equity.Mul(decimal.NewFromFloat(act.SizePct))
	entryFee := notional.Mul(s.fee)
	required := notional.Add(entryFee.Mul(decimal.NewFromInt(2)))
	if s.cash.LessThan(required) {
		return fmt.Errorf("insufficient cash: need %s, have %s",
			required.StringFixed(2), s.cash.StringFixed(2))
	}

	direction := db.DirectionLong
	if act.Type == strategy.ActionOpenShort {
		direction = db.DirectionShort
	}

	pos := db.AgentPosition{
		ID:           uuid.New(),
		Symbol:       act.Symbol,
		Direction:    direction,
		EntryPrice:   entry,
		PositionSize: notional,
		OpenedAt:     at,
	}
	if act.StopLossPct > 0 {
		sl := slPrice(entry, act.StopLossPct, direction)
		pos.StopLoss = &sl
	}
	if act.TakeProfitPct > 0 {
		tp := tpPrice(entry, act.TakeProfitPct, direction)
		pos.TakeProfit = &tp
	}

	s.positions = append(s.positions, pos)
	s.cash = s.cash.Sub(notional).Sub(entryFee)
	return nil
}

// Close settles a simulated position at the given price, recording the trade
func (s *Sim) Close(symbol string, price float64, reason db.ExitReason, at time.Time) (*db.AgentTrade, error) {
	idx := -1
	for i, p := range s.positions {
		if p.Symbol == symbol {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no open position in %q", symbol)
	}
	pos := s.positions[idx]

	exit := decimal.NewFromFloat(price)
	grossPnL := positionPnL(pos.Direction, pos.EntryPrice, exit, pos.PositionSize)
	exitFee := pos.PositionSize.Mul(s.fee)
	netPnL := grossPnL.Sub(exitFee)

	durationMins := int(at.Sub(pos.OpenedAt).Minutes())
	if durationMins < 1 {
		durationMins = 1
	}

	trade := db.AgentTrade{
		ID:              uuid.New(),
		Symbol:          symbol,
		Direction:       pos.Direction,
		EntryPrice:      pos.EntryPrice,
		ExitPrice:       exit,
		PositionSize:    pos.PositionSize,
		PnL:             netPnL,
		Fees:            exitFee,
		ExitReason:      reason,
		OpenedAt:        pos.OpenedAt,
		ClosedAt:        at,
		DurationMinutes: durationMins,
		StopLoss:        pos.StopLoss,
		TakeProfit:      pos.TakeProfit,
	}

	s.positions = append(s.positions[:idx], s.positions[idx+1:]...)
	s.cash = s.cash.Add(pos.PositionSize).Add(netPnL)
	s.trades = append(s.trades, trade)
	return &trade, nil
}

// CheckStopLossTakeProfit fires stops and targets crossed by the candle,
// stop before target, first hit only.
func (s *Sim) CheckStopLossTakeProfit(symbol string, candle CandleHL, at time.Time) (*db.AgentTrade, error) {
	for _, pos := range s.positions {
		if pos.Symbol != symbol {
			continue
		}
		exitPrice, reason := triggeredExit(pos, candle)
		if reason == "" {
			return nil, nil
		}
		return s.Close(symbol, exitPrice, reason, at)
	}
	return nil, nil
}

// CloseAll liquidates every simulated position at the given prices
func (s *Sim) CloseAll(prices map[string]float64, reason db.ExitReason, at time.Time) ([]db.AgentTrade, error) {
	var closed []db.AgentTrade
	for len(s.positions) > 0 {
		pos := s.positions[0]
		price, ok := prices[pos.Symbol]
		if !ok || price <= 0 {
			price = decimalToFloat(pos.EntryPrice)
		}
		trade, err := s.Close(pos.Symbol, price, reason, at)
		if err != nil {
			return closed, err
		}
		closed = append(closed, *trade)
	}
	return closed, nil
}

func decimalToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
