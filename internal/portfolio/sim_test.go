package portfolio

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/strategy"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func openLong(symbol string, sizePct, slPct, tpPct float64) strategy.Action {
	return strategy.Action{
		Type:          strategy.ActionOpenLong,
		Symbol:        symbol,
		SizePct:       sizePct,
		StopLossPct:   slPct,
		TakeProfitPct: tpPct,
		Confidence:    0.8,
	}
}

func TestSimOpenCloseFeeAlgebra(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	// Open 10% at 100: notional 1000, entry fee 1
	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0, 0), 100, at))
	assert.True(t, sim.Cash().Equal(dec("8999")), "cash=%s", sim.Cash())
	require.Len(t, sim.Positions(), 1)

	// Flat close: gross 0, exit fee 1, net -1
	trade, err := sim.Close("BTCUSDT", 100, db.ExitAgentDecision, at.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, trade.PnL.Equal(dec("-1")), "pnl=%s", trade.PnL)
	assert.True(t, trade.Fees.Equal(dec("1")))
	assert.True(t, sim.Cash().Equal(dec("9998")), "cash=%s", sim.Cash())
	assert.Empty(t, sim.Positions())
	assert.Equal(t, 60, trade.DurationMinutes)
}

func TestSimLongProfit(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	require.NoError(t, sim.Open(openLong("ETHUSDT", 0.10, 0, 0), 100, at))
	trade, err := sim.Close("ETHUSDT", 110, db.ExitAgentDecision, at.Add(time.Hour))
	require.NoError(t, err)

	// Gross 100 on a 10% move, minus the 1.0 exit fee
	assert.True(t, trade.PnL.Equal(dec("99")), "pnl=%s", trade.PnL)
	assert.True(t, sim.Cash().Equal(dec("10098")), "cash=%s", sim.Cash())
}

func TestSimShortPnLSign(t *testing.T) {
	at := time.Now()

	short := strategy.Action{Type: strategy.ActionOpenShort, Symbol: "SOLUSDT", SizePct: 0.10}

	t.Run("profits when price falls", func(t *testing.T) {
		sim := NewSim(dec("10000"), 0.001)
		require.NoError(t, sim.Open(short, 100, at))
		trade, err := sim.Close("SOLUSDT", 90, db.ExitAgentDecision, at.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, trade.PnL.Equal(dec("99")), "pnl=%s", trade.PnL)
	})

	t.Run("loses when price rises", func(t *testing.T) {
		sim := NewSim(dec("10000"), 0.001)
		require.NoError(t, sim.Open(short, 100, at))
		trade, err := sim.Close("SOLUSDT", 110, db.ExitAgentDecision, at.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, trade.PnL.Equal(dec("-101")), "pnl=%s", trade.PnL)
	})
}

func TestSimOpenRejections(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0, 0), 100, at))

	err := sim.Open(openLong("BTCUSDT", 0.10, 0, 0), 100, at)
	assert.ErrorContains(t, err, "already open")

	// Full-equity sizing cannot cover both fee legs
	err = sim.Open(openLong("ETHUSDT", 1.0, 0, 0), 100, at)
	assert.ErrorContains(t, err, "insufficient cash")
}

func TestSimCloseUnknownSymbol(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	_, err := sim.Close("BTCUSDT", 100, db.ExitAgentDecision, time.Now())
	assert.ErrorContains(t, err, "no open position")
}

func TestSimMinimumDuration(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0, 0), 100, at))
	trade, err := sim.Close("BTCUSDT", 100, db.ExitAgentDecision, at.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, trade.DurationMinutes)
}

func TestSimStopLossFires(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	// SL at 96, TP at 106
	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0.04, 0.06), 100, at))

	// Candle touches neither
	trade, err := sim.CheckStopLossTakeProfit("BTCUSDT", CandleHL{High: 103, Low: 97, Close: 100}, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, trade)
	require.Len(t, sim.Positions(), 1)

	// Candle crosses both; the stop wins and fills at the stop price
	trade, err = sim.CheckStopLossTakeProfit("BTCUSDT", CandleHL{High: 107, Low: 95, Close: 100}, at.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, db.ExitStopLoss, trade.ExitReason)
	assert.True(t, trade.ExitPrice.Equal(dec("96")), "exit=%s", trade.ExitPrice)
	assert.Empty(t, sim.Positions())
}

func TestSimTakeProfitFires(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0.04, 0.06), 100, at))

	trade, err := sim.CheckStopLossTakeProfit("BTCUSDT", CandleHL{High: 107, Low: 99, Close: 106}, at.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, db.ExitTakeProfit, trade.ExitReason)
	assert.True(t, trade.ExitPrice.Equal(dec("106")), "exit=%s", trade.ExitPrice)
}

func TestSimShortStopAboveEntry(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	act := strategy.Action{
		Type: strategy.ActionOpenShort, Symbol: "ETHUSDT",
		SizePct: 0.10, StopLossPct: 0.05, TakeProfitPct: 0.08,
	}
	require.NoError(t, sim.Open(act, 100, at))

	// Short stop sits at 105 and fires on the high
	trade, err := sim.CheckStopLossTakeProfit("ETHUSDT", CandleHL{High: 106, Low: 98, Close: 100}, at.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, db.ExitStopLoss, trade.ExitReason)
	assert.True(t, trade.ExitPrice.Equal(dec("105")), "exit=%s", trade.ExitPrice)
}

func TestSimCloseAllFallsBackToEntry(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0, 0), 100, at))
	require.NoError(t, sim.Open(openLong("ETHUSDT", 0.10, 0, 0), 50, at))

	// No price for ETHUSDT settles it at entry
	closed, err := sim.CloseAll(map[string]float64{"BTCUSDT": 110}, db.ExitBacktestEnd, at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, closed, 2)
	assert.Empty(t, sim.Positions())

	for _, trade := range closed {
		assert.Equal(t, db.ExitBacktestEnd, trade.ExitReason)
		if trade.Symbol == "ETHUSDT" {
			assert.True(t, trade.ExitPrice.Equal(trade.EntryPrice))
		}
	}
}

func TestSimView(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()
	prices := map[string]float64{"BTCUSDT": 110}

	view := sim.View(prices, 5, 0.25)
	assert.Equal(t, 5, view.MaxPositions)
	assert.InDelta(t, 10000, view.Cash, 1e-9)
	// Capped by the per-position size limit, not by cash
	assert.InDelta(t, 2500, view.Available, 1e-9)

	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0.04, 0.06), 100, at))
	view = sim.View(prices, 5, 0.25)
	require.Len(t, view.Positions, 1)
	assert.Equal(t, "BTCUSDT", view.Positions[0].Symbol)
	assert.InDelta(t, 100, view.Positions[0].UnrealizedPnL, 1e-9)
	require.NotNil(t, view.Positions[0].StopLoss)
	assert.InDelta(t, 96, *view.Positions[0].StopLoss, 1e-9)

	// Equity 10099: open fee paid, +100 unrealized
	assert.InDelta(t, 10099, view.Equity, 1e-9)
	assert.InDelta(t, 2524.75, view.Available, 1e-2)

	// At the position cap nothing is available
	view = sim.View(prices, 1, 0.25)
	assert.InDelta(t, 0, view.Available, 1e-9)
}

func TestSimPeakEquityTracksHighWaterMark(t *testing.T) {
	sim := NewSim(dec("10000"), 0.001)
	at := time.Now()

	require.NoError(t, sim.Open(openLong("BTCUSDT", 0.10, 0, 0), 100, at))
	sim.Equity(map[string]float64{"BTCUSDT": 150})
	assert.True(t, sim.PeakEquity().Equal(dec("10499")), "peak=%s", sim.PeakEquity())

	// A drawdown never lowers the peak
	sim.Equity(map[string]float64{"BTCUSDT": 80})
	assert.True(t, sim.PeakEquity().Equal(dec("10499")))
}
