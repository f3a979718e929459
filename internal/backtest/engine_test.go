package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/exchange"
	"github.com/facubara/alphaboard/internal/portfolio"
	"github.com/facubara/alphaboard/internal/strategy"
)

func TestMaxDrawdownPct(t *testing.T) {
	// Peak 120, trough 90: (120-90)/120 = 25%
	assert.InDelta(t, 25.0, maxDrawdownPct([]float64{100, 120, 90, 110}), 1e-9)

	// Monotone rise never draws down
	assert.Equal(t, 0.0, maxDrawdownPct([]float64{100, 110, 120}))

	// The worst fall is measured from the running peak, not the start
	assert.InDelta(t, 50.0, maxDrawdownPct([]float64{100, 50, 200, 150}), 1e-9)

	assert.Equal(t, 0.0, maxDrawdownPct(nil))
}

func TestSharpeRatioEdgeCases(t *testing.T) {
	// Too short a curve yields no ratio
	assert.Equal(t, 0.0, sharpeRatio([]float64{100, 101}, exchange.Timeframe1h))

	// A flat curve has zero volatility
	assert.Equal(t, 0.0, sharpeRatio([]float64{100, 100, 100, 100}, exchange.Timeframe1h))
}

func TestSharpeRatioSign(t *testing.T) {
	up := []float64{100, 101, 103, 104, 106, 107}
	down := []float64{107, 106, 104, 103, 101, 100}

	assert.Greater(t, sharpeRatio(up, exchange.Timeframe1h), 0.0)
	assert.Less(t, sharpeRatio(down, exchange.Timeframe1h), 0.0)

	// The same returns annualize higher on shorter bars
	assert.Greater(t,
		sharpeRatio(up, exchange.Timeframe15m),
		sharpeRatio(up, exchange.Timeframe1d))
}

type panickingStrategy struct{}

func (panickingStrategy) Name() string { return "panicking" }

func (panickingStrategy) Decide(*strategy.Context) strategy.Action { panic("boom") }

func (panickingStrategy) GenerateReasoning(*strategy.Context, strategy.Action) string { return "" }

func TestDecideSafeIsolatesPanics(t *testing.T) {
	act := decideSafe(panickingStrategy{}, &strategy.Context{})

	require.Equal(t, strategy.ActionHold, act.Type)
	assert.Contains(t, act.Reasoning, "strategy failure")
	assert.Contains(t, act.Reasoning, "boom")
	assert.Equal(t, 0.0, act.Confidence)
}

// alwaysLong opens its symbol on the first decided bar and then holds it
type alwaysLong struct {
	symbol string
}

func (s alwaysLong) Name() string { return "always_long" }

func (s alwaysLong) Decide(*strategy.Context) strategy.Action {
	return strategy.Action{
		Type:       strategy.ActionOpenLong,
		Symbol:     s.symbol,
		SizePct:    0.1,
		Confidence: 0.6,
		Reasoning:  "ride the tape",
	}
}

func (s alwaysLong) GenerateReasoning(*strategy.Context, strategy.Action) string { return "" }

// pollLimitCtx reports cancellation only after a fixed number of Err polls
type pollLimitCtx struct {
	context.Context
	polls int
	limit int
}

func (c *pollLimitCtx) Err() error {
	c.polls++
	if c.polls > c.limit {
		return context.Canceled
	}
	return nil
}

func trendingCandles(n int) []exchange.Candle {
	candles := make([]exchange.Candle, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)
		candles[i] = exchange.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return candles
}

func flatCandles(n int) []exchange.Candle {
	candles := trendingCandles(n)
	for i := range candles {
		candles[i].Open = 100
		candles[i].High = 100
		candles[i].Low = 100
		candles[i].Close = 100
	}
	return candles
}

func replayEngine() *Engine {
	return &Engine{
		trading: config.TradingConfig{FeeRate: 0.001, MaxPositionSize: 0.25, MaxPositions: 5},
		logger:  zerolog.Nop(),
	}
}

func replayParams() Params {
	return Params{
		Archetype:      "momentum",
		Symbol:         "BTCUSDT",
		Timeframe:      exchange.Timeframe1h,
		InitialBalance: decimal.NewFromInt(10000),
	}
}

func TestReplaySettlesAtCancellationBar(t *testing.T) {
	e := replayEngine()
	p := replayParams()
	candles := trendingCandles(700)
	sim := portfolio.NewSim(p.InitialBalance, e.trading.FeeRate)

	// Yield polls land at bars 200, 250, 300, 350; the fourth observes
	// cancellation, so the replay stops on bar 350.
	ctx := &pollLimitCtx{Context: context.Background(), limit: 3}

	curve, settle, cancelled, err := e.replay(ctx, p, alwaysLong{symbol: p.Symbol}, candles, sim)
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Equal(t, candles[350].OpenTime, settle.OpenTime)
	assert.InDelta(t, 450.0, settle.Close, 1e-9)
	assert.Len(t, curve, 151) // initial point plus bars 200..349

	// The open position settles at the cancellation bar's close, not the
	// last fetched candle's.
	trades, err := sim.CloseAll(map[string]float64{p.Symbol: settle.Close}, db.ExitBacktestEnd, settle.CloseTime)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].ExitPrice.Equal(decimal.NewFromFloat(450)),
		"exit price %s", trades[0].ExitPrice)
}

func TestReplayRunsToCompletionWithoutCancellation(t *testing.T) {
	e := replayEngine()
	p := replayParams()
	candles := trendingCandles(700)
	sim := portfolio.NewSim(p.InitialBalance, e.trading.FeeRate)

	curve, settle, cancelled, err := e.replay(context.Background(), p, alwaysLong{symbol: p.Symbol}, candles, sim)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, candles[699].OpenTime, settle.OpenTime)
	assert.Len(t, curve, 501)
}

type stubSource struct {
	candles []exchange.Candle
}

func (s *stubSource) ListActiveSymbols(context.Context, float64) ([]exchange.SymbolInfo, error) {
	return nil, nil
}

func (s *stubSource) FetchCandles(context.Context, string, exchange.Timeframe, int) ([]exchange.Candle, error) {
	return nil, nil
}

func (s *stubSource) FetchCandleBatch(context.Context, []string, exchange.Timeframe, int) (map[string][]exchange.Candle, error) {
	return nil, nil
}

func (s *stubSource) FetchHistoricalCandles(context.Context, string, exchange.Timeframe, time.Time, time.Time) ([]exchange.Candle, error) {
	return s.candles, nil
}

func TestRunFinalizesFailedRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	e := NewEngine(db.NewWithPool(mock), &stubSource{candles: flatCandles(300)},
		config.TradingConfig{FeeRate: 0.001, MaxPositionSize: 0.25, MaxPositions: 5})

	mock.ExpectExec("INSERT INTO backtest_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// The terminal finalize fails; the run must then be re-finalized failed
	// with the error message.
	mock.ExpectExec("UPDATE backtest_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectExec("UPDATE backtest_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			db.BacktestStatusFailed, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	p := replayParams()
	run, runErr := e.Run(context.Background(), p)
	require.Error(t, runErr)
	assert.Nil(t, run)
	assert.ErrorContains(t, runErr, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}
