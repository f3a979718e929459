// Package backtest replays one strategy against historical candles through
// the same decision path the live orchestrator uses.
package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/exchange"
	"github.com/facubara/alphaboard/internal/indicators"
	"github.com/facubara/alphaboard/internal/portfolio"
	"github.com/facubara/alphaboard/internal/scoring"
	"github.com/facubara/alphaboard/internal/strategy"
)

const (
	// warmupBars satisfies the longest indicator lookback (EMA200)
	warmupBars = 200
	// rollingWindow mirrors the live candle fetch depth
	rollingWindow = 250
	// yieldEvery is the cooperative cancellation check interval in bars
	yieldEvery = 50
)

// Params describes one backtest request
type Params struct {
	Archetype      string
	Symbol         string
	Timeframe      exchange.Timeframe
	Start          time.Time
	End            time.Time
	InitialBalance decimal.Decimal
}

// Engine replays strategies over historical data
type Engine struct {
	store   *db.DB
	source  exchange.CandleSource
	trading config.TradingConfig
	logger  zerolog.Logger
}

// NewEngine wires a backtest engine
func NewEngine(store *db.DB, source exchange.CandleSource, trading config.TradingConfig) *Engine {
	return &Engine{
		store:   store,
		source:  source,
		trading: trading,
		logger:  config.NewLogger("backtest"),
	}
}

// Run executes one backtest end to end and persists the run and its trades.
// A cancelled context commits partial results with status cancelled.
func (e *Engine) Run(ctx context.Context, p Params) (*db.BacktestRun, error) {
	strat, err := strategy.ForAgent(p.Archetype, p.Archetype)
	if err != nil {
		return nil, err
	}

	// The warmup prefix is fetched in front of the requested range so the
	// first decided bar already has full indicator history.
	fetchStart := p.Start.Add(-time.Duration(warmupBars) * p.Timeframe.Duration())
	candles, err := e.source.FetchHistoricalCandles(ctx, p.Symbol, p.Timeframe, fetchStart, p.End)
	if err != nil {
		return nil, fmt.Errorf("historical fetch failed: %w", err)
	}
	if len(candles) <= warmupBars {
		return nil, fmt.Errorf("insufficient history: %d candles, need more than %d", len(candles), warmupBars)
	}

	run := &db.BacktestRun{
		Archetype:      p.Archetype,
		Symbol:         p.Symbol,
		Timeframe:      string(p.Timeframe),
		StartDate:      p.Start,
		EndDate:        p.End,
		InitialBalance: p.InitialBalance,
	}
	if err := e.store.CreateBacktestRun(ctx, run); err != nil {
		return nil, err
	}

	if err := e.execute(ctx, p, strat, candles, run); err != nil {
		msg := err.Error()
		run.Status = db.BacktestStatusFailed
		run.ErrorMsg = &msg
		if ferr := e.store.FinalizeBacktestRun(context.WithoutCancel(ctx), run); ferr != nil {
			e.logger.Error().
				Err(ferr).
				Str("run_id", run.ID.String()).
				Msg("Failed to record backtest failure")
		}
		return nil, err
	}

	e.logger.Info().
		Str("run_id", run.ID.String()).
		Str("status", string(run.Status)).
		Int("trades", run.TotalTrades).
		Str("pnl", run.TotalPnL.StringFixed(2)).
		Msg("Backtest finished")
	return run, nil
}

// execute replays the window, settles, computes stats and persists results.
// Errors propagate to Run, which finalizes the row as failed.
func (e *Engine) execute(ctx context.Context, p Params, strat strategy.Strategy, candles []exchange.Candle, run *db.BacktestRun) error {
	sim := portfolio.NewSim(p.InitialBalance, e.trading.FeeRate)

	equityCurve, settle, cancelled, err := e.replay(ctx, p, strat, candles, sim)
	if err != nil {
		return err
	}

	// Open positions settle at the bar the replay stopped on: the final
	// candle normally, the cancellation bar when the context was cancelled.
	finalPrices := map[string]float64{p.Symbol: settle.Close}
	if _, err := sim.CloseAll(finalPrices, db.ExitBacktestEnd, settle.CloseTime); err != nil {
		return err
	}
	equityCurve = append(equityCurve, toFloat(sim.Equity(finalPrices)))

	e.finishRun(run, sim, equityCurve, p, cancelled)

	// Partial results of a cancelled run still commit.
	persistCtx := context.WithoutCancel(ctx)
	for i := range sim.Trades() {
		trade := sim.Trades()[i]
		if err := e.store.InsertBacktestTrade(persistCtx, run.ID, &trade); err != nil {
			return err
		}
	}
	return e.store.FinalizeBacktestRun(persistCtx, run)
}

// replay walks the decided bars through the strategy. The returned candle is
// the bar the walk stopped on; on cancellation that is the bar at which the
// yield check observed the cancelled context.
func (e *Engine) replay(ctx context.Context, p Params, strat strategy.Strategy, candles []exchange.Candle, sim *portfolio.Sim) ([]float64, exchange.Candle, bool, error) {
	equityCurve := []float64{toFloat(p.InitialBalance)}
	settle := candles[len(candles)-1]
	cancelled := false

	for i := warmupBars; i < len(candles); i++ {
		if (i-warmupBars)%yieldEvery == 0 && ctx.Err() != nil {
			cancelled = true
			settle = candles[i]
			break
		}

		candle := candles[i]
		at := candle.CloseTime
		prices := map[string]float64{p.Symbol: candle.Close}

		// Stops and targets fire on the candle's range before the
		// strategy sees it, same ordering as live.
		if _, err := sim.CheckStopLossTakeProfit(p.Symbol, portfolio.CandleHL{
			High: candle.High, Low: candle.Low, Close: candle.Close,
		}, at); err != nil {
			return nil, settle, false, err
		}

		lo := i + 1 - rollingWindow
		if lo < 0 {
			lo = 0
		}
		sctx := e.buildContext(p, candles[lo:i+1], sim, prices)

		act := decideSafe(strat, sctx)
		if err := e.applyAction(sim, act, candle.Close, at); err != nil {
			// Infeasible actions are skipped, mirroring live validation.
			e.logger.Debug().Err(err).Str("action", string(act.Type)).Msg("Backtest action skipped")
		}

		equityCurve = append(equityCurve, toFloat(sim.Equity(prices)))
	}

	return equityCurve, settle, cancelled, nil
}

// buildContext assembles the minimal single-symbol context for one bar
func (e *Engine) buildContext(p Params, window []exchange.Candle, sim *portfolio.Sim, prices map[string]float64) *strategy.Context {
	w := indicators.NewWindow(window)
	outputs := indicators.ComputeAll(w)

	last := window[len(window)-1]
	data := scoring.SymbolData{
		Symbol:     p.Symbol,
		Indicators: outputs,
		Close:      last.Close,
		High:       last.High,
		Low:        last.Low,
	}
	if len(window) >= 2 {
		prev := window[len(window)-2]
		data.Deltas.PriceChangeAbs = last.Close - prev.Close
		data.Deltas.VolumeChangeAbs = last.Volume - prev.Volume
		if prev.Close != 0 {
			data.Deltas.PriceChangePct = data.Deltas.PriceChangeAbs / prev.Close * 100
		}
		if prev.Volume != 0 {
			data.Deltas.VolumeChangePct = data.Deltas.VolumeChangeAbs / prev.Volume * 100
		}
	}
	data.Bullish = scoring.BullishScore(outputs)
	data.Confidence = scoring.ConfidenceScore(outputs, scoring.VolumeContext{})

	snaps := scoring.Rank([]scoring.SymbolData{data}, string(p.Timeframe), uuid.Nil, last.CloseTime)

	return &strategy.Context{
		AgentName: "backtest-" + p.Archetype,
		Archetype: p.Archetype,
		Timeframe: string(p.Timeframe),
		Portfolio: sim.View(prices, e.trading.MaxPositionsFor(p.Archetype), e.trading.MaxPositionSize),
		Rankings: []strategy.Entry{{
			Symbol:     snaps[0].Symbol,
			Bullish:    snaps[0].Bullish,
			Confidence: snaps[0].Confidence,
			Rank:       1,
			Signals:    snaps[0].Signals,
		}},
		Prices: prices,
	}
}

// decideSafe runs the strategy with panic isolation, mirroring the live
// orchestrator boundary.
func decideSafe(strat strategy.Strategy, sctx *strategy.Context) (act strategy.Action) {
	defer func() {
		if r := recover(); r != nil {
			act = strategy.Hold(fmt.Sprintf("strategy failure: %v", r))
			act.Confidence = 0
		}
	}()
	return strat.Decide(sctx)
}

// applyAction executes a strategy action in the mirror portfolio at close
func (e *Engine) applyAction(sim *portfolio.Sim, act strategy.Action, price float64, at time.Time) error {
	switch act.Type {
	case strategy.ActionOpenLong, strategy.ActionOpenShort:
		return sim.Open(act, price, at)
	case strategy.ActionClose:
		_, err := sim.Close(act.Symbol, price, db.ExitAgentDecision, at)
		return err
	}
	return nil
}

// finishRun computes final stats and the terminal status onto the run row
func (e *Engine) finishRun(run *db.BacktestRun, sim *portfolio.Sim, equityCurve []float64, p Params, cancelled bool) {
	trades := sim.Trades()
	totalPnL := decimal.Zero
	wins := 0
	for _, t := range trades {
		totalPnL = totalPnL.Add(t.PnL)
		if t.PnL.IsPositive() {
			wins++
		}
	}

	run.FinalEquity = decimal.NewFromFloat(equityCurve[len(equityCurve)-1])
	run.TotalPnL = totalPnL
	run.TotalTrades = len(trades)
	run.WinningTrades = wins
	run.MaxDrawdownPct = maxDrawdownPct(equityCurve)
	run.SharpeRatio = sharpeRatio(equityCurve, p.Timeframe)
	run.Status = db.BacktestStatusCompleted
	if cancelled {
		run.Status = db.BacktestStatusCancelled
	}
}

// maxDrawdownPct is the worst percentage fall from a running equity peak
func maxDrawdownPct(curve []float64) float64 {
	var peak, worst float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// sharpeRatio annualizes the mean/stddev of per-bar equity returns
func sharpeRatio(curve []float64, timeframe exchange.Timeframe) float64 {
	if len(curve) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] > 0 {
			returns = append(returns, (curve[i]-curve[i-1])/curve[i-1])
		}
	}
	if len(returns) < 2 {
		return 0
	}

	mean := stat.Mean(returns, nil)
	sd := stat.StdDev(returns, nil)
	if sd == 0 {
		return 0
	}

	barsPerYear := float64(365*24*time.Hour) / float64(timeframe.Duration())
	return mean / sd * math.Sqrt(barsPerYear)
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
