package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/exchange"
	"github.com/facubara/alphaboard/internal/pipeline"
	"github.com/facubara/alphaboard/internal/scoring"
	"github.com/facubara/alphaboard/internal/strategy"
)

// Confluence set thresholds: a symbol joins a set when at least three
// timeframes agree beyond the score bound.
const (
	confluenceMinTimeframes = 3
	confluenceBullScore     = 0.6
	confluenceBearScore     = 0.4
)

// memoryLimit is how many recent memory entries an agent sees per cycle
const memoryLimit = 10

// buildContext assembles the full strategy context for one agent cycle
func (o *Orchestrator) buildContext(ctx context.Context, q db.Executor, ag db.Agent, summary *pipeline.RunSummary) (*strategy.Context, error) {
	view, err := o.portfolioView(ctx, q, ag)
	if err != nil {
		return nil, err
	}

	perf, err := o.performanceView(ctx, q, ag.ID)
	if err != nil {
		return nil, err
	}

	rankings, err := o.loadRankings(ctx, ag.Timeframe)
	if err != nil {
		return nil, err
	}

	crossTF, err := o.loadCrossTF(ctx)
	if err != nil {
		return nil, err
	}

	memory, err := o.store.GetRecentMemory(ctx, ag.ID, memoryLimit)
	if err != nil {
		return nil, err
	}

	sctx := &strategy.Context{
		AgentName:   ag.Name,
		Archetype:   ag.Archetype,
		Timeframe:   ag.Timeframe,
		Portfolio:   view,
		Performance: perf,
		Rankings:    rankings,
		CrossTF:     crossTF,
		Prices:      summary.Prices,
		Memory:      memory,
	}

	if ag.Source == "tweet" || ag.Source == "hybrid" {
		if o.tweets != nil {
			tc, err := o.tweets.TweetContext(ctx, ag.Timeframe)
			if err != nil {
				o.logger.Warn().Err(err).Str("agent", ag.Name).Msg("Tweet context unavailable")
			} else {
				sctx.Tweets = tc
			}
		}
	}

	return sctx, nil
}

// portfolioView reads the agent's money state into the strategy-facing shape.
// Available cash for one new position is min(cash, 25% of equity) while an
// open slot exists, zero otherwise.
func (o *Orchestrator) portfolioView(ctx context.Context, q db.Executor, ag db.Agent) (strategy.PortfolioView, error) {
	pf, err := o.store.GetPortfolio(ctx, q, ag.ID)
	if err != nil {
		return strategy.PortfolioView{}, err
	}
	positions, err := o.store.GetOpenPositions(ctx, q, ag.ID)
	if err != nil {
		return strategy.PortfolioView{}, err
	}

	view := strategy.PortfolioView{
		Cash:         toFloat(pf.CashBalance),
		Equity:       toFloat(pf.TotalEquity),
		MaxPositions: o.trading.MaxPositionsFor(ag.Archetype),
	}
	for _, p := range positions {
		pv := strategy.PositionView{
			Symbol:        p.Symbol,
			Direction:     string(p.Direction),
			EntryPrice:    toFloat(p.EntryPrice),
			Notional:      toFloat(p.PositionSize),
			UnrealizedPnL: toFloat(p.UnrealizedPnL),
			OpenedAt:      p.OpenedAt,
		}
		if p.StopLoss != nil {
			v := toFloat(*p.StopLoss)
			pv.StopLoss = &v
		}
		if p.TakeProfit != nil {
			v := toFloat(*p.TakeProfit)
			pv.TakeProfit = &v
		}
		view.Positions = append(view.Positions, pv)
	}

	if len(view.Positions) < view.MaxPositions {
		available := view.Equity * o.trading.MaxPositionSize
		if view.Cash < available {
			available = view.Cash
		}
		view.Available = available
	}
	return view, nil
}

// performanceView aggregates the agent's closed-trade record and drawdown
func (o *Orchestrator) performanceView(ctx context.Context, q db.Executor, agentID uuid.UUID) (strategy.PerformanceView, error) {
	stats, err := o.store.GetTradeStats(ctx, agentID)
	if err != nil {
		return strategy.PerformanceView{}, err
	}
	pf, err := o.store.GetPortfolio(ctx, q, agentID)
	if err != nil {
		return strategy.PerformanceView{}, err
	}

	perf := strategy.PerformanceView{
		TotalTrades:      stats.TotalTrades,
		WinningTrades:    stats.WinningTrades,
		TotalRealizedPnL: toFloat(pf.TotalRealizedPnL),
		AvgDurationMins:  stats.AvgDurationMins,
	}
	if stats.TotalTrades > 0 {
		perf.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades)
	}
	peak := toFloat(pf.PeakEquity)
	trough := toFloat(pf.TroughEquity)
	if peak > 0 && trough > 0 && trough < peak {
		perf.MaxDrawdownPct = (peak - trough) / peak * 100
	}
	return perf, nil
}

// loadRankings returns the agent-facing top rankings for a timeframe, cache
// first, snapshot table as fallback.
func (o *Orchestrator) loadRankings(ctx context.Context, timeframe string) ([]strategy.Entry, error) {
	if cached, ok := o.cache.Get(ctx, timeframe); ok {
		limit := o.topRankings
		if len(cached) < limit {
			limit = len(cached)
		}
		entries := make([]strategy.Entry, 0, limit)
		for _, snap := range cached[:limit] {
			entries = append(entries, strategy.Entry{
				Symbol:     snap.Symbol,
				Bullish:    snap.Bullish,
				Confidence: snap.Confidence,
				Rank:       snap.Rank,
				Signals:    snap.Signals,
			})
		}
		return entries, nil
	}

	rows, err := o.store.GetLatestSnapshots(ctx, timeframe, o.topRankings)
	if err != nil {
		return nil, err
	}
	entries := make([]strategy.Entry, 0, len(rows))
	for _, row := range rows {
		var signals map[string]scoring.SignalEntry
		if err := json.Unmarshal(row.IndicatorSignals, &signals); err != nil {
			return nil, fmt.Errorf("corrupt indicator_signals for %s: %w", row.Symbol, err)
		}
		entries = append(entries, strategy.Entry{
			Symbol:     row.Symbol,
			Bullish:    row.BullishScore,
			Confidence: row.Confidence,
			Rank:       row.Rank,
			Signals:    signals,
		})
	}
	return entries, nil
}

// loadCrossTF builds the cross-timeframe bundle: per-symbol per-timeframe
// scores, the two confluence sets and the persisted regime labels.
func (o *Orchestrator) loadCrossTF(ctx context.Context) (*strategy.CrossTF, error) {
	timeframes := make([]string, 0, len(exchange.AllTimeframes))
	for _, tf := range exchange.AllTimeframes {
		timeframes = append(timeframes, string(tf))
	}

	byTimeframe, err := o.store.GetLatestScoresByTimeframe(ctx, timeframes)
	if err != nil {
		return nil, err
	}

	bundle := &strategy.CrossTF{
		Scores:  make(map[string]map[string]float64),
		Regimes: make(map[string]strategy.RegimeView),
	}
	for tf, symbols := range byTimeframe {
		for symbol, score := range symbols {
			if bundle.Scores[symbol] == nil {
				bundle.Scores[symbol] = make(map[string]float64)
			}
			bundle.Scores[symbol][tf] = score
		}
	}

	for symbol, tfScores := range bundle.Scores {
		bullish, bearish := 0, 0
		for _, score := range tfScores {
			if score > confluenceBullScore {
				bullish++
			}
			if score < confluenceBearScore {
				bearish++
			}
		}
		if bullish >= confluenceMinTimeframes {
			bundle.BullishConfluence = append(bundle.BullishConfluence, symbol)
		}
		if bearish >= confluenceMinTimeframes {
			bundle.BearishConfluence = append(bundle.BearishConfluence, symbol)
		}
	}

	regimes, err := o.store.GetRegimes(ctx)
	if err != nil {
		return nil, err
	}
	for tf, r := range regimes {
		bundle.Regimes[tf] = strategy.RegimeView{
			Regime:     string(r.Regime),
			Confidence: r.Confidence,
		}
	}
	return bundle, nil
}
