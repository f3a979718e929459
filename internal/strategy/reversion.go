package strategy

import "fmt"

// MeanReversion buys oversold dips inside a larger uptrend and fades
// overbought pops inside a downtrend, exiting on normalization.
type MeanReversion struct{}

func (s *MeanReversion) Name() string { return "mean_reversion" }

func (s *MeanReversion) Decide(ctx *Context) Action {
	for _, pos := range ctx.Portfolio.Positions {
		entry, ok := ctx.EntryFor(pos.Symbol)
		if !ok {
			continue
		}
		if s.shouldExit(pos, entry) {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.75}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	for _, e := range ctx.Rankings {
		if _, open := ctx.Portfolio.HasPosition(e.Symbol); open {
			continue
		}
		if dir, ok := s.entrySignal(e); ok {
			act := Action{
				Type:          dir,
				Symbol:        e.Symbol,
				SizePct:       0.10,
				StopLossPct:   0.03,
				TakeProfitPct: 0.04,
				Confidence:    0.6 + float64(e.Confidence)/500,
			}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	return Hold("no mean-reversion setup in current rankings")
}

// shouldExit closes when price has reverted to the mean or the oscillator
// normalized.
func (s *MeanReversion) shouldExit(pos PositionView, e Entry) bool {
	pct20, hasEMA20 := e.Raw("ema_20", "pct_diff")
	rsi, hasRSI := e.Raw("rsi_14", "rsi")

	if hasEMA20 && pct20 > -0.3 && pct20 < 0.3 {
		return true
	}
	if hasRSI {
		if pos.Direction == "long" && rsi >= 50 && rsi <= 60 {
			return true
		}
		if pos.Direction == "short" && rsi >= 40 && rsi <= 50 {
			return true
		}
	}
	return false
}

func (s *MeanReversion) entrySignal(e Entry) (ActionType, bool) {
	rsi, ok1 := e.Raw("rsi_14", "rsi")
	pb, ok2 := e.Raw("bbands_20_2", "percent_b")
	k, ok3 := e.Raw("stoch_14_3_3", "k")
	d, ok4 := e.Raw("stoch_14_3_3", "d")
	pct200, ok5 := e.Raw("ema_200", "pct_diff")
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return "", false
	}

	// Long: oversold dip inside an uptrend, stochastic curling up, score
	// depressed but not broken.
	if pct200 > 0 &&
		(rsi < 30 || pb < 0.05) &&
		k < 20 && k > d &&
		e.Bullish >= 0.20 && e.Bullish <= 0.45 {
		return ActionOpenLong, true
	}

	// Short: overbought pop inside a downtrend, stochastic curling down.
	if pct200 < 0 &&
		(rsi > 70 || pb > 0.95) &&
		k > 80 && k < d &&
		e.Bullish >= 0.55 && e.Bullish <= 0.80 {
		return ActionOpenShort, true
	}

	return "", false
}

func (s *MeanReversion) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Reversion complete on %s: price back near EMA20 or RSI normalized.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Mean-reversion long on %s: oversold inside an uptrend with a stochastic cross, targeting a snap back to the mean. Sizing 10%% with 3%% stop, 4%% target.", act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Mean-reversion short on %s: overbought inside a downtrend with a stochastic cross down. Sizing 10%% with 3%% stop, 4%% target.", act.Symbol)
	}
	return "No stretched price worth fading this cycle."
}
