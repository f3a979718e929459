package strategy

import "fmt"

// Breakout waits for a volatility squeeze and enters when price escapes the
// bands with volume, before trend-followers pile in.
type Breakout struct{}

func (s *Breakout) Name() string { return "breakout" }

func (s *Breakout) Decide(ctx *Context) Action {
	for _, pos := range ctx.Portfolio.Positions {
		entry, ok := ctx.EntryFor(pos.Symbol)
		if !ok {
			continue
		}
		pb, hasPB := entry.Raw("bbands_20_2", "percent_b")
		// The breakout is over once price re-enters the bands.
		if hasPB && pb >= 0 && pb <= 1 {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.7}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	// Concentration guard on top of the shared cap.
	if len(ctx.Portfolio.Positions) >= 2 {
		return Hold("breakout book full at two positions")
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
				SizePct:       0.08,
				StopLossPct:   0.05,
				TakeProfitPct: 0.10,
				Confidence:    0.65,
			}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	return Hold("no squeeze breakout in current rankings")
}

func (s *Breakout) entrySignal(e Entry) (ActionType, bool) {
	bw, ok1 := e.Raw("bbands_20_2", "bandwidth")
	pb, ok2 := e.Raw("bbands_20_2", "percent_b")
	slope, ok3 := e.Raw("obv", "slope")
	adx, ok4 := e.Raw("adx_14", "adx")
	if !(ok1 && ok2 && ok3 && ok4) {
		return "", false
	}

	// ADX below 25 means the trend crowd has not arrived yet.
	if bw >= 5 || adx >= 25 {
		return "", false
	}

	if pb > 1.0 && slope > 2.0 && e.Bullish >= 0.55 && e.Bullish <= 0.75 {
		return ActionOpenLong, true
	}
	if pb < 0.0 && slope < -2.0 && e.Bullish >= 0.25 && e.Bullish <= 0.45 {
		return ActionOpenShort, true
	}

	return "", false
}

func (s *Breakout) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Breakout on %s faded: price back inside the Bollinger bands.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Breakout long on %s: squeeze released upward with %%B above 1 and OBV accelerating while ADX is still quiet. Sizing 8%% with 5%% stop, 10%% target.", act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Breakout short on %s: squeeze released downward with %%B below 0 and OBV draining. Sizing 8%% with 5%% stop, 10%% target.", act.Symbol)
	}
	return "No volatility squeeze resolving this cycle."
}
