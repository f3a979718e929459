package strategy

import "fmt"

// Momentum rides established trends: strong score, confirmed trend strength,
// RSI with room to run, volume behind the move.
type Momentum struct{}

func (s *Momentum) Name() string { return "momentum" }

func (s *Momentum) Decide(ctx *Context) Action {
	// Exits first.
	for _, pos := range ctx.Portfolio.Positions {
		entry, ok := ctx.EntryFor(pos.Symbol)
		if !ok {
			continue
		}
		rsi, hasRSI := entry.Raw("rsi_14", "rsi")
		pctEMA20, hasEMA20 := entry.Raw("ema_20", "pct_diff")

		if pos.Direction == "long" {
			if (hasRSI && rsi > 75) || (hasEMA20 && pctEMA20 < 0) {
				act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.8}
				act.Reasoning = s.GenerateReasoning(ctx, act)
				return act
			}
		} else {
			if (hasRSI && rsi < 25) || (hasEMA20 && pctEMA20 > 0) {
				act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.8}
				act.Reasoning = s.GenerateReasoning(ctx, act)
				return act
			}
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
			size := 0.08
			if e.Confidence >= 75 {
				size = 0.15
			}
			act := Action{
				Type:          dir,
				Symbol:        e.Symbol,
				SizePct:       size,
				StopLossPct:   0.04,
				TakeProfitPct: 0.06,
				Confidence:    float64(e.Confidence) / 100,
			}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	return Hold("no momentum setup in current rankings")
}

// entrySignal checks the full momentum gate for one ranked symbol
func (s *Momentum) entrySignal(e Entry) (ActionType, bool) {
	rsi, ok1 := e.Raw("rsi_14", "rsi")
	hist, ok2 := e.Raw("macd_12_26_9", "histogram")
	adx, ok3 := e.Raw("adx_14", "adx")
	plusDI, ok4 := e.Raw("adx_14", "plus_di")
	minusDI, ok5 := e.Raw("adx_14", "minus_di")
	pct50, ok6 := e.Raw("ema_50", "pct_diff")
	pct200, ok7 := e.Raw("ema_200", "pct_diff")
	slope, ok8 := e.Raw("obv", "slope")
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return "", false
	}

	if e.Bullish >= 0.70 && e.Confidence >= 60 &&
		rsi >= 50 && rsi <= 70 &&
		hist > 0 &&
		adx > 25 && plusDI > minusDI &&
		pct50 > 0 && pct200 > 0 &&
		slope > 0 {
		return ActionOpenLong, true
	}

	if e.Bullish <= 0.30 && e.Confidence >= 60 &&
		rsi >= 30 && rsi <= 50 &&
		hist < 0 &&
		adx > 25 && minusDI > plusDI &&
		pct50 < 0 && pct200 < 0 &&
		slope < 0 {
		return ActionOpenShort, true
	}

	return "", false
}

func (s *Momentum) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Momentum exhausted on %s: RSI out of range or price lost EMA20.", act.Symbol)
	case ActionOpenLong:
		e, _ := ctx.EntryFor(act.Symbol)
		return fmt.Sprintf("Momentum long on %s: score %.2f with ADX-confirmed trend, positive MACD histogram, price above EMA50/EMA200 and rising OBV. Sizing %.0f%% with 4%% stop, 6%% target.",
			act.Symbol, e.Bullish, act.SizePct*100)
	case ActionOpenShort:
		e, _ := ctx.EntryFor(act.Symbol)
		return fmt.Sprintf("Momentum short on %s: score %.2f with downtrend confirmation across MACD, DI lines, EMAs and OBV. Sizing %.0f%% with 4%% stop, 6%% target.",
			act.Symbol, e.Bullish, act.SizePct*100)
	}
	return "No momentum setup met every gate this cycle."
}
