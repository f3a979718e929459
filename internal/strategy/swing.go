package strategy

import "fmt"

// Swing buys pullbacks inside confirmed trends and holds for the larger move.
type Swing struct{}

const swingMaxPositions = 3

func (s *Swing) Name() string { return "swing" }

func (s *Swing) Decide(ctx *Context) Action {
	for _, pos := range ctx.Portfolio.Positions {
		entry, ok := ctx.EntryFor(pos.Symbol)
		if !ok {
			continue
		}
		rsi, hasRSI := entry.Raw("rsi_14", "rsi")
		pct200, hasEMA200 := entry.Raw("ema_200", "pct_diff")

		if pos.Direction == "long" {
			if (hasRSI && rsi >= 70) || (hasEMA200 && pct200 < 0) {
				act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.75}
				act.Reasoning = s.GenerateReasoning(ctx, act)
				return act
			}
		} else {
			if (hasRSI && rsi <= 30) || (hasEMA200 && pct200 > 0) {
				act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.75}
				act.Reasoning = s.GenerateReasoning(ctx, act)
				return act
			}
		}
	}

	if len(ctx.Portfolio.Positions) >= swingMaxPositions {
		return Hold("swing book full at three positions")
	}
	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	for _, e := range ctx.Rankings {
		if _, open := ctx.Portfolio.HasPosition(e.Symbol); open {
			continue
		}
		if dir, ok := s.entrySignal(e); ok {
			size := 0.12
			if e.Confidence >= 70 {
				size = 0.20
			}
			act := Action{
				Type:          dir,
				Symbol:        e.Symbol,
				SizePct:       size,
				StopLossPct:   0.04,
				TakeProfitPct: 0.08,
				Confidence:    float64(e.Confidence) / 100,
			}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	return Hold("no swing pullback in current rankings")
}

func (s *Swing) entrySignal(e Entry) (ActionType, bool) {
	adx, ok1 := e.Raw("adx_14", "adx")
	rsi, ok2 := e.Raw("rsi_14", "rsi")
	k, ok3 := e.Raw("stoch_14_3_3", "k")
	d, ok4 := e.Raw("stoch_14_3_3", "d")
	ema50, ok5 := e.Raw("ema_50", "ema")
	ema200, ok6 := e.Raw("ema_200", "ema")
	pct50, ok7 := e.Raw("ema_50", "pct_diff")
	pct200, ok8 := e.Raw("ema_200", "pct_diff")
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return "", false
	}

	if adx < 20 {
		return "", false
	}

	// Long: golden alignment with price above both EMAs, momentum cooled
	// into the 40-55 band, stochastic turning up from below midline.
	if ema50 > ema200 && pct50 > 0 && pct200 > 0 &&
		e.Bullish >= 0.55 && e.Confidence >= 65 &&
		rsi >= 40 && rsi <= 55 &&
		k < 50 && k > d {
		return ActionOpenLong, true
	}

	// Short mirror: death alignment with price below both EMAs.
	if ema50 < ema200 && pct50 < 0 && pct200 < 0 &&
		e.Bullish <= 0.45 && e.Confidence >= 65 &&
		rsi >= 45 && rsi <= 60 &&
		k > 50 && k < d {
		return ActionOpenShort, true
	}

	return "", false
}

func (s *Swing) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Swing exit on %s: RSI reached the target zone or price lost EMA200.", act.Symbol)
	case ActionOpenLong:
		e, _ := ctx.EntryFor(act.Symbol)
		return fmt.Sprintf("Swing long on %s: pullback inside a confirmed uptrend (EMA50 above EMA200, price above both) with a stochastic cross up. Score %.2f, sizing %.0f%% with 4%% stop, 8%% target.",
			act.Symbol, e.Bullish, act.SizePct*100)
	case ActionOpenShort:
		e, _ := ctx.EntryFor(act.Symbol)
		return fmt.Sprintf("Swing short on %s: rally inside a confirmed downtrend with a stochastic cross down. Score %.2f, sizing %.0f%% with 4%% stop, 8%% target.",
			act.Symbol, e.Bullish, act.SizePct*100)
	}
	return "No trend pullback worth swinging this cycle."
}
