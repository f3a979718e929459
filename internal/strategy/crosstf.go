package strategy

import "fmt"

// The cross-timeframe family trades the relationship between timeframes
// instead of any single chart. All four variants read the CrossTF bundle and
// the persisted regime rows; without a bundle they hold.

const crossMaxPositions = 3

// higherRegime returns the daily regime, falling back to weekly
func higherRegime(ctx *Context) (RegimeView, bool) {
	if ctx.CrossTF == nil {
		return RegimeView{}, false
	}
	if r, ok := ctx.CrossTF.Regimes["1d"]; ok {
		return r, true
	}
	r, ok := ctx.CrossTF.Regimes["1w"]
	return r, ok
}

// avgScore averages a symbol's scores across the given timeframes, false
// when any timeframe is missing.
func avgScore(ctx *Context, symbol string, timeframes ...string) (float64, bool) {
	var sum float64
	for _, tf := range timeframes {
		v, ok := ctx.CrossTF.ScoreAt(symbol, tf)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum / float64(len(timeframes)), true
}

// contains reports set membership in a confluence slice
func contains(set []string, symbol string) bool {
	for _, s := range set {
		if s == symbol {
			return true
		}
	}
	return false
}

// CrossConfluence opens positions on symbols where at least three timeframes
// agree, scaled by how well the higher-timeframe regime aligns.
type CrossConfluence struct{}

func (s *CrossConfluence) Name() string { return "cross_confluence" }

func (s *CrossConfluence) Decide(ctx *Context) Action {
	if ctx.CrossTF == nil {
		return Hold("no cross-timeframe data available")
	}

	// Exit when the symbol flipped into the opposing confluence set or
	// dropped out of agreement entirely.
	for _, pos := range ctx.Portfolio.Positions {
		long := pos.Direction == "long"
		inOwn := contains(ctx.CrossTF.BullishConfluence, pos.Symbol)
		inOpp := contains(ctx.CrossTF.BearishConfluence, pos.Symbol)
		if !long {
			inOwn, inOpp = inOpp, inOwn
		}
		if inOpp || !inOwn {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.8}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	if len(ctx.Portfolio.Positions) >= crossMaxPositions {
		return Hold("confluence book full at three positions")
	}
	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	regime, hasRegime := higherRegime(ctx)

	for _, symbol := range ctx.CrossTF.BullishConfluence {
		if _, open := ctx.Portfolio.HasPosition(symbol); open {
			continue
		}
		if hasRegime && regime.Bearish() && regime.Confidence >= 60 {
			continue // higher timeframe says the other way
		}
		act := Action{
			Type:          ActionOpenLong,
			Symbol:        symbol,
			SizePct:       s.scaledSize(regime, hasRegime, true),
			StopLossPct:   0.06,
			TakeProfitPct: 0.12,
			Confidence:    0.75,
		}
		act.Reasoning = s.GenerateReasoning(ctx, act)
		return act
	}

	for _, symbol := range ctx.CrossTF.BearishConfluence {
		if _, open := ctx.Portfolio.HasPosition(symbol); open {
			continue
		}
		if hasRegime && regime.Bullish() && regime.Confidence >= 60 {
			continue
		}
		act := Action{
			Type:          ActionOpenShort,
			Symbol:        symbol,
			SizePct:       s.scaledSize(regime, hasRegime, false),
			StopLossPct:   0.06,
			TakeProfitPct: 0.12,
			Confidence:    0.75,
		}
		act.Reasoning = s.GenerateReasoning(ctx, act)
		return act
	}

	return Hold("no symbol in either confluence set")
}

// scaledSize scales the 18% base by regime alignment, between 0.7x and 1.5x,
// capped at the 25% global limit.
func (s *CrossConfluence) scaledSize(regime RegimeView, hasRegime, long bool) float64 {
	base := 0.18
	scale := 1.0
	if hasRegime {
		aligned := (long && regime.Bullish()) || (!long && regime.Bearish())
		opposed := (long && regime.Bearish()) || (!long && regime.Bullish())
		switch {
		case aligned:
			scale = 1.0 + 0.5*float64(regime.Confidence)/100
		case opposed:
			scale = 1.0 - 0.3*float64(regime.Confidence)/100
		}
	}
	if scale < 0.7 {
		scale = 0.7
	}
	if scale > 1.5 {
		scale = 1.5
	}
	size := base * scale
	if size > 0.25 {
		size = 0.25
	}
	return size
}

func (s *CrossConfluence) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Confluence broke on %s: timeframes no longer agree.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Confluence long on %s: three or more timeframes score above 0.60, regime-scaled to %.0f%% with 6%% stop, 12%% target.", act.Symbol, act.SizePct*100)
	case ActionOpenShort:
		return fmt.Sprintf("Confluence short on %s: three or more timeframes score below 0.40, regime-scaled to %.0f%% with 6%% stop, 12%% target.", act.Symbol, act.SizePct*100)
	}
	return "No multi-timeframe agreement this cycle."
}

// CrossDivergence trades the gap between long-term conviction and short-term
// weakness, betting the short term converges upward to the long term.
type CrossDivergence struct{}

func (s *CrossDivergence) Name() string { return "cross_divergence" }

func (s *CrossDivergence) Decide(ctx *Context) Action {
	if ctx.CrossTF == nil {
		return Hold("no cross-timeframe data available")
	}

	for _, pos := range ctx.Portfolio.Positions {
		longTerm, ok1 := avgScore(ctx, pos.Symbol, "1d", "1w")
		shortTerm, ok2 := avgScore(ctx, pos.Symbol, "15m", "1h")
		if !ok1 || !ok2 {
			continue
		}
		long := pos.Direction == "long"
		converged := (long && shortTerm >= 0.50) || (!long && shortTerm <= 0.50)
		reverted := (long && longTerm < 0.50) || (!long && longTerm > 0.50)
		if converged || reverted {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.75}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	// Conflicting daily and weekly regimes make the divergence unreadable.
	if s.regimesConflict(ctx) {
		return Hold("daily and weekly regimes disagree with high confidence")
	}

	for _, e := range ctx.Rankings {
		if _, open := ctx.Portfolio.HasPosition(e.Symbol); open {
			continue
		}
		longTerm, ok1 := avgScore(ctx, e.Symbol, "1d", "1w")
		shortTerm, ok2 := avgScore(ctx, e.Symbol, "15m", "1h")
		if !ok1 || !ok2 {
			continue
		}

		var dir ActionType
		switch {
		case longTerm >= 0.60 && shortTerm <= 0.35:
			dir = ActionOpenLong
		case longTerm <= 0.40 && shortTerm >= 0.65:
			dir = ActionOpenShort
		default:
			continue
		}

		act := Action{
			Type:          dir,
			Symbol:        e.Symbol,
			SizePct:       0.10,
			StopLossPct:   0.05,
			TakeProfitPct: 0.08,
			Confidence:    0.65,
		}
		act.Reasoning = s.GenerateReasoning(ctx, act)
		return act
	}

	return Hold("no long-term versus short-term divergence found")
}

func (s *CrossDivergence) regimesConflict(ctx *Context) bool {
	daily, ok1 := ctx.CrossTF.Regimes["1d"]
	weekly, ok2 := ctx.CrossTF.Regimes["1w"]
	if !ok1 || !ok2 {
		return false
	}
	opposed := (daily.Bullish() && weekly.Bearish()) || (daily.Bearish() && weekly.Bullish())
	return opposed && daily.Confidence >= 60 && weekly.Confidence >= 60
}

func (s *CrossDivergence) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Divergence resolved on %s: short-term caught up with the long-term view or the long-term view flipped.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Divergence long on %s: daily and weekly average at least 0.60 while the short-term averages at most 0.35. Sizing 10%% with 5%% stop, 8%% target.", act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Divergence short on %s: long-term weakness against a short-term pop. Sizing 10%% with 5%% stop, 8%% target.", act.Symbol)
	}
	return "No tradeable timeframe divergence this cycle."
}

// CrossCascade enters when strength is flowing down the timeframe stack:
// weekly leads, daily confirms, intraday has not caught up yet.
type CrossCascade struct{}

func (s *CrossCascade) Name() string { return "cross_cascade" }

func (s *CrossCascade) Decide(ctx *Context) Action {
	if ctx.CrossTF == nil {
		return Hold("no cross-timeframe data available")
	}

	for _, pos := range ctx.Portfolio.Positions {
		weekly, ok1 := ctx.CrossTF.ScoreAt(pos.Symbol, "1w")
		hourly, ok2 := ctx.CrossTF.ScoreAt(pos.Symbol, "1h")
		if !ok1 || !ok2 {
			continue
		}
		long := pos.Direction == "long"
		weeklyReverted := (long && weekly < 0.50) || (!long && weekly > 0.50)
		cascadeDone := (long && hourly >= 0.55) || (!long && hourly <= 0.45)
		if weeklyReverted || cascadeDone {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.75}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	if len(ctx.Portfolio.Positions) >= crossMaxPositions {
		return Hold("cascade book full at three positions")
	}
	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	weeklyRegime, hasWeekly := ctx.CrossTF.Regimes["1w"]
	dailyRegime, hasDaily := ctx.CrossTF.Regimes["1d"]

	for _, e := range ctx.Rankings {
		if _, open := ctx.Portfolio.HasPosition(e.Symbol); open {
			continue
		}
		weekly, ok1 := ctx.CrossTF.ScoreAt(e.Symbol, "1w")
		daily, ok2 := ctx.CrossTF.ScoreAt(e.Symbol, "1d")
		if !ok1 || !ok2 {
			continue
		}
		shorter, okShort := ctx.CrossTF.ScoreAt(e.Symbol, "4h")
		if !okShort {
			shorter, okShort = ctx.CrossTF.ScoreAt(e.Symbol, "1h")
		}
		if !okShort {
			continue
		}

		var dir ActionType
		switch {
		case weekly >= 0.60 && daily >= 0.55 && shorter <= 0.50:
			dir = ActionOpenLong
		case weekly <= 0.40 && daily <= 0.45 && shorter >= 0.50:
			dir = ActionOpenShort
		default:
			continue
		}

		long := dir == ActionOpenLong
		confidence := 0.65
		if hasWeekly && hasDaily {
			opposed := (long && (weeklyRegime.Bearish() || dailyRegime.Bearish())) ||
				(!long && (weeklyRegime.Bullish() || dailyRegime.Bullish()))
			if opposed {
				continue
			}
			aligned := (long && weeklyRegime.Bullish() && dailyRegime.Bullish()) ||
				(!long && weeklyRegime.Bearish() && dailyRegime.Bearish())
			if aligned {
				confidence = 0.85
			}
		}

		act := Action{
			Type:          dir,
			Symbol:        e.Symbol,
			SizePct:       0.12,
			StopLossPct:   0.06,
			TakeProfitPct: 0.10,
			Confidence:    confidence,
		}
		act.Reasoning = s.GenerateReasoning(ctx, act)
		return act
	}

	return Hold("no cascading strength found")
}

func (s *CrossCascade) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Cascade closed on %s: weekly reverted or the hourly caught up.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Cascade long on %s: weekly at 0.60+, daily confirming, intraday not yet caught up. Sizing 12%% with 6%% stop, 10%% target.", act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Cascade short on %s: weakness flowing down from the weekly into the daily ahead of intraday. Sizing 12%% with 6%% stop, 10%% target.", act.Symbol)
	}
	return "No strength cascading down the timeframe stack."
}

// CrossRegime only trades when the higher timeframe is in a confident trend,
// then picks the symbol with the broadest aligned agreement.
type CrossRegime struct{}

func (s *CrossRegime) Name() string { return "cross_regime" }

func (s *CrossRegime) Decide(ctx *Context) Action {
	if ctx.CrossTF == nil {
		return Hold("no cross-timeframe data available")
	}

	regime, hasRegime := higherRegime(ctx)

	// Positions opened in a trend are closed when the trend is no longer
	// confidently in place.
	if len(ctx.Portfolio.Positions) > 0 {
		trendGone := !hasRegime || regime.Confidence < 60 ||
			(!regime.Bullish() && !regime.Bearish())
		for _, pos := range ctx.Portfolio.Positions {
			opposed := hasRegime &&
				((pos.Direction == "long" && regime.Bearish()) ||
					(pos.Direction == "short" && regime.Bullish()))
			if trendGone || opposed {
				act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.8}
				act.Reasoning = s.GenerateReasoning(ctx, act)
				return act
			}
		}
	}

	if !hasRegime || regime.Confidence < 60 || (!regime.Bullish() && !regime.Bearish()) {
		return Hold("higher timeframe not in a confident trend")
	}
	if len(ctx.Portfolio.Positions) >= crossMaxPositions {
		return Hold("regime book full at three positions")
	}
	if !ctx.Portfolio.CanOpen() {
		return Hold("position cap reached or no cash available")
	}

	long := regime.Bullish()
	bestSymbol := ""
	bestAvg := 0.0
	for symbol, tfScores := range ctx.CrossTF.Scores {
		if _, open := ctx.Portfolio.HasPosition(symbol); open {
			continue
		}
		aligned := 0
		sum := 0.0
		for _, v := range tfScores {
			if (long && v > 0.60) || (!long && v < 0.40) {
				aligned++
			}
			sum += v
		}
		if aligned < 3 || len(tfScores) == 0 {
			continue
		}
		avg := sum / float64(len(tfScores))
		better := (long && avg > bestAvg) || (!long && (bestSymbol == "" || avg < bestAvg))
		if bestSymbol == "" || better {
			bestSymbol, bestAvg = symbol, avg
		}
	}
	if bestSymbol == "" {
		return Hold("no symbol aligned with the regime on three timeframes")
	}

	dir := ActionOpenLong
	if !long {
		dir = ActionOpenShort
	}
	act := Action{
		Type:    dir,
		Symbol:  bestSymbol,
		SizePct: 0.15,
		// The 5% stop is the hard risk limit, independent of regime.
		StopLossPct:   0.05,
		TakeProfitPct: 0.10,
		Confidence:    float64(regime.Confidence) / 100,
	}
	act.Reasoning = s.GenerateReasoning(ctx, act)
	return act
}

func (s *CrossRegime) GenerateReasoning(ctx *Context, act Action) string {
	switch act.Type {
	case ActionClose:
		return fmt.Sprintf("Regime exit on %s: the higher-timeframe trend is no longer confidently in place.", act.Symbol)
	case ActionOpenLong:
		return fmt.Sprintf("Regime long on %s: confident higher-timeframe bull trend with three or more aligned timeframes. Sizing 15%% with a hard 5%% stop, 10%% target.", act.Symbol)
	case ActionOpenShort:
		return fmt.Sprintf("Regime short on %s: confident higher-timeframe bear trend with broad alignment. Sizing 15%% with a hard 5%% stop, 10%% target.", act.Symbol)
	}
	return "Higher-timeframe regime does not support trading this cycle."
}
