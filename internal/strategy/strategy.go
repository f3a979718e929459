// Package strategy implements the deterministic rule-based decision engine.
// A strategy is a pure function of a Context returning an Action; strategies
// never mutate portfolio state.
package strategy

import (
	"fmt"
	"strings"
	"time"

	"github.com/facubara/alphaboard/internal/scoring"
)

// ActionType enumerates what an agent can do in one cycle
type ActionType string

const (
	ActionOpenLong  ActionType = "open_long"
	ActionOpenShort ActionType = "open_short"
	ActionClose     ActionType = "close"
	ActionHold      ActionType = "hold"
)

// Action is the decision a strategy emits for one cycle
type Action struct {
	Type          ActionType `json:"action"`
	Symbol        string     `json:"symbol,omitempty"`
	SizePct       float64    `json:"size_pct,omitempty"`        // fraction of equity
	StopLossPct   float64    `json:"stop_loss_pct,omitempty"`   // distance from entry
	TakeProfitPct float64    `json:"take_profit_pct,omitempty"` // distance from entry
	Confidence    float64    `json:"confidence"`                // [0, 1]
	Reasoning     string     `json:"-"`
}

// Hold builds a hold action with a reason
func Hold(reason string) Action {
	return Action{Type: ActionHold, Confidence: 0.5, Reasoning: reason}
}

// PositionView is the strategy-facing shape of an open position
type PositionView struct {
	Symbol        string
	Direction     string // long, short
	EntryPrice    float64
	Notional      float64
	UnrealizedPnL float64
	StopLoss      *float64
	TakeProfit    *float64
	OpenedAt      time.Time
}

// PortfolioView is the strategy-facing money state
type PortfolioView struct {
	Cash         float64
	Equity       float64
	Positions    []PositionView
	Available    float64 // cash available for one new position
	MaxPositions int     // archetype-specific cap
}

// HasPosition reports whether a symbol already has an open position
func (p PortfolioView) HasPosition(symbol string) (PositionView, bool) {
	for _, pos := range p.Positions {
		if pos.Symbol == symbol {
			return pos, true
		}
	}
	return PositionView{}, false
}

// CanOpen reports whether a new position is feasible at all
func (p PortfolioView) CanOpen() bool {
	return len(p.Positions) < p.MaxPositions && p.Available > 0
}

// PerformanceView summarizes the agent's closed-trade history
type PerformanceView struct {
	TotalTrades      int
	WinningTrades    int
	WinRate          float64
	TotalRealizedPnL float64
	MaxDrawdownPct   float64
	AvgDurationMins  float64
}

// Entry is one ranked symbol as the strategy sees it
type Entry struct {
	Symbol     string
	Bullish    float64
	Confidence int
	Rank       int
	Signals    map[string]scoring.SignalEntry
}

// Raw returns one raw indicator field, false when missing or null
func (e Entry) Raw(indicator, field string) (float64, bool) {
	sig, ok := e.Signals[indicator]
	if !ok {
		return 0, false
	}
	v, ok := sig.Raw[field]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// RegimeView is the persisted regime label for one timeframe
type RegimeView struct {
	Regime     string
	Confidence int
}

// Bullish reports whether the regime is a bull trend
func (r RegimeView) Bullish() bool { return r.Regime == "trending_bull" }

// Bearish reports whether the regime is a bear trend
func (r RegimeView) Bearish() bool { return r.Regime == "trending_bear" }

// CrossTF is the cross-timeframe bundle for cross-TF archetypes
type CrossTF struct {
	BullishConfluence []string                      // symbols with >= 3 TFs above 0.6
	BearishConfluence []string                      // symbols with >= 3 TFs below 0.4
	Scores            map[string]map[string]float64 // symbol -> timeframe -> bullish
	Regimes           map[string]RegimeView         // timeframe -> regime
}

// ScoreAt returns one symbol's score on one timeframe
func (c *CrossTF) ScoreAt(symbol, timeframe string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	tfScores, ok := c.Scores[symbol]
	if !ok {
		return 0, false
	}
	v, ok := tfScores[timeframe]
	return v, ok
}

// TweetSignal is one scored tweet-derived signal
type TweetSignal struct {
	Symbol    string
	Category  string // e.g. "alpha", "narrative", "insider", "founder"
	SetupType string
	Sentiment float64 // [-1, +1]
	Credible  bool
}

// TweetContext is the per-timeframe tweet bundle for tweet and hybrid sources
type TweetContext struct {
	AvgSentiment float64
	BullishCount int
	BearishCount int
	Signals      []TweetSignal
	TopSymbols   []string // most-mentioned, descending
}

// SignalsFor returns the tweet signals mentioning a symbol
func (t *TweetContext) SignalsFor(symbol string) []TweetSignal {
	if t == nil {
		return nil
	}
	var out []TweetSignal
	for _, s := range t.Signals {
		if s.Symbol == symbol {
			out = append(out, s)
		}
	}
	return out
}

// Context is the full input bundle one strategy invocation sees
type Context struct {
	AgentName   string
	Archetype   string
	Timeframe   string
	Portfolio   PortfolioView
	Performance PerformanceView
	Rankings    []Entry
	CrossTF     *CrossTF
	Prices      map[string]float64 // symbol -> current close
	Memory      []string           // opaque recent memory entries
	Tweets      *TweetContext      // nil unless source is tweet or hybrid
}

// EntryFor finds the ranking entry for a symbol
func (c *Context) EntryFor(symbol string) (Entry, bool) {
	for _, e := range c.Rankings {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return Entry{}, false
}

// Strategy is a deterministic decision function over a Context
type Strategy interface {
	Name() string
	Decide(ctx *Context) Action
	GenerateReasoning(ctx *Context, act Action) string
}

// ForAgent resolves the strategy for an agent. Cross-timeframe agents are
// matched by name; everything else dispatches on the archetype.
func ForAgent(archetype, agentName string) (Strategy, error) {
	switch archetype {
	case "momentum":
		return &Momentum{}, nil
	case "mean_reversion":
		return &MeanReversion{}, nil
	case "breakout":
		return &Breakout{}, nil
	case "swing":
		return &Swing{}, nil
	case "cross_confluence":
		return &CrossConfluence{}, nil
	case "cross_divergence":
		return &CrossDivergence{}, nil
	case "cross_cascade":
		return &CrossCascade{}, nil
	case "cross_regime":
		return &CrossRegime{}, nil
	case "tweet_momentum":
		return &TweetMomentum{}, nil
	case "tweet_contrarian":
		return &TweetContrarian{}, nil
	case "tweet_narrative":
		return &TweetNarrative{}, nil
	case "tweet_insider":
		return &TweetInsider{}, nil
	case "hybrid_momentum":
		return &Hybrid{Technical: &Momentum{}}, nil
	case "hybrid_mean_reversion":
		return &Hybrid{Technical: &MeanReversion{}}, nil
	case "hybrid_breakout":
		return &Hybrid{Technical: &Breakout{}}, nil
	case "hybrid_swing":
		return &Hybrid{Technical: &Swing{}}, nil
	}

	// Cross-TF agents may carry custom archetypes; fall back to the name
	name := strings.ToLower(agentName)
	switch {
	case strings.Contains(name, "confluence"):
		return &CrossConfluence{}, nil
	case strings.Contains(name, "divergence"):
		return &CrossDivergence{}, nil
	case strings.Contains(name, "cascade"):
		return &CrossCascade{}, nil
	case strings.Contains(name, "regime"):
		return &CrossRegime{}, nil
	}

	return nil, fmt.Errorf("no strategy for archetype %q (agent %q)", archetype, agentName)
}

// summarize produces the first sentence of a reasoning string
func summarize(reasoning string) string {
	if idx := strings.Index(reasoning, ". "); idx > 0 {
		return reasoning[:idx+1]
	}
	return reasoning
}
