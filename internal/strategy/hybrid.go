package strategy

import (
	"fmt"
	"math"
)

// Hybrid wraps a technical strategy with a tweet overlay. Aligned chatter
// boosts size, opposed chatter halves it or vetoes the entry, and a pile of
// strong opposing signals accelerates the exit. Without a tweet context the
// wrapper is a pass-through.
type Hybrid struct {
	Technical Strategy
}

const (
	hybridBoostFactor   = 1.25
	hybridSizeCap       = 0.25
	hybridAlignedMin    = 0.3
	hybridVetoMin       = 0.6
	reversalSignalCount = 3
	reversalSentiment   = 0.5
)

func (s *Hybrid) Name() string { return "hybrid_" + s.Technical.Name() }

func (s *Hybrid) Decide(ctx *Context) Action {
	if ctx.Tweets == nil {
		return s.Technical.Decide(ctx)
	}

	// Reversal check before anything else: a burst of strong opposing
	// signals closes the position without waiting for the technical exit.
	for _, pos := range ctx.Portfolio.Positions {
		if s.reversalAgainst(ctx, pos) {
			act := Action{Type: ActionClose, Symbol: pos.Symbol, Confidence: 0.85}
			act.Reasoning = s.GenerateReasoning(ctx, act)
			return act
		}
	}

	act := s.Technical.Decide(ctx)
	if act.Type != ActionOpenLong && act.Type != ActionOpenShort {
		return act
	}

	sentiment, count := symbolSentiment(ctx.Tweets, act.Symbol, nil)
	if count == 0 {
		return act
	}

	long := act.Type == ActionOpenLong
	aligned := (long && sentiment >= hybridAlignedMin) || (!long && sentiment <= -hybridAlignedMin)
	opposed := (long && sentiment <= -hybridAlignedMin) || (!long && sentiment >= hybridAlignedMin)

	switch {
	case aligned:
		act.SizePct = math.Min(act.SizePct*hybridBoostFactor, hybridSizeCap)
		act.Confidence = math.Min(act.Confidence+0.1, 1)
		act.Reasoning += fmt.Sprintf(" Tweet boost: sentiment %.2f agrees, size raised to %.0f%%.",
			sentiment, act.SizePct*100)
	case opposed && math.Abs(sentiment) >= hybridVetoMin:
		hold := Hold(fmt.Sprintf("entry on %s vetoed by opposing sentiment %.2f", act.Symbol, sentiment))
		hold.Reasoning = summarize(act.Reasoning) + " " + hold.Reasoning
		return hold
	case opposed:
		act.SizePct /= 2
		act.Confidence = math.Max(act.Confidence-0.15, 0)
		act.Reasoning += fmt.Sprintf(" Tweet conflict: sentiment %.2f disagrees, size halved to %.1f%%.",
			sentiment, act.SizePct*100)
	}
	return act
}

// reversalAgainst reports whether at least three strong signals oppose the
// position's direction.
func (s *Hybrid) reversalAgainst(ctx *Context, pos PositionView) bool {
	opposing := 0
	for _, sig := range ctx.Tweets.SignalsFor(pos.Symbol) {
		if math.Abs(sig.Sentiment) < reversalSentiment {
			continue
		}
		if (pos.Direction == "long" && sig.Sentiment < 0) ||
			(pos.Direction == "short" && sig.Sentiment > 0) {
			opposing++
		}
	}
	return opposing >= reversalSignalCount
}

func (s *Hybrid) GenerateReasoning(ctx *Context, act Action) string {
	if act.Type == ActionClose {
		return fmt.Sprintf("Tweet reversal on %s: three or more strong opposing signals, exiting ahead of the technical trigger.", act.Symbol)
	}
	return s.Technical.GenerateReasoning(ctx, act)
}
