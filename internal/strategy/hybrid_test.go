package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStrategy returns a fixed action, standing in for any technical engine
type stubStrategy struct {
	act Action
}

func (s *stubStrategy) Name() string { return "stub" }
func (s *stubStrategy) Decide(*Context) Action { return s.act }
func (s *stubStrategy) GenerateReasoning(ctx *Context, act Action) string {
	return "stub reasoning"
}

func stubOpen(symbol string, size, confidence float64) *stubStrategy {
	return &stubStrategy{act: Action{
		Type:       ActionOpenLong,
		Symbol:     symbol,
		SizePct:    size,
		Confidence: confidence,
		Reasoning:  "Technical entry. More detail here.",
	}}
}

func tweetsWith(symbol string, sentiments ...float64) *TweetContext {
	tc := &TweetContext{}
	for _, v := range sentiments {
		tc.Signals = append(tc.Signals, TweetSignal{Symbol: symbol, Sentiment: v})
	}
	return tc
}

func TestHybridName(t *testing.T) {
	h := &Hybrid{Technical: &Momentum{}}
	assert.Equal(t, "hybrid_momentum", h.Name())
}

func TestHybridPassthroughWithoutTweets(t *testing.T) {
	h := &Hybrid{Technical: stubOpen("BTCUSDT", 0.15, 0.7)}
	act := h.Decide(&Context{Portfolio: openPortfolio()})

	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, 0.15, act.SizePct)
	assert.Equal(t, 0.7, act.Confidence)
}

func TestHybridAlignedBoost(t *testing.T) {
	h := &Hybrid{Technical: stubOpen("BTCUSDT", 0.15, 0.7)}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Tweets:    tweetsWith("BTCUSDT", 0.5, 0.5),
	}

	act := h.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.InDelta(t, 0.1875, act.SizePct, 1e-9) // 0.15 * 1.25
	assert.InDelta(t, 0.8, act.Confidence, 1e-9)
	assert.Contains(t, act.Reasoning, "Tweet boost")
}

func TestHybridBoostRespectsSizeCap(t *testing.T) {
	h := &Hybrid{Technical: stubOpen("BTCUSDT", 0.22, 0.7)}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Tweets:    tweetsWith("BTCUSDT", 0.6),
	}

	act := h.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.InDelta(t, 0.25, act.SizePct, 1e-9)
}

func TestHybridVetoOnStrongOpposition(t *testing.T) {
	h := &Hybrid{Technical: stubOpen("BTCUSDT", 0.15, 0.7)}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Tweets:    tweetsWith("BTCUSDT", -0.7, -0.7),
	}

	act := h.Decide(ctx)
	require.Equal(t, ActionHold, act.Type)
	assert.Contains(t, act.Reasoning, "vetoed")
	// The technical entry's first sentence survives in the reasoning
	assert.Contains(t, act.Reasoning, "Technical entry.")
}

func TestHybridHalvesOnMildOpposition(t *testing.T) {
	h := &Hybrid{Technical: stubOpen("BTCUSDT", 0.15, 0.7)}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Tweets:    tweetsWith("BTCUSDT", -0.4),
	}

	act := h.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.InDelta(t, 0.075, act.SizePct, 1e-9)
	assert.InDelta(t, 0.55, act.Confidence, 1e-9)
	assert.Contains(t, act.Reasoning, "Tweet conflict")
}

func TestHybridNeutralSentimentUnchanged(t *testing.T) {
	h := &Hybrid{Technical: stubOpen("BTCUSDT", 0.15, 0.7)}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Tweets:    tweetsWith("BTCUSDT", 0.1),
	}

	act := h.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, 0.15, act.SizePct)
	assert.Equal(t, 0.7, act.Confidence)
}

func TestHybridNoMentionsUnchanged(t *testing.T) {
	h := &Hybrid{Technical: stubOpen("BTCUSDT", 0.15, 0.7)}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Tweets:    tweetsWith("ETHUSDT", -0.9),
	}

	act := h.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, 0.15, act.SizePct)
}

func TestHybridReversalClosesFirst(t *testing.T) {
	// The technical side would open a fresh position, but three strong
	// opposing signals on the held one force the exit first.
	h := &Hybrid{Technical: stubOpen("ETHUSDT", 0.15, 0.7)}

	pf := openPortfolio()
	pf.Positions = []PositionView{{Symbol: "BTCUSDT", Direction: "long"}}

	ctx := &Context{
		Portfolio: pf,
		Tweets:    tweetsWith("BTCUSDT", -0.6, -0.7, -0.8),
	}

	act := h.Decide(ctx)
	require.Equal(t, ActionClose, act.Type)
	assert.Equal(t, "BTCUSDT", act.Symbol)
	assert.InDelta(t, 0.85, act.Confidence, 1e-9)
}

func TestHybridReversalNeedsThreeStrongSignals(t *testing.T) {
	h := &Hybrid{Technical: &stubStrategy{act: Hold("quiet")}}

	pf := openPortfolio()
	pf.Positions = []PositionView{{Symbol: "BTCUSDT", Direction: "long"}}

	// Two strong plus one weak opposing signal is not enough
	ctx := &Context{
		Portfolio: pf,
		Tweets:    tweetsWith("BTCUSDT", -0.6, -0.7, -0.3),
	}
	assert.Equal(t, ActionHold, h.Decide(ctx).Type)
}

func TestHybridHoldPassesThrough(t *testing.T) {
	h := &Hybrid{Technical: &stubStrategy{act: Hold("no setup")}}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Tweets:    tweetsWith("BTCUSDT", 0.9, 0.9),
	}

	act := h.Decide(ctx)
	assert.Equal(t, ActionHold, act.Type)
	assert.Equal(t, "no setup", act.Reasoning)
}
