package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// momentumLongRaw satisfies every momentum long gate
func momentumLongRaw() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"rsi_14":       {"rsi": 60},
		"macd_12_26_9": {"macd": 2, "signal": 1.5, "histogram": 0.5},
		"adx_14":       {"adx": 30, "plus_di": 30, "minus_di": 10},
		"ema_20":       {"pct_diff": 1.5},
		"ema_50":       {"pct_diff": 2},
		"ema_200":      {"pct_diff": 5},
		"obv":          {"obv": 1000, "slope": 1.5},
	}
}

func TestMomentumLongEntry(t *testing.T) {
	s := &Momentum{}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("BTCUSDT", 0.75, 80, momentumLongRaw())},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, "BTCUSDT", act.Symbol)
	assert.Equal(t, 0.15, act.SizePct) // confidence 80 earns full size
	assert.Equal(t, 0.04, act.StopLossPct)
	assert.Equal(t, 0.06, act.TakeProfitPct)
	assert.InDelta(t, 0.8, act.Confidence, 1e-9)
	assert.NotEmpty(t, act.Reasoning)
}

func TestMomentumSmallerSizeBelowConfidence(t *testing.T) {
	s := &Momentum{}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("BTCUSDT", 0.75, 65, momentumLongRaw())},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, 0.08, act.SizePct)
}

func TestMomentumGateBlocked(t *testing.T) {
	s := &Momentum{}

	blocked := []func(raw map[string]map[string]float64){
		func(raw map[string]map[string]float64) { raw["rsi_14"]["rsi"] = 75 },            // RSI too hot
		func(raw map[string]map[string]float64) { raw["macd_12_26_9"]["histogram"] = -1 }, // histogram negative
		func(raw map[string]map[string]float64) { raw["adx_14"]["adx"] = 20 },            // no trend strength
		func(raw map[string]map[string]float64) { raw["ema_200"]["pct_diff"] = -1 },      // below the long EMA
		func(raw map[string]map[string]float64) { raw["obv"]["slope"] = -0.5 },           // volume not behind it
	}

	for i, mutate := range blocked {
		raw := momentumLongRaw()
		mutate(raw)
		ctx := &Context{
			Portfolio: openPortfolio(),
			Rankings:  []Entry{entryWith("BTCUSDT", 0.75, 80, raw)},
		}
		assert.Equal(t, ActionHold, s.Decide(ctx).Type, "case %d should hold", i)
	}
}

func TestMomentumLowScoreHolds(t *testing.T) {
	s := &Momentum{}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("BTCUSDT", 0.55, 80, momentumLongRaw())},
	}
	assert.Equal(t, ActionHold, s.Decide(ctx).Type)
}

func TestMomentumShortEntry(t *testing.T) {
	s := &Momentum{}
	raw := map[string]map[string]float64{
		"rsi_14":       {"rsi": 40},
		"macd_12_26_9": {"macd": -2, "signal": -1.5, "histogram": -0.5},
		"adx_14":       {"adx": 30, "plus_di": 10, "minus_di": 30},
		"ema_20":       {"pct_diff": -1.5},
		"ema_50":       {"pct_diff": -2},
		"ema_200":      {"pct_diff": -5},
		"obv":          {"obv": 1000, "slope": -1.5},
	}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("ETHUSDT", 0.25, 70, raw)},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionOpenShort, act.Type)
	assert.Equal(t, "ETHUSDT", act.Symbol)
}

func TestMomentumExitsBeforeEntries(t *testing.T) {
	s := &Momentum{}

	// The open position is exhausted while a fresh entry qualifies; the exit
	// must win.
	exhausted := momentumLongRaw()
	exhausted["rsi_14"]["rsi"] = 78

	pf := openPortfolio()
	pf.Positions = []PositionView{{Symbol: "BTCUSDT", Direction: "long"}}

	ctx := &Context{
		Portfolio: pf,
		Rankings: []Entry{
			entryWith("BTCUSDT", 0.75, 80, exhausted),
			entryWith("ETHUSDT", 0.75, 80, momentumLongRaw()),
		},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionClose, act.Type)
	assert.Equal(t, "BTCUSDT", act.Symbol)
	assert.InDelta(t, 0.8, act.Confidence, 1e-9)
}

func TestMomentumExitOnLostEMA20(t *testing.T) {
	s := &Momentum{}
	raw := momentumLongRaw()
	raw["ema_20"]["pct_diff"] = -0.5

	pf := openPortfolio()
	pf.Positions = []PositionView{{Symbol: "BTCUSDT", Direction: "long"}}

	ctx := &Context{
		Portfolio: pf,
		Rankings:  []Entry{entryWith("BTCUSDT", 0.75, 80, raw)},
	}
	assert.Equal(t, ActionClose, s.Decide(ctx).Type)
}

func TestMomentumHoldsAtCap(t *testing.T) {
	s := &Momentum{}
	pf := openPortfolio()
	pf.MaxPositions = 1
	pf.Positions = []PositionView{{Symbol: "SOLUSDT", Direction: "long"}}

	ctx := &Context{
		Portfolio: pf,
		Rankings:  []Entry{entryWith("BTCUSDT", 0.75, 80, momentumLongRaw())},
	}
	assert.Equal(t, ActionHold, s.Decide(ctx).Type)
}

func TestMomentumSkipsHeldSymbol(t *testing.T) {
	s := &Momentum{}
	pf := openPortfolio()
	// Held position with healthy signals so the exit pass stays quiet
	pf.Positions = []PositionView{{Symbol: "BTCUSDT", Direction: "long"}}

	ctx := &Context{
		Portfolio: pf,
		Rankings: []Entry{
			entryWith("BTCUSDT", 0.75, 80, momentumLongRaw()),
			entryWith("ETHUSDT", 0.75, 80, momentumLongRaw()),
		},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, "ETHUSDT", act.Symbol)
}
