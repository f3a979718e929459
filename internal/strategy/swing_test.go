package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// swingLongRaw is a pullback inside a confirmed uptrend
func swingLongRaw() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"adx_14":       {"adx": 25, "plus_di": 28, "minus_di": 15},
		"rsi_14":       {"rsi": 45},
		"stoch_14_3_3": {"k": 40, "d": 35},
		"ema_50":       {"ema": 110, "pct_diff": 2},
		"ema_200":      {"ema": 100, "pct_diff": 5},
	}
}

func TestSwingLongEntry(t *testing.T) {
	s := &Swing{}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("BTCUSDT", 0.60, 72, swingLongRaw())},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, 0.20, act.SizePct) // confidence 72 earns full size
	assert.Equal(t, 0.04, act.StopLossPct)
	assert.Equal(t, 0.08, act.TakeProfitPct)
	assert.InDelta(t, 0.72, act.Confidence, 1e-9)
}

func TestSwingSmallerSizeBelowConfidence(t *testing.T) {
	s := &Swing{}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("BTCUSDT", 0.60, 66, swingLongRaw())},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionOpenLong, act.Type)
	assert.Equal(t, 0.12, act.SizePct)
}

func TestSwingRequiresTrendStrength(t *testing.T) {
	s := &Swing{}
	raw := swingLongRaw()
	raw["adx_14"]["adx"] = 15

	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("BTCUSDT", 0.60, 72, raw)},
	}
	assert.Equal(t, ActionHold, s.Decide(ctx).Type)
}

func TestSwingRequiresGoldenAlignment(t *testing.T) {
	s := &Swing{}
	raw := swingLongRaw()
	raw["ema_50"]["ema"] = 95 // EMA50 under EMA200 breaks the alignment

	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("BTCUSDT", 0.60, 72, raw)},
	}
	assert.Equal(t, ActionHold, s.Decide(ctx).Type)
}

func TestSwingShortEntry(t *testing.T) {
	s := &Swing{}
	raw := map[string]map[string]float64{
		"adx_14":       {"adx": 25, "plus_di": 15, "minus_di": 28},
		"rsi_14":       {"rsi": 50},
		"stoch_14_3_3": {"k": 60, "d": 65},
		"ema_50":       {"ema": 95, "pct_diff": -2},
		"ema_200":      {"ema": 100, "pct_diff": -5},
	}
	ctx := &Context{
		Portfolio: openPortfolio(),
		Rankings:  []Entry{entryWith("ETHUSDT", 0.40, 70, raw)},
	}
	assert.Equal(t, ActionOpenShort, s.Decide(ctx).Type)
}

func TestSwingExitAtTarget(t *testing.T) {
	s := &Swing{}
	raw := swingLongRaw()
	raw["rsi_14"]["rsi"] = 71

	pf := openPortfolio()
	pf.Positions = []PositionView{{Symbol: "BTCUSDT", Direction: "long"}}

	ctx := &Context{
		Portfolio: pf,
		Rankings:  []Entry{entryWith("BTCUSDT", 0.60, 72, raw)},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionClose, act.Type)
	assert.InDelta(t, 0.75, act.Confidence, 1e-9)
}

func TestSwingExitOnTrendBreak(t *testing.T) {
	s := &Swing{}
	raw := swingLongRaw()
	raw["ema_200"]["pct_diff"] = -1 // price lost the long EMA

	pf := openPortfolio()
	pf.Positions = []PositionView{{Symbol: "BTCUSDT", Direction: "long"}}

	ctx := &Context{
		Portfolio: pf,
		Rankings:  []Entry{entryWith("BTCUSDT", 0.60, 72, raw)},
	}
	assert.Equal(t, ActionClose, s.Decide(ctx).Type)
}

func TestSwingBookFull(t *testing.T) {
	s := &Swing{}
	pf := openPortfolio()
	pf.Positions = []PositionView{
		{Symbol: "AUSDT", Direction: "long"},
		{Symbol: "BUSDT", Direction: "long"},
		{Symbol: "CUSDT", Direction: "long"},
	}

	ctx := &Context{
		Portfolio: pf,
		Rankings:  []Entry{entryWith("BTCUSDT", 0.60, 72, swingLongRaw())},
	}

	act := s.Decide(ctx)
	require.Equal(t, ActionHold, act.Type)
	assert.Contains(t, act.Reasoning, "full")
}
