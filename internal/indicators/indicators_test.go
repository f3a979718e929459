package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facubara/alphaboard/internal/exchange"
)

// syntheticCandles builds a gently oscillating uptrend so every indicator
// with enough rows produces finite values.
func syntheticCandles(n int) []exchange.Candle {
	candles := make([]exchange.Candle, n)
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		base := 100 + float64(i)*0.5 + 3*math.Sin(float64(i)/4)
		candles[i] = exchange.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      base - 0.2,
			High:      base + 1.0,
			Low:       base - 1.0,
			Close:     base,
			Volume:    1000 + 50*math.Sin(float64(i)/3),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return candles
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		signal   float64
		label    string
		strength string
	}{
		{"nan is neutral weak", math.NaN(), LabelNeutral, StrengthWeak},
		{"zero is neutral weak", 0, LabelNeutral, StrengthWeak},
		{"inside neutral band", 0.05, LabelNeutral, StrengthWeak},
		{"neutral band boundary", 0.1, LabelNeutral, StrengthWeak},
		{"weak bullish", 0.15, LabelBullish, StrengthWeak},
		{"weak bearish", -0.15, LabelBearish, StrengthWeak},
		{"moderate boundary", 0.2, LabelBullish, StrengthModerate},
		{"moderate bearish", -0.45, LabelBearish, StrengthModerate},
		{"strong boundary", 0.6, LabelBullish, StrengthStrong},
		{"strong bearish", -0.95, LabelBearish, StrengthStrong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, strength := Classify(tt.signal)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.strength, strength)
		})
	}
}

func TestNormalizeRSI(t *testing.T) {
	cfg := map[string]float64{"oversold": 30, "overbought": 70}

	tests := []struct {
		rsi      float64
		expected float64
	}{
		{15, 0.5},          // (30-15)/30
		{0, 1},             // deepest oversold
		{80, -1.0 / 3},     // -(80-70)/30
		{100, -1},          // deepest overbought
		{50, 0},            // midpoint
		{40, 0.25},         // (50-40)/40
		{70, -0.5},         // boundary stays on the linear branch
	}
	for _, tt := range tests {
		got := normalizeRSI(map[string]float64{"rsi": tt.rsi}, cfg)
		assert.InDelta(t, tt.expected, got, 1e-9, "rsi=%v", tt.rsi)
	}

	assert.True(t, math.IsNaN(normalizeRSI(map[string]float64{"rsi": math.NaN()}, cfg)))
}

func TestNormalizeMACD(t *testing.T) {
	cfg := map[string]float64{}

	assert.InDelta(t, 0.5, normalizeMACD(map[string]float64{"macd": 2, "histogram": 1}, cfg), 1e-9)
	assert.InDelta(t, 0.5, normalizeMACD(map[string]float64{"macd": -2, "histogram": 1}, cfg), 1e-9)
	assert.InDelta(t, -1, normalizeMACD(map[string]float64{"macd": 1, "histogram": -5}, cfg), 1e-9)
	assert.InDelta(t, 0, normalizeMACD(map[string]float64{"macd": 0, "histogram": 0}, cfg), 1e-9)
	assert.InDelta(t, 1, normalizeMACD(map[string]float64{"macd": 0, "histogram": 3}, cfg), 1e-9)
	assert.InDelta(t, -1, normalizeMACD(map[string]float64{"macd": 0, "histogram": -3}, cfg), 1e-9)
	assert.True(t, math.IsNaN(normalizeMACD(map[string]float64{"macd": math.NaN(), "histogram": 0}, cfg)))
}

func TestNormalizeStochastic(t *testing.T) {
	cfg := map[string]float64{"oversold": 20, "overbought": 80}

	// Oversold level with no crossover boost
	assert.InDelta(t, 0.5, normalizeStochastic(map[string]float64{"k": 10, "d": 10}, cfg), 1e-9)
	// Overbought level partially offset by a bullish K over D boost
	assert.InDelta(t, -0.25, normalizeStochastic(map[string]float64{"k": 90, "d": 85}, cfg), 1e-9)
	// Midpoint is flat
	assert.InDelta(t, 0, normalizeStochastic(map[string]float64{"k": 50, "d": 50}, cfg), 1e-9)
	// Crossover boost clips at 0.3
	assert.InDelta(t, 0.3, normalizeStochastic(map[string]float64{"k": 50, "d": 10}, cfg), 1e-9)
	assert.True(t, math.IsNaN(normalizeStochastic(map[string]float64{"k": math.NaN(), "d": 50}, cfg)))
}

func TestNormalizeADX(t *testing.T) {
	cfg := map[string]float64{"trend_threshold": 25}

	// Below threshold: strength scales linearly to 0.5
	got := normalizeADX(map[string]float64{"adx": 12.5, "plus_di": 30, "minus_di": 10}, cfg)
	assert.InDelta(t, 0.25, got, 1e-9)

	// At threshold with full separation
	got = normalizeADX(map[string]float64{"adx": 25, "plus_di": 10, "minus_di": 30}, cfg)
	assert.InDelta(t, -0.5, got, 1e-9)

	// Above threshold, separation attenuates the signal
	got = normalizeADX(map[string]float64{"adx": 62.5, "plus_di": 40, "minus_di": 20}, cfg)
	// strength = 0.5 + 37.5/75*0.5 = 0.75, separation = 2*20/60
	assert.InDelta(t, 0.75*(40.0/60), got, 1e-9)

	// Equal DI lines carry no direction
	got = normalizeADX(map[string]float64{"adx": 50, "plus_di": 25, "minus_di": 25}, cfg)
	assert.InDelta(t, 0, got, 1e-9)

	assert.True(t, math.IsNaN(normalizeADX(map[string]float64{"adx": math.NaN(), "plus_di": 1, "minus_di": 1}, cfg)))
}

func TestNormalizeEMA(t *testing.T) {
	cfg := map[string]float64{"neutral_pct": 1.0}

	tests := []struct {
		pct      float64
		expected float64
	}{
		{0, 0},
		{0.5, 0.15},  // half the neutral zone
		{1.0, 0.3},   // neutral boundary
		{2.5, 0.65},  // 0.3 + 1.5/3*0.7
		{-4, -1},     // full extension
		{10, 1},      // clipped
	}
	for _, tt := range tests {
		got := normalizeEMA(map[string]float64{"pct_diff": tt.pct}, cfg)
		assert.InDelta(t, tt.expected, got, 1e-9, "pct=%v", tt.pct)
	}

	assert.True(t, math.IsNaN(normalizeEMA(map[string]float64{"pct_diff": math.NaN()}, cfg)))
}

func TestNormalizeBollinger(t *testing.T) {
	cfg := map[string]float64{}

	tests := []struct {
		pb       float64
		expected float64
	}{
		{0.5, 0},
		{0, 0.8},     // at the lower band
		{1, -0.8},    // at the upper band
		{0.25, 0.4},  // linear interior
		{-0.1, 0.9},  // below the lower band
		{-0.5, 1},    // clipped
		{1.1, -0.9},  // above the upper band
		{1.5, -1},    // clipped
	}
	for _, tt := range tests {
		got := normalizeBollinger(map[string]float64{"percent_b": tt.pb}, cfg)
		assert.InDelta(t, tt.expected, got, 1e-9, "pb=%v", tt.pb)
	}

	assert.True(t, math.IsNaN(normalizeBollinger(map[string]float64{"percent_b": math.NaN()}, cfg)))
}

func TestNormalizeOBV(t *testing.T) {
	cfg := map[string]float64{}

	assert.InDelta(t, 0.5, normalizeOBV(map[string]float64{"slope": 2.5}, cfg), 1e-9)
	assert.InDelta(t, -1, normalizeOBV(map[string]float64{"slope": -10}, cfg), 1e-9)
	assert.InDelta(t, 1, normalizeOBV(map[string]float64{"slope": 8}, cfg), 1e-9)
	assert.True(t, math.IsNaN(normalizeOBV(map[string]float64{"slope": math.NaN()}, cfg)))
}

func TestSMA(t *testing.T) {
	assert.Equal(t, []float64{2, 3, 4}, sma([]float64{1, 2, 3, 4, 5}, 3))
	assert.Nil(t, sma([]float64{1, 2}, 3))
	assert.Nil(t, sma([]float64{1, 2}, 0))
}

func TestSmoothWilder(t *testing.T) {
	data := []float64{2, 4, 6, 8}
	out := smoothWilder(data, 2)

	require.Len(t, out, 4)
	assert.InDelta(t, 3, out[1], 1e-9)             // seed average
	assert.InDelta(t, (3+6)/2.0, out[2], 1e-9)     // (prev*(p-1)+x)/p
	assert.InDelta(t, (4.5+8)/2.0, out[3], 1e-9)
}

func TestComputeAllFullWindow(t *testing.T) {
	w := NewWindow(syntheticCandles(250))
	outputs := ComputeAll(w)

	require.Len(t, outputs, ExpectedCount())

	for _, def := range Registry() {
		out, ok := outputs[def.Name]
		require.True(t, ok, "missing output for %s", def.Name)
		assert.Equal(t, def.Weight, out.Weight)
		assert.Equal(t, def.Category, out.Category)
		assert.False(t, math.IsNaN(out.Signal), "%s should have data at 250 rows", def.Name)
		assert.GreaterOrEqual(t, out.Signal, -1.0, def.Name)
		assert.LessOrEqual(t, out.Signal, 1.0, def.Name)

		// The raw bundle shape is stable per indicator
		for _, field := range rawFields[def.Name] {
			_, present := out.Raw[field]
			assert.True(t, present, "%s missing raw field %s", def.Name, field)
		}
	}
}

func TestComputeAllShortWindow(t *testing.T) {
	// 50 rows satisfies the fast indicators but not ema_200
	w := NewWindow(syntheticCandles(50))
	outputs := ComputeAll(w)

	require.Len(t, outputs, ExpectedCount())

	ema200 := outputs["ema_200"]
	assert.True(t, math.IsNaN(ema200.Signal))
	assert.Equal(t, LabelNeutral, ema200.Label)
	assert.Equal(t, StrengthWeak, ema200.Strength)
	require.Len(t, ema200.Raw, 3)
	for field, v := range ema200.Raw {
		assert.True(t, math.IsNaN(v), "ema_200 raw %s should be NaN", field)
	}

	rsi := outputs["rsi_14"]
	assert.False(t, math.IsNaN(rsi.Signal))
}

func TestComputeAllEmptyWindow(t *testing.T) {
	outputs := ComputeAll(NewWindow(nil))

	require.Len(t, outputs, ExpectedCount())
	for name, out := range outputs {
		assert.True(t, math.IsNaN(out.Signal), "%s should be NaN on empty input", name)
		assert.Equal(t, LabelNeutral, out.Label)
		require.Len(t, out.Raw, len(rawFields[name]))
	}
}

func TestComputeStochasticFlatRange(t *testing.T) {
	// A flat series pins raw %K at 50
	n := 30
	w := Window{
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		w.High[i] = 100
		w.Low[i] = 100
		w.Close[i] = 100
	}

	raw := computeStochastic(w, map[string]float64{"k": 14, "d": 3, "smooth": 3})
	require.NotNil(t, raw)
	assert.InDelta(t, 50, raw["k"], 1e-9)
	assert.InDelta(t, 50, raw["d"], 1e-9)
}

func TestComputeADXInsufficientRows(t *testing.T) {
	w := NewWindow(syntheticCandles(20))
	assert.Nil(t, computeADX(w, map[string]float64{"period": 14, "trend_threshold": 25}))
}

func TestComputeBollingerBandOrder(t *testing.T) {
	w := NewWindow(syntheticCandles(60))
	raw := computeBollinger(w, map[string]float64{"period": 20})
	require.NotNil(t, raw)

	assert.Greater(t, raw["upper"], raw["middle"])
	assert.Greater(t, raw["middle"], raw["lower"])
	assert.Greater(t, raw["bandwidth"], 0.0)

	// The series trends up, so the last close sits in the upper band half
	require.False(t, math.IsNaN(raw["percent_b"]))
	assert.Greater(t, raw["percent_b"], 0.5)

	price := w.Close[w.Len()-1]
	wantPB := (price - raw["lower"]) / (raw["upper"] - raw["lower"])
	assert.InDelta(t, wantPB, raw["percent_b"], 1e-9)
}

func TestComputeOBVCumulative(t *testing.T) {
	window := func(closes, volumes []float64) Window {
		return Window{
			High:   closes,
			Low:    closes,
			Close:  closes,
			Volume: volumes,
		}
	}
	cfg := map[string]float64{"slope_period": 3}

	// Up, down, up from a zero seed: +20 - 30 + 40
	raw := computeOBV(window(
		[]float64{100, 102, 101, 103},
		[]float64{10, 20, 30, 40},
	), cfg)
	require.NotNil(t, raw)
	assert.InDelta(t, 30, raw["obv"], 1e-9)

	// Unchanged closes leave OBV untouched
	raw = computeOBV(window(
		[]float64{100, 100, 100, 100},
		[]float64{10, 20, 30, 40},
	), cfg)
	require.NotNil(t, raw)
	assert.InDelta(t, 0, raw["obv"], 1e-9)
	assert.InDelta(t, 0, raw["slope"], 1e-9)
}

func TestComputeOBVSlopeSign(t *testing.T) {
	n := 60
	rising := make([]float64, n)
	falling := make([]float64, n)
	volume := make([]float64, n)
	for i := 0; i < n; i++ {
		rising[i] = 100 + float64(i)
		falling[i] = 200 - float64(i)
		volume[i] = 1000
	}
	cfg := map[string]float64{"slope_period": 10}

	raw := computeOBV(Window{High: rising, Low: rising, Close: rising, Volume: volume}, cfg)
	require.NotNil(t, raw)
	assert.InDelta(t, float64(n-1)*1000, raw["obv"], 1e-9)
	assert.Greater(t, raw["slope"], 0.0)

	raw = computeOBV(Window{High: falling, Low: falling, Close: falling, Volume: volume}, cfg)
	require.NotNil(t, raw)
	assert.InDelta(t, -float64(n-1)*1000, raw["obv"], 1e-9)
	assert.Less(t, raw["slope"], 0.0)
}
