// Package indicators hosts the fixed battery of technical indicators the
// pipeline computes for every symbol. Each indicator is a definition pairing
// a compute function over an OHLCV window with a normalize function that maps
// the raw values onto a signal in [-1, +1].
package indicators

import (
	"math"

	"github.com/facubara/alphaboard/internal/exchange"
)

// Category groups indicators by the kind of information they carry
type Category string

const (
	CategoryMomentum   Category = "momentum"
	CategoryTrend      Category = "trend"
	CategoryVolume     Category = "volume"
	CategoryVolatility Category = "volatility"
)

// Signal labels
const (
	LabelBullish = "bullish"
	LabelBearish = "bearish"
	LabelNeutral = "neutral"
)

// Signal strengths
const (
	StrengthStrong   = "strong"
	StrengthModerate = "moderate"
	StrengthWeak     = "weak"
)

// Window is the OHLCV input for a compute function, ascending by open time
type Window struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

// NewWindow builds a Window from candles
func NewWindow(candles []exchange.Candle) Window {
	w := Window{
		Open:   make([]float64, len(candles)),
		High:   make([]float64, len(candles)),
		Low:    make([]float64, len(candles)),
		Close:  make([]float64, len(candles)),
		Volume: make([]float64, len(candles)),
	}
	for i, c := range candles {
		w.Open[i] = c.Open
		w.High[i] = c.High
		w.Low[i] = c.Low
		w.Close[i] = c.Close
		w.Volume[i] = c.Volume
	}
	return w
}

// Len returns the number of rows in the window
func (w Window) Len() int { return len(w.Close) }

// Output is the computed result for one indicator
type Output struct {
	Signal   float64            `json:"signal"` // [-1, +1], NaN when data is insufficient
	Label    string             `json:"label"`
	Strength string             `json:"strength"`
	Raw      map[string]float64 `json:"raw"`
	Weight   float64            `json:"weight"`
	Category Category           `json:"category"`
}

// Definition describes one indicator in the registry
type Definition struct {
	Name        string
	DisplayName string
	Category    Category
	Weight      float64
	MinRows     int
	Config      map[string]float64
	Compute     func(w Window, cfg map[string]float64) map[string]float64
	Normalize   func(raw map[string]float64, cfg map[string]float64) float64
}

// Registry returns the default indicator set with its weights.
// The order carries no meaning; ComputeAll output is a map.
func Registry() []Definition {
	return []Definition{
		{
			Name: "rsi_14", DisplayName: "RSI (14)",
			Category: CategoryMomentum, Weight: 0.12, MinRows: 15,
			Config:  map[string]float64{"period": 14, "oversold": 30, "overbought": 70},
			Compute: computeRSI, Normalize: normalizeRSI,
		},
		{
			Name: "macd_12_26_9", DisplayName: "MACD (12/26/9)",
			Category: CategoryMomentum, Weight: 0.15, MinRows: 35,
			Config:  map[string]float64{"fast": 12, "slow": 26, "signal": 9},
			Compute: computeMACD, Normalize: normalizeMACD,
		},
		{
			Name: "stoch_14_3_3", DisplayName: "Stochastic (14/3/3)",
			Category: CategoryMomentum, Weight: 0.10, MinRows: 20,
			Config:  map[string]float64{"k": 14, "d": 3, "smooth": 3, "oversold": 20, "overbought": 80},
			Compute: computeStochastic, Normalize: normalizeStochastic,
		},
		{
			Name: "adx_14", DisplayName: "ADX (14)",
			Category: CategoryTrend, Weight: 0.13, MinRows: 28,
			Config:  map[string]float64{"period": 14, "trend_threshold": 25},
			Compute: computeADX, Normalize: normalizeADX,
		},
		{
			Name: "obv", DisplayName: "On-Balance Volume",
			Category: CategoryVolume, Weight: 0.12, MinRows: 11,
			Config:  map[string]float64{"slope_period": 10},
			Compute: computeOBV, Normalize: normalizeOBV,
		},
		{
			Name: "bbands_20_2", DisplayName: "Bollinger Bands (20/2)",
			Category: CategoryVolatility, Weight: 0.10, MinRows: 20,
			Config:  map[string]float64{"period": 20, "std": 2},
			Compute: computeBollinger, Normalize: normalizeBollinger,
		},
		{
			Name: "ema_20", DisplayName: "EMA (20)",
			Category: CategoryTrend, Weight: 0.08, MinRows: 20,
			Config:  map[string]float64{"period": 20, "neutral_pct": 0.5},
			Compute: computeEMA, Normalize: normalizeEMA,
		},
		{
			Name: "ema_50", DisplayName: "EMA (50)",
			Category: CategoryTrend, Weight: 0.10, MinRows: 50,
			Config:  map[string]float64{"period": 50, "neutral_pct": 1.0},
			Compute: computeEMA, Normalize: normalizeEMA,
		},
		{
			Name: "ema_200", DisplayName: "EMA (200)",
			Category: CategoryTrend, Weight: 0.10, MinRows: 200,
			Config:  map[string]float64{"period": 200, "neutral_pct": 1.5},
			Compute: computeEMA, Normalize: normalizeEMA,
		},
	}
}

// ExpectedCount is the number of indicators in the default registry
func ExpectedCount() int { return len(Registry()) }

// ComputeAll runs every registry indicator over the window. Indicators with
// insufficient rows produce all-NaN raw fields and a NaN signal.
func ComputeAll(w Window) map[string]Output {
	results := make(map[string]Output, ExpectedCount())
	for _, def := range Registry() {
		results[def.Name] = computeOne(def, w)
	}
	return results
}

func computeOne(def Definition, w Window) Output {
	var raw map[string]float64
	signal := math.NaN()

	if w.Len() >= def.MinRows {
		raw = def.Compute(w, def.Config)
		if raw != nil {
			signal = def.Normalize(raw, def.Config)
		}
	}
	if raw == nil {
		raw = nanRaw(def.Name)
	}

	label, strength := Classify(signal)
	return Output{
		Signal:   signal,
		Label:    label,
		Strength: strength,
		Raw:      raw,
		Weight:   def.Weight,
		Category: def.Category,
	}
}

// Classify maps a signal to its label and strength buckets.
// |signal| <= 0.1 is neutral; < 0.2 weak, < 0.6 moderate, else strong.
func Classify(signal float64) (label, strength string) {
	if math.IsNaN(signal) {
		return LabelNeutral, StrengthWeak
	}

	abs := math.Abs(signal)
	switch {
	case abs < 0.2:
		strength = StrengthWeak
	case abs < 0.6:
		strength = StrengthModerate
	default:
		strength = StrengthStrong
	}

	switch {
	case abs <= 0.1:
		label = LabelNeutral
	case signal > 0:
		label = LabelBullish
	default:
		label = LabelBearish
	}
	return label, strength
}

// nanRaw returns the indicator's raw field bundle with every field NaN, so
// downstream serialization always sees the same shape.
func nanRaw(name string) map[string]float64 {
	fields := rawFields[name]
	raw := make(map[string]float64, len(fields))
	for _, f := range fields {
		raw[f] = math.NaN()
	}
	return raw
}

// rawFields fixes the raw bundle shape per indicator
var rawFields = map[string][]string{
	"rsi_14":       {"rsi"},
	"macd_12_26_9": {"macd", "signal", "histogram"},
	"stoch_14_3_3": {"k", "d"},
	"adx_14":       {"adx", "plus_di", "minus_di"},
	"obv":          {"obv", "slope"},
	"bbands_20_2":  {"upper", "middle", "lower", "percent_b", "bandwidth"},
	"ema_20":       {"ema", "price", "pct_diff"},
	"ema_50":       {"ema", "price", "pct_diff"},
	"ema_200":      {"ema", "price", "pct_diff"},
}

// chanFromSlice feeds a slice into a channel for the cinar indicator API
func chanFromSlice(values []float64) chan float64 {
	c := make(chan float64, len(values))
	for _, v := range values {
		c <- v
	}
	close(c)
	return c
}

// clip bounds v to [lo, hi]
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
