package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/trend"
)

// computeEMA calculates the Exponential Moving Average and the percentage
// distance of the current price from it.
func computeEMA(w Window, cfg map[string]float64) map[string]float64 {
	period := int(cfg["period"])

	emaIndicator := trend.NewEmaWithPeriod[float64](period)
	emaChan := emaIndicator.Compute(chanFromSlice(w.Close))

	var emaValues []float64
	for v := range emaChan {
		emaValues = append(emaValues, v)
	}
	if len(emaValues) == 0 {
		return nil
	}

	ema := emaValues[len(emaValues)-1]
	price := w.Close[w.Len()-1]

	pctDiff := math.NaN()
	if ema != 0 {
		pctDiff = (price - ema) / ema * 100
	}

	return map[string]float64{
		"ema":      ema,
		"price":    price,
		"pct_diff": pctDiff,
	}
}

// normalizeEMA scales price distance by the neutral zone: within
// ±neutral_pct the signal stays inside ±0.3, beyond it extends toward ±1.
func normalizeEMA(raw map[string]float64, cfg map[string]float64) float64 {
	pct := raw["pct_diff"]
	if math.IsNaN(pct) {
		return math.NaN()
	}

	neutral := cfg["neutral_pct"]
	if neutral <= 0 {
		neutral = 0.5
	}

	abs := math.Abs(pct)
	sign := 1.0
	if pct < 0 {
		sign = -1
	}

	if abs <= neutral {
		return sign * (abs / neutral) * 0.3
	}
	return sign * clip(0.3+(abs-neutral)/(neutral*3)*0.7, 0.3, 1)
}
