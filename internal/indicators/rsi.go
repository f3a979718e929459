package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/momentum"
)

// computeRSI calculates the Relative Strength Index over the close series
func computeRSI(w Window, cfg map[string]float64) map[string]float64 {
	period := int(cfg["period"])

	rsiIndicator := momentum.NewRsiWithPeriod[float64](period)
	rsiChan := rsiIndicator.Compute(chanFromSlice(w.Close))

	var rsiValues []float64
	for v := range rsiChan {
		rsiValues = append(rsiValues, v)
	}
	if len(rsiValues) == 0 {
		return nil
	}

	return map[string]float64{"rsi": rsiValues[len(rsiValues)-1]}
}

// normalizeRSI maps RSI onto [-1, +1]: below oversold scales toward +1,
// above overbought toward -1, linear in between around the midpoint.
func normalizeRSI(raw map[string]float64, cfg map[string]float64) float64 {
	v := raw["rsi"]
	if math.IsNaN(v) {
		return math.NaN()
	}

	oversold := cfg["oversold"]
	overbought := cfg["overbought"]
	midpoint := (oversold + overbought) / 2

	switch {
	case v < oversold:
		return (oversold - v) / oversold
	case v > overbought:
		return -(v - overbought) / (100 - overbought)
	default:
		return (midpoint - v) / (overbought - oversold)
	}
}
