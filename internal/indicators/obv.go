package indicators

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// computeOBV calculates On-Balance Volume and its normalized slope. The OBV
// recurrence is computed directly (close vs prior close); the pinned library
// version compares against the running OBV value instead, which oscillates
// around zero. The slope comes from a linear fit over the last slope_period
// OBV values, rescaled by the mean OBV magnitude into a percentage slope.
func computeOBV(w Window, cfg map[string]float64) map[string]float64 {
	slopePeriod := int(cfg["slope_period"])

	if w.Len() < slopePeriod {
		return nil
	}

	obvValues := make([]float64, w.Len())
	for i := 1; i < w.Len(); i++ {
		switch {
		case w.Close[i] > w.Close[i-1]:
			obvValues[i] = obvValues[i-1] + w.Volume[i]
		case w.Close[i] < w.Close[i-1]:
			obvValues[i] = obvValues[i-1] - w.Volume[i]
		default:
			obvValues[i] = obvValues[i-1]
		}
	}

	tail := obvValues[len(obvValues)-slopePeriod:]
	xs := make([]float64, slopePeriod)
	meanMag := 0.0
	for i, v := range tail {
		xs[i] = float64(i)
		meanMag += math.Abs(v)
	}
	meanMag /= float64(slopePeriod)

	_, beta := stat.LinearRegression(xs, tail, nil, false)

	slope := 0.0
	if meanMag > 0 {
		slope = beta / meanMag * 100
	}

	return map[string]float64{
		"obv":   obvValues[len(obvValues)-1],
		"slope": slope,
	}
}

// normalizeOBV clips the percentage slope at ±5 onto ±1
func normalizeOBV(raw map[string]float64, cfg map[string]float64) float64 {
	slope := raw["slope"]
	if math.IsNaN(slope) {
		return math.NaN()
	}
	return clip(slope/5, -1, 1)
}
