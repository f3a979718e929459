package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/volatility"
)

// computeBollinger calculates Bollinger Bands, %B and bandwidth.
// cinar/indicator uses a fixed 2 std dev, which matches the registry config.
func computeBollinger(w Window, cfg map[string]float64) map[string]float64 {
	period := int(cfg["period"])

	bbIndicator := volatility.NewBollingerBands[float64]()
	bbIndicator.Period = period
	// Compute emits (upper, middle, lower), in that order
	upperChan, middleChan, lowerChan := bbIndicator.Compute(chanFromSlice(w.Close))

	var lowerValues, middleValues, upperValues []float64
	for {
		u, uok := <-upperChan
		m, mok := <-middleChan
		l, lok := <-lowerChan
		if !uok || !mok || !lok {
			break
		}
		lowerValues = append(lowerValues, l)
		middleValues = append(middleValues, m)
		upperValues = append(upperValues, u)
	}
	if len(middleValues) == 0 {
		return nil
	}

	upper := upperValues[len(upperValues)-1]
	middle := middleValues[len(middleValues)-1]
	lower := lowerValues[len(lowerValues)-1]
	price := w.Close[w.Len()-1]

	percentB := math.NaN()
	if upper != lower {
		percentB = (price - lower) / (upper - lower)
	}
	bandwidth := math.NaN()
	if middle != 0 {
		bandwidth = (upper - lower) / middle * 100
	}

	return map[string]float64{
		"upper":     upper,
		"middle":    middle,
		"lower":     lower,
		"percent_b": percentB,
		"bandwidth": bandwidth,
	}
}

// normalizeBollinger is %B-driven: +0.8 at the lower band, -0.8 at the upper
// band, linear in between, extending toward ±1 past the bands.
func normalizeBollinger(raw map[string]float64, cfg map[string]float64) float64 {
	pb := raw["percent_b"]
	if math.IsNaN(pb) {
		return math.NaN()
	}

	switch {
	case pb < 0:
		return clip(0.8+(-pb), 0.8, 1)
	case pb > 1:
		return clip(-(0.8 + (pb - 1)), -1, -0.8)
	default:
		return (0.5 - pb) * 1.6
	}
}
