package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/trend"
)

// computeMACD calculates MACD line, signal line and histogram
func computeMACD(w Window, cfg map[string]float64) map[string]float64 {
	fast := int(cfg["fast"])
	slow := int(cfg["slow"])
	signalPeriod := int(cfg["signal"])

	macdIndicator := trend.NewMacdWithPeriod[float64](fast, slow, signalPeriod)
	macdChan, signalChan := macdIndicator.Compute(chanFromSlice(w.Close))

	var macdValues, signalValues []float64
	for {
		m, mok := <-macdChan
		s, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdValues = append(macdValues, m)
		signalValues = append(signalValues, s)
	}
	if len(macdValues) == 0 {
		return nil
	}

	macd := macdValues[len(macdValues)-1]
	signal := signalValues[len(signalValues)-1]

	return map[string]float64{
		"macd":      macd,
		"signal":    signal,
		"histogram": macd - signal,
	}
}

// normalizeMACD scales the histogram by the MACD magnitude, clipped to [-1, +1]
func normalizeMACD(raw map[string]float64, cfg map[string]float64) float64 {
	macd := raw["macd"]
	histogram := raw["histogram"]
	if math.IsNaN(macd) || math.IsNaN(histogram) {
		return math.NaN()
	}

	if macd == 0 {
		if histogram == 0 {
			return 0
		}
		if histogram > 0 {
			return 1
		}
		return -1
	}

	return clip(histogram/math.Abs(macd), -1, 1)
}
