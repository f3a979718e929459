package indicators

import "math"

// computeADX calculates the Average Directional Index with Wilder's
// smoothing. ADX is not available in cinar/indicator v2, so we implement it
// ourselves.
func computeADX(w Window, cfg map[string]float64) map[string]float64 {
	period := int(cfg["period"])
	n := w.Len()
	if n < period*2 {
		return nil
	}

	high, low, closePrices := w.High, w.Low, w.Close

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	for i := 1; i < n; i++ {
		tr[i] = math.Max(high[i]-low[i],
			math.Max(math.Abs(high[i]-closePrices[i-1]),
				math.Abs(low[i]-closePrices[i-1])))

		upMove := high[i] - high[i-1]
		downMove := low[i-1] - low[i]

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := smoothWilder(tr, period)
	smoothPlusDM := smoothWilder(plusDM, period)
	smoothMinusDM := smoothWilder(minusDM, period)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)

	for i := period; i < n; i++ {
		if smoothTR[i] != 0 {
			plusDI[i] = 100 * smoothPlusDM[i] / smoothTR[i]
			minusDI[i] = 100 * smoothMinusDM[i] / smoothTR[i]

			diSum := plusDI[i] + minusDI[i]
			if diSum != 0 {
				dx[i] = 100 * math.Abs(plusDI[i]-minusDI[i]) / diSum
			}
		}
	}

	adxValues := smoothWilder(dx, period)

	return map[string]float64{
		"adx":      adxValues[n-1],
		"plus_di":  plusDI[n-1],
		"minus_di": minusDI[n-1],
	}
}

// normalizeADX combines trend direction (DI dominance) with trend strength
// (ADX level), attenuated when the DI lines sit close together.
func normalizeADX(raw map[string]float64, cfg map[string]float64) float64 {
	adx := raw["adx"]
	plusDI := raw["plus_di"]
	minusDI := raw["minus_di"]
	if math.IsNaN(adx) || math.IsNaN(plusDI) || math.IsNaN(minusDI) {
		return math.NaN()
	}

	threshold := cfg["trend_threshold"]

	direction := 0.0
	if plusDI > minusDI {
		direction = 1
	} else if minusDI > plusDI {
		direction = -1
	}

	var strength float64
	if adx < threshold {
		strength = adx / threshold * 0.5
	} else {
		strength = 0.5 + (adx-threshold)/(100-threshold)*0.5
	}

	diSum := plusDI + minusDI
	separation := 1.0
	if diSum > 0 {
		separation = clip(2*math.Abs(plusDI-minusDI)/diSum, 0, 1)
	}

	return clip(direction*strength*separation, -1, 1)
}

// smoothWilder applies Wilder's smoothing method
func smoothWilder(data []float64, period int) []float64 {
	n := len(data)
	result := make([]float64, n)
	if n < period {
		return result
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	result[period-1] = sum / float64(period)

	for i := period; i < n; i++ {
		result[i] = (result[i-1]*float64(period-1) + data[i]) / float64(period)
	}

	return result
}
