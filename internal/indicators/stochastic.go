package indicators

import "math"

// computeStochastic calculates the full stochastic oscillator (%K smoothed,
// %D) manually. cinar/indicator v2 has no smoothed 14/3/3 variant, so we
// implement it ourselves, the same approach as the manual ADX.
func computeStochastic(w Window, cfg map[string]float64) map[string]float64 {
	kPeriod := int(cfg["k"])
	dPeriod := int(cfg["d"])
	smooth := int(cfg["smooth"])

	n := w.Len()
	if n < kPeriod+smooth+dPeriod-2 {
		return nil
	}

	// Raw %K: position of the close within the high/low range
	rawK := make([]float64, 0, n-kPeriod+1)
	for i := kPeriod - 1; i < n; i++ {
		highest := w.High[i]
		lowest := w.Low[i]
		for j := i - kPeriod + 1; j <= i; j++ {
			highest = math.Max(highest, w.High[j])
			lowest = math.Min(lowest, w.Low[j])
		}
		if highest == lowest {
			rawK = append(rawK, 50)
			continue
		}
		rawK = append(rawK, 100*(w.Close[i]-lowest)/(highest-lowest))
	}

	smoothK := sma(rawK, smooth)
	d := sma(smoothK, dPeriod)
	if len(smoothK) == 0 || len(d) == 0 {
		return nil
	}

	return map[string]float64{
		"k": smoothK[len(smoothK)-1],
		"d": d[len(d)-1],
	}
}

// normalizeStochastic is an RSI-style level signal on %K plus a %K/%D
// crossover boost clipped at ±0.3.
func normalizeStochastic(raw map[string]float64, cfg map[string]float64) float64 {
	k := raw["k"]
	d := raw["d"]
	if math.IsNaN(k) || math.IsNaN(d) {
		return math.NaN()
	}

	oversold := cfg["oversold"]
	overbought := cfg["overbought"]
	midpoint := (oversold + overbought) / 2

	var level float64
	switch {
	case k < oversold:
		level = (oversold - k) / oversold
	case k > overbought:
		level = -(k - overbought) / (100 - overbought)
	default:
		level = (midpoint - k) / (overbought - oversold)
	}

	boost := clip((k-d)/20, -0.3, 0.3)
	return clip(level+boost, -1, 1)
}

// sma returns the simple moving average series for the given period
func sma(values []float64, period int) []float64 {
	if len(values) < period || period < 1 {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}
