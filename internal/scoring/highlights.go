package scoring

import (
	"math"
	"sort"

	"github.com/facubara/alphaboard/internal/indicators"
)

// Chip categories
const (
	ChipBullish = "bullish"
	ChipBearish = "bearish"
	ChipNeutral = "neutral"
	ChipInfo    = "info"
)

const maxChips = 4

// Highlights derives up to four ranked chips from indicator extremes.
// Each rule contributes at most one chip; the top four by priority win.
func Highlights(outputs map[string]indicators.Output) []Chip {
	var chips []Chip

	if raw, ok := rawOf(outputs, "rsi_14"); ok {
		if v := raw["rsi"]; !math.IsNaN(v) {
			if v <= 25 {
				chips = append(chips, Chip{"RSI Oversold", ChipBullish, 90, "rsi_14"})
			} else if v >= 75 {
				chips = append(chips, Chip{"RSI Overbought", ChipBearish, 90, "rsi_14"})
			}
		}
	}

	if raw, ok := rawOf(outputs, "macd_12_26_9"); ok {
		macd, hist := raw["macd"], raw["histogram"]
		if !math.IsNaN(macd) && !math.IsNaN(hist) && macd != 0 {
			if ratio := hist / macd; math.Abs(ratio) > 0.5 {
				if hist > 0 {
					chips = append(chips, Chip{"MACD Bullish", ChipBullish, 85, "macd_12_26_9"})
				} else {
					chips = append(chips, Chip{"MACD Bearish", ChipBearish, 85, "macd_12_26_9"})
				}
			}
		}
	}

	if raw, ok := rawOf(outputs, "stoch_14_3_3"); ok {
		if k := raw["k"]; !math.IsNaN(k) {
			if k <= 15 {
				chips = append(chips, Chip{"Stoch Oversold", ChipBullish, 75, "stoch_14_3_3"})
			} else if k >= 85 {
				chips = append(chips, Chip{"Stoch Overbought", ChipBearish, 75, "stoch_14_3_3"})
			}
		}
	}

	if raw, ok := rawOf(outputs, "adx_14"); ok {
		adx, plusDI, minusDI := raw["adx"], raw["plus_di"], raw["minus_di"]
		if !math.IsNaN(adx) {
			switch {
			case adx >= 35 && plusDI > minusDI:
				chips = append(chips, Chip{"Strong Uptrend", ChipBullish, 95, "adx_14"})
			case adx >= 35 && minusDI > plusDI:
				chips = append(chips, Chip{"Strong Downtrend", ChipBearish, 95, "adx_14"})
			case adx < 20:
				chips = append(chips, Chip{"No Trend", ChipNeutral, 50, "adx_14"})
			}
		}
	}

	if raw, ok := rawOf(outputs, "obv"); ok {
		if slope := raw["slope"]; !math.IsNaN(slope) {
			if slope > 3 {
				chips = append(chips, Chip{"Strong Buying", ChipBullish, 80, "obv"})
			} else if slope < -3 {
				chips = append(chips, Chip{"Strong Selling", ChipBearish, 80, "obv"})
			}
		}
	}

	if raw, ok := rawOf(outputs, "bbands_20_2"); ok {
		pb, bandwidth := raw["percent_b"], raw["bandwidth"]
		if !math.IsNaN(pb) {
			switch {
			case pb <= 0:
				chips = append(chips, Chip{"Below BB Lower", ChipBullish, 70, "bbands_20_2"})
			case pb >= 1:
				chips = append(chips, Chip{"Above BB Upper", ChipBearish, 70, "bbands_20_2"})
			case !math.IsNaN(bandwidth) && bandwidth < 3:
				chips = append(chips, Chip{"BB Squeeze", ChipInfo, 65, "bbands_20_2"})
			}
		}
	}

	if chip, ok := emaAlignmentChip(outputs); ok {
		chips = append(chips, chip)
	}

	sort.SliceStable(chips, func(i, j int) bool {
		return chips[i].Priority > chips[j].Priority
	})
	if len(chips) > maxChips {
		chips = chips[:maxChips]
	}
	return chips
}

// emaAlignmentChip compares price against the 20/50/200 EMAs
func emaAlignmentChip(outputs map[string]indicators.Output) (Chip, bool) {
	above := map[string]bool{}
	for _, name := range []string{"ema_20", "ema_50", "ema_200"} {
		raw, ok := rawOf(outputs, name)
		if !ok {
			return Chip{}, false
		}
		ema, price := raw["ema"], raw["price"]
		if math.IsNaN(ema) || math.IsNaN(price) {
			return Chip{}, false
		}
		above[name] = price > ema
	}

	switch {
	case above["ema_20"] && above["ema_50"] && above["ema_200"]:
		return Chip{"EMA Bullish", ChipBullish, 88, "ema_200"}, true
	case !above["ema_20"] && !above["ema_50"] && !above["ema_200"]:
		return Chip{"EMA Bearish", ChipBearish, 88, "ema_200"}, true
	case above["ema_20"] && !above["ema_200"]:
		return Chip{"EMA Transition", ChipInfo, 60, "ema_200"}, true
	}
	return Chip{}, false
}

func rawOf(outputs map[string]indicators.Output, name string) (map[string]float64, bool) {
	out, ok := outputs[name]
	if !ok || out.Raw == nil {
		return nil, false
	}
	return out.Raw, true
}
