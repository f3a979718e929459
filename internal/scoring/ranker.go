package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// MarketKey is the reserved pseudo-indicator carrying candle deltas
const MarketKey = "_market"

// Rank orders scored symbols by (bullish desc, confidence desc) and emits
// snapshot records with contiguous 1-based ranks. The sort keys carry the
// same precision as the persisted snapshot fields, so two symbols that read
// identically never rank by an invisible digit. Exact ties keep input order
// (stable sort).
func Rank(scored []SymbolData, timeframe string, runID uuid.UUID, computedAt time.Time) []RankedSnapshot {
	ordered := make([]SymbolData, len(scored))
	copy(ordered, scored)

	sort.SliceStable(ordered, func(i, j int) bool {
		bi, bj := roundTo(ordered[i].Bullish, 3), roundTo(ordered[j].Bullish, 3)
		if bi != bj {
			return bi > bj
		}
		ci := int(math.Round(ordered[i].Confidence * 100))
		cj := int(math.Round(ordered[j].Confidence * 100))
		return ci > cj
	})

	snapshots := make([]RankedSnapshot, 0, len(ordered))
	for i, sym := range ordered {
		snapshots = append(snapshots, RankedSnapshot{
			Symbol:     sym.Symbol,
			Timeframe:  timeframe,
			Bullish:    roundTo(sym.Bullish, 3),
			Confidence: int(math.Round(sym.Confidence * 100)),
			Rank:       i + 1,
			Chips:      Highlights(sym.Indicators),
			Signals:    buildSignals(sym),
			ComputedAt: computedAt,
			RunID:      runID,
		})
	}
	return snapshots
}

// buildSignals assembles the persisted signal bundle, sanitizing every
// float and attaching the _market pseudo-indicator.
func buildSignals(sym SymbolData) map[string]SignalEntry {
	signals := make(map[string]SignalEntry, len(sym.Indicators)+1)
	for name, out := range sym.Indicators {
		raw := make(map[string]*float64, len(out.Raw))
		for field, v := range out.Raw {
			raw[field] = NullFloat(v)
		}
		signals[name] = SignalEntry{
			Signal:   NullFloat(out.Signal),
			Label:    out.Label,
			Strength: out.Strength,
			Weight:   out.Weight,
			Category: string(out.Category),
			Raw:      raw,
		}
	}

	signals[MarketKey] = SignalEntry{
		Label:    "info",
		Strength: "info",
		Raw: map[string]*float64{
			"price_change_pct":  NullFloat(sym.Deltas.PriceChangePct),
			"volume_change_pct": NullFloat(sym.Deltas.VolumeChangePct),
			"price_change_abs":  NullFloat(sym.Deltas.PriceChangeAbs),
			"volume_change_abs": NullFloat(sym.Deltas.VolumeChangeAbs),
			"funding_rate":      sym.Deltas.FundingRate,
		},
	}
	return signals
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
