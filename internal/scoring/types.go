// Package scoring turns indicator outputs into composite scores, highlight
// chips and ranked snapshot records.
package scoring

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/facubara/alphaboard/internal/indicators"
)

// MarketDeltas carries candle-over-candle changes for the reserved _market
// pseudo-indicator.
type MarketDeltas struct {
	PriceChangePct  float64  `json:"price_change_pct"`
	VolumeChangePct float64  `json:"volume_change_pct"`
	PriceChangeAbs  float64  `json:"price_change_abs"`
	VolumeChangeAbs float64  `json:"volume_change_abs"`
	FundingRate     *float64 `json:"funding_rate"`
}

// SymbolData carries everything the ranker needs for one scored symbol
type SymbolData struct {
	Symbol      string
	Indicators  map[string]indicators.Output
	Bullish     float64 // [0, 1]
	Confidence  float64 // [0, 1]
	Deltas      MarketDeltas
	Close       float64
	High        float64
	Low         float64
	QuoteVolume float64
}

// Chip is one highlight tag derived from indicator extremes
type Chip struct {
	Text     string `json:"text"`
	Category string `json:"category"` // bullish, bearish, neutral, info
	Priority int    `json:"priority"`
	Source   string `json:"source"` // source indicator name
}

// SignalEntry is the persisted per-indicator bundle inside a snapshot.
// Floats are nullable so NaN and ±Inf serialize as explicit null.
type SignalEntry struct {
	Signal   *float64            `json:"signal"`
	Label    string              `json:"label"`
	Strength string              `json:"strength"`
	Weight   float64             `json:"weight"`
	Category string              `json:"category"`
	Raw      map[string]*float64 `json:"raw"`
}

// RankedSnapshot is one symbol's scored, ranked row within one pipeline run
type RankedSnapshot struct {
	Symbol     string                 `json:"symbol"`
	Timeframe  string                 `json:"timeframe"`
	Bullish    float64                `json:"bullish_score"` // three-decimal fixed point
	Confidence int                    `json:"confidence"`    // 0-100
	Rank       int                    `json:"rank"`
	Chips      []Chip                 `json:"highlights"`
	Signals    map[string]SignalEntry `json:"indicator_signals"`
	ComputedAt time.Time              `json:"computed_at"`
	RunID      uuid.UUID              `json:"run_id"`
}

// NullFloat sanitizes a float for persistence: NaN and ±Inf become nil
func NullFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
