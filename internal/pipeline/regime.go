package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
)

// Classifier labels a timeframe's market regime from the aggregates of its
// top-ranked snapshots.
type Classifier struct {
	store *db.DB
	cfg   config.RegimeConfig
}

// NewClassifier builds a regime classifier over the store
func NewClassifier(store *db.DB, cfg config.RegimeConfig) *Classifier {
	return &Classifier{store: store, cfg: cfg}
}

// Compute aggregates the run's top snapshots and upserts the regime row.
// NaN-bearing inputs are skipped per aggregate.
func (c *Classifier) Compute(ctx context.Context, timeframe string, runID uuid.UUID) (*db.TimeframeRegime, error) {
	inputs, err := c.store.GetRegimeInputs(ctx, runID, c.cfg.TopSnapshots)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no snapshots for run %s", runID)
	}

	var scoreSum float64
	var adxSum, adxN float64
	var bwSum, bwN float64
	for _, in := range inputs {
		scoreSum += in.Bullish
		if in.ADX != nil && !math.IsNaN(*in.ADX) {
			adxSum += *in.ADX
			adxN++
		}
		if in.Bandwidth != nil && !math.IsNaN(*in.Bandwidth) {
			bwSum += *in.Bandwidth
			bwN++
		}
	}

	avgScore := scoreSum / float64(len(inputs))
	var avgADX, avgBW float64
	if adxN > 0 {
		avgADX = adxSum / adxN
	}
	if bwN > 0 {
		avgBW = bwSum / bwN
	}

	regime, confidence := c.classify(avgScore, avgADX, avgBW)

	row := db.TimeframeRegime{
		Timeframe:       timeframe,
		Regime:          regime,
		Confidence:      confidence,
		AvgScore:        avgScore,
		AvgADX:          avgADX,
		AvgBandwidth:    avgBW,
		SymbolsAnalyzed: len(inputs),
		ComputedAt:      time.Now(),
	}
	if err := c.store.UpsertRegime(ctx, row); err != nil {
		return nil, err
	}
	return &row, nil
}

// classify applies the ordered rules: volatile first, then the two trend
// labels, then ranging as the catch-all.
func (c *Classifier) classify(score, adx, bandwidth float64) (db.Regime, int) {
	switch {
	case bandwidth > c.cfg.BandwidthThreshold && adx > c.cfg.ADXThreshold:
		return db.RegimeVolatile, capConfidence(50 + adx + bandwidth)
	case score > c.cfg.BullScore && adx > c.cfg.ADXThreshold:
		return db.RegimeTrendingBull, capConfidence((score-0.5)*200 + adx)
	case score < c.cfg.BearScore && adx > c.cfg.ADXThreshold:
		return db.RegimeTrendingBear, capConfidence((0.5-score)*200 + adx)
	default:
		confidence := 100 - adx*2
		if confidence < 30 {
			confidence = 30
		}
		return db.RegimeRanging, int(math.Round(confidence))
	}
}

func capConfidence(v float64) int {
	if v > 100 {
		v = 100
	}
	if v < 0 {
		v = 0
	}
	return int(math.Round(v))
}
