// Package pipeline runs the per-timeframe computation cycle: universe
// selection, candle fetch, indicator math, scoring, ranking, persistence and
// regime classification.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/exchange"
	"github.com/facubara/alphaboard/internal/indicators"
	"github.com/facubara/alphaboard/internal/market"
	"github.com/facubara/alphaboard/internal/metrics"
	"github.com/facubara/alphaboard/internal/scoring"
)

// RunSummary is what one pipeline run hands to the orchestrator
type RunSummary struct {
	RunID       uuid.UUID
	Timeframe   string
	Status      db.RunStatus
	SymbolCount int
	Prices      map[string]float64 // symbol -> current close
	Candles     map[string]CandleExtent
}

// CandleExtent carries the current candle's range for SL/TP evaluation
type CandleExtent struct {
	High  float64
	Low   float64
	Close float64
}

// Runner executes pipeline runs for any timeframe. One Runner instance is
// shared by all schedulers; per-run state lives on the stack.
type Runner struct {
	store      *db.DB
	source     exchange.CandleSource
	cache      *market.RankingsCache
	classifier *Classifier
	cfg        config.PipelineConfig
	owner      uuid.UUID // lock owner identity for this process
	logger     zerolog.Logger
}

// NewRunner wires a pipeline runner. cache may be nil.
func NewRunner(store *db.DB, source exchange.CandleSource, cache *market.RankingsCache, classifier *Classifier, cfg config.PipelineConfig) *Runner {
	return &Runner{
		store:      store,
		source:     source,
		cache:      cache,
		classifier: classifier,
		cfg:        cfg,
		owner:      uuid.New(),
		logger:     config.NewLogger("pipeline"),
	}
}

// Run executes one pipeline cycle for a timeframe. A lock conflict returns a
// summary with status skipped and no error; any failure after run creation
// marks the run failed and returns the error. The lock is always released.
func (r *Runner) Run(ctx context.Context, timeframe exchange.Timeframe) (*RunSummary, error) {
	tf := string(timeframe)
	started := time.Now()

	acquired, err := r.store.TryAcquireTimeframeLock(ctx, tf, r.owner)
	if err != nil {
		return nil, err
	}
	if !acquired {
		r.logger.Info().Str("timeframe", tf).Msg("Run skipped, lock held elsewhere")
		metrics.PipelineRuns.WithLabelValues(tf, string(db.RunStatusSkipped)).Inc()
		return &RunSummary{Timeframe: tf, Status: db.RunStatusSkipped}, nil
	}
	defer func() {
		if err := r.store.ReleaseTimeframeLock(context.WithoutCancel(ctx), tf, r.owner); err != nil {
			r.logger.Error().Err(err).Str("timeframe", tf).Msg("Failed to release pipeline lock")
		}
	}()

	run, err := r.store.CreateRun(ctx, tf)
	if err != nil {
		return nil, err
	}

	summary, err := r.execute(ctx, timeframe, run.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("timeframe", tf).Str("run_id", run.ID.String()).Msg("Pipeline run failed")
		if failErr := r.store.FailRun(context.WithoutCancel(ctx), run.ID, err.Error()); failErr != nil {
			r.logger.Error().Err(failErr).Msg("Failed to mark run failed")
		}
		metrics.PipelineRuns.WithLabelValues(tf, string(db.RunStatusFailed)).Inc()
		return nil, err
	}

	if err := r.store.CompleteRun(ctx, run.ID, summary.SymbolCount); err != nil {
		return nil, err
	}
	summary.RunID = run.ID
	summary.Status = db.RunStatusCompleted

	metrics.PipelineRuns.WithLabelValues(tf, string(db.RunStatusCompleted)).Inc()
	metrics.PipelineDuration.WithLabelValues(tf).Observe(time.Since(started).Seconds())
	metrics.SymbolsRanked.WithLabelValues(tf).Set(float64(summary.SymbolCount))

	// Regime classification rides on the completed run; its failure does
	// not invalidate the snapshots.
	if r.classifier != nil {
		if _, err := r.classifier.Compute(ctx, tf, run.ID); err != nil {
			r.logger.Warn().Err(err).Str("timeframe", tf).Msg("Regime computation failed")
		}
	}

	r.logger.Info().
		Str("timeframe", tf).
		Str("run_id", run.ID.String()).
		Int("symbols", summary.SymbolCount).
		Dur("elapsed", time.Since(started)).
		Msg("Pipeline run completed")
	return summary, nil
}

// execute performs the fallible middle of a run: fetch, compute, rank,
// persist. The caller owns run status transitions.
func (r *Runner) execute(ctx context.Context, timeframe exchange.Timeframe, runID uuid.UUID) (*RunSummary, error) {
	tf := string(timeframe)

	symbols, err := r.source.ListActiveSymbols(ctx, r.cfg.MinQuoteVolume)
	if err != nil {
		return nil, fmt.Errorf("symbol universe fetch failed: %w", err)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no active symbols above volume floor %.0f", r.cfg.MinQuoteVolume)
	}

	names := make([]string, 0, len(symbols))
	volumes := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Symbol)
		volumes[s.Symbol] = s.QuoteVolume
		if err := r.store.UpsertSymbol(ctx, r.store.Pool(), db.Symbol{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Active:     true,
		}); err != nil {
			return nil, err
		}
	}

	batches, err := r.source.FetchCandleBatch(ctx, names, timeframe, r.cfg.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("candle batch fetch failed: %w", err)
	}

	sortedVolumes := sortedVolumeList(batches, volumes)

	var scored []scoring.SymbolData
	prices := make(map[string]float64)
	extents := make(map[string]CandleExtent)
	for _, symbol := range names {
		candles := batches[symbol]
		if len(candles) < r.cfg.MinCandles {
			r.logger.Debug().
				Str("symbol", symbol).
				Int("candles", len(candles)).
				Int("required", r.cfg.MinCandles).
				Msg("Symbol dropped, insufficient history")
			continue
		}

		window := indicators.NewWindow(candles)
		outputs := indicators.ComputeAll(window)

		last := candles[len(candles)-1]
		data := scoring.SymbolData{
			Symbol:      symbol,
			Indicators:  outputs,
			Deltas:      candleDeltas(candles),
			Close:       last.Close,
			High:        last.High,
			Low:         last.Low,
			QuoteVolume: volumes[symbol],
		}
		data.Bullish = scoring.BullishScore(outputs)
		data.Confidence = scoring.ConfidenceScore(outputs, scoring.VolumeContext{
			OwnVolume:     volumes[symbol],
			SortedVolumes: sortedVolumes,
		})

		scored = append(scored, data)
		prices[symbol] = last.Close
		extents[symbol] = CandleExtent{High: last.High, Low: last.Low, Close: last.Close}
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("no symbol survived the %d-candle minimum", r.cfg.MinCandles)
	}

	snapshots := scoring.Rank(scored, tf, runID, time.Now())

	tx, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // no-op after commit

	if err := r.store.InsertSnapshots(ctx, tx, snapshots); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("snapshot commit failed: %w", err)
	}

	r.cache.Set(ctx, tf, snapshots)

	return &RunSummary{
		Timeframe:   tf,
		SymbolCount: len(scored),
		Prices:      prices,
		Candles:     extents,
	}, nil
}

// candleDeltas computes candle-over-candle changes from the last two candles
func candleDeltas(candles []exchange.Candle) scoring.MarketDeltas {
	if len(candles) < 2 {
		return scoring.MarketDeltas{}
	}
	cur := candles[len(candles)-1]
	prev := candles[len(candles)-2]

	var deltas scoring.MarketDeltas
	deltas.PriceChangeAbs = cur.Close - prev.Close
	deltas.VolumeChangeAbs = cur.Volume - prev.Volume
	if prev.Close != 0 {
		deltas.PriceChangePct = deltas.PriceChangeAbs / prev.Close * 100
	}
	if prev.Volume != 0 {
		deltas.VolumeChangePct = deltas.VolumeChangeAbs / prev.Volume * 100
	}
	// Spot market: no funding rate, persisted as null.
	return deltas
}

// sortedVolumeList builds the ascending 24h volume list over symbols that
// actually returned candles, for the confidence percentile.
func sortedVolumeList(batches map[string][]exchange.Candle, volumes map[string]float64) []float64 {
	out := make([]float64, 0, len(batches))
	for symbol := range batches {
		out = append(out, volumes[symbol])
	}
	sort.Float64s(out)
	return out
}
