package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/exchange"
)

// runTimeout bounds one pipeline run end to end
const runTimeout = 10 * time.Minute

// Scheduler ticks each timeframe on its own cadence. Overlapping ticks for
// one timeframe are resolved by the store-level lock, not by the scheduler.
type Scheduler struct {
	cron       *cron.Cron
	runner     *Runner
	cadences   map[string]int
	onComplete func(ctx context.Context, summary *RunSummary)
	logger     zerolog.Logger
}

// NewScheduler builds a scheduler over the runner. onComplete fires after
// every completed run (not after skips or failures) and may be nil.
func NewScheduler(runner *Runner, cadences map[string]int, onComplete func(context.Context, *RunSummary)) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		runner:     runner,
		cadences:   cadences,
		onComplete: onComplete,
		logger:     config.NewLogger("scheduler"),
	}
}

// Start registers one cron entry per configured timeframe and starts ticking
func (s *Scheduler) Start() error {
	for tf, minutes := range s.cadences {
		timeframe := exchange.Timeframe(tf)
		if !timeframe.Valid() {
			return fmt.Errorf("unknown timeframe in cadence config: %q", tf)
		}
		if minutes <= 0 {
			return fmt.Errorf("cadence for %s must be positive: %d", tf, minutes)
		}

		spec := fmt.Sprintf("@every %dm", minutes)
		if _, err := s.cron.AddFunc(spec, func() { s.tick(timeframe) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", tf, err)
		}
		s.logger.Info().Str("timeframe", tf).Int("cadence_minutes", minutes).Msg("Timeframe scheduled")
	}

	s.cron.Start()
	return nil
}

// tick executes one pipeline run and hands the summary to the orchestrator
func (s *Scheduler) tick(timeframe exchange.Timeframe) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	summary, err := s.runner.Run(ctx, timeframe)
	if err != nil {
		// Already persisted as a failed run; the next tick starts fresh.
		return
	}
	if summary.Status != db.RunStatusCompleted {
		return
	}
	if s.onComplete != nil {
		s.onComplete(ctx, summary)
	}
}

// Stop halts scheduling and returns a context that closes when in-flight
// jobs have drained.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
