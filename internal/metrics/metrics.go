// Package metrics exposes Prometheus instrumentation for the pipeline and
// the agent orchestrator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PipelineRuns counts pipeline runs by timeframe and terminal status
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphaboard",
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by timeframe and terminal status.",
	}, []string{"timeframe", "status"})

	// PipelineDuration observes end-to-end run duration
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "alphaboard",
		Name:      "pipeline_run_duration_seconds",
		Help:      "End-to-end pipeline run duration.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"timeframe"})

	// SymbolsRanked tracks how many symbols survived the last run
	SymbolsRanked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alphaboard",
		Name:      "pipeline_symbols_ranked",
		Help:      "Symbols ranked in the most recent run per timeframe.",
	}, []string{"timeframe"})

	// AgentDecisions counts strategy decisions by archetype and action
	AgentDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphaboard",
		Name:      "agent_decisions_total",
		Help:      "Agent decisions by archetype and action.",
	}, []string{"archetype", "action"})

	// AgentCycleErrors counts isolated per-agent cycle failures
	AgentCycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphaboard",
		Name:      "agent_cycle_errors_total",
		Help:      "Agent cycles that failed and were isolated.",
	}, []string{"timeframe"})

	// TradesExecuted counts executed position opens and closes
	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alphaboard",
		Name:      "trades_executed_total",
		Help:      "Executed portfolio mutations by action.",
	}, []string{"action"})
)

// Handler returns the scrape endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}
