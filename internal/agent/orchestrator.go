// Package agent runs one decision cycle per active agent after every
// completed pipeline run: risk exits first, then strategy or LLM decisions,
// validated and executed through the portfolio manager.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/facubara/alphaboard/internal/alerts"
	"github.com/facubara/alphaboard/internal/config"
	"github.com/facubara/alphaboard/internal/db"
	"github.com/facubara/alphaboard/internal/market"
	"github.com/facubara/alphaboard/internal/metrics"
	"github.com/facubara/alphaboard/internal/pipeline"
	"github.com/facubara/alphaboard/internal/portfolio"
	"github.com/facubara/alphaboard/internal/strategy"
)

// ruleEngineModel is the decision model label for rule-driven agents
const ruleEngineModel = "rule_engine"

// equityAlertDrawdownPct fires the drawdown notification at this threshold
const equityAlertDrawdownPct = 20.0

// LLMDecision is what an external LLM executor returns for one cycle
type LLMDecision struct {
	Action       strategy.Action
	Model        string
	InputTokens  int
	OutputTokens int
	CostUSD      decimal.Decimal
}

// DecideFunc is the external LLM decision function. Timeouts and transport
// failures must be mapped to a hold decision by the implementation or
// surfaced as an error, which the orchestrator converts to a hold.
type DecideFunc func(ctx context.Context, sctx *strategy.Context, model string, promptVersion int) (*LLMDecision, error)

// TweetProvider supplies the per-timeframe tweet bundle for tweet and hybrid
// sourced agents. Implementations live outside the core.
type TweetProvider interface {
	TweetContext(ctx context.Context, timeframe string) (*strategy.TweetContext, error)
}

// Orchestrator drives agent cycles off pipeline run summaries
type Orchestrator struct {
	store       *db.DB
	manager     *portfolio.Manager
	cache       *market.RankingsCache
	notifier    *alerts.Manager
	tweets      TweetProvider // may be nil
	llmDecide   DecideFunc    // may be nil; LLM agents then hold
	trading     config.TradingConfig
	topRankings int
	logger      zerolog.Logger
}

// NewOrchestrator wires the orchestrator. cache, notifier, tweets and
// llmDecide are all optional.
func NewOrchestrator(store *db.DB, manager *portfolio.Manager, cache *market.RankingsCache, notifier *alerts.Manager, tweets TweetProvider, llmDecide DecideFunc, trading config.TradingConfig, topRankings int) *Orchestrator {
	return &Orchestrator{
		store:       store,
		manager:     manager,
		cache:       cache,
		notifier:    notifier,
		tweets:      tweets,
		llmDecide:   llmDecide,
		trading:     trading,
		topRankings: topRankings,
		logger:      config.NewLogger("orchestrator"),
	}
}

// RunCycle processes every active agent on the summary's timeframe. Each
// agent runs and commits independently; one agent's failure never aborts the
// others.
func (o *Orchestrator) RunCycle(ctx context.Context, summary *pipeline.RunSummary) {
	agents, err := o.store.ListActiveAgentsByTimeframe(ctx, summary.Timeframe)
	if err != nil {
		o.logger.Error().Err(err).Str("timeframe", summary.Timeframe).Msg("Failed to enumerate agents")
		return
	}

	for _, ag := range agents {
		if err := o.runAgent(ctx, ag, summary); err != nil {
			metrics.AgentCycleErrors.WithLabelValues(summary.Timeframe).Inc()
			o.logger.Error().
				Err(err).
				Str("agent", ag.Name).
				Str("timeframe", summary.Timeframe).
				Msg("Agent cycle failed")
		}
	}
}

// runAgent executes one agent's full cycle inside a single transaction
func (o *Orchestrator) runAgent(ctx context.Context, ag db.Agent, summary *pipeline.RunSummary) error {
	tx, err := o.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck // no-op after commit

	// Risk exits before any strategy-driven action.
	candles := make(map[string]portfolio.CandleHL, len(summary.Candles))
	for symbol, ext := range summary.Candles {
		candles[symbol] = portfolio.CandleHL{High: ext.High, Low: ext.Low, Close: ext.Close}
	}
	riskExits, err := o.manager.CheckStopLossTakeProfit(ctx, tx, ag.ID, candles)
	if err != nil {
		return fmt.Errorf("sl/tp check: %w", err)
	}

	if err := o.manager.UpdateUnrealizedPnL(ctx, tx, ag.ID, summary.Prices); err != nil {
		return fmt.Errorf("unrealized pnl update: %w", err)
	}

	sctx, err := o.buildContext(ctx, tx, ag, summary)
	if err != nil {
		return fmt.Errorf("context assembly: %w", err)
	}

	promptVersion, err := o.store.GetActivePromptVersion(ctx, ag.ID)
	if err != nil {
		return err
	}

	decision := o.decide(ctx, ag, sctx, promptVersion)
	metrics.AgentDecisions.WithLabelValues(ag.Archetype, string(decision.Action.Type)).Inc()

	row, err := o.persistDecision(ctx, tx, ag, decision, promptVersion)
	if err != nil {
		return fmt.Errorf("decision persist: %w", err)
	}

	if decision.Action.Type != strategy.ActionHold {
		if err := o.executeAction(ctx, tx, ag, decision.Action, summary.Prices, row.ID); err != nil {
			return err
		}
	}

	if decision.InputTokens > 0 || decision.OutputTokens > 0 {
		usage := db.TokenUsage{
			AgentID:      ag.ID,
			Model:        decision.Model,
			TaskType:     "trading_decision",
			InputTokens:  int64(decision.InputTokens),
			OutputTokens: int64(decision.OutputTokens),
			CostUSD:      decision.CostUSD,
		}
		if err := o.store.UpsertTokenUsage(ctx, tx, usage); err != nil {
			return fmt.Errorf("token usage upsert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agent cycle commit: %w", err)
	}

	o.notifyRiskExits(ctx, ag, riskExits)
	o.checkEquityAlert(ctx, ag)
	return nil
}

// decide invokes the rule strategy or the external LLM executor. Any panic
// or error inside the decision path becomes a zero-confidence hold.
func (o *Orchestrator) decide(ctx context.Context, ag db.Agent, sctx *strategy.Context, promptVersion int) (out LLMDecision) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("agent", ag.Name).
				Interface("panic", r).
				Msg("Strategy panicked")
			out = holdDecision(fmt.Sprintf("strategy failure: %v", r))
		}
	}()

	if ag.Engine == "llm" {
		if o.llmDecide == nil {
			return holdDecision("no LLM executor configured")
		}
		decision, err := o.llmDecide(ctx, sctx, ag.Archetype, promptVersion)
		if err != nil {
			return holdDecision(fmt.Sprintf("LLM decision failed: %v", err))
		}
		return *decision
	}

	strat, err := strategy.ForAgent(ag.Archetype, ag.Name)
	if err != nil {
		return holdDecision(err.Error())
	}
	return LLMDecision{Action: strat.Decide(sctx), Model: ruleEngineModel}
}

func holdDecision(reason string) LLMDecision {
	act := strategy.Hold(reason)
	act.Confidence = 0
	return LLMDecision{Action: act, Model: ruleEngineModel}
}

// persistDecision writes the immutable decision log row
func (o *Orchestrator) persistDecision(ctx context.Context, q db.Executor, ag db.Agent, decision LLMDecision, promptVersion int) (*db.AgentDecision, error) {
	params, err := json.Marshal(decision.Action)
	if err != nil {
		return nil, err
	}

	row := &db.AgentDecision{
		AgentID:          ag.ID,
		Action:           string(decision.Action.Type),
		Reasoning:        decision.Action.Reasoning,
		ReasoningSummary: summaryLine(decision.Action.Reasoning),
		Params:           params,
		Model:            decision.Model,
		PromptVersion:    promptVersion,
		InputTokens:      decision.InputTokens,
		OutputTokens:     decision.OutputTokens,
		CostUSD:          decision.CostUSD,
		DecidedAt:        time.Now(),
	}
	if decision.Action.Symbol != "" {
		row.Symbol = &decision.Action.Symbol
	}
	if err := o.store.InsertDecision(ctx, q, row); err != nil {
		return nil, err
	}
	return row, nil
}

// executeAction validates and applies a non-hold action. Validation failures
// are recorded and absorbed; the cycle continues and commits.
func (o *Orchestrator) executeAction(ctx context.Context, q db.Executor, ag db.Agent, act strategy.Action, prices map[string]float64, decisionID uuid.UUID) error {
	validation, err := o.manager.Validate(ctx, q, ag.ID, act, prices)
	if err != nil {
		return fmt.Errorf("action validation: %w", err)
	}
	for _, warning := range validation.Warnings {
		o.logger.Warn().Str("agent", ag.Name).Str("warning", warning).Msg("Action warning")
	}
	if !validation.Valid {
		o.logger.Info().
			Str("agent", ag.Name).
			Str("action", string(act.Type)).
			Str("symbol", act.Symbol).
			Str("rejection", validation.ErrorMessage).
			Msg("Action rejected by validation")
		return nil
	}

	switch act.Type {
	case strategy.ActionOpenLong, strategy.ActionOpenShort:
		res, err := o.manager.OpenPosition(ctx, q, ag.ID, act, prices[act.Symbol], &decisionID)
		if err != nil {
			return fmt.Errorf("open position: %w", err)
		}
		metrics.TradesExecuted.WithLabelValues(string(act.Type)).Inc()
		direction := "long"
		if act.Type == strategy.ActionOpenShort {
			direction = "short"
		}
		o.notifier.TradeOpened(ctx, ag.DisplayName, res.Symbol, direction,
			res.Notional.StringFixed(2), res.Price.String())

	case strategy.ActionClose:
		price, ok := prices[act.Symbol]
		if !ok || price <= 0 {
			o.logger.Warn().
				Str("agent", ag.Name).
				Str("symbol", act.Symbol).
				Msg("Close deferred, no current price")
			return nil
		}
		res, err := o.manager.ClosePosition(ctx, q, ag.ID, act.Symbol, price,
			db.ExitAgentDecision, &decisionID)
		if err != nil {
			return fmt.Errorf("close position: %w", err)
		}
		metrics.TradesExecuted.WithLabelValues(string(act.Type)).Inc()
		o.notifier.TradeClosed(ctx, ag.DisplayName, res.Symbol, string(res.ExitReason),
			res.PnL.StringFixed(2))
	}
	return nil
}

// notifyRiskExits publishes stop and target fills that happened this cycle
func (o *Orchestrator) notifyRiskExits(ctx context.Context, ag db.Agent, exits []*portfolio.ExecutionResult) {
	for _, res := range exits {
		metrics.TradesExecuted.WithLabelValues(string(strategy.ActionClose)).Inc()
		o.notifier.TradeClosed(ctx, ag.DisplayName, res.Symbol, string(res.ExitReason), res.PnL.StringFixed(2))
	}
}

// checkEquityAlert emits a notification when the agent has drawn down past
// the alert threshold from its peak.
func (o *Orchestrator) checkEquityAlert(ctx context.Context, ag db.Agent) {
	pf, err := o.store.GetPortfolio(ctx, o.store.Pool(), ag.ID)
	if err != nil {
		return
	}
	peak := toFloat(pf.PeakEquity)
	equity := toFloat(pf.TotalEquity)
	if peak <= 0 || equity >= peak {
		return
	}
	drawdown := (peak - equity) / peak * 100
	if drawdown >= equityAlertDrawdownPct {
		o.notifier.EquityAlert(ctx, ag.DisplayName,
			pf.TotalEquity.StringFixed(2), pf.PeakEquity.StringFixed(2),
			fmt.Sprintf("%.1f", drawdown))
	}
}

// summaryLine truncates reasoning to its first sentence for list views
func summaryLine(reasoning string) string {
	for i := 0; i+1 < len(reasoning); i++ {
		if reasoning[i] == '.' && reasoning[i+1] == ' ' {
			return reasoning[:i+1]
		}
	}
	return reasoning
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
