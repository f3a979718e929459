package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Run statuses for pipeline computation runs
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped" // returned, never persisted
)

// Backtest run statuses
type BacktestStatus string

const (
	BacktestStatusPending   BacktestStatus = "pending"
	BacktestStatusRunning   BacktestStatus = "running"
	BacktestStatusCompleted BacktestStatus = "completed"
	BacktestStatusCancelled BacktestStatus = "cancelled"
	BacktestStatusFailed    BacktestStatus = "failed"
)

// Position directions
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Exit reasons for closed trades. Consumers must treat unknown values
// defensively; this set is closed on the writer side only.
type ExitReason string

const (
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTakeProfit    ExitReason = "take_profit"
	ExitAgentDecision ExitReason = "agent_decision"
	ExitBacktestEnd   ExitReason = "backtest_end"
	ExitAgentPaused   ExitReason = "agent_paused"
)

// Agent statuses
type AgentStatus string

const (
	AgentActive    AgentStatus = "active"
	AgentPaused    AgentStatus = "paused"
	AgentDiscarded AgentStatus = "discarded"
)

// Market regime labels
type Regime string

const (
	RegimeTrendingBull Regime = "trending_bull"
	RegimeTrendingBear Regime = "trending_bear"
	RegimeRanging      Regime = "ranging"
	RegimeVolatile     Regime = "volatile"
)

// Symbol is a tradable instrument. Created on first observation, never deleted.
type Symbol struct {
	Symbol     string    `db:"symbol"`
	BaseAsset  string    `db:"base_asset"`
	QuoteAsset string    `db:"quote_asset"`
	Active     bool      `db:"active"`
	LastSeenAt time.Time `db:"last_seen_at"`
}

// ComputationRun is one pipeline execution for one timeframe
type ComputationRun struct {
	ID          uuid.UUID  `db:"id"`
	Timeframe   string     `db:"timeframe"`
	StartedAt   time.Time  `db:"started_at"`
	FinishedAt  *time.Time `db:"finished_at"`
	SymbolCount int        `db:"symbol_count"`
	Status      RunStatus  `db:"status"`
	ErrorMsg    *string    `db:"error_message"`
}

// SnapshotRow is a persisted ranking snapshot. IndicatorSignals is the JSON
// map of indicator name -> signal bundle plus the reserved _market key.
type SnapshotRow struct {
	ID               uuid.UUID `db:"id"`
	RunID            uuid.UUID `db:"run_id"`
	Symbol           string    `db:"symbol"`
	Timeframe        string    `db:"timeframe"`
	BullishScore     float64   `db:"bullish_score"`
	Confidence       int       `db:"confidence"`
	Rank             int       `db:"rank"`
	Highlights       []byte    `db:"highlights"`        // JSON chips
	IndicatorSignals []byte    `db:"indicator_signals"` // JSON bundle
	ComputedAt       time.Time `db:"computed_at"`
}

// TimeframeRegime is the continuously-overwritten regime row per timeframe
type TimeframeRegime struct {
	Timeframe       string    `db:"timeframe"`
	Regime          Regime    `db:"regime"`
	Confidence      int       `db:"confidence"`
	AvgScore        float64   `db:"avg_score"`
	AvgADX          float64   `db:"avg_adx"`
	AvgBandwidth    float64   `db:"avg_bandwidth"`
	SymbolsAnalyzed int       `db:"symbols_analyzed"`
	ComputedAt      time.Time `db:"computed_at"`
}

// Agent is an autonomous strategy instance
type Agent struct {
	ID                 uuid.UUID       `db:"id"`
	Name               string          `db:"name"`
	DisplayName        string          `db:"display_name"`
	Archetype          string          `db:"archetype"`
	Timeframe          string          `db:"timeframe"`
	Engine             string          `db:"engine"` // rule, llm
	Source             string          `db:"source"` // technical, tweet, hybrid
	Status             AgentStatus     `db:"status"`
	InitialBalance     decimal.Decimal `db:"initial_balance"`
	EvolutionThreshold decimal.Decimal `db:"evolution_threshold"`
	CreatedAt          time.Time       `db:"created_at"`
}

// AgentPortfolio is the 1:1 money state of an agent
type AgentPortfolio struct {
	AgentID          uuid.UUID       `db:"agent_id"`
	CashBalance      decimal.Decimal `db:"cash_balance"`
	TotalEquity      decimal.Decimal `db:"total_equity"`
	TotalRealizedPnL decimal.Decimal `db:"total_realized_pnl"`
	TotalFeesPaid    decimal.Decimal `db:"total_fees_paid"`
	PeakEquity       decimal.Decimal `db:"peak_equity"`
	TroughEquity     decimal.Decimal `db:"trough_equity"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// AgentPosition is an open position. Deleted on close.
type AgentPosition struct {
	ID            uuid.UUID        `db:"id"`
	AgentID       uuid.UUID        `db:"agent_id"`
	Symbol        string           `db:"symbol"`
	Direction     Direction        `db:"direction"`
	EntryPrice    decimal.Decimal  `db:"entry_price"`
	PositionSize  decimal.Decimal  `db:"position_size"` // quote-currency notional
	StopLoss      *decimal.Decimal `db:"stop_loss"`
	TakeProfit    *decimal.Decimal `db:"take_profit"`
	OpenedAt       time.Time        `db:"opened_at"`
	UnrealizedPnL  decimal.Decimal  `db:"unrealized_pnl"`
	OpenDecisionID *uuid.UUID       `db:"open_decision_id"`
}

// AgentTrade is the immutable record of a closed position
type AgentTrade struct {
	ID              uuid.UUID        `db:"id"`
	AgentID         uuid.UUID        `db:"agent_id"`
	Symbol          string           `db:"symbol"`
	Direction       Direction        `db:"direction"`
	EntryPrice      decimal.Decimal  `db:"entry_price"`
	ExitPrice       decimal.Decimal  `db:"exit_price"`
	PositionSize    decimal.Decimal  `db:"position_size"`
	PnL             decimal.Decimal  `db:"pnl"` // net of fees
	Fees            decimal.Decimal  `db:"fees"`
	ExitReason      ExitReason       `db:"exit_reason"`
	OpenedAt        time.Time        `db:"opened_at"`
	ClosedAt        time.Time        `db:"closed_at"`
	DurationMinutes int              `db:"duration_minutes"`
	OpenDecisionID  *uuid.UUID       `db:"open_decision_id"`
	CloseDecisionID *uuid.UUID       `db:"close_decision_id"`
	StopLoss        *decimal.Decimal `db:"stop_loss"`
	TakeProfit      *decimal.Decimal `db:"take_profit"`
}

// AgentDecision is the immutable per-cycle log row
type AgentDecision struct {
	ID               uuid.UUID       `db:"id"`
	AgentID          uuid.UUID       `db:"agent_id"`
	Action           string          `db:"action"`
	Symbol           *string         `db:"symbol"`
	Reasoning        string          `db:"reasoning"`
	ReasoningSummary string          `db:"reasoning_summary"`
	Params           []byte          `db:"params"` // JSON action parameters
	Model            string          `db:"model"`  // "rule_engine" for rule agents
	PromptVersion    int             `db:"prompt_version"`
	InputTokens      int             `db:"input_tokens"`
	OutputTokens     int             `db:"output_tokens"`
	CostUSD          decimal.Decimal `db:"cost_usd"`
	DecidedAt        time.Time       `db:"decided_at"`
}

// TokenUsage accumulates per-day LLM usage per (agent, model, task type)
type TokenUsage struct {
	AgentID      uuid.UUID       `db:"agent_id"`
	Model        string          `db:"model"`
	TaskType     string          `db:"task_type"`
	UsageDate    time.Time       `db:"usage_date"`
	InputTokens  int64           `db:"input_tokens"`
	OutputTokens int64           `db:"output_tokens"`
	CostUSD      decimal.Decimal `db:"cost_usd"`
}

// BacktestRun is the persisted metadata of one backtest
type BacktestRun struct {
	ID             uuid.UUID       `db:"id"`
	Archetype      string          `db:"archetype"`
	Symbol         string          `db:"symbol"`
	Timeframe      string          `db:"timeframe"`
	StartDate      time.Time       `db:"start_date"`
	EndDate        time.Time       `db:"end_date"`
	InitialBalance decimal.Decimal `db:"initial_balance"`
	FinalEquity    decimal.Decimal `db:"final_equity"`
	TotalPnL       decimal.Decimal `db:"total_pnl"`
	TotalTrades    int             `db:"total_trades"`
	WinningTrades  int             `db:"winning_trades"`
	MaxDrawdownPct float64         `db:"max_drawdown_pct"`
	SharpeRatio    float64         `db:"sharpe_ratio"`
	Status         BacktestStatus  `db:"status"`
	ErrorMsg       *string         `db:"error_message"`
	StartedAt      time.Time       `db:"started_at"`
	FinishedAt     *time.Time      `db:"finished_at"`
}
