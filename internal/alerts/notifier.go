// Package alerts fans trading events out to notification sinks. The core
// emits events; sinks decide how to render and deliver them.
package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/facubara/alphaboard/internal/config"
)

// EventKind classifies a notification
type EventKind string

const (
	EventTradeOpened EventKind = "trade_opened"
	EventTradeClosed EventKind = "trade_closed"
	EventEquityAlert EventKind = "equity_alert"
	EventEvolution   EventKind = "evolution"
)

// Event is one notification with free-form detail fields
type Event struct {
	Kind      EventKind
	AgentName string
	Title     string
	Message   string
	Timestamp time.Time
	Fields    map[string]any
}

// Notifier delivers one event to one sink
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Manager fans events out to every configured sink. Delivery failures are
// logged and never propagate into the trading path.
type Manager struct {
	sinks  []Notifier
	logger zerolog.Logger
}

// NewManager builds a fan-out over the given sinks
func NewManager(sinks ...Notifier) *Manager {
	return &Manager{
		sinks:  sinks,
		logger: config.NewLogger("alerts"),
	}
}

// Notify delivers the event to all sinks, logging per-sink failures
func (m *Manager) Notify(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	for _, sink := range m.sinks {
		if err := sink.Notify(ctx, event); err != nil {
			m.logger.Error().
				Err(err).
				Str("kind", string(event.Kind)).
				Str("title", event.Title).
				Msg("Failed to deliver notification")
		}
	}
}

// TradeOpened emits a position-open event
func (m *Manager) TradeOpened(ctx context.Context, agentName, symbol, direction, notional, entry string) {
	m.Notify(ctx, Event{
		Kind:      EventTradeOpened,
		AgentName: agentName,
		Title:     "Trade opened",
		Message:   agentName + " opened " + direction + " " + symbol,
		Fields: map[string]any{
			"symbol":    symbol,
			"direction": direction,
			"notional":  notional,
			"entry":     entry,
		},
	})
}

// TradeClosed emits a position-close event
func (m *Manager) TradeClosed(ctx context.Context, agentName, symbol, reason, pnl string) {
	m.Notify(ctx, Event{
		Kind:      EventTradeClosed,
		AgentName: agentName,
		Title:     "Trade closed",
		Message:   agentName + " closed " + symbol + " (" + reason + ")",
		Fields: map[string]any{
			"symbol": symbol,
			"reason": reason,
			"pnl":    pnl,
		},
	})
}

// EquityAlert emits a drawdown warning
func (m *Manager) EquityAlert(ctx context.Context, agentName, equity, peak, drawdownPct string) {
	m.Notify(ctx, Event{
		Kind:      EventEquityAlert,
		AgentName: agentName,
		Title:     "Equity alert",
		Message:   agentName + " drew down " + drawdownPct + "% from peak",
		Fields: map[string]any{
			"equity":       equity,
			"peak":         peak,
			"drawdown_pct": drawdownPct,
		},
	})
}
