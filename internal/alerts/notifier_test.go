package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
	err    error
}

func (r *recordingSink) Notify(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestManagerFansOutToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewManager(a, b)

	m.TradeOpened(context.Background(), "Momentum Max", "BTCUSDT", "long", "1500.00", "43000")

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.Equal(t, EventTradeOpened, a.events[0].Kind)
	assert.Equal(t, "Momentum Max", a.events[0].AgentName)
	assert.Equal(t, "BTCUSDT", a.events[0].Fields["symbol"])
	assert.False(t, a.events[0].Timestamp.IsZero())
}

func TestManagerSinkFailureDoesNotStopDelivery(t *testing.T) {
	failing := &recordingSink{err: errors.New("chat unreachable")}
	healthy := &recordingSink{}
	m := NewManager(failing, healthy)

	m.TradeClosed(context.Background(), "Momentum Max", "BTCUSDT", "take_profit", "42.50")

	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}

func TestManagerNilIsNoOp(t *testing.T) {
	var m *Manager
	m.Notify(context.Background(), Event{Kind: EventEquityAlert})
	m.EquityAlert(context.Background(), "a", "800", "1000", "20.0")
}

func TestManagerKeepsExplicitTimestamp(t *testing.T) {
	sink := &recordingSink{}
	m := NewManager(sink)
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	m.Notify(context.Background(), Event{Kind: EventTradeClosed, Timestamp: at})

	require.Len(t, sink.events, 1)
	assert.Equal(t, at, sink.events[0].Timestamp)
}

func TestTelegramFormat(t *testing.T) {
	tn := &TelegramNotifier{}
	text := tn.format(Event{
		Kind:      EventEquityAlert,
		Title:     "Equity alert",
		Message:   "Momentum Max drew down 21.3% from peak",
		Timestamp: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Fields:    map[string]any{"equity": "787.00"},
	})

	assert.True(t, strings.HasPrefix(text, "🚨 *Equity alert*"))
	assert.Contains(t, text, "drew down 21.3%")
	assert.Contains(t, text, "• equity: `787.00`")
	assert.Contains(t, text, "_2025-07-01 12:00:00_")
}
