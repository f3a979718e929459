package alerts

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/facubara/alphaboard/internal/config"
)

// TelegramNotifier delivers events to one or more Telegram chats
type TelegramNotifier struct {
	api     *tgbotapi.BotAPI
	chatIDs []int64
	logger  zerolog.Logger
}

// NewTelegramNotifier authenticates the bot and wires the target chats
func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger := config.NewLogger("telegram")
	logger.Info().
		Str("bot_username", api.Self.UserName).
		Int("chat_count", len(cfg.ChatIDs)).
		Msg("Telegram notifier initialized")

	return &TelegramNotifier{api: api, chatIDs: cfg.ChatIDs, logger: logger}, nil
}

// Notify renders the event and sends it to every configured chat
func (t *TelegramNotifier) Notify(ctx context.Context, event Event) error {
	if len(t.chatIDs) == 0 {
		return nil
	}

	text := t.format(event)

	var lastErr error
	sent := 0
	for _, chatID := range t.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = "Markdown"
		if _, err := t.api.Send(msg); err != nil {
			t.logger.Error().
				Err(err).
				Int64("chat_id", chatID).
				Str("kind", string(event.Kind)).
				Msg("Failed to send Telegram message")
			lastErr = err
			continue
		}
		sent++
	}

	if sent == 0 && lastErr != nil {
		return fmt.Errorf("failed to reach any telegram chat: %w", lastErr)
	}
	return nil
}

func (t *TelegramNotifier) format(event Event) string {
	var emoji string
	switch event.Kind {
	case EventTradeOpened:
		emoji = "📈"
	case EventTradeClosed:
		emoji = "📉"
	case EventEquityAlert:
		emoji = "🚨"
	case EventEvolution:
		emoji = "🧬"
	default:
		emoji = "📢"
	}

	text := fmt.Sprintf("%s *%s*\n\n%s", emoji, event.Title, event.Message)
	for key, value := range event.Fields {
		text += fmt.Sprintf("\n• %s: `%v`", key, value)
	}
	text += fmt.Sprintf("\n\n_%s_", event.Timestamp.Format("2006-01-02 15:04:05"))
	return text
}
