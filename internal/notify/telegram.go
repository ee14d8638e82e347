package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ai-market-dashboard/internal/logger"
	"ai-market-dashboard/internal/types"
)

// TelegramNotifier pushes notifications to a Telegram chat. Sends are retried
// with linear backoff since the Bot API rate-limits bursts.
type TelegramNotifier struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration
}

// NewTelegramNotifier creates a notifier for the given bot token and chat ID.
func NewTelegramNotifier(botToken, chatID string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID %q: %w", chatID, err)
	}

	return &TelegramNotifier{
		bot:        bot,
		chatID:     chatIDInt,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, title, message string, kind types.NotificationKind) error {
	note := New(title, message, kind)

	emoji := "ℹ️"
	switch kind {
	case types.NotifyAlert:
		emoji = "🚨"
	case types.NotifySuccess:
		emoji = "✅"
	}

	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("%s %s\n%s", emoji, title, message))

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			logger.Debug(ctx, "Telegram notification sent", "id", note.ID, "kind", string(kind))
			return nil
		}
		lastErr = err
		time.Sleep(t.retryDelay * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send Telegram notification after %d retries: %w", t.maxRetries, lastErr)
}
