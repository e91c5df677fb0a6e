// Package notify delivers messages to users over Telegram.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// Notifier sends a message to a chat. Failures come back as error values so
// the dispatch loop can apply its retry policy uniformly.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// ReminderText renders the notification body for a due task.
func ReminderText(title string) string {
	return "⏰ Напоминание: " + html.EscapeString(title)
}

// Telegram delivers messages through the Bot API. Transient failures are
// retried with exponential backoff inside the caller's context deadline.
type Telegram struct {
	api *tgbotapi.BotAPI
	log zerolog.Logger
}

// NewTelegram authorizes against the Bot API. The timeout bounds each
// underlying HTTP call.
func NewTelegram(token string, timeout time.Duration, log zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Telegram{
		api: api,
		log: log.With().Str("component", "notifier").Logger(),
	}, nil
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	backoff := retry.WithMaxRetries(2, retry.NewExponential(300*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if _, err := t.api.Send(msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}
