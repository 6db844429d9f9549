// Package notify posts run summaries to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"tamj/internal/market"
	"tamj/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *logger.Logger
}

func NewTelegram(token string, chatID int64, logger *logger.Logger) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint, chatID, logger)
}

// NewTelegramWithEndpoint talks to a Bot API at endpoint, formatted like
// tgbotapi.APIEndpoint.
func NewTelegramWithEndpoint(token, endpoint string, chatID int64, logger *logger.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	logger.Infow("Authorized on Telegram", "username", bot.Self.UserName)
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

// SendSnapshot posts the index and every symbol's current value.
func (t *Telegram) SendSnapshot(ctx context.Context, res market.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatSnapshot(res))
	msg.DisableWebPagePreview = true
	sent, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send snapshot: %w", err)
	}
	t.logger.Infow("Sent snapshot", "chat_id", t.chatID, "message_id", sent.MessageID)
	return nil
}

// FormatSnapshot renders a plain-text summary of one run.
func FormatSnapshot(res market.Result) string {
	s := res.Snapshot
	var b strings.Builder
	fmt.Fprintf(&b, "📊 MCI %.4f (%+.1f%%)\n", s.MCI, (s.MCI-1)*100)
	fmt.Fprintf(&b, "%s (基準日 %s)\n", s.FetchDate, s.BaseDate)

	fallbacks := make(map[string]bool, len(res.Fallbacks))
	for _, k := range res.Fallbacks {
		fallbacks[k] = true
	}
	keys := make([]string, 0, len(s.CurrentValues))
	for k := range s.CurrentValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line := fmt.Sprintf("%s %g", k, s.CurrentValues[k])
		if fallbacks[k] {
			line += " (fallback)"
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
