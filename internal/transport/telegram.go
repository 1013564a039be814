package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram delivers messages through the Telegram Bot API. The bot is
// send-only: no poller is configured and Start is never called.
type Telegram struct {
	bot *tele.Bot
}

func NewTelegram(token string, timeout time.Duration) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: b}, nil
}

// Send delivers text to a Telegram chat. The recipient must be a numeric
// chat id.
func (t *Telegram) Send(ctx context.Context, recipient, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return "", Permanent(fmt.Errorf("recipient %q is not a chat id: %w", recipient, err))
	}

	msg, err := t.bot.Send(tele.ChatID(chatID), text)
	if err != nil {
		return "", classifyTelegramErr(err)
	}
	return strconv.Itoa(msg.ID), nil
}

// classifyTelegramErr maps Telegram API failures onto the retry contract.
// Flood waits carry the API's retry_after as a delay hint; other 4xx
// responses (blocked bot, unknown chat, malformed text) are permanent.
// Network errors and 5xx responses stay retryable.
func classifyTelegramErr(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return RetryAfter(err, time.Duration(flood.RetryAfter)*time.Second)
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return Permanent(err)
		}
	}
	return err
}

// compile-time check that Telegram implements Transport
var _ Transport = (*Telegram)(nil)
