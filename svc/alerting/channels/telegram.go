package channels

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/xpertseller/alertkit/svc/alerting"
)

// TelegramConfig configures the Telegram bot used for chat alerts.
type TelegramConfig struct {
	Token string `env:"TELEGRAM_BOT_TOKEN"`
}

// TelegramSender is the part of *tele.Bot the transport uses.
type TelegramSender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// NewTelegramBot creates a send-only bot. Offline mode skips the getMe
// call so startup does not depend on Telegram being reachable.
func NewTelegramBot(cfg TelegramConfig) (*tele.Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: telegram token is empty", ErrNotConfigured)
	}
	return tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
	})
}

// Telegram delivers alerts to a chat id stored as the recipient's address.
type Telegram struct {
	bot TelegramSender
}

func NewTelegram(bot TelegramSender) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) Send(ctx context.Context, req alerting.SendRequest) (alerting.SendResponse, error) {
	chatID, err := strconv.ParseInt(strings.TrimSpace(req.Address), 10, 64)
	if err != nil {
		return alerting.SendResponse{}, fmt.Errorf("%w: chat id %q", ErrInvalidAddress, req.Address)
	}
	text := req.Content.Body
	if req.Content.Subject != "" {
		text = req.Content.Subject + "\n\n" + text
	}
	if strings.TrimSpace(text) == "" {
		return alerting.SendResponse{}, ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return alerting.SendResponse{}, err
	}

	msg, err := t.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return alerting.SendResponse{}, err
	}
	return alerting.SendResponse{ProviderMessageID: fmt.Sprintf("%d:%d", chatID, msg.ID)}, nil
}
