package notify

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramAlerter posts alerts to a single admin chat.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramAlerter authenticates the bot against endpoint. An empty endpoint uses the public API.
func NewTelegramAlerter(token string, chatID int64, endpoint string, client *http.Client) (*TelegramAlerter, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramAlerter{bot: bot, chatID: chatID}, nil
}

// Alert sends text as a plain message.
func (a *TelegramAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
