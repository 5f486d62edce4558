package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"towerwatch/internal/model"
)

// TelegramChannel delivers messages through a Telegram bot to each
// recipient's chat.
type TelegramChannel struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramChannel creates a TelegramChannel with the given bot token.
func NewTelegramChannel(token string) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramChannel{bot: bot}, nil
}

// Send implements Channel.
func (c *TelegramChannel) Send(ctx context.Context, r model.Recipient, msg Message) error {
	if r.TelegramChatID == 0 {
		return errors.New("recipient has no telegram chat")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := c.bot.Send(tgbotapi.NewMessage(r.TelegramChatID, msg.Title+"\n\n"+msg.Body)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
