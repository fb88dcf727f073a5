package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/buildtall-systems/panelbot/internal/events"
)

// Sender is the subset of *tgbotapi.BotAPI the sink needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts every event to one chat.
type TelegramSink struct {
	sender Sender
	chatID int64
}

// NewTelegramSink authenticates with the bot token.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramSinkWithSender(bot, chatID), nil
}

func NewTelegramSinkWithSender(s Sender, chatID int64) *TelegramSink {
	return &TelegramSink{sender: s, chatID: chatID}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Deliver(ctx context.Context, e events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, Render(e))
	if _, err := s.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
