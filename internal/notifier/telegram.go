package notifier

import (
	"context"
	"fmt"

	"example.com/powermon/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// telegramNotifier implements Notifier on the Telegram Bot API
type telegramNotifier struct {
	bot *tgbotapi.BotAPI
	log *logrus.Logger
}

// NewTelegramNotifier creates a Telegram notifier. With an empty bot token
// it falls back to the no-op notifier.
func NewTelegramNotifier(cfg config.TelegramConfig, log *logrus.Logger) (Notifier, error) {
	if cfg.BotToken == "" {
		return NewNoopNotifier(log), nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.WithField("bot", bot.Self.UserName).Info("Telegram notifier ready")

	return &telegramNotifier{
		bot: bot,
		log: log,
	}, nil
}

// Send delivers one message to a Telegram chat.
func (t *telegramNotifier) Send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send Telegram message to chat %d: %w", chatID, err)
	}
	return nil
}
