package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"edtech-enrollment/internal/config"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/infra/i18n"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// messageSender is the part of *tgbotapi.BotAPI the notifier uses.
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts billing alerts to the configured operator chats.
type TelegramNotifier struct {
	bot     messageSender
	chatIDs []int64
	tr      *i18n.Translator
}

// NewTelegramNotifier connects to the Bot API with cfg.Token.
func NewTelegramNotifier(cfg config.TelegramConfig, tr *i18n.Translator) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.New("telegram chat_ids is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, cfg.ChatIDs, tr), nil
}

func newTelegramNotifier(bot messageSender, chatIDs []int64, tr *i18n.Translator) *TelegramNotifier {
	if tr == nil {
		tr = i18n.MustDefault()
	}
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs, tr: tr}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

// Notify sends to every chat and returns the joined errors of the failed ones.
func (t *TelegramNotifier) Notify(ctx context.Context, n adapter.Notification) error {
	text := Render(t.tr, n)
	var errs []error
	for _, id := range t.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
