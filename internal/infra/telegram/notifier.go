package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"balans-ai/internal/config"
	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/infra/logging"
	"balans-ai/internal/infra/metrics"
)

var (
	_ adapter.TelegramBotAdapter = (*Notifier)(nil)
	_ adapter.TelegramBotAdapter = (*NoopNotifier)(nil)
)

// sender is the part of *tgbotapi.BotAPI the notifier uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends payment DMs through the Bot API. The chat id is the
// Telegram user id carried in the merchant transaction id.
type Notifier struct {
	bot sender
	log *zerolog.Logger
}

func NewNotifier(cfg *config.BotConfig, logger *zerolog.Logger) (*Notifier, error) {
	if cfg == nil || cfg.Token == "" {
		return nil, errors.New("bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newNotifier(bot, logger), nil
}

func newNotifier(bot sender, logger *zerolog.Logger) *Notifier {
	l := logger.With().Str("component", "telegram_notifier").Logger()
	return &Notifier{bot: bot, log: &l}
}

func (n *Notifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		metrics.IncNotification("error")
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		metrics.IncNotification("error")
		logging.With(ctx, n.log).Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
		return err
	}
	metrics.IncNotification("sent")
	return nil
}

// NoopNotifier logs messages instead of sending them (no bot token configured).
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "noop_notifier").Logger()
	return &NoopNotifier{log: &l}
}

func (b *NoopNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	logging.With(ctx, b.log).Info().Int64("chat_id", chatID).Str("text", text).Msg("noop telegram message")
	metrics.IncNotification("sent")
	return nil
}
