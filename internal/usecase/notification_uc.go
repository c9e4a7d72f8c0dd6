package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/infra/logging"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

type NotificationUseCase interface {
	// PaymentSettled queues a DM about the outcome. It never blocks and never fails the caller.
	PaymentSettled(ctx context.Context, s *Settlement)
}

type notificationUC struct {
	bot        adapter.TelegramBotAdapter
	dispatcher adapter.Dispatcher
	log        *zerolog.Logger
}

func NewNotificationUseCase(bot adapter.TelegramBotAdapter, dispatcher adapter.Dispatcher, logger *zerolog.Logger) *notificationUC {
	l := logger.With().Str("component", "notification_uc").Logger()
	return &notificationUC{bot: bot, dispatcher: dispatcher, log: &l}
}

func (n *notificationUC) PaymentSettled(ctx context.Context, s *Settlement) {
	if s == nil || s.Payment == nil || !s.Changed {
		return
	}
	p := s.Payment
	text := settlementText(s)
	traceID := logging.TraceID(ctx)

	ok := n.dispatcher.Dispatch("payment_dm", func(ctx context.Context) error {
		ctx = logging.WithMerchantTransID(logging.WithTraceID(ctx, traceID), p.MerchantTransID)
		if err := n.bot.SendMessage(ctx, p.UserID, text); err != nil {
			logging.With(ctx, n.log).Warn().Err(err).Int64("user_id", p.UserID).Msg("payment DM failed")
			return err
		}
		return nil
	})
	if !ok {
		logging.With(ctx, n.log).Warn().Int64("user_id", p.UserID).Msg("payment DM dropped: dispatcher saturated")
	}
}

func settlementText(s *Settlement) string {
	p := s.Payment
	switch p.Status {
	case model.PaymentStatusConfirmed:
		if s.Activation != nil && !s.Activation.Applied {
			return fmt.Sprintf("✅ To'lov qabul qilindi (%d so'm). Sizda yuqoriroq %s tarifi faol, u saqlanib qoldi.",
				p.Amount, s.Activation.Plan)
		}
		if p.PackageCode != nil {
			return fmt.Sprintf("✅ To'lov qabul qilindi (%d so'm). %s paketi faollashtirildi.", p.Amount, *p.PackageCode)
		}
		until := ""
		if s.Activation != nil {
			until = " " + s.Activation.ExpiresAt.Format("02.01.2006") + " gacha"
		}
		return fmt.Sprintf("✅ To'lov qabul qilindi (%d so'm). %s tarifi%s faollashtirildi.", p.Amount, p.Plan, until)
	case model.PaymentStatusFailed:
		return "❌ To'lov amalga oshmadi. Tarifingiz o'zgarmadi."
	default:
		return "⚠️ To'lov bekor qilindi. Tarifingiz o'zgarmadi."
	}
}
