// File: internal/usecase/settlement_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
	"balans-ai/internal/infra/logging"
)

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

// SettlementUseCase moves a payment to a terminal status and applies its side
// effects in one transaction: tariff activation, package grant and promo
// finalization on confirm; promo cancellation otherwise. Only the call that
// actually changes the status applies them, so repeated deliveries are no-ops.
type SettlementUseCase interface {
	Settle(ctx context.Context, req SettleRequest) (*Settlement, error)
}

type SettleRequest struct {
	ID        model.MerchantTransID
	Key       string // ledger key as received
	Status    model.PaymentStatus
	ErrorCode int
	ErrorNote string
	// ExpectAmount, when set, must equal the stored amount for a confirmation.
	ExpectAmount *int64
	// From, when set, is the only status the payment may be leaving.
	From model.PaymentStatus
	// ClickTransID, when set, must match the click id bound at prepare.
	ClickTransID string
}

type Settlement struct {
	Payment    *model.Payment
	Changed    bool
	Activation *Activation
	Package    bool // a package grant was assigned
	Redemption model.RedemptionStatus
}

// RetryPolicy bounds the retries of a settlement that hit a storage failure.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration // doubled after each attempt
}

type settlementUC struct {
	tm       repository.TransactionManager
	payments repository.PaymentRepository
	tariffs  TariffUseCase
	promos   PromoUseCase
	catalog  model.Catalog
	retry    RetryPolicy
	log      *zerolog.Logger
	now      func() time.Time
}

func NewSettlementUseCase(tm repository.TransactionManager, payments repository.PaymentRepository, tariffs TariffUseCase, promos PromoUseCase, catalog model.Catalog, retry RetryPolicy, logger *zerolog.Logger) *settlementUC {
	if retry.Attempts <= 0 {
		retry.Attempts = 1
	}
	l := logger.With().Str("component", "settlement_uc").Logger()
	return &settlementUC{
		tm:       tm,
		payments: payments,
		tariffs:  tariffs,
		promos:   promos,
		catalog:  catalog,
		retry:    retry,
		log:      &l,
		now:      time.Now,
	}
}

func (u *settlementUC) Settle(ctx context.Context, req SettleRequest) (*Settlement, error) {
	if !req.Status.IsTerminal() || req.Key == "" {
		return nil, domain.ErrInvalidArgument
	}

	defer logging.TraceDuration(u.log, "SettlementUC.Settle")()

	var (
		out     *Settlement
		err     error
		backoff = u.retry.Backoff
	)
retry:
	for attempt := 1; ; attempt++ {
		out, err = u.settleOnce(ctx, req)
		if err == nil || !domain.IsStorage(err) {
			return out, err
		}
		if attempt >= u.retry.Attempts {
			break
		}
		logging.With(ctx, u.log).Warn().Err(err).Int("attempt", attempt).Msg("settlement failed; retrying")
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	logging.With(ctx, u.log).Error().
		Err(err).
		Bool("billing_integrity", true).
		Str("merchant_trans_id", req.Key).
		Str("status", string(req.Status)).
		Msg("settlement could not be persisted")
	return nil, err
}

func (u *settlementUC) settleOnce(ctx context.Context, req SettleRequest) (*Settlement, error) {
	out := &Settlement{}
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByMerchantTransID(ctx, tx, req.Key)
		if err != nil {
			return err
		}
		out.Payment = p

		if req.From != "" && p.Status != req.From && p.Status != req.Status {
			return domain.ErrStateConflict
		}
		if req.ClickTransID != "" && p.ClickTransID != nil && *p.ClickTransID != req.ClickTransID {
			return domain.ErrStateConflict
		}
		if req.Status == model.PaymentStatusConfirmed && req.ExpectAmount != nil && *req.ExpectAmount != p.Amount && !p.Status.IsTerminal() {
			return domain.ErrAmountMismatch
		}

		now := u.now()
		changed, err := u.payments.MarkTerminal(ctx, tx, req.Key, req.Status, req.ErrorCode, req.ErrorNote, now)
		if err != nil {
			return err
		}
		out.Changed = changed
		if !changed {
			return nil
		}
		p.Status, p.ErrorCode, p.ErrorNote, p.CompleteTime = req.Status, req.ErrorCode, req.ErrorNote, &now

		confirmed := req.Status == model.PaymentStatusConfirmed
		if confirmed {
			if out.Activation, err = u.tariffs.Activate(ctx, tx, p.UserID, req.ID.Plan, req.ID.MonthsOrDefault()); err != nil {
				return err
			}
			if req.ID.PackageCode != "" {
				pkg, ok := u.catalog.Package(req.ID.PackageCode)
				if !ok {
					// Paid for but no longer sold. Confirm anyway so the money is accounted for.
					logging.With(ctx, u.log).Error().
						Bool("billing_integrity", true).
						Str("package", req.ID.PackageCode).
						Msg("confirmed package missing from catalog; quota not granted")
				} else if out.Package, err = u.tariffs.GrantPackage(ctx, tx, p.UserID, pkg, p.Amount, req.Key); err != nil {
					return err
				}
			}
		}
		if p.PromoCode != nil {
			if out.Redemption, err = u.promos.Finalize(ctx, tx, req.Key, confirmed); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
