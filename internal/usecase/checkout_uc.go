// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/domain/ports/repository"
	"balans-ai/internal/infra/logging"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// Checkout prices the selection, applies an optional promo, writes the
	// pending ledger row (and redemption) and returns the Click pay link.
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	// ExpireStale cancels pending checkouts created before cutoff and releases
	// their promo reservations. It returns how many were cancelled.
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type CheckoutRequest struct {
	UserID      int64
	Plan        model.PlanCode
	Months      int
	PackageCode string
	PromoCode   string
}

type CheckoutResult struct {
	Payment  *model.Payment
	Discount *model.Discount
	PayURL   string
}

// CheckoutLimit is the per-user checkout rate.
type CheckoutLimit struct {
	Max    int
	Window time.Duration
}

type checkoutUC struct {
	tm         repository.TransactionManager
	payments   repository.PaymentRepository
	promos     PromoUseCase
	settlement SettlementUseCase
	catalog    model.Catalog
	payURL     adapter.PayURLBuilder
	limiter    adapter.RateLimiter
	limit      CheckoutLimit
	log        *zerolog.Logger
	now        func() time.Time
}

func NewCheckoutUseCase(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	promos PromoUseCase,
	settlement SettlementUseCase,
	catalog model.Catalog,
	payURL adapter.PayURLBuilder,
	limiter adapter.RateLimiter,
	limit CheckoutLimit,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "checkout_uc").Logger()
	return &checkoutUC{
		tm:         tm,
		payments:   payments,
		promos:     promos,
		settlement: settlement,
		catalog:    catalog,
		payURL:     payURL,
		limiter:    limiter,
		limit:      limit,
		log:        &l,
		now:        time.Now,
	}
}

// WithClock replaces time.Now; merchant ids embed the creation second.
func (u *checkoutUC) WithClock(now func() time.Time) *checkoutUC {
	u.now = now
	return u
}

func (u *checkoutUC) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Checkout")()
	ctx = logging.WithUserID(ctx, req.UserID)

	if u.limiter != nil && u.limit.Max > 0 {
		ok, err := u.limiter.Allow(ctx, fmt.Sprintf("rate_limit:%d:checkout", req.UserID), u.limit.Max, u.limit.Window)
		if err != nil {
			// Fail open: the limiter protects Click, not the ledger.
			logging.With(ctx, u.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			return nil, domain.ErrRateLimited
		}
	}

	id, err := model.NewMerchantTransID(req.UserID, req.Plan, req.Months, req.PackageCode, u.now())
	if err != nil {
		return nil, errors.Wrap(err, "checkout selection")
	}
	price, err := u.catalog.Price(id)
	if err != nil {
		return nil, errors.Wrap(err, "price")
	}

	var discount *model.Discount
	if model.NormalizePromoCode(req.PromoCode) != "" {
		if discount, err = u.promos.Validate(ctx, req.PromoCode, id.Plan, price); err != nil {
			return nil, err
		}
	}

	p, err := model.NewPendingPayment(id, price, discount)
	if err != nil {
		return nil, err
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.CreatePending(ctx, tx, p); err != nil {
			return err
		}
		if discount != nil {
			if _, err := u.promos.Reserve(ctx, tx, id.UserID, p.MerchantTransID, discount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pending payment")
	}

	logging.With(logging.WithMerchantTransID(ctx, p.MerchantTransID), u.log).Info().
		Int64("amount", p.Amount).
		Int64("original_amount", p.OriginalAmount).
		Msg("checkout created")
	return &CheckoutResult{Payment: p, Discount: discount, PayURL: u.payURL.PayURL(p.MerchantTransID, p.Amount)}, nil
}

func (u *checkoutUC) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := u.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, limit)
	if err != nil {
		return 0, errors.Wrap(err, "list stale checkouts")
	}
	n := 0
	for _, p := range stale {
		// A cancel never reads the parsed id, so legacy keys still expire.
		id, err := model.ParseMerchantTransID(p.MerchantTransID)
		if err != nil {
			u.log.Warn().Err(err).Str("merchant_trans_id", p.MerchantTransID).Msg("expiring unparsable ledger key")
		}
		res, err := u.settlement.Settle(ctx, SettleRequest{
			ID:        id,
			Key:       p.MerchantTransID,
			Status:    model.PaymentStatusCancelled,
			ErrorNote: "Checkout expired",
			From:      model.PaymentStatusPending,
		})
		switch {
		case errors.Is(err, domain.ErrStateConflict):
			// Click moved it meanwhile.
			continue
		case err != nil:
			return n, err
		}
		if res.Changed {
			n++
		}
	}
	return n, nil
}
