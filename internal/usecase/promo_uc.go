// File: internal/usecase/promo_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
)

// Compile-time check
var _ PromoUseCase = (*promoUC)(nil)

type PromoUseCase interface {
	// Validate prices amount for plan with code applied. Rejections are *domain.PromoError.
	Validate(ctx context.Context, code string, plan model.PlanCode, amount int64) (*model.Discount, error)
	// Reserve records a pending redemption for a checkout. Call it in the checkout tx.
	Reserve(ctx context.Context, tx repository.Tx, userID int64, merchantTransID string, d *model.Discount) (*model.PromoRedemption, error)
	// Finalize completes (and counts) or cancels the reserved redemption of a payment.
	// It returns the status applied, or "" when there was nothing to finalize.
	Finalize(ctx context.Context, tx repository.Tx, merchantTransID string, confirmed bool) (model.RedemptionStatus, error)
	Upsert(ctx context.Context, p *model.PromoCode) error
}

type promoUC struct {
	promos      repository.PromoRepository
	redemptions repository.RedemptionRepository
	log         *zerolog.Logger
	now         func() time.Time
}

func NewPromoUseCase(promos repository.PromoRepository, redemptions repository.RedemptionRepository, logger *zerolog.Logger) *promoUC {
	l := logger.With().Str("component", "promo_uc").Logger()
	return &promoUC{promos: promos, redemptions: redemptions, log: &l, now: time.Now}
}

func (u *promoUC) Validate(ctx context.Context, code string, plan model.PlanCode, amount int64) (*model.Discount, error) {
	code = model.NormalizePromoCode(code)
	if code == "" {
		return nil, &domain.PromoError{Kind: domain.PromoNotFound}
	}
	p, err := u.promos.FindByCode(ctx, repository.NoTX, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.PromoError{Kind: domain.PromoNotFound, Code: code}
	}
	if err != nil {
		return nil, errors.Wrap(err, "find promo")
	}
	if err := p.Check(plan, u.now()); err != nil {
		return nil, err
	}
	return model.ApplyDiscount(p.Code, amount, p.DiscountPercent)
}

func (u *promoUC) Reserve(ctx context.Context, tx repository.Tx, userID int64, merchantTransID string, d *model.Discount) (*model.PromoRedemption, error) {
	r := &model.PromoRedemption{
		ID:              uuid.NewString(),
		Code:            d.Code,
		UserID:          userID,
		MerchantTransID: merchantTransID,
		DiscountPercent: d.Percent,
		DiscountAmount:  d.DiscountAmount,
		Status:          model.RedemptionReserved,
		CreatedAt:       u.now(),
	}
	if err := u.redemptions.Reserve(ctx, tx, r); err != nil {
		return nil, errors.Wrap(err, "reserve redemption")
	}
	return r, nil
}

func (u *promoUC) Finalize(ctx context.Context, tx repository.Tx, merchantTransID string, confirmed bool) (model.RedemptionStatus, error) {
	status := model.RedemptionCancelled
	if confirmed {
		status = model.RedemptionCompleted
	}
	r, changed, err := u.redemptions.Finalize(ctx, tx, merchantTransID, status, u.now())
	if err != nil {
		return "", errors.Wrap(err, "finalize redemption")
	}
	if !changed {
		return "", nil
	}
	if status != model.RedemptionCompleted {
		return status, nil
	}

	ok, err := u.promos.IncrementUsage(ctx, tx, r.Code)
	if err != nil {
		return "", errors.Wrap(err, "increment promo usage")
	}
	if !ok {
		// Several users reserved the last slots; the counter stays at the limit.
		u.log.Warn().
			Str("promo", r.Code).
			Str("merchant_trans_id", merchantTransID).
			Msg("promo usage limit reached at confirmation; discount honoured")
	}
	return status, nil
}

func (u *promoUC) Upsert(ctx context.Context, p *model.PromoCode) error {
	p.Code = model.NormalizePromoCode(p.Code)
	if p.Code == "" || p.DiscountPercent < 0 || p.DiscountPercent > 100 || p.UsageLimit < 0 {
		return domain.ErrInvalidArgument
	}
	if p.Plan == "" {
		p.Plan = model.PlanAny
	}
	return u.promos.Upsert(ctx, repository.NoTX, p)
}
