package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
)

var (
	_ repository.PromoRepository      = (*promoRepo)(nil)
	_ repository.RedemptionRepository = (*redemptionRepo)(nil)
)

type promoRepo struct{ pool *pgxpool.Pool }

func NewPromoRepo(pool *pgxpool.Pool) *promoRepo { return &promoRepo{pool: pool} }

func (r *promoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT code, discount_percent, usage_limit, usage_count, plan, description, is_active,
  starts_at, expires_at, created_at, updated_at
  FROM promo_codes WHERE code = $1` + forUpdate(tx) + `;`
	var (
		p    model.PromoCode
		plan string
	)
	err = ex.QueryRow(ctx, q, model.NormalizePromoCode(code)).Scan(&p.Code, &p.DiscountPercent, &p.UsageLimit,
		&p.UsageCount, &plan, &p.Description, &p.IsActive, &p.StartsAt, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr("find promo", err)
	}
	p.Plan = model.PlanCode(plan)
	return &p, nil
}

func (r *promoRepo) IncrementUsage(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `
UPDATE promo_codes
   SET usage_count = usage_count + 1, updated_at = NOW()
 WHERE code = $1
   AND (usage_limit = 0 OR usage_count < usage_limit);`
	cmd, err := ex.Exec(ctx, q, code)
	if err != nil {
		return false, mapErr("increment promo usage", err)
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := ex.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM promo_codes WHERE code = $1);`, code).Scan(&exists); err != nil {
		return false, mapErr("find promo", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *promoRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO promo_codes (code, discount_percent, usage_limit, usage_count, plan, description, is_active, starts_at, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $5, $6, $7, $8, NOW(), NOW())
ON CONFLICT (code) DO UPDATE SET
  discount_percent = EXCLUDED.discount_percent,
  usage_limit = EXCLUDED.usage_limit,
  plan = EXCLUDED.plan,
  description = EXCLUDED.description,
  is_active = EXCLUDED.is_active,
  starts_at = EXCLUDED.starts_at,
  expires_at = EXCLUDED.expires_at,
  updated_at = NOW();`
	_, err = ex.Exec(ctx, q, p.Code, p.DiscountPercent, p.UsageLimit, string(p.Plan), p.Description, p.IsActive, p.StartsAt, p.ExpiresAt)
	return mapErr("upsert promo", err)
}

type redemptionRepo struct{ pool *pgxpool.Pool }

func NewRedemptionRepo(pool *pgxpool.Pool) *redemptionRepo { return &redemptionRepo{pool: pool} }

const redemptionCols = `id, code, user_id, merchant_trans_id, discount_percent, discount_amount, status, created_at, finalized_at`

func scanRedemption(row interface{ Scan(dest ...interface{}) error }) (*model.PromoRedemption, error) {
	var (
		r      model.PromoRedemption
		status string
	)
	if err := row.Scan(&r.ID, &r.Code, &r.UserID, &r.MerchantTransID, &r.DiscountPercent, &r.DiscountAmount, &status, &r.CreatedAt, &r.FinalizedAt); err != nil {
		return nil, err
	}
	r.Status = model.RedemptionStatus(status)
	return &r, nil
}

func (r *redemptionRepo) Reserve(ctx context.Context, tx repository.Tx, red *model.PromoRedemption) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO promo_redemptions (` + redemptionCols + `)
VALUES ($1, $2, $3, $4, $5, $6, 'reserved', $7, NULL);`
	_, err = ex.Exec(ctx, q, red.ID, red.Code, red.UserID, red.MerchantTransID, red.DiscountPercent, red.DiscountAmount, red.CreatedAt)
	return mapErr("reserve redemption", err)
}

func (r *redemptionRepo) Finalize(ctx context.Context, tx repository.Tx, merchantTransID string, status model.RedemptionStatus, at time.Time) (*model.PromoRedemption, bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, false, err
	}
	const q = `
UPDATE promo_redemptions
   SET status = $2, finalized_at = $3
 WHERE merchant_trans_id = $1 AND status = 'reserved'
RETURNING ` + redemptionCols + `;`
	red, err := scanRedemption(ex.QueryRow(ctx, q, merchantTransID, string(status), at))
	switch {
	case isNoRows(err):
		return nil, false, nil
	case err != nil:
		return nil, false, mapErr("finalize redemption", err)
	}
	return red, true, nil
}

func (r *redemptionRepo) FindByMerchantTransID(ctx context.Context, tx repository.Tx, merchantTransID string) (*model.PromoRedemption, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + redemptionCols + ` FROM promo_redemptions WHERE merchant_trans_id = $1 ORDER BY created_at DESC LIMIT 1;`
	red, err := scanRedemption(ex.QueryRow(ctx, q, merchantTransID))
	if err != nil {
		return nil, mapErr("find redemption", err)
	}
	return red, nil
}
