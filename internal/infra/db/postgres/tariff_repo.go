package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
)

var (
	_ repository.TariffRepository  = (*tariffRepo)(nil)
	_ repository.PackageRepository = (*packageRepo)(nil)
)

type tariffRepo struct{ pool *pgxpool.Pool }

func NewTariffRepo(pool *pgxpool.Pool) *tariffRepo { return &tariffRepo{pool: pool} }

func (r *tariffRepo) Get(ctx context.Context, tx repository.Tx, userID int64) (*model.UserTariff, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT user_id, plan, expires_at, updated_at FROM user_tariffs WHERE user_id = $1` + forUpdate(tx) + `;`
	var (
		t    model.UserTariff
		plan string
	)
	if err := ex.QueryRow(ctx, q, userID).Scan(&t.UserID, &plan, &t.ExpiresAt, &t.UpdatedAt); err != nil {
		return nil, mapErr("get tariff", err)
	}
	if t.Plan, err = model.ParsePlanCode(plan); err != nil {
		t.Plan = model.PlanCode(plan)
	}
	return &t, nil
}

func (r *tariffRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.UserTariff) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO user_tariffs (user_id, plan, expires_at, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id) DO UPDATE SET plan = EXCLUDED.plan, expires_at = EXCLUDED.expires_at, updated_at = NOW();`
	_, err = ex.Exec(ctx, q, t.UserID, string(t.Plan), t.ExpiresAt)
	return mapErr("upsert tariff", err)
}

type packageRepo struct{ pool *pgxpool.Pool }

func NewPackageRepo(pool *pgxpool.Pool) *packageRepo { return &packageRepo{pool: pool} }

func (r *packageRepo) AssignGrant(ctx context.Context, tx repository.Tx, g *model.PackageGrant) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO user_package_limits (user_id, package_code, text_limit, voice_limit, text_used, voice_used, updated_at)
VALUES ($1, $2, $3, $4, 0, 0, NOW())
ON CONFLICT (user_id) DO UPDATE SET
  package_code = EXCLUDED.package_code,
  text_limit = EXCLUDED.text_limit,
  voice_limit = EXCLUDED.voice_limit,
  text_used = 0,
  voice_used = 0,
  updated_at = NOW();`
	_, err = ex.Exec(ctx, q, g.UserID, g.PackageCode, g.TextLimit, g.VoiceLimit)
	return mapErr("assign package", err)
}

func (r *packageRepo) GetGrant(ctx context.Context, tx repository.Tx, userID int64) (*model.PackageGrant, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT user_id, package_code, text_limit, voice_limit, text_used, voice_used, updated_at
  FROM user_package_limits WHERE user_id = $1;`
	var g model.PackageGrant
	if err := ex.QueryRow(ctx, q, userID).Scan(&g.UserID, &g.PackageCode, &g.TextLimit, &g.VoiceLimit, &g.TextUsed, &g.VoiceUsed, &g.UpdatedAt); err != nil {
		return nil, mapErr("get package", err)
	}
	return &g, nil
}

func (r *packageRepo) LogPurchase(ctx context.Context, tx repository.Tx, p *model.PackagePurchase) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `
INSERT INTO package_purchases (id, user_id, package_code, amount, merchant_trans_id, paid_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (merchant_trans_id) DO NOTHING;`
	cmd, err := ex.Exec(ctx, q, p.ID, p.UserID, p.PackageCode, p.Amount, p.MerchantTransID, p.PaidAt)
	if err != nil {
		return false, mapErr("log package purchase", err)
	}
	return cmd.RowsAffected() == 1, nil
}
