package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentCols = `id, merchant_trans_id, click_trans_id, user_id, amount, original_amount, discount_percent,
  discount_amount, promo_code, plan, package_code, months, payment_method, status, error_code, error_note,
  prepare_time, complete_time, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p            model.Payment
		plan, status string
	)
	if err := row.Scan(&p.ID, &p.MerchantTransID, &p.ClickTransID, &p.UserID, &p.Amount, &p.OriginalAmount,
		&p.DiscountPercent, &p.DiscountAmount, &p.PromoCode, &plan, &p.PackageCode, &p.Months, &p.PaymentMethod,
		&status, &p.ErrorCode, &p.ErrorNote, &p.PrepareTime, &p.CompleteTime, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	// Rows written by older deployments may carry legacy plan names.
	pc, err := model.ParsePlanCode(plan)
	if err != nil {
		pc = model.PlanCode(plan)
	}
	p.Plan, p.Status = pc, model.PaymentStatus(status)
	return &p, nil
}

func (r *paymentRepo) CreatePending(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO payments (
  merchant_trans_id, user_id, amount, original_amount, discount_percent, discount_amount, promo_code,
  plan, package_code, months, payment_method, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'pending',$12,$12)
RETURNING id;`
	err = ex.QueryRow(ctx, q, p.MerchantTransID, p.UserID, p.Amount, p.OriginalAmount, p.DiscountPercent,
		p.DiscountAmount, p.PromoCode, string(p.Plan), p.PackageCode, p.Months, p.PaymentMethod, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return mapErr("create payment", err)
	}
	p.Status = model.PaymentStatusPending
	return nil
}

func (r *paymentRepo) MarkPrepared(ctx context.Context, tx repository.Tx, merchantTransID, clickTransID string, at time.Time) (*model.Payment, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `
UPDATE payments
   SET click_trans_id = $2, status = 'prepared', prepare_time = $3, updated_at = NOW()
 WHERE merchant_trans_id = $1
   AND status = 'pending'
   AND click_trans_id IS NULL
RETURNING ` + paymentCols + `;`
	p, err := scanPayment(ex.QueryRow(ctx, q, merchantTransID, clickTransID, at))
	switch {
	case err == nil:
		return p, nil
	case isUniqueViolation(err):
		// click id already bound to another payment
		return nil, domain.ErrStateConflict
	case !isNoRows(err):
		return nil, mapErr("mark prepared", err)
	}

	cur, err := r.FindByMerchantTransID(ctx, tx, merchantTransID)
	if err != nil {
		return nil, err
	}
	if cur.ClickTransID != nil && *cur.ClickTransID == clickTransID {
		return cur, nil
	}
	return nil, domain.ErrStateConflict
}

func (r *paymentRepo) MarkTerminal(ctx context.Context, tx repository.Tx, merchantTransID string, status model.PaymentStatus, errorCode int, errorNote string, at time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `
UPDATE payments
   SET status = $2, error_code = $3, error_note = $4, complete_time = $5, updated_at = NOW()
 WHERE merchant_trans_id = $1
   AND status IN ('pending','prepared');`
	cmd, err := ex.Exec(ctx, q, merchantTransID, string(status), errorCode, errorNote, at)
	if err != nil {
		return false, mapErr("mark terminal", err)
	}
	if cmd.RowsAffected() == 1 {
		return true, nil
	}

	cur, err := r.FindByMerchantTransID(ctx, tx, merchantTransID)
	if err != nil {
		return false, err
	}
	if cur.Status == status {
		return false, nil
	}
	return false, domain.ErrStateConflict
}

func (r *paymentRepo) FindByMerchantTransID(ctx context.Context, tx repository.Tx, merchantTransID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "merchant_trans_id", merchantTransID)
}

func (r *paymentRepo) FindByClickTransID(ctx context.Context, tx repository.Tx, clickTransID string) (*model.Payment, error) {
	return r.findOne(ctx, tx, "click_trans_id", clickTransID)
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, col, val string) (*model.Payment, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + paymentCols + ` FROM payments WHERE ` + col + ` = $1` + forUpdate(tx) + `;`
	p, err := scanPayment(ex.QueryRow(ctx, q, val))
	if err != nil {
		return nil, mapErr("find payment", err)
	}
	return p, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentCols + ` FROM payments WHERE status = 'pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, before, limit)
}

func (r *paymentRepo) ListConfirmedByUser(ctx context.Context, tx repository.Tx, userID int64, since time.Time) ([]*model.Payment, error) {
	q := `SELECT ` + paymentCols + ` FROM payments
 WHERE user_id = $1 AND status = 'confirmed' AND complete_time >= $2
 ORDER BY complete_time DESC;`
	return r.list(ctx, tx, q, userID, since)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr("list payments", err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapErr("scan payment", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("list payments", err)
	}
	return out, nil
}
