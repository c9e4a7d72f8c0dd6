package repository

import (
	"context"
	"time"

	"balans-ai/internal/domain/model"
)

type PromoRepository interface {
	FindByCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	// IncrementUsage bumps usage_count unless the limit is already reached.
	IncrementUsage(ctx context.Context, tx Tx, code string) (bool, error)
	Upsert(ctx context.Context, tx Tx, p *model.PromoCode) error
}

type RedemptionRepository interface {
	// Reserve inserts r in reserved. ErrDuplicate for an existing (code, merchant id) pair.
	Reserve(ctx context.Context, tx Tx, r *model.PromoRedemption) error
	// Finalize moves the reserved redemption of a payment to status. It returns
	// nil and false when there is none or it was already finalized.
	Finalize(ctx context.Context, tx Tx, merchantTransID string, status model.RedemptionStatus, at time.Time) (*model.PromoRedemption, bool, error)
	FindByMerchantTransID(ctx context.Context, tx Tx, merchantTransID string) (*model.PromoRedemption, error)
}
