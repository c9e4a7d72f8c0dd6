package repository

import (
	"context"
	"time"

	"balans-ai/internal/domain/model"
)

// -----------------------------
// Payment ledger
// -----------------------------

type PaymentRepository interface {
	// CreatePending inserts p in pending and sets p.ID. ErrDuplicate when the
	// merchant transaction id already exists.
	CreatePending(ctx context.Context, tx Tx, p *model.Payment) error

	// MarkPrepared moves pending -> prepared and stores the Click id. Repeating
	// with the same Click id is a no-op; a different one is ErrStateConflict.
	MarkPrepared(ctx context.Context, tx Tx, merchantTransID, clickTransID string, at time.Time) (*model.Payment, error)

	// MarkTerminal moves a live payment to a terminal status. changed is false
	// when it already had that status; another terminal status is ErrStateConflict.
	MarkTerminal(ctx context.Context, tx Tx, merchantTransID string, status model.PaymentStatus, errorCode int, errorNote string, at time.Time) (changed bool, err error)

	FindByMerchantTransID(ctx context.Context, tx Tx, merchantTransID string) (*model.Payment, error)
	FindByClickTransID(ctx context.Context, tx Tx, clickTransID string) (*model.Payment, error)

	ListPendingOlderThan(ctx context.Context, tx Tx, before time.Time, limit int) ([]*model.Payment, error)
	// ListConfirmedByUser returns confirmed payments completed at or after since.
	ListConfirmedByUser(ctx context.Context, tx Tx, userID int64, since time.Time) ([]*model.Payment, error)
}
