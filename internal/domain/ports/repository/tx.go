package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque storage handle. Postgres repositories accept a pgx.Tx,
// a pooled connection or NoTX (use the pool).
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one database transaction and passes the
// handle on as tx. Repositories called with that tx take row locks
// (SELECT ... FOR UPDATE) where the operation needs them.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		p, err := payments.FindByMerchantTransID(ctx, tx, id)
//		...
//		return err
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
