package repository

import (
	"context"

	"balans-ai/internal/domain/model"
)

type TariffRepository interface {
	// Get returns ErrNotFound for users that never bought anything.
	Get(ctx context.Context, tx Tx, userID int64) (*model.UserTariff, error)
	Upsert(ctx context.Context, tx Tx, t *model.UserTariff) error
}

type PackageRepository interface {
	// AssignGrant replaces the user's package and resets both used counters.
	AssignGrant(ctx context.Context, tx Tx, g *model.PackageGrant) error
	GetGrant(ctx context.Context, tx Tx, userID int64) (*model.PackageGrant, error)
	// LogPurchase appends to the purchase log; inserted is false when the
	// merchant transaction id was already logged.
	LogPurchase(ctx context.Context, tx Tx, p *model.PackagePurchase) (inserted bool, err error)
}
