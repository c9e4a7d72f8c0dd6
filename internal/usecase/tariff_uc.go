// File: internal/usecase/tariff_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
)

// Compile-time check
var _ TariffUseCase = (*tariffUC)(nil)

// entitlementLookback bounds how far back confirmed payments are scanned for
// entitlements still in their window.
const entitlementLookback = 24 * model.ActivationDays * 24 * time.Hour

type TariffUseCase interface {
	// Activate applies a confirmed purchase of plan for months. A stored,
	// unexpired plan of strictly higher priority is kept untouched.
	Activate(ctx context.Context, tx repository.Tx, userID int64, plan model.PlanCode, months int) (*Activation, error)
	// GrantPackage logs the package purchase and resets the user's quota to it.
	// A purchase already logged for merchantTransID is a no-op.
	GrantPackage(ctx context.Context, tx repository.Tx, userID int64, pkg model.UsagePackage, amount int64, merchantTransID string) (bool, error)
	// View returns the effective tariff across the stored row and confirmed payments.
	View(ctx context.Context, userID int64) (*model.TariffView, error)
}

// Activation reports what Activate did.
type Activation struct {
	Requested model.PlanCode
	Plan      model.PlanCode // plan in force afterwards
	ExpiresAt time.Time
	Applied   bool // false when a higher plan was kept
}

type tariffUC struct {
	tariffs  repository.TariffRepository
	packages repository.PackageRepository
	payments repository.PaymentRepository
	log      *zerolog.Logger
	now      func() time.Time
}

func NewTariffUseCase(tariffs repository.TariffRepository, packages repository.PackageRepository, payments repository.PaymentRepository, logger *zerolog.Logger) *tariffUC {
	l := logger.With().Str("component", "tariff_uc").Logger()
	return &tariffUC{tariffs: tariffs, packages: packages, payments: payments, log: &l, now: time.Now}
}

func (u *tariffUC) WithClock(now func() time.Time) *tariffUC {
	u.now = now
	return u
}

func (u *tariffUC) Activate(ctx context.Context, tx repository.Tx, userID int64, plan model.PlanCode, months int) (*Activation, error) {
	if userID <= 0 || !plan.IsPaid() {
		return nil, domain.ErrInvalidArgument
	}
	if months <= 0 {
		months = 1
	}
	now := u.now()

	stored, err := u.tariffs.Get(ctx, tx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Wrap(err, "load tariff")
	}
	if current := stored.ActivePlan(now); current.Outranks(plan) {
		u.log.Info().
			Int64("user_id", userID).
			Str("current", current.String()).
			Str("requested", plan.String()).
			Msg("higher plan active; not downgrading")
		return &Activation{Requested: plan, Plan: current, ExpiresAt: *stored.ExpiresAt}, nil
	}

	expires := now.AddDate(0, 0, model.ActivationDays*months)
	t := &model.UserTariff{UserID: userID, Plan: plan, ExpiresAt: &expires, UpdatedAt: now}
	if err := u.tariffs.Upsert(ctx, tx, t); err != nil {
		return nil, errors.Wrap(err, "save tariff")
	}
	return &Activation{Requested: plan, Plan: plan, ExpiresAt: expires, Applied: true}, nil
}

func (u *tariffUC) GrantPackage(ctx context.Context, tx repository.Tx, userID int64, pkg model.UsagePackage, amount int64, merchantTransID string) (bool, error) {
	now := u.now()
	inserted, err := u.packages.LogPurchase(ctx, tx, &model.PackagePurchase{
		ID:              ulid.Make().String(),
		UserID:          userID,
		PackageCode:     pkg.Code,
		Amount:          amount,
		MerchantTransID: merchantTransID,
		PaidAt:          now,
	})
	if err != nil {
		return false, errors.Wrap(err, "log package purchase")
	}
	if !inserted {
		return false, nil
	}
	if err := u.packages.AssignGrant(ctx, tx, model.NewPackageGrant(userID, pkg)); err != nil {
		return false, errors.Wrap(err, "assign package")
	}
	return true, nil
}

func (u *tariffUC) View(ctx context.Context, userID int64) (*model.TariffView, error) {
	if userID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := u.now()
	view := &model.TariffView{UserID: userID, Plan: model.PlanFree}

	var entries []model.Entitlement
	stored, err := u.tariffs.Get(ctx, repository.NoTX, userID)
	switch {
	case err == nil:
		if stored.ExpiresAt != nil {
			entries = append(entries, model.Entitlement{Plan: stored.Plan, ExpiresAt: *stored.ExpiresAt, Source: "tariff"})
		}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, errors.Wrap(err, "load tariff")
	}

	paid, err := u.payments.ListConfirmedByUser(ctx, repository.NoTX, userID, now.Add(-entitlementLookback))
	if err != nil {
		return nil, errors.Wrap(err, "list confirmed payments")
	}
	entries = append(entries, lo.FilterMap(paid, func(p *model.Payment, _ int) (model.Entitlement, bool) {
		end, ok := p.EntitlementEnd()
		return model.Entitlement{Plan: p.Plan, ExpiresAt: end, Source: p.MerchantTransID}, ok
	})...)

	if best, ok := model.EffectivePlan(now, entries); ok {
		view.Plan = best.Plan
		exp := best.ExpiresAt
		view.ExpiresAt = &exp
	}

	grant, err := u.packages.GetGrant(ctx, repository.NoTX, userID)
	switch {
	case err == nil:
		view.Package = grant
	case !errors.Is(err, domain.ErrNotFound):
		return nil, errors.Wrap(err, "load package")
	}
	return view, nil
}
