package model

import "time"

// UserTariff is the stored subscription row, one per user.
type UserTariff struct {
	UserID    int64
	Plan      PlanCode
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

// ActivePlan returns the stored plan, or FREE once it has expired.
func (t *UserTariff) ActivePlan(now time.Time) PlanCode {
	if t == nil || t.Plan == "" {
		return PlanFree
	}
	if t.Plan == PlanFree {
		return PlanFree
	}
	if t.ExpiresAt == nil || !now.Before(*t.ExpiresAt) {
		return PlanFree
	}
	return t.Plan
}

// Entitlement is one source of plan access: the stored row or a confirmed payment.
type Entitlement struct {
	Plan      PlanCode
	ExpiresAt time.Time
	Source    string
}

// EffectivePlan is the highest-priority entitlement that has not expired.
// Ties go to the later expiry so the reported end date is the useful one.
func EffectivePlan(now time.Time, entries []Entitlement) (Entitlement, bool) {
	var (
		best  Entitlement
		found bool
	)
	for _, e := range entries {
		if !now.Before(e.ExpiresAt) || e.Plan.Priority() == 0 {
			continue
		}
		if !found || e.Plan.Outranks(best.Plan) || (e.Plan == best.Plan && e.ExpiresAt.After(best.ExpiresAt)) {
			best, found = e, true
		}
	}
	return best, found
}

// PackageGrant is the single active usage package of a user.
type PackageGrant struct {
	UserID      int64
	PackageCode string
	TextLimit   int
	VoiceLimit  int
	TextUsed    int
	VoiceUsed   int
	UpdatedAt   time.Time
}

// NewPackageGrant starts a grant with both counters at zero.
func NewPackageGrant(userID int64, pkg UsagePackage) *PackageGrant {
	return &PackageGrant{
		UserID:      userID,
		PackageCode: pkg.Code,
		TextLimit:   pkg.TextLimit,
		VoiceLimit:  pkg.VoiceLimit,
		UpdatedAt:   time.Now(),
	}
}

func (g *PackageGrant) TextRemaining() int  { return max(0, g.TextLimit-g.TextUsed) }
func (g *PackageGrant) VoiceRemaining() int { return max(0, g.VoiceLimit-g.VoiceUsed) }

// PackagePurchase is an append-only log entry of a paid package.
type PackagePurchase struct {
	ID              string
	UserID          int64
	PackageCode     string
	Amount          int64
	MerchantTransID string
	PaidAt          time.Time
}

// TariffView is what the mini-app sees for a user.
type TariffView struct {
	UserID    int64
	Plan      PlanCode
	ExpiresAt *time.Time
	Package   *PackageGrant
}
