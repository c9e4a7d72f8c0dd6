package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"balans-ai/internal/domain"
)

// PromoCode is a catalog entry. Codes are stored upper-case.
type PromoCode struct {
	Code            string
	DiscountPercent int
	UsageLimit      int // 0 = unlimited
	UsageCount      int
	Plan            PlanCode // specific plan or PlanAny
	Description     string
	IsActive        bool
	StartsAt        *time.Time
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NormalizePromoCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// AppliesTo reports whether the promo scope covers plan.
func (p *PromoCode) AppliesTo(plan PlanCode) bool {
	return p.Plan == PlanAny || plan == PlanAny || p.Plan == plan
}

// Check runs every catalog constraint in a fixed order and returns the first failure.
func (p *PromoCode) Check(plan PlanCode, now time.Time) error {
	if p == nil {
		return &domain.PromoError{Kind: domain.PromoNotFound}
	}
	reject := func(k domain.PromoErrorKind) error { return &domain.PromoError{Kind: k, Code: p.Code} }
	switch {
	case !p.IsActive:
		return reject(domain.PromoInactive)
	case p.StartsAt != nil && now.Before(*p.StartsAt):
		return reject(domain.PromoNotYetStarted)
	case p.ExpiresAt != nil && !now.Before(*p.ExpiresAt):
		return reject(domain.PromoExpired)
	case !p.AppliesTo(plan):
		return reject(domain.PromoPlanMismatch)
	case p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit:
		return reject(domain.PromoUsageLimitReached)
	case p.DiscountPercent <= 0:
		return reject(domain.PromoZeroDiscount)
	}
	return nil
}

// Discount is the outcome of a successful promo validation.
type Discount struct {
	Code           string
	Percent        int
	OriginalAmount int64
	DiscountAmount int64
	FinalAmount    int64
}

// ApplyDiscount computes round_half_up(amount*percent/100) in whole units
// and returns the remaining charge, clamped at zero.
func ApplyDiscount(code string, amount int64, percent int) (*Discount, error) {
	if percent <= 0 {
		return nil, &domain.PromoError{Kind: domain.PromoZeroDiscount, Code: code}
	}
	if percent > 100 {
		percent = 100
	}
	off := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
	final := amount - off
	if final < 0 {
		final = 0
	}
	if final <= 0 {
		return nil, &domain.PromoError{Kind: domain.PromoNonPositiveAmount, Code: code}
	}
	return &Discount{
		Code:           code,
		Percent:        percent,
		OriginalAmount: amount,
		DiscountAmount: off,
		FinalAmount:    final,
	}, nil
}

type RedemptionStatus string

const (
	RedemptionReserved  RedemptionStatus = "reserved"
	RedemptionCompleted RedemptionStatus = "completed"
	RedemptionCancelled RedemptionStatus = "cancelled"
)

// PromoRedemption reserves a discount against one checkout attempt.
type PromoRedemption struct {
	ID              string
	Code            string
	UserID          int64
	MerchantTransID string
	DiscountPercent int
	DiscountAmount  int64
	Status          RedemptionStatus
	CreatedAt       time.Time
	FinalizedAt     *time.Time
}
