package model

import (
	"strings"

	"balans-ai/internal/domain"
)

// PlanCode identifies a subscription tier.
type PlanCode string

const (
	PlanFree PlanCode = "FREE"
	PlanPlus PlanCode = "PLUS"
	PlanPro  PlanCode = "PRO"

	// PlanAny is only valid as a promo scope.
	PlanAny PlanCode = "ANY"
)

// planPriority is the single total order over plans. Add new tiers here only.
var planPriority = map[PlanCode]int{
	PlanFree: 1,
	PlanPlus: 2,
	PlanPro:  3,
}

// Priority returns the tier rank; unknown codes rank below FREE.
func (p PlanCode) Priority() int { return planPriority[p] }

// Outranks reports whether p is strictly higher priority than other.
func (p PlanCode) Outranks(other PlanCode) bool { return p.Priority() > other.Priority() }

func (p PlanCode) IsPaid() bool { return p == PlanPlus || p == PlanPro }

func (p PlanCode) String() string { return string(p) }

// ParsePlanCode accepts canonical codes and the legacy names stored by older
// deployments ("Bepul", "Plus").
func ParsePlanCode(s string) (PlanCode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FREE", "BEPUL", "":
		return PlanFree, nil
	case "PLUS":
		return PlanPlus, nil
	case "PRO":
		return PlanPro, nil
	case "ANY":
		return PlanAny, nil
	}
	return "", domain.ErrInvalidArgument
}

// MaxPlan returns the highest-priority plan of the given ones (FREE if empty).
func MaxPlan(plans ...PlanCode) PlanCode {
	best := PlanFree
	for _, p := range plans {
		if p.Outranks(best) {
			best = p
		}
	}
	return best
}

// UsagePackage is a purchasable quota bundle sold as a PLUS add-on.
type UsagePackage struct {
	Code       string
	Title      string
	TextLimit  int
	VoiceLimit int
	Price      int64
}

// ActivationDays is how long one purchased month lasts.
const ActivationDays = 30
