package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"balans-ai/internal/domain"
)

// MerchantTransID is the typed form of our Click transaction reference
// "{userId}_{PLAN}_{monthsOrPackage}_{unix}". Exactly one of Months and
// PackageCode is set; a package is only meaningful for PLUS.
type MerchantTransID struct {
	UserID      int64
	Plan        PlanCode
	Months      int
	PackageCode string
	CreatedAt   time.Time
}

func NewMerchantTransID(userID int64, plan PlanCode, months int, packageCode string, at time.Time) (MerchantTransID, error) {
	id := MerchantTransID{
		UserID:      userID,
		Plan:        plan,
		Months:      months,
		PackageCode: strings.ToUpper(strings.TrimSpace(packageCode)),
		CreatedAt:   at.UTC().Truncate(time.Second),
	}
	if err := id.validate(); err != nil {
		return MerchantTransID{}, err
	}
	return id, nil
}

func (m MerchantTransID) validate() error {
	if m.UserID <= 0 || !m.Plan.IsPaid() {
		return domain.ErrInvalidArgument
	}
	if m.PackageCode != "" {
		if m.Months != 0 || m.Plan != PlanPlus || strings.Contains(m.PackageCode, "_") {
			return domain.ErrInvalidArgument
		}
		return nil
	}
	if m.Months <= 0 {
		return domain.ErrInvalidArgument
	}
	return nil
}

// MonthsOrDefault is the number of months the purchase activates; packages run one month.
func (m MerchantTransID) MonthsOrDefault() int {
	if m.Months > 0 {
		return m.Months
	}
	return 1
}

func (m MerchantTransID) String() string {
	third := m.PackageCode
	if third == "" {
		third = strconv.Itoa(m.Months)
	}
	return fmt.Sprintf("%d_%s_%s_%d", m.UserID, m.Plan, third, m.CreatedAt.Unix())
}

// ParseMerchantTransID decodes the wire form. The third token is months when
// numeric, otherwise a package code.
func ParseMerchantTransID(s string) (MerchantTransID, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 4 {
		return MerchantTransID{}, fmt.Errorf("merchant trans id %q: %w", s, domain.ErrInvalidArgument)
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return MerchantTransID{}, fmt.Errorf("merchant trans id %q: user: %w", s, domain.ErrInvalidArgument)
	}
	plan, err := ParsePlanCode(parts[1])
	if err != nil || !plan.IsPaid() {
		return MerchantTransID{}, fmt.Errorf("merchant trans id %q: plan: %w", s, domain.ErrInvalidArgument)
	}
	ts, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return MerchantTransID{}, fmt.Errorf("merchant trans id %q: timestamp: %w", s, domain.ErrInvalidArgument)
	}

	id := MerchantTransID{UserID: userID, Plan: plan, CreatedAt: time.Unix(ts, 0).UTC()}
	if months, err := strconv.Atoi(parts[2]); err == nil {
		id.Months = months
	} else {
		id.PackageCode = strings.ToUpper(parts[2])
	}
	if err := id.validate(); err != nil {
		return MerchantTransID{}, fmt.Errorf("merchant trans id %q: %w", s, err)
	}
	return id, nil
}
