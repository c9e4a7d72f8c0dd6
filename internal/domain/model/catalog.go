package model

import (
	"strings"

	"github.com/samber/lo"

	"balans-ai/internal/domain"
)

// Catalog prices checkouts. Monthly plans cost MonthlyPrices[plan]*months;
// PLUS packages have a fixed price.
type Catalog struct {
	MonthlyPrices map[PlanCode]int64
	Packages      []UsagePackage
	AllowedMonths []int
}

func (c Catalog) Package(code string) (UsagePackage, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return lo.Find(c.Packages, func(p UsagePackage) bool { return p.Code == code })
}

// Price returns the undiscounted charge for id.
func (c Catalog) Price(id MerchantTransID) (int64, error) {
	if id.PackageCode != "" {
		pkg, ok := c.Package(id.PackageCode)
		if !ok {
			return 0, domain.ErrInvalidArgument
		}
		return pkg.Price, nil
	}
	if len(c.AllowedMonths) > 0 && !lo.Contains(c.AllowedMonths, id.Months) {
		return 0, domain.ErrInvalidArgument
	}
	monthly, ok := c.MonthlyPrices[id.Plan]
	if !ok || monthly <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return monthly * int64(id.Months), nil
}
