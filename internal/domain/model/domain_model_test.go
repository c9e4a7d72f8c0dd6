//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balans-ai/internal/domain"
)

// --- Plan ordering ---

func TestPlanPriority(t *testing.T) {
	t.Run("should order free below plus below pro", func(t *testing.T) {
		assert.True(t, PlanPro.Outranks(PlanPlus))
		assert.True(t, PlanPlus.Outranks(PlanFree))
		assert.False(t, PlanPlus.Outranks(PlanPlus))
		assert.False(t, PlanPlus.Outranks(PlanPro))
	})

	t.Run("should parse legacy names", func(t *testing.T) {
		p, err := ParsePlanCode("Bepul")
		require.NoError(t, err)
		assert.Equal(t, PlanFree, p)

		p, err = ParsePlanCode(" plus ")
		require.NoError(t, err)
		assert.Equal(t, PlanPlus, p)

		_, err = ParsePlanCode("GOLD")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("should pick the max plan", func(t *testing.T) {
		assert.Equal(t, PlanPro, MaxPlan(PlanPlus, PlanPro, PlanFree))
		assert.Equal(t, PlanFree, MaxPlan())
	})
}

// --- Payment state machine ---

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentStatusPending, PaymentStatusPrepared, true},
		{PaymentStatusPrepared, PaymentStatusPrepared, true},
		{PaymentStatusPrepared, PaymentStatusConfirmed, true},
		{PaymentStatusPending, PaymentStatusCancelled, true},
		{PaymentStatusConfirmed, PaymentStatusConfirmed, true},
		{PaymentStatusConfirmed, PaymentStatusCancelled, false},
		{PaymentStatusCancelled, PaymentStatusConfirmed, false},
		{PaymentStatusFailed, PaymentStatusPrepared, false},
		{PaymentStatusPrepared, PaymentStatusPending, false},
	}
	for _, c := range cases {
		err := CheckTransition(c.from, c.to)
		if c.ok {
			assert.NoError(t, err, "%s -> %s", c.from, c.to)
		} else {
			assert.ErrorIs(t, err, domain.ErrStateConflict, "%s -> %s", c.from, c.to)
		}
	}
}

// --- Merchant transaction id ---

func TestMerchantTransID(t *testing.T) {
	t.Run("should parse a package purchase", func(t *testing.T) {
		id, err := ParseMerchantTransID("123456_PLUS_T750V250_1730034567")
		require.NoError(t, err)
		assert.Equal(t, int64(123456), id.UserID)
		assert.Equal(t, PlanPlus, id.Plan)
		assert.Equal(t, "T750V250", id.PackageCode)
		assert.Equal(t, 0, id.Months)
		assert.Equal(t, 1, id.MonthsOrDefault())
		assert.Equal(t, int64(1730034567), id.CreatedAt.Unix())
	})

	t.Run("should parse a monthly purchase", func(t *testing.T) {
		id, err := ParseMerchantTransID("123456_PRO_12_1730034567")
		require.NoError(t, err)
		assert.Equal(t, PlanPro, id.Plan)
		assert.Equal(t, 12, id.Months)
		assert.Empty(t, id.PackageCode)
	})

	t.Run("should round-trip through String", func(t *testing.T) {
		at := time.Unix(1730034567, 0)
		id, err := NewMerchantTransID(42, PlanPlus, 0, "t300v100", at)
		require.NoError(t, err)
		assert.Equal(t, "42_PLUS_T300V100_1730034567", id.String())

		back, err := ParseMerchantTransID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, back)
	})

	t.Run("should reject malformed ids", func(t *testing.T) {
		for _, s := range []string{
			"",
			"42_PLUS_1",
			"abc_PLUS_1_1730034567",
			"42_GOLD_1_1730034567",
			"42_FREE_1_1730034567",
			"42_PRO_T300V100_1730034567", // packages are PLUS only
			"42_PRO_0_1730034567",
			"42_PRO_1_notatime",
		} {
			_, err := ParseMerchantTransID(s)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument, s)
		}
	})
}

// --- Promo ---

func TestApplyDiscount(t *testing.T) {
	t.Run("should round half up", func(t *testing.T) {
		d, err := ApplyDiscount("50FRIEND50", 19990, 60)
		require.NoError(t, err)
		assert.Equal(t, int64(11994), d.DiscountAmount)
		assert.Equal(t, int64(7996), d.FinalAmount)

		// 9999 * 15% = 1499.85 -> 1500
		d, err = ApplyDiscount("X", 9999, 15)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), d.DiscountAmount)
		assert.Equal(t, int64(8499), d.FinalAmount)

		// 1 * 50% = 0.5 -> 1, leaving nothing to charge
		_, err = ApplyDiscount("X", 1, 50)
		assert.ErrorIs(t, err, &domain.PromoError{Kind: domain.PromoNonPositiveAmount})
	})

	t.Run("should reject a full discount", func(t *testing.T) {
		_, err := ApplyDiscount("FREE100", 9900, 100)
		kind, ok := domain.PromoKind(err)
		require.True(t, ok)
		assert.Equal(t, domain.PromoNonPositiveAmount, kind)
	})

	t.Run("should reject zero percent", func(t *testing.T) {
		_, err := ApplyDiscount("ZERO", 9900, 0)
		assert.ErrorIs(t, err, &domain.PromoError{Kind: domain.PromoZeroDiscount})
	})
}

func TestPromoCheck(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	base := func() *PromoCode {
		return &PromoCode{Code: "P", DiscountPercent: 10, Plan: PlanPlus, IsActive: true}
	}

	cases := []struct {
		name string
		mut  func(p *PromoCode)
		plan PlanCode
		want domain.PromoErrorKind
	}{
		{"inactive", func(p *PromoCode) { p.IsActive = false }, PlanPlus, domain.PromoInactive},
		{"not started", func(p *PromoCode) { p.StartsAt = &future }, PlanPlus, domain.PromoNotYetStarted},
		{"expired", func(p *PromoCode) { p.ExpiresAt = &past }, PlanPlus, domain.PromoExpired},
		{"plan mismatch", func(p *PromoCode) {}, PlanPro, domain.PromoPlanMismatch},
		{"limit reached", func(p *PromoCode) { p.UsageLimit, p.UsageCount = 10, 10 }, PlanPlus, domain.PromoUsageLimitReached},
		{"zero discount", func(p *PromoCode) { p.DiscountPercent = 0 }, PlanPlus, domain.PromoZeroDiscount},
	}
	for _, c := range cases {
		t.Run("should reject "+c.name, func(t *testing.T) {
			p := base()
			c.mut(p)
			err := p.Check(c.plan, now)
			var pe *domain.PromoError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, c.want, pe.Kind)
		})
	}

	t.Run("should accept any-scoped promo for every plan", func(t *testing.T) {
		p := base()
		p.Plan = PlanAny
		assert.NoError(t, p.Check(PlanPro, now))
		assert.NoError(t, p.Check(PlanPlus, now))
	})

	t.Run("should accept unlimited usage", func(t *testing.T) {
		p := base()
		p.UsageCount = 1000
		assert.NoError(t, p.Check(PlanPlus, now))
	})
}

// --- Tariff ---

func TestEffectivePlan(t *testing.T) {
	now := time.Now()

	t.Run("should prefer priority over recency", func(t *testing.T) {
		e, ok := EffectivePlan(now, []Entitlement{
			{Plan: PlanPro, ExpiresAt: now.Add(24 * time.Hour)},
			{Plan: PlanPlus, ExpiresAt: now.Add(60 * 24 * time.Hour)},
		})
		require.True(t, ok)
		assert.Equal(t, PlanPro, e.Plan)
	})

	t.Run("should skip expired entries", func(t *testing.T) {
		e, ok := EffectivePlan(now, []Entitlement{
			{Plan: PlanPro, ExpiresAt: now.Add(-time.Minute)},
			{Plan: PlanPlus, ExpiresAt: now.Add(time.Hour)},
		})
		require.True(t, ok)
		assert.Equal(t, PlanPlus, e.Plan)
	})

	t.Run("should report nothing when all expired", func(t *testing.T) {
		_, ok := EffectivePlan(now, []Entitlement{{Plan: PlanPro, ExpiresAt: now.Add(-time.Minute)}})
		assert.False(t, ok)
	})

	t.Run("should treat an expired stored row as free", func(t *testing.T) {
		past := now.Add(-time.Hour)
		tr := &UserTariff{Plan: PlanPro, ExpiresAt: &past}
		assert.Equal(t, PlanFree, tr.ActivePlan(now))
	})
}

func TestPaymentEntitlementEnd(t *testing.T) {
	done := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Payment{Status: PaymentStatusConfirmed, CompleteTime: &done, Months: 12}
	end, ok := p.EntitlementEnd()
	require.True(t, ok)
	assert.Equal(t, done.AddDate(0, 0, 360), end)

	p.Status = PaymentStatusCancelled
	_, ok = p.EntitlementEnd()
	assert.False(t, ok)
}

// --- Catalog ---

func TestCatalogPrice(t *testing.T) {
	c := Catalog{
		MonthlyPrices: map[PlanCode]int64{PlanPlus: 29990, PlanPro: 59990},
		Packages:      []UsagePackage{{Code: "T300V100", TextLimit: 300, VoiceLimit: 100, Price: 9900}},
		AllowedMonths: []int{1, 3, 6, 12},
	}
	at := time.Unix(1730034567, 0)

	t.Run("should price months and packages", func(t *testing.T) {
		id, _ := NewMerchantTransID(1, PlanPro, 6, "", at)
		price, err := c.Price(id)
		require.NoError(t, err)
		assert.Equal(t, int64(6*59990), price)

		id, _ = NewMerchantTransID(1, PlanPlus, 0, "t300v100", at)
		price, err = c.Price(id)
		require.NoError(t, err)
		assert.Equal(t, int64(9900), price)
	})

	t.Run("should reject unknown selections", func(t *testing.T) {
		id, _ := NewMerchantTransID(1, PlanPlus, 2, "", at)
		_, err := c.Price(id)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		id, _ = NewMerchantTransID(1, PlanPlus, 0, "T9V9", at)
		_, err = c.Price(id)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("should find packages case-insensitively", func(t *testing.T) {
		p, ok := c.Package(" t300v100 ")
		require.True(t, ok)
		assert.Equal(t, 300, p.TextLimit)
	})
}
