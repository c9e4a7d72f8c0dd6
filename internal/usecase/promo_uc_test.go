//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
	"balans-ai/internal/usecase"
)

func TestPromoUseCase(t *testing.T) {
	ctx := context.Background()

	newUC := func() (*MockPromoRepo, *MockRedemptionRepo, usecase.PromoUseCase) {
		promos, redemptions := NewMockPromoRepo(), NewMockRedemptionRepo()
		return promos, redemptions, usecase.NewPromoUseCase(promos, redemptions, newTestLogger())
	}

	t.Run("should validate case-insensitively", func(t *testing.T) {
		_, _, uc := newUC()
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "50friend50", DiscountPercent: 60, UsageLimit: 10, Plan: model.PlanPlus, IsActive: true})

		d, err := uc.Validate(ctx, "50Friend50", model.PlanPlus, 19990)
		if err != nil {
			t.Fatal(err)
		}
		if d.Code != "50FRIEND50" || d.FinalAmount != 7996 {
			t.Errorf("unexpected discount: %+v", d)
		}
	})

	t.Run("should reject by kind", func(t *testing.T) {
		_, _, uc := newUC()
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "PLUSONLY", DiscountPercent: 10, Plan: model.PlanPlus, IsActive: true})
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "OFF", DiscountPercent: 10, IsActive: false})
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "ALL", DiscountPercent: 100, IsActive: true})

		cases := []struct {
			code string
			plan model.PlanCode
			want domain.PromoErrorKind
		}{
			{"", model.PlanPlus, domain.PromoNotFound},
			{"MISSING", model.PlanPlus, domain.PromoNotFound},
			{"PLUSONLY", model.PlanPro, domain.PromoPlanMismatch},
			{"OFF", model.PlanPlus, domain.PromoInactive},
			{"ALL", model.PlanPro, domain.PromoNonPositiveAmount},
		}
		for _, c := range cases {
			_, err := uc.Validate(ctx, c.code, c.plan, 59990)
			if kind, ok := domain.PromoKind(err); !ok || kind != c.want {
				t.Errorf("%q: expected %s, got %v", c.code, c.want, err)
			}
		}
	})

	t.Run("should default the scope to any plan", func(t *testing.T) {
		promos, _, uc := newUC()
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "x", DiscountPercent: 5, IsActive: true})
		p, _ := promos.FindByCode(ctx, repository.NoTX, "X")
		if p.Plan != model.PlanAny {
			t.Errorf("expected ANY, got %s", p.Plan)
		}
	})

	t.Run("should refuse invalid catalog entries", func(t *testing.T) {
		_, _, uc := newUC()
		for _, p := range []*model.PromoCode{
			{Code: " ", DiscountPercent: 10},
			{Code: "A", DiscountPercent: 101},
			{Code: "B", DiscountPercent: -1},
			{Code: "C", DiscountPercent: 10, UsageLimit: -1},
		} {
			if err := uc.Upsert(ctx, p); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("%+v: expected invalid argument, got %v", p, err)
			}
		}
	})

	t.Run("should count usage once on finalize", func(t *testing.T) {
		promos, redemptions, uc := newUC()
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "ONCE", DiscountPercent: 10, IsActive: true})
		d, _ := uc.Validate(ctx, "ONCE", model.PlanPlus, 29990)
		if _, err := uc.Reserve(ctx, repository.NoTX, 42, "42_PLUS_1_1", d); err != nil {
			t.Fatal(err)
		}

		st, err := uc.Finalize(ctx, repository.NoTX, "42_PLUS_1_1", true)
		if err != nil || st != model.RedemptionCompleted {
			t.Fatalf("first finalize: %s %v", st, err)
		}
		st, err = uc.Finalize(ctx, repository.NoTX, "42_PLUS_1_1", true)
		if err != nil || st != "" {
			t.Fatalf("second finalize must be a no-op: %s %v", st, err)
		}
		if promos.Usage("ONCE") != 1 {
			t.Errorf("expected usage 1, got %d", promos.Usage("ONCE"))
		}
		r, _ := redemptions.FindByMerchantTransID(ctx, repository.NoTX, "42_PLUS_1_1")
		if r.FinalizedAt == nil {
			t.Error("finalized_at not set")
		}
	})

	t.Run("should refuse a second reservation for one checkout", func(t *testing.T) {
		_, _, uc := newUC()
		d := &model.Discount{Code: "X", Percent: 10, OriginalAmount: 100, DiscountAmount: 10, FinalAmount: 90}
		if _, err := uc.Reserve(ctx, repository.NoTX, 42, "42_PLUS_1_1", d); err != nil {
			t.Fatal(err)
		}
		if _, err := uc.Reserve(ctx, repository.NoTX, 42, "42_PLUS_1_1", d); !errors.Is(err, domain.ErrDuplicate) {
			t.Fatalf("expected duplicate, got %v", err)
		}
	})

	t.Run("should honour a confirmation past the usage limit", func(t *testing.T) {
		promos, _, uc := newUC()
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "LAST", DiscountPercent: 10, UsageLimit: 1, IsActive: true})
		d, _ := uc.Validate(ctx, "LAST", model.PlanPlus, 29990)
		_, _ = uc.Reserve(ctx, repository.NoTX, 1, "1_PLUS_1_1", d)
		_, _ = uc.Reserve(ctx, repository.NoTX, 2, "2_PLUS_1_1", d)

		if st, err := uc.Finalize(ctx, repository.NoTX, "1_PLUS_1_1", true); err != nil || st != model.RedemptionCompleted {
			t.Fatalf("first: %s %v", st, err)
		}
		if st, err := uc.Finalize(ctx, repository.NoTX, "2_PLUS_1_1", true); err != nil || st != model.RedemptionCompleted {
			t.Fatalf("second: %s %v", st, err)
		}
		if promos.Usage("LAST") != 1 {
			t.Errorf("usage must stay capped at 1, got %d", promos.Usage("LAST"))
		}
	})

	t.Run("should cancel without counting", func(t *testing.T) {
		promos, _, uc := newUC()
		_ = uc.Upsert(ctx, &model.PromoCode{Code: "C1", DiscountPercent: 10, IsActive: true})
		d, _ := uc.Validate(ctx, "C1", model.PlanPlus, 29990)
		_, _ = uc.Reserve(ctx, repository.NoTX, 1, "1_PLUS_1_1", d)

		st, err := uc.Finalize(ctx, repository.NoTX, "1_PLUS_1_1", false)
		if err != nil || st != model.RedemptionCancelled {
			t.Fatalf("cancel: %s %v", st, err)
		}
		if promos.Usage("C1") != 0 {
			t.Error("cancel must not count")
		}
	})
}
