//go:build !integration

package usecase_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
	"balans-ai/internal/infra/payment"
	"balans-ai/internal/usecase"
)

const (
	testSecret   = "click-secret"
	testService  = "7788"
	testMerchant = "5511"
)

func testCatalog() model.Catalog {
	return model.Catalog{
		MonthlyPrices: map[model.PlanCode]int64{model.PlanPlus: 29990, model.PlanPro: 59990},
		Packages: []model.UsagePackage{
			{Code: "T300V100", Title: "Mini", TextLimit: 300, VoiceLimit: 100, Price: 9900},
			{Code: "T750V250", Title: "Optimal", TextLimit: 750, VoiceLimit: 250, Price: 19990},
			{Code: "T1750V600", Title: "Pro", TextLimit: 1750, VoiceLimit: 600, Price: 39990},
		},
		AllowedMonths: []int{1, 3, 6, 12},
	}
}

// testClock advances one second per call so every checkout gets a fresh merchant id.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: time.Now().Truncate(time.Second)} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// billing wires every use case over in-memory repositories.
type billing struct {
	payments    *MockPaymentRepo
	tariffs     *MockTariffRepo
	packages    *MockPackageRepo
	promos      *MockPromoRepo
	redemptions *MockRedemptionRepo
	tm          *MockTxManager
	bot         *MockTelegramBot
	dispatcher  *InlineDispatcher
	limiter     *MockRateLimiter
	signer      *payment.ClickSignature

	promoUC    usecase.PromoUseCase
	tariffUC   usecase.TariffUseCase
	settlement usecase.SettlementUseCase
	checkout   usecase.CheckoutUseCase
	click      usecase.ClickUseCase
}

func newBilling() *billing {
	log := newTestLogger()
	b := &billing{
		payments:    NewMockPaymentRepo(),
		tariffs:     NewMockTariffRepo(),
		packages:    NewMockPackageRepo(),
		promos:      NewMockPromoRepo(),
		redemptions: NewMockRedemptionRepo(),
		tm:          NewMockTxManager(),
		bot:         &MockTelegramBot{},
		dispatcher:  &InlineDispatcher{},
		limiter:     &MockRateLimiter{},
		signer:      payment.NewClickSignature(testSecret, false, log),
	}
	catalog := testCatalog()
	b.promoUC = usecase.NewPromoUseCase(b.promos, b.redemptions, log)
	b.tariffUC = usecase.NewTariffUseCase(b.tariffs, b.packages, b.payments, log)
	b.settlement = usecase.NewSettlementUseCase(b.tm, b.payments, b.tariffUC, b.promoUC, catalog,
		usecase.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, log)
	b.checkout = usecase.NewCheckoutUseCase(b.tm, b.payments, b.promoUC, b.settlement, catalog,
		staticPayURL{}, b.limiter, usecase.CheckoutLimit{Max: 10, Window: time.Minute}, log).
		WithClock(newTestClock().Now)
	notify := usecase.NewNotificationUseCase(b.bot, b.dispatcher, log)
	b.click = usecase.NewClickUseCase(
		usecase.ClickSettings{ServiceID: testService, MerchantID: testMerchant, MinAmount: 0},
		b.signer, b.payments, b.settlement, notify, log)
	return b
}

func (b *billing) seedPromo(p model.PromoCode) {
	_ = b.promos.Upsert(context.Background(), repository.NoTX, &p)
}

const signTime = "2026-10-14 12:00:00"

func (b *billing) prepareFields(merchantTransID, clickTransID string, amount int64) map[string]string {
	f := map[string]string{
		"click_trans_id":    clickTransID,
		"service_id":        testService,
		"click_paydoc_id":   "99" + clickTransID,
		"merchant_trans_id": merchantTransID,
		"amount":            strconv.FormatInt(amount, 10),
		"action":            "0",
		"error":             "0",
		"error_note":        "Success",
		"sign_time":         signTime,
	}
	f["sign_string"] = b.signer.Sign(model.ClickPrepare, f)
	return f
}

func (b *billing) completeFields(merchantTransID, clickTransID string, amount int64, prepareID int64, clickErr int) map[string]string {
	f := map[string]string{
		"click_trans_id":      clickTransID,
		"service_id":          testService,
		"click_paydoc_id":     "99" + clickTransID,
		"merchant_trans_id":   merchantTransID,
		"merchant_prepare_id": strconv.FormatInt(prepareID, 10),
		"amount":              strconv.FormatInt(amount, 10),
		"action":              "1",
		"error":               strconv.Itoa(clickErr),
		"error_note":          "",
		"sign_time":           signTime,
	}
	f["sign_string"] = b.signer.Sign(model.ClickComplete, f)
	return f
}

// pendingPayment stores a pending ledger row for merchantTransID as checkout would.
func (b *billing) pendingPayment(merchantTransID string, amount int64, promo *model.Discount) *model.Payment {
	id, err := model.ParseMerchantTransID(merchantTransID)
	if err != nil {
		panic(err)
	}
	p, err := model.NewPendingPayment(id, amount, promo)
	if err != nil {
		panic(err)
	}
	p.MerchantTransID = merchantTransID
	if err := b.payments.CreatePending(context.Background(), repository.NoTX, p); err != nil {
		panic(err)
	}
	if promo != nil {
		if _, err := b.promoUC.Reserve(context.Background(), repository.NoTX, id.UserID, merchantTransID, promo); err != nil {
			panic(err)
		}
	}
	return p
}
