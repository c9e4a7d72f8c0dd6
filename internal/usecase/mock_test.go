//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock TelegramBotAdapter ----

type sentMessage struct {
	ChatID int64
	Text   string
}

type MockTelegramBot struct {
	mu   sync.Mutex
	Sent []sentMessage

	SendMessageFunc func(ctx context.Context, chatID int64, text string) error
}

var _ adapter.TelegramBotAdapter = (*MockTelegramBot)(nil)

func (m *MockTelegramBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, chatID, text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockTelegramBot) Messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.Sent...)
}

// ---- Inline Dispatcher: runs tasks synchronously ----

type InlineDispatcher struct {
	mu       sync.Mutex
	Names    []string
	Errs     []error
	Saturate bool
}

var _ adapter.Dispatcher = (*InlineDispatcher)(nil)

func (d *InlineDispatcher) Dispatch(name string, task adapter.Task) bool {
	if d.Saturate {
		return false
	}
	err := task(context.Background())
	d.mu.Lock()
	d.Names = append(d.Names, name)
	d.Errs = append(d.Errs, err)
	d.mu.Unlock()
	return true
}

// ---- Mock RateLimiter ----

type MockRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int

	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

var _ adapter.RateLimiter = (*MockRateLimiter)(nil)

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[key]++
	return m.counts[key] <= limit, nil
}

// ---- Static pay link ----

type staticPayURL struct{}

func (staticPayURL) PayURL(merchantTransID string, amount int64) string {
	return "https://pay.test/?transaction_param=" + merchantTransID
}

// =============================
// Repositories (in-memory)
// =============================

// ---- Payments: mirrors the conditional updates of the Postgres ledger ----

type MockPaymentRepo struct {
	mu     sync.Mutex
	rows   map[string]*model.Payment
	nextID int64

	FindByMerchantTransIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error)
	MarkPreparedFunc          func(ctx context.Context, tx repository.Tx, merchantTransID, clickTransID string, at time.Time) (*model.Payment, error)
	MarkTerminalFunc          func(ctx context.Context, tx repository.Tx, merchantTransID string, status model.PaymentStatus, code int, note string, at time.Time) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{rows: map[string]*model.Payment{}}
}

func clonePayment(p *model.Payment) *model.Payment {
	c := *p
	return &c
}

func (m *MockPaymentRepo) CreatePending(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.MerchantTransID]; ok {
		return domain.ErrDuplicate
	}
	m.nextID++
	p.ID = m.nextID
	m.rows[p.MerchantTransID] = clonePayment(p)
	return nil
}

func (m *MockPaymentRepo) MarkPrepared(ctx context.Context, tx repository.Tx, merchantTransID, clickTransID string, at time.Time) (*model.Payment, error) {
	if m.MarkPreparedFunc != nil {
		return m.MarkPreparedFunc(ctx, tx, merchantTransID, clickTransID, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[merchantTransID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.ClickTransID != nil {
		if *p.ClickTransID == clickTransID {
			return clonePayment(p), nil
		}
		return nil, domain.ErrStateConflict
	}
	if p.Status != model.PaymentStatusPending {
		return nil, domain.ErrStateConflict
	}
	for _, other := range m.rows {
		if other.ClickTransID != nil && *other.ClickTransID == clickTransID {
			return nil, domain.ErrStateConflict
		}
	}
	id := clickTransID
	p.ClickTransID = &id
	p.Status = model.PaymentStatusPrepared
	p.PrepareTime = &at
	return clonePayment(p), nil
}

func (m *MockPaymentRepo) MarkTerminal(ctx context.Context, tx repository.Tx, merchantTransID string, status model.PaymentStatus, code int, note string, at time.Time) (bool, error) {
	if m.MarkTerminalFunc != nil {
		return m.MarkTerminalFunc(ctx, tx, merchantTransID, status, code, note, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[merchantTransID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status == status {
		return false, nil
	}
	if err := model.CheckTransition(p.Status, status); err != nil {
		return false, err
	}
	p.Status, p.ErrorCode, p.ErrorNote, p.CompleteTime = status, code, note, &at
	return true, nil
}

func (m *MockPaymentRepo) FindByMerchantTransID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	if m.FindByMerchantTransIDFunc != nil {
		return m.FindByMerchantTransIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *MockPaymentRepo) FindByClickTransID(ctx context.Context, tx repository.Tx, clickTransID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ClickTransID != nil && *p.ClickTransID == clickTransID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, before time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.rows {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(before) {
			out = append(out, clonePayment(p))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockPaymentRepo) ListConfirmedByUser(ctx context.Context, tx repository.Tx, userID int64, since time.Time) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.rows {
		if p.UserID == userID && p.Status == model.PaymentStatusConfirmed && p.CompleteTime != nil && !p.CompleteTime.Before(since) {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

// Put stores p as-is, bypassing the state machine (fixtures).
func (m *MockPaymentRepo) Put(p *model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.MerchantTransID] = clonePayment(p)
}

func (m *MockPaymentRepo) Get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[id]; ok {
		return clonePayment(p)
	}
	return nil
}

func (m *MockPaymentRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// ---- Tariffs ----

type MockTariffRepo struct {
	mu   sync.Mutex
	rows map[int64]*model.UserTariff

	UpsertFunc func(ctx context.Context, tx repository.Tx, t *model.UserTariff) error
}

var _ repository.TariffRepository = (*MockTariffRepo)(nil)

func NewMockTariffRepo() *MockTariffRepo { return &MockTariffRepo{rows: map[int64]*model.UserTariff{}} }

func (m *MockTariffRepo) Get(ctx context.Context, tx repository.Tx, userID int64) (*model.UserTariff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *t
	return &c, nil
}

func (m *MockTariffRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.UserTariff) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	m.rows[t.UserID] = &c
	return nil
}

// ---- Packages ----

type MockPackageRepo struct {
	mu        sync.Mutex
	grants    map[int64]*model.PackageGrant
	purchases map[string]*model.PackagePurchase
}

var _ repository.PackageRepository = (*MockPackageRepo)(nil)

func NewMockPackageRepo() *MockPackageRepo {
	return &MockPackageRepo{grants: map[int64]*model.PackageGrant{}, purchases: map[string]*model.PackagePurchase{}}
}

func (m *MockPackageRepo) AssignGrant(ctx context.Context, tx repository.Tx, g *model.PackageGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *g
	c.TextUsed, c.VoiceUsed = 0, 0
	m.grants[g.UserID] = &c
	return nil
}

func (m *MockPackageRepo) GetGrant(ctx context.Context, tx repository.Tx, userID int64) (*model.PackageGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *g
	return &c, nil
}

func (m *MockPackageRepo) LogPurchase(ctx context.Context, tx repository.Tx, p *model.PackagePurchase) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.purchases[p.MerchantTransID]; ok {
		return false, nil
	}
	c := *p
	m.purchases[p.MerchantTransID] = &c
	return true, nil
}

func (m *MockPackageRepo) PurchaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.purchases)
}

// ---- Promo codes ----

type MockPromoRepo struct {
	mu   sync.Mutex
	rows map[string]*model.PromoCode
}

var _ repository.PromoRepository = (*MockPromoRepo)(nil)

func NewMockPromoRepo() *MockPromoRepo { return &MockPromoRepo{rows: map[string]*model.PromoCode{}} }

func (m *MockPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[model.NormalizePromoCode(code)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *MockPromoRepo) IncrementUsage(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[code]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit {
		return false, nil
	}
	p.UsageCount++
	return true, nil
}

func (m *MockPromoRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *p
	m.rows[p.Code] = &c
	return nil
}

func (m *MockPromoRepo) Usage(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[code]; ok {
		return p.UsageCount
	}
	return -1
}

// ---- Redemptions ----

type MockRedemptionRepo struct {
	mu   sync.Mutex
	rows map[string]*model.PromoRedemption // by merchant trans id
}

var _ repository.RedemptionRepository = (*MockRedemptionRepo)(nil)

func NewMockRedemptionRepo() *MockRedemptionRepo {
	return &MockRedemptionRepo{rows: map[string]*model.PromoRedemption{}}
}

func (m *MockRedemptionRepo) Reserve(ctx context.Context, tx repository.Tx, r *model.PromoRedemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[r.MerchantTransID]; ok {
		return domain.ErrDuplicate
	}
	c := *r
	m.rows[r.MerchantTransID] = &c
	return nil
}

func (m *MockRedemptionRepo) Finalize(ctx context.Context, tx repository.Tx, merchantTransID string, status model.RedemptionStatus, at time.Time) (*model.PromoRedemption, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[merchantTransID]
	if !ok || r.Status != model.RedemptionReserved {
		return nil, false, nil
	}
	r.Status, r.FinalizedAt = status, &at
	c := *r
	return &c, true, nil
}

func (m *MockRedemptionRepo) FindByMerchantTransID(ctx context.Context, tx repository.Tx, id string) (*model.PromoRedemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *r
	return &c, nil
}

// ---- Transaction manager ----

type MockTxManager struct {
	mu    sync.Mutex
	Calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
// The in-memory repos do not roll back.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
