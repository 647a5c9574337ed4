//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-payments/internal/domain"
	"saas-payments/internal/domain/model"
	"saas-payments/internal/domain/ports/adapter"
	"saas-payments/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so tests stay quiet.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestPlans() *model.PlanRegistry {
	oneTime, _ := model.NewPlan("credits_100", "100 Credits", "", 500, 100, model.BillingOneTime)
	monthly, _ := model.NewPlan("pro_monthly", "Pro Monthly", "", 1900, 800, model.BillingRecurring)
	reg, _ := model.NewPlanRegistry([]*model.Plan{oneTime, monthly})
	return reg
}

// =============================
// Repositories
// =============================

// MemAccountRepo is a small in-memory account store used by unit tests.
type MemAccountRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Account

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Account, error)
	SaveFunc     func(ctx context.Context, tx repository.Tx, a *model.Account) error
}

var _ repository.AccountRepository = (*MemAccountRepo)(nil)

func NewMemAccountRepo() *MemAccountRepo {
	return &MemAccountRepo{store: make(map[string]*model.Account)}
}

func (m *MemAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemAccountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

// MemLedgerRepo enforces the (account, source) uniqueness invariant the real
// table provides, so duplicate-delivery tests run against the same guard.
type MemLedgerRepo struct {
	mu      sync.RWMutex
	entries []*model.LedgerEntry

	InsertFunc func(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error
}

var _ repository.LedgerRepository = (*MemLedgerRepo)(nil)

func NewMemLedgerRepo() *MemLedgerRepo {
	return &MemLedgerRepo{}
}

func (m *MemLedgerRepo) Insert(ctx context.Context, tx repository.Tx, e *model.LedgerEntry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.entries {
		if existing.AccountID == e.AccountID && existing.SourceLogicalID == e.SourceLogicalID {
			return domain.ErrAlreadyProcessed
		}
	}
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *MemLedgerRepo) FindBySource(ctx context.Context, tx repository.Tx, accountID, sourceLogicalID string) (*model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.AccountID == accountID && e.SourceLogicalID == sourceLogicalID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemLedgerRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.LedgerEntry
	for _, e := range m.entries {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemLedgerRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// MemPaymentRepo keeps payment rows by id with a logical-id lookup.
type MemPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindFunc func(ctx context.Context, tx repository.Tx, logicalID string) (*model.Payment, error)
}

var _ repository.PaymentRepository = (*MemPaymentRepo)(nil)

func NewMemPaymentRepo() *MemPaymentRepo {
	return &MemPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *MemPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MemPaymentRepo) FindByLogicalID(ctx context.Context, tx repository.Tx, logicalID string) (*model.Payment, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, tx, logicalID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.LogicalID == logicalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	if p.PaidAt == nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *MemPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MockTxManager runs the callback immediately without a real transaction.
type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Provider port
// =============================

// MockProvider is a configurable backend double.
type MockProvider struct {
	NameValue model.ProviderType

	CreateFunc   func(ctx context.Context, params model.CheckoutParams) (*model.CheckoutSession, error)
	VerifyFunc   func(ctx context.Context, logicalID string) (*model.VerificationResult, error)
	CallbackFunc func(ctx context.Context, payload []byte, signature string) (*model.CallbackEvent, error)
	PlansValue   []*model.Plan
	Configured   bool
}

var _ adapter.PaymentProvider = (*MockProvider)(nil)

func (p *MockProvider) Name() model.ProviderType {
	if p.NameValue == "" {
		return model.ProviderMock
	}
	return p.NameValue
}

func (p *MockProvider) CreateCheckoutSession(ctx context.Context, params model.CheckoutParams) (*model.CheckoutSession, error) {
	if p.CreateFunc != nil {
		return p.CreateFunc(ctx, params)
	}
	return &model.CheckoutSession{
		LogicalID:   fmt.Sprintf("sess_%s_%s", params.AccountID, params.PlanID),
		RedirectURL: "https://checkout.example.com/s",
		Provider:    p.Name(),
	}, nil
}

func (p *MockProvider) VerifyPayment(ctx context.Context, logicalID string) (*model.VerificationResult, error) {
	if p.VerifyFunc != nil {
		return p.VerifyFunc(ctx, logicalID)
	}
	return &model.VerificationResult{Succeeded: true, LogicalID: logicalID}, nil
}

func (p *MockProvider) HandleCallback(ctx context.Context, payload []byte, signature string) (*model.CallbackEvent, error) {
	if p.CallbackFunc != nil {
		return p.CallbackFunc(ctx, payload, signature)
	}
	return nil, nil
}

func (p *MockProvider) ListSupportedPlans() []*model.Plan { return p.PlansValue }

func (p *MockProvider) IsConfigured() bool { return p.Configured }

// MockResolver hands out a fixed provider regardless of the requested type.
type MockResolver struct {
	Provider   adapter.PaymentProvider
	ResolveErr error
	Requested  []model.ProviderType
}

var _ adapter.ProviderResolver = (*MockResolver)(nil)

func (r *MockResolver) Resolve(requested model.ProviderType) (adapter.PaymentProvider, error) {
	r.Requested = append(r.Requested, requested)
	if r.ResolveErr != nil {
		return nil, r.ResolveErr
	}
	return r.Provider, nil
}

func (r *MockResolver) ListAvailable() []adapter.ProviderStatus {
	return []adapter.ProviderStatus{{Type: r.Provider.Name(), Configured: r.Provider.IsConfigured()}}
}

func (r *MockResolver) ClearCache() {}
