//go:build !integration

// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"callcenter-billing/internal/domain"
	"callcenter-billing/internal/domain/model"
	"callcenter-billing/internal/domain/ports/adapter"
	"callcenter-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
// It writes to io.Discard to prevent logs from cluttering test output.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Payments ---

// MockPaymentRepo is a small in-memory PaymentRepository. Behavior methods
// can be overridden per-test via the *Func fields.
type MockPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment // by payment ID

	SaveFunc                  func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt, failedAt *time.Time) (bool, error)

	FindByOrderCalls int
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: make(map[string]*model.Payment)}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByExternalOrderID(ctx context.Context, tx repository.Tx, externalOrderID, tenantID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.ExternalOrderID == externalOrderID && p.TenantID == tenantID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) FindByExternalOrderIDAnyTenant(ctx context.Context, tx repository.Tx, externalOrderID string) (*model.Payment, error) {
	m.mu.Lock()
	m.FindByOrderCalls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.ExternalOrderID == externalOrderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt, failedAt *time.Time) (bool, error) {
	if m.UpdateStatusIfPendingFunc != nil {
		return m.UpdateStatusIfPendingFunc(ctx, tx, id, status, paidAt, failedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	if failedAt != nil {
		p.FailedAt = failedAt
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Get returns the stored payment by id for assertions.
func (m *MockPaymentRepo) Get(id string) *model.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.store[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// Count returns the number of stored payments.
func (m *MockPaymentRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// --- Subscriptions ---

type MockSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.TenantSubscription // by tenant ID
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: make(map[string]*model.TenantSubscription)}
}

func (m *MockSubscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.TenantSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.TenantID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByTenant(ctx context.Context, tx repository.Tx, tenantID string) (*model.TenantSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string) (*model.TenantSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.ExternalSubscriptionID == externalSubscriptionID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) ActivateByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string, periodStart, periodEnd time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.ExternalSubscriptionID == externalSubscriptionID && s.Status != model.SubscriptionStatusCanceled {
			s.Status = model.SubscriptionStatusActive
			s.CurrentPeriodStart = periodStart
			s.CurrentPeriodEnd = periodEnd
			s.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MockSubscriptionRepo) MarkPastDueByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.ExternalSubscriptionID == externalSubscriptionID && s.Status == model.SubscriptionStatusActive {
			s.Status = model.SubscriptionStatusPastDue
			s.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MockSubscriptionRepo) CancelByExternalID(ctx context.Context, tx repository.Tx, externalSubscriptionID string, canceledAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.ExternalSubscriptionID == externalSubscriptionID && s.Status != model.SubscriptionStatusCanceled {
			s.Status = model.SubscriptionStatusCanceled
			s.CanceledAt = &canceledAt
			s.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

// Get returns the stored subscription for a tenant.
func (m *MockSubscriptionRepo) Get(tenantID string) *model.TenantSubscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.store[tenantID]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// Count returns the number of stored subscription rows.
func (m *MockSubscriptionRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// --- Invoices ---

type MockInvoiceRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Invoice

	MarkPaidCalls int
}

var _ repository.InvoiceRepository = (*MockInvoiceRepo)(nil)

func NewMockInvoiceRepo() *MockInvoiceRepo {
	return &MockInvoiceRepo{store: make(map[string]*model.Invoice)}
}

func (m *MockInvoiceRepo) Put(inv *model.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.store[inv.ID] = &cp
}

func (m *MockInvoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *MockInvoiceRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, amountPaid int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkPaidCalls++
	inv, ok := m.store[id]
	if !ok || inv.Status != model.InvoiceStatusOpen {
		return false, nil
	}
	inv.Status = model.InvoiceStatusPaid
	inv.AmountPaid = amountPaid
	inv.AmountDue = 0
	inv.UpdatedAt = time.Now()
	return true, nil
}

// Get returns the stored invoice by id for assertions.
func (m *MockInvoiceRepo) Get(id string) *model.Invoice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inv, ok := m.store[id]; ok {
		cp := *inv
		return &cp
	}
	return nil
}

// --- Transaction manager ---

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// --- Gateway ---

type MockPaymentGateway struct {
	mu  sync.Mutex
	seq int64

	CreateOrderFunc        func(ctx context.Context, req adapter.OrderRequest) (*adapter.OrderResult, error)
	CaptureOrderFunc       func(ctx context.Context, orderID string) (*adapter.CaptureResult, error)
	CreateSubscriptionFunc func(ctx context.Context, req adapter.SubscriptionRequest) (*adapter.SubscriptionResult, error)
	CancelSubscriptionFunc func(ctx context.Context, subscriptionID, reason string) error
	GetSubscriptionFunc    func(ctx context.Context, subscriptionID string) (*adapter.SubscriptionResult, error)
	CreateBillingPlanFunc  func(ctx context.Context, req adapter.BillingPlanRequest) (*adapter.BillingPlanResult, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (g *MockPaymentGateway) Name() string { return "mock" }

func (g *MockPaymentGateway) next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *MockPaymentGateway) CreateOrder(ctx context.Context, req adapter.OrderRequest) (*adapter.OrderResult, error) {
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, req)
	}
	id := g.next("order")
	return &adapter.OrderResult{OrderID: id, Status: "CREATED", ApprovalURL: "https://gateway.test/approve/" + id}, nil
}

func (g *MockPaymentGateway) CaptureOrder(ctx context.Context, orderID string) (*adapter.CaptureResult, error) {
	if g.CaptureOrderFunc != nil {
		return g.CaptureOrderFunc(ctx, orderID)
	}
	return &adapter.CaptureResult{OrderID: orderID, CaptureID: "cap-" + orderID, Status: adapter.OrderStatusCompleted}, nil
}

func (g *MockPaymentGateway) CreateSubscription(ctx context.Context, req adapter.SubscriptionRequest) (*adapter.SubscriptionResult, error) {
	if g.CreateSubscriptionFunc != nil {
		return g.CreateSubscriptionFunc(ctx, req)
	}
	id := g.next("sub")
	return &adapter.SubscriptionResult{SubscriptionID: id, PlanID: req.PlanID, Status: "APPROVAL_PENDING", ApprovalURL: "https://gateway.test/approve/" + id}, nil
}

func (g *MockPaymentGateway) CancelSubscription(ctx context.Context, subscriptionID, reason string) error {
	if g.CancelSubscriptionFunc != nil {
		return g.CancelSubscriptionFunc(ctx, subscriptionID, reason)
	}
	return nil
}

func (g *MockPaymentGateway) GetSubscription(ctx context.Context, subscriptionID string) (*adapter.SubscriptionResult, error) {
	if g.GetSubscriptionFunc != nil {
		return g.GetSubscriptionFunc(ctx, subscriptionID)
	}
	return &adapter.SubscriptionResult{SubscriptionID: subscriptionID, Status: "ACTIVE"}, nil
}

func (g *MockPaymentGateway) CreateBillingPlan(ctx context.Context, req adapter.BillingPlanRequest) (*adapter.BillingPlanResult, error) {
	if g.CreateBillingPlanFunc != nil {
		return g.CreateBillingPlanFunc(ctx, req)
	}
	return &adapter.BillingPlanResult{PlanID: g.next("plan"), Status: "ACTIVE"}, nil
}

// --- Webhook verification and dedup ---

type MockVerifier struct {
	Result bool
	Err    error
}

var _ adapter.WebhookVerifier = (*MockVerifier)(nil)

func (v *MockVerifier) Verify(ctx context.Context, headers map[string]string, body []byte) (bool, error) {
	return v.Result, v.Err
}

type MemDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

var _ adapter.EventDeduper = (*MemDedup)(nil)

func NewMemDedup() *MemDedup { return &MemDedup{seen: make(map[string]bool)} }

func (d *MemDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[eventID], nil
}

func (d *MemDedup) MarkProcessed(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = true
	return nil
}
