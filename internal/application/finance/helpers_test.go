package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	appfinance "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/testutil"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// MockEventPublisher is a testify mock of shared.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// MockIdempotencyStore is a testify mock of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// ledgerFixture wires the three services over one in-memory store
type ledgerFixture struct {
	t         *testing.T
	ctx       context.Context
	tenantID  uuid.UUID
	store     *testutil.LedgerStore
	publisher *recordingPublisher
	invoices  *appfinance.InvoiceService
	payments  *appfinance.PaymentService
	refunds   *appfinance.RefundService
}

func newLedgerFixture(t *testing.T, extra ...appfinance.Option) *ledgerFixture {
	t.Helper()
	store := testutil.NewLedgerStore()
	publisher := &recordingPublisher{}

	opts := append([]appfinance.Option{
		appfinance.WithLogger(zaptest.NewLogger(t)),
		appfinance.WithEventPublisher(publisher),
		appfinance.WithClock(func() time.Time { return testNow }),
	}, extra...)

	return &ledgerFixture{
		t:         t,
		ctx:       context.Background(),
		tenantID:  uuid.New(),
		store:     store,
		publisher: publisher,
		invoices:  appfinance.NewInvoiceService(store.InvoiceRepo(), store, opts...),
		payments:  appfinance.NewPaymentService(store.PaymentRepo(), store, opts...),
		refunds:   appfinance.NewRefundService(store.RefundRepo(), store, opts...),
	}
}

// createInvoice issues an invoice with no discount
func (f *ledgerFixture) createInvoice(total string, dueDate time.Time) *appfinance.InvoiceResponse {
	f.t.Helper()
	resp, err := f.invoices.CreateInvoice(f.ctx, f.tenantID, appfinance.CreateInvoiceRequest{
		StudentID:      uuid.New(),
		FeeStructureID: uuid.New(),
		AcademicYearID: uuid.New(),
		Subtotal:       dec(total),
		DueDate:        dueDate,
	})
	require.NoError(f.t, err)
	return resp
}

func (f *ledgerFixture) pay(invoiceID uuid.UUID, amount string) *appfinance.PaymentResponse {
	f.t.Helper()
	resp, err := f.payments.RecordPayment(f.ctx, f.tenantID, appfinance.RecordPaymentRequest{
		InvoiceID: invoiceID,
		Amount:    dec(amount),
		Method:    string(finance.PaymentMethodCash),
	})
	require.NoError(f.t, err)
	return resp
}

func (f *ledgerFixture) requestRefund(paymentID, requestedBy uuid.UUID) *appfinance.RefundResponse {
	f.t.Helper()
	resp, err := f.refunds.CreateRefundRequest(f.ctx, f.tenantID, appfinance.CreateRefundRequest{
		PaymentID: paymentID,
		Reason:    "Student withdrew",
	}, requestedBy)
	require.NoError(f.t, err)
	return resp
}

func (f *ledgerFixture) approvedRefund(paymentID uuid.UUID) *appfinance.RefundResponse {
	f.t.Helper()
	refund := f.requestRefund(paymentID, uuid.New())
	resp, err := f.refunds.ApproveRefund(f.ctx, f.tenantID, refund.ID, uuid.New(), "ok")
	require.NoError(f.t, err)
	return resp
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, shared.ErrorCode(err), "unexpected error: %v", err)
}
