package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	financeapp "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/cache"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/event"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

type ledger struct {
	invoices *financeapp.InvoiceService
	payments *financeapp.PaymentService
	refunds  *financeapp.RefundService
	audit    *persistence.GormAuditLogRepository
	tenantID uuid.UUID
	actorID  uuid.UUID
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	tdb := NewTestDB(t)

	bus := event.NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	audit := persistence.NewGormAuditLogRepository(tdb.DB)
	bus.Subscribe(event.NewAuditLogHandler(audit))

	store := cache.NewInMemoryIdempotencyStore(1000)
	t.Cleanup(func() { _ = store.Close() })

	txScope := persistence.NewGormLedgerTransactionScope(tdb.DB)
	opts := []financeapp.Option{
		financeapp.WithEventPublisher(bus),
		financeapp.WithIdempotencyStore(store, time.Hour),
	}
	return &ledger{
		invoices: financeapp.NewInvoiceService(persistence.NewGormInvoiceRepository(tdb.DB), txScope, opts...),
		payments: financeapp.NewPaymentService(persistence.NewGormPaymentRepository(tdb.DB), txScope, opts...),
		refunds:  financeapp.NewRefundService(persistence.NewGormRefundRepository(tdb.DB), txScope, opts...),
		audit:    audit,
		tenantID: uuid.New(),
		actorID:  uuid.New(),
	}
}

func (l *ledger) invoice(t *testing.T, total int64) *financeapp.InvoiceResponse {
	t.Helper()
	inv, err := l.invoices.CreateInvoice(context.Background(), l.tenantID, financeapp.CreateInvoiceRequest{
		StudentID:      uuid.New(),
		FeeStructureID: uuid.New(),
		AcademicYearID: uuid.New(),
		Subtotal:       decimal.NewFromInt(total),
		DueDate:        time.Now().AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	return inv
}

func (l *ledger) pay(ctx context.Context, invoiceID uuid.UUID, amount int64, ref string) (*financeapp.PaymentResponse, error) {
	return l.payments.RecordPayment(ctx, l.tenantID, financeapp.RecordPaymentRequest{
		InvoiceID:   invoiceID,
		Amount:      decimal.NewFromInt(amount),
		Method:      "ESEWA",
		ExternalRef: ref,
		ReceivedBy:  &l.actorID,
	})
}

// runConcurrently starts n calls at once and returns their errors
func runConcurrently(n int, fn func(i int) error) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func countOK(errs []error) int {
	n := 0
	for _, err := range errs {
		if err == nil {
			n++
		}
	}
	return n
}

func TestLedger_RefundLifecycle(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	inv := l.invoice(t, 20000)
	first, err := l.pay(ctx, inv.ID, 15000, "ES-1")
	require.NoError(t, err)
	_, err = l.pay(ctx, inv.ID, 5000, "ES-2")
	require.NoError(t, err)

	paid, err := l.invoices.GetInvoiceByID(ctx, l.tenantID, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "PAID", paid.Status)

	refund, err := l.refunds.CreateRefundRequest(ctx, l.tenantID, financeapp.CreateRefundRequest{
		PaymentID: first.ID,
		Reason:    "student withdrew before term",
	}, l.actorID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(15000).Equal(refund.Amount))

	_, err = l.refunds.ApproveRefund(ctx, l.tenantID, refund.ID, uuid.New(), "approved by bursar")
	require.NoError(t, err)
	settled, err := l.refunds.ProcessRefund(ctx, l.tenantID, refund.ID, &l.actorID)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", settled.Status)

	after, err := l.invoices.GetInvoiceByID(ctx, l.tenantID, inv.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "PARTIAL", after.Status)
	assert.True(t, decimal.NewFromInt(5000).Equal(after.PaidAmount))
	assert.True(t, decimal.NewFromInt(15000).Equal(after.Balance))

	payment, err := l.payments.GetPaymentByID(ctx, l.tenantID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "REFUNDED", payment.Status)

	refundID := refund.ID
	entries, err := l.audit.FindAll(ctx, l.tenantID, finance.AuditFilter{
		EntityType: finance.AggregateTypeRefund,
		EntityID:   &refundID,
	})
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.ElementsMatch(t, []string{
		finance.EventTypeRefundRequested,
		finance.EventTypeRefundApproved,
		finance.EventTypeRefundCompleted,
	}, actions)
}

func TestLedger_ConcurrentRefundRequestsForOnePayment(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	inv := l.invoice(t, 10000)
	payment, err := l.pay(ctx, inv.ID, 10000, "ES-REF")
	require.NoError(t, err)

	errs := runConcurrently(8, func(int) error {
		_, err := l.refunds.CreateRefundRequest(ctx, l.tenantID, financeapp.CreateRefundRequest{
			PaymentID: payment.ID,
			Reason:    "duplicate fee charge",
		}, l.actorID)
		return err
	})

	require.Equal(t, 1, countOK(errs))
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, finance.CodeDuplicateRefundRequest, shared.ErrorCode(err))
		}
	}

	pending, err := l.refunds.GetPendingRefunds(ctx, l.tenantID, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Total)
}

func TestLedger_ConcurrentSettlementAppliesOnce(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	inv := l.invoice(t, 10000)
	payment, err := l.pay(ctx, inv.ID, 10000, "ES-SETTLE")
	require.NoError(t, err)
	refund, err := l.refunds.CreateRefundRequest(ctx, l.tenantID, financeapp.CreateRefundRequest{
		PaymentID: payment.ID,
		Reason:    "scholarship awarded",
	}, l.actorID)
	require.NoError(t, err)
	_, err = l.refunds.ApproveRefund(ctx, l.tenantID, refund.ID, uuid.New(), "")
	require.NoError(t, err)

	errs := runConcurrently(6, func(int) error {
		_, err := l.refunds.ProcessRefund(ctx, l.tenantID, refund.ID, &l.actorID)
		return err
	})

	require.Equal(t, 1, countOK(errs))
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, finance.CodeInvalidRefundState, shared.ErrorCode(err))
		}
	}

	after, err := l.invoices.GetInvoiceByID(ctx, l.tenantID, inv.ID, false)
	require.NoError(t, err)
	assert.True(t, after.PaidAmount.IsZero(), "refund applied more than once: paid=%s", after.PaidAmount)
	assert.Equal(t, "PENDING", after.Status)
}

func TestLedger_ConcurrentPaymentsNeverOverpay(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	inv := l.invoice(t, 10000)
	errs := runConcurrently(5, func(i int) error {
		_, err := l.pay(ctx, inv.ID, 4000, fmt.Sprintf("ES-PAY-%d", i))
		return err
	})

	assert.Equal(t, 2, countOK(errs))
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, finance.CodeInvalidLedgerState, shared.ErrorCode(err))
		}
	}

	after, err := l.invoices.GetInvoiceByID(ctx, l.tenantID, inv.ID, false)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(8000).Equal(after.PaidAmount))
	assert.Equal(t, "PARTIAL", after.Status)

	payments, err := l.payments.ListPaymentsByInvoice(ctx, l.tenantID, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}

func TestLedger_ConcurrentReplayOfOneConfirmation(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	inv := l.invoice(t, 10000)
	results := make([]*financeapp.PaymentResponse, 6)
	errs := runConcurrently(len(results), func(i int) error {
		resp, err := l.pay(ctx, inv.ID, 6000, "ES-SAME")
		results[i] = resp
		return err
	})
	require.Equal(t, len(results), countOK(errs))

	fresh := 0
	for _, r := range results {
		assert.Equal(t, results[0].ID, r.ID)
		if !r.Duplicate {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)

	after, err := l.invoices.GetInvoiceByID(ctx, l.tenantID, inv.ID, false)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(6000).Equal(after.PaidAmount))
}
