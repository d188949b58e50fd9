package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Every pooled connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrateLedger(db))
	return db
}

func newTestInvoice(t *testing.T, tenantID uuid.UUID, total string, due time.Time) *finance.Invoice {
	t.Helper()
	inv, err := finance.NewInvoice(tenantID, finance.GenerateInvoiceNumber(time.Now()),
		uuid.New(), uuid.New(), uuid.New(), decimal.RequireFromString(total), decimal.Zero, due)
	require.NoError(t, err)
	return inv
}

func TestGormInvoiceRepository_RoundTrip(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	inv := newTestInvoice(t, tenantID, "1500.50", time.Now().Add(48*time.Hour))
	inv.SetRemark("Term 2 tuition")
	require.NoError(t, repo.Save(ctx, inv))

	found, err := repo.FindByID(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, inv.InvoiceNumber, found.InvoiceNumber)
	assert.True(t, decimal.RequireFromString("1500.50").Equal(found.TotalAmount))
	assert.True(t, found.PaidAmount.IsZero())
	assert.Equal(t, finance.InvoiceStatusPending, found.Status)
	assert.Equal(t, "Term 2 tuition", found.Remark)
	assert.Equal(t, 1, found.Version)
	assert.Empty(t, found.GetDomainEvents())

	byNumber, err := repo.FindByInvoiceNumber(ctx, tenantID, inv.InvoiceNumber)
	require.NoError(t, err)
	require.NotNil(t, byNumber)
	assert.Equal(t, inv.ID, byNumber.ID)

	t.Run("other tenant sees nothing", func(t *testing.T) {
		other, err := repo.FindByID(ctx, uuid.New(), inv.ID)
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("update persists new balance", func(t *testing.T) {
		change := finance.BalanceChange{Delta: decimal.NewFromInt(500), SourceType: finance.AggregateTypePayment, SourceID: uuid.New()}
		require.NoError(t, found.ApplyDelta(change, time.Now()))
		require.NoError(t, repo.Save(ctx, found))

		reloaded, err := repo.FindByIDForUpdate(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("1000.50").Equal(reloaded.Balance))
		assert.Equal(t, finance.InvoiceStatusPartial, reloaded.Status)
		assert.Equal(t, 2, reloaded.Version)
	})
}

func TestGormInvoiceRepository_DuplicateNumber(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	first := newTestInvoice(t, tenantID, "100", time.Now())
	require.NoError(t, repo.Save(ctx, first))

	second := newTestInvoice(t, tenantID, "200", time.Now())
	second.InvoiceNumber = first.InvoiceNumber
	err := repo.Save(ctx, second)
	assert.Equal(t, shared.ErrAlreadyExists.Code, shared.ErrorCode(err))

	// Same number in another school is fine
	third := newTestInvoice(t, uuid.New(), "200", time.Now())
	third.InvoiceNumber = first.InvoiceNumber
	assert.NoError(t, repo.Save(ctx, third))
}

func TestGormInvoiceRepository_SoftDeleteAndFilters(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	now := time.Now()

	live := newTestInvoice(t, tenantID, "100", now.Add(-time.Hour))
	deleted := newTestInvoice(t, tenantID, "200", now.Add(-2*time.Hour))
	future := newTestInvoice(t, tenantID, "300", now.Add(time.Hour))
	require.NoError(t, deleted.SoftDelete(uuid.New()))
	for _, inv := range []*finance.Invoice{live, deleted, future} {
		require.NoError(t, repo.Save(ctx, inv))
	}

	gone, err := repo.FindByID(ctx, tenantID, deleted.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := repo.FindByIDIncludingDeleted(ctx, tenantID, deleted.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.NotNil(t, kept.DeletedAt)

	liveOnly, err := repo.FindAll(ctx, tenantID, finance.InvoiceFilter{})
	require.NoError(t, err)
	assert.Len(t, liveOnly, 2)

	count, err := repo.Count(ctx, tenantID, finance.InvoiceFilter{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	byStudent, err := repo.FindAll(ctx, tenantID, finance.InvoiceFilter{StudentID: &future.StudentID})
	require.NoError(t, err)
	require.Len(t, byStudent, 1)
	assert.Equal(t, future.ID, byStudent[0].ID)

	pastDue, err := repo.FindPastDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, pastDue, 1)
	assert.Equal(t, live.ID, pastDue[0].ID)
}

func TestGormPaymentRepository_ExternalRef(t *testing.T) {
	db := setupLedgerTestDB(t)
	invoices := NewGormInvoiceRepository(db)
	payments := NewGormPaymentRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	inv := newTestInvoice(t, tenantID, "1000", time.Now().Add(time.Hour))
	require.NoError(t, invoices.Save(ctx, inv))

	failed, err := finance.NewFailedPayment(inv, decimal.NewFromInt(400), finance.PaymentMethodEsewa, "TXN-1", nil, "declined")
	require.NoError(t, err)
	require.NoError(t, payments.Save(ctx, failed))

	none, err := payments.FindByExternalRef(ctx, tenantID, finance.PaymentMethodEsewa, "TXN-1")
	require.NoError(t, err)
	assert.Nil(t, none, "failed attempts do not hold the reference")

	applied, err := finance.NewCompletedPayment(inv, decimal.NewFromInt(400), finance.PaymentMethodEsewa, "TXN-1", nil)
	require.NoError(t, err)
	require.NoError(t, payments.Save(ctx, applied))

	found, err := payments.FindByExternalRef(ctx, tenantID, finance.PaymentMethodEsewa, "TXN-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, applied.ID, found.ID)
	assert.True(t, decimal.NewFromInt(400).Equal(found.Amount))
	assert.NotNil(t, found.PaidAt)

	again, err := finance.NewCompletedPayment(inv, decimal.NewFromInt(400), finance.PaymentMethodEsewa, "TXN-1", nil)
	require.NoError(t, err)
	err = payments.Save(ctx, again)
	assert.Equal(t, shared.ErrAlreadyExists.Code, shared.ErrorCode(err))

	// Cash payments without a reference never collide
	for i := 0; i < 2; i++ {
		cash, err := finance.NewCompletedPayment(inv, decimal.NewFromInt(10), finance.PaymentMethodCash, "", nil)
		require.NoError(t, err)
		require.NoError(t, payments.Save(ctx, cash))
	}

	list, err := payments.FindByInvoice(ctx, tenantID, inv.ID)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func seedRefundable(t *testing.T, db *gorm.DB, tenantID uuid.UUID) (*finance.Invoice, *finance.Payment) {
	t.Helper()
	ctx := context.Background()
	inv := newTestInvoice(t, tenantID, "1000", time.Now().Add(time.Hour))
	p, err := finance.NewCompletedPayment(inv, decimal.NewFromInt(1000), finance.PaymentMethodCash, "", nil)
	require.NoError(t, err)
	require.NoError(t, NewGormInvoiceRepository(db).Save(ctx, inv))
	require.NoError(t, NewGormPaymentRepository(db).Save(ctx, p))
	return inv, p
}

func TestGormRefundRepository_ActiveRefundPerPayment(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormRefundRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	_, payment := seedRefundable(t, db, tenantID)

	first, err := finance.NewRefund(payment, finance.GenerateRefundNumber(time.Now()), "withdrawn", uuid.New())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))

	active, err := repo.FindActiveByPayment(ctx, tenantID, payment.ID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	second, err := finance.NewRefund(payment, finance.GenerateRefundNumber(time.Now()), "duplicate click", uuid.New())
	require.NoError(t, err)
	err = repo.Save(ctx, second)
	assert.Equal(t, finance.CodeDuplicateRefundRequest, shared.ErrorCode(err))

	// A rejected refund releases the payment
	require.NoError(t, first.Reject(uuid.New(), "not eligible"))
	require.NoError(t, repo.Save(ctx, first))
	assert.NoError(t, repo.Save(ctx, second))

	require.NoError(t, repo.Delete(ctx, tenantID, second.ID))
	deleted, err := repo.FindByID(ctx, tenantID, second.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)
}

func TestGormRefundRepository_QueriesAndSummary(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormRefundRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	var refunds []*finance.Refund
	for i := 0; i < 3; i++ {
		_, payment := seedRefundable(t, db, tenantID)
		r, err := finance.NewRefund(payment, finance.GenerateRefundNumber(time.Now()), "withdrawn", uuid.New())
		require.NoError(t, err)
		refunds = append(refunds, r)
	}
	require.NoError(t, refunds[1].Approve(uuid.New(), "ok"))
	require.NoError(t, refunds[2].Reject(uuid.New(), "no"))
	for _, r := range refunds {
		require.NoError(t, repo.Save(ctx, r))
	}

	pending := finance.RefundStatusPending
	list, err := repo.FindAll(ctx, tenantID, finance.RefundFilter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, refunds[0].ID, list[0].ID)

	byInvoice, err := repo.FindAll(ctx, tenantID, finance.RefundFilter{InvoiceID: &refunds[1].InvoiceID})
	require.NoError(t, err)
	require.Len(t, byInvoice, 1)
	assert.Equal(t, finance.RefundStatusApproved, byInvoice[0].Status)
	assert.NotNil(t, byInvoice[0].ApprovedBy)

	total, err := repo.Count(ctx, tenantID, finance.RefundFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	rows, err := repo.SummarizeByStatus(ctx, tenantID, nil, nil)
	require.NoError(t, err)
	stats := finance.NewRefundStatistics(nil, nil, rows)
	assert.Equal(t, int64(3), stats.TotalCount)
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.Equal(t, int64(1), stats.ApprovedCount)
	assert.Equal(t, int64(1), stats.RejectedCount)
	assert.True(t, decimal.NewFromInt(2000).Equal(stats.OutstandingAmount))

	future := time.Now().Add(time.Hour)
	empty, err := repo.SummarizeByStatus(ctx, tenantID, &future, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormAuditLogRepository_AppendIsIdempotent(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormAuditLogRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	inv := newTestInvoice(t, tenantID, "100", time.Now())
	require.NoError(t, inv.Cancel(uuid.New(), "issued twice"))
	events := inv.GetDomainEvents()
	cancelled, ok := events[len(events)-1].(finance.AuditableEvent)
	require.True(t, ok)

	entry, err := finance.NewAuditEntryFromEvent(cancelled)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, entry))

	replay, err := finance.NewAuditEntryFromEvent(cancelled)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, replay))

	entries, err := repo.FindAll(ctx, tenantID, finance.AuditFilter{EntityID: &inv.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, finance.EventTypeInvoiceCancelled, entries[0].Action)
	assert.Equal(t, finance.AggregateTypeInvoice, entries[0].EntityType)
	assert.Equal(t, "PENDING", entries[0].OldValue["status"])
	assert.Equal(t, "CANCELLED", entries[0].NewValue["status"])
	assert.NotNil(t, entries[0].ActorID)
}
