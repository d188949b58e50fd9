package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	StudentID      *uuid.UUID
	AcademicYearID *uuid.UUID
	Status         *InvoiceStatus
	DueBefore      *time.Time
	IncludeDeleted bool
}

// InvoiceRepository defines persistence for invoices.
// Lookups return (nil, nil) when nothing matches.
type InvoiceRepository interface {
	// FindByID finds a live (not soft-deleted) invoice
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDIncludingDeleted also resolves soft-deleted invoices, for history and restore
	FindByIDIncludingDeleted(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate finds a live invoice and takes a row write lock.
	// Only meaningful inside a transaction.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdateIncludingDeleted locks a live or soft-deleted invoice, for restore
	FindByIDForUpdateIncludingDeleted(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByInvoiceNumber finds an invoice by its number
	FindByInvoiceNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)

	// FindAll lists invoices matching the filter
	FindAll(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// Count counts invoices matching the filter
	Count(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) (int64, error)

	// FindPastDue lists live PENDING invoices of every tenant whose due date is
	// before asOf, oldest due date first
	FindPastDue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)

	// Save creates or updates an invoice
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository defines persistence for payments. Payments are never deleted.
type PaymentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByIDForUpdate finds a payment and takes a row write lock
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)

	// FindByExternalRef finds the applied (COMPLETED or REFUNDED) payment
	// recorded for a gateway reference. Failed attempts are ignored.
	FindByExternalRef(ctx context.Context, tenantID uuid.UUID, method PaymentMethod, externalRef string) (*Payment, error)

	// FindByInvoice lists payments of an invoice, oldest first
	FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]Payment, error)

	Save(ctx context.Context, payment *Payment) error
}

// RefundFilter defines filtering options for refund queries
type RefundFilter struct {
	shared.Filter
	Status    *RefundStatus
	StudentID *uuid.UUID
	InvoiceID *uuid.UUID
	PaymentID *uuid.UUID
	FromDate  *time.Time
	ToDate    *time.Time
}

// RefundRepository defines persistence for refunds
type RefundRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Refund, error)

	// FindByIDForUpdate finds a refund and takes a row write lock
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Refund, error)

	// FindActiveByPayment finds the PENDING or APPROVED refund of a payment, if any
	FindActiveByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*Refund, error)

	FindAll(ctx context.Context, tenantID uuid.UUID, filter RefundFilter) ([]Refund, error)

	Count(ctx context.Context, tenantID uuid.UUID, filter RefundFilter) (int64, error)

	// SummarizeByStatus groups refunds created in [from, to] by status.
	// Nil bounds are open.
	SummarizeByStatus(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) ([]RefundStatusSummary, error)

	// Save creates or updates a refund. Creating a second active refund for a
	// payment fails with DUPLICATE_REFUND_REQUEST.
	Save(ctx context.Context, refund *Refund) error

	// Delete removes a refund. Used only for withdrawn PENDING requests.
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// RefundStatusSummary is one row of a refund-by-status aggregation
type RefundStatusSummary struct {
	Status RefundStatus
	Count  int64
	Amount decimal.Decimal
}

// RefundStatistics summarises refund activity over a date range
type RefundStatistics struct {
	From              *time.Time
	To                *time.Time
	TotalCount        int64
	PendingCount      int64
	ApprovedCount     int64
	RejectedCount     int64
	CompletedCount    int64
	RequestedAmount   decimal.Decimal // every refund in range
	RefundedAmount    decimal.Decimal // COMPLETED only
	OutstandingAmount decimal.Decimal // PENDING + APPROVED
}

// NewRefundStatistics folds per-status rows into a RefundStatistics
func NewRefundStatistics(from, to *time.Time, rows []RefundStatusSummary) *RefundStatistics {
	stats := &RefundStatistics{
		From:              from,
		To:                to,
		RequestedAmount:   decimal.Zero,
		RefundedAmount:    decimal.Zero,
		OutstandingAmount: decimal.Zero,
	}
	for _, row := range rows {
		stats.TotalCount += row.Count
		stats.RequestedAmount = stats.RequestedAmount.Add(row.Amount)
		switch row.Status {
		case RefundStatusPending:
			stats.PendingCount += row.Count
			stats.OutstandingAmount = stats.OutstandingAmount.Add(row.Amount)
		case RefundStatusApproved:
			stats.ApprovedCount += row.Count
			stats.OutstandingAmount = stats.OutstandingAmount.Add(row.Amount)
		case RefundStatusRejected:
			stats.RejectedCount += row.Count
		case RefundStatusCompleted:
			stats.CompletedCount += row.Count
			stats.RefundedAmount = stats.RefundedAmount.Add(row.Amount)
		}
	}
	return stats
}
