package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// InvoiceStatus represents the payment status of an invoice.
// Every status except CANCELLED is derived from the paid amount and due date.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"   // Nothing paid, not yet due
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"   // 0 < balance < total
	InvoiceStatusPaid      InvoiceStatus = "PAID"      // balance = 0
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"   // Nothing paid and due date passed
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED" // Sticky, set only by Cancel
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid,
		InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// AcceptsDelta reports whether payments and refunds may still move the paid amount
func (s InvoiceStatus) AcceptsDelta() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	case InvoiceStatusCancelled:
		return false
	}
	return false
}

// DiscountApprovalStatus tracks review of a discount granted at invoice creation.
// It is independent of the payment status.
type DiscountApprovalStatus string

const (
	DiscountApprovalNone     DiscountApprovalStatus = "NONE"
	DiscountApprovalPending  DiscountApprovalStatus = "PENDING"
	DiscountApprovalApproved DiscountApprovalStatus = "APPROVED"
	DiscountApprovalRejected DiscountApprovalStatus = "REJECTED"
)

// IsValid checks if the status is a valid DiscountApprovalStatus
func (s DiscountApprovalStatus) IsValid() bool {
	switch s {
	case DiscountApprovalNone, DiscountApprovalPending, DiscountApprovalApproved, DiscountApprovalRejected:
		return true
	}
	return false
}

func (s DiscountApprovalStatus) String() string {
	return string(s)
}

// Invoice is the aggregate root for what a student owes for one fee period.
// PaidAmount moves only through ApplyDelta; TotalAmount is fixed at creation.
type Invoice struct {
	shared.TenantAggregateRoot

	InvoiceNumber  string
	StudentID      uuid.UUID
	FeeStructureID uuid.UUID
	AcademicYearID uuid.UUID

	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	Balance     decimal.Decimal

	Status                 InvoiceStatus
	DiscountApprovalStatus DiscountApprovalStatus
	DiscountReason         string
	DiscountReviewedBy     *uuid.UUID
	DiscountReviewedAt     *time.Time

	DueDate      time.Time
	GeneratedAt  time.Time
	CancelledAt  *time.Time
	CancelledBy  *uuid.UUID
	CancelReason string
	DeletedAt    *time.Time
	Remark       string
}

// GenerateInvoiceNumber builds an invoice number, INV-YYYYMMDD-XXXXXXXX
func GenerateInvoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}

// NewInvoice creates an invoice from an externally computed fee total.
// The invoice starts PENDING with nothing paid.
func NewInvoice(
	tenantID uuid.UUID,
	invoiceNumber string,
	studentID uuid.UUID,
	feeStructureID uuid.UUID,
	academicYearID uuid.UUID,
	subtotal decimal.Decimal,
	discount decimal.Decimal,
	dueDate time.Time,
) (*Invoice, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
	}
	if studentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student ID cannot be empty")
	}
	if feeStructureID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_FEE_STRUCTURE", "Fee structure ID cannot be empty")
	}
	if academicYearID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACADEMIC_YEAR", "Academic year ID cannot be empty")
	}
	if !subtotal.IsPositive() {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Subtotal must be greater than zero")
	}
	if discount.IsNegative() {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Discount cannot be negative")
	}
	if !discount.LessThan(subtotal) {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Discount must be less than the subtotal")
	}
	if dueDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date is required")
	}

	total := subtotal.Sub(discount)
	approval := DiscountApprovalNone
	if discount.IsPositive() {
		approval = DiscountApprovalPending
	}

	inv := &Invoice{
		TenantAggregateRoot:    shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:          invoiceNumber,
		StudentID:              studentID,
		FeeStructureID:         feeStructureID,
		AcademicYearID:         academicYearID,
		Subtotal:               subtotal,
		Discount:               discount,
		TotalAmount:            total,
		PaidAmount:             decimal.Zero,
		Balance:                total,
		Status:                 InvoiceStatusPending,
		DiscountApprovalStatus: approval,
		DueDate:                dueDate,
	}
	inv.GeneratedAt = inv.CreatedAt

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// BalanceChange describes why an invoice's paid amount moves
type BalanceChange struct {
	Delta      decimal.Decimal
	SourceType string // "Payment" or "Refund"
	SourceID   uuid.UUID
	ActorID    *uuid.UUID
}

// ApplyDelta moves the paid amount by change.Delta and re-derives balance and status.
// The invoice is left untouched when the delta is rejected.
func (inv *Invoice) ApplyDelta(change BalanceChange, now time.Time) error {
	next, err := ApplyPaymentDelta(*inv, change.Delta, now)
	if err != nil {
		return err
	}

	previous := inv.Status
	inv.PaidAmount = next.PaidAmount
	inv.Balance = next.Balance
	inv.Status = next.Status
	inv.MarkModified(now)

	inv.AddDomainEvent(NewInvoiceBalanceChangedEvent(inv, change, previous))

	return nil
}

// RefreshStatus re-derives the status at the given time, e.g. to flip an
// unpaid invoice to OVERDUE once its due date passes. Reports whether it changed.
func (inv *Invoice) RefreshStatus(now time.Time) bool {
	if inv.IsDeleted() {
		return false
	}
	derived := DeriveInvoiceStatus(inv.PaidAmount, inv.TotalAmount, inv.DueDate, inv.IsCancelled(), now)
	if derived == inv.Status {
		return false
	}

	previous := inv.Status
	inv.Status = derived
	inv.MarkModified(now)

	inv.AddDomainEvent(NewInvoiceStatusRefreshedEvent(inv, previous))

	return true
}

// Cancel cancels an invoice that has not received any money.
// Cancellation is sticky: no further deltas are accepted.
func (inv *Invoice) Cancel(actorID uuid.UUID, reason string) error {
	switch inv.Status {
	case InvoiceStatusPending, InvoiceStatusOverdue:
	case InvoiceStatusCancelled:
		return NewInvoiceCancelledError(inv)
	case InvoiceStatusPartial, InvoiceStatusPaid:
		return shared.NewDomainErrorf(CodeInvalidInvoiceState, "Cannot cancel invoice in %s status, refund its payments first", inv.Status).
			WithDetail("current_status", inv.Status.String())
	default:
		return shared.NewDomainErrorf(CodeInvalidInvoiceState, "Unknown invoice status %s", inv.Status)
	}
	if !inv.PaidAmount.IsZero() {
		return shared.NewDomainError(CodeInvalidInvoiceState, "Cannot cancel an invoice with a paid amount").
			WithDetail("paid_amount", inv.PaidAmount.String())
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	now := time.Now()
	previous := inv.Status
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelledBy = &actorID
	inv.CancelReason = reason
	inv.MarkModified(now)

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv, actorID, previous))

	return nil
}

// SoftDelete hides the invoice from live queries. It stays addressable by ID.
func (inv *Invoice) SoftDelete(actorID uuid.UUID) error {
	if inv.IsDeleted() {
		return shared.NewDomainError(CodeInvalidInvoiceState, "Invoice is already deleted")
	}

	now := time.Now()
	inv.DeletedAt = &now
	inv.MarkModified(now)

	inv.AddDomainEvent(NewInvoiceDeletedEvent(inv, actorID))

	return nil
}

// Restore clears the deletion timestamp
func (inv *Invoice) Restore(actorID uuid.UUID) error {
	if !inv.IsDeleted() {
		return shared.NewDomainError(CodeInvalidInvoiceState, "Invoice is not deleted")
	}

	inv.DeletedAt = nil
	inv.MarkModified(time.Now())

	inv.AddDomainEvent(NewInvoiceRestoredEvent(inv, actorID))

	return nil
}

// ApproveDiscount approves a pending discount
func (inv *Invoice) ApproveDiscount(reviewerID uuid.UUID) error {
	return inv.reviewDiscount(reviewerID, DiscountApprovalApproved, "")
}

// RejectDiscount rejects a pending discount. The invoice total is not changed;
// the fee collaborator reissues the invoice if the discount must be withdrawn.
func (inv *Invoice) RejectDiscount(reviewerID uuid.UUID, reason string) error {
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Rejection reason is required")
	}
	return inv.reviewDiscount(reviewerID, DiscountApprovalRejected, reason)
}

func (inv *Invoice) reviewDiscount(reviewerID uuid.UUID, to DiscountApprovalStatus, reason string) error {
	switch inv.DiscountApprovalStatus {
	case DiscountApprovalPending:
	case DiscountApprovalNone, DiscountApprovalApproved, DiscountApprovalRejected:
		return shared.NewDomainErrorf(CodeInvalidInvoiceState, "Cannot review discount in %s status", inv.DiscountApprovalStatus).
			WithDetail("discount_approval_status", inv.DiscountApprovalStatus.String())
	default:
		return shared.NewDomainErrorf(CodeInvalidInvoiceState, "Unknown discount approval status %s", inv.DiscountApprovalStatus)
	}
	if reviewerID == uuid.Nil {
		return shared.NewDomainError("INVALID_REVIEWER", "Reviewer ID cannot be empty")
	}

	now := time.Now()
	previous := inv.DiscountApprovalStatus
	inv.DiscountApprovalStatus = to
	inv.DiscountReason = reason
	inv.DiscountReviewedBy = &reviewerID
	inv.DiscountReviewedAt = &now
	inv.MarkModified(now)

	inv.AddDomainEvent(NewInvoiceDiscountReviewedEvent(inv, reviewerID, previous))

	return nil
}

// SetRemark sets the remark
func (inv *Invoice) SetRemark(remark string) {
	inv.Remark = remark
	inv.Touch(time.Now())
}

// IsCancelled returns true if the invoice was cancelled
func (inv *Invoice) IsCancelled() bool {
	return inv.Status == InvoiceStatusCancelled
}

// IsDeleted returns true if the invoice is soft-deleted
func (inv *Invoice) IsDeleted() bool {
	return inv.DeletedAt != nil
}

// IsOverdue returns true if money is still owed after the due date
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return !inv.IsCancelled() && inv.Balance.IsPositive() && now.After(inv.DueDate)
}
