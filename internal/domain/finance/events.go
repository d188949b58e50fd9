package finance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// Aggregate type names used on events and audit entries
const (
	AggregateTypeInvoice = "Invoice"
	AggregateTypePayment = "Payment"
	AggregateTypeRefund  = "Refund"
)

// Event type names
const (
	EventTypeInvoiceCreated          = "InvoiceCreated"
	EventTypeInvoiceBalanceChanged   = "InvoiceBalanceChanged"
	EventTypeInvoiceStatusRefreshed  = "InvoiceStatusRefreshed"
	EventTypeInvoiceCancelled        = "InvoiceCancelled"
	EventTypeInvoiceDeleted          = "InvoiceDeleted"
	EventTypeInvoiceRestored         = "InvoiceRestored"
	EventTypeInvoiceDiscountReviewed = "InvoiceDiscountReviewed"
	EventTypePaymentRecorded         = "PaymentRecorded"
	EventTypePaymentFailed           = "PaymentFailed"
	EventTypePaymentRefunded         = "PaymentRefunded"
	EventTypeRefundRequested         = "RefundRequested"
	EventTypeRefundApproved          = "RefundApproved"
	EventTypeRefundRejected          = "RefundRejected"
	EventTypeRefundCompleted         = "RefundCompleted"
	EventTypeRefundCancelled         = "RefundCancelled"
)

// LedgerEventTypes lists every event the ledger emits
func LedgerEventTypes() []string {
	return []string{
		EventTypeInvoiceCreated, EventTypeInvoiceBalanceChanged, EventTypeInvoiceStatusRefreshed,
		EventTypeInvoiceCancelled, EventTypeInvoiceDeleted, EventTypeInvoiceRestored,
		EventTypeInvoiceDiscountReviewed, EventTypePaymentRecorded, EventTypePaymentFailed,
		EventTypePaymentRefunded, EventTypeRefundRequested, EventTypeRefundApproved,
		EventTypeRefundRejected, EventTypeRefundCompleted, EventTypeRefundCancelled,
	}
}

// AuditableEvent is implemented by every ledger event so audit sinks can
// record who moved a record from which state to which.
type AuditableEvent interface {
	shared.DomainEvent
	Actor() *uuid.UUID
	StatusTransition() (from, to string)
}

// LedgerEventBase carries the audit fields shared by ledger events
type LedgerEventBase struct {
	shared.BaseDomainEvent
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	FromStatus string     `json:"from_status,omitempty"`
	ToStatus   string     `json:"to_status,omitempty"`
}

// Actor returns the user who caused the event, if known
func (e *LedgerEventBase) Actor() *uuid.UUID {
	return e.ActorID
}

// StatusTransition returns the status before and after the event
func (e *LedgerEventBase) StatusTransition() (string, string) {
	return e.FromStatus, e.ToStatus
}

func newLedgerEvent(eventType, aggType string, aggID, tenantID uuid.UUID, actor *uuid.UUID, from, to string) LedgerEventBase {
	return LedgerEventBase{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, aggType, aggID, tenantID),
		ActorID:         actor,
		FromStatus:      from,
		ToStatus:        to,
	}
}

func actorPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// InvoiceCreatedEvent is raised when an invoice is issued
type InvoiceCreatedEvent struct {
	LedgerEventBase
	InvoiceNumber  string          `json:"invoice_number"`
	StudentID      uuid.UUID       `json:"student_id"`
	FeeStructureID uuid.UUID       `json:"fee_structure_id"`
	AcademicYearID uuid.UUID       `json:"academic_year_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Discount       decimal.Decimal `json:"discount"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		LedgerEventBase: newLedgerEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID, inv.TenantID, nil, "", inv.Status.String()),
		InvoiceNumber:   inv.InvoiceNumber,
		StudentID:       inv.StudentID,
		FeeStructureID:  inv.FeeStructureID,
		AcademicYearID:  inv.AcademicYearID,
		TotalAmount:     inv.TotalAmount,
		Discount:        inv.Discount,
	}
}

// InvoiceBalanceChangedEvent is raised when a payment or refund moves the paid amount
type InvoiceBalanceChangedEvent struct {
	LedgerEventBase
	InvoiceNumber string          `json:"invoice_number"`
	Delta         decimal.Decimal `json:"delta"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	Balance       decimal.Decimal `json:"balance"`
	SourceType    string          `json:"source_type"`
	SourceID      uuid.UUID       `json:"source_id"`
}

// NewInvoiceBalanceChangedEvent creates a new InvoiceBalanceChangedEvent
func NewInvoiceBalanceChangedEvent(inv *Invoice, change BalanceChange, previous InvoiceStatus) *InvoiceBalanceChangedEvent {
	return &InvoiceBalanceChangedEvent{
		LedgerEventBase: newLedgerEvent(EventTypeInvoiceBalanceChanged, AggregateTypeInvoice, inv.ID, inv.TenantID,
			change.ActorID, previous.String(), inv.Status.String()),
		InvoiceNumber: inv.InvoiceNumber,
		Delta:         change.Delta,
		PaidAmount:    inv.PaidAmount,
		Balance:       inv.Balance,
		SourceType:    change.SourceType,
		SourceID:      change.SourceID,
	}
}

// InvoiceStatusRefreshedEvent is raised when time alone changes an invoice status
type InvoiceStatusRefreshedEvent struct {
	LedgerEventBase
	InvoiceNumber string `json:"invoice_number"`
}

// NewInvoiceStatusRefreshedEvent creates a new InvoiceStatusRefreshedEvent
func NewInvoiceStatusRefreshedEvent(inv *Invoice, previous InvoiceStatus) *InvoiceStatusRefreshedEvent {
	return &InvoiceStatusRefreshedEvent{
		LedgerEventBase: newLedgerEvent(EventTypeInvoiceStatusRefreshed, AggregateTypeInvoice, inv.ID, inv.TenantID,
			nil, previous.String(), inv.Status.String()),
		InvoiceNumber: inv.InvoiceNumber,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	LedgerEventBase
	InvoiceNumber string `json:"invoice_number"`
	Reason        string `json:"reason"`
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice, actorID uuid.UUID, previous InvoiceStatus) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		LedgerEventBase: newLedgerEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID, inv.TenantID,
			actorPtr(actorID), previous.String(), inv.Status.String()),
		InvoiceNumber: inv.InvoiceNumber,
		Reason:        inv.CancelReason,
	}
}

// InvoiceDeletedEvent is raised when an invoice is soft-deleted
type InvoiceDeletedEvent struct {
	LedgerEventBase
	InvoiceNumber string `json:"invoice_number"`
}

// NewInvoiceDeletedEvent creates a new InvoiceDeletedEvent
func NewInvoiceDeletedEvent(inv *Invoice, actorID uuid.UUID) *InvoiceDeletedEvent {
	return &InvoiceDeletedEvent{
		LedgerEventBase: newLedgerEvent(EventTypeInvoiceDeleted, AggregateTypeInvoice, inv.ID, inv.TenantID,
			actorPtr(actorID), "", ""),
		InvoiceNumber: inv.InvoiceNumber,
	}
}

// InvoiceRestoredEvent is raised when a soft-deleted invoice is restored
type InvoiceRestoredEvent struct {
	LedgerEventBase
	InvoiceNumber string `json:"invoice_number"`
}

// NewInvoiceRestoredEvent creates a new InvoiceRestoredEvent
func NewInvoiceRestoredEvent(inv *Invoice, actorID uuid.UUID) *InvoiceRestoredEvent {
	return &InvoiceRestoredEvent{
		LedgerEventBase: newLedgerEvent(EventTypeInvoiceRestored, AggregateTypeInvoice, inv.ID, inv.TenantID,
			actorPtr(actorID), "", ""),
		InvoiceNumber: inv.InvoiceNumber,
	}
}

// InvoiceDiscountReviewedEvent is raised when a discount is approved or rejected
type InvoiceDiscountReviewedEvent struct {
	LedgerEventBase
	InvoiceNumber string          `json:"invoice_number"`
	Discount      decimal.Decimal `json:"discount"`
	Reason        string          `json:"reason,omitempty"`
}

// NewInvoiceDiscountReviewedEvent creates a new InvoiceDiscountReviewedEvent.
// The status transition refers to the discount approval sub-state.
func NewInvoiceDiscountReviewedEvent(inv *Invoice, reviewerID uuid.UUID, previous DiscountApprovalStatus) *InvoiceDiscountReviewedEvent {
	return &InvoiceDiscountReviewedEvent{
		LedgerEventBase: newLedgerEvent(EventTypeInvoiceDiscountReviewed, AggregateTypeInvoice, inv.ID, inv.TenantID,
			actorPtr(reviewerID), previous.String(), inv.DiscountApprovalStatus.String()),
		InvoiceNumber: inv.InvoiceNumber,
		Discount:      inv.Discount,
		Reason:        inv.DiscountReason,
	}
}

// PaymentRecordedEvent is raised when a completed payment is recorded
type PaymentRecordedEvent struct {
	LedgerEventBase
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	StudentID   uuid.UUID       `json:"student_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	ExternalRef string          `json:"external_ref,omitempty"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		LedgerEventBase: newLedgerEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID, p.TenantID,
			p.ReceivedBy, PaymentStatusPending.String(), p.Status.String()),
		InvoiceID:   p.InvoiceID,
		StudentID:   p.StudentID,
		Amount:      p.Amount,
		Method:      p.Method,
		ExternalRef: p.ExternalRef,
	}
}

// PaymentFailedEvent is raised when a failed payment attempt is recorded
type PaymentFailedEvent struct {
	LedgerEventBase
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	ExternalRef   string          `json:"external_ref,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// NewPaymentFailedEvent creates a new PaymentFailedEvent
func NewPaymentFailedEvent(p *Payment) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		LedgerEventBase: newLedgerEvent(EventTypePaymentFailed, AggregateTypePayment, p.ID, p.TenantID,
			p.ReceivedBy, PaymentStatusPending.String(), p.Status.String()),
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount,
		Method:        p.Method,
		ExternalRef:   p.ExternalRef,
		FailureReason: p.FailureReason,
	}
}

// PaymentRefundedEvent is raised when settlement reverses a payment
type PaymentRefundedEvent struct {
	LedgerEventBase
	InvoiceID uuid.UUID       `json:"invoice_id"`
	RefundID  uuid.UUID       `json:"refund_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewPaymentRefundedEvent creates a new PaymentRefundedEvent
func NewPaymentRefundedEvent(p *Payment, refundID uuid.UUID, actorID *uuid.UUID) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		LedgerEventBase: newLedgerEvent(EventTypePaymentRefunded, AggregateTypePayment, p.ID, p.TenantID,
			actorID, PaymentStatusCompleted.String(), p.Status.String()),
		InvoiceID: p.InvoiceID,
		RefundID:  refundID,
		Amount:    p.Amount,
	}
}

// RefundEvent carries the refund fields shared by every refund lifecycle event
type RefundEvent struct {
	LedgerEventBase
	RefundNumber string          `json:"refund_number"`
	PaymentID    uuid.UUID       `json:"payment_id"`
	InvoiceID    uuid.UUID       `json:"invoice_id"`
	StudentID    uuid.UUID       `json:"student_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason,omitempty"`
	Remarks      string          `json:"remarks,omitempty"`
}

func newRefundEvent(eventType string, r *Refund, actor *uuid.UUID, from RefundStatus, to string) *RefundEvent {
	return &RefundEvent{
		LedgerEventBase: newLedgerEvent(eventType, AggregateTypeRefund, r.ID, r.TenantID, actor, from.String(), to),
		RefundNumber:    r.RefundNumber,
		PaymentID:       r.PaymentID,
		InvoiceID:       r.InvoiceID,
		StudentID:       r.StudentID,
		Amount:          r.Amount,
		Reason:          r.Reason,
		Remarks:         r.Remarks,
	}
}

// NewRefundRequestedEvent is raised when a refund request is created
func NewRefundRequestedEvent(r *Refund) *RefundEvent {
	return newRefundEvent(EventTypeRefundRequested, r, actorPtr(r.RequestedBy), "", r.Status.String())
}

// NewRefundApprovedEvent is raised when a refund request is approved
func NewRefundApprovedEvent(r *Refund) *RefundEvent {
	return newRefundEvent(EventTypeRefundApproved, r, r.ApprovedBy, RefundStatusPending, r.Status.String())
}

// NewRefundRejectedEvent is raised when a refund request is rejected
func NewRefundRejectedEvent(r *Refund) *RefundEvent {
	e := newRefundEvent(EventTypeRefundRejected, r, r.RejectedBy, RefundStatusPending, r.Status.String())
	e.Reason = r.RejectionReason
	return e
}

// NewRefundCompletedEvent is raised when a refund is settled
func NewRefundCompletedEvent(r *Refund) *RefundEvent {
	return newRefundEvent(EventTypeRefundCompleted, r, r.ProcessedBy, RefundStatusApproved, r.Status.String())
}

// NewRefundCancelledEvent is raised when the requester withdraws a pending request.
// The refund row no longer exists afterwards.
func NewRefundCancelledEvent(r *Refund, actorID uuid.UUID) *RefundEvent {
	return newRefundEvent(EventTypeRefundCancelled, r, actorPtr(actorID), r.Status, "")
}
