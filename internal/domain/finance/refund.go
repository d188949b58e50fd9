package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// RefundStatus represents the status of a refund request
type RefundStatus string

const (
	// RefundStatusPending indicates the request awaits review
	RefundStatusPending RefundStatus = "PENDING"
	// RefundStatusApproved indicates the request was approved but not yet settled
	RefundStatusApproved RefundStatus = "APPROVED"
	// RefundStatusRejected indicates the request was rejected
	RefundStatusRejected RefundStatus = "REJECTED"
	// RefundStatusCompleted indicates the refund was settled against payment and invoice
	RefundStatusCompleted RefundStatus = "COMPLETED"
)

// IsValid checks if the status is a valid RefundStatus
func (s RefundStatus) IsValid() bool {
	switch s {
	case RefundStatusPending, RefundStatusApproved, RefundStatusRejected, RefundStatusCompleted:
		return true
	}
	return false
}

// String returns the string representation of RefundStatus
func (s RefundStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the refund is in a terminal state
func (s RefundStatus) IsTerminal() bool {
	return s == RefundStatusRejected || s == RefundStatusCompleted
}

// IsActive returns true while the refund blocks new requests for its payment
func (s RefundStatus) IsActive() bool {
	return s == RefundStatusPending || s == RefundStatusApproved
}

// ActiveRefundStatuses lists the statuses that count towards the
// one-active-refund-per-payment rule
func ActiveRefundStatuses() []RefundStatus {
	return []RefundStatus{RefundStatusPending, RefundStatusApproved}
}

// CanTransitionTo reports whether s may move to next
func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	switch s {
	case RefundStatusPending:
		return next == RefundStatusApproved || next == RefundStatusRejected
	case RefundStatusApproved:
		return next == RefundStatusCompleted
	case RefundStatusRejected, RefundStatusCompleted:
		return false
	}
	return false
}

// Refund is a request to reverse a completed payment. It always covers the
// whole payment amount.
type Refund struct {
	shared.TenantAggregateRoot

	RefundNumber string
	PaymentID    uuid.UUID
	InvoiceID    uuid.UUID
	StudentID    uuid.UUID
	Amount       decimal.Decimal
	Reason       string
	RequestedBy  uuid.UUID
	Remarks      string
	Status       RefundStatus

	ApprovedBy      *uuid.UUID
	ApprovedAt      *time.Time
	RejectedBy      *uuid.UUID
	RejectedAt      *time.Time
	RejectionReason string
	ProcessedBy     *uuid.UUID
	ProcessedAt     *time.Time
}

// GenerateRefundNumber builds a human-readable refund number, RF-YYYYMMDD-XXXXXXXX
func GenerateRefundNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("RF-%s-%s", now.Format("20060102"), suffix)
}

// NewRefund creates a PENDING refund request for the given payment.
// The caller checks for an existing active refund under a lock on the payment.
func NewRefund(payment *Payment, refundNumber, reason string, requestedBy uuid.UUID) (*Refund, error) {
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if !payment.Status.CanTransitionTo(PaymentStatusRefunded) {
		return nil, NewPaymentNotRefundableError(payment)
	}
	if refundNumber == "" {
		return nil, shared.NewDomainError("INVALID_REFUND_NUMBER", "Refund number cannot be empty")
	}
	if len(refundNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_REFUND_NUMBER", "Refund number cannot exceed 50 characters")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Refund reason is required")
	}
	if len(reason) > 500 {
		return nil, shared.NewDomainError("INVALID_REASON", "Refund reason cannot exceed 500 characters")
	}
	if requestedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_REQUESTER", "Requester ID cannot be empty")
	}

	r := &Refund{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(payment.TenantID),
		RefundNumber:        refundNumber,
		PaymentID:           payment.ID,
		InvoiceID:           payment.InvoiceID,
		StudentID:           payment.StudentID,
		Amount:              payment.Amount,
		Reason:              reason,
		RequestedBy:         requestedBy,
		Status:              RefundStatusPending,
	}

	r.AddDomainEvent(NewRefundRequestedEvent(r))

	return r, nil
}

// Approve records the reviewer's decision. It does not touch the payment or invoice.
func (r *Refund) Approve(approvedBy uuid.UUID, remarks string) error {
	if !r.Status.CanTransitionTo(RefundStatusApproved) {
		return NewInvalidRefundStateError(r, "approve")
	}
	if approvedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_APPROVER", "Approver ID cannot be empty")
	}

	now := time.Now()
	r.Status = RefundStatusApproved
	r.ApprovedBy = &approvedBy
	r.ApprovedAt = &now
	if remarks != "" {
		r.Remarks = remarks
	}
	r.MarkModified(now)

	r.AddDomainEvent(NewRefundApprovedEvent(r))

	return nil
}

// Reject closes the request without any ledger effect
func (r *Refund) Reject(rejectedBy uuid.UUID, reason string) error {
	if !r.Status.CanTransitionTo(RefundStatusRejected) {
		return NewInvalidRefundStateError(r, "reject")
	}
	if rejectedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_REVIEWER", "Reviewer ID cannot be empty")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Rejection reason is required")
	}

	now := time.Now()
	r.Status = RefundStatusRejected
	r.RejectedBy = &rejectedBy
	r.RejectedAt = &now
	r.RejectionReason = reason
	r.MarkModified(now)

	r.AddDomainEvent(NewRefundRejectedEvent(r))

	return nil
}

// Complete marks an approved refund as settled. Use SettleRefund to move the
// payment and invoice together with it.
func (r *Refund) Complete(processedBy *uuid.UUID, now time.Time) error {
	if !r.Status.CanTransitionTo(RefundStatusCompleted) {
		return NewInvalidRefundStateError(r, "process")
	}

	r.Status = RefundStatusCompleted
	r.ProcessedBy = processedBy
	r.ProcessedAt = &now
	r.MarkModified(now)

	r.AddDomainEvent(NewRefundCompletedEvent(r))

	return nil
}

// EnsureCancellable checks that actorID may withdraw this request.
// Only the requester may cancel, and only while the request is PENDING.
func (r *Refund) EnsureCancellable(actorID uuid.UUID) error {
	if !r.CanCancel() {
		return NewInvalidRefundStateError(r, "cancel")
	}
	if actorID != r.RequestedBy {
		return shared.NewDomainError(shared.ErrForbidden.Code, "Only the requester can cancel a refund request")
	}
	return nil
}

// CanCancel returns true if the request can still be withdrawn
func (r *Refund) CanCancel() bool {
	return r.Status == RefundStatusPending
}

// IsPending returns true if refund is pending
func (r *Refund) IsPending() bool {
	return r.Status == RefundStatusPending
}

// IsCompleted returns true if refund was settled
func (r *Refund) IsCompleted() bool {
	return r.Status == RefundStatusCompleted
}
