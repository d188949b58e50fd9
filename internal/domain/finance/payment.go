package finance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transition is possible
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// CanTransitionTo reports whether s may move to next.
// PENDING forks into COMPLETED or FAILED; only COMPLETED may become REFUNDED.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusCompleted || next == PaymentStatusFailed
	case PaymentStatusCompleted:
		return next == PaymentStatusRefunded
	case PaymentStatusFailed, PaymentStatusRefunded:
		return false
	}
	return false
}

// PaymentMethod identifies how the money was received
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodEsewa        PaymentMethod = "ESEWA"
	PaymentMethodKhalti       PaymentMethod = "KHALTI"
	PaymentMethodFonepay      PaymentMethod = "FONEPAY"
	PaymentMethodConnectIPS   PaymentMethod = "CONNECT_IPS"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheque, PaymentMethodEsewa,
		PaymentMethodKhalti, PaymentMethodFonepay, PaymentMethodConnectIPS, PaymentMethodOther:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

// IsGateway returns true for online gateway methods
func (m PaymentMethod) IsGateway() bool {
	switch m {
	case PaymentMethodEsewa, PaymentMethodKhalti, PaymentMethodFonepay, PaymentMethodConnectIPS:
		return true
	}
	return false
}

// Payment records money received against an invoice. Amount never changes
// after creation.
type Payment struct {
	shared.TenantAggregateRoot

	InvoiceID     uuid.UUID
	StudentID     uuid.UUID
	Amount        decimal.Decimal
	Method        PaymentMethod
	ExternalRef   string
	Status        PaymentStatus
	FailureReason string
	ReceivedBy    *uuid.UUID
	PaidAt        *time.Time
	RefundedAt    *time.Time
}

// CheckReplay accepts a repeated confirmation only when it names the same
// invoice and amount as the payment already recorded for its reference.
func (p *Payment) CheckReplay(invoiceID uuid.UUID, amount decimal.Decimal) error {
	if p.InvoiceID != invoiceID || !p.Amount.Equal(amount) {
		return NewConflictingPaymentSignalError(p, invoiceID, amount)
	}
	return nil
}

func newPayment(inv *Invoice, amount decimal.Decimal, method PaymentMethod, externalRef string, receivedBy *uuid.UUID) (*Payment, error) {
	if inv == nil {
		return nil, shared.NewDomainError(CodeInvoiceNotFound, "Invoice is required")
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount.WithDetail("amount", amount.String())
	}
	if !method.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_PAYMENT_METHOD", "Invalid payment method %q", method)
	}
	if len(externalRef) > 100 {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_REF", "External reference cannot exceed 100 characters")
	}

	return &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(inv.TenantID),
		InvoiceID:           inv.ID,
		StudentID:           inv.StudentID,
		Amount:              amount,
		Method:              method,
		ExternalRef:         externalRef,
		Status:              PaymentStatusPending,
		ReceivedBy:          receivedBy,
	}, nil
}

// NewCompletedPayment creates a payment for a confirmed gateway or cash event
func NewCompletedPayment(inv *Invoice, amount decimal.Decimal, method PaymentMethod, externalRef string, receivedBy *uuid.UUID) (*Payment, error) {
	p, err := newPayment(inv, amount, method, externalRef, receivedBy)
	if err != nil {
		return nil, err
	}
	if err := p.Complete(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewFailedPayment records a failed attempt. It never affects the invoice.
func NewFailedPayment(inv *Invoice, amount decimal.Decimal, method PaymentMethod, externalRef string, receivedBy *uuid.UUID, reason string) (*Payment, error) {
	p, err := newPayment(inv, amount, method, externalRef, receivedBy)
	if err != nil {
		return nil, err
	}
	if err := p.Fail(reason); err != nil {
		return nil, err
	}
	return p, nil
}

// Complete confirms a pending payment
func (p *Payment) Complete() error {
	if !p.Status.CanTransitionTo(PaymentStatusCompleted) {
		return invalidPaymentState(p, "complete")
	}

	now := time.Now()
	p.Status = PaymentStatusCompleted
	p.PaidAt = &now
	p.Touch(now)

	p.AddDomainEvent(NewPaymentRecordedEvent(p))

	return nil
}

// Fail marks a pending payment as failed
func (p *Payment) Fail(reason string) error {
	if !p.Status.CanTransitionTo(PaymentStatusFailed) {
		return invalidPaymentState(p, "fail")
	}

	now := time.Now()
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.Touch(now)

	p.AddDomainEvent(NewPaymentFailedEvent(p))

	return nil
}

// MarkRefunded moves a completed payment to REFUNDED. It is the only
// transition allowed after settlement.
func (p *Payment) MarkRefunded(refundID uuid.UUID, actorID *uuid.UUID, now time.Time) error {
	if !p.Status.CanTransitionTo(PaymentStatusRefunded) {
		return invalidPaymentState(p, "refund")
	}

	p.Status = PaymentStatusRefunded
	p.RefundedAt = &now
	p.MarkModified(now)

	p.AddDomainEvent(NewPaymentRefundedEvent(p, refundID, actorID))

	return nil
}

// IdempotencyKey identifies a gateway confirmation. Empty when the payment
// carries no external reference.
func (p *Payment) IdempotencyKey() string {
	return PaymentIdempotencyKey(p.TenantID, p.Method, p.ExternalRef)
}

// PaymentIdempotencyKey builds the key used to recognise repeated confirmations
func PaymentIdempotencyKey(tenantID uuid.UUID, method PaymentMethod, externalRef string) string {
	if externalRef == "" {
		return ""
	}
	return fmt.Sprintf("payment:%s:%s:%s", tenantID, method, externalRef)
}

// IsCompleted returns true if the payment is completed
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// IsRefunded returns true if the payment was refunded
func (p *Payment) IsRefunded() bool {
	return p.Status == PaymentStatusRefunded
}
