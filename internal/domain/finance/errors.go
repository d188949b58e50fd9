package finance

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// Ledger error codes. Handlers map these to HTTP statuses; callers use the
// Is* helpers to decide between re-fetch, retry and escalation.
const (
	CodeInvoiceNotFound          = "INVOICE_NOT_FOUND"
	CodePaymentNotFound          = "PAYMENT_NOT_FOUND"
	CodeRefundNotFound           = "REFUND_NOT_FOUND"
	CodeInvalidRefundState       = "INVALID_REFUND_STATE"
	CodePaymentNotRefundable     = "PAYMENT_NOT_REFUNDABLE"
	CodeDuplicateRefundRequest   = "DUPLICATE_REFUND_REQUEST"
	CodeInconsistentPaymentState = "INCONSISTENT_PAYMENT_STATE"
	CodeInvoiceCancelled         = "INVOICE_CANCELLED"
	CodeInvalidPaymentState      = "INVALID_PAYMENT_STATE"
	CodeInvalidInvoiceState      = "INVALID_INVOICE_STATE"
	CodeInvalidAmount            = "INVALID_AMOUNT"
	CodeInvalidLedgerState       = "INVALID_LEDGER_STATE"
)

// Sentinels for errors.Is. The constructors below return copies that carry
// the offending record's current state.
var (
	ErrInvoiceNotFound          = shared.NewDomainError(CodeInvoiceNotFound, "Invoice not found")
	ErrPaymentNotFound          = shared.NewDomainError(CodePaymentNotFound, "Payment not found")
	ErrRefundNotFound           = shared.NewDomainError(CodeRefundNotFound, "Refund not found")
	ErrInvalidRefundState       = shared.NewDomainError(CodeInvalidRefundState, "Refund is not in a state that allows this operation")
	ErrPaymentNotRefundable     = shared.NewDomainError(CodePaymentNotRefundable, "Only completed payments can be refunded")
	ErrDuplicateRefundRequest   = shared.NewDomainError(CodeDuplicateRefundRequest, "An active refund request already exists for this payment")
	ErrInconsistentPaymentState = shared.NewDomainError(CodeInconsistentPaymentState, "Payment is no longer in a refundable state")
	ErrInvoiceCancelled         = shared.NewDomainError(CodeInvoiceCancelled, "Invoice is cancelled")
	ErrInvalidPaymentState      = shared.NewDomainError(CodeInvalidPaymentState, "Payment is not in a state that allows this operation")
	ErrInvalidInvoiceState      = shared.NewDomainError(CodeInvalidInvoiceState, "Invoice is not in a state that allows this operation")
	ErrInvalidAmount            = shared.NewDomainError(CodeInvalidAmount, "Amount must be greater than zero")
	ErrInvalidLedgerState       = shared.NewDomainError(CodeInvalidLedgerState, "Paid amount would fall outside the invoice total")
)

// NewInvoiceNotFoundError reports a missing or soft-deleted invoice
func NewInvoiceNotFoundError(id uuid.UUID) error {
	return ErrInvoiceNotFound.WithDetail("invoice_id", id.String())
}

// NewPaymentNotFoundError reports a missing payment
func NewPaymentNotFoundError(id uuid.UUID) error {
	return ErrPaymentNotFound.WithDetail("payment_id", id.String())
}

// NewRefundNotFoundError reports a missing refund
func NewRefundNotFoundError(id uuid.UUID) error {
	return ErrRefundNotFound.WithDetail("refund_id", id.String())
}

// NewInvalidRefundStateError reports a refund transition not allowed from its current status
func NewInvalidRefundStateError(r *Refund, op string) error {
	return shared.NewDomainErrorf(CodeInvalidRefundState, "Cannot %s refund in %s status", op, r.Status).
		WithDetail("refund_id", r.ID.String()).
		WithDetail("current_status", r.Status.String())
}

func invalidPaymentState(p *Payment, op string) error {
	return shared.NewDomainErrorf(CodeInvalidPaymentState, "Cannot %s payment in %s status", op, p.Status).
		WithDetail("payment_id", p.ID.String()).
		WithDetail("current_status", p.Status.String())
}

// NewPaymentNotRefundableError reports a refund request against a payment that is not completed
func NewPaymentNotRefundableError(p *Payment) error {
	return shared.NewDomainErrorf(CodePaymentNotRefundable, "Payment in %s status cannot be refunded", p.Status).
		WithDetail("payment_id", p.ID.String()).
		WithDetail("current_status", p.Status.String())
}

// NewDuplicateRefundRequestError reports an existing active refund for the payment
func NewDuplicateRefundRequestError(paymentID uuid.UUID, existing *Refund) error {
	err := ErrDuplicateRefundRequest.WithDetail("payment_id", paymentID.String())
	if existing != nil {
		err = err.WithDetail("existing_refund_id", existing.ID.String()).
			WithDetail("existing_status", existing.Status.String())
	}
	return err
}

// NewInconsistentPaymentStateError reports a payment that changed between approval and settlement
func NewInconsistentPaymentStateError(p *Payment) *shared.DomainError {
	return shared.NewDomainErrorf(CodeInconsistentPaymentState, "Payment is %s, expected COMPLETED", p.Status).
		WithDetail("payment_id", p.ID.String()).
		WithDetail("current_status", p.Status.String())
}

// NewConflictingPaymentSignalError reports a confirmation whose external
// reference was already applied to a different invoice or amount.
func NewConflictingPaymentSignalError(existing *Payment, invoiceID uuid.UUID, amount decimal.Decimal) *shared.DomainError {
	return shared.NewDomainErrorf(shared.ErrAlreadyExists.Code,
		"Reference %s was already applied to invoice %s for %s", existing.ExternalRef, existing.InvoiceID, existing.Amount.String()).
		WithDetail("payment_id", existing.ID.String()).
		WithDetail("external_ref", existing.ExternalRef).
		WithDetail("existing_invoice_id", existing.InvoiceID.String()).
		WithDetail("existing_amount", existing.Amount.String()).
		WithDetail("invoice_id", invoiceID.String()).
		WithDetail("amount", amount.String())
}

// NewInvoiceCancelledError reports an operation on a cancelled invoice
func NewInvoiceCancelledError(inv *Invoice) error {
	return ErrInvoiceCancelled.WithDetail("invoice_id", inv.ID.String()).
		WithDetail("current_status", inv.Status.String())
}

func invalidLedgerState(inv *Invoice, delta, newPaid decimal.Decimal) *shared.DomainError {
	return shared.NewDomainErrorf(CodeInvalidLedgerState,
		"Applying %s to invoice %s would set paid amount to %s outside [0, %s]",
		delta.String(), inv.InvoiceNumber, newPaid.String(), inv.TotalAmount.String()).
		WithDetail("invoice_id", inv.ID.String()).
		WithDetail("paid_amount", inv.PaidAmount.String()).
		WithDetail("total_amount", inv.TotalAmount.String())
}

// IsNotFound reports whether err names a missing ledger record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound) || errors.Is(err, ErrPaymentNotFound) || errors.Is(err, ErrRefundNotFound)
}

// IsStatePrecondition reports whether err rejects a transition given current state
func IsStatePrecondition(err error) bool {
	switch shared.ErrorCode(err) {
	case CodeInvalidRefundState, CodePaymentNotRefundable, CodeDuplicateRefundRequest,
		CodeInconsistentPaymentState, CodeInvoiceCancelled, CodeInvalidPaymentState, CodeInvalidInvoiceState:
		return true
	}
	return false
}

// IsValidation reports whether err rejects caller input before any I/O
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

// IsInvariantViolation reports whether err is a ledger invariant failure
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvalidLedgerState)
}
