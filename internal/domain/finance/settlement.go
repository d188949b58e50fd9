package finance

import (
	"time"

	"github.com/google/uuid"
)

// SettleRefund applies an approved refund to its payment and invoice.
//
// Every precondition is checked before anything is mutated, so on error all
// three records are exactly as they were passed in. The caller must hold
// write locks on the three rows and persist them in one transaction.
func SettleRefund(refund *Refund, payment *Payment, invoice *Invoice, processedBy *uuid.UUID, now time.Time) error {
	if !refund.Status.CanTransitionTo(RefundStatusCompleted) {
		return NewInvalidRefundStateError(refund, "process")
	}
	if payment.ID != refund.PaymentID || invoice.ID != payment.InvoiceID {
		return NewInconsistentPaymentStateError(payment).
			WithDetail("refund_payment_id", refund.PaymentID.String()).
			WithDetail("payment_invoice_id", payment.InvoiceID.String())
	}
	if !payment.Status.CanTransitionTo(PaymentStatusRefunded) {
		return NewInconsistentPaymentStateError(payment)
	}
	if refund.Amount.GreaterThan(payment.Amount) {
		return invalidLedgerState(invoice, refund.Amount.Neg(), invoice.PaidAmount.Sub(refund.Amount)).
			WithDetail("payment_amount", payment.Amount.String()).
			WithDetail("refund_amount", refund.Amount.String())
	}

	change := BalanceChange{
		Delta:      refund.Amount.Neg(),
		SourceType: AggregateTypeRefund,
		SourceID:   refund.ID,
		ActorID:    processedBy,
	}
	if _, err := ApplyPaymentDelta(*invoice, change.Delta, now); err != nil {
		return err
	}

	// Preconditions hold; none of the following can fail.
	if err := payment.MarkRefunded(refund.ID, processedBy, now); err != nil {
		return err
	}
	if err := invoice.ApplyDelta(change, now); err != nil {
		return err
	}
	return refund.Complete(processedBy, now)
}
