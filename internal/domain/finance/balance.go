package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeriveInvoiceStatus computes an invoice status from its money and due date.
// It depends only on its arguments.
//
// A partially paid invoice stays PARTIAL after its due date; OVERDUE is
// reserved for invoices with nothing paid.
func DeriveInvoiceStatus(paid, total decimal.Decimal, dueDate time.Time, cancelled bool, now time.Time) InvoiceStatus {
	if cancelled {
		return InvoiceStatusCancelled
	}

	balance := total.Sub(paid)
	switch {
	case !balance.IsPositive():
		return InvoiceStatusPaid
	case balance.LessThan(total):
		return InvoiceStatusPartial
	case now.After(dueDate):
		return InvoiceStatusOverdue
	default:
		return InvoiceStatusPending
	}
}

// ApplyPaymentDelta returns inv with delta added to its paid amount and the
// balance and status recomputed. delta is positive for a completed payment and
// negative for a settled refund. The input is not modified and nothing is
// persisted; the caller saves the result inside its own transaction.
func ApplyPaymentDelta(inv Invoice, delta decimal.Decimal, now time.Time) (Invoice, error) {
	if !inv.Status.AcceptsDelta() {
		return inv, NewInvoiceCancelledError(&inv)
	}

	newPaid := inv.PaidAmount.Add(delta)
	if newPaid.IsNegative() || newPaid.GreaterThan(inv.TotalAmount) {
		return inv, invalidLedgerState(&inv, delta, newPaid)
	}

	inv.PaidAmount = newPaid
	inv.Balance = inv.TotalAmount.Sub(newPaid)
	inv.Status = DeriveInvoiceStatus(newPaid, inv.TotalAmount, inv.DueDate, false, now)

	return inv, nil
}
