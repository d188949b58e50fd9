package finance_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
)

func TestDeriveInvoiceStatus(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	tests := []struct {
		name      string
		paid      string
		total     string
		dueDate   time.Time
		cancelled bool
		want      finance.InvoiceStatus
	}{
		{"nothing paid, not due", "0", "1000", future, false, finance.InvoiceStatusPending},
		{"nothing paid, past due", "0", "1000", past, false, finance.InvoiceStatusOverdue},
		{"partially paid, not due", "300", "1000", future, false, finance.InvoiceStatusPartial},
		{"partially paid, past due", "300", "1000", past, false, finance.InvoiceStatusPartial},
		{"fully paid", "1000", "1000", past, false, finance.InvoiceStatusPaid},
		{"cancelled wins", "0", "1000", future, true, finance.InvoiceStatusCancelled},
		{"due exactly now is not overdue", "0", "1000", now, false, finance.InvoiceStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := finance.DeriveInvoiceStatus(dec(tt.paid), dec(tt.total), tt.dueDate, tt.cancelled, now)
			assert.Equal(t, tt.want, got)
			// same inputs, same answer
			assert.Equal(t, got, finance.DeriveInvoiceStatus(dec(tt.paid), dec(tt.total), tt.dueDate, tt.cancelled, now))
		})
	}
}

func TestApplyPaymentDelta(t *testing.T) {
	now := time.Now()

	t.Run("does not modify the input", func(t *testing.T) {
		inv := newTestInvoice(t, "500", now.AddDate(0, 1, 0))
		before := *inv

		next, err := finance.ApplyPaymentDelta(*inv, dec("300"), now)
		require.NoError(t, err)

		assert.True(t, next.PaidAmount.Equal(dec("300")))
		assert.True(t, next.Balance.Equal(dec("200")))
		assert.Equal(t, finance.InvoiceStatusPartial, next.Status)

		assert.True(t, inv.PaidAmount.Equal(before.PaidAmount))
		assert.True(t, inv.Balance.Equal(before.Balance))
		assert.Equal(t, before.Status, inv.Status)
	})

	t.Run("full payment marks paid", func(t *testing.T) {
		inv := newTestInvoice(t, "1000", now.AddDate(0, 0, -3))
		next, err := finance.ApplyPaymentDelta(*inv, dec("1000"), now)
		require.NoError(t, err)
		assert.True(t, next.Balance.IsZero())
		assert.Equal(t, finance.InvoiceStatusPaid, next.Status)
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		inv := newTestInvoice(t, "500", now.AddDate(0, 1, 0))
		_, err := finance.ApplyPaymentDelta(*inv, dec("500.0001"), now)
		requireCode(t, err, finance.CodeInvalidLedgerState)
		assert.True(t, finance.IsInvariantViolation(err))
	})

	t.Run("refund below zero is rejected", func(t *testing.T) {
		inv := newTestInvoice(t, "500", now.AddDate(0, 1, 0))
		next, err := finance.ApplyPaymentDelta(*inv, dec("300"), now)
		require.NoError(t, err)

		_, err = finance.ApplyPaymentDelta(next, dec("-400"), now)
		requireCode(t, err, finance.CodeInvalidLedgerState)
	})

	t.Run("cancelled invoice rejects any delta", func(t *testing.T) {
		inv := newTestInvoice(t, "500", now.AddDate(0, 1, 0))
		require.NoError(t, inv.Cancel(inv.StudentID, "issued in error"))

		_, err := finance.ApplyPaymentDelta(*inv, dec("100"), now)
		requireCode(t, err, finance.CodeInvoiceCancelled)

		_, err = finance.ApplyPaymentDelta(*inv, dec("-100"), now)
		requireCode(t, err, finance.CodeInvoiceCancelled)
	})

	t.Run("balance invariant holds over a sequence", func(t *testing.T) {
		inv := newTestInvoice(t, "1000", now.AddDate(0, 0, -1))
		deltas := []string{"250", "250", "-250", "500", "250", "-1000", "1000"}
		for _, d := range deltas {
			next, err := finance.ApplyPaymentDelta(*inv, dec(d), now)
			require.NoError(t, err, "delta %s", d)
			*inv = next

			assert.True(t, inv.Balance.Equal(inv.TotalAmount.Sub(inv.PaidAmount)))
			assert.False(t, inv.PaidAmount.IsNegative())
			assert.False(t, inv.PaidAmount.GreaterThan(inv.TotalAmount))
		}
		assert.Equal(t, finance.InvoiceStatusPaid, inv.Status)
	})

	t.Run("fully refunded past-due invoice becomes overdue", func(t *testing.T) {
		inv := newTestInvoice(t, "1000", now.AddDate(0, 0, -1))
		next, err := finance.ApplyPaymentDelta(*inv, dec("1000"), now)
		require.NoError(t, err)
		next, err = finance.ApplyPaymentDelta(next, decimal.NewFromInt(-1000), now)
		require.NoError(t, err)
		assert.Equal(t, finance.InvoiceStatusOverdue, next.Status)
		assert.True(t, next.Balance.Equal(dec("1000")))
	})
}
