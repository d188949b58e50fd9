package finance_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestInvoice(t *testing.T, total string, dueDate time.Time) *finance.Invoice {
	t.Helper()
	inv, err := finance.NewInvoice(
		uuid.New(),
		"INV-2026-0001",
		uuid.New(),
		uuid.New(),
		uuid.New(),
		dec(total),
		decimal.Zero,
		dueDate,
	)
	require.NoError(t, err)
	return inv
}

func newTestCompletedPayment(t *testing.T, inv *finance.Invoice, amount string) *finance.Payment {
	t.Helper()
	p, err := finance.NewCompletedPayment(inv, dec(amount), finance.PaymentMethodCash, "", nil)
	require.NoError(t, err)
	return p
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, code, de.Code, "unexpected error: %v", err)
}
