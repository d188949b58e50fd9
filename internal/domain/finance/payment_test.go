package finance_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	all := []finance.PaymentStatus{
		finance.PaymentStatusPending, finance.PaymentStatusCompleted,
		finance.PaymentStatusFailed, finance.PaymentStatusRefunded,
	}
	allowed := map[finance.PaymentStatus][]finance.PaymentStatus{
		finance.PaymentStatusPending:   {finance.PaymentStatusCompleted, finance.PaymentStatusFailed},
		finance.PaymentStatusCompleted: {finance.PaymentStatusRefunded},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestNewCompletedPayment(t *testing.T) {
	inv := newTestInvoice(t, "1000", time.Now().AddDate(0, 1, 0))
	receiver := uuid.New()

	p, err := finance.NewCompletedPayment(inv, dec("400"), finance.PaymentMethodEsewa, "ESW-123", &receiver)
	require.NoError(t, err)

	assert.Equal(t, finance.PaymentStatusCompleted, p.Status)
	assert.Equal(t, inv.ID, p.InvoiceID)
	assert.Equal(t, inv.StudentID, p.StudentID)
	assert.Equal(t, inv.TenantID, p.TenantID)
	assert.NotNil(t, p.PaidAt)
	assert.NotEmpty(t, p.IdempotencyKey())
	require.Len(t, p.GetDomainEvents(), 1)
	assert.Equal(t, finance.EventTypePaymentRecorded, p.GetDomainEvents()[0].EventType())

	t.Run("amount must be positive", func(t *testing.T) {
		for _, amount := range []decimal.Decimal{decimal.Zero, dec("-5")} {
			_, err := finance.NewCompletedPayment(inv, amount, finance.PaymentMethodCash, "", nil)
			requireCode(t, err, finance.CodeInvalidAmount)
			assert.True(t, finance.IsValidation(err))
		}
	})

	t.Run("method must be known", func(t *testing.T) {
		_, err := finance.NewCompletedPayment(inv, dec("1"), finance.PaymentMethod("BARTER"), "", nil)
		requireCode(t, err, "INVALID_PAYMENT_METHOD")
	})
}

func TestNewFailedPayment(t *testing.T) {
	inv := newTestInvoice(t, "1000", time.Now().AddDate(0, 1, 0))

	p, err := finance.NewFailedPayment(inv, dec("400"), finance.PaymentMethodKhalti, "KH-9", nil, "insufficient funds")
	require.NoError(t, err)
	assert.Equal(t, finance.PaymentStatusFailed, p.Status)
	assert.Equal(t, "insufficient funds", p.FailureReason)
	assert.Nil(t, p.PaidAt)

	err = p.MarkRefunded(uuid.New(), nil, time.Now())
	requireCode(t, err, finance.CodeInvalidPaymentState)
}

func TestPayment_MarkRefunded(t *testing.T) {
	inv := newTestInvoice(t, "1000", time.Now().AddDate(0, 1, 0))
	p := newTestCompletedPayment(t, inv, "1000")
	amount := p.Amount

	require.NoError(t, p.MarkRefunded(uuid.New(), nil, time.Now()))
	assert.Equal(t, finance.PaymentStatusRefunded, p.Status)
	assert.NotNil(t, p.RefundedAt)
	assert.True(t, p.Amount.Equal(amount))

	requireCode(t, p.MarkRefunded(uuid.New(), nil, time.Now()), finance.CodeInvalidPaymentState)
}

func TestPayment_CheckReplay(t *testing.T) {
	inv := newTestInvoice(t, "1000", time.Now().AddDate(0, 1, 0))
	p, err := finance.NewCompletedPayment(inv, dec("400"), finance.PaymentMethodEsewa, "ESW-9", nil)
	require.NoError(t, err)

	assert.NoError(t, p.CheckReplay(inv.ID, dec("400.00")))

	other := uuid.New()
	err = p.CheckReplay(other, dec("400"))
	requireCode(t, err, "ALREADY_EXISTS")
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, inv.ID.String(), de.Details["existing_invoice_id"])
	assert.Equal(t, other.String(), de.Details["invoice_id"])

	err = p.CheckReplay(inv.ID, dec("399"))
	requireCode(t, err, "ALREADY_EXISTS")
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestPaymentIdempotencyKey(t *testing.T) {
	tenant := uuid.New()
	assert.Empty(t, finance.PaymentIdempotencyKey(tenant, finance.PaymentMethodCash, ""))
	assert.Equal(t,
		finance.PaymentIdempotencyKey(tenant, finance.PaymentMethodEsewa, "A1"),
		finance.PaymentIdempotencyKey(tenant, finance.PaymentMethodEsewa, "A1"))
	assert.NotEqual(t,
		finance.PaymentIdempotencyKey(tenant, finance.PaymentMethodEsewa, "A1"),
		finance.PaymentIdempotencyKey(tenant, finance.PaymentMethodKhalti, "A1"))
}
