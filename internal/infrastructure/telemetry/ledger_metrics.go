package telemetry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// Payment outcomes used as the payment_outcome label
const (
	PaymentOutcomeCompleted = "completed"
	PaymentOutcomeFailed    = "failed"
)

// errorCodeInternal labels rejections that carried no domain error code
const errorCodeInternal = "INTERNAL"

// ErrMeterNil is returned when NewLedgerMetrics gets no meter
var ErrMeterNil = errors.New("NewLedgerMetrics: meter cannot be nil")

// LedgerMetrics records billing ledger activity. A nil *LedgerMetrics is
// valid and records nothing, so services can run without metrics wired.
type LedgerMetrics struct {
	paymentTotal       *Counter
	paymentAmount      *Histogram
	refundTransitions  *Counter
	refundSettledTotal *Counter
	refundAmount       *Histogram
	rejectionTotal     *Counter
	overdueRefreshed   *Counter
}

// NewLedgerMetrics creates the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	lm := &LedgerMetrics{}
	var err error

	if lm.paymentTotal, err = NewCounter(meter,
		"billing_payment_total",
		"Payments recorded, by method and outcome",
		"{payments}",
	); err != nil {
		return nil, err
	}
	if lm.paymentAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "billing_payment_amount",
		Description: "Distribution of completed payment amounts",
		Unit:        "NPR",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	if lm.refundTransitions, err = NewCounter(meter,
		"billing_refund_transition_total",
		"Refund state transitions, by target status",
		"{transitions}",
	); err != nil {
		return nil, err
	}
	if lm.refundSettledTotal, err = NewCounter(meter,
		"billing_refund_settled_total",
		"Refunds settled against the ledger",
		"{refunds}",
	); err != nil {
		return nil, err
	}
	if lm.refundAmount, err = NewHistogram(meter, HistogramOpts{
		Name:        "billing_refund_amount",
		Description: "Distribution of settled refund amounts",
		Unit:        "NPR",
		Boundaries:  AmountBuckets,
	}); err != nil {
		return nil, err
	}
	if lm.rejectionTotal, err = NewCounter(meter,
		"billing_ledger_rejection_total",
		"Ledger operations rejected, by operation and error code",
		"{rejections}",
	); err != nil {
		return nil, err
	}
	if lm.overdueRefreshed, err = NewCounter(meter,
		"billing_invoice_overdue_total",
		"Invoices moved to OVERDUE by the sweeper",
		"{invoices}",
	); err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordPayment counts a payment. Only completed payments feed the amount
// distribution.
func (lm *LedgerMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, method, outcome string, amount decimal.Decimal) {
	if lm == nil {
		return
	}
	lm.paymentTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrPaymentMethod.String(method),
		AttrPaymentOutcome.String(outcome),
	)
	if outcome == PaymentOutcomeCompleted {
		lm.paymentAmount.Record(ctx, amount.InexactFloat64(), AttrPaymentMethod.String(method))
	}
}

// RecordRefundTransition counts a refund entering status
func (lm *LedgerMetrics) RecordRefundTransition(ctx context.Context, tenantID uuid.UUID, status string) {
	if lm == nil {
		return
	}
	lm.refundTransitions.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrRefundStatus.String(status),
	)
}

// RecordRefundSettled counts a COMPLETED refund and its amount
func (lm *LedgerMetrics) RecordRefundSettled(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal) {
	if lm == nil {
		return
	}
	lm.RecordRefundTransition(ctx, tenantID, "COMPLETED")
	lm.refundSettledTotal.Inc(ctx, AttrTenantID.String(tenantID.String()))
	lm.refundAmount.Record(ctx, amount.InexactFloat64())
}

// RecordLedgerRejection counts a failed ledger operation. An empty code
// means the failure was not a domain error.
func (lm *LedgerMetrics) RecordLedgerRejection(ctx context.Context, tenantID uuid.UUID, operation, code string) {
	if lm == nil {
		return
	}
	if code == "" {
		code = errorCodeInternal
	}
	lm.rejectionTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
		AttrErrorCode.String(code),
	)
}

// RecordOverdueRefresh counts invoices flipped to OVERDUE in one sweep
func (lm *LedgerMetrics) RecordOverdueRefresh(ctx context.Context, count int) {
	if lm == nil || count <= 0 {
		return
	}
	lm.overdueRefreshed.Add(ctx, int64(count))
}
