package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PaymentService turns gateway and cash confirmation signals into Payment
// records and moves the invoice balance for completed ones.
type PaymentService struct {
	paymentRepo finance.PaymentRepository
	txScope     TransactionScope
	opts        serviceOptions
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo finance.PaymentRepository,
	txScope TransactionScope,
	opts ...Option,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		txScope:     txScope,
		opts:        applyOptions(opts),
	}
}

// RecordPayment records a confirmed payment and applies it to the invoice in
// one transaction. A confirmation whose external reference was already
// recorded returns the existing payment instead of applying it twice; one
// naming a different invoice or amount is rejected as ALREADY_EXISTS.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID uuid.UUID, req RecordPaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, req.InvoiceID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrPaymentMethod, req.Method,
	)

	// Validation happens before any I/O
	if !req.Amount.IsPositive() {
		err := finance.ErrInvalidAmount.WithDetail("amount", req.Amount.String())
		telemetry.RecordError(span, err)
		return nil, err
	}
	method := finance.PaymentMethod(req.Method)
	if !method.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_PAYMENT_METHOD", "Invalid payment method %q", req.Method)
	}

	key := finance.PaymentIdempotencyKey(tenantID, method, req.ExternalRef)
	existing, err := s.findReplayed(ctx, tenantID, method, req, key)
	if err != nil {
		telemetry.RecordError(span, err)
		s.opts.metrics.RecordLedgerRejection(ctx, tenantID, "record_payment", shared.ErrorCode(err))
		return nil, err
	}
	if existing != nil {
		telemetry.AddEvent(span, "payment_replayed", telemetry.SpanAttrPaymentID, existing.ID.String())
		resp := ToPaymentResponse(existing)
		resp.Duplicate = true
		return &resp, nil
	}

	var (
		payment   *finance.Payment
		invoice   *finance.Invoice
		duplicate bool
	)
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, req.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if inv == nil {
			return finance.NewInvoiceNotFoundError(req.InvoiceID)
		}

		// Checked under the invoice lock so two deliveries of the same
		// confirmation cannot both pass.
		if key != "" {
			existing, err := repos.PaymentRepo().FindByExternalRef(ctx, tenantID, method, req.ExternalRef)
			if err != nil {
				return fmt.Errorf("failed to check external reference: %w", err)
			}
			if existing != nil {
				if err := existing.CheckReplay(inv.ID, req.Amount); err != nil {
					return err
				}
				payment = existing
				duplicate = true
				return nil
			}
		}

		if inv.IsCancelled() {
			return finance.NewInvoiceCancelledError(inv)
		}

		p, err := finance.NewCompletedPayment(inv, req.Amount, method, req.ExternalRef, req.ReceivedBy)
		if err != nil {
			return err
		}
		change := finance.BalanceChange{
			Delta:      p.Amount,
			SourceType: finance.AggregateTypePayment,
			SourceID:   p.ID,
			ActorID:    req.ReceivedBy,
		}
		if err := inv.ApplyDelta(change, s.opts.now()); err != nil {
			return err
		}

		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		payment, invoice = p, inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.opts.metrics.RecordLedgerRejection(ctx, tenantID, "record_payment", shared.ErrorCode(err))
		return nil, err
	}

	s.markProcessed(ctx, key)

	resp := ToPaymentResponse(payment)
	if duplicate {
		resp.Duplicate = true
		return &resp, nil
	}

	s.opts.publishEvents(ctx, payment, invoice)
	s.opts.metrics.RecordPayment(ctx, tenantID, method.String(), telemetry.PaymentOutcomeCompleted, payment.Amount)
	s.opts.logger.Info("Payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("invoice_status", invoice.Status.String()),
	)

	return &resp, nil
}

// RecordFailedPayment records a failed attempt. The invoice is not touched.
func (s *PaymentService) RecordFailedPayment(ctx context.Context, tenantID uuid.UUID, req RecordPaymentRequest, reason string) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record_failed")
	defer span.End()

	if !req.Amount.IsPositive() {
		return nil, finance.ErrInvalidAmount.WithDetail("amount", req.Amount.String())
	}
	method := finance.PaymentMethod(req.Method)

	var payment *finance.Payment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.InvoiceRepo().FindByID(ctx, tenantID, req.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if inv == nil {
			return finance.NewInvoiceNotFoundError(req.InvoiceID)
		}
		if inv.IsCancelled() {
			return finance.NewInvoiceCancelledError(inv)
		}

		p, err := finance.NewFailedPayment(inv, req.Amount, method, req.ExternalRef, req.ReceivedBy, reason)
		if err != nil {
			return err
		}
		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		payment = p
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.opts.publishEvents(ctx, payment)
	s.opts.metrics.RecordPayment(ctx, tenantID, method.String(), telemetry.PaymentOutcomeFailed, payment.Amount)

	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// GetPaymentByID returns a payment
func (s *PaymentService) GetPaymentByID(ctx context.Context, tenantID, id uuid.UUID) (*PaymentResponse, error) {
	p, err := s.paymentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if p == nil {
		return nil, finance.NewPaymentNotFoundError(id)
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// ListPaymentsByInvoice returns every payment recorded against an invoice
func (s *PaymentService) ListPaymentsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	payments, err := s.paymentRepo.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return ToPaymentResponses(payments), nil
}

// findReplayed consults the idempotency store and, on a hit, loads the
// payment it remembers. Store errors fall through to the database check; the
// only error returned is a conflicting replay.
func (s *PaymentService) findReplayed(ctx context.Context, tenantID uuid.UUID, method finance.PaymentMethod, req RecordPaymentRequest, key string) (*finance.Payment, error) {
	if key == "" || s.opts.idempotency == nil {
		return nil, nil
	}
	seen, err := s.opts.idempotency.IsProcessed(ctx, key)
	if err != nil {
		s.opts.logger.Warn("Idempotency store lookup failed", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if !seen {
		return nil, nil
	}
	existing, err := s.paymentRepo.FindByExternalRef(ctx, tenantID, method, req.ExternalRef)
	if err != nil {
		s.opts.logger.Warn("Failed to load replayed payment", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if existing == nil {
		return nil, nil
	}
	if err := existing.CheckReplay(req.InvoiceID, req.Amount); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *PaymentService) markProcessed(ctx context.Context, key string) {
	if key == "" || s.opts.idempotency == nil {
		return
	}
	if _, err := s.opts.idempotency.MarkProcessed(ctx, key, s.opts.idempotencyTTL); err != nil {
		s.opts.logger.Warn("Failed to mark payment reference as processed", zap.String("key", key), zap.Error(err))
	}
}
