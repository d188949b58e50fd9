package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RefundService drives refund requests from creation through review to
// settlement.
type RefundService struct {
	refundRepo finance.RefundRepository
	txScope    TransactionScope
	opts       serviceOptions
}

// NewRefundService creates a new RefundService
func NewRefundService(
	refundRepo finance.RefundRepository,
	txScope TransactionScope,
	opts ...Option,
) *RefundService {
	return &RefundService{
		refundRepo: refundRepo,
		txScope:    txScope,
		opts:       applyOptions(opts),
	}
}

// CreateRefundRequest opens a PENDING refund for the whole amount of a
// completed payment. The payment row is locked before the duplicate check so
// two concurrent requests for one payment serialise and the second one sees
// the first.
func (s *RefundService) CreateRefundRequest(ctx context.Context, tenantID uuid.UUID, req CreateRefundRequest, requestedBy uuid.UUID) (*RefundResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "create_request")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, req.PaymentID.String())

	var refund *finance.Refund
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PaymentRepo().FindByIDForUpdate(ctx, tenantID, req.PaymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if payment == nil {
			return finance.NewPaymentNotFoundError(req.PaymentID)
		}
		if !payment.IsCompleted() {
			return finance.NewPaymentNotRefundableError(payment)
		}

		existing, err := repos.RefundRepo().FindActiveByPayment(ctx, tenantID, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to check existing refunds: %w", err)
		}
		if existing != nil {
			return finance.NewDuplicateRefundRequestError(payment.ID, existing)
		}

		r, err := finance.NewRefund(payment, finance.GenerateRefundNumber(s.opts.now()), req.Reason, requestedBy)
		if err != nil {
			return err
		}
		if err := repos.RefundRepo().Save(ctx, r); err != nil {
			return err
		}
		refund = r
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, tenantID, "request", err)
	}

	s.opts.publishEvents(ctx, refund)
	s.opts.metrics.RecordRefundTransition(ctx, tenantID, finance.RefundStatusPending.String())
	s.opts.logger.Info("Refund requested",
		zap.String("tenant_id", tenantID.String()),
		zap.String("refund_id", refund.ID.String()),
		zap.String("payment_id", refund.PaymentID.String()),
		zap.String("amount", refund.Amount.String()),
	)

	resp := ToRefundResponse(refund)
	return &resp, nil
}

// ApproveRefund approves a PENDING refund. Payment and invoice are untouched
// until ProcessRefund.
func (s *RefundService) ApproveRefund(ctx context.Context, tenantID, refundID, approvedBy uuid.UUID, remarks string) (*RefundResponse, error) {
	return s.review(ctx, "approve", tenantID, refundID, func(r *finance.Refund) error {
		return r.Approve(approvedBy, remarks)
	})
}

// RejectRefund rejects a PENDING refund. Rejection is terminal.
func (s *RefundService) RejectRefund(ctx context.Context, tenantID, refundID, rejectedBy uuid.UUID, reason string) (*RefundResponse, error) {
	return s.review(ctx, "reject", tenantID, refundID, func(r *finance.Refund) error {
		return r.Reject(rejectedBy, reason)
	})
}

func (s *RefundService) review(
	ctx context.Context,
	op string,
	tenantID, refundID uuid.UUID,
	apply func(r *finance.Refund) error,
) (*RefundResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", op)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrRefundID, refundID.String())

	var refund *finance.Refund
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.RefundRepo().FindByIDForUpdate(ctx, tenantID, refundID)
		if err != nil {
			return fmt.Errorf("failed to load refund: %w", err)
		}
		if r == nil {
			return finance.NewRefundNotFoundError(refundID)
		}
		if err := apply(r); err != nil {
			return err
		}
		if err := repos.RefundRepo().Save(ctx, r); err != nil {
			return fmt.Errorf("failed to save refund: %w", err)
		}
		refund = r
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, tenantID, op, err)
	}

	s.opts.publishEvents(ctx, refund)
	s.opts.metrics.RecordRefundTransition(ctx, tenantID, refund.Status.String())

	resp := ToRefundResponse(refund)
	return &resp, nil
}

// ProcessRefund settles an APPROVED refund: the payment becomes REFUNDED, the
// invoice paid amount drops by the refund amount and the refund becomes
// COMPLETED, all in one transaction. Calling it again on a settled refund
// fails with INVALID_REFUND_STATE and changes nothing.
func (s *RefundService) ProcessRefund(ctx context.Context, tenantID, refundID uuid.UUID, processedBy *uuid.UUID) (*RefundResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "process")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrRefundID, refundID.String())

	var (
		refund  *finance.Refund
		payment *finance.Payment
		invoice *finance.Invoice
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.RefundRepo().FindByIDForUpdate(ctx, tenantID, refundID)
		if err != nil {
			return fmt.Errorf("failed to load refund: %w", err)
		}
		if r == nil {
			return finance.NewRefundNotFoundError(refundID)
		}
		if !r.Status.CanTransitionTo(finance.RefundStatusCompleted) {
			return finance.NewInvalidRefundStateError(r, "process")
		}

		p, err := repos.PaymentRepo().FindByIDForUpdate(ctx, tenantID, r.PaymentID)
		if err != nil {
			return fmt.Errorf("failed to load payment: %w", err)
		}
		if p == nil {
			return finance.NewPaymentNotFoundError(r.PaymentID)
		}

		inv, err := repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, p.InvoiceID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if inv == nil {
			return finance.NewInvoiceNotFoundError(p.InvoiceID)
		}

		if err := finance.SettleRefund(r, p, inv, processedBy, s.opts.now()); err != nil {
			return err
		}

		if err := repos.PaymentRepo().Save(ctx, p); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		if err := repos.RefundRepo().Save(ctx, r); err != nil {
			return fmt.Errorf("failed to save refund: %w", err)
		}

		refund, payment, invoice = r, p, inv
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, span, tenantID, "process", err)
	}

	s.opts.publishEvents(ctx, payment, invoice, refund)
	s.opts.metrics.RecordRefundSettled(ctx, tenantID, refund.Amount)
	s.opts.logger.Info("Refund settled",
		zap.String("tenant_id", tenantID.String()),
		zap.String("refund_id", refund.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("amount", refund.Amount.String()),
		zap.String("invoice_status", invoice.Status.String()),
	)

	resp := ToRefundResponse(refund)
	return &resp, nil
}

// CancelRefundRequest lets the requester withdraw a PENDING request. The
// request is removed entirely since it never had any ledger effect.
func (s *RefundService) CancelRefundRequest(ctx context.Context, tenantID, refundID, actorID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "refund", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrRefundID, refundID.String())

	var refund *finance.Refund
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := repos.RefundRepo().FindByIDForUpdate(ctx, tenantID, refundID)
		if err != nil {
			return fmt.Errorf("failed to load refund: %w", err)
		}
		if r == nil {
			return finance.NewRefundNotFoundError(refundID)
		}
		if err := r.EnsureCancellable(actorID); err != nil {
			return err
		}
		if err := repos.RefundRepo().Delete(ctx, tenantID, r.ID); err != nil {
			return fmt.Errorf("failed to delete refund: %w", err)
		}
		refund = r
		return nil
	})
	if err != nil {
		return s.fail(ctx, span, tenantID, "cancel", err)
	}

	s.opts.publish(ctx, finance.NewRefundCancelledEvent(refund, actorID))
	return nil
}

// GetRefundByID returns a refund
func (s *RefundService) GetRefundByID(ctx context.Context, tenantID, id uuid.UUID) (*RefundResponse, error) {
	r, err := s.refundRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	if r == nil {
		return nil, finance.NewRefundNotFoundError(id)
	}
	resp := ToRefundResponse(r)
	return &resp, nil
}

// GetPendingRefunds lists refunds awaiting review, oldest first
func (s *RefundService) GetPendingRefunds(ctx context.Context, tenantID uuid.UUID, page, pageSize int) (*shared.Paginated[RefundResponse], error) {
	status := finance.RefundStatusPending
	filter := finance.RefundFilter{Filter: pageFilter(page, pageSize), Status: &status}
	filter.OrderDir = "asc"
	return s.list(ctx, tenantID, filter)
}

// GetRefundsByStudentID lists every refund of a student
func (s *RefundService) GetRefundsByStudentID(ctx context.Context, tenantID, studentID uuid.UUID, page, pageSize int) (*shared.Paginated[RefundResponse], error) {
	return s.list(ctx, tenantID, finance.RefundFilter{Filter: pageFilter(page, pageSize), StudentID: &studentID})
}

// GetRefundsByInvoiceID lists every refund against an invoice
func (s *RefundService) GetRefundsByInvoiceID(ctx context.Context, tenantID, invoiceID uuid.UUID, page, pageSize int) (*shared.Paginated[RefundResponse], error) {
	return s.list(ctx, tenantID, finance.RefundFilter{Filter: pageFilter(page, pageSize), InvoiceID: &invoiceID})
}

// ListRefunds lists refunds matching an arbitrary filter
func (s *RefundService) ListRefunds(ctx context.Context, tenantID uuid.UUID, filter RefundListFilter) (*shared.Paginated[RefundResponse], error) {
	domainFilter := finance.RefundFilter{
		Filter:    pageFilter(filter.Page, filter.PageSize),
		StudentID: filter.StudentID,
		InvoiceID: filter.InvoiceID,
		PaymentID: filter.PaymentID,
		FromDate:  filter.FromDate,
		ToDate:    endOfDay(filter.ToDate),
	}
	if filter.Status != "" {
		status := finance.RefundStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainErrorf(shared.ErrInvalidInput.Code, "Invalid refund status %s", filter.Status)
		}
		domainFilter.Status = &status
	}
	return s.list(ctx, tenantID, domainFilter)
}

func (s *RefundService) list(ctx context.Context, tenantID uuid.UUID, filter finance.RefundFilter) (*shared.Paginated[RefundResponse], error) {
	refunds, err := s.refundRepo.FindAll(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	total, err := s.refundRepo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count refunds: %w", err)
	}
	page := shared.NewPaginated(ToRefundResponses(refunds), total, filter.Page, filter.Limit())
	return &page, nil
}

// GetRefundStatistics summarises refunds created within [from, to].
// Either bound may be nil; to is inclusive of the whole day.
func (s *RefundService) GetRefundStatistics(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) (*RefundStatisticsResponse, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "Date range end is before its start")
	}
	rows, err := s.refundRepo.SummarizeByStatus(ctx, tenantID, from, endOfDay(to))
	if err != nil {
		return nil, fmt.Errorf("failed to summarise refunds: %w", err)
	}
	resp := ToRefundStatisticsResponse(finance.NewRefundStatistics(from, to, rows))
	return &resp, nil
}

func (s *RefundService) fail(ctx context.Context, span trace.Span, tenantID uuid.UUID, op string, err error) error {
	telemetry.RecordError(span, err)
	s.opts.metrics.RecordLedgerRejection(ctx, tenantID, "refund_"+op, shared.ErrorCode(err))
	if shared.ErrorCode(err) == "" {
		s.opts.logger.Error("Refund operation failed",
			zap.String("operation", op),
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	}
	return err
}

// endOfDay turns a date-only upper bound into an inclusive one
func endOfDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return t
	}
	end := t.Add(24*time.Hour - time.Nanosecond)
	return &end
}
