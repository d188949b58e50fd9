package finance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InvoiceService exposes invoice reads and the invoice-only lifecycle
// operations. Money never moves through this service.
type InvoiceService struct {
	invoiceRepo finance.InvoiceRepository
	txScope     TransactionScope
	opts        serviceOptions
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	invoiceRepo finance.InvoiceRepository,
	txScope TransactionScope,
	opts ...Option,
) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		txScope:     txScope,
		opts:        applyOptions(opts),
	}
}

// CreateInvoice issues an invoice for an externally computed fee total
func (s *InvoiceService) CreateInvoice(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()

	number := req.InvoiceNumber
	if number == "" {
		number = finance.GenerateInvoiceNumber(s.opts.now())
	}

	inv, err := finance.NewInvoice(tenantID, number, req.StudentID, req.FeeStructureID, req.AcademicYearID,
		req.Subtotal, req.Discount, req.DueDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.Remark != "" {
		inv.SetRemark(req.Remark)
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.InvoiceRepo().FindByInvoiceNumber(ctx, tenantID, number)
		if err != nil {
			return fmt.Errorf("failed to check invoice number: %w", err)
		}
		if existing != nil {
			return shared.NewDomainErrorf(shared.ErrAlreadyExists.Code, "Invoice number %s already exists", number)
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.opts.publishEvents(ctx, inv)
	s.opts.logger.Info("Invoice created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total_amount", inv.TotalAmount.String()),
	)

	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// GetInvoiceByID returns a live invoice. Soft-deleted invoices are reported
// as not found unless includeDeleted is set.
func (s *InvoiceService) GetInvoiceByID(ctx context.Context, tenantID, id uuid.UUID, includeDeleted bool) (*InvoiceResponse, error) {
	var (
		inv *finance.Invoice
		err error
	)
	if includeDeleted {
		inv, err = s.invoiceRepo.FindByIDIncludingDeleted(ctx, tenantID, id)
	} else {
		inv, err = s.invoiceRepo.FindByID(ctx, tenantID, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if inv == nil {
		return nil, finance.NewInvoiceNotFoundError(id)
	}
	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// ListInvoices lists invoices matching the filter
func (s *InvoiceService) ListInvoices(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) (*shared.Paginated[InvoiceResponse], error) {
	domainFilter := finance.InvoiceFilter{
		Filter:         pageFilter(filter.Page, filter.PageSize),
		StudentID:      filter.StudentID,
		AcademicYearID: filter.AcademicYearID,
		IncludeDeleted: filter.IncludeDeleted,
	}
	if filter.Status != "" {
		status := finance.InvoiceStatus(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainErrorf(shared.ErrInvalidInput.Code, "Invalid invoice status %s", filter.Status)
		}
		domainFilter.Status = &status
	}

	invoices, err := s.invoiceRepo.FindAll(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	total, err := s.invoiceRepo.Count(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	page := shared.NewPaginated(ToInvoiceResponses(invoices), total, domainFilter.Page, domainFilter.Limit())
	return &page, nil
}

// CancelInvoice cancels an invoice that has not received money
func (s *InvoiceService) CancelInvoice(ctx context.Context, tenantID, id, actorID uuid.UUID, reason string) (*InvoiceResponse, error) {
	return s.mutate(ctx, "cancel", tenantID, id, false, func(inv *finance.Invoice) error {
		return inv.Cancel(actorID, reason)
	})
}

// DeleteInvoice soft-deletes an invoice
func (s *InvoiceService) DeleteInvoice(ctx context.Context, tenantID, id, actorID uuid.UUID) error {
	_, err := s.mutate(ctx, "delete", tenantID, id, false, func(inv *finance.Invoice) error {
		return inv.SoftDelete(actorID)
	})
	return err
}

// RestoreInvoice clears the soft-delete timestamp of an invoice
func (s *InvoiceService) RestoreInvoice(ctx context.Context, tenantID, id, actorID uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, "restore", tenantID, id, true, func(inv *finance.Invoice) error {
		return inv.Restore(actorID)
	})
}

// ApproveDiscount approves the pending discount of an invoice
func (s *InvoiceService) ApproveDiscount(ctx context.Context, tenantID, id, reviewerID uuid.UUID) (*InvoiceResponse, error) {
	return s.mutate(ctx, "approve_discount", tenantID, id, false, func(inv *finance.Invoice) error {
		return inv.ApproveDiscount(reviewerID)
	})
}

// RejectDiscount rejects the pending discount of an invoice
func (s *InvoiceService) RejectDiscount(ctx context.Context, tenantID, id, reviewerID uuid.UUID, reason string) (*InvoiceResponse, error) {
	return s.mutate(ctx, "reject_discount", tenantID, id, false, func(inv *finance.Invoice) error {
		return inv.RejectDiscount(reviewerID, reason)
	})
}

func (s *InvoiceService) mutate(
	ctx context.Context,
	op string,
	tenantID, id uuid.UUID,
	includeDeleted bool,
	apply func(inv *finance.Invoice) error,
) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", op)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id.String())

	var inv *finance.Invoice
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		if includeDeleted {
			inv, err = repos.InvoiceRepo().FindByIDForUpdateIncludingDeleted(ctx, tenantID, id)
		} else {
			inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, tenantID, id)
		}
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if inv == nil {
			return finance.NewInvoiceNotFoundError(id)
		}
		if err := apply(inv); err != nil {
			return err
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.opts.metrics.RecordLedgerRejection(ctx, tenantID, "invoice_"+op, shared.ErrorCode(err))
		return nil, err
	}

	s.opts.publishEvents(ctx, inv)

	resp := ToInvoiceResponse(inv)
	return &resp, nil
}

// RefreshOverdueStatuses flips unpaid invoices whose due date passed to
// OVERDUE, across all tenants, in batches of batchSize. Returns how many
// invoices changed.
func (s *InvoiceService) RefreshOverdueStatuses(ctx context.Context, batchSize int) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "refresh_overdue")
	defer span.End()

	now := s.opts.now()
	candidates, err := s.invoiceRepo.FindPastDue(ctx, now, batchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to find past-due invoices: %w", err)
	}

	changed := 0
	for i := range candidates {
		candidate := candidates[i]
		var inv *finance.Invoice
		err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, candidate.TenantID, candidate.ID)
			if err != nil || inv == nil {
				return err
			}
			if !inv.RefreshStatus(now) {
				inv = nil
				return nil
			}
			return repos.InvoiceRepo().Save(ctx, inv)
		})
		if err != nil {
			s.opts.logger.Warn("Failed to refresh invoice status",
				zap.String("invoice_id", candidate.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if inv != nil {
			changed++
			s.opts.publishEvents(ctx, inv)
		}
	}

	telemetry.SetAttributes(span, "invoices_refreshed", changed)
	s.opts.metrics.RecordOverdueRefresh(ctx, changed)
	return changed, nil
}

// OverdueSweeper periodically runs RefreshOverdueStatuses
type OverdueSweeper struct {
	service   *InvoiceService
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewOverdueSweeper creates a sweeper; call Start to run it
func NewOverdueSweeper(service *InvoiceService, interval time.Duration, batchSize int, logger *zap.Logger) *OverdueSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverdueSweeper{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until Stop or ctx cancellation.
// Calls after the first, or after Stop, do nothing.
func (w *OverdueSweeper) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true

	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

// Stop stops the loop and waits for the current sweep to finish. It is safe
// to call more than once, and before Start.
func (w *OverdueSweeper) Stop() {
	w.mu.Lock()
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.stopCh) })
	if started {
		<-w.doneCh
	}
}

func (w *OverdueSweeper) sweep(ctx context.Context) {
	changed, err := w.service.RefreshOverdueStatuses(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Overdue sweep failed", zap.Error(err))
		return
	}
	if changed > 0 {
		w.logger.Info("Overdue sweep updated invoices", zap.Int("count", changed))
	}
}

func pageFilter(page, pageSize int) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = pageSize
	}
	return f
}
