// Package testutil provides in-memory doubles for the billing ledger.
package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	appfinance "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// Entity names accepted by FailNextWrite
const (
	EntityInvoice = "invoice"
	EntityPayment = "payment"
	EntityRefund  = "refund"
)

// ErrInjected is the default error returned by FailNextWrite
var ErrInjected = errors.New("injected write failure")

// LedgerStore is an in-memory ledger that implements the three repositories
// and a TransactionScope. Transactions are fully serialised, which stands in
// for row locks, and a failed transaction restores the snapshot taken when
// it began. The store enforces the same uniqueness rules as the database:
// one active refund per payment and one applied payment per gateway reference.
type LedgerStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	invoices map[uuid.UUID]finance.Invoice
	payments map[uuid.UUID]finance.Payment
	refunds  map[uuid.UUID]finance.Refund

	failures map[string]error
	commits  int
}

// NewLedgerStore creates an empty store
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		invoices: make(map[uuid.UUID]finance.Invoice),
		payments: make(map[uuid.UUID]finance.Payment),
		refunds:  make(map[uuid.UUID]finance.Refund),
		failures: make(map[string]error),
	}
}

// InvoiceRepo returns the invoice repository
func (s *LedgerStore) InvoiceRepo() finance.InvoiceRepository { return &invoiceStore{s: s} }

// PaymentRepo returns the payment repository
func (s *LedgerStore) PaymentRepo() finance.PaymentRepository { return &paymentStore{s: s} }

// RefundRepo returns the refund repository
func (s *LedgerStore) RefundRepo() finance.RefundRepository { return &refundStore{s: s} }

// Execute runs fn as one transaction
func (s *LedgerStore) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	invoices, payments, refunds := cloneMap(s.invoices), cloneMap(s.payments), cloneMap(s.refunds)
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.invoices, s.payments, s.refunds = invoices, payments, refunds
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// FailNextWrite makes the next Save (or Delete) of entity fail with err.
// A nil err uses ErrInjected.
func (s *LedgerStore) FailNextWrite(entity string, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[entity] = err
}

// Commits returns how many transactions committed
func (s *LedgerStore) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// SeedInvoice stores an invoice outside any transaction
func (s *LedgerStore) SeedInvoice(inv *finance.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = detach(*inv)
}

// SeedPayment stores a payment outside any transaction
func (s *LedgerStore) SeedPayment(p *finance.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = detach(*p)
}

// Invoice returns the stored state of an invoice, or nil
func (s *LedgerStore) Invoice(id uuid.UUID) *finance.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.invoices, id)
}

// Payment returns the stored state of a payment, or nil
func (s *LedgerStore) Payment(id uuid.UUID) *finance.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.payments, id)
}

// Refund returns the stored state of a refund, or nil
func (s *LedgerStore) Refund(id uuid.UUID) *finance.Refund {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.refunds, id)
}

// Refunds returns every stored refund
func (s *LedgerStore) Refunds() []finance.Refund {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Values(s.refunds)
}

// PaymentsForInvoice returns every stored payment of an invoice
func (s *LedgerStore) PaymentsForInvoice(invoiceID uuid.UUID) []finance.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Filter(lo.Values(s.payments), func(p finance.Payment, _ int) bool {
		return p.InvoiceID == invoiceID
	})
}

// takeFailure must be called with mu held
func (s *LedgerStore) takeFailure(entity string) error {
	err, ok := s.failures[entity]
	if !ok {
		return nil
	}
	delete(s.failures, entity)
	return err
}

type invoiceStore struct{ s *LedgerStore }

func (r *invoiceStore) FindByID(_ context.Context, tenantID, id uuid.UUID) (*finance.Invoice, error) {
	inv := r.find(tenantID, id)
	if inv == nil || inv.IsDeleted() {
		return nil, nil
	}
	return inv, nil
}

func (r *invoiceStore) FindByIDIncludingDeleted(_ context.Context, tenantID, id uuid.UUID) (*finance.Invoice, error) {
	return r.find(tenantID, id), nil
}

func (r *invoiceStore) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Invoice, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *invoiceStore) FindByIDForUpdateIncludingDeleted(ctx context.Context, tenantID, id uuid.UUID) (*finance.Invoice, error) {
	return r.FindByIDIncludingDeleted(ctx, tenantID, id)
}

func (r *invoiceStore) find(tenantID, id uuid.UUID) *finance.Invoice {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv := lookup(r.s.invoices, id)
	if inv == nil || inv.TenantID != tenantID {
		return nil
	}
	return inv
}

func (r *invoiceStore) FindByInvoiceNumber(_ context.Context, tenantID uuid.UUID, number string) (*finance.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	inv, ok := lo.Find(lo.Values(r.s.invoices), func(inv finance.Invoice) bool {
		return inv.TenantID == tenantID && inv.InvoiceNumber == number
	})
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (r *invoiceStore) matching(tenantID uuid.UUID, filter finance.InvoiceFilter) []finance.Invoice {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.Filter(lo.Values(r.s.invoices), func(inv finance.Invoice, _ int) bool {
		switch {
		case inv.TenantID != tenantID:
			return false
		case inv.IsDeleted() && !filter.IncludeDeleted:
			return false
		case filter.StudentID != nil && inv.StudentID != *filter.StudentID:
			return false
		case filter.AcademicYearID != nil && inv.AcademicYearID != *filter.AcademicYearID:
			return false
		case filter.Status != nil && inv.Status != *filter.Status:
			return false
		case filter.DueBefore != nil && !inv.DueDate.Before(*filter.DueBefore):
			return false
		}
		return true
	})
}

func (r *invoiceStore) FindAll(_ context.Context, tenantID uuid.UUID, filter finance.InvoiceFilter) ([]finance.Invoice, error) {
	items := r.matching(tenantID, filter)
	sortByCreated(items, filter.OrderDir, func(inv finance.Invoice) time.Time { return inv.CreatedAt })
	return page(items, filter.Filter), nil
}

func (r *invoiceStore) Count(_ context.Context, tenantID uuid.UUID, filter finance.InvoiceFilter) (int64, error) {
	return int64(len(r.matching(tenantID, filter))), nil
}

func (r *invoiceStore) FindPastDue(_ context.Context, asOf time.Time, limit int) ([]finance.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := lo.Filter(lo.Values(r.s.invoices), func(inv finance.Invoice, _ int) bool {
		return !inv.IsDeleted() && inv.Status == finance.InvoiceStatusPending && inv.DueDate.Before(asOf)
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].DueDate.Before(items[j].DueDate) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *invoiceStore) Save(_ context.Context, inv *finance.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(EntityInvoice); err != nil {
		return err
	}
	for id, other := range r.s.invoices {
		if id != inv.ID && other.TenantID == inv.TenantID && other.InvoiceNumber == inv.InvoiceNumber {
			return shared.ErrAlreadyExists.WithDetail("invoice_number", inv.InvoiceNumber)
		}
	}
	r.s.invoices[inv.ID] = detach(*inv)
	return nil
}

type paymentStore struct{ s *LedgerStore }

func (r *paymentStore) FindByID(_ context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p := lookup(r.s.payments, id)
	if p == nil || p.TenantID != tenantID {
		return nil, nil
	}
	return p, nil
}

func (r *paymentStore) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *paymentStore) FindByExternalRef(_ context.Context, tenantID uuid.UUID, method finance.PaymentMethod, ref string) (*finance.Payment, error) {
	if ref == "" {
		return nil, nil
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := lo.Find(lo.Values(r.s.payments), func(p finance.Payment) bool {
		return isApplied(p) && p.TenantID == tenantID && p.Method == method && p.ExternalRef == ref
	})
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *paymentStore) FindByInvoice(_ context.Context, tenantID, invoiceID uuid.UUID) ([]finance.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	items := lo.Filter(lo.Values(r.s.payments), func(p finance.Payment, _ int) bool {
		return p.TenantID == tenantID && p.InvoiceID == invoiceID
	})
	sortByCreated(items, "asc", func(p finance.Payment) time.Time { return p.CreatedAt })
	return items, nil
}

func (r *paymentStore) Save(_ context.Context, p *finance.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(EntityPayment); err != nil {
		return err
	}
	if isApplied(*p) && p.ExternalRef != "" {
		for id, other := range r.s.payments {
			if id != p.ID && isApplied(other) && other.TenantID == p.TenantID &&
				other.Method == p.Method && other.ExternalRef == p.ExternalRef {
				return shared.ErrAlreadyExists.WithDetail("external_ref", p.ExternalRef)
			}
		}
	}
	r.s.payments[p.ID] = detach(*p)
	return nil
}

func isApplied(p finance.Payment) bool {
	return p.Status == finance.PaymentStatusCompleted || p.Status == finance.PaymentStatusRefunded
}

type refundStore struct{ s *LedgerStore }

func (r *refundStore) FindByID(_ context.Context, tenantID, id uuid.UUID) (*finance.Refund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	refund := lookup(r.s.refunds, id)
	if refund == nil || refund.TenantID != tenantID {
		return nil, nil
	}
	return refund, nil
}

func (r *refundStore) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Refund, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *refundStore) FindActiveByPayment(_ context.Context, tenantID, paymentID uuid.UUID) (*finance.Refund, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	refund, ok := lo.Find(lo.Values(r.s.refunds), func(refund finance.Refund) bool {
		return refund.TenantID == tenantID && refund.PaymentID == paymentID && refund.Status.IsActive()
	})
	if !ok {
		return nil, nil
	}
	return &refund, nil
}

func (r *refundStore) matching(tenantID uuid.UUID, filter finance.RefundFilter) []finance.Refund {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.Filter(lo.Values(r.s.refunds), func(refund finance.Refund, _ int) bool {
		switch {
		case refund.TenantID != tenantID:
			return false
		case filter.Status != nil && refund.Status != *filter.Status:
			return false
		case filter.StudentID != nil && refund.StudentID != *filter.StudentID:
			return false
		case filter.InvoiceID != nil && refund.InvoiceID != *filter.InvoiceID:
			return false
		case filter.PaymentID != nil && refund.PaymentID != *filter.PaymentID:
			return false
		}
		return inRange(refund.CreatedAt, filter.FromDate, filter.ToDate)
	})
}

func (r *refundStore) FindAll(_ context.Context, tenantID uuid.UUID, filter finance.RefundFilter) ([]finance.Refund, error) {
	items := r.matching(tenantID, filter)
	sortByCreated(items, filter.OrderDir, func(refund finance.Refund) time.Time { return refund.CreatedAt })
	return page(items, filter.Filter), nil
}

func (r *refundStore) Count(_ context.Context, tenantID uuid.UUID, filter finance.RefundFilter) (int64, error) {
	return int64(len(r.matching(tenantID, filter))), nil
}

func (r *refundStore) SummarizeByStatus(_ context.Context, tenantID uuid.UUID, from, to *time.Time) ([]finance.RefundStatusSummary, error) {
	items := r.matching(tenantID, finance.RefundFilter{FromDate: from, ToDate: to})
	groups := lo.GroupBy(items, func(refund finance.Refund) finance.RefundStatus { return refund.Status })

	rows := make([]finance.RefundStatusSummary, 0, len(groups))
	for status, group := range groups {
		row := finance.RefundStatusSummary{Status: status, Count: int64(len(group))}
		for _, refund := range group {
			row.Amount = row.Amount.Add(refund.Amount)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Status < rows[j].Status })
	return rows, nil
}

func (r *refundStore) Save(_ context.Context, refund *finance.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(EntityRefund); err != nil {
		return err
	}
	if refund.Status.IsActive() {
		for id, other := range r.s.refunds {
			if id != refund.ID && other.PaymentID == refund.PaymentID && other.Status.IsActive() {
				existing := other
				return finance.NewDuplicateRefundRequestError(refund.PaymentID, &existing)
			}
		}
	}
	r.s.refunds[refund.ID] = detach(*refund)
	return nil
}

func (r *refundStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(EntityRefund); err != nil {
		return err
	}
	if refund, ok := r.s.refunds[id]; ok && refund.TenantID == tenantID {
		delete(r.s.refunds, id)
	}
	return nil
}

type eventCarrier interface {
	ClearDomainEvents()
}

// detach drops pending events so stored rows never share them with callers
func detach[T any](v T) T {
	if c, ok := any(&v).(eventCarrier); ok {
		c.ClearDomainEvents()
	}
	return v
}

func lookup[T any](m map[uuid.UUID]T, id uuid.UUID) *T {
	v, ok := m[id]
	if !ok {
		return nil
	}
	v = detach(v)
	return &v
}

func cloneMap[T any](m map[uuid.UUID]T) map[uuid.UUID]T {
	out := make(map[uuid.UUID]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortByCreated[T any](items []T, dir string, createdAt func(T) time.Time) {
	asc := strings.EqualFold(dir, "asc")
	sort.SliceStable(items, func(i, j int) bool {
		if asc {
			return createdAt(items[i]).Before(createdAt(items[j]))
		}
		return createdAt(items[i]).After(createdAt(items[j]))
	})
}

func page[T any](items []T, f shared.Filter) []T {
	return lo.Subset(items, f.Offset(), uint(f.Limit()))
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

var (
	_ appfinance.TransactionScope          = (*LedgerStore)(nil)
	_ appfinance.TransactionalRepositories = (*LedgerStore)(nil)
	_ finance.InvoiceRepository            = (*invoiceStore)(nil)
	_ finance.PaymentRepository            = (*paymentStore)(nil)
	_ finance.RefundRepository             = (*refundStore)(nil)
)
