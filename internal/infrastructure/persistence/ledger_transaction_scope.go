package persistence

import (
	"context"
	"database/sql"

	appfinance "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"gorm.io/gorm"
)

// GormLedgerTransactionScope implements TransactionScope using GORM transactions.
// Every Execute runs at READ COMMITTED; consistency comes from the row locks
// taken by the FindByIDForUpdate methods.
type GormLedgerTransactionScope struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewGormLedgerTransactionScope creates a new GormLedgerTransactionScope.
func NewGormLedgerTransactionScope(db *gorm.DB) *GormLedgerTransactionScope {
	return &GormLedgerTransactionScope{
		db:   db,
		opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

// WithTxOptions overrides the transaction options. sqlite only accepts the
// default isolation level, so tests pass nil.
func (s *GormLedgerTransactionScope) WithTxOptions(opts *sql.TxOptions) *GormLedgerTransactionScope {
	return &GormLedgerTransactionScope{db: s.db, opts: opts}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormLedgerTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	txFn := func(tx *gorm.DB) error {
		return fn(&gormLedgerRepositories{tx: tx})
	}
	if s.opts == nil {
		return s.db.WithContext(ctx).Transaction(txFn)
	}
	return s.db.WithContext(ctx).Transaction(txFn, s.opts)
}

// gormLedgerRepositories provides the ledger repositories bound to one transaction.
type gormLedgerRepositories struct {
	tx *gorm.DB
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormLedgerRepositories) InvoiceRepo() finance.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// PaymentRepo returns the payment repository scoped to the current transaction.
func (r *gormLedgerRepositories) PaymentRepo() finance.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// RefundRepo returns the refund repository scoped to the current transaction.
func (r *gormLedgerRepositories) RefundRepo() finance.RefundRepository {
	return NewGormRefundRepository(r.tx)
}

// Ensure GormLedgerTransactionScope implements TransactionScope
var _ appfinance.TransactionScope = (*GormLedgerTransactionScope)(nil)

// Ensure gormLedgerRepositories implements TransactionalRepositories
var _ appfinance.TransactionalRepositories = (*gormLedgerRepositories)(nil)
