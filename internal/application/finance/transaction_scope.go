package finance

import (
	"context"

	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
)

// TransactionScope runs ledger mutations atomically.
// When fn returns an error every write made through repos is rolled back;
// otherwise all of them are committed together.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the ledger repositories bound to one transaction.
//
// Locking order for multi-record mutations is Refund, then Payment, then Invoice.
// Every service acquires FindByIDForUpdate locks in that order so two
// settlements can never deadlock on each other.
type TransactionalRepositories interface {
	InvoiceRepo() finance.InvoiceRepository
	PaymentRepo() finance.PaymentRepository
	RefundRepo() finance.RefundRepository
}
