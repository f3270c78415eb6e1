package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
)

// TransactionScope provides transactional access to the ledger repositories.
// Every mutation of documents, payments, allocations and returns runs inside
// one Execute call and is committed or rolled back as a unit.
type TransactionScope interface {
	// Execute runs fn within a database transaction. If fn returns an error
	// the transaction is rolled back, otherwise it is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within
// a transaction. All repositories returned share the same transaction.
//
// Lock order: when a unit of work touches both a payment and a document it
// locks the payment first, then the document.
type TransactionalRepositories interface {
	Documents() ledger.DocumentRepository
	Payments() ledger.PaymentRepository
	Allocations() ledger.AllocationRepository
	Returns() ledger.ReturnRepository
	// Numbers issues document numbers inside the same transaction so an
	// aborted creation does not consume a number
	Numbers() ledger.DocumentNumberGenerator
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	documents   ledger.DocumentRepository
	payments    ledger.PaymentRepository
	allocations ledger.AllocationRepository
	returns     ledger.ReturnRepository
	numbers     ledger.DocumentNumberGenerator
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	documents ledger.DocumentRepository,
	payments ledger.PaymentRepository,
	allocations ledger.AllocationRepository,
	returns ledger.ReturnRepository,
	numbers ledger.DocumentNumberGenerator,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		documents:   documents,
		payments:    payments,
		allocations: allocations,
		returns:     returns,
		numbers:     numbers,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Documents() ledger.DocumentRepository     { return s.documents }
func (s *NoOpTransactionScope) Payments() ledger.PaymentRepository       { return s.payments }
func (s *NoOpTransactionScope) Allocations() ledger.AllocationRepository { return s.allocations }
func (s *NoOpTransactionScope) Returns() ledger.ReturnRepository         { return s.returns }
func (s *NoOpTransactionScope) Numbers() ledger.DocumentNumberGenerator  { return s.numbers }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
