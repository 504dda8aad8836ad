// Package service defines the contracts between the engine and its
// collaborators.
package service

import (
	"context"

	"github.com/hearthledger/hearthledger/internal/model"
)

// Storage is the persistence collaborator. Every entity is addressed by its
// identifier and scoped by household id. Save has put semantics: it inserts
// or fully replaces the record with the given id.
//
// ListTransactions returns a household's transactions ordered by date
// descending, with ties broken by insertion order. Both implementations
// honor that ordering so read paths never re-sort.
type Storage interface {
	// Transaction operations.
	SaveTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, householdID, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, householdID string) ([]model.Transaction, error)

	// Rule operations.
	SaveRule(ctx context.Context, rule *model.TransactionRule) error
	GetRule(ctx context.Context, householdID, id string) (*model.TransactionRule, error)
	ListRules(ctx context.Context, householdID string) ([]model.TransactionRule, error)
	DeleteRule(ctx context.Context, householdID, id string) error

	// Transfer pair operations.
	SaveTransferPair(ctx context.Context, pair *model.TransferPair) error
	GetTransferPair(ctx context.Context, householdID, id string) (*model.TransferPair, error)
	ListTransferPairs(ctx context.Context, householdID string) ([]model.TransferPair, error)

	// Import job operations.
	SaveImport(ctx context.Context, job *model.TransactionImport) error
	GetImport(ctx context.Context, householdID, id string) (*model.TransactionImport, error)

	Close() error
}
