// Package testutil provides shared helpers for engine tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/storage"
)

// SetupTestStore creates an in-memory store with cleanup registered.
func SetupTestStore(t *testing.T) *storage.MemoryStorage {
	t.Helper()

	store := storage.NewMemoryStorage()
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedTransaction stores a completed transaction with sane defaults,
// failing the test on error.
func SeedTransaction(t *testing.T, store *storage.MemoryStorage, txn model.Transaction) model.Transaction {
	t.Helper()

	if txn.Status == "" {
		txn.Status = model.StatusCompleted
	}
	if txn.Category == "" {
		txn.Category = model.CategoryOther
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	txn.UpdatedAt = txn.CreatedAt

	if err := store.SaveTransaction(context.Background(), &txn); err != nil {
		t.Fatalf("failed to seed transaction %s: %v", txn.ID, err)
	}
	return txn
}

// Date builds a UTC midnight timestamp for test fixtures.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
