package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
)

// TransactionUpdate is the partial-field payload accepted by BulkUpdate.
// Nil fields are left untouched; the updatable surface is deliberately
// restricted to category, tags, notes, and the budget-exclusion flag.
type TransactionUpdate struct {
	Category          *model.Category
	Tags              *[]string
	Notes             *string
	ExcludeFromBudget *bool
}

// BulkUpdate applies the partial update to every listed transaction and
// returns the updated records. An unknown id fails the whole call before
// any write happens.
func (e *Engine) BulkUpdate(ctx context.Context, householdID string, ids []string, update TransactionUpdate) ([]model.Transaction, error) {
	if householdID == "" {
		return nil, fmt.Errorf("%w: household id is required", common.ErrInvalidInput)
	}
	if update.Category != nil && !update.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", common.ErrInvalidInput, *update.Category)
	}

	transactions := make([]*model.Transaction, 0, len(ids))
	for _, id := range ids {
		txn, err := e.storage.GetTransaction(ctx, householdID, id)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}

	now := time.Now().UTC()
	updated := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if update.Category != nil {
			txn.Category = *update.Category
		}
		if update.Tags != nil {
			txn.Tags = append([]string(nil), (*update.Tags)...)
		}
		if update.Notes != nil {
			txn.Notes = *update.Notes
		}
		if update.ExcludeFromBudget != nil {
			txn.ExcludeFromBudget = *update.ExcludeFromBudget
		}
		txn.UpdatedAt = now

		if err := e.storage.SaveTransaction(ctx, txn); err != nil {
			return nil, fmt.Errorf("failed to persist transaction %s: %w", txn.ID, err)
		}
		e.classifier.InvalidateMerchant(householdID, txn.MerchantName)
		updated = append(updated, *txn)
	}

	return updated, nil
}
