package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
)

const transactionColumns = `id, household_id, account_id, date, amount, description,
	merchant_name, category, subcategory, tags, is_transfer, transfer_account_id,
	transfer_transaction_id, exclude_from_budget, notes, status, created_at, updated_at`

// SaveTransaction inserts or replaces a transaction. The upsert keeps the
// original rowid so insertion order survives updates; ListTransactions
// relies on it for stable date ties.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(txn.ID, "transaction id"); err != nil {
		return err
	}
	if err := validateID(txn.HouseholdID, "household id"); err != nil {
		return err
	}

	tags, err := json.Marshal(txn.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transactions (
			id, household_id, account_id, date, amount, description,
			merchant_name, category, subcategory, tags, is_transfer,
			transfer_account_id, transfer_transaction_id, exclude_from_budget,
			notes, status, hash, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			date = excluded.date,
			amount = excluded.amount,
			description = excluded.description,
			merchant_name = excluded.merchant_name,
			category = excluded.category,
			subcategory = excluded.subcategory,
			tags = excluded.tags,
			is_transfer = excluded.is_transfer,
			transfer_account_id = excluded.transfer_account_id,
			transfer_transaction_id = excluded.transfer_transaction_id,
			exclude_from_budget = excluded.exclude_from_budget,
			notes = excluded.notes,
			status = excluded.status,
			hash = excluded.hash,
			updated_at = excluded.updated_at`,
		txn.ID, txn.HouseholdID, txn.AccountID, txn.Date, txn.Amount,
		txn.Description, txn.MerchantName, string(txn.Category), txn.Subcategory,
		string(tags), txn.IsTransfer, txn.TransferAccountID,
		txn.TransferTransactionID, txn.ExcludeFromBudget, txn.Notes,
		string(txn.Status), txn.Hash(), txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	return nil
}

// GetTransaction returns one transaction scoped by household.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, householdID, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "transaction id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE household_id = ? AND id = ?`,
		householdID, id)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns the household's transactions ordered by date
// descending with insertion-order ties.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, householdID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(householdID, "household id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE household_id = ? ORDER BY date DESC, rowid ASC`,
		householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var merchant, subcategory, tags, transferAccount, transferTxn, notes sql.NullString
	var category, status string

	err := row.Scan(&txn.ID, &txn.HouseholdID, &txn.AccountID, &txn.Date,
		&txn.Amount, &txn.Description, &merchant, &category, &subcategory,
		&tags, &txn.IsTransfer, &transferAccount, &transferTxn,
		&txn.ExcludeFromBudget, &notes, &status, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	txn.MerchantName = merchant.String
	txn.Subcategory = subcategory.String
	txn.TransferAccountID = transferAccount.String
	txn.TransferTransactionID = transferTxn.String
	txn.Notes = notes.String
	txn.Category = model.Category(category)
	txn.Status = model.TransactionStatus(status)

	if tags.Valid && tags.String != "" && tags.String != "null" {
		if err := json.Unmarshal([]byte(tags.String), &txn.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}

	return &txn, nil
}
