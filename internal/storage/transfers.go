package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
)

// SaveTransferPair inserts or replaces a transfer pair.
func (s *SQLiteStorage) SaveTransferPair(ctx context.Context, pair *model.TransferPair) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(pair.ID, "transfer pair id"); err != nil {
		return err
	}
	if err := validateID(pair.HouseholdID, "household id"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_pairs (
			id, household_id, source_transaction_id, target_transaction_id,
			amount, confidence, confirmed, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_transaction_id = excluded.source_transaction_id,
			target_transaction_id = excluded.target_transaction_id,
			amount = excluded.amount,
			confidence = excluded.confidence,
			confirmed = excluded.confirmed`,
		pair.ID, pair.HouseholdID, pair.SourceTransactionID,
		pair.TargetTransactionID, pair.Amount, pair.Confidence, pair.Confirmed,
		pair.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transfer pair: %w", err)
	}

	return nil
}

// GetTransferPair returns one pair scoped by household.
func (s *SQLiteStorage) GetTransferPair(ctx context.Context, householdID, id string) (*model.TransferPair, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "transfer pair id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, household_id, source_transaction_id, target_transaction_id,
		       amount, confidence, confirmed, created_at
		FROM transfer_pairs WHERE household_id = ? AND id = ?`,
		householdID, id)

	pair, err := scanTransferPair(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transfer pair %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer pair: %w", err)
	}
	return pair, nil
}

// ListTransferPairs returns every pair for the household.
func (s *SQLiteStorage) ListTransferPairs(ctx context.Context, householdID string) ([]model.TransferPair, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(householdID, "household id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, household_id, source_transaction_id, target_transaction_id,
		       amount, confidence, confirmed, created_at
		FROM transfer_pairs WHERE household_id = ? ORDER BY id ASC`,
		householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfer pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs []model.TransferPair
	for rows.Next() {
		pair, err := scanTransferPair(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer pair: %w", err)
		}
		pairs = append(pairs, *pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfer pairs: %w", err)
	}

	return pairs, nil
}

func scanTransferPair(row rowScanner) (*model.TransferPair, error) {
	var pair model.TransferPair

	err := row.Scan(&pair.ID, &pair.HouseholdID, &pair.SourceTransactionID,
		&pair.TargetTransactionID, &pair.Amount, &pair.Confidence,
		&pair.Confirmed, &pair.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &pair, nil
}
