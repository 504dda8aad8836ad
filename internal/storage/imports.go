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

// SaveImport inserts or replaces an import job record.
func (s *SQLiteStorage) SaveImport(ctx context.Context, job *model.TransactionImport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(job.ID, "import id"); err != nil {
		return err
	}
	if err := validateID(job.HouseholdID, "household id"); err != nil {
		return err
	}

	fieldMapping, err := json.Marshal(job.FieldMapping)
	if err != nil {
		return fmt.Errorf("failed to encode field mapping: %w", err)
	}
	rowErrors, err := json.Marshal(job.RowErrors)
	if err != nil {
		return fmt.Errorf("failed to encode row errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transaction_imports (
			id, household_id, filename, format, status, failure_reason,
			field_mapping, row_errors, total_rows, imported_count,
			duplicate_count, error_count, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			failure_reason = excluded.failure_reason,
			field_mapping = excluded.field_mapping,
			row_errors = excluded.row_errors,
			total_rows = excluded.total_rows,
			imported_count = excluded.imported_count,
			duplicate_count = excluded.duplicate_count,
			error_count = excluded.error_count,
			completed_at = excluded.completed_at`,
		job.ID, job.HouseholdID, job.Filename, string(job.Format),
		string(job.Status), job.FailureReason, string(fieldMapping),
		string(rowErrors), job.TotalRows, job.ImportedCount,
		job.DuplicateCount, job.ErrorCount, job.CreatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save import: %w", err)
	}

	return nil
}

// GetImport returns one import job scoped by household.
func (s *SQLiteStorage) GetImport(ctx context.Context, householdID, id string) (*model.TransactionImport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "import id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, household_id, filename, format, status, failure_reason,
		       field_mapping, row_errors, total_rows, imported_count,
		       duplicate_count, error_count, created_at, completed_at
		FROM transaction_imports WHERE household_id = ? AND id = ?`,
		householdID, id)

	var job model.TransactionImport
	var failureReason, fieldMapping, rowErrors sql.NullString
	var format, status string
	var completedAt sql.NullTime

	err := row.Scan(&job.ID, &job.HouseholdID, &job.Filename, &format, &status,
		&failureReason, &fieldMapping, &rowErrors, &job.TotalRows,
		&job.ImportedCount, &job.DuplicateCount, &job.ErrorCount,
		&job.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: import %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import: %w", err)
	}

	job.Format = model.ImportFormat(format)
	job.Status = model.ImportStatus(status)
	job.FailureReason = failureReason.String
	if completedAt.Valid {
		completed := completedAt.Time.UTC()
		job.CompletedAt = &completed
	}
	if fieldMapping.Valid && fieldMapping.String != "" && fieldMapping.String != "null" {
		if err := json.Unmarshal([]byte(fieldMapping.String), &job.FieldMapping); err != nil {
			return nil, fmt.Errorf("failed to decode field mapping: %w", err)
		}
	}
	if rowErrors.Valid && rowErrors.String != "" && rowErrors.String != "null" {
		if err := json.Unmarshal([]byte(rowErrors.String), &job.RowErrors); err != nil {
			return nil, fmt.Errorf("failed to decode row errors: %w", err)
		}
	}

	return &job, nil
}
