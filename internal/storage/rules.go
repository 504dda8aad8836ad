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

// SaveRule inserts or replaces a transaction rule. Conditions and actions
// are stored as JSON so the schema never chases the rule vocabulary.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.TransactionRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(rule.ID, "rule id"); err != nil {
		return err
	}
	if err := validateID(rule.HouseholdID, "household id"); err != nil {
		return err
	}

	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode rule conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode rule actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transaction_rules (
			id, household_id, name, conditions, actions, priority, is_active,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			conditions = excluded.conditions,
			actions = excluded.actions,
			priority = excluded.priority,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		rule.ID, rule.HouseholdID, rule.Name, string(conditions), string(actions),
		rule.Priority, rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	return nil
}

// GetRule returns one rule scoped by household.
func (s *SQLiteStorage) GetRule(ctx context.Context, householdID, id string) (*model.TransactionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "rule id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, household_id, name, conditions, actions, priority, is_active,
		       created_at, updated_at
		FROM transaction_rules WHERE household_id = ? AND id = ?`,
		householdID, id)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListRules returns the household's rules in ascending priority order.
func (s *SQLiteStorage) ListRules(ctx context.Context, householdID string) ([]model.TransactionRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(householdID, "household id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, household_id, name, conditions, actions, priority, is_active,
		       created_at, updated_at
		FROM transaction_rules WHERE household_id = ?
		ORDER BY priority ASC, id ASC`,
		householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ruleSet []model.TransactionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		ruleSet = append(ruleSet, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return ruleSet, nil
}

// DeleteRule removes a rule, reporting not-found for unknown ids.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, householdID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "rule id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM transaction_rules WHERE household_id = ? AND id = ?`,
		householdID, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
	}
	return nil
}

func scanRule(row rowScanner) (*model.TransactionRule, error) {
	var rule model.TransactionRule
	var name sql.NullString
	var conditions, actions string

	err := row.Scan(&rule.ID, &rule.HouseholdID, &name, &conditions, &actions,
		&rule.Priority, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rule.Name = name.String
	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode rule conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode rule actions: %w", err)
	}

	return &rule, nil
}
