// Package search queries stored transactions by composable predicates.
package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/service"
)

// Filter is an optional set of predicates, all ANDed. A zero field imposes
// no constraint.
type Filter struct {
	StartDate        *time.Time
	EndDate          *time.Time
	MinAmount        *float64 // compared against the absolute amount
	MaxAmount        *float64 // compared against the absolute amount
	Query            string   // free text over description, merchant, notes
	Categories       []model.Category
	Accounts         []string
	Tags             []string // transaction must carry every listed tag
	ExcludeTransfers bool
	ExcludeNonBudget bool // drop transactions flagged excludeFromBudget
}

// Service answers filtered transaction queries. It is a pure read path.
type Service struct {
	storage service.Storage
}

// NewService creates a search service over the given storage.
func NewService(storage service.Storage) *Service {
	return &Service{storage: storage}
}

// Search returns the household's transactions matching the filter, sorted
// by date descending with stable ties. A nil filter matches everything.
func (s *Service) Search(ctx context.Context, householdID string, filter *Filter) ([]model.Transaction, error) {
	transactions, err := s.storage.ListTransactions(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	if filter == nil {
		return transactions, nil
	}

	matched := make([]model.Transaction, 0, len(transactions))
	for i := range transactions {
		if filter.matches(&transactions[i]) {
			matched = append(matched, transactions[i])
		}
	}
	return matched, nil
}

func (f *Filter) matches(txn *model.Transaction) bool {
	if f.Query != "" && !matchesQuery(txn, f.Query) {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, txn.Category) {
		return false
	}
	if len(f.Accounts) > 0 && !containsString(f.Accounts, txn.AccountID) {
		return false
	}
	if f.StartDate != nil && txn.Date.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && txn.Date.After(*f.EndDate) {
		return false
	}
	abs := math.Abs(txn.Amount)
	if f.MinAmount != nil && abs < *f.MinAmount {
		return false
	}
	if f.MaxAmount != nil && abs > *f.MaxAmount {
		return false
	}
	for _, tag := range f.Tags {
		if !txn.HasTag(tag) {
			return false
		}
	}
	if f.ExcludeTransfers && txn.IsTransfer {
		return false
	}
	if f.ExcludeNonBudget && txn.ExcludeFromBudget {
		return false
	}
	return true
}

func matchesQuery(txn *model.Transaction, query string) bool {
	needle := strings.ToLower(query)
	return strings.Contains(strings.ToLower(txn.Description), needle) ||
		strings.Contains(strings.ToLower(txn.MerchantName), needle) ||
		strings.Contains(strings.ToLower(txn.Notes), needle)
}

func containsCategory(categories []model.Category, category model.Category) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
