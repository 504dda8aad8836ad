package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
)

// MemoryStorage is an in-memory Storage implementation. It backs tests and
// any caller that does not need durability; the engine never assumes a
// particular backing store.
type MemoryStorage struct {
	mu           sync.RWMutex
	transactions map[string]map[string]model.Transaction
	txnOrder     map[string][]string
	rules        map[string]map[string]model.TransactionRule
	pairs        map[string]map[string]model.TransferPair
	imports      map[string]map[string]model.TransactionImport
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		transactions: make(map[string]map[string]model.Transaction),
		txnOrder:     make(map[string][]string),
		rules:        make(map[string]map[string]model.TransactionRule),
		pairs:        make(map[string]map[string]model.TransferPair),
		imports:      make(map[string]map[string]model.TransactionImport),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStorage) Close() error {
	return nil
}

// SaveTransaction inserts or replaces the transaction.
func (s *MemoryStorage) SaveTransaction(_ context.Context, txn *model.Transaction) error {
	if err := validateID(txn.ID, "transaction id"); err != nil {
		return err
	}
	if err := validateID(txn.HouseholdID, "household id"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.transactions[txn.HouseholdID]
	if !ok {
		byID = make(map[string]model.Transaction)
		s.transactions[txn.HouseholdID] = byID
	}
	if _, exists := byID[txn.ID]; !exists {
		s.txnOrder[txn.HouseholdID] = append(s.txnOrder[txn.HouseholdID], txn.ID)
	}
	byID[txn.ID] = copyTransaction(txn)
	return nil
}

// GetTransaction returns the transaction or a not-found error.
func (s *MemoryStorage) GetTransaction(_ context.Context, householdID, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if txn, ok := s.transactions[householdID][id]; ok {
		out := copyTransaction(&txn)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
}

// ListTransactions returns the household's transactions ordered by date
// descending, ties broken by insertion order.
func (s *MemoryStorage) ListTransactions(_ context.Context, householdID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := s.txnOrder[householdID]
	byID := s.transactions[householdID]

	out := make([]model.Transaction, 0, len(order))
	for _, id := range order {
		if txn, ok := byID[id]; ok {
			out = append(out, copyTransaction(&txn))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// SaveRule inserts or replaces the rule.
func (s *MemoryStorage) SaveRule(_ context.Context, rule *model.TransactionRule) error {
	if err := validateID(rule.ID, "rule id"); err != nil {
		return err
	}
	if err := validateID(rule.HouseholdID, "household id"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.rules[rule.HouseholdID]
	if !ok {
		byID = make(map[string]model.TransactionRule)
		s.rules[rule.HouseholdID] = byID
	}
	byID[rule.ID] = copyRule(rule)
	return nil
}

// GetRule returns the rule or a not-found error.
func (s *MemoryStorage) GetRule(_ context.Context, householdID, id string) (*model.TransactionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rule, ok := s.rules[householdID][id]; ok {
		out := copyRule(&rule)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
}

// ListRules returns every rule for the household.
func (s *MemoryStorage) ListRules(_ context.Context, householdID string) ([]model.TransactionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.rules[householdID]
	out := make([]model.TransactionRule, 0, len(byID))
	for _, rule := range byID {
		out = append(out, copyRule(&rule))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteRule removes the rule or returns a not-found error.
func (s *MemoryStorage) DeleteRule(_ context.Context, householdID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[householdID][id]; !ok {
		return fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
	}
	delete(s.rules[householdID], id)
	return nil
}

// SaveTransferPair inserts or replaces the pair.
func (s *MemoryStorage) SaveTransferPair(_ context.Context, pair *model.TransferPair) error {
	if err := validateID(pair.ID, "transfer pair id"); err != nil {
		return err
	}
	if err := validateID(pair.HouseholdID, "household id"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.pairs[pair.HouseholdID]
	if !ok {
		byID = make(map[string]model.TransferPair)
		s.pairs[pair.HouseholdID] = byID
	}
	byID[pair.ID] = *pair
	return nil
}

// GetTransferPair returns the pair or a not-found error.
func (s *MemoryStorage) GetTransferPair(_ context.Context, householdID, id string) (*model.TransferPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pair, ok := s.pairs[householdID][id]; ok {
		out := pair
		return &out, nil
	}
	return nil, fmt.Errorf("%w: transfer pair %s", common.ErrNotFound, id)
}

// ListTransferPairs returns every pair for the household.
func (s *MemoryStorage) ListTransferPairs(_ context.Context, householdID string) ([]model.TransferPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := s.pairs[householdID]
	out := make([]model.TransferPair, 0, len(byID))
	for _, pair := range byID {
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SaveImport inserts or replaces the import job.
func (s *MemoryStorage) SaveImport(_ context.Context, job *model.TransactionImport) error {
	if err := validateID(job.ID, "import id"); err != nil {
		return err
	}
	if err := validateID(job.HouseholdID, "household id"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.imports[job.HouseholdID]
	if !ok {
		byID = make(map[string]model.TransactionImport)
		s.imports[job.HouseholdID] = byID
	}
	byID[job.ID] = copyImport(job)
	return nil
}

// GetImport returns the import job or a not-found error.
func (s *MemoryStorage) GetImport(_ context.Context, householdID, id string) (*model.TransactionImport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if job, ok := s.imports[householdID][id]; ok {
		out := copyImport(&job)
		return &out, nil
	}
	return nil, fmt.Errorf("%w: import %s", common.ErrNotFound, id)
}

// copyTransaction returns a value copy with its own tag slice so callers
// never alias stored state.
func copyTransaction(txn *model.Transaction) model.Transaction {
	out := *txn
	if txn.Tags != nil {
		out.Tags = append([]string(nil), txn.Tags...)
	}
	return out
}

func copyRule(rule *model.TransactionRule) model.TransactionRule {
	out := *rule
	if rule.Conditions != nil {
		out.Conditions = append([]model.RuleCondition(nil), rule.Conditions...)
	}
	if rule.Actions != nil {
		out.Actions = append([]model.RuleAction(nil), rule.Actions...)
	}
	return out
}

func copyImport(job *model.TransactionImport) model.TransactionImport {
	out := *job
	if job.RowErrors != nil {
		out.RowErrors = append([]model.ImportRowError(nil), job.RowErrors...)
	}
	if job.FieldMapping != nil {
		out.FieldMapping = make(map[string]string, len(job.FieldMapping))
		for k, v := range job.FieldMapping {
			out.FieldMapping[k] = v
		}
	}
	return out
}
