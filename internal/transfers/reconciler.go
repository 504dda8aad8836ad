// Package transfers pairs debit and credit transactions across a
// household's accounts into internal transfer links.
package transfers

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/service"
)

// Matching constants. Tests depend on the exact values.
const (
	// Confidence assigned to automatically detected pairs.
	Confidence = 0.9
	// amountTolerance is the maximum absolute-amount mismatch between the
	// two sides of a pair.
	amountTolerance = 0.01
	// dateWindow is the maximum gap between the two sides, inclusive.
	dateWindow = 3 * 24 * time.Hour
)

// Reconciler finds the stored counterpart of a newly created transaction
// and links the two into a TransferPair. Candidate selection and linkage
// run under a per-household critical section so no transaction is ever
// claimed by two pairs.
type Reconciler struct {
	storage service.Storage
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewReconciler creates a reconciler backed by the given storage.
func NewReconciler(storage service.Storage) *Reconciler {
	return &Reconciler{
		storage: storage,
		locks:   make(map[string]*sync.Mutex),
	}
}

// householdLock returns the mutex serializing reconciliation for one
// household, creating it on first use.
func (r *Reconciler) householdLock(householdID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[householdID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[householdID] = lock
	}
	return lock
}

// Reconcile searches the household's stored transactions for the best
// transfer counterpart of txn. On a match it links both sides, persists the
// counterpart, and returns the created pair; txn is mutated in place and
// left for the caller to persist. It returns (nil, nil) when no candidate
// matches.
func (r *Reconciler) Reconcile(ctx context.Context, txn *model.Transaction) (*model.TransferPair, error) {
	if txn.IsTransfer || txn.TransferTransactionID != "" {
		return nil, nil
	}

	lock := r.householdLock(txn.HouseholdID)
	lock.Lock()
	defer lock.Unlock()

	candidates, err := r.storage.ListTransactions(ctx, txn.HouseholdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate transactions: %w", err)
	}

	match := bestMatch(txn, candidates)
	if match == nil {
		return nil, nil
	}

	pair := link(txn, match)
	if err := r.storage.SaveTransaction(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to persist linked counterpart: %w", err)
	}
	if err := r.storage.SaveTransferPair(ctx, pair); err != nil {
		return nil, fmt.Errorf("failed to persist transfer pair: %w", err)
	}

	return pair, nil
}

// Sweep re-runs counterpart matching across the household's stored
// transactions and links any pairs it finds. Rows of one import batch are
// persisted concurrently, so two legs arriving together can each miss the
// other in Reconcile; the sweep picks such pairs up after the batch. It
// returns the number of pairs created.
func (r *Reconciler) Sweep(ctx context.Context, householdID string) (int, error) {
	lock := r.householdLock(householdID)
	lock.Lock()
	defer lock.Unlock()

	transactions, err := r.storage.ListTransactions(ctx, householdID)
	if err != nil {
		return 0, fmt.Errorf("failed to load transactions: %w", err)
	}

	linked := 0
	for i := range transactions {
		txn := &transactions[i]
		if txn.IsTransfer || txn.TransferTransactionID != "" {
			continue
		}

		// link mutates both sides in place, so a leg claimed earlier in
		// this pass is no longer a candidate.
		match := bestMatch(txn, transactions)
		if match == nil {
			continue
		}

		pair := link(txn, match)
		if err := r.storage.SaveTransaction(ctx, txn); err != nil {
			return linked, fmt.Errorf("failed to persist linked transaction: %w", err)
		}
		if err := r.storage.SaveTransaction(ctx, match); err != nil {
			return linked, fmt.Errorf("failed to persist linked counterpart: %w", err)
		}
		if err := r.storage.SaveTransferPair(ctx, pair); err != nil {
			return linked, fmt.Errorf("failed to persist transfer pair: %w", err)
		}
		linked++
	}

	return linked, nil
}

// bestMatch returns the candidate with the smallest date gap from txn, or
// nil when none qualifies. Ties break toward the lowest transaction id so
// selection stays deterministic.
func bestMatch(txn *model.Transaction, candidates []model.Transaction) *model.Transaction {
	var best *model.Transaction
	var bestGap time.Duration

	for i := range candidates {
		candidate := &candidates[i]
		if !isCandidate(txn, candidate) {
			continue
		}
		gap := absDuration(txn.Date.Sub(candidate.Date))
		switch {
		case best == nil, gap < bestGap:
			best, bestGap = candidate, gap
		case gap == bestGap && candidate.ID < best.ID:
			best = candidate
		}
	}

	return best
}

// isCandidate applies the full matching predicate: same household,
// different account, unclaimed, amounts equal within tolerance with
// opposite signs, dates within the window.
func isCandidate(txn *model.Transaction, candidate *model.Transaction) bool {
	if candidate.ID == txn.ID || candidate.HouseholdID != txn.HouseholdID {
		return false
	}
	if candidate.AccountID == txn.AccountID {
		return false
	}
	if candidate.IsTransfer || candidate.TransferTransactionID != "" {
		return false
	}
	if math.Abs(math.Abs(candidate.Amount)-math.Abs(txn.Amount)) >= amountTolerance {
		return false
	}
	if candidate.Amount*txn.Amount >= 0 {
		return false
	}
	return absDuration(txn.Date.Sub(candidate.Date)) <= dateWindow
}

// link mutates both sides into an unconfirmed transfer pair. The
// outflow side becomes the pair's source, the inflow its target.
func link(txn, match *model.Transaction) *model.TransferPair {
	source, target := txn, match
	if txn.Amount > 0 {
		source, target = match, txn
	}

	txn.IsTransfer = true
	txn.Category = model.CategoryTransfers
	txn.TransferTransactionID = match.ID
	txn.TransferAccountID = match.AccountID

	match.IsTransfer = true
	match.Category = model.CategoryTransfers
	match.TransferTransactionID = txn.ID
	match.TransferAccountID = txn.AccountID
	match.UpdatedAt = time.Now().UTC()

	return &model.TransferPair{
		ID:                  uuid.NewString(),
		HouseholdID:         txn.HouseholdID,
		SourceTransactionID: source.ID,
		TargetTransactionID: target.ID,
		Amount:              math.Abs(txn.Amount),
		Confidence:          Confidence,
		Confirmed:           false,
		CreatedAt:           time.Now().UTC(),
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
