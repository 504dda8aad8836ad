// Package engine exposes the transaction processing engine to its
// collaborators: transaction creation, rule management, search, bulk
// updates, batch imports, and analytics.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthledger/hearthledger/internal/analytics"
	"github.com/hearthledger/hearthledger/internal/classifier"
	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/importer"
	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/rules"
	"github.com/hearthledger/hearthledger/internal/search"
	"github.com/hearthledger/hearthledger/internal/service"
	"github.com/hearthledger/hearthledger/internal/transfers"
)

// Engine orchestrates the processing funnel. It is explicitly constructed
// with its storage collaborator; there is no process-wide shared instance.
type Engine struct {
	storage    service.Storage
	classifier *classifier.Classifier
	reconciler *transfers.Reconciler
	rules      *rules.Engine
	searcher   *search.Service
	aggregator *analytics.Aggregator
	pipeline   *importer.Pipeline

	// background governs import jobs and rule re-evaluation passes started
	// by API calls; Close cancels it and waits for them.
	background context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates an engine over the given storage collaborator.
func New(storage service.Storage) *Engine {
	background, cancel := context.WithCancel(context.Background())

	e := &Engine{
		storage:    storage,
		classifier: classifier.New(storage),
		reconciler: transfers.NewReconciler(storage),
		rules:      rules.NewEngine(),
		searcher:   search.NewService(storage),
		aggregator: analytics.NewAggregator(storage),
		background: background,
		cancel:     cancel,
	}
	e.pipeline = importer.NewPipeline(storage, e)
	return e
}

// Close cancels background work and waits for it to finish.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

// CreateTransaction runs a new transaction through classification, transfer
// reconciliation, and rule evaluation, then persists and returns it.
func (e *Engine) CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn.HouseholdID == "" {
		return nil, fmt.Errorf("%w: household id is required", common.ErrInvalidInput)
	}
	if txn.Description == "" {
		return nil, fmt.Errorf("%w: description is required", common.ErrInvalidInput)
	}

	if err := e.Process(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Process is the per-transaction funnel shared by CreateTransaction and the
// import pipeline: classify, reconcile, evaluate rules, persist.
func (e *Engine) Process(ctx context.Context, txn *model.Transaction) error {
	now := time.Now().UTC()
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Status == "" {
		txn.Status = model.StatusCompleted
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	category, err := e.classifier.Classify(ctx, txn)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}
	txn.Category = category

	pair, err := e.reconciler.Reconcile(ctx, txn)
	if err != nil {
		return fmt.Errorf("transfer reconciliation failed: %w", err)
	}
	if pair != nil {
		slog.Debug("Linked transfer pair",
			"pair_id", pair.ID,
			"source", pair.SourceTransactionID,
			"target", pair.TargetTransactionID)
	}

	// The transfers category is reserved for linked legs. Transfer-looking
	// text with no counterpart stays an ordinary transaction until one
	// arrives.
	if pair == nil && !txn.IsTransfer && txn.Category == model.CategoryTransfers {
		txn.Category = model.CategoryOther
	}

	ruleSet, err := e.storage.ListRules(ctx, txn.HouseholdID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	e.rules.Apply(txn, ruleSet)

	if err := e.storage.SaveTransaction(ctx, txn); err != nil {
		return fmt.Errorf("failed to persist transaction: %w", err)
	}
	e.classifier.InvalidateMerchant(txn.HouseholdID, txn.MerchantName)

	return nil
}

// SweepTransfers links transfer pairs whose two legs arrived in the same
// import batch. The pipeline calls it once per batch after row processing.
func (e *Engine) SweepTransfers(ctx context.Context, householdID string) (int, error) {
	return e.reconciler.Sweep(ctx, householdID)
}

// CreateRule persists a new rule and kicks off a background re-evaluation
// of the household's existing transactions so stored data reflects it. The
// pass is non-blocking; callers needing the guarantee wait via
// WaitForBackground.
func (e *Engine) CreateRule(ctx context.Context, rule *model.TransactionRule) (*model.TransactionRule, error) {
	if rule.HouseholdID == "" {
		return nil, fmt.Errorf("%w: household id is required", common.ErrInvalidInput)
	}
	if len(rule.Conditions) == 0 {
		return nil, fmt.Errorf("%w: at least one condition is required", common.ErrInvalidRule)
	}

	now := time.Now().UTC()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := e.storage.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to persist rule: %w", err)
	}

	householdID := rule.HouseholdID
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.ReevaluateRules(e.background, householdID); err != nil {
			common.LogError(err, "rule re-evaluation failed", common.Fields{"household_id": householdID})
		}
	}()

	return rule, nil
}

// ReevaluateRules applies the household's current active rule set to every
// stored transaction. Cancellation is advisory: the pass exits between
// transactions.
func (e *Engine) ReevaluateRules(ctx context.Context, householdID string) error {
	ruleSet, err := e.storage.ListRules(ctx, householdID)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	transactions, err := e.storage.ListTransactions(ctx, householdID)
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	updated := 0
	for i := range transactions {
		if err := ctx.Err(); err != nil {
			return err
		}

		txn := transactions[i]
		if !e.rules.Apply(&txn, ruleSet) {
			continue
		}
		txn.UpdatedAt = time.Now().UTC()
		if err := e.storage.SaveTransaction(ctx, &txn); err != nil {
			return fmt.Errorf("failed to persist re-evaluated transaction %s: %w", txn.ID, err)
		}
		e.classifier.InvalidateMerchant(householdID, txn.MerchantName)
		updated++
	}

	slog.Info("Rule re-evaluation finished",
		"household_id", householdID,
		"transactions", len(transactions),
		"updated", updated)

	return nil
}

// WaitForBackground blocks until all in-flight background passes (rule
// re-evaluations, imports) finish. Analytics reads are only guaranteed to
// reflect a new rule after this returns.
func (e *Engine) WaitForBackground() {
	e.wg.Wait()
}

// GetRule returns a stored rule.
func (e *Engine) GetRule(ctx context.Context, householdID, id string) (*model.TransactionRule, error) {
	return e.storage.GetRule(ctx, householdID, id)
}

// ListRules returns the household's rules in ascending priority order.
func (e *Engine) ListRules(ctx context.Context, householdID string) ([]model.TransactionRule, error) {
	return e.storage.ListRules(ctx, householdID)
}

// DeleteRule removes a rule.
func (e *Engine) DeleteRule(ctx context.Context, householdID, id string) error {
	return e.storage.DeleteRule(ctx, householdID, id)
}

// Search returns the household's transactions matching the filter, newest
// first.
func (e *Engine) Search(ctx context.Context, householdID string, filter *search.Filter) ([]model.Transaction, error) {
	if householdID == "" {
		return nil, fmt.Errorf("%w: household id is required", common.ErrInvalidInput)
	}
	return e.searcher.Search(ctx, householdID, filter)
}

// ConfirmTransferPair marks an automatically detected pair as user
// confirmed.
func (e *Engine) ConfirmTransferPair(ctx context.Context, householdID, id string) (*model.TransferPair, error) {
	pair, err := e.storage.GetTransferPair(ctx, householdID, id)
	if err != nil {
		return nil, err
	}
	if pair.Confirmed {
		return pair, nil
	}
	pair.Confirmed = true
	if err := e.storage.SaveTransferPair(ctx, pair); err != nil {
		return nil, fmt.Errorf("failed to confirm transfer pair: %w", err)
	}
	return pair, nil
}

// GetImport returns an import job for polling callers.
func (e *Engine) GetImport(ctx context.Context, householdID, id string) (*model.TransactionImport, error) {
	return e.storage.GetImport(ctx, householdID, id)
}

// GenerateAnalytics computes the household's report for the trailing
// period ending now.
func (e *Engine) GenerateAnalytics(ctx context.Context, householdID string, period model.Period) (*model.AnalyticsReport, error) {
	if householdID == "" {
		return nil, fmt.Errorf("%w: household id is required", common.ErrInvalidInput)
	}
	return e.aggregator.Generate(ctx, householdID, period, time.Now().UTC())
}

// ImportBatch registers a batch import job and starts processing it in the
// background. The returned record is already persisted; callers poll
// GetImport for progress and final counts.
func (e *Engine) ImportBatch(ctx context.Context, householdID, filename string, reader io.Reader, fieldMapping map[string]string) (*model.TransactionImport, error) {
	if householdID == "" {
		return nil, fmt.Errorf("%w: household id is required", common.ErrInvalidInput)
	}

	job := &model.TransactionImport{
		ID:           uuid.NewString(),
		HouseholdID:  householdID,
		Filename:     filename,
		Format:       importer.DetectFormat(filename),
		Status:       model.ImportPending,
		FieldMapping: fieldMapping,
		CreatedAt:    time.Now().UTC(),
	}

	if err := e.storage.SaveImport(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to register import: %w", err)
	}

	started := *job
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.pipeline.Run(e.background, &started, reader); err != nil {
			common.LogError(err, "import batch failed", common.Fields{"import_id": started.ID})
		}
	}()

	return job, nil
}
