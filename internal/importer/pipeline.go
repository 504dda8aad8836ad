// Package importer ingests batch files of raw transactions and tracks each
// job through its state machine.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/service"
)

// rowWorkers bounds row-level parallelism within one batch.
const rowWorkers = 4

// Processor runs the per-transaction funnel (classification, transfer
// reconciliation, rule evaluation, persistence) for one imported row.
type Processor interface {
	Process(ctx context.Context, txn *model.Transaction) error
}

// TransferSweeper is an optional Processor capability. Rows are processed
// in parallel, so two legs of a transfer arriving in one batch can each be
// persisted before the other is visible as a counterpart; a sweep after
// the batch links them.
type TransferSweeper interface {
	SweepTransfers(ctx context.Context, householdID string) (int, error)
}

// Pipeline executes import jobs. Rows are parsed, deduplicated, and fed
// through the Processor; per-row failures never abort the batch.
type Pipeline struct {
	storage   service.Storage
	processor Processor
}

// NewPipeline creates an import pipeline.
func NewPipeline(storage service.Storage, processor Processor) *Pipeline {
	return &Pipeline{storage: storage, processor: processor}
}

// Run drives the job pending -> processing -> completed, or -> failed on an
// unrecoverable parse error of the whole file. The job record is persisted
// at every state transition so pollers always see current counts.
func (p *Pipeline) Run(ctx context.Context, job *model.TransactionImport, reader io.Reader) error {
	job.Status = model.ImportProcessing
	if err := p.storage.SaveImport(ctx, job); err != nil {
		return fmt.Errorf("failed to mark import as processing: %w", err)
	}

	rows, err := p.parse(reader, job)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	job.TotalRows = len(rows)

	if err := p.processRows(ctx, job, rows); err != nil {
		return p.fail(ctx, job, err)
	}

	if sweeper, ok := p.processor.(TransferSweeper); ok {
		linked, err := sweeper.SweepTransfers(ctx, job.HouseholdID)
		if err != nil {
			common.LogError(err, "transfer sweep failed", common.Fields{"import_id": job.ID})
		} else if linked > 0 {
			slog.Debug("Linked transfer pairs within batch", "import_id", job.ID, "pairs", linked)
		}
	}

	now := time.Now().UTC()
	job.Status = model.ImportCompleted
	job.CompletedAt = &now

	if err := p.storage.SaveImport(ctx, job); err != nil {
		return fmt.Errorf("failed to mark import as completed: %w", err)
	}

	slog.Info("Import batch completed",
		"import_id", job.ID,
		"total", job.TotalRows,
		"imported", job.ImportedCount,
		"duplicates", job.DuplicateCount,
		"errors", job.ErrorCount)

	return nil
}

func (p *Pipeline) parse(reader io.Reader, job *model.TransactionImport) ([]parsedRow, error) {
	switch job.Format {
	case model.FormatCSV:
		return parseCSV(reader, job.HouseholdID, job.FieldMapping)
	case model.FormatOFX:
		return parseOFX(reader, job.HouseholdID)
	}
	return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, job.Filename)
}

// rowClaim tracks a duplicate hash while some row bearing it is in flight.
// A row only counts as duplicate against one that actually imported; hashes
// already in the store start out resolved.
type rowClaim struct {
	done     chan struct{}
	imported bool
}

// processRows runs rows through the processor in parallel. Duplicate
// detection is serialized per hash: a row claims its hash under the batch
// mutex before any persistence happens, identical rows wait for the
// claimant's outcome, and a failed claimant releases the hash.
func (p *Pipeline) processRows(ctx context.Context, job *model.TransactionImport, rows []parsedRow) error {
	claims, err := p.storedClaims(ctx, job.HouseholdID)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var rowErrors []model.ImportRowError
	imported, duplicates, failures := 0, 0, 0

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(rowWorkers)

	for _, row := range rows {
		row := row
		// Cancellation is advisory: stop scheduling between rows.
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			if row.err != nil {
				mu.Lock()
				failures++
				rowErrors = append(rowErrors, model.ImportRowError{Row: row.row, Reason: row.err.Error()})
				mu.Unlock()
				return nil
			}

			hash := row.txn.Hash()
			var claim *rowClaim
			for {
				mu.Lock()
				existing, ok := claims[hash]
				if !ok {
					claim = &rowClaim{done: make(chan struct{})}
					claims[hash] = claim
					mu.Unlock()
					break
				}
				mu.Unlock()

				<-existing.done
				if existing.imported {
					mu.Lock()
					duplicates++
					mu.Unlock()
					return nil
				}
				// The claimant failed; this row competes for the hash again.
			}

			if err := p.processor.Process(groupCtx, row.txn); err != nil {
				mu.Lock()
				delete(claims, hash)
				failures++
				rowErrors = append(rowErrors, model.ImportRowError{Row: row.row, Reason: err.Error()})
				mu.Unlock()
				close(claim.done)
				return nil
			}

			mu.Lock()
			claim.imported = true
			imported++
			mu.Unlock()
			close(claim.done)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sort.Slice(rowErrors, func(i, j int) bool { return rowErrors[i].Row < rowErrors[j].Row })

	job.ImportedCount = imported
	job.DuplicateCount = duplicates
	job.ErrorCount = failures
	job.RowErrors = rowErrors
	return nil
}

// storedClaims fingerprints the household's stored transactions as
// already-resolved claims so re-imports of the same file detect every row
// as a duplicate.
func (p *Pipeline) storedClaims(ctx context.Context, householdID string) (map[string]*rowClaim, error) {
	stored, err := p.storage.ListTransactions(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored transactions: %w", err)
	}

	resolved := make(chan struct{})
	close(resolved)

	claims := make(map[string]*rowClaim, len(stored))
	for i := range stored {
		claims[stored[i].Hash()] = &rowClaim{done: resolved, imported: true}
	}
	return claims, nil
}

// fail marks the job failed with the batch-level reason. Per-row failures
// never land here.
func (p *Pipeline) fail(ctx context.Context, job *model.TransactionImport, cause error) error {
	now := time.Now().UTC()
	job.Status = model.ImportFailed
	job.FailureReason = cause.Error()
	job.CompletedAt = &now

	// Persist the terminal state on a fresh context in case cause was a
	// cancellation.
	saveCtx := ctx
	if ctx.Err() != nil {
		saveCtx = context.Background()
	}
	if err := p.storage.SaveImport(saveCtx, job); err != nil {
		common.LogError(err, "failed to persist failed import", common.Fields{"import_id": job.ID})
	}

	return cause
}
