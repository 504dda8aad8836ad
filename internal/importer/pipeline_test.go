package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/storage"
	"github.com/hearthledger/hearthledger/internal/testutil"
)

// processorFunc adapts a function to the Processor interface.
type processorFunc func(ctx context.Context, txn *model.Transaction) error

func (f processorFunc) Process(ctx context.Context, txn *model.Transaction) error {
	return f(ctx, txn)
}

// storingProcessor persists rows without classification, enough to observe
// pipeline behavior in isolation.
func storingProcessor(store *storage.MemoryStorage) Processor {
	return processorFunc(func(ctx context.Context, txn *model.Transaction) error {
		if txn.ID == "" {
			txn.ID = txn.Hash()
		}
		if txn.Status == "" {
			txn.Status = model.StatusCompleted
		}
		if txn.Category == "" {
			txn.Category = model.CategoryOther
		}
		return store.SaveTransaction(ctx, txn)
	})
}

func newJob(format model.ImportFormat, filename string) *model.TransactionImport {
	return &model.TransactionImport{
		ID:          "job-1",
		HouseholdID: "h1",
		Filename:    filename,
		Format:      format,
		Status:      model.ImportPending,
	}
}

func TestPipeline_HundredRowBatch(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)
	pipeline := NewPipeline(store, storingProcessor(store))

	var sb strings.Builder
	sb.WriteString("date,amount,description,merchant,account\n")
	// 95 unique rows.
	for i := 0; i < 95; i++ {
		fmt.Fprintf(&sb, "2024-03-%02d,-%d.50,PURCHASE %03d,Shop %d,checking\n",
			1+i%28, 10+i, i, i%7)
	}
	// 3 exact duplicates of the first three rows.
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&sb, "2024-03-%02d,-%d.50,PURCHASE %03d,Shop %d,checking\n",
			1+i%28, 10+i, i, i%7)
	}
	// 2 unparsable rows.
	sb.WriteString("2024-03-15,not-a-number,BROKEN AMOUNT,Shop,checking\n")
	sb.WriteString("someday,-5.00,BROKEN DATE,Shop,checking\n")

	job := newJob(model.FormatCSV, "batch.csv")
	require.NoError(t, pipeline.Run(ctx, job, strings.NewReader(sb.String())))

	assert.Equal(t, model.ImportCompleted, job.Status)
	assert.Equal(t, 100, job.TotalRows)
	assert.Equal(t, 95, job.ImportedCount)
	assert.Equal(t, 3, job.DuplicateCount)
	assert.Equal(t, 2, job.ErrorCount)
	assert.Equal(t, job.TotalRows, job.ImportedCount+job.DuplicateCount+job.ErrorCount)
	assert.Len(t, job.RowErrors, 2)
	require.NotNil(t, job.CompletedAt)

	// The persisted job record matches the returned one.
	stored, err := store.GetImport(ctx, "h1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.ImportCompleted, stored.Status)
	assert.Equal(t, 95, stored.ImportedCount)

	transactions, err := store.ListTransactions(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, transactions, 95)
}

func TestPipeline_DuplicateAgainstStoredTransactions(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)
	pipeline := NewPipeline(store, storingProcessor(store))

	testutil.SeedTransaction(t, store, model.Transaction{
		ID: "existing", HouseholdID: "h1", AccountID: "checking",
		Date: testutil.Date(2024, 3, 10), Amount: -25.00, Description: "COFFEE SHOP",
	})

	csv := "date,amount,description,merchant,account\n" +
		"2024-03-10,-25.00,COFFEE SHOP,,checking\n" +
		"2024-03-11,-30.00,BOOKSTORE,,checking\n"

	job := newJob(model.FormatCSV, "again.csv")
	require.NoError(t, pipeline.Run(ctx, job, strings.NewReader(csv)))

	assert.Equal(t, 2, job.TotalRows)
	assert.Equal(t, 1, job.ImportedCount)
	assert.Equal(t, 1, job.DuplicateCount)
	assert.Equal(t, 0, job.ErrorCount)
}

func TestPipeline_FieldMapping(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)
	pipeline := NewPipeline(store, storingProcessor(store))

	csv := "Posted,Value,Memo,Payee\n" +
		"2024-03-10,-25.00,COFFEE SHOP,Blue Bottle\n"

	job := newJob(model.FormatCSV, "bank.csv")
	job.FieldMapping = map[string]string{
		"date":        "Posted",
		"amount":      "Value",
		"description": "Memo",
		"merchant":    "Payee",
	}
	require.NoError(t, pipeline.Run(ctx, job, strings.NewReader(csv)))

	assert.Equal(t, 1, job.ImportedCount)
	transactions, err := store.ListTransactions(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "COFFEE SHOP", transactions[0].Description)
	assert.Equal(t, "Blue Bottle", transactions[0].MerchantName)
	assert.InDelta(t, -25.00, transactions[0].Amount, 1e-9)
}

func TestPipeline_BatchLevelFailures(t *testing.T) {
	tests := []struct {
		name     string
		format   model.ImportFormat
		filename string
		content  string
		wantErr  error
	}{
		{
			name:     "header lacks required columns",
			format:   model.FormatCSV,
			filename: "bad.csv",
			content:  "foo,bar\n1,2\n",
			wantErr:  common.ErrUnreadableFile,
		},
		{
			name:     "unknown format",
			format:   model.FormatUnknown,
			filename: "bad.pdf",
			content:  "whatever",
			wantErr:  common.ErrUnsupportedFormat,
		},
		{
			name:     "garbage ofx",
			format:   model.FormatOFX,
			filename: "bad.ofx",
			content:  "this is not ofx at all",
			wantErr:  common.ErrUnreadableFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := testutil.SetupTestStore(t)
			pipeline := NewPipeline(store, storingProcessor(store))

			job := newJob(tt.format, tt.filename)
			err := pipeline.Run(ctx, job, strings.NewReader(tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, model.ImportFailed, job.Status)
			assert.NotEmpty(t, job.FailureReason)

			stored, getErr := store.GetImport(ctx, "h1", job.ID)
			require.NoError(t, getErr)
			assert.Equal(t, model.ImportFailed, stored.Status)
		})
	}
}

func TestPipeline_FailedRowDoesNotAnchorDuplicates(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)

	// Rows for this vendor always fail to persist. An identical later row
	// must be retried as its own failure, not counted as a duplicate of a
	// row that never imported.
	pipeline := NewPipeline(store, processorFunc(func(ctx context.Context, txn *model.Transaction) error {
		if strings.Contains(txn.Description, "FLAKY") {
			return fmt.Errorf("storage unavailable")
		}
		txn.ID = txn.Hash()
		txn.Status = model.StatusCompleted
		txn.Category = model.CategoryOther
		return store.SaveTransaction(ctx, txn)
	}))

	csv := "date,amount,description,merchant,account\n" +
		"2024-03-10,-25.00,FLAKY VENDOR,,checking\n" +
		"2024-03-10,-25.00,FLAKY VENDOR,,checking\n" +
		"2024-03-11,-30.00,BOOKSTORE,,checking\n"

	job := newJob(model.FormatCSV, "flaky.csv")
	require.NoError(t, pipeline.Run(ctx, job, strings.NewReader(csv)))

	assert.Equal(t, model.ImportCompleted, job.Status)
	assert.Equal(t, 3, job.TotalRows)
	assert.Equal(t, 1, job.ImportedCount)
	assert.Equal(t, 0, job.DuplicateCount)
	assert.Equal(t, 2, job.ErrorCount)
	assert.Len(t, job.RowErrors, 2)
}

func TestPipeline_RowFailuresNeverFailBatch(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)

	// Every processed row errors out; the batch still completes.
	pipeline := NewPipeline(store, processorFunc(func(context.Context, *model.Transaction) error {
		return fmt.Errorf("storage unavailable")
	}))

	csv := "date,amount,description\n" +
		"2024-03-10,-25.00,COFFEE\n" +
		"2024-03-11,-30.00,BOOKS\n"

	job := newJob(model.FormatCSV, "rows.csv")
	require.NoError(t, pipeline.Run(ctx, job, strings.NewReader(csv)))

	assert.Equal(t, model.ImportCompleted, job.Status)
	assert.Equal(t, 2, job.ErrorCount)
	assert.Equal(t, 0, job.ImportedCount)
	assert.Len(t, job.RowErrors, 2)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, model.FormatCSV, DetectFormat("statement.csv"))
	assert.Equal(t, model.FormatCSV, DetectFormat("STATEMENT.CSV"))
	assert.Equal(t, model.FormatOFX, DetectFormat("export.ofx"))
	assert.Equal(t, model.FormatOFX, DetectFormat("quicken.qfx"))
	assert.Equal(t, model.FormatUnknown, DetectFormat("notes.txt"))
	assert.Equal(t, model.FormatUnknown, DetectFormat("plain"))
}
