package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/search"
	"github.com/hearthledger/hearthledger/internal/storage"
	"github.com/hearthledger/hearthledger/internal/testutil"
)

func setupEngine(t *testing.T) (*Engine, *storage.MemoryStorage) {
	t.Helper()
	store := testutil.SetupTestStore(t)
	eng := New(store)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, store
}

func TestCreateTransaction_RunsFunnel(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	created, err := eng.CreateTransaction(ctx, &model.Transaction{
		HouseholdID: "h1",
		AccountID:   "checking",
		Date:        testutil.Date(2024, 3, 10),
		Amount:      -6.45,
		Description: "STARBUCKS STORE 1234",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.CategoryFood, created.Category)
	assert.Equal(t, model.StatusCompleted, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	stored, err := store.GetTransaction(ctx, "h1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryFood, stored.Category)
}

func TestCreateTransaction_Validation(t *testing.T) {
	ctx := context.Background()
	eng, _ := setupEngine(t)

	_, err := eng.CreateTransaction(ctx, &model.Transaction{Description: "NO HOUSEHOLD"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = eng.CreateTransaction(ctx, &model.Transaction{HouseholdID: "h1"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestCreateTransaction_LinksTransfers(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	outflow, err := eng.CreateTransaction(ctx, &model.Transaction{
		HouseholdID: "h1",
		AccountID:   "checking",
		Date:        testutil.Date(2024, 3, 10),
		Amount:      -500.00,
		Description: "TRANSFER TO SAVINGS",
	})
	require.NoError(t, err)

	inflow, err := eng.CreateTransaction(ctx, &model.Transaction{
		HouseholdID: "h1",
		AccountID:   "savings",
		Date:        testutil.Date(2024, 3, 11),
		Amount:      500.00,
		Description: "TRANSFER FROM CHECKING",
	})
	require.NoError(t, err)

	// Both sides are marked and mutually linked.
	storedOut, err := store.GetTransaction(ctx, "h1", outflow.ID)
	require.NoError(t, err)
	assert.True(t, storedOut.IsTransfer)
	assert.Equal(t, model.CategoryTransfers, storedOut.Category)
	assert.Equal(t, inflow.ID, storedOut.TransferTransactionID)

	storedIn, err := store.GetTransaction(ctx, "h1", inflow.ID)
	require.NoError(t, err)
	assert.True(t, storedIn.IsTransfer)
	assert.Equal(t, outflow.ID, storedIn.TransferTransactionID)

	pairs, err := store.ListTransferPairs(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, outflow.ID, pairs[0].SourceTransactionID)
	assert.Equal(t, inflow.ID, pairs[0].TargetTransactionID)
	assert.InDelta(t, 500.00, pairs[0].Amount, 1e-9)
	assert.False(t, pairs[0].Confirmed)
}

func TestCreateTransaction_LoneTransferTextStaysUnlinked(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	created, err := eng.CreateTransaction(ctx, &model.Transaction{
		HouseholdID: "h1",
		AccountID:   "checking",
		Date:        time.Now().UTC().AddDate(0, 0, -2),
		Amount:      -500.00,
		Description: "TRANSFER TO SAVINGS",
	})
	require.NoError(t, err)

	// Without a counterpart the transfers category must not stick: it
	// always implies a linked leg.
	assert.Equal(t, model.CategoryOther, created.Category)
	assert.False(t, created.IsTransfer)
	assert.Empty(t, created.TransferTransactionID)

	stored, err := store.GetTransaction(ctx, "h1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOther, stored.Category)
	assert.False(t, stored.IsTransfer)

	pairs, err := store.ListTransferPairs(ctx, "h1")
	require.NoError(t, err)
	assert.Empty(t, pairs)

	// The lone leg stays an ordinary expense in analytics rather than a
	// phantom transfers row.
	report, err := eng.GenerateAnalytics(ctx, "h1", model.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, report.Breakdown, 1)
	assert.Equal(t, model.CategoryOther, report.Breakdown[0].Category)
}

func TestConfirmTransferPair(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	require.NoError(t, store.SaveTransferPair(ctx, &model.TransferPair{
		ID:          "pair-1",
		HouseholdID: "h1",
		Amount:      100,
	}))

	confirmed, err := eng.ConfirmTransferPair(ctx, "h1", "pair-1")
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)

	// Confirming again is a no-op.
	again, err := eng.ConfirmTransferPair(ctx, "h1", "pair-1")
	require.NoError(t, err)
	assert.True(t, again.Confirmed)

	_, err = eng.ConfirmTransferPair(ctx, "h1", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateRule_OverridesClassifierForNewTransactions(t *testing.T) {
	ctx := context.Background()
	eng, _ := setupEngine(t)

	_, err := eng.CreateRule(ctx, &model.TransactionRule{
		HouseholdID: "h1",
		Name:        "Starbucks is a personal treat",
		Conditions: []model.RuleCondition{
			{Field: model.FieldDescription, Operator: model.OpContains, Value: "starbucks"},
		},
		Actions: []model.RuleAction{
			{Type: model.ActionSetCategory, Value: string(model.CategoryPersonal)},
		},
		IsActive: true,
	})
	require.NoError(t, err)
	eng.WaitForBackground()

	created, err := eng.CreateTransaction(ctx, &model.Transaction{
		HouseholdID: "h1",
		AccountID:   "checking",
		Date:        testutil.Date(2024, 3, 10),
		Amount:      -6.45,
		Description: "STARBUCKS STORE 1234",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPersonal, created.Category)
}

func TestCreateRule_ReevaluatesStoredTransactions(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	created, err := eng.CreateTransaction(ctx, &model.Transaction{
		HouseholdID: "h1",
		AccountID:   "checking",
		Date:        testutil.Date(2024, 3, 10),
		Amount:      -6.45,
		Description: "STARBUCKS STORE 1234",
	})
	require.NoError(t, err)
	require.Equal(t, model.CategoryFood, created.Category)

	_, err = eng.CreateRule(ctx, &model.TransactionRule{
		HouseholdID: "h1",
		Name:        "Coffee is personal",
		Conditions: []model.RuleCondition{
			{Field: model.FieldDescription, Operator: model.OpContains, Value: "starbucks"},
		},
		Actions: []model.RuleAction{
			{Type: model.ActionSetCategory, Value: string(model.CategoryPersonal)},
			{Type: model.ActionAddTag, Value: "coffee"},
		},
		IsActive: true,
	})
	require.NoError(t, err)
	eng.WaitForBackground()

	stored, err := store.GetTransaction(ctx, "h1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPersonal, stored.Category)
	assert.True(t, stored.HasTag("coffee"))
}

func TestCreateRule_Validation(t *testing.T) {
	ctx := context.Background()
	eng, _ := setupEngine(t)

	_, err := eng.CreateRule(ctx, &model.TransactionRule{
		Conditions: []model.RuleCondition{{Field: model.FieldDescription, Operator: model.OpContains, Value: "x"}},
	})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = eng.CreateRule(ctx, &model.TransactionRule{HouseholdID: "h1"})
	assert.ErrorIs(t, err, common.ErrInvalidRule)
}

func TestRuleLifecycle(t *testing.T) {
	ctx := context.Background()
	eng, _ := setupEngine(t)

	rule, err := eng.CreateRule(ctx, &model.TransactionRule{
		HouseholdID: "h1",
		Name:        "Tag refunds",
		Conditions: []model.RuleCondition{
			{Field: model.FieldDescription, Operator: model.OpContains, Value: "refund"},
		},
		Actions:  []model.RuleAction{{Type: model.ActionAddTag, Value: "refund"}},
		IsActive: true,
	})
	require.NoError(t, err)
	eng.WaitForBackground()

	fetched, err := eng.GetRule(ctx, "h1", rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tag refunds", fetched.Name)

	listed, err := eng.ListRules(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, eng.DeleteRule(ctx, "h1", rule.ID))
	_, err = eng.GetRule(ctx, "h1", rule.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = eng.DeleteRule(ctx, "h1", rule.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBulkUpdate(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	first := testutil.SeedTransaction(t, store, model.Transaction{
		ID: "t1", HouseholdID: "h1", AccountID: "checking",
		Date: testutil.Date(2024, 3, 10), Amount: -20, Description: "ONE",
	})
	second := testutil.SeedTransaction(t, store, model.Transaction{
		ID: "t2", HouseholdID: "h1", AccountID: "checking",
		Date: testutil.Date(2024, 3, 11), Amount: -30, Description: "TWO",
	})

	category := model.CategoryTravel
	tags := []string{"holiday"}
	excluded := true
	updated, err := eng.BulkUpdate(ctx, "h1", []string{first.ID, second.ID}, TransactionUpdate{
		Category:          &category,
		Tags:              &tags,
		ExcludeFromBudget: &excluded,
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)

	for _, id := range []string{first.ID, second.ID} {
		stored, getErr := store.GetTransaction(ctx, "h1", id)
		require.NoError(t, getErr)
		assert.Equal(t, model.CategoryTravel, stored.Category)
		assert.Equal(t, []string{"holiday"}, stored.Tags)
		assert.True(t, stored.ExcludeFromBudget)
	}
}

func TestBulkUpdate_UnknownIDFailsBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	seeded := testutil.SeedTransaction(t, store, model.Transaction{
		ID: "t1", HouseholdID: "h1", AccountID: "checking",
		Date: testutil.Date(2024, 3, 10), Amount: -20, Description: "ONE",
		Category: model.CategoryFood,
	})

	category := model.CategoryTravel
	_, err := eng.BulkUpdate(ctx, "h1", []string{seeded.ID, "missing"}, TransactionUpdate{Category: &category})
	assert.ErrorIs(t, err, common.ErrNotFound)

	stored, err := store.GetTransaction(ctx, "h1", seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryFood, stored.Category)
}

func TestBulkUpdate_InvalidCategory(t *testing.T) {
	ctx := context.Background()
	eng, _ := setupEngine(t)

	category := model.Category("nonsense")
	_, err := eng.BulkUpdate(ctx, "h1", []string{"t1"}, TransactionUpdate{Category: &category})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestImportBatch_EndToEnd(t *testing.T) {
	ctx := context.Background()
	eng, _ := setupEngine(t)

	csv := "date,amount,description,merchant,account\n" +
		"2024-03-10,-6.45,STARBUCKS STORE 1234,Starbucks,checking\n" +
		"2024-03-11,-15.00,UBER TRIP,Uber,checking\n" +
		"2024-03-10,-6.45,STARBUCKS STORE 1234,Starbucks,checking\n" +
		"someday,-1.00,BROKEN,,checking\n"

	job, err := eng.ImportBatch(ctx, "h1", "statement.csv", strings.NewReader(csv), nil)
	require.NoError(t, err)
	assert.Equal(t, model.ImportPending, job.Status)
	assert.Equal(t, model.FormatCSV, job.Format)

	eng.WaitForBackground()

	final, err := eng.GetImport(ctx, "h1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ImportCompleted, final.Status)
	assert.Equal(t, 4, final.TotalRows)
	assert.Equal(t, 2, final.ImportedCount)
	assert.Equal(t, 1, final.DuplicateCount)
	assert.Equal(t, 1, final.ErrorCount)

	// Imported rows went through the full funnel and are searchable.
	results, err := eng.Search(ctx, "h1", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byDescription := map[string]model.Category{}
	for _, txn := range results {
		byDescription[txn.Description] = txn.Category
	}
	assert.Equal(t, model.CategoryFood, byDescription["STARBUCKS STORE 1234"])
	assert.Equal(t, model.CategoryTransport, byDescription["UBER TRIP"])
}

func TestImportBatch_LinksTransferLegsWithinBatch(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	// Both legs arrive as rows of the same batch; rows are processed in
	// parallel, so linking must not depend on one leg being stored before
	// the other is examined.
	csv := "date,amount,description,merchant,account\n" +
		"2024-03-10,-500.00,TRANSFER TO SAVINGS,,checking\n" +
		"2024-03-11,500.00,TRANSFER FROM CHECKING,,savings\n" +
		"2024-03-12,-30.00,BOOKSTORE,,checking\n"

	job, err := eng.ImportBatch(ctx, "h1", "legs.csv", strings.NewReader(csv), nil)
	require.NoError(t, err)
	eng.WaitForBackground()

	final, err := eng.GetImport(ctx, "h1", job.ID)
	require.NoError(t, err)
	require.Equal(t, model.ImportCompleted, final.Status)
	require.Equal(t, 3, final.ImportedCount)

	transactions, err := store.ListTransactions(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	byDescription := map[string]model.Transaction{}
	for _, txn := range transactions {
		byDescription[txn.Description] = txn
	}

	outflow := byDescription["TRANSFER TO SAVINGS"]
	inflow := byDescription["TRANSFER FROM CHECKING"]
	assert.True(t, outflow.IsTransfer)
	assert.True(t, inflow.IsTransfer)
	assert.Equal(t, model.CategoryTransfers, outflow.Category)
	assert.Equal(t, model.CategoryTransfers, inflow.Category)
	assert.Equal(t, inflow.ID, outflow.TransferTransactionID)
	assert.Equal(t, outflow.ID, inflow.TransferTransactionID)
	assert.False(t, byDescription["BOOKSTORE"].IsTransfer)

	pairs, err := store.ListTransferPairs(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, outflow.ID, pairs[0].SourceTransactionID)
	assert.Equal(t, inflow.ID, pairs[0].TargetTransactionID)
}

func TestSearch_RequiresHousehold(t *testing.T) {
	ctx := context.Background()
	eng, _ := setupEngine(t)

	_, err := eng.Search(ctx, "", nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSearch_DelegatesFilter(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	testutil.SeedTransaction(t, store, model.Transaction{
		ID: "t1", HouseholdID: "h1", AccountID: "checking",
		Date: testutil.Date(2024, 3, 10), Amount: -20, Description: "GROCERIES",
		Category: model.CategoryFood,
	})
	testutil.SeedTransaction(t, store, model.Transaction{
		ID: "t2", HouseholdID: "h1", AccountID: "checking",
		Date: testutil.Date(2024, 3, 11), Amount: -40, Description: "GAS STATION",
		Category: model.CategoryTransport,
	})

	results, err := eng.Search(ctx, "h1", &search.Filter{Categories: []model.Category{model.CategoryFood}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].ID)
}

func TestGenerateAnalytics_TrailingMonth(t *testing.T) {
	ctx := context.Background()
	eng, store := setupEngine(t)

	recent := time.Now().UTC().AddDate(0, 0, -2)
	testutil.SeedTransaction(t, store, model.Transaction{
		ID: "t1", HouseholdID: "h1", AccountID: "checking",
		Date: recent, Amount: -120, Description: "GROCERIES",
		Category: model.CategoryFood,
	})
	testutil.SeedTransaction(t, store, model.Transaction{
		ID: "t2", HouseholdID: "h1", AccountID: "checking",
		Date: recent, Amount: 2000, Description: "PAYROLL",
		Category: model.CategoryIncome,
	})

	report, err := eng.GenerateAnalytics(ctx, "h1", model.PeriodMonth)
	require.NoError(t, err)
	assert.InDelta(t, 2000, report.TotalIncome, 1e-9)
	assert.InDelta(t, 120, report.TotalExpenses, 1e-9)
	assert.InDelta(t, 1880, report.NetCashFlow, 1e-9)
	require.Len(t, report.Breakdown, 1)
	assert.Equal(t, model.CategoryFood, report.Breakdown[0].Category)

	_, err = eng.GenerateAnalytics(ctx, "", model.PeriodMonth)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestClose_WaitsForBackgroundWork(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)
	eng := New(store)

	csv := "date,amount,description\n2024-03-10,-6.45,STARBUCKS\n"
	_, err := eng.ImportBatch(ctx, "h1", "one.csv", strings.NewReader(csv), nil)
	require.NoError(t, err)

	require.NoError(t, eng.Close())
}
