// Package analytics computes spending breakdowns and insights over a
// household's processed transactions.
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hearthledger/hearthledger/internal/common"
	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/service"
)

// highSpendingShare is the expense share above which a top category earns a
// high_spending insight.
const highSpendingShare = 30.0

// topCategoriesForInsights bounds how many categories are considered for
// insight generation.
const topCategoriesForInsights = 3

// Aggregator computes analytics reports. Reports are derived views: never
// stored, always recomputed from the transaction set.
type Aggregator struct {
	storage service.Storage
}

// NewAggregator creates an aggregator over the given storage.
func NewAggregator(storage service.Storage) *Aggregator {
	return &Aggregator{storage: storage}
}

// Generate computes the report for the trailing window ending at now:
// one month, one quarter, or one year back depending on period.
func (a *Aggregator) Generate(ctx context.Context, householdID string, period model.Period, now time.Time) (*model.AnalyticsReport, error) {
	start, err := periodStart(period, now)
	if err != nil {
		return nil, err
	}

	transactions, err := a.storage.ListTransactions(ctx, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	report := &model.AnalyticsReport{
		HouseholdID: householdID,
		Period:      period,
		StartDate:   start,
		EndDate:     now,
	}

	spending := make(map[model.Category]*model.CategorySpending)

	for i := range transactions {
		txn := &transactions[i]
		if txn.Date.Before(start) || txn.Date.After(now) {
			continue
		}

		if txn.Amount > 0 {
			report.TotalIncome += txn.Amount
		} else {
			report.TotalExpenses += math.Abs(txn.Amount)
		}

		// The expense breakdown covers spending only: income and
		// transfer movements are excluded.
		if txn.Amount >= 0 || txn.IsTransfer || txn.Category == model.CategoryIncome {
			continue
		}

		entry, ok := spending[txn.Category]
		if !ok {
			entry = &model.CategorySpending{Category: txn.Category}
			spending[txn.Category] = entry
		}
		entry.Amount += math.Abs(txn.Amount)
		entry.TransactionCount++
	}

	report.NetCashFlow = report.TotalIncome - report.TotalExpenses
	report.Breakdown = buildBreakdown(spending)
	report.Insights = buildInsights(report.Breakdown)

	return report, nil
}

// periodStart resolves the window start for a period ending at now.
func periodStart(period model.Period, now time.Time) (time.Time, error) {
	switch period {
	case model.PeriodMonth:
		return now.AddDate(0, -1, 0), nil
	case model.PeriodQuarter:
		return now.AddDate(0, -3, 0), nil
	case model.PeriodYear:
		return now.AddDate(-1, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", common.ErrInvalidPeriod, period)
}

// buildBreakdown finalizes per-category rows, sorted by amount descending.
// Percentages are shares of the breakdown's own total, so they sum to 100
// whenever any spending exists.
func buildBreakdown(spending map[model.Category]*model.CategorySpending) []model.CategorySpending {
	total := 0.0
	for _, entry := range spending {
		total += entry.Amount
	}

	breakdown := make([]model.CategorySpending, 0, len(spending))
	for _, entry := range spending {
		row := *entry
		if total > 0 {
			row.Percentage = row.Amount / total * 100
		}
		if row.TransactionCount > 0 {
			row.AverageAmount = row.Amount / float64(row.TransactionCount)
		}
		breakdown = append(breakdown, row)
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Amount != breakdown[j].Amount {
			return breakdown[i].Amount > breakdown[j].Amount
		}
		return breakdown[i].Category < breakdown[j].Category
	})

	return breakdown
}

// buildInsights emits a high_spending insight for each of the top three
// categories whose expense share exceeds the threshold.
func buildInsights(breakdown []model.CategorySpending) []model.SpendingInsight {
	var insights []model.SpendingInsight

	limit := topCategoriesForInsights
	if len(breakdown) < limit {
		limit = len(breakdown)
	}

	for _, row := range breakdown[:limit] {
		if row.Percentage <= highSpendingShare {
			continue
		}
		insights = append(insights, model.SpendingInsight{
			Type:     model.InsightHighSpending,
			Category: row.Category,
			Message: fmt.Sprintf("%s accounts for %.1f%% of spending in this period",
				row.Category, row.Percentage),
			Amount:     row.Amount,
			Percentage: row.Percentage,
		})
	}

	return insights
}
