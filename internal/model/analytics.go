package model

import "time"

// Period selects the analytics time window, anchored at the report time.
type Period string

// Period constants.
const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// CategorySpending is one row of the per-category expense breakdown.
// Percentage is the category's share of total expenses, not of income.
type CategorySpending struct {
	Category         Category `json:"category"`
	Amount           float64  `json:"amount"`
	Percentage       float64  `json:"percentage"`
	TransactionCount int      `json:"transaction_count"`
	AverageAmount    float64  `json:"average_amount"`
}

// InsightType classifies a spending insight.
type InsightType string

// Insight type constants.
const (
	InsightHighSpending InsightType = "high_spending"
)

// SpendingInsight is a derived observation about the household's spending
// in the reported period.
type SpendingInsight struct {
	Type       InsightType `json:"type"`
	Category   Category    `json:"category"`
	Message    string      `json:"message"`
	Amount     float64     `json:"amount"`
	Percentage float64     `json:"percentage"`
}

// AnalyticsReport is the on-demand view computed over a household's
// transactions for a period. It is never persisted, always recomputed.
type AnalyticsReport struct {
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	HouseholdID   string             `json:"household_id"`
	Period        Period             `json:"period"`
	Breakdown     []CategorySpending `json:"breakdown"`
	Insights      []SpendingInsight  `json:"insights"`
	TotalIncome   float64            `json:"total_income"`
	TotalExpenses float64            `json:"total_expenses"`
	NetCashFlow   float64            `json:"net_cash_flow"`
}
