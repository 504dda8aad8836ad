package main

import (
	"github.com/spf13/cobra"

	"github.com/hearthledger/hearthledger/internal/model"
)

func analyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show spending breakdown and insights",
		RunE:  runAnalytics,
	}

	cmd.Flags().String("household", "", "household id")
	cmd.Flags().String("period", "month", "report period: month, quarter, or year")
	_ = cmd.MarkFlagRequired("household")

	return cmd
}

func runAnalytics(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	householdID, _ := cmd.Flags().GetString("household")
	period, _ := cmd.Flags().GetString("period")

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = eng.Close() }()

	report, err := eng.GenerateAnalytics(ctx, householdID, model.Period(period))
	if err != nil {
		return err
	}

	cmd.Printf("Period: %s (%s to %s)\n", report.Period,
		report.StartDate.Format("2006-01-02"), report.EndDate.Format("2006-01-02"))
	cmd.Printf("Income:   %10.2f\n", report.TotalIncome)
	cmd.Printf("Expenses: %10.2f\n", report.TotalExpenses)
	cmd.Printf("Net:      %10.2f\n\n", report.NetCashFlow)

	for _, row := range report.Breakdown {
		cmd.Printf("%-14s %10.2f  %5.1f%%  (%d transactions, avg %.2f)\n",
			row.Category, row.Amount, row.Percentage, row.TransactionCount, row.AverageAmount)
	}

	if len(report.Insights) > 0 {
		cmd.Println()
		for _, insight := range report.Insights {
			cmd.Printf("[%s] %s\n", insight.Type, insight.Message)
		}
	}

	return nil
}
