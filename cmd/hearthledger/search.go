package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthledger/hearthledger/internal/model"
	"github.com/hearthledger/hearthledger/internal/search"
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search a household's transactions",
		RunE:  runSearch,
	}

	cmd.Flags().String("household", "", "household id")
	cmd.Flags().String("query", "", "free-text query over description, merchant, and notes")
	cmd.Flags().StringSlice("category", nil, "restrict to these categories")
	cmd.Flags().StringSlice("account", nil, "restrict to these accounts")
	cmd.Flags().StringSlice("tag", nil, "require these tags")
	cmd.Flags().String("from", "", "start date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "end date, YYYY-MM-DD")
	cmd.Flags().Bool("no-transfers", false, "exclude transfer transactions")
	_ = cmd.MarkFlagRequired("household")

	return cmd
}

func runSearch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	householdID, _ := cmd.Flags().GetString("household")
	query, _ := cmd.Flags().GetString("query")
	categories, _ := cmd.Flags().GetStringSlice("category")
	accounts, _ := cmd.Flags().GetStringSlice("account")
	tags, _ := cmd.Flags().GetStringSlice("tag")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	noTransfers, _ := cmd.Flags().GetBool("no-transfers")

	filter := &search.Filter{
		Query:            query,
		Accounts:         accounts,
		Tags:             tags,
		ExcludeTransfers: noTransfers,
	}
	for _, category := range categories {
		filter.Categories = append(filter.Categories, model.Category(category))
	}
	if from != "" {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return err
		}
		filter.StartDate = &start
	}
	if to != "" {
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			return err
		}
		filter.EndDate = &end
	}

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = eng.Close() }()

	transactions, err := eng.Search(ctx, householdID, filter)
	if err != nil {
		return err
	}

	for i := range transactions {
		txn := &transactions[i]
		cmd.Printf("%s  %10.2f  %-14s %s\n",
			txn.Date.Format("2006-01-02"), txn.Amount, txn.Category, txn.Description)
	}
	cmd.Printf("%d transactions\n", len(transactions))
	return nil
}
