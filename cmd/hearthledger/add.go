package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hearthledger/hearthledger/internal/model"
)

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a single transaction",
		Long: `Record one transaction. It is classified, matched against transfers,
and run through your rules before being stored.

Example:
  hearthledger add --household fam1 --account checking \
    --amount -6.75 --description "STARBUCKS #4521" --date 2024-03-02`,
		RunE: runAdd,
	}

	cmd.Flags().String("household", "", "household id")
	cmd.Flags().String("account", "", "account id")
	cmd.Flags().Float64("amount", 0, "signed amount, positive for inflows")
	cmd.Flags().String("description", "", "transaction description")
	cmd.Flags().String("merchant", "", "merchant name")
	cmd.Flags().String("date", "", "date, YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("household")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func runAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	householdID, _ := cmd.Flags().GetString("household")
	accountID, _ := cmd.Flags().GetString("account")
	amount, _ := cmd.Flags().GetFloat64("amount")
	description, _ := cmd.Flags().GetString("description")
	merchant, _ := cmd.Flags().GetString("merchant")
	dateStr, _ := cmd.Flags().GetString("date")

	date := time.Now().UTC()
	if dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return err
		}
		date = parsed
	}

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = eng.Close() }()

	txn, err := eng.CreateTransaction(ctx, &model.Transaction{
		HouseholdID:  householdID,
		AccountID:    accountID,
		Amount:       amount,
		Description:  description,
		MerchantName: merchant,
		Date:         date,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Recorded %s as %s", txn.ID, txn.Category)
	if txn.IsTransfer {
		cmd.Printf(" (linked to %s)", txn.TransferTransactionID)
	}
	cmd.Println()
	return nil
}
