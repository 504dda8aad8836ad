package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hearthledger/hearthledger/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a batch file of transactions",
		Long: `Import transactions from a CSV or OFX/QFX batch file. Every row is
classified, checked against your rules, and matched against transfers.

Examples:
  hearthledger import --household fam1 ~/Downloads/checking_jan.csv
  hearthledger import --household fam1 --map date=Posted --map amount=Value stmt.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("household", "", "household id owning the imported transactions")
	cmd.Flags().StringSlice("map", nil, "CSV field mapping entries, field=column")
	_ = cmd.MarkFlagRequired("household")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	householdID, _ := cmd.Flags().GetString("household")
	mappingEntries, _ := cmd.Flags().GetStringSlice("map")

	fieldMapping, err := parseFieldMapping(mappingEntries)
	if err != nil {
		return err
	}

	filePath := args[0]
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer func() { _ = f.Close() }()

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	defer func() { _ = eng.Close() }()

	job, err := eng.ImportBatch(ctx, householdID, filepath.Base(filePath), f, fieldMapping)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("importing "+filepath.Base(filePath)),
		progressbar.OptionSpinnerType(14))

	// Poll until the job reaches a terminal status.
	for {
		_ = bar.Add(1)

		current, err := eng.GetImport(ctx, householdID, job.ID)
		if err != nil {
			return err
		}
		if current.Status == model.ImportCompleted || current.Status == model.ImportFailed {
			job = current
			break
		}

		select {
		case <-ctx.Done():
			eng.WaitForBackground()
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	_ = bar.Finish()
	cmd.Println()

	if job.Status == model.ImportFailed {
		return fmt.Errorf("import failed: %s", job.FailureReason)
	}

	cmd.Printf("Imported %d of %d rows (%d duplicates, %d errors)\n",
		job.ImportedCount, job.TotalRows, job.DuplicateCount, job.ErrorCount)
	for _, rowErr := range job.RowErrors {
		cmd.Printf("  row %d: %s\n", rowErr.Row, rowErr.Reason)
	}

	return nil
}

func parseFieldMapping(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	mapping := make(map[string]string, len(entries))
	for _, entry := range entries {
		field, column, found := strings.Cut(entry, "=")
		if !found || field == "" || column == "" {
			return nil, errors.New("mapping entries must look like field=column")
		}
		mapping[strings.ToLower(strings.TrimSpace(field))] = strings.TrimSpace(column)
	}
	return mapping, nil
}
