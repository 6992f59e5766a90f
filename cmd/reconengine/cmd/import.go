package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fund-reconciliation-engine/internal/importer"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

// Flags for the import command
var (
	importStatementID int64
	importFile        string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bank transactions into a statement",
	Long: `Import reads a CSV file of bank transactions and loads them into a
statement. Rows that cannot be parsed are rejected individually; valid
rows are still inserted and the statement moves to Processed.

The CSV file needs a header row. Recognized columns: date, description,
amount, reference, balance, type, check_number. Column order does not
matter and unknown columns are ignored.

Examples:
  reconengine import --statement 1 --file january.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := readImportFile(importFile)
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := importer.NewService(st, nil)
			result, err := svc.Import(ctx, importStatementID, rows)
			if err != nil {
				return err
			}

			fmt.Printf("Import job %s: %d inserted, %d rejected\n",
				result.JobID, result.Inserted, len(result.Errors))
			for _, rowErr := range result.Errors {
				fmt.Printf("  row %d: %s\n", rowErr.Row, rowErr.Message)
			}
			if len(result.Errors) > 0 {
				return apperr.Partial(result.Inserted, len(result.Errors))
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int64Var(&importStatementID, "statement", 0, "statement ID to import into (required)")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "path to transaction CSV file (required)")
	importCmd.MarkFlagRequired("statement")
	importCmd.MarkFlagRequired("file")
}

func readImportFile(path string) ([]importer.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open transaction file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("cannot read CSV header: %w", err)
	}

	columns := map[string]int{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []importer.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read CSV record: %w", err)
		}
		rows = append(rows, importer.Row{
			Date:        field(record, "date"),
			Description: field(record, "description"),
			Amount:      field(record, "amount"),
			Reference:   field(record, "reference"),
			Balance:     field(record, "balance"),
			TypeHint:    field(record, "type"),
			CheckNumber: field(record, "check_number"),
		})
	}
	return rows, nil
}
