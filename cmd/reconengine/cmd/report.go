package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fund-reconciliation-engine/internal/reporter"
	"fund-reconciliation-engine/internal/store"
)

// Flags for the report command
var (
	reportReconciliationID int64
	reportFormat           string
	reportOutputFile       string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a reconciliation report",
	Long: `Report assembles a reconciliation's matches, unmatched transactions,
adjustments and summary statistics into a single document.

Examples:
  reconengine report --reconciliation 1
  reconengine report --reconciliation 1 --format json --output report.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := reporter.OutputFormat(reportFormat)
		if !format.IsValid() {
			return fmt.Errorf("invalid output format %q. Valid formats: console, json, csv", reportFormat)
		}

		config := reporter.DefaultConfig()
		config.Format = format
		generator, err := reporter.NewGenerator(config)
		if err != nil {
			return err
		}

		return runWithStore(func(ctx context.Context, st store.Store) error {
			assembler := reporter.NewAssembler(st, nil)
			report, err := assembler.Assemble(ctx, reportReconciliationID)
			if err != nil {
				return err
			}

			output := os.Stdout
			if reportOutputFile != "" {
				output, err = os.Create(reportOutputFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer output.Close()
			}
			return generator.Generate(report, output)
		})
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().Int64Var(&reportReconciliationID, "reconciliation", 0, "reconciliation ID (required)")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "console", "output format: console, json, csv")
	reportCmd.Flags().StringVarP(&reportOutputFile, "output", "o", "", "output file path (default: stdout)")
	reportCmd.MarkFlagRequired("reconciliation")
}
