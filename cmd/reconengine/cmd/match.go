package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fund-reconciliation-engine/internal/matcher"
	"fund-reconciliation-engine/internal/store"
)

// Flags for the matching commands
var (
	matchReconciliationID int64
	matchTransactionID    int64
	matchLedgerLineID     int64
	matchNotes            string
	matchCreatedBy        string

	autoDateTolerance    int
	autoMatchDescription bool

	unmatchedAccountID int64
	unmatchedFrom      string
	unmatchedTo        string
)

var autoMatchCmd = &cobra.Command{
	Use:   "automatch",
	Short: "Automatically match bank transactions against ledger lines",
	Long: `Automatch pairs unmatched bank transactions with ledger lines when
exactly one candidate agrees on amount within the date tolerance.
Transactions with zero or multiple candidates are left unmatched for
manual review. Running it again creates no duplicate matches.

Examples:
  reconengine automatch --reconciliation 1
  reconengine automatch --reconciliation 1 --date-tolerance 5 --match-descriptions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := matcher.DefaultConfig()
		if cmd.Flags().Changed("date-tolerance") {
			cfg.DateToleranceDays = autoDateTolerance
		}
		cfg.MatchDescriptions = autoMatchDescription
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := matcher.NewService(st, nil)
			result, err := svc.AutoMatch(ctx, matchReconciliationID, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("Created %d matches\n", result.MatchesCreated)
			for _, pair := range result.Pairs {
				fmt.Printf("  item %d: transaction %d <-> ledger line %d (%s)\n",
					pair.ItemID, pair.BankTransactionID, pair.LedgerLineID, pair.Amount.StringFixed(2))
			}
			return nil
		})
	},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Manually match a bank transaction with a ledger line",
	Long: `Match records a correspondence an operator asserted by hand. Either
side may be omitted to record a one-sided item, such as a bank fee with
no ledger entry.

Examples:
  reconengine match --reconciliation 1 --transaction 12 --ledger-line 7
  reconengine match --reconciliation 1 --transaction 15 --notes "bank fee"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := matcher.ManualMatchParams{
			ReconciliationID: matchReconciliationID,
			Notes:            matchNotes,
			CreatedBy:        matchCreatedBy,
		}
		if matchTransactionID != 0 {
			params.BankTransactionID = &matchTransactionID
		}
		if matchLedgerLineID != 0 {
			params.LedgerLineID = &matchLedgerLineID
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := matcher.NewService(st, nil)
			item, err := svc.ManualMatch(ctx, params)
			if err != nil {
				return err
			}
			fmt.Printf("Created match item %d (%s)\n", item.ID, item.Amount.StringFixed(2))
			return nil
		})
	},
}

var unmatchCmd = &cobra.Command{
	Use:   "unmatch <item-id>",
	Short: "Undo a match",
	Long: `Unmatch deletes a match item and returns its bank transaction to the
unmatched pool, making it available for matching again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "item-id")
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := matcher.NewService(st, nil)
			if err := svc.Unmatch(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Removed match item %d\n", id)
			return nil
		})
	},
}

var unmatchedCmd = &cobra.Command{
	Use:   "unmatched",
	Short: "List unmatched transactions and ledger lines",
	Long: `Unmatched shows the triage view: bank transactions with no match and
ledger lines no match item has consumed, for an account and date range.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseDateFlag(unmatchedFrom, "from")
		if err != nil {
			return err
		}
		to, err := parseDateFlag(unmatchedTo, "to")
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := matcher.NewService(st, nil)
			set, err := svc.Unmatched(ctx, unmatchedAccountID, from, to)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(set)
		})
	},
}

func init() {
	rootCmd.AddCommand(autoMatchCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(unmatchCmd)
	rootCmd.AddCommand(unmatchedCmd)

	autoMatchCmd.Flags().Int64Var(&matchReconciliationID, "reconciliation", 0, "reconciliation ID (required)")
	autoMatchCmd.Flags().IntVarP(&autoDateTolerance, "date-tolerance", "d", matcher.DefaultDateToleranceDays, "date matching tolerance in days")
	autoMatchCmd.Flags().BoolVar(&autoMatchDescription, "match-descriptions", false, "require description overlap between the two sides")
	autoMatchCmd.MarkFlagRequired("reconciliation")

	matchCmd.Flags().Int64Var(&matchReconciliationID, "reconciliation", 0, "reconciliation ID (required)")
	matchCmd.Flags().Int64Var(&matchTransactionID, "transaction", 0, "bank transaction ID")
	matchCmd.Flags().Int64Var(&matchLedgerLineID, "ledger-line", 0, "ledger line ID")
	matchCmd.Flags().StringVar(&matchNotes, "notes", "", "free-form notes")
	matchCmd.Flags().StringVar(&matchCreatedBy, "created-by", "", "operator identity")
	matchCmd.MarkFlagRequired("reconciliation")

	unmatchedCmd.Flags().Int64Var(&unmatchedAccountID, "account", 0, "bank account ID (required)")
	unmatchedCmd.Flags().StringVar(&unmatchedFrom, "from", "", "range start date (YYYY-MM-DD, required)")
	unmatchedCmd.Flags().StringVar(&unmatchedTo, "to", "", "range end date (YYYY-MM-DD, required)")
	unmatchedCmd.MarkFlagRequired("account")
	unmatchedCmd.MarkFlagRequired("from")
	unmatchedCmd.MarkFlagRequired("to")
}
