package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/recon"
	"fund-reconciliation-engine/internal/store"
)

// Flags for the account and statement commands
var (
	accountName      string
	accountLedgerRef string

	stmtAccountID      int64
	stmtDate           string
	stmtPeriodStart    string
	stmtPeriodEnd      string
	stmtOpeningBalance string
	stmtClosingBalance string
	stmtSourceFileRef  string
	stmtNotes          string

	stmtListStatus string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage bank accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a bank account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			account, err := svc.CreateBankAccount(ctx, accountName, accountLedgerRef)
			if err != nil {
				return err
			}
			fmt.Printf("Created bank account %d (%s)\n", account.ID, account.Name)
			return nil
		})
	},
}

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Manage bank statements",
}

var statementCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register an uploaded bank statement",
	Long: `Register a bank statement for an account. The statement starts in
Uploaded state; importing transactions moves it to Processed, and
completing a reconciliation against it moves it to Reconciled.

Examples:
  reconengine statement create --account 1 --date 2024-01-31 \
    --start 2024-01-01 --end 2024-01-31 \
    --opening-balance 10000.00 --closing-balance 10500.00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := buildStatementParams()
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			stmt, err := svc.CreateStatement(ctx, params)
			if err != nil {
				return err
			}
			fmt.Printf("Created statement %d (%s)\n", stmt.ID, stmt.Status)
			return nil
		})
	},
}

var statementListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bank statements",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := store.StatementFilter{}
		if stmtAccountID != 0 {
			filter.BankAccountID = &stmtAccountID
		}
		if stmtListStatus != "" {
			status := model.StatementStatus(stmtListStatus)
			if !status.IsValid() {
				return fmt.Errorf("invalid statement status %q", stmtListStatus)
			}
			filter.Status = &status
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			statements, err := svc.ListStatements(ctx, filter)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(statements)
		})
	},
}

var statementDeleteCmd = &cobra.Command{
	Use:   "delete <statement-id>",
	Short: "Delete a statement and its imported transactions",
	Long: `Delete a statement that was uploaded by mistake. The statement's
imported transactions are removed with it. Statements that have been
reconciled, or that a reconciliation refers to, cannot be deleted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "statement-id")
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			if err := svc.DeleteStatement(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted statement %d\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountCreateCmd)

	accountCreateCmd.Flags().StringVar(&accountName, "name", "", "account display name (required)")
	accountCreateCmd.Flags().StringVar(&accountLedgerRef, "ledger-ref", "", "ledger account reference (required)")
	accountCreateCmd.MarkFlagRequired("name")
	accountCreateCmd.MarkFlagRequired("ledger-ref")

	rootCmd.AddCommand(statementCmd)
	statementCmd.AddCommand(statementCreateCmd)
	statementCmd.AddCommand(statementListCmd)
	statementCmd.AddCommand(statementDeleteCmd)

	statementCreateCmd.Flags().Int64Var(&stmtAccountID, "account", 0, "bank account ID (required)")
	statementCreateCmd.Flags().StringVar(&stmtDate, "date", "", "statement date (YYYY-MM-DD, required)")
	statementCreateCmd.Flags().StringVar(&stmtPeriodStart, "start", "", "period start date (YYYY-MM-DD, required)")
	statementCreateCmd.Flags().StringVar(&stmtPeriodEnd, "end", "", "period end date (YYYY-MM-DD, required)")
	statementCreateCmd.Flags().StringVar(&stmtOpeningBalance, "opening-balance", "0", "opening balance")
	statementCreateCmd.Flags().StringVar(&stmtClosingBalance, "closing-balance", "0", "closing balance")
	statementCreateCmd.Flags().StringVar(&stmtSourceFileRef, "source-file", "", "original upload file reference")
	statementCreateCmd.Flags().StringVar(&stmtNotes, "notes", "", "free-form notes")
	statementCreateCmd.MarkFlagRequired("account")
	statementCreateCmd.MarkFlagRequired("date")
	statementCreateCmd.MarkFlagRequired("start")
	statementCreateCmd.MarkFlagRequired("end")

	statementListCmd.Flags().Int64Var(&stmtAccountID, "account", 0, "filter by bank account ID")
	statementListCmd.Flags().StringVar(&stmtListStatus, "status", "", "filter by status: UPLOADED, PROCESSED, RECONCILED")
}

func buildStatementParams() (recon.StatementParams, error) {
	var params recon.StatementParams

	date, err := parseDateFlag(stmtDate, "date")
	if err != nil {
		return params, err
	}
	start, err := parseDateFlag(stmtPeriodStart, "start")
	if err != nil {
		return params, err
	}
	end, err := parseDateFlag(stmtPeriodEnd, "end")
	if err != nil {
		return params, err
	}
	opening, err := parseAmountFlag(stmtOpeningBalance, "opening-balance")
	if err != nil {
		return params, err
	}
	closing, err := parseAmountFlag(stmtClosingBalance, "closing-balance")
	if err != nil {
		return params, err
	}

	params = recon.StatementParams{
		BankAccountID:  stmtAccountID,
		StatementDate:  date,
		PeriodStart:    start,
		PeriodEnd:      end,
		OpeningBalance: opening,
		ClosingBalance: closing,
		SourceFileRef:  stmtSourceFileRef,
		Notes:          stmtNotes,
	}
	return params, nil
}

func parseDateFlag(value, name string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format. Use YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

func parseAmountFlag(value, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s amount %q: %w", name, value, err)
	}
	return d, nil
}

func parseID(value, name string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	return id, nil
}
