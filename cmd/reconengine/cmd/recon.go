package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/recon"
	"fund-reconciliation-engine/internal/store"
)

// Flags for the recon command family
var (
	reconAccountID   int64
	reconStatementID int64
	reconDate        string
	reconStartBal    string
	reconEndBal      string
	reconBookBal     string
	reconStmtBal     string
	reconNotes       string

	reconApprovedBy string
	reconListStatus string
)

var reconCmd = &cobra.Command{
	Use:   "recon",
	Short: "Manage reconciliations",
	Long: `Manage reconciliation lifecycles. A reconciliation opens in
InProgress, moves to Completed once the difference between statement and
book balances is within tolerance, and is then Approved by a reviewer.`,
}

var reconCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a reconciliation for an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := buildReconCreateParams()
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			rec, err := svc.Create(ctx, params)
			if err != nil {
				return err
			}
			fmt.Printf("Created reconciliation %d (difference %s)\n", rec.ID, rec.Difference.StringFixed(2))
			return nil
		})
	},
}

var reconUpdateCmd = &cobra.Command{
	Use:   "update <reconciliation-id>",
	Short: "Update an in-progress reconciliation",
	Long: `Update balances or notes on a reconciliation. The difference is
recomputed only when book and statement balances are supplied together.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "reconciliation-id")
		if err != nil {
			return err
		}
		params, err := buildReconUpdateParams(cmd)
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			rec, err := svc.Update(ctx, id, params)
			if err != nil {
				return err
			}
			fmt.Printf("Updated reconciliation %d (difference %s)\n", rec.ID, rec.Difference.StringFixed(2))
			return nil
		})
	},
}

var reconCompleteCmd = &cobra.Command{
	Use:   "complete <reconciliation-id>",
	Short: "Complete a balanced reconciliation",
	Long: `Complete a reconciliation whose difference is within tolerance.
Completion stamps the bank account's last-reconciled snapshot and marks
the linked statement Reconciled, all in one atomic unit.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "reconciliation-id")
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			rec, err := svc.Complete(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Completed reconciliation %d\n", rec.ID)
			return nil
		})
	},
}

var reconApproveCmd = &cobra.Command{
	Use:   "approve <reconciliation-id>",
	Short: "Approve a completed reconciliation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "reconciliation-id")
		if err != nil {
			return err
		}
		if reconApprovedBy == "" {
			return fmt.Errorf("approved-by is required")
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			rec, err := svc.Approve(ctx, id, reconApprovedBy)
			if err != nil {
				return err
			}
			fmt.Printf("Approved reconciliation %d (by %s)\n", rec.ID, rec.ApprovedBy)
			return nil
		})
	},
}

var reconListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reconciliations",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := store.ReconciliationFilter{}
		if reconAccountID != 0 {
			filter.BankAccountID = &reconAccountID
		}
		if reconListStatus != "" {
			status := model.ReconciliationStatus(reconListStatus)
			if !status.IsValid() {
				return fmt.Errorf("invalid reconciliation status %q", reconListStatus)
			}
			filter.Status = &status
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			recs, err := svc.List(ctx, filter)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(recs)
		})
	},
}

func init() {
	rootCmd.AddCommand(reconCmd)
	reconCmd.AddCommand(reconCreateCmd)
	reconCmd.AddCommand(reconUpdateCmd)
	reconCmd.AddCommand(reconCompleteCmd)
	reconCmd.AddCommand(reconApproveCmd)
	reconCmd.AddCommand(reconListCmd)

	reconCreateCmd.Flags().Int64Var(&reconAccountID, "account", 0, "bank account ID (required)")
	reconCreateCmd.Flags().Int64Var(&reconStatementID, "statement", 0, "statement ID to reconcile against")
	reconCreateCmd.Flags().StringVar(&reconDate, "date", "", "reconciliation date (YYYY-MM-DD, required)")
	reconCreateCmd.Flags().StringVar(&reconStartBal, "start-balance", "0", "period start balance")
	reconCreateCmd.Flags().StringVar(&reconEndBal, "end-balance", "0", "period end balance")
	reconCreateCmd.Flags().StringVar(&reconBookBal, "book-balance", "0", "book balance")
	reconCreateCmd.Flags().StringVar(&reconStmtBal, "statement-balance", "0", "statement balance")
	reconCreateCmd.Flags().StringVar(&reconNotes, "notes", "", "free-form notes")
	reconCreateCmd.MarkFlagRequired("account")
	reconCreateCmd.MarkFlagRequired("date")

	reconUpdateCmd.Flags().StringVar(&reconDate, "date", "", "reconciliation date (YYYY-MM-DD)")
	reconUpdateCmd.Flags().StringVar(&reconStartBal, "start-balance", "", "period start balance")
	reconUpdateCmd.Flags().StringVar(&reconEndBal, "end-balance", "", "period end balance")
	reconUpdateCmd.Flags().StringVar(&reconBookBal, "book-balance", "", "book balance")
	reconUpdateCmd.Flags().StringVar(&reconStmtBal, "statement-balance", "", "statement balance")
	reconUpdateCmd.Flags().StringVar(&reconNotes, "notes", "", "free-form notes")

	reconApproveCmd.Flags().StringVar(&reconApprovedBy, "approved-by", "", "reviewer identity (required)")
	reconApproveCmd.MarkFlagRequired("approved-by")

	reconListCmd.Flags().Int64Var(&reconAccountID, "account", 0, "filter by bank account ID")
	reconListCmd.Flags().StringVar(&reconListStatus, "status", "", "filter by status: IN_PROGRESS, COMPLETED, APPROVED")
}

func buildReconCreateParams() (recon.CreateParams, error) {
	var params recon.CreateParams

	date, err := parseDateFlag(reconDate, "date")
	if err != nil {
		return params, err
	}
	startBal, err := parseAmountFlag(reconStartBal, "start-balance")
	if err != nil {
		return params, err
	}
	endBal, err := parseAmountFlag(reconEndBal, "end-balance")
	if err != nil {
		return params, err
	}
	bookBal, err := parseAmountFlag(reconBookBal, "book-balance")
	if err != nil {
		return params, err
	}
	stmtBal, err := parseAmountFlag(reconStmtBal, "statement-balance")
	if err != nil {
		return params, err
	}

	params = recon.CreateParams{
		BankAccountID:      reconAccountID,
		ReconciliationDate: date,
		StartBalance:       startBal,
		EndBalance:         endBal,
		BookBalance:        bookBal,
		StatementBalance:   stmtBal,
		Notes:              reconNotes,
	}
	if reconStatementID != 0 {
		params.StatementID = &reconStatementID
	}
	return params, nil
}

func buildReconUpdateParams(cmd *cobra.Command) (recon.UpdateParams, error) {
	var params recon.UpdateParams

	if cmd.Flags().Changed("date") {
		date, err := parseDateFlag(reconDate, "date")
		if err != nil {
			return params, err
		}
		params.ReconciliationDate = &date
	}
	setAmount := func(flag, value string, target **decimal.Decimal) error {
		if !cmd.Flags().Changed(flag) {
			return nil
		}
		d, err := parseAmountFlag(value, flag)
		if err != nil {
			return err
		}
		*target = &d
		return nil
	}
	if err := setAmount("start-balance", reconStartBal, &params.StartBalance); err != nil {
		return params, err
	}
	if err := setAmount("end-balance", reconEndBal, &params.EndBalance); err != nil {
		return params, err
	}
	if err := setAmount("book-balance", reconBookBal, &params.BookBalance); err != nil {
		return params, err
	}
	if err := setAmount("statement-balance", reconStmtBal, &params.StatementBalance); err != nil {
		return params, err
	}
	if cmd.Flags().Changed("notes") {
		notes := reconNotes
		params.Notes = &notes
	}
	return params, nil
}
