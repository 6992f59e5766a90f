package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fund-reconciliation-engine/internal/recon"
	"fund-reconciliation-engine/internal/store"
)

// Flags for the adjust command family
var (
	adjustReconciliationID int64
	adjustDate             string
	adjustDescription      string
	adjustType             string
	adjustAmount           string
)

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Manage balancing adjustments",
	Long: `Manage adjustments that explain legitimate differences between bank
and book records, such as bank fees or interest. Adjustments start
Pending and are approved separately.`,
}

var adjustAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a pending adjustment to a reconciliation",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := parseDateFlag(adjustDate, "date")
		if err != nil {
			return err
		}
		amount, err := parseAmountFlag(adjustAmount, "amount")
		if err != nil {
			return err
		}
		params := recon.AdjustmentParams{
			AdjustmentDate: date,
			Description:    adjustDescription,
			AdjustmentType: adjustType,
			Amount:         amount,
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			adj, err := svc.AddAdjustment(ctx, adjustReconciliationID, params)
			if err != nil {
				return err
			}
			fmt.Printf("Added adjustment %d (%s, %s)\n", adj.ID, adj.Status, adj.Amount.StringFixed(2))
			return nil
		})
	},
}

var adjustApproveCmd = &cobra.Command{
	Use:   "approve <adjustment-id>",
	Short: "Approve a pending adjustment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "adjustment-id")
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			adj, err := svc.ApproveAdjustment(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("Approved adjustment %d\n", adj.ID)
			return nil
		})
	},
}

var adjustDeleteCmd = &cobra.Command{
	Use:   "delete <adjustment-id>",
	Short: "Delete an adjustment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "adjustment-id")
		if err != nil {
			return err
		}
		return runWithStore(func(ctx context.Context, st store.Store) error {
			svc := recon.NewService(st, nil)
			if err := svc.DeleteAdjustment(ctx, id); err != nil {
				return err
			}
			fmt.Printf("Deleted adjustment %d\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(adjustCmd)
	adjustCmd.AddCommand(adjustAddCmd)
	adjustCmd.AddCommand(adjustApproveCmd)
	adjustCmd.AddCommand(adjustDeleteCmd)

	adjustAddCmd.Flags().Int64Var(&adjustReconciliationID, "reconciliation", 0, "reconciliation ID (required)")
	adjustAddCmd.Flags().StringVar(&adjustDate, "date", "", "adjustment date (YYYY-MM-DD, required)")
	adjustAddCmd.Flags().StringVar(&adjustDescription, "description", "", "adjustment description (required)")
	adjustAddCmd.Flags().StringVar(&adjustType, "type", "", "adjustment type, e.g. bank_fee, interest (required)")
	adjustAddCmd.Flags().StringVar(&adjustAmount, "amount", "", "adjustment amount (required)")
	adjustAddCmd.MarkFlagRequired("reconciliation")
	adjustAddCmd.MarkFlagRequired("date")
	adjustAddCmd.MarkFlagRequired("description")
	adjustAddCmd.MarkFlagRequired("type")
	adjustAddCmd.MarkFlagRequired("amount")
}
