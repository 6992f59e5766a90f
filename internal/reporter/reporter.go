// Package reporter assembles reconciliation reports and renders them in
// multiple output formats.
//
// A report combines the reconciliation header with its match items,
// adjustments, and summary statistics. Supported output formats:
//   - Console: human-readable tabular output for terminal display
//   - JSON: structured data format for programmatic consumption
//   - CSV: comma-separated item listing for spreadsheet applications
package reporter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
	"fund-reconciliation-engine/pkg/logger"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Config holds configuration options for report generation
type Config struct {
	Format OutputFormat `json:"format"`

	IncludeItems       bool `json:"include_items"`
	IncludeUnmatched   bool `json:"include_unmatched"`
	IncludeAdjustments bool `json:"include_adjustments"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultConfig returns a default report configuration
func DefaultConfig() *Config {
	return &Config{
		Format:             FormatConsole,
		IncludeItems:       true,
		IncludeUnmatched:   true,
		IncludeAdjustments: true,
		CSVDelimiter:       ',',
		CSVHeaders:         true,
	}
}

// Validate validates the report configuration
func (c *Config) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ItemDetail pairs a reconciliation item with the records it links.
type ItemDetail struct {
	Item            *model.ReconciliationItem `json:"item"`
	BankTransaction *model.BankTransaction    `json:"bank_transaction,omitempty"`
	LedgerLine      *model.LedgerLine         `json:"ledger_line,omitempty"`
}

// Summary holds aggregate statistics for a reconciliation.
type Summary struct {
	MatchedItems            int             `json:"matched_items"`
	AutoMatched             int             `json:"auto_matched"`
	ManualMatched           int             `json:"manual_matched"`
	UnmatchedTransactions   int             `json:"unmatched_transactions"`
	UnmatchedLedgerLines    int             `json:"unmatched_ledger_lines"`
	MatchedAmount           decimal.Decimal `json:"matched_amount"`
	PendingAdjustments      int             `json:"pending_adjustments"`
	ApprovedAdjustments     int             `json:"approved_adjustments"`
	PendingAdjustmentTotal  decimal.Decimal `json:"pending_adjustment_total"`
	ApprovedAdjustmentTotal decimal.Decimal `json:"approved_adjustment_total"`
}

// Report is the fully assembled reconciliation report.
type Report struct {
	Reconciliation        *model.Reconciliation    `json:"reconciliation"`
	BankAccount           *model.BankAccount       `json:"bank_account"`
	Statement             *model.BankStatement     `json:"statement,omitempty"`
	Items                 []ItemDetail             `json:"items,omitempty"`
	UnmatchedTransactions []*model.BankTransaction `json:"unmatched_transactions,omitempty"`
	Adjustments           []*model.Adjustment      `json:"adjustments,omitempty"`
	Summary               Summary                  `json:"summary"`
	IsBalanced            bool                     `json:"is_balanced"`
	GeneratedAt           time.Time                `json:"generated_at"`
}

// Assembler builds reports from persisted reconciliation state.
type Assembler struct {
	store store.Store
	log   logger.Logger
}

// NewAssembler creates a report assembler backed by the given store.
func NewAssembler(st store.Store, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.Global()
	}
	return &Assembler{store: st, log: log.WithComponent("reporter")}
}

// Assemble loads a reconciliation and builds its report.
func (a *Assembler) Assemble(ctx context.Context, reconciliationID int64) (*Report, error) {
	report := &Report{GeneratedAt: time.Now()}
	var unconsumedLines int

	err := a.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		rec, err := uow.Reconciliations().Get(ctx, reconciliationID)
		if err != nil {
			return err
		}
		report.Reconciliation = rec
		report.IsBalanced = rec.IsBalanced()

		account, err := uow.BankAccounts().Get(ctx, rec.BankAccountID)
		if err != nil {
			return err
		}
		report.BankAccount = account

		if rec.StatementID != nil {
			stmt, err := uow.Statements().Get(ctx, *rec.StatementID)
			if err != nil {
				return err
			}
			report.Statement = stmt
		}

		items, err := uow.Items().ListByReconciliation(ctx, reconciliationID)
		if err != nil {
			return err
		}
		for _, item := range items {
			detail := ItemDetail{Item: item}
			if item.BankTransactionID != nil {
				tx, err := uow.Transactions().Get(ctx, *item.BankTransactionID)
				if err != nil {
					return err
				}
				detail.BankTransaction = tx
			}
			if item.LedgerLineID != nil {
				line, err := uow.Ledger().Get(ctx, *item.LedgerLineID)
				if err != nil {
					return err
				}
				detail.LedgerLine = line
			}
			report.Items = append(report.Items, detail)
		}

		if report.Statement != nil {
			unmatchedStatus := model.TransactionUnmatched
			unmatched, err := uow.Transactions().List(ctx, store.TransactionFilter{
				StatementID: rec.StatementID,
				Status:      &unmatchedStatus,
			})
			if err != nil {
				return err
			}
			report.UnmatchedTransactions = unmatched

			lines, err := uow.Ledger().FindCandidateLines(ctx, account.LedgerAccountRef,
				report.Statement.PeriodStart, report.Statement.PeriodEnd)
			if err != nil {
				return err
			}
			unconsumedLines = len(lines)
		}

		adjustments, err := uow.Adjustments().ListByReconciliation(ctx, reconciliationID)
		if err != nil {
			return err
		}
		report.Adjustments = adjustments

		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Summary = summarize(report)
	report.Summary.UnmatchedLedgerLines = unconsumedLines
	a.log.WithFields(logger.Fields{
		"reconciliation_id": reconciliationID,
		"matched_items":     report.Summary.MatchedItems,
		"unmatched":         report.Summary.UnmatchedTransactions,
	}).Debug("Report assembled")
	return report, nil
}

func summarize(report *Report) Summary {
	s := Summary{
		MatchedAmount:           decimal.Zero,
		PendingAdjustmentTotal:  decimal.Zero,
		ApprovedAdjustmentTotal: decimal.Zero,
	}

	for _, detail := range report.Items {
		s.MatchedItems++
		switch detail.Item.MatchType {
		case model.MatchAuto:
			s.AutoMatched++
		case model.MatchManual:
			s.ManualMatched++
		}
		s.MatchedAmount = s.MatchedAmount.Add(detail.Item.Amount)
	}

	s.UnmatchedTransactions = len(report.UnmatchedTransactions)

	for _, adj := range report.Adjustments {
		switch adj.Status {
		case model.AdjustmentPending:
			s.PendingAdjustments++
			s.PendingAdjustmentTotal = s.PendingAdjustmentTotal.Add(adj.Amount)
		case model.AdjustmentApproved:
			s.ApprovedAdjustments++
			s.ApprovedAdjustmentTotal = s.ApprovedAdjustmentTotal.Add(adj.Amount)
		}
	}

	return s
}

// Generator renders assembled reports in the configured output format.
type Generator struct {
	config *Config
}

// NewGenerator creates a report generator with the specified configuration
func NewGenerator(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &Generator{config: config}, nil
}

// Generate writes a report to the provided writer in the configured format.
func (g *Generator) Generate(report *Report, writer io.Writer) error {
	if report == nil {
		return apperr.Validation("report", "report cannot be nil")
	}

	switch g.config.Format {
	case FormatConsole:
		return g.generateConsole(report, writer)
	case FormatJSON:
		return g.generateJSON(report, writer)
	case FormatCSV:
		return g.generateCSV(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", g.config.Format)
	}
}

func (g *Generator) generateConsole(report *Report, writer io.Writer) error {
	rec := report.Reconciliation

	fmt.Fprintf(writer, "RECONCILIATION REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== HEADER ===\n")
	fmt.Fprintf(writer, "Reconciliation ID:   %d\n", rec.ID)
	fmt.Fprintf(writer, "Bank Account:        %s\n", report.BankAccount.Name)
	fmt.Fprintf(writer, "As Of:               %s\n", rec.ReconciliationDate.Format("2006-01-02"))
	fmt.Fprintf(writer, "Status:              %s\n", rec.Status)
	if report.Statement != nil {
		fmt.Fprintf(writer, "Statement:           %d (%s, %s to %s)\n",
			report.Statement.ID, report.Statement.Status,
			report.Statement.PeriodStart.Format("2006-01-02"),
			report.Statement.PeriodEnd.Format("2006-01-02"))
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== BALANCES ===\n")
	fmt.Fprintf(writer, "Book Balance:        %s\n", rec.BookBalance.StringFixed(2))
	fmt.Fprintf(writer, "Statement Balance:   %s\n", rec.StatementBalance.StringFixed(2))
	fmt.Fprintf(writer, "Difference:          %s\n", rec.Difference.StringFixed(2))
	fmt.Fprintf(writer, "Balanced:            %t\n\n", report.IsBalanced)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	s := report.Summary
	fmt.Fprintf(writer, "%-28s %d\n", "Matched Items:", s.MatchedItems)
	fmt.Fprintf(writer, "%-28s %d\n", "  Auto:", s.AutoMatched)
	fmt.Fprintf(writer, "%-28s %d\n", "  Manual:", s.ManualMatched)
	fmt.Fprintf(writer, "%-28s %d\n", "Unmatched Transactions:", s.UnmatchedTransactions)
	fmt.Fprintf(writer, "%-28s %d\n", "Unmatched Ledger Lines:", s.UnmatchedLedgerLines)
	fmt.Fprintf(writer, "%-28s %s\n", "Matched Amount:", s.MatchedAmount.StringFixed(2))
	fmt.Fprintf(writer, "%-28s %d (%s)\n", "Pending Adjustments:", s.PendingAdjustments, s.PendingAdjustmentTotal.StringFixed(2))
	fmt.Fprintf(writer, "%-28s %d (%s)\n\n", "Approved Adjustments:", s.ApprovedAdjustments, s.ApprovedAdjustmentTotal.StringFixed(2))

	if g.config.IncludeItems && len(report.Items) > 0 {
		fmt.Fprintf(writer, "=== MATCHED ITEMS ===\n")
		fmt.Fprintf(writer, "%-8s %-8s %-12s %-12s %-12s %s\n",
			"Item", "Type", "Amount", "Bank Txn", "Ledger", "Description")
		for _, detail := range report.Items {
			fmt.Fprintf(writer, "%-8d %-8s %-12s %-12s %-12s %s\n",
				detail.Item.ID,
				detail.Item.MatchType,
				detail.Item.Amount.StringFixed(2),
				refString(detail.Item.BankTransactionID),
				refString(detail.Item.LedgerLineID),
				itemDescription(detail))
		}
		fmt.Fprintf(writer, "\n")
	}

	if g.config.IncludeUnmatched && len(report.UnmatchedTransactions) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED BANK TRANSACTIONS ===\n")
		fmt.Fprintf(writer, "%-8s %-12s %-12s %s\n", "ID", "Date", "Amount", "Description")
		for _, tx := range report.UnmatchedTransactions {
			fmt.Fprintf(writer, "%-8d %-12s %-12s %s\n",
				tx.ID,
				tx.TransactionDate.Format("2006-01-02"),
				tx.Amount.StringFixed(2),
				tx.Description)
		}
		fmt.Fprintf(writer, "\n")
	}

	if g.config.IncludeAdjustments && len(report.Adjustments) > 0 {
		fmt.Fprintf(writer, "=== ADJUSTMENTS ===\n")
		fmt.Fprintf(writer, "%-8s %-12s %-10s %-12s %s\n", "ID", "Date", "Status", "Amount", "Description")
		for _, adj := range report.Adjustments {
			fmt.Fprintf(writer, "%-8d %-12s %-10s %-12s %s\n",
				adj.ID,
				adj.AdjustmentDate.Format("2006-01-02"),
				adj.Status,
				adj.Amount.StringFixed(2),
				adj.Description)
		}
	}

	return nil
}

func (g *Generator) generateJSON(report *Report, writer io.Writer) error {
	filtered := *report
	if !g.config.IncludeItems {
		filtered.Items = nil
	}
	if !g.config.IncludeUnmatched {
		filtered.UnmatchedTransactions = nil
	}
	if !g.config.IncludeAdjustments {
		filtered.Adjustments = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&filtered)
}

func (g *Generator) generateCSV(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = g.config.CSVDelimiter
	defer csvWriter.Flush()

	if g.config.CSVHeaders {
		headers := []string{"Type", "ID", "Date", "Amount", "Match_Type", "Status", "Description"}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	if g.config.IncludeItems {
		for _, detail := range report.Items {
			record := []string{
				"Matched Item",
				fmt.Sprintf("%d", detail.Item.ID),
				detail.Item.CreatedAt.Format("2006-01-02"),
				detail.Item.Amount.StringFixed(2),
				detail.Item.MatchType.String(),
				"Matched",
				itemDescription(detail),
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write matched item record: %w", err)
			}
		}
	}

	if g.config.IncludeUnmatched {
		for _, tx := range report.UnmatchedTransactions {
			record := []string{
				"Unmatched Transaction",
				fmt.Sprintf("%d", tx.ID),
				tx.TransactionDate.Format("2006-01-02"),
				tx.Amount.StringFixed(2),
				"",
				tx.Status.String(),
				tx.Description,
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write unmatched transaction record: %w", err)
			}
		}
	}

	if g.config.IncludeAdjustments {
		for _, adj := range report.Adjustments {
			record := []string{
				"Adjustment",
				fmt.Sprintf("%d", adj.ID),
				adj.AdjustmentDate.Format("2006-01-02"),
				adj.Amount.StringFixed(2),
				"",
				adj.Status.String(),
				adj.Description,
			}
			if err := csvWriter.Write(record); err != nil {
				return fmt.Errorf("failed to write adjustment record: %w", err)
			}
		}
	}

	return nil
}

func refString(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}

func itemDescription(detail ItemDetail) string {
	if detail.BankTransaction != nil {
		return detail.BankTransaction.Description
	}
	if detail.LedgerLine != nil {
		return detail.LedgerLine.Description
	}
	return detail.Item.Notes
}
