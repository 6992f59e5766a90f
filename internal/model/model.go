// Package model defines the entities the reconciliation engine persists
// and the enumerations that drive their lifecycles.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Tolerance is the maximum absolute difference at which two monetary
// amounts are considered equal, and at which a reconciliation may be
// completed.
var Tolerance = decimal.New(1, -2) // 0.01

// StatementStatus represents the lifecycle state of a bank statement
type StatementStatus string

const (
	StatementUploaded   StatementStatus = "UPLOADED"
	StatementProcessed  StatementStatus = "PROCESSED"
	StatementReconciled StatementStatus = "RECONCILED"
)

// IsValid checks if the statement status is a known value
func (s StatementStatus) IsValid() bool {
	return s == StatementUploaded || s == StatementProcessed || s == StatementReconciled
}

func (s StatementStatus) String() string {
	return string(s)
}

// TransactionStatus represents the matching state of a bank transaction
type TransactionStatus string

const (
	TransactionUnmatched TransactionStatus = "UNMATCHED"
	TransactionMatched   TransactionStatus = "MATCHED"
	TransactionIgnored   TransactionStatus = "IGNORED"
)

// IsValid checks if the transaction status is a known value
func (s TransactionStatus) IsValid() bool {
	return s == TransactionUnmatched || s == TransactionMatched || s == TransactionIgnored
}

func (s TransactionStatus) String() string {
	return string(s)
}

// TransactionType classifies a bank transaction by direction
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeOther      TransactionType = "OTHER"
)

// IsValid checks if the transaction type is a known value
func (t TransactionType) IsValid() bool {
	return t == TypeDeposit || t == TypeWithdrawal || t == TypeOther
}

func (t TransactionType) String() string {
	return string(t)
}

// ReconciliationStatus represents the lifecycle state of a reconciliation
type ReconciliationStatus string

const (
	ReconciliationInProgress ReconciliationStatus = "IN_PROGRESS"
	ReconciliationCompleted  ReconciliationStatus = "COMPLETED"
	ReconciliationApproved   ReconciliationStatus = "APPROVED"
)

// IsValid checks if the reconciliation status is a known value
func (s ReconciliationStatus) IsValid() bool {
	return s == ReconciliationInProgress || s == ReconciliationCompleted || s == ReconciliationApproved
}

func (s ReconciliationStatus) String() string {
	return string(s)
}

// MatchType distinguishes operator-created matches from heuristic ones
type MatchType string

const (
	MatchAuto   MatchType = "AUTO"
	MatchManual MatchType = "MANUAL"
)

// IsValid checks if the match type is a known value
func (m MatchType) IsValid() bool {
	return m == MatchAuto || m == MatchManual
}

func (m MatchType) String() string {
	return string(m)
}

// AdjustmentStatus represents the approval state of a balancing adjustment
type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "PENDING"
	AdjustmentApproved AdjustmentStatus = "APPROVED"
)

// IsValid checks if the adjustment status is a known value
func (s AdjustmentStatus) IsValid() bool {
	return s == AdjustmentPending || s == AdjustmentApproved
}

func (s AdjustmentStatus) String() string {
	return string(s)
}

// ImportJobStatus represents the state of a bulk transaction import
type ImportJobStatus string

const (
	ImportRunning   ImportJobStatus = "RUNNING"
	ImportCompleted ImportJobStatus = "COMPLETED"
	ImportFailed    ImportJobStatus = "FAILED"
)

// BankAccount is the owning side of statements and reconciliations.
// LedgerAccountRef names the general-ledger account whose lines are
// candidates when matching this bank account's transactions.
type BankAccount struct {
	ID                   int64           `json:"id"`
	Name                 string          `json:"name"`
	LedgerAccountRef     string          `json:"ledger_account_ref"`
	LastReconciledDate   *time.Time      `json:"last_reconciled_date,omitempty"`
	LastReconciledAmount decimal.Decimal `json:"last_reconciled_amount"`
	LastReconciliationID *int64          `json:"last_reconciliation_id,omitempty"`
}

// Validate performs basic validation on the BankAccount
func (a *BankAccount) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("bank account name cannot be empty")
	}
	if strings.TrimSpace(a.LedgerAccountRef) == "" {
		return fmt.Errorf("bank account ledger account reference cannot be empty")
	}
	return nil
}

// BankStatement is a bank-issued record of an account's activity and
// balances for a period.
type BankStatement struct {
	ID             int64           `json:"id"`
	BankAccountID  int64           `json:"bank_account_id"`
	StatementDate  time.Time       `json:"statement_date"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Status         StatementStatus `json:"status"`
	SourceFileRef  string          `json:"source_file_ref,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

// Validate performs basic validation on the BankStatement
func (bs *BankStatement) Validate() error {
	if bs.BankAccountID == 0 {
		return fmt.Errorf("statement bank account reference cannot be empty")
	}
	if bs.StatementDate.IsZero() {
		return fmt.Errorf("statement date cannot be zero")
	}
	if bs.PeriodStart.IsZero() || bs.PeriodEnd.IsZero() {
		return fmt.Errorf("statement period cannot be zero")
	}
	if bs.PeriodEnd.Before(bs.PeriodStart) {
		return fmt.Errorf("statement period end %s is before period start %s",
			bs.PeriodEnd.Format("2006-01-02"), bs.PeriodStart.Format("2006-01-02"))
	}
	if !bs.Status.IsValid() {
		return fmt.Errorf("invalid statement status: %s", bs.Status)
	}
	return nil
}

// BankTransaction is one line item within a statement. Amount is signed;
// positive means an inflow to the bank account.
type BankTransaction struct {
	ID              int64             `json:"id"`
	StatementID     int64             `json:"statement_id"`
	TransactionDate time.Time         `json:"transaction_date"`
	Description     string            `json:"description"`
	Reference       string            `json:"reference,omitempty"`
	Amount          decimal.Decimal   `json:"amount"`
	RunningBalance  *decimal.Decimal  `json:"running_balance,omitempty"`
	Type            TransactionType   `json:"type"`
	CheckNumber     string            `json:"check_number,omitempty"`
	Status          TransactionStatus `json:"status"`
}

// Validate performs basic validation on the BankTransaction
func (t *BankTransaction) Validate() error {
	if t.StatementID == 0 {
		return fmt.Errorf("transaction statement reference cannot be empty")
	}
	if t.TransactionDate.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction description cannot be empty")
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid transaction status: %s", t.Status)
	}
	return nil
}

// AbsoluteAmount returns the unsigned transaction amount
func (t *BankTransaction) AbsoluteAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// IsInflow returns true if the transaction adds funds to the account
func (t *BankTransaction) IsInflow() bool {
	return t.Amount.IsPositive()
}

// ClassifyType derives a transaction type from the signed amount.
// An explicit type hint from the feed takes precedence over this.
func ClassifyType(amount decimal.Decimal) TransactionType {
	switch {
	case amount.IsPositive():
		return TypeDeposit
	case amount.IsNegative():
		return TypeWithdrawal
	default:
		return TypeOther
	}
}

// LedgerLine is a read-only view of one debit/credit entry from the
// organization's own books. The engine never writes this entity.
type LedgerLine struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference,omitempty"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	AccountRef  string          `json:"account_ref"`
}

// Amount returns the nonzero side of the line. At most one of debit and
// credit is nonzero.
func (l *LedgerLine) Amount() decimal.Decimal {
	if !l.Debit.IsZero() {
		return l.Debit
	}
	return l.Credit
}

// Reconciliation certifies that statement and book balances agree for a
// period. Difference is statement balance minus book balance, computed at
// creation and recomputed only when both balances are updated together.
type Reconciliation struct {
	ID                 int64                `json:"id"`
	BankAccountID      int64                `json:"bank_account_id"`
	StatementID        *int64               `json:"statement_id,omitempty"`
	ReconciliationDate time.Time            `json:"reconciliation_date"`
	StartBalance       decimal.Decimal      `json:"start_balance"`
	EndBalance         decimal.Decimal      `json:"end_balance"`
	BookBalance        decimal.Decimal      `json:"book_balance"`
	StatementBalance   decimal.Decimal      `json:"statement_balance"`
	Difference         decimal.Decimal      `json:"difference"`
	Status             ReconciliationStatus `json:"status"`
	Notes              string               `json:"notes,omitempty"`
	ApprovedBy         string               `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time           `json:"approved_at,omitempty"`
}

// Validate performs basic validation on the Reconciliation
func (r *Reconciliation) Validate() error {
	if r.BankAccountID == 0 {
		return fmt.Errorf("reconciliation bank account reference cannot be empty")
	}
	if r.ReconciliationDate.IsZero() {
		return fmt.Errorf("reconciliation date cannot be zero")
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid reconciliation status: %s", r.Status)
	}
	return nil
}

// IsBalanced reports whether the stored difference is within tolerance
func (r *Reconciliation) IsBalanced() bool {
	return r.Difference.Abs().LessThanOrEqual(Tolerance)
}

// ComputeDifference returns statement balance minus book balance
func ComputeDifference(statementBalance, bookBalance decimal.Decimal) decimal.Decimal {
	return statementBalance.Sub(bookBalance)
}

// ReconciliationItem is an asserted correspondence between a bank
// transaction and a ledger line. At least one side must be present;
// Amount holds the absolute value used for reconciliation math.
type ReconciliationItem struct {
	ID                int64           `json:"id"`
	ReconciliationID  int64           `json:"reconciliation_id"`
	BankTransactionID *int64          `json:"bank_transaction_id,omitempty"`
	LedgerLineID      *int64          `json:"ledger_line_id,omitempty"`
	MatchType         MatchType       `json:"match_type"`
	Amount            decimal.Decimal `json:"amount"`
	Notes             string          `json:"notes,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Validate performs basic validation on the ReconciliationItem
func (i *ReconciliationItem) Validate() error {
	if i.ReconciliationID == 0 {
		return fmt.Errorf("item reconciliation reference cannot be empty")
	}
	if i.BankTransactionID == nil && i.LedgerLineID == nil {
		return fmt.Errorf("item must reference a bank transaction or a ledger line")
	}
	if !i.MatchType.IsValid() {
		return fmt.Errorf("invalid match type: %s", i.MatchType)
	}
	if i.Amount.IsNegative() {
		return fmt.Errorf("item amount cannot be negative: %s", i.Amount)
	}
	return nil
}

// Adjustment is an operator-entered balancing entry (bank fee, interest,
// timing difference) attached to a reconciliation.
type Adjustment struct {
	ID               int64            `json:"id"`
	ReconciliationID int64            `json:"reconciliation_id"`
	AdjustmentDate   time.Time        `json:"adjustment_date"`
	Description      string           `json:"description"`
	AdjustmentType   string           `json:"adjustment_type"`
	Amount           decimal.Decimal  `json:"amount"`
	Status           AdjustmentStatus `json:"status"`
}

// Validate performs basic validation on the Adjustment
func (a *Adjustment) Validate() error {
	if a.ReconciliationID == 0 {
		return fmt.Errorf("adjustment reconciliation reference cannot be empty")
	}
	if a.AdjustmentDate.IsZero() {
		return fmt.Errorf("adjustment date cannot be zero")
	}
	if strings.TrimSpace(a.Description) == "" {
		return fmt.Errorf("adjustment description cannot be empty")
	}
	if strings.TrimSpace(a.AdjustmentType) == "" {
		return fmt.Errorf("adjustment type cannot be empty")
	}
	if a.Amount.IsZero() {
		return fmt.Errorf("adjustment amount cannot be zero")
	}
	if !a.Status.IsValid() {
		return fmt.Errorf("invalid adjustment status: %s", a.Status)
	}
	return nil
}

// RowError records the rejection of a single import row
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportJob is the persisted record of one bulk transaction import.
// It survives process restarts and is queryable by id.
type ImportJob struct {
	ID           string          `json:"id"`
	StatementID  int64           `json:"statement_id"`
	Status       ImportJobStatus `json:"status"`
	RowsTotal    int             `json:"rows_total"`
	RowsInserted int             `json:"rows_inserted"`
	RowsRejected int             `json:"rows_rejected"`
	RowErrors    []RowError      `json:"row_errors,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

// WithinTolerance reports whether two amounts differ by at most Tolerance
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// WithinDateTolerance reports whether two dates are at most toleranceDays
// apart, comparing calendar dates and ignoring time of day.
func WithinDateTolerance(a, b time.Time, toleranceDays int) bool {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)

	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(toleranceDays)*24*time.Hour
}
