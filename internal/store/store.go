// Package store defines the persistence contract of the reconciliation
// engine: per-entity repositories, typed query filters, and the atomic
// unit of work every mutating operation runs inside.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
)

// Store opens atomic units of work. Everything executed inside the
// callback commits together or not at all; an error (or a cancelled
// context) rolls the whole unit back.
type Store interface {
	Atomic(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// UnitOfWork exposes the repositories bound to one atomic unit.
type UnitOfWork interface {
	BankAccounts() BankAccountRepo
	Statements() StatementRepo
	Transactions() TransactionRepo
	Reconciliations() ReconciliationRepo
	Items() ItemRepo
	Adjustments() AdjustmentRepo
	Ledger() LedgerReader
	ImportJobs() ImportJobRepo
}

// StatementFilter selects statements. Nil fields are not applied; each
// set field maps to exactly one predicate.
type StatementFilter struct {
	BankAccountID *int64
	Status        *model.StatementStatus
	DateFrom      *time.Time
	DateTo        *time.Time
	Limit         int
	Offset        int
}

// TransactionFilter selects bank transactions within a statement.
type TransactionFilter struct {
	StatementID *int64
	Status      *model.TransactionStatus
	Type        *model.TransactionType
	DateFrom    *time.Time
	DateTo      *time.Time
	Limit       int
	Offset      int
}

// ReconciliationFilter selects reconciliations.
type ReconciliationFilter struct {
	BankAccountID *int64
	Status        *model.ReconciliationStatus
	DateFrom      *time.Time
	DateTo        *time.Time
	Limit         int
	Offset        int
}

// BankAccountRepo persists bank accounts and their reconciliation snapshot.
type BankAccountRepo interface {
	Create(ctx context.Context, account *model.BankAccount) (int64, error)
	Get(ctx context.Context, id int64) (*model.BankAccount, error)

	// RecordReconciliation updates the account's last-reconciliation
	// snapshot. Called only by the reconciliation controller on Complete.
	RecordReconciliation(ctx context.Context, accountID int64, date time.Time, balance decimal.Decimal, reconciliationID int64) error
}

// StatementRepo persists bank statements.
type StatementRepo interface {
	Create(ctx context.Context, stmt *model.BankStatement) (int64, error)
	Get(ctx context.Context, id int64) (*model.BankStatement, error)
	List(ctx context.Context, filter StatementFilter) ([]*model.BankStatement, error)
	Update(ctx context.Context, stmt *model.BankStatement) error
	SetStatus(ctx context.Context, id int64, status model.StatementStatus) error
	Delete(ctx context.Context, id int64) error
}

// TransactionRepo persists bank transactions.
type TransactionRepo interface {
	BulkInsert(ctx context.Context, txns []*model.BankTransaction) (int, error)
	Get(ctx context.Context, id int64) (*model.BankTransaction, error)

	// GetForUpdate locks the transaction row for the remainder of the
	// unit of work. Matching takes this lock before evaluating
	// candidates and before writing a match or unmatch.
	GetForUpdate(ctx context.Context, id int64) (*model.BankTransaction, error)

	List(ctx context.Context, filter TransactionFilter) ([]*model.BankTransaction, error)
	Update(ctx context.Context, txn *model.BankTransaction) error
	SetStatus(ctx context.Context, id int64, status model.TransactionStatus) error
	DeleteByStatement(ctx context.Context, statementID int64) (int64, error)
}

// ReconciliationRepo persists reconciliations.
type ReconciliationRepo interface {
	Create(ctx context.Context, rec *model.Reconciliation) (int64, error)
	Get(ctx context.Context, id int64) (*model.Reconciliation, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Reconciliation, error)
	List(ctx context.Context, filter ReconciliationFilter) ([]*model.Reconciliation, error)
	Update(ctx context.Context, rec *model.Reconciliation) error

	// HasInProgress reports whether the account already has an open
	// reconciliation.
	HasInProgress(ctx context.Context, bankAccountID int64) (bool, error)

	// ReferencesStatement reports whether any reconciliation links the
	// statement. Such a statement cannot be deleted.
	ReferencesStatement(ctx context.Context, statementID int64) (bool, error)
}

// ItemRepo persists reconciliation items (matches).
type ItemRepo interface {
	Create(ctx context.Context, item *model.ReconciliationItem) (int64, error)
	Get(ctx context.Context, id int64) (*model.ReconciliationItem, error)
	ListByReconciliation(ctx context.Context, reconciliationID int64) ([]*model.ReconciliationItem, error)
	Delete(ctx context.Context, id int64) error
	ExistsForTransaction(ctx context.Context, transactionID int64) (bool, error)

	// ExistsForLedgerLine reports whether any item already consumes the
	// ledger line. A line backs at most one match.
	ExistsForLedgerLine(ctx context.Context, ledgerLineID int64) (bool, error)
}

// AdjustmentRepo persists balancing adjustments.
type AdjustmentRepo interface {
	Create(ctx context.Context, adj *model.Adjustment) (int64, error)
	Get(ctx context.Context, id int64) (*model.Adjustment, error)
	ListByReconciliation(ctx context.Context, reconciliationID int64) ([]*model.Adjustment, error)
	Update(ctx context.Context, adj *model.Adjustment) error
	Delete(ctx context.Context, id int64) error
}

// LedgerReader is the read-only view into the external ledger. The
// engine never writes through this interface and never locks its rows.
type LedgerReader interface {
	Get(ctx context.Context, id int64) (*model.LedgerLine, error)

	// FindCandidateLines returns lines for the account within the date
	// window that are not already consumed by any reconciliation item.
	FindCandidateLines(ctx context.Context, accountRef string, from, to time.Time) ([]*model.LedgerLine, error)
}

// ImportJobRepo persists import job records.
type ImportJobRepo interface {
	Create(ctx context.Context, job *model.ImportJob) error
	Get(ctx context.Context, id string) (*model.ImportJob, error)
	Update(ctx context.Context, job *model.ImportJob) error
}
