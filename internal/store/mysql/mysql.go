// Package mysql implements the store contract on MySQL via database/sql.
//
// Atomic units map to SQL transactions; the row locks matching depends on
// are taken with SELECT ... FOR UPDATE. Typed filters are translated into
// parameterized predicates, one per set field, and are never assembled
// from user input strings.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

// Store is a MySQL-backed store.Store implementation
type Store struct {
	db *sql.DB
}

// Open connects to MySQL using the given DSN
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenFromEnv connects using the DATABASE_DSN environment variable,
// loading a .env file first when one is present.
func OpenFromEnv() (*Store, error) {
	_ = godotenv.Load()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN environment variable not set")
	}
	return Open(dsn)
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Atomic runs fn inside one SQL transaction. Any error, including a
// cancelled context, rolls the whole unit back.
func (s *Store) Atomic(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Internal("begin transaction", err)
	}

	if err := fn(&unitOfWork{tx: tx, ctx: ctx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return apperr.Internal("rollback", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Internal("commit", err)
	}
	return nil
}

type unitOfWork struct {
	tx  *sql.Tx
	ctx context.Context
}

func (u *unitOfWork) BankAccounts() store.BankAccountRepo       { return &accountRepo{tx: u.tx} }
func (u *unitOfWork) Statements() store.StatementRepo           { return &statementRepo{tx: u.tx} }
func (u *unitOfWork) Transactions() store.TransactionRepo       { return &transactionRepo{tx: u.tx} }
func (u *unitOfWork) Reconciliations() store.ReconciliationRepo { return &reconciliationRepo{tx: u.tx} }
func (u *unitOfWork) Items() store.ItemRepo                     { return &itemRepo{tx: u.tx} }
func (u *unitOfWork) Adjustments() store.AdjustmentRepo         { return &adjustmentRepo{tx: u.tx} }
func (u *unitOfWork) Ledger() store.LedgerReader                { return &ledgerReader{tx: u.tx} }
func (u *unitOfWork) ImportJobs() store.ImportJobRepo           { return &jobRepo{tx: u.tx} }

// where collects parameterized predicates built from a typed filter
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, arg interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, arg)
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// limitOffset renders pagination. LIMIT/OFFSET values are integers from
// the typed filter, never raw strings.
func limitOffset(limit, offset int) string {
	var b strings.Builder
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
		if offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", offset)
		}
	}
	return b.String()
}
