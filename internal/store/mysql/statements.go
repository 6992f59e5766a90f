package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

type accountRepo struct {
	tx *sql.Tx
}

func (r *accountRepo) Create(ctx context.Context, account *model.BankAccount) (int64, error) {
	res, err := r.tx.ExecContext(ctx,
		"INSERT INTO bank_accounts (name, ledger_account_ref, last_reconciled_amount) VALUES (?, ?, ?)",
		account.Name, account.LedgerAccountRef, account.LastReconciledAmount)
	if err != nil {
		return 0, apperr.Internal("create bank account", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Internal("create bank account", err)
	}
	account.ID = id
	return id, nil
}

func (r *accountRepo) Get(ctx context.Context, id int64) (*model.BankAccount, error) {
	var (
		a              model.BankAccount
		reconciledDate sql.NullTime
		reconciledID   sql.NullInt64
	)
	err := r.tx.QueryRowContext(ctx,
		"SELECT id, name, ledger_account_ref, last_reconciled_date, last_reconciled_amount, last_reconciliation_id FROM bank_accounts WHERE id = ?",
		id).Scan(&a.ID, &a.Name, &a.LedgerAccountRef, &reconciledDate, &a.LastReconciledAmount, &reconciledID)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("bank account", id)
	}
	if err != nil {
		return nil, apperr.Internal("get bank account", err)
	}
	if reconciledDate.Valid {
		a.LastReconciledDate = &reconciledDate.Time
	}
	if reconciledID.Valid {
		a.LastReconciliationID = &reconciledID.Int64
	}
	return &a, nil
}

func (r *accountRepo) RecordReconciliation(ctx context.Context, accountID int64, date time.Time, balance decimal.Decimal, reconciliationID int64) error {
	res, err := r.tx.ExecContext(ctx,
		"UPDATE bank_accounts SET last_reconciled_date = ?, last_reconciled_amount = ?, last_reconciliation_id = ? WHERE id = ?",
		date, balance, reconciliationID, accountID)
	if err != nil {
		return apperr.Internal("record reconciliation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Internal("record reconciliation", err)
	}
	if n == 0 {
		return apperr.NotFound("bank account", accountID)
	}
	return nil
}

type statementRepo struct {
	tx *sql.Tx
}

const statementColumns = "id, bank_account_id, statement_date, period_start, period_end, opening_balance, closing_balance, status, source_file_ref, notes"

func scanStatement(row interface{ Scan(...interface{}) error }) (*model.BankStatement, error) {
	var (
		s          model.BankStatement
		sourceFile sql.NullString
		notes      sql.NullString
	)
	err := row.Scan(&s.ID, &s.BankAccountID, &s.StatementDate, &s.PeriodStart, &s.PeriodEnd,
		&s.OpeningBalance, &s.ClosingBalance, &s.Status, &sourceFile, &notes)
	if err != nil {
		return nil, err
	}
	s.SourceFileRef = sourceFile.String
	s.Notes = notes.String
	return &s, nil
}

func (r *statementRepo) Create(ctx context.Context, stmt *model.BankStatement) (int64, error) {
	res, err := r.tx.ExecContext(ctx,
		"INSERT INTO bank_statements (bank_account_id, statement_date, period_start, period_end, opening_balance, closing_balance, status, source_file_ref, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		stmt.BankAccountID, stmt.StatementDate, stmt.PeriodStart, stmt.PeriodEnd,
		stmt.OpeningBalance, stmt.ClosingBalance, stmt.Status, stmt.SourceFileRef, stmt.Notes)
	if err != nil {
		return 0, apperr.Internal("create statement", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Internal("create statement", err)
	}
	stmt.ID = id
	return id, nil
}

func (r *statementRepo) Get(ctx context.Context, id int64) (*model.BankStatement, error) {
	s, err := scanStatement(r.tx.QueryRowContext(ctx,
		"SELECT "+statementColumns+" FROM bank_statements WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("statement", id)
	}
	if err != nil {
		return nil, apperr.Internal("get statement", err)
	}
	return s, nil
}

func (r *statementRepo) List(ctx context.Context, filter store.StatementFilter) ([]*model.BankStatement, error) {
	var w where
	if filter.BankAccountID != nil {
		w.add("bank_account_id = ?", *filter.BankAccountID)
	}
	if filter.Status != nil {
		w.add("status = ?", *filter.Status)
	}
	if filter.DateFrom != nil {
		w.add("statement_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		w.add("statement_date <= ?", *filter.DateTo)
	}

	query := "SELECT " + statementColumns + " FROM bank_statements" + w.sql() +
		" ORDER BY id" + limitOffset(filter.Limit, filter.Offset)
	rows, err := r.tx.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, apperr.Internal("list statements", err)
	}
	defer rows.Close()

	var out []*model.BankStatement
	for rows.Next() {
		s, err := scanStatement(rows)
		if err != nil {
			return nil, apperr.Internal("list statements", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list statements", err)
	}
	return out, nil
}

func (r *statementRepo) Update(ctx context.Context, stmt *model.BankStatement) error {
	res, err := r.tx.ExecContext(ctx,
		"UPDATE bank_statements SET statement_date = ?, period_start = ?, period_end = ?, opening_balance = ?, closing_balance = ?, status = ?, source_file_ref = ?, notes = ? WHERE id = ?",
		stmt.StatementDate, stmt.PeriodStart, stmt.PeriodEnd, stmt.OpeningBalance,
		stmt.ClosingBalance, stmt.Status, stmt.SourceFileRef, stmt.Notes, stmt.ID)
	if err != nil {
		return apperr.Internal("update statement", err)
	}
	return requireRow(res, "statement", stmt.ID)
}

func (r *statementRepo) SetStatus(ctx context.Context, id int64, status model.StatementStatus) error {
	res, err := r.tx.ExecContext(ctx,
		"UPDATE bank_statements SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return apperr.Internal("set statement status", err)
	}
	return requireRow(res, "statement", id)
}

func (r *statementRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.tx.ExecContext(ctx, "DELETE FROM bank_statements WHERE id = ?", id)
	if err != nil {
		return apperr.Internal("delete statement", err)
	}
	return requireRow(res, "statement", id)
}

func requireRow(res sql.Result, entity string, id interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Internal("rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}
