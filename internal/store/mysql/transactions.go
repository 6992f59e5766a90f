package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

type transactionRepo struct {
	tx *sql.Tx
}

const transactionColumns = "id, statement_id, transaction_date, description, reference, amount, running_balance, type, check_number, status"

func scanTransaction(row interface{ Scan(...interface{}) error }) (*model.BankTransaction, error) {
	var (
		t           model.BankTransaction
		reference   sql.NullString
		running     decimal.NullDecimal
		checkNumber sql.NullString
	)
	err := row.Scan(&t.ID, &t.StatementID, &t.TransactionDate, &t.Description, &reference,
		&t.Amount, &running, &t.Type, &checkNumber, &t.Status)
	if err != nil {
		return nil, err
	}
	t.Reference = reference.String
	t.CheckNumber = checkNumber.String
	if running.Valid {
		t.RunningBalance = &running.Decimal
	}
	return &t, nil
}

func (r *transactionRepo) BulkInsert(ctx context.Context, txns []*model.BankTransaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	var (
		b    strings.Builder
		args []interface{}
	)
	b.WriteString("INSERT INTO bank_transactions (statement_id, transaction_date, description, reference, amount, running_balance, type, check_number, status) VALUES ")
	for i, t := range txns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")

		var running decimal.NullDecimal
		if t.RunningBalance != nil {
			running = decimal.NullDecimal{Decimal: *t.RunningBalance, Valid: true}
		}
		args = append(args, t.StatementID, t.TransactionDate, t.Description, t.Reference,
			t.Amount, running, t.Type, t.CheckNumber, t.Status)
	}

	res, err := r.tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, apperr.Internal("bulk insert transactions", err)
	}

	// MySQL reports the first auto id of a multi-row insert; ids within
	// the batch are consecutive.
	firstID, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Internal("bulk insert transactions", err)
	}
	for i, t := range txns {
		t.ID = firstID + int64(i)
	}
	return len(txns), nil
}

func (r *transactionRepo) Get(ctx context.Context, id int64) (*model.BankTransaction, error) {
	t, err := scanTransaction(r.tx.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM bank_transactions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("bank transaction", id)
	}
	if err != nil {
		return nil, apperr.Internal("get transaction", err)
	}
	return t, nil
}

func (r *transactionRepo) GetForUpdate(ctx context.Context, id int64) (*model.BankTransaction, error) {
	t, err := scanTransaction(r.tx.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM bank_transactions WHERE id = ? FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("bank transaction", id)
	}
	if err != nil {
		return nil, apperr.Internal("lock transaction", err)
	}
	return t, nil
}

func (r *transactionRepo) List(ctx context.Context, filter store.TransactionFilter) ([]*model.BankTransaction, error) {
	var w where
	if filter.StatementID != nil {
		w.add("statement_id = ?", *filter.StatementID)
	}
	if filter.Status != nil {
		w.add("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		w.add("type = ?", *filter.Type)
	}
	if filter.DateFrom != nil {
		w.add("transaction_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		w.add("transaction_date <= ?", *filter.DateTo)
	}

	query := "SELECT " + transactionColumns + " FROM bank_transactions" + w.sql() +
		" ORDER BY id" + limitOffset(filter.Limit, filter.Offset)
	rows, err := r.tx.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, apperr.Internal("list transactions", err)
	}
	defer rows.Close()

	var out []*model.BankTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, apperr.Internal("list transactions", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list transactions", err)
	}
	return out, nil
}

func (r *transactionRepo) Update(ctx context.Context, txn *model.BankTransaction) error {
	var running decimal.NullDecimal
	if txn.RunningBalance != nil {
		running = decimal.NullDecimal{Decimal: *txn.RunningBalance, Valid: true}
	}
	res, err := r.tx.ExecContext(ctx,
		"UPDATE bank_transactions SET transaction_date = ?, description = ?, reference = ?, amount = ?, running_balance = ?, type = ?, check_number = ?, status = ? WHERE id = ?",
		txn.TransactionDate, txn.Description, txn.Reference, txn.Amount, running,
		txn.Type, txn.CheckNumber, txn.Status, txn.ID)
	if err != nil {
		return apperr.Internal("update transaction", err)
	}
	return requireRow(res, "bank transaction", txn.ID)
}

func (r *transactionRepo) SetStatus(ctx context.Context, id int64, status model.TransactionStatus) error {
	res, err := r.tx.ExecContext(ctx,
		"UPDATE bank_transactions SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return apperr.Internal("set transaction status", err)
	}
	return requireRow(res, "bank transaction", id)
}

func (r *transactionRepo) DeleteByStatement(ctx context.Context, statementID int64) (int64, error) {
	res, err := r.tx.ExecContext(ctx,
		"DELETE FROM bank_transactions WHERE statement_id = ?", statementID)
	if err != nil {
		return 0, apperr.Internal("delete transactions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Internal("delete transactions", err)
	}
	return n, nil
}
