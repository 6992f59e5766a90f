package mysql

import (
	"context"
	"database/sql"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

type reconciliationRepo struct {
	tx *sql.Tx
}

const reconciliationColumns = "id, bank_account_id, statement_id, reconciliation_date, start_balance, end_balance, book_balance, statement_balance, difference, status, notes, approved_by, approved_at"

func scanReconciliation(row interface{ Scan(...interface{}) error }) (*model.Reconciliation, error) {
	var (
		rec         model.Reconciliation
		statementID sql.NullInt64
		notes       sql.NullString
		approvedBy  sql.NullString
		approvedAt  sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.BankAccountID, &statementID, &rec.ReconciliationDate,
		&rec.StartBalance, &rec.EndBalance, &rec.BookBalance, &rec.StatementBalance,
		&rec.Difference, &rec.Status, &notes, &approvedBy, &approvedAt)
	if err != nil {
		return nil, err
	}
	if statementID.Valid {
		rec.StatementID = &statementID.Int64
	}
	rec.Notes = notes.String
	rec.ApprovedBy = approvedBy.String
	if approvedAt.Valid {
		rec.ApprovedAt = &approvedAt.Time
	}
	return &rec, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func (r *reconciliationRepo) Create(ctx context.Context, rec *model.Reconciliation) (int64, error) {
	res, err := r.tx.ExecContext(ctx,
		"INSERT INTO reconciliations (bank_account_id, statement_id, reconciliation_date, start_balance, end_balance, book_balance, statement_balance, difference, status, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.BankAccountID, nullInt64(rec.StatementID), rec.ReconciliationDate,
		rec.StartBalance, rec.EndBalance, rec.BookBalance, rec.StatementBalance,
		rec.Difference, rec.Status, rec.Notes)
	if err != nil {
		return 0, apperr.Internal("create reconciliation", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Internal("create reconciliation", err)
	}
	rec.ID = id
	return id, nil
}

func (r *reconciliationRepo) Get(ctx context.Context, id int64) (*model.Reconciliation, error) {
	rec, err := scanReconciliation(r.tx.QueryRowContext(ctx,
		"SELECT "+reconciliationColumns+" FROM reconciliations WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("reconciliation", id)
	}
	if err != nil {
		return nil, apperr.Internal("get reconciliation", err)
	}
	return rec, nil
}

func (r *reconciliationRepo) GetForUpdate(ctx context.Context, id int64) (*model.Reconciliation, error) {
	rec, err := scanReconciliation(r.tx.QueryRowContext(ctx,
		"SELECT "+reconciliationColumns+" FROM reconciliations WHERE id = ? FOR UPDATE", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("reconciliation", id)
	}
	if err != nil {
		return nil, apperr.Internal("lock reconciliation", err)
	}
	return rec, nil
}

func (r *reconciliationRepo) List(ctx context.Context, filter store.ReconciliationFilter) ([]*model.Reconciliation, error) {
	var w where
	if filter.BankAccountID != nil {
		w.add("bank_account_id = ?", *filter.BankAccountID)
	}
	if filter.Status != nil {
		w.add("status = ?", *filter.Status)
	}
	if filter.DateFrom != nil {
		w.add("reconciliation_date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		w.add("reconciliation_date <= ?", *filter.DateTo)
	}

	query := "SELECT " + reconciliationColumns + " FROM reconciliations" + w.sql() +
		" ORDER BY id" + limitOffset(filter.Limit, filter.Offset)
	rows, err := r.tx.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, apperr.Internal("list reconciliations", err)
	}
	defer rows.Close()

	var out []*model.Reconciliation
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, apperr.Internal("list reconciliations", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list reconciliations", err)
	}
	return out, nil
}

func (r *reconciliationRepo) Update(ctx context.Context, rec *model.Reconciliation) error {
	var approvedAt sql.NullTime
	if rec.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *rec.ApprovedAt, Valid: true}
	}
	res, err := r.tx.ExecContext(ctx,
		"UPDATE reconciliations SET statement_id = ?, reconciliation_date = ?, start_balance = ?, end_balance = ?, book_balance = ?, statement_balance = ?, difference = ?, status = ?, notes = ?, approved_by = ?, approved_at = ? WHERE id = ?",
		nullInt64(rec.StatementID), rec.ReconciliationDate, rec.StartBalance, rec.EndBalance,
		rec.BookBalance, rec.StatementBalance, rec.Difference, rec.Status, rec.Notes,
		rec.ApprovedBy, approvedAt, rec.ID)
	if err != nil {
		return apperr.Internal("update reconciliation", err)
	}
	return requireRow(res, "reconciliation", rec.ID)
}

func (r *reconciliationRepo) HasInProgress(ctx context.Context, bankAccountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reconciliations WHERE bank_account_id = ? AND status = ?)",
		bankAccountID, model.ReconciliationInProgress).Scan(&exists)
	if err != nil {
		return false, apperr.Internal("check in-progress reconciliation", err)
	}
	return exists, nil
}

func (r *reconciliationRepo) ReferencesStatement(ctx context.Context, statementID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reconciliations WHERE statement_id = ?)",
		statementID).Scan(&exists)
	if err != nil {
		return false, apperr.Internal("check statement references", err)
	}
	return exists, nil
}
