package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/pkg/apperr"
)

type itemRepo struct {
	tx *sql.Tx
}

const itemColumns = "id, reconciliation_id, bank_transaction_id, ledger_line_id, match_type, amount, notes, created_by, created_at"

func scanItem(row interface{ Scan(...interface{}) error }) (*model.ReconciliationItem, error) {
	var (
		i         model.ReconciliationItem
		txnID     sql.NullInt64
		lineID    sql.NullInt64
		notes     sql.NullString
		createdBy sql.NullString
	)
	err := row.Scan(&i.ID, &i.ReconciliationID, &txnID, &lineID, &i.MatchType,
		&i.Amount, &notes, &createdBy, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	if txnID.Valid {
		i.BankTransactionID = &txnID.Int64
	}
	if lineID.Valid {
		i.LedgerLineID = &lineID.Int64
	}
	i.Notes = notes.String
	i.CreatedBy = createdBy.String
	return &i, nil
}

func (r *itemRepo) Create(ctx context.Context, item *model.ReconciliationItem) (int64, error) {
	res, err := r.tx.ExecContext(ctx,
		"INSERT INTO reconciliation_items (reconciliation_id, bank_transaction_id, ledger_line_id, match_type, amount, notes, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		item.ReconciliationID, nullInt64(item.BankTransactionID), nullInt64(item.LedgerLineID),
		item.MatchType, item.Amount, item.Notes, item.CreatedBy, item.CreatedAt)
	if err != nil {
		return 0, apperr.Internal("create reconciliation item", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Internal("create reconciliation item", err)
	}
	item.ID = id
	return id, nil
}

func (r *itemRepo) Get(ctx context.Context, id int64) (*model.ReconciliationItem, error) {
	i, err := scanItem(r.tx.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM reconciliation_items WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("reconciliation item", id)
	}
	if err != nil {
		return nil, apperr.Internal("get reconciliation item", err)
	}
	return i, nil
}

func (r *itemRepo) ListByReconciliation(ctx context.Context, reconciliationID int64) ([]*model.ReconciliationItem, error) {
	rows, err := r.tx.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM reconciliation_items WHERE reconciliation_id = ? ORDER BY id",
		reconciliationID)
	if err != nil {
		return nil, apperr.Internal("list reconciliation items", err)
	}
	defer rows.Close()

	var out []*model.ReconciliationItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, apperr.Internal("list reconciliation items", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list reconciliation items", err)
	}
	return out, nil
}

func (r *itemRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.tx.ExecContext(ctx, "DELETE FROM reconciliation_items WHERE id = ?", id)
	if err != nil {
		return apperr.Internal("delete reconciliation item", err)
	}
	return requireRow(res, "reconciliation item", id)
}

func (r *itemRepo) ExistsForTransaction(ctx context.Context, transactionID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reconciliation_items WHERE bank_transaction_id = ?)",
		transactionID).Scan(&exists)
	if err != nil {
		return false, apperr.Internal("check transaction match", err)
	}
	return exists, nil
}

func (r *itemRepo) ExistsForLedgerLine(ctx context.Context, ledgerLineID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reconciliation_items WHERE ledger_line_id = ?)",
		ledgerLineID).Scan(&exists)
	if err != nil {
		return false, apperr.Internal("check ledger line match", err)
	}
	return exists, nil
}

type adjustmentRepo struct {
	tx *sql.Tx
}

const adjustmentColumns = "id, reconciliation_id, adjustment_date, description, adjustment_type, amount, status"

func scanAdjustment(row interface{ Scan(...interface{}) error }) (*model.Adjustment, error) {
	var a model.Adjustment
	err := row.Scan(&a.ID, &a.ReconciliationID, &a.AdjustmentDate, &a.Description,
		&a.AdjustmentType, &a.Amount, &a.Status)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *adjustmentRepo) Create(ctx context.Context, adj *model.Adjustment) (int64, error) {
	res, err := r.tx.ExecContext(ctx,
		"INSERT INTO adjustments (reconciliation_id, adjustment_date, description, adjustment_type, amount, status) VALUES (?, ?, ?, ?, ?, ?)",
		adj.ReconciliationID, adj.AdjustmentDate, adj.Description, adj.AdjustmentType,
		adj.Amount, adj.Status)
	if err != nil {
		return 0, apperr.Internal("create adjustment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Internal("create adjustment", err)
	}
	adj.ID = id
	return id, nil
}

func (r *adjustmentRepo) Get(ctx context.Context, id int64) (*model.Adjustment, error) {
	a, err := scanAdjustment(r.tx.QueryRowContext(ctx,
		"SELECT "+adjustmentColumns+" FROM adjustments WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("adjustment", id)
	}
	if err != nil {
		return nil, apperr.Internal("get adjustment", err)
	}
	return a, nil
}

func (r *adjustmentRepo) ListByReconciliation(ctx context.Context, reconciliationID int64) ([]*model.Adjustment, error) {
	rows, err := r.tx.QueryContext(ctx,
		"SELECT "+adjustmentColumns+" FROM adjustments WHERE reconciliation_id = ? ORDER BY id",
		reconciliationID)
	if err != nil {
		return nil, apperr.Internal("list adjustments", err)
	}
	defer rows.Close()

	var out []*model.Adjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, apperr.Internal("list adjustments", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list adjustments", err)
	}
	return out, nil
}

func (r *adjustmentRepo) Update(ctx context.Context, adj *model.Adjustment) error {
	res, err := r.tx.ExecContext(ctx,
		"UPDATE adjustments SET adjustment_date = ?, description = ?, adjustment_type = ?, amount = ?, status = ? WHERE id = ?",
		adj.AdjustmentDate, adj.Description, adj.AdjustmentType, adj.Amount, adj.Status, adj.ID)
	if err != nil {
		return apperr.Internal("update adjustment", err)
	}
	return requireRow(res, "adjustment", adj.ID)
}

func (r *adjustmentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.tx.ExecContext(ctx, "DELETE FROM adjustments WHERE id = ?", id)
	if err != nil {
		return apperr.Internal("delete adjustment", err)
	}
	return requireRow(res, "adjustment", id)
}

type ledgerReader struct {
	tx *sql.Tx
}

const ledgerColumns = "id, line_date, description, reference, debit, credit, account_ref"

func scanLedgerLine(row interface{ Scan(...interface{}) error }) (*model.LedgerLine, error) {
	var (
		l         model.LedgerLine
		reference sql.NullString
	)
	err := row.Scan(&l.ID, &l.Date, &l.Description, &reference, &l.Debit, &l.Credit, &l.AccountRef)
	if err != nil {
		return nil, err
	}
	l.Reference = reference.String
	return &l, nil
}

func (r *ledgerReader) Get(ctx context.Context, id int64) (*model.LedgerLine, error) {
	l, err := scanLedgerLine(r.tx.QueryRowContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledger_lines WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("ledger line", id)
	}
	if err != nil {
		return nil, apperr.Internal("get ledger line", err)
	}
	return l, nil
}

func (r *ledgerReader) FindCandidateLines(ctx context.Context, accountRef string, from, to time.Time) ([]*model.LedgerLine, error) {
	rows, err := r.tx.QueryContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledger_lines l WHERE l.account_ref = ? AND l.line_date >= ? AND l.line_date <= ? AND NOT EXISTS (SELECT 1 FROM reconciliation_items i WHERE i.ledger_line_id = l.id) ORDER BY l.id",
		accountRef, from, to)
	if err != nil {
		return nil, apperr.Internal("find candidate lines", err)
	}
	defer rows.Close()

	var out []*model.LedgerLine
	for rows.Next() {
		l, err := scanLedgerLine(rows)
		if err != nil {
			return nil, apperr.Internal("find candidate lines", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("find candidate lines", err)
	}
	return out, nil
}

type jobRepo struct {
	tx *sql.Tx
}

func (r *jobRepo) Create(ctx context.Context, job *model.ImportJob) error {
	rowErrors, err := json.Marshal(job.RowErrors)
	if err != nil {
		return apperr.Internal("encode row errors", err)
	}
	var finished sql.NullTime
	if job.FinishedAt != nil {
		finished = sql.NullTime{Time: *job.FinishedAt, Valid: true}
	}
	_, err = r.tx.ExecContext(ctx,
		"INSERT INTO import_jobs (id, statement_id, status, rows_total, rows_inserted, rows_rejected, row_errors, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		job.ID, job.StatementID, job.Status, job.RowsTotal, job.RowsInserted,
		job.RowsRejected, rowErrors, job.StartedAt, finished)
	if err != nil {
		return apperr.Internal("create import job", err)
	}
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*model.ImportJob, error) {
	var (
		job       model.ImportJob
		rowErrors []byte
		finished  sql.NullTime
	)
	err := r.tx.QueryRowContext(ctx,
		"SELECT id, statement_id, status, rows_total, rows_inserted, rows_rejected, row_errors, started_at, finished_at FROM import_jobs WHERE id = ?",
		id).Scan(&job.ID, &job.StatementID, &job.Status, &job.RowsTotal, &job.RowsInserted,
		&job.RowsRejected, &rowErrors, &job.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("import job", id)
	}
	if err != nil {
		return nil, apperr.Internal("get import job", err)
	}
	if len(rowErrors) > 0 {
		if err := json.Unmarshal(rowErrors, &job.RowErrors); err != nil {
			return nil, apperr.Internal("decode row errors", err)
		}
	}
	if finished.Valid {
		job.FinishedAt = &finished.Time
	}
	return &job, nil
}

func (r *jobRepo) Update(ctx context.Context, job *model.ImportJob) error {
	rowErrors, err := json.Marshal(job.RowErrors)
	if err != nil {
		return apperr.Internal("encode row errors", err)
	}
	var finished sql.NullTime
	if job.FinishedAt != nil {
		finished = sql.NullTime{Time: *job.FinishedAt, Valid: true}
	}
	res, err := r.tx.ExecContext(ctx,
		"UPDATE import_jobs SET status = ?, rows_total = ?, rows_inserted = ?, rows_rejected = ?, row_errors = ?, finished_at = ? WHERE id = ?",
		job.Status, job.RowsTotal, job.RowsInserted, job.RowsRejected, rowErrors, finished, job.ID)
	if err != nil {
		return apperr.Internal("update import job", err)
	}
	return requireRow(res, "import job", job.ID)
}
