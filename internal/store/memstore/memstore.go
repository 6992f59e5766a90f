// Package memstore provides an embedded, in-memory implementation of the
// store contract. It backs the engine's demo mode and the service tests;
// production deployments use the MySQL implementation.
//
// A single mutex serializes atomic units, so row-level locking degenerates
// to unit-level exclusion. Rollback is snapshot-based: the unit operates on
// live state and the pre-unit snapshot is restored when the callback fails.
package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

// Memstore is an in-memory store.Store implementation
type Memstore struct {
	mu   chan struct{} // capacity-1 channel so lock acquisition honors ctx
	data *data
}

type data struct {
	accounts        map[int64]model.BankAccount
	statements      map[int64]model.BankStatement
	transactions    map[int64]model.BankTransaction
	reconciliations map[int64]model.Reconciliation
	items           map[int64]model.ReconciliationItem
	adjustments     map[int64]model.Adjustment
	ledger          map[int64]model.LedgerLine
	jobs            map[string]model.ImportJob
	nextID          int64
}

// New creates an empty in-memory store
func New() *Memstore {
	return &Memstore{
		mu: make(chan struct{}, 1),
		data: &data{
			accounts:        make(map[int64]model.BankAccount),
			statements:      make(map[int64]model.BankStatement),
			transactions:    make(map[int64]model.BankTransaction),
			reconciliations: make(map[int64]model.Reconciliation),
			items:           make(map[int64]model.ReconciliationItem),
			adjustments:     make(map[int64]model.Adjustment),
			ledger:          make(map[int64]model.LedgerLine),
			jobs:            make(map[string]model.ImportJob),
		},
	}
}

// Atomic runs fn inside one atomic unit. On error the pre-unit state is
// restored, so no partially-applied changes are observable.
func (m *Memstore) Atomic(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	select {
	case m.mu <- struct{}{}:
		defer func() { <-m.mu }()
	case <-ctx.Done():
		return ctx.Err()
	}

	snapshot := m.data.clone()
	if err := fn(&unitOfWork{d: m.data}); err != nil {
		m.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// SeedLedgerLines loads ledger lines into the read-only ledger view.
// The external ledger owns these rows; this is the ingestion point for
// tests and the demo mode.
func (m *Memstore) SeedLedgerLines(lines ...model.LedgerLine) {
	m.mu <- struct{}{}
	defer func() { <-m.mu }()
	for _, line := range lines {
		if line.ID == 0 {
			m.data.nextID++
			line.ID = m.data.nextID
		}
		m.data.ledger[line.ID] = line
	}
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

func (d *data) clone() *data {
	c := &data{
		accounts:        make(map[int64]model.BankAccount, len(d.accounts)),
		statements:      make(map[int64]model.BankStatement, len(d.statements)),
		transactions:    make(map[int64]model.BankTransaction, len(d.transactions)),
		reconciliations: make(map[int64]model.Reconciliation, len(d.reconciliations)),
		items:           make(map[int64]model.ReconciliationItem, len(d.items)),
		adjustments:     make(map[int64]model.Adjustment, len(d.adjustments)),
		ledger:          make(map[int64]model.LedgerLine, len(d.ledger)),
		jobs:            make(map[string]model.ImportJob, len(d.jobs)),
		nextID:          d.nextID,
	}
	for k, v := range d.accounts {
		c.accounts[k] = copyAccount(v)
	}
	for k, v := range d.statements {
		c.statements[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = copyTransaction(v)
	}
	for k, v := range d.reconciliations {
		c.reconciliations[k] = copyReconciliation(v)
	}
	for k, v := range d.items {
		c.items[k] = copyItem(v)
	}
	for k, v := range d.adjustments {
		c.adjustments[k] = v
	}
	for k, v := range d.ledger {
		c.ledger[k] = v
	}
	for k, v := range d.jobs {
		c.jobs[k] = copyJob(v)
	}
	return c
}

func copyInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyDecimalPtr(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyAccount(a model.BankAccount) model.BankAccount {
	a.LastReconciledDate = copyTimePtr(a.LastReconciledDate)
	a.LastReconciliationID = copyInt64Ptr(a.LastReconciliationID)
	return a
}

func copyTransaction(t model.BankTransaction) model.BankTransaction {
	t.RunningBalance = copyDecimalPtr(t.RunningBalance)
	return t
}

func copyReconciliation(r model.Reconciliation) model.Reconciliation {
	r.StatementID = copyInt64Ptr(r.StatementID)
	r.ApprovedAt = copyTimePtr(r.ApprovedAt)
	return r
}

func copyItem(i model.ReconciliationItem) model.ReconciliationItem {
	i.BankTransactionID = copyInt64Ptr(i.BankTransactionID)
	i.LedgerLineID = copyInt64Ptr(i.LedgerLineID)
	return i
}

func copyJob(j model.ImportJob) model.ImportJob {
	j.FinishedAt = copyTimePtr(j.FinishedAt)
	if j.RowErrors != nil {
		errs := make([]model.RowError, len(j.RowErrors))
		copy(errs, j.RowErrors)
		j.RowErrors = errs
	}
	return j
}

type unitOfWork struct {
	d *data
}

func (u *unitOfWork) BankAccounts() store.BankAccountRepo       { return &accountRepo{d: u.d} }
func (u *unitOfWork) Statements() store.StatementRepo           { return &statementRepo{d: u.d} }
func (u *unitOfWork) Transactions() store.TransactionRepo       { return &transactionRepo{d: u.d} }
func (u *unitOfWork) Reconciliations() store.ReconciliationRepo { return &reconciliationRepo{d: u.d} }
func (u *unitOfWork) Items() store.ItemRepo                     { return &itemRepo{d: u.d} }
func (u *unitOfWork) Adjustments() store.AdjustmentRepo         { return &adjustmentRepo{d: u.d} }
func (u *unitOfWork) Ledger() store.LedgerReader                { return &ledgerReader{d: u.d} }
func (u *unitOfWork) ImportJobs() store.ImportJobRepo           { return &jobRepo{d: u.d} }

type accountRepo struct{ d *data }

func (r *accountRepo) Create(_ context.Context, account *model.BankAccount) (int64, error) {
	account.ID = r.d.id()
	r.d.accounts[account.ID] = copyAccount(*account)
	return account.ID, nil
}

func (r *accountRepo) Get(_ context.Context, id int64) (*model.BankAccount, error) {
	a, ok := r.d.accounts[id]
	if !ok {
		return nil, apperr.NotFound("bank account", id)
	}
	a = copyAccount(a)
	return &a, nil
}

func (r *accountRepo) RecordReconciliation(_ context.Context, accountID int64, date time.Time, balance decimal.Decimal, reconciliationID int64) error {
	a, ok := r.d.accounts[accountID]
	if !ok {
		return apperr.NotFound("bank account", accountID)
	}
	a.LastReconciledDate = &date
	a.LastReconciledAmount = balance
	a.LastReconciliationID = &reconciliationID
	r.d.accounts[accountID] = a
	return nil
}

type statementRepo struct{ d *data }

func (r *statementRepo) Create(_ context.Context, stmt *model.BankStatement) (int64, error) {
	stmt.ID = r.d.id()
	r.d.statements[stmt.ID] = *stmt
	return stmt.ID, nil
}

func (r *statementRepo) Get(_ context.Context, id int64) (*model.BankStatement, error) {
	s, ok := r.d.statements[id]
	if !ok {
		return nil, apperr.NotFound("statement", id)
	}
	return &s, nil
}

func (r *statementRepo) List(_ context.Context, filter store.StatementFilter) ([]*model.BankStatement, error) {
	var out []*model.BankStatement
	for _, s := range r.d.statements {
		if filter.BankAccountID != nil && s.BankAccountID != *filter.BankAccountID {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.DateFrom != nil && s.StatementDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && s.StatementDate.After(*filter.DateTo) {
			continue
		}
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *statementRepo) Update(_ context.Context, stmt *model.BankStatement) error {
	if _, ok := r.d.statements[stmt.ID]; !ok {
		return apperr.NotFound("statement", stmt.ID)
	}
	r.d.statements[stmt.ID] = *stmt
	return nil
}

func (r *statementRepo) SetStatus(_ context.Context, id int64, status model.StatementStatus) error {
	s, ok := r.d.statements[id]
	if !ok {
		return apperr.NotFound("statement", id)
	}
	s.Status = status
	r.d.statements[id] = s
	return nil
}

func (r *statementRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.d.statements[id]; !ok {
		return apperr.NotFound("statement", id)
	}
	delete(r.d.statements, id)
	return nil
}

type transactionRepo struct{ d *data }

func (r *transactionRepo) BulkInsert(_ context.Context, txns []*model.BankTransaction) (int, error) {
	for _, t := range txns {
		t.ID = r.d.id()
		r.d.transactions[t.ID] = copyTransaction(*t)
	}
	return len(txns), nil
}

func (r *transactionRepo) Get(_ context.Context, id int64) (*model.BankTransaction, error) {
	t, ok := r.d.transactions[id]
	if !ok {
		return nil, apperr.NotFound("bank transaction", id)
	}
	t = copyTransaction(t)
	return &t, nil
}

// GetForUpdate is equivalent to Get here: the store mutex already gives
// the unit exclusive access.
func (r *transactionRepo) GetForUpdate(ctx context.Context, id int64) (*model.BankTransaction, error) {
	return r.Get(ctx, id)
}

func (r *transactionRepo) List(_ context.Context, filter store.TransactionFilter) ([]*model.BankTransaction, error) {
	var out []*model.BankTransaction
	for _, t := range r.d.transactions {
		if filter.StatementID != nil && t.StatementID != *filter.StatementID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		if filter.DateFrom != nil && t.TransactionDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && t.TransactionDate.After(*filter.DateTo) {
			continue
		}
		t := copyTransaction(t)
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *transactionRepo) Update(_ context.Context, txn *model.BankTransaction) error {
	if _, ok := r.d.transactions[txn.ID]; !ok {
		return apperr.NotFound("bank transaction", txn.ID)
	}
	r.d.transactions[txn.ID] = copyTransaction(*txn)
	return nil
}

func (r *transactionRepo) SetStatus(_ context.Context, id int64, status model.TransactionStatus) error {
	t, ok := r.d.transactions[id]
	if !ok {
		return apperr.NotFound("bank transaction", id)
	}
	t.Status = status
	r.d.transactions[id] = t
	return nil
}

func (r *transactionRepo) DeleteByStatement(_ context.Context, statementID int64) (int64, error) {
	var n int64
	for id, t := range r.d.transactions {
		if t.StatementID == statementID {
			delete(r.d.transactions, id)
			n++
		}
	}
	return n, nil
}

type reconciliationRepo struct{ d *data }

func (r *reconciliationRepo) Create(_ context.Context, rec *model.Reconciliation) (int64, error) {
	rec.ID = r.d.id()
	r.d.reconciliations[rec.ID] = copyReconciliation(*rec)
	return rec.ID, nil
}

func (r *reconciliationRepo) Get(_ context.Context, id int64) (*model.Reconciliation, error) {
	rec, ok := r.d.reconciliations[id]
	if !ok {
		return nil, apperr.NotFound("reconciliation", id)
	}
	rec = copyReconciliation(rec)
	return &rec, nil
}

func (r *reconciliationRepo) GetForUpdate(ctx context.Context, id int64) (*model.Reconciliation, error) {
	return r.Get(ctx, id)
}

func (r *reconciliationRepo) List(_ context.Context, filter store.ReconciliationFilter) ([]*model.Reconciliation, error) {
	var out []*model.Reconciliation
	for _, rec := range r.d.reconciliations {
		if filter.BankAccountID != nil && rec.BankAccountID != *filter.BankAccountID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		if filter.DateFrom != nil && rec.ReconciliationDate.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && rec.ReconciliationDate.After(*filter.DateTo) {
			continue
		}
		rec := copyReconciliation(rec)
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *reconciliationRepo) Update(_ context.Context, rec *model.Reconciliation) error {
	if _, ok := r.d.reconciliations[rec.ID]; !ok {
		return apperr.NotFound("reconciliation", rec.ID)
	}
	r.d.reconciliations[rec.ID] = copyReconciliation(*rec)
	return nil
}

func (r *reconciliationRepo) HasInProgress(_ context.Context, bankAccountID int64) (bool, error) {
	for _, rec := range r.d.reconciliations {
		if rec.BankAccountID == bankAccountID && rec.Status == model.ReconciliationInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (r *reconciliationRepo) ReferencesStatement(_ context.Context, statementID int64) (bool, error) {
	for _, rec := range r.d.reconciliations {
		if rec.StatementID != nil && *rec.StatementID == statementID {
			return true, nil
		}
	}
	return false, nil
}

type itemRepo struct{ d *data }

func (r *itemRepo) Create(_ context.Context, item *model.ReconciliationItem) (int64, error) {
	item.ID = r.d.id()
	r.d.items[item.ID] = copyItem(*item)
	return item.ID, nil
}

func (r *itemRepo) Get(_ context.Context, id int64) (*model.ReconciliationItem, error) {
	i, ok := r.d.items[id]
	if !ok {
		return nil, apperr.NotFound("reconciliation item", id)
	}
	i = copyItem(i)
	return &i, nil
}

func (r *itemRepo) ListByReconciliation(_ context.Context, reconciliationID int64) ([]*model.ReconciliationItem, error) {
	var out []*model.ReconciliationItem
	for _, i := range r.d.items {
		if i.ReconciliationID == reconciliationID {
			i := copyItem(i)
			out = append(out, &i)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *itemRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.d.items[id]; !ok {
		return apperr.NotFound("reconciliation item", id)
	}
	delete(r.d.items, id)
	return nil
}

func (r *itemRepo) ExistsForTransaction(_ context.Context, transactionID int64) (bool, error) {
	for _, i := range r.d.items {
		if i.BankTransactionID != nil && *i.BankTransactionID == transactionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *itemRepo) ExistsForLedgerLine(_ context.Context, ledgerLineID int64) (bool, error) {
	for _, i := range r.d.items {
		if i.LedgerLineID != nil && *i.LedgerLineID == ledgerLineID {
			return true, nil
		}
	}
	return false, nil
}

type adjustmentRepo struct{ d *data }

func (r *adjustmentRepo) Create(_ context.Context, adj *model.Adjustment) (int64, error) {
	adj.ID = r.d.id()
	r.d.adjustments[adj.ID] = *adj
	return adj.ID, nil
}

func (r *adjustmentRepo) Get(_ context.Context, id int64) (*model.Adjustment, error) {
	a, ok := r.d.adjustments[id]
	if !ok {
		return nil, apperr.NotFound("adjustment", id)
	}
	return &a, nil
}

func (r *adjustmentRepo) ListByReconciliation(_ context.Context, reconciliationID int64) ([]*model.Adjustment, error) {
	var out []*model.Adjustment
	for _, a := range r.d.adjustments {
		if a.ReconciliationID == reconciliationID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *adjustmentRepo) Update(_ context.Context, adj *model.Adjustment) error {
	if _, ok := r.d.adjustments[adj.ID]; !ok {
		return apperr.NotFound("adjustment", adj.ID)
	}
	r.d.adjustments[adj.ID] = *adj
	return nil
}

func (r *adjustmentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := r.d.adjustments[id]; !ok {
		return apperr.NotFound("adjustment", id)
	}
	delete(r.d.adjustments, id)
	return nil
}

type ledgerReader struct{ d *data }

func (r *ledgerReader) Get(_ context.Context, id int64) (*model.LedgerLine, error) {
	l, ok := r.d.ledger[id]
	if !ok {
		return nil, apperr.NotFound("ledger line", id)
	}
	return &l, nil
}

func (r *ledgerReader) FindCandidateLines(_ context.Context, accountRef string, from, to time.Time) ([]*model.LedgerLine, error) {
	consumed := make(map[int64]bool)
	for _, i := range r.d.items {
		if i.LedgerLineID != nil {
			consumed[*i.LedgerLineID] = true
		}
	}

	var out []*model.LedgerLine
	for _, l := range r.d.ledger {
		if l.AccountRef != accountRef || consumed[l.ID] {
			continue
		}
		if l.Date.Before(from) || l.Date.After(to) {
			continue
		}
		l := l
		out = append(out, &l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type jobRepo struct{ d *data }

func (r *jobRepo) Create(_ context.Context, job *model.ImportJob) error {
	r.d.jobs[job.ID] = copyJob(*job)
	return nil
}

func (r *jobRepo) Get(_ context.Context, id string) (*model.ImportJob, error) {
	j, ok := r.d.jobs[id]
	if !ok {
		return nil, apperr.NotFound("import job", id)
	}
	j = copyJob(j)
	return &j, nil
}

func (r *jobRepo) Update(_ context.Context, job *model.ImportJob) error {
	if _, ok := r.d.jobs[job.ID]; !ok {
		return apperr.NotFound("import job", job.ID)
	}
	r.d.jobs[job.ID] = copyJob(*job)
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
