package recon

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/internal/store/memstore"
	"fund-reconciliation-engine/pkg/apperr"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store     *memstore.Memstore
	accountID int64
	stmtID    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	f := &fixture{store: st}

	err := st.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		f.accountID, err = uow.BankAccounts().Create(ctx, &model.BankAccount{
			Name:             "Operating Account",
			LedgerAccountRef: "1010",
		})
		if err != nil {
			return err
		}
		f.stmtID, err = uow.Statements().Create(ctx, &model.BankStatement{
			BankAccountID:  f.accountID,
			StatementDate:  day(31),
			PeriodStart:    day(1),
			PeriodEnd:      day(31),
			OpeningBalance: amount("10000.00"),
			ClosingBalance: amount("10500.00"),
			Status:         model.StatementProcessed,
		})
		return err
	})
	if err != nil {
		t.Fatalf("fixture setup failed: %v", err)
	}
	return f
}

func (f *fixture) account(t *testing.T) *model.BankAccount {
	t.Helper()
	ctx := context.Background()
	var account *model.BankAccount
	err := f.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		account, err = uow.BankAccounts().Get(ctx, f.accountID)
		return err
	})
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account
}

func (f *fixture) statement(t *testing.T) *model.BankStatement {
	t.Helper()
	ctx := context.Background()
	var stmt *model.BankStatement
	err := f.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		stmt, err = uow.Statements().Get(ctx, f.stmtID)
		return err
	})
	if err != nil {
		t.Fatalf("get statement: %v", err)
	}
	return stmt
}

func createRec(t *testing.T, svc *Service, f *fixture, book, stmtBal string) *model.Reconciliation {
	t.Helper()
	rec, err := svc.Create(context.Background(), CreateParams{
		BankAccountID:      f.accountID,
		StatementID:        &f.stmtID,
		ReconciliationDate: day(31),
		StartBalance:       amount("10000.00"),
		EndBalance:         amount("10500.00"),
		BookBalance:        amount(book),
		StatementBalance:   amount(stmtBal),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return rec
}

func TestCreateComputesDifference(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10450.00", "10500.00")
	if !rec.Difference.Equal(amount("50.00")) {
		t.Errorf("difference = %s, want 50", rec.Difference)
	}
	if rec.Status != model.ReconciliationInProgress {
		t.Errorf("status = %s, want %s", rec.Status, model.ReconciliationInProgress)
	}
}

func TestCreateValidations(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	_, err := svc.Create(context.Background(), CreateParams{
		ReconciliationDate: day(31),
	})
	if !apperr.IsValidation(err) {
		t.Errorf("missing account should be a validation error, got %v", err)
	}

	_, err = svc.Create(context.Background(), CreateParams{
		BankAccountID:      999,
		ReconciliationDate: day(31),
	})
	if !apperr.IsNotFound(err) {
		t.Errorf("unknown account should be not-found, got %v", err)
	}
}

func TestCreateSecondOpenReconciliationBlocked(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	createRec(t, svc, f, "10500.00", "10500.00")

	_, err := svc.Create(context.Background(), CreateParams{
		BankAccountID:      f.accountID,
		ReconciliationDate: day(31),
	})
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for second open reconciliation, got %v", err)
	}
}

func TestCompleteBlockedWhenUnbalanced(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10450.00", "10500.00")

	_, err := svc.Complete(context.Background(), rec.ID)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "difference is 50") {
		t.Errorf("conflict message %q does not name the difference", err.Error())
	}

	// Nothing may change when completion is refused.
	if stmt := f.statement(t); stmt.Status != model.StatementProcessed {
		t.Errorf("statement status = %s, want %s", stmt.Status, model.StatementProcessed)
	}
	if account := f.account(t); account.LastReconciliationID != nil {
		t.Error("account snapshot must not change on a refused completion")
	}
}

func TestCompleteAppliesSideEffects(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")

	completed, err := svc.Complete(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.Status != model.ReconciliationCompleted {
		t.Errorf("status = %s, want %s", completed.Status, model.ReconciliationCompleted)
	}

	if stmt := f.statement(t); stmt.Status != model.StatementReconciled {
		t.Errorf("statement status = %s, want %s", stmt.Status, model.StatementReconciled)
	}

	account := f.account(t)
	if account.LastReconciledDate == nil || !account.LastReconciledDate.Equal(day(31)) {
		t.Errorf("last reconciled date = %v, want %s", account.LastReconciledDate, day(31))
	}
	if !account.LastReconciledAmount.Equal(amount("10500.00")) {
		t.Errorf("last reconciled amount = %s, want 10500.00", account.LastReconciledAmount)
	}
	if account.LastReconciliationID == nil || *account.LastReconciliationID != rec.ID {
		t.Errorf("last reconciliation ID = %v, want %d", account.LastReconciliationID, rec.ID)
	}
}

func TestCompleteTolerance(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	// A difference of exactly 0.01 is still within tolerance.
	rec := createRec(t, svc, f, "10499.99", "10500.00")
	if _, err := svc.Complete(context.Background(), rec.ID); err != nil {
		t.Fatalf("difference of 0.01 should complete, got %v", err)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")
	if _, err := svc.Complete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if _, err := svc.Complete(context.Background(), rec.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on double completion, got %v", err)
	}
}

func TestApproveStampsIdentity(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")
	if _, err := svc.Complete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	approved, err := svc.Approve(context.Background(), rec.ID, "casey")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != model.ReconciliationApproved {
		t.Errorf("status = %s, want %s", approved.Status, model.ReconciliationApproved)
	}
	if approved.ApprovedBy != "casey" {
		t.Errorf("approved by = %q, want casey", approved.ApprovedBy)
	}
	if approved.ApprovedAt == nil {
		t.Error("approval timestamp not stamped")
	}
}

func TestApproveRequiresCompleted(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")
	if _, err := svc.Approve(context.Background(), rec.ID, "casey"); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict approving an in-progress reconciliation, got %v", err)
	}
}

func TestApprovedIsTerminal(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")
	if _, err := svc.Complete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := svc.Approve(context.Background(), rec.ID, "casey"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	notes := "late edit"
	_, err := svc.Update(context.Background(), rec.ID, UpdateParams{Notes: &notes})
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict updating an approved reconciliation, got %v", err)
	}
}

func TestUpdateDifferenceRecompute(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10450.00", "10500.00")

	// One balance alone leaves the stored difference untouched.
	book := amount("10500.00")
	updated, err := svc.Update(context.Background(), rec.ID, UpdateParams{BookBalance: &book})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Difference.Equal(amount("50.00")) {
		t.Errorf("difference after single-balance update = %s, want unchanged 50", updated.Difference)
	}

	// Both balances together recompute it.
	stmtBal := amount("10500.00")
	updated, err = svc.Update(context.Background(), rec.ID, UpdateParams{
		BookBalance:      &book,
		StatementBalance: &stmtBal,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !updated.Difference.IsZero() {
		t.Errorf("difference after dual-balance update = %s, want 0", updated.Difference)
	}
}

func TestUpdateCannotSetCompletedDirectly(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")

	completed := model.ReconciliationCompleted
	_, err := svc.Update(context.Background(), rec.ID, UpdateParams{Status: &completed})
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict setting Completed directly, got %v", err)
	}
}

func TestGetDetail(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")

	adj, err := svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(15),
		Description:    "Monthly service fee",
		AdjustmentType: "bank_fee",
		Amount:         amount("-25.00"),
	})
	if err != nil {
		t.Fatalf("AddAdjustment failed: %v", err)
	}

	detail, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if detail.Reconciliation.ID != rec.ID {
		t.Errorf("detail reconciliation = %d, want %d", detail.Reconciliation.ID, rec.ID)
	}
	if len(detail.Adjustments) != 1 || detail.Adjustments[0].ID != adj.ID {
		t.Errorf("detail adjustments = %v, want the added adjustment", detail.Adjustments)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)

	rec := createRec(t, svc, f, "10500.00", "10500.00")
	if _, err := svc.Complete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	createRec(t, svc, f, "10450.00", "10500.00")

	open := model.ReconciliationInProgress
	got, err := svc.List(context.Background(), store.ReconciliationFilter{Status: &open})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].Status != model.ReconciliationInProgress {
		t.Errorf("filtered list = %d records, want exactly the open one", len(got))
	}
}
