package matcher

import (
	"context"
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

// fixture is a reconciliation over one statement with seedable transactions
// and ledger lines.
type fixture struct {
	store     *memstore.Memstore
	accountID int64
	stmtID    int64
	recID     int64
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
			OpeningBalance: decimal.NewFromInt(10000),
			ClosingBalance: decimal.RequireFromString("10500.00"),
			Status:         model.StatementProcessed,
		})
		if err != nil {
			return err
		}
		f.recID, err = uow.Reconciliations().Create(ctx, &model.Reconciliation{
			BankAccountID:      f.accountID,
			StatementID:        &f.stmtID,
			ReconciliationDate: day(31),
			BookBalance:        decimal.RequireFromString("10500.00"),
			StatementBalance:   decimal.RequireFromString("10500.00"),
			Status:             model.ReconciliationInProgress,
		})
		return err
	})
	if err != nil {
		t.Fatalf("fixture setup failed: %v", err)
	}
	return f
}

func (f *fixture) addTransaction(t *testing.T, txnDate time.Time, description, amount string) int64 {
	t.Helper()
	ctx := context.Background()
	amt := decimal.RequireFromString(amount)
	txn := &model.BankTransaction{
		StatementID:     f.stmtID,
		TransactionDate: txnDate,
		Description:     description,
		Amount:          amt,
		Type:            model.ClassifyType(amt),
		Status:          model.TransactionUnmatched,
	}
	err := f.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		ids, err := uow.Transactions().BulkInsert(ctx, []*model.BankTransaction{txn})
		if err != nil {
			return err
		}
		_ = ids
		return nil
	})
	if err != nil {
		t.Fatalf("add transaction: %v", err)
	}
	return txn.ID
}

func (f *fixture) addLedgerLine(lineDate time.Time, description, debit, credit string) int64 {
	line := model.LedgerLine{
		Date:        lineDate,
		Description: description,
		Debit:       decimal.RequireFromString(debit),
		Credit:      decimal.RequireFromString(credit),
		AccountRef:  "1010",
	}
	f.store.SeedLedgerLines(line)
	lines := f.lines()
	return lines[len(lines)-1].ID
}

func (f *fixture) lines() []*model.LedgerLine {
	ctx := context.Background()
	var out []*model.LedgerLine
	f.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		out, err = uow.Ledger().FindCandidateLines(ctx, "1010", day(1).AddDate(0, 0, -31), day(31).AddDate(0, 0, 31))
		return err
	})
	return out
}

func (f *fixture) transaction(t *testing.T, id int64) *model.BankTransaction {
	t.Helper()
	ctx := context.Background()
	var txn *model.BankTransaction
	err := f.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		txn, err = uow.Transactions().Get(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("get transaction %d: %v", id, err)
	}
	return txn
}

func TestAutoMatchSingleCandidate(t *testing.T) {
	f := newFixture(t)
	txnID := f.addTransaction(t, day(10), "Customer payment", "150.00")
	lineID := f.addLedgerLine(day(12), "Invoice 1042", "150.00", "0")

	svc := NewService(f.store, nil)
	result, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("AutoMatch failed: %v", err)
	}

	if result.MatchesCreated != 1 {
		t.Fatalf("matches created = %d, want 1", result.MatchesCreated)
	}
	pair := result.Pairs[0]
	if pair.BankTransactionID != txnID || pair.LedgerLineID != lineID {
		t.Errorf("pair = txn %d / line %d, want txn %d / line %d",
			pair.BankTransactionID, pair.LedgerLineID, txnID, lineID)
	}
	if !pair.Amount.Equal(decimal.RequireFromString("150.00")) {
		t.Errorf("pair amount = %s, want 150.00", pair.Amount)
	}

	if txn := f.transaction(t, txnID); txn.Status != model.TransactionMatched {
		t.Errorf("transaction status = %s, want %s", txn.Status, model.TransactionMatched)
	}
}

func TestAutoMatchOutflowAgainstCredit(t *testing.T) {
	f := newFixture(t)
	txnID := f.addTransaction(t, day(15), "Vendor wire", "-320.40")
	f.addLedgerLine(day(15), "AP payment", "0", "320.40")

	svc := NewService(f.store, nil)
	result, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("AutoMatch failed: %v", err)
	}
	if result.MatchesCreated != 1 {
		t.Fatalf("matches created = %d, want 1", result.MatchesCreated)
	}
	if txn := f.transaction(t, txnID); txn.Status != model.TransactionMatched {
		t.Errorf("transaction status = %s, want %s", txn.Status, model.TransactionMatched)
	}
}

func TestAutoMatchAmbiguityLeavesUnmatched(t *testing.T) {
	f := newFixture(t)
	txnID := f.addTransaction(t, day(10), "Deposit", "150.00")
	f.addLedgerLine(day(10), "Invoice A", "150.00", "0")
	f.addLedgerLine(day(11), "Invoice B", "150.00", "0")

	svc := NewService(f.store, nil)
	result, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("AutoMatch failed: %v", err)
	}
	if result.MatchesCreated != 0 {
		t.Errorf("matches created = %d, want 0 for ambiguous candidates", result.MatchesCreated)
	}
	if txn := f.transaction(t, txnID); txn.Status != model.TransactionUnmatched {
		t.Errorf("transaction status = %s, want %s", txn.Status, model.TransactionUnmatched)
	}
}

func TestAutoMatchDateToleranceBoundary(t *testing.T) {
	f := newFixture(t)
	f.addTransaction(t, day(10), "Deposit", "75.00")
	f.addLedgerLine(day(14), "Too far", "75.00", "0")

	svc := NewService(f.store, nil)
	result, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("AutoMatch failed: %v", err)
	}
	if result.MatchesCreated != 0 {
		t.Errorf("line four days out matched with a 3-day tolerance")
	}

	cfg := DefaultConfig()
	cfg.DateToleranceDays = 5
	result, err = svc.AutoMatch(context.Background(), f.recID, cfg)
	if err != nil {
		t.Fatalf("AutoMatch with wider tolerance failed: %v", err)
	}
	if result.MatchesCreated != 1 {
		t.Errorf("line four days out should match with a 5-day tolerance")
	}
}

func TestAutoMatchSkipsZeroAmounts(t *testing.T) {
	f := newFixture(t)
	txnID := f.addTransaction(t, day(10), "Memo entry", "0")
	f.addLedgerLine(day(10), "Zero line", "0", "0")

	svc := NewService(f.store, nil)
	result, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("AutoMatch failed: %v", err)
	}
	if result.MatchesCreated != 0 {
		t.Errorf("zero-amount transaction should be skipped")
	}
	if txn := f.transaction(t, txnID); txn.Status != model.TransactionUnmatched {
		t.Errorf("transaction status = %s, want %s", txn.Status, model.TransactionUnmatched)
	}
}

func TestAutoMatchIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addTransaction(t, day(10), "Deposit", "150.00")
	f.addLedgerLine(day(10), "Invoice", "150.00", "0")

	svc := NewService(f.store, nil)
	first, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if first.MatchesCreated != 1 {
		t.Fatalf("first pass matches = %d, want 1", first.MatchesCreated)
	}

	second, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if second.MatchesCreated != 0 {
		t.Errorf("second pass created %d matches, want 0", second.MatchesCreated)
	}
}

func TestAutoMatchConsumedLineNotReused(t *testing.T) {
	f := newFixture(t)
	f.addTransaction(t, day(10), "First deposit", "150.00")
	f.addTransaction(t, day(11), "Second deposit", "150.00")
	f.addLedgerLine(day(10), "Only invoice", "150.00", "0")

	svc := NewService(f.store, nil)
	result, err := svc.AutoMatch(context.Background(), f.recID, nil)
	if err != nil {
		t.Fatalf("AutoMatch failed: %v", err)
	}
	if result.MatchesCreated != 1 {
		t.Errorf("matches created = %d, want 1 when one line serves two transactions", result.MatchesCreated)
	}
}

func TestAutoMatchDescriptionFilter(t *testing.T) {
	f := newFixture(t)
	f.addTransaction(t, day(10), "ACME payment", "150.00")
	f.addLedgerLine(day(10), "acme", "150.00", "0")
	f.addLedgerLine(day(11), "Unrelated", "150.00", "0")

	cfg := DefaultConfig()
	cfg.MatchDescriptions = true

	svc := NewService(f.store, nil)
	result, err := svc.AutoMatch(context.Background(), f.recID, cfg)
	if err != nil {
		t.Fatalf("AutoMatch failed: %v", err)
	}
	// Description overlap disambiguates what amount and date alone cannot.
	if result.MatchesCreated != 1 {
		t.Errorf("matches created = %d, want 1", result.MatchesCreated)
	}
}

func TestAutoMatchRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		rec, err := uow.Reconciliations().Get(ctx, f.recID)
		if err != nil {
			return err
		}
		rec.Status = model.ReconciliationCompleted
		return uow.Reconciliations().Update(ctx, rec)
	})
	if err != nil {
		t.Fatalf("fixture update failed: %v", err)
	}

	svc := NewService(f.store, nil)
	if _, err := svc.AutoMatch(ctx, f.recID, nil); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for completed reconciliation, got %v", err)
	}
}

func TestDescriptionsOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"ACME payment", "acme", true},
		{"wire", "Vendor wire transfer", true},
		{"rent", "payroll", false},
		{"", "anything", false},
	}
	for _, tt := range tests {
		if got := descriptionsOverlap(tt.a, tt.b); got != tt.want {
			t.Errorf("descriptionsOverlap(%q, %q) = %t, want %t", tt.a, tt.b, got, tt.want)
		}
	}
}
