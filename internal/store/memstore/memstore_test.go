package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func createAccount(t *testing.T, m *Memstore) int64 {
	t.Helper()
	ctx := context.Background()
	var id int64
	err := m.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		id, err = uow.BankAccounts().Create(ctx, &model.BankAccount{
			Name:             "Operating Account",
			LedgerAccountRef: "1010",
		})
		return err
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return id
}

func TestAtomicRollsBackOnError(t *testing.T) {
	m := New()
	ctx := context.Background()
	boom := fmt.Errorf("boom")

	err := m.Atomic(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.BankAccounts().Create(ctx, &model.BankAccount{
			Name:             "Doomed",
			LedgerAccountRef: "1010",
		}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("Atomic returned %v, want the callback error", err)
	}

	// The failed unit must leave no trace.
	err = m.Atomic(ctx, func(uow store.UnitOfWork) error {
		_, err := uow.BankAccounts().Get(ctx, 1)
		return err
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("account survived a rolled-back unit: %v", err)
	}
}

func TestAtomicRollsBackMultipleWrites(t *testing.T) {
	m := New()
	ctx := context.Background()
	accountID := createAccount(t, m)

	var stmtID int64
	err := m.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		stmtID, err = uow.Statements().Create(ctx, &model.BankStatement{
			BankAccountID: accountID,
			StatementDate: day(31),
			PeriodStart:   day(1),
			PeriodEnd:     day(31),
			Status:        model.StatementUploaded,
		})
		if err != nil {
			return err
		}
		if _, err := uow.Transactions().BulkInsert(ctx, []*model.BankTransaction{{
			StatementID:     stmtID,
			TransactionDate: day(5),
			Description:     "Row",
			Amount:          decimal.NewFromInt(10),
			Type:            model.TypeDeposit,
			Status:          model.TransactionUnmatched,
		}}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil {
		t.Fatal("expected the unit to fail")
	}

	err = m.Atomic(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.Statements().Get(ctx, stmtID); !apperr.IsNotFound(err) {
			return fmt.Errorf("statement survived rollback: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestAtomicHonorsContextCancellation(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Atomic(ctx, func(uow store.UnitOfWork) error { return nil })
	if err != context.Canceled {
		t.Fatalf("Atomic with cancelled context returned %v, want context.Canceled", err)
	}
}

func TestNotFoundMapping(t *testing.T) {
	m := New()
	ctx := context.Background()

	err := m.Atomic(ctx, func(uow store.UnitOfWork) error {
		checks := []error{}
		_, err := uow.BankAccounts().Get(ctx, 1)
		checks = append(checks, err)
		_, err = uow.Statements().Get(ctx, 1)
		checks = append(checks, err)
		_, err = uow.Transactions().Get(ctx, 1)
		checks = append(checks, err)
		_, err = uow.Reconciliations().Get(ctx, 1)
		checks = append(checks, err)
		_, err = uow.Items().Get(ctx, 1)
		checks = append(checks, err)
		_, err = uow.Adjustments().Get(ctx, 1)
		checks = append(checks, err)
		_, err = uow.Ledger().Get(ctx, 1)
		checks = append(checks, err)
		_, err = uow.ImportJobs().Get(ctx, "missing")
		checks = append(checks, err)

		for i, err := range checks {
			if !apperr.IsNotFound(err) {
				return fmt.Errorf("lookup %d returned %v, want not-found", i, err)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFindCandidateLinesExcludesConsumed(t *testing.T) {
	m := New()
	ctx := context.Background()
	accountID := createAccount(t, m)

	m.SeedLedgerLines(
		model.LedgerLine{Date: day(5), Description: "Consumed", Debit: decimal.NewFromInt(100), AccountRef: "1010"},
		model.LedgerLine{Date: day(6), Description: "Free", Debit: decimal.NewFromInt(200), AccountRef: "1010"},
		model.LedgerLine{Date: day(6), Description: "Other book", Debit: decimal.NewFromInt(300), AccountRef: "2020"},
		model.LedgerLine{Date: day(25), Description: "Out of range", Debit: decimal.NewFromInt(400), AccountRef: "1010"},
	)

	err := m.Atomic(ctx, func(uow store.UnitOfWork) error {
		lines, err := uow.Ledger().FindCandidateLines(ctx, "1010", day(1), day(10))
		if err != nil {
			return err
		}
		if len(lines) != 2 {
			return fmt.Errorf("candidates before consumption = %d, want 2", len(lines))
		}

		recID, err := uow.Reconciliations().Create(ctx, &model.Reconciliation{
			BankAccountID:      accountID,
			ReconciliationDate: day(31),
			Status:             model.ReconciliationInProgress,
		})
		if err != nil {
			return err
		}
		consumedID := lines[0].ID
		if _, err := uow.Items().Create(ctx, &model.ReconciliationItem{
			ReconciliationID: recID,
			LedgerLineID:     &consumedID,
			MatchType:        model.MatchManual,
			Amount:           decimal.NewFromInt(100),
		}); err != nil {
			return err
		}

		lines, err = uow.Ledger().FindCandidateLines(ctx, "1010", day(1), day(10))
		if err != nil {
			return err
		}
		if len(lines) != 1 {
			return fmt.Errorf("candidates after consumption = %d, want 1", len(lines))
		}
		if lines[0].Description == "Consumed" {
			return fmt.Errorf("consumed line still offered as a candidate")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestListPagination(t *testing.T) {
	m := New()
	ctx := context.Background()
	accountID := createAccount(t, m)

	err := m.Atomic(ctx, func(uow store.UnitOfWork) error {
		for i := 0; i < 5; i++ {
			if _, err := uow.Statements().Create(ctx, &model.BankStatement{
				BankAccountID: accountID,
				StatementDate: day(i + 1),
				PeriodStart:   day(1),
				PeriodEnd:     day(31),
				Status:        model.StatementUploaded,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("fixture setup failed: %v", err)
	}

	err = m.Atomic(ctx, func(uow store.UnitOfWork) error {
		pageOne, err := uow.Statements().List(ctx, store.StatementFilter{Limit: 2})
		if err != nil {
			return err
		}
		if len(pageOne) != 2 {
			return fmt.Errorf("first page = %d records, want 2", len(pageOne))
		}

		pageThree, err := uow.Statements().List(ctx, store.StatementFilter{Limit: 2, Offset: 4})
		if err != nil {
			return err
		}
		if len(pageThree) != 1 {
			return fmt.Errorf("last page = %d records, want 1", len(pageThree))
		}

		empty, err := uow.Statements().List(ctx, store.StatementFilter{Offset: 10})
		if err != nil {
			return err
		}
		if len(empty) != 0 {
			return fmt.Errorf("overshoot page = %d records, want 0", len(empty))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCopiesAreIsolated(t *testing.T) {
	m := New()
	ctx := context.Background()
	accountID := createAccount(t, m)

	err := m.Atomic(ctx, func(uow store.UnitOfWork) error {
		account, err := uow.BankAccounts().Get(ctx, accountID)
		if err != nil {
			return err
		}
		account.Name = "Mutated outside the store"

		fresh, err := uow.BankAccounts().Get(ctx, accountID)
		if err != nil {
			return err
		}
		if fresh.Name != "Operating Account" {
			return fmt.Errorf("store state leaked through a returned pointer: %q", fresh.Name)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
