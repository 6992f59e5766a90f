package matcher

import (
	"context"
	"time"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

// ManualMatchParams holds the operator's match request. At least one of
// BankTransactionID and LedgerLineID is required.
type ManualMatchParams struct {
	ReconciliationID  int64
	BankTransactionID *int64
	LedgerLineID      *int64
	Notes             string
	CreatedBy         string
}

// ManualMatch creates an operator-directed match. The amount is derived
// from whichever side is present: the bank transaction's absolute amount
// when one is given, else the ledger line's nonzero side.
func (s *Service) ManualMatch(ctx context.Context, params ManualMatchParams) (*model.ReconciliationItem, error) {
	if params.BankTransactionID == nil && params.LedgerLineID == nil {
		return nil, apperr.Validation("bank_transaction_id",
			"a bank transaction or a ledger line reference is required")
	}

	var item *model.ReconciliationItem
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		rec, err := uow.Reconciliations().Get(ctx, params.ReconciliationID)
		if err != nil {
			return err
		}
		if rec.Status != model.ReconciliationInProgress {
			return apperr.Conflict("reconciliation %d is %s; matching requires %s",
				rec.ID, rec.Status, model.ReconciliationInProgress).
				WithContext("status", rec.Status.String())
		}

		item = &model.ReconciliationItem{
			ReconciliationID:  rec.ID,
			BankTransactionID: params.BankTransactionID,
			LedgerLineID:      params.LedgerLineID,
			MatchType:         model.MatchManual,
			Notes:             params.Notes,
			CreatedBy:         params.CreatedBy,
			CreatedAt:         time.Now().UTC(),
		}

		if params.BankTransactionID != nil {
			txn, err := uow.Transactions().GetForUpdate(ctx, *params.BankTransactionID)
			if err != nil {
				return err
			}
			if txn.Status == model.TransactionMatched {
				return apperr.Conflict("bank transaction %d is already matched", txn.ID).
					WithContext("status", txn.Status.String())
			}
			item.Amount = txn.AbsoluteAmount()
		}
		if params.LedgerLineID != nil {
			line, err := uow.Ledger().Get(ctx, *params.LedgerLineID)
			if err != nil {
				return err
			}
			consumed, err := uow.Items().ExistsForLedgerLine(ctx, line.ID)
			if err != nil {
				return err
			}
			if consumed {
				return apperr.Conflict("ledger line %d is already matched", line.ID)
			}
			if params.BankTransactionID == nil {
				item.Amount = line.Amount()
			}
		}

		if err := item.Validate(); err != nil {
			return apperr.Validation("", "%v", err)
		}
		if _, err := uow.Items().Create(ctx, item); err != nil {
			return err
		}
		if params.BankTransactionID != nil {
			return uow.Transactions().SetStatus(ctx, *params.BankTransactionID, model.TransactionMatched)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("item_id", item.ID).Info("manual match created")
	return item, nil
}

// Unmatch deletes a reconciliation item and, when it referenced a bank
// transaction, reverts that transaction to Unmatched. One atomic unit.
func (s *Service) Unmatch(ctx context.Context, itemID int64) error {
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		item, err := uow.Items().Get(ctx, itemID)
		if err != nil {
			return err
		}

		if item.BankTransactionID != nil {
			// Lock the transaction row before touching the item so a
			// concurrent match against it serializes behind us.
			if _, err := uow.Transactions().GetForUpdate(ctx, *item.BankTransactionID); err != nil {
				return err
			}
		}

		if err := uow.Items().Delete(ctx, itemID); err != nil {
			return err
		}
		if item.BankTransactionID != nil {
			return uow.Transactions().SetStatus(ctx, *item.BankTransactionID, model.TransactionUnmatched)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("item_id", itemID).Info("match removed")
	return nil
}

// UnmatchedSet holds both sides awaiting manual triage
type UnmatchedSet struct {
	BankTransactions []*model.BankTransaction `json:"bank_transactions"`
	LedgerLines      []*model.LedgerLine      `json:"ledger_lines"`
}

// Unmatched returns the unmatched bank transactions and unconsumed ledger
// lines for a bank account within a date range.
func (s *Service) Unmatched(ctx context.Context, bankAccountID int64, from, to time.Time) (*UnmatchedSet, error) {
	set := &UnmatchedSet{}
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		account, err := uow.BankAccounts().Get(ctx, bankAccountID)
		if err != nil {
			return err
		}

		stmts, err := uow.Statements().List(ctx, store.StatementFilter{BankAccountID: &bankAccountID})
		if err != nil {
			return err
		}

		unmatched := model.TransactionUnmatched
		for _, stmt := range stmts {
			txns, err := uow.Transactions().List(ctx, store.TransactionFilter{
				StatementID: &stmt.ID,
				Status:      &unmatched,
				DateFrom:    &from,
				DateTo:      &to,
			})
			if err != nil {
				return err
			}
			set.BankTransactions = append(set.BankTransactions, txns...)
		}

		set.LedgerLines, err = uow.Ledger().FindCandidateLines(ctx, account.LedgerAccountRef, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}
