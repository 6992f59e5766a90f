package recon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

// StatementParams holds the fields required to register an uploaded
// statement.
type StatementParams struct {
	BankAccountID  int64
	StatementDate  time.Time
	PeriodStart    time.Time
	PeriodEnd      time.Time
	OpeningBalance decimal.Decimal
	ClosingBalance decimal.Decimal
	SourceFileRef  string
	Notes          string
}

// CreateStatement registers a newly uploaded statement in Uploaded state
func (s *Service) CreateStatement(ctx context.Context, params StatementParams) (*model.BankStatement, error) {
	stmt := &model.BankStatement{
		BankAccountID:  params.BankAccountID,
		StatementDate:  params.StatementDate,
		PeriodStart:    params.PeriodStart,
		PeriodEnd:      params.PeriodEnd,
		OpeningBalance: params.OpeningBalance,
		ClosingBalance: params.ClosingBalance,
		Status:         model.StatementUploaded,
		SourceFileRef:  params.SourceFileRef,
		Notes:          params.Notes,
	}
	if err := stmt.Validate(); err != nil {
		return nil, apperr.Validation("", "%v", err)
	}

	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.BankAccounts().Get(ctx, params.BankAccountID); err != nil {
			return err
		}
		_, err := uow.Statements().Create(ctx, stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// GetStatement returns one statement
func (s *Service) GetStatement(ctx context.Context, id int64) (*model.BankStatement, error) {
	var stmt *model.BankStatement
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		stmt, err = uow.Statements().Get(ctx, id)
		return err
	})
	return stmt, err
}

// ListStatements returns statements matching the filter
func (s *Service) ListStatements(ctx context.Context, filter store.StatementFilter) ([]*model.BankStatement, error) {
	var out []*model.BankStatement
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		out, err = uow.Statements().List(ctx, filter)
		return err
	})
	return out, err
}

// StatementUpdateParams is a partial statement update
type StatementUpdateParams struct {
	StatementDate  *time.Time
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	OpeningBalance *decimal.Decimal
	ClosingBalance *decimal.Decimal
	SourceFileRef  *string
	Notes          *string
}

// UpdateStatement applies a partial update. Reconciled statements are
// terminal and cannot change.
func (s *Service) UpdateStatement(ctx context.Context, id int64, params StatementUpdateParams) (*model.BankStatement, error) {
	var stmt *model.BankStatement
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		stmt, err = uow.Statements().Get(ctx, id)
		if err != nil {
			return err
		}
		if stmt.Status == model.StatementReconciled {
			return apperr.Conflict("statement %d is reconciled and can no longer change", id).
				WithContext("status", stmt.Status.String())
		}

		if params.StatementDate != nil {
			stmt.StatementDate = *params.StatementDate
		}
		if params.PeriodStart != nil {
			stmt.PeriodStart = *params.PeriodStart
		}
		if params.PeriodEnd != nil {
			stmt.PeriodEnd = *params.PeriodEnd
		}
		if params.OpeningBalance != nil {
			stmt.OpeningBalance = *params.OpeningBalance
		}
		if params.ClosingBalance != nil {
			stmt.ClosingBalance = *params.ClosingBalance
		}
		if params.SourceFileRef != nil {
			stmt.SourceFileRef = *params.SourceFileRef
		}
		if params.Notes != nil {
			stmt.Notes = *params.Notes
		}

		if err := stmt.Validate(); err != nil {
			return apperr.Validation("", "%v", err)
		}
		return uow.Statements().Update(ctx, stmt)
	})
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// DeleteStatement removes a statement and its transactions. The delete is
// two-phase inside one atomic unit: references are validated first, then
// the transactions and the statement row are removed, so the blocked-if-
// referenced check cannot race a concurrent reconciliation create.
func (s *Service) DeleteStatement(ctx context.Context, id int64) error {
	return s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		stmt, err := uow.Statements().Get(ctx, id)
		if err != nil {
			return err
		}
		if stmt.Status == model.StatementReconciled {
			return apperr.Conflict("statement %d is reconciled and cannot be deleted", id).
				WithContext("status", stmt.Status.String())
		}

		referenced, err := uow.Reconciliations().ReferencesStatement(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return apperr.Conflict("statement %d is referenced by a reconciliation and cannot be deleted", id)
		}

		if _, err := uow.Transactions().DeleteByStatement(ctx, id); err != nil {
			return err
		}
		return uow.Statements().Delete(ctx, id)
	})
}

// CreateBankAccount registers a bank account with its linked ledger
// account reference.
func (s *Service) CreateBankAccount(ctx context.Context, name, ledgerAccountRef string) (*model.BankAccount, error) {
	account := &model.BankAccount{Name: name, LedgerAccountRef: ledgerAccountRef}
	if err := account.Validate(); err != nil {
		return nil, apperr.Validation("", "%v", err)
	}

	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		_, err := uow.BankAccounts().Create(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// TransactionUpdateParams is a partial bank transaction update
type TransactionUpdateParams struct {
	TransactionDate *time.Time
	Description     *string
	Reference       *string
	CheckNumber     *string
	Status          *model.TransactionStatus
}

// UpdateTransaction applies a partial update to one bank transaction.
// The Matched status is owned by the matcher: it can be neither set nor
// left here, so a matched transaction must be unmatched first.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, params TransactionUpdateParams) (*model.BankTransaction, error) {
	var txn *model.BankTransaction
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		txn, err = uow.Transactions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if params.TransactionDate != nil {
			txn.TransactionDate = *params.TransactionDate
		}
		if params.Description != nil {
			txn.Description = *params.Description
		}
		if params.Reference != nil {
			txn.Reference = *params.Reference
		}
		if params.CheckNumber != nil {
			txn.CheckNumber = *params.CheckNumber
		}
		if params.Status != nil && *params.Status != txn.Status {
			if !params.Status.IsValid() {
				return apperr.Validation("status", "invalid transaction status: %s", *params.Status)
			}
			if *params.Status == model.TransactionMatched {
				return apperr.Conflict("transaction status cannot be set to %s directly; create a match instead",
					model.TransactionMatched)
			}
			if txn.Status == model.TransactionMatched {
				return apperr.Conflict("bank transaction %d is matched; unmatch it before changing its status", id).
					WithContext("status", txn.Status.String())
			}
			txn.Status = *params.Status
		}

		if err := txn.Validate(); err != nil {
			return apperr.Validation("", "%v", err)
		}
		return uow.Transactions().Update(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns bank transactions matching the filter
func (s *Service) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*model.BankTransaction, error) {
	var out []*model.BankTransaction
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		out, err = uow.Transactions().List(ctx, filter)
		return err
	})
	return out, err
}
