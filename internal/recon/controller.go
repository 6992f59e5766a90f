// Package recon owns the reconciliation lifecycle: creation, balance
// tracking, the completion gate, and approval. It is the only component
// that marks a statement Reconciled.
//
// The state machine is InProgress -> Completed -> Approved. Completed is
// reachable only through Complete, whose precondition is that the stored
// difference is within tolerance of zero. Approved is terminal.
package recon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
	"fund-reconciliation-engine/pkg/logger"
)

// Service is the reconciliation controller
type Service struct {
	store store.Store
	log   logger.Logger
}

// NewService creates a reconciliation Service
func NewService(st store.Store, log logger.Logger) *Service {
	if log == nil {
		log = logger.Global()
	}
	return &Service{store: st, log: log.WithComponent("recon")}
}

// CreateParams holds the operator-supplied initial balances for a new
// reconciliation.
type CreateParams struct {
	BankAccountID      int64
	StatementID        *int64
	ReconciliationDate time.Time
	StartBalance       decimal.Decimal
	EndBalance         decimal.Decimal
	BookBalance        decimal.Decimal
	StatementBalance   decimal.Decimal
	Notes              string
}

// Create opens a reconciliation. Difference is computed once here as
// statement balance minus book balance and stored; it is not recomputed
// as matches and adjustments change.
func (s *Service) Create(ctx context.Context, params CreateParams) (*model.Reconciliation, error) {
	if params.BankAccountID == 0 {
		return nil, apperr.Validation("bank_account_id", "bank account reference is required")
	}
	if params.ReconciliationDate.IsZero() {
		return nil, apperr.Validation("reconciliation_date", "reconciliation date is required")
	}

	rec := &model.Reconciliation{
		BankAccountID:      params.BankAccountID,
		StatementID:        params.StatementID,
		ReconciliationDate: params.ReconciliationDate,
		StartBalance:       params.StartBalance,
		EndBalance:         params.EndBalance,
		BookBalance:        params.BookBalance,
		StatementBalance:   params.StatementBalance,
		Difference:         model.ComputeDifference(params.StatementBalance, params.BookBalance),
		Status:             model.ReconciliationInProgress,
		Notes:              params.Notes,
	}
	if err := rec.Validate(); err != nil {
		return nil, apperr.Validation("", "%v", err)
	}

	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		if _, err := uow.BankAccounts().Get(ctx, params.BankAccountID); err != nil {
			return err
		}
		if params.StatementID != nil {
			if _, err := uow.Statements().Get(ctx, *params.StatementID); err != nil {
				return err
			}
		}

		open, err := uow.Reconciliations().HasInProgress(ctx, params.BankAccountID)
		if err != nil {
			return err
		}
		if open {
			return apperr.Conflict("bank account %d already has a reconciliation in progress", params.BankAccountID)
		}

		_, err = uow.Reconciliations().Create(ctx, rec)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("reconciliation_id", rec.ID).Info("reconciliation created")
	return rec, nil
}

// UpdateParams is a partial update; nil fields are left unchanged.
type UpdateParams struct {
	ReconciliationDate *time.Time
	StartBalance       *decimal.Decimal
	EndBalance         *decimal.Decimal
	BookBalance        *decimal.Decimal
	StatementBalance   *decimal.Decimal
	Notes              *string
	Status             *model.ReconciliationStatus
	ApprovedBy         string
}

// Update applies a partial update. Difference is recomputed only when
// both book and statement balances arrive in the same call. A status
// transition to Approved stamps the approver identity and timestamp;
// Completed cannot be reached here, only through Complete.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (*model.Reconciliation, error) {
	var rec *model.Reconciliation
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		rec, err = uow.Reconciliations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status == model.ReconciliationApproved {
			return apperr.Conflict("reconciliation %d is approved and can no longer change", id).
				WithContext("status", rec.Status.String())
		}

		if params.ReconciliationDate != nil {
			rec.ReconciliationDate = *params.ReconciliationDate
		}
		if params.StartBalance != nil {
			rec.StartBalance = *params.StartBalance
		}
		if params.EndBalance != nil {
			rec.EndBalance = *params.EndBalance
		}
		if params.BookBalance != nil {
			rec.BookBalance = *params.BookBalance
		}
		if params.StatementBalance != nil {
			rec.StatementBalance = *params.StatementBalance
		}
		if params.BookBalance != nil && params.StatementBalance != nil {
			rec.Difference = model.ComputeDifference(rec.StatementBalance, rec.BookBalance)
		}
		if params.Notes != nil {
			rec.Notes = *params.Notes
		}

		if params.Status != nil && *params.Status != rec.Status {
			if !params.Status.IsValid() {
				return apperr.Validation("status", "invalid reconciliation status: %s", *params.Status)
			}
			switch *params.Status {
			case model.ReconciliationApproved:
				if rec.Status != model.ReconciliationCompleted {
					return apperr.Conflict("reconciliation %d is %s; approval requires %s",
						id, rec.Status, model.ReconciliationCompleted).
						WithContext("status", rec.Status.String())
				}
				if params.ApprovedBy == "" {
					return apperr.Validation("approved_by", "approver identity is required")
				}
				now := time.Now().UTC()
				rec.Status = model.ReconciliationApproved
				rec.ApprovedBy = params.ApprovedBy
				rec.ApprovedAt = &now
			default:
				return apperr.Conflict("reconciliation status cannot be set to %s directly", *params.Status)
			}
		}

		if err := rec.Validate(); err != nil {
			return apperr.Validation("", "%v", err)
		}
		return uow.Reconciliations().Update(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Approve marks a completed reconciliation approved
func (s *Service) Approve(ctx context.Context, id int64, approvedBy string) (*model.Reconciliation, error) {
	status := model.ReconciliationApproved
	return s.Update(ctx, id, UpdateParams{Status: &status, ApprovedBy: approvedBy})
}

// Complete closes the reconciliation. Precondition: the stored difference
// is within tolerance of zero; violating it fails with a conflict naming
// the current difference. On success the reconciliation, the bank
// account's last-reconciliation snapshot, and the linked statement's
// status all change in one atomic unit.
func (s *Service) Complete(ctx context.Context, id int64) (*model.Reconciliation, error) {
	var rec *model.Reconciliation
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		rec, err = uow.Reconciliations().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if rec.Status != model.ReconciliationInProgress {
			return apperr.Conflict("reconciliation %d is %s; completion requires %s",
				id, rec.Status, model.ReconciliationInProgress).
				WithContext("status", rec.Status.String())
		}
		if !rec.IsBalanced() {
			return apperr.Conflict("cannot complete reconciliation %d: difference is %s",
				id, rec.Difference.String()).
				WithContext("difference", rec.Difference.String())
		}

		rec.Status = model.ReconciliationCompleted
		if err := uow.Reconciliations().Update(ctx, rec); err != nil {
			return err
		}

		if err := uow.BankAccounts().RecordReconciliation(ctx, rec.BankAccountID,
			rec.ReconciliationDate, rec.EndBalance, rec.ID); err != nil {
			return err
		}

		if rec.StatementID != nil {
			if err := uow.Statements().SetStatus(ctx, *rec.StatementID, model.StatementReconciled); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("reconciliation_id", id).Info("reconciliation completed")
	return rec, nil
}

// Detail is a reconciliation with its matches and adjustments
type Detail struct {
	Reconciliation *model.Reconciliation       `json:"reconciliation"`
	Items          []*model.ReconciliationItem `json:"items"`
	Adjustments    []*model.Adjustment         `json:"adjustments"`
}

// Get returns a reconciliation with nested matches and adjustments
func (s *Service) Get(ctx context.Context, id int64) (*Detail, error) {
	detail := &Detail{}
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		detail.Reconciliation, err = uow.Reconciliations().Get(ctx, id)
		if err != nil {
			return err
		}
		detail.Items, err = uow.Items().ListByReconciliation(ctx, id)
		if err != nil {
			return err
		}
		detail.Adjustments, err = uow.Adjustments().ListByReconciliation(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns reconciliations matching the filter
func (s *Service) List(ctx context.Context, filter store.ReconciliationFilter) ([]*model.Reconciliation, error) {
	var out []*model.Reconciliation
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		out, err = uow.Reconciliations().List(ctx, filter)
		return err
	})
	return out, err
}
