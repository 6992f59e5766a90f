package recon

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
)

// AdjustmentParams holds the fields of a balancing adjustment
type AdjustmentParams struct {
	AdjustmentDate time.Time
	Description    string
	AdjustmentType string
	Amount         decimal.Decimal
}

// AddAdjustment attaches a pending adjustment to an in-progress
// reconciliation.
func (s *Service) AddAdjustment(ctx context.Context, reconciliationID int64, params AdjustmentParams) (*model.Adjustment, error) {
	adj := &model.Adjustment{
		ReconciliationID: reconciliationID,
		AdjustmentDate:   params.AdjustmentDate,
		Description:      params.Description,
		AdjustmentType:   params.AdjustmentType,
		Amount:           params.Amount,
		Status:           model.AdjustmentPending,
	}
	if err := adj.Validate(); err != nil {
		return nil, apperr.Validation("", "%v", err)
	}

	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		if err := s.requireInProgress(ctx, uow, reconciliationID); err != nil {
			return err
		}
		_, err := uow.Adjustments().Create(ctx, adj)
		return err
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// AdjustmentUpdateParams is a partial adjustment update
type AdjustmentUpdateParams struct {
	AdjustmentDate *time.Time
	Description    *string
	AdjustmentType *string
	Amount         *decimal.Decimal
}

// UpdateAdjustment edits an adjustment while its reconciliation is still
// in progress.
func (s *Service) UpdateAdjustment(ctx context.Context, id int64, params AdjustmentUpdateParams) (*model.Adjustment, error) {
	var adj *model.Adjustment
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		adj, err = uow.Adjustments().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.requireInProgress(ctx, uow, adj.ReconciliationID); err != nil {
			return err
		}

		if params.AdjustmentDate != nil {
			adj.AdjustmentDate = *params.AdjustmentDate
		}
		if params.Description != nil {
			adj.Description = *params.Description
		}
		if params.AdjustmentType != nil {
			adj.AdjustmentType = *params.AdjustmentType
		}
		if params.Amount != nil {
			adj.Amount = *params.Amount
		}

		if err := adj.Validate(); err != nil {
			return apperr.Validation("", "%v", err)
		}
		return uow.Adjustments().Update(ctx, adj)
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// ApproveAdjustment advances a pending adjustment to Approved. Approval
// is a separate action and is not tied to reconciliation completion.
func (s *Service) ApproveAdjustment(ctx context.Context, id int64) (*model.Adjustment, error) {
	var adj *model.Adjustment
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		adj, err = uow.Adjustments().Get(ctx, id)
		if err != nil {
			return err
		}
		if adj.Status == model.AdjustmentApproved {
			return apperr.Conflict("adjustment %d is already approved", id)
		}
		adj.Status = model.AdjustmentApproved
		return uow.Adjustments().Update(ctx, adj)
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// DeleteAdjustment removes an adjustment while its reconciliation is
// still in progress.
func (s *Service) DeleteAdjustment(ctx context.Context, id int64) error {
	return s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		adj, err := uow.Adjustments().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.requireInProgress(ctx, uow, adj.ReconciliationID); err != nil {
			return err
		}
		return uow.Adjustments().Delete(ctx, id)
	})
}

func (s *Service) requireInProgress(ctx context.Context, uow store.UnitOfWork, reconciliationID int64) error {
	rec, err := uow.Reconciliations().Get(ctx, reconciliationID)
	if err != nil {
		return err
	}
	if rec.Status != model.ReconciliationInProgress {
		return apperr.Conflict("reconciliation %d is %s; adjustments require %s",
			reconciliationID, rec.Status, model.ReconciliationInProgress).
			WithContext("status", rec.Status.String())
	}
	return nil
}
