package recon

import (
	"context"
	"testing"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/pkg/apperr"
)

func TestAddAdjustment(t *testing.T) {
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
	if adj.Status != model.AdjustmentPending {
		t.Errorf("status = %s, want %s", adj.Status, model.AdjustmentPending)
	}
	if adj.ID == 0 {
		t.Error("adjustment ID not assigned")
	}
}

func TestAddAdjustmentValidations(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)
	rec := createRec(t, svc, f, "10500.00", "10500.00")

	_, err := svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(15),
		AdjustmentType: "bank_fee",
		Amount:         amount("-25.00"),
	})
	if !apperr.IsValidation(err) {
		t.Errorf("missing description should be a validation error, got %v", err)
	}

	_, err = svc.AddAdjustment(context.Background(), 999, AdjustmentParams{
		AdjustmentDate: day(15),
		Description:    "Orphan",
		AdjustmentType: "bank_fee",
		Amount:         amount("-25.00"),
	})
	if !apperr.IsNotFound(err) {
		t.Errorf("unknown reconciliation should be not-found, got %v", err)
	}
}

func TestAdjustmentCRUDRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)
	rec := createRec(t, svc, f, "10500.00", "10500.00")

	adj, err := svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(15),
		Description:    "Interest earned",
		AdjustmentType: "interest",
		Amount:         amount("3.17"),
	})
	if err != nil {
		t.Fatalf("AddAdjustment failed: %v", err)
	}

	if _, err := svc.Complete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	_, err = svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(16),
		Description:    "Too late",
		AdjustmentType: "bank_fee",
		Amount:         amount("-1.00"),
	})
	if !apperr.IsConflict(err) {
		t.Errorf("adding to a completed reconciliation should conflict, got %v", err)
	}

	newAmount := amount("4.00")
	_, err = svc.UpdateAdjustment(context.Background(), adj.ID, AdjustmentUpdateParams{Amount: &newAmount})
	if !apperr.IsConflict(err) {
		t.Errorf("editing under a completed reconciliation should conflict, got %v", err)
	}

	if err := svc.DeleteAdjustment(context.Background(), adj.ID); !apperr.IsConflict(err) {
		t.Errorf("deleting under a completed reconciliation should conflict, got %v", err)
	}
}

func TestUpdateAdjustment(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)
	rec := createRec(t, svc, f, "10500.00", "10500.00")

	adj, err := svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(15),
		Description:    "Service fee",
		AdjustmentType: "bank_fee",
		Amount:         amount("-20.00"),
	})
	if err != nil {
		t.Fatalf("AddAdjustment failed: %v", err)
	}

	newAmount := amount("-25.00")
	newDescription := "Service fee (corrected)"
	updated, err := svc.UpdateAdjustment(context.Background(), adj.ID, AdjustmentUpdateParams{
		Amount:      &newAmount,
		Description: &newDescription,
	})
	if err != nil {
		t.Fatalf("UpdateAdjustment failed: %v", err)
	}
	if !updated.Amount.Equal(newAmount) {
		t.Errorf("amount = %s, want %s", updated.Amount, newAmount)
	}
	if updated.Description != newDescription {
		t.Errorf("description = %q, want %q", updated.Description, newDescription)
	}
	if updated.AdjustmentType != "bank_fee" {
		t.Errorf("type changed unexpectedly to %q", updated.AdjustmentType)
	}
}

func TestApproveAdjustment(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)
	rec := createRec(t, svc, f, "10500.00", "10500.00")

	adj, err := svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(15),
		Description:    "Service fee",
		AdjustmentType: "bank_fee",
		Amount:         amount("-20.00"),
	})
	if err != nil {
		t.Fatalf("AddAdjustment failed: %v", err)
	}

	approved, err := svc.ApproveAdjustment(context.Background(), adj.ID)
	if err != nil {
		t.Fatalf("ApproveAdjustment failed: %v", err)
	}
	if approved.Status != model.AdjustmentApproved {
		t.Errorf("status = %s, want %s", approved.Status, model.AdjustmentApproved)
	}

	if _, err := svc.ApproveAdjustment(context.Background(), adj.ID); !apperr.IsConflict(err) {
		t.Errorf("double approval should conflict, got %v", err)
	}
}

func TestApproveAdjustmentAfterCompletion(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)
	rec := createRec(t, svc, f, "10500.00", "10500.00")

	adj, err := svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(15),
		Description:    "Service fee",
		AdjustmentType: "bank_fee",
		Amount:         amount("-20.00"),
	})
	if err != nil {
		t.Fatalf("AddAdjustment failed: %v", err)
	}
	if _, err := svc.Complete(context.Background(), rec.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	// Approval is decoupled from the reconciliation lifecycle.
	if _, err := svc.ApproveAdjustment(context.Background(), adj.ID); err != nil {
		t.Fatalf("ApproveAdjustment after completion failed: %v", err)
	}
}

func TestDeleteAdjustment(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.store, nil)
	rec := createRec(t, svc, f, "10500.00", "10500.00")

	adj, err := svc.AddAdjustment(context.Background(), rec.ID, AdjustmentParams{
		AdjustmentDate: day(15),
		Description:    "Duplicate entry",
		AdjustmentType: "correction",
		Amount:         amount("10.00"),
	})
	if err != nil {
		t.Fatalf("AddAdjustment failed: %v", err)
	}

	if err := svc.DeleteAdjustment(context.Background(), adj.ID); err != nil {
		t.Fatalf("DeleteAdjustment failed: %v", err)
	}

	detail, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(detail.Adjustments) != 0 {
		t.Errorf("adjustments after delete = %d, want 0", len(detail.Adjustments))
	}

	if err := svc.DeleteAdjustment(context.Background(), adj.ID); !apperr.IsNotFound(err) {
		t.Errorf("deleting a removed adjustment should be not-found, got %v", err)
	}
}
