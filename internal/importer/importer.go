// Package importer turns a raw tabular transaction feed into normalized
// bank transactions attached to a statement.
//
// Rows are validated individually: a row missing its date, description or
// amount is rejected on its own, collected as a row error, and never fails
// the import as a whole. All valid rows are inserted as one atomic unit
// together with a persisted import job record, and the owning statement
// advances from Uploaded to Processed once at least one row lands.
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
	"fund-reconciliation-engine/pkg/logger"
)

// Row is one raw record from a statement feed. Date, Description and
// Amount are required; the rest are optional hints.
type Row struct {
	Date        string
	Description string
	Amount      string
	Reference   string
	Balance     string
	TypeHint    string
	CheckNumber string
}

// Result reports the outcome of a bulk import. Inserted counts committed
// rows; Errors lists the rejected ones. Both can be nonzero at once.
type Result struct {
	JobID    string           `json:"job_id"`
	Inserted int              `json:"inserted"`
	Errors   []model.RowError `json:"errors,omitempty"`
}

// Service imports transaction feeds
type Service struct {
	store store.Store
	log   logger.Logger
}

// NewService creates an importer Service
func NewService(st store.Store, log logger.Logger) *Service {
	if log == nil {
		log = logger.Global()
	}
	return &Service{store: st, log: log.WithComponent("importer")}
}

// Import normalizes rows into bank transactions for the statement and
// commits them in one atomic unit. Partial success is expected: invalid
// rows are reported in the result, not rolled into an error, and do not
// block valid rows.
func (s *Service) Import(ctx context.Context, statementID int64, rows []Row) (*Result, error) {
	job := &model.ImportJob{
		ID:          uuid.NewString(),
		StatementID: statementID,
		Status:      model.ImportRunning,
		RowsTotal:   len(rows),
		StartedAt:   time.Now().UTC(),
	}

	result := &Result{JobID: job.ID}
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		stmt, err := uow.Statements().Get(ctx, statementID)
		if err != nil {
			return err
		}
		if stmt.Status == model.StatementReconciled {
			return apperr.Conflict("statement %d is reconciled and cannot accept transactions", statementID).
				WithContext("status", stmt.Status.String())
		}

		txns, rowErrors := normalizeRows(statementID, rows)
		result.Errors = rowErrors

		if len(txns) > 0 {
			inserted, err := uow.Transactions().BulkInsert(ctx, txns)
			if err != nil {
				return err
			}
			result.Inserted = inserted

			// Statement status advances only once at least one row
			// actually landed.
			if stmt.Status == model.StatementUploaded {
				if err := uow.Statements().SetStatus(ctx, statementID, model.StatementProcessed); err != nil {
					return err
				}
			}
		}

		now := time.Now().UTC()
		job.Status = model.ImportCompleted
		job.RowsInserted = result.Inserted
		job.RowsRejected = len(rowErrors)
		job.RowErrors = rowErrors
		job.FinishedAt = &now
		return uow.ImportJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logger.Fields{
		"job_id":       job.ID,
		"statement_id": statementID,
		"inserted":     result.Inserted,
		"rejected":     len(result.Errors),
	}).Info("import finished")
	return result, nil
}

// Job returns the persisted record of a previous import
func (s *Service) Job(ctx context.Context, jobID string) (*model.ImportJob, error) {
	var job *model.ImportJob
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		var err error
		job, err = uow.ImportJobs().Get(ctx, jobID)
		return err
	})
	return job, err
}

// normalizeRows validates and classifies each row independently.
func normalizeRows(statementID int64, rows []Row) ([]*model.BankTransaction, []model.RowError) {
	var (
		txns      []*model.BankTransaction
		rowErrors []model.RowError
	)
	for i, row := range rows {
		txn, err := normalizeRow(statementID, row)
		if err != nil {
			rowErrors = append(rowErrors, model.RowError{Row: i + 1, Message: err.Error()})
			continue
		}
		txns = append(txns, txn)
	}
	return txns, rowErrors
}

func normalizeRow(statementID int64, row Row) (*model.BankTransaction, error) {
	if strings.TrimSpace(row.Date) == "" {
		return nil, fmt.Errorf("missing date")
	}
	if strings.TrimSpace(row.Description) == "" {
		return nil, fmt.Errorf("missing description")
	}
	if strings.TrimSpace(row.Amount) == "" {
		return nil, fmt.Errorf("missing amount")
	}

	date, err := model.ParseDate(row.Date)
	if err != nil {
		return nil, err
	}
	amount, err := model.ParseAmount(row.Amount)
	if err != nil {
		return nil, err
	}

	txnType, ok := model.ParseTransactionType(row.TypeHint)
	if !ok {
		txnType = model.ClassifyType(amount)
	}

	var runningBalance *decimal.Decimal
	if strings.TrimSpace(row.Balance) != "" {
		balance, err := model.ParseAmount(row.Balance)
		if err != nil {
			return nil, fmt.Errorf("invalid running balance: %w", err)
		}
		runningBalance = &balance
	}

	return &model.BankTransaction{
		StatementID:     statementID,
		TransactionDate: date,
		Description:     strings.TrimSpace(row.Description),
		Reference:       strings.TrimSpace(row.Reference),
		Amount:          amount,
		RunningBalance:  runningBalance,
		Type:            txnType,
		CheckNumber:     strings.TrimSpace(row.CheckNumber),
		Status:          model.TransactionUnmatched,
	}, nil
}
