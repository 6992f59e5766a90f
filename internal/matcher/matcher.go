package matcher

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fund-reconciliation-engine/internal/model"
	"fund-reconciliation-engine/internal/store"
	"fund-reconciliation-engine/pkg/apperr"
	"fund-reconciliation-engine/pkg/logger"
)

// Service owns the match and unmatch state transitions
type Service struct {
	store store.Store
	log   logger.Logger
}

// NewService creates a matcher Service
func NewService(st store.Store, log logger.Logger) *Service {
	if log == nil {
		log = logger.Global()
	}
	return &Service{store: st, log: log.WithComponent("matcher")}
}

// MatchedPair identifies one accepted auto-match
type MatchedPair struct {
	ItemID            int64           `json:"item_id"`
	BankTransactionID int64           `json:"bank_transaction_id"`
	LedgerLineID      int64           `json:"ledger_line_id"`
	Amount            decimal.Decimal `json:"amount"`
}

// AutoMatchResult reports what one auto-match pass created
type AutoMatchResult struct {
	MatchesCreated int           `json:"matches_created"`
	Pairs          []MatchedPair `json:"pairs,omitempty"`
}

// AutoMatch runs one heuristic matching pass over the reconciliation's
// unmatched bank transactions. The whole pass is one atomic unit: a
// failure mid-pass rolls back every match it created.
func (s *Service) AutoMatch(ctx context.Context, reconciliationID int64, cfg *Config) (*AutoMatchResult, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperr.Validation("config", "%v", err)
	}

	result := &AutoMatchResult{}
	err := s.store.Atomic(ctx, func(uow store.UnitOfWork) error {
		rec, err := uow.Reconciliations().Get(ctx, reconciliationID)
		if err != nil {
			return err
		}
		if rec.Status != model.ReconciliationInProgress {
			return apperr.Conflict("reconciliation %d is %s; matching requires %s",
				rec.ID, rec.Status, model.ReconciliationInProgress).
				WithContext("status", rec.Status.String())
		}
		if rec.StatementID == nil {
			return apperr.Conflict("reconciliation %d has no linked statement to match against", rec.ID)
		}

		stmt, err := uow.Statements().Get(ctx, *rec.StatementID)
		if err != nil {
			return err
		}
		account, err := uow.BankAccounts().Get(ctx, rec.BankAccountID)
		if err != nil {
			return err
		}

		unmatched := model.TransactionUnmatched
		txns, err := uow.Transactions().List(ctx, store.TransactionFilter{
			StatementID: rec.StatementID,
			Status:      &unmatched,
		})
		if err != nil {
			return err
		}

		// Window the candidate query loosely by the statement period;
		// per-transaction date checks below apply the exact tolerance.
		from := stmt.PeriodStart.AddDate(0, 0, -cfg.DateToleranceDays)
		to := stmt.PeriodEnd.AddDate(0, 0, cfg.DateToleranceDays)
		lines, err := uow.Ledger().FindCandidateLines(ctx, account.LedgerAccountRef, from, to)
		if err != nil {
			return err
		}

		claimed := make(map[int64]bool)
		for _, txn := range txns {
			if txn.Amount.IsZero() {
				continue
			}

			// Re-check status under lock: a concurrent manual match may
			// have claimed the transaction since the list was read.
			locked, err := uow.Transactions().GetForUpdate(ctx, txn.ID)
			if err != nil {
				return err
			}
			if locked.Status != model.TransactionUnmatched {
				continue
			}

			candidates := candidatesFor(locked, lines, claimed, cfg)
			if len(candidates) != 1 {
				// Zero or ambiguous: leave unmatched.
				continue
			}

			line := candidates[0]
			txnID := locked.ID
			lineID := line.ID
			item := &model.ReconciliationItem{
				ReconciliationID:  rec.ID,
				BankTransactionID: &txnID,
				LedgerLineID:      &lineID,
				MatchType:         model.MatchAuto,
				Amount:            locked.AbsoluteAmount(),
				CreatedAt:         time.Now().UTC(),
			}
			itemID, err := uow.Items().Create(ctx, item)
			if err != nil {
				return err
			}
			if err := uow.Transactions().SetStatus(ctx, txnID, model.TransactionMatched); err != nil {
				return err
			}

			claimed[lineID] = true
			result.MatchesCreated++
			result.Pairs = append(result.Pairs, MatchedPair{
				ItemID:            itemID,
				BankTransactionID: txnID,
				LedgerLineID:      lineID,
				Amount:            item.Amount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logger.Fields{
		"reconciliation_id": reconciliationID,
		"matches_created":   result.MatchesCreated,
	}).Info("auto-match pass finished")
	return result, nil
}

// candidatesFor returns the ledger lines satisfying every active criterion
// for the transaction. Collection stops at two: that is already ambiguous.
func candidatesFor(txn *model.BankTransaction, lines []*model.LedgerLine, claimed map[int64]bool, cfg *Config) []*model.LedgerLine {
	var out []*model.LedgerLine
	for _, line := range lines {
		if claimed[line.ID] {
			continue
		}
		if !amountMatches(txn, line) {
			continue
		}
		if !model.WithinDateTolerance(txn.TransactionDate, line.Date, cfg.DateToleranceDays) {
			continue
		}
		if cfg.MatchDescriptions && !descriptionsOverlap(txn.Description, line.Description) {
			continue
		}
		out = append(out, line)
		if len(out) > 1 {
			break
		}
	}
	return out
}

// amountMatches compares the bank amount against the ledger side it should
// land on: debits for inflows, credits for outflows.
func amountMatches(txn *model.BankTransaction, line *model.LedgerLine) bool {
	abs := txn.AbsoluteAmount()
	if txn.Amount.IsPositive() {
		return !line.Debit.IsZero() && model.WithinTolerance(line.Debit, abs)
	}
	return !line.Credit.IsZero() && model.WithinTolerance(line.Credit, abs)
}

// descriptionsOverlap is a case-insensitive containment test in either
// direction.
func descriptionsOverlap(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
