package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/agentpay/backoffice/internal/models"
)

// WithdrawalService drives the withdrawal review lifecycle:
// Requested -> Frozen -> Approved -> Paid, with Requested/Frozen -> Rejected.
// Freezing reserves funds by moving them main -> frozen inside the same
// transaction that flips the status; rejecting a frozen request moves them
// back; payout burns them out of frozen. Every leg is fenced by the ledger's
// (ref_type, ref_id, entry_type) uniqueness.
type WithdrawalService struct {
	db     *sql.DB
	ledger *LedgerService
	log    *logrus.Logger
}

func NewWithdrawalService(db *sql.DB, ledger *LedgerService, log *logrus.Logger) *WithdrawalService {
	return &WithdrawalService{db: db, ledger: ledger, log: log}
}

const withdrawalColumns = `id::text, agent_id::text, COALESCE(created_by_user_id::text, ''),
	COALESCE(reviewed_by_user_id::text, ''), amount, currency, status::text,
	COALESCE(memo, ''), created_at, updated_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	var status string
	err := row.Scan(&w.ID, &w.AgentID, &w.CreatedByUserID, &w.ReviewedByUserID,
		&w.Amount, &w.Currency, &status, &w.Memo, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = models.WithdrawalStatus(status)
	return &w, nil
}

// CreateForUser files a withdrawal request for the caller's agent. No funds
// move until a reviewer freezes it.
func (s *WithdrawalService) CreateForUser(ctx context.Context, userID string, amount decimal.Decimal, currency, memo string) (*models.WithdrawalRequest, error) {
	if err := normAmount(amount); err != nil {
		return nil, err
	}
	cur, err := normCurrency(currency)
	if err != nil {
		return nil, err
	}

	agentID, err := agentIDForUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO withdrawal_requests (id, agent_id, amount, currency, status, memo, created_by_user_id)
		 VALUES ($1, $2, $3, $4, 'Requested', $5, $6)
		 RETURNING `+withdrawalColumns,
		uuid.NewString(), agentID, amount, cur, capMemo(memo), userID)
	req, err := scanWithdrawal(row)
	if err != nil {
		return nil, fmt.Errorf("create withdrawal request: %w", err)
	}
	return req, nil
}

// ListForUser returns recent requests: everything for reviewers, the caller's
// agent scope otherwise.
func (s *WithdrawalService) ListForUser(ctx context.Context, userID string, role models.Role) ([]models.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests ORDER BY created_at DESC LIMIT 200`
	args := []any{}

	if !role.IsReviewer() {
		agentID, err := agentIDForUser(ctx, s.db, userID)
		if err == ErrNotBoundToAgent {
			return []models.WithdrawalRequest{}, nil
		}
		if err != nil {
			return nil, err
		}
		query = `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests
			 WHERE agent_id::text = $1 ORDER BY created_at DESC LIMIT 200`
		args = append(args, agentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal requests: %w", err)
	}
	defer rows.Close()

	reqs := []models.WithdrawalRequest{}
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal request: %w", err)
		}
		reqs = append(reqs, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal requests: %w", err)
	}
	return reqs, nil
}

// lockedWithdrawal is the row image held under FOR UPDATE during a transition.
type lockedWithdrawal struct {
	ID       string
	Owner    string
	Amount   decimal.Decimal
	Currency string
	Status   models.WithdrawalStatus
}

func lockWithdrawal(ctx context.Context, tx *sql.Tx, id string) (*lockedWithdrawal, error) {
	var w lockedWithdrawal
	var owner sql.NullString
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT id::text, created_by_user_id::text, amount, currency, status::text
		 FROM withdrawal_requests WHERE id::text = $1
		 FOR UPDATE`,
		id).Scan(&w.ID, &owner, &w.Amount, &w.Currency, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("withdrawal request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock withdrawal request: %w", err)
	}
	w.Owner = owner.String
	w.Status = models.WithdrawalStatus(status)
	return &w, nil
}

func setWithdrawalStatus(ctx context.Context, tx *sql.Tx, id string, status models.WithdrawalStatus, reviewerID, memo string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE withdrawal_requests
		 SET status = $2,
		     reviewed_by_user_id = $3,
		     memo = COALESCE(NULLIF($4, ''), memo),
		     updated_at = now()
		 WHERE id::text = $1`,
		id, string(status), reviewerID, capMemo(memo))
	if err != nil {
		return fmt.Errorf("set withdrawal status: %w", err)
	}
	return nil
}

// Freeze reserves the requested funds for review. The balance check and the
// main -> frozen move run under the request's row lock, so two reviewers
// racing on the same request cannot double-reserve, and two requests racing on
// the same balance resolve through the summed ledger they both read in their
// own transaction order.
func (s *WithdrawalService) Freeze(ctx context.Context, id, reviewerUserID, memo string) (models.Outcome, error) {
	return guardedTransition(ctx, s.db, func(tx *sql.Tx) (models.Outcome, error) {
		w, err := lockWithdrawal(ctx, tx, id)
		if err != nil {
			return models.Outcome{}, err
		}
		if w.Status != models.WithdrawalRequested {
			return models.Skipped(fmt.Sprintf("status is %s", w.Status)), nil
		}
		if w.Owner == "" {
			return models.Skipped("request has no owner"), nil
		}

		mainID, err := s.ledger.EnsureAccount(ctx, tx, w.Owner, w.Currency, models.AccountMain)
		if err != nil {
			return models.Outcome{}, err
		}
		frozenID, err := s.ledger.EnsureAccount(ctx, tx, w.Owner, w.Currency, models.AccountFrozen)
		if err != nil {
			return models.Outcome{}, err
		}

		balance, err := s.ledger.Balance(ctx, tx, mainID)
		if err != nil {
			return models.Outcome{}, err
		}
		if balance.LessThan(w.Amount) {
			return models.Skipped(fmt.Sprintf("insufficient balance: have %s, need %s",
				balance.String(), w.Amount.String())), nil
		}

		if _, err := s.ledger.AppendEntry(ctx, tx, AppendEntryParams{
			AccountID: mainID,
			Amount:    w.Amount.Neg(),
			EntryType: models.EntryWithdraw,
			RefType:   models.RefWithdrawalFreeze,
			RefID:     w.ID,
			Memo:      fmt.Sprintf("freeze for withdrawal %s", w.ID),
		}); err != nil {
			return models.Outcome{}, err
		}
		if _, err := s.ledger.AppendEntry(ctx, tx, AppendEntryParams{
			AccountID: frozenID,
			Amount:    w.Amount,
			EntryType: models.EntryManualAdjustment,
			RefType:   models.RefWithdrawalFreeze,
			RefID:     w.ID,
			Memo:      fmt.Sprintf("freeze for withdrawal %s", w.ID),
		}); err != nil {
			return models.Outcome{}, err
		}

		if err := setWithdrawalStatus(ctx, tx, w.ID, models.WithdrawalFrozen, reviewerUserID, memo); err != nil {
			return models.Outcome{}, err
		}

		s.log.WithFields(logrus.Fields{
			"withdrawal_id": w.ID,
			"amount":        w.Amount.String(),
			"reviewer":      reviewerUserID,
		}).Info("withdrawal frozen")
		return models.Outcome{Code: models.OutcomeFrozen}, nil
	})
}

// Approve marks a frozen request approved. No funds move; the reservation
// made at freeze time stays until payout or rejection.
func (s *WithdrawalService) Approve(ctx context.Context, id, reviewerUserID, memo string) (models.Outcome, error) {
	return guardedTransition(ctx, s.db, func(tx *sql.Tx) (models.Outcome, error) {
		w, err := lockWithdrawal(ctx, tx, id)
		if err != nil {
			return models.Outcome{}, err
		}
		if w.Status != models.WithdrawalFrozen {
			return models.Skipped(fmt.Sprintf("status is %s", w.Status)), nil
		}

		if err := setWithdrawalStatus(ctx, tx, w.ID, models.WithdrawalApproved, reviewerUserID, memo); err != nil {
			return models.Outcome{}, err
		}

		s.log.WithFields(logrus.Fields{
			"withdrawal_id": w.ID,
			"reviewer":      reviewerUserID,
		}).Info("withdrawal approved")
		return models.Outcome{Code: models.OutcomeApproved}, nil
	})
}

// Reject closes a request before payout. A Requested rejection is a pure
// status change; a Frozen rejection also returns the reserved funds
// frozen -> main in the same transaction.
func (s *WithdrawalService) Reject(ctx context.Context, id, reviewerUserID, memo string) (models.Outcome, error) {
	return guardedTransition(ctx, s.db, func(tx *sql.Tx) (models.Outcome, error) {
		w, err := lockWithdrawal(ctx, tx, id)
		if err != nil {
			return models.Outcome{}, err
		}
		if w.Status != models.WithdrawalRequested && w.Status != models.WithdrawalFrozen {
			return models.Skipped(fmt.Sprintf("status is %s", w.Status)), nil
		}

		if w.Status == models.WithdrawalFrozen {
			mainID, err := s.ledger.EnsureAccount(ctx, tx, w.Owner, w.Currency, models.AccountMain)
			if err != nil {
				return models.Outcome{}, err
			}
			frozenID, err := s.ledger.EnsureAccount(ctx, tx, w.Owner, w.Currency, models.AccountFrozen)
			if err != nil {
				return models.Outcome{}, err
			}

			if _, err := s.ledger.AppendEntry(ctx, tx, AppendEntryParams{
				AccountID: frozenID,
				Amount:    w.Amount.Neg(),
				EntryType: models.EntryWithdraw,
				RefType:   models.RefWithdrawalUnfreeze,
				RefID:     w.ID,
				Memo:      fmt.Sprintf("unfreeze for rejected withdrawal %s", w.ID),
			}); err != nil {
				return models.Outcome{}, err
			}
			if _, err := s.ledger.AppendEntry(ctx, tx, AppendEntryParams{
				AccountID: mainID,
				Amount:    w.Amount,
				EntryType: models.EntryManualAdjustment,
				RefType:   models.RefWithdrawalUnfreeze,
				RefID:     w.ID,
				Memo:      fmt.Sprintf("unfreeze for rejected withdrawal %s", w.ID),
			}); err != nil {
				return models.Outcome{}, err
			}
		}

		if err := setWithdrawalStatus(ctx, tx, w.ID, models.WithdrawalRejected, reviewerUserID, memo); err != nil {
			return models.Outcome{}, err
		}

		s.log.WithFields(logrus.Fields{
			"withdrawal_id": w.ID,
			"reviewer":      reviewerUserID,
		}).Info("withdrawal rejected")
		return models.Outcome{Code: models.OutcomeRejected}, nil
	})
}

// Payout settles an approved request: the reserved funds leave the frozen
// account and the system. Terminal.
func (s *WithdrawalService) Payout(ctx context.Context, id, reviewerUserID, memo string) (models.Outcome, error) {
	return guardedTransition(ctx, s.db, func(tx *sql.Tx) (models.Outcome, error) {
		w, err := lockWithdrawal(ctx, tx, id)
		if err != nil {
			return models.Outcome{}, err
		}
		if w.Status != models.WithdrawalApproved {
			return models.Skipped(fmt.Sprintf("status is %s", w.Status)), nil
		}

		frozenID, err := s.ledger.EnsureAccount(ctx, tx, w.Owner, w.Currency, models.AccountFrozen)
		if err != nil {
			return models.Outcome{}, err
		}

		// The freeze reserved these funds, but a prior partial failure could
		// have drained them; recheck before posting.
		balance, err := s.ledger.Balance(ctx, tx, frozenID)
		if err != nil {
			return models.Outcome{}, err
		}
		if balance.LessThan(w.Amount) {
			return models.Skipped(fmt.Sprintf("insufficient frozen balance: have %s, need %s",
				balance.String(), w.Amount.String())), nil
		}

		if _, err := s.ledger.AppendEntry(ctx, tx, AppendEntryParams{
			AccountID: frozenID,
			Amount:    w.Amount.Neg(),
			EntryType: models.EntryWithdraw,
			RefType:   models.RefWithdrawalPayout,
			RefID:     w.ID,
			Memo:      fmt.Sprintf("payout for withdrawal %s", w.ID),
		}); err != nil {
			return models.Outcome{}, err
		}

		if err := setWithdrawalStatus(ctx, tx, w.ID, models.WithdrawalPaid, reviewerUserID, memo); err != nil {
			return models.Outcome{}, err
		}

		s.log.WithFields(logrus.Fields{
			"withdrawal_id": w.ID,
			"amount":        w.Amount.String(),
			"reviewer":      reviewerUserID,
		}).Info("withdrawal paid out")
		return models.Outcome{Code: models.OutcomePaid}, nil
	})
}
