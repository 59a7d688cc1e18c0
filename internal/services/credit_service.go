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

// CreditService manages post-paid agents' credit limits and the raise-limit
// request queue. Credit limits are configuration, not money: nothing here
// touches the ledger.
type CreditService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewCreditService(db *sql.DB, log *logrus.Logger) *CreditService {
	return &CreditService{db: db, log: log}
}

const creditLimitColumns = `id::text, agent_id::text, credit_limit_amount,
	first_fee_amount, COALESCE(note, ''), created_at, updated_at`

// GetByAgent returns the agent's credit limit, or ErrNotFound if none is set.
func (s *CreditService) GetByAgent(ctx context.Context, agentID string) (*models.CreditLimit, error) {
	var cl models.CreditLimit
	err := s.db.QueryRowContext(ctx,
		`SELECT `+creditLimitColumns+` FROM credit_limits WHERE agent_id::text = $1`,
		agentID).Scan(&cl.ID, &cl.AgentID, &cl.CreditLimitAmount,
		&cl.FirstFeeAmount, &cl.Note, &cl.CreatedAt, &cl.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("credit limit for agent %s: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get credit limit: %w", err)
	}
	return &cl, nil
}

// Upsert sets or replaces an agent's credit limit (reviewer surface).
func (s *CreditService) Upsert(ctx context.Context, agentID string, limit, firstFee decimal.Decimal, note string) (*models.CreditLimit, error) {
	if limit.IsNegative() || firstFee.IsNegative() {
		return nil, validationErrorf("credit limit amounts cannot be negative")
	}

	var cl models.CreditLimit
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO credit_limits (id, agent_id, credit_limit_amount, first_fee_amount, note)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (agent_id) DO UPDATE
		 SET credit_limit_amount = EXCLUDED.credit_limit_amount,
		     first_fee_amount = EXCLUDED.first_fee_amount,
		     note = EXCLUDED.note,
		     updated_at = now()
		 RETURNING `+creditLimitColumns,
		uuid.NewString(), agentID, limit, firstFee, capMemo(note)).
		Scan(&cl.ID, &cl.AgentID, &cl.CreditLimitAmount,
			&cl.FirstFeeAmount, &cl.Note, &cl.CreatedAt, &cl.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert credit limit: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"agent_id": agentID,
		"limit":    limit.String(),
	}).Info("credit limit set")
	return &cl, nil
}

const creditRequestColumns = `id::text, agent_id::text, requested_amount,
	COALESCE(note, ''), status::text, COALESCE(created_by_user_id::text, ''),
	COALESCE(decided_by_user_id::text, ''), decided_at, created_at, updated_at`

func scanCreditRequest(row interface{ Scan(...any) error }) (*models.CreditLimitRequest, error) {
	var cr models.CreditLimitRequest
	var status string
	err := row.Scan(&cr.ID, &cr.AgentID, &cr.RequestedAmount, &cr.Note, &status,
		&cr.CreatedByUserID, &cr.DecidedByUserID, &cr.DecidedAt, &cr.CreatedAt, &cr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cr.Status = models.CreditLimitRequestStatus(status)
	return &cr, nil
}

// CreateRequest files a raise-limit request for the caller's agent.
func (s *CreditService) CreateRequest(ctx context.Context, userID string, amount decimal.Decimal, note string) (*models.CreditLimitRequest, error) {
	if err := normAmount(amount); err != nil {
		return nil, err
	}
	agentID, err := agentIDForUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO credit_limit_requests (id, agent_id, requested_amount, note, status, created_by_user_id)
		 VALUES ($1, $2, $3, $4, 'Pending', $5)
		 RETURNING `+creditRequestColumns,
		uuid.NewString(), agentID, amount, capMemo(note), userID)
	req, err := scanCreditRequest(row)
	if err != nil {
		return nil, fmt.Errorf("create credit limit request: %w", err)
	}
	return req, nil
}

// ListRequests returns recent requests: everything for reviewers, the
// caller's agent scope otherwise.
func (s *CreditService) ListRequests(ctx context.Context, userID string, role models.Role) ([]models.CreditLimitRequest, error) {
	query := `SELECT ` + creditRequestColumns + ` FROM credit_limit_requests ORDER BY created_at DESC LIMIT 200`
	args := []any{}

	if !role.IsReviewer() {
		agentID, err := agentIDForUser(ctx, s.db, userID)
		if err == ErrNotBoundToAgent {
			return []models.CreditLimitRequest{}, nil
		}
		if err != nil {
			return nil, err
		}
		query = `SELECT ` + creditRequestColumns + ` FROM credit_limit_requests
			 WHERE agent_id::text = $1 ORDER BY created_at DESC LIMIT 200`
		args = append(args, agentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credit limit requests: %w", err)
	}
	defer rows.Close()

	reqs := []models.CreditLimitRequest{}
	for rows.Next() {
		r, err := scanCreditRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit limit request: %w", err)
		}
		reqs = append(reqs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit limit requests: %w", err)
	}
	return reqs, nil
}

// Decide approves or rejects a pending request under its row lock. Approval
// also raises the agent's credit limit in the same transaction; a decided
// request is a no-op Skipped.
func (s *CreditService) Decide(ctx context.Context, id, reviewerUserID string, approve bool, note string) (models.Outcome, error) {
	return guardedTransition(ctx, s.db, func(tx *sql.Tx) (models.Outcome, error) {
		var agentID string
		var amount decimal.Decimal
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT agent_id::text, requested_amount, status::text
			 FROM credit_limit_requests WHERE id::text = $1
			 FOR UPDATE`,
			id).Scan(&agentID, &amount, &status)
		if err == sql.ErrNoRows {
			return models.Outcome{}, fmt.Errorf("credit limit request %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return models.Outcome{}, fmt.Errorf("lock credit limit request: %w", err)
		}

		if models.CreditLimitRequestStatus(status) != models.CreditRequestPending {
			return models.Skipped(fmt.Sprintf("status is %s", status)), nil
		}

		decided := models.CreditRequestRejected
		if approve {
			decided = models.CreditRequestApproved
			_, err := tx.ExecContext(ctx,
				`INSERT INTO credit_limits (id, agent_id, credit_limit_amount, first_fee_amount, note)
				 VALUES ($1, $2, $3, 0, $4)
				 ON CONFLICT (agent_id) DO UPDATE
				 SET credit_limit_amount = EXCLUDED.credit_limit_amount,
				     note = EXCLUDED.note,
				     updated_at = now()`,
				uuid.NewString(), agentID, amount, capMemo(note))
			if err != nil {
				return models.Outcome{}, fmt.Errorf("apply approved credit limit: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE credit_limit_requests
			 SET status = $2,
			     decided_by_user_id = $3,
			     note = COALESCE(NULLIF($4, ''), note),
			     decided_at = now(),
			     updated_at = now()
			 WHERE id::text = $1`,
			id, string(decided), reviewerUserID, capMemo(note))
		if err != nil {
			return models.Outcome{}, fmt.Errorf("decide credit limit request: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"request_id": id,
			"decision":   decided,
			"reviewer":   reviewerUserID,
		}).Info("credit limit request decided")

		if approve {
			return models.Outcome{Code: models.OutcomeApproved}, nil
		}
		return models.Outcome{Code: models.OutcomeRejected}, nil
	})
}
