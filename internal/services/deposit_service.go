package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/agentpay/backoffice/internal/models"
	"github.com/agentpay/backoffice/internal/payments"
)

// QrcodeProvider is the slice of the gateway client the deposit flow needs.
type QrcodeProvider interface {
	FetchQrcode(ctx context.Context, in payments.FetchQrcodeInput) (*payments.FetchQrcodeResult, error)
}

// DepositService drives the deposit-order lifecycle:
// Created/AwaitingPayment -> Paid (external notification) -> Credited
// (ledger posting). Crediting is idempotent under webhook replay and
// crash-and-retry.
type DepositService struct {
	db      *sql.DB
	ledger  *LedgerService
	gateway QrcodeProvider // nil when the gateway is not wired
	log     *logrus.Logger
}

func NewDepositService(db *sql.DB, ledger *LedgerService, gateway QrcodeProvider, log *logrus.Logger) *DepositService {
	return &DepositService{db: db, ledger: ledger, gateway: gateway, log: log}
}

const depositOrderColumns = `id::text, agent_id::text, COALESCE(created_by_user_id::text, ''),
	amount, currency, status::text, COALESCE(atp_order_id, ''), COALESCE(atp_qrcode_url, ''),
	created_at, updated_at`

func scanDepositOrder(row interface{ Scan(...any) error }) (*models.DepositOrder, error) {
	var o models.DepositOrder
	var status string
	err := row.Scan(&o.ID, &o.AgentID, &o.CreatedByUserID, &o.Amount, &o.Currency,
		&status, &o.AtpOrderID, &o.AtpQrcodeURL, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.DepositOrderStatus(status)
	return &o, nil
}

// CreateForUser opens a deposit order for the caller's agent. When the
// gateway is wired, a payment QR code is requested up front; gateway failure
// is not fatal, the order just stays without one.
func (s *DepositService) CreateForUser(ctx context.Context, userID string, amount decimal.Decimal, currency string) (*models.DepositOrder, error) {
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

	id := uuid.NewString()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO deposit_orders (id, agent_id, amount, currency, status, created_by_user_id)
		 VALUES ($1, $2, $3, $4, 'Created', $5)
		 RETURNING `+depositOrderColumns,
		id, agentID, amount, cur, userID)
	order, err := scanDepositOrder(row)
	if err != nil {
		return nil, fmt.Errorf("create deposit order: %w", err)
	}

	if s.gateway != nil {
		res, err := s.gateway.FetchQrcode(ctx, payments.FetchQrcodeInput{
			OutTradeNo: order.ID,
			Amount:     order.Amount,
			Currency:   order.Currency,
			Subject:    "deposit",
		})
		if err != nil || !res.OK {
			s.log.WithField("order_id", order.ID).WithError(err).Warn("gateway qrcode fetch failed, order created without qrcode")
			return order, nil
		}
		if res.QrcodeURL != "" {
			_, err := s.db.ExecContext(ctx,
				`UPDATE deposit_orders SET atp_qrcode_url = $2, updated_at = now() WHERE id::text = $1`,
				order.ID, res.QrcodeURL)
			if err != nil {
				s.log.WithField("order_id", order.ID).WithError(err).Warn("failed to store qrcode url")
			} else {
				order.AtpQrcodeURL = res.QrcodeURL
			}
		}
	}

	return order, nil
}

// ListForUser returns recent orders: everything for reviewers, the caller's
// agent scope otherwise.
func (s *DepositService) ListForUser(ctx context.Context, userID string, role models.Role) ([]models.DepositOrder, error) {
	query := `SELECT ` + depositOrderColumns + ` FROM deposit_orders ORDER BY created_at DESC LIMIT 200`
	args := []any{}

	if !role.IsReviewer() {
		agentID, err := agentIDForUser(ctx, s.db, userID)
		if err == ErrNotBoundToAgent {
			return []models.DepositOrder{}, nil
		}
		if err != nil {
			return nil, err
		}
		query = `SELECT ` + depositOrderColumns + ` FROM deposit_orders
			 WHERE agent_id::text = $1 ORDER BY created_at DESC LIMIT 200`
		args = append(args, agentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposit orders: %w", err)
	}
	defer rows.Close()

	orders := []models.DepositOrder{}
	for rows.Next() {
		o, err := scanDepositOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deposit order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposit orders: %w", err)
	}
	return orders, nil
}

// MarkPaidFromNotify applies an external payment notification. The sender
// retries until acked, so every outcome here is ack-able: unknown orders are
// ignored without leaking internal state, repeats report alreadyProcessed,
// and only a verified notification moves a payable order to Paid. An
// unverified hit on a Created order is parked as AwaitingPayment - evidence
// of a payment attempt, but no money trust.
func (s *DepositService) MarkPaidFromNotify(ctx context.Context, n payments.Notify) (models.Outcome, error) {
	if n.OutTradeNo == "" {
		return models.Ignored("missing outTradeNo"), nil
	}

	return guardedTransition(ctx, s.db, func(tx *sql.Tx) (models.Outcome, error) {
		var id string
		var amount decimal.Decimal
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT id::text, amount, status::text FROM deposit_orders
			 WHERE id::text = $1 OR atp_order_id = $1
			 FOR UPDATE`,
			n.OutTradeNo).Scan(&id, &amount, &status)
		if err == sql.ErrNoRows {
			return models.Ignored("no matching order"), nil
		}
		if err != nil {
			return models.Outcome{}, fmt.Errorf("lock deposit order: %w", err)
		}

		st := models.DepositOrderStatus(status)
		if st == models.DepositPaid || st == models.DepositCredited {
			return models.Outcome{Code: models.OutcomeAlreadyProcessed}, nil
		}
		if !st.Payable() {
			return models.Ignored(fmt.Sprintf("status is %s", st)), nil
		}

		if !n.Verified {
			if st == models.DepositCreated {
				if _, err := tx.ExecContext(ctx,
					`UPDATE deposit_orders
					 SET status = 'AwaitingPayment',
					     atp_order_id = COALESCE(NULLIF($2, ''), atp_order_id),
					     updated_at = now()
					 WHERE id::text = $1`,
					id, n.TradeNo); err != nil {
					return models.Outcome{}, fmt.Errorf("record unverified notification: %w", err)
				}
			}
			reason := n.Reason
			if reason == "" {
				reason = "unverified notification"
			}
			return models.Ignored(reason), nil
		}

		if !n.Amount.IsZero() && !n.Amount.Equal(amount) {
			s.log.WithFields(logrus.Fields{
				"order_id":      id,
				"order_amount":  amount.String(),
				"notify_amount": n.Amount.String(),
			}).Warn("payment notification amount mismatch")
			return models.Ignored("amount mismatch"), nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE deposit_orders
			 SET status = 'Paid',
			     atp_order_id = COALESCE(NULLIF($2, ''), atp_order_id),
			     updated_at = now()
			 WHERE id::text = $1`,
			id, n.TradeNo); err != nil {
			return models.Outcome{}, fmt.Errorf("mark order paid: %w", err)
		}

		s.log.WithField("order_id", id).Info("deposit order marked paid")
		return models.Outcome{Code: models.OutcomeUpdated}, nil
	})
}

// CreditPaidOrder is the only pathway from Paid to Credited. One guarded
// transaction: lock the order, resolve the owner's main account, post the
// Deposit entry and flip the status together. A replay finds the existing
// entry, repairs a half-applied prior run if needed, and reports
// alreadyCredited.
func (s *DepositService) CreditPaidOrder(ctx context.Context, orderID string) (models.Outcome, error) {
	return guardedTransition(ctx, s.db, func(tx *sql.Tx) (models.Outcome, error) {
		var id string
		var owner sql.NullString
		var amount decimal.Decimal
		var currency, status string
		err := tx.QueryRowContext(ctx,
			`SELECT id::text, created_by_user_id::text, amount, currency, status::text
			 FROM deposit_orders WHERE id::text = $1
			 FOR UPDATE`,
			orderID).Scan(&id, &owner, &amount, &currency, &status)
		if err == sql.ErrNoRows {
			return models.Skipped("order not found"), nil
		}
		if err != nil {
			return models.Outcome{}, fmt.Errorf("lock deposit order: %w", err)
		}

		st := models.DepositOrderStatus(status)
		if st != models.DepositPaid && st != models.DepositCredited {
			return models.Skipped(fmt.Sprintf("status is %s", st)), nil
		}
		if !owner.Valid || owner.String == "" {
			return models.Skipped("order has no owner"), nil
		}

		accountID, err := s.ledger.EnsureAccount(ctx, tx, owner.String, currency, models.AccountMain)
		if err != nil {
			return models.Outcome{}, err
		}

		exists, err := s.ledger.HasEntry(ctx, tx, models.RefDepositOrder, id, models.EntryDeposit)
		if err != nil {
			return models.Outcome{}, err
		}
		if exists {
			// Replay. Repair the status if a prior run crashed between the
			// entry and the flip (should not happen - they commit together -
			// but crediting must converge regardless).
			if st != models.DepositCredited {
				if _, err := tx.ExecContext(ctx,
					`UPDATE deposit_orders SET status = 'Credited', updated_at = now() WHERE id::text = $1`,
					id); err != nil {
					return models.Outcome{}, fmt.Errorf("repair credited status: %w", err)
				}
			}
			return models.Outcome{Code: models.OutcomeAlreadyCredited}, nil
		}

		if _, err := s.ledger.AppendEntry(ctx, tx, AppendEntryParams{
			AccountID: accountID,
			Amount:    amount,
			EntryType: models.EntryDeposit,
			RefType:   models.RefDepositOrder,
			RefID:     id,
			Memo:      fmt.Sprintf("credit for deposit order %s", id),
		}); err != nil {
			return models.Outcome{}, err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE deposit_orders SET status = 'Credited', updated_at = now() WHERE id::text = $1`,
			id); err != nil {
			return models.Outcome{}, fmt.Errorf("mark order credited: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"order_id": id,
			"amount":   amount.String(),
		}).Info("deposit order credited")
		return models.Outcome{Code: models.OutcomeCredited}, nil
	})
}
