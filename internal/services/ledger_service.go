package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/agentpay/backoffice/internal/database"
	"github.com/agentpay/backoffice/internal/models"
)

// LedgerService is the only component that persists money movement. Accounts
// are created lazily; entries are append-only; balances are always recomputed
// by summation, never cached.
type LedgerService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewLedgerService(db *sql.DB, log *logrus.Logger) *LedgerService {
	return &LedgerService{db: db, log: log}
}

// AppendEntryParams describes one signed ledger posting.
type AppendEntryParams struct {
	AccountID string
	Amount    decimal.Decimal
	EntryType models.EntryType
	RefType   string
	RefID     string
	Memo      string
}

// EnsureAccount resolves the account for (owner, currency, name), creating it
// on first use. Concurrent callers racing on the same key both land on the
// same row: the insert is ON CONFLICT DO NOTHING and the select runs after.
func (s *LedgerService) EnsureAccount(ctx context.Context, q querier, ownerUserID, currency, name string) (string, error) {
	_, err := q.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_user_id, currency, name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (owner_user_id, currency, name) DO NOTHING`,
		uuid.NewString(), ownerUserID, currency, name)
	if err != nil {
		return "", fmt.Errorf("ensure account: %w", err)
	}

	var id string
	err = q.QueryRowContext(ctx,
		`SELECT id::text FROM accounts
		 WHERE owner_user_id::text = $1 AND currency = $2 AND name = $3`,
		ownerUserID, currency, name).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("resolve account: %w", err)
	}
	return id, nil
}

// Balance sums all entries for the account. Callers that gate a mutation on
// the result must pass their own transaction handle so the read and the
// subsequent writes see the same snapshot.
func (s *LedgerService) Balance(ctx context.Context, q querier, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id::text = $1`,
		accountID).Scan(&balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum balance: %w", err)
	}
	return balance, nil
}

// AppendEntry posts one immutable entry. The database-enforced uniqueness of
// (ref_type, ref_id, entry_type) is the idempotency fence for all money
// movement: a replayed webhook or a retried request maps to ErrConflict here
// even if it raced past the row lock on another service instance.
func (s *LedgerService) AppendEntry(ctx context.Context, q querier, p AppendEntryParams) (string, error) {
	id := uuid.NewString()
	_, err := q.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, account_id, amount, entry_type, ref_type, ref_id, memo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, p.AccountID, p.Amount, string(p.EntryType), p.RefType, p.RefID, p.Memo)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s/%s/%s", ErrConflict, p.RefType, p.RefID, p.EntryType)
		}
		return "", fmt.Errorf("append ledger entry: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"account_id": p.AccountID,
		"amount":     p.Amount.String(),
		"entry_type": p.EntryType,
		"ref":        p.RefType + "/" + p.RefID,
	}).Info("ledger entry posted")
	return id, nil
}

// HasEntry reports whether the business event (refType, refID, entryType)
// was already posted.
func (s *LedgerService) HasEntry(ctx context.Context, q querier, refType, refID string, entryType models.EntryType) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM ledger_entries
		   WHERE ref_type = $1 AND ref_id = $2 AND entry_type = $3)`,
		refType, refID, string(entryType)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger entry: %w", err)
	}
	return exists, nil
}

// AccountBalance is one owner balance bucket with its derived balance.
type AccountBalance struct {
	AccountID string          `json:"account_id"`
	Currency  string          `json:"currency"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalancesForOwner lists every account of the owner with its derived balance,
// for dashboards. Read-only; runs outside any transaction.
func (s *LedgerService) BalancesForOwner(ctx context.Context, ownerUserID string) ([]AccountBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id::text, a.currency, a.name, COALESCE(SUM(e.amount), 0)
		 FROM accounts a
		 LEFT JOIN ledger_entries e ON e.account_id = a.id
		 WHERE a.owner_user_id::text = $1
		 GROUP BY a.id, a.currency, a.name
		 ORDER BY a.currency, a.name`,
		ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.AccountID, &b.Currency, &b.Name, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return balances, nil
}

// EntriesForAccount returns the account's entries, newest first.
func (s *LedgerService) EntriesForAccount(ctx context.Context, accountID string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id::text, account_id::text, amount, entry_type::text,
		        COALESCE(ref_type, ''), COALESCE(ref_id, ''), COALESCE(memo, ''), created_at
		 FROM ledger_entries
		 WHERE account_id::text = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var entryType string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &entryType,
			&e.RefType, &e.RefID, &e.Memo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.EntryType = models.EntryType(entryType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
