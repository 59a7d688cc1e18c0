package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is applied when a caller omits the currency.
const DefaultCurrency = "CNY"

// memoMaxLen caps free-text memos on orders and review actions.
const memoMaxLen = 500

// querier is the subset of *sql.DB / *sql.Tx that row-level operations need,
// so they can run standalone or inside a caller's transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func normCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		c = DefaultCurrency
	}
	return c, nil
}

func normAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationErrorf("amount must be a positive number")
	}
	return nil
}

func capMemo(memo string) string {
	r := []rune(memo)
	if len(r) > memoMaxLen {
		return string(r[:memoMaxLen])
	}
	return memo
}

// agentIDForUser resolves the account-owning agent for a user. Users without
// an agent binding cannot move money.
func agentIDForUser(ctx context.Context, q querier, userID string) (string, error) {
	var agentID sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT agent_id::text FROM users WHERE id::text = $1`,
		userID).Scan(&agentID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve agent for user: %w", err)
	}
	if !agentID.Valid || agentID.String == "" {
		return "", ErrNotBoundToAgent
	}
	return agentID.String, nil
}
