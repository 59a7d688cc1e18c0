package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account names are a small fixed set: spendable funds live in "main",
// funds reserved for a withdrawal under review live in "frozen".
const (
	AccountMain   = "main"
	AccountFrozen = "frozen"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryManualAdjustment EntryType = "ManualAdjustment"
	EntryDeposit          EntryType = "Deposit"
	EntryWithdraw         EntryType = "Withdraw"
)

// Ref types link an entry back to the business event that caused it.
// (ref_type, ref_id, entry_type) is unique in the database: the idempotency
// fence for all money movement.
const (
	RefDepositOrder       = "deposit_order"
	RefWithdrawalFreeze   = "withdrawal_request_freeze"
	RefWithdrawalUnfreeze = "withdrawal_request_unfreeze"
	RefWithdrawalPayout   = "withdrawal_request_payout"
)

// Account is a named balance bucket keyed by (owner, currency, name).
// There is no balance column anywhere; a balance is always derived by
// summing the account's entries.
type Account struct {
	ID          string    `json:"id" db:"id"`
	OwnerUserID string    `json:"owner_user_id" db:"owner_user_id"`
	Currency    string    `json:"currency" db:"currency"`
	Name        string    `json:"name" db:"name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// LedgerEntry is an immutable append-only fact. Positive amount is money in,
// negative is money out.
type LedgerEntry struct {
	ID        string          `json:"id" db:"id"`
	AccountID string          `json:"account_id" db:"account_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	EntryType EntryType       `json:"entry_type" db:"entry_type"`
	RefType   string          `json:"ref_type" db:"ref_type"`
	RefID     string          `json:"ref_id" db:"ref_id"`
	Memo      string          `json:"memo" db:"memo"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
