package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus lifecycle is linear with one branch:
// Requested -> Frozen -> Approved -> Paid, and Requested/Frozen -> Rejected
// (rejecting a Frozen request unfreezes the funds back to main).
type WithdrawalStatus string

const (
	WithdrawalRequested WithdrawalStatus = "Requested"
	WithdrawalFrozen    WithdrawalStatus = "Frozen"
	WithdrawalApproved  WithdrawalStatus = "Approved"
	WithdrawalRejected  WithdrawalStatus = "Rejected"
	WithdrawalPaid      WithdrawalStatus = "Paid"
)

type WithdrawalRequest struct {
	ID               string           `json:"id" db:"id"`
	AgentID          string           `json:"agent_id" db:"agent_id"`
	CreatedByUserID  string           `json:"created_by_user_id" db:"created_by_user_id"`
	ReviewedByUserID string           `json:"reviewed_by_user_id,omitempty" db:"reviewed_by_user_id"`
	Amount           decimal.Decimal  `json:"amount" db:"amount"`
	Currency         string           `json:"currency" db:"currency"`
	Status           WithdrawalStatus `json:"status" db:"status"`
	Memo             string           `json:"memo,omitempty" db:"memo"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" db:"updated_at"`
}
