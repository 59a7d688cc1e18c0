package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditLimit struct {
	ID                string          `json:"id" db:"id"`
	AgentID           string          `json:"agent_id" db:"agent_id"`
	CreditLimitAmount decimal.Decimal `json:"credit_limit_amount" db:"credit_limit_amount"`
	FirstFeeAmount    decimal.Decimal `json:"first_fee_amount" db:"first_fee_amount"`
	Note              string          `json:"note,omitempty" db:"note"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

type CreditLimitRequestStatus string

const (
	CreditRequestPending  CreditLimitRequestStatus = "Pending"
	CreditRequestApproved CreditLimitRequestStatus = "Approved"
	CreditRequestRejected CreditLimitRequestStatus = "Rejected"
)

type CreditLimitRequest struct {
	ID              string                   `json:"id" db:"id"`
	AgentID         string                   `json:"agent_id" db:"agent_id"`
	RequestedAmount decimal.Decimal          `json:"requested_amount" db:"requested_amount"`
	Note            string                   `json:"note,omitempty" db:"note"`
	Status          CreditLimitRequestStatus `json:"status" db:"status"`
	CreatedByUserID string                   `json:"created_by_user_id,omitempty" db:"created_by_user_id"`
	DecidedByUserID string                   `json:"decided_by_user_id,omitempty" db:"decided_by_user_id"`
	DecidedAt       *time.Time               `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt       time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at" db:"updated_at"`
}
