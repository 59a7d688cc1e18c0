package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositOrderStatus lifecycle: Created/AwaitingPayment -> Paid -> Credited,
// with Failed/Cancelled reachable before Paid. Credited, Failed and
// Cancelled are terminal.
type DepositOrderStatus string

const (
	DepositCreated         DepositOrderStatus = "Created"
	DepositAwaitingPayment DepositOrderStatus = "AwaitingPayment"
	DepositPaid            DepositOrderStatus = "Paid"
	DepositCredited        DepositOrderStatus = "Credited"
	DepositFailed          DepositOrderStatus = "Failed"
	DepositCancelled       DepositOrderStatus = "Cancelled"
)

// Payable reports whether a verified payment notification may move the order
// to Paid.
func (s DepositOrderStatus) Payable() bool {
	return s == DepositCreated || s == DepositAwaitingPayment
}

func (s DepositOrderStatus) Terminal() bool {
	return s == DepositCredited || s == DepositFailed || s == DepositCancelled
}

type DepositOrder struct {
	ID              string             `json:"id" db:"id"`
	AgentID         string             `json:"agent_id" db:"agent_id"`
	CreatedByUserID string             `json:"created_by_user_id" db:"created_by_user_id"`
	Amount          decimal.Decimal    `json:"amount" db:"amount"`
	Currency        string             `json:"currency" db:"currency"`
	Status          DepositOrderStatus `json:"status" db:"status"`
	AtpOrderID      string             `json:"atp_order_id,omitempty" db:"atp_order_id"`
	AtpQrcodeURL    string             `json:"atp_qrcode_url,omitempty" db:"atp_qrcode_url"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
}
