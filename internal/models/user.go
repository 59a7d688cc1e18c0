package models

import "time"

// Role controls which endpoints a user may call. Agent users create deposit
// orders and withdrawal requests; Admin/Finance review them.
type Role string

const (
	RoleAdmin       Role = "Admin"
	RoleAgentNormal Role = "Agent_Normal"
	RoleAgentCredit Role = "Agent_Credit"
	RoleFinance     Role = "Finance"
)

// IsReviewer reports whether the role may freeze/approve/reject/payout.
func (r Role) IsReviewer() bool {
	return r == RoleAdmin || r == RoleFinance
}

// IsAgent reports whether the role belongs to an agent user.
func (r Role) IsAgent() bool {
	return r == RoleAgentNormal || r == RoleAgentCredit
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         Role      `json:"role" db:"role"`
	AgentID      string    `json:"agent_id,omitempty" db:"agent_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AgentType distinguishes prepaid (Normal) from post-paid (Credit) agents.
type AgentType string

const (
	AgentNormal AgentType = "Normal"
	AgentCredit AgentType = "Credit"
)

type Agent struct {
	ID        string    `json:"id" db:"id"`
	Type      AgentType `json:"type" db:"type"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
