package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentpay/backoffice/internal/database"
	"github.com/agentpay/backoffice/internal/models"
)

// UserService manages back-office user accounts (admin surface).
type UserService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewUserService(db *sql.DB, log *logrus.Logger) *UserService {
	return &UserService{db: db, log: log}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT 200`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CreateUserInput carries the admin-supplied fields for a new user. Agent
// roles must name an agent; reviewer roles must not.
type CreateUserInput struct {
	Email    string
	Password string
	Role     models.Role
	AgentID  string
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationErrorf("a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, validationErrorf("password must be at least 8 characters")
	}
	switch in.Role {
	case models.RoleAdmin, models.RoleFinance:
		if in.AgentID != "" {
			return nil, validationErrorf("reviewer roles cannot be bound to an agent")
		}
	case models.RoleAgentNormal, models.RoleAgentCredit:
		if in.AgentID == "" {
			return nil, validationErrorf("agent roles require an agent_id")
		}
	default:
		return nil, validationErrorf("unknown role %q", in.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var agentID any
	if in.AgentID != "" {
		agentID = in.AgentID
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, agent_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		uuid.NewString(), email, string(hash), string(in.Role), agentID)
	user, err := scanUser(row)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"email": user.Email, "role": user.Role}).Info("user created")
	return user, nil
}
