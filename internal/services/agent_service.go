package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agentpay/backoffice/internal/database"
	"github.com/agentpay/backoffice/internal/models"
)

// AgentService manages the agent registry (admin surface).
type AgentService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewAgentService(db *sql.DB, log *logrus.Logger) *AgentService {
	return &AgentService{db: db, log: log}
}

func (s *AgentService) List(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id::text, type::text, name, created_at, updated_at
		 FROM agents ORDER BY created_at DESC LIMIT 200`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	agents := []models.Agent{}
	for rows.Next() {
		var a models.Agent
		var typ string
		if err := rows.Scan(&a.ID, &typ, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.Type = models.AgentType(typ)
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

func (s *AgentService) Create(ctx context.Context, name string, agentType models.AgentType) (*models.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErrorf("agent name is required")
	}
	if agentType != models.AgentNormal && agentType != models.AgentCredit {
		return nil, validationErrorf("agent type must be Normal or Credit")
	}

	var a models.Agent
	var typ string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO agents (id, type, name)
		 VALUES ($1, $2, $3)
		 RETURNING id::text, type::text, name, created_at, updated_at`,
		uuid.NewString(), string(agentType), name).
		Scan(&a.ID, &typ, &a.Name, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("agent %q: %w", name, ErrConflict)
		}
		return nil, fmt.Errorf("create agent: %w", err)
	}
	a.Type = models.AgentType(typ)

	s.log.WithFields(logrus.Fields{"agent_id": a.ID, "name": a.Name}).Info("agent created")
	return &a, nil
}
