package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentpay/backoffice/internal/models"
)

// AuthService authenticates back-office users and issues JWTs.
type AuthService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewAuthService(db *sql.DB, log *logrus.Logger) *AuthService {
	return &AuthService{db: db, log: log}
}

const userColumns = `id::text, email, password_hash, role::text,
	COALESCE(agent_id::text, ''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role,
		&u.AgentID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// Login verifies credentials and returns a signed token with the user.
// All failure modes collapse to ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.log.WithField("email", email).Warn("login failed, bad password")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	s.log.WithFields(logrus.Fields{"email": email, "role": user.Role}).Info("login successful")
	return token, user, nil
}

// Me loads the authenticated user's profile.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id::text = $1`, userID)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (s *AuthService) generateToken(user *models.User) (string, error) {
	expiry := viper.GetInt("jwt.expiry_hours")
	if expiry <= 0 {
		expiry = 24
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"exp":   time.Now().Add(time.Duration(expiry) * time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	})
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
