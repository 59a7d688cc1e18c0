package main

import (
	"database/sql"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/agentpay/backoffice/internal/database"
	"github.com/agentpay/backoffice/internal/logging"
)

// Seeds an admin user and a demo agent. Idempotent: existing rows are left
// untouched.
func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")
	viper.BindEnv("seed.admin_email", "SEED_ADMIN_EMAIL")
	viper.BindEnv("seed.admin_password", "SEED_ADMIN_PASSWORD")

	log := logging.New()

	db := database.InitDatabase()
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("database migrations failed")
	}

	email := viper.GetString("seed.admin_email")
	if email == "" {
		email = "admin@example.com"
	}
	password := viper.GetString("seed.admin_password")
	if password == "" {
		log.Error("SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.WithError(err).Fatal("hash admin password")
	}

	if err := seedAdmin(db, email, string(hash)); err != nil {
		log.WithError(err).Fatal("seed admin user")
	}
	if err := seedDemoAgent(db); err != nil {
		log.WithError(err).Fatal("seed demo agent")
	}

	log.WithField("admin_email", email).Info("seed complete")
}

func seedAdmin(db *sql.DB, email, passwordHash string) error {
	_, err := db.Exec(
		`INSERT INTO users (id, email, password_hash, role)
		 VALUES ($1, $2, $3, 'Admin')
		 ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), email, passwordHash)
	return err
}

func seedDemoAgent(db *sql.DB) error {
	_, err := db.Exec(
		`INSERT INTO agents (id, type, name)
		 VALUES ($1, 'Normal', 'Demo Agent')
		 ON CONFLICT (name) DO NOTHING`,
		uuid.NewString())
	return err
}
