package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"

	"github.com/agentpay/backoffice/internal/database"
	"github.com/agentpay/backoffice/internal/handlers"
	"github.com/agentpay/backoffice/internal/logging"
	mW "github.com/agentpay/backoffice/internal/middleware"
	"github.com/agentpay/backoffice/internal/models"
	"github.com/agentpay/backoffice/internal/payments"
	"github.com/agentpay/backoffice/internal/services"
)

// @title Agent Back-Office API
// @version 1.0
// @description Append-only ledger and settlement workflows for agent deposits and withdrawals
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

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

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("log.level", "LOG_LEVEL")

	viper.BindEnv("atp.base_url", "ATP_BASE_URL")
	viper.BindEnv("atp.merchant_id", "ATP_MERCHANT_ID")
	viper.BindEnv("atp.order_secret", "ATP_ORDER_SECRET")
	viper.BindEnv("atp.notify_secret", "ATP_NOTIFY_SECRET")
	viper.BindEnv("atp.notify_url", "ATP_NOTIFY_URL")

	log := logging.New()

	db := database.InitDatabase()
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("database migrations failed")
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	atpClient := payments.NewClient(payments.ConfigFromEnv(), log)

	ledgerService := services.NewLedgerService(db, log)
	depositService := services.NewDepositService(db, ledgerService, atpClient, log)
	withdrawalService := services.NewWithdrawalService(db, ledgerService, log)
	authService := services.NewAuthService(db, log)
	agentService := services.NewAgentService(db, log)
	userService := services.NewUserService(db, log)
	creditService := services.NewCreditService(db, log)
	statsService := services.NewStatsService(db, redisClient, log)

	authHandler := handlers.NewAuthHandler(authService)
	depositHandler := handlers.NewDepositHandler(depositService)
	notifyHandler := handlers.NewNotifyHandler(atpClient, depositService, log)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalService)
	agentHandler := handlers.NewAgentHandler(agentService)
	userHandler := handlers.NewUserHandler(userService)
	creditHandler := handlers.NewCreditHandler(creditService)
	balanceHandler := handlers.NewBalanceHandler(ledgerService)
	statsHandler := handlers.NewStatsHandler(statsService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/login", authHandler.Login)
		r.Post("/payments/atp/notify", notifyHandler.HandleNotify)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/me", authHandler.Me)
			r.Get("/balances", balanceHandler.Balances)
			r.Get("/accounts/{id}/entries", balanceHandler.Entries)

			r.Get("/deposits", depositHandler.List)
			r.Post("/deposits", depositHandler.Create)

			r.Get("/withdrawals", withdrawalHandler.List)
			r.Post("/withdrawals", withdrawalHandler.Create)

			r.Get("/credit-requests", creditHandler.ListRequests)
			r.Post("/credit-requests", creditHandler.CreateRequest)

			// Reviewer endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRoles(models.RoleAdmin, models.RoleFinance))

				r.Post("/deposits/{id}/credit", depositHandler.Credit)

				r.Post("/withdrawals/{id}/freeze", withdrawalHandler.Freeze)
				r.Post("/withdrawals/{id}/approve", withdrawalHandler.Approve)
				r.Post("/withdrawals/{id}/reject", withdrawalHandler.Reject)
				r.Post("/withdrawals/{id}/payout", withdrawalHandler.Payout)

				r.Get("/agents", agentHandler.List)
				r.Get("/agents/{agentID}/credit-limit", creditHandler.GetLimit)
				r.Put("/agents/{agentID}/credit-limit", creditHandler.UpsertLimit)
				r.Post("/credit-requests/{id}/decision", creditHandler.DecideRequest)

				r.Get("/stats", statsHandler.Overview)
			})

			// Admin-only endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRoles(models.RoleAdmin))

				r.Post("/agents", agentHandler.Create)
				r.Get("/users", userHandler.List)
				r.Post("/users", userHandler.Create)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
