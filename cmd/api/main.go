package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/natours/natours-api/internal/auth"
	"github.com/natours/natours-api/internal/booking"
	"github.com/natours/natours-api/internal/config"
	"github.com/natours/natours-api/internal/database"
	"github.com/natours/natours-api/internal/email"
	httpServer "github.com/natours/natours-api/internal/http"
	"github.com/natours/natours-api/internal/logging"
	"github.com/natours/natours-api/internal/payment"
	"github.com/natours/natours-api/internal/ratelimit"
	"github.com/natours/natours-api/internal/review"
	"github.com/natours/natours-api/internal/tour"
	"github.com/natours/natours-api/internal/user"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Initialize database connection
	sqlDB, db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	// Run embedded migrations
	if err := database.Migrate(context.Background(), sqlDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	// Initialize token service
	tokenService, err := initTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromName,
		logger,
	)

	// Initialize repositories and services
	userRepo := user.NewRepository(db)
	authService := auth.NewService(
		userRepo,
		emailService,
		logger,
		cfg.Auth.MaxLoginAttempts,
		cfg.Auth.LockDuration,
		cfg.Auth.ResetTokenTTL,
		cfg.Auth.BcryptCost,
		cfg.Server.PublicURL,
	)

	// Initialize HTTP handlers
	authHandler := auth.NewHandler(
		authService,
		tokenService,
		rateLimiter,
		logger,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.CookieExpiresDays,
	)
	authMiddleware := auth.NewMiddleware(tokenService, userRepo)

	userHandler := user.NewHandler(userRepo, func(r *http.Request) (*user.User, bool) {
		return auth.PrincipalFromContext(r.Context())
	}, logger)

	paymentProvider := payment.NewLocalProvider(cfg.Server.PublicURL)

	// Initialize router
	router := httpServer.NewRouter(httpServer.Deps{
		Config:         cfg,
		Logger:         logger,
		Limiter:        rateLimiter,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		UserHandler:    userHandler,
		UserAdmin:      user.NewAdminHandler(db),
		Tours:          tour.NewHandler(db),
		Reviews:        review.NewHandler(db),
		ReviewGuard:    review.NewGuard(db, logger),
		Bookings:       booking.NewHandler(db),
		Checkout:       booking.NewCheckoutHandler(db, paymentProvider, logger),
	})

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received shutdown signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initTokenService picks the session token implementation from config.
func initTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	if cfg.TokenProvider == "paseto" {
		return auth.NewPasetoService(cfg.Secret, cfg.TokenDuration)
	}
	return auth.NewJWTService(cfg.Secret, cfg.TokenDuration)
}

// initDB opens the Postgres connection and wraps it with bun.
func initDB(cfg config.DatabaseConfig) (*sql.DB, *bun.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.ConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return sqlDB, database.NewBunDB(sqlDB), nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
