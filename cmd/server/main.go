package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/api"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/hugh/go-crm/internal/tasks"
	"github.com/hugh/go-crm/internal/web"
	"github.com/hugh/go-crm/pkg/config"
	"github.com/hugh/go-crm/pkg/crypto"
	"github.com/hugh/go-crm/pkg/queue"
	"github.com/hugh/go-crm/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting go-crm server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, mail will be sent inline", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	// Mail goes through the queue when the worker can decrypt it, which
	// needs a shared key. Otherwise it is sent inline.
	var mailer mail.Dispatcher = mail.NewDirectDispatcher(mail.NewSMTPSender(cfg.Mail), cfg.Mail.From)
	var asynqClient *asynq.Client
	switch {
	case redisClient == nil:
	case cfg.Encryption.Key == "":
		logger.Warn("ENCRYPTION_KEY not set, mail will be sent inline")
	default:
		encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
		asynqClient = queue.NewClient(&cfg.Redis)
		mailer = tasks.NewEmailDispatcher(asynqClient, encryptor, cfg.Mail.From)
		logger.Info("mail delivery queued through worker")
	}

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)
	accountTokens := auth.NewAccountTokens(cfg.JWT.Secret, cfg.Tokens.VerificationExpiry(), cfg.Tokens.InviteExpiry())

	// Load templates
	templates, err := web.LoadTemplates()
	if err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Get static file system
	staticFS, err := web.GetStaticFS()
	if err != nil {
		logger.Error("failed to get static fs", "error", err)
		os.Exit(1)
	}

	csrfStore := middleware.NewCSRFStore()
	defer csrfStore.Close()

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Requests > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
	}

	// Housekeeping for in-memory state
	housekeeping := cron.New()
	if limiter != nil {
		if _, err := housekeeping.AddFunc("@every 1m", limiter.Sweep); err != nil {
			logger.Error("failed to schedule rate limiter sweep", "error", err)
			os.Exit(1)
		}
	}
	housekeeping.Start()

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     jwtService,
		AuthService:    authService,
		AccountTokens:  accountTokens,
		Mailer:         mailer,
		Links:          crm.Links{BaseURL: cfg.App.BaseURL},
		LeadRecipients: cfg.Mail.LeadRecipients,
		Templates:      templates,
		StaticFS:       staticFS,
		CSRF:           csrfStore,
		RateLimiter:    limiter,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	<-housekeeping.Stop().Done()

	if asynqClient != nil {
		asynqClient.Close()
	}

	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
