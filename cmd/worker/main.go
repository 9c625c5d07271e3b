package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/hugh/go-crm/internal/tasks"
	"github.com/hugh/go-crm/pkg/config"
	"github.com/hugh/go-crm/pkg/crypto"
	"github.com/hugh/go-crm/pkg/queue"
	"github.com/hugh/go-crm/pkg/util"
	"github.com/joho/godotenv"
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

	logger.Info("starting go-crm worker")

	// Queued mail is sealed by the server, so both need the same key.
	if cfg.Encryption.Key == "" {
		logger.Error("ENCRYPTION_KEY is required to read queued mail")
		os.Exit(1)
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Create task handler
	handler := tasks.NewHandler(db, logger, encryptor, mail.NewSMTPSender(cfg.Mail), crm.Links{BaseURL: cfg.App.BaseURL})

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic digest of leads nobody is working
	var scheduler *asynq.Scheduler
	if cfg.Digest.Cron != "" {
		if err := util.ValidateCronExpr(cfg.Digest.Cron); err != nil {
			logger.Error("invalid DIGEST_CRON", "cron", cfg.Digest.Cron, "error", err)
			os.Exit(1)
		}
		scheduler = queue.NewScheduler(&cfg.Redis)
		entryID, err := scheduler.Register(cfg.Digest.Cron, tasks.NewUnassignedLeadDigestTask())
		if err != nil {
			logger.Error("failed to register digest", "error", err)
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			logger.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		next, _ := util.NextCronTime(cfg.Digest.Cron, time.Now())
		logger.Info("unassigned lead digest scheduled", "cron", cfg.Digest.Cron, "entry_id", entryID, "next_run", next)
	}

	logger.Info("worker started, waiting for tasks...")

	// Run blocks until SIGINT or SIGTERM, then drains in-flight tasks.
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	if scheduler != nil {
		scheduler.Shutdown()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
