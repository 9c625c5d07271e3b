//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/hugh/go-crm/pkg/config"
	"github.com/hugh/go-crm/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	email := envOr("SEED_EMAIL", "organisor@example.com")
	password := envOr("SEED_PASSWORD", "change-me-please")

	if _, err := authService.Signup(ctx, auth.SignupInput{
		Username:  envOr("SEED_USERNAME", "organisor"),
		Email:     email,
		Password:  password,
		FirstName: "Demo",
		LastName:  "Organisor",
	}); err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			fmt.Printf("Organisor already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create organisor: %v", err)
	}

	resp, err := authService.Login(ctx, auth.LoginInput{Email: email, Password: password})
	if err != nil {
		log.Fatalf("failed to log in: %v", err)
	}
	owner, err := authService.GetUserByID(ctx, resp.User.ID)
	if err != nil {
		log.Fatalf("failed to load organisor: %v", err)
	}

	// Invites and notifications go out through SMTP if it is reachable;
	// failures are only logged.
	mailer := mail.NewDirectDispatcher(mail.NewSMTPSender(cfg.Mail), cfg.Mail.From)
	links := crm.Links{BaseURL: cfg.App.BaseURL}
	tokens := auth.NewAccountTokens(cfg.JWT.Secret, cfg.Tokens.VerificationExpiry(), cfg.Tokens.InviteExpiry())

	categories := crm.NewCategoryService(db)
	for _, name := range []string{"Contacted", "Converted", "Unconverted"} {
		if _, err := categories.Create(ctx, owner, name); err != nil {
			log.Fatalf("failed to create category %q: %v", name, err)
		}
	}

	agents := crm.NewAgentService(db, mailer, tokens, logger, links)
	agent, err := agents.Create(ctx, owner, crm.AgentInput{
		Username:  "agent",
		Email:     envOr("SEED_AGENT_EMAIL", "agent@example.com"),
		FirstName: "Demo",
		LastName:  "Agent",
	})
	if err != nil {
		log.Fatalf("failed to create agent: %v", err)
	}

	leads := crm.NewLeadService(db, mailer, logger, links, cfg.Mail.LeadRecipients)
	for i, input := range []crm.LeadInput{
		{FirstName: "Ada", LastName: "Lovelace", Age: 36, Email: "ada@example.com", AgentID: &agent.ID},
		{FirstName: "Alan", LastName: "Turing", Age: 41, Email: "alan@example.com"},
	} {
		if _, err := leads.Create(ctx, owner, input); err != nil {
			log.Fatalf("failed to create lead %d: %v", i, err)
		}
	}

	fmt.Printf("Seeded organisation for %s\n", owner.Email)
	fmt.Printf("Agent invited: %s\n", agent.User.Email)
	fmt.Printf("Log in at %s/login\n", cfg.App.BaseURL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
