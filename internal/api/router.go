package api

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/go-crm/internal/api/handlers"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/mail"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	AccountTokens  *auth.AccountTokens
	Mailer         mail.Dispatcher
	Links          crm.Links
	LeadRecipients []string
	Templates      handlers.Renderer
	StaticFS       fs.FS
	CSRF           *middleware.CSRFStore
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	AllowedOrigins []string                // CORS allowed origins
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Services
	leadService := crm.NewLeadService(cfg.DB, cfg.Mailer, cfg.Logger, cfg.Links, cfg.LeadRecipients)
	agentService := crm.NewAgentService(cfg.DB, cfg.Mailer, cfg.AccountTokens, cfg.Logger, cfg.Links)
	categoryService := crm.NewCategoryService(cfg.DB)

	// Handlers
	view := handlers.NewView(cfg.Templates, cfg.CSRF, cfg.Logger)
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	accountHandler := handlers.NewAccountHandler(view, cfg.AuthService, cfg.AccountTokens, cfg.Mailer,
		cfg.Links, cfg.Logger, sessionMaxAge(cfg.JWTService))
	leadHandler := handlers.NewLeadHandler(view, leadService)
	categoryHandler := handlers.NewCategoryHandler(view, categoryService)
	agentHandler := handlers.NewAgentHandler(view, agentService)

	// Set before mounting so sub-routers inherit it.
	r.NotFound(view.NotFound)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Public pages
	r.Get("/", accountHandler.Landing)
	r.Get("/signup", accountHandler.SignupPage)
	r.Post("/signup", accountHandler.Signup)
	r.Get("/login", accountHandler.LoginPage)
	r.Post("/login", accountHandler.Login)
	r.Get("/verify-email/done", accountHandler.VerifyEmailDone)
	r.Get("/verify-email/confirm/{uidb64}/{token}", accountHandler.VerifyEmailConfirm)
	r.Get("/invitations/{uidb64}/{token}", accountHandler.InvitationPage)
	r.Post("/invitations/{uidb64}/{token}", accountHandler.AcceptInvitation)

	// Pages that need a session
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTService))
		r.Use(middleware.LoadUser(cfg.AuthService))
		if cfg.CSRF != nil {
			r.Use(middleware.CSRF(cfg.CSRF))
		}

		r.Post("/logout", accountHandler.Logout)
		r.Get("/verify-email", accountHandler.VerifyEmailPage)
		r.Post("/verify-email", accountHandler.VerifyEmail)

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", leadHandler.List)
			r.Get("/{id}", leadHandler.Detail)
			r.Get("/{id}/category", leadHandler.CategoryPage)
			r.Post("/{id}/category", leadHandler.UpdateCategory)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrganisor)
				r.Get("/create", leadHandler.CreatePage)
				r.Post("/create", leadHandler.Create)
				r.Get("/{id}/update", leadHandler.UpdatePage)
				r.Post("/{id}/update", leadHandler.Update)
				r.Get("/{id}/delete", leadHandler.DeletePage)
				r.Post("/{id}/delete", leadHandler.Delete)
				r.Get("/{id}/assign-agent", leadHandler.AssignAgentPage)
				r.Post("/{id}/assign-agent", leadHandler.AssignAgent)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", categoryHandler.List)
				r.Get("/{id}", categoryHandler.Detail)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireOrganisor)
					r.Get("/create", categoryHandler.CreatePage)
					r.Post("/create", categoryHandler.Create)
					r.Get("/{id}/update", categoryHandler.UpdatePage)
					r.Post("/{id}/update", categoryHandler.Update)
					r.Get("/{id}/delete", categoryHandler.DeletePage)
					r.Post("/{id}/delete", categoryHandler.Delete)
				})
			})
		})

		r.Route("/agents", func(r chi.Router) {
			// Deleting only needs a session; the lookup is scoped to the
			// requester's own profile.
			r.Get("/{id}/delete", agentHandler.DeletePage)
			r.Post("/{id}/delete", agentHandler.Delete)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireOrganisor)
				r.Get("/", agentHandler.List)
				r.Get("/create", agentHandler.CreatePage)
				r.Post("/create", agentHandler.Create)
				r.Get("/{id}", agentHandler.Detail)
				r.Get("/{id}/update", agentHandler.UpdatePage)
				r.Post("/{id}/update", agentHandler.Update)
			})
		})
	})

	// Static files
	if cfg.StaticFS != nil {
		fileServer := http.FileServer(http.FS(cfg.StaticFS))
		r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}

	return &Router{r}
}

func sessionMaxAge(jwt *auth.JWTService) time.Duration {
	if jwt == nil {
		return 0
	}
	return jwt.Expiry()
}
