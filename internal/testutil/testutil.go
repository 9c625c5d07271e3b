package testutil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/mail"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const TestPassword = "testpassword123"

// SetupTestDB creates an isolated in-memory SQLite database with the CRM
// schema. It is closed when the test finishes.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

func CreateTestAccountTokens() *auth.AccountTokens {
	return auth.NewAccountTokens("test-secret-key-for-testing", 72*time.Hour, 168*time.Hour)
}

func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// CreateOrganisor creates a signed-up organisor with its profile loaded.
func CreateOrganisor(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	name := uniqueName("org")
	user := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		FirstName:    "Olive",
		LastName:     "Owner",
		PasswordHash: hash,
		IsOrganisor:  true,
		IsActive:     true,
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return auth.CreateAccount(tx, user)
	}); err != nil {
		t.Fatalf("failed to create organisor: %v", err)
	}

	return user
}

// CreateAgent creates an agent user working for organisor's organisation.
func CreateAgent(t *testing.T, db *gorm.DB, organisor *models.User) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(TestPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	name := uniqueName("agent")
	user := &models.User{
		Username:     name,
		Email:        name + "@example.com",
		FirstName:    "Andy",
		LastName:     "Agent",
		PasswordHash: hash,
		IsAgent:      true,
		IsActive:     true,
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := auth.CreateAccount(tx, user); err != nil {
			return err
		}
		agent := &models.Agent{UserID: user.ID, OrganisationID: organisor.Profile.ID}
		if err := tx.Create(agent).Error; err != nil {
			return err
		}
		user.Agent = agent
		return nil
	}); err != nil {
		t.Fatalf("failed to create agent: %v", err)
	}

	return user
}

func CreateCategory(t *testing.T, db *gorm.DB, organisor *models.User, name string) *models.Category {
	t.Helper()

	category := &models.Category{OrganisationID: organisor.Profile.ID, Name: name}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	return category
}

// LeadOption customises a lead built by CreateLead.
type LeadOption func(*models.Lead)

func WithAgent(agent *models.User) LeadOption {
	return func(l *models.Lead) {
		id := agent.Agent.ID
		l.AgentID = &id
	}
}

func WithCategory(category *models.Category) LeadOption {
	return func(l *models.Lead) {
		id := category.ID
		l.CategoryID = &id
	}
}

func CreateLead(t *testing.T, db *gorm.DB, organisor *models.User, opts ...LeadOption) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		OrganisationID: organisor.Profile.ID,
		FirstName:      "Lee",
		LastName:       uniqueName("lead"),
		Age:            30,
		Email:          uniqueName("lead") + "@example.com",
		PhoneNumber:    "555-0100",
	}
	for _, opt := range opts {
		opt(lead)
	}

	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("failed to create lead: %v", err)
	}
	return lead
}

// GenerateTestToken generates a valid session token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// FormRequest creates a form-encoded request, authenticated when token is set.
func FormRequest(t *testing.T, method, path string, form url.Values, token string) *http.Request {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "token", Value: token})
	}
	return req
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// AssertRedirect checks for a redirect to location with the given status.
func AssertRedirect(t *testing.T, rr *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	AssertStatus(t, rr, status)
	if got := rr.Header().Get("Location"); got != location {
		t.Errorf("expected redirect to %q, got %q", location, got)
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// MailRecorder captures outbound mail. It satisfies both mail.Sender and
// mail.Dispatcher.
type MailRecorder struct {
	mu       sync.Mutex
	messages []mail.Message
	Err      error
}

func (r *MailRecorder) Send(_ context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *MailRecorder) Dispatch(ctx context.Context, msg mail.Message) error {
	return r.Send(ctx, msg)
}

func (r *MailRecorder) Messages() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mail.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *MailRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

var (
	_ mail.Sender     = (*MailRecorder)(nil)
	_ mail.Dispatcher = (*MailRecorder)(nil)
)
