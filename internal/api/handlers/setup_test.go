package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/go-crm/internal/api/handlers"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/testutil"
	"github.com/hugh/go-crm/internal/web"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const baseURL = "http://crm.test"

type testEnv struct {
	DB     *gorm.DB
	JWT    *auth.JWTService
	Tokens *auth.AccountTokens
	Auth   *auth.Service
	Mail   *testutil.MailRecorder
	View   *handlers.View
	Links  crm.Links
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	templates, err := web.LoadTemplates()
	require.NoError(t, err)

	db := testutil.SetupTestDB(t)
	jwtService := testutil.CreateTestJWTService()

	return &testEnv{
		DB:     db,
		JWT:    jwtService,
		Tokens: testutil.CreateTestAccountTokens(),
		Auth:   auth.NewService(db, jwtService),
		Mail:   &testutil.MailRecorder{},
		View:   handlers.NewView(templates, nil, testutil.NewLogger()),
		Links:  crm.Links{BaseURL: baseURL},
	}
}

// session applies the middleware every logged-in page runs behind.
func (e *testEnv) session(r chi.Router) chi.Router {
	return r.With(middleware.Auth(e.JWT), middleware.LoadUser(e.Auth))
}

func (e *testEnv) do(t *testing.T, h http.Handler, method, path string, form url.Values, user *models.User) *httptest.ResponseRecorder {
	t.Helper()

	token := ""
	if user != nil {
		token = testutil.GenerateTestToken(t, e.JWT, user)
	}
	if form == nil && method == http.MethodPost {
		form = url.Values{}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, testutil.FormRequest(t, method, path, form, token))
	return rr
}

var linkPattern = regexp.MustCompile(regexp.QuoteMeta(baseURL) + `(/\S+)`)

// mailedPath extracts the site path of the link in an email body.
func mailedPath(t *testing.T, body string) string {
	t.Helper()
	m := linkPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "no link in %q", body)
	return strings.TrimSpace(m[1])
}
