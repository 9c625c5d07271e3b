package handlers

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/crm"
	"github.com/hugh/go-crm/internal/database/models"
)

// Renderer executes a named page template.
type Renderer interface {
	Render(w io.Writer, name string, data interface{}) error
}

// Page is the data every template receives.
type Page struct {
	Title     string
	User      *models.User
	CSRFToken string
	Form      interface{}
	Errors    map[string]string
	Data      map[string]interface{}
}

// View renders pages with the session user and CSRF token filled in.
type View struct {
	templates Renderer
	csrf      *middleware.CSRFStore
	logger    *slog.Logger
}

func NewView(templates Renderer, csrf *middleware.CSRFStore, logger *slog.Logger) *View {
	return &View{templates: templates, csrf: csrf, logger: logger}
}

func (v *View) render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	page.User = middleware.GetUser(r.Context())
	if page.User != nil && v.csrf != nil {
		page.CSRFToken = v.csrf.Token(r)
	}
	if page.Form == nil {
		page.Form = struct{}{}
	}
	if page.Errors == nil {
		page.Errors = map[string]string{}
	}
	if page.Data == nil {
		page.Data = map[string]interface{}{}
	}

	// Render to a buffer so a template error can still produce a 500.
	var buf bytes.Buffer
	if err := v.templates.Render(&buf, name, page); err != nil {
		v.logger.Error("failed to render template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (v *View) NotFound(w http.ResponseWriter, r *http.Request) {
	v.render(w, r, http.StatusNotFound, "not_found.html", Page{Title: "Not found"})
}

func (v *View) serverError(w http.ResponseWriter, r *http.Request, err error) {
	v.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	v.render(w, r, http.StatusInternalServerError, "error.html", Page{Title: "Error"})
}

// fail maps service errors onto responses. Validation errors are handled by
// the form handlers themselves.
func (v *View) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, crm.ErrNotFound):
		v.NotFound(w, r)
	case errors.Is(err, crm.ErrForbidden):
		http.Redirect(w, r, "/leads/", http.StatusFound)
	default:
		v.serverError(w, r, err)
	}
}

// redirect sends the client on after a successful POST.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func urlID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// mergeErrors copies a service validation error into the form's error map.
// It reports false for any other error.
func mergeErrors(dst map[string]string, err error) bool {
	verr, ok := crm.AsValidationError(err)
	if !ok {
		return false
	}
	for field, msg := range verr.Fields {
		dst[field] = msg
	}
	return true
}
