package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
)

// UserLoader resolves the session's user id.
type UserLoader interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// LoadUser fetches the session user so handlers see current role flags.
// Deleted or deactivated users are treated as logged out. Must run after
// Auth.
func LoadUser(loader UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := loader.GetUserByID(r.Context(), GetUserID(r.Context()))
			if err != nil || !user.IsActive {
				ClearSessionCookie(w, r)
				handleUnauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireOrganisor lets only organisors through. Other logged-in users are
// sent to the lead list.
func RequireOrganisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil {
			handleUnauthorized(w, r)
			return
		}
		if !user.IsOrganisor {
			if isAPIRequest(r) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			http.Redirect(w, r, "/leads/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(userKey).(*models.User); ok {
		return user
	}
	return nil
}

// SetSessionCookie stores the session token for browser clients.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	SetSessionCookie(w, r, "", -1)
}
