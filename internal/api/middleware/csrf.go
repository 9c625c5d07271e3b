package middleware

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"sync"
	"time"
)

const (
	csrfTokenLength = 32
	csrfHeaderName  = "X-CSRF-Token"
	CSRFFormField   = "csrf_token"
	csrfTokenExpiry = 24 * time.Hour
)

type csrfToken struct {
	value     string
	expiresAt time.Time
}

// CSRFStore keeps one token per session in memory.
type CSRFStore struct {
	tokens map[string]csrfToken
	mu     sync.RWMutex
	done   chan struct{}
	once   sync.Once
}

func NewCSRFStore() *CSRFStore {
	store := &CSRFStore{
		tokens: make(map[string]csrfToken),
		done:   make(chan struct{}),
	}
	go store.cleanup()
	return store
}

// Close stops the background expiry sweep.
func (s *CSRFStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *CSRFStore) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for sessionID, token := range s.tokens {
				if now.After(token.expiresAt) {
					delete(s.tokens, sessionID)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *CSRFStore) getOrCreate(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token, exists := s.tokens[sessionID]; exists && time.Now().Before(token.expiresAt) {
		return token.value
	}

	raw := make([]byte, csrfTokenLength)
	if _, err := rand.Read(raw); err != nil {
		panic("csrf: reading random bytes: " + err.Error())
	}
	value := base64.RawURLEncoding.EncodeToString(raw)

	s.tokens[sessionID] = csrfToken{
		value:     value,
		expiresAt: time.Now().Add(csrfTokenExpiry),
	}
	return value
}

func (s *CSRFStore) validate(sessionID, provided string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.tokens[sessionID]
	if !exists || time.Now().After(token.expiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token.value), []byte(provided)) == 1
}

// Token returns the CSRF token for the request's session, or "" when the
// request has no session.
func (s *CSRFStore) Token(r *http.Request) string {
	sessionID := csrfSessionID(r)
	if sessionID == "" {
		return ""
	}
	return s.getOrCreate(sessionID)
}

// CSRF guards state-changing requests made with the session cookie. Bearer
// token clients are not exposed to CSRF and skip the check.
func CSRF(store *CSRFStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			// Only a bearer token takes precedence over the cookie in Auth.
			if bearerToken(r) != "" {
				next.ServeHTTP(w, r)
				return
			}

			sessionID := csrfSessionID(r)
			if sessionID == "" {
				http.Error(w, "Session required", http.StatusForbidden)
				return
			}

			provided := r.Header.Get(csrfHeaderName)
			if provided == "" {
				provided = r.PostFormValue(CSRFFormField)
			}
			if provided == "" {
				http.Error(w, "CSRF token missing", http.StatusForbidden)
				return
			}

			if !store.validate(sessionID, provided) {
				http.Error(w, "Invalid CSRF token", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// csrfSessionID hashes the whole session token. JWT prefixes are shared by
// every token with the same header, so a prefix cannot identify a session.
func csrfSessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(cookie.Value))
	return hex.EncodeToString(sum[:16])
}
