package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
)

// Purpose scopes an account token to one flow.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposeAgentInvite       Purpose = "agent_invite"
)

type accountClaims struct {
	Purpose     Purpose `json:"purpose"`
	Fingerprint string  `json:"fp"`
	jwt.RegisteredClaims
}

// AccountTokens issues the one-time tokens embedded in emailed links. A
// token carries a fingerprint of the state it is meant to change (password
// hash and verification flag), so it stops validating once used.
type AccountTokens struct {
	secret []byte
	expiry map[Purpose]time.Duration
}

func NewAccountTokens(secret string, verificationExpiry, inviteExpiry time.Duration) *AccountTokens {
	// Derived key: a session token must never pass as an account token.
	key := sha256.Sum256([]byte("account-tokens:" + secret))
	return &AccountTokens{
		secret: key[:],
		expiry: map[Purpose]time.Duration{
			PurposeEmailVerification: verificationExpiry,
			PurposeAgentInvite:       inviteExpiry,
		},
	}
}

func (t *AccountTokens) MakeToken(user *models.User, purpose Purpose) (string, error) {
	expiry, ok := t.expiry[purpose]
	if !ok {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	now := time.Now()
	claims := accountClaims{
		Purpose:     purpose,
		Fingerprint: fingerprint(user, purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{string(purpose)},
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// CheckToken validates token against user for purpose.
func (t *AccountTokens) CheckToken(user *models.User, purpose Purpose, token string) error {
	parsed, err := jwt.ParseWithClaims(token, &accountClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithAudience(string(purpose)), jwt.WithSubject(user.ID.String()))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*accountClaims)
	if !ok || !parsed.Valid || claims.Purpose != purpose {
		return ErrInvalidToken
	}
	if claims.Fingerprint != fingerprint(user, purpose) {
		return ErrInvalidToken
	}
	return nil
}

func fingerprint(user *models.User, purpose Purpose) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%t|%s",
		user.ID, user.PasswordHash, user.EmailIsVerified, purpose)))
	return hex.EncodeToString(sum[:16])
}

// EncodeUID renders a user id for use in a URL path segment.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func DecodeUID(s string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decoding uid: %w", err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decoding uid: %w", err)
	}
	return id, nil
}
