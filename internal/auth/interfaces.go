package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
)

// Authenticator defines the interface for user authentication operations.
type Authenticator interface {
	Signup(ctx context.Context, input SignupInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService defines the interface for session token operations.
type TokenService interface {
	GenerateToken(userID uuid.UUID, email string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// TokenIssuer issues and checks the one-time tokens sent by email.
type TokenIssuer interface {
	MakeToken(user *models.User, purpose Purpose) (string, error)
	CheckToken(user *models.User, purpose Purpose, token string) error
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
	_ TokenIssuer   = (*AccountTokens)(nil)
)
