package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service struct {
	db  *gorm.DB
	jwt *JWTService
}

func NewService(db *gorm.DB, jwt *JWTService) *Service {
	return &Service{db: db, jwt: jwt}
}

type SignupInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount inserts user and its profile using tx. Callers run it inside
// a transaction so that a user never exists without a profile.
func CreateAccount(tx *gorm.DB, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	user.Username = strings.TrimSpace(user.Username)

	var existing int64
	if err := tx.Model(&models.User{}).
		Where("email = ? OR username = ?", user.Email, user.Username).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("checking existing user: %w", err)
	}
	if existing > 0 {
		return ErrUserExists
	}

	if err := tx.Create(user).Error; err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	profile := models.UserProfile{UserID: user.ID}
	if err := tx.Create(&profile).Error; err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	user.Profile = &profile

	return nil
}

// Signup registers an organisor. The new profile is the organisation.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
		IsOrganisor:  true,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return CreateAccount(tx, &user)
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(input.Email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  &user,
	}, nil
}

// GetUserByID loads a user with the profile and agent back-references that
// organisation scoping depends on.
func (s *Service) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Profile").
		Preload("Agent").
		First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// MarkEmailVerified flips the verification flag. Issued verification tokens
// stop validating as a side effect.
func (s *Service) MarkEmailVerified(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("email_is_verified", true).Error; err != nil {
		return fmt.Errorf("marking email verified: %w", err)
	}
	user.EmailIsVerified = true
	return nil
}

// AcceptInvite sets the invited agent's first real password. Following the
// emailed link proves the address, so the email is marked verified too.
func (s *Service) AcceptInvite(ctx context.Context, user *models.User, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"password_hash":     hash,
		"email_is_verified": true,
	}).Error; err != nil {
		return fmt.Errorf("accepting invite: %w", err)
	}

	user.PasswordHash = hash
	user.EmailIsVerified = true
	return nil
}
