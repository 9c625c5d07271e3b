package models

import (
	"strings"

	"github.com/google/uuid"
)

type User struct {
	Base
	Email           string `gorm:"uniqueIndex;not null" json:"email"`
	Username        string `gorm:"uniqueIndex;not null" json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	PasswordHash    string `gorm:"not null" json:"-"`
	IsOrganisor     bool   `gorm:"not null" json:"is_organisor"`
	IsAgent         bool   `gorm:"default:false" json:"is_agent"`
	EmailIsVerified bool   `gorm:"default:false" json:"email_is_verified"`
	IsActive        bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	Profile *UserProfile `gorm:"foreignKey:UserID" json:"-"`
	Agent   *Agent       `gorm:"foreignKey:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// FullName falls back to the username when no name was given.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// UserProfile is created alongside every User. An organisor's profile is
// the organisation that owns its agents, leads and categories.
type UserProfile struct {
	Base
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
