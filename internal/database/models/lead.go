package models

import (
	"strings"

	"github.com/google/uuid"
)

type Lead struct {
	Base
	OrganisationID uuid.UUID  `gorm:"type:uuid;index;not null" json:"organisation_id"`
	AgentID        *uuid.UUID `gorm:"type:uuid;index" json:"agent_id,omitempty"`
	CategoryID     *uuid.UUID `gorm:"type:uuid;index" json:"category_id,omitempty"`

	FirstName   string `gorm:"not null" json:"first_name"`
	LastName    string `gorm:"not null" json:"last_name"`
	Age         int    `gorm:"default:0" json:"age"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`

	// Relationships
	Organisation *UserProfile `gorm:"foreignKey:OrganisationID" json:"-"`
	Agent        *Agent       `gorm:"foreignKey:AgentID" json:"agent,omitempty"`
	Category     *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Lead) TableName() string {
	return "leads"
}

func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}
