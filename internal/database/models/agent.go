package models

import "github.com/google/uuid"

type Agent struct {
	Base
	UserID         uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	OrganisationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organisation_id"`

	// Relationships
	User         *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Organisation *UserProfile `gorm:"foreignKey:OrganisationID" json:"-"`
}

func (Agent) TableName() string {
	return "agents"
}
