package models

import "github.com/google/uuid"

type Category struct {
	Base
	OrganisationID uuid.UUID `gorm:"type:uuid;index;not null" json:"organisation_id"`
	Name           string    `gorm:"size:30;not null" json:"name"`

	// Relationships
	Organisation *UserProfile `gorm:"foreignKey:OrganisationID" json:"-"`
	Leads        []Lead       `gorm:"foreignKey:CategoryID" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}
