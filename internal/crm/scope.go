// Package crm holds the organisation-scoped lead, agent and category
// operations.
package crm

import (
	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
	"gorm.io/gorm"
)

// Scope is the slice of an organisation a user may see. The zero value
// matches nothing.
type Scope struct {
	OrganisationID uuid.UUID
	// AgentID restricts leads to those assigned to one agent.
	AgentID *uuid.UUID
}

// ScopeFor derives the scope from the user's role. Organisors see their own
// organisation; agents see their leads in the organisation that invited
// them; anyone else sees nothing.
func ScopeFor(user *models.User) Scope {
	if user == nil {
		return Scope{}
	}
	if user.IsOrganisor && user.Profile != nil {
		return Scope{OrganisationID: user.Profile.ID}
	}
	if user.IsAgent && user.Agent != nil {
		id := user.Agent.ID
		return Scope{OrganisationID: user.Agent.OrganisationID, AgentID: &id}
	}
	return Scope{}
}

func (s Scope) Empty() bool {
	return s.OrganisationID == uuid.Nil
}

func (s Scope) IsOrganisor() bool {
	return !s.Empty() && s.AgentID == nil
}

// Organisation filters any organisation-owned table.
func (s Scope) Organisation(db *gorm.DB) *gorm.DB {
	if s.Empty() {
		return db.Where("1 = 0")
	}
	return db.Where("organisation_id = ?", s.OrganisationID)
}

// Leads filters the leads table to those visible in the scope.
func (s Scope) Leads(db *gorm.DB) *gorm.DB {
	q := s.Organisation(db.Model(&models.Lead{}))
	if s.AgentID != nil {
		q = q.Where("agent_id = ?", *s.AgentID)
	}
	return q
}
