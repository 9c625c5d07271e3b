package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/mail"
	"gorm.io/gorm"
)

type LeadInput struct {
	FirstName   string
	LastName    string
	Age         int
	Description string
	PhoneNumber string
	Email       string
	AgentID     *uuid.UUID
	CategoryID  *uuid.UUID
}

// LeadList is the lead index. Unassigned is only filled for organisors.
type LeadList struct {
	Assigned   []models.Lead
	Unassigned []models.Lead
}

type LeadService struct {
	db         *gorm.DB
	mailer     mail.Dispatcher
	logger     *slog.Logger
	links      Links
	recipients []string
}

func NewLeadService(db *gorm.DB, mailer mail.Dispatcher, logger *slog.Logger, links Links, recipients []string) *LeadService {
	return &LeadService{
		db:         db,
		mailer:     mailer,
		logger:     logger,
		links:      links,
		recipients: recipients,
	}
}

func (s *LeadService) List(ctx context.Context, user *models.User, categoryID *uuid.UUID) (*LeadList, error) {
	scope := ScopeFor(user)
	list := &LeadList{}

	query := func() *gorm.DB {
		q := scope.Leads(s.db.WithContext(ctx)).
			Preload("Agent.User").
			Preload("Category").
			Order("created_at DESC")
		if categoryID != nil {
			q = q.Where("category_id = ?", *categoryID)
		}
		return q
	}

	if !scope.IsOrganisor() {
		if err := query().Find(&list.Assigned).Error; err != nil {
			return nil, fmt.Errorf("listing leads: %w", err)
		}
		return list, nil
	}

	if err := query().Where("agent_id IS NOT NULL").Find(&list.Assigned).Error; err != nil {
		return nil, fmt.Errorf("listing assigned leads: %w", err)
	}
	if err := query().Where("agent_id IS NULL").Find(&list.Unassigned).Error; err != nil {
		return nil, fmt.Errorf("listing unassigned leads: %w", err)
	}

	return list, nil
}

// Get returns a lead the user can see.
func (s *LeadService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Lead, error) {
	var lead models.Lead
	err := ScopeFor(user).Leads(s.db.WithContext(ctx)).
		Preload("Agent.User").
		Preload("Category").
		Where("id = ?", id).
		First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading lead: %w", err)
	}
	return &lead, nil
}

func (s *LeadService) organisorScope(user *models.User) (Scope, error) {
	scope := ScopeFor(user)
	if !scope.IsOrganisor() {
		return Scope{}, ErrForbidden
	}
	return scope, nil
}

// Create adds a lead to the organisor's organisation and emails the
// notification list.
func (s *LeadService) Create(ctx context.Context, user *models.User, input LeadInput) (*models.Lead, error) {
	scope, err := s.organisorScope(user)
	if err != nil {
		return nil, err
	}
	if err := s.checkChoices(ctx, scope.OrganisationID, input.AgentID, input.CategoryID); err != nil {
		return nil, err
	}

	lead := models.Lead{OrganisationID: scope.OrganisationID}
	input.apply(&lead)

	if err := s.db.WithContext(ctx).Create(&lead).Error; err != nil {
		return nil, fmt.Errorf("creating lead: %w", err)
	}

	s.logger.Info("lead created", "lead_id", lead.ID, "organisation_id", lead.OrganisationID)
	mail.Notify(ctx, s.mailer, s.logger,
		mail.LeadCreatedMessage(&lead, s.notifyList(user), s.links.Lead(lead.ID)))

	return &lead, nil
}

func (s *LeadService) Update(ctx context.Context, user *models.User, id uuid.UUID, input LeadInput) (*models.Lead, error) {
	scope, err := s.organisorScope(user)
	if err != nil {
		return nil, err
	}

	lead, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkChoices(ctx, scope.OrganisationID, input.AgentID, input.CategoryID); err != nil {
		return nil, err
	}

	input.apply(lead)
	if err := s.db.WithContext(ctx).Model(lead).
		Select("first_name", "last_name", "age", "description", "phone_number", "email", "agent_id", "category_id").
		Updates(lead).Error; err != nil {
		return nil, fmt.Errorf("updating lead: %w", err)
	}

	return s.Get(ctx, user, id)
}

func (s *LeadService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	if _, err := s.organisorScope(user); err != nil {
		return err
	}

	lead, err := s.Get(ctx, user, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(lead).Error; err != nil {
		return fmt.Errorf("deleting lead: %w", err)
	}
	s.logger.Info("lead deleted", "lead_id", lead.ID)
	return nil
}

// AssignAgent sets or clears (agentID nil) the lead's agent. The agent must
// work for the lead's organisation.
func (s *LeadService) AssignAgent(ctx context.Context, user *models.User, id uuid.UUID, agentID *uuid.UUID) (*models.Lead, error) {
	scope, err := s.organisorScope(user)
	if err != nil {
		return nil, err
	}

	lead, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkChoices(ctx, scope.OrganisationID, agentID, nil); err != nil {
		return nil, err
	}

	if err := s.setColumn(ctx, lead.ID, "agent_id", agentID); err != nil {
		return nil, fmt.Errorf("assigning agent: %w", err)
	}

	return s.Get(ctx, user, id)
}

// UpdateCategory is open to anyone who can see the lead, agents included.
func (s *LeadService) UpdateCategory(ctx context.Context, user *models.User, id uuid.UUID, categoryID *uuid.UUID) (*models.Lead, error) {
	lead, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkChoices(ctx, lead.OrganisationID, nil, categoryID); err != nil {
		return nil, err
	}

	if err := s.setColumn(ctx, lead.ID, "category_id", categoryID); err != nil {
		return nil, fmt.Errorf("updating lead category: %w", err)
	}

	return s.Get(ctx, user, id)
}

// setColumn writes a single lead column by id. Updating through a loaded lead
// would also save its preloaded Agent and Category and restore their old keys.
func (s *LeadService) setColumn(ctx context.Context, id uuid.UUID, column string, value *uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ?", id).
		Update(column, value).Error
}

// AgentChoices lists the agents a lead in the user's organisation may be
// assigned to.
func (s *LeadService) AgentChoices(ctx context.Context, user *models.User) ([]models.Agent, error) {
	var agents []models.Agent
	if err := ScopeFor(user).Organisation(s.db.WithContext(ctx)).
		Preload("User").
		Order("created_at").
		Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("listing agent choices: %w", err)
	}
	return agents, nil
}

func (s *LeadService) CategoryChoices(ctx context.Context, user *models.User) ([]models.Category, error) {
	var categories []models.Category
	if err := ScopeFor(user).Organisation(s.db.WithContext(ctx)).
		Order("name").
		Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("listing category choices: %w", err)
	}
	return categories, nil
}

func (s *LeadService) checkChoices(ctx context.Context, orgID uuid.UUID, agentID, categoryID *uuid.UUID) error {
	verr := &ValidationError{Fields: map[string]string{}}

	if agentID != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Agent{}).
			Where("id = ? AND organisation_id = ?", *agentID, orgID).
			Count(&n).Error; err != nil {
			return fmt.Errorf("checking agent: %w", err)
		}
		if n == 0 {
			verr.Fields["agent"] = "Select a valid choice. That agent is not part of your organisation."
		}
	}

	if categoryID != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Category{}).
			Where("id = ? AND organisation_id = ?", *categoryID, orgID).
			Count(&n).Error; err != nil {
			return fmt.Errorf("checking category: %w", err)
		}
		if n == 0 {
			verr.Fields["category"] = "Select a valid choice. That category is not part of your organisation."
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// notifyList is the organisation owner followed by the configured
// recipients, without duplicates.
func (s *LeadService) notifyList(owner *models.User) []string {
	seen := make(map[string]bool)
	var out []string
	for _, addr := range append([]string{owner.Email}, s.recipients...) {
		addr = strings.TrimSpace(addr)
		key := strings.ToLower(addr)
		if addr == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, addr)
	}
	return out
}

func (in LeadInput) apply(lead *models.Lead) {
	lead.FirstName = strings.TrimSpace(in.FirstName)
	lead.LastName = strings.TrimSpace(in.LastName)
	lead.Age = in.Age
	lead.Description = strings.TrimSpace(in.Description)
	lead.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	lead.Email = strings.TrimSpace(in.Email)
	lead.AgentID = in.AgentID
	lead.CategoryID = in.CategoryID
	// Stale associations would overwrite the new foreign keys on save.
	lead.Agent = nil
	lead.Category = nil
}
