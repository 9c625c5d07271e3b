package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/mail"
	"gorm.io/gorm"
)

type AgentInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

type AgentService struct {
	db     *gorm.DB
	mailer mail.Dispatcher
	tokens auth.TokenIssuer
	logger *slog.Logger
	links  Links
}

func NewAgentService(db *gorm.DB, mailer mail.Dispatcher, tokens auth.TokenIssuer, logger *slog.Logger, links Links) *AgentService {
	return &AgentService{
		db:     db,
		mailer: mailer,
		tokens: tokens,
		logger: logger,
		links:  links,
	}
}

func (s *AgentService) organisation(user *models.User) (uuid.UUID, error) {
	scope := ScopeFor(user)
	if !scope.IsOrganisor() {
		return uuid.Nil, ErrForbidden
	}
	return scope.OrganisationID, nil
}

func (s *AgentService) List(ctx context.Context, user *models.User) ([]models.Agent, error) {
	orgID, err := s.organisation(user)
	if err != nil {
		return nil, err
	}

	var agents []models.Agent
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("organisation_id = ?", orgID).
		Order("created_at").
		Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

func (s *AgentService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Agent, error) {
	orgID, err := s.organisation(user)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, orgID, id)
}

func (s *AgentService) find(ctx context.Context, orgID, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("id = ? AND organisation_id = ?", id, orgID).
		First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	return &agent, nil
}

// Create invites a new agent: a user that cannot log in until it follows the
// emailed link and picks a password.
func (s *AgentService) Create(ctx context.Context, user *models.User, input AgentInput) (*models.Agent, error) {
	orgID, err := s.organisation(user)
	if err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, input, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := auth.UnusablePasswordHash()
	if err != nil {
		return nil, err
	}

	account := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
		IsOrganisor:  false,
		IsAgent:      true,
		IsActive:     true,
	}
	agent := &models.Agent{OrganisationID: orgID}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := auth.CreateAccount(tx, account); err != nil {
			return err
		}
		agent.UserID = account.ID
		if err := tx.Create(agent).Error; err != nil {
			return fmt.Errorf("creating agent: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			return nil, NewValidationError("email", "A user with that email or username already exists.")
		}
		return nil, err
	}
	agent.User = account

	s.logger.Info("agent invited", "agent_id", agent.ID, "organisation_id", orgID)
	s.sendInvite(ctx, account)

	return agent, nil
}

func (s *AgentService) sendInvite(ctx context.Context, account *models.User) {
	token, err := s.tokens.MakeToken(account, auth.PurposeAgentInvite)
	if err != nil {
		s.logger.Error("failed to issue invite token", "user_id", account.ID, "error", err)
		return
	}
	mail.Notify(ctx, s.mailer, s.logger,
		mail.InviteMessage(account, s.links.Invitation(account.ID, token)))
}

// Update edits the agent's account details.
func (s *AgentService) Update(ctx context.Context, user *models.User, id uuid.UUID, input AgentInput) (*models.Agent, error) {
	orgID, err := s.organisation(user)
	if err != nil {
		return nil, err
	}

	agent, err := s.find(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if agent.User == nil {
		return nil, ErrNotFound
	}
	if err := s.checkUnique(ctx, input, agent.UserID); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", agent.UserID).
		Updates(map[string]interface{}{
			"username":   strings.TrimSpace(input.Username),
			"email":      auth.NormalizeEmail(input.Email),
			"first_name": strings.TrimSpace(input.FirstName),
			"last_name":  strings.TrimSpace(input.LastName),
		}).Error; err != nil {
		return nil, fmt.Errorf("updating agent: %w", err)
	}

	return s.find(ctx, orgID, id)
}

// Owned looks an agent up under the user's own profile without checking the
// organisor role. An agent's profile owns no agents, so for agents it always
// reports ErrNotFound.
func (s *AgentService) Owned(ctx context.Context, user *models.User, id uuid.UUID) (*models.Agent, error) {
	if user == nil || user.Profile == nil {
		return nil, ErrNotFound
	}
	return s.find(ctx, user.Profile.ID, id)
}

// Delete removes an agent from the requester's own organisation and leaves
// its leads unassigned. Like Owned it requires only a logged-in user.
func (s *AgentService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	agent, err := s.Owned(ctx, user, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Lead{}).
			Where("agent_id = ?", agent.ID).
			Update("agent_id", nil).Error; err != nil {
			return fmt.Errorf("unassigning leads: %w", err)
		}
		if err := tx.Delete(&models.Agent{}, "id = ?", agent.ID).Error; err != nil {
			return fmt.Errorf("deleting agent: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("agent deleted", "agent_id", agent.ID)
	return nil
}

// checkUnique reports username and email clashes with users other than self.
func (s *AgentService) checkUnique(ctx context.Context, input AgentInput, self uuid.UUID) error {
	verr := &ValidationError{Fields: map[string]string{}}

	clash := func(column, value string) (bool, error) {
		var n int64
		err := s.db.WithContext(ctx).Model(&models.User{}).
			Where(column+" = ? AND id <> ?", value, self).
			Count(&n).Error
		return n > 0, err
	}

	taken, err := clash("username", strings.TrimSpace(input.Username))
	if err != nil {
		return fmt.Errorf("checking username: %w", err)
	}
	if taken {
		verr.Fields["username"] = "A user with that username already exists."
	}

	taken, err = clash("email", auth.NormalizeEmail(input.Email))
	if err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if taken {
		verr.Fields["email"] = "A user with that email already exists."
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
