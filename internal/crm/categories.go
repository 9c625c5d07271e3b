package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/database/models"
	"gorm.io/gorm"
)

type CategoryList struct {
	Categories []models.Category
	// UnassignedLeadCount counts the organisation's leads without a
	// category, regardless of which agent they belong to.
	UnassignedLeadCount int64
}

type CategoryDetail struct {
	Category *models.Category
	Leads    []models.Lead
}

type CategoryService struct {
	db *gorm.DB
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db}
}

func (s *CategoryService) List(ctx context.Context, user *models.User) (*CategoryList, error) {
	scope := ScopeFor(user)
	list := &CategoryList{}

	if err := scope.Organisation(s.db.WithContext(ctx)).
		Order("name").
		Find(&list.Categories).Error; err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	orgScope := Scope{OrganisationID: scope.OrganisationID}
	if err := orgScope.Leads(s.db.WithContext(ctx)).
		Where("category_id IS NULL").
		Count(&list.UnassignedLeadCount).Error; err != nil {
		return nil, fmt.Errorf("counting uncategorised leads: %w", err)
	}

	return list, nil
}

// Get returns the category with the leads in it the user can see.
func (s *CategoryService) Get(ctx context.Context, user *models.User, id uuid.UUID) (*CategoryDetail, error) {
	scope := ScopeFor(user)

	category, err := s.find(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	detail := &CategoryDetail{Category: category}
	if err := scope.Leads(s.db.WithContext(ctx)).
		Preload("Agent.User").
		Where("category_id = ?", category.ID).
		Order("created_at DESC").
		Find(&detail.Leads).Error; err != nil {
		return nil, fmt.Errorf("listing category leads: %w", err)
	}

	return detail, nil
}

func (s *CategoryService) find(ctx context.Context, scope Scope, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := scope.Organisation(s.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading category: %w", err)
	}
	return &category, nil
}

func (s *CategoryService) organisorScope(user *models.User) (Scope, error) {
	scope := ScopeFor(user)
	if !scope.IsOrganisor() {
		return Scope{}, ErrForbidden
	}
	return scope, nil
}

func (s *CategoryService) Create(ctx context.Context, user *models.User, name string) (*models.Category, error) {
	scope, err := s.organisorScope(user)
	if err != nil {
		return nil, err
	}

	category := models.Category{OrganisationID: scope.OrganisationID, Name: strings.TrimSpace(name)}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return &category, nil
}

func (s *CategoryService) Update(ctx context.Context, user *models.User, id uuid.UUID, name string) (*models.Category, error) {
	scope, err := s.organisorScope(user)
	if err != nil {
		return nil, err
	}

	category, err := s.find(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	category.Name = strings.TrimSpace(name)
	if err := s.db.WithContext(ctx).Model(category).
		Update("name", category.Name).Error; err != nil {
		return nil, fmt.Errorf("updating category: %w", err)
	}
	return category, nil
}

// Delete removes the category; its leads become uncategorised.
func (s *CategoryService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	scope, err := s.organisorScope(user)
	if err != nil {
		return err
	}

	category, err := s.find(ctx, scope, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Lead{}).
			Where("category_id = ?", category.ID).
			Update("category_id", nil).Error; err != nil {
			return fmt.Errorf("uncategorising leads: %w", err)
		}
		if err := tx.Delete(category).Error; err != nil {
			return fmt.Errorf("deleting category: %w", err)
		}
		return nil
	})
}
