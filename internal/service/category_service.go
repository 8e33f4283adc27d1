package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

type categoryRepository interface {
	List(ctx context.Context, filter models.CategoryFilter) ([]models.Category, error)
}

type validatorDirectory interface {
	ListByAccess(ctx context.Context, tag string) ([]models.UserSummary, error)
}

// CategoryService serves the lookups behind the submission form.
type CategoryService struct {
	repo   categoryRepository
	users  validatorDirectory
	logger *zap.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(repo categoryRepository, users validatorDirectory, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{repo: repo, users: users, logger: logger}
}

// List returns categories, optionally narrowed to one department.
func (s *CategoryService) List(ctx context.Context, rawDepartment string, activeOnly bool) ([]models.Category, error) {
	filter := models.CategoryFilter{ActiveOnly: activeOnly}
	if rawDepartment != "" {
		dept, ok := models.ParseDepartment(rawDepartment)
		if !ok {
			return nil, appErrors.Field("department", "unknown department")
		}
		filter.Department = dept
	}
	categories, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list categories")
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

// ListValidators returns the users holding the department's validator access tag.
func (s *CategoryService) ListValidators(ctx context.Context, rawDepartment string) ([]models.UserSummary, error) {
	dept, ok := models.ParseDepartment(rawDepartment)
	if !ok {
		return nil, appErrors.Field("department", "unknown department")
	}
	users, err := s.users.ListByAccess(ctx, dept.ValidatorRole())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list validators")
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	return users, nil
}
