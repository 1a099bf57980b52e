package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, scope authz.Scope, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	ExistsByName(ctx context.Context, organizationID, name, excludeID string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

// CreateClassRequest holds payload for creating classes.
type CreateClassRequest struct {
	OrganizationID    string  `json:"organization_id" validate:"required"`
	Name              string  `json:"name" validate:"required"`
	ClassType         string  `json:"class_type" validate:"required,oneof=nursery small middle large pre_school"`
	ClassroomLocation *string `json:"classroom_location"`
	Description       *string `json:"description"`
}

// UpdateClassRequest holds payload for updating classes.
type UpdateClassRequest struct {
	Name              string  `json:"name" validate:"required"`
	ClassType         string  `json:"class_type" validate:"required,oneof=nursery small middle large pre_school"`
	ClassroomLocation *string `json:"classroom_location"`
	Description       *string `json:"description"`
}

// ClassService handles class use-cases.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the class service.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns classes visible to the principal.
func (s *ClassService) List(ctx context.Context, p authz.Principal, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	scope := authz.ClassScope(p)
	if scope.IsEmpty() {
		return []models.ClassDetail{}, paginationFor(filter.Page, filter.PageSize, 0), nil
	}
	classes, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single class if the principal may see it.
func (s *ClassService) Get(ctx context.Context, p authz.Principal, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: class.OrganizationID, ClassID: class.ID}) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return class, nil
}

// Create registers a new class inside an organization the principal manages.
func (s *ClassService) Create(ctx context.Context, p authz.Principal, req CreateClassRequest) (*models.Class, error) {
	if !authz.CanCreate(p, authz.KindClass) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot create classes")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: req.OrganizationID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "organization is outside your scope")
	}
	exists, err := s.repo.ExistsByName(ctx, req.OrganizationID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class name already used in this organization")
	}
	class := &models.Class{
		OrganizationID:    req.OrganizationID,
		Name:              req.Name,
		ClassType:         req.ClassType,
		ClassroomLocation: req.ClassroomLocation,
		Description:       req.Description,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies an existing class.
func (s *ClassService) Update(ctx context.Context, p authz.Principal, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	detail, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByName(ctx, detail.OrganizationID, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate class name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class name already used in this organization")
	}
	class := detail.Class
	class.Name = req.Name
	class.ClassType = req.ClassType
	class.ClassroomLocation = req.ClassroomLocation
	class.Description = req.Description
	if err := s.repo.Update(ctx, &class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return &class, nil
}

// Delete removes a class. Children are declassed, not deleted; areas and
// their records go with the class.
func (s *ClassService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot delete classes")
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}
