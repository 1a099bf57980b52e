package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type selectionAreaRepository interface {
	List(ctx context.Context, scope authz.Scope, filter models.SelectionAreaFilter, today time.Time) ([]models.SelectionAreaDetail, int, error)
	FindByID(ctx context.Context, id string, today time.Time) (*models.SelectionAreaDetail, error)
	ExistsByName(ctx context.Context, classID, name, excludeID string) (bool, error)
	Create(ctx context.Context, area *models.SelectionArea) error
	Update(ctx context.Context, area *models.SelectionArea) error
	Delete(ctx context.Context, id string) error
}

// CreateSelectionAreaRequest holds payload for creating areas.
type CreateSelectionAreaRequest struct {
	ClassID     string  `json:"class_id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	ImagePath   *string `json:"image_path"`
}

// UpdateSelectionAreaRequest holds payload for updating areas.
type UpdateSelectionAreaRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
	ImagePath   *string `json:"image_path"`
}

// SelectionAreaService handles activity-area use-cases.
type SelectionAreaService struct {
	repo      selectionAreaRepository
	classes   childClassLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSelectionAreaService constructs the selection area service.
func NewSelectionAreaService(repo selectionAreaRepository, classes childClassLookup, validate *validator.Validate, logger *zap.Logger) *SelectionAreaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionAreaService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns areas visible to the principal with today's occupancy.
func (s *SelectionAreaService) List(ctx context.Context, p authz.Principal, filter models.SelectionAreaFilter) ([]models.SelectionAreaDetail, *models.Pagination, error) {
	scope := authz.SelectionScope(p)
	if scope.IsEmpty() {
		return []models.SelectionAreaDetail{}, paginationFor(filter.Page, filter.PageSize, 0), nil
	}
	areas, total, err := s.repo.List(ctx, scope, filter, startOfDay(time.Now().UTC()))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list selection areas")
	}
	return areas, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single area if the principal may see it.
func (s *SelectionAreaService) Get(ctx context.Context, p authz.Principal, id string) (*models.SelectionAreaDetail, error) {
	area, err := s.repo.FindByID(ctx, id, startOfDay(time.Now().UTC()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "selection area not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection area")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: area.OrganizationID, ClassID: area.ClassID}) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "selection area not found")
	}
	return area, nil
}

// Create registers a new area inside a class the principal manages.
func (s *SelectionAreaService) Create(ctx context.Context, p authz.Principal, req CreateSelectionAreaRequest) (*models.SelectionArea, error) {
	if !authz.CanCreate(p, authz.KindSelectionArea) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot create selection areas")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection area payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: class.OrganizationID, ClassID: class.ID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your scope")
	}
	exists, err := s.repo.ExistsByName(ctx, req.ClassID, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate area name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "area name already used in this class")
	}
	area := &models.SelectionArea{
		ClassID:     req.ClassID,
		Name:        req.Name,
		Description: req.Description,
		ImagePath:   req.ImagePath,
	}
	if err := s.repo.Create(ctx, area); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create selection area")
	}
	return area, nil
}

// Update modifies an existing area.
func (s *SelectionAreaService) Update(ctx context.Context, p authz.Principal, id string, req UpdateSelectionAreaRequest) (*models.SelectionArea, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection area payload")
	}
	detail, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if p.Role == authz.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot modify selection areas")
	}
	exists, err := s.repo.ExistsByName(ctx, detail.ClassID, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate area name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "area name already used in this class")
	}
	area := detail.SelectionArea
	area.Name = req.Name
	area.Description = req.Description
	area.ImagePath = req.ImagePath
	if err := s.repo.Update(ctx, &area); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update selection area")
	}
	return &area, nil
}

// Delete removes an area and its selection history.
func (s *SelectionAreaService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot delete selection areas")
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete selection area")
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
