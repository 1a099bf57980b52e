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

type organizationRepository interface {
	List(ctx context.Context, scope authz.Scope, filter models.OrganizationFilter) ([]models.OrganizationStats, int, error)
	FindByID(ctx context.Context, id string) (*models.OrganizationStats, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, org *models.Organization) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// CreateOrganizationRequest holds payload for creating organizations.
type CreateOrganizationRequest struct {
	Name          string  `json:"name" validate:"required"`
	OrgType       string  `json:"org_type" validate:"required,oneof=public private chain"`
	Address       *string `json:"address"`
	Phone         *string `json:"phone"`
	PrincipalName *string `json:"principal_name"`
	Region        *string `json:"region"`
}

// UpdateOrganizationRequest holds payload for updating organizations.
type UpdateOrganizationRequest struct {
	Name          string  `json:"name" validate:"required"`
	OrgType       string  `json:"org_type" validate:"required,oneof=public private chain"`
	Address       *string `json:"address"`
	Phone         *string `json:"phone"`
	PrincipalName *string `json:"principal_name"`
	Region        *string `json:"region"`
}

// OrganizationService handles organization use-cases. Listing and reads
// follow the caller's visibility scope; creation and the active toggle are
// owner-only.
type OrganizationService struct {
	repo      organizationRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOrganizationService constructs the organization service.
func NewOrganizationService(repo organizationRepository, validate *validator.Validate, logger *zap.Logger) *OrganizationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrganizationService{repo: repo, validator: validate, logger: logger}
}

// List returns organizations visible to the principal.
func (s *OrganizationService) List(ctx context.Context, p authz.Principal, filter models.OrganizationFilter) ([]models.OrganizationStats, *models.Pagination, error) {
	scope := authz.OrganizationScope(p)
	if scope.IsEmpty() {
		return []models.OrganizationStats{}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 0}, nil
	}
	orgs, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organizations")
	}
	return orgs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single organization if the principal may see it.
func (s *OrganizationService) Get(ctx context.Context, p authz.Principal, id string) (*models.OrganizationStats, error) {
	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: org.ID}) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
	}
	return org, nil
}

// Create registers a new organization. Owner only.
func (s *OrganizationService) Create(ctx context.Context, p authz.Principal, req CreateOrganizationRequest) (*models.Organization, error) {
	if !authz.CanCreate(p, authz.KindOrganization) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only owners can create organizations")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization payload")
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "organization name already used")
	}
	org := &models.Organization{
		Name:          req.Name,
		OrgType:       req.OrgType,
		Address:       req.Address,
		Phone:         req.Phone,
		PrincipalName: req.PrincipalName,
		Region:        req.Region,
		Active:        true,
	}
	if err := s.repo.Create(ctx, org); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create organization")
	}
	return org, nil
}

// Update modifies an existing organization.
func (s *OrganizationService) Update(ctx context.Context, p authz.Principal, id string, req UpdateOrganizationRequest) (*models.Organization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization payload")
	}
	detail, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByName(ctx, req.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "organization name already used")
	}
	org := detail.Organization
	org.Name = req.Name
	org.OrgType = req.OrgType
	org.Address = req.Address
	org.Phone = req.Phone
	org.PrincipalName = req.PrincipalName
	org.Region = req.Region
	if err := s.repo.Update(ctx, &org); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update organization")
	}
	return &org, nil
}

// SetActive toggles an organization on or off. Owner only; deactivation
// keeps every row underneath intact.
func (s *OrganizationService) SetActive(ctx context.Context, p authz.Principal, id string, active bool) error {
	if p.Role != authz.RoleOwner {
		return appErrors.Clone(appErrors.ErrForbidden, "only owners can change organization status")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update organization status")
	}
	return nil
}

// Delete removes an organization and everything underneath it. Classes go
// with it; children survive but lose their class placement.
func (s *OrganizationService) Delete(ctx context.Context, p authz.Principal, id string) error {
	if p.Role != authz.RoleOwner {
		return appErrors.Clone(appErrors.ErrForbidden, "only owners can delete organizations")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete organization")
	}
	return nil
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
