package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, scope authz.Scope, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
}

type userTeacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
}

// CreateUserRequest holds payload for creating accounts.
type CreateUserRequest struct {
	Username       string  `json:"username" validate:"required,min=3"`
	Password       string  `json:"password" validate:"required,min=6"`
	Role           string  `json:"role" validate:"required,oneof=owner principal teacher"`
	OrganizationID *string `json:"organization_id"`
	TeacherID      *string `json:"teacher_id"`
	Phone          *string `json:"phone"`
}

// UpdateUserRequest holds payload for updating accounts.
type UpdateUserRequest struct {
	Role           string  `json:"role" validate:"required,oneof=owner principal teacher"`
	OrganizationID *string `json:"organization_id"`
	TeacherID      *string `json:"teacher_id"`
	Phone          *string `json:"phone"`
	Active         *bool   `json:"active"`
}

// UserService manages accounts and their role bindings. A principal account
// must name its organization and a teacher account its roster record; the
// binding is validated here so broken accounts never reach the authz layer.
type UserService struct {
	repo      userRepository
	teachers  userTeacherLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, teachers userTeacherLookup, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, teachers: teachers, validator: validate, logger: logger}
}

// List returns accounts visible to the principal.
func (s *UserService) List(ctx context.Context, p authz.Principal, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	scope := authz.UserScope(p)
	if scope.IsEmpty() {
		return []models.User{}, paginationFor(filter.Page, filter.PageSize, 0), nil
	}
	users, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one account. Any caller may fetch their own.
func (s *UserService) Get(ctx context.Context, p authz.Principal, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if p.UserID == id {
		return user, nil
	}
	var orgID string
	if user.OrganizationID != nil {
		orgID = *user.OrganizationID
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: orgID}) || p.Role == authz.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return user, nil
}

// Create registers a new account.
func (s *UserService) Create(ctx context.Context, p authz.Principal, req CreateUserRequest) (*models.User, error) {
	if !authz.CanCreate(p, authz.KindUser) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot create accounts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	role := authz.Role(req.Role)
	if err := s.checkBinding(ctx, p, role, req.OrganizationID, req.TeacherID); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByUsername(ctx, req.Username, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate username")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already used")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user := &models.User{
		Username:       req.Username,
		PasswordHash:   string(hash),
		Role:           role,
		OrganizationID: req.OrganizationID,
		TeacherID:      req.TeacherID,
		Phone:          req.Phone,
		Active:         true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Update modifies an account's role binding or status.
func (s *UserService) Update(ctx context.Context, p authz.Principal, id string, req UpdateUserRequest) (*models.User, error) {
	if p.Role == authz.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot manage accounts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	role := authz.Role(req.Role)
	if err := s.checkBinding(ctx, p, role, req.OrganizationID, req.TeacherID); err != nil {
		return nil, err
	}
	user.Role = role
	user.OrganizationID = req.OrganizationID
	user.TeacherID = req.TeacherID
	user.Phone = req.Phone
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// Deactivate disables an account and revokes its sessions.
func (s *UserService) Deactivate(ctx context.Context, p authz.Principal, id string) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot manage accounts")
	}
	if p.UserID == id {
		return appErrors.Clone(appErrors.ErrValidation, "cannot deactivate your own account")
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}

// checkBinding enforces the role/link invariants: principals bind to an
// organization, teacher accounts bind to a roster record, and a non-owner
// caller can only hand out bindings inside their own organization.
func (s *UserService) checkBinding(ctx context.Context, p authz.Principal, role authz.Role, orgID, teacherID *string) error {
	if !role.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if role == authz.RoleOwner && p.Role != authz.RoleOwner {
		return appErrors.Clone(appErrors.ErrForbidden, "only owners can create owner accounts")
	}
	switch role {
	case authz.RolePrincipal:
		if orgID == nil || *orgID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "principal accounts require an organization")
		}
	case authz.RoleTeacher:
		if teacherID == nil || *teacherID == "" {
			return appErrors.Clone(appErrors.ErrValidation, "teacher accounts require a teacher record")
		}
		teacher, err := s.teachers.FindByID(ctx, *teacherID)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrValidation, "teacher record does not exist")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		if orgID == nil || *orgID != teacher.OrganizationID {
			return appErrors.Clone(appErrors.ErrValidation, "teacher account organization must match the roster record")
		}
	}
	if orgID != nil && *orgID != "" {
		if !authz.Decide(p, authz.ResourceRef{OrgID: *orgID}) {
			return appErrors.Clone(appErrors.ErrForbidden, "organization is outside your scope")
		}
	}
	return nil
}
