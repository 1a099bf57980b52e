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

type childRepository interface {
	List(ctx context.Context, scope authz.Scope, filter models.ChildFilter) ([]models.ChildDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ChildDetail, error)
	ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error)
	Create(ctx context.Context, child *models.Child) error
	Update(ctx context.Context, child *models.Child) error
	Deactivate(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

type childClassLookup interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

// CreateChildRequest holds payload for enrolling children.
type CreateChildRequest struct {
	Name          string     `json:"name" validate:"required"`
	Gender        string     `json:"gender" validate:"required,oneof=M F"`
	BirthDate     *time.Time `json:"birth_date"`
	ClassID       *string    `json:"class_id"`
	StudentID     *string    `json:"student_id"`
	AdmissionDate *time.Time `json:"admission_date"`
	ParentName    *string    `json:"parent_name"`
	ParentPhone   *string    `json:"parent_phone"`
	ParentEmail   *string    `json:"parent_email" validate:"omitempty,email"`
	HomeAddress   *string    `json:"home_address"`
	HealthNotes   *string    `json:"health_notes"`
	Notes         *string    `json:"notes"`
}

// UpdateChildRequest holds payload for updating children.
type UpdateChildRequest struct {
	Name          string     `json:"name" validate:"required"`
	Gender        string     `json:"gender" validate:"required,oneof=M F"`
	BirthDate     *time.Time `json:"birth_date"`
	ClassID       *string    `json:"class_id"`
	StudentID     *string    `json:"student_id"`
	AdmissionDate *time.Time `json:"admission_date"`
	ParentName    *string    `json:"parent_name"`
	ParentPhone   *string    `json:"parent_phone"`
	ParentEmail   *string    `json:"parent_email" validate:"omitempty,email"`
	HomeAddress   *string    `json:"home_address"`
	HealthNotes   *string    `json:"health_notes"`
	Notes         *string    `json:"notes"`
}

// ChildService handles child use-cases. A child's visibility follows its
// class; whoever can see the class can see the child.
type ChildService struct {
	repo      childRepository
	classes   childClassLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChildService constructs the child service.
func NewChildService(repo childRepository, classes childClassLookup, validate *validator.Validate, logger *zap.Logger) *ChildService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChildService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns children visible to the principal with derived ages.
func (s *ChildService) List(ctx context.Context, p authz.Principal, filter models.ChildFilter) ([]models.ChildDetail, *models.Pagination, error) {
	scope := authz.ChildScope(p)
	if scope.IsEmpty() {
		return []models.ChildDetail{}, paginationFor(filter.Page, filter.PageSize, 0), nil
	}
	children, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	now := time.Now().UTC()
	for i := range children {
		children[i].AgeYears = children[i].Age(now)
	}
	return children, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single child if the principal may see it.
func (s *ChildService) Get(ctx context.Context, p authz.Principal, id string) (*models.ChildDetail, error) {
	child, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load child")
	}
	if !s.visible(p, child) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "child not found")
	}
	child.AgeYears = child.Age(time.Now().UTC())
	return child, nil
}

// Create enrolls a new child, optionally into a class the principal manages.
func (s *ChildService) Create(ctx context.Context, p authz.Principal, req CreateChildRequest) (*models.Child, error) {
	if !authz.CanCreate(p, authz.KindChild) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot enroll children")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid child payload")
	}
	if err := s.checkClass(ctx, p, req.ClassID); err != nil {
		return nil, err
	}
	if req.StudentID != nil && *req.StudentID != "" {
		exists, err := s.repo.ExistsByStudentID(ctx, *req.StudentID, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id already used")
		}
	}
	child := &models.Child{
		Name:          req.Name,
		Gender:        req.Gender,
		BirthDate:     req.BirthDate,
		ClassID:       req.ClassID,
		StudentID:     req.StudentID,
		AdmissionDate: req.AdmissionDate,
		ParentName:    req.ParentName,
		ParentPhone:   req.ParentPhone,
		ParentEmail:   req.ParentEmail,
		HomeAddress:   req.HomeAddress,
		HealthNotes:   req.HealthNotes,
		Notes:         req.Notes,
		Active:        true,
	}
	if err := s.repo.Create(ctx, child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create child")
	}
	return child, nil
}

// Update modifies an existing child, including class moves.
func (s *ChildService) Update(ctx context.Context, p authz.Principal, id string, req UpdateChildRequest) (*models.Child, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid child payload")
	}
	detail, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkClass(ctx, p, req.ClassID); err != nil {
		return nil, err
	}
	if req.StudentID != nil && *req.StudentID != "" {
		exists, err := s.repo.ExistsByStudentID(ctx, *req.StudentID, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student id")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student id already used")
		}
	}
	child := detail.Child
	child.Name = req.Name
	child.Gender = req.Gender
	child.BirthDate = req.BirthDate
	child.ClassID = req.ClassID
	child.StudentID = req.StudentID
	child.AdmissionDate = req.AdmissionDate
	child.ParentName = req.ParentName
	child.ParentPhone = req.ParentPhone
	child.ParentEmail = req.ParentEmail
	child.HomeAddress = req.HomeAddress
	child.HealthNotes = req.HealthNotes
	child.Notes = req.Notes
	if err := s.repo.Update(ctx, &child); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update child")
	}
	return &child, nil
}

// Deactivate marks a child as withdrawn; selection history stays.
func (s *ChildService) Deactivate(ctx context.Context, p authz.Principal, id string) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot withdraw children")
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate child")
	}
	return nil
}

// SetActive toggles enrollment, covering re-admission after a withdrawal.
func (s *ChildService) SetActive(ctx context.Context, p authz.Principal, id string, active bool) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot change enrollment status")
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	return nil
}

func (s *ChildService) visible(p authz.Principal, child *models.ChildDetail) bool {
	if child.ClassID == nil {
		// Declassed children resolve to no organization, so only
		// unrestricted scopes see them.
		return p.Role == authz.RoleOwner && p.Consistent()
	}
	var orgID string
	if child.OrganizationID != nil {
		orgID = *child.OrganizationID
	}
	return authz.Decide(p, authz.ResourceRef{OrgID: orgID, ClassID: *child.ClassID})
}

func (s *ChildService) checkClass(ctx context.Context, p authz.Principal, classID *string) error {
	if classID == nil || *classID == "" {
		return nil
	}
	class, err := s.classes.FindByID(ctx, *classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrValidation, "class does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: class.OrganizationID, ClassID: class.ID}) {
		return appErrors.Clone(appErrors.ErrForbidden, "class is outside your scope")
	}
	return nil
}
