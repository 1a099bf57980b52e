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

type teacherRepository interface {
	List(ctx context.Context, scope authz.Scope, filter models.TeacherFilter) ([]models.TeacherDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.TeacherDetail, error)
	ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error)
	ExistsByIDCard(ctx context.Context, idCard, excludeID string) (bool, error)
	Create(ctx context.Context, teacher *models.Teacher) error
	Update(ctx context.Context, teacher *models.Teacher) error
	Deactivate(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	ReplaceClasses(ctx context.Context, teacherID string, classIDs []string) error
}

type teacherClassChecker interface {
	ExistAll(ctx context.Context, organizationID string, ids []string) (bool, error)
}

// CreateTeacherRequest holds payload for creating teacher records.
type CreateTeacherRequest struct {
	OrganizationID string     `json:"organization_id" validate:"required"`
	Name           string     `json:"name" validate:"required"`
	Gender         string     `json:"gender" validate:"required,oneof=M F"`
	Position       string     `json:"position" validate:"required,oneof=headmaster deputy_headmaster head_teacher assistant_teacher life_teacher"`
	EmployeeID     *string    `json:"employee_id"`
	Phone          *string    `json:"phone"`
	Email          *string    `json:"email" validate:"omitempty,email"`
	IDCard         *string    `json:"id_card"`
	HireDate       *time.Time `json:"hire_date"`
	Notes          *string    `json:"notes"`
	ClassIDs       []string   `json:"class_ids"`
}

// UpdateTeacherRequest holds payload for updating teacher records.
type UpdateTeacherRequest struct {
	Name       string     `json:"name" validate:"required"`
	Gender     string     `json:"gender" validate:"required,oneof=M F"`
	Position   string     `json:"position" validate:"required,oneof=headmaster deputy_headmaster head_teacher assistant_teacher life_teacher"`
	EmployeeID *string    `json:"employee_id"`
	Phone      *string    `json:"phone"`
	Email      *string    `json:"email" validate:"omitempty,email"`
	IDCard     *string    `json:"id_card"`
	HireDate   *time.Time `json:"hire_date"`
	Notes      *string    `json:"notes"`
}

// TeacherService handles teacher roster use-cases. Phone and id-card are
// normalized before uniqueness checks so blanks never collide.
type TeacherService struct {
	repo      teacherRepository
	classes   teacherClassChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs the teacher service.
func NewTeacherService(repo teacherRepository, classes teacherClassChecker, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns teachers visible to the principal.
func (s *TeacherService) List(ctx context.Context, p authz.Principal, filter models.TeacherFilter) ([]models.TeacherDetail, *models.Pagination, error) {
	scope := authz.TeacherScope(p)
	if scope.IsEmpty() {
		return []models.TeacherDetail{}, paginationFor(filter.Page, filter.PageSize, 0), nil
	}
	teachers, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a teacher if the principal may see it. A teacher account can
// always read its own roster record.
func (s *TeacherService) Get(ctx context.Context, p authz.Principal, id string) (*models.TeacherDetail, error) {
	teacher, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if p.Role == authz.RoleTeacher {
		if p.Consistent() && p.TeacherID == id {
			return teacher, nil
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: teacher.OrganizationID}) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return teacher, nil
}

// Create registers a new teacher, optionally with class assignments.
func (s *TeacherService) Create(ctx context.Context, p authz.Principal, req CreateTeacherRequest) (*models.TeacherDetail, error) {
	if !authz.CanCreate(p, authz.KindTeacher) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot manage the roster")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	if !authz.Decide(p, authz.ResourceRef{OrgID: req.OrganizationID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "organization is outside your scope")
	}

	teacher := &models.Teacher{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Gender:         req.Gender,
		Position:       req.Position,
		EmployeeID:     req.EmployeeID,
		Phone:          req.Phone,
		Email:          req.Email,
		IDCard:         req.IDCard,
		HireDate:       req.HireDate,
		Notes:          req.Notes,
		Active:         true,
	}
	teacher.NormalizeIdentifiers()

	if err := s.checkIdentifiers(ctx, teacher, ""); err != nil {
		return nil, err
	}
	if len(req.ClassIDs) > 0 {
		ok, err := s.classes.ExistAll(ctx, req.OrganizationID, req.ClassIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate classes")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class assignments must belong to the teacher's organization")
		}
	}

	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	if len(req.ClassIDs) > 0 {
		if err := s.repo.ReplaceClasses(ctx, teacher.ID, req.ClassIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign classes")
		}
	}
	return &models.TeacherDetail{Teacher: *teacher, ClassIDs: req.ClassIDs}, nil
}

// Update modifies an existing teacher record.
func (s *TeacherService) Update(ctx context.Context, p authz.Principal, id string, req UpdateTeacherRequest) (*models.Teacher, error) {
	if p.Role == authz.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot manage the roster")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}
	detail, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	teacher := detail.Teacher
	teacher.Name = req.Name
	teacher.Gender = req.Gender
	teacher.Position = req.Position
	teacher.EmployeeID = req.EmployeeID
	teacher.Phone = req.Phone
	teacher.Email = req.Email
	teacher.IDCard = req.IDCard
	teacher.HireDate = req.HireDate
	teacher.Notes = req.Notes
	teacher.NormalizeIdentifiers()

	if err := s.checkIdentifiers(ctx, &teacher, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher")
	}
	return &teacher, nil
}

// AssignClasses replaces the teaching-class set.
func (s *TeacherService) AssignClasses(ctx context.Context, p authz.Principal, id string, classIDs []string) (*models.TeacherDetail, error) {
	if p.Role == authz.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "teachers cannot manage the roster")
	}
	detail, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if len(classIDs) > 0 {
		ok, err := s.classes.ExistAll(ctx, detail.OrganizationID, classIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate classes")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class assignments must belong to the teacher's organization")
		}
	}
	if err := s.repo.ReplaceClasses(ctx, id, classIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign classes")
	}
	detail.ClassIDs = classIDs
	return detail, nil
}

// SetActive toggles employment status. Deactivation drops the teaching-class
// assignments; reactivation restores the account with an empty roster.
func (s *TeacherService) SetActive(ctx context.Context, p authz.Principal, id string, active bool) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot manage the roster")
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update teacher status")
	}
	return nil
}

// Deactivate marks a teacher as departed and clears class assignments.
func (s *TeacherService) Deactivate(ctx context.Context, p authz.Principal, id string) error {
	if p.Role == authz.RoleTeacher {
		return appErrors.Clone(appErrors.ErrForbidden, "teachers cannot manage the roster")
	}
	if _, err := s.Get(ctx, p, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}
	return nil
}

func (s *TeacherService) checkIdentifiers(ctx context.Context, teacher *models.Teacher, excludeID string) error {
	if teacher.Phone != nil {
		exists, err := s.repo.ExistsByPhone(ctx, *teacher.Phone, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate phone")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "phone already used")
		}
	}
	if teacher.IDCard != nil {
		exists, err := s.repo.ExistsByIDCard(ctx, *teacher.IDCard, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate id card")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "id card already used")
		}
	}
	return nil
}
