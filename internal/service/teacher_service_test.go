package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type mockTeacherRepo struct {
	teachers    map[string]models.TeacherDetail
	phones      map[string]string
	idCards     map[string]string
	rosters     map[string][]string
	deactivated []string
	lastScope   authz.Scope
}

func newMockTeacherRepo() *mockTeacherRepo {
	return &mockTeacherRepo{
		teachers: make(map[string]models.TeacherDetail),
		phones:   make(map[string]string),
		idCards:  make(map[string]string),
		rosters:  make(map[string][]string),
	}
}

func (m *mockTeacherRepo) List(ctx context.Context, scope authz.Scope, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	m.lastScope = scope
	var out []models.TeacherDetail
	for _, t := range m.teachers {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	if t, ok := m.teachers[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTeacherRepo) ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	id, ok := m.phones[phone]
	return ok && id != excludeID, nil
}

func (m *mockTeacherRepo) ExistsByIDCard(ctx context.Context, idCard, excludeID string) (bool, error) {
	id, ok := m.idCards[idCard]
	return ok && id != excludeID, nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = "teacher-" + teacher.Name
	}
	m.teachers[teacher.ID] = models.TeacherDetail{Teacher: *teacher}
	if teacher.Phone != nil {
		m.phones[*teacher.Phone] = teacher.ID
	}
	if teacher.IDCard != nil {
		m.idCards[*teacher.IDCard] = teacher.ID
	}
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	m.teachers[teacher.ID] = models.TeacherDetail{Teacher: *teacher}
	return nil
}

func (m *mockTeacherRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	delete(m.rosters, id)
	return nil
}

func (m *mockTeacherRepo) SetActive(ctx context.Context, id string, active bool) error {
	if !active {
		return m.Deactivate(ctx, id)
	}
	if t, ok := m.teachers[id]; ok {
		t.Active = true
		m.teachers[id] = t
	}
	return nil
}

func (m *mockTeacherRepo) ReplaceClasses(ctx context.Context, teacherID string, classIDs []string) error {
	m.rosters[teacherID] = classIDs
	return nil
}

type mockClassChecker struct {
	classesByOrg map[string][]string
}

func (m *mockClassChecker) ExistAll(ctx context.Context, organizationID string, ids []string) (bool, error) {
	known := make(map[string]bool)
	for _, id := range m.classesByOrg[organizationID] {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return false, nil
		}
	}
	return true, nil
}

func principalOwner() authz.Principal {
	return authz.Principal{UserID: "owner-1", Role: authz.RoleOwner}
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := newMockTeacherRepo()
	checker := &mockClassChecker{classesByOrg: map[string][]string{"org-1": {"class-1", "class-2"}}}
	svc := NewTeacherService(repo, checker, validator.New(), zap.NewNop())

	phone := "13800001111"
	detail, err := svc.Create(context.Background(), principalOwner(), CreateTeacherRequest{
		OrganizationID: "org-1",
		Name:           "Zhang Wei",
		Gender:         "F",
		Position:       "head_teacher",
		Phone:          &phone,
		ClassIDs:       []string{"class-1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, detail.ID)
	assert.True(t, detail.Active)
	assert.Equal(t, []string{"class-1"}, repo.rosters[detail.ID])
}

func TestTeacherServiceCreateBlankPhoneNeverCollides(t *testing.T) {
	repo := newMockTeacherRepo()
	svc := NewTeacherService(repo, &mockClassChecker{}, validator.New(), zap.NewNop())
	blank := "  "

	for _, name := range []string{"A", "B"} {
		_, err := svc.Create(context.Background(), principalOwner(), CreateTeacherRequest{
			OrganizationID: "org-1",
			Name:           name,
			Gender:         "M",
			Position:       "assistant_teacher",
			Phone:          &blank,
		})
		require.NoError(t, err)
	}
	assert.Empty(t, repo.phones)
}

func TestTeacherServiceCreateDuplicatePhone(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.phones["13800001111"] = "teacher-x"
	svc := NewTeacherService(repo, &mockClassChecker{}, validator.New(), zap.NewNop())

	phone := "13800001111"
	_, err := svc.Create(context.Background(), principalOwner(), CreateTeacherRequest{
		OrganizationID: "org-1",
		Name:           "Zhang Wei",
		Gender:         "F",
		Position:       "life_teacher",
		Phone:          &phone,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceCreateForeignClassRejected(t *testing.T) {
	repo := newMockTeacherRepo()
	checker := &mockClassChecker{classesByOrg: map[string][]string{"org-1": {"class-1"}}}
	svc := NewTeacherService(repo, checker, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), principalOwner(), CreateTeacherRequest{
		OrganizationID: "org-1",
		Name:           "Zhang Wei",
		Gender:         "F",
		Position:       "head_teacher",
		ClassIDs:       []string{"class-other-org"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.teachers)
}

func TestTeacherServiceCreateByTeacherForbidden(t *testing.T) {
	repo := newMockTeacherRepo()
	svc := NewTeacherService(repo, &mockClassChecker{}, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), teacherPrincipal(), CreateTeacherRequest{
		OrganizationID: "org-1",
		Name:           "Zhang Wei",
		Gender:         "F",
		Position:       "head_teacher",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceGetOwnRecord(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.teachers["teacher-1"] = models.TeacherDetail{Teacher: models.Teacher{ID: "teacher-1", OrganizationID: "org-1", Name: "Li", Active: true}}
	repo.teachers["teacher-2"] = models.TeacherDetail{Teacher: models.Teacher{ID: "teacher-2", OrganizationID: "org-1", Name: "Wang", Active: true}}
	svc := NewTeacherService(repo, &mockClassChecker{}, validator.New(), zap.NewNop())
	p := teacherPrincipal()

	own, err := svc.Get(context.Background(), p, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "Li", own.Name)

	// Colleagues in the same organization are not visible to a teacher account.
	_, err = svc.Get(context.Background(), p, "teacher-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTeacherServiceAssignClasses(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.teachers["teacher-1"] = models.TeacherDetail{Teacher: models.Teacher{ID: "teacher-1", OrganizationID: "org-1", Active: true}}
	checker := &mockClassChecker{classesByOrg: map[string][]string{"org-1": {"class-1", "class-2"}}}
	svc := NewTeacherService(repo, checker, validator.New(), zap.NewNop())
	p := authz.Principal{UserID: "u", Role: authz.RolePrincipal, OrgID: "org-1"}

	detail, err := svc.AssignClasses(context.Background(), p, "teacher-1", []string{"class-1", "class-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"class-1", "class-2"}, detail.ClassIDs)

	// Replacing with an empty set clears the roster entirely.
	detail, err = svc.AssignClasses(context.Background(), p, "teacher-1", nil)
	require.NoError(t, err)
	assert.Empty(t, detail.ClassIDs)
}

func TestTeacherServiceListEmptyScopeForTeacherRole(t *testing.T) {
	repo := newMockTeacherRepo()
	repo.teachers["teacher-1"] = models.TeacherDetail{Teacher: models.Teacher{ID: "teacher-1", OrganizationID: "org-1", Active: true}}
	svc := NewTeacherService(repo, &mockClassChecker{}, validator.New(), zap.NewNop())

	teachers, pagination, err := svc.List(context.Background(), teacherPrincipal(), models.TeacherFilter{})
	require.NoError(t, err)
	assert.Empty(t, teachers)
	assert.Equal(t, 0, pagination.TotalCount)
}
