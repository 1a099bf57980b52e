package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
)

type mockImportTeacherRepo struct {
	byPhone map[string]models.Teacher
	idCards map[string]string
	created []models.Teacher
	updated []models.Teacher
}

func (m *mockImportTeacherRepo) FindByPhone(ctx context.Context, organizationID, phone string) (*models.Teacher, error) {
	if t, ok := m.byPhone[phone]; ok && t.OrganizationID == organizationID {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockImportTeacherRepo) ExistsByIDCard(ctx context.Context, idCard, excludeID string) (bool, error) {
	id, ok := m.idCards[idCard]
	return ok && id != excludeID, nil
}

func (m *mockImportTeacherRepo) Create(ctx context.Context, teacher *models.Teacher) error {
	teacher.ID = "teacher-" + teacher.Name
	m.created = append(m.created, *teacher)
	return nil
}

func (m *mockImportTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	m.updated = append(m.updated, *teacher)
	return nil
}

type mockImportChildRepo struct {
	studentIDs map[string]string
	created    []models.Child
}

func (m *mockImportChildRepo) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	id, ok := m.studentIDs[studentID]
	return ok && id != excludeID, nil
}

func (m *mockImportChildRepo) Create(ctx context.Context, child *models.Child) error {
	child.ID = "child-" + child.Name
	m.created = append(m.created, *child)
	return nil
}

type mockImportOrgRepo struct {
	names   map[string]string
	created []models.Organization
}

func (m *mockImportOrgRepo) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	id, ok := m.names[name]
	return ok && id != excludeID, nil
}

func (m *mockImportOrgRepo) Create(ctx context.Context, org *models.Organization) error {
	org.ID = "org-" + org.Name
	m.created = append(m.created, *org)
	return nil
}

type mockImportClassLookup struct {
	classes map[string]models.Class
}

func (m *mockImportClassLookup) FindByName(ctx context.Context, organizationID, name string) (*models.Class, error) {
	if c, ok := m.classes[name]; ok && c.OrganizationID == organizationID {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockImportClassLookup) ExistsByName(ctx context.Context, organizationID, name, excludeID string) (bool, error) {
	c, ok := m.classes[name]
	return ok && c.OrganizationID == organizationID, nil
}

func (m *mockImportClassLookup) Create(ctx context.Context, class *models.Class) error {
	class.ID = "class-" + class.Name
	m.classes[class.Name] = *class
	return nil
}

type mockImportAuditor struct {
	logs []models.AuditLog
}

func (m *mockImportAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func newImportFixture() (*mockImportTeacherRepo, *mockImportChildRepo, *mockImportOrgRepo, *mockImportClassLookup, *mockImportAuditor, *ImportService) {
	teachers := &mockImportTeacherRepo{byPhone: map[string]models.Teacher{}, idCards: map[string]string{}}
	children := &mockImportChildRepo{studentIDs: map[string]string{}}
	orgs := &mockImportOrgRepo{names: map[string]string{}}
	classes := &mockImportClassLookup{classes: map[string]models.Class{}}
	auditor := &mockImportAuditor{}
	svc := NewImportService(teachers, children, orgs, classes, auditor, zap.NewNop())
	return teachers, children, orgs, classes, auditor, svc
}

func TestImportTeachersCreatesAndUpdates(t *testing.T) {
	teachers, _, _, _, auditor, svc := newImportFixture()
	teachers.byPhone["13800001111"] = models.Teacher{ID: "teacher-old", OrganizationID: "org-1", Name: "Old Name", Phone: strptr("13800001111")}

	csv := strings.Join([]string{
		"name,gender,position,phone",
		"Li Na,F,head_teacher,13800001111",
		"Chen Jie,M,assistant_teacher,13800002222",
	}, "\n")

	result, err := svc.ImportTeachers(context.Background(), principalOwner(), "org-1", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Empty(t, result.Errors)

	require.Len(t, teachers.updated, 1)
	assert.Equal(t, "teacher-old", teachers.updated[0].ID)
	assert.Equal(t, "Li Na", teachers.updated[0].Name)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionImport, auditor.logs[0].Action)
}

func TestImportTeachersAnyBadRowAbortsAll(t *testing.T) {
	teachers, _, _, _, _, svc := newImportFixture()

	csv := strings.Join([]string{
		"name,gender,position",
		"Li Na,F,head_teacher",
		"Chen Jie,X,assistant_teacher",
	}, "\n")

	result, err := svc.ImportTeachers(context.Background(), principalOwner(), "org-1", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Zero(t, result.CreatedCount)
	// Valid rows are withheld too.
	assert.Empty(t, teachers.created)
}

func TestImportTeachersDuplicatePhoneInFile(t *testing.T) {
	teachers, _, _, _, _, svc := newImportFixture()

	csv := strings.Join([]string{
		"name,gender,position,phone",
		"Li Na,F,head_teacher,13800001111",
		"Chen Jie,M,life_teacher,13800001111",
	}, "\n")

	result, err := svc.ImportTeachers(context.Background(), principalOwner(), "org-1", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "duplicates row 1")
	assert.Empty(t, teachers.created)
}

func TestImportTeachersMissingRequiredColumn(t *testing.T) {
	_, _, _, _, _, svc := newImportFixture()

	_, err := svc.ImportTeachers(context.Background(), principalOwner(), "org-1", strings.NewReader("name,gender\nLi Na,F"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportTeachersForbiddenForTeacherRole(t *testing.T) {
	_, _, _, _, _, svc := newImportFixture()

	_, err := svc.ImportTeachers(context.Background(), teacherPrincipal(), "org-1", strings.NewReader("name,gender,position\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestImportChildrenAppliesRowByRow(t *testing.T) {
	_, children, _, classes, _, svc := newImportFixture()
	classes.classes["Sunflower"] = models.Class{ID: "class-1", OrganizationID: "org-1", Name: "Sunflower"}

	csv := strings.Join([]string{
		"name,gender,birth_date,class",
		"Mia,F,2021-04-15,Sunflower",
		"Leo,M,not-a-date,Sunflower",
		"Ava,F,2020-09-01,Rosebud",
	}, "\n")

	result, err := svc.ImportChildren(context.Background(), principalOwner(), "org-1", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Equal(t, 3, result.Errors[1].Row)

	require.Len(t, children.created, 1)
	require.NotNil(t, children.created[0].ClassID)
	assert.Equal(t, "class-1", *children.created[0].ClassID)
}

func TestImportClassesAppliesRowByRow(t *testing.T) {
	_, _, _, classes, _, svc := newImportFixture()
	classes.classes["Sunflower"] = models.Class{ID: "class-1", OrganizationID: "org-1", Name: "Sunflower"}

	csv := strings.Join([]string{
		"name,class_type,classroom_location",
		"Rosebud,small,Building B",
		"Sunflower,middle,",
		"Tulip,gigantic,",
	}, "\n")

	result, err := svc.ImportClasses(context.Background(), principalOwner(), "org-1", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 2, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "already used")
	assert.Equal(t, 3, result.Errors[1].Row)
	assert.Contains(t, result.Errors[1].Message, "class_type")

	created, ok := classes.classes["Rosebud"]
	require.True(t, ok)
	assert.Equal(t, "org-1", created.OrganizationID)
	require.NotNil(t, created.ClassroomLocation)
	assert.Equal(t, "Building B", *created.ClassroomLocation)
}

func TestImportOrganizationsOwnerOnly(t *testing.T) {
	_, _, _, _, _, svc := newImportFixture()

	p := authz.Principal{UserID: "u", Role: authz.RolePrincipal, OrgID: "org-1"}
	_, err := svc.ImportOrganizations(context.Background(), p, strings.NewReader("name,org_type\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestImportOrganizations(t *testing.T) {
	_, _, orgs, _, _, svc := newImportFixture()
	orgs.names["Little Stars"] = "org-existing"

	csv := strings.Join([]string{
		"name,org_type,region",
		"Bright Garden,private,North",
		"Little Stars,public,South",
	}, "\n")

	result, err := svc.ImportOrganizations(context.Background(), principalOwner(), strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "already used")
	require.Len(t, orgs.created, 1)
	require.NotNil(t, orgs.created[0].Region)
	assert.Equal(t, "North", *orgs.created[0].Region)
}
