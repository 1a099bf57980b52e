package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
)

type fakeUserSource struct {
	users map[string]*models.User
}

func (f *fakeUserSource) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

type fakeClassSource struct {
	rosters map[string][]string
}

func (f *fakeClassSource) ListClassIDs(_ context.Context, teacherID string) ([]string, error) {
	return f.rosters[teacherID], nil
}

func principalFixture() (*fakeUserSource, *fakeClassSource, gin.HandlerFunc) {
	orgID := "org-1"
	teacherID := "teacher-1"
	users := &fakeUserSource{users: map[string]*models.User{
		"user-owner": {ID: "user-owner", Role: authz.RoleOwner, Active: true},
		"user-teacher": {
			ID:             "user-teacher",
			Role:           authz.RoleTeacher,
			OrganizationID: &orgID,
			TeacherID:      &teacherID,
			Active:         true,
		},
		"user-inactive": {ID: "user-inactive", Role: authz.RolePrincipal, Active: false},
	}}
	classes := &fakeClassSource{rosters: map[string][]string{
		"teacher-1": {"class-1", "class-2"},
	}}
	return users, classes, Principal(users, classes, nil)
}

func runPrincipal(t *testing.T, mw gin.HandlerFunc, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/classes", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	mw(c)
	return c, rec
}

func TestPrincipalResolvesTeacherRoster(t *testing.T) {
	_, _, mw := principalFixture()

	c, rec := runPrincipal(t, mw, &models.JWTClaims{UserID: "user-teacher"})

	require.Equal(t, http.StatusOK, rec.Code)
	value, exists := c.Get(ContextPrincipalKey)
	require.True(t, exists)
	p, ok := value.(authz.Principal)
	require.True(t, ok)
	assert.Equal(t, authz.RoleTeacher, p.Role)
	assert.Equal(t, "org-1", p.OrgID)
	assert.Equal(t, []string{"class-1", "class-2"}, p.ClassIDs)
}

func TestPrincipalRejectsMissingClaims(t *testing.T) {
	_, _, mw := principalFixture()

	c, rec := runPrincipal(t, mw, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestPrincipalRejectsDeletedAccount(t *testing.T) {
	_, _, mw := principalFixture()

	c, rec := runPrincipal(t, mw, &models.JWTClaims{UserID: "user-gone"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestPrincipalRejectsInactiveAccount(t *testing.T) {
	_, _, mw := principalFixture()

	c, rec := runPrincipal(t, mw, &models.JWTClaims{UserID: "user-inactive"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireRolesBlocksWrongRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := RequireRoles(authz.RoleOwner, authz.RolePrincipal)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/classes", nil)
	c.Set(ContextPrincipalKey, authz.Principal{UserID: "user-1", Role: authz.RoleTeacher})

	mw(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, c.IsAborted())
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := RequireRoles(authz.RoleOwner, authz.RolePrincipal)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/classes", nil)
	c.Set(ContextPrincipalKey, authz.Principal{UserID: "user-1", Role: authz.RolePrincipal})

	mw(c)

	assert.False(t, c.IsAborted())
}

func TestRequireRolesRejectsMissingPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mw := RequireRoles(authz.RoleOwner)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/organizations", nil)

	mw(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, c.IsAborted())
}
