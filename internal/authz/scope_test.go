package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerScopesAreUnrestricted(t *testing.T) {
	owner := Principal{UserID: "u1", Role: RoleOwner}

	for name, scope := range map[string]Scope{
		"organizations": OrganizationScope(owner),
		"classes":       ClassScope(owner),
		"children":      ChildScope(owner),
		"teachers":      TeacherScope(owner),
		"selections":    SelectionScope(owner),
		"users":         UserScope(owner),
	} {
		assert.Equal(t, ScopeAll, scope.Kind, name)
	}
}

func TestPrincipalScopesMatchOwnOrg(t *testing.T) {
	p := Principal{UserID: "u1", Role: RolePrincipal, OrgID: "org-1"}

	assert.Equal(t, Org("org-1"), OrganizationScope(p))
	assert.Equal(t, Org("org-1"), ClassScope(p))
	assert.Equal(t, Org("org-1"), ChildScope(p))
	assert.Equal(t, Org("org-1"), TeacherScope(p))
	assert.Equal(t, Org("org-1"), SelectionScope(p))
}

func TestPrincipalWithoutOrgFailsClosed(t *testing.T) {
	p := Principal{UserID: "u1", Role: RolePrincipal}

	for name, scope := range map[string]Scope{
		"organizations": OrganizationScope(p),
		"classes":       ClassScope(p),
		"children":      ChildScope(p),
		"teachers":      TeacherScope(p),
		"selections":    SelectionScope(p),
		"users":         UserScope(p),
	} {
		assert.True(t, scope.IsEmpty(), name)
	}
}

func TestTeacherScopesFollowTeachingClasses(t *testing.T) {
	p := Principal{UserID: "u1", Role: RoleTeacher, TeacherID: "t1", ClassIDs: []string{"c1", "c2"}}

	assert.Equal(t, Classes([]string{"c1", "c2"}), ClassScope(p))
	assert.Equal(t, Classes([]string{"c1", "c2"}), ChildScope(p))
	assert.Equal(t, Classes([]string{"c1", "c2"}), SelectionScope(p))

	// Teachers never enumerate organizations or the teacher roster.
	assert.True(t, OrganizationScope(p).IsEmpty())
	assert.True(t, TeacherScope(p).IsEmpty())
	assert.True(t, UserScope(p).IsEmpty())
}

func TestTeacherWithEmptyClassSetSeesNothing(t *testing.T) {
	p := Principal{UserID: "u1", Role: RoleTeacher, TeacherID: "t1"}

	assert.True(t, ChildScope(p).IsEmpty())
	assert.True(t, ClassScope(p).IsEmpty())
	assert.True(t, SelectionScope(p).IsEmpty())
}

func TestTeacherWithoutTeacherRecordFailsClosed(t *testing.T) {
	p := Principal{UserID: "u1", Role: RoleTeacher, ClassIDs: []string{"c1"}}

	assert.True(t, ChildScope(p).IsEmpty())
	assert.True(t, SelectionScope(p).IsEmpty())
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	p := Principal{UserID: "u1", Role: Role("INTERN"), OrgID: "org-1"}

	assert.True(t, OrganizationScope(p).IsEmpty())
	assert.True(t, ChildScope(p).IsEmpty())
}

func TestClassesScopeNormalizesEmptySet(t *testing.T) {
	assert.True(t, Classes(nil).IsEmpty())
	assert.True(t, Classes([]string{}).IsEmpty())
	assert.False(t, Classes([]string{"c1"}).IsEmpty())
}
