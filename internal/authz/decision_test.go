package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerDecisionAlwaysAllows(t *testing.T) {
	owner := Principal{UserID: "u1", Role: RoleOwner}

	refs := []ResourceRef{
		{},
		{OrgID: "org-1"},
		{ClassID: "c-9"},
		{OrgID: "org-2", ClassID: "c-3"},
	}
	for _, ref := range refs {
		assert.True(t, Decide(owner, ref))
	}
	for _, kind := range []ResourceKind{KindOrganization, KindClass, KindChild, KindTeacher, KindSelectionArea, KindSelectionRecord, KindUser} {
		assert.True(t, CanCreate(owner, kind), string(kind))
	}
}

func TestPrincipalDecisionMatchesByOrg(t *testing.T) {
	p := Principal{UserID: "u1", Role: RolePrincipal, OrgID: "org-1"}

	assert.True(t, Decide(p, ResourceRef{OrgID: "org-1"}))
	assert.True(t, Decide(p, ResourceRef{OrgID: "org-1", ClassID: "c-1"}))
	assert.False(t, Decide(p, ResourceRef{OrgID: "org-2"}))
	assert.False(t, Decide(p, ResourceRef{ClassID: "c-1"}))
	assert.False(t, Decide(p, ResourceRef{}))
}

func TestTeacherDecisionMatchesByClass(t *testing.T) {
	p := Principal{UserID: "u1", Role: RoleTeacher, TeacherID: "t1", ClassIDs: []string{"c-1", "c-2"}}

	assert.True(t, Decide(p, ResourceRef{ClassID: "c-2"}))
	assert.True(t, Decide(p, ResourceRef{OrgID: "org-9", ClassID: "c-1"}))
	assert.False(t, Decide(p, ResourceRef{ClassID: "c-3"}))
	assert.False(t, Decide(p, ResourceRef{OrgID: "org-1"}))
	assert.False(t, Decide(p, ResourceRef{}))
}

func TestCreationIsIndependentFromReadVisibility(t *testing.T) {
	teacher := Principal{UserID: "u1", Role: RoleTeacher, TeacherID: "t1", ClassIDs: []string{"c-1"}}

	// Teachers read classes and children but never create them.
	assert.False(t, CanCreate(teacher, KindClass))
	assert.False(t, CanCreate(teacher, KindChild))
	assert.False(t, CanCreate(teacher, KindTeacher))
	assert.False(t, CanCreate(teacher, KindSelectionArea))

	// Daily assignment is the one creation the teacher role keeps.
	assert.True(t, CanCreate(teacher, KindSelectionRecord))

	principal := Principal{UserID: "u2", Role: RolePrincipal, OrgID: "org-1"}
	assert.True(t, CanCreate(principal, KindClass))
	assert.True(t, CanCreate(principal, KindTeacher))
	assert.False(t, CanCreate(principal, KindOrganization))
}

func TestInconsistentPrincipalDeniesEverything(t *testing.T) {
	cases := map[string]Principal{
		"principal without org":     {UserID: "u1", Role: RolePrincipal},
		"teacher without record":    {UserID: "u2", Role: RoleTeacher, ClassIDs: []string{"c-1"}},
		"unknown role":              {UserID: "u3", Role: Role("GUEST"), OrgID: "org-1"},
		"empty principal structure": {},
	}
	for name, p := range cases {
		assert.False(t, Decide(p, ResourceRef{OrgID: "org-1", ClassID: "c-1"}), name)
		assert.False(t, CanCreate(p, KindSelectionRecord), name)
	}
}
