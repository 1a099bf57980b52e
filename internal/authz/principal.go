package authz

// Role is the closed set of authorization roles. A principal carries exactly
// one role; there is no attribute probing anywhere downstream.
type Role string

const (
	// RoleOwner has unrestricted access to every organization.
	RoleOwner Role = "OWNER"
	// RolePrincipal heads a single organization.
	RolePrincipal Role = "PRINCIPAL"
	// RoleTeacher is scoped to an explicit set of teaching classes.
	RoleTeacher Role = "TEACHER"
)

// Valid reports whether the role is a known member of the set.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RolePrincipal, RoleTeacher:
		return true
	}
	return false
}

// Principal is the authenticated actor, resolved once per request.
// OrgID is set for principals, TeacherID and ClassIDs for teachers.
// An inconsistent principal (a principal without an organization, a teacher
// without a teacher record) is never repaired here; scope and decision
// functions fail closed on it.
type Principal struct {
	UserID    string
	Role      Role
	OrgID     string
	TeacherID string
	ClassIDs  []string
}

// Consistent reports whether the principal's affiliations match its role.
func (p Principal) Consistent() bool {
	switch p.Role {
	case RoleOwner:
		return true
	case RolePrincipal:
		return p.OrgID != ""
	case RoleTeacher:
		return p.TeacherID != ""
	}
	return false
}

// TeachesClass reports membership of classID in the teaching-class set.
func (p Principal) TeachesClass(classID string) bool {
	for _, id := range p.ClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}
