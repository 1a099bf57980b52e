package authz

// ScopeKind enumerates the possible shapes of a visibility scope.
type ScopeKind int

const (
	// ScopeNone matches no rows. It is the fail-closed default.
	ScopeNone ScopeKind = iota
	// ScopeAll matches every row.
	ScopeAll
	// ScopeOrg matches rows belonging to a single organization.
	ScopeOrg
	// ScopeClasses matches rows belonging to an explicit class set.
	ScopeClasses
)

// Scope is the read-side row-narrowing predicate computed from a principal.
// Repositories translate it into SQL; a None scope must short-circuit to an
// empty result without touching the store.
type Scope struct {
	Kind     ScopeKind
	OrgID    string
	ClassIDs []string
}

// None is the empty scope.
func None() Scope { return Scope{Kind: ScopeNone} }

// All is the unrestricted scope.
func All() Scope { return Scope{Kind: ScopeAll} }

// Org scopes rows to one organization.
func Org(orgID string) Scope { return Scope{Kind: ScopeOrg, OrgID: orgID} }

// Classes scopes rows to an explicit class set. An empty set is None.
func Classes(classIDs []string) Scope {
	if len(classIDs) == 0 {
		return None()
	}
	return Scope{Kind: ScopeClasses, ClassIDs: classIDs}
}

// IsEmpty reports whether the scope can never match a row.
func (s Scope) IsEmpty() bool { return s.Kind == ScopeNone }

// OrganizationScope narrows the organizations collection.
// Teachers have no direct organization visibility.
func OrganizationScope(p Principal) Scope {
	if !p.Consistent() {
		return None()
	}
	switch p.Role {
	case RoleOwner:
		return All()
	case RolePrincipal:
		return Org(p.OrgID)
	}
	return None()
}

// ClassScope narrows the classes collection.
func ClassScope(p Principal) Scope {
	if !p.Consistent() {
		return None()
	}
	switch p.Role {
	case RoleOwner:
		return All()
	case RolePrincipal:
		return Org(p.OrgID)
	case RoleTeacher:
		return Classes(p.ClassIDs)
	}
	return None()
}

// ChildScope narrows the children collection. Children attach to classes, so
// the shape matches ClassScope; repositories resolve org scoping through the
// child's class.
func ChildScope(p Principal) Scope {
	return ClassScope(p)
}

// TeacherScope narrows the teachers collection. Teachers belong directly to
// an organization and are not visible to teacher principals.
func TeacherScope(p Principal) Scope {
	if !p.Consistent() {
		return None()
	}
	switch p.Role {
	case RoleOwner:
		return All()
	case RolePrincipal:
		return Org(p.OrgID)
	}
	return None()
}

// SelectionScope narrows selection areas and selection records, both of which
// hang off a class.
func SelectionScope(p Principal) Scope {
	return ClassScope(p)
}

// UserScope narrows the user accounts collection. Only owners manage accounts
// globally; principals see accounts linked to their own organization.
func UserScope(p Principal) Scope {
	if !p.Consistent() {
		return None()
	}
	switch p.Role {
	case RoleOwner:
		return All()
	case RolePrincipal:
		return Org(p.OrgID)
	}
	return None()
}
