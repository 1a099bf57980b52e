package authz

// ResourceKind identifies a creatable resource type for creation gating.
type ResourceKind string

const (
	KindOrganization    ResourceKind = "organization"
	KindClass           ResourceKind = "class"
	KindChild           ResourceKind = "child"
	KindTeacher         ResourceKind = "teacher"
	KindSelectionArea   ResourceKind = "selection_area"
	KindSelectionRecord ResourceKind = "selection_record"
	KindUser            ResourceKind = "user"
)

// ResourceRef locates an existing resource inside the hierarchy for a
// per-object decision. OrgID is the owning organization (directly, or via the
// resource's class); ClassID is the owning class where one exists.
// Either field may be empty when the resource has no such link; an empty
// field never matches.
type ResourceRef struct {
	OrgID   string
	ClassID string
}

// Decide authorizes a single mutating or single-object-read action, in the
// fixed precedence: owner allows, principal matches by organization, teacher
// matches by teaching class, everything else denies.
func Decide(p Principal, ref ResourceRef) bool {
	if !p.Consistent() {
		return false
	}
	switch p.Role {
	case RoleOwner:
		return true
	case RolePrincipal:
		return ref.OrgID != "" && ref.OrgID == p.OrgID
	case RoleTeacher:
		return ref.ClassID != "" && p.TeachesClass(ref.ClassID)
	}
	return false
}

// CanCreate gates resource creation independently from read visibility.
// Organizations are owner-only; selection records are the teachers' daily
// workflow and stay open to all three roles; every other resource requires
// owner or principal.
func CanCreate(p Principal, kind ResourceKind) bool {
	if !p.Consistent() {
		return false
	}
	switch kind {
	case KindOrganization:
		return p.Role == RoleOwner
	case KindUser:
		return p.Role == RoleOwner || p.Role == RolePrincipal
	case KindSelectionRecord:
		return true
	default:
		return p.Role == RoleOwner || p.Role == RolePrincipal
	}
}
