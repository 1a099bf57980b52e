package repository

import (
	"fmt"

	"github.com/lib/pq"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
)

// classScopeCondition translates a visibility scope into a WHERE fragment
// over a class-id column. Services short-circuit None scopes before querying;
// a None scope reaching this point still yields a never-matching predicate.
func classScopeCondition(scope authz.Scope, classCol string, argIndex int) (string, interface{}, bool) {
	switch scope.Kind {
	case authz.ScopeAll:
		return "", nil, false
	case authz.ScopeOrg:
		cond := fmt.Sprintf("%s IN (SELECT id FROM classes WHERE organization_id = $%d)", classCol, argIndex)
		return cond, scope.OrgID, true
	case authz.ScopeClasses:
		cond := fmt.Sprintf("%s = ANY($%d)", classCol, argIndex)
		return cond, pq.Array(scope.ClassIDs), true
	}
	return "FALSE", nil, false
}

// orgScopeCondition translates a scope into a WHERE fragment over an
// organization-id column. Class-set scopes resolve to the classes' owning
// organizations.
func orgScopeCondition(scope authz.Scope, orgCol string, argIndex int) (string, interface{}, bool) {
	switch scope.Kind {
	case authz.ScopeAll:
		return "", nil, false
	case authz.ScopeOrg:
		return fmt.Sprintf("%s = $%d", orgCol, argIndex), scope.OrgID, true
	case authz.ScopeClasses:
		cond := fmt.Sprintf("%s IN (SELECT organization_id FROM classes WHERE id = ANY($%d))", orgCol, argIndex)
		return cond, pq.Array(scope.ClassIDs), true
	}
	return "FALSE", nil, false
}
