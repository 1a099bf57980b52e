package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/response"
)

// RequireRoles blocks requests whose principal is not one of the given roles.
// Row-level visibility stays with the services; this is only the coarse gate.
func RequireRoles(roles ...authz.Role) gin.HandlerFunc {
	allowed := make(map[authz.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextPrincipalKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		p, ok := value.(authz.Principal)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[p.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
