package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kiddohub/kindergarten-admin-api/internal/authz"
	"github.com/kiddohub/kindergarten-admin-api/internal/models"
	appErrors "github.com/kiddohub/kindergarten-admin-api/pkg/errors"
	"github.com/kiddohub/kindergarten-admin-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the resolved principal.
const ContextPrincipalKey = "currentPrincipal"

type principalUserSource interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type principalClassSource interface {
	ListClassIDs(ctx context.Context, teacherID string) ([]string, error)
}

// Principal resolves the authenticated user into an authz.Principal and
// stores it on the context. The user row is re-read on every request so a
// deactivated account or a changed class roster takes effect before the
// access token expires.
func Principal(users principalUserSource, teachers principalClassSource, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
			c.Abort()
			return
		}
		if !user.Active {
			response.Error(c, appErrors.Clone(appErrors.ErrInactiveAccount, ""))
			c.Abort()
			return
		}

		p := authz.Principal{UserID: user.ID, Role: user.Role}
		if user.OrganizationID != nil {
			p.OrgID = *user.OrganizationID
		}
		if user.TeacherID != nil {
			p.TeacherID = *user.TeacherID
		}
		if user.Role == authz.RoleTeacher && p.TeacherID != "" {
			classIDs, err := teachers.ListClassIDs(c.Request.Context(), p.TeacherID)
			if err != nil {
				logger.Error("failed to load teaching classes", zap.String("teacher_id", p.TeacherID), zap.Error(err))
				response.Error(c, appErrors.Clone(appErrors.ErrInternal, "failed to resolve visibility"))
				c.Abort()
				return
			}
			p.ClassIDs = classIDs
		}

		c.Set(ContextPrincipalKey, p)
		c.Next()
	}
}
