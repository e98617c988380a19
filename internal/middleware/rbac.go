package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/models"
	appErrors "github.com/noah-isme/grievance-api/pkg/errors"
	"github.com/noah-isme/grievance-api/pkg/response"
)

// RequireAuthenticated rejects anonymous viewers with 401.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ViewerFrom(c).Authenticated {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles enforces role-based access control. Missing identity and insufficient role
// both answer 401.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		viewer := ViewerFrom(c)
		if !viewer.Authenticated {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}
		if _, ok := allowed[viewer.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}
