package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/studira/campus-api/internal/models"
	appErrors "github.com/studira/campus-api/pkg/errors"
	"github.com/studira/campus-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes.
// It must run after JWT so that claims are present on the context.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
