package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/groeigesprek/backend/internal/models"
	"github.com/groeigesprek/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[string(r)] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin guards the admin panel. With requireRole false every
// authenticated user passes; otherwise only role admin does.
func RequireAdmin(requireRole bool) gin.HandlerFunc {
	if requireRole {
		return RequireRole(models.RoleAdmin)
	}
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		c.Next()
	}
}
