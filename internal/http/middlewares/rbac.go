package middlewares

import (
	"net/http"

	"github.com/geocoder89/bankhub/internal/policy"
	"github.com/gin-gonic/gin"
)

// RequirePolicy consults the authorization table before any handler or store
// access. Role comes from the authenticated principal, never the request.
func (m *AuthMiddleware) RequirePolicy(op policy.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing identity context",
				},
			})
			return
		}

		if !policy.Allow(role, op) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Operation not permitted for this role",
				},
			})
			return
		}
		c.Next()
	}
}
