package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
	"github.com/noah-isme/points-rewards-api/pkg/response"
)

// RequireAccess allows tokens carrying at least one of the dashboard access tags.
func RequireAccess(tags ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, tag := range tags {
			if claims.HasAccess(tag) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoleKind allows tokens holding the given role in any department. Department specific
// checks happen in the services.
func RequireRoleKind(kinds ...models.RoleKind) gin.HandlerFunc {
	tags := make([]string, 0, len(kinds)*len(models.Departments))
	for _, kind := range kinds {
		for _, dept := range models.Departments {
			tags = append(tags, models.Role{Department: dept, Kind: kind}.Tag())
		}
	}
	return RequireAccess(tags...)
}
