package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/points-rewards-api/internal/middleware"
	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

// roleFromRequest reads the :department path parameter and the "as" query (validator by default).
func roleFromRequest(c *gin.Context) (models.Role, error) {
	dept, ok := models.ParseDepartment(c.Param("department"))
	if !ok {
		return models.Role{}, appErrors.Field("department", "unknown department")
	}
	kind := models.RoleKind(strings.ToLower(strings.TrimSpace(c.DefaultQuery("as", string(models.RoleKindValidator)))))
	if kind != models.RoleKindValidator && kind != models.RoleKindUpdater {
		return models.Role{}, appErrors.Field("as", "as must be validator or updater")
	}
	return models.Role{Department: dept, Kind: kind}, nil
}
