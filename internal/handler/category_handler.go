package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/pkg/response"
)

type categoryService interface {
	List(ctx context.Context, department string, activeOnly bool) ([]models.Category, error)
	ListValidators(ctx context.Context, department string) ([]models.UserSummary, error)
}

// CategoryHandler serves the lookups used by the submission form.
type CategoryHandler struct {
	service categoryService
}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler(svc categoryService) *CategoryHandler {
	return &CategoryHandler{service: svc}
}

// List godoc
// @Summary List reward categories
// @Tags Categories
// @Produce json
// @Param department query string false "Department"
// @Param include_inactive query bool false "Include inactive categories"
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	categories, err := h.service.List(c.Request.Context(), c.Query("department"), !includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Validators godoc
// @Summary List validators of a department
// @Tags Categories
// @Produce json
// @Param department path string true "Department"
// @Success 200 {object} response.Envelope
// @Router /departments/{department}/validators [get]
func (h *CategoryHandler) Validators(c *gin.Context) {
	users, err := h.service.ListValidators(c.Request.Context(), c.Param("department"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}
