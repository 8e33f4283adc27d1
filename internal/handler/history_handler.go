package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/internal/service"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
	"github.com/noah-isme/points-rewards-api/pkg/response"
)

type historyService interface {
	HistoryFor(ctx context.Context, query models.HistoryQuery, actor models.Actor) ([]models.HistoryRow, error)
	Export(ctx context.Context, query models.HistoryQuery, actor models.Actor, format string) (*service.HistoryExport, error)
}

// HistoryHandler serves processed history for department dashboards.
type HistoryHandler struct {
	service historyService
}

// NewHistoryHandler constructs the handler.
func NewHistoryHandler(svc historyService) *HistoryHandler {
	return &HistoryHandler{service: svc}
}

// History godoc
// @Summary Processed history of a department role
// @Tags History
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param department path string true "Department"
// @Param as query string false "validator or updater"
// @Param quarter query string false "Q1..Q4 of the April fiscal year"
// @Param fy query int false "Fiscal year label, e.g. 2024 for Apr 2024 - Mar 2025"
// @Param format query string false "json, csv or pdf"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /departments/{department}/history [get]
func (h *HistoryHandler) History(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	role, err := roleFromRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	query := models.HistoryQuery{UserID: actor.UserID, Role: role, Quarter: c.Query("quarter")}
	if raw := strings.TrimSpace(c.Query("fy")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year < 2000 || year > 2100 {
			response.Error(c, appErrors.Field("fy", "fy must be a four digit year"))
			return
		}
		query.FiscalYear = year
	}

	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", service.HistoryFormatJSON)))
	if format != service.HistoryFormatJSON {
		file, err := h.service.Export(c.Request.Context(), query, actor, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, file.Filename, file.ContentType, file.Body)
		return
	}

	rows, err := h.service.HistoryFor(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"count": len(rows), "role": role.Tag()})
}
