package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/points-rewards-api/internal/dto"
	"github.com/noah-isme/points-rewards-api/internal/models"
	"github.com/noah-isme/points-rewards-api/internal/service"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
	"github.com/noah-isme/points-rewards-api/pkg/response"
)

const maxImportUpload = 5 << 20

type pointsRequestService interface {
	Submit(ctx context.Context, req dto.SubmitPointsRequest, actor models.Actor) (*models.PointsRequest, error)
	Approve(ctx context.Context, id string, actor models.Actor, notes string) (*models.PointsRequest, error)
	Reject(ctx context.Context, id string, actor models.Actor, notes string) (*models.PointsRequest, error)
	BulkApprove(ctx context.Context, req dto.BulkReviewRequest, actor models.Actor) (*dto.BulkReviewResult, error)
	BulkReject(ctx context.Context, req dto.BulkReviewRequest, actor models.Actor) (*dto.BulkReviewResult, error)
	UpdateUtilization(ctx context.Context, id string, req dto.UtilizationUpdateRequest, actor models.Actor) (*models.PointsRequest, error)
	UpdateAwardUtilization(ctx context.Context, awardID string, req dto.UtilizationUpdateRequest, actor models.Actor) (*models.PointsAward, error)
	UpdateRecord(ctx context.Context, id string, req dto.RecordUpdateRequest, actor models.Actor) (*models.PointsRequest, error)
	DeleteRecord(ctx context.Context, id string, actor models.Actor) error
	ListPending(ctx context.Context, role models.Role, actor models.Actor) ([]models.PointsRequest, error)
	Summary(ctx context.Context, actor models.Actor) (*models.PointsSummary, error)
}

type bulkImportService interface {
	Import(ctx context.Context, rows []dto.BulkImportRow, actor models.Actor) (*dto.BulkImportResult, error)
}

// PointsRequestHandler exposes the request lifecycle over HTTP.
type PointsRequestHandler struct {
	service  pointsRequestService
	importer bulkImportService
}

// NewPointsRequestHandler constructs the handler.
func NewPointsRequestHandler(svc pointsRequestService, importer bulkImportService) *PointsRequestHandler {
	return &PointsRequestHandler{service: svc, importer: importer}
}

// Submit godoc
// @Summary Raise a points request
// @Tags Points Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitPointsRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /points-requests [post]
func (h *PointsRequestHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SubmitPointsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid points request payload"))
		return
	}
	created, err := h.service.Submit(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Approve godoc
// @Summary Approve a pending points request
// @Tags Points Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewRequest false "Response notes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /points-requests/{id}/approve [post]
func (h *PointsRequestHandler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a pending points request
// @Tags Points Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewRequest false "Response notes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /points-requests/{id}/reject [post]
func (h *PointsRequestHandler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

type reviewFunc func(ctx context.Context, id string, actor models.Actor, notes string) (*models.PointsRequest, error)

func (h *PointsRequestHandler) review(c *gin.Context, fn reviewFunc) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
			return
		}
	}
	updated, err := fn(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// BulkApprove godoc
// @Summary Approve several pending requests
// @Tags Points Requests
// @Accept json
// @Produce json
// @Param payload body dto.BulkReviewRequest true "Selected ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /points-requests/bulk-approve [post]
func (h *PointsRequestHandler) BulkApprove(c *gin.Context) {
	h.bulk(c, h.service.BulkApprove)
}

// BulkReject godoc
// @Summary Reject several pending requests
// @Tags Points Requests
// @Accept json
// @Produce json
// @Param payload body dto.BulkReviewRequest true "Selected ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /points-requests/bulk-reject [post]
func (h *PointsRequestHandler) BulkReject(c *gin.Context) {
	h.bulk(c, h.service.BulkReject)
}

type bulkFunc func(ctx context.Context, req dto.BulkReviewRequest, actor models.Actor) (*dto.BulkReviewResult, error)

func (h *PointsRequestHandler) bulk(c *gin.Context, fn bulkFunc) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BulkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}
	result, err := fn(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkImport godoc
// @Summary Raise points requests from a CSV upload
// @Description Accepts a multipart "file" field or a JSON array of rows. No row is submitted while any row is invalid.
// @Tags Points Requests
// @Accept mpfd
// @Accept json
// @Produce json
// @Param file formData file false "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /points-requests/bulk-import [post]
func (h *PointsRequestHandler) BulkImport(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	rows, err := h.importRows(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.importer.Import(c.Request.Context(), rows, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.SubmittedCount == 0 && result.FailedCount > 0 {
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, result, nil)
}

func (h *PointsRequestHandler) importRows(c *gin.Context) ([]dto.BulkImportRow, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, appErrors.Field("file", "file is required")
		}
		if header.Size > maxImportUpload {
			return nil, appErrors.Field("file", "file is too large")
		}
		file, err := header.Open()
		if err != nil {
			return nil, appErrors.Internal(err, "failed to read upload")
		}
		defer file.Close()
		return service.ParseCSV(file)
	}
	var rows []dto.BulkImportRow
	if err := c.ShouldBindJSON(&rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid import payload")
	}
	for i := range rows {
		if rows[i].Line == 0 {
			rows[i].Line = i + 1
		}
	}
	return rows, nil
}

// UpdateRecord godoc
// @Summary Correct points or notes of a request
// @Tags Points Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RecordUpdateRequest true "Correction"
// @Success 200 {object} response.Envelope
// @Router /points-requests/{id} [patch]
func (h *PointsRequestHandler) UpdateRecord(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RecordUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record update"))
		return
	}
	updated, err := h.service.UpdateRecord(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// DeleteRecord godoc
// @Summary Delete a request and its award
// @Tags Points Requests
// @Param id path string true "Request ID"
// @Success 204
// @Router /points-requests/{id} [delete]
func (h *PointsRequestHandler) DeleteRecord(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteRecord(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateUtilization godoc
// @Summary Backfill utilization on a request
// @Tags Points Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.UtilizationUpdateRequest true "Utilization"
// @Success 200 {object} response.Envelope
// @Router /points-requests/{id}/utilization [patch]
func (h *PointsRequestHandler) UpdateUtilization(c *gin.Context) {
	actor, req, ok := h.bindUtilization(c)
	if !ok {
		return
	}
	updated, err := h.service.UpdateUtilization(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// UpdateAwardUtilization godoc
// @Summary Backfill utilization on an award
// @Tags Points Awards
// @Accept json
// @Produce json
// @Param id path string true "Award ID"
// @Param payload body dto.UtilizationUpdateRequest true "Utilization"
// @Success 200 {object} response.Envelope
// @Router /points-awards/{id}/utilization [patch]
func (h *PointsRequestHandler) UpdateAwardUtilization(c *gin.Context) {
	actor, req, ok := h.bindUtilization(c)
	if !ok {
		return
	}
	updated, err := h.service.UpdateAwardUtilization(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

func (h *PointsRequestHandler) bindUtilization(c *gin.Context) (models.Actor, dto.UtilizationUpdateRequest, bool) {
	var req dto.UtilizationUpdateRequest
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return actor, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid utilization payload"))
		return actor, req, false
	}
	return actor, req, true
}

// Pending godoc
// @Summary Pending queue of a department role
// @Tags Points Requests
// @Produce json
// @Param department path string true "Department"
// @Param as query string false "validator or updater"
// @Success 200 {object} response.Envelope
// @Router /departments/{department}/pending [get]
func (h *PointsRequestHandler) Pending(c *gin.Context) {
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
	requests, err := h.service.ListPending(c.Request.Context(), role, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil, map[string]interface{}{"count": len(requests), "role": role.Tag()})
}

// MyPoints godoc
// @Summary Awards of the current employee
// @Tags Points Awards
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/points [get]
func (h *PointsRequestHandler) MyPoints(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
