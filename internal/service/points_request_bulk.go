package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/dto"
	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

// BulkApprove approves each selected request in order. Ids that are missing, already processed
// or assigned to someone else are skipped.
func (s *PointsRequestService) BulkApprove(ctx context.Context, req dto.BulkReviewRequest, actor models.Actor) (*dto.BulkReviewResult, error) {
	return s.bulk(ctx, req, actor, models.RequestStatusApproved)
}

// BulkReject rejects each selected request in order, skipping the same cases as BulkApprove.
func (s *PointsRequestService) BulkReject(ctx context.Context, req dto.BulkReviewRequest, actor models.Actor) (*dto.BulkReviewResult, error) {
	return s.bulk(ctx, req, actor, models.RequestStatusRejected)
}

// bulk processes ids sequentially without a batch transaction; every item commits on its own.
// Updaters receive one summary email per batch and the validator one dashboard refresh per
// department touched.
func (s *PointsRequestService) bulk(ctx context.Context, req dto.BulkReviewRequest, actor models.Actor, status models.RequestStatus) (*dto.BulkReviewResult, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "select at least one request")
	}

	result := &dto.BulkReviewResult{Status: status, ProcessedIDs: make([]string, 0, len(req.IDs))}
	seen := make(map[string]struct{}, len(req.IDs))
	byUpdater := make(map[string][]requestContext)
	updaterOrder := make([]string, 0)
	departments := make([]models.Department, 0, 1)

	for _, raw := range req.IDs {
		id := strings.TrimSpace(raw)
		if _, dup := seen[id]; dup || id == "" {
			result.SkippedCount++
			continue
		}
		seen[id] = struct{}{}

		item, err := s.loadPending(ctx, id, actor)
		if err == nil {
			err = s.resolve(ctx, item, status, actor, req.Notes)
		}
		if err != nil {
			result.SkippedCount++
			s.logBulkSkip(id, status, err)
			continue
		}
		result.ProcessedCount++
		result.ProcessedIDs = append(result.ProcessedIDs, id)
		s.metrics.RecordTransition(status, item.CategoryDepartment, "bulk")

		rc := s.loadContext(ctx, item)
		if status == models.RequestStatusApproved {
			s.notifyApproved(ctx, rc, req.Notes, false)
		} else {
			s.notifyRejected(ctx, rc, req.Notes, false)
		}
		if rc.updater != nil && !item.SelfRaised() {
			if _, ok := byUpdater[rc.updater.ID]; !ok {
				updaterOrder = append(updaterOrder, rc.updater.ID)
			}
			byUpdater[rc.updater.ID] = append(byUpdater[rc.updater.ID], rc)
		}
		if !containsDepartment(departments, item.CategoryDepartment) {
			departments = append(departments, item.CategoryDepartment)
		}
	}

	if result.ProcessedCount == 0 {
		return result, nil
	}
	actorName := models.UnknownName
	if user := s.optionalUser(ctx, actor.UserID); user != nil {
		actorName = user.DisplayName()
	}
	for _, updaterID := range updaterOrder {
		rows := byUpdater[updaterID]
		email, err := bulkSummaryEmail(rows[0].updater, actorName, status, strings.TrimSpace(req.Notes), rows)
		s.sendEmail(ctx, email, err)
	}
	for _, dept := range departments {
		s.refreshDashboard(ctx, actor.UserID, dept)
		s.cache.InvalidateHistory(ctx, dept)
	}
	s.logger.Info("bulk review completed",
		zap.String("status", string(status)),
		zap.String("validator_id", actor.UserID),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("skipped", result.SkippedCount),
	)
	return result, nil
}

func (s *PointsRequestService) logBulkSkip(id string, status models.RequestStatus, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= 500 {
		s.logger.Error("bulk review item failed", zap.String("request_id", id), zap.String("status", string(status)), zap.Error(err))
		return
	}
	s.logger.Debug("bulk review item skipped", zap.String("request_id", id), zap.String("reason", appErr.Code))
}

func containsDepartment(list []models.Department, dept models.Department) bool {
	for _, d := range list {
		if d == dept {
			return true
		}
	}
	return false
}
