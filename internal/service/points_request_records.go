package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/dto"
	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

// UpdateUtilization backfills the utilization of a pending or approved request. The value is
// written through to the linked award.
func (s *PointsRequestService) UpdateUtilization(ctx context.Context, id string, req dto.UtilizationUpdateRequest, actor models.Actor) (*models.PointsRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "utilization is required")
	}
	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.RequestStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "rejected requests cannot be updated")
	}
	if record.AssignedValidatorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the assigned validator can update utilization")
	}
	if err := s.requireUtilizationCategory(ctx, record.CategoryID); err != nil {
		return nil, err
	}
	value, err := NormalizeUtilization(req.Utilization)
	if err != nil {
		return nil, err
	}
	notes := trimmedOptional(req.Notes)
	if err := s.requests.UpdateUtilization(ctx, record.ID, value, notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, "points request was rejected concurrently")
		}
		return nil, appErrors.Internal(err, "failed to update utilization")
	}
	record.UtilizationValue.Decimal = value
	record.UtilizationValue.Valid = true
	if notes != nil {
		record.ResponseNotes = notes
	}
	s.afterRecordChange(ctx, record)
	return record, nil
}

// UpdateAwardUtilization backfills utilization on an award. Awards created from a request are
// updated through that request; unlinked legacy awards may only be changed by their awarder.
func (s *PointsRequestService) UpdateAwardUtilization(ctx context.Context, awardID string, req dto.UtilizationUpdateRequest, actor models.Actor) (*models.PointsAward, error) {
	award, err := s.awards.GetByID(ctx, strings.TrimSpace(awardID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "points award not found")
		}
		return nil, appErrors.Internal(err, "failed to load points award")
	}
	if requestID := award.LinkedRequestID(); requestID != "" {
		record, err := s.UpdateUtilization(ctx, requestID, req, actor)
		if err != nil {
			return nil, err
		}
		award.UtilizationValue = record.UtilizationValue
		if req.Notes != nil {
			award.Notes = strings.TrimSpace(*req.Notes)
		}
		return award, nil
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "utilization is required")
	}
	if award.AwardedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the awarding validator can update utilization")
	}
	if err := s.requireUtilizationCategory(ctx, award.CategoryID); err != nil {
		return nil, err
	}
	value, err := NormalizeUtilization(req.Utilization)
	if err != nil {
		return nil, err
	}
	notes := trimmedOptional(req.Notes)
	if err := s.awards.UpdateUtilization(ctx, award.ID, value, notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "points award not found")
		}
		return nil, appErrors.Internal(err, "failed to update utilization")
	}
	award.UtilizationValue.Decimal = value
	award.UtilizationValue.Valid = true
	if notes != nil {
		award.Notes = *notes
	}
	if award.Department != nil {
		s.cache.InvalidateHistory(ctx, *award.Department)
	} else if category, err := s.categories.FindByID(ctx, award.CategoryID); err == nil {
		s.cache.InvalidateHistory(ctx, category.Department)
	}
	s.publish(ctx, models.EventRecordUpdated, award.UserID, models.RoleEmployee, nil)
	return award, nil
}

// UpdateRecord corrects points or notes. Corrections to approved requests are mirrored into the
// award in the same transaction.
func (s *PointsRequestService) UpdateRecord(ctx context.Context, id string, req dto.RecordUpdateRequest, actor models.Actor) (*models.PointsRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record update")
	}
	if req.Points == nil && req.Notes == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRecordChange(ctx, record, actor); err != nil {
		return nil, err
	}
	if req.Points != nil && record.IsUtilization() {
		return nil, appErrors.Field("points", "utilization records carry no points")
	}
	notes := trimmedOptional(req.Notes)
	mirror := record.Status == models.RequestStatusApproved
	if err := s.requests.UpdateRecord(ctx, record.ID, req.Points, notes, mirror); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "points request not found")
		}
		return nil, appErrors.Internal(err, "failed to update points request")
	}
	if req.Points != nil {
		record.Points = *req.Points
	}
	if notes != nil {
		record.ResponseNotes = notes
	}
	s.logger.Info("points record updated", zap.String("request_id", record.ID), zap.String("updated_by", actor.UserID), zap.Bool("mirrored", mirror))
	s.afterRecordChange(ctx, record)
	return record, nil
}

// DeleteRecord removes a request and, when approved, its award.
func (s *PointsRequestService) DeleteRecord(ctx context.Context, id string, actor models.Actor) error {
	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeRecordChange(ctx, record, actor); err != nil {
		return err
	}
	if err := s.requests.Delete(ctx, record.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "points request not found")
		}
		return appErrors.Internal(err, "failed to delete points request")
	}
	s.logger.Info("points record deleted", zap.String("request_id", record.ID), zap.String("deleted_by", actor.UserID), zap.String("status", string(record.Status)))
	s.afterRecordChange(ctx, record)
	return nil
}

// ListPending returns the pending queue of a department role: requests awaiting the validator,
// or requests the updater raised that are still open.
func (s *PointsRequestService) ListPending(ctx context.Context, role models.Role, actor models.Actor) ([]models.PointsRequest, error) {
	if !role.Department.Valid() {
		return nil, appErrors.Field("department", "unknown department")
	}
	if !actor.HasAccess(role.Tag()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, role.Tag()+" access required")
	}
	filter := models.PointsRequestFilter{
		Status:             []models.RequestStatus{models.RequestStatusPending},
		CategoryDepartment: role.Department,
	}
	if role.Kind == models.RoleKindUpdater {
		filter.CreatedByField = role.Department.CreatedByField()
		filter.CreatedByID = actor.UserID
	} else {
		filter.AssignedValidatorID = actor.UserID
	}
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list pending requests")
	}
	return requests, nil
}

// Summary returns the awards of the current employee with their total.
func (s *PointsRequestService) Summary(ctx context.Context, actor models.Actor) (*models.PointsSummary, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	awards, err := s.awards.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load points")
	}
	summary := &models.PointsSummary{UserID: actor.UserID, Awards: awards}
	if summary.Awards == nil {
		summary.Awards = []models.PointsAward{}
	}
	for _, award := range awards {
		summary.TotalPoints += award.Points
	}
	return summary, nil
}

func (s *PointsRequestService) loadRecord(ctx context.Context, id string) (*models.PointsRequest, error) {
	record, err := s.requests.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "points request not found")
		}
		return nil, appErrors.Internal(err, "failed to load points request")
	}
	return record, nil
}

// authorizeRecordChange allows the assigned validator, the processing validator, or the awarder
// recorded on the linked award.
func (s *PointsRequestService) authorizeRecordChange(ctx context.Context, record *models.PointsRequest, actor models.Actor) error {
	if actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if record.AssignedValidatorID == actor.UserID {
		return nil
	}
	if record.ProcessedBy != nil && *record.ProcessedBy == actor.UserID {
		return nil
	}
	if record.Status == models.RequestStatusApproved {
		award, err := s.awards.FindByRequestID(ctx, record.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Internal(err, "failed to load points award")
		}
		if award != nil && award.AwardedBy == actor.UserID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "only the validator of this record can change it")
}

func (s *PointsRequestService) requireUtilizationCategory(ctx context.Context, categoryID string) error {
	category, err := s.categories.FindByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return appErrors.Internal(err, "failed to load category")
	}
	if !category.Utilization {
		return appErrors.Field("utilization", "category does not track utilization")
	}
	return nil
}

func (s *PointsRequestService) afterRecordChange(ctx context.Context, record *models.PointsRequest) {
	dept := record.OwningDepartment()
	if !dept.Valid() {
		if category, err := s.categories.FindByID(ctx, record.CategoryID); err == nil {
			dept = category.Department
		}
	}
	s.notifyRecordUpdated(ctx, record)
	s.refreshDashboard(ctx, record.AssignedValidatorID, dept)
	s.cache.InvalidateHistory(ctx, dept)
}

func trimmedOptional(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
