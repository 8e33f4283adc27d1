package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/points-rewards-api/internal/models"
)

func eventPayload(req *models.PointsRequest) map[string]interface{} {
	payload := map[string]interface{}{
		"status":      req.Status,
		"department":  req.CategoryDepartment,
		"employee_id": req.EmployeeID,
		"category_id": req.CategoryID,
		"points":      req.Points,
	}
	if req.IsUtilization() {
		payload["utilization"] = FormatUtilizationPercent(req.UtilizationValue.Decimal)
	}
	return payload
}

func (s *PointsRequestService) publish(ctx context.Context, eventType models.EventType, userID, role string, req *models.PointsRequest) {
	if userID == "" || role == "" {
		return
	}
	event := models.Event{
		Type:         eventType,
		TargetUserID: userID,
		TargetRole:   role,
		OccurredAt:   s.now(),
	}
	if req != nil {
		event.RequestID = req.ID
		event.Payload = eventPayload(req)
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(eventType)), zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *PointsRequestService) sendEmail(ctx context.Context, email models.Email, err error) {
	if err != nil {
		s.logger.Warn("email render failed", zap.Error(err))
		return
	}
	if len(email.To) == 0 || email.To[0] == "" {
		return
	}
	if err := s.notifier.SendEmail(ctx, email); err != nil {
		s.logger.Warn("email dispatch failed", zap.Strings("to", email.To), zap.String("subject", email.Subject), zap.Error(err))
	}
}

func (s *PointsRequestService) notifyRaised(ctx context.Context, rc requestContext, submitter *models.User) {
	dept := rc.req.CategoryDepartment
	s.publish(ctx, models.EventRequestRaised, rc.validator.ID, dept.ValidatorRole(), rc.req)
	email, err := requestRaisedEmail(rc, submitter.DisplayName())
	s.sendEmail(ctx, email, err)
}

// notifyApproved informs the employee, the raising updater and the employee's manager.
// Bulk approvals pass withUpdaterEmail=false and send one summary per updater instead.
func (s *PointsRequestService) notifyApproved(ctx context.Context, rc requestContext, notes string, withUpdaterEmail bool) {
	if rc.employee != nil {
		s.publish(ctx, models.EventPointsApproved, rc.employee.ID, models.RoleEmployee, rc.req)
		email, err := decisionEmail(rc, rc.employee, models.RequestStatusApproved, notes)
		s.sendEmail(ctx, email, err)
	}
	if dept, _, ok := rc.req.Updater(); ok && rc.updater != nil {
		s.publish(ctx, models.EventPointsApproved, rc.updater.ID, dept.UpdaterRole(), rc.req)
		if withUpdaterEmail {
			email, err := decisionEmail(rc, rc.updater, models.RequestStatusApproved, notes)
			s.sendEmail(ctx, email, err)
		}
	}
	if rc.employee != nil && rc.employee.DPID != nil {
		if manager := s.optionalUser(ctx, *rc.employee.DPID); manager != nil {
			email, err := managerForwardEmail(rc, manager, notes)
			s.sendEmail(ctx, email, err)
		}
	}
}

// notifyRejected tells the updater when an updater raised the request. Self-raised requests
// notify the employee instead.
func (s *PointsRequestService) notifyRejected(ctx context.Context, rc requestContext, notes string, withUpdaterEmail bool) {
	if dept, _, ok := rc.req.Updater(); ok {
		if rc.updater == nil {
			return
		}
		s.publish(ctx, models.EventPointsRejected, rc.updater.ID, dept.UpdaterRole(), rc.req)
		if withUpdaterEmail {
			email, err := decisionEmail(rc, rc.updater, models.RequestStatusRejected, notes)
			s.sendEmail(ctx, email, err)
		}
		return
	}
	if rc.employee != nil {
		s.publish(ctx, models.EventPointsRejected, rc.employee.ID, models.RoleEmployee, rc.req)
		email, err := decisionEmail(rc, rc.employee, models.RequestStatusRejected, notes)
		s.sendEmail(ctx, email, err)
	}
}

func (s *PointsRequestService) refreshDashboard(ctx context.Context, validatorID string, dept models.Department) {
	if !dept.Valid() {
		return
	}
	s.publish(ctx, models.EventDashboardRefresh, validatorID, dept.ValidatorRole(), nil)
}

func (s *PointsRequestService) notifyRecordUpdated(ctx context.Context, req *models.PointsRequest) {
	s.publish(ctx, models.EventRecordUpdated, req.EmployeeID, models.RoleEmployee, req)
	if dept, updaterID, ok := req.Updater(); ok {
		s.publish(ctx, models.EventRecordUpdated, updaterID, dept.UpdaterRole(), req)
	}
}
