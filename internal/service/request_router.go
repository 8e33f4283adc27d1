package service

import (
	"fmt"
	"strings"

	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

// RouteDecision is the routing metadata stamped on a new request.
type RouteDecision struct {
	Department          models.Department
	AssignedValidatorID string
	CreatedByField      models.SubmitterField
	CreatedByID         string
	SelfRaised          bool
	EmployeeID          string
}

// Apply stamps the decision onto req.
func (d RouteDecision) Apply(req *models.PointsRequest) {
	req.CategoryDepartment = d.Department
	req.AssignedValidatorID = d.AssignedValidatorID
	if d.SelfRaised {
		req.SetCreatedBy(d.Department, "")
		employeeID := d.EmployeeID
		req.SubmittedBy = &employeeID
		return
	}
	req.SetCreatedBy(d.Department, d.CreatedByID)
}

// Route decides which department owns a new request, which validator reviews it and who is
// recorded as its submitter.
func Route(category *models.Category, submitter models.Actor, employee, validator *models.User) (RouteDecision, error) {
	if category == nil {
		return RouteDecision{}, appErrors.Field("category_id", "category is required")
	}
	dept := category.Department
	if !dept.Valid() {
		return RouteDecision{}, appErrors.Field("category_id", fmt.Sprintf("category %s has no recognised department", category.Name))
	}
	if employee == nil {
		return RouteDecision{}, appErrors.Field("employee_id", "employee not found")
	}
	if validator == nil {
		return RouteDecision{}, appErrors.Field("validator_id", "validator not found")
	}
	if strings.TrimSpace(submitter.UserID) == "" {
		return RouteDecision{}, appErrors.ErrUnauthorized
	}
	if validator.ID == submitter.UserID {
		return RouteDecision{}, appErrors.Field("validator_id", "you cannot assign yourself as validator")
	}
	if !validator.HasAccess(dept.ValidatorRole()) {
		return RouteDecision{}, appErrors.Field("validator_id", fmt.Sprintf("selected user is not a %s validator", dept))
	}

	decision := RouteDecision{Department: dept, AssignedValidatorID: validator.ID, EmployeeID: employee.ID}
	switch {
	case submitter.HasAccess(dept.UpdaterRole()):
		decision.CreatedByField = dept.CreatedByField()
		decision.CreatedByID = submitter.UserID
	case submitter.UserID == employee.ID:
		decision.SelfRaised = true
	default:
		return RouteDecision{}, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s updater access required to raise requests for other employees", dept))
	}
	return decision, nil
}
