package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus captures workflow states for points requests.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "Pending"
	RequestStatusApproved RequestStatus = "Approved"
	RequestStatusRejected RequestStatus = "Rejected"
)

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// SubmitterField names a request column that may carry the id of whoever raised it.
type SubmitterField string

const (
	FieldCreatedByHR  SubmitterField = "created_by_hr_id"
	FieldCreatedByLD  SubmitterField = "created_by_ld_id"
	FieldCreatedByPMO SubmitterField = "created_by_pmo_id"
	FieldCreatedByTA  SubmitterField = "created_by_ta_id"
	FieldCreatedByPM  SubmitterField = "created_by_pm_id"
	// FieldCreatedBy and FieldSubmittedBy only exist on records written before department tagging.
	FieldCreatedBy   SubmitterField = "created_by"
	FieldSubmittedBy SubmitterField = "submitted_by"
)

// DepartmentSubmitterFields are the per-department updater columns.
var DepartmentSubmitterFields = []SubmitterField{
	FieldCreatedByHR, FieldCreatedByLD, FieldCreatedByPMO, FieldCreatedByTA, FieldCreatedByPM,
}

// PointsRequest is the mutable workflow record from submission to approval or rejection.
type PointsRequest struct {
	ID                  string              `db:"id" json:"id"`
	EmployeeID          string              `db:"employee_id" json:"employee_id"`
	CategoryID          string              `db:"category_id" json:"category_id"`
	Points              int                 `db:"points" json:"points"`
	UtilizationValue    decimal.NullDecimal `db:"utilization_value" json:"utilization_value"`
	Quantity            int                 `db:"quantity" json:"quantity"`
	Status              RequestStatus       `db:"status" json:"status"`
	SubmissionNotes     string              `db:"submission_notes" json:"submission_notes"`
	ResponseNotes       *string             `db:"response_notes" json:"response_notes,omitempty"`
	RequestDate         time.Time           `db:"request_date" json:"request_date"`
	EventDate           time.Time           `db:"event_date" json:"event_date"`
	AssignedValidatorID string              `db:"assigned_validator_id" json:"assigned_validator_id"`
	CreatedByHRID       *string             `db:"created_by_hr_id" json:"created_by_hr_id,omitempty"`
	CreatedByLDID       *string             `db:"created_by_ld_id" json:"created_by_ld_id,omitempty"`
	CreatedByPMOID      *string             `db:"created_by_pmo_id" json:"created_by_pmo_id,omitempty"`
	CreatedByTAID       *string             `db:"created_by_ta_id" json:"created_by_ta_id,omitempty"`
	CreatedByPMID       *string             `db:"created_by_pm_id" json:"created_by_pm_id,omitempty"`
	CreatedBy           *string             `db:"created_by" json:"created_by,omitempty"`
	SubmittedBy         *string             `db:"submitted_by" json:"submitted_by,omitempty"`
	CategoryDepartment  Department          `db:"category_department" json:"category_department"`
	ProcessedBy         *string             `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedDepartment *Department         `db:"processed_department" json:"processed_department,omitempty"`
	ResponseDate        *time.Time          `db:"response_date" json:"response_date,omitempty"`
}

func (r *PointsRequest) fieldRef(field SubmitterField) **string {
	switch field {
	case FieldCreatedByHR:
		return &r.CreatedByHRID
	case FieldCreatedByLD:
		return &r.CreatedByLDID
	case FieldCreatedByPMO:
		return &r.CreatedByPMOID
	case FieldCreatedByTA:
		return &r.CreatedByTAID
	case FieldCreatedByPM:
		return &r.CreatedByPMID
	case FieldCreatedBy:
		return &r.CreatedBy
	case FieldSubmittedBy:
		return &r.SubmittedBy
	}
	return nil
}

// SubmitterValue returns the trimmed value of a submitter column, or "" when unset.
func (r *PointsRequest) SubmitterValue(field SubmitterField) string {
	ref := r.fieldRef(field)
	if ref == nil || *ref == nil {
		return ""
	}
	return strings.TrimSpace(**ref)
}

// SetCreatedBy stamps the department updater column, clearing the others so that exactly one
// department tag is set.
func (r *PointsRequest) SetCreatedBy(dept Department, updaterID string) {
	for _, field := range DepartmentSubmitterFields {
		*r.fieldRef(field) = nil
	}
	if ref := r.fieldRef(dept.CreatedByField()); ref != nil && updaterID != "" {
		id := updaterID
		*ref = &id
	}
}

// Updater returns the department updater who raised the request, if any.
func (r *PointsRequest) Updater() (Department, string, bool) {
	for _, dept := range Departments {
		if id := r.SubmitterValue(dept.CreatedByField()); id != "" {
			return dept, id, true
		}
	}
	return "", "", false
}

// SelfRaised reports whether the employee raised the request without an updater.
func (r *PointsRequest) SelfRaised() bool {
	_, _, ok := r.Updater()
	return !ok
}

// IsUtilization reports whether the request carries a utilization percentage.
func (r *PointsRequest) IsUtilization() bool {
	return r.UtilizationValue.Valid
}

// OwningDepartment prefers the tag stamped at resolution time, then the routing tag.
func (r *PointsRequest) OwningDepartment() Department {
	if r.ProcessedDepartment != nil && r.ProcessedDepartment.Valid() {
		return *r.ProcessedDepartment
	}
	return r.CategoryDepartment
}

// PointsRequestFilter constrains request listing queries.
type PointsRequestFilter struct {
	Status              []RequestStatus
	AssignedValidatorID string
	CategoryDepartment  Department
	CreatedByField      SubmitterField
	CreatedByID         string
	EmployeeID          string
	Limit               int
	Offset              int
}
