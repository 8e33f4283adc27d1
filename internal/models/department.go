package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Department is the closed set of departments that own reward categories.
type Department string

const (
	DepartmentHR  Department = "HR"
	DepartmentLD  Department = "LD"
	DepartmentPMO Department = "PMO"
	DepartmentTA  Department = "TA"
	DepartmentPM  Department = "PM"
)

// Departments lists every known department in a stable order.
var Departments = []Department{DepartmentHR, DepartmentLD, DepartmentPMO, DepartmentTA, DepartmentPM}

// departmentPrefixes is checked in order; "pmo" must precede "pm".
var departmentPrefixes = []struct {
	prefix string
	dept   Department
}{
	{"pmo", DepartmentPMO},
	{"pm", DepartmentPM},
	{"hr", DepartmentHR},
	{"ta", DepartmentTA},
	{"l&d", DepartmentLD},
	{"l & d", DepartmentLD},
	{"l_d", DepartmentLD},
	{"ld", DepartmentLD},
	{"learning", DepartmentLD},
}

// ParseDepartment resolves raw department labels ("hr", "HR Ops", "L&D", "pmo_team") using a
// case-insensitive prefix match.
func ParseDepartment(raw string) (Department, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", false
	}
	for _, candidate := range departmentPrefixes {
		if strings.HasPrefix(value, candidate.prefix) {
			return candidate.dept, true
		}
	}
	return "", false
}

// Valid reports whether d is one of the known departments.
func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// Slug is the lowercase token used in role tags and legacy column names.
func (d Department) Slug() string {
	return strings.ToLower(string(d))
}

// ValidatorRole returns the dashboard access tag of the department's validators.
func (d Department) ValidatorRole() string {
	return d.Slug() + "_validator"
}

// UpdaterRole returns the dashboard access tag of the department's updaters.
func (d Department) UpdaterRole() string {
	return d.Slug() + "_updater"
}

// CreatedByField returns the request field holding the id of the department's updater.
func (d Department) CreatedByField() SubmitterField {
	return SubmitterField("created_by_" + d.Slug() + "_id")
}

// Scan resolves the stored label once so downstream code only switches on the enum.
// Unrecognised labels scan to the empty department.
func (d *Department) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = ""
	case string:
		*d, _ = ParseDepartment(v)
	case []byte:
		*d, _ = ParseDepartment(string(v))
	default:
		return fmt.Errorf("department: unsupported type %T", value)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Department) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

// RoleKind distinguishes the two department roles.
type RoleKind string

const (
	RoleKindValidator RoleKind = "validator"
	RoleKindUpdater   RoleKind = "updater"
)

// Role pairs a department with the kind of access held in it.
type Role struct {
	Department Department
	Kind       RoleKind
}

// Tag renders the role as a dashboard access tag.
func (r Role) Tag() string {
	if r.Kind == RoleKindUpdater {
		return r.Department.UpdaterRole()
	}
	return r.Department.ValidatorRole()
}

// RoleEmployee is held by every employee who can see their own points.
const RoleEmployee = "employee"
