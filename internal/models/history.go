package models

import "time"

// HistorySource identifies which collection produced a history row.
type HistorySource string

const (
	HistorySourceRequest HistorySource = "points_request"
	HistorySourceAward   HistorySource = "points"
)

// SelfSubmitterName is shown when the employee raised the request themselves.
const SelfSubmitterName = "Self (Employee)"

// HistoryRow is one processed record as displayed on a department dashboard.
type HistoryRow struct {
	ID                 string        `json:"id"`
	Source             HistorySource `json:"source"`
	RequestID          string        `json:"request_id,omitempty"`
	EmployeeID         string        `json:"employee_id"`
	EmployeeName       string        `json:"employee_name"`
	EmployeeCode       string        `json:"employee_code"`
	CategoryID         string        `json:"category_id"`
	CategoryName       string        `json:"category_name"`
	Points             int           `json:"points"`
	UtilizationPercent *string       `json:"utilization_percent,omitempty"`
	SubmissionNotes    string        `json:"submission_notes"`
	ResponseNotes      string        `json:"response_notes"`
	Status             RequestStatus `json:"status"`
	UpdaterName        string        `json:"updater_name"`
	EventDate          time.Time     `json:"event_date"`
	RequestDate        *time.Time    `json:"request_date,omitempty"`
	ResponseDate       *time.Time    `json:"response_date,omitempty"`
	FiscalYear         int           `json:"fiscal_year"`
	Quarter            string        `json:"quarter"`
}

// HistoryQuery selects a user's history for one department role.
type HistoryQuery struct {
	UserID     string
	Role       Role
	Quarter    string
	FiscalYear int
}

// HistoryAwardFilter constrains the legacy award scan used by history aggregation.
type HistoryAwardFilter struct {
	AwardedBy  string
	Department Department
}
