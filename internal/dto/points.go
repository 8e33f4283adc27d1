package dto

import "github.com/noah-isme/points-rewards-api/internal/models"

// SubmitPointsRequest is the payload for raising a points request.
type SubmitPointsRequest struct {
	EmployeeID  string `json:"employee_id" validate:"required"`
	CategoryID  string `json:"category_id" validate:"required"`
	ValidatorID string `json:"validator_id" validate:"required"`
	Notes       string `json:"notes" validate:"required"`
	// EventDate is YYYY-MM-DD; empty means today.
	EventDate   string `json:"event_date"`
	Quantity    int    `json:"quantity" validate:"omitempty,min=1,max=1000"`
	Utilization string `json:"utilization"`
}

// ReviewRequest carries the validator's response notes.
type ReviewRequest struct {
	Notes string `json:"notes"`
}

// BulkReviewRequest selects several pending requests for one decision.
type BulkReviewRequest struct {
	IDs   []string `json:"ids" validate:"required,min=1,dive,required"`
	Notes string   `json:"notes"`
}

// BulkReviewResult reports how many of the selected ids were transitioned.
type BulkReviewResult struct {
	Status         models.RequestStatus `json:"status"`
	ProcessedCount int                  `json:"processed_count"`
	SkippedCount   int                  `json:"skipped_count"`
	ProcessedIDs   []string             `json:"processed_ids"`
}

// UtilizationUpdateRequest backfills a utilization percentage.
type UtilizationUpdateRequest struct {
	Utilization string  `json:"utilization" validate:"required"`
	Notes       *string `json:"notes"`
}

// RecordUpdateRequest corrects points or notes on a processed record.
type RecordUpdateRequest struct {
	Points *int    `json:"points" validate:"omitempty,min=0"`
	Notes  *string `json:"notes"`
}

// BulkImportRow is one pre-parsed line of a bulk upload.
type BulkImportRow struct {
	Line                int    `json:"line"`
	EmployeeID          string `json:"employee_id"`
	ValidatorEmployeeID string `json:"validator_employee_id"`
	EventDate           string `json:"event_date"`
	CategoryCode        string `json:"category_code"`
	Department          string `json:"department"`
	Notes               string `json:"notes"`
	Quantity            string `json:"quantity,omitempty"`
	Utilization         string `json:"utilization,omitempty"`
}

// BulkImportRowError is a per-row validation failure.
type BulkImportRowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// BulkImportResult summarises a bulk upload.
type BulkImportResult struct {
	SubmittedCount int                  `json:"submitted_count"`
	FailedCount    int                  `json:"failed_count"`
	Errors         []BulkImportRowError `json:"errors,omitempty"`
	RequestIDs     []string             `json:"request_ids,omitempty"`
}
