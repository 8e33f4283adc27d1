package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PointsAward is the permanent record created when a request is approved.
// Migrated legacy awards may carry neither RequestID nor Department.
type PointsAward struct {
	ID               string              `db:"id" json:"id"`
	UserID           string              `db:"user_id" json:"user_id"`
	CategoryID       string              `db:"category_id" json:"category_id"`
	Points           int                 `db:"points" json:"points"`
	AwardDate        time.Time           `db:"award_date" json:"award_date"`
	AwardedBy        string              `db:"awarded_by" json:"awarded_by"`
	Notes            string              `db:"notes" json:"notes"`
	RequestID        *string             `db:"request_id" json:"request_id,omitempty"`
	Department       *Department         `db:"department" json:"department,omitempty"`
	UtilizationValue decimal.NullDecimal `db:"utilization_value" json:"utilization_value"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
}

// LinkedRequestID returns the source request id, or "" for legacy awards.
func (a *PointsAward) LinkedRequestID() string {
	if a == nil || a.RequestID == nil {
		return ""
	}
	return *a.RequestID
}

// PointsSummary aggregates an employee's awards.
type PointsSummary struct {
	UserID      string        `json:"user_id"`
	TotalPoints int           `json:"total_points"`
	Awards      []PointsAward `json:"awards"`
}
