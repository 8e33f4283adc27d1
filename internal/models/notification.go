package models

import "time"

// EventType enumerates realtime dashboard events.
type EventType string

const (
	EventRequestRaised    EventType = "request_raised"
	EventPointsApproved   EventType = "points_approved"
	EventPointsRejected   EventType = "points_rejected"
	EventDashboardRefresh EventType = "dashboard_refresh"
	EventRecordUpdated    EventType = "record_updated"
)

// Event is a realtime message addressed to exactly one (user, role) pair.
type Event struct {
	Type         EventType              `json:"type"`
	TargetUserID string                 `json:"target_user_id"`
	TargetRole   string                 `json:"target_role"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// Email is an outbound HTML notification.
type Email struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}
