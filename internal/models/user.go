package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// User represents an employee or department staff member stored in the users table.
type User struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	EmployeeID      string         `db:"employee_id" json:"employee_id"`
	Grade           string         `db:"grade" json:"grade"`
	Department      string         `db:"department" json:"department"`
	Email           string         `db:"email" json:"email"`
	DashboardAccess pq.StringArray `db:"dashboard_access" json:"dashboard_access"`
	DPID            *string        `db:"dp_id" json:"dp_id,omitempty"`
	PasswordHash    string         `db:"password_hash" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// HasAccess reports whether the user holds the given dashboard access tag.
func (u *User) HasAccess(tag string) bool {
	if u == nil {
		return false
	}
	return HasAccessTag(u.DashboardAccess, tag)
}

// HasAccessTag checks a tag list case-insensitively.
func HasAccessTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

// DisplayName falls back to the employee identifier when no name is stored.
func (u *User) DisplayName() string {
	if u == nil {
		return UnknownName
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	if u.EmployeeID != "" {
		return u.EmployeeID
	}
	return UnknownName
}

// UserSummary is the public projection used in listings such as validator pickers.
type UserSummary struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	EmployeeID string `db:"employee_id" json:"employee_id"`
	Email      string `db:"email" json:"email"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// UnknownName is shown when a referenced user or category no longer resolves.
const UnknownName = "Unknown"
