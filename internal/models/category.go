package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// CategoryStatus marks whether a category accepts new submissions.
type CategoryStatus string

const (
	CategoryStatusActive   CategoryStatus = "active"
	CategoryStatusInactive CategoryStatus = "inactive"
)

// CategoryType distinguishes updater awarded categories from employee raised ones.
type CategoryType string

const (
	CategoryTypeDirectAward    CategoryType = "direct_award"
	CategoryTypeEmployeeRaised CategoryType = "employee_raised"
)

// GradePolicy decides what happens when an employee grade has no entry in a points map.
type GradePolicy string

const (
	// GradePolicyStrict treats an unconfigured grade as ineligible.
	GradePolicyStrict GradePolicy = "strict"
	// GradePolicyBaseFallback uses the "base" entry of the map for unconfigured grades.
	GradePolicyBaseFallback GradePolicy = "base_fallback"
)

// BaseGradeKey is the points map entry consulted by GradePolicyBaseFallback.
const BaseGradeKey = "base"

// ParseGradePolicy normalises configured policy names, defaulting to strict.
func ParseGradePolicy(raw string) GradePolicy {
	switch GradePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case GradePolicyBaseFallback:
		return GradePolicyBaseFallback
	default:
		return GradePolicyStrict
	}
}

// PointsSchedule is either a flat number of points or a grade keyed map.
// It is stored as JSON: `10` or `{"L1": 10, "L2": 20}`.
type PointsSchedule struct {
	Flat    *int
	ByGrade map[string]int
}

// FlatPoints builds a flat schedule.
func FlatPoints(points int) PointsSchedule {
	return PointsSchedule{Flat: &points}
}

// GradePoints builds a grade keyed schedule.
func GradePoints(byGrade map[string]int) PointsSchedule {
	return PointsSchedule{ByGrade: byGrade}
}

// IsFlat reports whether the schedule is a single number.
func (p PointsSchedule) IsFlat() bool {
	return p.Flat != nil
}

// ForGrade looks up a grade case-insensitively. present reports whether the grade has an entry,
// including entries mapped to zero.
func (p PointsSchedule) ForGrade(grade string) (points int, present bool) {
	grade = strings.TrimSpace(grade)
	if grade == "" {
		return 0, false
	}
	if v, ok := p.ByGrade[grade]; ok {
		return v, true
	}
	for key, v := range p.ByGrade {
		if strings.EqualFold(key, grade) {
			return v, true
		}
	}
	return 0, false
}

// MarshalJSON implements json.Marshaler.
func (p PointsSchedule) MarshalJSON() ([]byte, error) {
	if p.Flat != nil {
		return json.Marshal(*p.Flat)
	}
	if p.ByGrade == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.ByGrade)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PointsSchedule) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*p = PointsSchedule{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '{' {
		var raw map[string]float64
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("points schedule: %w", err)
		}
		p.ByGrade = make(map[string]int, len(raw))
		for grade, v := range raw {
			p.ByGrade[strings.TrimSpace(grade)] = int(math.Round(v))
		}
		return nil
	}
	var flat float64
	if err := json.Unmarshal(data, &flat); err != nil {
		var quoted string
		if errQuoted := json.Unmarshal(data, &quoted); errQuoted != nil {
			return fmt.Errorf("points schedule: %w", err)
		}
		if _, errScan := fmt.Sscan(quoted, &flat); errScan != nil {
			return fmt.Errorf("points schedule: %w", errScan)
		}
	}
	v := int(math.Round(flat))
	p.Flat = &v
	return nil
}

// Scan implements sql.Scanner for JSON/JSONB columns.
func (p *PointsSchedule) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*p = PointsSchedule{}
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	case int64:
		n := int(v)
		*p = PointsSchedule{Flat: &n}
		return nil
	default:
		return fmt.Errorf("points schedule: unsupported type %T", value)
	}
}

// Value implements driver.Valuer.
func (p PointsSchedule) Value() (driver.Value, error) {
	raw, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Category is a configured reward type owned by one department.
type Category struct {
	ID            string         `db:"id" json:"id"`
	Code          string         `db:"code" json:"code"`
	Name          string         `db:"name" json:"name"`
	Department    Department     `db:"department" json:"department"`
	Status        CategoryStatus `db:"status" json:"status"`
	Type          CategoryType   `db:"type" json:"type"`
	Utilization   bool           `db:"is_utilization" json:"is_utilization"`
	PointsPerUnit PointsSchedule `db:"points_per_unit" json:"points_per_unit"`
	GradePolicy   *GradePolicy   `db:"grade_policy" json:"grade_policy,omitempty"`
	Legacy        bool           `db:"-" json:"legacy,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Active reports whether new requests may be raised against the category.
func (c *Category) Active() bool {
	return c != nil && strings.EqualFold(string(c.Status), string(CategoryStatusActive))
}

// CategoryFilter constrains category listing.
type CategoryFilter struct {
	Department Department
	ActiveOnly bool
	Type       CategoryType
}
