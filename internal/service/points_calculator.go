package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/points-rewards-api/internal/models"
	appErrors "github.com/noah-isme/points-rewards-api/pkg/errors"
)

var (
	hundred        = decimal.NewFromInt(100)
	utilizationMax = decimal.NewFromInt(1)
)

// PointsCalculator turns a category and an employee grade into a point value.
type PointsCalculator struct {
	defaults map[models.CategoryType]models.GradePolicy
}

// NewPointsCalculator builds a calculator with the default grade policy of each category type.
// Categories may still override the policy individually.
func NewPointsCalculator(directAward, employeeRaised models.GradePolicy) *PointsCalculator {
	return &PointsCalculator{defaults: map[models.CategoryType]models.GradePolicy{
		models.CategoryTypeDirectAward:    directAward,
		models.CategoryTypeEmployeeRaised: employeeRaised,
	}}
}

// PolicyFor resolves the grade policy applied to a category.
func (c *PointsCalculator) PolicyFor(category *models.Category) models.GradePolicy {
	if category.GradePolicy != nil && *category.GradePolicy != "" {
		return *category.GradePolicy
	}
	if c != nil {
		if policy, ok := c.defaults[category.Type]; ok && policy != "" {
			return policy
		}
	}
	return models.GradePolicyStrict
}

// ComputePoints returns the points for quantity units of category awarded to an employee of the
// given grade. Utilization categories are always worth zero points.
func (c *PointsCalculator) ComputePoints(category *models.Category, grade string, quantity int) (int, error) {
	if category == nil {
		return 0, appErrors.Field("category_id", "category is required")
	}
	if quantity <= 0 {
		quantity = 1
	}
	if category.Utilization {
		return 0, nil
	}
	schedule := category.PointsPerUnit
	if schedule.IsFlat() {
		return *schedule.Flat * quantity, nil
	}
	points, present := schedule.ForGrade(grade)
	if present && points > 0 {
		return points * quantity, nil
	}
	// A grade mapped to zero is an explicit exclusion and never falls back to base.
	if !present && c.PolicyFor(category) == models.GradePolicyBaseFallback {
		if base, ok := schedule.ForGrade(models.BaseGradeKey); ok && base > 0 {
			return base * quantity, nil
		}
	}
	label := strings.TrimSpace(grade)
	if label == "" {
		label = "(none)"
	}
	return 0, appErrors.Field("category_id", fmt.Sprintf("employee grade %s is not eligible for category %s", label, category.Name))
}

// NormalizeUtilization parses "88", "88%" or "0.88" into a fraction in [0, 1]. Values above one
// are read as percentages.
func NormalizeUtilization(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	value = strings.TrimSpace(strings.TrimSuffix(value, "%"))
	if value == "" {
		return decimal.Zero, appErrors.Field("utilization", "utilization is required for utilization categories")
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, appErrors.Field("utilization", fmt.Sprintf("invalid utilization value %q", raw))
	}
	if parsed.GreaterThan(utilizationMax) {
		parsed = parsed.Div(hundred)
	}
	if parsed.IsNegative() || parsed.GreaterThan(utilizationMax) {
		return decimal.Zero, appErrors.Field("utilization", "utilization must be between 0% and 100%")
	}
	return parsed.Round(4), nil
}

// FormatUtilizationPercent renders a stored fraction as a percentage label, e.g. "88%".
func FormatUtilizationPercent(value decimal.Decimal) string {
	return value.Mul(hundred).Round(2).String() + "%"
}
