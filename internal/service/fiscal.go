package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Fiscal years start in April and are labelled by their starting calendar year.
const fiscalYearStartMonth = time.April

// FiscalPeriod returns the fiscal year label and quarter ("Q1".."Q4") of t.
// Q1 is April to June; January to March is Q4 of the previous year's label.
func FiscalPeriod(t time.Time) (int, string) {
	year := t.Year()
	if t.Month() < fiscalYearStartMonth {
		year--
	}
	offset := (int(t.Month()) - int(fiscalYearStartMonth) + 12) % 12
	return year, fmt.Sprintf("Q%d", offset/3+1)
}

// ParseQuarter normalises "q2", "Q2" or "2" to "Q2". Empty input means no filter.
func ParseQuarter(raw string) (string, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if value == "" {
		return "", nil
	}
	value = strings.TrimPrefix(value, "Q")
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 || n > 4 {
		return "", fmt.Errorf("invalid quarter %q", raw)
	}
	return fmt.Sprintf("Q%d", n), nil
}

// InPeriod reports whether t matches the optional fiscal year and quarter filters.
func InPeriod(t time.Time, fiscalYear int, quarter string) bool {
	year, q := FiscalPeriod(t)
	if fiscalYear != 0 && year != fiscalYear {
		return false
	}
	if quarter != "" && q != quarter {
		return false
	}
	return true
}

// monthRange returns [first day of t's month, first day of next month) in t's location.
func monthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
