// Package dates resolves natural-language month expressions into
// half-open [start, end) time ranges for API date filters.
package dates

import (
	"strconv"
	"strings"
	"time"
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseMonth resolves expr against now. Supported forms: "this month",
// "last month", a month name ("January", "feb"), "Month Year"
// ("Feb 2024") and "YYYY-MM". ok is false when expr is empty or
// unrecognised, in which case no date filter applies.
func ParseMonth(expr string, now time.Time) (start, end time.Time, ok bool) {
	expr = strings.ToLower(strings.TrimSpace(expr))
	if expr == "" {
		return time.Time{}, time.Time{}, false
	}

	switch expr {
	case "this_month", "this month", "current month":
		return monthRange(now.Year(), now.Month(), now.Location()), monthRangeEnd(now.Year(), now.Month(), now.Location()), true
	case "last_month", "last month", "previous month":
		prev := now.AddDate(0, 0, -now.Day())
		return monthRange(prev.Year(), prev.Month(), now.Location()), monthRangeEnd(prev.Year(), prev.Month(), now.Location()), true
	}

	if m, found := monthNames[expr]; found {
		return monthRange(now.Year(), m, now.Location()), monthRangeEnd(now.Year(), m, now.Location()), true
	}

	if strings.Contains(expr, " ") {
		return parseMonthYear(expr, now)
	}
	if strings.Contains(expr, "-") {
		return parseISO(expr, now.Location())
	}
	return time.Time{}, time.Time{}, false
}

func parseMonthYear(expr string, now time.Time) (time.Time, time.Time, bool) {
	parts := strings.Fields(expr)
	m, found := monthNames[parts[0]]
	if !found {
		return time.Time{}, time.Time{}, false
	}
	year := now.Year()
	if len(parts) > 1 {
		if y, err := strconv.Atoi(parts[1]); err == nil {
			year = y
		}
	}
	return monthRange(year, m, now.Location()), monthRangeEnd(year, m, now.Location()), true
}

func parseISO(expr string, loc *time.Location) (time.Time, time.Time, bool) {
	parts := strings.SplitN(expr, "-", 2)
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	monthNum, err := strconv.Atoi(parts[1])
	if err != nil || monthNum < 1 || monthNum > 12 {
		return time.Time{}, time.Time{}, false
	}
	m := time.Month(monthNum)
	return monthRange(year, m, loc), monthRangeEnd(year, m, loc), true
}

func monthRange(year int, m time.Month, loc *time.Location) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, loc)
}

func monthRangeEnd(year int, m time.Month, loc *time.Location) time.Time {
	return monthRange(year, m, loc).AddDate(0, 1, 0)
}
