package timespec

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/strefethen/timer-hub-go/internal/datetime"
)

// parseCronTimeSpec uses robfig/cron's standard 5-field parser (minute,
// hour, day-of-month, month, day-of-week) purely to validate the
// expression and extract its literal field values; it never becomes the
// scheduling engine itself. A cron field that isn't a single literal
// value (a range, step, or list) has no direct FixedTimeSpec
// representation and is rejected.
func parseCronTimeSpec(expression string, exception ExceptionPolicy, offsetSeconds int) (*FixedTimeSpec, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expression); err != nil {
		return nil, fmt.Errorf("timespec: invalid cron expression %q: %w", expression, err)
	}

	fields := splitCronFields(expression)
	if len(fields) != 5 {
		return nil, fmt.Errorf("timespec: expected 5 cron fields, got %d", len(fields))
	}

	minute, err := cronLiteral(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("timespec: minute field: %w", err)
	}
	hour, err := cronLiteral(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("timespec: hour field: %w", err)
	}
	dom, err := cronLiteral(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("timespec: day-of-month field: %w", err)
	}
	month, err := cronLiteral(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("timespec: month field: %w", err)
	}
	weekdays, err := cronWeekdayMask(fields[4])
	if err != nil {
		return nil, fmt.Errorf("timespec: day-of-week field: %w", err)
	}

	return NewFixedTimeSpec(minute, hour, dom, month, wildcard, weekdays, exception, offsetSeconds), nil
}

func splitCronFields(expression string) []string {
	var fields []string
	start := 0
	for i := 0; i <= len(expression); i++ {
		if i == len(expression) || expression[i] == ' ' {
			if i > start {
				fields = append(fields, expression[start:i])
			}
			start = i + 1
		}
	}
	return fields
}

// cronLiteral accepts "*" (wildcard) or a bare integer within [min, max];
// anything richer (ranges, steps, lists) isn't representable as a single
// FixedTimeSpec field.
func cronLiteral(field string, min, max int) (int, error) {
	if field == "*" {
		return wildcard, nil
	}
	if strings.ContainsAny(field, "-/,") {
		return 0, fmt.Errorf("cron expression field %q isn't a single literal value", field)
	}
	var v int
	if n, err := fmt.Sscanf(field, "%d", &v); err != nil || n != 1 {
		return 0, fmt.Errorf("cron expression field %q isn't a single literal value", field)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("value %d out of range [%d,%d]", v, min, max)
	}
	return v, nil
}

func cronWeekdayMask(field string) (datetime.Weekdays, error) {
	if field == "*" {
		return datetime.AllWeekdays, nil
	}
	if strings.ContainsAny(field, "-/,") {
		return 0, fmt.Errorf("cron expression day-of-week field %q isn't a single literal value", field)
	}
	var n int
	if _, err := fmt.Sscanf(field, "%d", &n); err != nil {
		return 0, fmt.Errorf("cron expression day-of-week field %q isn't a single literal value", field)
	}
	// cron day-of-week: 0 and 7 both mean Sunday.
	n %= 7
	if n < 0 || n > 6 {
		return 0, fmt.Errorf("day-of-week %d out of range", n)
	}
	bits := [...]datetime.Weekdays{
		datetime.Sun, datetime.Mon, datetime.Tue, datetime.Wed,
		datetime.Thu, datetime.Fri, datetime.Sat,
	}
	return bits[n], nil
}
