// Package timespec describes *when* a task should fire, in terms the
// datetime resolver understands: a literal or variable-sourced set of
// calendar fields, a weekday mask, and an exception-day policy.
package timespec

import (
	"fmt"
	"time"

	"github.com/strefethen/timer-hub-go/internal/datetime"
)

// ExceptionPolicy constrains whether a resolved date may fall on a
// registered exception day.
type ExceptionPolicy int

const (
	// DontCare means exception days are not consulted.
	DontCare ExceptionPolicy = iota
	// Yes requires the resolved date to be a registered exception day.
	Yes
	// No forbids the resolved date from being a registered exception day.
	No
)

func (p ExceptionPolicy) String() string {
	switch p {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "dontcare"
	}
}

// ParseExceptionPolicy parses the §6 XML attribute vocabulary
// (yes/no/dontcare, default dontcare for anything else).
func ParseExceptionPolicy(s string) ExceptionPolicy {
	switch s {
	case "yes":
		return Yes
	case "no":
		return No
	default:
		return DontCare
	}
}

// wildcard is the sentinel used by the literal field accessors (day,
// month, year) to mean "free"; minute and hour use it too. weekday_mask
// uses 0 for "any" (datetime.AllWeekdays), not this sentinel.
const wildcard = -1

// Day is the result of resolving a TimeSpec's date-level constraints:
// literal field values, with wildcard fields reported as -1 and an
// "any day" weekday mask reported as datetime.AllWeekdays.
type Day struct {
	Day, Month, Year int
	Weekdays         datetime.Weekdays
}

// Time is the result of resolving a TimeSpec's time-of-day constraints.
type Time struct {
	Minute, Hour int
}

// TimeSpec is the common capability every concrete spec (literal or
// variable-sourced) implements: it can describe itself as calendar
// constraints for a candidate date, and as an hour/minute pair once that
// date is known.
type TimeSpec interface {
	// GetDay returns the date-level constraints for a candidate search
	// anchored at current. Wildcards are reported as -1 / AllWeekdays.
	GetDay(current time.Time) Day
	// GetTime returns the minute/hour constraints appropriate for the
	// given resolved date (VariableTimeSpec may pick a different value
	// per date, e.g. a sunrise/sunset source).
	GetTime(day, month, year int) Time
	// ExceptionPolicy reports how exception days constrain this spec.
	ExceptionPolicy() ExceptionPolicy
	// OffsetSeconds is the signed shift applied after resolution.
	OffsetSeconds() int
	// CheckIsValid reports whether the literal combination of fixed
	// fields can ever hold (e.g. Feb 30 with Year fixed non-leap).
	CheckIsValid() error
}

// FixedTimeSpec is a literal TimeSpec: every field is either a constant
// or wildcard, fixed at construction.
type FixedTimeSpec struct {
	Minute, Hour        int
	DayOfMonth, Month   int
	Year                int
	WeekdayMask         datetime.Weekdays
	Exception           ExceptionPolicy
	Offset              int
}

// NewFixedTimeSpec builds a FixedTimeSpec. Use wildcard (-1) for any
// field that should be left free; weekdayMask AllWeekdays (0) means any
// day of week.
func NewFixedTimeSpec(minute, hour, dayOfMonth, month, year int, weekdayMask datetime.Weekdays, exception ExceptionPolicy, offsetSeconds int) *FixedTimeSpec {
	return &FixedTimeSpec{
		Minute:      minute,
		Hour:        hour,
		DayOfMonth:  dayOfMonth,
		Month:       month,
		Year:        year,
		WeekdayMask: weekdayMask,
		Exception:   exception,
		Offset:      offsetSeconds,
	}
}

// ParseCronTimeSpec builds a FixedTimeSpec from a standard 5-field cron
// expression (minute hour dom month dow), using robfig/cron purely to
// validate and to derive the equivalent literal fields; the returned
// FixedTimeSpec is then resolved through the same datetime.TryResolve
// path as any other spec — cron syntax is a convenience constructor, not
// an alternate scheduling engine.
func ParseCronTimeSpec(expression string, exception ExceptionPolicy, offsetSeconds int) (*FixedTimeSpec, error) {
	return parseCronTimeSpec(expression, exception, offsetSeconds)
}

func (s *FixedTimeSpec) GetDay(current time.Time) Day {
	return Day{Day: s.DayOfMonth, Month: s.Month, Year: s.Year, Weekdays: s.WeekdayMask}
}

func (s *FixedTimeSpec) GetTime(day, month, year int) Time {
	return Time{Minute: s.Minute, Hour: s.Hour}
}

func (s *FixedTimeSpec) ExceptionPolicy() ExceptionPolicy { return s.Exception }
func (s *FixedTimeSpec) OffsetSeconds() int               { return s.Offset }

// CheckIsValid fails if the literal combination is calendar-impossible
// given the fixed fields (e.g. Feb 30 with Year fixed non-leap, or a
// day-of-month that no month ever has).
func (s *FixedTimeSpec) CheckIsValid() error {
	if s.Minute != wildcard && (s.Minute < 0 || s.Minute > 59) {
		return fmt.Errorf("timespec: minute %d out of range", s.Minute)
	}
	if s.Hour != wildcard && (s.Hour < 0 || s.Hour > 23) {
		return fmt.Errorf("timespec: hour %d out of range", s.Hour)
	}
	if s.Month != wildcard && (s.Month < 1 || s.Month > 12) {
		return fmt.Errorf("timespec: month %d out of range", s.Month)
	}
	if s.DayOfMonth != wildcard {
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return fmt.Errorf("timespec: day %d out of range", s.DayOfMonth)
		}
		if s.Month != wildcard && s.DayOfMonth > absoluteMaxDaysInMonth(s.Month) {
			return fmt.Errorf("timespec: day %d never occurs in month %d", s.DayOfMonth, s.Month)
		}
		if s.Year != wildcard && s.Month == 2 && s.DayOfMonth == 29 &&
			time.Date(s.Year, time.February, 29, 0, 0, 0, 0, time.UTC).Month() != time.February {
			return fmt.Errorf("timespec: day 29 never occurs in February %d", s.Year)
		}
	}
	return nil
}

func absoluteMaxDaysInMonth(month int) int {
	switch month {
	case 2:
		return 29
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// VariableReader is the external "variable subsystem" collaborator a
// VariableTimeSpec reads live values from (§6). Implementations live
// outside this module; the core only consumes this narrow interface.
type VariableReader interface {
	// ReadTime returns the live (hour, minute) bound to name, or ok=false
	// if the variable is unset.
	ReadTime(name string) (hour, minute int, ok bool)
	// ReadDate returns the live (day, month, year) bound to name, or
	// ok=false if the variable is unset.
	ReadDate(name string) (day, month, year int, ok bool)
}

// VariableTimeSpec sources some or all of its fields from live variables
// via a VariableReader, falling back to wildcard when a variable is
// unset. Date and time variables are independent: either, both, or
// neither may be bound.
type VariableTimeSpec struct {
	reader VariableReader

	TimeVar string // variable name for (hour, minute); "" = not variable-sourced
	DateVar string // variable name for (day, month, year); "" = not variable-sourced

	// Literal fallbacks/overrides used when the corresponding Var is "".
	Minute, Hour      int
	DayOfMonth, Month int
	Year              int

	WeekdayMask datetime.Weekdays
	Exception   ExceptionPolicy
	Offset      int
}

// NewVariableTimeSpec builds a VariableTimeSpec bound to reader. Pass ""
// for TimeVar/DateVar to use the literal fields instead for that half.
func NewVariableTimeSpec(reader VariableReader) *VariableTimeSpec {
	return &VariableTimeSpec{
		reader:     reader,
		Minute:     wildcard,
		Hour:       wildcard,
		DayOfMonth: wildcard,
		Month:      wildcard,
		Year:       wildcard,
	}
}

func (s *VariableTimeSpec) GetDay(current time.Time) Day {
	if s.DateVar == "" {
		return Day{Day: s.DayOfMonth, Month: s.Month, Year: s.Year, Weekdays: s.WeekdayMask}
	}
	day, month, year, ok := s.reader.ReadDate(s.DateVar)
	if !ok {
		return Day{Day: wildcard, Month: wildcard, Year: wildcard, Weekdays: s.WeekdayMask}
	}
	return Day{Day: day, Month: month, Year: year, Weekdays: s.WeekdayMask}
}

// GetTime reads the live hour/minute for the resolved date. Because a
// variable source may depend on the date itself (sunrise/sunset-like
// values), the resolved (day, month, year) is passed through even though
// this implementation ignores it beyond the variable lookup.
func (s *VariableTimeSpec) GetTime(day, month, year int) Time {
	if s.TimeVar == "" {
		return Time{Minute: s.Minute, Hour: s.Hour}
	}
	hour, minute, ok := readTime(s.reader, s.TimeVar)
	if !ok {
		return Time{Minute: wildcard, Hour: wildcard}
	}
	return Time{Minute: minute, Hour: hour}
}

func readTime(reader VariableReader, name string) (hour, minute int, ok bool) {
	h, m, ok := reader.ReadTime(name)
	return h, m, ok
}

func (s *VariableTimeSpec) ExceptionPolicy() ExceptionPolicy { return s.Exception }
func (s *VariableTimeSpec) OffsetSeconds() int               { return s.Offset }

// CheckIsValid only validates the literal fallback fields; a bound
// variable's live value is checked for plausibility at read time by
// GetDay/GetTime returning wildcard for anything unset.
func (s *VariableTimeSpec) CheckIsValid() error {
	lit := &FixedTimeSpec{
		Minute: s.Minute, Hour: s.Hour, DayOfMonth: s.DayOfMonth,
		Month: s.Month, Year: s.Year,
	}
	if s.TimeVar != "" {
		lit.Minute, lit.Hour = wildcard, wildcard
	}
	if s.DateVar != "" {
		lit.DayOfMonth, lit.Month, lit.Year = wildcard, wildcard, wildcard
	}
	return lit.CheckIsValid()
}

// DaySpec is a literal calendar date with optional wildcards, used by
// ExceptionDays entries.
type DaySpec struct {
	Day, Month, Year int
}

// Matches reports whether t's date matches this DaySpec, treating
// wildcard components as matching any value.
func (d DaySpec) Matches(t time.Time) bool {
	if d.Day != wildcard && d.Day != t.Day() {
		return false
	}
	if d.Month != wildcard && d.Month != int(t.Month()) {
		return false
	}
	if d.Year != wildcard && d.Year != t.Year() {
		return false
	}
	return true
}
