// Package datetime implements the calendar constraint resolver: a mutable
// DateTime value with per-field fixed/free flags that knows how to advance
// itself, field by field, until every constraint holds and the result is
// strictly later than a reference instant.
package datetime

import (
	"fmt"
	"time"
)

// Field identifies one of the five calendar fields, in order of decreasing
// granularity. Seconds are never represented; the resolver works at minute
// resolution.
type Field int

const (
	Year Field = iota
	Month
	Day
	Hour
	Minute
)

func (f Field) String() string {
	switch f {
	case Year:
		return "Year"
	case Month:
		return "Month"
	case Day:
		return "Day"
	case Hour:
		return "Hour"
	case Minute:
		return "Minute"
	default:
		return "Field(?)"
	}
}

// Result classifies the outcome of TryResolve.
type Result int

const (
	// Resolved means self now holds a valid answer strictly after current.
	Resolved Result = iota
	// Unresolved means no answer exists within the field window given to
	// this call; the caller should widen the search (e.g. advance a day
	// and retry, or escalate to a coarser window).
	Unresolved
	// Impossible means the constraints can never be satisfied, regardless
	// of how far the search is widened (e.g. Day=31 in February, both fixed).
	Impossible
)

func (r Result) String() string {
	switch r {
	case Resolved:
		return "Resolved"
	case Unresolved:
		return "Unresolved"
	case Impossible:
		return "Impossible"
	default:
		return "Result(?)"
	}
}

// Weekdays is a 7-bit mask, Mon=0x01 .. Sun=0x40. Zero means "any day".
// This layout (not time.Weekday's Sun=0 ordering) matches the mask §3
// defines and the fixtures in §8.
type Weekdays int

const (
	Mon Weekdays = 1 << iota
	Tue
	Wed
	Thu
	Fri
	Sat
	Sun
	allWeekdaysShift
)

// AllWeekdays is the wildcard value: every day matches.
const AllWeekdays Weekdays = 0

func (w Weekdays) has(bit Weekdays) bool { return w&bit != 0 }

// FromTimeWeekday converts a time.Weekday into its single-bit Weekdays
// representation.
func FromTimeWeekday(d time.Weekday) Weekdays {
	switch d {
	case time.Monday:
		return Mon
	case time.Tuesday:
		return Tue
	case time.Wednesday:
		return Wed
	case time.Thursday:
		return Thu
	case time.Friday:
		return Fri
	case time.Saturday:
		return Sat
	case time.Sunday:
		return Sun
	default:
		return 0
	}
}

// maxResolveIterations bounds the projection/escalation loop. The field
// window is at most 5 fields deep and weekday scanning adds at most
// WeekdayLookaheadDays outer iterations on top (see TryResolve); this is
// a generous ceiling against a malformed spec rather than a value
// expected to be reached.
const maxResolveIterations = 64

// WeekdayLookaheadDays bounds the weekday-aware resolver's day-by-day
// scan (§4.1 step 3; §9 open question leaves the exact value
// implementation-defined). Overridable at startup from config so an
// operator can widen it for unusual weekday masks without a rebuild;
// package-level like variable.Now since TryResolve's signature is fixed
// by the resolver's own recursive calls.
var WeekdayLookaheadDays = 7

// absoluteMaxDaysInMonth is the largest day-of-month any year ever assigns
// to each 1-indexed month, used to detect a fixed (day, month) pair that
// is impossible regardless of year (e.g. Feb 31).
var absoluteMaxDaysInMonth = [13]int{
	0,  // unused, months are 1-indexed
	31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31,
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysIn(month, year int) int {
	if month == 2 && isLeap(year) {
		return 29
	}
	if month < 1 || month > 12 {
		return 0
	}
	d := absoluteMaxDaysInMonth[month]
	if month == 2 {
		return 28
	}
	return d
}

func fieldMinimum(f Field) int {
	switch f {
	case Month, Day:
		return 1
	default:
		return 0
	}
}

// DateTime is a calendar value whose fields are independently fixed (must
// be preserved by the resolver) or free (the resolver may change them).
type DateTime struct {
	values   [5]int
	fixed    [5]bool
	weekdays Weekdays
	loc      *time.Location
}

// FromReference builds a DateTime whose fields are all free, seeded with
// ref's broken-down values. This is the starting point for overlaying a
// TimeSpec's fixed fields on top of a reference instant.
func FromReference(ref time.Time) *DateTime {
	return &DateTime{
		values: [5]int{ref.Year(), int(ref.Month()), ref.Day(), ref.Hour(), ref.Minute()},
		loc:    ref.Location(),
	}
}

// Fixed builds a fully-fixed DateTime from ref: the "current" reference
// instant passed to TryResolve.
func Fixed(ref time.Time) *DateTime {
	dt := FromReference(ref)
	for i := range dt.fixed {
		dt.fixed[i] = true
	}
	return dt
}

// Clone returns an independent copy.
func (dt *DateTime) Clone() *DateTime {
	c := *dt
	return &c
}

// Value returns f's current value.
func (dt *DateTime) Value(f Field) int { return dt.values[f] }

// IsFixed reports whether f was set explicitly and must be preserved.
func (dt *DateTime) IsFixed(f Field) bool { return dt.fixed[f] }

// IsFree reports whether f is a placeholder the resolver may modify.
func (dt *DateTime) IsFree(f Field) bool { return !dt.fixed[f] }

// Set assigns v to f and marks it fixed.
func (dt *DateTime) Set(f Field, v int) {
	dt.values[f] = v
	dt.fixed[f] = true
}

// SetWeekdays installs the weekday mask constraint.
func (dt *DateTime) SetWeekdays(w Weekdays) { dt.weekdays = w }

// Weekdays returns the weekday mask constraint.
func (dt *DateTime) Weekdays() Weekdays { return dt.weekdays }

// Location returns the time.Location used by GetTime.
func (dt *DateTime) Location() *time.Location { return dt.loc }

// compare returns -1, 0 or 1 comparing dt to other, lexicographically over
// (Year, Month, Day, Hour, Minute).
func (dt *DateTime) compare(other *DateTime) int {
	for f := Year; f <= Minute; f++ {
		if dt.values[f] < other.values[f] {
			return -1
		}
		if dt.values[f] > other.values[f] {
			return 1
		}
	}
	return 0
}

// After reports whether dt is strictly later than other.
func (dt *DateTime) After(other *DateTime) bool { return dt.compare(other) > 0 }

// GetTime converts a fully resolved DateTime to an absolute instant, using
// the host's local-time calendar (seconds are always 0).
func (dt *DateTime) GetTime() time.Time {
	return time.Date(dt.values[Year], time.Month(dt.values[Month]), dt.values[Day],
		dt.values[Hour], dt.values[Minute], 0, 0, dt.loc)
}

// Weekday returns the resolved date's day of week.
func (dt *DateTime) Weekday() time.Weekday {
	return dt.GetTime().Weekday()
}

func (dt *DateTime) isCompatibleWithWeekdays() bool {
	if dt.weekdays == AllWeekdays {
		return true
	}
	return dt.weekdays.has(FromTimeWeekday(dt.Weekday()))
}

// TryResolve mutates dt so that every originally-fixed field keeps its
// value, all calendar and weekday constraints hold, and the result is
// strictly greater than current. The [from..to] window restricts which
// fields the resolver may advance: escalation never increments a field
// finer than `to` or coarser than `from`, although free fields finer than
// an advanced field are still reset to their minima; in practice the
// typical caller passes the full Year..Minute window.
func (dt *DateTime) TryResolve(current *DateTime, from, to Field) (Result, error) {
	if dt.weekdays == AllWeekdays {
		return dt.resolveWithoutWeekdays(current, from, to)
	}
	return dt.resolveWithWeekdays(current, from, to)
}

func (dt *DateTime) resolveWithWeekdays(current *DateTime, from, to Field) (Result, error) {
	for i := 0; i < WeekdayLookaheadDays; i++ {
		result, err := dt.resolveWithoutWeekdays(current, from, to)
		if err != nil || result != Resolved {
			return result, err
		}
		if dt.isCompatibleWithWeekdays() {
			return Resolved, nil
		}
		if err := dt.advanceOneDay(from); err != nil {
			return Impossible, err
		}
	}
	return Unresolved, nil
}

// advanceOneDay bumps Day by one and carries the overflow through
// Month/Year via broken-down reconstruction (Go's analogue of mktime),
// rather than adding 86400 seconds, so DST folds correctly. It respects
// fixed markers: carrying into a fixed Month or Year is Impossible.
func (dt *DateTime) advanceOneDay(from Field) error {
	// Day always participates in the weekday scan regardless of its fixed
	// flag; a cascading carry into Month/Year still must not silently
	// overwrite a fixed coarser field (carryCalendar rejects that).
	dt.values[Day]++
	return dt.carryCalendar(from)
}

// carryCalendar normalizes values after a raw increment: Day overflow
// carries into Month, Month overflow carries into Year. Carrying into a
// fixed field is Impossible.
func (dt *DateTime) carryCalendar(from Field) error {
	for {
		if dt.values[Month] > 12 {
			if Year < from {
				return fmt.Errorf("datetime: month overflow but year is outside resolver window")
			}
			if dt.IsFixed(Year) {
				return fmt.Errorf("datetime: month overflow requires advancing fixed year")
			}
			dt.values[Month] -= 12
			dt.values[Year]++
			continue
		}

		max := daysIn(dt.values[Month], dt.values[Year])
		if dt.values[Day] <= max {
			return nil
		}
		if Month < from {
			return fmt.Errorf("datetime: day overflow but month is outside resolver window")
		}
		if dt.IsFixed(Month) {
			return fmt.Errorf("datetime: day overflow requires advancing fixed month")
		}
		dt.values[Day] -= max
		dt.values[Month]++
	}
}

type projectionResult int

const (
	projSucceeded projectionResult = iota
	projChanged
	projFailed
	projImpossible
)

// project validates each field left-to-right and adjusts the closest free
// coarser field when a finer field is out of range, per §4.1 step 2a.
func (dt *DateTime) project(from, to Field) (projectionResult, error) {
	if dt.values[Month] < 1 || dt.values[Month] > 12 {
		return dt.escalateOverflow(Year, from, to)
	}

	if dt.IsFixed(Day) {
		absMax := absoluteMaxDaysInMonth[clampMonth(dt.values[Month])]
		if dt.values[Day] > absMax {
			// No year could ever make this (day, month) valid: e.g. Feb 31.
			return projImpossible, fmt.Errorf("datetime: day %d impossible in month %d in any year", dt.values[Day], dt.values[Month])
		}
	}

	max := daysIn(dt.values[Month], dt.values[Year])
	if dt.values[Day] > max || dt.values[Day] < 1 {
		return dt.fixDayOverflow(max, from, to)
	}

	if dt.values[Hour] < 0 || dt.values[Hour] > 23 {
		return dt.escalateOverflow(Day, from, to)
	}
	if dt.values[Minute] < 0 || dt.values[Minute] > 59 {
		return dt.escalateOverflow(Hour, from, to)
	}
	return projSucceeded, nil
}

func clampMonth(m int) int {
	if m < 1 {
		return 1
	}
	if m > 12 {
		return 12
	}
	return m
}

// fixDayOverflow handles a Day value that doesn't fit the current
// Month/Year. A free Day is simply reset to the minimum (it owns no
// meaningful request). A fixed Day requires escalating the closest free
// coarser field (Month, then Year) so a valid Month/Year combination can
// be found; with no free coarser field available, it is Failed.
func (dt *DateTime) fixDayOverflow(max int, from, to Field) (projectionResult, error) {
	if dt.IsFree(Day) {
		dt.values[Day] = fieldMinimum(Day)
		return projChanged, nil
	}
	return dt.escalateOverflow(Month, from, to)
}

// escalateOverflow advances the closest free field at or coarser than
// start by one, resetting finer free fields to their minima, per the
// "closest greater free field" edge policy. If no free field is available
// within [from, to], the projection Failed.
func (dt *DateTime) escalateOverflow(start, from, to Field) (projectionResult, error) {
	if start > to {
		start = to
	}
	for f := start; f >= from; f-- {
		if dt.IsFree(f) {
			dt.values[f]++
			dt.resetFinerFreeToMinima(f)
			return projChanged, nil
		}
	}
	return projFailed, nil
}

func (dt *DateTime) resetFinerFreeToMinima(pivot Field) {
	for f := pivot + 1; f <= Minute; f++ {
		if dt.IsFree(f) {
			dt.values[f] = fieldMinimum(f)
		}
	}
}

// resolveWithoutWeekdays implements §4.1 step 2: repeatedly project onto
// the actual calendar, then compare against current, escalating the
// nearest free field until self is strictly greater or no escalation is
// possible.
func (dt *DateTime) resolveWithoutWeekdays(current *DateTime, from, to Field) (Result, error) {
	for i := 0; i < maxResolveIterations; i++ {
		pr, err := dt.project(from, to)
		switch pr {
		case projImpossible:
			return Impossible, err
		case projFailed:
			return Unresolved, nil
		case projChanged:
			continue
		}

		if dt.After(current) {
			return Resolved, nil
		}

		advanced, err := dt.advancePastCurrent(current, from, to)
		if err != nil {
			return Impossible, err
		}
		if !advanced {
			return Unresolved, nil
		}
	}
	return Unresolved, nil
}

// advancePastCurrent implements §4.1 step 2c: find the most significant
// field where self does not yet exceed current (the first point of
// divergence, or Minute if fields are all equal), then increment the
// closest free field at or coarser than that point. Because every field
// coarser than the chosen one is known equal to current's (by
// construction), incrementing it by one always makes self strictly
// greater there, so finer free fields reset to calendar minima.
func (dt *DateTime) advancePastCurrent(current *DateTime, from, to Field) (bool, error) {
	pivot := Minute
	for f := Year; f <= Minute; f++ {
		if dt.values[f] != current.values[f] {
			pivot = f
			break
		}
	}

	start := pivot
	if start > to {
		start = to
	}
	for f := start; f >= from; f-- {
		if dt.IsFree(f) {
			dt.values[f]++
			dt.resetFinerFreeToMinima(f)
			return true, nil
		}
	}
	return false, nil
}
