// Package timer implements the rescheduling units (PeriodicTask,
// FixedTimeTask) and the polling manager that dispatches them, built on
// top of the datetime resolver and the timespec/exceptiondays
// collaborators.
package timer

import (
	"fmt"
	"time"

	"github.com/strefethen/timer-hub-go/internal/datetime"
	"github.com/strefethen/timer-hub-go/internal/exceptiondays"
	"github.com/strefethen/timer-hub-go/internal/timespec"
)

// UnresolvableLookaheadDays bounds the day-by-day retry loop used when a
// spec is Unresolved for a given reference day, or when its resolved
// date fails an exception-day policy check. §4.3 calls out 366 as a
// representative implementation-defined bound; §9's open question
// leaves the exact value for real configurations to validate.
// Overridable at startup from config.
var UnresolvableLookaheadDays = 366

const wildcard = -1

// resolveNext finds the next instant after from that satisfies spec,
// including its exception-day policy, by repeatedly invoking
// datetime.TryResolve anchored at successive midnights when a candidate
// is Unresolved or fails the exception check. Returns the resolved
// instant (with spec's offset already applied) and the terminal Result.
func resolveNext(spec timespec.TimeSpec, from time.Time, exceptions *exceptiondays.Registry) (time.Time, datetime.Result, error) {
	cursor := from
	for i := 0; i < UnresolvableLookaheadDays; i++ {
		resolved, result, err := resolveOnce(spec, cursor)
		switch result {
		case datetime.Impossible:
			return time.Time{}, datetime.Impossible, err
		case datetime.Resolved:
			if exceptionPolicySatisfied(spec.ExceptionPolicy(), exceptions, resolved) {
				return resolved, datetime.Resolved, nil
			}
		}
		cursor = nextMidnight(cursor)
	}
	return time.Time{}, datetime.Unresolved, nil
}

// resolveOnce runs a single datetime.TryResolve pass anchored at from,
// without retrying across days. Used directly by resolveNext's loop.
func resolveOnce(spec timespec.TimeSpec, from time.Time) (time.Time, datetime.Result, error) {
	day := spec.GetDay(from)
	tm := spec.GetTime(day.Day, day.Month, day.Year)

	current := datetime.Fixed(from)
	self := datetime.FromReference(from)

	if day.Day != wildcard {
		self.Set(datetime.Day, day.Day)
	}
	if day.Month != wildcard {
		self.Set(datetime.Month, day.Month)
	}
	if day.Year != wildcard {
		self.Set(datetime.Year, day.Year)
	}
	self.SetWeekdays(day.Weekdays)
	if tm.Hour != wildcard {
		self.Set(datetime.Hour, tm.Hour)
	}
	if tm.Minute != wildcard {
		self.Set(datetime.Minute, tm.Minute)
	}

	result, err := self.TryResolve(current, datetime.Year, datetime.Minute)
	if result != datetime.Resolved {
		return time.Time{}, result, err
	}

	resolved := self.GetTime().Add(time.Duration(spec.OffsetSeconds()) * time.Second)
	return resolved, datetime.Resolved, nil
}

func exceptionPolicySatisfied(policy timespec.ExceptionPolicy, exceptions *exceptiondays.Registry, t time.Time) bool {
	if exceptions == nil {
		return true
	}
	switch policy {
	case timespec.Yes:
		return exceptions.IsException(t)
	case timespec.No:
		return !exceptions.IsException(t)
	default:
		return true
	}
}

// nextMidnight returns 00:00 of the day after t, reconstructed via
// time.Date rather than adding 24 hours, so the host's local-time
// conversion folds any DST transition (§4.3 DST handling).
func nextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

func errUnresolvable(name string) error {
	return fmt.Errorf("timer: task %q unresolvable within %d days", name, UnresolvableLookaheadDays)
}
