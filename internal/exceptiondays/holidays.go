package exceptiondays

import (
	"fmt"
	"time"

	"github.com/rickar/cal/v2"
	calus "github.com/rickar/cal/v2/us"

	"github.com/strefethen/timer-hub-go/internal/timespec"
)

// SeedStandardHolidays populates r with the actual-observance dates of a
// standard public-holiday calendar for the given ISO code across years,
// tagging each entry's source as the ISO code so a later Clear(iso) only
// removes seeded entries, never user-configured ones. Grounded on
// jpfluger-alibs-slim's rruleplus.ICalendar registry pattern, adapted to
// populate this package's own Registry instead of returning a calendar.
func SeedStandardHolidays(r *Registry, iso string, years []int) error {
	bc, err := calendarFor(iso)
	if err != nil {
		return err
	}

	for _, year := range years {
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			actual, _, h := bc.IsHoliday(d)
			if !actual {
				continue
			}
			name := iso
			if h != nil {
				name = h.Name
			}
			r.AddDay(timespec.DaySpec{Day: d.Day(), Month: int(d.Month()), Year: d.Year()}, name, iso)
		}
	}
	return nil
}

func calendarFor(iso string) (*cal.BusinessCalendar, error) {
	switch iso {
	case "us":
		bc := cal.NewBusinessCalendar()
		bc.AddHoliday(calus.Holidays...)
		return bc, nil
	default:
		return nil, fmt.Errorf("exceptiondays: unsupported holiday calendar %q", iso)
	}
}
