package exceptiondays

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strefethen/timer-hub-go/internal/timespec"
)

func TestRegistry_IsExceptionMatchesWildcards(t *testing.T) {
	r := New()
	r.AddDay(timespec.DaySpec{Day: 25, Month: 12, Year: -1}, "Christmas", "custom")

	require.True(t, r.IsException(time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)))
	require.True(t, r.IsException(time.Date(2030, time.December, 25, 0, 0, 0, 0, time.UTC)))
	require.False(t, r.IsException(time.Date(2024, time.December, 26, 0, 0, 0, 0, time.UTC)))
}

func TestRegistry_RemoveDay(t *testing.T) {
	r := New()
	day := timespec.DaySpec{Day: 1, Month: 1, Year: 2026}
	r.AddDay(day, "New Year", "custom")
	require.True(t, r.IsException(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))

	r.RemoveDay(day)
	require.False(t, r.IsException(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestRegistry_ClearBySource(t *testing.T) {
	r := New()
	r.AddDay(timespec.DaySpec{Day: 25, Month: 12, Year: -1}, "Christmas", "custom")
	r.AddDay(timespec.DaySpec{Day: 4, Month: 7, Year: -1}, "Independence Day", "us")

	r.Clear("us")

	require.True(t, r.IsException(time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC)))
	require.False(t, r.IsException(time.Date(2024, time.July, 4, 0, 0, 0, 0, time.UTC)))
}

func TestDefault_IsSharedSingleton(t *testing.T) {
	require.Same(t, Default(), Default())
}
