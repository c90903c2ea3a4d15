// Package exceptiondays implements the process-wide registry of calendar
// dates flagged as exceptions (holidays). Per §9's design note, this is a
// dependency-injected registry rather than global mutable state: callers
// construct one (or use Default) and hand it to whichever TimeSpec needs
// to consult it.
package exceptiondays

import (
	"sync"
	"time"

	"github.com/strefethen/timer-hub-go/internal/timespec"
)

// entry pairs a DaySpec with metadata about where it came from, so the
// registry can tell a user-configured exception day apart from a seeded
// public holiday when listing or clearing.
type entry struct {
	spec   timespec.DaySpec
	label  string
	source string
}

// Registry holds a set of DaySpec exceptions, guarded by a mutex so
// config reloads and the resolver's reads never race.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// defaultRegistry is the convenience shared instance §9 allows for, kept
// alongside (not instead of) constructor injection.
var defaultRegistry = New()

// Default returns the process-wide convenience registry.
func Default() *Registry { return defaultRegistry }

// AddDay registers day as an exception, labeled for display (e.g. the
// holiday's name); source is "custom" for user-entered days or the
// calendar ISO code for seeded ones.
func (r *Registry) AddDay(day timespec.DaySpec, label, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{spec: day, label: label, source: source})
}

// RemoveDay removes the first exception matching day exactly (same
// literal/wildcard components), if any.
func (r *Registry) RemoveDay(day timespec.DaySpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.spec == day {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Clear removes every exception day matching source, or every exception
// day if source is "".
func (r *Registry) Clear(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if source == "" {
		r.entries = nil
		return
	}
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.source != source {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

// IsException reports whether t's date matches some registered DaySpec.
func (r *Registry) IsException(t time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.spec.Matches(t) {
			return true
		}
	}
	return false
}

// Days returns a snapshot of every registered DaySpec.
func (r *Registry) Days() []timespec.DaySpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	days := make([]timespec.DaySpec, len(r.entries))
	for i, e := range r.entries {
		days[i] = e.spec
	}
	return days
}
