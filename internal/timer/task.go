package timer

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strefethen/timer-hub-go/internal/datetime"
	"github.com/strefethen/timer-hub-go/internal/exceptiondays"
	"github.com/strefethen/timer-hub-go/internal/timespec"
)

// TaskStatus is the JSON-serializable status every TimerTask exports,
// replacing the original's statusXml (§6, SUPPLEMENTED FEATURES).
type TaskStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	Value        bool   `json:"value"`
	NextExecTime string `json:"next_exec_time,omitempty"`
}

// Task is the common capability the manager drives: compute/expose the
// next firing instant, fire, and reschedule.
type Task interface {
	ID() string
	NextExecTime() time.Time
	OnFire(now time.Time) error
	Reschedule(from time.Time)
	Status() TaskStatus
}

// NewTaskID returns a fresh stable task identifier.
func NewTaskID() string { return uuid.NewString() }

func isoOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// pulseState is PeriodicTask's state machine position, per §4.3.
type pulseState int

const (
	stateIdle pulseState = iota
	stateHolding
	stateWithUntil
)

// PeriodicTask is the recurring rescheduling unit: it fires "on" at its
// `at` TimeSpec, optionally holds `value=true` until `during` elapses or
// `until` next matches, then fires "off" and returns to waiting for the
// next `at`.
type PeriodicTask struct {
	id   string
	name string

	at      timespec.TimeSpec
	until   timespec.TimeSpec // nil if not set
	during  time.Duration
	exceptions *exceptiondays.Registry

	onFire func(value bool) error
	logger *log.Logger

	mu       sync.Mutex
	state    pulseState
	value    bool
	active   bool
	nextExec time.Time
	after    time.Time
}

// NewPeriodicTask builds a PeriodicTask with a freshly generated ID.
// until may be nil. onFire is the opaque domain callback (§1
// out-of-scope side effects); it receives the new value (true = "on",
// false = "off").
func NewPeriodicTask(name string, at, until timespec.TimeSpec, during time.Duration, exceptions *exceptiondays.Registry, onFire func(value bool) error, logger *log.Logger) *PeriodicTask {
	return NewPeriodicTaskWithID(NewTaskID(), name, at, until, during, exceptions, onFire, logger)
}

// NewPeriodicTaskWithID builds a PeriodicTask bound to an existing ID —
// used by timerstore.Reconstruct so a reloaded task keeps the identity
// its persisted definition was created under.
func NewPeriodicTaskWithID(id, name string, at, until timespec.TimeSpec, during time.Duration, exceptions *exceptiondays.Registry, onFire func(value bool) error, logger *log.Logger) *PeriodicTask {
	return &PeriodicTask{
		id:         id,
		name:       name,
		at:         at,
		until:      until,
		during:     during,
		exceptions: exceptions,
		onFire:     onFire,
		logger:     logger,
		active:     true,
	}
}

func (p *PeriodicTask) ID() string { return p.id }

func (p *PeriodicTask) NextExecTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return time.Time{}
	}
	return p.nextExec
}

func (p *PeriodicTask) Status() TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return TaskStatus{
		ID:           p.id,
		Name:         p.name,
		Active:       p.active,
		Value:        p.value,
		NextExecTime: isoOrEmpty(p.nextExec),
	}
}

// Reschedule computes the next `at` occurrence strictly after from and
// installs it as the next firing instant, per §4.3 steps 4-5. Called
// whenever the task is (or is about to become) Idle: at registration,
// and after an "off" firing flips the state machine back to Idle.
func (p *PeriodicTask) Reschedule(from time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rescheduleLocked(from)
}

func (p *PeriodicTask) rescheduleLocked(from time.Time) {
	resolved, result, err := resolveNext(p.at, from, p.exceptions)
	switch result {
	case datetime.Resolved:
		p.nextExec = resolved
		p.active = true
	case datetime.Impossible:
		p.nextExec = time.Time{}
		p.active = false
		p.logger.Printf("ERROR timer task %s (%s): %v", p.id, p.name, err)
	default: // unresolved
		p.nextExec = time.Time{}
		p.active = false
		p.logger.Printf("WARN timer task %s (%s): %v", p.id, p.name, errUnresolvable(p.name))
	}
}

// OnFire implements the state table in §4.3: Idle fires "on" and either
// enters Holding/WithUntil (during>0 or until set) or immediately
// recomputes the next `at`; Holding/WithUntil fires "off" and returns to
// Idle, recomputing the next `at` strictly after the release instant.
func (p *PeriodicTask) OnFire(now time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateIdle:
		err := p.invokeOnFire(true)
		p.value = true

		if p.until != nil {
			p.state = stateWithUntil
			p.installAfter(now)
		} else if p.during > 0 {
			p.state = stateHolding
			p.after = now.Add(p.during)
			p.nextExec = p.after
		} else {
			p.state = stateIdle
			p.rescheduleLocked(now)
		}
		return err

	default: // stateHolding, stateWithUntil
		err := p.invokeOnFire(false)
		p.value = false
		p.state = stateIdle
		from := now
		if p.after.After(from) {
			from = p.after
		}
		p.rescheduleLocked(from)
		return err
	}
}

// installAfter resolves `until`'s next match after now and uses it as
// the release instant, falling back to now+during (or now, if during is
// also unset) if until can't be resolved — a WithUntil task should still
// eventually release rather than hold forever.
func (p *PeriodicTask) installAfter(now time.Time) {
	resolved, result, err := resolveNext(p.until, now, p.exceptions)
	if result == datetime.Resolved {
		p.after = resolved
		p.nextExec = p.after
		return
	}
	p.logger.Printf("WARN timer task %s (%s): until unresolvable (%v), falling back to during", p.id, p.name, err)
	p.after = now.Add(p.during)
	p.nextExec = p.after
}

func (p *PeriodicTask) invokeOnFire(value bool) error {
	if p.onFire == nil {
		return nil
	}
	return p.onFire(value)
}

// OnChange implements variable.ChangeListener: PeriodicTask listens to
// its own VariableTimeSpec so a live variable update triggers an
// immediate reschedule (§9 "Cyclic task ↔ listener").
func (p *PeriodicTask) OnChange(name string) {
	p.Reschedule(time.Now())
}

// FixedTimeTask fires once at an absolute instant (§4.4).
type FixedTimeTask struct {
	id   string
	name string

	mu       sync.Mutex
	execTime time.Time
	onFire   func() error
}

// NewFixedTimeTask builds a single-shot task with a freshly generated ID
// that fires at execTime.
func NewFixedTimeTask(name string, execTime time.Time, onFire func() error) *FixedTimeTask {
	return NewFixedTimeTaskWithID(NewTaskID(), name, execTime, onFire)
}

// NewFixedTimeTaskWithID builds a single-shot task bound to an existing
// ID — used by timerstore.Reconstruct so a reloaded task keeps the
// identity its persisted definition was created under.
func NewFixedTimeTaskWithID(id, name string, execTime time.Time, onFire func() error) *FixedTimeTask {
	return &FixedTimeTask{id: id, name: name, execTime: execTime, onFire: onFire}
}

func (f *FixedTimeTask) ID() string { return f.id }

func (f *FixedTimeTask) NextExecTime() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.execTime
}

func (f *FixedTimeTask) Status() TaskStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return TaskStatus{ID: f.id, Name: f.name, Active: !f.execTime.IsZero(), NextExecTime: isoOrEmpty(f.execTime)}
}

// Reschedule marks the task inactive once its instant is behind from;
// a fixed-time task never computes a new instant for itself.
func (f *FixedTimeTask) Reschedule(from time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.execTime.After(from) {
		f.execTime = time.Time{}
	}
}

// OnFire invokes the callback once, then deactivates the task.
func (f *FixedTimeTask) OnFire(now time.Time) error {
	f.mu.Lock()
	cb := f.onFire
	f.execTime = time.Time{}
	f.mu.Unlock()
	if cb == nil {
		return nil
	}
	return cb()
}
