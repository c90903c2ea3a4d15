package timerstore

import (
	"fmt"
	"log"
	"time"

	"github.com/strefethen/timer-hub-go/internal/datetime"
	"github.com/strefethen/timer-hub-go/internal/exceptiondays"
	"github.com/strefethen/timer-hub-go/internal/timer"
	"github.com/strefethen/timer-hub-go/internal/timespec"
	"github.com/strefethen/timer-hub-go/internal/variable"
)

// PeriodicCallback is the domain side effect invoked when a periodic
// task flips on/off. Callers key their dispatch off taskID.
type PeriodicCallback func(taskID string, value bool) error

// FixedCallback is the domain side effect invoked when a fixed-time task
// fires.
type FixedCallback func(taskID string) error

// Reconstruct builds a live timer.Task from a persisted Definition.
// Next_exec is never read from storage (§1 Non-goals); Reschedule is
// always called against the current wall clock, just as if the task
// were being registered for the first time.
func Reconstruct(
	def Definition,
	reader timespec.VariableReader,
	exceptions *exceptiondays.Registry,
	periodicCB PeriodicCallback,
	fixedCB FixedCallback,
	logger *log.Logger,
) (timer.Task, error) {
	switch def.Kind {
	case KindFixed:
		return reconstructFixed(def, fixedCB), nil
	case KindPeriodic:
		return reconstructPeriodic(def, reader, exceptions, periodicCB, logger)
	default:
		return nil, fmt.Errorf("timerstore: unknown task kind %q for %s", def.Kind, def.TaskID)
	}
}

func reconstructFixed(def Definition, cb FixedCallback) *timer.FixedTimeTask {
	taskID := def.TaskID
	onFire := func() error {
		if cb == nil {
			return nil
		}
		return cb(taskID)
	}
	task := timer.NewFixedTimeTaskWithID(def.TaskID, def.Name, def.FixedExecTime, onFire)
	task.Reschedule(time.Now())
	return task
}

func reconstructPeriodic(
	def Definition,
	reader timespec.VariableReader,
	exceptions *exceptiondays.Registry,
	cb PeriodicCallback,
	logger *log.Logger,
) (*timer.PeriodicTask, error) {
	at := buildTimeSpec(def.At, reader)
	if err := at.CheckIsValid(); err != nil {
		return nil, fmt.Errorf("timerstore: task %s: invalid 'at' spec: %w", def.TaskID, err)
	}

	var until timespec.TimeSpec
	if def.Until != nil {
		u := buildTimeSpec(*def.Until, reader)
		if err := u.CheckIsValid(); err != nil {
			return nil, fmt.Errorf("timerstore: task %s: invalid 'until' spec: %w", def.TaskID, err)
		}
		until = u
	}

	taskID := def.TaskID
	onFire := func(value bool) error {
		if cb == nil {
			return nil
		}
		return cb(taskID, value)
	}

	during := time.Duration(def.DuringSeconds) * time.Second
	task := timer.NewPeriodicTaskWithID(def.TaskID, def.Name, at, until, during, exceptions, onFire, logger)
	task.Reschedule(time.Now())
	subscribeVariables(def, reader, task)
	return task, nil
}

// variableSubscriber is the subset of variable.Registry Reconstruct
// needs; reader is typed as the narrower timespec.VariableReader so
// non-live callers (tests, a future read-only source) aren't forced to
// implement subscribe/notify.
type variableSubscriber interface {
	Subscribe(name string, listener variable.ChangeListener)
	Unsubscribe(name string, listener variable.ChangeListener)
}

func variableNames(def Definition) []string {
	var names []string
	if def.At.VariableTime != "" {
		names = append(names, def.At.VariableTime)
	}
	if def.At.VariableDate != "" {
		names = append(names, def.At.VariableDate)
	}
	if def.Until != nil {
		if def.Until.VariableTime != "" {
			names = append(names, def.Until.VariableTime)
		}
		if def.Until.VariableDate != "" {
			names = append(names, def.Until.VariableDate)
		}
	}
	return names
}

// subscribeVariables registers task as a ChangeListener on every live
// variable name def's TimeSpec(s) reference, per §9's "Cyclic task ↔
// listener" note: the variable subsystem holds the relation, not the
// task's owner.
func subscribeVariables(def Definition, reader timespec.VariableReader, task variable.ChangeListener) {
	sub, ok := reader.(variableSubscriber)
	if !ok {
		return
	}
	for _, name := range variableNames(def) {
		sub.Subscribe(name, task)
	}
}

// Unsubscribe releases any variable-subsystem subscriptions a
// reconstructed task was registered under. Safe to call on a task that
// never subscribed to anything: fixed tasks do not implement
// variable.ChangeListener, and a literal-only periodic task references no
// variable names, so there is nothing to unsubscribe.
func Unsubscribe(def Definition, reader timespec.VariableReader, task timer.Task) {
	listener, ok := task.(variable.ChangeListener)
	if !ok {
		return
	}
	sub, ok := reader.(variableSubscriber)
	if !ok {
		return
	}
	for _, name := range variableNames(def) {
		sub.Unsubscribe(name, listener)
	}
}

// buildTimeSpec returns a FixedTimeSpec unless the definition names a
// live variable, in which case a VariableTimeSpec bound to reader is
// built instead with the literal fields kept as fallback values.
func buildTimeSpec(d TimeSpecDef, reader timespec.VariableReader) timespec.TimeSpec {
	if d.VariableTime == "" && d.VariableDate == "" {
		return timespec.NewFixedTimeSpec(
			d.Minute, d.Hour, d.DayOfMonth, d.Month, d.Year,
			datetime.Weekdays(d.Weekdays), timespec.ParseExceptionPolicy(d.Exception), d.OffsetSeconds,
		)
	}

	spec := timespec.NewVariableTimeSpec(reader)
	spec.TimeVar = d.VariableTime
	spec.DateVar = d.VariableDate
	spec.Minute = d.Minute
	spec.Hour = d.Hour
	spec.DayOfMonth = d.DayOfMonth
	spec.Month = d.Month
	spec.Year = d.Year
	spec.WeekdayMask = datetime.Weekdays(d.Weekdays)
	spec.Exception = timespec.ParseExceptionPolicy(d.Exception)
	spec.Offset = d.OffsetSeconds
	return spec
}

// ReconstructAll loads every enabled definition and reconstructs it,
// logging (but not failing the whole load for) any definition that
// can't be rebuilt — a single bad row shouldn't take down the rest of
// the schedule at startup.
func ReconstructAll(
	repo *Repository,
	reader timespec.VariableReader,
	exceptions *exceptiondays.Registry,
	periodicCB PeriodicCallback,
	fixedCB FixedCallback,
	logger *log.Logger,
) ([]timer.Task, error) {
	defs, err := repo.List()
	if err != nil {
		return nil, err
	}

	tasks := make([]timer.Task, 0, len(defs))
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		task, err := Reconstruct(def, reader, exceptions, periodicCB, fixedCB, logger)
		if err != nil {
			logger.Printf("ERROR timerstore: skipping task %s (%s): %v", def.TaskID, def.Name, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
