package timer

import (
	"log"
	"sort"
	"sync"
	"time"
)

// Default sleep-class bounds (§4.5 step 3). Configurable via Manager's
// constructor so an operator can tighten/loosen responsiveness without a
// rebuild; these are the values SPEC_FULL.md's config layer defaults to.
const (
	DefaultShortSleep = 10 * time.Second
	DefaultLongSleep  = 60 * time.Second
)

// Manager owns a list of Task and a single dedicated worker goroutine
// that dispatches due tasks and sleeps until the next one is due, per
// §4.5. It owns nothing about task lifetime: tasks are registered by
// reference and deregistered by the caller.
type Manager struct {
	logger *log.Logger

	shortSleep time.Duration
	longSleep  time.Duration

	mu      sync.Mutex
	tasks   map[string]Task
	order   []string // insertion order, for stable same-instant firing (§5 Ordering)
	running bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	onStatusChange func(TaskStatus)
}

// SetStatusListener installs a callback invoked with a task's fresh
// TaskStatus immediately after it fires and reschedules. Used by
// internal/timerapi to push live updates to connected dashboards; nil
// disables notification. Not called for tasks that never fire.
func (m *Manager) SetStatusListener(fn func(TaskStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatusChange = fn
}

// NewManager builds a Manager. shortSleep/longSleep of 0 fall back to the
// package defaults.
func NewManager(logger *log.Logger, shortSleep, longSleep time.Duration) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if shortSleep <= 0 {
		shortSleep = DefaultShortSleep
	}
	if longSleep <= 0 {
		longSleep = DefaultLongSleep
	}
	return &Manager{
		logger:     logger,
		shortSleep: shortSleep,
		longSleep:  longSleep,
		tasks:      make(map[string]Task),
		wake:       make(chan struct{}, 1),
	}
}

// AddTask registers a task. Double-insertion (same ID) is a no-op, per
// §4.5. Wakes the loop so the new task's horizon is considered
// immediately rather than after the current sleep elapses.
func (m *Manager) AddTask(t Task) {
	m.mu.Lock()
	if _, exists := m.tasks[t.ID()]; exists {
		m.mu.Unlock()
		return
	}
	m.tasks[t.ID()] = t
	m.order = append(m.order, t.ID())
	m.mu.Unlock()
	m.wakeLoop()
}

// RemoveTask deregisters a task by ID. Removing an absent task is
// silent. Safe to call re-entrantly from within a task's OnFire: if the
// currently firing task removes itself (or another), the removal is
// applied to the map immediately but the in-flight dispatch pass still
// finishes iterating its own pre-dispatch snapshot (§5 Shared state).
func (m *Manager) RemoveTask(id string) {
	m.mu.Lock()
	if _, exists := m.tasks[id]; !exists {
		m.mu.Unlock()
		return
	}
	delete(m.tasks, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	m.wakeLoop()
}

// GetTask returns the live task registered under id, if any. Used by
// internal/timerapi to release variable-subsystem subscriptions when a
// task is removed.
func (m *Manager) GetTask(id string) (Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Tasks returns the TaskStatus of every registered task, in insertion
// order.
func (m *Manager) Tasks() []TaskStatus {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	tasks := make(map[string]Task, len(m.tasks))
	for id, t := range m.tasks {
		tasks[id] = t
	}
	m.mu.Unlock()

	statuses := make([]TaskStatus, 0, len(ids))
	for _, id := range ids {
		if t, ok := tasks[id]; ok {
			statuses = append(statuses, t.Status())
		}
	}
	return statuses
}

// Start begins the dispatch loop in a goroutine. Calling Start on an
// already-running Manager is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runLoop()
	}()
}

// Stop signals the worker and waits for the current dispatch pass (and
// any in-flight OnFire) to finish. next_exec values are left untouched
// so a later Start resumes from them (§5 Cancellation).
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh := m.stopCh
	m.mu.Unlock()

	close(stopCh)
	m.wg.Wait()
}

func (m *Manager) wakeLoop() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// runLoop is the single dedicated worker thread (§5 Scheduling model).
// All OnFire callbacks execute here, serialized.
func (m *Manager) runLoop() {
	m.mu.Lock()
	stopCh := m.stopCh
	m.mu.Unlock()

	for {
		fired, sleepFor := m.dispatchPass()

		if fired {
			// Immediate: loop again right away without sleeping.
			select {
			case <-stopCh:
				return
			default:
				continue
			}
		}

		timer := time.NewTimer(sleepFor)
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-m.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// dispatchPass runs one iteration of §4.5 steps 1-3: fire every due
// task once, compute the minimum future next_exec across the rest, and
// return the sleep duration for the next wait. fired reports whether
// any task fired this pass, in which case the caller should not sleep
// (Immediate class).
func (m *Manager) dispatchPass() (fired bool, sleepFor time.Duration) {
	now := time.Now()

	m.mu.Lock()
	snapshot := make([]Task, 0, len(m.order))
	for _, id := range m.order {
		if t, ok := m.tasks[id]; ok {
			snapshot = append(snapshot, t)
		}
	}
	listener := m.onStatusChange
	m.mu.Unlock()

	var earliest time.Time
	for _, t := range snapshot {
		next := t.NextExecTime()
		if next.IsZero() {
			continue
		}
		if !next.After(now) {
			fired = true
			if err := t.OnFire(now); err != nil {
				m.logger.Printf("ERROR timer task %s callback: %v", t.ID(), err)
			}
			if listener != nil {
				listener(t.Status())
			}
			continue
		}
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}

	if fired {
		return true, 0
	}
	if earliest.IsZero() {
		return false, m.longSleep
	}

	until := earliest.Sub(now)
	if until <= m.shortSleep {
		return false, clampSleep(until, m.shortSleep)
	}
	return false, clampSleep(until, m.longSleep)
}

func clampSleep(d, cap time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if d > cap {
		return cap
	}
	return d
}

// sortedIDs is a helper retained for deterministic test assertions over
// Manager.Tasks(); production code relies on insertion order.
func sortedIDs(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
