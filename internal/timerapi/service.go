package timerapi

import (
	"fmt"
	"log"

	"github.com/strefethen/timer-hub-go/internal/exceptiondays"
	"github.com/strefethen/timer-hub-go/internal/timer"
	"github.com/strefethen/timer-hub-go/internal/timerstore"
	"github.com/strefethen/timer-hub-go/internal/timespec"
)

// Service is the composition root for the HTTP/WebSocket surface:
// it owns the running timer.Manager, the persisted task definitions,
// and the onFire dispatch that bridges the two (§1 out-of-scope domain
// side effects are represented here only as an audit-log record).
type Service struct {
	manager    *timer.Manager
	store      *timerstore.Repository
	exceptions *exceptiondays.Registry
	reader     timespec.VariableReader
	hub        *Hub
	logger     *log.Logger

	onFired func(taskID string, value *bool)
}

// NewService wires manager, store, exceptions and reader together.
// onFired, if non-nil, is invoked every time a task fires (value is nil
// for a FixedTimeTask, non-nil true/false for a PeriodicTask) — server.go
// uses this to record an audit event.
func NewService(
	manager *timer.Manager,
	store *timerstore.Repository,
	exceptions *exceptiondays.Registry,
	reader timespec.VariableReader,
	hub *Hub,
	logger *log.Logger,
	onFired func(taskID string, value *bool),
) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		manager:    manager,
		store:      store,
		exceptions: exceptions,
		reader:     reader,
		hub:        hub,
		logger:     logger,
		onFired:    onFired,
	}
}

// LoadAll reconstructs every enabled persisted definition and registers
// it with the manager. Called once at startup.
func (s *Service) LoadAll() error {
	tasks, err := timerstore.ReconstructAll(
		s.store, s.reader, s.exceptions,
		s.periodicCallback, s.fixedCallback, s.logger,
	)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		s.manager.AddTask(t)
	}
	return nil
}

func (s *Service) periodicCallback(taskID string, value bool) error {
	if s.onFired != nil {
		v := value
		s.onFired(taskID, &v)
	}
	return nil
}

func (s *Service) fixedCallback(taskID string) error {
	if s.onFired != nil {
		s.onFired(taskID, nil)
	}
	return nil
}

// Statuses returns every registered task's current TaskStatus.
func (s *Service) Statuses() []timer.TaskStatus {
	return s.manager.Tasks()
}

// Status returns a single task's TaskStatus, or ok=false if unknown.
func (s *Service) Status(taskID string) (timer.TaskStatus, bool) {
	for _, st := range s.manager.Tasks() {
		if st.ID == taskID {
			return st, true
		}
	}
	return timer.TaskStatus{}, false
}

// CreateTask persists def, reconstructs it into a live Task, and
// registers it with the manager.
func (s *Service) CreateTask(def timerstore.Definition) (timerstore.Definition, error) {
	saved, err := s.store.Insert(def)
	if err != nil {
		return timerstore.Definition{}, err
	}

	task, err := timerstore.Reconstruct(saved, s.reader, s.exceptions, s.periodicCallback, s.fixedCallback, s.logger)
	if err != nil {
		// Roll back the definition: it can never be reconstructed as-is.
		_ = s.store.Delete(saved.TaskID)
		return timerstore.Definition{}, fmt.Errorf("timerapi: %w", err)
	}

	s.manager.AddTask(task)
	return saved, nil
}

// DeleteTask removes a task from the manager and its persisted
// definition. Absent IDs are silent, matching Manager.RemoveTask.
func (s *Service) DeleteTask(taskID string) error {
	s.releaseVariableSubscriptions(taskID)
	s.manager.RemoveTask(taskID)
	return s.store.Delete(taskID)
}

// SetEnabled flips a definition's enabled flag and adds/removes the
// live task accordingly.
func (s *Service) SetEnabled(taskID string, enabled bool) error {
	if err := s.store.SetEnabled(taskID, enabled); err != nil {
		return err
	}

	if !enabled {
		s.releaseVariableSubscriptions(taskID)
		s.manager.RemoveTask(taskID)
		return nil
	}

	def, err := s.store.Get(taskID)
	if err != nil {
		return err
	}
	task, err := timerstore.Reconstruct(def, s.reader, s.exceptions, s.periodicCallback, s.fixedCallback, s.logger)
	if err != nil {
		return fmt.Errorf("timerapi: %w", err)
	}
	s.manager.AddTask(task)
	return nil
}

// releaseVariableSubscriptions unsubscribes the live task for taskID
// from any live variables its TimeSpec(s) reference, so a removed task
// doesn't linger as a stale listener. A lookup miss on either the live
// task or the stored definition is not an error: the task may never
// have been registered, or may have no variable-sourced fields at all.
func (s *Service) releaseVariableSubscriptions(taskID string) {
	task, ok := s.manager.GetTask(taskID)
	if !ok {
		return
	}
	def, err := s.store.Get(taskID)
	if err != nil {
		return
	}
	timerstore.Unsubscribe(def, s.reader, task)
}

// BroadcastLoop installs the manager's status listener so every firing
// is pushed to connected dashboard clients. Call once at startup.
func (s *Service) BroadcastLoop() {
	if s.hub == nil {
		return
	}
	s.manager.SetStatusListener(func(status timer.TaskStatus) {
		s.hub.Broadcast(status)
	})
}
