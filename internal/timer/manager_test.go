package timer

import (
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTask struct {
	id       string
	next     atomic.Value // time.Time
	fireFunc func(now time.Time) error
	fires    int32
}

func newStubTask(id string, next time.Time) *stubTask {
	s := &stubTask{id: id}
	s.next.Store(next)
	return s
}

func (s *stubTask) ID() string { return s.id }

func (s *stubTask) NextExecTime() time.Time {
	v := s.next.Load()
	if v == nil {
		return time.Time{}
	}
	return v.(time.Time)
}

func (s *stubTask) setNext(t time.Time) { s.next.Store(t) }

func (s *stubTask) OnFire(now time.Time) error {
	atomic.AddInt32(&s.fires, 1)
	if s.fireFunc != nil {
		return s.fireFunc(now)
	}
	s.setNext(time.Time{})
	return nil
}

func (s *stubTask) Reschedule(from time.Time) {}

func (s *stubTask) Status() TaskStatus {
	return TaskStatus{ID: s.id, NextExecTime: isoOrEmpty(s.NextExecTime())}
}

func testLogger() *log.Logger {
	return log.New(testWriter{}, "", 0)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestManager_AddTask_DoubleInsertionNoOp(t *testing.T) {
	m := NewManager(testLogger(), time.Second, time.Second)
	task := newStubTask("t1", time.Now().Add(time.Hour))
	m.AddTask(task)
	m.AddTask(task)

	require.Len(t, m.Tasks(), 1)
}

func TestManager_RemoveTask_AbsentIsSilent(t *testing.T) {
	m := NewManager(testLogger(), time.Second, time.Second)
	require.NotPanics(t, func() { m.RemoveTask("nonexistent") })
}

func TestManager_FiresDueTask(t *testing.T) {
	m := NewManager(testLogger(), 50*time.Millisecond, 100*time.Millisecond)
	fired := make(chan struct{}, 1)
	task := newStubTask("t1", time.Now().Add(-time.Second))
	task.fireFunc = func(now time.Time) error {
		task.setNext(time.Time{})
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}
	m.AddTask(task)
	m.Start()
	defer m.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task never fired")
	}

	require.EqualValues(t, 1, atomic.LoadInt32(&task.fires))
}

func TestManager_MissedFiringsFireOnce(t *testing.T) {
	m := NewManager(testLogger(), 50*time.Millisecond, 100*time.Millisecond)
	task := newStubTask("t1", time.Now().Add(-time.Hour)) // long overdue
	m.AddTask(task)

	fired, sleepFor := m.dispatchPass()
	require.True(t, fired)
	require.Equal(t, time.Duration(0), sleepFor)
	require.EqualValues(t, 1, atomic.LoadInt32(&task.fires))

	// Next pass should not refire since next is now zero.
	fired, _ = m.dispatchPass()
	require.False(t, fired)
	require.EqualValues(t, 1, atomic.LoadInt32(&task.fires))
}

func TestManager_SleepClassImmediate(t *testing.T) {
	m := NewManager(testLogger(), 10*time.Second, 60*time.Second)
	task := newStubTask("t1", time.Now().Add(-time.Second))
	m.AddTask(task)

	fired, sleepFor := m.dispatchPass()
	require.True(t, fired)
	require.Zero(t, sleepFor)
}

func TestManager_SleepClassShort(t *testing.T) {
	m := NewManager(testLogger(), 10*time.Second, 60*time.Second)
	task := newStubTask("t1", time.Now().Add(3*time.Second))
	m.AddTask(task)

	fired, sleepFor := m.dispatchPass()
	require.False(t, fired)
	require.LessOrEqual(t, sleepFor, 10*time.Second)
	require.Greater(t, sleepFor, time.Duration(0))
}

func TestManager_SleepClassLong(t *testing.T) {
	m := NewManager(testLogger(), 10*time.Second, 60*time.Second)
	task := newStubTask("t1", time.Now().Add(10*time.Minute))
	m.AddTask(task)

	fired, sleepFor := m.dispatchPass()
	require.False(t, fired)
	require.Equal(t, 60*time.Second, sleepFor)
}

func TestManager_NoTasksSleepsLong(t *testing.T) {
	m := NewManager(testLogger(), 10*time.Second, 60*time.Second)
	fired, sleepFor := m.dispatchPass()
	require.False(t, fired)
	require.Equal(t, 60*time.Second, sleepFor)
}

func TestManager_StartStop_PreservesNextExec(t *testing.T) {
	m := NewManager(testLogger(), 50*time.Millisecond, 100*time.Millisecond)
	next := time.Now().Add(time.Hour)
	task := newStubTask("t1", next)
	m.AddTask(task)

	m.Start()
	time.Sleep(20 * time.Millisecond)
	m.Stop()

	require.Equal(t, next, task.NextExecTime())
}

func TestManager_ReentrantRemovalDuringOnFire(t *testing.T) {
	m := NewManager(testLogger(), 50*time.Millisecond, 100*time.Millisecond)

	var other *stubTask
	self := newStubTask("self", time.Now().Add(-time.Second))
	other = newStubTask("other", time.Now().Add(time.Hour))

	self.fireFunc = func(now time.Time) error {
		m.RemoveTask("other")
		m.RemoveTask("self")
		self.setNext(time.Time{})
		return nil
	}

	m.AddTask(self)
	m.AddTask(other)

	fired, _ := m.dispatchPass()
	require.True(t, fired)

	require.Len(t, m.Tasks(), 0)
}

func TestManager_OrderedIDsHelper(t *testing.T) {
	ids := []string{"b", "a", "c"}
	require.Equal(t, []string{"a", "b", "c"}, sortedIDs(ids))
}
