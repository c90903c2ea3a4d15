package audit

import (
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/timer-hub-go/internal/db"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	dbPair, err := db.Init(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { dbPair.Close() })

	return NewRepository(dbPair)
}

func TestRepository_InsertEvent(t *testing.T) {
	repo := setupTestDB(t)

	requestID := "req-123"
	taskID := "task-456"
	input := WriteEventInput{
		Type:      string(EventTaskRegistered),
		RequestID: &requestID,
		TaskID:    &taskID,
		Message:   "Task registered",
		Payload: map[string]any{
			"kind": "periodic",
		},
	}

	event, err := repo.InsertEvent(input)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.NotEmpty(t, event.EventID)
	require.Equal(t, string(EventTaskRegistered), event.Type)
	require.Equal(t, EventLevelInfo, event.Level) // default level
	require.NotNil(t, event.RequestID)
	require.Equal(t, "req-123", *event.RequestID)
	require.NotNil(t, event.TaskID)
	require.Equal(t, "task-456", *event.TaskID)
	require.Equal(t, "Task registered", event.Message)
	require.Equal(t, "periodic", event.Payload["kind"])
	require.False(t, event.Timestamp.IsZero())
}

func TestRepository_InsertEvent_WithLevel(t *testing.T) {
	repo := setupTestDB(t)

	level := EventLevelError
	input := WriteEventInput{
		Type:    string(EventTaskCallbackFail),
		Level:   &level,
		Message: "on_fire callback failed",
	}

	event, err := repo.InsertEvent(input)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, EventLevelError, event.Level)
}

func TestRepository_InsertEvent_NilPayload(t *testing.T) {
	repo := setupTestDB(t)

	input := WriteEventInput{
		Type:    string(EventSystemStartup),
		Message: "No payload",
	}

	event, err := repo.InsertEvent(input)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.NotNil(t, event.Payload)
	require.Empty(t, event.Payload)
}

func TestRepository_GetEvent(t *testing.T) {
	repo := setupTestDB(t)

	input := WriteEventInput{
		Type:    string(EventSystemStartup),
		Message: "Test message",
	}

	created, err := repo.InsertEvent(input)
	require.NoError(t, err)

	fetched, err := repo.GetEvent(created.EventID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, created.EventID, fetched.EventID)
	require.Equal(t, string(EventSystemStartup), fetched.Type)
	require.Equal(t, "Test message", fetched.Message)
}

func TestRepository_GetEvent_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	event, err := repo.GetEvent("nonexistent-id")
	require.NoError(t, err)
	require.Nil(t, event)
}

func TestRepository_QueryEvents_NoFilters(t *testing.T) {
	repo := setupTestDB(t)

	for i := 0; i < 5; i++ {
		_, err := repo.InsertEvent(WriteEventInput{
			Type:    string(EventSystemStartup),
			Message: "Event message",
		})
		require.NoError(t, err)
	}

	events, total, err := repo.QueryEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Len(t, events, 5)
	require.Equal(t, 5, total)
}

func TestRepository_QueryEvents_WithTypeFilter(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.InsertEvent(WriteEventInput{Type: string(EventTaskRegistered), Message: "A1"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventTaskRegistered), Message: "A2"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventTaskRemoved), Message: "B1"})
	require.NoError(t, err)

	typeFilter := string(EventTaskRegistered)
	events, total, err := repo.QueryEvents(EventQueryFilters{Type: &typeFilter})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 2, total)
	for _, e := range events {
		require.Equal(t, string(EventTaskRegistered), e.Type)
	}
}

func TestRepository_QueryEvents_WithLevelFilter(t *testing.T) {
	repo := setupTestDB(t)

	infoLevel := EventLevelInfo
	errorLevel := EventLevelError

	_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Level: &infoLevel, Message: "Info 1"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventSystemError), Level: &errorLevel, Message: "Error 1"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventSystemError), Level: &errorLevel, Message: "Error 2"})
	require.NoError(t, err)

	events, total, err := repo.QueryEvents(EventQueryFilters{Level: &errorLevel})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 2, total)
	for _, e := range events {
		require.Equal(t, EventLevelError, e.Level)
	}
}

func TestRepository_QueryEvents_WithCorrelationFilters(t *testing.T) {
	repo := setupTestDB(t)

	taskID := "task-123"
	otherTask := "task-999"

	_, err := repo.InsertEvent(WriteEventInput{Type: string(EventTaskFired), TaskID: &taskID, Message: "M1"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventTaskFired), TaskID: &taskID, Message: "M2"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventTaskFired), TaskID: &otherTask, Message: "M3"})
	require.NoError(t, err)

	events, total, err := repo.QueryEvents(EventQueryFilters{TaskID: &taskID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 2, total)
}

func TestRepository_QueryEvents_WithDateFilters(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "M1"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "M2"})
	require.NoError(t, err)

	startDate := time.Now().UTC().Add(-1 * time.Hour).Format(time.RFC3339)
	endDate := time.Now().UTC().Add(1 * time.Hour).Format(time.RFC3339)

	events, total, err := repo.QueryEvents(EventQueryFilters{StartDate: &startDate, EndDate: &endDate})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 2, total)

	oldStartDate := "2020-01-01T00:00:00Z"
	oldEndDate := "2020-01-02T00:00:00Z"
	events, total, err = repo.QueryEvents(EventQueryFilters{StartDate: &oldStartDate, EndDate: &oldEndDate})
	require.NoError(t, err)
	require.Len(t, events, 0)
	require.Equal(t, 0, total)
}

func TestRepository_QueryEvents_WithPagination(t *testing.T) {
	repo := setupTestDB(t)

	for i := 0; i < 10; i++ {
		_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "M"})
		require.NoError(t, err)
	}

	events, total, err := repo.QueryEvents(EventQueryFilters{Limit: 3, Offset: 0})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, 10, total)

	events, total, err = repo.QueryEvents(EventQueryFilters{Limit: 3, Offset: 3})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, 10, total)

	events, total, err = repo.QueryEvents(EventQueryFilters{Limit: 3, Offset: 9})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 10, total)
}

func TestRepository_QueryEvents_OrderedByTimestampDesc(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "First"})
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "Second"})
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "Third"})
	require.NoError(t, err)

	events, _, err := repo.QueryEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.Equal(t, "Third", events[0].Message)
	require.Equal(t, "Second", events[1].Message)
	require.Equal(t, "First", events[2].Message)
}

func TestRepository_CountEvents_NoFilters(t *testing.T) {
	repo := setupTestDB(t)

	for i := 0; i < 7; i++ {
		_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "M"})
		require.NoError(t, err)
	}

	count, err := repo.CountEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 7, count)
}

func TestRepository_CountEvents_WithFilters(t *testing.T) {
	repo := setupTestDB(t)

	typeA := string(EventTaskRegistered)
	typeB := string(EventTaskRemoved)
	errorLevel := EventLevelError

	_, err := repo.InsertEvent(WriteEventInput{Type: typeA, Message: "M1"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: typeA, Level: &errorLevel, Message: "M2"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: typeB, Message: "M3"})
	require.NoError(t, err)

	count, err := repo.CountEvents(EventQueryFilters{Type: &typeA})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = repo.CountEvents(EventQueryFilters{Type: &typeA, Level: &errorLevel})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRepository_PruneOldEvents(t *testing.T) {
	repo := setupTestDB(t)

	for i := 0; i < 5; i++ {
		_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "M"})
		require.NoError(t, err)
	}

	count, err := repo.CountEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 5, count)

	time.Sleep(100 * time.Millisecond)

	deleted, err := repo.PruneOldEvents(-1)
	require.NoError(t, err)
	require.Equal(t, int64(5), deleted)

	count, err = repo.CountEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRepository_PruneOldEvents_RetentionDays(t *testing.T) {
	repo := setupTestDB(t)

	for i := 0; i < 3; i++ {
		_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "M"})
		require.NoError(t, err)
	}

	deleted, err := repo.PruneOldEvents(30)
	require.NoError(t, err)
	require.Equal(t, int64(0), deleted)

	count, err := repo.CountEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestRepository_Prune(t *testing.T) {
	repo := setupTestDB(t)

	for i := 0; i < 5; i++ {
		_, err := repo.InsertEvent(WriteEventInput{Type: string(EventSystemStartup), Message: "M"})
		require.NoError(t, err)
	}

	count, err := repo.CountEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 5, count)

	cutoff := time.Now().UTC().Add(1 * time.Hour)
	deleted, err := repo.Prune(cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(5), deleted)

	count, err = repo.CountEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRepository_InsertEvent_AllCorrelationFields(t *testing.T) {
	repo := setupTestDB(t)

	requestID := "req-123"
	taskID := "task-456"

	input := WriteEventInput{
		Type:      string(EventTaskRescheduled),
		RequestID: &requestID,
		TaskID:    &taskID,
		Message:   "All fields populated",
	}

	event, err := repo.InsertEvent(input)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.NotNil(t, event.RequestID)
	require.Equal(t, "req-123", *event.RequestID)
	require.NotNil(t, event.TaskID)
	require.Equal(t, "task-456", *event.TaskID)
}

func TestRepository_QueryEvents_EmptyResult(t *testing.T) {
	repo := setupTestDB(t)

	events, total, err := repo.QueryEvents(EventQueryFilters{})
	require.NoError(t, err)
	require.NotNil(t, events)
	require.Len(t, events, 0)
	require.Equal(t, 0, total)
}

func TestRepository_QueryEvents_MultipleFilters(t *testing.T) {
	repo := setupTestDB(t)

	taskID := "task-123"
	otherTask := "task-789"
	errorLevel := EventLevelError
	infoLevel := EventLevelInfo
	eventType := string(EventTaskUnresolvable)

	_, err := repo.InsertEvent(WriteEventInput{Type: eventType, TaskID: &taskID, Level: &errorLevel, Message: "M1"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: eventType, TaskID: &taskID, Level: &infoLevel, Message: "M2"})
	require.NoError(t, err)
	_, err = repo.InsertEvent(WriteEventInput{Type: eventType, TaskID: &otherTask, Level: &errorLevel, Message: "M3"})
	require.NoError(t, err)

	events, total, err := repo.QueryEvents(EventQueryFilters{
		Type:   &eventType,
		TaskID: &taskID,
		Level:  &errorLevel,
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "M1", events[0].Message)
}

func TestRepository_WriteEvent_Alias(t *testing.T) {
	repo := setupTestDB(t)

	input := WriteEventInput{
		Type:    string(EventSystemStartup),
		Message: "Test WriteEvent alias",
	}

	event, err := repo.WriteEvent(input)
	require.NoError(t, err)
	require.NotNil(t, event)
	require.Equal(t, string(EventSystemStartup), event.Type)
}

func TestRepository_GetByID_Alias(t *testing.T) {
	repo := setupTestDB(t)

	input := WriteEventInput{
		Type:    string(EventSystemStartup),
		Message: "Test GetByID alias",
	}

	created, err := repo.InsertEvent(input)
	require.NoError(t, err)

	fetched, err := repo.GetByID(created.EventID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, created.EventID, fetched.EventID)
}
