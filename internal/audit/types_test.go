package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventTypeConstants(t *testing.T) {
	require.Equal(t, EventType("TASK_REGISTERED"), EventTaskRegistered)
	require.Equal(t, EventType("TASK_REMOVED"), EventTaskRemoved)
	require.Equal(t, EventType("TASK_FIRED"), EventTaskFired)
	require.Equal(t, EventType("TASK_RESCHEDULED"), EventTaskRescheduled)
	require.Equal(t, EventType("TASK_UNRESOLVABLE"), EventTaskUnresolvable)
	require.Equal(t, EventType("TASK_IMPOSSIBLE"), EventTaskImpossible)
	require.Equal(t, EventType("TASK_CALLBACK_FAILED"), EventTaskCallbackFail)
	require.Equal(t, EventType("EXCEPTION_DAY_ADDED"), EventExceptionDayAdded)
	require.Equal(t, EventType("EXCEPTION_DAY_REMOVED"), EventExceptionDayRemoved)
	require.Equal(t, EventType("MANAGER_STARTED"), EventManagerStarted)
	require.Equal(t, EventType("MANAGER_STOPPED"), EventManagerStopped)
	require.Equal(t, EventType("SYSTEM_STARTUP"), EventSystemStartup)
	require.Equal(t, EventType("SYSTEM_ERROR"), EventSystemError)
}

func TestEventLevelConstants(t *testing.T) {
	require.Equal(t, EventLevel("DEBUG"), EventLevelDebug)
	require.Equal(t, EventLevel("INFO"), EventLevelInfo)
	require.Equal(t, EventLevel("WARN"), EventLevelWarn)
	require.Equal(t, EventLevel("ERROR"), EventLevelError)
}

func TestEventLevelAliases(t *testing.T) {
	require.Equal(t, EventLevelDebug, LevelDebug)
	require.Equal(t, EventLevelInfo, LevelInfo)
	require.Equal(t, EventLevelWarn, LevelWarn)
	require.Equal(t, EventLevelError, LevelError)
}

func TestEventCorrelationJSON(t *testing.T) {
	requestID := "req-123"
	taskID := "task-456"

	correlation := EventCorrelation{
		RequestID: &requestID,
		TaskID:    &taskID,
	}

	data, err := json.Marshal(correlation)
	require.NoError(t, err)

	var decoded EventCorrelation
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.NotNil(t, decoded.RequestID)
	require.Equal(t, "req-123", *decoded.RequestID)
	require.NotNil(t, decoded.TaskID)
	require.Equal(t, "task-456", *decoded.TaskID)
}

func TestEventCorrelationJSONOmitsEmpty(t *testing.T) {
	correlation := EventCorrelation{}

	data, err := json.Marshal(correlation)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	_, hasRequestID := m["request_id"]
	require.False(t, hasRequestID)
	_, hasTaskID := m["task_id"]
	require.False(t, hasTaskID)
}

func TestEventCorrelationPartialJSON(t *testing.T) {
	taskID := "task-123"

	correlation := EventCorrelation{
		TaskID: &taskID,
	}

	data, err := json.Marshal(correlation)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	require.Equal(t, "task-123", m["task_id"])
	_, hasRequestID := m["request_id"]
	require.False(t, hasRequestID)
}

func TestAuditEventJSON(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	taskID := "task-123"
	requestID := "req-456"

	event := AuditEvent{
		EventID:   "event-789",
		Timestamp: now,
		Type:      string(EventTaskFired),
		Level:     EventLevelInfo,
		TaskID:    &taskID,
		RequestID: &requestID,
		Message:   "Task fired",
		Payload: map[string]any{
			"duration_ms": 1500,
			"kind":        "periodic",
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded AuditEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, "event-789", decoded.EventID)
	require.Equal(t, now, decoded.Timestamp)
	require.Equal(t, string(EventTaskFired), decoded.Type)
	require.Equal(t, EventLevelInfo, decoded.Level)
	require.NotNil(t, decoded.TaskID)
	require.Equal(t, "task-123", *decoded.TaskID)
	require.NotNil(t, decoded.RequestID)
	require.Equal(t, "req-456", *decoded.RequestID)
	require.Equal(t, "Task fired", decoded.Message)
	require.NotNil(t, decoded.Payload)
	require.Equal(t, float64(1500), decoded.Payload["duration_ms"])
	require.Equal(t, "periodic", decoded.Payload["kind"])
}

func TestAuditEventJSONWithEmptyPayload(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	event := AuditEvent{
		EventID:   "event-123",
		Timestamp: now,
		Type:      string(EventSystemStartup),
		Level:     EventLevelInfo,
		Message:   "System started",
		Payload:   nil,
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded AuditEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, "event-123", decoded.EventID)
	require.Equal(t, string(EventSystemStartup), decoded.Type)
	require.Equal(t, EventLevelInfo, decoded.Level)
	require.Equal(t, "System started", decoded.Message)
	require.Nil(t, decoded.Payload)
}

func TestAuditEventJSONErrorLevel(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	taskID := "task-123"

	event := AuditEvent{
		EventID:   "event-456",
		Timestamp: now,
		Type:      string(EventTaskCallbackFail),
		Level:     EventLevelError,
		TaskID:    &taskID,
		Message:   "on_fire callback failed",
		Payload: map[string]any{
			"error": "panic recovered",
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded AuditEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, string(EventTaskCallbackFail), decoded.Type)
	require.Equal(t, EventLevelError, decoded.Level)
	require.NotNil(t, decoded.TaskID)
	require.Equal(t, "task-123", *decoded.TaskID)
	require.Equal(t, "panic recovered", decoded.Payload["error"])
}

func TestAuditEventJSONWarnLevel(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	event := AuditEvent{
		EventID:   "event-789",
		Timestamp: now,
		Type:      string(EventTaskUnresolvable),
		Level:     EventLevelWarn,
		Message:   "Task has no resolvable next fire time within the lookahead window",
		Payload:   map[string]any{},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded AuditEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.Equal(t, string(EventTaskUnresolvable), decoded.Type)
	require.Equal(t, EventLevelWarn, decoded.Level)
}

func TestAuditEventUnmarshalFromRawJSON(t *testing.T) {
	rawJSON := `{
		"event_id": "evt-001",
		"timestamp": "2024-01-15T10:30:00Z",
		"type": "TASK_RESCHEDULED",
		"level": "INFO",
		"task_id": "task-123",
		"message": "Task rescheduled",
		"payload": {
			"next_exec": "2024-01-16T08:00:00Z"
		}
	}`

	var event AuditEvent
	err := json.Unmarshal([]byte(rawJSON), &event)
	require.NoError(t, err)

	require.Equal(t, "evt-001", event.EventID)
	require.Equal(t, string(EventTaskRescheduled), event.Type)
	require.Equal(t, EventLevelInfo, event.Level)
	require.NotNil(t, event.TaskID)
	require.Equal(t, "task-123", *event.TaskID)
	require.Equal(t, "Task rescheduled", event.Message)
	require.Equal(t, "2024-01-16T08:00:00Z", event.Payload["next_exec"])
}

func TestWriteEventInputDefaults(t *testing.T) {
	input := WriteEventInput{
		Type:    string(EventTaskRegistered),
		Level:   nil, // Should default to INFO when processed
		Message: "Task registered",
		TaskID:  ptrString("task-123"),
		Payload: map[string]any{
			"name": "morning lights",
		},
	}

	require.Equal(t, string(EventTaskRegistered), input.Type)
	require.Nil(t, input.Level)
	require.Equal(t, "Task registered", input.Message)
	require.NotNil(t, input.TaskID)
	require.Equal(t, "task-123", *input.TaskID)
	require.Equal(t, "morning lights", input.Payload["name"])
}

func TestWriteEventInputWithLevel(t *testing.T) {
	level := EventLevelError
	input := WriteEventInput{
		Type:    string(EventSystemError),
		Level:   &level,
		Message: "Critical system error",
		Payload: map[string]any{
			"error_code": "ERR_001",
		},
	}

	require.Equal(t, string(EventSystemError), input.Type)
	require.NotNil(t, input.Level)
	require.Equal(t, EventLevelError, *input.Level)
}

func TestEventQueryFilters(t *testing.T) {
	startDate := "2024-01-14T10:30:00Z"
	endDate := "2024-01-15T10:30:00Z"
	eventType := string(EventTaskFired)
	level := EventLevelInfo
	taskID := "task-123"

	filters := EventQueryFilters{
		StartDate: &startDate,
		EndDate:   &endDate,
		Type:      &eventType,
		Level:     &level,
		TaskID:    &taskID,
		Limit:     100,
		Offset:    50,
	}

	require.NotNil(t, filters.StartDate)
	require.NotNil(t, filters.EndDate)
	require.NotNil(t, filters.Type)
	require.Equal(t, string(EventTaskFired), *filters.Type)
	require.NotNil(t, filters.Level)
	require.Equal(t, EventLevelInfo, *filters.Level)
	require.NotNil(t, filters.TaskID)
	require.Equal(t, "task-123", *filters.TaskID)
	require.Equal(t, 100, filters.Limit)
	require.Equal(t, 50, filters.Offset)
}

func TestEventQueryFiltersEmpty(t *testing.T) {
	filters := EventQueryFilters{
		Limit:  50,
		Offset: 0,
	}

	require.Nil(t, filters.StartDate)
	require.Nil(t, filters.EndDate)
	require.Nil(t, filters.Type)
	require.Nil(t, filters.Level)
	require.Nil(t, filters.TaskID)
	require.Equal(t, 50, filters.Limit)
	require.Equal(t, 0, filters.Offset)
}

func TestEventTypeStringConversion(t *testing.T) {
	eventType := EventTaskFired
	str := string(eventType)
	require.Equal(t, "TASK_FIRED", str)

	fromStr := EventType(str)
	require.Equal(t, EventTaskFired, fromStr)
}

func TestEventCorrelationToAuditEventFields(t *testing.T) {
	correlation := EventCorrelation{
		RequestID: ptrString("req-123"),
		TaskID:    ptrString("task-456"),
	}

	event := AuditEvent{
		EventID:   "event-001",
		Type:      string(EventTaskFired),
		Level:     EventLevelInfo,
		RequestID: correlation.RequestID,
		TaskID:    correlation.TaskID,
		Message:   "Task fired",
		Payload:   map[string]any{},
	}

	require.Equal(t, "req-123", *event.RequestID)
	require.Equal(t, "task-456", *event.TaskID)
}

// ptrString is a helper function to create a pointer to a string
func ptrString(s string) *string {
	return &s
}
