package timerapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/timer-hub-go/internal/api"
	"github.com/strefethen/timer-hub-go/internal/apperrors"
	"github.com/strefethen/timer-hub-go/internal/timerstore"
	"github.com/strefethen/timer-hub-go/internal/timespec"
)

// RegisterRoutes wires task management and status routes, plus the
// dashboard WebSocket feed, to router.
func RegisterRoutes(router chi.Router, service *Service, hub *Hub) {
	router.Method(http.MethodGet, "/v1/timer/tasks", api.Handler(listTasks(service)))
	router.Method(http.MethodGet, "/v1/timer/tasks/{task_id}", api.Handler(getTask(service)))
	router.Method(http.MethodPost, "/v1/timer/tasks", api.Handler(createTask(service)))
	router.Method(http.MethodDelete, "/v1/timer/tasks/{task_id}", api.Handler(deleteTask(service)))
	router.Method(http.MethodPatch, "/v1/timer/tasks/{task_id}/enabled", api.Handler(setEnabled(service)))

	if hub != nil {
		router.HandleFunc("/ws/timer/status", func(w http.ResponseWriter, r *http.Request) {
			hub.serve(w, r)
		})
	}
}

func listTasks(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		statuses := service.Statuses()
		return api.ListResponse(w, r, http.StatusOK, "tasks", statuses, nil)
	}
}

func getTask(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		taskID := chi.URLParam(r, "task_id")
		status, ok := service.Status(taskID)
		if !ok {
			return apperrors.NewAppError(apperrors.ErrorCodeTaskNotFound, "task not found", 404, map[string]any{
				"task_id": taskID,
			}, nil)
		}
		return api.SingleResponse(w, r, http.StatusOK, "task", status)
	}
}

// timeSpecRequest is the wire shape for a TimeSpec in task create
// requests, mirroring timerstore.TimeSpecDef. -1 (or omission) means
// wildcard for the literal integer fields.
type timeSpecRequest struct {
	// Cron, if set, overrides Minute/Hour/DayOfMonth/Month/Weekdays with
	// the literal fields of a standard 5-field cron expression; Year is
	// then a wildcard and VariableTime/VariableDate are ignored.
	Cron          string `json:"cron,omitempty"`
	Minute        *int   `json:"minute,omitempty"`
	Hour          *int   `json:"hour,omitempty"`
	DayOfMonth    *int   `json:"day_of_month,omitempty"`
	Month         *int   `json:"month,omitempty"`
	Year          *int   `json:"year,omitempty"`
	Weekdays      *int   `json:"weekdays,omitempty"`
	Exception     string `json:"exception,omitempty"`
	OffsetSeconds int    `json:"offset_seconds,omitempty"`
	VariableTime  string `json:"variable_time,omitempty"`
	VariableDate  string `json:"variable_date,omitempty"`
}

func (r timeSpecRequest) toDef() (timerstore.TimeSpecDef, error) {
	def := timerstore.TimeSpecDef{
		Minute: -1, Hour: -1, DayOfMonth: -1, Month: -1, Year: -1,
		Exception: "dontcare",
	}
	if r.Exception != "" {
		def.Exception = r.Exception
	}
	def.OffsetSeconds = r.OffsetSeconds

	if r.Cron != "" {
		spec, err := timespec.ParseCronTimeSpec(r.Cron, timespec.ParseExceptionPolicy(def.Exception), r.OffsetSeconds)
		if err != nil {
			return timerstore.TimeSpecDef{}, err
		}
		def.Minute = spec.Minute
		def.Hour = spec.Hour
		def.DayOfMonth = spec.DayOfMonth
		def.Month = spec.Month
		def.Year = spec.Year
		def.Weekdays = int(spec.WeekdayMask)
		return def, nil
	}

	if r.Minute != nil {
		def.Minute = *r.Minute
	}
	if r.Hour != nil {
		def.Hour = *r.Hour
	}
	if r.DayOfMonth != nil {
		def.DayOfMonth = *r.DayOfMonth
	}
	if r.Month != nil {
		def.Month = *r.Month
	}
	if r.Year != nil {
		def.Year = *r.Year
	}
	if r.Weekdays != nil {
		def.Weekdays = *r.Weekdays
	}
	def.VariableTime = r.VariableTime
	def.VariableDate = r.VariableDate
	return def, nil
}

// createTaskRequest is the request body for POST /v1/timer/tasks.
type createTaskRequest struct {
	Name          string           `json:"name"`
	Kind          string           `json:"kind"` // "periodic" | "fixed"
	At            *timeSpecRequest `json:"at,omitempty"`
	Until         *timeSpecRequest `json:"until,omitempty"`
	DuringSeconds int              `json:"during_seconds,omitempty"`
	FixedExecTime string           `json:"fixed_exec_time,omitempty"` // RFC3339, kind=fixed only
}

func createTask(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		var req createTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return apperrors.NewValidationError("invalid request body", nil)
		}

		if req.Name == "" {
			return apperrors.NewValidationError("name is required", nil)
		}

		def := timerstore.Definition{
			Name:          req.Name,
			Enabled:       true,
			DuringSeconds: req.DuringSeconds,
		}

		switch req.Kind {
		case string(timerstore.KindPeriodic):
			def.Kind = timerstore.KindPeriodic
			if req.At == nil {
				return apperrors.NewValidationError("at is required for periodic tasks", nil)
			}
			atDef, err := req.At.toDef()
			if err != nil {
				return apperrors.NewValidationError("invalid 'at' time spec", map[string]any{"error": err.Error()})
			}
			def.At = atDef
			if req.Until != nil {
				untilDef, err := req.Until.toDef()
				if err != nil {
					return apperrors.NewValidationError("invalid 'until' time spec", map[string]any{"error": err.Error()})
				}
				def.Until = &untilDef
			}
		case string(timerstore.KindFixed):
			def.Kind = timerstore.KindFixed
			if req.FixedExecTime == "" {
				return apperrors.NewValidationError("fixed_exec_time is required for fixed tasks", nil)
			}
			execTime, err := time.Parse(time.RFC3339, req.FixedExecTime)
			if err != nil {
				return apperrors.NewValidationError("fixed_exec_time must be RFC3339", map[string]any{
					"fixed_exec_time": req.FixedExecTime,
				})
			}
			def.FixedExecTime = execTime
		default:
			return apperrors.NewValidationError("kind must be 'periodic' or 'fixed'", map[string]any{"kind": req.Kind})
		}

		saved, err := service.CreateTask(def)
		if err != nil {
			return apperrors.NewUnresolvableError("task could not be scheduled", map[string]any{"error": err.Error()})
		}

		status, _ := service.Status(saved.TaskID)
		return api.SingleResponse(w, r, http.StatusCreated, "task", status)
	}
}

func deleteTask(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		taskID := chi.URLParam(r, "task_id")
		if err := service.DeleteTask(taskID); err != nil {
			return apperrors.NewInternalError("failed to delete task")
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func setEnabled(service *Service) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		taskID := chi.URLParam(r, "task_id")

		var req setEnabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return apperrors.NewValidationError("invalid request body", nil)
		}

		if err := service.SetEnabled(taskID, req.Enabled); err != nil {
			return apperrors.NewInternalError("failed to update task")
		}

		status, ok := service.Status(taskID)
		if !ok {
			return api.SingleResponse(w, r, http.StatusOK, "task", map[string]any{"id": taskID, "active": false})
		}
		return api.SingleResponse(w, r, http.StatusOK, "task", status)
	}
}
