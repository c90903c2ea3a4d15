package server

import (
	"bufio"
	"context"
	"log"
	"net"
	"net/http"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strefethen/timer-hub-go/internal/api"
	"github.com/strefethen/timer-hub-go/internal/audit"
	"github.com/strefethen/timer-hub-go/internal/auth"
	"github.com/strefethen/timer-hub-go/internal/config"
	"github.com/strefethen/timer-hub-go/internal/datetime"
	"github.com/strefethen/timer-hub-go/internal/db"
	"github.com/strefethen/timer-hub-go/internal/exceptiondays"
	"github.com/strefethen/timer-hub-go/internal/timer"
	"github.com/strefethen/timer-hub-go/internal/timerapi"
	"github.com/strefethen/timer-hub-go/internal/timerstore"
	"github.com/strefethen/timer-hub-go/internal/variable"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker so the WebSocket upgrade in
// internal/timerapi can reach the underlying connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// requestLoggerMiddleware logs every incoming HTTP request.
func requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.RequestURI(), wrapped.status, time.Since(start).Round(time.Millisecond))
	})
}

// Options controls server wiring, mainly for tests.
type Options struct {
	// DisableAutoStart skips starting the timer manager's dispatch loop,
	// so a test can register tasks and drive Start/Stop itself.
	DisableAutoStart bool
}

// NewHandler builds the HTTP handler and returns a shutdown function.
func NewHandler(cfg config.Config, options Options) (http.Handler, func(context.Context) error, error) {
	if cfg.WeekdayLookaheadDays > 0 {
		datetime.WeekdayLookaheadDays = cfg.WeekdayLookaheadDays
	}
	if cfg.UnresolvableLookaheadDays > 0 {
		timer.UnresolvableLookaheadDays = cfg.UnresolvableLookaheadDays
	}

	log.Printf("Using database: %s", cfg.SQLiteDBPath)
	dbPair, err := db.Init(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, err
	}

	logger := log.Default()

	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLoggerMiddleware)
	router.Use(api.RequestIDMiddleware)
	router.Use(api.RecovererMiddleware)
	router.Use(auth.Middleware(cfg))

	registerHealthRoutes(router)

	exceptions := exceptiondays.New()
	for _, iso := range cfg.HolidayCalendars {
		if err := exceptiondays.SeedStandardHolidays(exceptions, iso, holidayYears()); err != nil {
			log.Printf("WARN failed to seed holiday calendar %q: %v", iso, err)
		}
	}

	vars := variable.NewRegistry()

	auditService := audit.NewService(cfg, dbPair, logger)
	audit.RegisterRoutes(router, auditService)
	auditService.StartPruneJob()

	timerStore := timerstore.NewRepository(dbPair)

	manager := timer.NewManager(logger,
		time.Duration(cfg.ShortSleepThresholdSec)*time.Second,
		time.Duration(cfg.LongSleepCapSec)*time.Second,
	)

	hub := timerapi.NewHub(logger)

	onFired := func(taskID string, value *bool) {
		msg := "task fired"
		if value != nil {
			if *value {
				msg = "task fired: on"
			} else {
				msg = "task fired: off"
			}
		}
		level := audit.EventLevelInfo
		id := taskID
		_, err := auditService.RecordEvent(audit.WriteEventInput{
			Type:    string(audit.EventTaskFired),
			Level:   &level,
			Message: msg,
			TaskID:  &id,
		})
		if err != nil {
			log.Printf("WARN failed to record audit event for task %s: %v", taskID, err)
		}
	}

	timerService := timerapi.NewService(manager, timerStore, exceptions, vars, hub, logger, onFired)
	if err := timerService.LoadAll(); err != nil {
		dbPair.Close()
		return nil, nil, err
	}
	timerService.BroadcastLoop()
	timerapi.RegisterRoutes(router, timerService, hub)

	if !options.DisableAutoStart {
		manager.Start()
	}

	shutdown := func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		manager.Stop()
		auditService.StopPruneJob()
		return dbPair.Close()
	}

	return router, shutdown, nil
}

// holidayYears returns the span of calendar years a seeded holiday
// calendar should cover: the current year plus the next, wide enough
// for the resolver's weekday lookahead and unresolvable retry bounds to
// never run past what's seeded.
func holidayYears() []int {
	year := time.Now().Year()
	return []int{year, year + 1}
}

func registerHealthRoutes(router chi.Router) {
	router.Method(http.MethodGet, "/v1/health", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		response := map[string]any{
			"status":    "healthy",
			"service":   "timer-hub",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		return api.WriteJSON(w, http.StatusOK, response)
	}))
	router.Method(http.MethodGet, "/v1/health/live", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}))
	router.Method(http.MethodGet, "/v1/health/ready", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		return api.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}))
}
