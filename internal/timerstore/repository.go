// Package timerstore persists TimerTask *definitions* — the TimeSpec
// configuration a task was built from — not its live next_exec. On
// startup the server reads every definition back and reconstructs a
// fresh timer.Task via Reconstruct, which always calls Reschedule
// against the current wall clock (§1 Non-goals: "persistence of task
// state across restarts" is explicitly out of scope; only the
// configuration survives a restart).
package timerstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a task definition doesn't exist.
var ErrNotFound = errors.New("timerstore: task definition not found")

// DBPair is the reader/writer split used throughout the module (matches
// db.DBPair and audit.DBPair).
type DBPair interface {
	Reader() *sql.DB
	Writer() *sql.DB
}

// Kind distinguishes the two TimerTask subclasses §4.3/§4.4 define.
type Kind string

const (
	KindPeriodic Kind = "periodic"
	KindFixed    Kind = "fixed"
)

// TimeSpecDef is the persisted shape of a timespec.TimeSpec: literal
// fields with -1 meaning wildcard, plus optional variable-sourced names.
// Either representation may be present; VariableTime/VariableDate take
// precedence over the literal Hour/Minute or Day/Month/Year when set.
type TimeSpecDef struct {
	Minute, Hour                 int
	DayOfMonth, Month, Year      int
	Weekdays                     int
	Exception                    string // "yes" | "no" | "dontcare"
	OffsetSeconds                int
	VariableTime, VariableDate   string
}

// Definition is the durable row for one TimerTask.
type Definition struct {
	TaskID  string
	Name    string
	Enabled bool
	Kind    Kind

	At    TimeSpecDef
	Until *TimeSpecDef // nil if the task has no hold-until clause

	DuringSeconds int

	FixedExecTime time.Time // zero if Kind != KindFixed

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists Definition rows to the task_definitions table.
type Repository struct {
	reader *sql.DB
	writer *sql.DB
}

// NewRepository builds a Repository over dbPair.
func NewRepository(dbPair DBPair) *Repository {
	return &Repository{reader: dbPair.Reader(), writer: dbPair.Writer()}
}

// List returns every persisted task definition, enabled or not; callers
// reconstructing live tasks are expected to skip disabled ones.
func (r *Repository) List() ([]Definition, error) {
	rows, err := r.reader.Query(`
		SELECT task_id, name, enabled, kind,
		       at_minute, at_hour, at_day_of_month, at_month, at_year, at_weekdays,
		       at_exception, at_offset_seconds, at_variable_time, at_variable_date,
		       until_minute, until_hour, until_day_of_month, until_month, until_year,
		       until_weekdays, until_exception, until_offset_seconds,
		       during_seconds, fixed_exec_time, created_at, updated_at
		FROM task_definitions
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return defs, nil
}

// Get fetches a single definition by task ID.
func (r *Repository) Get(taskID string) (Definition, error) {
	row := r.reader.QueryRow(`
		SELECT task_id, name, enabled, kind,
		       at_minute, at_hour, at_day_of_month, at_month, at_year, at_weekdays,
		       at_exception, at_offset_seconds, at_variable_time, at_variable_date,
		       until_minute, until_hour, until_day_of_month, until_month, until_year,
		       until_weekdays, until_exception, until_offset_seconds,
		       during_seconds, fixed_exec_time, created_at, updated_at
		FROM task_definitions
		WHERE task_id = ?
	`, taskID)
	def, err := scanDefinitionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	return def, err
}

// Insert writes a new definition, generating a TaskID if def.TaskID is
// empty.
func (r *Repository) Insert(def Definition) (Definition, error) {
	if def.TaskID == "" {
		def.TaskID = uuid.New().String()
	}
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	_, err := r.writer.Exec(insertSQL, insertArgs(def)...)
	if err != nil {
		return Definition{}, err
	}
	return def, nil
}

// Update overwrites an existing definition in place, bumping updated_at.
func (r *Repository) Update(def Definition) error {
	def.UpdatedAt = time.Now().UTC()
	args := append(insertArgs(def)[1:], def.TaskID)
	_, err := r.writer.Exec(updateSQL, args...)
	return err
}

// Delete removes a definition by task ID. Deleting an absent row is
// silent, matching TimerManager's remove_task semantics.
func (r *Repository) Delete(taskID string) error {
	_, err := r.writer.Exec(`DELETE FROM task_definitions WHERE task_id = ?`, taskID)
	return err
}

// SetEnabled flips the enabled flag without touching the TimeSpec
// fields.
func (r *Repository) SetEnabled(taskID string, enabled bool) error {
	_, err := r.writer.Exec(`UPDATE task_definitions SET enabled = ?, updated_at = ? WHERE task_id = ?`,
		boolToInt(enabled), time.Now().UTC().Format(time.RFC3339), taskID)
	return err
}

const insertSQL = `
	INSERT INTO task_definitions (
		task_id, name, enabled, kind,
		at_minute, at_hour, at_day_of_month, at_month, at_year, at_weekdays,
		at_exception, at_offset_seconds, at_variable_time, at_variable_date,
		until_minute, until_hour, until_day_of_month, until_month, until_year,
		until_weekdays, until_exception, until_offset_seconds,
		during_seconds, fixed_exec_time, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateSQL = `
	UPDATE task_definitions SET
		name = ?, enabled = ?, kind = ?,
		at_minute = ?, at_hour = ?, at_day_of_month = ?, at_month = ?, at_year = ?, at_weekdays = ?,
		at_exception = ?, at_offset_seconds = ?, at_variable_time = ?, at_variable_date = ?,
		until_minute = ?, until_hour = ?, until_day_of_month = ?, until_month = ?, until_year = ?,
		until_weekdays = ?, until_exception = ?, until_offset_seconds = ?,
		during_seconds = ?, fixed_exec_time = ?, created_at = ?, updated_at = ?
	WHERE task_id = ?
`

func insertArgs(def Definition) []any {
	var untilMinute, untilHour, untilDOM, untilMonth, untilYear, untilWeekdays, untilOffset any
	var untilException any
	if def.Until != nil {
		untilMinute = def.Until.Minute
		untilHour = def.Until.Hour
		untilDOM = def.Until.DayOfMonth
		untilMonth = def.Until.Month
		untilYear = def.Until.Year
		untilWeekdays = def.Until.Weekdays
		untilException = def.Until.Exception
		untilOffset = def.Until.OffsetSeconds
	}

	var fixedExecTime any
	if !def.FixedExecTime.IsZero() {
		fixedExecTime = def.FixedExecTime.UTC().Format(time.RFC3339)
	}

	var atVariableTime, atVariableDate any
	if def.At.VariableTime != "" {
		atVariableTime = def.At.VariableTime
	}
	if def.At.VariableDate != "" {
		atVariableDate = def.At.VariableDate
	}

	return []any{
		def.TaskID, def.Name, boolToInt(def.Enabled), string(def.Kind),
		def.At.Minute, def.At.Hour, def.At.DayOfMonth, def.At.Month, def.At.Year, def.At.Weekdays,
		def.At.Exception, def.At.OffsetSeconds, atVariableTime, atVariableDate,
		untilMinute, untilHour, untilDOM, untilMonth, untilYear,
		untilWeekdays, untilException, untilOffset,
		def.DuringSeconds, fixedExecTime,
		def.CreatedAt.UTC().Format(time.RFC3339), def.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(rows *sql.Rows) (Definition, error) {
	return scanDefinitionRow(rows)
}

func scanDefinitionRow(row rowScanner) (Definition, error) {
	var def Definition
	var enabled int
	var kind string
	var atException string
	var atVariableTime, atVariableDate sql.NullString
	var untilMinute, untilHour, untilDOM, untilMonth, untilYear, untilWeekdays, untilOffset sql.NullInt64
	var untilException sql.NullString
	var fixedExecTime sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&def.TaskID, &def.Name, &enabled, &kind,
		&def.At.Minute, &def.At.Hour, &def.At.DayOfMonth, &def.At.Month, &def.At.Year, &def.At.Weekdays,
		&atException, &def.At.OffsetSeconds, &atVariableTime, &atVariableDate,
		&untilMinute, &untilHour, &untilDOM, &untilMonth, &untilYear,
		&untilWeekdays, &untilException, &untilOffset,
		&def.DuringSeconds, &fixedExecTime, &createdAt, &updatedAt,
	)
	if err != nil {
		return Definition{}, err
	}

	def.Enabled = enabled != 0
	def.Kind = Kind(kind)
	def.At.Exception = atException
	if atVariableTime.Valid {
		def.At.VariableTime = atVariableTime.String
	}
	if atVariableDate.Valid {
		def.At.VariableDate = atVariableDate.String
	}

	if untilMinute.Valid {
		def.Until = &TimeSpecDef{
			Minute:         int(untilMinute.Int64),
			Hour:           int(untilHour.Int64),
			DayOfMonth:     int(untilDOM.Int64),
			Month:          int(untilMonth.Int64),
			Year:           int(untilYear.Int64),
			Weekdays:       int(untilWeekdays.Int64),
			Exception:      untilException.String,
			OffsetSeconds:  int(untilOffset.Int64),
		}
	}

	if fixedExecTime.Valid && fixedExecTime.String != "" {
		t, err := time.Parse(time.RFC3339, fixedExecTime.String)
		if err == nil {
			def.FixedExecTime = t
		}
	}

	def.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	def.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return def, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
