package db

const schemaSQL = `
-- ==========================================================================
-- EXCEPTION DAYS (holiday / exception date registry, §3 ExceptionDays)
-- ==========================================================================

CREATE TABLE IF NOT EXISTS exception_days (
  exception_day_id TEXT PRIMARY KEY,
  day INTEGER,
  month INTEGER,
  year INTEGER,
  label TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT 'custom',
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exception_days_month_day ON exception_days(month, day);

-- ==========================================================================
-- TASK DEFINITIONS (persisted TimeSpec/TimerTask config, never next_exec)
-- ==========================================================================

CREATE TABLE IF NOT EXISTS task_definitions (
  task_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  enabled INTEGER NOT NULL DEFAULT 1,
  kind TEXT NOT NULL,              -- 'periodic' | 'fixed'

  -- 'at' TimeSpec fields (-1 = wildcard; weekdays 0 = any)
  at_minute INTEGER NOT NULL DEFAULT -1,
  at_hour INTEGER NOT NULL DEFAULT -1,
  at_day_of_month INTEGER NOT NULL DEFAULT -1,
  at_month INTEGER NOT NULL DEFAULT -1,
  at_year INTEGER NOT NULL DEFAULT -1,
  at_weekdays INTEGER NOT NULL DEFAULT 0,
  at_exception TEXT NOT NULL DEFAULT 'dontcare',
  at_offset_seconds INTEGER NOT NULL DEFAULT 0,
  at_variable_time TEXT,            -- variable name for VariableTimeSpec time
  at_variable_date TEXT,            -- variable name for VariableTimeSpec date

  -- optional 'until' TimeSpec (periodic, hold-until-match)
  until_minute INTEGER,
  until_hour INTEGER,
  until_day_of_month INTEGER,
  until_month INTEGER,
  until_year INTEGER,
  until_weekdays INTEGER,
  until_exception TEXT,
  until_offset_seconds INTEGER,

  during_seconds INTEGER NOT NULL DEFAULT 0,

  -- fixed-time tasks: absolute instant, stored as RFC3339
  fixed_exec_time TEXT,

  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_definitions_kind ON task_definitions(kind);

-- ==========================================================================
-- AUDIT LOG (firing/reschedule history, adapted from audit-log)
-- ==========================================================================

CREATE TABLE IF NOT EXISTS audit_events (
  event_id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  type TEXT NOT NULL,
  level TEXT NOT NULL,
  request_id TEXT,
  task_id TEXT,
  message TEXT NOT NULL,
  payload TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(type);
CREATE INDEX IF NOT EXISTS idx_audit_events_level ON audit_events(level);
CREATE INDEX IF NOT EXISTS idx_audit_events_task_id ON audit_events(task_id) WHERE task_id IS NOT NULL;
`
