// Package config loads timer-hub's ambient settings the way the teacher
// repo does: environment variables first, with an optional YAML overlay
// for operators who prefer a checked-in file over exported env vars.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the server's ambient configuration: HTTP/auth plumbing
// plus the timer-specific knobs §4.1/§4.3/§4.5 leave implementation
// defined (weekday lookahead, unresolvable lookahead, sleep-class
// thresholds, default timezone).
type Config struct {
	Host string
	Port string

	SQLiteDBPath string
	NodeEnv      string

	AllowTestMode bool
	JWTSecret     string
	// JWTTokenExpirySec governs the single long-lived operator token
	// (§ AMBIENT STACK auth note); default is ten years, since this
	// subsystem has no refresh flow to renew it.
	JWTTokenExpirySec int

	// DefaultTimezone is an IANA zone name loaded from DEFAULT_TIMEZONE or
	// the YAML overlay. Nothing else reads it: DateTime.GetTime resolves in
	// the location of the reference time it was built from.
	DefaultTimezone string

	// WeekdayLookaheadDays bounds the weekday-aware resolver's day scan
	// (§4.1 step 3; §9 open question — we default to the spec's chosen 7).
	WeekdayLookaheadDays int
	// UnresolvableLookaheadDays bounds resolveNext's day-by-day retry
	// loop for a spec that is Unresolved or exception-policy mismatched
	// on a given day (§4.3 step 4's representative 366).
	UnresolvableLookaheadDays int

	// ShortSleepThresholdSec / LongSleepCapSec are the manager's sleep
	// class boundaries (§4.5 step 3, §9 open question: thresholds are
	// implementation-defined).
	ShortSleepThresholdSec int
	LongSleepCapSec        int

	// HolidayCalendars seeds ExceptionDays with a standard public
	// holiday calendar (rickar/cal) for each ISO code listed, e.g. "us".
	HolidayCalendars []string
}

// Load reads configuration from environment variables with defaults,
// then layers an optional on-disk YAML override (TIMER_HUB_CONFIG_FILE,
// default ./timer-hub.yaml if present) on top — an ambient config
// concern independent of the per-timer XML format §6 places out of
// scope.
func Load() (Config, error) {
	cfg := Config{
		Host:                      envString("HOST", "0.0.0.0"),
		Port:                      envString("PORT", "9000"),
		SQLiteDBPath:              envString("SQLITE_DB_PATH", "./data/timer-hub.db"),
		NodeEnv:                   envString("NODE_ENV", "development"),
		AllowTestMode:             envBool("ALLOW_TEST_MODE", false),
		JWTSecret:                 envString("JWT_SECRET", ""),
		JWTTokenExpirySec:         envInt("JWT_TOKEN_EXPIRY_SEC", 10*365*24*3600),
		DefaultTimezone:           envString("DEFAULT_TIMEZONE", "Local"),
		WeekdayLookaheadDays:      envInt("WEEKDAY_LOOKAHEAD_DAYS", 7),
		UnresolvableLookaheadDays: envInt("UNRESOLVABLE_LOOKAHEAD_DAYS", 366),
		ShortSleepThresholdSec:    envInt("SHORT_SLEEP_THRESHOLD_SEC", 10),
		LongSleepCapSec:           envInt("LONG_SLEEP_CAP_SEC", 60),
		HolidayCalendars:          envCSV("HOLIDAY_CALENDARS"),
	}

	if err := applyYAMLOverlay(&cfg); err != nil {
		return Config{}, err
	}

	if len(strings.TrimSpace(cfg.JWTSecret)) < 32 {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.ShortSleepThresholdSec <= 0 || cfg.LongSleepCapSec <= 0 {
		return Config{}, fmt.Errorf("sleep thresholds must be positive")
	}
	if cfg.ShortSleepThresholdSec > cfg.LongSleepCapSec {
		return Config{}, fmt.Errorf("SHORT_SLEEP_THRESHOLD_SEC must not exceed LONG_SLEEP_CAP_SEC")
	}

	return cfg, nil
}

// yamlOverlay mirrors the subset of Config an operator may want to pin
// in a checked-in file rather than the environment. Fields are pointers
// so an absent key in the file leaves the env-derived default alone.
type yamlOverlay struct {
	Host                      *string  `yaml:"host"`
	Port                      *string  `yaml:"port"`
	SQLiteDBPath              *string  `yaml:"sqlite_db_path"`
	DefaultTimezone           *string  `yaml:"default_timezone"`
	WeekdayLookaheadDays      *int     `yaml:"weekday_lookahead_days"`
	UnresolvableLookaheadDays *int     `yaml:"unresolvable_lookahead_days"`
	ShortSleepThresholdSec    *int     `yaml:"short_sleep_threshold_sec"`
	LongSleepCapSec           *int     `yaml:"long_sleep_cap_sec"`
	HolidayCalendars          []string `yaml:"holiday_calendars"`
}

func applyYAMLOverlay(cfg *Config) error {
	path := envString("TIMER_HUB_CONFIG_FILE", "./timer-hub.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var overlay yamlOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if overlay.Host != nil {
		cfg.Host = *overlay.Host
	}
	if overlay.Port != nil {
		cfg.Port = *overlay.Port
	}
	if overlay.SQLiteDBPath != nil {
		cfg.SQLiteDBPath = *overlay.SQLiteDBPath
	}
	if overlay.DefaultTimezone != nil {
		cfg.DefaultTimezone = *overlay.DefaultTimezone
	}
	if overlay.WeekdayLookaheadDays != nil {
		cfg.WeekdayLookaheadDays = *overlay.WeekdayLookaheadDays
	}
	if overlay.UnresolvableLookaheadDays != nil {
		cfg.UnresolvableLookaheadDays = *overlay.UnresolvableLookaheadDays
	}
	if overlay.ShortSleepThresholdSec != nil {
		cfg.ShortSleepThresholdSec = *overlay.ShortSleepThresholdSec
	}
	if overlay.LongSleepCapSec != nil {
		cfg.LongSleepCapSec = *overlay.LongSleepCapSec
	}
	if len(overlay.HolidayCalendars) > 0 {
		cfg.HolidayCalendars = overlay.HolidayCalendars
	}
	return nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}

func envCSV(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return []string{}
	}
	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
