package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Hooks     []HookConfig    `json:"hooks,omitempty"`
	Systemd   SystemdConfig   `json:"systemd,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert mirrors selected records (>= min_level) into a separate
// file, rate limited to rate_per_sec lines.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the minute scheduler.
//
// DriftPolicy is "self_correcting" (default) or "fixed_period".
type SchedulerConfig struct {
	DriftPolicy string `json:"drift_policy,omitempty"`
	// Heartbeat registers a callback that logs every tick at debug level.
	Heartbeat bool `json:"heartbeat,omitempty"`
}

// HookConfig declares a command run on minute ticks.
//
// Example:
//
//	{ "name": "rotate", "command": "/usr/local/bin/rotate", "cron": "*/5 * * * *", "timeout": "30s" }
//
// Cron is a 5-field expression (or descriptor like "@hourly") evaluated
// against the tick minute; empty means every minute. Timeout is a Go
// duration string; empty means 50s so a hook cannot outlive its minute.
type HookConfig struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	// Shell runs Command through "/bin/sh -c" instead of exec'ing it directly.
	Shell    bool              `json:"shell,omitempty"`
	Cron     string            `json:"cron,omitempty"`
	Timeout  string            `json:"timeout,omitempty"`
	Dir      string            `json:"dir,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Disabled bool              `json:"disabled,omitempty"`
}

// UnmarshalJSON disallows unknown fields inside a hook so typos such as
// "cmd" are caught on reload instead of silently ignored.
func (h *HookConfig) UnmarshalJSON(b []byte) error {
	type plain HookConfig
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var p plain
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*h = HookConfig(p)
	return nil
}

type SystemdConfig struct {
	// Notify sends READY/STATUS/WATCHDOG/STOPPING to systemd when
	// NOTIFY_SOCKET is set.
	Notify bool `json:"notify"`
}
