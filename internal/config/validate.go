package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"minutely/internal/minuteclock"
	logx "minutely/pkg/logx"
)

// DefaultHookTimeout keeps a hook inside the minute it was started in.
const DefaultHookTimeout = 50 * time.Second

// MinuteParser parses 5-field cron expressions and descriptors. Seconds are
// not accepted: hooks only ever run on minute boundaries.
var MinuteParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a hook filter. "@every" schedules are rejected: they
// describe intervals, not minutes of the wall clock.
func ParseCron(spec string) (cron.Schedule, error) {
	s, err := MinuteParser.Parse(spec)
	if err != nil {
		return nil, err
	}
	if _, ok := s.(cron.ConstantDelaySchedule); ok {
		return nil, fmt.Errorf("interval schedule %q not supported; use a cron expression", spec)
	}
	return s, nil
}

// Validate checks every field a running daemon would otherwise reject late.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if !logx.ValidLevel(cfg.Logging.Alert.MinLevel) {
		errs = append(errs, fmt.Errorf("logging.alert.min_level: unknown level %q", cfg.Logging.Alert.MinLevel))
	}
	if cfg.Logging.Alert.RatePerSec < 0 {
		errs = append(errs, errors.New("logging.alert.rate_per_sec must be >= 0"))
	}
	if _, err := minuteclock.ParseDriftPolicy(cfg.Scheduler.DriftPolicy); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.drift_policy: %w", err))
	}

	seen := map[string]int{}
	for i, h := range cfg.Hooks {
		path := fmt.Sprintf("hooks[%d]", i)
		name := strings.TrimSpace(h.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", path))
		} else if prev, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%s.name %q duplicates hooks[%d]", path, name, prev))
		} else {
			seen[name] = i
		}
		if strings.TrimSpace(h.Command) == "" {
			errs = append(errs, fmt.Errorf("%s.command is required", path))
		}
		if h.Shell && len(h.Args) > 0 {
			errs = append(errs, fmt.Errorf("%s.args cannot be combined with shell", path))
		}
		if spec := strings.TrimSpace(h.Cron); spec != "" {
			if _, err := ParseCron(spec); err != nil {
				errs = append(errs, fmt.Errorf("%s.cron: %w", path, err))
			}
		}
		if _, err := ParseDurationOrDefault(path+".timeout", h.Timeout, DefaultHookTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
