package app

import (
	"context"
	"slices"
	"strings"

	"minutely/internal/config"
	"minutely/internal/minuteclock"
	logx "minutely/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Alert.Enabled,
			Path:       cfg.Logging.Alert.Path,
			MinLevel:   cfg.Logging.Alert.MinLevel,
			RatePerSec: cfg.Logging.Alert.RatePerSec,
		},
	}
}

// reload applies a config published by the watcher and logs what changed.
func (a *App) reload(cfg *config.Config) {
	a.mu.Lock()
	prev := a.applied
	a.mu.Unlock()

	sections, attrs, changedHooks := config.SummarizeConfigChange(prev, cfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	if a.notify != nil {
		_ = a.notify.Reloading()
	}

	for _, s := range sections {
		if s == "systemd" {
			a.log.Warn("systemd config changed; restart required for changes to take effect")
		}
	}
	a.apply(cfg)

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	if len(changedHooks) > 0 {
		fields = append(fields, logx.Any("hooks", changedHooks))
	}
	fields = append(fields, logx.Int("hooks_active", a.hooks.Len()))
	a.log.Info("config applied", fields...)
	if a.notify != nil {
		_ = a.notify.Ready(a.statusLine())
	}
}

// apply pushes cfg into logging, the scheduler and the hook set. Sections
// equal to the previously applied config are left alone so an unrelated
// edit never re-registers hooks or re-aligns the scheduler.
func (a *App) apply(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.applied
	if prev == nil {
		prev = &config.Config{}
	}
	first := a.applied == nil

	if first || prev.Logging != cfg.Logging {
		a.logs.Apply(logConfig(cfg))
	}

	if p, err := minuteclock.ParseDriftPolicy(cfg.Scheduler.DriftPolicy); err != nil {
		a.log.Warn("invalid drift policy; keeping previous", logx.Err(err))
	} else {
		// SetDriftPolicy restarts (re-aligns) only when the policy changed.
		a.sched.SetDriftPolicy(p)
	}

	switch {
	case cfg.Scheduler.Heartbeat && a.heartbeat.ID() == 0:
		a.heartbeat = a.sched.RegisterNamed("heartbeat", a.beat)
	case !cfg.Scheduler.Heartbeat && a.heartbeat.ID() != 0:
		a.heartbeat.Unregister()
		a.heartbeat = minuteclock.Handle{}
	}

	if first || hooksChanged(prev, cfg) {
		if err := a.hooks.Apply(cfg.Hooks); err != nil {
			a.log.Warn("some hooks were skipped", logx.Err(err))
		}
	}

	a.applied = cfg
}

// hooksChanged covers edits, additions, removals and a new order; the
// registry dispatches hooks in registration order.
func hooksChanged(prev, cfg *config.Config) bool {
	sections, _, _ := config.SummarizeConfigChange(&config.Config{Hooks: prev.Hooks}, &config.Config{Hooks: cfg.Hooks})
	return slices.Contains(sections, "hooks")
}

func (a *App) beat(ctx context.Context) error {
	tick, _ := minuteclock.TickTime(ctx)
	a.log.Debug("heartbeat", logx.Time("tick", tick), logx.Int("callbacks", a.sched.Len()))
	return nil
}
