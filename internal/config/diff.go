package config

import (
	"reflect"
	"slices"
	"sort"
	"strings"

	logx "minutely/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) structured attrs for logging, and (3) the names of hooks that were
// added, removed or modified.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 10)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alert_enabled", newCfg.Logging.Alert.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.DriftPolicy) != strings.TrimSpace(newCfg.Scheduler.DriftPolicy) ||
		oldCfg.Scheduler.Heartbeat != newCfg.Scheduler.Heartbeat {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.drift_policy", strings.TrimSpace(newCfg.Scheduler.DriftPolicy)),
			logx.Bool("scheduler.heartbeat", newCfg.Scheduler.Heartbeat),
		)
	}

	hooks := diffHooks(oldCfg.Hooks, newCfg.Hooks)
	reordered := len(hooks) == 0 && !slices.Equal(hookOrder(oldCfg.Hooks), hookOrder(newCfg.Hooks))
	if len(hooks) > 0 || reordered {
		changed = append(changed, "hooks")
		attrs = append(attrs,
			logx.Int("hooks.count", len(newCfg.Hooks)),
			logx.String("hooks.changed", strings.Join(hooks, ",")),
			logx.Bool("hooks.reordered", reordered),
		)
	}

	if oldCfg.Systemd != newCfg.Systemd {
		changed = append(changed, "systemd")
		attrs = append(attrs, logx.Bool("systemd.notify", newCfg.Systemd.Notify))
	}

	return changed, attrs, hooks
}

func diffHooks(oldH, newH []HookConfig) []string {
	oldM := make(map[string]HookConfig, len(oldH))
	for _, h := range oldH {
		oldM[strings.TrimSpace(h.Name)] = h
	}
	newM := make(map[string]HookConfig, len(newH))
	for _, h := range newH {
		newM[strings.TrimSpace(h.Name)] = h
	}

	var out []string
	for name, nh := range newM {
		oh, ok := oldM[name]
		if !ok || !reflect.DeepEqual(oh, nh) {
			out = append(out, name)
		}
	}
	for name := range oldM {
		if _, ok := newM[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// hookOrder is the dispatch order of hooks: their names as listed.
func hookOrder(hs []HookConfig) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, strings.TrimSpace(h.Name))
	}
	return out
}
