// Package hooks turns configured commands into minute-clock callbacks.
//
// Each hook carries a cron filter evaluated against the tick minute, so a
// hook declared with "*/5 * * * *" runs on five of every sixty ticks. The
// process is bounded by the hook timeout and the callback context, which
// is canceled when the scheduler is destroyed.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"minutely/internal/config"
	"minutely/internal/minuteclock"
	logx "minutely/pkg/logx"
)

// outputTail bounds how much combined output is kept for error messages.
const outputTail = 512

// Hook is a compiled HookConfig.
type Hook struct {
	Name    string
	Command string
	Args    []string
	Shell   bool
	Dir     string
	Env     []string
	Timeout time.Duration

	sched cron.Schedule
	spec  string
	log   logx.Logger
}

// Compile validates cfg and prepares it for execution. Disabled hooks
// return (nil, nil).
func Compile(cfg config.HookConfig, log logx.Logger) (*Hook, error) {
	if cfg.Disabled {
		return nil, nil
	}
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, errors.New("hook name is required")
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("hook %s: command is required", name)
	}
	timeout, err := config.ParseDurationOrDefault("hooks."+name+".timeout", cfg.Timeout, config.DefaultHookTimeout)
	if err != nil {
		return nil, err
	}

	h := &Hook{
		Name:    name,
		Command: cfg.Command,
		Args:    append([]string(nil), cfg.Args...),
		Shell:   cfg.Shell,
		Dir:     cfg.Dir,
		Timeout: timeout,
		spec:    strings.TrimSpace(cfg.Cron),
		log:     log.With(logx.String("hook", name)),
	}
	if h.spec != "" {
		s, err := config.ParseCron(h.spec)
		if err != nil {
			return nil, fmt.Errorf("hook %s: cron %q: %w", name, h.spec, err)
		}
		h.sched = s
	}
	if len(cfg.Env) > 0 {
		keys := make([]string, 0, len(cfg.Env))
		for k := range cfg.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Env = append(h.Env, k+"="+cfg.Env[k])
		}
	}
	return h, nil
}

// Due reports whether the hook's cron filter selects the minute of t.
// A hook without a filter is due every minute.
func (h *Hook) Due(t time.Time) bool {
	if h.sched == nil {
		return true
	}
	m := t.Truncate(time.Minute)
	return h.sched.Next(m.Add(-time.Nanosecond)).Equal(m)
}

// Callback adapts the hook to the scheduler. The tick time comes from the
// callback context so late fires still match the minute they were due for.
func (h *Hook) Callback() minuteclock.Callback {
	return func(ctx context.Context) error {
		tick, ok := minuteclock.TickTime(ctx)
		if !ok {
			tick = time.Now()
		}
		if !h.Due(tick) {
			return nil
		}
		return h.Run(ctx)
	}
}

// Run executes the command once. A non-zero exit is an error carrying the
// exit status and the tail of the combined output.
func (h *Hook) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	var cmd *exec.Cmd
	if h.Shell {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", h.Command)
	} else {
		cmd = exec.CommandContext(ctx, h.Command, h.Args...)
	}
	cmd.Dir = h.Dir
	if len(h.Env) > 0 {
		cmd.Env = append(os.Environ(), h.Env...)
	}
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)

	if err == nil {
		h.log.Debug("hook ok", logx.Duration("dur", dur))
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("hook %s: timed out after %s: %s", h.Name, h.Timeout, tail(out.Bytes()))
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("hook %s: canceled after %s: %w", h.Name, dur.Round(time.Millisecond), context.Canceled)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("hook %s: exit status %d: %s", h.Name, exitErr.ExitCode(), tail(out.Bytes()))
	}
	return fmt.Errorf("hook %s: %w", h.Name, err)
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > outputTail {
		s = "..." + s[len(s)-outputTail:]
	}
	if s == "" {
		return "<no output>"
	}
	return s
}
