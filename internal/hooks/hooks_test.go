package hooks

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"minutely/internal/config"
	"minutely/internal/minuteclock"
	logx "minutely/pkg/logx"
)

func at(h, m int) time.Time {
	return time.Date(2026, 10, 18, h, m, 0, 0, time.UTC)
}

func needShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func TestDue(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cron string
		at   time.Time
		want bool
	}{
		{"", at(12, 6), true},
		{"*/5 * * * *", at(12, 5), true},
		{"*/5 * * * *", at(12, 6), false},
		{"*/5 * * * *", at(12, 5).Add(1500 * time.Millisecond), true},
		{"0 3 * * *", at(3, 0), true},
		{"0 3 * * *", at(4, 0), false},
		{"@hourly", at(13, 0), true},
		{"@hourly", at(13, 1), false},
	}
	for _, tc := range cases {
		h, err := Compile(config.HookConfig{Name: "x", Command: "true", Cron: tc.cron}, logx.Nop())
		if err != nil {
			t.Fatalf("compile %q: %v", tc.cron, err)
		}
		if got := h.Due(tc.at); got != tc.want {
			t.Fatalf("Due(%q, %s)=%v want %v", tc.cron, tc.at.Format("15:04:05.000"), got, tc.want)
		}
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()

	h, err := Compile(config.HookConfig{Name: "off", Command: "x", Disabled: true}, logx.Nop())
	if err != nil || h != nil {
		t.Fatalf("disabled hook: h=%v err=%v", h, err)
	}

	h, err = Compile(config.HookConfig{
		Name:    "env",
		Command: "x",
		Env:     map[string]string{"B": "2", "A": "1"},
	}, logx.Nop())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if h.Timeout != config.DefaultHookTimeout {
		t.Fatalf("timeout=%v want default", h.Timeout)
	}
	if got := strings.Join(h.Env, ","); got != "A=1,B=2" {
		t.Fatalf("env=%q", got)
	}

	if _, err := Compile(config.HookConfig{Name: "bad", Command: "x", Cron: "* * *"}, logx.Nop()); err == nil {
		t.Fatalf("expected cron error")
	}
}

func TestRunReportsExitStatusAndOutput(t *testing.T) {
	t.Parallel()
	needShell(t)

	h, err := Compile(config.HookConfig{
		Name:    "fail",
		Command: "echo boom >&2; exit 3",
		Shell:   true,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	err = h.Run(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"hook fail", "exit status 3", "boom"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}

	ok, err := Compile(config.HookConfig{Name: "ok", Command: "exit 0", Shell: true}, logx.Nop())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if err := ok.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()
	needShell(t)

	h, err := Compile(config.HookConfig{
		Name:    "slow",
		Command: "sleep 5",
		Shell:   true,
		Timeout: "100ms",
	}, logx.Nop())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	start := time.Now()
	err = h.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout not enforced: %v", time.Since(start))
	}
}

func TestRunCanceledByParent(t *testing.T) {
	t.Parallel()
	needShell(t)

	h, err := Compile(config.HookConfig{
		Name:    "long",
		Command: "exec sleep 5",
		Shell:   true,
		Timeout: "30s",
	}, logx.Nop())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	err = h.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if strings.Contains(err.Error(), "exit status") || !strings.Contains(err.Error(), "hook long: canceled") {
		t.Fatalf("unexpected error text %q", err)
	}
}

func TestCallbackUsesTickMinute(t *testing.T) {
	t.Parallel()

	// The binary does not exist, so the callback only fails when it runs.
	h, err := Compile(config.HookConfig{
		Name:    "five",
		Command: "/nonexistent/minutely-hook",
		Cron:    "*/5 * * * *",
	}, logx.Nop())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	clock := clockwork.NewFakeClockAt(at(12, 5).Add(700 * time.Millisecond))
	s := minuteclock.New(
		minuteclock.WithClock(clock),
		minuteclock.WithSink(minuteclock.SinkFunc(func(minuteclock.Report) {})),
	)
	defer s.Destroy()
	s.Stop()
	s.RegisterNamed("hook:five", h.Callback())

	rep := s.TickNow()
	if len(rep.Results) != 1 || rep.Results[0].OK() {
		t.Fatalf("expected hook to run and fail at 12:05, got %+v", rep.Results)
	}

	clock.Advance(time.Minute)
	rep = s.TickNow()
	if len(rep.Results) != 1 || !rep.Results[0].OK() {
		t.Fatalf("expected hook skipped at 12:06, got %+v", rep.Results)
	}
}

func TestSetApplyReplacesHooks(t *testing.T) {
	t.Parallel()

	s := minuteclock.New(minuteclock.WithSink(minuteclock.SinkFunc(func(minuteclock.Report) {})))
	defer s.Destroy()
	set := NewSet(s, logx.Nop())

	err := set.Apply([]config.HookConfig{
		{Name: "a", Command: "x"},
		{Name: "b", Command: "y", Cron: "bogus"},
		{Name: "c", Command: "z", Disabled: true},
	})
	if err == nil || !strings.Contains(err.Error(), "hook b") {
		t.Fatalf("expected compile error for b, got %v", err)
	}
	if set.Len() != 1 || s.Len() != 1 {
		t.Fatalf("set=%d scheduler=%d, want 1/1", set.Len(), s.Len())
	}

	if err := set.Apply([]config.HookConfig{{Name: "d", Command: "x"}, {Name: "e", Command: "y"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if set.Len() != 2 || s.Len() != 2 {
		t.Fatalf("set=%d scheduler=%d, want 2/2", set.Len(), s.Len())
	}
	names := s.Snapshot().Callbacks
	if strings.Join(names, ",") != "hook:d,hook:e" {
		t.Fatalf("callbacks=%v", names)
	}

	set.Clear()
	if s.Len() != 0 {
		t.Fatalf("scheduler still has %d callbacks", s.Len())
	}
}
