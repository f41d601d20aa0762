package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "minuteclock"))

	log.Error("minute timer callback failed", Uint64("id", 7), Err(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if m["message"] != "minute timer callback failed" {
		t.Fatalf("message = %v", m["message"])
	}
	if m["comp"] != "minuteclock" {
		t.Fatalf("comp = %v", m["comp"])
	}
	if m["err"] != "boom" {
		t.Fatalf("err = %v", m["err"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatal("expected caller field")
	}
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	if log.Enabled(LevelDebug) {
		t.Fatal("debug should not be enabled at warn level")
	}
	if !log.Enabled(LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	// must not panic
	log.Error("nothing", String("k", "v"))
	log.With(Int("n", 1)).Info("still nothing")
}

func TestAlertSinkMinLevelAndRate(t *testing.T) {
	dir := t.TempDir()
	alertPath := filepath.Join(dir, "alerts.log")

	svc, log := New(Config{
		Level: "debug",
		Alert: AlertConfig{Enabled: true, Path: alertPath, MinLevel: "error", RatePerSec: 1},
		File:  FileConfig{Enabled: true, Path: filepath.Join(dir, "all.log")},
	})
	t.Cleanup(func() { _ = svc.Close() })

	log.Warn("below threshold")
	log.Error("first alert", String("callback", "rotate"))
	log.Error("second alert is rate limited")

	b, err := os.ReadFile(alertPath)
	if err != nil {
		t.Fatalf("read alert file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 {
		t.Fatalf("alert lines = %d, want 1: %q", len(lines), string(b))
	}
	if !strings.Contains(lines[0], "[ERROR] first alert") || !strings.Contains(lines[0], "callback=rotate") {
		t.Fatalf("unexpected alert line %q", lines[0])
	}

	all, err := os.ReadFile(filepath.Join(dir, "all.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if got := strings.Count(strings.TrimSpace(string(all)), "\n") + 1; got != 3 {
		t.Fatalf("file sink lines = %d, want 3", got)
	}
}

func TestValidLevel(t *testing.T) {
	t.Parallel()
	for _, lvl := range []string{"", "debug", "INFO", "warning", "error", "trace"} {
		if !ValidLevel(lvl) {
			t.Fatalf("ValidLevel(%q) = false", lvl)
		}
	}
	if ValidLevel("loud") {
		t.Fatal("ValidLevel(loud) = true")
	}
}
