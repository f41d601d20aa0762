package systemd

import (
	"errors"
	"testing"
)

type recorder struct {
	sent   []string
	accept bool
	err    error
}

func (r *recorder) send(_ bool, state string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.sent = append(r.sent, state)
	return r.accept, nil
}

func TestNotifierSendsStates(t *testing.T) {
	t.Parallel()

	r := &recorder{accept: true}
	n := &Notifier{send: r.send}

	if err := n.Ready("waiting for first tick"); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	_ = n.Status("tick 1")
	_ = n.Status("tick 1")
	_ = n.Watchdog()
	_ = n.Stopping()

	want := []string{
		"READY=1\nSTATUS=waiting for first tick",
		"STATUS=tick 1",
		"WATCHDOG=1",
		"STOPPING=1",
	}
	if len(r.sent) != len(want) {
		t.Fatalf("sent=%q want %q", r.sent, want)
	}
	for i := range want {
		if r.sent[i] != want[i] {
			t.Fatalf("sent[%d]=%q want %q", i, r.sent[i], want[i])
		}
	}
}

func TestNotifierDisablesWithoutSocket(t *testing.T) {
	t.Parallel()

	r := &recorder{accept: false}
	n := &Notifier{send: r.send}

	_ = n.Ready("x")
	if n.Enabled() {
		t.Fatalf("expected notifier to disable itself")
	}
	_ = n.Watchdog()
	if len(r.sent) != 1 {
		t.Fatalf("sent after disable: %q", r.sent)
	}
}

func TestNotifierWrapsError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	n := &Notifier{send: (&recorder{err: boom}).send}
	if err := n.Watchdog(); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}

	var nilN *Notifier
	if err := nilN.Ready("x"); err != nil {
		t.Fatalf("nil notifier: %v", err)
	}
}
