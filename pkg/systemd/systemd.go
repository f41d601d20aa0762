// Package systemd sends service state notifications to the systemd
// manager. Every method is a no-op when the process was not started by
// systemd with Type=notify (NOTIFY_SOCKET unset).
package systemd

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// sendFunc matches daemon.SdNotify.
type sendFunc func(unsetEnv bool, state string) (bool, error)

type Notifier struct {
	send sendFunc

	mu       sync.Mutex
	disabled bool
	status   string
}

func NewNotifier() *Notifier {
	return &Notifier{send: daemon.SdNotify}
}

// notify sends state. After the first "not supported" answer the notifier
// disables itself so callers need not check.
func (n *Notifier) notify(states ...string) error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.disabled {
		return nil
	}
	sent, err := n.send(false, strings.Join(states, "\n"))
	if err != nil {
		return fmt.Errorf("sd_notify: %w", err)
	}
	if !sent {
		n.disabled = true
	}
	return nil
}

// Enabled reports whether notifications reach systemd. It is true until the
// first send finds no socket.
func (n *Notifier) Enabled() bool {
	if n == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return !n.disabled
}

func (n *Notifier) Ready(status string) error {
	return n.notify(daemon.SdNotifyReady, "STATUS="+status)
}

// Status updates the free-form status line shown by systemctl. Repeats of
// the current status are not sent.
func (n *Notifier) Status(status string) error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	same := n.status == status
	n.status = status
	n.mu.Unlock()
	if same {
		return nil
	}
	return n.notify("STATUS=" + status)
}

func (n *Notifier) Watchdog() error { return n.notify(daemon.SdNotifyWatchdog) }

func (n *Notifier) Reloading() error { return n.notify(daemon.SdNotifyReloading) }

func (n *Notifier) Stopping() error { return n.notify(daemon.SdNotifyStopping) }

// WatchdogInterval returns how often to ping the watchdog: half the
// configured WATCHDOG_USEC, or 0 when the watchdog is off.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}
