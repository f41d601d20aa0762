package app

import (
	"context"
	"fmt"
	"time"

	"minutely/internal/minuteclock"
	logx "minutely/pkg/logx"
	"minutely/pkg/systemd"
)

// startNotify reports READY and then keeps systemd's status line and
// watchdog fed from tick events.
func (a *App) startNotify() {
	if err := a.notify.Ready(a.statusLine()); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	}
	if !a.notify.Enabled() {
		a.log.Debug("systemd notify socket not present; notifications disabled")
		return
	}

	events, unsub := a.bus.Subscribe(8, minuteclock.EventTick)
	a.sup.Go("systemd.status", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				r, _ := e.Data.(minuteclock.Report)
				if err := a.notify.Status(tickStatus(r)); err != nil {
					a.log.Debug("systemd status failed", logx.Err(err))
				}
			}
		}
	})

	if every := systemd.WatchdogInterval(); every > 0 {
		a.log.Info("systemd watchdog enabled", logx.Duration("every", every))
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			t := time.NewTicker(every)
			defer t.Stop()
			for {
				select {
				case <-c.Done():
					return nil
				case <-t.C:
					if !a.sched.Running() {
						continue
					}
					if err := a.notify.Watchdog(); err != nil {
						a.log.Debug("systemd watchdog failed", logx.Err(err))
					}
				}
			}
		})
	}
}

func (a *App) statusLine() string {
	snap := a.sched.Snapshot()
	if !snap.Running {
		return fmt.Sprintf("stopped; %d callbacks", len(snap.Callbacks))
	}
	return fmt.Sprintf("next tick %s; %d callbacks; policy %s",
		snap.Next.Format("15:04:05"), len(snap.Callbacks), snap.Policy)
}

func tickStatus(r minuteclock.Report) string {
	failed := len(r.Failed())
	if failed > 0 {
		return fmt.Sprintf("tick %d at %s: %d/%d callbacks failed",
			r.Seq, r.Due.Format("15:04"), failed, len(r.Results))
	}
	return fmt.Sprintf("tick %d at %s: %d callbacks ok", r.Seq, r.Due.Format("15:04"), len(r.Results))
}
