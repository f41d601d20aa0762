//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"

	"minutely/internal/app"
)

// notifyControl subscribes to SIGUSR1 (tick now) and SIGHUP (reload config).
func notifyControl() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGHUP)
	return ch
}

func handleControl(a *app.App, sig os.Signal) {
	switch sig {
	case syscall.SIGUSR1:
		a.RequestTick()
	case syscall.SIGHUP:
		_ = a.Reload()
	}
}
