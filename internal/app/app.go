package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"minutely/internal/config"
	"minutely/internal/eventbus"
	"minutely/internal/hooks"
	"minutely/internal/minuteclock"
	"minutely/internal/runtime/supervisor"
	logx "minutely/pkg/logx"
	"minutely/pkg/systemd"
)

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	sched  *minuteclock.Scheduler
	hooks  *hooks.Set
	notify *systemd.Notifier

	sup *supervisor.Supervisor

	// manual is set while a RequestTick dispatch is in flight.
	manual atomic.Bool

	// mu guards the applied config and the heartbeat handle.
	mu        sync.Mutex
	applied   *config.Config
	heartbeat minuteclock.Handle
}

// Option customizes NewApp. Tests use it to inject a fake clock.
type Option func(*options)

type options struct {
	clock  minuteclock.Clock
	notify *systemd.Notifier
}

func WithClock(c minuteclock.Clock) Option { return func(o *options) { o.clock = c } }

func WithNotifier(n *systemd.Notifier) Option { return func(o *options) { o.notify = n } }

// NewApp loads the config at cfgPath and builds every component. The
// scheduler starts aligning immediately; background loops begin in Start.
func NewApp(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewManager(cfgPath, logx.Nop())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logConfig(cfg))
	cfgm.SetLogger(log)

	policy, err := minuteclock.ParseDriftPolicy(cfg.Scheduler.DriftPolicy)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	schedOpts := []minuteclock.Option{
		minuteclock.WithLogger(log.With(logx.String("comp", "minuteclock"))),
		minuteclock.WithBus(bus),
		minuteclock.WithDriftPolicy(policy),
	}
	if o.clock != nil {
		schedOpts = append(schedOpts, minuteclock.WithClock(o.clock))
	}
	sched := minuteclock.New(schedOpts...)

	notify := o.notify
	if notify == nil && cfg.Systemd.Notify {
		notify = systemd.NewNotifier()
	}

	a := &App{
		cfgm:   cfgm,
		log:    log.With(logx.String("comp", "app")),
		logs:   logSvc,
		bus:    bus,
		sched:  sched,
		hooks:  hooks.NewSet(sched, log),
		notify: notify,
	}
	a.apply(cfg)
	return a, nil
}

func (a *App) Scheduler() *minuteclock.Scheduler { return a.sched }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error from a background loop.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	sub := a.cfgm.Subscribe(4)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return nil
			case cfg, ok := <-sub:
				if !ok {
					return nil
				}
				a.reload(cfg)
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 30*time.Second)

	if a.notify != nil {
		a.startNotify()
	}

	next, _ := a.sched.Next()
	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.Int("callbacks", a.sched.Len()),
		logx.Int("hooks", a.hooks.Len()),
		logx.Time("next", next),
	)
	return nil
}

// TickNow runs every callback once outside the minute cadence.
func (a *App) TickNow() minuteclock.Report {
	r := a.sched.TickNow()
	a.log.Info("manual tick", logx.Int("callbacks", len(r.Results)), logx.Int("failed", len(r.Failed())))
	return r
}

// RequestTick starts a manual tick on a supervised goroutine so the caller
// (the signal loop) keeps reading stop signals while hooks run. Stop waits
// for it after Destroy cancels the callback context. It returns false when
// the app is not started or a manual tick is already running.
func (a *App) RequestTick() bool {
	if a.sup == nil {
		return false
	}
	if !a.manual.CompareAndSwap(false, true) {
		a.log.Info("manual tick already running; request ignored")
		return false
	}
	a.sup.Go("manual.tick", func(context.Context) error {
		defer a.manual.Store(false)
		a.TickNow()
		return nil
	})
	return true
}

// Reload re-reads the config file now instead of waiting for fsnotify.
func (a *App) Reload() error {
	ok, err := a.cfgm.Reload()
	if err != nil {
		a.log.Warn("config rejected; keeping previous", logx.Err(err))
		return err
	}
	if !ok {
		a.log.Info("config reload requested; no changes")
	}
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.notify != nil {
		if err := a.notify.Stopping(); err != nil {
			a.log.Debug("systemd notify failed", logx.Err(err))
		}
	}

	// Destroy first so no new tick starts while loops unwind.
	a.sched.Destroy()

	var err error
	if a.sup != nil {
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = a.sup.Stop(stopCtx)
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			a.log.Warn("background loops did not stop in time")
		}
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}
