package minuteclock

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"minutely/internal/eventbus"
	logx "minutely/pkg/logx"
)

// Clock is the timer facility the scheduler runs on. clockwork.Clock
// satisfies it.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithSink replaces the default LogSink.
func WithSink(sink Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithBus publishes EventTick and EventCallbackFailed in addition to the sink.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

func WithDriftPolicy(p DriftPolicy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// Scheduler dispatches registered callbacks on every minute boundary.
//
// All methods are safe for concurrent use, including from inside a callback.
type Scheduler struct {
	mu sync.Mutex

	clock  Clock
	log    logx.Logger
	sink   Sink
	bus    eventbus.Bus
	policy DriftPolicy

	entries []entry
	nextID  uint64

	// Trigger chain. gen is bumped by Start and Stop; a fire whose gen no
	// longer matches belongs to a canceled chain and is dropped.
	timer    clockwork.Timer
	gen      uint64
	running  bool
	due      time.Time
	anchored bool // fixed-period grid anchored by the chain's first fire

	ctx    context.Context
	cancel context.CancelFunc

	// dispatchMu serializes ticks across chains.
	dispatchMu sync.Mutex

	statsMu sync.Mutex
	ticks   uint64
	last    *Report
}

// New creates a scheduler and starts it.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock: clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	if s.sink == nil {
		s.sink = LogSink(s.log)
	}
	s.Start()
	return s
}

// Start (re)aligns the trigger to the next minute boundary, replacing any
// pending trigger.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	restart := s.running
	s.cancelTimerLocked()
	s.gen++
	s.running = true
	s.anchored = false
	if s.ctx == nil || s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	now := s.clock.Now()
	s.armLocked(s.gen, now, NextBoundary(now))
	s.log.Info("minute scheduler started",
		logx.Bool("restart", restart),
		logx.String("policy", s.policy.String()),
		logx.Time("next", s.due),
		logx.Int("callbacks", len(s.entries)),
	)
}

// Stop cancels the pending trigger. The registry is kept. A callback that is
// already running is allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancelTimerLocked()
	s.gen++
	s.running = false
	s.due = time.Time{}
	s.log.Info("minute scheduler stopped", logx.Int("callbacks", len(s.entries)))
}

// Destroy stops the scheduler, clears the registry and cancels the context
// passed to callbacks. Start may still be called afterwards and runs with an
// empty registry.
func (s *Scheduler) Destroy() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = nil
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("minute scheduler destroyed", logx.Int("cleared", n))
}

// SetDriftPolicy switches the re-arm policy. A running scheduler is
// re-aligned so the new policy applies from the next boundary.
func (s *Scheduler) SetDriftPolicy(p DriftPolicy) {
	s.mu.Lock()
	changed := s.policy != p
	s.policy = p
	running := s.running
	s.mu.Unlock()
	if changed && running {
		s.Start()
	}
}

// Running reports whether a trigger chain is live.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Next returns the instant the pending trigger is armed for.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.due.IsZero() {
		return time.Time{}, false
	}
	return s.due, true
}

// MillisecondsUntilNextMinute reads the scheduler's clock and returns the
// delay to the next boundary.
func (s *Scheduler) MillisecondsUntilNextMinute() int64 {
	return MillisecondsUntilNextMinute(s.clock.Now())
}

// TickNow dispatches the current registry immediately without touching the
// trigger chain. It waits for an in-flight tick to finish first, so it must
// not be called from inside a callback.
func (s *Scheduler) TickNow() Report {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	snap := s.snapshotLocked()
	ctx := s.ctx
	now := s.clock.Now()
	s.mu.Unlock()

	return s.dispatch(ctx, now, snap, true)
}

// Snapshot is a point-in-time view for status output.
type Snapshot struct {
	Running    bool
	Policy     DriftPolicy
	Callbacks  []string
	Next       time.Time
	Ticks      uint64
	LastReport *Report
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Running:   s.running,
		Policy:    s.policy,
		Callbacks: make([]string, 0, len(s.entries)),
	}
	if s.running {
		snap.Next = s.due
	}
	for _, e := range s.entries {
		snap.Callbacks = append(snap.Callbacks, e.name)
	}
	s.mu.Unlock()

	s.statsMu.Lock()
	snap.Ticks = s.ticks
	if s.last != nil {
		r := *s.last
		snap.LastReport = &r
	}
	s.statsMu.Unlock()
	return snap
}

// armLocked schedules the fire of chain gen for due. Call with s.mu held.
func (s *Scheduler) armLocked(gen uint64, now, due time.Time) {
	s.due = due
	s.timer = s.clock.AfterFunc(due.Sub(now), func() { s.fire(gen) })
}

func (s *Scheduler) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) fire(gen uint64) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	due := s.due
	snap := s.snapshotLocked()
	ctx := s.ctx
	firedAt := s.clock.Now()
	s.mu.Unlock()

	s.dispatch(ctx, due, snap, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || gen != s.gen {
		return
	}
	now := s.clock.Now()
	switch s.policy {
	case PolicyFixedPeriod:
		// The first fire of the chain anchors the grid; later fires stay on it.
		anchor := due
		if !s.anchored {
			anchor = firedAt
			s.anchored = true
		}
		s.armLocked(gen, now, fixedPeriodNext(now, anchor))
	default:
		s.armLocked(gen, now, selfCorrectingNext(now, due))
	}
}

func (s *Scheduler) dispatch(ctx context.Context, due time.Time, snap []entry, manual bool) Report {
	started := s.clock.Now()
	s.statsMu.Lock()
	s.ticks++
	seq := s.ticks
	s.statsMu.Unlock()
	rep := Report{
		Seq:     seq,
		Due:     due,
		Started: started,
		Manual:  manual,
		Results: make([]Result, 0, len(snap)),
	}
	tctx := withTick(ctx, due)
	for _, e := range snap {
		rep.Results = append(rep.Results, s.invoke(tctx, e))
	}
	rep.Duration = s.clock.Now().Sub(started)
	s.statsMu.Lock()
	s.last = &rep
	s.statsMu.Unlock()

	if s.sink != nil {
		s.sink.Report(rep)
	}
	if s.bus != nil {
		busSink(s.bus).Report(rep)
	}
	return rep
}

func (s *Scheduler) invoke(ctx context.Context, e entry) (res Result) {
	res = Result{ID: e.id, Name: e.name}
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Panicked = true
			res.Err = fmt.Errorf("panic: %v", r)
			res.Stack = string(debug.Stack())
		}
		res.Duration = s.clock.Now().Sub(start)
	}()
	res.Err = e.fn(ctx)
	return res
}

func logxCallback(id uint64, name string) []logx.Field {
	return []logx.Field{logx.Uint64("callback_id", id), logx.String("callback", name)}
}

type tickKey struct{}

func withTick(ctx context.Context, due time.Time) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tickKey{}, due)
}

// TickTime returns the boundary of the tick a callback is running for.
func TickTime(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(tickKey{}).(time.Time)
	return t, ok
}
