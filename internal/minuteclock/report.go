package minuteclock

import (
	"time"

	"minutely/internal/eventbus"
	logx "minutely/pkg/logx"
)

// Bus event types published when a bus is attached with WithBus.
const (
	EventTick           = "minute.tick"            // Data: Report
	EventCallbackFailed = "minute.callback_failed" // Data: Failure
)

// Result is the outcome of one callback invocation within a tick.
type Result struct {
	ID       uint64
	Name     string
	Err      error
	Panicked bool
	Stack    string
	Duration time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Report summarizes one tick.
type Report struct {
	Seq      uint64
	Due      time.Time // boundary the tick was armed for (or the call time for TickNow)
	Started  time.Time
	Duration time.Duration
	Manual   bool
	Results  []Result
}

// Failed returns the results that did not succeed, in dispatch order.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Failure is the payload of EventCallbackFailed.
type Failure struct {
	Seq    uint64
	Due    time.Time
	Result Result
}

// Sink receives a Report after every tick. Report is called on the tick's
// goroutine; implementations should not block.
type Sink interface {
	Report(r Report)
}

type SinkFunc func(r Report)

func (f SinkFunc) Report(r Report) { f(r) }

// LogSink logs every failed callback at error level and a per-tick summary
// at debug level.
func LogSink(log logx.Logger) Sink {
	return SinkFunc(func(r Report) {
		for _, res := range r.Failed() {
			log.Error("minute timer callback failed",
				logx.Uint64("tick", r.Seq),
				logx.Uint64("callback_id", res.ID),
				logx.String("callback", res.Name),
				logx.Bool("panic", res.Panicked),
				logx.Duration("dur", res.Duration),
				logx.Err(res.Err),
				logx.Stack(res.Stack),
			)
		}
		if log.Enabled(logx.LevelDebug) {
			log.Debug("tick dispatched",
				logx.Uint64("tick", r.Seq),
				logx.Time("due", r.Due),
				logx.Int("callbacks", len(r.Results)),
				logx.Int("failed", len(r.Failed())),
				logx.Duration("dur", r.Duration),
				logx.Bool("manual", r.Manual),
			)
		}
	})
}

// busSink publishes tick and failure events.
func busSink(bus eventbus.Bus) Sink {
	return SinkFunc(func(r Report) {
		bus.Publish(eventbus.Event{Type: EventTick, Time: r.Started, Data: r})
		for _, res := range r.Failed() {
			bus.Publish(eventbus.Event{Type: EventCallbackFailed, Time: r.Started, Data: Failure{Seq: r.Seq, Due: r.Due, Result: res}})
		}
	})
}
