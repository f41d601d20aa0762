package minuteclock

import (
	"context"
	"fmt"
	"strings"
)

// Callback is invoked once per tick. The context is canceled by Destroy and
// carries the tick's boundary (see TickTime). A non-nil error marks the
// invocation as failed; it is reported and otherwise ignored.
type Callback func(ctx context.Context) error

type entry struct {
	id   uint64
	name string
	fn   Callback
}

// Handle identifies one registry entry. The zero Handle is valid and
// unregisters nothing.
type Handle struct {
	s  *Scheduler
	id uint64
}

func (h Handle) ID() uint64 { return h.id }

// Unregister removes the entry if it is still registered and reports whether
// it did. Later calls are no-ops, so h.Unregister can be handed out as a plain
// func().
func (h Handle) Unregister() bool {
	if h.s == nil || h.id == 0 {
		return false
	}
	return h.s.unregister(h.id)
}

// Register appends fn to the registry. Registering the same function twice
// yields two independent entries. A nil fn is ignored and yields the zero
// Handle.
func (s *Scheduler) Register(fn Callback) Handle {
	return s.RegisterNamed("", fn)
}

// RegisterFunc registers a callback that takes no context and returns
// nothing; only a panic marks it as failed.
func (s *Scheduler) RegisterFunc(fn func()) Handle {
	if fn == nil {
		return Handle{}
	}
	return s.Register(func(context.Context) error {
		fn()
		return nil
	})
}

// RegisterNamed is Register with a name used in reports and logs.
func (s *Scheduler) RegisterNamed(name string, fn Callback) Handle {
	if fn == nil {
		return Handle{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("callback-%d", id)
	}
	s.entries = append(s.entries, entry{id: id, name: name, fn: fn})
	s.log.Debug("callback registered", logxCallback(id, name)...)
	return Handle{s: s, id: id}
}

func (s *Scheduler) unregister(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id != id {
			continue
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		s.log.Debug("callback unregistered", logxCallback(e.id, e.name)...)
		return true
	}
	return false
}

// Len returns the number of registered callbacks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// snapshotLocked returns a private copy of the registry. Call with s.mu held.
func (s *Scheduler) snapshotLocked() []entry {
	out := make([]entry, len(s.entries))
	copy(out, s.entries)
	return out
}
