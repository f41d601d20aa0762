package hooks

import (
	"errors"
	"sync"

	"minutely/internal/config"
	"minutely/internal/minuteclock"
	logx "minutely/pkg/logx"
)

// Registrar is the subset of *minuteclock.Scheduler a Set needs.
type Registrar interface {
	RegisterNamed(name string, fn minuteclock.Callback) minuteclock.Handle
}

// Set keeps the scheduler's hook callbacks in step with the config.
type Set struct {
	reg Registrar
	log logx.Logger

	mu      sync.Mutex
	handles map[string]minuteclock.Handle
}

func NewSet(reg Registrar, log logx.Logger) *Set {
	return &Set{
		reg:     reg,
		log:     log.With(logx.String("comp", "hooks")),
		handles: map[string]minuteclock.Handle{},
	}
}

// Apply replaces every registered hook with the compiled form of cfgs.
// Hooks that fail to compile are skipped and reported in the joined error;
// the rest are still registered.
func (s *Set) Apply(cfgs []config.HookConfig) error {
	compiled := make([]*Hook, 0, len(cfgs))
	var errs []error
	for _, c := range cfgs {
		h, err := Compile(c, s.log)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if h != nil {
			compiled = append(compiled, h)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, hd := range s.handles {
		hd.Unregister()
		delete(s.handles, name)
	}
	for _, h := range compiled {
		s.handles[h.Name] = s.reg.RegisterNamed("hook:"+h.Name, h.Callback())
	}
	s.log.Info("hooks applied", logx.Int("count", len(compiled)), logx.Int("skipped", len(errs)))
	return errors.Join(errs...)
}

// Clear unregisters every hook.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, hd := range s.handles {
		hd.Unregister()
		delete(s.handles, name)
	}
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
