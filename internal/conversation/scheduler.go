package conversation

import (
	"sync"
	"time"
)

// Scheduler runs keyed callbacks after a delay. Scheduling a key that is
// already pending replaces it, and Stop cancels everything, so no timer
// outlives its session.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	seq     map[string]uint64
	stopped bool
}

// NewScheduler returns an empty Scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		seq:    make(map[string]uint64),
	}
}

// After runs fn once d has elapsed unless key is cancelled or replaced
// first. It is a no-op after Stop.
func (s *Scheduler) After(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	s.seq[key]++
	gen := s.seq[key]
	s.timers[key] = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.stopped || s.seq[key] != gen {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the callback for key and reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[key]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, key)
	s.seq[key]++
	return true
}

// Pending reports whether a callback is scheduled for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels all pending callbacks and disables the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}
