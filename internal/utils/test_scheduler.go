package utils

import (
	"time"

	"github.com/karagenc/actionsocket/internal/sync"
)

// Manually driven replacement for time.AfterFunc.
// Timers only fire when the test calls Fire.
type TestScheduler struct {
	mu     sync.Mutex
	timers []*TestTimer
}

func NewTestScheduler() *TestScheduler {
	return new(TestScheduler)
}

type TestTimer struct {
	Delay time.Duration

	s       *TestScheduler
	f       func()
	stopped bool
	fired   bool
}

func (t *TestTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *TestScheduler) AfterFunc(d time.Duration, f func()) interface{ Stop() bool } {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &TestTimer{Delay: d, s: s, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Number of timers armed so far.
func (s *TestScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Timers that are neither stopped nor fired.
func (s *TestScheduler) Pending() []*TestTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*TestTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			pending = append(pending, t)
		}
	}
	return pending
}

// Fire the oldest pending timer on the calling goroutine.
// Returns false if there is nothing to fire.
func (s *TestScheduler) Fire() bool {
	s.mu.Lock()
	var t *TestTimer
	for _, timer := range s.timers {
		if !timer.stopped && !timer.fired {
			t = timer
			break
		}
	}
	if t == nil {
		s.mu.Unlock()
		return false
	}
	t.fired = true
	s.mu.Unlock()

	t.f()
	return true
}

// Mark the oldest pending timer as fired without running it.
// The returned callback runs it late. Returns nil if there is nothing pending.
func (s *TestScheduler) Expire() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			return t.f
		}
	}
	return nil
}
