// Package monitor listens for an interrupt while the assistant runs and raises a
// Signal the supervisor polls.
package monitor

import "sync/atomic"

// Signal is the one cross-goroutine flag of a session. Monitors Set it; the supervisor
// Clears it before each session starts.
type Signal struct {
	set  atomic.Bool
	wake chan struct{}
}

// NewSignal returns a cleared signal.
func NewSignal() *Signal {
	return &Signal{wake: make(chan struct{}, 1)}
}

// Set raises the flag and wakes one waiter. Repeated calls are no-ops.
func (s *Signal) Set() {
	if s.set.CompareAndSwap(false, true) {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// IsSet reports whether the flag is raised.
func (s *Signal) IsSet() bool { return s.set.Load() }

// Clear lowers the flag and drains any pending wake.
func (s *Signal) Clear() {
	s.set.Store(false)
	select {
	case <-s.wake:
	default:
	}
}

// Wake delivers at most one value per Set.
func (s *Signal) Wake() <-chan struct{} { return s.wake }
