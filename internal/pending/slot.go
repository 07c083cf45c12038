// Package pending provides a single-slot register for one deferred action.
package pending

import "sync"

// Slot holds at most one action. Arming replaces any previous action; firing
// takes the action out of the slot before running it, so it runs at most once.
type Slot struct {
	mu     sync.Mutex
	action func()
	seq    Ticket
}

// Ticket identifies one Arm call.
type Ticket uint64

// Arm stores action, discarding whatever was armed before.
func (s *Slot) Arm(action func()) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.action = action
	return s.seq
}

// Fire runs the armed action, if any, and reports whether one ran.
func (s *Slot) Fire() bool {
	action := s.take()
	if action == nil {
		return false
	}
	action()
	return true
}

// Clear drops the armed action without running it.
func (s *Slot) Clear() bool {
	return s.take() != nil
}

// ClearIf drops the armed action only if it is still the one armed under t.
func (s *Slot) ClearIf(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.action == nil || s.seq != t {
		return false
	}
	s.action = nil
	return true
}

// Armed reports whether an action is waiting.
func (s *Slot) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.action != nil
}

func (s *Slot) take() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	action := s.action
	s.action = nil
	return action
}
