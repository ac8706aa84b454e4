package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
// State Machine:
//
//	StateIdle (0) → StateRunning (1)        [Run()]
//	StateRunning (1) → StateTerminated (2)  [exit requested, nothing left to wait for, ctx done, fatal error]
//	StateTerminated (2) → (terminal)
//
// There is no re-entry after StateTerminated.
type LoopState uint64

const (
	// StateIdle indicates the loop has been created but not started.
	StateIdle LoopState = 0
	// StateRunning indicates the loop is dispatching timers and descriptors.
	StateRunning LoopState = 1
	// StateTerminated indicates the loop has stopped, and cannot be restarted.
	StateTerminated LoopState = 2
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state holder, so the state may be observed from
// any goroutine while the loop runs.
type FastState struct {
	v atomic.Uint64
}

// NewFastState creates a new state machine in the Idle state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateIdle))
	return s
}

// Load returns the current state atomically.
func (s *FastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state.
// Only used for the irreversible StateTerminated.
func (s *FastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal returns true if the current state is terminal (Terminated).
func (s *FastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}
