package eventloop

import (
	"errors"
	"fmt"
)

// CallbackStore is the scripting engine's table of timer callbacks, keyed by
// [TimerID]. The loop stores an entry when a timer is created, invokes it
// each time the timer fires, and removes it exactly once, when the timer is
// deleted or a one-shot timer completes.
//
// Implementations are only ever called from the loop goroutine.
type CallbackStore interface {
	// Store registers the callback for a new timer. A non-nil error aborts
	// timer creation.
	Store(id TimerID, callback any) error

	// Invoke calls the callback registered for id. A non-nil error is
	// reported as a callback failure.
	Invoke(id TimerID) error

	// Remove drops the callback registered for id.
	Remove(id TimerID)
}

// FDHandler receives descriptor readiness, with the observed events. It may
// call back into the [Loop] (e.g. ListenFD, CreateTimer). A non-nil error is
// reported as a callback failure, and does not stop the loop.
type FDHandler func(fd int, events IOEvents) error

// FuncStore is a [CallbackStore] holding Go functions. Supported callback
// types are func(), func() error, and [SetTimeoutFunc].
type FuncStore struct {
	callbacks map[TimerID]func() error
}

// NewFuncStore returns an empty [FuncStore].
func NewFuncStore() *FuncStore {
	return &FuncStore{callbacks: make(map[TimerID]func() error)}
}

// Store implements [CallbackStore].
func (s *FuncStore) Store(id TimerID, callback any) error {
	var fn func() error
	switch cb := callback.(type) {
	case func() error:
		fn = cb
	case func():
		if cb != nil {
			fn = func() error { cb(); return nil }
		}
	case SetTimeoutFunc:
		if cb != nil {
			fn = func() error { cb(); return nil }
		}
	default:
		return fmt.Errorf("eventloop: unsupported callback type %T", callback)
	}
	if fn == nil {
		return errors.New("eventloop: nil callback")
	}
	s.callbacks[id] = fn
	return nil
}

// Invoke implements [CallbackStore].
func (s *FuncStore) Invoke(id TimerID) error {
	fn, ok := s.callbacks[id]
	if !ok {
		return ErrCallbackNotFound
	}
	return fn()
}

// Remove implements [CallbackStore].
func (s *FuncStore) Remove(id TimerID) {
	delete(s.callbacks, id)
}

// Has reports whether a callback is registered for id.
func (s *FuncStore) Has(id TimerID) bool {
	_, ok := s.callbacks[id]
	return ok
}

// Len returns the number of registered callbacks.
func (s *FuncStore) Len() int {
	return len(s.callbacks)
}

// DiagnosticKind identifies where a [Diagnostic] originated.
type DiagnosticKind int

const (
	// DiagnosticTimer is a failed timer callback.
	DiagnosticTimer DiagnosticKind = iota
	// DiagnosticDescriptor is a failed descriptor handler.
	DiagnosticDescriptor
	// DiagnosticWait is a failed blocking wait.
	DiagnosticWait
)

// String returns a human-readable representation of the kind.
func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticTimer:
		return "timer"
	case DiagnosticDescriptor:
		return "descriptor"
	case DiagnosticWait:
		return "wait"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// Diagnostic describes a failure that the loop recovered from.
type Diagnostic struct {
	Err     error
	Kind    DiagnosticKind
	TimerID TimerID
	FD      int
}

// Message formats the diagnostic, including the originating identifier.
func (d Diagnostic) Message() string {
	if ce := d.CallbackError(); ce != nil {
		return ce.Error()
	}
	return fmt.Sprintf("%v (while waiting for descriptors)", d.Err)
}

// CallbackError returns the diagnostic as a [CallbackError], or nil if it
// did not originate from a callback.
func (d Diagnostic) CallbackError() *CallbackError {
	switch d.Kind {
	case DiagnosticTimer:
		return &CallbackError{Cause: d.Err, TimerID: d.TimerID}
	case DiagnosticDescriptor:
		return &CallbackError{Cause: d.Err, FD: d.FD}
	default:
		return nil
	}
}

// DiagnosticSink receives uncaught callback failures.
type DiagnosticSink interface {
	Report(d Diagnostic)
}

// DiagnosticSinkFunc adapts a function to [DiagnosticSink].
type DiagnosticSinkFunc func(d Diagnostic)

// Report implements [DiagnosticSink].
func (f DiagnosticSinkFunc) Report(d Diagnostic) { f(d) }
