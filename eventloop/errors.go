// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrCapacityExceeded is returned when the timer table or the descriptor
	// poll table has no free slot.
	ErrCapacityExceeded = errors.New("eventloop: capacity exceeded")

	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrLoopTerminated is returned when Run() is called on a loop that has terminated.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrReentrantRun is returned when Run() is called from within a callback.
	ErrReentrantRun = errors.New("eventloop: cannot call Run() from within the loop")

	// ErrInvalidDescriptor is returned when listening on a descriptor that
	// cannot be represented in the poll table (zero marks an unused slot).
	ErrInvalidDescriptor = errors.New("eventloop: invalid descriptor")

	// ErrPollerUnsupported is returned by the default poller on platforms
	// without poll(2).
	ErrPollerUnsupported = errors.New("eventloop: descriptor polling is not supported on this platform")

	// ErrNoFDHandler is reported when a descriptor becomes ready, but the
	// loop has no [FDHandler].
	ErrNoFDHandler = errors.New("eventloop: no descriptor handler")

	// ErrCallbackNotFound is returned by a [CallbackStore] asked to invoke an
	// id it holds no callback for.
	ErrCallbackNotFound = errors.New("eventloop: callback not found")
)

// RangeError represents a range error, similar to JavaScript's RangeError.
// It is used when a table is out of slots, and for invalid configuration.
type RangeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	if e.Message == "" {
		return "range error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RangeError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// If the panic Value is not an error, returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// CallbackError is a failure raised by a timer or descriptor callback. It
// is reported to the [DiagnosticSink] and never stops the loop.
type CallbackError struct {
	Cause   error
	TimerID TimerID
	// FD is set for descriptor callbacks, and is zero for timers.
	FD int
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	if e.FD != 0 {
		return fmt.Sprintf("%v (while running callback on fd %d)", e.Cause, e.FD)
	}
	return fmt.Sprintf("%v (while running callback id %d)", e.Cause, e.TimerID)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *CallbackError) Unwrap() error {
	return e.Cause
}

// WrapError wraps an error with a message, such that
// errors.Is(result, cause) == true.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}

func errTimerCapacity() error {
	return &RangeError{Message: "out of timer slots", Cause: ErrCapacityExceeded}
}

func errDescriptorCapacity() error {
	return WrapError("out of fd slots", ErrCapacityExceeded)
}
