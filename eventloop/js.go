// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"errors"
)

// maxSafeInteger is `2^53 - 1`, the maximum safe integer in JavaScript
const maxSafeInteger = 9007199254740991

// SetTimeoutFunc is a callback function for [JS.SetTimeout] and [JS.SetInterval].
type SetTimeoutFunc func()

// JS provides JavaScript-style timer operations on top of [Loop], for Go
// code sharing a loop with (or standing in for) a scripting runtime.
//
// Timer Semantics:
//   - [JS.SetTimeout] schedules a one-time callback after a delay
//   - [JS.SetInterval] schedules a repeating callback, rescheduled relative
//     to the time it fired
//   - [JS.ClearTimeout] and [JS.ClearInterval] cancel scheduled timers
//
// A panicking callback is reported to the loop's [DiagnosticSink], and does
// not stop the loop. Like the [Loop] itself, JS must only be used from the
// loop goroutine, or before the loop runs.
type JS struct {
	loop *Loop
}

// NewJS creates a JS adapter bound to loop, which must use a [FuncStore]
// (the default) as its [CallbackStore].
func NewJS(loop *Loop) (*JS, error) {
	if loop == nil {
		return nil, errors.New("eventloop: loop cannot be nil")
	}
	if _, ok := loop.store.(*FuncStore); !ok {
		return nil, errors.New("eventloop: JS requires a loop using a FuncStore")
	}
	return &JS{loop: loop}, nil
}

// Loop returns the underlying [Loop] that this JS adapter is bound to.
func (js *JS) Loop() *Loop {
	return js.loop
}

// SetTimeout schedules a function to run once, after delayMs milliseconds.
// A nil fn returns 0 without scheduling.
func (js *JS) SetTimeout(fn SetTimeoutFunc, delayMs int) (TimerID, error) {
	return js.schedule(fn, delayMs, true)
}

// SetInterval schedules a function to run every delayMs milliseconds, until
// cleared. A nil fn returns 0 without scheduling.
func (js *JS) SetInterval(fn SetTimeoutFunc, delayMs int) (TimerID, error) {
	return js.schedule(fn, delayMs, false)
}

func (js *JS) schedule(fn SetTimeoutFunc, delayMs int, oneshot bool) (TimerID, error) {
	if fn == nil {
		return 0, nil
	}

	id, err := js.loop.CreateTimer(fn, float64(delayMs), oneshot)
	if err != nil {
		return 0, err
	}

	// Safety check for JS integer limits
	if uint64(id) > maxSafeInteger {
		js.loop.DeleteTimer(id)
		panic("eventloop: timer ID exceeded MAX_SAFE_INTEGER")
	}

	return id, nil
}

// ClearTimeout cancels a timer by its ID, reporting whether it existed.
// Safe to call multiple times for the same ID, and from within the
// timer's own callback.
func (js *JS) ClearTimeout(id TimerID) bool {
	return js.loop.DeleteTimer(id)
}

// ClearInterval cancels an interval timer by its ID. Timeouts and intervals
// share an ID space, so this is equivalent to [JS.ClearTimeout].
func (js *JS) ClearInterval(id TimerID) bool {
	return js.loop.DeleteTimer(id)
}
