// Package eventloop provides an embeddable, single-threaded, cooperative
// event loop, multiplexing timers and file descriptor readiness, for
// scripting runtimes with no concurrency of their own.
//
// # Architecture
//
// A [Loop] owns three structures:
//   - the timer table, a fixed-capacity list sorted by descending expiry,
//     such that the nearest timer is always the last entry
//   - the expiry cursor, holding the timer whose callback is running, so the
//     callback may freely create and delete timers, including itself
//   - the descriptor poll table, a fixed-capacity list of [Registration],
//     compacted before each wait
//
// Each tick of [Loop.Run] expires due timers (at most a configured number),
// compacts the poll table, then blocks in the [Poller] until the nearest
// timer is due or a descriptor is ready, and finally dispatches ready
// descriptors to the [FDHandler]. The loop terminates when an exit is
// requested, or when there are neither timers nor descriptors left.
//
// Timer callbacks are opaque to the loop: they are held by a
// [CallbackStore], keyed by [TimerID]. [FuncStore] holds Go functions, and
// scripting engine bindings supply their own.
//
// # Platform Support
//
// The default [Poller] uses poll(2) on Linux and macOS. Elsewhere, only
// timers are supported.
//
// # Thread Safety
//
// There is no locking. Registration methods must be called before
// [Loop.Run], or from callbacks, which always run on the loop goroutine.
// [Loop.RequestExit] may be called from any goroutine, but is only observed
// between callbacks, and after the wait in progress (if any) returns.
//
// # Usage
//
//	loop, err := eventloop.New(eventloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	js, err := eventloop.NewJS(loop)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := js.SetTimeout(func() {
//	    fmt.Println("Hello after 100ms")
//	}, 100); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Error Types
//
//   - [RangeError]: a table is out of slots, or invalid configuration
//   - [PanicError]: wraps a value recovered from a panicking callback
//   - [CallbackError]: a failed callback, with the originating identifier
//
// Callback failures never stop the loop, they are reported to the
// [DiagnosticSink] (by default, logged).
package eventloop
