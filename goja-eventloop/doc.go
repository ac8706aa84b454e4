// Package gojaeventloop binds the [eventloop] package to the [goja]
// JavaScript runtime.
//
// # Overview
//
// The [Adapter] owns an [eventloop.Loop], and a [goja.Runtime] supplied by
// the caller. Timer callbacks are kept in a stash object, private to the
// adapter, keyed by the decimal timer ID, so a callback stays reachable for
// exactly as long as its timer exists.
//
// # Bound JavaScript APIs
//
// After calling [Adapter.Bind], the following globals are available:
//
//   - EventLoop.createTimer(callback, delay, oneshot) → timer ID
//   - EventLoop.deleteTimer(id) → boolean, false if no such timer
//   - EventLoop.listenFd(fd, events) : events of 0 stops listening
//   - EventLoop.requestExit()
//   - EventLoop.POLLIN, POLLPRI, POLLOUT, POLLERR, POLLHUP, POLLNVAL
//   - setTimeout(callback, delay?, ...args) → timer ID
//   - setInterval(callback, delay?, ...args) → timer ID
//   - clearTimeout(id), clearInterval(id)
//
// Creating a timer when the timer table is full throws a RangeError, and
// listening on a new descriptor when the poll table is full throws an Error.
//
// # Descriptor Events
//
// Readiness is delivered by calling EventLoop.fdPollHandler(fd, revents),
// with this bound to EventLoop. The handler is looked up on every event, and
// is typically assigned once, by the script:
//
//	EventLoop.fdPollHandler = function (fd, revents) {
//	    if (revents & this.POLLIN) {
//	        // ...
//	    }
//	};
//
// # Failures
//
// A callback that throws does not stop the loop. The exception is reported
// to the loop's [eventloop.DiagnosticSink], as is any descriptor event
// received while fdPollHandler is not a function ([ErrMissingPollHandler]).
//
// # Modules
//
// [Adapter.Register] adds the "eventloop" and "socket" modules to a
// [require.Registry]. The socket module is a small non-blocking IPv4 TCP
// API, see [RequireSocket].
//
// # Usage
//
//	runtime := goja.New()
//	adapter, err := gojaeventloop.New(runtime, eventloop.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry := require.NewRegistry()
//	adapter.Register(registry)
//	registry.Enable(runtime)
//	if err := adapter.Bind(); err != nil {
//	    log.Fatal(err)
//	}
//	err = adapter.RunString(ctx, `setTimeout(function () { EventLoop.requestExit(); }, 100);`)
//
// [require.Registry]: https://pkg.go.dev/github.com/dop251/goja_nodejs/require#Registry
package gojaeventloop
