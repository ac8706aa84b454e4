// Copyright 2026 Joseph Cumines

package gojaeventloop

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-pollloop/eventloop"
)

// ModuleName is the name the EventLoop object is registered under, with
// [Adapter.Register].
const ModuleName = "eventloop"

// ErrMissingPollHandler is the callback failure reported for descriptor
// events, when EventLoop.fdPollHandler is not a function.
var ErrMissingPollHandler = errors.New("gojaeventloop: EventLoop.fdPollHandler is not a function")

// Adapter binds an [eventloop.Loop] to a [goja.Runtime]. Timer callbacks are
// held by a stash object private to the adapter, keyed by the decimal timer
// ID, and descriptor readiness is dispatched to EventLoop.fdPollHandler.
//
// The runtime is not safe for concurrent use, and so neither is the
// adapter: scripts must only be run before [Adapter.Run], or from within
// callbacks.
type Adapter struct {
	runtime   *goja.Runtime
	loop      *eventloop.Loop
	eventLoop *goja.Object
	timers    *timerStash
}

// New creates a new [Adapter], and its [eventloop.Loop], configured by opts.
// The callback store and descriptor handler are owned by the adapter, and
// any [eventloop.WithCallbackStore] or [eventloop.WithFDHandler] in opts is
// ignored.
func New(runtime *goja.Runtime, opts ...eventloop.LoopOption) (*Adapter, error) {
	if runtime == nil {
		return nil, fmt.Errorf("runtime cannot be nil")
	}

	a := &Adapter{
		runtime:   runtime,
		eventLoop: runtime.NewObject(),
		timers:    &timerStash{runtime: runtime, obj: runtime.NewObject()},
	}

	loop, err := eventloop.New(append(opts[:len(opts):len(opts)],
		eventloop.WithCallbackStore(a.timers),
		eventloop.WithFDHandler(a.dispatchFD),
	)...)
	if err != nil {
		return nil, err
	}
	a.loop = loop

	if err := a.initEventLoop(); err != nil {
		return nil, err
	}

	return a, nil
}

// Loop returns the underlying event loop.
func (a *Adapter) Loop() *eventloop.Loop {
	return a.loop
}

// Runtime returns the Goja runtime.
func (a *Adapter) Runtime() *goja.Runtime {
	return a.runtime
}

// EventLoop returns the object installed as the EventLoop global by
// [Adapter.Bind].
func (a *Adapter) EventLoop() *goja.Object {
	return a.eventLoop
}

// Bind installs the EventLoop object, and the setTimeout family of
// functions, as globals of the runtime.
func (a *Adapter) Bind() error {
	for _, b := range [...]struct {
		name  string
		value any
	}{
		{"EventLoop", a.eventLoop},
		{"setTimeout", a.setTimeout},
		{"clearTimeout", a.clearTimer},
		{"setInterval", a.setInterval},
		{"clearInterval", a.clearTimer},
	} {
		if err := a.runtime.Set(b.name, b.value); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.name, err)
		}
	}
	return nil
}

// RequireLoader returns a [require.ModuleLoader] exporting the same object
// as the EventLoop global. It must only be enabled on the adapter's runtime.
func (a *Adapter) RequireLoader() require.ModuleLoader {
	return func(runtime *goja.Runtime, module *goja.Object) {
		if runtime != a.runtime {
			panic(runtime.NewTypeError("eventloop module is bound to a different runtime"))
		}
		if err := module.Set("exports", a.eventLoop); err != nil {
			panic(runtime.NewGoError(err))
		}
	}
}

// Register adds the eventloop module, and the socket module (see
// [RequireSocket]), to the registry.
//
//	registry := require.NewRegistry()
//	adapter.Register(registry)
//	registry.Enable(runtime)
//
// After which:
//
//	const EventLoop = require('eventloop');
//	const socket = require('socket');
func (a *Adapter) Register(registry *require.Registry) {
	registry.RegisterNativeModule(ModuleName, a.RequireLoader())
	registry.RegisterNativeModule(SocketModuleName, RequireSocket())
}

// Run runs the event loop until it terminates. See [eventloop.Loop.Run].
func (a *Adapter) Run(ctx context.Context) error {
	return a.loop.Run(ctx)
}

// RunString evaluates src, then runs the event loop.
func (a *Adapter) RunString(ctx context.Context, src string) error {
	return a.RunScript(ctx, "", src)
}

// RunScript evaluates src as the script name, then runs the event loop. The
// loop is not run if evaluation throws.
func (a *Adapter) RunScript(ctx context.Context, name, src string) error {
	if _, err := a.runtime.RunScript(name, src); err != nil {
		return err
	}
	return a.loop.Run(ctx)
}

func (a *Adapter) initEventLoop() error {
	for _, p := range [...]struct {
		name  string
		value any
	}{
		{"createTimer", a.createTimer},
		{"deleteTimer", a.deleteTimer},
		{"listenFd", a.listenFd},
		{"requestExit", a.requestExit},
		{"POLLIN", uint32(eventloop.EventRead)},
		{"POLLPRI", uint32(eventloop.EventPriority)},
		{"POLLOUT", uint32(eventloop.EventWrite)},
		{"POLLERR", uint32(eventloop.EventError)},
		{"POLLHUP", uint32(eventloop.EventHangup)},
		{"POLLNVAL", uint32(eventloop.EventInvalid)},
	} {
		if err := a.eventLoop.Set(p.name, p.value); err != nil {
			return fmt.Errorf("failed to set EventLoop.%s: %w", p.name, err)
		}
	}
	return nil
}

// createTimer(callback, delay, oneshot) -> id
func (a *Adapter) createTimer(call goja.FunctionCall) goja.Value {
	fn := call.Argument(0)
	if _, ok := goja.AssertFunction(fn); !ok {
		panic(a.runtime.NewTypeError("createTimer requires a function as first argument"))
	}
	return a.schedule(fn, call.Argument(1), call.Argument(2).ToBoolean())
}

// deleteTimer(id) -> bool
func (a *Adapter) deleteTimer(call goja.FunctionCall) goja.Value {
	id, ok := timerID(call.Argument(0))
	return a.runtime.ToValue(ok && a.loop.DeleteTimer(id))
}

// listenFd(fd, events)
func (a *Adapter) listenFd(call goja.FunctionCall) goja.Value {
	fd := call.Argument(0).ToInteger()
	events := call.Argument(1).ToInteger()
	if fd < 0 || events < 0 || events > int64(^uint32(0)) {
		panic(a.newError("RangeError", fmt.Sprintf("invalid listenFd arguments: fd=%d events=%d", fd, events)))
	}
	if err := a.loop.ListenFD(int(fd), eventloop.IOEvents(events)); err != nil {
		if errors.Is(err, eventloop.ErrCapacityExceeded) {
			panic(a.newError("Error", "out of fd slots"))
		}
		panic(a.runtime.NewGoError(err))
	}
	return goja.Undefined()
}

func (a *Adapter) requestExit(goja.FunctionCall) goja.Value {
	a.loop.RequestExit()
	return goja.Undefined()
}

// setTimeout(callback, delay, ...args) -> id
func (a *Adapter) setTimeout(call goja.FunctionCall) goja.Value {
	return a.scheduleCall(call, "setTimeout", true)
}

// setInterval(callback, delay, ...args) -> id
func (a *Adapter) setInterval(call goja.FunctionCall) goja.Value {
	return a.scheduleCall(call, "setInterval", false)
}

// clearTimeout(id), clearInterval(id)
func (a *Adapter) clearTimer(call goja.FunctionCall) goja.Value {
	if id, ok := timerID(call.Argument(0)); ok {
		a.loop.DeleteTimer(id)
	}
	return goja.Undefined()
}

func (a *Adapter) scheduleCall(call goja.FunctionCall, name string, oneshot bool) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(a.runtime.NewTypeError(name + " requires a function as first argument"))
	}

	callback := call.Argument(0)
	if len(call.Arguments) > 2 {
		args := append([]goja.Value(nil), call.Arguments[2:]...)
		callback = a.runtime.ToValue(func(goja.FunctionCall) goja.Value {
			v, err := fn(goja.Undefined(), args...)
			if err != nil {
				// rethrown as-is
				panic(err)
			}
			return v
		})
	}

	return a.schedule(callback, call.Argument(1), oneshot)
}

func (a *Adapter) schedule(callback goja.Value, delay goja.Value, oneshot bool) goja.Value {
	var delayMs float64
	if !goja.IsUndefined(delay) {
		delayMs = delay.ToFloat()
	}

	id, err := a.loop.CreateTimer(callback, delayMs, oneshot)
	if err != nil {
		var rangeErr *eventloop.RangeError
		if errors.As(err, &rangeErr) {
			panic(a.newError("RangeError", rangeErr.Error()))
		}
		panic(a.runtime.NewGoError(err))
	}

	return a.runtime.ToValue(uint64(id))
}

// dispatchFD implements [eventloop.FDHandler], calling
// EventLoop.fdPollHandler(fd, revents), with this bound to EventLoop.
func (a *Adapter) dispatchFD(fd int, events eventloop.IOEvents) error {
	handler, ok := goja.AssertFunction(a.eventLoop.Get("fdPollHandler"))
	if !ok {
		return ErrMissingPollHandler
	}
	_, err := handler(a.eventLoop, a.runtime.ToValue(fd), a.runtime.ToValue(uint32(events)))
	return err
}

// newError constructs an instance of the named global error constructor.
func (a *Adapter) newError(constructor, message string) *goja.Object {
	obj, err := a.runtime.New(a.runtime.Get(constructor), a.runtime.ToValue(message))
	if err != nil {
		return a.runtime.NewGoError(errors.New(message))
	}
	return obj
}

// timerID converts a JS value to a timer ID, rejecting values that cannot
// name a timer.
func timerID(v goja.Value) (eventloop.TimerID, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	n := v.ToInteger()
	if n <= 0 {
		return 0, false
	}
	return eventloop.TimerID(n), true
}

// timerStash is the [eventloop.CallbackStore] of an [Adapter], holding
// callbacks as properties of a JS object, keyed by String(id).
type timerStash struct {
	runtime *goja.Runtime
	obj     *goja.Object
}

func (s *timerStash) key(id eventloop.TimerID) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (s *timerStash) Store(id eventloop.TimerID, callback any) error {
	v, ok := callback.(goja.Value)
	if !ok {
		return fmt.Errorf("gojaeventloop: unsupported callback type %T", callback)
	}
	if _, ok := goja.AssertFunction(v); !ok {
		return errors.New("gojaeventloop: callback is not a function")
	}
	return s.obj.Set(s.key(id), v)
}

func (s *timerStash) Invoke(id eventloop.TimerID) error {
	fn, ok := goja.AssertFunction(s.obj.Get(s.key(id)))
	if !ok {
		return eventloop.ErrCallbackNotFound
	}
	_, err := fn(goja.Undefined())
	return err
}

func (s *timerStash) Remove(id eventloop.TimerID) {
	_ = s.obj.Delete(s.key(id))
}

func (s *timerStash) len() int {
	return len(s.obj.Keys())
}
