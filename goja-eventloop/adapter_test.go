package gojaeventloop

import (
	"context"
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-pollloop/eventloop"
	"github.com/stretchr/testify/assert"
	gorequire "github.com/stretchr/testify/require"
)

type diagnostics struct {
	list []eventloop.Diagnostic
}

func (d *diagnostics) Report(diag eventloop.Diagnostic) {
	d.list = append(d.list, diag)
}

// newSimAdapter creates a bound adapter, on a simulated clock, where every
// wait runs for its full timeout, then reports the readiness set by poll.
func newSimAdapter(t *testing.T, poll func(regs []eventloop.Registration) int, opts ...eventloop.LoopOption) (*Adapter, *eventloop.SimulatedClock, *diagnostics) {
	t.Helper()
	clock := &eventloop.SimulatedClock{}
	sink := &diagnostics{}
	opts = append([]eventloop.LoopOption{
		eventloop.WithClock(clock),
		eventloop.WithDiagnosticSink(sink),
		eventloop.WithPoller(eventloop.PollerFunc(func(regs []eventloop.Registration, timeoutMs int) (int, error) {
			clock.Advance(float64(timeoutMs))
			if poll != nil {
				return poll(regs), nil
			}
			return 0, nil
		})),
	}, opts...)
	a, err := New(goja.New(), opts...)
	gorequire.NoError(t, err)
	gorequire.NoError(t, a.Bind())
	return a, clock, sink
}

func TestNew_NilRuntime(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_InvalidOption(t *testing.T) {
	_, err := New(goja.New(), eventloop.WithMaxTimers(0))
	var rangeErr *eventloop.RangeError
	assert.ErrorAs(t, err, &rangeErr)
}

func TestAdapter_Accessors(t *testing.T) {
	rt := goja.New()
	a, err := New(rt)
	gorequire.NoError(t, err)
	assert.Same(t, rt, a.Runtime())
	assert.NotNil(t, a.Loop())
	assert.NotNil(t, a.EventLoop())
	assert.Equal(t, eventloop.StateIdle, a.Loop().State())
}

func TestAdapter_SetTimeoutOrder(t *testing.T) {
	a, _, sink := newSimAdapter(t, nil)

	err := a.RunString(context.Background(), `
		var log = [];
		setTimeout(function (a, b) { log.push('c' + a + b); }, 30, 1, 2);
		setTimeout(function () { log.push('a'); }, 10);
		setTimeout(function () { log.push('b'); }, 20);
		setTimeout(function () { log.push('b2'); }, 20);
	`)
	gorequire.NoError(t, err)
	assert.Empty(t, sink.list)
	// tied targets fire newest first
	assert.Equal(t, []any{"a", "b2", "b", "c12"}, a.Runtime().Get("log").Export())
	assert.Zero(t, a.timers.len())
}

func TestAdapter_SetTimeoutReturnsIDs(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)
	v, err := a.Runtime().RunString(`[setTimeout(function () {}), setInterval(function () {}, 5), EventLoop.createTimer(function () {}, 1, true)]`)
	gorequire.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, v.Export())
	assert.Equal(t, 3, a.timers.len())
	assert.Equal(t, 3, a.Loop().TimerCount())
}

func TestAdapter_IntervalDrift(t *testing.T) {
	a, clock, _ := newSimAdapter(t, nil)
	gorequire.NoError(t, a.Runtime().Set("now", clock.NowMillis))

	err := a.RunString(context.Background(), `
		var fired = [];
		var id = setInterval(function () {
			fired.push(now());
			if (fired.length === 3) {
				clearInterval(id);
			}
		}, 100);
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, []any{int64(100), int64(200), int64(300)}, a.Runtime().Get("fired").Export())
	assert.Zero(t, a.timers.len())
}

func TestAdapter_CreateTimerInterval(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)

	err := a.RunString(context.Background(), `
		var count = 0;
		var deleted;
		var id = EventLoop.createTimer(function () {
			count++;
			if (count === 5) {
				deleted = EventLoop.deleteTimer(id);
			}
		}, 10, false);
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, int64(5), a.Runtime().Get("count").ToInteger())
	assert.Equal(t, true, a.Runtime().Get("deleted").Export())
	assert.Zero(t, a.timers.len())
}

func TestAdapter_ClearTimeout(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)

	err := a.RunString(context.Background(), `
		var fired = false;
		var id = setTimeout(function () { fired = true; }, 10);
		clearTimeout(id);
		clearTimeout(id);
		clearTimeout('nonsense');
		clearTimeout();
		var again = EventLoop.deleteTimer(id);
		var negative = EventLoop.deleteTimer(-1);
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, false, a.Runtime().Get("fired").Export())
	assert.Equal(t, false, a.Runtime().Get("again").Export())
	assert.Equal(t, false, a.Runtime().Get("negative").Export())
	assert.Zero(t, a.timers.len())
}

func TestAdapter_NonFunctionCallback(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)
	for _, src := range []string{
		`setTimeout('code', 10)`,
		`setInterval(null, 10)`,
		`EventLoop.createTimer({}, 10, true)`,
	} {
		_, err := a.Runtime().RunString(src)
		var ex *goja.Exception
		if assert.ErrorAs(t, err, &ex, src) {
			assert.Contains(t, ex.Value().String(), "TypeError", src)
		}
	}
	assert.Zero(t, a.Loop().TimerCount())
}

func TestAdapter_TimerCapacity(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil, eventloop.WithMaxTimers(2))

	v, err := a.Runtime().RunString(`
		setTimeout(function () {}, 10);
		setInterval(function () {}, 10);
		var caught;
		try {
			setTimeout(function () {}, 10);
		} catch (e) {
			caught = e;
		}
		[caught instanceof RangeError, caught.message];
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, []any{true, "out of timer slots"}, v.Export())
	assert.Equal(t, 2, a.timers.len())
}

func TestAdapter_DescriptorCapacity(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil, eventloop.WithMaxDescriptors(1))

	v, err := a.Runtime().RunString(`
		EventLoop.listenFd(3, EventLoop.POLLIN);
		EventLoop.listenFd(3, EventLoop.POLLIN | EventLoop.POLLOUT);
		var caught;
		try {
			EventLoop.listenFd(4, EventLoop.POLLIN);
		} catch (e) {
			caught = e;
		}
		[caught instanceof RangeError, caught instanceof Error, caught.message];
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, []any{false, true, "out of fd slots"}, v.Export())
	assert.Equal(t, []eventloop.Registration{{FD: 3, Interest: eventloop.EventRead | eventloop.EventWrite}}, a.Loop().Registrations())
}

func TestAdapter_ListenFdInvalid(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)
	for _, src := range []string{
		`EventLoop.listenFd(-1, EventLoop.POLLIN)`,
		`EventLoop.listenFd(3, -1)`,
		`EventLoop.listenFd(0, EventLoop.POLLIN)`,
	} {
		_, err := a.Runtime().RunString(src)
		assert.Error(t, err, src)
	}
	_, err := a.Runtime().RunString(`EventLoop.listenFd(0, 0)`)
	assert.NoError(t, err)
}

func TestAdapter_PollConstants(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)
	for name, want := range map[string]eventloop.IOEvents{
		"POLLIN":   eventloop.EventRead,
		"POLLPRI":  eventloop.EventPriority,
		"POLLOUT":  eventloop.EventWrite,
		"POLLERR":  eventloop.EventError,
		"POLLHUP":  eventloop.EventHangup,
		"POLLNVAL": eventloop.EventInvalid,
	} {
		assert.Equal(t, int64(want), a.EventLoop().Get(name).ToInteger(), name)
	}
}

func TestAdapter_FdPollHandler(t *testing.T) {
	var waits int
	a, _, sink := newSimAdapter(t, func(regs []eventloop.Registration) int {
		waits++
		if waits > 2 {
			return 0
		}
		for i := range regs {
			if regs[i].FD == 5 {
				regs[i].Result = eventloop.EventRead | eventloop.EventHangup
				return 1
			}
		}
		return 0
	})

	err := a.RunString(context.Background(), `
		var calls = [];
		EventLoop.fdPollHandler = function (fd, revents) {
			calls.push([this === EventLoop, fd, revents]);
			if (calls.length === 2) {
				this.listenFd(fd, 0);
			}
		};
		EventLoop.listenFd(5, EventLoop.POLLIN);
	`)
	gorequire.NoError(t, err)
	assert.Empty(t, sink.list)
	want := int64(eventloop.EventRead | eventloop.EventHangup)
	assert.Equal(t, []any{
		[]any{true, int64(5), want},
		[]any{true, int64(5), want},
	}, a.Runtime().Get("calls").Export())
	assert.Empty(t, a.Loop().Registrations())
}

func TestAdapter_MissingPollHandler(t *testing.T) {
	a, _, sink := newSimAdapter(t, func(regs []eventloop.Registration) int {
		regs[0].Result = eventloop.EventRead
		return 1
	})

	err := a.RunString(context.Background(), `
		EventLoop.listenFd(7, EventLoop.POLLIN);
		setTimeout(function () { EventLoop.requestExit(); }, 1);
	`)
	gorequire.NoError(t, err)
	gorequire.NotEmpty(t, sink.list)
	d := sink.list[0]
	assert.ErrorIs(t, d.Err, ErrMissingPollHandler)
	assert.Equal(t, eventloop.DiagnosticDescriptor, d.Kind)
	assert.Equal(t, 7, d.FD)
	assert.True(t, a.Loop().ExitRequested())
}

func TestAdapter_ThrowingCallback(t *testing.T) {
	a, _, sink := newSimAdapter(t, nil)

	err := a.RunString(context.Background(), `
		var after = false;
		setTimeout(function () { throw new Error('boom'); }, 1);
		setTimeout(function () { after = true; }, 2);
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, true, a.Runtime().Get("after").Export())

	gorequire.Len(t, sink.list, 1)
	d := sink.list[0]
	var ex *goja.Exception
	gorequire.ErrorAs(t, d.Err, &ex)
	assert.Contains(t, d.Message(), "boom")
	assert.Contains(t, d.Message(), "(while running callback id 1)")
	assert.Zero(t, a.timers.len())
}

func TestAdapter_ThrowingCallbackWithArgs(t *testing.T) {
	a, _, sink := newSimAdapter(t, nil)

	err := a.RunString(context.Background(), `
		setTimeout(function (msg) { throw new TypeError(msg); }, 1, 'bad');
	`)
	gorequire.NoError(t, err)
	gorequire.Len(t, sink.list, 1)
	assert.Contains(t, sink.list[0].Message(), "TypeError: bad")
}

func TestAdapter_GoErrorFromCallback(t *testing.T) {
	a, _, sink := newSimAdapter(t, nil)
	errBoom := errors.New("go boom")
	gorequire.NoError(t, a.Runtime().Set("fail", func() { panic(a.Runtime().NewGoError(errBoom)) }))

	gorequire.NoError(t, a.RunString(context.Background(), `setTimeout(fail, 1);`))
	gorequire.Len(t, sink.list, 1)
	assert.ErrorIs(t, sink.list[0].Err, errBoom)
}

func TestAdapter_RequestExit(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)

	err := a.RunString(context.Background(), `
		var count = 0;
		setInterval(function () {
			if (++count === 3) {
				EventLoop.requestExit();
			}
		}, 10);
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, int64(3), a.Runtime().Get("count").ToInteger())
	assert.Equal(t, 1, a.timers.len())
	assert.Equal(t, eventloop.StateTerminated, a.Loop().State())
}

func TestAdapter_RunScriptThrows(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)

	err := a.RunScript(context.Background(), "broken.js", `setTimeout(function () {}, 1); throw new Error('nope');`)
	var ex *goja.Exception
	gorequire.ErrorAs(t, err, &ex)
	assert.Contains(t, err.Error(), "nope")
	assert.Equal(t, eventloop.StateIdle, a.Loop().State())
	assert.Equal(t, 1, a.Loop().TimerCount())
}

func TestAdapter_RunContextCanceled(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.RunString(ctx, `setInterval(function () {}, 10);`)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_Require(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)
	registry := require.NewRegistry()
	a.Register(registry)
	registry.Enable(a.Runtime())

	v, err := a.Runtime().RunString(`
		var el = require('eventloop');
		var socket = require('socket');
		[el === EventLoop, typeof el.createTimer, typeof socket.createServerSocket];
	`)
	gorequire.NoError(t, err)
	assert.Equal(t, []any{true, "function", "function"}, v.Export())
}

func TestAdapter_RequireWrongRuntime(t *testing.T) {
	a, _, _ := newSimAdapter(t, nil)
	registry := require.NewRegistry()
	a.Register(registry)
	other := goja.New()
	registry.Enable(other)

	_, err := other.RunString(`require('eventloop')`)
	assert.Error(t, err)
}

func TestTimerStash(t *testing.T) {
	rt := goja.New()
	s := &timerStash{runtime: rt, obj: rt.NewObject()}

	assert.Error(t, s.Store(1, func() {}))
	assert.Error(t, s.Store(1, rt.ToValue(42)))
	assert.ErrorIs(t, s.Invoke(1), eventloop.ErrCallbackNotFound)

	v, err := rt.RunString(`(function () { globalThis.called = (globalThis.called || 0) + 1; })`)
	gorequire.NoError(t, err)
	gorequire.NoError(t, s.Store(12, v))
	assert.Equal(t, []string{"12"}, s.obj.Keys())

	gorequire.NoError(t, s.Invoke(12))
	gorequire.NoError(t, s.Invoke(12))
	assert.Equal(t, int64(2), rt.Get("called").ToInteger())

	s.Remove(12)
	s.Remove(12)
	assert.Zero(t, s.len())
}
