package eventloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimJS(t *testing.T, opts ...LoopOption) (*JS, *SimulatedClock) {
	t.Helper()
	l, clock, _ := newSimLoop(t, opts...)
	js, err := NewJS(l)
	require.NoError(t, err)
	return js, clock
}

func TestNewJS_Validation(t *testing.T) {
	_, err := NewJS(nil)
	assert.Error(t, err)

	l, _, _ := newSimLoop(t, WithCallbackStore(newCountingStore()))
	_, err = NewJS(l)
	assert.Error(t, err)
}

func TestJS_SetTimeout(t *testing.T) {
	js, clock := newSimJS(t)

	var firedAt []float64
	id, err := js.SetTimeout(func() { firedAt = append(firedAt, clock.NowMillis()) }, 50)
	require.NoError(t, err)
	assert.Equal(t, TimerID(1), id)
	assert.Same(t, js.loop, js.Loop())

	require.NoError(t, js.Loop().Run(context.Background()))
	assert.Equal(t, []float64{50}, firedAt)
}

func TestJS_SetTimeoutNil(t *testing.T) {
	js, _ := newSimJS(t)
	id, err := js.SetTimeout(nil, 10)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Zero(t, js.Loop().TimerCount())
}

func TestJS_ClearTimeout(t *testing.T) {
	js, _ := newSimJS(t)
	id, err := js.SetTimeout(func() { t.Error("cleared timeout fired") }, 10)
	require.NoError(t, err)

	assert.True(t, js.ClearTimeout(id))
	assert.False(t, js.ClearTimeout(id))
	require.NoError(t, js.Loop().Run(context.Background()))
}

func TestJS_SetIntervalClearedFromCallback(t *testing.T) {
	js, clock := newSimJS(t)

	var (
		id      TimerID
		firedAt []float64
	)
	id, err := js.SetInterval(func() {
		firedAt = append(firedAt, clock.NowMillis())
		if len(firedAt) == 4 {
			if !js.ClearInterval(id) {
				t.Error("ClearInterval returned false")
			}
		}
	}, 25)
	require.NoError(t, err)

	require.NoError(t, js.Loop().Run(context.Background()))
	assert.Equal(t, []float64{25, 50, 75, 100}, firedAt)
}

func TestJS_PanicDoesNotStopLoop(t *testing.T) {
	var sink diagnostics
	js, _ := newSimJS(t, WithDiagnosticSink(&sink))

	var fired bool
	_, err := js.SetTimeout(func() { panic("oops") }, 1)
	require.NoError(t, err)
	_, err = js.SetTimeout(func() { fired = true }, 2)
	require.NoError(t, err)

	require.NoError(t, js.Loop().Run(context.Background()))
	assert.True(t, fired)
	require.Len(t, sink.list, 1)
	assert.Equal(t, "panic: oops (while running callback id 1)", sink.list[0].Message())
}

func TestJS_Capacity(t *testing.T) {
	js, _ := newSimJS(t, WithMaxTimers(1))
	_, err := js.SetInterval(func() {}, 10)
	require.NoError(t, err)
	_, err = js.SetTimeout(func() {}, 10)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}
