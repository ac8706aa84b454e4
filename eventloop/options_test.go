package eventloop

import (
	"bytes"
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
)

// Test default options
func TestDefaultOptions(t *testing.T) {
	l, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if cap(l.timers.list) != DefaultMaxTimers {
		t.Errorf("timer capacity: got %d, want %d", cap(l.timers.list), DefaultMaxTimers)
	}
	if cap(l.polls.entries) != DefaultMaxDescriptors {
		t.Errorf("descriptor capacity: got %d, want %d", cap(l.polls.entries), DefaultMaxDescriptors)
	}
	if l.minDelay != 1 || l.minWait != 1 || l.maxWait != 60000 || l.maxExpiries != 10 {
		t.Errorf("unexpected defaults: minDelay=%v minWait=%v maxWait=%v maxExpiries=%v",
			l.minDelay, l.minWait, l.maxWait, l.maxExpiries)
	}
	if _, ok := l.clock.(*SystemClock); !ok {
		t.Errorf("default clock: got %T", l.clock)
	}
	if _, ok := l.store.(*FuncStore); !ok {
		t.Errorf("default store: got %T", l.store)
	}
	if _, ok := l.sink.(*LoggerSink); !ok {
		t.Errorf("default sink: got %T", l.sink)
	}
	if l.metrics != nil || l.Metrics() != nil {
		t.Error("metrics should be disabled by default")
	}
	if l.State() != StateIdle {
		t.Errorf("initial state: got %v", l.State())
	}
}

// Test custom options
func TestCustomOptions(t *testing.T) {
	clock := &SimulatedClock{}
	store := NewFuncStore()
	var sink diagnostics
	logger := NewJSONLogger(new(bytes.Buffer), logiface.LevelDebug)

	l, err := New(
		WithMaxTimers(8),
		WithMaxDescriptors(4),
		WithMinDelay(0),
		WithWaitBounds(0, 500),
		WithMaxExpiries(3),
		WithClock(clock),
		WithCallbackStore(store),
		WithDiagnosticSink(&sink),
		WithLogger(logger),
		WithMetrics(true),
		nil,
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if cap(l.timers.list) != 8 || cap(l.polls.entries) != 4 {
		t.Errorf("capacities: timers=%d descriptors=%d", cap(l.timers.list), cap(l.polls.entries))
	}
	if l.minDelay != 0 || l.minWait != 0 || l.maxWait != 500 || l.maxExpiries != 3 {
		t.Error("numeric options not applied")
	}
	if l.clock != clock || l.store != store || l.sink != &sink || l.logger != logger {
		t.Error("collaborator options not applied")
	}
	if l.Metrics() == nil {
		t.Error("metrics should be enabled")
	}
}

// Test: the default sink logs to the configured logger
func TestDefaultSinkUsesLogger(t *testing.T) {
	logger := NewJSONLogger(new(bytes.Buffer), logiface.LevelInformational)
	l, err := New(WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	sink, ok := l.sink.(*LoggerSink)
	if !ok || sink.Logger != logger {
		t.Fatalf("unexpected default sink: %#v", l.sink)
	}
}

func TestInvalidOptions(t *testing.T) {
	for name, opt := range map[string]LoopOption{
		"zero timers":           WithMaxTimers(0),
		"negative descriptors":  WithMaxDescriptors(-1),
		"negative delay":        WithMinDelay(-1),
		"min wait above max":    WithWaitBounds(10, 5),
		"negative min wait":     WithWaitBounds(-1, 5),
		"max wait out of range": WithWaitBounds(1, 1e12),
		"zero expiries":         WithMaxExpiries(0),
	} {
		t.Run(name, func(t *testing.T) {
			l, err := New(opt)
			if l != nil {
				t.Error("expected nil loop")
			}
			var rangeErr *RangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected *RangeError, got %T: %v", err, err)
			}
		})
	}
}
