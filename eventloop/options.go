// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package eventloop

import (
	"math"

	"github.com/joeycumines/logiface"
)

// Defaults for the fixed loop configuration.
const (
	// DefaultMaxTimers is quite excessive for embedded use, but good for testing.
	DefaultMaxTimers = 4096
	// DefaultMaxDescriptors is the default capacity of the poll table.
	DefaultMaxDescriptors = 256
	// DefaultMinDelay is the minimum timer delay, in milliseconds.
	DefaultMinDelay = 1.0
	// DefaultMinWait is the lower clamp of the blocking wait, in milliseconds.
	DefaultMinWait = 1.0
	// DefaultMaxWait is the upper clamp of the blocking wait, in milliseconds.
	DefaultMaxWait = 60000.0
	// DefaultMaxExpiries is the maximum number of timers expired per tick.
	DefaultMaxExpiries = 10
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	clock          Clock
	poller         Poller
	store          CallbackStore
	fdHandler      FDHandler
	sink           DiagnosticSink
	logger         *logiface.Logger[logiface.Event]
	minDelay       float64
	minWait        float64
	maxWait        float64
	maxTimers      int
	maxDescriptors int
	maxExpiries    int
	metricsEnabled bool
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithMaxTimers sets the capacity of the timer table.
func WithMaxTimers(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return &RangeError{Message: "eventloop: max timers must be positive"}
		}
		opts.maxTimers = n
		return nil
	}}
}

// WithMaxDescriptors sets the capacity of the descriptor poll table.
func WithMaxDescriptors(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return &RangeError{Message: "eventloop: max descriptors must be positive"}
		}
		opts.maxDescriptors = n
		return nil
	}}
}

// WithMinDelay sets the minimum timer delay, in milliseconds. Smaller
// delays are clamped up to this value.
func WithMinDelay(ms float64) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
			return &RangeError{Message: "eventloop: min delay must be a non-negative finite number"}
		}
		opts.minDelay = ms
		return nil
	}}
}

// WithWaitBounds sets the clamp applied to the blocking wait timeout, in
// milliseconds. A minimum of zero permits non-blocking waits when a timer
// is already due.
func WithWaitBounds(minMs, maxMs float64) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if minMs < 0 || maxMs < minMs || maxMs > math.MaxInt32 || math.IsNaN(minMs) || math.IsNaN(maxMs) {
			return &RangeError{Message: "eventloop: invalid wait bounds"}
		}
		opts.minWait = minMs
		opts.maxWait = maxMs
		return nil
	}}
}

// WithMaxExpiries sets the maximum number of timers expired per tick,
// bounding the latency of the expiry pass. Remaining due timers are handled
// on the next tick.
func WithMaxExpiries(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return &RangeError{Message: "eventloop: max expiries must be positive"}
		}
		opts.maxExpiries = n
		return nil
	}}
}

// WithClock sets the time source. Defaults to [NewSystemClock].
func WithClock(clock Clock) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.clock = clock
		return nil
	}}
}

// WithPoller sets the blocking wait primitive. Defaults to [NewPoller].
func WithPoller(poller Poller) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.poller = poller
		return nil
	}}
}

// WithCallbackStore sets the timer callback storage. Defaults to a new
// [FuncStore].
func WithCallbackStore(store CallbackStore) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.store = store
		return nil
	}}
}

// WithFDHandler sets the handler for descriptor readiness.
func WithFDHandler(handler FDHandler) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.fdHandler = handler
		return nil
	}}
}

// WithDiagnosticSink sets the receiver of uncaught callback failures.
// Defaults to logging them, see [LoggerSink].
func WithDiagnosticSink(sink DiagnosticSink) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.sink = sink
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Loop.
// When enabled, metrics can be accessed via Loop.Metrics().
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		maxTimers:      DefaultMaxTimers,
		maxDescriptors: DefaultMaxDescriptors,
		minDelay:       DefaultMinDelay,
		minWait:        DefaultMinWait,
		maxWait:        DefaultMaxWait,
		maxExpiries:    DefaultMaxExpiries,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = NewSystemClock()
	}
	if cfg.poller == nil {
		cfg.poller = NewPoller()
	}
	if cfg.store == nil {
		cfg.store = NewFuncStore()
	}
	if cfg.sink == nil {
		cfg.sink = &LoggerSink{Logger: cfg.logger}
	}
	return cfg, nil
}
