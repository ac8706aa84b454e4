package eventloop

import (
	"io"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// failureRateLimits bounds how often errors may be logged, so a timer that
// keeps failing cannot flood the output.
var failureRateLimits = map[time.Duration]int{
	time.Second: 20,
	time.Minute: 200,
}

// NewJSONLogger returns a logger writing newline-delimited JSON to w, at or
// above the given level. Events at error level or worse, which includes
// every callback failure, are rate limited.
func NewJSONLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
		stumpy.L.WithCategoryRateLimits(failureRateLimits),
	)
	// the limiter lives on the typed logger, and must be installed before
	// converting to the generic one
	limited := logger.Clone().Modifier(limitErrors(logger.CallerCategoryRateLimitModifier())).Logger()
	if limited == nil {
		return logger.Logger()
	}
	return limited.Logger()
}

func limitErrors(limit logiface.Modifier[*stumpy.Event]) logiface.Modifier[*stumpy.Event] {
	if limit == nil {
		return nil
	}
	return logiface.ModifierFunc[*stumpy.Event](func(event *stumpy.Event) error {
		if event.Level() > logiface.LevelError {
			return nil
		}
		return limit.Modify(event)
	})
}

// LoggerSink is a [DiagnosticSink] that logs each diagnostic at error level.
// A nil Logger discards everything.
type LoggerSink struct {
	Logger *logiface.Logger[logiface.Event]
}

// Report implements [DiagnosticSink].
func (s *LoggerSink) Report(d Diagnostic) {
	b := s.Logger.Err()
	if b == nil {
		return
	}
	b = b.Err(d.Err).Str(`kind`, d.Kind.String())
	switch d.Kind {
	case DiagnosticTimer:
		b = b.Uint64(`timer`, uint64(d.TimerID))
	case DiagnosticDescriptor:
		b = b.Int(`fd`, d.FD)
	}
	b.Log(d.Message())
}

func (l *Loop) logTimerCreated(t Timer) {
	l.logger.Trace().
		Uint64(`timer`, uint64(t.ID)).
		Float64(`delay`, t.Delay).
		Float64(`target`, t.Target).
		Bool(`oneshot`, t.Oneshot).
		Log(`timer created`)
}

func (l *Loop) logTimerDeleted(id TimerID, expiring bool) {
	l.logger.Trace().
		Uint64(`timer`, uint64(id)).
		Bool(`expiring`, expiring).
		Log(`timer deleted`)
}

func (l *Loop) logTerminated(reason string, err error) {
	b := l.logger.Debug()
	if b == nil {
		return
	}
	if err != nil {
		b = b.Err(err)
	}
	b.Str(`reason`, reason).
		Int(`timers`, l.timers.len()).
		Int(`descriptors`, l.polls.live()).
		Log(`loop terminated`)
}
