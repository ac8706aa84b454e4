package eventloop

import (
	"context"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Loop is a single-threaded cooperative event loop, multiplexing timers and
// descriptor readiness into a single blocking wait.
//
// Registration (CreateTimer, DeleteTimer, ListenFD) and inspection methods
// must be called either before Run, or from the goroutine running the loop,
// i.e. from within a callback. State, ExitRequested, RequestExit, and Metrics
// are safe to call from any goroutine.
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	clock     Clock
	poller    Poller
	store     CallbackStore
	fdHandler FDHandler
	sink      DiagnosticSink
	logger    *logiface.Logger[logiface.Event]

	// nil unless enabled
	metrics *loopMetrics

	state *FastState

	timers   timerTable
	expiring expiryCursor
	polls    pollTable

	exitRequested   atomic.Bool
	loopGoroutineID atomic.Uint64

	nextID TimerID

	minDelay    float64
	minWait     float64
	maxWait     float64
	maxExpiries int
}

// New creates a new event loop, in the Idle state.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		clock:       cfg.clock,
		poller:      cfg.poller,
		store:       cfg.store,
		fdHandler:   cfg.fdHandler,
		sink:        cfg.sink,
		logger:      cfg.logger,
		state:       NewFastState(),
		timers:      newTimerTable(cfg.maxTimers),
		polls:       newPollTable(cfg.maxDescriptors),
		minDelay:    cfg.minDelay,
		minWait:     cfg.minWait,
		maxWait:     cfg.maxWait,
		maxExpiries: cfg.maxExpiries,
	}
	if cfg.metricsEnabled {
		l.metrics = &loopMetrics{}
	}
	return l, nil
}

// CreateTimer registers a timer, firing after delayMs (clamped to the
// configured minimum), then every delayMs if oneshot is false. The callback
// is handed to the [CallbackStore], which must accept it.
//
// Fails with a *[RangeError] wrapping [ErrCapacityExceeded] if the timer
// table is full.
func (l *Loop) CreateTimer(callback any, delayMs float64, oneshot bool) (TimerID, error) {
	// also catches NaN
	if !(delayMs >= l.minDelay) {
		delayMs = l.minDelay
	}

	if l.timers.full() {
		return 0, errTimerCapacity()
	}

	l.nextID++
	t := Timer{
		ID:      l.nextID,
		Target:  l.clock.NowMillis() + delayMs,
		Delay:   delayMs,
		Oneshot: oneshot,
	}

	if err := l.store.Store(t.ID, callback); err != nil {
		return 0, err
	}

	l.timers.insert(t)

	if m := l.metrics; m != nil {
		m.observeTimers(l.timers.len())
	}
	l.logTimerCreated(t)

	return t.ID, nil
}

// DeleteTimer cancels the timer, returning false if no such timer exists.
// A timer may delete itself from within its own callback, in which case it
// will not be rescheduled.
func (l *Loop) DeleteTimer(id TimerID) bool {
	if t, ok := l.expiring.occupant(); ok && t.ID == id {
		// dropped from the store once the callback returns
		t.removed = true
		l.logTimerDeleted(id, true)
		return true
	}
	if !l.timers.remove(id) {
		return false
	}
	l.store.Remove(id)
	l.logTimerDeleted(id, false)
	return true
}

// ListenFD sets the events the loop waits for on fd. An events value of
// zero stops listening, and is a no-op for an unknown fd.
//
// Descriptor zero marks an unused slot of the poll table, and so cannot be
// listened on. Adding a descriptor to a full table fails with an error
// wrapping [ErrCapacityExceeded].
func (l *Loop) ListenFD(fd int, events IOEvents) error {
	if fd <= 0 {
		if fd == 0 && events == 0 {
			return nil
		}
		return ErrInvalidDescriptor
	}
	if err := l.polls.listen(fd, events); err != nil {
		return err
	}
	if m := l.metrics; m != nil {
		m.observeDescriptors(l.polls.live())
	}
	return nil
}

// RequestExit asks the loop to stop. The flag is checked before each timer
// expiry and at the top of each tick, so an in-flight callback or wait
// always completes. Idempotent.
func (l *Loop) RequestExit() {
	l.exitRequested.Store(true)
}

// ExitRequested reports whether RequestExit has been called.
func (l *Loop) ExitRequested() bool {
	return l.exitRequested.Load()
}

// State returns the current state of the loop.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// Nearest returns the timer that will expire first, if any.
func (l *Loop) Nearest() (Timer, bool) {
	t, ok := l.timers.nearest()
	if !ok {
		return Timer{}, false
	}
	return *t, true
}

// Timers returns a copy of the timer table, in table order (descending
// Target). The expiring timer, if any, is not included.
func (l *Loop) Timers() []Timer {
	return slices.Clone(l.timers.list)
}

// TimerCount returns the number of timers in the table.
func (l *Loop) TimerCount() int {
	return l.timers.len()
}

// Expiring returns the timer whose callback is currently running, if any.
func (l *Loop) Expiring() (Timer, bool) {
	t, ok := l.expiring.occupant()
	if !ok {
		return Timer{}, false
	}
	return *t, true
}

// Registrations returns a copy of the descriptor poll table, which may
// include unused slots (FD zero) until the next wait.
func (l *Loop) Registrations() []Registration {
	return slices.Clone(l.polls.entries)
}

// Metrics returns a snapshot of the loop's metrics, or nil if the loop was
// not created WithMetrics(true).
func (l *Loop) Metrics() *Metrics {
	if l.metrics == nil {
		return nil
	}
	return l.metrics.snapshot()
}

// Run runs the loop on the calling goroutine until an exit is requested,
// there is nothing left to wait for, ctx is done, or a fatal error occurs.
// A loop may only be run once.
//
// The only fatal error is failing to reschedule an interval timer, because
// the timer table was filled while its callback ran. It is returned as a
// *[RangeError] wrapping [ErrCapacityExceeded].
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateIdle, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	l.loopGoroutineID.Store(getGoroutineID())
	defer func() {
		l.loopGoroutineID.Store(0)
		l.state.Store(StateTerminated)
	}()

	for {
		if done, err := l.tick(ctx); done {
			return err
		}
	}
}

// tick runs a single iteration of the loop, reporting whether the loop is
// done.
func (l *Loop) tick(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		l.logTerminated(`context done`, err)
		return true, err
	}
	if l.exitRequested.Load() {
		l.logTerminated(`exit requested`, nil)
		return true, nil
	}

	if m := l.metrics; m != nil {
		m.ticks.Add(1)
	}

	if err := l.expireTimers(); err != nil {
		l.logTerminated(`fatal`, err)
		return true, err
	}

	if l.exitRequested.Load() {
		l.logTerminated(`exit requested`, nil)
		return true, nil
	}

	l.polls.compact()

	var timeout int
	if t, ok := l.timers.nearest(); ok {
		timeout = int(min(max(t.Target-l.clock.NowMillis(), l.minWait), l.maxWait))
	} else if l.polls.len() != 0 {
		timeout = int(l.maxWait)
	} else {
		l.logTerminated(`nothing to wait for`, nil)
		return true, nil
	}

	l.wait(timeout)

	return false, nil
}

// expireTimers runs the callbacks of due timers, nearest first, up to the
// configured maximum per tick.
func (l *Loop) expireTimers() error {
	now := l.clock.NowMillis()

	for range l.maxExpiries {
		if l.exitRequested.Load() {
			return nil
		}

		if t, ok := l.timers.nearest(); !ok || t.Target > now {
			return nil
		}

		timer := l.timers.popNearest()
		if timer.Oneshot {
			timer.removed = true
		} else {
			// relative to now, not the old target
			timer.Target = now + timer.Delay
		}

		l.expiring.set(timer)
		l.fireTimer(timer.ID)
		timer = l.expiring.take()

		if timer.removed {
			l.store.Remove(timer.ID)
			continue
		}

		if l.timers.full() {
			l.store.Remove(timer.ID)
			return errTimerCapacity()
		}

		l.timers.insert(timer)
	}

	return nil
}

func (l *Loop) fireTimer(id TimerID) {
	start := time.Now()
	err := safeCall(func() error { return l.store.Invoke(id) })

	if m := l.metrics; m != nil {
		m.recordLatency(time.Since(start))
		m.timersFired.Add(1)
		if err != nil {
			m.timerFailures.Add(1)
		}
	}

	if err != nil {
		l.sink.Report(Diagnostic{Err: err, Kind: DiagnosticTimer, TimerID: id})
	}
}

// wait blocks on the poller, then dispatches ready descriptors.
func (l *Loop) wait(timeoutMs int) {
	// Handlers may append to the table, but it never grows beyond its
	// capacity, so regs stays aliased to the same backing array.
	regs := l.polls.entries

	n, err := l.poller.Wait(regs, timeoutMs)

	if m := l.metrics; m != nil {
		m.waits.Add(1)
		if err != nil {
			m.waitErrors.Add(1)
		}
	}

	if err != nil {
		l.sink.Report(Diagnostic{Err: err, Kind: DiagnosticWait})
		for i := range regs {
			regs[i].Result = 0
		}
		l.clock.Sleep(waitBackoff(l.minWait, timeoutMs))
		return
	}

	if n == 0 {
		return
	}

	for i := range regs {
		r := &regs[i]
		if r.FD == 0 || r.Result == 0 {
			continue
		}
		l.dispatchFD(r.FD, r.Result)
		r.Result = 0
	}
}

// waitBackoff is how long to pause after a failed wait, so a poller that
// keeps failing cannot spin the loop. It never exceeds a nonzero timeout.
func waitBackoff(minWait float64, timeoutMs int) float64 {
	backoff := max(minWait, 1)
	if t := float64(timeoutMs); t > 0 && t < backoff {
		backoff = t
	}
	return backoff
}

func (l *Loop) dispatchFD(fd int, events IOEvents) {
	start := time.Now()
	err := safeCall(func() error {
		if l.fdHandler == nil {
			return ErrNoFDHandler
		}
		return l.fdHandler(fd, events)
	})

	if m := l.metrics; m != nil {
		m.recordLatency(time.Since(start))
		m.fdEvents.Add(1)
		if err != nil {
			m.fdFailures.Add(1)
		}
	}

	if err != nil {
		l.sink.Report(Diagnostic{Err: err, Kind: DiagnosticDescriptor, FD: fd})
	}
}

// safeCall calls fn, converting a panic into a [PanicError].
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return fn()
}

// isLoopThread checks if we're on the loop goroutine.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return getGoroutineID() == loopID
}

// getGoroutineID returns the current goroutine's ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
