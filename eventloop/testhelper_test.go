package eventloop

import (
	"errors"
	"testing"
)

// simPoller returns a poller that "blocks" by advancing clock by the full
// timeout, reporting no ready descriptors.
func simPoller(clock *SimulatedClock) PollerFunc {
	return func(regs []Registration, timeoutMs int) (int, error) {
		clock.Advance(float64(timeoutMs))
		return 0, nil
	}
}

// newSimLoop creates a loop on a simulated clock, starting at zero, that
// never really blocks.
func newSimLoop(t *testing.T, opts ...LoopOption) (*Loop, *SimulatedClock, *FuncStore) {
	t.Helper()
	clock := &SimulatedClock{}
	store := NewFuncStore()
	l, err := New(append([]LoopOption{
		WithClock(clock),
		WithPoller(simPoller(clock)),
		WithCallbackStore(store),
	}, opts...)...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return l, clock, store
}

// diagnostics collects reported diagnostics.
type diagnostics struct {
	list []Diagnostic
}

func (d *diagnostics) Report(v Diagnostic) {
	d.list = append(d.list, v)
}

// countingStore wraps a FuncStore, counting removals per id.
type countingStore struct {
	*FuncStore
	removed map[TimerID]int
}

func newCountingStore() *countingStore {
	return &countingStore{FuncStore: NewFuncStore(), removed: make(map[TimerID]int)}
}

func (s *countingStore) Remove(id TimerID) {
	s.removed[id]++
	s.FuncStore.Remove(id)
}

var errBoom = errors.New("boom")

// mustCreate creates a timer, failing the test on error.
func mustCreate(t *testing.T, l *Loop, callback any, delayMs float64, oneshot bool) TimerID {
	t.Helper()
	id, err := l.CreateTimer(callback, delayMs, oneshot)
	if err != nil {
		t.Fatalf("CreateTimer(%v, %v) failed: %v", delayMs, oneshot, err)
	}
	return id
}

// assertSorted checks the timer table invariant: dense, descending Target,
// no zero ids.
func assertSorted(t *testing.T, l *Loop) {
	t.Helper()
	timers := l.Timers()
	for i, timer := range timers {
		if timer.ID == 0 {
			t.Fatalf("zero id at index %d: %+v", i, timers)
		}
		if i > 0 && timers[i-1].Target < timer.Target {
			t.Fatalf("not sorted at index %d: %+v", i, timers)
		}
	}
}
