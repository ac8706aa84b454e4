package eventloop

import (
	"sync"
	"time"
)

// Clock supplies monotonic time in milliseconds. The origin is arbitrary,
// only differences between readings are meaningful.
type Clock interface {
	NowMillis() float64
	// Sleep blocks for the given number of milliseconds.
	Sleep(ms float64)
}

// SystemClock reads the Go runtime's monotonic clock, relative to the time
// it was constructed.
type SystemClock struct {
	anchor time.Time
}

// NewSystemClock returns a [SystemClock] anchored at the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{anchor: time.Now()}
}

// NowMillis implements [Clock].
func (c *SystemClock) NowMillis() float64 {
	// time.Since uses the monotonic reading of the anchor, wall clock
	// adjustments (e.g. NTP) do not affect it
	return float64(time.Since(c.anchor)) / float64(time.Millisecond)
}

// Sleep implements [Clock].
func (c *SystemClock) Sleep(ms float64) {
	time.Sleep(time.Duration(ms * float64(time.Millisecond)))
}

// SimulatedClock is a manually driven [Clock], for deterministic tests.
// It is safe for concurrent use.
type SimulatedClock struct {
	mu  sync.Mutex
	now float64
}

// NowMillis implements [Clock].
func (c *SimulatedClock) NowMillis() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to the given time. Moving backwards is not prevented,
// but violates the monotonic contract of [Clock].
func (c *SimulatedClock) Set(ms float64) {
	c.mu.Lock()
	c.now = ms
	c.mu.Unlock()
}

// Advance moves the clock forward by the given number of milliseconds.
func (c *SimulatedClock) Advance(ms float64) {
	c.mu.Lock()
	c.now += ms
	c.mu.Unlock()
}

// Sleep implements [Clock], by advancing the clock.
func (c *SimulatedClock) Sleep(ms float64) {
	c.Advance(ms)
}
