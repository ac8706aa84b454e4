package eventloop

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks runtime statistics for the event loop.
// Metrics are designed to be low-overhead and thread-safe.
// They are optional, and attached to a Loop via WithMetrics.
//
// Example:
//
//	loop, _ := New(WithMetrics(true))
//	_ = loop.Run(ctx)
//	stats := loop.Metrics()
//	fmt.Printf("fired: %d, P99 callback latency: %v\n",
//		stats.TimersFired, stats.Latency.P99)
type Metrics struct {
	// Latency is the distribution of callback durations, timers and
	// descriptors alike.
	Latency LatencyMetrics

	Ticks          uint64
	TimersFired    uint64
	TimerFailures  uint64
	FDEvents       uint64
	FDFailures     uint64
	Waits          uint64
	WaitErrors     uint64
	MaxTimers      int
	MaxDescriptors int
}

// LatencyMetrics tracks latency distribution with percentiles.
type LatencyMetrics struct {
	// Computed percentiles (cached after Sample() call)
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration

	// Statistics
	Mean time.Duration
	Sum  time.Duration

	sampleIdx   int
	sampleCount int
	samples     [sampleSize]time.Duration
}

// sampleSize is the maximum number of latency samples to retain.
const sampleSize = 1000

// Record records a latency sample.
func (l *LatencyMetrics) Record(duration time.Duration) {
	// If buffer is full, subtract the old sample that we're replacing
	if l.sampleCount >= sampleSize {
		l.Sum -= l.samples[l.sampleIdx]
	}
	l.samples[l.sampleIdx] = duration
	l.Sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from collected samples, updating the cached
// values. Returns the number of samples used for computation.
func (l *LatencyMetrics) Sample() int {
	count := l.sampleCount
	if count == 0 {
		return 0
	}
	sorted := slices.Clone(l.samples[:count])
	slices.Sort(sorted)
	l.P50 = sorted[percentileIndex(count, 50)]
	l.P90 = sorted[percentileIndex(count, 90)]
	l.P95 = sorted[percentileIndex(count, 95)]
	l.P99 = sorted[percentileIndex(count, 99)]
	l.Max = sorted[count-1]
	l.Mean = l.Sum / time.Duration(count)
	return count
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// loopMetrics is the live, concurrently readable, form of [Metrics].
// Counters are written by the loop goroutine only.
type loopMetrics struct {
	ticks          atomic.Uint64
	timersFired    atomic.Uint64
	timerFailures  atomic.Uint64
	fdEvents       atomic.Uint64
	fdFailures     atomic.Uint64
	waits          atomic.Uint64
	waitErrors     atomic.Uint64
	maxTimers      atomic.Int64
	maxDescriptors atomic.Int64

	mu      sync.Mutex
	latency LatencyMetrics
}

func (m *loopMetrics) recordLatency(d time.Duration) {
	m.mu.Lock()
	m.latency.Record(d)
	m.mu.Unlock()
}

func (m *loopMetrics) observeTimers(n int) {
	if int64(n) > m.maxTimers.Load() {
		m.maxTimers.Store(int64(n))
	}
}

func (m *loopMetrics) observeDescriptors(n int) {
	if int64(n) > m.maxDescriptors.Load() {
		m.maxDescriptors.Store(int64(n))
	}
}

func (m *loopMetrics) snapshot() *Metrics {
	s := &Metrics{
		Ticks:          m.ticks.Load(),
		TimersFired:    m.timersFired.Load(),
		TimerFailures:  m.timerFailures.Load(),
		FDEvents:       m.fdEvents.Load(),
		FDFailures:     m.fdFailures.Load(),
		Waits:          m.waits.Load(),
		WaitErrors:     m.waitErrors.Load(),
		MaxTimers:      int(m.maxTimers.Load()),
		MaxDescriptors: int(m.maxDescriptors.Load()),
	}
	m.mu.Lock()
	s.Latency = m.latency
	m.mu.Unlock()
	s.Latency.Sample()
	return s
}
