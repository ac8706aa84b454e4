// Descriptor readiness.
//
// Descriptors are registered with [Loop.ListenFD], which records the interest
// mask in the loop's poll table. Before every blocking wait the table is
// compacted, and handed to the [Poller] as a dense slice of [Registration].
//
// The default [Poller] is poll(2) (see poller_unix.go), which is level
// triggered: a descriptor stays ready until the handler consumes the event,
// or stops listening.
//
// Always stop listening (ListenFD(fd, 0)) before closing a file descriptor,
// to prevent stale event delivery due to FD recycling.

package eventloop

// IOEvents is a bitmask of descriptor events.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventPriority indicates urgent (out-of-band) data is available.
	EventPriority
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	// It is only ever reported, never waited for.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	// It is only ever reported, never waited for.
	EventHangup
	// EventInvalid indicates the descriptor is not open.
	// It is only ever reported, never waited for.
	EventInvalid
)

// Registration is a single entry of the descriptor poll table.
type Registration struct {
	// FD is the descriptor, zero marks an unused slot.
	FD int
	// Interest is the set of events waited for.
	Interest IOEvents
	// Result is the set of events observed by the last wait.
	Result IOEvents
}

// Poller performs the blocking multiplex wait.
//
// Wait blocks until at least one of regs is ready, or timeoutMs elapses,
// then sets the Result of every entry and returns the number of entries
// with a non-zero Result. A timeout of zero must not block. Interruption by
// a signal must be reported as (0, nil).
type Poller interface {
	Wait(regs []Registration, timeoutMs int) (int, error)
}

// PollerFunc adapts a function to [Poller].
type PollerFunc func(regs []Registration, timeoutMs int) (int, error)

// Wait implements [Poller].
func (f PollerFunc) Wait(regs []Registration, timeoutMs int) (int, error) {
	return f(regs, timeoutMs)
}
