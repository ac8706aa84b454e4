//go:build linux || darwin

package eventloop

import (
	"golang.org/x/sys/unix"
)

// unixPoller waits using poll(2).
//
// PERFORMANCE: The pollfd buffer is retained between waits, and only grows
// if the table does.
type unixPoller struct {
	buf []unix.PollFd
}

// NewPoller returns the platform's default [Poller].
func NewPoller() Poller {
	return &unixPoller{}
}

// Wait implements [Poller].
func (p *unixPoller) Wait(regs []Registration, timeoutMs int) (int, error) {
	if cap(p.buf) < len(regs) {
		p.buf = make([]unix.PollFd, len(regs))
	}
	p.buf = p.buf[:len(regs)]
	for i := range regs {
		p.buf[i] = unix.PollFd{
			Fd:     int32(regs[i].FD),
			Events: eventsToPoll(regs[i].Interest),
		}
		regs[i].Result = 0
	}

	n, err := unix.Poll(p.buf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	for i := range regs {
		regs[i].Result = pollToEvents(p.buf[i].Revents)
	}
	return n, nil
}

// eventsToPoll converts IOEvents to poll(2) event flags.
func eventsToPoll(events IOEvents) int16 {
	var pollEvents int16
	if events&EventRead != 0 {
		pollEvents |= unix.POLLIN
	}
	if events&EventPriority != 0 {
		pollEvents |= unix.POLLPRI
	}
	if events&EventWrite != 0 {
		pollEvents |= unix.POLLOUT
	}
	return pollEvents
}

// pollToEvents converts poll(2) event flags to IOEvents.
func pollToEvents(pollEvents int16) IOEvents {
	var events IOEvents
	if pollEvents&unix.POLLIN != 0 {
		events |= EventRead
	}
	if pollEvents&unix.POLLPRI != 0 {
		events |= EventPriority
	}
	if pollEvents&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if pollEvents&unix.POLLERR != 0 {
		events |= EventError
	}
	if pollEvents&unix.POLLHUP != 0 {
		events |= EventHangup
	}
	if pollEvents&unix.POLLNVAL != 0 {
		events |= EventInvalid
	}
	return events
}
