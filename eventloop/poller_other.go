//go:build !linux && !darwin

package eventloop

import (
	"time"
)

// sleepPoller supports timers only, descriptors cannot be waited on.
type sleepPoller struct{}

// NewPoller returns the platform's default [Poller].
func NewPoller() Poller {
	return sleepPoller{}
}

// Wait implements [Poller].
func (sleepPoller) Wait(regs []Registration, timeoutMs int) (int, error) {
	if len(regs) != 0 {
		return 0, ErrPollerUnsupported
	}
	time.Sleep(time.Duration(timeoutMs) * time.Millisecond)
	return 0, nil
}
