package platform

import (
	"sync/atomic"
	"time"
)

// hostClock implements Clock using the host wall clock and an
// explicitly-advanced tick counter (there is no free-running SysTick on
// a host OS, so the kernel's Tick() path calls Advance()).
type hostClock struct {
	ticks atomic.Uint64
}

func newHostClock() *hostClock {
	return &hostClock{}
}

// SystemTime returns the current wall-clock time.
func (c *hostClock) SystemTime() time.Time {
	return time.Now()
}

// TickCount returns the number of ticks advanced so far.
func (c *hostClock) TickCount() uint64 {
	return c.ticks.Load()
}

// Advance increments the tick counter by one and returns the new value.
// Called once per simulated tick interrupt.
func (c *hostClock) Advance() uint64 {
	return c.ticks.Add(1)
}

// AdvanceClock is implemented by Clock values produced by this package
// that support manual tick advancement, letting callers drive the
// simulation without a real timer interrupt.
type AdvanceClock interface {
	Clock
	Advance() uint64
}

var _ AdvanceClock = (*hostClock)(nil)
