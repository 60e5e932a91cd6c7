// Package platform abstracts the architecture-specific primitives the
// kernel core depends on: a wall-clock and tick source, and the
// interrupt-mask/barrier pair the critical-section gate uses.
//
// On real Cortex-M firmware these would touch the NVIC BASEPRI register,
// DMB/ISB instructions, and a SysTick-driven counter. This module is the
// seam spec.md §4 calls for so the core can be exercised under `go test`
// on a host OS: the default implementation stands an OS thread's signal
// mask in for the interrupt-priority mask register.
package platform

import "time"

// InterruptMask is an opaque token returned by Mask and consumed by
// Restore. Callers must treat it as opaque and pass it back unchanged.
type InterruptMask uint32

// Controller is the platform contract the critical-section gate (§4.A)
// depends on.
type Controller interface {
	// Mask disables preempting interrupts at or above ceiling and
	// returns the previous mask so it can be restored later.
	Mask(ceiling int) InterruptMask
	// Restore re-enables interrupts to the state captured by mask.
	Restore(mask InterruptMask)
	// DataBarrier issues a full data memory barrier.
	DataBarrier()
	// InstructionBarrier issues an instruction synchronization barrier.
	InstructionBarrier()
}

// Clock is the platform contract for §6's system_time()/tick_count().
type Clock interface {
	// SystemTime returns the current wall-clock time.
	SystemTime() time.Time
	// TickCount returns the number of scheduler ticks since bring-up.
	TickCount() uint64
}

// Default returns the host-backed platform implementation.
func Default() (Controller, Clock) {
	c := newHostController()
	return c, newHostClock()
}
