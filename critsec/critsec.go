// Package critsec implements the critical-section gate: bounded,
// nestable disabling of preempting interrupts with timing accounting
// (spec component A).
package critsec

import (
	"sync"
	"time"

	"rtos-go/kconfig"
	"rtos-go/kerrors"
	"rtos-go/platform"
)

// maxNesting is the hard ceiling on nested enter() calls; exceeding it
// is a contract violation serious enough to be unrecoverable (§4.A).
const maxNesting = 255

// Stats is a snapshot of the gate's timing and violation counters.
type Stats struct {
	EnterCount      uint64
	ExitCount       uint64
	MaxDuration     time.Duration
	TotalDuration   time.Duration
	TimeoutViolations uint64
}

// Gate is the critical-section control block (§3 "Critical-section
// control block"). The zero value is not usable; construct with New.
type Gate struct {
	mu sync.Mutex

	ctrl platform.Controller
	clk  platform.Clock

	nestingLevel int
	savedMask    platform.InterruptMask
	entryTime    time.Time
	ceiling      int
	timeout      time.Duration

	stats Stats
}

// New constructs a Gate bound to the given platform controller/clock and
// configuration (for the syscall ceiling and default timeout).
func New(ctrl platform.Controller, clk platform.Clock, cfg kconfig.Config) *Gate {
	return &Gate{
		ctrl:    ctrl,
		clk:     clk,
		ceiling: cfg.SyscallCeiling,
		timeout: cfg.CriticalSectionTimeout,
	}
}

// Enter disables preempting interrupts on first nest and increments the
// nesting level. Panics if nesting would exceed 255, matching the
// reference's "fails by panic" contract for an unrecoverable misuse.
func (g *Gate) Enter() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.nestingLevel >= maxNesting {
		panic("critsec: nesting level exceeded 255")
	}

	if g.nestingLevel == 0 {
		g.ctrl.DataBarrier()
		g.savedMask = g.ctrl.Mask(g.ceiling)
		g.ctrl.InstructionBarrier()
		g.entryTime = g.clk.SystemTime()
	}
	g.nestingLevel++
	g.stats.EnterCount++
}

// Exit decrements the nesting level and, on reaching zero, restores the
// saved interrupt mask and records timing statistics. Panics on
// underflow (exit without a matching enter).
func (g *Gate) Exit() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.nestingLevel == 0 {
		panic("critsec: exit called with nesting already at zero")
	}

	g.nestingLevel--
	g.stats.ExitCount++

	if g.nestingLevel == 0 {
		duration := g.clk.SystemTime().Sub(g.entryTime)
		g.stats.TotalDuration += duration
		if duration > g.stats.MaxDuration {
			g.stats.MaxDuration = duration
		}
		if g.timeout > 0 && duration > g.timeout {
			g.stats.TimeoutViolations++
		}

		g.ctrl.DataBarrier()
		g.ctrl.Restore(g.savedMask)
		g.ctrl.InstructionBarrier()
	}
}

// EnterFromISR disables preempting interrupts using the interrupt
// priority mask register and returns the prior value, which the caller
// must pass back unchanged to ExitFromISR. No nesting counter is kept
// for this path; it is stateless by design (§4.A).
func (g *Gate) EnterFromISR() platform.InterruptMask {
	g.ctrl.DataBarrier()
	prior := g.ctrl.Mask(g.ceiling)
	g.ctrl.InstructionBarrier()
	return prior
}

// ExitFromISR restores the mask returned by the paired EnterFromISR call.
func (g *Gate) ExitFromISR(saved platform.InterruptMask) {
	g.ctrl.DataBarrier()
	g.ctrl.Restore(saved)
	g.ctrl.InstructionBarrier()
}

// IsActive reports whether the gate currently has preempting interrupts masked.
func (g *Gate) IsActive() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nestingLevel > 0
}

// Nesting returns the current nesting level.
func (g *Gate) Nesting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nestingLevel
}

// Stats returns a copy of the gate's cumulative statistics.
func (g *Gate) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// ResetStats clears the cumulative statistics. Refuses while the gate is active.
func (g *Gate) ResetStats() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nestingLevel > 0 {
		return kerrors.New(kerrors.NotPermitted, "reset_stats", "gate is active")
	}
	g.stats = Stats{}
	return nil
}

// SetTimeout updates the critical-section timeout budget. Refuses while the gate is active.
func (g *Gate) SetTimeout(d time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nestingLevel > 0 {
		return kerrors.New(kerrors.NotPermitted, "set_timeout", "gate is active")
	}
	g.timeout = d
	return nil
}
