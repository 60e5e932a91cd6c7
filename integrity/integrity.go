// Package integrity implements the periodic corruption checker and its
// four escalating repair tiers over the ready queue (spec component I).
package integrity

import (
	"sync"

	"rtos-go/readyqueue"
)

// Status is re-exported from readyqueue since both packages share the
// same taxonomy (§4.I); integrity is the package that actually runs
// Floyd's cycle detection, while readyqueue.Validate uses a cheaper
// bounded traversal for its own periodic self-check.
type Status = readyqueue.Status

const (
	OK             = readyqueue.OK
	MagicFail      = readyqueue.MagicFail
	BitmapMismatch = readyqueue.BitmapMismatch
	NodeCorrupted  = readyqueue.NodeCorrupted
	ListCorrupted  = readyqueue.ListCorrupted
	CycleDetected  = readyqueue.CycleDetected
	CountMismatch  = readyqueue.CountMismatch
)

// Tier names one of the four escalating repair strategies (§4.I).
type Tier int

const (
	Minimal Tier = iota
	Moderate
	Aggressive
	Rebuild
)

func (t Tier) String() string {
	switch t {
	case Minimal:
		return "MINIMAL"
	case Moderate:
		return "MODERATE"
	case Aggressive:
		return "AGGRESSIVE"
	case Rebuild:
		return "REBUILD"
	default:
		return "UNKNOWN"
	}
}

// Stats tracks the checker's lifetime repair counters (§4.I: "Every
// repair increments repairs_attempted; on successful post-repair
// validate(), also repairs_successful").
type Stats struct {
	ChecksRun         uint64
	RepairsAttempted  uint64
	RepairsSuccessful uint64
	CyclesDetected    uint64
	LastStatus        Status
}

// Checker drives readyqueue.Queue's own Validate/Repair* methods plus
// an independent Floyd's-algorithm cycle sweep, escalating through
// tiers until the queue validates clean or REBUILD itself fails (at
// which point the caller is expected to raise a kernel panic).
type Checker struct {
	mu    sync.Mutex
	q     *readyqueue.Queue
	stats Stats
}

// New constructs a Checker bound to q.
func New(q *readyqueue.Queue) *Checker {
	return &Checker{q: q}
}

// Stats returns a copy of the checker's lifetime counters.
func (c *Checker) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Check runs a full validation pass: the queue's own invariant checks,
// then an independent cycle sweep over every priority list. The first
// failure found is returned.
func (c *Checker) Check() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.ChecksRun++

	if s := c.q.Validate(); s != OK {
		c.stats.LastStatus = s
		if s == CycleDetected {
			c.stats.CyclesDetected++
		}
		return s
	}
	if HasCycle(c.q) {
		c.stats.CyclesDetected++
		c.stats.LastStatus = CycleDetected
		return CycleDetected
	}
	c.stats.LastStatus = OK
	return OK
}

// Repair runs the given tier against the bound queue, then re-validates
// (including the cycle sweep) to decide whether the repair succeeded,
// updating the attempted/successful counters accordingly.
func (c *Checker) Repair(tier Tier) Status {
	c.mu.Lock()
	c.stats.RepairsAttempted++
	c.mu.Unlock()

	switch tier {
	case Minimal:
		c.q.RepairMinimal()
	case Moderate:
		c.q.RepairModerate()
	case Aggressive:
		c.q.RepairAggressive()
	case Rebuild:
		c.q.RepairRebuild()
	}

	s := c.Check()

	c.mu.Lock()
	if s == OK {
		c.stats.RepairsSuccessful++
	}
	c.mu.Unlock()
	return s
}

// EscalatingRepair tries MODERATE, then AGGRESSIVE, then REBUILD in
// order, stopping at the first tier that leaves the queue valid. It
// returns the final status; CycleDetected/any non-OK status after
// REBUILD signals the caller should escalate to a kernel panic (§4.I).
func (c *Checker) EscalatingRepair() Status {
	for _, tier := range []Tier{Moderate, Aggressive, Rebuild} {
		if s := c.Repair(tier); s == OK {
			return OK
		}
	}
	return c.Check()
}

// RunPeriodic implements the gap-based automatic check (§4.I: "A
// periodic tick drives a gap-based automatic MODERATE check; if that
// fails, AGGRESSIVE is tried; if that fails, panic"). It returns true
// if the queue ends up valid, false if the caller must panic.
func (c *Checker) RunPeriodic() bool {
	if c.Check() == OK {
		return true
	}
	if c.Repair(Moderate) == OK {
		return true
	}
	if c.Repair(Aggressive) == OK {
		return true
	}
	return false
}
