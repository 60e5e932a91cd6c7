// Package task implements the Task Control Block and the task-state
// machine that validates and performs transitions among the eight task
// states (spec component F, §3 data model).
package task

import (
	"time"

	"rtos-go/checksum"
	"rtos-go/pool"
)

// tcbMagic is written into every live TCB and checked before trusting one.
const tcbMagic = 0x5443_4231 // "TCB1"

// State is one of the eight task states.
type State int

const (
	Invalid State = iota
	Created
	Ready
	Running
	Blocked
	Suspended
	Terminated
	Dormant
)

// String names the state for logs and diagnostics.
func (s State) String() string {
	switch s {
	case Invalid:
		return "INVALID"
	case Created:
		return "CREATED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Suspended:
		return "SUSPENDED"
	case Terminated:
		return "TERMINATED"
	case Dormant:
		return "DORMANT"
	default:
		return "UNKNOWN"
	}
}

// QueueKind identifies which structure a TCB's queue node lives in.
type QueueKind int

const (
	NoQueue QueueKind = iota
	InReadyQueue
	InBlockedList
	InSuspendedList
	InDelayedList
)

// QueueRef locates a TCB's queue node without task needing to import the
// queue packages that own the node storage (they import task instead).
type QueueRef struct {
	Kind   QueueKind
	Handle pool.Handle
}

// None reports whether the TCB is not currently linked in any queue.
func (r QueueRef) None() bool { return r.Kind == NoQueue }

// Timing holds the per-task timing record (§3).
type Timing struct {
	ActivationTime time.Time
	LastRuntime    time.Duration
	TotalRuntime   time.Duration
	ResponseTime   time.Duration
	Jitter         time.Duration
}

// Counters holds the per-task statistics record (§3).
type Counters struct {
	ContextSwitches uint64
	DeadlineMisses  uint64
	Migrations      uint64
}

// TCB is the Task Control Block.
type TCB struct {
	TaskID int

	State     State
	PrevState State

	BasePriority      int
	EffectivePriority int

	StackBase    uintptr
	StackSize    uint32
	CanaryWord   uint32
	FillPattern  uint32

	QueueNode QueueRef

	// WakeTime is the tick count at which a BLOCKED-with-timeout task
	// becomes eligible for return to READY.
	WakeTime uint64

	Timing   Timing
	Counters Counters

	Magic    uint32
	Checksum uint32
}

// New constructs a TCB in the INVALID state, with matching base and
// effective priority; the state machine moves it from INVALID to READY
// or DORMANT (it has no transition into CREATED).
func New(taskID int, priority int, stackBase uintptr, stackSize uint32, canary, fill uint32) *TCB {
	t := &TCB{
		TaskID:            taskID,
		State:             Invalid,
		PrevState:         Invalid,
		BasePriority:      priority,
		EffectivePriority: priority,
		StackBase:         stackBase,
		StackSize:         stackSize,
		CanaryWord:        canary,
		FillPattern:       fill,
		Magic:             tcbMagic,
	}
	t.Recompute()
	return t
}

// Recompute rewrites the TCB checksum over its significant fields. Call
// after any mutation so Validate stays meaningful.
func (t *TCB) Recompute() {
	t.Checksum = checksum.Fold(checksum.Seed,
		uint32(t.TaskID),
		uint32(t.State),
		uint32(t.BasePriority),
		uint32(t.EffectivePriority),
		uint32(t.StackSize),
		t.CanaryWord,
		t.Magic,
	)
}

// Validate reports whether the TCB's magic word, checksum, and priority
// invariant (effective >= base) all hold.
func (t *TCB) Validate() bool {
	if t == nil || t.Magic != tcbMagic {
		return false
	}
	if t.EffectivePriority < t.BasePriority {
		return false
	}
	want := checksum.Fold(checksum.Seed,
		uint32(t.TaskID),
		uint32(t.State),
		uint32(t.BasePriority),
		uint32(t.EffectivePriority),
		uint32(t.StackSize),
		t.CanaryWord,
		t.Magic,
	)
	return want == t.Checksum
}

// CanaryIntact checks the stack canary word against its expected
// pattern, standing in for a real read of the low stack word.
func (t *TCB) CanaryIntact(observed uint32) bool {
	return observed == t.CanaryWord
}
