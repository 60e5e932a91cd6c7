// Package sched implements the scheduler vtable interface and its
// concrete policies, plus the scheduler-core manager that holds the
// active one (spec components G and H).
package sched

import (
	"rtos-go/kconfig"
	"rtos-go/readyqueue"
	"rtos-go/task"
)

// Reason names why Schedule was invoked, mirroring §4.G's reason set.
type Reason int

const (
	Tick Reason = iota
	Yield
	Block
	Unblock
	PriorityChange
	TaskExit
	Preemption
	Migration
	ErrorRecovery
)

func (r Reason) String() string {
	switch r {
	case Tick:
		return "TICK"
	case Yield:
		return "YIELD"
	case Block:
		return "BLOCK"
	case Unblock:
		return "UNBLOCK"
	case PriorityChange:
		return "PRIORITY_CHANGE"
	case TaskExit:
		return "TASK_EXIT"
	case Preemption:
		return "PREEMPTION"
	case Migration:
		return "MIGRATION"
	case ErrorRecovery:
		return "ERROR_RECOVERY"
	default:
		return "UNKNOWN"
	}
}

// Scheduler is the vtable every scheduling policy implements (§4.G).
type Scheduler interface {
	Kind() kconfig.SchedulerKind
	Init(q *readyqueue.Queue) error
	Deinit() error
	SelectNext(q *readyqueue.Queue) (*task.TCB, error)
	Enqueue(q *readyqueue.Queue, t *task.TCB) error
	Dequeue(q *readyqueue.Queue, t *task.TCB) error
	Requeue(q *readyqueue.Queue, t *task.TCB) error
	Yield(t *task.TCB)
	Count(q *readyqueue.Queue) int
	IsEmpty(q *readyqueue.Queue) bool
	NeedReschedule(q *readyqueue.Queue, reason Reason) bool
}

// PriorityChanger is the optional extension for priority-inheritance
// support (§4.G: "optional change_priority/get_effective_priority").
// None of the concrete schedulers here implement it yet; SPEC_FULL.md
// records this as a resolved open question (fields reserved, behavior
// deferred).
type PriorityChanger interface {
	ChangePriority(t *task.TCB, newPriority int) error
	GetEffectivePriority(t *task.TCB) int
}

// countEmpty is a shared helper for Count/IsEmpty, identical across
// every policy here since they all delegate storage to the same
// readyqueue.Queue.
func countEmpty(q *readyqueue.Queue) (int, bool) {
	n := q.Stats().TotalTasks
	return n, n == 0
}
