package sched

import (
	"rtos-go/kconfig"
	"rtos-go/platform"
	"rtos-go/readyqueue"
	"rtos-go/task"
)

// EDFScheduler runs the ready task with the nearest absolute deadline.
//
// The ready queue (§4.D) is fixed as a priority-indexed structure, so
// EDF is implemented the way it commonly is on top of priority
// hardware: each task's absolute deadline is mapped onto the 0..255
// priority space at enqueue time (closer deadline => higher numeric
// priority), and selection then reduces to the ready queue's own
// highest-priority peek. Tasks with no registered deadline keep their
// base priority.
type EDFScheduler struct {
	clk       platform.Clock
	deadlines map[int]uint64 // taskID -> absolute deadline tick
	horizon   uint64          // ticks over which the priority space is spread
}

// NewEDF constructs an EDF scheduler. horizon bounds how many ticks out
// a deadline can be before it saturates at the lowest mapped priority.
func NewEDF(clk platform.Clock, horizon uint64) *EDFScheduler {
	if horizon == 0 {
		horizon = 1
	}
	return &EDFScheduler{clk: clk, deadlines: make(map[int]uint64), horizon: horizon}
}

func (e *EDFScheduler) Kind() kconfig.SchedulerKind { return kconfig.EDF }

func (e *EDFScheduler) Init(q *readyqueue.Queue) error { return nil }
func (e *EDFScheduler) Deinit() error                  { e.deadlines = make(map[int]uint64); return nil }

// SetDeadline records t's absolute deadline, in ticks, for future
// priority mapping. Call before the task is next enqueued.
func (e *EDFScheduler) SetDeadline(taskID int, deadlineTick uint64) {
	e.deadlines[taskID] = deadlineTick
}

func (e *EDFScheduler) mapPriority(t *task.TCB) int {
	deadline, ok := e.deadlines[t.TaskID]
	if !ok {
		return t.BasePriority
	}
	now := e.clk.TickCount()
	var remaining uint64
	if deadline > now {
		remaining = deadline - now
	}
	if remaining > e.horizon {
		remaining = e.horizon
	}
	// Nearer deadlines map to higher numeric priority.
	span := kconfig.MaxPriorityLevels - 1
	urgency := span - int(remaining*uint64(span)/e.horizon)
	if urgency < 0 {
		urgency = 0
	}
	if urgency > span {
		urgency = span
	}
	return urgency
}

func (e *EDFScheduler) SelectNext(q *readyqueue.Queue) (*task.TCB, error) {
	return q.PeekHighest()
}

func (e *EDFScheduler) Enqueue(q *readyqueue.Queue, t *task.TCB) error {
	t.EffectivePriority = e.mapPriority(t)
	t.Recompute()
	return q.Insert(t, e.clk.TickCount())
}

func (e *EDFScheduler) Dequeue(q *readyqueue.Queue, t *task.TCB) error {
	return q.Remove(t)
}

func (e *EDFScheduler) Requeue(q *readyqueue.Queue, t *task.TCB) error {
	if err := q.Remove(t); err != nil {
		return err
	}
	return e.Enqueue(q, t)
}

func (e *EDFScheduler) Yield(t *task.TCB) {}

func (e *EDFScheduler) Count(q *readyqueue.Queue) int {
	n, _ := countEmpty(q)
	return n
}

func (e *EDFScheduler) IsEmpty(q *readyqueue.Queue) bool {
	_, empty := countEmpty(q)
	return empty
}

func (e *EDFScheduler) NeedReschedule(q *readyqueue.Queue, reason Reason) bool {
	switch reason {
	case Block, TaskExit, Tick, Unblock, Yield:
		return true
	}
	return false
}
