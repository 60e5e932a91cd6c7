package sched

import (
	"rtos-go/kconfig"
	"rtos-go/platform"
	"rtos-go/readyqueue"
	"rtos-go/task"
)

// RoundRobinScheduler runs the highest-priority ready task but rotates
// among equal-priority peers every TimeSliceTicks (§4.G).
type RoundRobinScheduler struct {
	clk            platform.Clock
	quantum        uint32
	ticksRemaining uint32
	current        *task.TCB
}

// NewRoundRobin constructs a round-robin scheduler with the given
// time-slice quantum, in ticks.
func NewRoundRobin(clk platform.Clock, quantumTicks uint32) *RoundRobinScheduler {
	return &RoundRobinScheduler{clk: clk, quantum: quantumTicks, ticksRemaining: quantumTicks}
}

func (r *RoundRobinScheduler) Kind() kconfig.SchedulerKind { return kconfig.RoundRobin }

func (r *RoundRobinScheduler) Init(q *readyqueue.Queue) error {
	r.ticksRemaining = r.quantum
	return nil
}

func (r *RoundRobinScheduler) Deinit() error { r.current = nil; return nil }

func (r *RoundRobinScheduler) SelectNext(q *readyqueue.Queue) (*task.TCB, error) {
	t, err := q.PeekHighest()
	if err != nil {
		return nil, err
	}
	if t != r.current {
		r.ticksRemaining = r.quantum
	}
	r.current = t
	return t, nil
}

func (r *RoundRobinScheduler) Enqueue(q *readyqueue.Queue, t *task.TCB) error {
	return q.Insert(t, r.clk.TickCount())
}

func (r *RoundRobinScheduler) Dequeue(q *readyqueue.Queue, t *task.TCB) error {
	return q.Remove(t)
}

// Requeue moves t to the tail of its priority list, implementing the
// rotation: remove then reinsert, which readyqueue.Queue always links
// at the tail.
func (r *RoundRobinScheduler) Requeue(q *readyqueue.Queue, t *task.TCB) error {
	if err := q.Remove(t); err != nil {
		return err
	}
	return q.Insert(t, r.clk.TickCount())
}

func (r *RoundRobinScheduler) Yield(t *task.TCB) {
	r.ticksRemaining = 0
}

func (r *RoundRobinScheduler) Count(q *readyqueue.Queue) int {
	n, _ := countEmpty(q)
	return n
}

func (r *RoundRobinScheduler) IsEmpty(q *readyqueue.Queue) bool {
	_, empty := countEmpty(q)
	return empty
}

// NeedReschedule always fires before any task has been picked yet,
// decrements the remaining quantum on TICK and signals a reschedule
// once it reaches zero (rotation), always on BLOCK or TASK_EXIT since
// the running task can no longer hold the processor, and always on
// YIELD, which resets the quantum for the next owner.
func (r *RoundRobinScheduler) NeedReschedule(q *readyqueue.Queue, reason Reason) bool {
	if r.current == nil {
		return true
	}
	switch reason {
	case Block, TaskExit, Yield:
		r.ticksRemaining = r.quantum
		return true
	case Tick:
		if r.ticksRemaining == 0 {
			r.ticksRemaining = r.quantum
			return true
		}
		r.ticksRemaining--
		return r.ticksRemaining == 0
	}
	return false
}
