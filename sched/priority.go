package sched

import (
	"rtos-go/kconfig"
	"rtos-go/platform"
	"rtos-go/readyqueue"
	"rtos-go/task"
)

// PriorityScheduler always runs the highest-priority ready task,
// preempting immediately whenever a higher-priority task becomes ready.
type PriorityScheduler struct {
	clk     platform.Clock
	current *task.TCB
}

// NewPriority constructs a fixed-priority scheduler.
func NewPriority(clk platform.Clock) *PriorityScheduler {
	return &PriorityScheduler{clk: clk}
}

func (p *PriorityScheduler) Kind() kconfig.SchedulerKind { return kconfig.Priority }

func (p *PriorityScheduler) Init(q *readyqueue.Queue) error  { return nil }
func (p *PriorityScheduler) Deinit() error                   { p.current = nil; return nil }

func (p *PriorityScheduler) SelectNext(q *readyqueue.Queue) (*task.TCB, error) {
	t, err := q.PeekHighest()
	if err != nil {
		return nil, err
	}
	p.current = t
	return t, nil
}

func (p *PriorityScheduler) Enqueue(q *readyqueue.Queue, t *task.TCB) error {
	return q.Insert(t, p.clk.TickCount())
}

func (p *PriorityScheduler) Dequeue(q *readyqueue.Queue, t *task.TCB) error {
	return q.Remove(t)
}

func (p *PriorityScheduler) Requeue(q *readyqueue.Queue, t *task.TCB) error {
	if err := q.Remove(t); err != nil {
		return err
	}
	return q.Insert(t, p.clk.TickCount())
}

func (p *PriorityScheduler) Yield(t *task.TCB) {}

func (p *PriorityScheduler) Count(q *readyqueue.Queue) int {
	n, _ := countEmpty(q)
	return n
}

func (p *PriorityScheduler) IsEmpty(q *readyqueue.Queue) bool {
	_, empty := countEmpty(q)
	return empty
}

// NeedReschedule reports true whenever the task at the head of the
// ready queue outranks the one currently recorded as running, when the
// running task has left the system entirely, or when it has
// voluntarily yielded (giving an equal-priority peer, if any, a turn).
func (p *PriorityScheduler) NeedReschedule(q *readyqueue.Queue, reason Reason) bool {
	switch reason {
	case Block, TaskExit, Yield:
		return true
	}
	head, err := q.PeekHighest()
	if err != nil || head == nil {
		return false
	}
	if p.current == nil {
		return true
	}
	return head.EffectivePriority > p.current.EffectivePriority
}
