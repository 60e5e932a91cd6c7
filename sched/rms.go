package sched

import (
	"rtos-go/kconfig"
	"rtos-go/platform"
	"rtos-go/readyqueue"
	"rtos-go/task"
)

// RMSScheduler assigns static priority inversely proportional to each
// task's period (Rate Monotonic Scheduling): shorter period, higher
// numeric priority. Like EDFScheduler, it maps onto the fixed
// priority-indexed ready queue rather than maintaining a separate
// structure.
type RMSScheduler struct {
	clk     platform.Clock
	periods map[int]uint64 // taskID -> period, ticks
	horizon uint64
}

// NewRMS constructs an RMS scheduler. horizon is the longest period
// mapped to the lowest non-default priority; periods beyond it saturate.
func NewRMS(clk platform.Clock, horizon uint64) *RMSScheduler {
	if horizon == 0 {
		horizon = 1
	}
	return &RMSScheduler{clk: clk, periods: make(map[int]uint64), horizon: horizon}
}

func (r *RMSScheduler) Kind() kconfig.SchedulerKind { return kconfig.RMS }

func (r *RMSScheduler) Init(q *readyqueue.Queue) error { return nil }
func (r *RMSScheduler) Deinit() error                  { r.periods = make(map[int]uint64); return nil }

// SetPeriod records t's period, in ticks, for static priority mapping.
func (r *RMSScheduler) SetPeriod(taskID int, periodTicks uint64) {
	r.periods[taskID] = periodTicks
}

func (r *RMSScheduler) mapPriority(t *task.TCB) int {
	period, ok := r.periods[t.TaskID]
	if !ok {
		return t.BasePriority
	}
	if period > r.horizon {
		period = r.horizon
	}
	span := kconfig.MaxPriorityLevels - 1
	urgency := span - int(period*uint64(span)/r.horizon)
	if urgency < 0 {
		urgency = 0
	}
	if urgency > span {
		urgency = span
	}
	return urgency
}

func (r *RMSScheduler) SelectNext(q *readyqueue.Queue) (*task.TCB, error) {
	return q.PeekHighest()
}

func (r *RMSScheduler) Enqueue(q *readyqueue.Queue, t *task.TCB) error {
	t.EffectivePriority = r.mapPriority(t)
	t.Recompute()
	return q.Insert(t, r.clk.TickCount())
}

func (r *RMSScheduler) Dequeue(q *readyqueue.Queue, t *task.TCB) error {
	return q.Remove(t)
}

func (r *RMSScheduler) Requeue(q *readyqueue.Queue, t *task.TCB) error {
	if err := q.Remove(t); err != nil {
		return err
	}
	return r.Enqueue(q, t)
}

func (r *RMSScheduler) Yield(t *task.TCB) {}

func (r *RMSScheduler) Count(q *readyqueue.Queue) int {
	n, _ := countEmpty(q)
	return n
}

func (r *RMSScheduler) IsEmpty(q *readyqueue.Queue) bool {
	_, empty := countEmpty(q)
	return empty
}

func (r *RMSScheduler) NeedReschedule(q *readyqueue.Queue, reason Reason) bool {
	switch reason {
	case Block, TaskExit, Tick, Unblock, Yield:
		return true
	}
	return false
}
