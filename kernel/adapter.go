package kernel

import (
	"rtos-go/readyqueue"
	"rtos-go/sched"
	"rtos-go/task"
	"rtos-go/waitqueue"
)

// enqueuer satisfies task.Enqueuer by combining the active scheduler's
// ready-queue operations with the wait lists, so task.Machine can drive
// transitions without importing either concrete queue package.
type enqueuer struct {
	ready *readyqueue.Queue
	wait  *waitqueue.Lists
	sched func() (sched.Scheduler, error)
}

func (e *enqueuer) InsertReady(t *task.TCB) error {
	s, err := e.sched()
	if err != nil {
		return err
	}
	return s.Enqueue(e.ready, t)
}

func (e *enqueuer) RemoveReady(t *task.TCB) error {
	s, err := e.sched()
	if err != nil {
		return err
	}
	return s.Dequeue(e.ready, t)
}

func (e *enqueuer) InsertBlocked(t *task.TCB, wakeTick uint64) error {
	return e.wait.InsertBlocked(t, wakeTick)
}

func (e *enqueuer) RemoveBlocked(t *task.TCB) error {
	return e.wait.RemoveBlocked(t)
}

func (e *enqueuer) InsertSuspended(t *task.TCB) error {
	return e.wait.InsertSuspended(t)
}

func (e *enqueuer) RemoveSuspended(t *task.TCB) error {
	return e.wait.RemoveSuspended(t)
}

func (e *enqueuer) InsertDelayed(t *task.TCB, wakeTick uint64) error {
	return e.wait.InsertDelayed(t, wakeTick)
}

func (e *enqueuer) RemoveDelayed(t *task.TCB) error {
	return e.wait.RemoveDelayed(t)
}
