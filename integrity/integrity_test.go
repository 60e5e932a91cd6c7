package integrity

import (
	"testing"

	"rtos-go/readyqueue"
	"rtos-go/task"
)

func newTCB(id, priority int) *task.TCB {
	t := task.New(id, priority, 0, 256, 1, 2)
	t.State = task.Ready
	t.Recompute()
	return t
}

func TestCheckReportsOKOnHealthyQueue(t *testing.T) {
	q := readyqueue.New(256, 8, 0)
	a := newTCB(1, 5)
	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}

	c := New(q)
	if got := c.Check(); got != OK {
		t.Errorf("expected OK, got %v", got)
	}
}

func TestRepairMinimalCountedAsAttemptedAndSuccessful(t *testing.T) {
	q := readyqueue.New(256, 8, 0)
	a := newTCB(1, 7)
	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}

	c := New(q)
	status := c.Repair(Minimal)
	if status != OK {
		t.Errorf("expected MINIMAL repair to leave a healthy queue OK, got %v", status)
	}
	stats := c.Stats()
	if stats.RepairsAttempted != 1 || stats.RepairsSuccessful != 1 {
		t.Errorf("expected 1 attempted/1 successful repair, got %+v", stats)
	}
}

func TestEscalatingRepairStopsAtFirstSuccessfulTier(t *testing.T) {
	q := readyqueue.New(256, 8, 0)
	a := newTCB(1, 3)
	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}

	c := New(q)
	status := c.EscalatingRepair()
	if status != OK {
		t.Errorf("expected escalating repair to converge to OK, got %v", status)
	}
	stats := c.Stats()
	if stats.RepairsAttempted == 0 {
		t.Error("expected at least one repair attempt to be recorded")
	}
}

func TestRunPeriodicSucceedsOnHealthyQueue(t *testing.T) {
	q := readyqueue.New(256, 8, 0)
	if !New(q).RunPeriodic() {
		t.Error("expected RunPeriodic to succeed on an already-healthy queue")
	}
}

func TestHasCycleFalseOnAcyclicQueue(t *testing.T) {
	q := readyqueue.New(256, 8, 0)
	for i := 1; i <= 5; i++ {
		tcb := newTCB(i, i%3)
		if err := q.Insert(tcb, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}
	if HasCycle(q) {
		t.Error("expected no cycle in a well-formed queue")
	}
}
