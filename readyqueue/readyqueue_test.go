package readyqueue

import (
	"testing"

	"rtos-go/kerrors"
	"rtos-go/task"
)

func newTCB(id, priority int) *task.TCB {
	t := task.New(id, priority, 0, 256, 1, 2)
	t.State = task.Ready
	t.Recompute()
	return t
}

func TestInsertPeekFIFOWithinPriority(t *testing.T) {
	q := New(256, 8, 0)
	a := newTCB(1, 10)
	b := newTCB(2, 20)
	c := newTCB(3, 10)

	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}
	if err := q.Insert(b, 2); err != nil {
		t.Fatal(err)
	}
	if err := q.Insert(c, 3); err != nil {
		t.Fatal(err)
	}

	got, err := q.PeekHighest()
	if err != nil {
		t.Fatal(err)
	}
	if got.TaskID != 2 {
		t.Fatalf("expected priority-20 task first, got %d", got.TaskID)
	}

	if err := q.Remove(b); err != nil {
		t.Fatal(err)
	}
	got, err = q.PeekHighest()
	if err != nil {
		t.Fatal(err)
	}
	if got.TaskID != 1 {
		t.Fatalf("expected FIFO order within priority 10 (task 1 first), got %d", got.TaskID)
	}
}

func TestPeekHighestFallsBackToIdle(t *testing.T) {
	q := New(256, 4, 0)
	idle := newTCB(99, 0)
	q.SetIdleTask(idle)

	got, err := q.PeekHighest()
	if err != nil {
		t.Fatal(err)
	}
	if got.TaskID != 99 {
		t.Errorf("expected idle task on empty queue, got %d", got.TaskID)
	}
}

func TestInsertAlreadyLinkedRejected(t *testing.T) {
	q := New(256, 4, 0)
	a := newTCB(1, 5)
	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}
	err := q.Insert(a, 2)
	if !kerrors.IsCode(err, kerrors.AlreadyInitialized) {
		t.Errorf("expected AlreadyInitialized, got %v", err)
	}
}

func TestInsertFullListLeavesQueueUnchanged(t *testing.T) {
	q := New(256, 2, 0)
	a := newTCB(1, 5)
	b := newTCB(2, 5)
	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}
	if err := q.Insert(b, 2); err != nil {
		t.Fatal(err)
	}

	before := q.Stats()
	c := newTCB(3, 5)
	// Priority list 5 (capacity 2) already holds a and b, so the third
	// insert is rejected as list-full before any node is allocated,
	// without touching the bitmap or stats.
	err := q.Insert(c, 3)
	if err == nil {
		t.Fatal("expected insert to fail when the priority list is full")
	}
	after := q.Stats()
	if before != after {
		t.Errorf("expected stats unchanged on failed insert: before=%+v after=%+v", before, after)
	}
}

func TestRemoveNotLinkedReturnsError(t *testing.T) {
	q := New(256, 4, 0)
	a := newTCB(1, 5)
	if err := q.Remove(a); err == nil {
		t.Error("expected error removing an unlinked TCB")
	}
}

func TestValidateDetectsCountMismatch(t *testing.T) {
	q := New(256, 4, 0)
	a := newTCB(1, 7)
	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}
	// Corrupt the list's count directly, simulating bit-flip corruption.
	q.lists[7].count = 99

	if got := q.Validate(); got != CountMismatch {
		t.Errorf("expected CountMismatch, got %v", got)
	}

	q.RepairAggressive()
	if got := q.Validate(); got != OK {
		t.Errorf("expected OK after aggressive repair, got %v", got)
	}
	if q.lists[7].count != 1 {
		t.Errorf("expected repaired count to reflect actual chain length (1), got %d", q.lists[7].count)
	}
}

func TestValidateDetectsBitmapMismatch(t *testing.T) {
	q := New(256, 4, 0)
	a := newTCB(1, 3)
	if err := q.Insert(a, 1); err != nil {
		t.Fatal(err)
	}
	q.bmp.Clear(3) // desync primary from the list's actual occupancy

	if got := q.Validate(); got != BitmapMismatch {
		t.Errorf("expected BitmapMismatch, got %v", got)
	}
}

func TestThousandInsertRemoveCycles(t *testing.T) {
	q := New(256, 32, 0)
	tcbs := make([]*task.TCB, 32)
	for i := range tcbs {
		tcbs[i] = newTCB(i+1, i%4*10)
	}

	for i := 0; i < 1000; i++ {
		tcb := tcbs[i%len(tcbs)]
		if err := q.Insert(tcb, uint64(i)); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
		if err := q.Remove(tcb); err != nil {
			t.Fatalf("remove %d failed: %v", i, err)
		}
	}

	stats := q.Stats()
	if stats.TotalTasks != 0 {
		t.Errorf("expected TotalTasks == 0, got %d", stats.TotalTasks)
	}
	if stats.Insertions != 1000 || stats.Removals != 1000 {
		t.Errorf("expected 1000 insertions/removals, got %+v", stats)
	}
	if got := q.Validate(); got != OK {
		t.Errorf("expected OK after churn, got %v", got)
	}
}
