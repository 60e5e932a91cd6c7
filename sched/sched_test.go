package sched

import (
	"testing"

	"rtos-go/kconfig"
	"rtos-go/kerrors"
	"rtos-go/platform"
	"rtos-go/readyqueue"
	"rtos-go/task"
)

func newTCB(id, priority int) *task.TCB {
	t := task.New(id, priority, 0, 256, 1, 2)
	t.State = task.Ready
	t.Recompute()
	return t
}

func TestPriorityPreemptsOnHigherUnblock(t *testing.T) {
	_, clk := platform.Default()
	q := readyqueue.New(256, 8, 0)
	p := NewPriority(clk)

	low := newTCB(1, 5)
	if err := p.Enqueue(q, low); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SelectNext(q); err != nil {
		t.Fatal(err)
	}

	high := newTCB(2, 50)
	if err := p.Enqueue(q, high); err != nil {
		t.Fatal(err)
	}
	if !p.NeedReschedule(q, Unblock) {
		t.Error("expected reschedule when a higher-priority task becomes ready")
	}
}

func TestPriorityNoReschedulewhenLowerUnblocks(t *testing.T) {
	_, clk := platform.Default()
	q := readyqueue.New(256, 8, 0)
	p := NewPriority(clk)

	high := newTCB(1, 50)
	if err := p.Enqueue(q, high); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SelectNext(q); err != nil {
		t.Fatal(err)
	}

	low := newTCB(2, 5)
	if err := p.Enqueue(q, low); err != nil {
		t.Fatal(err)
	}
	if p.NeedReschedule(q, Unblock) {
		t.Error("did not expect reschedule when a lower-priority task becomes ready")
	}
}

func TestRoundRobinRotatesOnQuantumExpiry(t *testing.T) {
	_, clk := platform.Default()
	q := readyqueue.New(256, 8, 0)
	rr := NewRoundRobin(clk, 2)

	a := newTCB(1, 10)
	b := newTCB(2, 10)
	if err := rr.Enqueue(q, a); err != nil {
		t.Fatal(err)
	}
	if err := rr.Enqueue(q, b); err != nil {
		t.Fatal(err)
	}

	first, err := rr.SelectNext(q)
	if err != nil {
		t.Fatal(err)
	}
	if first.TaskID != a.TaskID {
		t.Fatalf("expected task 1 first (FIFO within priority), got %d", first.TaskID)
	}

	if rr.NeedReschedule(q, Tick) {
		t.Fatal("did not expect reschedule before quantum expiry")
	}
	if !rr.NeedReschedule(q, Tick) {
		t.Fatal("expected reschedule once quantum expires")
	}

	if err := rr.Requeue(q, first); err != nil {
		t.Fatal(err)
	}
	next, err := rr.SelectNext(q)
	if err != nil {
		t.Fatal(err)
	}
	if next.TaskID != b.TaskID {
		t.Errorf("expected rotation to task 2, got %d", next.TaskID)
	}
}

func TestEDFOrdersByNearestDeadline(t *testing.T) {
	_, clk := platform.Default()
	q := readyqueue.New(256, 8, 0)
	edf := NewEDF(clk, 1000)

	urgent := newTCB(1, 0)
	relaxed := newTCB(2, 0)
	edf.SetDeadline(urgent.TaskID, 10)
	edf.SetDeadline(relaxed.TaskID, 900)

	if err := edf.Enqueue(q, relaxed); err != nil {
		t.Fatal(err)
	}
	if err := edf.Enqueue(q, urgent); err != nil {
		t.Fatal(err)
	}

	got, err := edf.SelectNext(q)
	if err != nil {
		t.Fatal(err)
	}
	if got.TaskID != urgent.TaskID {
		t.Errorf("expected nearest-deadline task first, got %d", got.TaskID)
	}
}

func TestRMSOrdersByShortestPeriod(t *testing.T) {
	_, clk := platform.Default()
	q := readyqueue.New(256, 8, 0)
	rms := NewRMS(clk, 1000)

	fast := newTCB(1, 0)
	slow := newTCB(2, 0)
	rms.SetPeriod(fast.TaskID, 10)
	rms.SetPeriod(slow.TaskID, 500)

	if err := rms.Enqueue(q, slow); err != nil {
		t.Fatal(err)
	}
	if err := rms.Enqueue(q, fast); err != nil {
		t.Fatal(err)
	}

	got, err := rms.SelectNext(q)
	if err != nil {
		t.Fatal(err)
	}
	if got.TaskID != fast.TaskID {
		t.Errorf("expected shortest-period task first, got %d", got.TaskID)
	}
}

func TestRegistryRegisterSetActiveGetByID(t *testing.T) {
	_, clk := platform.Default()
	r := NewRegistry()

	prID, err := r.Register(NewPriority(clk))
	if err != nil {
		t.Fatal(err)
	}
	rrID, err := r.Register(NewRoundRobin(clk, 10))
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SetActive(prID); err != nil {
		t.Fatal(err)
	}
	active, err := r.GetActive()
	if err != nil {
		t.Fatal(err)
	}
	if active.Kind() != kconfig.Priority {
		t.Fatalf("expected active scheduler to be the priority scheduler, got %v", active.Kind())
	}

	if err := r.SetActive(rrID); err != nil {
		t.Fatal(err)
	}
	d, err := r.GetByID(prID)
	if err != nil {
		t.Fatal(err)
	}
	if d.State != Inactive {
		t.Errorf("expected previous active descriptor demoted to INACTIVE, got %v", d.State)
	}

	if !r.Validate() {
		t.Error("expected registry to validate")
	}
}

func TestRegistryRefusesExhaustion(t *testing.T) {
	_, clk := platform.Default()
	r := NewRegistry()
	for i := 0; i < MaxSchedulers; i++ {
		if _, err := r.Register(NewPriority(clk)); err != nil {
			t.Fatalf("unexpected error registering slot %d: %v", i, err)
		}
	}
	_, err := r.Register(NewPriority(clk))
	if !kerrors.IsCode(err, kerrors.LimitExceeded) {
		t.Errorf("expected LimitExceeded on registry exhaustion, got %v", err)
	}
}

func TestRegistryUnregisterClearsActive(t *testing.T) {
	_, clk := platform.Default()
	r := NewRegistry()
	id, err := r.Register(NewPriority(clk))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetActive(id); err != nil {
		t.Fatal(err)
	}
	if err := r.Unregister(id); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetActive(); err == nil {
		t.Error("expected no active scheduler after unregistering it")
	}
}
