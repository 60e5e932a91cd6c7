package hooks

import (
	"testing"

	"rtos-go/kerrors"
)

func TestRunInvokesEntriesInPriorityOrder(t *testing.T) {
	r := NewRegistry()
	var order []int
	r.Register(Tick, 20, func(any) any { order = append(order, 20); return nil })
	r.Register(Tick, 5, func(any) any { order = append(order, 5); return nil })
	r.Register(Tick, 10, func(any) any { order = append(order, 10); return nil })

	r.Run(Tick, nil)
	want := []int{5, 10, 20}
	if len(order) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("expected order %v, got %v", want, order)
		}
	}
}

func TestEqualPriorityTiesBreakByInsertionOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.Register(Idle, 10, func(any) any { order = append(order, "first"); return nil })
	r.Register(Idle, 10, func(any) any { order = append(order, "second"); return nil })

	r.Run(Idle, nil)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected insertion order on tie, got %v", order)
	}
}

func TestRunReturnsLastNonNilResult(t *testing.T) {
	r := NewRegistry()
	r.Register(TaskCreate, 1, func(any) any { return "a" })
	r.Register(TaskCreate, 2, func(any) any { return nil })
	r.Register(TaskCreate, 3, func(any) any { return "c" })

	if got := r.Run(TaskCreate, nil); got != "c" {
		t.Errorf("expected last non-nil result 'c', got %v", got)
	}
}

func TestDisableSkipsWithoutUnlinking(t *testing.T) {
	r := NewRegistry()
	called := false
	h, _ := r.Register(Tick, 1, func(any) any { called = true; return nil })
	r.Disable(h)
	r.Run(Tick, nil)
	if called {
		t.Error("expected disabled entry to be skipped")
	}
	if r.Stats(Tick).EntryCount != 1 {
		t.Error("expected disabled entry to remain linked in the chain")
	}

	r.Enable(h)
	r.Run(Tick, nil)
	if !called {
		t.Error("expected re-enabled entry to run")
	}
}

func TestStatsAccumulateCallCount(t *testing.T) {
	r := NewRegistry()
	r.Register(Tick, 1, func(any) any { return nil })
	r.Run(Tick, nil)
	r.Run(Tick, nil)
	r.Run(Tick, nil)

	s := r.Stats(Tick)
	if s.TotalCalls != 3 {
		t.Errorf("expected 3 total calls, got %d", s.TotalCalls)
	}
}

func TestLockRefusesFurtherRegistration(t *testing.T) {
	r := NewRegistry()
	r.Lock()
	_, err := r.Register(Tick, 1, func(any) any { return nil })
	if !kerrors.IsCode(err, kerrors.NotPermitted) {
		t.Errorf("expected NotPermitted after lock, got %v", err)
	}
}

func TestServiceRegistration(t *testing.T) {
	r := NewRegistry()
	if r.ServiceLive(ServiceScheduler) {
		t.Error("expected scheduler service not live before registration")
	}
	if err := r.RegisterService(ServiceScheduler); err != nil {
		t.Fatal(err)
	}
	if !r.ServiceLive(ServiceScheduler) {
		t.Error("expected scheduler service live after registration")
	}

	r.Lock()
	if err := r.RegisterService(ServiceStats); err == nil {
		t.Error("expected service registration to be refused after lock")
	}
}
