package kpanic

import (
	"errors"
	"testing"
	"time"
)

// resetNoinitForTest clears all package-level noinit state between tests
// so they don't interfere with each other; real firmware would only get
// this via a power cycle, but tests need isolation.
func resetNoinitForTest() {
	noinitMu.Lock()
	defer noinitMu.Unlock()
	noinitInPanic = false
	noinitCount = 0
	noinitHistory = [historyCapacity]HistoryEntry{}
	noinitLen = 0
}

func TestPanicCapturesContextAndHalts(t *testing.T) {
	resetNoinitForTest()
	m := NewManager(false, 0)

	action := m.Panic(Context{Reason: KernelAssert, Message: "stack canary corrupted"})
	if action != Halt {
		t.Errorf("expected Halt with autoRestart=false, got %v", action)
	}
	if Count() != 1 {
		t.Errorf("expected panic count 1, got %d", Count())
	}
}

func TestPanicRestartsWhenConfigured(t *testing.T) {
	resetNoinitForTest()
	m := NewManager(true, 10*time.Millisecond)
	action := m.Panic(Context{Reason: HardFault})
	if action != Restart {
		t.Errorf("expected Restart with autoRestart=true, got %v", action)
	}
}

func TestDoublePanicResetsImmediately(t *testing.T) {
	resetNoinitForTest()
	m := NewManager(false, 0)
	if got := m.Panic(Context{Reason: BusFault}); got != Halt {
		t.Fatalf("expected first panic to Halt, got %v", got)
	}
	if got := m.Panic(Context{Reason: BusFault}); got != ResetImmediate {
		t.Errorf("expected second panic (before Acknowledge) to be ResetImmediate, got %v", got)
	}
	if Count() != 1 {
		t.Errorf("expected double-panic to not increment count, got %d", Count())
	}
}

func TestAcknowledgeClearsLatchWithoutClearingHistory(t *testing.T) {
	resetNoinitForTest()
	m := NewManager(false, 0)
	m.Panic(Context{Reason: MemFault})
	Acknowledge()

	if got := m.Panic(Context{Reason: UsageFault}); got != Halt {
		t.Errorf("expected post-acknowledge panic to be handled normally, got %v", got)
	}
	if Count() != 2 {
		t.Errorf("expected count 2 after two genuine panics, got %d", Count())
	}
	hist := History()
	if len(hist) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(hist))
	}
	if hist[0].Ctx.Reason != MemFault || hist[1].Ctx.Reason != UsageFault {
		t.Errorf("expected history oldest-first [MemFault, UsageFault], got %+v", hist)
	}
}

func TestHistoryCapsAtThreeEntries(t *testing.T) {
	resetNoinitForTest()
	m := NewManager(false, 0)
	reasons := []Reason{HardFault, MemFault, BusFault, UsageFault}
	for _, r := range reasons {
		m.Panic(Context{Reason: r})
		Acknowledge()
	}
	hist := History()
	if len(hist) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(hist))
	}
	if hist[0].Ctx.Reason != MemFault || hist[2].Ctx.Reason != UsageFault {
		t.Errorf("expected the oldest dropped and the latest 3 retained, got %+v", hist)
	}
}

func TestRegisteredHandlerInvoked(t *testing.T) {
	resetNoinitForTest()
	m := NewManager(false, 0)
	var seen Context
	m.SetHandler(func(c Context) { seen = c })
	m.Panic(Context{Reason: StackOverflowFault, Message: "overflow"})
	if seen.Reason != StackOverflowFault {
		t.Errorf("expected registered handler to receive the context, got %+v", seen)
	}
}

func TestPersistErrorDoesNotPreventHalt(t *testing.T) {
	resetNoinitForTest()
	m := NewManager(false, 0)
	m.SetPersist(func(Context) error { return errors.New("flash write failed") })
	action := m.Panic(Context{Reason: Custom})
	if action != Halt {
		t.Errorf("expected Halt even when persistence fails, got %v", action)
	}
}
