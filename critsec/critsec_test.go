package critsec

import (
	"testing"
	"time"

	"rtos-go/kconfig"
	"rtos-go/platform"
)

func newTestGate() *Gate {
	ctrl, clk := platform.Default()
	cfg := kconfig.Default()
	return New(ctrl, clk, cfg)
}

func TestEnterExitPairing(t *testing.T) {
	g := newTestGate()

	g.Enter()
	g.Enter()
	g.Enter()
	if g.Nesting() != 3 {
		t.Fatalf("expected nesting 3, got %d", g.Nesting())
	}
	if !g.IsActive() {
		t.Error("expected gate active while nested")
	}

	g.Exit()
	if !g.IsActive() {
		t.Error("expected gate still active at nesting 2")
	}
	g.Exit()
	g.Exit()

	if g.IsActive() {
		t.Error("expected gate inactive after matched exits")
	}
	if g.Nesting() != 0 {
		t.Errorf("expected nesting 0, got %d", g.Nesting())
	}
}

func TestExitUnderflowPanics(t *testing.T) {
	g := newTestGate()
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on exit underflow")
		}
	}()
	g.Exit()
}

func TestNestingOverflowPanics(t *testing.T) {
	g := newTestGate()
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on nesting overflow")
		}
		for g.Nesting() > 0 {
			g.Exit()
		}
	}()
	for i := 0; i < maxNesting+1; i++ {
		g.Enter()
	}
}

func TestStatsMonotonic(t *testing.T) {
	g := newTestGate()
	for i := 0; i < 5; i++ {
		g.Enter()
		g.Exit()
	}
	stats := g.Stats()
	if stats.EnterCount != 5 || stats.ExitCount != 5 {
		t.Errorf("expected enter/exit count 5, got %+v", stats)
	}
}

func TestResetStatsRefusesWhileActive(t *testing.T) {
	g := newTestGate()
	g.Enter()
	if err := g.ResetStats(); err == nil {
		t.Error("expected ResetStats to refuse while active")
	}
	g.Exit()
	if err := g.ResetStats(); err != nil {
		t.Errorf("expected ResetStats to succeed once inactive: %v", err)
	}
}

func TestSetTimeoutRefusesWhileActive(t *testing.T) {
	g := newTestGate()
	g.Enter()
	if err := g.SetTimeout(time.Millisecond); err == nil {
		t.Error("expected SetTimeout to refuse while active")
	}
	g.Exit()
	if err := g.SetTimeout(time.Millisecond); err != nil {
		t.Errorf("expected SetTimeout to succeed once inactive: %v", err)
	}
}

func TestISRMaskRoundTrip(t *testing.T) {
	g := newTestGate()
	saved := g.EnterFromISR()
	g.ExitFromISR(saved)
}
