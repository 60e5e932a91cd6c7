package kernel

import (
	"testing"
	"time"

	"rtos-go/kconfig"
	"rtos-go/task"
)

func testConfig() kconfig.Config {
	cfg := kconfig.Default()
	cfg.MaxTasks = 8
	cfg.PriorityLevels = 16
	cfg.IntegrityIntervalTicks = 5
	cfg.StatsSamplePeriod = 0 // disable wall-clock-gated sampling in tests
	return cfg
}

func TestBootstrapReachesReady(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if k.State() != Ready {
		t.Fatalf("expected READY after bootstrap, got %v", k.State())
	}
}

func TestBootstrapRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTasks = 0
	if _, err := Bootstrap(cfg); err == nil {
		t.Fatal("expected bootstrap to reject an invalid configuration")
	}
}

func TestCreateTaskMovesToReady(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	tcb, err := k.CreateTask(5, 512)
	if err != nil {
		t.Fatal(err)
	}
	if tcb.State != task.Ready {
		t.Errorf("expected new task to be READY, got %v", tcb.State)
	}
	if k.TaskCount() != 1 {
		t.Errorf("expected 1 live task, got %d", k.TaskCount())
	}
}

func TestCreateTaskRefusesTableFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTasks = 1
	k, err := Bootstrap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := k.CreateTask(1, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := k.CreateTask(1, 0); err == nil {
		t.Fatal("expected task table exhaustion to be refused")
	}
}

func TestTickSelectsHighestPriorityTask(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	low, err := k.CreateTask(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	high, err := k.CreateTask(9, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := k.Tick(); err != nil {
		t.Fatal(err)
	}
	if high.State != task.Running {
		t.Errorf("expected higher-priority task running, got state %v", high.State)
	}
	if low.State != task.Ready {
		t.Errorf("expected lower-priority task to remain ready, got %v", low.State)
	}
	if k.State() != Running {
		t.Errorf("expected kernel to enter RUNNING on first schedule, got %v", k.State())
	}
}

func TestBlockThenUnblockReturnsTaskToReady(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	tcb, err := k.CreateTask(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Tick(); err != nil {
		t.Fatal(err)
	}

	if err := k.Block(tcb.TaskID, 0); err != nil {
		t.Fatal(err)
	}
	if tcb.State != task.Blocked {
		t.Fatalf("expected task blocked, got %v", tcb.State)
	}
	if err := k.Unblock(tcb.TaskID); err != nil {
		t.Fatal(err)
	}
	if tcb.State != task.Ready && tcb.State != task.Running {
		t.Errorf("expected task ready or running after unblock, got %v", tcb.State)
	}
}

func TestDelayedBlockWakesOnMaturedTick(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	tcb, err := k.CreateTask(3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Block(tcb.TaskID, 3); err != nil {
		t.Fatal(err)
	}
	if tcb.State != task.Blocked {
		t.Fatalf("expected task blocked, got %v", tcb.State)
	}

	for i := 0; i < 3; i++ {
		if err := k.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if tcb.State == task.Blocked {
		t.Error("expected delayed task to have woken by its wake tick")
	}
}

func TestSuspendAndResume(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	tcb, err := k.CreateTask(4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Suspend(tcb.TaskID); err != nil {
		t.Fatal(err)
	}
	if tcb.State != task.Suspended {
		t.Fatalf("expected suspended, got %v", tcb.State)
	}
	if err := k.Resume(tcb.TaskID); err != nil {
		t.Fatal(err)
	}
	if tcb.State != task.Ready && tcb.State != task.Running {
		t.Errorf("expected ready or running after resume, got %v", tcb.State)
	}
}

func TestTerminateTaskRemovesFromTable(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	tcb, err := k.CreateTask(4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.TerminateTask(tcb.TaskID); err != nil {
		t.Fatal(err)
	}
	if tcb.State != task.Terminated {
		t.Errorf("expected terminated, got %v", tcb.State)
	}
	if k.TaskCount() != 0 {
		t.Errorf("expected task table empty after terminate, got %d", k.TaskCount())
	}
}

func TestPeriodicIntegrityCheckKeepsQueueHealthy(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := k.CreateTask(i, 0); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 10; i++ {
		if err := k.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if k.Checker.Stats().ChecksRun == 0 {
		t.Error("expected at least one periodic integrity check to have run")
	}
}

func TestShutdownFromReadyTransitionsThroughRunning(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if k.State() != Shutdown {
		t.Errorf("expected SHUTDOWN, got %v", k.State())
	}
}

func TestShutdownIsTerminal(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := k.Shutdown(); err == nil {
		t.Error("expected shutdown-from-shutdown to be rejected")
	}
}

func TestRoundRobinRotatesEqualPriorityPeersOnQuantumExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultScheduler = kconfig.RoundRobin
	cfg.TimeSliceTicks = 2
	k, err := Bootstrap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	a, err := k.CreateTask(5, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := k.CreateTask(5, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := k.Tick(); err != nil {
		t.Fatal(err)
	}
	first := k.running
	if first != a && first != b {
		t.Fatalf("expected one of the two peers running, got %v", first)
	}

	// Drive past the two-tick quantum; the running peer must rotate to
	// its sibling rather than being reselected every time.
	for i := uint32(0); i < cfg.TimeSliceTicks+1; i++ {
		if err := k.Tick(); err != nil {
			t.Fatal(err)
		}
	}
	if k.running == first {
		t.Error("expected round-robin quantum expiry to rotate to the other equal-priority peer")
	}
}

func TestYieldSwitchesToEqualPriorityPeer(t *testing.T) {
	k, err := Bootstrap(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	a, err := k.CreateTask(5, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := k.CreateTask(5, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := k.Tick(); err != nil {
		t.Fatal(err)
	}
	running := a
	if b.State == task.Running {
		running = b
	}

	if err := k.Yield(running.TaskID); err != nil {
		t.Fatal(err)
	}
	if running.State == task.Running {
		t.Error("expected yielding task to give up the processor to its peer")
	}
	if k.running == running {
		t.Error("expected yield to switch the kernel's running task to the other peer")
	}
}

func TestStatsSampleReflectsRunningTask(t *testing.T) {
	cfg := testConfig()
	cfg.StatsSamplePeriod = time.Nanosecond
	k, err := Bootstrap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := k.CreateTask(5, 0); err != nil {
		t.Fatal(err)
	}
	if err := k.Tick(); err != nil {
		t.Fatal(err)
	}
	sys := k.Collector.System()
	if sys.ActiveCount == 0 {
		t.Error("expected at least one active task recorded by the collector")
	}
}
