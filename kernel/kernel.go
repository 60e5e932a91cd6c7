// Package kernel wires every subsystem package into the bring-up/
// shutdown lifecycle and public task/scheduling API (spec components
// F through L combined behind one façade, mirroring §4.L).
package kernel

import (
	"sync"
	"time"

	"rtos-go/critsec"
	"rtos-go/hooks"
	"rtos-go/integrity"
	"rtos-go/kconfig"
	"rtos-go/kerrors"
	"rtos-go/klog"
	"rtos-go/kpanic"
	"rtos-go/platform"
	"rtos-go/readyqueue"
	"rtos-go/sched"
	"rtos-go/stats"
	"rtos-go/task"
	"rtos-go/waitqueue"
)

const idleTaskID = 0

// Kernel is the top-level control block binding every subsystem
// together (§3 "Kernel control block").
type Kernel struct {
	mu sync.Mutex

	cfg   kconfig.Config
	state State

	ctrl platform.Controller
	clk  platform.Clock

	Gate      *critsec.Gate
	Ready     *readyqueue.Queue
	Wait      *waitqueue.Lists
	Scheds    *sched.Registry
	Checker   *integrity.Checker
	Panic     *kpanic.Manager
	Collector *stats.Collector
	Monitor   *stats.Monitor
	Hooks     *hooks.Registry
	Machine   *task.Machine

	tasks      map[int]*task.TCB
	nextTaskID int
	stackTop   uintptr
	idleTask   *task.TCB
	running    *task.TCB
	tickCount  uint64

	lastStatsSample time.Time
}

// Bootstrap constructs every subsystem, runs the pre-start hook,
// creates the idle task, runs a self-test, and brings the kernel up to
// READY (§4.L: UNINITIALIZED -> INITIALIZING -> READY).
func Bootstrap(cfg kconfig.Config) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctrl, clk := platform.Default()
	gate := critsec.New(ctrl, clk, cfg)
	ready := readyqueue.New(cfg.PriorityLevels, cfg.MaxTasks, 100)
	wait := waitqueue.New(cfg.MaxTasks)
	schedRegistry := sched.NewRegistry()
	checker := integrity.New(ready)
	panicMgr := kpanic.NewManager(false, 0)
	collector := stats.NewCollector(cfg.EWMAAlpha)
	monitor := stats.NewMonitor(cfg.CPUAnomalyThreshold, cfg.LatencyAnomalyThreshold)
	hookReg := hooks.NewRegistry()

	k := &Kernel{
		cfg:        cfg,
		state:      Uninitialized,
		ctrl:       ctrl,
		clk:        clk,
		Gate:       gate,
		Ready:      ready,
		Wait:       wait,
		Scheds:     schedRegistry,
		Checker:    checker,
		Panic:      panicMgr,
		Collector:  collector,
		Monitor:    monitor,
		Hooks:      hookReg,
		tasks:      make(map[int]*task.TCB),
		nextTaskID: idleTaskID + 1,
	}

	if err := k.transition(Initializing); err != nil {
		return nil, err
	}
	hookReg.Run(hooks.KernelPreStart, cfg)

	for _, id := range []int{
		hooks.ServiceReadyQueue, hooks.ServiceWaitQueue, hooks.ServiceIntegrity,
		hooks.ServicePanic, hooks.ServiceStats, hooks.ServiceClock, hooks.ServiceLog,
	} {
		_ = hookReg.RegisterService(id)
	}

	s, err := newScheduler(cfg, clk)
	if err != nil {
		k.state = ErrorState
		return nil, err
	}
	schedID, err := schedRegistry.Register(s)
	if err != nil {
		k.state = ErrorState
		return nil, err
	}
	if err := schedRegistry.SetActive(schedID); err != nil {
		k.state = ErrorState
		return nil, err
	}
	if err := s.Init(ready); err != nil {
		k.state = ErrorState
		return nil, err
	}
	_ = hookReg.RegisterService(hooks.ServiceScheduler)

	idle := task.New(idleTaskID, 0, k.allocStack(cfg.StackIdleBytes), cfg.StackIdleBytes, cfg.CanaryPattern, cfg.FillPattern)
	idle.State = task.Ready
	idle.Recompute()
	ready.SetIdleTask(idle)
	k.idleTask = idle

	k.Machine = task.NewMachine(gate, &enqueuer{ready: ready, wait: wait, sched: k.activeScheduler})

	if c := checker.Check(); c != integrity.OK {
		k.state = ErrorState
		return nil, kerrors.WrapWithDetail(nil, kerrors.Corrupted, "bootstrap", "ready queue failed self-test: "+c.String())
	}
	if !schedRegistry.Validate() {
		k.state = ErrorState
		return nil, kerrors.New(kerrors.Corrupted, "bootstrap", "scheduler registry failed self-test")
	}

	hookReg.Lock()
	if err := k.transition(Ready); err != nil {
		k.state = ErrorState
		return nil, err
	}
	hookReg.Run(hooks.KernelPostStart, nil)

	now := clk.SystemTime()
	collector.Enable(now)
	k.lastStatsSample = now

	return k, nil
}

// newScheduler constructs the policy named by cfg.DefaultScheduler.
// ADAPTIVE has no dedicated implementation (no runtime policy-switching
// logic exists; DESIGN.md records this as a resolved open question) and
// falls back to fixed-priority.
func newScheduler(cfg kconfig.Config, clk platform.Clock) (sched.Scheduler, error) {
	horizon := uint64(cfg.IntegrityIntervalTicks) * 10
	if horizon == 0 {
		horizon = 10000
	}
	switch cfg.DefaultScheduler {
	case kconfig.RoundRobin:
		return sched.NewRoundRobin(clk, cfg.TimeSliceTicks), nil
	case kconfig.EDF:
		return sched.NewEDF(clk, horizon), nil
	case kconfig.RMS:
		return sched.NewRMS(clk, horizon), nil
	case kconfig.Priority, kconfig.Adaptive, "":
		return sched.NewPriority(clk), nil
	default:
		return nil, kerrors.New(kerrors.InvalidParameter, "new_scheduler", "unknown scheduler kind")
	}
}

func (k *Kernel) allocStack(size uint32) uintptr {
	base := k.stackTop
	k.stackTop += uintptr(size)
	return base
}

func (k *Kernel) activeScheduler() (sched.Scheduler, error) {
	return k.Scheds.GetActive()
}

func (k *Kernel) transition(to State) error {
	if !kernelAllowed(k.state, to) {
		return kerrors.WrapWithDetail(nil, kerrors.InvalidState, "transition",
			k.state.String()+" -> "+to.String()+" is not permitted")
	}
	k.state = to
	return nil
}

// State returns the kernel's current lifecycle state.
func (k *Kernel) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// TickCount returns the number of ticks processed since bring-up.
func (k *Kernel) TickCount() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tickCount
}

// TaskCount returns the number of live (non-terminated) tasks.
func (k *Kernel) TaskCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.tasks)
}

// Config returns the configuration the kernel was bootstrapped with.
func (k *Kernel) Config() kconfig.Config {
	return k.cfg
}

// Task looks up a live task by id.
func (k *Kernel) Task(taskID int) (*task.TCB, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[taskID]
	return t, ok
}

// Tasks returns a snapshot slice of every live task, for the stats
// collector and inspection tooling.
func (k *Kernel) Tasks() []*task.TCB {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]*task.TCB, 0, len(k.tasks))
	for _, t := range k.tasks {
		out = append(out, t)
	}
	return out
}

// CreateTask allocates a TCB at the given priority and stack size
// (0 selects the configured default), moves it to READY, and runs the
// task-create hook chain (§4.F create_task).
func (k *Kernel) CreateTask(priority int, stackSize uint32) (*task.TCB, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if priority < 0 || priority >= k.cfg.PriorityLevels {
		return nil, kerrors.New(kerrors.InvalidParameter, "create_task", "priority out of range")
	}
	if len(k.tasks) >= k.cfg.MaxTasks {
		return nil, kerrors.New(kerrors.NoMemory, "create_task", "task table is full")
	}
	if stackSize == 0 {
		stackSize = k.cfg.StackDefaultBytes
	}
	if stackSize < k.cfg.StackMinBytes {
		return nil, kerrors.New(kerrors.InvalidParameter, "create_task", "stack size below minimum")
	}

	id := k.nextTaskID
	k.nextTaskID++
	tcb := task.New(id, priority, k.allocStack(stackSize), stackSize, k.cfg.CanaryPattern, k.cfg.FillPattern)

	if err := k.Machine.Transition(tcb, task.Ready, k.clk.SystemTime()); err != nil {
		return nil, err
	}
	k.tasks[id] = tcb
	k.Hooks.Run(hooks.TaskCreate, tcb)
	return tcb, nil
}

// TerminateTask moves a task to TERMINATED from any state it can reach
// that from and removes it from the task table.
func (k *Kernel) TerminateTask(taskID int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tcb, ok := k.tasks[taskID]
	if !ok {
		return kerrors.New(kerrors.InvalidParameter, "terminate_task", "no such task")
	}
	if err := k.Machine.Transition(tcb, task.Terminated, k.clk.SystemTime()); err != nil {
		return err
	}
	if k.running == tcb {
		k.running = nil
	}
	delete(k.tasks, taskID)
	k.Hooks.Run(hooks.TaskDelete, tcb)
	return nil
}

// Block moves the task to BLOCKED, with an optional timeout in ticks
// (0 waits forever), and requests a reschedule.
func (k *Kernel) Block(taskID int, timeoutTicks uint64) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tcb, ok := k.tasks[taskID]
	if !ok {
		return kerrors.New(kerrors.InvalidParameter, "block", "no such task")
	}
	if timeoutTicks > 0 {
		tcb.WakeTime = k.tickCount + timeoutTicks
	} else {
		tcb.WakeTime = 0
	}
	if err := k.Machine.Transition(tcb, task.Blocked, k.clk.SystemTime()); err != nil {
		return err
	}
	_, err := k.scheduleLocked(sched.Block)
	return err
}

// Unblock moves a blocked (or delayed) task back to READY and requests
// a reschedule.
func (k *Kernel) Unblock(taskID int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tcb, ok := k.tasks[taskID]
	if !ok {
		return kerrors.New(kerrors.InvalidParameter, "unblock", "no such task")
	}
	if err := k.Machine.Transition(tcb, task.Ready, k.clk.SystemTime()); err != nil {
		return err
	}
	_, err := k.scheduleLocked(sched.Unblock)
	return err
}

// Suspend moves a task to SUSPENDED regardless of its current runnable state.
func (k *Kernel) Suspend(taskID int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tcb, ok := k.tasks[taskID]
	if !ok {
		return kerrors.New(kerrors.InvalidParameter, "suspend", "no such task")
	}
	if err := k.Machine.Transition(tcb, task.Suspended, k.clk.SystemTime()); err != nil {
		return err
	}
	if k.running == tcb {
		k.running = nil
	}
	return nil
}

// Resume moves a suspended task back to READY and requests a reschedule.
func (k *Kernel) Resume(taskID int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tcb, ok := k.tasks[taskID]
	if !ok {
		return kerrors.New(kerrors.InvalidParameter, "resume", "no such task")
	}
	if err := k.Machine.Transition(tcb, task.Ready, k.clk.SystemTime()); err != nil {
		return err
	}
	_, err := k.scheduleLocked(sched.Unblock)
	return err
}

// Yield asks the active scheduler to give up the remainder of the
// calling task's time slice and requests a reschedule.
func (k *Kernel) Yield(taskID int) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	tcb, ok := k.tasks[taskID]
	if !ok {
		return kerrors.New(kerrors.InvalidParameter, "yield", "no such task")
	}
	s, err := k.activeScheduler()
	if err != nil {
		return err
	}
	s.Yield(tcb)
	_, err = k.scheduleLocked(sched.Yield)
	return err
}

// Schedule asks the active scheduler whether a reschedule is needed
// for reason and, if so, performs the context switch bookkeeping
// (§4.G schedule(reason)).
func (k *Kernel) Schedule(reason sched.Reason) (*task.TCB, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.scheduleLocked(reason)
}

func (k *Kernel) scheduleLocked(reason sched.Reason) (*task.TCB, error) {
	if k.state == Ready {
		if err := k.transition(Running); err != nil {
			return nil, err
		}
	}

	s, err := k.activeScheduler()
	if err != nil {
		return nil, err
	}
	if !s.NeedReschedule(k.Ready, reason) {
		return k.running, nil
	}

	prev := k.running
	now := k.clk.SystemTime()

	// A RUNNING task holds no slot in the ready queue (Machine.Transition
	// unlinks it on promotion), so it must be demoted back to READY -
	// which re-enqueues it at the tail of its priority list through the
	// active scheduler's own Enqueue - before SelectNext can see it as a
	// rotation candidate again. If it comes back as the pick (no peer at
	// its priority), promote it straight back rather than running the
	// switch-out/switch-in hooks for a no-op.
	demoted := prev != nil && prev != k.idleTask && prev.State == task.Running
	if demoted {
		if err := k.Machine.Transition(prev, task.Ready, now); err != nil {
			return nil, err
		}
	}

	next, err := s.SelectNext(k.Ready)
	if err != nil {
		return nil, err
	}

	if demoted && next == prev {
		if err := k.Machine.Transition(prev, task.Running, now); err != nil {
			return nil, err
		}
		k.running = prev
		return prev, nil
	}

	if demoted {
		k.Hooks.Run(hooks.TaskSwitchOut, prev)
	}
	if next != nil && next != k.idleTask && next.State != task.Running {
		if err := k.Machine.Transition(next, task.Running, now); err != nil {
			return nil, err
		}
	}
	k.running = next
	if next != nil {
		k.Hooks.Run(hooks.TaskSwitchIn, next)
	} else {
		k.Hooks.Run(hooks.Idle, nil)
	}
	return next, nil
}

// Tick advances the tick counter, wakes any matured delayed tasks,
// drives a reschedule, and runs the periodic integrity check and
// statistics sample when their intervals elapse (§6 tick handler).
func (k *Kernel) Tick() error {
	k.mu.Lock()

	if adv, ok := k.clk.(platform.AdvanceClock); ok {
		k.tickCount = adv.Advance()
	} else {
		k.tickCount = k.clk.TickCount() + 1
	}
	tick := k.tickCount
	now := k.clk.SystemTime()

	k.Hooks.Run(hooks.Tick, tick)

	for _, t := range k.Wait.Matured(tick) {
		_ = k.Machine.Transition(t, task.Ready, now)
	}

	_, schedErr := k.scheduleLocked(sched.Tick)

	runIntegrity := k.cfg.IntegrityIntervalTicks > 0 && tick%uint64(k.cfg.IntegrityIntervalTicks) == 0
	runStats := k.cfg.StatsSamplePeriod > 0 && now.Sub(k.lastStatsSample) >= k.cfg.StatsSamplePeriod
	if runStats {
		k.lastStatsSample = now
	}
	tasks := make([]*task.TCB, 0, len(k.tasks))
	for _, t := range k.tasks {
		tasks = append(tasks, t)
	}
	busy := k.running != nil && k.running != k.idleTask

	k.mu.Unlock()

	if schedErr != nil {
		return schedErr
	}

	if runIntegrity {
		if !k.Checker.RunPeriodic() {
			ctx := kpanic.Context{
				Reason:      kpanic.KernelAssert,
				Message:     "ready queue integrity check failed after escalating repair",
				Timestamp:   now,
				KernelState: k.State().String(),
			}
			k.Panic.Panic(ctx)
		}
	}
	if runStats {
		busyRatio := 0.0
		if busy {
			busyRatio = 1.0
		}
		k.Collector.Sample(now, tasks, busyRatio, 0)
		sys := k.Collector.System()
		k.Monitor.Ingest(stats.MonitorSample{Timestamp: now, CPULoad: sys.CPULoadEWMA})
	}
	return nil
}

// SuspendKernel moves the kernel itself (not a task) from RUNNING to
// SUSPENDED, e.g. for low-power idle.
func (k *Kernel) SuspendKernel() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.transition(Suspended)
}

// ResumeKernel moves the kernel from SUSPENDED back to RUNNING.
func (k *Kernel) ResumeKernel() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.transition(Running)
}

// Shutdown runs the pre/post-shutdown hooks and moves the kernel to
// SHUTDOWN, its terminal state.
func (k *Kernel) Shutdown() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.Hooks.Run(hooks.KernelPreShutdown, nil)
	if k.state == Ready {
		if err := k.transition(Running); err != nil {
			return err
		}
	}
	if err := k.transition(Shutdown); err != nil {
		return err
	}
	k.Collector.Disable()
	k.Hooks.Run(hooks.KernelPostShutdown, nil)
	klog.Default().Info("kernel shutdown complete", "ticks", k.tickCount, "tasks_remaining", len(k.tasks))
	return nil
}
