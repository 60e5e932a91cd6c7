// Package hooks implements the kernel's hook chains and fixed service
// registry (spec component L): priority-sorted singly-linked chains per
// hook type, each entry individually enable/disable-able, with
// per-chain execution statistics.
package hooks

import (
	"sync"
	"time"

	"rtos-go/kerrors"
)

// Type identifies the event a hook chain runs for (§4.L).
type Type int

const (
	KernelPreStart Type = iota
	KernelPostStart
	KernelPreShutdown
	KernelPostShutdown
	Idle
	Tick
	TaskCreate
	TaskDelete
	TaskSwitchIn
	TaskSwitchOut
	TaskStackOverflow
	MemoryAlloc
	MemoryFree
	MemoryCorruption
	ErrorFatal
	ErrorAssert
	ErrorDeadlineMiss
	AppLifecycle
	Debug
	CustomBase
)

func (t Type) String() string {
	switch t {
	case KernelPreStart:
		return "KERNEL_PRE_START"
	case KernelPostStart:
		return "KERNEL_POST_START"
	case KernelPreShutdown:
		return "KERNEL_PRE_SHUTDOWN"
	case KernelPostShutdown:
		return "KERNEL_POST_SHUTDOWN"
	case Idle:
		return "IDLE"
	case Tick:
		return "TICK"
	case TaskCreate:
		return "TASK_CREATE"
	case TaskDelete:
		return "TASK_DELETE"
	case TaskSwitchIn:
		return "TASK_SWITCH_IN"
	case TaskSwitchOut:
		return "TASK_SWITCH_OUT"
	case TaskStackOverflow:
		return "TASK_STACK_OVERFLOW"
	case MemoryAlloc:
		return "MEMORY_ALLOC"
	case MemoryFree:
		return "MEMORY_FREE"
	case MemoryCorruption:
		return "MEMORY_CORRUPTION"
	case ErrorFatal:
		return "ERROR_FATAL"
	case ErrorAssert:
		return "ERROR_ASSERT"
	case ErrorDeadlineMiss:
		return "ERROR_DEADLINE_MISS"
	case AppLifecycle:
		return "APP_LIFECYCLE"
	case Debug:
		return "DEBUG"
	case CustomBase:
		return "CUSTOM_BASE"
	default:
		return "UNKNOWN"
	}
}

// Func is a hook callback. It receives an opaque event payload and
// returns a result value, which may be nil; the chain combines results
// with last-non-null-wins (§4.L).
type Func func(event any) any

// entry is one node of a hook chain.
type entry struct {
	priority int
	seq      uint64 // insertion order, for stable priority ties
	fn       Func
	enabled  bool

	calls        uint64
	totalElapsed time.Duration
	maxElapsed   time.Duration
}

// ChainStats reports a hook chain's cumulative execution statistics.
type ChainStats struct {
	EntryCount   int
	TotalCalls   uint64
	TotalElapsed time.Duration
	MaxElapsed   time.Duration
}

// chain is one priority-sorted singly-linked list of entries for a
// single hook Type. Represented as a slice kept sorted by (priority,
// seq) rather than actual linked nodes — the invariant (ascending
// priority, ties broken by insertion order) is the same; only the
// storage is simpler than the pointer-chasing original.
type chain struct {
	entries []*entry
}

func (c *chain) insert(e *entry) {
	i := 0
	for ; i < len(c.entries); i++ {
		if c.entries[i].priority > e.priority {
			break
		}
	}
	c.entries = append(c.entries, nil)
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
}

// Registry owns every hook chain and the fixed service-identifier table.
type Registry struct {
	mu     sync.Mutex
	chains map[Type]*chain
	seq    uint64

	locked bool // registration closes once the kernel leaves INITIALIZING

	services     [serviceCount]bool
	serviceNames [serviceCount]string
}

// Well-known service identifiers for the fixed registry table (§4.L:
// "eight well-known identifiers + a bitmap of which are live").
const (
	ServiceScheduler = iota
	ServiceReadyQueue
	ServiceWaitQueue
	ServiceIntegrity
	ServicePanic
	ServiceStats
	ServiceClock
	ServiceLog
	serviceCount
)

// NewRegistry constructs an empty hook/service registry, open for registration.
func NewRegistry() *Registry {
	r := &Registry{chains: make(map[Type]*chain)}
	r.serviceNames = [serviceCount]string{
		ServiceScheduler:  "scheduler",
		ServiceReadyQueue: "ready_queue",
		ServiceWaitQueue:  "wait_queue",
		ServiceIntegrity:  "integrity",
		ServicePanic:      "panic",
		ServiceStats:      "stats",
		ServiceClock:      "clock",
		ServiceLog:        "log",
	}
	return r
}

// Lock closes the registry to further registration, mirroring the
// kernel FSM's rule that hooks/services register only while
// INITIALIZING. The kernel calls this on its INITIALIZING -> READY
// transition.
func (r *Registry) Lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

// Register inserts fn into hookType's chain at its priority (ascending;
// ties broken by insertion order), returning a handle for Enable/Disable.
func (r *Registry) Register(hookType Type, priority int, fn Func) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return Handle{}, kerrors.New(kerrors.NotPermitted, "register", "registry is closed outside INITIALIZING")
	}
	c, ok := r.chains[hookType]
	if !ok {
		c = &chain{}
		r.chains[hookType] = c
	}
	r.seq++
	e := &entry{priority: priority, seq: r.seq, fn: fn, enabled: true}
	c.insert(e)
	return Handle{typ: hookType, seq: e.seq}, nil
}

// Handle identifies a registered hook entry for later Enable/Disable.
type Handle struct {
	typ Type
	seq uint64
}

// Disable flips the entry's enabled bit without unlinking it (§4.L: "Disable flips a bit; no unlink").
func (r *Registry) Disable(h Handle) {
	r.setEnabled(h, false)
}

// Enable re-enables a previously disabled entry.
func (r *Registry) Enable(h Handle) {
	r.setEnabled(h, true)
}

func (r *Registry) setEnabled(h Handle, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chains[h.typ]
	if !ok {
		return
	}
	for _, e := range c.entries {
		if e.seq == h.seq {
			e.enabled = enabled
			return
		}
	}
}

// Run calls every enabled entry of hookType's chain in priority order,
// timing each call and updating chain statistics, and returns the
// last non-nil result (§4.L).
func (r *Registry) Run(hookType Type, event any) any {
	r.mu.Lock()
	c, ok := r.chains[hookType]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	entries := make([]*entry, len(c.entries))
	copy(entries, c.entries)
	r.mu.Unlock()

	var result any
	for _, e := range entries {
		if !e.enabled {
			continue
		}
		start := time.Now()
		out := e.fn(event)
		elapsed := time.Since(start)

		r.mu.Lock()
		e.calls++
		e.totalElapsed += elapsed
		if elapsed > e.maxElapsed {
			e.maxElapsed = elapsed
		}
		r.mu.Unlock()

		if out != nil {
			result = out
		}
	}
	return result
}

// Stats reports hookType's chain-level execution statistics.
func (r *Registry) Stats(hookType Type) ChainStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chains[hookType]
	if !ok {
		return ChainStats{}
	}
	var s ChainStats
	s.EntryCount = len(c.entries)
	for _, e := range c.entries {
		s.TotalCalls += e.calls
		s.TotalElapsed += e.totalElapsed
		if e.maxElapsed > s.MaxElapsed {
			s.MaxElapsed = e.maxElapsed
		}
	}
	return s
}

// RegisterService marks a well-known service identifier live. Subject
// to the same INITIALIZING-only gate as hook registration.
func (r *Registry) RegisterService(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return kerrors.New(kerrors.NotPermitted, "register_service", "registry is closed outside INITIALIZING")
	}
	if id < 0 || id >= serviceCount {
		return kerrors.New(kerrors.InvalidParameter, "register_service", "unknown service id")
	}
	r.services[id] = true
	return nil
}

// ServiceLive reports whether the given well-known service id is registered.
func (r *Registry) ServiceLive(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= serviceCount {
		return false
	}
	return r.services[id]
}
