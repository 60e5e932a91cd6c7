// Package kpanic implements the panic channel and fault-capture context
// (spec component J): double-panic detection, a diagnostic context
// snapshot, a registered-or-default handler, optional persistence, and
// auto-restart vs halt-in-WFI.
package kpanic

import (
	"fmt"
	"sync"
	"time"

	"rtos-go/klog"
)

// Reason names the fault vector or caller that invoked the panic channel.
type Reason int

const (
	KernelAssert Reason = iota
	HardFault
	MemFault
	BusFault
	UsageFault
	StackOverflowFault
	Custom
)

func (r Reason) String() string {
	switch r {
	case KernelAssert:
		return "KERNEL_ASSERT"
	case HardFault:
		return "HARD_FAULT"
	case MemFault:
		return "MEM_FAULT"
	case BusFault:
		return "BUS_FAULT"
	case UsageFault:
		return "USAGE_FAULT"
	case StackOverflowFault:
		return "STACK_OVERFLOW"
	case Custom:
		return "CUSTOM"
	default:
		return "UNKNOWN"
	}
}

// Action is what the caller should do after Panic returns.
type Action int

const (
	Halt Action = iota
	Restart
	ResetImmediate // double-panic: skip handler/persist entirely
)

func (a Action) String() string {
	switch a {
	case Halt:
		return "HALT"
	case Restart:
		return "RESTART"
	case ResetImmediate:
		return "RESET_IMMEDIATE"
	default:
		return "UNKNOWN"
	}
}

// Context is the diagnostic snapshot captured at panic time, standing
// in for the real firmware's noinit-marked register/fault dump (§4.J).
type Context struct {
	Reason    Reason
	Message   string
	File      string
	Line      int
	Timestamp time.Time

	Registers   [16]uint32 // general-purpose register file at fault time
	FaultStatus uint32     // architecture fault-status word

	CurrentTaskID    int
	KernelState      string
	CriticalNesting  int
	InterruptNesting int
	ProcessSP        uintptr
	MainSP           uintptr
}

// HistoryEntry pairs a captured Context with its sequence number.
type HistoryEntry struct {
	Seq uint64
	Ctx Context
}

// Handler receives the fault context before the default formatting runs.
type Handler func(Context)

// PersistFunc optionally writes the context to durable storage (flash,
// on real firmware; a file or remote sink here).
type PersistFunc func(Context) error

const historyCapacity = 3

// noinit-style state: this package-level state intentionally survives
// a simulated kernel reset (only Acknowledge clears the in-panic latch;
// count and history persist, mirroring the real firmware's noinit RAM
// section that a CPU reset does not clear).
var (
	noinitMu      sync.Mutex
	noinitInPanic bool
	noinitCount   uint64
	noinitHistory [historyCapacity]HistoryEntry
	noinitLen     int
)

// Manager wires a registered handler and persistence hook to the shared
// noinit-backed panic state.
type Manager struct {
	mu           sync.Mutex
	handler      Handler
	persist      PersistFunc
	autoRestart  bool
	restartDelay time.Duration
}

// NewManager constructs a Manager. autoRestart and restartDelay mirror
// the kernel configuration's reset-on-panic policy.
func NewManager(autoRestart bool, restartDelay time.Duration) *Manager {
	return &Manager{autoRestart: autoRestart, restartDelay: restartDelay}
}

// SetHandler registers the application's fault handler, replacing any default.
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// SetPersist registers a function to persist the context after capture.
func (m *Manager) SetPersist(p PersistFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist = p
}

// Count returns the lifetime panic count (noinit-backed; survives resets).
func Count() uint64 {
	noinitMu.Lock()
	defer noinitMu.Unlock()
	return noinitCount
}

// History returns up to the last 3 captured contexts, oldest first.
func History() []HistoryEntry {
	noinitMu.Lock()
	defer noinitMu.Unlock()
	n := noinitLen
	if n > historyCapacity {
		n = historyCapacity
	}
	out := make([]HistoryEntry, 0, n)
	start := noinitLen - n
	for i := 0; i < n; i++ {
		out = append(out, noinitHistory[(start+i)%historyCapacity])
	}
	return out
}

// Acknowledge clears the in-panic latch after a reset has been handled,
// allowing a subsequent genuine fault to be processed rather than
// treated as a double panic. Count and history are untouched.
func Acknowledge() {
	noinitMu.Lock()
	defer noinitMu.Unlock()
	noinitInPanic = false
}

// Panic disables further processing of the fault channel if a panic is
// already in flight (double-panic => immediate reset, §4.J), otherwise
// captures the context, invokes the registered or default handler,
// optionally persists it, and reports whether the caller should restart
// or halt.
func (m *Manager) Panic(ctx Context) Action {
	noinitMu.Lock()
	if noinitInPanic {
		noinitMu.Unlock()
		return ResetImmediate
	}
	noinitInPanic = true
	noinitCount++
	seq := noinitCount
	noinitHistory[noinitLen%historyCapacity] = HistoryEntry{Seq: seq, Ctx: ctx}
	noinitLen++
	noinitMu.Unlock()

	m.mu.Lock()
	handler := m.handler
	persist := m.persist
	autoRestart := m.autoRestart
	m.mu.Unlock()

	if handler != nil {
		handler(ctx)
	} else {
		defaultHandler(ctx)
	}

	if persist != nil {
		if err := persist(ctx); err != nil {
			klog.Error("kpanic: failed to persist fault context", "error", err)
		}
	}

	if autoRestart {
		return Restart
	}
	return Halt
}

// RestartDelay returns the configured delay before a restart action.
func (m *Manager) RestartDelay() time.Duration {
	return m.restartDelay
}

func defaultHandler(ctx Context) {
	klog.Error("kernel panic",
		"reason", ctx.Reason.String(),
		"message", ctx.Message,
		"file", ctx.File,
		"line", ctx.Line,
		"task", ctx.CurrentTaskID,
		"kernel_state", ctx.KernelState,
		"fault_status", fmt.Sprintf("0x%08X", ctx.FaultStatus),
	)
}
