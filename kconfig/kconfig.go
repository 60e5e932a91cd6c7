// Package kconfig holds the kernel's compile-time configuration record.
//
// A real Cortex-M build would fix these as const/#define at link time;
// here they are a plain struct so the simulation harness and tests can
// construct alternate configurations without recompiling the module.
package kconfig

import (
	"fmt"
	"time"
)

// SchedulerKind names the default scheduling policy.
type SchedulerKind string

const (
	RoundRobin SchedulerKind = "round_robin"
	Priority   SchedulerKind = "priority"
	EDF        SchedulerKind = "edf"
	RMS        SchedulerKind = "rms"
	Adaptive   SchedulerKind = "adaptive"
)

// MaxPriorityLevels is the hard ceiling on priority levels (a 256-bit bitmap).
const MaxPriorityLevels = 256

// Config is the kernel's compile-time configuration.
type Config struct {
	// CPUFrequencyHz is the nominal core clock, for diagnostic reporting only.
	CPUFrequencyHz uint32
	// TickFrequencyHz is the scheduler tick rate. Default 1000 (1 kHz).
	TickFrequencyHz uint32
	// MaxTasks bounds the TCB pool and node pool. Must be <= 256.
	MaxTasks int
	// PriorityLevels bounds the ready queue's priority lists. Must be <= 256.
	PriorityLevels int
	// StackMinBytes is the smallest stack a task may request.
	StackMinBytes uint32
	// StackDefaultBytes is used when a task does not specify a stack size.
	StackDefaultBytes uint32
	// StackIdleBytes is the idle task's stack size.
	StackIdleBytes uint32
	// CanaryPattern is written at the low end of every stack.
	CanaryPattern uint32
	// FillPattern fills unused stack to aid high-water-mark detection.
	FillPattern uint32
	// MPURegions is the number of MPU regions available for task isolation (0 disables).
	MPURegions int
	// DefaultScheduler names the scheduler activated at bring-up.
	DefaultScheduler SchedulerKind
	// TimeSliceTicks is the round-robin quantum in ticks.
	TimeSliceTicks uint32
	// CriticalSectionTimeout bounds how long a critical section may be held.
	CriticalSectionTimeout time.Duration
	// IntegrityIntervalTicks is the gap between automatic integrity checks.
	IntegrityIntervalTicks uint32
	// StatsSamplePeriod is the statistics collector's sampling interval.
	StatsSamplePeriod time.Duration
	// EWMAAlpha is the CPU-load exponential weighted moving average factor.
	EWMAAlpha float64
	// CPUAnomalyThreshold is the CPU-load fraction above which a sample
	// is anomalous (e.g. 0.95 for 95%).
	CPUAnomalyThreshold float64
	// DeadlineAnomalyAny marks any deadline miss as anomalous.
	DeadlineAnomalyAny bool
	// LatencyAnomalyThreshold bounds scheduling-decision latency (e.g. 10µs).
	LatencyAnomalyThreshold time.Duration
	// SyscallCeiling is the numeric interrupt priority at or above which
	// a critical section masks preemption. Interrupts below this
	// priority are never masked.
	SyscallCeiling int
}

// Default returns the reference configuration used by the kernel when no
// override is supplied.
func Default() Config {
	return Config{
		CPUFrequencyHz:          168_000_000,
		TickFrequencyHz:         1000,
		MaxTasks:                64,
		PriorityLevels:          MaxPriorityLevels,
		StackMinBytes:           256,
		StackDefaultBytes:       1024,
		StackIdleBytes:          256,
		CanaryPattern:           0xDEADC0DE,
		FillPattern:             0xA5A5A5A5,
		MPURegions:              0,
		DefaultScheduler:        Priority,
		TimeSliceTicks:          10,
		CriticalSectionTimeout:  500 * time.Microsecond,
		IntegrityIntervalTicks:  1000,
		StatsSamplePeriod:       100 * time.Millisecond,
		EWMAAlpha:               0.2,
		CPUAnomalyThreshold:     0.95,
		DeadlineAnomalyAny:      true,
		LatencyAnomalyThreshold: 10 * time.Microsecond,
		SyscallCeiling:          128,
	}
}

// Validate rejects out-of-range configuration values.
func (c Config) Validate() error {
	if c.MaxTasks <= 0 || c.MaxTasks > MaxPriorityLevels {
		return fmt.Errorf("kconfig: MaxTasks must be in (0, %d], got %d", MaxPriorityLevels, c.MaxTasks)
	}
	if c.PriorityLevels <= 0 || c.PriorityLevels > MaxPriorityLevels {
		return fmt.Errorf("kconfig: PriorityLevels must be in (0, %d], got %d", MaxPriorityLevels, c.PriorityLevels)
	}
	if c.TickFrequencyHz == 0 {
		return fmt.Errorf("kconfig: TickFrequencyHz must be non-zero")
	}
	if c.StackMinBytes == 0 || c.StackDefaultBytes < c.StackMinBytes {
		return fmt.Errorf("kconfig: stack sizes must satisfy 0 < min <= default")
	}
	if c.EWMAAlpha <= 0 || c.EWMAAlpha > 1 {
		return fmt.Errorf("kconfig: EWMAAlpha must be in (0, 1], got %f", c.EWMAAlpha)
	}
	if c.SyscallCeiling < 0 {
		return fmt.Errorf("kconfig: SyscallCeiling must be non-negative")
	}
	return nil
}
