// Package stats implements the per-task/system metrics collector and
// the trend/anomaly monitor layered on top of it (spec component K).
package stats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"rtos-go/task"
)

// PerTaskMetrics is one task's accumulated statistics record (§4.K).
type PerTaskMetrics struct {
	ExecutionCount  uint64 // = context switches
	MinRuntime      time.Duration
	MaxRuntime      time.Duration
	TotalRuntime    time.Duration
	MinResponseTime time.Duration
	MaxResponseTime time.Duration
	MaxJitter       time.Duration
	DeadlineMisses  uint64
}

// AvgRuntime derives the mean runtime from the accumulated total.
func (m PerTaskMetrics) AvgRuntime() time.Duration {
	if m.ExecutionCount == 0 {
		return 0
	}
	return m.TotalRuntime / time.Duration(m.ExecutionCount)
}

// SystemSample is one entry of the system-level circular history (§4.K).
type SystemSample struct {
	Timestamp    time.Time
	CPULoad      float64
	ActiveTasks  int
	MemoryUsage  uint64
}

const systemHistoryCapacity = 60

// SystemMetrics is the kernel-wide statistics record.
type SystemMetrics struct {
	ActiveCount    int
	ReadyCount     int
	BlockedCount   int
	SuspendedCount int
	PeakActive     int
	Uptime         time.Duration
	CPULoadEWMA    float64

	history    [systemHistoryCapacity]SystemSample
	historyLen int
}

// History returns up to the last 60 recorded samples, oldest first.
func (s *SystemMetrics) History() []SystemSample {
	n := s.historyLen
	if n > systemHistoryCapacity {
		n = systemHistoryCapacity
	}
	out := make([]SystemSample, 0, n)
	start := s.historyLen - n
	for i := 0; i < n; i++ {
		out = append(out, s.history[(start+i)%systemHistoryCapacity])
	}
	return out
}

// Reporter is invoked after each sample with a copy of the system metrics.
type Reporter func(SystemMetrics)

// Collector walks the TCB table at SamplePeriod, tallying per-state
// counts, updating the CPU-load EWMA from a caller-supplied busy ratio,
// and recording per-task runtime/response/jitter extremes.
type Collector struct {
	mu      sync.Mutex
	alpha   float64
	started time.Time
	enabled bool

	perTask  map[int]*PerTaskMetrics
	system   SystemMetrics
	reporter Reporter
}

// NewCollector constructs a Collector with the given EWMA factor (§4.K: α = 0.2).
func NewCollector(alpha float64) *Collector {
	return &Collector{alpha: alpha, perTask: make(map[int]*PerTaskMetrics)}
}

// SetReporter registers the function invoked after every sample.
func (c *Collector) SetReporter(r Reporter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reporter = r
}

// Enable starts uptime accounting from now. Sample is a no-op while disabled.
func (c *Collector) Enable(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = true
	c.started = now
}

// Disable stops the collector; System()/PerTask() still report the last
// recorded values.
func (c *Collector) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
}

// Sample tallies tasks by state, folds busyRatio (clamped to [0,1]) into
// the CPU-load EWMA, records a history entry, updates per-task runtime
// metrics from each TCB's timing/counters record, and invokes the
// registered reporter (§4.K).
func (c *Collector) Sample(now time.Time, tasks []*task.TCB, busyRatio float64, memoryUsage uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}

	if busyRatio < 0 {
		busyRatio = 0
	}
	if busyRatio > 1 {
		busyRatio = 1
	}

	var active, ready, blocked, suspended int
	for _, t := range tasks {
		switch t.State {
		case task.Running:
			active++
		case task.Ready:
			ready++
			active++
		case task.Blocked:
			blocked++
		case task.Suspended:
			suspended++
		}
		c.recordTaskLocked(t)
	}

	if active > c.system.PeakActive {
		c.system.PeakActive = active
	}
	c.system.ActiveCount = active
	c.system.ReadyCount = ready
	c.system.BlockedCount = blocked
	c.system.SuspendedCount = suspended
	c.system.Uptime = now.Sub(c.started)

	if c.system.historyLen == 0 {
		c.system.CPULoadEWMA = busyRatio
	} else {
		c.system.CPULoadEWMA = c.alpha*busyRatio + (1-c.alpha)*c.system.CPULoadEWMA
	}

	entry := SystemSample{Timestamp: now, CPULoad: c.system.CPULoadEWMA, ActiveTasks: active, MemoryUsage: memoryUsage}
	c.system.history[c.system.historyLen%systemHistoryCapacity] = entry
	c.system.historyLen++

	snapshot := c.system
	reporter := c.reporter
	if reporter != nil {
		reporter(snapshot)
	}
}

func (c *Collector) recordTaskLocked(t *task.TCB) {
	m, ok := c.perTask[t.TaskID]
	if !ok {
		m = &PerTaskMetrics{MinRuntime: t.Timing.LastRuntime, MinResponseTime: t.Timing.ResponseTime}
		c.perTask[t.TaskID] = m
	}
	m.ExecutionCount = t.Counters.ContextSwitches
	m.DeadlineMisses = t.Counters.DeadlineMisses
	m.TotalRuntime = t.Timing.TotalRuntime

	if t.Timing.LastRuntime > 0 {
		if m.MinRuntime == 0 || t.Timing.LastRuntime < m.MinRuntime {
			m.MinRuntime = t.Timing.LastRuntime
		}
		if t.Timing.LastRuntime > m.MaxRuntime {
			m.MaxRuntime = t.Timing.LastRuntime
		}
	}
	if t.Timing.ResponseTime > 0 {
		if m.MinResponseTime == 0 || t.Timing.ResponseTime < m.MinResponseTime {
			m.MinResponseTime = t.Timing.ResponseTime
		}
		if t.Timing.ResponseTime > m.MaxResponseTime {
			m.MaxResponseTime = t.Timing.ResponseTime
		}
	}
	if t.Timing.Jitter > m.MaxJitter {
		m.MaxJitter = t.Timing.Jitter
	}
}

// PerTask returns a copy of the accumulated metrics for taskID.
func (c *Collector) PerTask(taskID int) (PerTaskMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.perTask[taskID]
	if !ok {
		return PerTaskMetrics{}, false
	}
	return *m, true
}

// System returns a copy of the current system metrics.
func (c *Collector) System() SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.system
}

// TaskSnapshot pairs one task's accumulated metrics with its id, for
// export in a stable, sorted order.
type TaskSnapshot struct {
	TaskID int `json:"task_id"`
	PerTaskMetrics
}

// Snapshot is the canonical in-memory export record: the system metrics
// plus every task's accumulated metrics, sorted by task id. CSV and JSON
// views are both derived from this record rather than computed
// independently from the live collector state.
type Snapshot struct {
	System SystemMetrics  `json:"system"`
	Tasks  []TaskSnapshot `json:"tasks"`
}

// Snapshot captures the collector's current state as an exportable record.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Snapshot{System: c.system, Tasks: make([]TaskSnapshot, 0, len(c.perTask))}
	for id, m := range c.perTask {
		out.Tasks = append(out.Tasks, TaskSnapshot{TaskID: id, PerTaskMetrics: *m})
	}
	sort.Slice(out.Tasks, func(i, j int) bool { return out.Tasks[i].TaskID < out.Tasks[j].TaskID })
	return out
}

// JSON renders the snapshot as indented JSON, a human-readable view of
// the in-memory Snapshot record.
func (s Snapshot) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// CSV renders the snapshot's per-task rows as CSV, one row per task plus
// a header; system-wide fields are omitted since they don't fit the
// per-task tabular shape.
func (s Snapshot) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"task_id", "executions", "avg_runtime", "max_runtime", "max_jitter", "deadline_misses"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, t := range s.Tasks {
		row := []string{
			fmt.Sprintf("%d", t.TaskID),
			fmt.Sprintf("%d", t.ExecutionCount),
			t.AvgRuntime().String(),
			t.MaxRuntime.String(),
			t.MaxJitter.String(),
			fmt.Sprintf("%d", t.DeadlineMisses),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
