package stats

import (
	"sync"
	"time"
)

// Trend is the direction a tracked metric has moved over the monitor's
// window (§4.K).
type Trend int

const (
	Stable Trend = iota
	Increasing
	Decreasing
)

func (t Trend) String() string {
	switch t {
	case Increasing:
		return "INCREASING"
	case Decreasing:
		return "DECREASING"
	default:
		return "STABLE"
	}
}

// AnomalyClass names one of the three anomaly categories the monitor
// tracks independently with its own hysteresis counter.
type AnomalyClass int

const (
	CPUAnomaly AnomalyClass = iota
	DeadlineAnomaly
	LatencyAnomaly
)

func (a AnomalyClass) String() string {
	switch a {
	case CPUAnomaly:
		return "CPU"
	case DeadlineAnomaly:
		return "DEADLINE"
	case LatencyAnomaly:
		return "LATENCY"
	default:
		return "UNKNOWN"
	}
}

// MonitorSample is one ingested observation.
type MonitorSample struct {
	Timestamp         time.Time
	CPULoad           float64
	IPC               float64
	DeadlineMissed    bool
	SchedulingLatency time.Duration
}

const (
	monitorWindow    = 100
	alertThreshold   = 3
	deadBandFraction = 0.10
)

// AlertFunc is invoked when an anomaly class crosses the alert threshold.
type AlertFunc func(AnomalyClass, int)

// Monitor keeps the last 100 samples, computes CPU/IPC trend on demand,
// and raises alerts once an anomaly class accumulates 3 hits under
// increment-on-hit/decrement-on-clean hysteresis (§4.K).
type Monitor struct {
	mu sync.Mutex

	samples [monitorWindow]MonitorSample
	count   int

	cpuThreshold     float64
	latencyThreshold time.Duration

	cpuAnomalies      int
	deadlineAnomalies int
	latencyAnomalies  int

	alert AlertFunc
}

// NewMonitor constructs a Monitor with the given anomaly thresholds
// (§4.K defaults: CPU > 95%, latency > 10µs, any deadline miss).
func NewMonitor(cpuThreshold float64, latencyThreshold time.Duration) *Monitor {
	return &Monitor{cpuThreshold: cpuThreshold, latencyThreshold: latencyThreshold}
}

// SetAlert registers the function invoked when a class crosses the alert threshold.
func (m *Monitor) SetAlert(f AlertFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alert = f
}

// Ingest records a sample into the ring and updates anomaly hysteresis,
// invoking the registered alert function for any class that just
// crossed the threshold.
func (m *Monitor) Ingest(s MonitorSample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[m.count%monitorWindow] = s
	m.count++

	m.updateHysteresisLocked(&m.cpuAnomalies, CPUAnomaly, s.CPULoad > m.cpuThreshold)
	m.updateHysteresisLocked(&m.deadlineAnomalies, DeadlineAnomaly, s.DeadlineMissed)
	m.updateHysteresisLocked(&m.latencyAnomalies, LatencyAnomaly, s.SchedulingLatency > m.latencyThreshold)
}

func (m *Monitor) updateHysteresisLocked(counter *int, class AnomalyClass, hit bool) {
	before := *counter
	if hit {
		*counter++
	} else if *counter > 0 {
		*counter--
	}
	if before < alertThreshold && *counter >= alertThreshold && m.alert != nil {
		m.alert(class, *counter)
	}
}

// window returns up to the last monitorWindow samples, oldest first.
func (m *Monitor) window() []MonitorSample {
	n := m.count
	if n > monitorWindow {
		n = monitorWindow
	}
	out := make([]MonitorSample, 0, n)
	start := m.count - n
	for i := 0; i < n; i++ {
		out = append(out, m.samples[(start+i)%monitorWindow])
	}
	return out
}

// CPUTrend computes the CPU-load trend over the current window using
// the half/half average difference with a ±10% dead band (§4.K).
func (m *Monitor) CPUTrend() Trend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return trendOf(m.window(), func(s MonitorSample) float64 { return s.CPULoad })
}

// IPCTrend computes the IPC trend the same way CPUTrend does.
func (m *Monitor) IPCTrend() Trend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return trendOf(m.window(), func(s MonitorSample) float64 { return s.IPC })
}

// DeadlineTrend treats a missed deadline as 1.0 and a clean sample as
// 0.0, then applies the same half/half comparison.
func (m *Monitor) DeadlineTrend() Trend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return trendOf(m.window(), func(s MonitorSample) float64 {
		if s.DeadlineMissed {
			return 1
		}
		return 0
	})
}

func trendOf(samples []MonitorSample, metric func(MonitorSample) float64) Trend {
	if len(samples) < 2 {
		return Stable
	}
	mid := len(samples) / 2
	first := samples[:mid]
	second := samples[mid:]

	var firstSum, secondSum float64
	for _, s := range first {
		firstSum += metric(s)
	}
	for _, s := range second {
		secondSum += metric(s)
	}
	firstAvg := firstSum / float64(len(first))
	secondAvg := secondSum / float64(len(second))

	if firstAvg == 0 && secondAvg == 0 {
		return Stable
	}
	denom := firstAvg
	if denom == 0 {
		denom = secondAvg
	}
	diff := (secondAvg - firstAvg) / absf(denom)
	switch {
	case diff > deadBandFraction:
		return Increasing
	case diff < -deadBandFraction:
		return Decreasing
	default:
		return Stable
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
