package dispatch

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Metrics tracks sweep progress. Counters are read while workers run, so
// they are atomic; durations share a mutex.
type Metrics struct {
	Total     atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	Skipped   atomic.Int64
	InFlight  atomic.Int32

	mu            sync.RWMutex
	totalDuration time.Duration
	maxDuration   time.Duration
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	Total           int64         `json:"total" yaml:"total"`
	Succeeded       int64         `json:"succeeded" yaml:"succeeded"`
	Failed          int64         `json:"failed" yaml:"failed"`
	Skipped         int64         `json:"skipped" yaml:"skipped"`
	InFlight        int32         `json:"in_flight" yaml:"in_flight"`
	TotalDuration   time.Duration `json:"total_duration" yaml:"total_duration"`
	AverageDuration time.Duration `json:"average_duration" yaml:"average_duration"`
	MaxDuration     time.Duration `json:"max_duration" yaml:"max_duration"`
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record counts a finished or skipped configuration.
func (m *Metrics) Record(o Outcome) {
	m.Total.Inc()
	switch o.Status() {
	case StatusSucceeded:
		m.Succeeded.Inc()
	case StatusSkipped:
		m.Skipped.Inc()
		return
	default:
		m.Failed.Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalDuration += o.Duration
	if o.Duration > m.maxDuration {
		m.maxDuration = o.Duration
	}
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSnapshot{
		Total:         m.Total.Load(),
		Succeeded:     m.Succeeded.Load(),
		Failed:        m.Failed.Load(),
		Skipped:       m.Skipped.Load(),
		InFlight:      m.InFlight.Load(),
		TotalDuration: m.totalDuration,
		MaxDuration:   m.maxDuration,
	}
	if finished := s.Succeeded + s.Failed; finished > 0 {
		s.AverageDuration = s.TotalDuration / time.Duration(finished)
	}
	return s
}

// SuccessRate returns the percentage of finished configurations that
// succeeded.
func (m *Metrics) SuccessRate() float64 {
	s := m.Snapshot()
	finished := s.Succeeded + s.Failed
	if finished == 0 {
		return 0.0
	}
	return float64(s.Succeeded) / float64(finished) * 100.0
}
