package executor

import (
	"sync"
	"time"
)

// Metrics tracks step execution counters for one executor instance.
type Metrics struct {
	mu sync.Mutex

	StepsExecuted int
	StepsFailed   int
	TotalDuration time.Duration
}

// RecordStep records one step invocation.
func (m *Metrics) RecordStep(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StepsExecuted++
	if failed {
		m.StepsFailed++
	}
	m.TotalDuration += duration
}

// Copy returns a snapshot of the metrics safe to read without locking.
func (m *Metrics) Copy() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Metrics{
		StepsExecuted: m.StepsExecuted,
		StepsFailed:   m.StepsFailed,
		TotalDuration: m.TotalDuration,
	}
}
