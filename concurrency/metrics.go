// concurrency/metrics.go
package concurrency

import "sync"

// MetricsRecorder maintains a bounded rolling window of per-batch average latencies,
// in seconds, in a fixed-size ring. The window holds at most MetricsWindowSize samples;
// the oldest sample is overwritten on overflow, so recording never reallocates. All
// methods are safe for concurrent use.
type MetricsRecorder struct {
	mu      sync.Mutex
	samples [MetricsWindowSize]float64
	next    int
	count   int
}

// NewMetricsRecorder returns an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{}
}

// Record appends a latency sample, overwriting the oldest sample when the window is full.
func (m *MetricsRecorder) Record(latencySeconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[m.next] = latencySeconds
	m.next = (m.next + 1) % MetricsWindowSize
	if m.count < MetricsWindowSize {
		m.count++
	}
}

// Average returns the arithmetic mean of the window, or 0 when the window is empty.
func (m *MetricsRecorder) Average() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 {
		return 0
	}

	var total float64
	for _, s := range m.samples[:m.count] {
		total += s
	}
	return total / float64(m.count)
}

// Samples returns a copy of the current window, oldest first.
func (m *MetricsRecorder) Samples() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]float64, m.count)
	if m.count < MetricsWindowSize {
		copy(out, m.samples[:m.count])
	} else {
		n := copy(out, m.samples[m.next:])
		copy(out[n:], m.samples[:m.next])
	}
	return out
}

// Len returns the number of samples currently in the window.
func (m *MetricsRecorder) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Reset discards all samples.
func (m *MetricsRecorder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next = 0
	m.count = 0
}
