package concurrency

import (
	"sync"
	"testing"
	"time"

	"github.com/syncforge/go-batch-http-engine/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMonitor supplies fixed system signals.
type stubMonitor struct {
	load float64
	mem  float64
}

func (s *stubMonitor) LoadAverage() float64      { return s.load }
func (s *stubMonitor) MemoryUsageRatio() float64 { return s.mem }

func healthyMonitor() *stubMonitor {
	return &stubMonitor{load: 0.5, mem: 0.3}
}

func newTestRegistrar(maxConcurrent int, monitor SystemMonitor) *SlotRegistrar {
	cfg := testConfig()
	cfg.MaxConcurrentRequests = maxConcurrent
	return NewSlotRegistrar(cfg, monitor, logger.Nop())
}

func TestSlotRegistrar_Ceilings(t *testing.T) {
	reg := newTestRegistrar(10, healthyMonitor())

	assert.Equal(t, 10, reg.Ceiling(CategoryRequests))
	assert.Equal(t, 6, reg.Ceiling(CategoryDownloads)) // floor(10 * 0.6)
	assert.Equal(t, 4, reg.Ceiling(CategoryUploads))   // floor(10 * 0.4)

	// Ceilings never drop below one slot.
	reg = newTestRegistrar(1, healthyMonitor())
	assert.Equal(t, 1, reg.Ceiling(CategoryDownloads))
	assert.Equal(t, 1, reg.Ceiling(CategoryUploads))
}

func TestSlotRegistrar_StartAndEnd(t *testing.T) {
	reg := newTestRegistrar(2, healthyMonitor())

	require.True(t, reg.Start(CategoryRequests))
	require.True(t, reg.Start(CategoryRequests))
	assert.False(t, reg.Start(CategoryRequests), "ceiling reached")
	assert.False(t, reg.CanStart(CategoryRequests))

	reg.End(CategoryRequests)
	assert.True(t, reg.CanStart(CategoryRequests))
	assert.True(t, reg.Start(CategoryRequests))

	// End never drives a counter negative.
	reg.End(CategoryUploads)
	assert.Equal(t, 0, reg.Counts()[CategoryUploads])
}

func TestSlotRegistrar_UnhealthySystemBlocksStart(t *testing.T) {
	monitor := &stubMonitor{load: 5.0, mem: 0.3} // load over the 2.0 threshold
	reg := newTestRegistrar(10, monitor)

	assert.False(t, reg.SystemHealthy())
	assert.False(t, reg.CanStart(CategoryRequests))
	assert.False(t, reg.Start(CategoryRequests))

	monitor.load = 0.5
	assert.True(t, reg.SystemHealthy())
	assert.True(t, reg.Start(CategoryRequests))
}

func TestSlotRegistrar_WaitForSlotClaimsFreedSlot(t *testing.T) {
	reg := newTestRegistrar(1, healthyMonitor())
	require.True(t, reg.Start(CategoryRequests))

	var wg sync.WaitGroup
	wg.Add(1)
	var got bool
	go func() {
		defer wg.Done()
		got = reg.WaitForSlot(CategoryRequests, 200*time.Millisecond)
	}()

	time.Sleep(30 * time.Millisecond)
	reg.End(CategoryRequests)
	wg.Wait()

	assert.True(t, got, "waiter should claim the slot freed before the deadline")
	assert.Equal(t, 1, reg.Counts()[CategoryRequests])
}

// mutableMonitor allows signal updates from another goroutine mid-test.
type mutableMonitor struct {
	mu   sync.Mutex
	load float64
	mem  float64
}

func (m *mutableMonitor) LoadAverage() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load
}

func (m *mutableMonitor) MemoryUsageRatio() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem
}

func (m *mutableMonitor) setLoad(load float64) {
	m.mu.Lock()
	m.load = load
	m.mu.Unlock()
}

func TestSlotRegistrar_WaitForSlotSeesHealthRecovery(t *testing.T) {
	monitor := &mutableMonitor{load: 5.0, mem: 0.3} // load over the 2.0 threshold
	reg := newTestRegistrar(2, monitor)

	var wg sync.WaitGroup
	wg.Add(1)
	var got bool
	go func() {
		defer wg.Done()
		got = reg.WaitForSlot(CategoryRequests, 2*time.Second)
	}()

	// No slot release happens here; the waiter must notice recovery on its own.
	time.Sleep(50 * time.Millisecond)
	monitor.setLoad(0.5)
	wg.Wait()

	assert.True(t, got, "waiter claims a free slot once load recovers")
	assert.Equal(t, 1, reg.Counts()[CategoryRequests])
}

func TestSlotRegistrar_WaitForSlotTimesOut(t *testing.T) {
	reg := newTestRegistrar(1, healthyMonitor())
	require.True(t, reg.Start(CategoryRequests))

	start := time.Now()
	got := reg.WaitForSlot(CategoryRequests, 80*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, got)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

func TestSlotRegistrar_ResetStatsIsIdempotent(t *testing.T) {
	reg := newTestRegistrar(5, healthyMonitor())
	reg.Start(CategoryRequests)
	reg.Start(CategoryDownloads)

	reg.ResetStats()
	first := reg.Counts()
	firstStarted := reg.TotalStarted()

	reg.ResetStats()
	assert.Equal(t, first, reg.Counts())
	assert.Equal(t, firstStarted, reg.TotalStarted())
	assert.Empty(t, reg.Counts())
}
