// concurrency/slots.go
// Category-scoped admission control, decoupled from batch execution. Callers claim a
// slot before starting long-running work (a download, an upload) and release it when
// done. Ceilings derive from MaxConcurrentRequests per category. Waiters are woken by
// a broadcast channel signalled on every End rather than a fixed polling interval, with
// a coarse periodic re-check to catch waits blocked only on system health.
package concurrency

import (
	"sync"
	"time"

	"github.com/syncforge/go-batch-http-engine/logger"
	"go.uber.org/zap"
)

// Category names a class of admission-controlled work.
type Category string

const (
	CategoryRequests  Category = "requests"
	CategoryDownloads Category = "downloads"
	CategoryUploads   Category = "uploads"
)

// SlotRegistrar tracks in-flight task counts per category and gates new work on both
// the per-category ceiling and overall system health. Counters never go negative and
// are reset only through ResetStats. Safe for concurrent use.
type SlotRegistrar struct {
	mu      sync.Mutex
	cfg     Config
	counts  map[Category]int
	started map[Category]int64
	monitor SystemMonitor
	logger  logger.Logger
	freed   chan struct{}
}

// NewSlotRegistrar returns a registrar enforcing the given config against the given
// system monitor.
func NewSlotRegistrar(cfg Config, monitor SystemMonitor, log logger.Logger) *SlotRegistrar {
	return &SlotRegistrar{
		cfg:     cfg,
		counts:  make(map[Category]int),
		started: make(map[Category]int64),
		monitor: monitor,
		logger:  log,
		freed:   make(chan struct{}),
	}
}

// SetConfig swaps in new limits, typically after ConfigureLimits on the owning engine.
func (s *SlotRegistrar) SetConfig(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.broadcast()
}

// Ceiling returns the maximum number of simultaneous tasks for a category, floored at 1.
// Requests get the full configured concurrency; downloads 60% of it; uploads 40%.
func (s *SlotRegistrar) Ceiling(category Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ceilingLocked(category)
}

func (s *SlotRegistrar) ceilingLocked(category Category) int {
	base := s.cfg.MaxConcurrentRequests

	var ceiling int
	switch category {
	case CategoryDownloads:
		ceiling = int(float64(base) * downloadSlotFraction)
	case CategoryUploads:
		ceiling = int(float64(base) * uploadSlotFraction)
	default:
		ceiling = base
	}

	if ceiling < 1 {
		ceiling = 1
	}
	return ceiling
}

// CanStart reports whether a task in the category could start right now: the category
// is below its ceiling and the system is healthy.
func (s *SlotRegistrar) CanStart(category Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canStartLocked(category)
}

func (s *SlotRegistrar) canStartLocked(category Category) bool {
	return s.counts[category] < s.ceilingLocked(category) && SystemHealthy(s.monitor, s.cfg)
}

// Start atomically re-checks CanStart and claims a slot. It returns false without side
// effects when no slot is available.
func (s *SlotRegistrar) Start(category Category) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canStartLocked(category) {
		return false
	}

	s.counts[category]++
	s.started[category]++
	return true
}

// End releases a slot, flooring the counter at zero, and wakes any waiters.
func (s *SlotRegistrar) End(category Category) {
	s.mu.Lock()
	if s.counts[category] > 0 {
		s.counts[category]--
	}
	s.mu.Unlock()

	s.broadcast()
}

// healthRecheckInterval is how often a waiter re-evaluates system health while no slot
// release has woken it.
const healthRecheckInterval = 500 * time.Millisecond

// WaitForSlot blocks until a slot in the category is claimed or maxWait elapses.
// It returns true when a slot was claimed. Waiters wake whenever a slot is released;
// a slower re-check tick catches waits blocked only on system health, which no release
// announces.
func (s *SlotRegistrar) WaitForSlot(category Category, maxWait time.Duration) bool {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()
	recheck := time.NewTicker(healthRecheckInterval)
	defer recheck.Stop()

	for {
		s.mu.Lock()
		if s.canStartLocked(category) {
			s.counts[category]++
			s.started[category]++
			s.mu.Unlock()
			return true
		}
		freed := s.freed
		s.mu.Unlock()

		select {
		case <-freed:
			// A slot was released; retry the claim.
		case <-recheck.C:
			// No release arrived; re-evaluate in case system health recovered.
		case <-timer.C:
			s.logger.Warn("Timed out waiting for task slot",
				zap.String("category", string(category)),
				zap.Duration("maxWait", maxWait),
			)
			return false
		}
	}
}

// SystemHealthy reports whether the monitored system is below its load and memory thresholds.
func (s *SlotRegistrar) SystemHealthy() bool {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return SystemHealthy(s.monitor, cfg)
}

// Counts returns a snapshot of the in-flight task counts per category.
func (s *SlotRegistrar) Counts() map[Category]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Category]int, len(s.counts))
	for c, n := range s.counts {
		out[c] = n
	}
	return out
}

// TotalStarted returns the cumulative number of tasks started per category since the
// last reset.
func (s *SlotRegistrar) TotalStarted() map[Category]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Category]int64, len(s.started))
	for c, n := range s.started {
		out[c] = n
	}
	return out
}

// ResetStats zeroes all counters and wakes waiters so they re-evaluate against the
// cleared state. Calling it twice in a row is equivalent to calling it once.
func (s *SlotRegistrar) ResetStats() {
	s.mu.Lock()
	s.counts = make(map[Category]int)
	s.started = make(map[Category]int64)
	s.mu.Unlock()

	s.broadcast()
}

// broadcast wakes every goroutine blocked in WaitForSlot by closing the shared channel
// and replacing it for the next round of waiters.
func (s *SlotRegistrar) broadcast() {
	s.mu.Lock()
	freed := s.freed
	s.freed = make(chan struct{})
	s.mu.Unlock()

	close(freed)
}
