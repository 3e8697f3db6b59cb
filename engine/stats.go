// engine/stats.go
package engine

import (
	"github.com/syncforge/go-batch-http-engine/concurrency"
	"github.com/syncforge/go-batch-http-engine/connpool"
)

// Stats is a snapshot of the engine's cumulative counters since the last reset.
type Stats struct {
	TotalRequests  int64                        `json:"total_requests"`
	FailedRequests int64                        `json:"failed_requests"`
	TotalBatches   int64                        `json:"total_batches"`
	TotalRetries   int64                        `json:"total_retries"`
	QueuedRequests int                          `json:"queued_requests"`
	ActiveTasks    map[concurrency.Category]int `json:"active_tasks"`
	AverageLatency float64                      `json:"average_latency_seconds"`
}

// ConcurrencyStats is a snapshot of the tuner's inputs and current recommendation.
type ConcurrencyStats struct {
	OptimalConcurrency    int     `json:"optimal_concurrency"`
	MaxConcurrentRequests int     `json:"max_concurrent_requests"`
	MinConcurrency        int     `json:"min_concurrency"`
	MaxConcurrency        int     `json:"max_concurrency"`
	AdaptiveEnabled       bool    `json:"adaptive_enabled"`
	SystemLoad            float64 `json:"system_load"`
	MemoryUsageRatio      float64 `json:"memory_usage_ratio"`
	AverageLatency        float64 `json:"average_latency_seconds"`
	LatencySamples        int     `json:"latency_samples"`
}

// GetStats returns the engine's cumulative execution counters.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	stats := Stats{
		TotalRequests:  e.totalRequests,
		FailedRequests: e.failedRequests,
		TotalBatches:   e.totalBatches,
		TotalRetries:   e.totalRetries,
		QueuedRequests: len(e.queue),
	}
	e.mu.Unlock()

	stats.ActiveTasks = e.slots.Counts()
	stats.AverageLatency = e.metrics.Average()
	return stats
}

// GetConcurrencyStats returns the tuner's current view: live system signals, latency
// history, and the concurrency it would recommend right now.
func (e *Engine) GetConcurrencyStats() ConcurrencyStats {
	cfg := e.snapshotConfig()
	load := e.monitor.LoadAverage()
	memRatio := e.monitor.MemoryUsageRatio()
	samples := e.metrics.Samples()

	return ConcurrencyStats{
		OptimalConcurrency:    e.tuner.Compute(cfg, load, memRatio, samples),
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
		MinConcurrency:        cfg.MinConcurrency,
		MaxConcurrency:        cfg.MaxConcurrency,
		AdaptiveEnabled:       cfg.EnableAdaptiveAdjustment,
		SystemLoad:            load,
		MemoryUsageRatio:      memRatio,
		AverageLatency:        e.metrics.Average(),
		LatencySamples:        len(samples),
	}
}

// GetConnectionPoolReport returns the pool's effectiveness report, folding in the
// engine's rolling average latency.
func (e *Engine) GetConnectionPoolReport() connpool.Report {
	return e.pool.Report(e.metrics.Average())
}

// GetConnectionPoolHealth returns the pool's liveness snapshot.
func (e *Engine) GetConnectionPoolHealth() connpool.Health {
	return e.pool.Health()
}

// ResetStats zeroes every cumulative counter: engine totals, the latency window, task
// slot counters, and pool counters. Idempotent.
func (e *Engine) ResetStats() {
	e.mu.Lock()
	e.totalRequests = 0
	e.failedRequests = 0
	e.totalBatches = 0
	e.totalRetries = 0
	e.mu.Unlock()

	e.metrics.Reset()
	e.slots.ResetStats()
	e.pool.ResetCounters()

	e.logger.Info("Engine statistics reset")
}
