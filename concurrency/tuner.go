// concurrency/tuner.go
// The tuner computes the recommended number of simultaneous in-flight requests from
// static limits, live system-load and memory-pressure readings, and the recent latency
// history. Compute is deterministic given its inputs; the engine re-invokes it (or
// Adjust) between batches to close the feedback loop.
package concurrency

import (
	"math"

	"github.com/syncforge/go-batch-http-engine/logger"
	"go.uber.org/zap"
)

// Tuner computes optimal concurrency values. It holds no mutable state of its own.
type Tuner struct {
	logger logger.Logger
}

// NewTuner returns a Tuner logging through the given logger.
func NewTuner(log logger.Logger) *Tuner {
	return &Tuner{logger: log}
}

// Compute derives the optimal concurrency for unsized work. It starts from the
// configured MaxConcurrentRequests and applies multiplicative load, memory, and
// latency adjustments, clamping the result to [MinConcurrency, MaxConcurrency].
func (t *Tuner) Compute(cfg Config, systemLoad, memoryUsageRatio float64, recentLatencies []float64) int {
	base := cfg.MaxConcurrentRequests
	factor := t.adjustmentFactor(cfg, systemLoad, memoryUsageRatio, recentLatencies, false)

	optimal := clampInt(int(math.Round(float64(base)*factor)), cfg.MinConcurrency, cfg.MaxConcurrency)

	t.logger.Debug("Computed optimal concurrency",
		zap.Int("base", base),
		zap.Float64("factor", factor),
		zap.Float64("systemLoad", systemLoad),
		zap.Float64("memoryUsageRatio", memoryUsageRatio),
		zap.Int("optimal", optimal),
	)

	return optimal
}

// ComputeByDataSize derives the optimal concurrency when the caller can estimate total
// work size up front. The starting point scales with the number of pages the work spans,
// then the same load, memory, and latency adjustments apply, with the wider factor set
// reserved for sized work.
func (t *Tuner) ComputeByDataSize(cfg Config, estimatedItems, pageSize int, systemLoad, memoryUsageRatio float64, recentLatencies []float64) int {
	if pageSize < 1 {
		pageSize = 1
	}

	pages := (estimatedItems + pageSize - 1) / pageSize

	var base int
	switch {
	case pages <= 2:
		base = 1
	case pages <= 10:
		base = minInt(3, pages)
	default:
		base = minInt(cfg.MaxConcurrentRequests, (pages+4)/5)
	}

	factor := t.adjustmentFactor(cfg, systemLoad, memoryUsageRatio, recentLatencies, true)

	optimal := clampInt(int(math.Round(float64(base)*factor)), cfg.MinConcurrency, cfg.MaxConcurrency)

	t.logger.Debug("Computed optimal concurrency from data size",
		zap.Int("estimatedItems", estimatedItems),
		zap.Int("pageSize", pageSize),
		zap.Int("pages", pages),
		zap.Int("base", base),
		zap.Float64("factor", factor),
		zap.Int("optimal", optimal),
	)

	return optimal
}

// adjustmentFactor folds system load, memory pressure, and latency history into one
// multiplicative factor. The sized variant additionally rewards idle systems and fast
// responses, and penalizes slow responses harder.
func (t *Tuner) adjustmentFactor(cfg Config, systemLoad, memoryUsageRatio float64, recentLatencies []float64, sized bool) float64 {
	factor := 1.0

	if systemLoad > cfg.CPUThreshold {
		factor *= highLoadFactor
	} else if sized && systemLoad < lowLoadThreshold {
		factor *= lowLoadFactor
	}

	if memoryUsageRatio > cfg.MemoryThreshold {
		factor *= highMemoryFactor
	} else if memoryUsageRatio < lowMemoryThreshold {
		factor *= lowMemoryFactor
	}

	if len(recentLatencies) > 0 {
		mean := meanOf(recentLatencies)
		if mean > slowLatencySeconds {
			if sized {
				factor *= slowLatencyFactorSized
			} else {
				factor *= slowLatencyFactor
			}
		} else if sized && mean < fastLatencySeconds {
			factor *= fastLatencyFactor
		}
	}

	return factor
}

func meanOf(samples []float64) float64 {
	var total float64
	for _, s := range samples {
		total += s
	}
	return total / float64(len(samples))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
