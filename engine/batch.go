// engine/batch.go
// Batch partitioning and the closed feedback loop: tune, split, run, record, adjust.
// Batches execute strictly sequentially so the tuner's feedback for batch i is available
// before batch i+1 starts.
package engine

import (
	"context"
)

// defaultPageSize is the page size assumed when deriving concurrency from an estimated
// item count.
const defaultPageSize = 100

// SplitIntoBatches partitions the requests into sequential batches of at most k,
// preserving input order. The last batch may be smaller. Pure, no side effects.
func SplitIntoBatches(requests []Request, k int) [][]Request {
	if k < 1 {
		k = 1
	}

	batches := make([][]Request, 0, (len(requests)+k-1)/k)
	for start := 0; start < len(requests); start += k {
		end := start + k
		if end > len(requests) {
			end = len(requests)
		}
		batches = append(batches, requests[start:end])
	}
	return batches
}

// ExecuteConcurrentRequests executes the requests in sequential batches sized by the
// tuner. One Result is returned per request, in input order. A batch-fatal condition
// (wall-clock ceiling, caller cancellation) aborts the run with an error; individual
// request failures are folded into their Results.
func (e *Engine) ExecuteConcurrentRequests(ctx context.Context, requests []Request) ([]Result, error) {
	cfg := e.snapshotConfig()

	k := cfg.MaxConcurrentRequests
	if cfg.EnableAdaptiveAdjustment {
		k = e.tuner.Compute(cfg,
			e.monitor.LoadAverage(),
			e.monitor.MemoryUsageRatio(),
			e.metrics.Samples(),
		)
	}

	return e.executeBatches(ctx, requests, k)
}

// ExecuteAdaptiveConcurrentRequests executes the requests with a starting concurrency
// derived from the caller's estimate of total work size, then the same per-batch
// feedback loop as ExecuteConcurrentRequests.
func (e *Engine) ExecuteAdaptiveConcurrentRequests(ctx context.Context, requests []Request, estimatedSize int) ([]Result, error) {
	cfg := e.snapshotConfig()

	k := e.tuner.ComputeByDataSize(cfg, estimatedSize, defaultPageSize,
		e.monitor.LoadAverage(),
		e.monitor.MemoryUsageRatio(),
		e.metrics.Samples(),
	)

	return e.executeBatches(ctx, requests, k)
}

// executeBatches drains the request list k at a time, re-adjusting k from each batch's
// success rate when adaptive adjustment is enabled.
func (e *Engine) executeBatches(ctx context.Context, requests []Request, k int) ([]Result, error) {
	results := make([]Result, 0, len(requests))
	remaining := requests

	for len(remaining) > 0 {
		if k < 1 {
			k = 1
		}
		n := k
		if n > len(remaining) {
			n = len(remaining)
		}
		batch := remaining[:n]
		remaining = remaining[n:]

		batchResults, err := e.runBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, batchResults...)

		if len(remaining) > 0 {
			cfg := e.snapshotConfig()
			if cfg.EnableAdaptiveAdjustment {
				k = e.tuner.Adjust(cfg, k, successRate(batchResults))
			}
		}
	}

	return results, nil
}

// successRate returns the fraction of results that completed successfully.
func successRate(results []Result) float64 {
	if len(results) == 0 {
		return 1
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(results))
}
