// engine/queue.go
// The queued-execution surface: callers accumulate request descriptors, then execute the
// whole queue in one adaptive run. ExecuteWithRetry wraps that run in a fail-soft
// bounded exponential backoff: repeated top-level failures degrade to an empty result
// set instead of an error, so callers must treat zero results as a possible failure
// signal rather than only as "no work to do".
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddRequest enqueues a request and returns its ID, which keys the stored response
// after execution.
func (e *Engine) AddRequest(url string, opts RequestOptions) uuid.UUID {
	req := NewRequest(url, opts)

	e.mu.Lock()
	e.queue = append(e.queue, req)
	e.mu.Unlock()

	e.logger.Debug("Request enqueued",
		zap.String("requestID", req.ID.String()),
		zap.String("method", req.Method),
		zap.String("url", req.URL),
	)

	return req.ID
}

// Execute runs the queued requests through the adaptive batch loop. Concurrent calls
// are serialized so the same queued request never runs twice. On success the executed
// requests leave the queue and their results become retrievable via GetResponses. On a
// batch-fatal error the queue is left intact so a retry re-runs it.
func (e *Engine) Execute(ctx context.Context) ([]Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	queued := make([]Request, len(e.queue))
	copy(queued, e.queue)
	e.mu.Unlock()

	if len(queued) == 0 {
		return []Result{}, nil
	}

	results, err := e.ExecuteConcurrentRequests(ctx, queued)
	if err != nil {
		return nil, err
	}

	executed := make(map[uuid.UUID]struct{}, len(queued))
	for _, req := range queued {
		executed[req.ID] = struct{}{}
	}

	e.mu.Lock()
	for _, r := range results {
		e.responses[r.RequestID] = r
	}
	// Remove executed requests by identity; the queue may have been cleared or extended
	// while the run was in flight.
	kept := make([]Request, 0, len(e.queue))
	for _, req := range e.queue {
		if _, ok := executed[req.ID]; !ok {
			kept = append(kept, req)
		}
	}
	e.queue = kept
	e.mu.Unlock()

	return results, nil
}

// ExecuteWithRetry runs Execute up to maxRetries times, backing off
// baseDelay * 2^(attempt-1) after each top-level failure. Per-request failures inside
// the results do not trigger retries. After exhausting all attempts it logs the final
// failure and returns an empty result set.
func (e *Engine) ExecuteWithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration) []Result {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		results, err := e.Execute(ctx)
		if err == nil {
			return results
		}
		lastErr = err

		e.mu.Lock()
		e.totalRetries++
		e.mu.Unlock()

		delay := backoffDelay(baseDelay, attempt)
		e.logger.Warn("Queued execution failed, backing off",
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			e.logger.Warn("Retry wait canceled", zap.Error(ctx.Err()))
			return []Result{}
		}
	}

	e.logger.Error("Queued execution failed after all retry attempts",
		zap.Int("maxRetries", maxRetries),
		zap.Error(lastErr),
	)
	return []Result{}
}

// backoffDelay returns the wait before the next attempt: baseDelay * 2^(attempt-1).
func backoffDelay(baseDelay time.Duration, attempt int) time.Duration {
	return baseDelay << (attempt - 1)
}

// GetResponses returns a copy of all stored results, keyed by request ID.
func (e *Engine) GetResponses() map[uuid.UUID]Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[uuid.UUID]Result, len(e.responses))
	for id, r := range e.responses {
		out[id] = r
	}
	return out
}

// ClearQueue discards all pending requests. Stored responses are unaffected.
func (e *Engine) ClearQueue() {
	e.mu.Lock()
	n := len(e.queue)
	e.queue = nil
	e.mu.Unlock()

	if n > 0 {
		e.logger.Debug("Request queue cleared", zap.Int("discarded", n))
	}
}

// QueueLen returns the number of pending requests.
func (e *Engine) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}
