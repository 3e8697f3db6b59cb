// engine/executor.go
// Drives one batch of requests concurrently to completion. Each request borrows a
// connection handle from the pool (or runs on an ephemeral client when the pool is
// exhausted), every request in the batch is issued before the join, and the batch is
// complete only once every result has been collected. A hard wall-clock ceiling bounds
// the whole batch; hitting it is batch-fatal.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"github.com/syncforge/go-batch-http-engine/response"
	"github.com/syncforge/go-batch-http-engine/transport"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultBatchTimeout bounds one batch's total execution time unless the engine config
// overrides it.
const defaultBatchTimeout = 90 * time.Second

// runBatch executes one batch and returns one Result per request, in batch order.
// Per-request failures never abort siblings; they are folded into the Results. The
// returned error is reserved for batch-fatal conditions: the wall-clock ceiling or
// cancellation of the caller's context.
func (e *Engine) runBatch(ctx context.Context, batch []Request) ([]Result, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	batchCtx, cancel := context.WithTimeout(ctx, e.batchTimeout)
	defer cancel()

	start := time.Now()
	results := make([]Result, len(batch))

	var g errgroup.Group
	for i := range batch {
		i, req := i, batch[i]
		g.Go(func() error {
			if limiter := e.rateLimiter(); limiter != nil {
				if err := limiter.Wait(batchCtx); err != nil {
					results[i] = Result{RequestID: req.ID, Err: err.Error()}
					return nil
				}
			}
			results[i] = e.doRequest(batchCtx, req)
			return nil
		})
	}
	_ = g.Wait() // workers always return nil; failures live in results

	if err := batchCtx.Err(); errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, fmt.Errorf("batch of %d requests exceeded the %v wall-clock ceiling: %w",
			len(batch), e.batchTimeout, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch execution canceled: %w", err)
	}

	e.recordBatch(batch, results, time.Since(start))
	return results, nil
}

// recordBatch feeds the batch's average latency into the metrics window, updates the
// engine counters, and logs a batch summary.
func (e *Engine) recordBatch(batch []Request, results []Result, wallTime time.Duration) {
	var totalElapsed float64
	var failed int64
	var requestErrs error

	for _, r := range results {
		totalElapsed += r.Elapsed.Seconds()
		if !r.Success {
			failed++
			if r.Err != "" {
				requestErrs = multierr.Append(requestErrs, errors.New(r.Err))
			}
		}
	}

	e.metrics.Record(totalElapsed / float64(len(batch)))

	e.mu.Lock()
	e.totalRequests += int64(len(batch))
	e.failedRequests += failed
	e.totalBatches++
	e.mu.Unlock()

	if failed > 0 {
		e.logger.Warn("Batch completed with failures",
			zap.Int("batchSize", len(batch)),
			zap.Int64("failed", failed),
			zap.Duration("wallTime", wallTime),
			zap.String("requestErrors", fmt.Sprintf("%v", requestErrs)),
		)
		return
	}

	e.logger.Debug("Batch completed",
		zap.Int("batchSize", len(batch)),
		zap.Duration("wallTime", wallTime),
	)
}

// doRequest executes a single request on a pooled or ephemeral handle and captures its
// outcome. It never returns an error; failures are data in the Result.
func (e *Engine) doRequest(ctx context.Context, req Request) Result {
	cfg := e.snapshotConfig()
	res := Result{RequestID: req.ID}

	handle := e.pool.Acquire()
	var client *http.Client
	if handle != nil {
		client = handle.Client
	} else {
		// Pool exhausted; run on an ephemeral unpooled client.
		client = e.driver.NewClient()
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = cfg.RequestTimeout
	}
	e.driver.Configure(client, transport.Options{
		Timeout:            timeout,
		InsecureSkipVerify: req.InsecureSkipVerify,
		FollowRedirects:    req.FollowRedirects,
		MaxRedirects:       req.MaxRedirects,
	})

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		res.Err = err.Error()
		if handle != nil {
			e.pool.Release(handle)
		}
		return res
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Trace connection establishment so the pool's health check can retire handles
	// that connect too slowly.
	var connectStart time.Time
	var connectTime time.Duration
	trace := &httptrace.ClientTrace{
		ConnectStart: func(string, string) { connectStart = time.Now() },
		ConnectDone: func(_, _ string, _ error) {
			if !connectStart.IsZero() {
				connectTime = time.Since(connectStart)
			}
		},
	}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(ctx, trace))

	sendStart := time.Now()
	resp, doErr := client.Do(httpReq)
	res.Elapsed = time.Since(sendStart)

	if handle != nil {
		handle.RecordOutcome(connectTime, doErr)
		defer e.pool.Release(handle)
	}

	if doErr != nil {
		res.Err = doErr.Error()
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	res.Headers = resp.Header

	body, readErr := io.ReadAll(resp.Body)
	res.Body = body
	if readErr != nil {
		res.Err = readErr.Error()
		return res
	}

	res.Success = response.IsSuccess(resp.StatusCode, nil)
	if !res.Success {
		res.Err = response.ErrorSummary(resp.StatusCode, resp.Header.Get("Content-Type"), body)
	}
	return res
}
