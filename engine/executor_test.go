package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/syncforge/go-batch-http-engine/concurrency"
	"github.com/syncforge/go-batch-http-engine/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMonitor supplies fixed, neutral system signals so tuning is deterministic.
type stubMonitor struct {
	load float64
	mem  float64
}

func (s *stubMonitor) LoadAverage() float64      { return s.load }
func (s *stubMonitor) MemoryUsageRatio() float64 { return s.mem }

func testLimits() concurrency.Config {
	return concurrency.Config{
		MaxConcurrentRequests: 5,
		MinConcurrency:        1,
		MaxConcurrency:        20,
		RequestTimeout:        concurrency.DefaultRequestTimeout,
		MemoryThreshold:       0.8,
		CPUThreshold:          2.0,
	}
}

func buildTestEngine(t *testing.T, limits concurrency.Config) *Engine {
	t.Helper()
	e, err := BuildEngine(Config{
		Limits:  limits,
		Monitor: &stubMonitor{load: 1.0, mem: 0.6},
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	return e
}

// newStatusServer answers with the status code encoded in the request path, e.g.
// /status/500, and a JSON error envelope for failing statuses.
func newStatusServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/status/500"):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"boom"}`))
		case strings.HasPrefix(r.URL.Path, "/echo"):
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(r.Method + " " + r.URL.Path))
		default:
			w.Write([]byte("ok"))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteConcurrentRequests_AllSucceed(t *testing.T) {
	srv := newStatusServer(t)
	e := buildTestEngine(t, testLimits())

	reqs := make([]Request, 0, 23)
	for i := 0; i < 23; i++ {
		reqs = append(reqs, NewRequest(srv.URL+"/ok", RequestOptions{}))
	}

	results, err := e.ExecuteConcurrentRequests(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 23)

	for i, r := range results {
		assert.Equal(t, reqs[i].ID, r.RequestID, "results map back to input identity in order")
		assert.True(t, r.Success)
		assert.Equal(t, http.StatusOK, r.StatusCode)
		assert.Empty(t, r.Err)
		assert.Equal(t, "ok", string(r.Body))
		assert.Greater(t, r.Elapsed.Nanoseconds(), int64(0))
	}
}

// TestExecuteConcurrentRequests_BatchCount pins the batch partition with adaptive
// adjustment disabled: 23 requests at concurrency 5 run as 5 sequential batches.
func TestExecuteConcurrentRequests_BatchCount(t *testing.T) {
	srv := newStatusServer(t)

	limits := testLimits()
	limits.EnableAdaptiveAdjustment = false
	e := buildTestEngine(t, limits)

	reqs := make([]Request, 0, 23)
	for i := 0; i < 23; i++ {
		reqs = append(reqs, NewRequest(srv.URL+"/ok", RequestOptions{}))
	}

	results, err := e.ExecuteConcurrentRequests(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 23)

	stats := e.GetStats()
	assert.Equal(t, int64(5), stats.TotalBatches)
	assert.Equal(t, int64(23), stats.TotalRequests)
	assert.Equal(t, int64(0), stats.FailedRequests)
}

func TestExecuteConcurrentRequests_PerRequestFailuresAreData(t *testing.T) {
	srv := newStatusServer(t)
	e := buildTestEngine(t, testLimits())

	reqs := []Request{
		NewRequest(srv.URL+"/ok", RequestOptions{}),
		NewRequest(srv.URL+"/status/500", RequestOptions{}),
		NewRequest(srv.URL+"/ok", RequestOptions{}),
	}

	results, err := e.ExecuteConcurrentRequests(context.Background(), reqs)
	require.NoError(t, err, "sibling failures never abort the batch")
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, http.StatusInternalServerError, results[1].StatusCode)
	assert.Contains(t, results[1].Err, "HTTP 500")
	assert.Contains(t, results[1].Err, "boom")
	assert.True(t, results[2].Success)

	stats := e.GetStats()
	assert.Equal(t, int64(1), stats.FailedRequests)
}

func TestExecuteConcurrentRequests_TransportErrorCaptured(t *testing.T) {
	e := buildTestEngine(t, testLimits())

	// Nothing listens on this address; the transfer fails at the transport level.
	reqs := []Request{NewRequest("http://127.0.0.1:1/unreachable", RequestOptions{})}

	results, err := e.ExecuteConcurrentRequests(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Success)
	assert.NotEmpty(t, results[0].Err)
	assert.Zero(t, results[0].StatusCode)
}

func TestExecuteConcurrentRequests_MethodHeadersAndBody(t *testing.T) {
	var gotMethod, gotHeader string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Sync-Token")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	e := buildTestEngine(t, testLimits())
	reqs := []Request{NewRequest(srv.URL, RequestOptions{
		Method:  http.MethodPost,
		Headers: map[string]string{"X-Sync-Token": "abc123"},
		Body:    []byte(`{"title":"hello"}`),
	})}

	results, err := e.ExecuteConcurrentRequests(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Success)
	assert.Equal(t, http.StatusCreated, results[0].StatusCode)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "abc123", gotHeader)
	assert.Equal(t, `{"title":"hello"}`, string(gotBody))
}

func TestExecuteConcurrentRequests_WallClockCeilingIsBatchFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	e, err := BuildEngine(Config{
		Limits:       testLimits(),
		Monitor:      &stubMonitor{load: 1.0, mem: 0.6},
		Logger:       logger.Nop(),
		BatchTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	_, execErr := e.ExecuteConcurrentRequests(context.Background(), makeServerRequests(srv.URL, 2))
	require.Error(t, execErr)
	assert.ErrorIs(t, execErr, context.DeadlineExceeded)
	assert.Contains(t, execErr.Error(), "wall-clock ceiling")
}

func TestExecuteConcurrentRequests_CanceledContextIsBatchFatal(t *testing.T) {
	srv := newStatusServer(t)
	e := buildTestEngine(t, testLimits())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExecuteConcurrentRequests(ctx, []Request{NewRequest(srv.URL+"/ok", RequestOptions{})})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteConcurrentRequests_RecordsLatencyMetrics(t *testing.T) {
	srv := newStatusServer(t)
	e := buildTestEngine(t, testLimits())

	_, err := e.ExecuteConcurrentRequests(context.Background(), makeServerRequests(srv.URL+"/ok", 7))
	require.NoError(t, err)

	stats := e.GetConcurrencyStats()
	assert.Greater(t, stats.LatencySamples, 0)
	assert.Greater(t, stats.AverageLatency, 0.0)

	report := e.GetConnectionPoolReport()
	assert.Greater(t, report.Created, int64(0))
}

func TestExecuteAdaptiveConcurrentRequests(t *testing.T) {
	srv := newStatusServer(t)

	limits := testLimits()
	limits.EnableAdaptiveAdjustment = false
	e := buildTestEngine(t, limits)

	// 450 estimated items at the default page size of 100 give 5 pages, so the
	// sized starting concurrency is min(3, 5) = 3: 7 requests run as 3 batches.
	results, err := e.ExecuteAdaptiveConcurrentRequests(context.Background(),
		makeServerRequests(srv.URL+"/ok", 7), 450)
	require.NoError(t, err)
	require.Len(t, results, 7)

	assert.Equal(t, int64(3), e.GetStats().TotalBatches)
}

func TestExecuteConcurrentRequests_WithRateLimiting(t *testing.T) {
	srv := newStatusServer(t)

	limits := testLimits()
	limits.EnableDynamicRateLimiting = true
	limits.RequestsPerSecond = 500
	e := buildTestEngine(t, limits)

	results, err := e.ExecuteConcurrentRequests(context.Background(),
		makeServerRequests(srv.URL+"/ok", 6))
	require.NoError(t, err)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.True(t, r.Success)
	}
}

func makeServerRequests(url string, n int) []Request {
	reqs := make([]Request, 0, n)
	for i := 0; i < n; i++ {
		reqs = append(reqs, NewRequest(url, RequestOptions{}))
	}
	return reqs
}
