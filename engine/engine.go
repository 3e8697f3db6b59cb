// engine/engine.go
/* The engine package is the caller-facing surface of the adaptive batch HTTP execution
engine. An Engine owns the tuner, the rolling latency metrics, the connection pool, the
slot registrar, and the request queue; all of that state is process-local and guarded
for concurrent use, and none of it survives a restart. The engine decides at runtime how
many requests may be in flight, executes them in sequential batches over a multiplexed
transport, and re-tunes itself between batches from system load, memory pressure, and
observed latency. */
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syncforge/go-batch-http-engine/concurrency"
	"github.com/syncforge/go-batch-http-engine/connpool"
	"github.com/syncforge/go-batch-http-engine/logger"
	"github.com/syncforge/go-batch-http-engine/transport"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures a new Engine.
type Config struct {
	// Log
	LogLevel        string // "LogLevelDebug", "LogLevelInfo", "LogLevelWarn", "LogLevelError"
	LogOutputFormat string // "json" or "console"

	// Concurrency limits; zero fields are populated with package defaults.
	Limits concurrency.Config

	// PoolSize fixes the connection pool capacity. Zero means connpool.DefaultPoolSize.
	PoolSize int

	// BatchTimeout bounds one batch's total wall-clock time. Zero means the 90-second
	// default.
	BatchTimeout time.Duration

	// MemoryLimitBytes is the process memory budget the usage ratio is measured against.
	// Zero means measure against memory the runtime has obtained from the OS.
	MemoryLimitBytes uint64

	// Monitor overrides system introspection; nil means read from the local host.
	Monitor concurrency.SystemMonitor

	// Logger overrides the built logger; nil means build one from the log settings.
	Logger logger.Logger
}

// Engine executes batches of HTTP requests under adaptive concurrency control.
type Engine struct {
	mu     sync.Mutex
	runMu  sync.Mutex // serializes queued-execution runs
	cfg    concurrency.Config
	logger logger.Logger

	tuner        *concurrency.Tuner
	metrics      *concurrency.MetricsRecorder
	slots        *concurrency.SlotRegistrar
	monitor      concurrency.SystemMonitor
	pool         *connpool.Pool
	driver       *transport.Driver
	limiter      *rate.Limiter
	batchTimeout time.Duration

	queue     []Request
	responses map[uuid.UUID]Result

	totalRequests  int64
	failedRequests int64
	totalBatches   int64
	totalRetries   int64
}

// BuildEngine creates a new Engine with the provided configuration.
func BuildEngine(config Config) (*Engine, error) {
	log := config.Logger
	if log == nil {
		level := logger.ParseLogLevelFromString(config.LogLevel)
		if level == logger.LogLevelNone {
			level = logger.LogLevelInfo
		}
		log = logger.BuildLogger(level, config.LogOutputFormat)
	}

	limits := normalizeLimits(config.Limits)

	monitor := config.Monitor
	if monitor == nil {
		monitor = concurrency.NewHostMonitor(config.MemoryLimitBytes)
	}

	driver, err := transport.NewDriver(log)
	if err != nil {
		return nil, fmt.Errorf("building transfer driver: %w", err)
	}

	batchTimeout := config.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	e := &Engine{
		cfg:          limits,
		logger:       log,
		tuner:        concurrency.NewTuner(log),
		metrics:      concurrency.NewMetricsRecorder(),
		slots:        concurrency.NewSlotRegistrar(limits, monitor, log),
		monitor:      monitor,
		pool:         connpool.NewPool(config.PoolSize, driver.NewClient, log),
		driver:       driver,
		batchTimeout: batchTimeout,
		responses:    make(map[uuid.UUID]Result),
	}
	e.limiter = buildLimiter(limits)

	log.Info("Batch HTTP engine initialized",
		zap.Int("maxConcurrentRequests", limits.MaxConcurrentRequests),
		zap.Int("minConcurrency", limits.MinConcurrency),
		zap.Int("maxConcurrency", limits.MaxConcurrency),
		zap.Duration("requestTimeout", limits.RequestTimeout),
		zap.Float64("memoryThreshold", limits.MemoryThreshold),
		zap.Float64("cpuThreshold", limits.CPUThreshold),
		zap.Bool("adaptiveAdjustment", limits.EnableAdaptiveAdjustment),
		zap.Bool("dynamicRateLimiting", limits.EnableDynamicRateLimiting),
		zap.Int("poolSize", e.pool.Size()),
	)

	return e, nil
}

// normalizeLimits fills zero fields with package defaults and keeps the bounds sane.
func normalizeLimits(limits concurrency.Config) concurrency.Config {
	if limits == (concurrency.Config{}) {
		return concurrency.DefaultConfig()
	}

	if limits.MinConcurrency < 1 {
		limits.MinConcurrency = concurrency.MinConcurrency
	}
	if limits.MaxConcurrency < limits.MinConcurrency {
		limits.MaxConcurrency = concurrency.MaxConcurrency
	}
	if limits.MaxConcurrentRequests < 1 {
		limits.MaxConcurrentRequests = concurrency.DefaultMaxConcurrentRequests
	}
	if limits.RequestTimeout <= 0 {
		limits.RequestTimeout = concurrency.DefaultRequestTimeout
	}
	if limits.MemoryThreshold <= 0 {
		limits.MemoryThreshold = concurrency.DefaultMemoryThreshold
	}
	if limits.CPUThreshold <= 0 {
		limits.CPUThreshold = concurrency.DefaultCPUThreshold
	}
	return limits
}

// buildLimiter returns the shared token-bucket limiter, or nil when pacing is off.
func buildLimiter(limits concurrency.Config) *rate.Limiter {
	if !limits.EnableDynamicRateLimiting || limits.RequestsPerSecond <= 0 {
		return nil
	}

	burst := limits.MaxConcurrentRequests
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
}

// snapshotConfig returns a copy of the live limits.
func (e *Engine) snapshotConfig() concurrency.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// rateLimiter returns the current shared limiter, or nil when pacing is off.
func (e *Engine) rateLimiter() *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.limiter
}

// ConfigureLimits validates, clamps, and merges the overrides into the live config,
// then propagates the new limits to the slot registrar and the rate limiter.
func (e *Engine) ConfigureLimits(overrides concurrency.LimitOverrides) {
	e.mu.Lock()
	e.cfg.ApplyLimits(overrides, e.logger)
	cfg := e.cfg
	e.limiter = buildLimiter(cfg)
	e.mu.Unlock()

	e.slots.SetConfig(cfg)
}
