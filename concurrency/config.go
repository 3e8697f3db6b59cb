// concurrency/config.go
// Holds the engine's tunable limits and the validate-and-clamp merge applied by
// ConfigureLimits. Out-of-range values are clamped rather than rejected; each clamp is
// logged as a warning so the adjustment stays observable.
package concurrency

import (
	"time"

	"github.com/syncforge/go-batch-http-engine/logger"
	"go.uber.org/zap"
)

// Config carries the limits that drive concurrency tuning and admission control.
type Config struct {
	// MaxConcurrentRequests is the base number of simultaneous in-flight requests.
	MaxConcurrentRequests int

	// MinConcurrency and MaxConcurrency clamp the tuner's output.
	MinConcurrency int
	MaxConcurrency int

	// RequestTimeout applies per request when the request itself carries no timeout.
	RequestTimeout time.Duration

	// MemoryThreshold is the memory usage ratio (0-1) above which concurrency is reduced.
	MemoryThreshold float64

	// CPUThreshold is the 1-minute load average above which concurrency is reduced.
	CPUThreshold float64

	// EnableAdaptiveAdjustment turns on post-batch feedback tuning between batches.
	EnableAdaptiveAdjustment bool

	// EnableDynamicRateLimiting paces request starts through a shared token-bucket limiter.
	EnableDynamicRateLimiting bool

	// RequestsPerSecond is the token-bucket refill rate when dynamic rate limiting is on.
	RequestsPerSecond float64
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentRequests:    DefaultMaxConcurrentRequests,
		MinConcurrency:           MinConcurrency,
		MaxConcurrency:           MaxConcurrency,
		RequestTimeout:           DefaultRequestTimeout,
		MemoryThreshold:          DefaultMemoryThreshold,
		CPUThreshold:             DefaultCPUThreshold,
		EnableAdaptiveAdjustment: true,
	}
}

// LimitOverrides is a partial configuration. Nil fields leave the live value untouched.
type LimitOverrides struct {
	MaxConcurrentRequests     *int
	RequestTimeout            *time.Duration
	MemoryThreshold           *float64
	CPUThreshold              *float64
	EnableAdaptiveAdjustment  *bool
	EnableDynamicRateLimiting *bool
	RequestsPerSecond         *float64
}

// ApplyLimits validates and merges the overrides into the config, clamping out-of-range
// values into their allowed bounds. Every clamp is logged through the supplied logger.
func (c *Config) ApplyLimits(overrides LimitOverrides, log logger.Logger) {
	if overrides.MaxConcurrentRequests != nil {
		c.MaxConcurrentRequests = clampIntWithWarning(log, "MaxConcurrentRequests",
			*overrides.MaxConcurrentRequests, MinConcurrency, MaxConcurrency)
	}

	if overrides.RequestTimeout != nil {
		timeout := *overrides.RequestTimeout
		if timeout < MinRequestTimeout || timeout > MaxRequestTimeout {
			clamped := clampDuration(timeout, MinRequestTimeout, MaxRequestTimeout)
			log.Warn("Requested timeout out of range, clamping",
				zap.Duration("requested", timeout),
				zap.Duration("clamped", clamped),
			)
			timeout = clamped
		}
		c.RequestTimeout = timeout
	}

	if overrides.MemoryThreshold != nil {
		threshold := *overrides.MemoryThreshold
		if threshold < MinMemoryThreshold || threshold > MaxMemoryThreshold {
			clamped := clampFloat(threshold, MinMemoryThreshold, MaxMemoryThreshold)
			log.Warn("Requested memory threshold out of range, clamping",
				zap.Float64("requested", threshold),
				zap.Float64("clamped", clamped),
			)
			threshold = clamped
		}
		c.MemoryThreshold = threshold
	}

	if overrides.CPUThreshold != nil && *overrides.CPUThreshold > 0 {
		c.CPUThreshold = *overrides.CPUThreshold
	}

	if overrides.EnableAdaptiveAdjustment != nil {
		c.EnableAdaptiveAdjustment = *overrides.EnableAdaptiveAdjustment
	}

	if overrides.EnableDynamicRateLimiting != nil {
		c.EnableDynamicRateLimiting = *overrides.EnableDynamicRateLimiting
	}

	if overrides.RequestsPerSecond != nil && *overrides.RequestsPerSecond > 0 {
		c.RequestsPerSecond = *overrides.RequestsPerSecond
	}
}

func clampIntWithWarning(log logger.Logger, name string, v, lo, hi int) int {
	clamped := clampInt(v, lo, hi)
	if clamped != v {
		log.Warn("Requested limit out of range, clamping",
			zap.String("limit", name),
			zap.Int("requested", v),
			zap.Int("clamped", clamped),
		)
	}
	return clamped
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
