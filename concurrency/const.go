// concurrency/const.go
package concurrency

import "time"

const (
	// MinConcurrency represents the minimum allowed concurrent requests.
	MinConcurrency = 1

	// MaxConcurrency represents the maximum allowed concurrent requests.
	MaxConcurrency = 20

	// DefaultMaxConcurrentRequests is the starting concurrency before any adaptive tuning.
	DefaultMaxConcurrentRequests = 5

	// DefaultRequestTimeout is the per-request timeout applied when a request carries none.
	DefaultRequestTimeout = 30 * time.Second

	// MinRequestTimeout and MaxRequestTimeout bound the configurable per-request timeout.
	MinRequestTimeout = 5 * time.Second
	MaxRequestTimeout = 300 * time.Second

	// DefaultMemoryThreshold is the memory usage ratio (0-1) above which concurrency is reduced.
	DefaultMemoryThreshold = 0.8

	// MinMemoryThreshold and MaxMemoryThreshold bound the configurable memory threshold.
	MinMemoryThreshold = 0.5
	MaxMemoryThreshold = 0.95

	// DefaultCPUThreshold is the 1-minute load average above which concurrency is reduced.
	DefaultCPUThreshold = 2.0

	// MetricsWindowSize caps the rolling window of per-batch latency samples.
	MetricsWindowSize = 50
)

// Multiplicative adjustment factors applied by the tuner. The sized variants apply only
// when the caller supplied an up-front estimate of total work size.
const (
	highLoadFactor         = 0.7
	lowLoadFactor          = 1.3
	highMemoryFactor       = 0.8
	lowMemoryFactor        = 1.2
	slowLatencyFactor      = 0.9
	slowLatencyFactorSized = 0.8
	fastLatencyFactor      = 1.2

	lowLoadThreshold   = 0.5
	lowMemoryThreshold = 0.5
	slowLatencySeconds = 3.0
	fastLatencySeconds = 1.0
)

// Post-batch feedback thresholds. A batch success rate below the scale-down threshold
// shrinks the next batch; above the scale-up threshold grows it.
const (
	scaleDownSuccessRate = 0.8
	scaleUpSuccessRate   = 0.95
)

// Slot ceilings per task category, expressed as fractions of MaxConcurrentRequests.
const (
	downloadSlotFraction = 0.6
	uploadSlotFraction   = 0.4
)
