// concurrency/system.go
// System introspection consumed by the tuner and the slot registrar. The host supplies
// a 1-minute load average and a memory usage ratio; the default monitor reads
// /proc/loadavg and the Go runtime's memory statistics. Tests inject a stub.
package concurrency

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemMonitor supplies the live system signals that feed concurrency decisions.
type SystemMonitor interface {
	// LoadAverage returns the 1-minute load average, or 0 when unavailable.
	LoadAverage() float64

	// MemoryUsageRatio returns current memory usage divided by the memory limit, 0-1.
	MemoryUsageRatio() float64
}

// hostMonitor is the default SystemMonitor. Load average comes from /proc/loadavg;
// memory usage from runtime.ReadMemStats against a configured byte limit, falling
// back to the runtime's own reserved total when no limit is set.
type hostMonitor struct {
	memoryLimitBytes uint64
}

// NewHostMonitor returns a SystemMonitor reading from the local host. A zero
// memoryLimitBytes means the ratio is measured against memory the runtime has
// obtained from the OS.
func NewHostMonitor(memoryLimitBytes uint64) SystemMonitor {
	return &hostMonitor{memoryLimitBytes: memoryLimitBytes}
}

func (h *hostMonitor) LoadAverage() float64 {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}

	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	return load
}

func (h *hostMonitor) MemoryUsageRatio() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	limit := h.memoryLimitBytes
	if limit == 0 {
		limit = m.Sys
	}
	if limit == 0 {
		return 0
	}

	ratio := float64(m.Alloc) / float64(limit)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// SystemHealthy reports whether the monitored load and memory signals are both below
// the configured thresholds.
func SystemHealthy(monitor SystemMonitor, cfg Config) bool {
	return monitor.LoadAverage() < cfg.CPUThreshold &&
		monitor.MemoryUsageRatio() < cfg.MemoryThreshold
}
