// engine/slots.go
// The slot API is orthogonal to batch execution: callers claim a named slot before
// starting unrelated long-running work and release it when done.
package engine

import (
	"time"

	"github.com/syncforge/go-batch-http-engine/concurrency"
)

// CanStartTask reports whether a task in the category could start right now.
func (e *Engine) CanStartTask(category concurrency.Category) bool {
	return e.slots.CanStart(category)
}

// StartTask atomically claims a slot in the category, returning false without side
// effects when none is available.
func (e *Engine) StartTask(category concurrency.Category) bool {
	return e.slots.Start(category)
}

// EndTask releases a slot in the category.
func (e *Engine) EndTask(category concurrency.Category) {
	e.slots.End(category)
}

// WaitForSlot blocks until a slot in the category is claimed or maxWait elapses,
// returning true when a slot was claimed.
func (e *Engine) WaitForSlot(category concurrency.Category, maxWait time.Duration) bool {
	return e.slots.WaitForSlot(category, maxWait)
}

// IsSystemHealthy reports whether system load and memory pressure are both below their
// configured thresholds.
func (e *Engine) IsSystemHealthy() bool {
	return e.slots.SystemHealthy()
}
