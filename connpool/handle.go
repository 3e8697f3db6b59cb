// connpool/handle.go
package connpool

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// connectTimeLimit is the slowest acceptable connection establishment. A handle whose
// last connect took longer is considered unhealthy and is closed instead of pooled.
const connectTimeLimit = 10 * time.Second

// Handle is a reusable connection handle: an http.Client wired to the shared
// multiplexed transport, plus the health bookkeeping the pool needs to decide whether
// to recycle it.
type Handle struct {
	ID     uuid.UUID
	Client *http.Client

	mu              sync.Mutex
	createdAt       time.Time
	reuseCount      int
	lastErr         error
	lastConnectTime time.Duration
}

// newHandle wraps a freshly configured client.
func newHandle(client *http.Client) *Handle {
	return &Handle{
		ID:        uuid.New(),
		Client:    client,
		createdAt: time.Now(),
	}
}

// RecordOutcome stores the outcome of the handle's most recent transfer. The pool's
// health check reads these values on release.
func (h *Handle) RecordOutcome(connectTime time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastConnectTime = connectTime
	h.lastErr = err
}

// ReuseCount returns how many times the handle has been served from the idle list.
func (h *Handle) ReuseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reuseCount
}

// Age returns how long ago the handle was created.
func (h *Handle) Age() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Since(h.createdAt)
}

// healthy reports whether the handle may be returned to the idle list: its last
// transfer completed without a transport error and connected within the limit.
func (h *Handle) healthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr == nil && h.lastConnectTime <= connectTimeLimit
}

// reset clears per-request state before the handle goes back into the pool, so the next
// borrower starts from a clean client.
func (h *Handle) reset() {
	h.mu.Lock()
	h.lastErr = nil
	h.lastConnectTime = 0
	h.mu.Unlock()

	h.Client.Timeout = 0
	h.Client.CheckRedirect = nil
}

// markReused bumps the reuse counter when the handle is served from the idle list.
func (h *Handle) markReused() {
	h.mu.Lock()
	h.reuseCount++
	h.mu.Unlock()
}

// close releases the handle's idle connections back to the OS.
func (h *Handle) close() {
	h.Client.CloseIdleConnections()
}
