// connpool/pool.go
/* Bounded pool of reusable connection handles. Acquire serves from the idle list when
possible (a "reuse"), creates a new handle while under the size cap (a "created"), and
returns nil on exhaustion - the caller falls back to an ephemeral unpooled handle.
Release health-checks the handle: healthy handles are reset and pooled, unhealthy ones
closed. The pool invariant active + available == size holds at all times, where
available counts the capacity not currently lent out. */
package connpool

import (
	"net/http"
	"sync"

	"github.com/syncforge/go-batch-http-engine/logger"
	"go.uber.org/zap"
)

// DefaultPoolSize is the handle capacity used when the engine config does not set one.
const DefaultPoolSize = 10

// Pool recycles live connection handles. Safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	size      int
	active    int
	idle      []*Handle
	created   int64
	reused    int64
	closed    int64
	newClient func() *http.Client
	logger    logger.Logger
}

// NewPool returns a pool of the given fixed size. newClient builds a fresh client over
// the shared multiplexed transport whenever the idle list cannot serve an acquire.
func NewPool(size int, newClient func() *http.Client, log logger.Logger) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}
	return &Pool{
		size:      size,
		idle:      make([]*Handle, 0, size),
		newClient: newClient,
		logger:    log,
	}
}

// Acquire returns a handle from the idle list, a freshly created handle while the pool
// is under capacity, or nil when the pool is exhausted. Exhaustion is not an error;
// the caller may create an ephemeral handle or decline further concurrency.
func (p *Pool) Acquire() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.idle); n > 0 {
		h := p.idle[n-1]
		p.idle = p.idle[:n-1]
		h.markReused()
		p.reused++
		p.active++
		return h
	}

	if p.active < p.size {
		h := newHandle(p.newClient())
		p.created++
		p.active++
		return h
	}

	p.logger.Debug("Connection pool exhausted",
		zap.Int("size", p.size),
		zap.Int("active", p.active),
	)
	return nil
}

// Release returns a handle to the pool. Healthy handles are reset and appended to the
// idle list; unhealthy ones are closed and counted. It returns true when the handle
// was pooled for reuse.
func (p *Pool) Release(h *Handle) bool {
	if h == nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active > 0 {
		p.active--
	}

	if !h.healthy() {
		p.closed++
		h.close()
		p.logger.Debug("Closed unhealthy connection handle",
			zap.String("handleID", h.ID.String()),
		)
		return false
	}

	h.reset()
	p.idle = append(p.idle, h)
	return true
}

// HealthCheck reports whether the handle would survive a release back into the pool.
func (p *Pool) HealthCheck(h *Handle) bool {
	return h != nil && h.healthy()
}

// Refresh drains and closes all idle handles. Handles currently lent out are untouched;
// they are health-checked as usual on release.
func (p *Pool) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range p.idle {
		h.close()
		p.closed++
	}
	p.idle = p.idle[:0]

	p.logger.Info("Connection pool refreshed", zap.Int("size", p.size))
}

// ResetCounters zeroes the created/reused/closed counters. Pool contents are untouched.
func (p *Pool) ResetCounters() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = 0
	p.reused = 0
	p.closed = 0
}

// Size returns the fixed pool capacity.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Active returns the number of handles currently lent out.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Available returns the capacity not currently lent out, so that
// Active() + Available() == Size() always holds.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - p.active
}
