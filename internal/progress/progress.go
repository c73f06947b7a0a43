// Package progress implements the Progress Subsystem: allocation of
// per-session progress tokens and routing of inbound progress notifications
// to the sink registered for the token's owning request.
package progress

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Sink receives progress updates for one in-flight request. value is
// expected to increase monotonically; per the forward-and-log design
// decision, a non-increasing value is still delivered (callers that care
// can compare against the previous call themselves).
type Sink func(value, total float64, message string)

// Registry allocates tokens and maps them to sinks, one per session side.
type Registry struct {
	counter atomic.Uint64

	mu    sync.Mutex
	sinks map[string]Sink
}

// New returns an empty Registry.
func New() *Registry { return &Registry{sinks: make(map[string]Sink)} }

// NewToken allocates a fresh, monotonically increasing token unique within
// this Registry's lifetime, and registers sink under it.
func (r *Registry) NewToken(sink Sink) string {
	token := strconv.FormatUint(r.counter.Add(1), 10)

	r.mu.Lock()
	r.sinks[token] = sink
	r.mu.Unlock()

	return token
}

// Route invokes the sink registered for token, if any, without holding the
// registry's lock. Unknown tokens are silently dropped per §4.6.
func (r *Registry) Route(token string, value, total float64, message string) {
	r.mu.Lock()
	sink, ok := r.sinks[token]
	r.mu.Unlock()

	if ok {
		sink(value, total, message)
	}
}

// Release removes the sink for token. Called when the owning request
// completes, errors, times out, or is cancelled.
func (r *Registry) Release(token string) {
	r.mu.Lock()
	delete(r.sinks, token)
	r.mu.Unlock()
}
