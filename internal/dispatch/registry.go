package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mcprotocol/sessioncore/mcp"
)

// RequestHandler answers one inbound request. It receives a HandlerContext
// scoped to the request's lifetime, raw JSON params, and returns raw JSON
// result or an error. Errors that are not already an *CodedError are
// reported to the peer as -32603 Internal error.
type RequestHandler func(ctx context.Context, hc *HandlerContext, params json.RawMessage) (json.RawMessage, error)

// NotificationHandler handles one inbound notification. Its return value is
// logged and discarded (§7, propagation policy): there is no peer to answer.
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// CodedError lets a RequestHandler choose its own JSON-RPC error code and
// data instead of falling back to -32603.
type CodedError struct {
	Code    int
	Message string
	Data    any
}

func (e *CodedError) Error() string { return fmt.Sprintf("dispatch: %d %s", e.Code, e.Message) }

// snapshot is the registry's current, immutable view of registered
// handlers. Every registration builds a fresh snapshot and commit swaps it
// in atomically, so in-flight lookups never observe a half-built map.
type snapshot struct {
	requests             map[mcp.Method]RequestHandler
	notifications        map[mcp.Method]NotificationHandler
	fallbackRequest      RequestHandler
	fallbackNotification NotificationHandler
}

// Registry is the Handler Registry (§4.5): a method-name to handler mapping
// for inbound requests and notifications, with optional fallbacks.
// Registration is append-only until Freeze is called; after that, further
// registration attempts fail with ErrFrozen.
type Registry struct {
	mu     sync.Mutex
	next   *snapshot
	live   atomic.Pointer[snapshot]
	frozen atomic.Bool
}

// ErrFrozen is returned by registration methods called after Freeze.
var ErrFrozen = fmt.Errorf("dispatch: handler registry is frozen")

// NewRegistry returns an empty, unfrozen Registry.
func NewRegistry() *Registry {
	r := &Registry{next: &snapshot{
		requests:      make(map[mcp.Method]RequestHandler),
		notifications: make(map[mcp.Method]NotificationHandler),
	}}
	r.live.Store(r.next)
	return r
}

// RegisterRequest registers h for method, replacing any existing handler
// for that method (re-registration is allowed until Freeze).
func (r *Registry) RegisterRequest(method mcp.Method, h RequestHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrFrozen
	}
	next := r.next.clone()
	next.requests[method] = h
	r.commit(next)
	return nil
}

// RegisterNotification registers h for method.
func (r *Registry) RegisterNotification(method mcp.Method, h NotificationHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrFrozen
	}
	next := r.next.clone()
	next.notifications[method] = h
	r.commit(next)
	return nil
}

// SetFallbackRequest sets the catch-all invoked when no specific request
// handler matches.
func (r *Registry) SetFallbackRequest(h RequestHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrFrozen
	}
	next := r.next.clone()
	next.fallbackRequest = h
	r.commit(next)
	return nil
}

// SetFallbackNotification sets the catch-all invoked when no specific
// notification handler matches.
func (r *Registry) SetFallbackNotification(h NotificationHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() {
		return ErrFrozen
	}
	next := r.next.clone()
	next.fallbackNotification = h
	r.commit(next)
	return nil
}

// commit publishes next as the live snapshot via a single atomic swap, and
// keeps building subsequent registrations on top of it.
func (r *Registry) commit(next *snapshot) {
	r.next = next
	r.live.Store(next)
}

// Freeze stops accepting new registrations. Called when the Session leaves
// the Created phase and starts connecting.
func (r *Registry) Freeze() { r.frozen.Store(true) }

func (s *snapshot) clone() *snapshot {
	out := &snapshot{
		requests:             make(map[mcp.Method]RequestHandler, len(s.requests)),
		notifications:        make(map[mcp.Method]NotificationHandler, len(s.notifications)),
		fallbackRequest:      s.fallbackRequest,
		fallbackNotification: s.fallbackNotification,
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.notifications {
		out.notifications[k] = v
	}
	return out
}

// lookupRequest implements the §4.5 lookup order: exact match, then
// fallback.
func (r *Registry) lookupRequest(method mcp.Method) (RequestHandler, bool) {
	s := r.live.Load()
	if h, ok := s.requests[method]; ok {
		return h, true
	}
	if s.fallbackRequest != nil {
		return s.fallbackRequest, true
	}
	return nil, false
}

func (r *Registry) lookupNotification(method mcp.Method) (NotificationHandler, bool) {
	s := r.live.Load()
	if h, ok := s.notifications[method]; ok {
		return h, true
	}
	if s.fallbackNotification != nil {
		return s.fallbackNotification, true
	}
	return nil, false
}

// HasRequestHandler reports whether a specific (non-fallback) request
// handler is registered for method. Used by the Capability Model to infer
// advertised capabilities.
func (r *Registry) HasRequestHandler(method mcp.Method) bool {
	s := r.live.Load()
	_, ok := s.requests[method]
	return ok
}

// HasNotificationHandler reports whether a specific notification handler is
// registered for method.
func (r *Registry) HasNotificationHandler(method mcp.Method) bool {
	s := r.live.Load()
	_, ok := s.notifications[method]
	return ok
}
