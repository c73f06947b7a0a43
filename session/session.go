// Package session implements the Session (§4.7): the client/server facade
// that drives the initialize handshake, exposes the public send/notify API,
// and owns the Pending Request Table, Timeout Manager, Handler Registry,
// and Transport handle for its lifetime (§3, Ownership).
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mcprotocol/sessioncore/capability"
	"github.com/mcprotocol/sessioncore/internal/dispatch"
	"github.com/mcprotocol/sessioncore/internal/errs"
	"github.com/mcprotocol/sessioncore/internal/jsonrpc"
	"github.com/mcprotocol/sessioncore/internal/logctx"
	"github.com/mcprotocol/sessioncore/internal/pending"
	"github.com/mcprotocol/sessioncore/internal/progress"
	"github.com/mcprotocol/sessioncore/internal/timeout"
	"github.com/mcprotocol/sessioncore/mcp"
	"github.com/mcprotocol/sessioncore/transport"
	"golang.org/x/sync/errgroup"
)

// HandlerContext is re-exported so callers registering handlers directly
// (rather than through handlerkit) don't need to import internal/dispatch.
type HandlerContext = dispatch.HandlerContext

// RequestHandler and NotificationHandler mirror the dispatch package's raw
// handler signatures.
type RequestHandler = dispatch.RequestHandler
type NotificationHandler = dispatch.NotificationHandler

// RequestOptions configures one outbound Send call (§4.4, §4.8).
type RequestOptions = dispatch.RequestOptions

// Session is the client/server facade described in §4.7. A single type
// serves both roles; NewClient and NewServer differ in which built-in
// handlers they register (§9.1, §9 "dispatcher is symmetric"), and only a
// session built by NewServer may Accept.
type Session struct {
	// connectionID identifies this side's instance for diagnostic logging
	// (§3, Connection Metadata). It is never put on the wire; the peer has
	// no notion of it.
	connectionID           string
	info                   mcp.ImplementationInfo
	instructions           string
	explicitClientCaps     capability.Client
	explicitServerCaps     capability.Server
	handshakeTimeoutMillis int64
	logger                 *slog.Logger

	registry     *dispatch.Registry
	pendingTable *pending.Table
	progress     *progress.Registry
	timeoutMgr   *timeout.Manager
	idCounter    atomic.Uint64

	mu         sync.Mutex
	state      atomic.Int32
	t          transport.Transport
	dispatcher *dispatch.Dispatcher
	runCancel  context.CancelFunc
	eg         *errgroup.Group

	peerInfo                   mcp.ImplementationInfo
	isServer                   bool
	dispatcherNotificationHook func(method mcp.Method, params json.RawMessage)
	closeOnce                  sync.Once
}

func newSession(opts ...Option) *Session {
	s := &Session{
		connectionID: uuid.NewString(),
		registry:     dispatch.NewRegistry(),
		pendingTable: pending.New(),
		progress:     progress.New(),
		timeoutMgr:   timeout.NewManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = slog.New(logctx.Handler{Handler: s.logger.Handler()})
	if s.info.Name == "" {
		s.info = mcp.ImplementationInfo{Name: "sessioncore", Version: "0.0.0"}
	}

	_ = s.registry.RegisterRequest(mcp.PingMethod, handlerkitPing())
	return s
}

// NewClient returns a Session in the Created state that will play the
// client role on Connect: it originates the initialize handshake.
func NewClient(opts ...Option) *Session {
	return newSession(opts...)
}

// NewServer returns a Session in the Created state that will play the
// server role on Accept: it awaits an inbound initialize.
func NewServer(opts ...Option) *Session {
	s := newSession(opts...)
	s.isServer = true
	_ = s.registry.RegisterRequest(mcp.InitializeMethod, s.handleInitialize())
	return s
}

func handlerkitPing() dispatch.RequestHandler {
	return func(ctx context.Context, hc *dispatch.HandlerContext, params json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(mcp.EmptyResult{})
	}
}

// RegisterRequestHandler registers h for method. Append-only until the
// session leaves the Created phase (§4.5); returns ErrHandlersFrozen
// thereafter.
func (s *Session) RegisterRequestHandler(method mcp.Method, h RequestHandler) error {
	if err := s.registry.RegisterRequest(method, h); err != nil {
		return errs.ErrHandlersFrozen
	}
	return nil
}

// RegisterNotificationHandler registers h for method.
func (s *Session) RegisterNotificationHandler(method mcp.Method, h NotificationHandler) error {
	if err := s.registry.RegisterNotification(method, h); err != nil {
		return errs.ErrHandlersFrozen
	}
	return nil
}

// SetFallbackRequestHandler sets the catch-all for inbound requests with no
// specific handler. Must be set prior to Connect/Accept (§4.7).
func (s *Session) SetFallbackRequestHandler(h RequestHandler) error {
	if err := s.registry.SetFallbackRequest(h); err != nil {
		return errs.ErrHandlersFrozen
	}
	return nil
}

// SetFallbackNotificationHandler sets the catch-all for inbound
// notifications with no specific handler.
func (s *Session) SetFallbackNotificationHandler(h NotificationHandler) error {
	if err := s.registry.SetFallbackNotification(h); err != nil {
		return errs.ErrHandlersFrozen
	}
	return nil
}

// State returns the session's current point in the state machine.
func (s *Session) State() State { return State(s.state.Load()) }

// PeerInfo returns the peer's advertised ImplementationInfo, valid once
// State() is StateInitialized or later.
func (s *Session) PeerInfo() mcp.ImplementationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerInfo
}

// ConnectionID returns this side's diagnostic identifier, stable for the
// life of the Session and included in its structured log output.
func (s *Session) ConnectionID() string { return s.connectionID }

func (s *Session) nextID() *jsonrpc.RequestID {
	return jsonrpc.NewRequestID(int64(s.idCounter.Add(1)))
}

// --- dispatch.Peer implementation, and capability.HandlerSet implementation ---

func (s *Session) HasRequestHandler(method mcp.Method) bool      { return s.registry.HasRequestHandler(method) }
func (s *Session) HasNotificationHandler(method mcp.Method) bool { return s.registry.HasNotificationHandler(method) }

var _ dispatch.Peer = (*Session)(nil)
var _ capability.HandlerSet = (*Session)(nil)
