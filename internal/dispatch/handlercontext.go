package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mcprotocol/sessioncore/internal/jsonrpc"
	"github.com/mcprotocol/sessioncore/mcp"
)

// RequestOptions configures one outbound request's deadline policy and
// progress routing, mirroring §4.4 and §4.8. It is defined here, rather
// than in the session package, so that HandlerContext.Peer can accept it
// without an import cycle; the session package re-exports it as
// session.RequestOptions.
type RequestOptions struct {
	// TimeoutMillis is the soft, per-attempt deadline in milliseconds. Zero
	// means no deadline.
	TimeoutMillis int64
	ResetOnProgress bool
	// MaxTotalMillis is the hard ceiling in milliseconds. Zero means none.
	MaxTotalMillis int64
	OnProgress     func(value, total float64, message string)
}

// Peer is the narrow surface a HandlerContext exposes back into the
// session that invoked it: enough to send a request or notification, never
// enough to disconnect the session or register new handlers. It is
// implemented by the session package's Session and wired in when the
// Dispatcher is constructed, keeping this package free of a dependency on
// session.
type Peer interface {
	Request(ctx context.Context, method string, params any, opts RequestOptions) (json.RawMessage, error)
	Notify(method string, params any) error
}

// HandlerContext is passed to every invocation of a RequestHandler. It
// holds only indirect access to the owning session (through Peer) so a
// handler cannot extend the session's lifetime or reach into its internals
// (§3, Ownership).
type HandlerContext struct {
	ctx           context.Context
	method        string
	id            *jsonrpc.RequestID
	progressToken string
	logger        *slog.Logger
	peer          Peer
}

// Context returns the per-request context. It is cancelled (with a cause)
// when the peer sends notifications/cancelled for this request, or when
// the session disconnects. Handlers are expected to observe it at their own
// await/yield points.
func (hc *HandlerContext) Context() context.Context { return hc.ctx }

// Method returns the JSON-RPC method name being served.
func (hc *HandlerContext) Method() string { return hc.method }

// RequestID returns the id of the request being served, or nil if this
// HandlerContext was built for a notification.
func (hc *HandlerContext) RequestID() *jsonrpc.RequestID { return hc.id }

// Logger returns the session's structured logger.
func (hc *HandlerContext) Logger() *slog.Logger { return hc.logger }

// Request issues a new outbound request on the owning session, as if the
// host application had called Session.Send directly. Used by handlers that
// need to call back into the peer (e.g. a tool handler that samples from
// the client).
func (hc *HandlerContext) Request(ctx context.Context, method string, params any, opts RequestOptions) (json.RawMessage, error) {
	return hc.peer.Request(ctx, method, params, opts)
}

// Notify sends a fire-and-forget notification on the owning session.
func (hc *HandlerContext) Notify(method string, params any) error {
	return hc.peer.Notify(method, params)
}

// ProgressToken returns the progress token the caller attached to this
// request's _meta, and whether one was present. Handlers that want to
// report progress on a long-running operation should check this before
// emitting notifications/progress (§4.8): a caller that registered no
// progress sink sent no token, and there is nothing to route the
// notification to.
func (hc *HandlerContext) ProgressToken() (string, bool) {
	return hc.progressToken, hc.progressToken != ""
}

// ReportProgress sends a notifications/progress for this request's
// progress token, if the caller supplied one. It is a no-op (returning
// nil) when the caller registered no progress sink. message is optional
// free text describing the current step (§4.8 item 4); pass "" to omit it.
func (hc *HandlerContext) ReportProgress(value, total float64, message string) error {
	token, ok := hc.ProgressToken()
	if !ok {
		return nil
	}
	return hc.Notify("notifications/progress", mcp.ProgressNotificationParams{ProgressToken: token, Progress: value, Total: total, Message: message})
}
