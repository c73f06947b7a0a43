package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcprotocol/sessioncore/internal/errs"
	"github.com/mcprotocol/sessioncore/internal/jsonrpc"
	"github.com/mcprotocol/sessioncore/internal/logctx"
	"github.com/mcprotocol/sessioncore/internal/pending"
	"github.com/mcprotocol/sessioncore/internal/progress"
	"github.com/mcprotocol/sessioncore/mcp"
	"github.com/mcprotocol/sessioncore/transport"
)

// inflight tracks one inbound request currently being served, so a
// notifications/cancelled from the peer can reach its HandlerContext.
type inflight struct {
	cancel    context.CancelCauseFunc
	cancelled bool
}

// Dispatcher is the Dispatcher (§4.6): the single reader of frames off a
// Transport, classifying each into a pending-table completion, a routed
// notification, or a freshly spawned handler invocation. It starts no
// reader goroutine of its own (handler invocations each get one); Run is
// called by the session from the goroutine the session's errgroup
// allocates for the reader role.
type Dispatcher struct {
	Transport transport.Transport
	Registry  *Registry
	Pending   *pending.Table
	Progress  *progress.Registry
	Peer      Peer
	Logger    *slog.Logger

	// OnNotification, if set, is called for every successfully routed or
	// dropped inbound notification that is not cancelled/progress (used by
	// Session to detect notifications/initialized during the handshake).
	OnNotification func(method mcp.Method, params json.RawMessage)

	mu       sync.Mutex
	inflight map[string]*inflight
}

// NewDispatcher wires the Dispatcher's collaborators. All fields are
// required except Logger, which defaults to slog.Default(), and
// OnNotification.
func NewDispatcher(t transport.Transport, reg *Registry, pt *pending.Table, pr *progress.Registry, peer Peer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Transport: t,
		Registry:  reg,
		Pending:   pt,
		Progress:  pr,
		Peer:      peer,
		Logger:    logger,
		inflight:  make(map[string]*inflight),
	}
}

// Run reads frames until the transport closes or ctx is cancelled, and
// returns the reason. It never returns nil on a clean close; callers
// compare the returned error against transport.ErrClosed to distinguish an
// orderly shutdown from a genuine I/O failure.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		frame, err := d.Transport.Recv(ctx)
		if err != nil {
			return err
		}

		d.handleFrame(ctx, frame)
	}
}

func (d *Dispatcher) handleFrame(ctx context.Context, frame []byte) {
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		d.handleDecodeError(ctx, frame, err)
		return
	}

	switch msg.Type() {
	case "response":
		d.handleResponse(msg.AsResponse())
	case "notification":
		req := msg.AsRequest()
		ctx := logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, Type: "notification"})
		d.handleNotification(ctx, req)
	case "request":
		req := msg.AsRequest()
		ctx := logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: req.ID.String(), Type: "request"})
		d.handleRequest(ctx, req)
	}
}

// handleDecodeError implements §4.1/§4.10: a malformed frame with a
// recoverable id gets a -32700 response; without one, it is logged and
// dropped.
func (d *Dispatcher) handleDecodeError(ctx context.Context, frame []byte, decodeErr error) {
	d.Logger.WarnContext(ctx, "dispatch.frame.malformed", slog.String("error", decodeErr.Error()))

	id := recoverID(frame)
	if id == nil || id.IsNil() {
		return
	}

	resp := jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeParseError, "parse error", nil)
	d.sendResponse(ctx, resp)
}

// recoverID attempts a best-effort, lenient extraction of an "id" field
// from a frame that otherwise failed strict envelope validation.
func recoverID(frame []byte) *jsonrpc.RequestID {
	var partial struct {
		ID *jsonrpc.RequestID `json:"id"`
	}
	if err := json.Unmarshal(frame, &partial); err != nil {
		return nil
	}
	return partial.ID
}

func (d *Dispatcher) handleResponse(resp *jsonrpc.Response) {
	if resp == nil || resp.ID == nil {
		return
	}
	if !d.Pending.Complete(resp) {
		d.Logger.Debug("dispatch.response.unmatched", slog.String("id", resp.ID.String()))
	}
}

func (d *Dispatcher) handleNotification(ctx context.Context, req *jsonrpc.Request) {
	if req == nil {
		return
	}

	switch mcp.Method(req.Method) {
	case mcp.CancelledNotificationMethod:
		d.handleCancelled(req.Params)
		return
	case mcp.ProgressNotificationMethod:
		d.handleProgress(req.Params)
		return
	}

	method := mcp.Method(req.Method)
	handler, ok := d.Registry.lookupNotification(method)
	if !ok {
		d.Logger.DebugContext(ctx, "dispatch.notification.dropped", slog.String("method", req.Method))
		if d.OnNotification != nil {
			d.OnNotification(method, req.Params)
		}
		return
	}

	// Dispatched off the reader goroutine (§4.6): a handler that calls back
	// into the session must not block the frame loop.
	go func() {
		if err := handler(ctx, req.Params); err != nil {
			d.Logger.ErrorContext(ctx, "dispatch.notification.error", slog.String("method", req.Method), slog.String("error", err.Error()))
		}
		if d.OnNotification != nil {
			d.OnNotification(method, req.Params)
		}
	}()
}

func (d *Dispatcher) handleCancelled(params json.RawMessage) {
	var cn mcp.CancelledNotification
	if err := json.Unmarshal(params, &cn); err != nil {
		return
	}

	d.mu.Lock()
	inf, ok := d.inflight[cn.RequestID]
	if ok {
		inf.cancelled = true
	}
	d.mu.Unlock()

	if ok {
		inf.cancel(fmt.Errorf("%w: %s", errs.ErrCancelled, cn.Reason))
	}
}

func (d *Dispatcher) handleProgress(params json.RawMessage) {
	var pp mcp.ProgressNotificationParams
	if err := json.Unmarshal(params, &pp); err != nil {
		return
	}

	token := fmt.Sprintf("%v", pp.ProgressToken)
	d.Progress.Route(token, pp.Progress, pp.Total, pp.Message)
}

func (d *Dispatcher) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	method := mcp.Method(req.Method)
	handler, ok := d.Registry.lookupRequest(method)
	if !ok {
		resp := jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, "method not found: "+req.Method, nil)
		d.sendResponse(ctx, resp)
		return
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	key := req.ID.String()

	inf := &inflight{cancel: cancel}
	d.mu.Lock()
	d.inflight[key] = inf
	d.mu.Unlock()

	// Handlers run off the reader goroutine so the frame loop is never
	// blocked waiting on user code (§4.6, §5).
	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.inflight, key)
			d.mu.Unlock()
			cancel(nil)
		}()

		result, err := d.invoke(reqCtx, handler, method, req.ID, req.Params)

		d.mu.Lock()
		cancelled := inf.cancelled
		d.mu.Unlock()
		if cancelled {
			// Peer is no longer waiting; drop the outcome either way (§4.4).
			return
		}

		var resp *jsonrpc.Response
		if err != nil {
			resp = errorResponseFor(req.ID, err)
		} else {
			resp, err = jsonrpc.NewResultResponse(req.ID, json.RawMessage(result))
			if err != nil {
				resp = jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
			}
		}
		d.sendResponse(ctx, resp)
	}()
}

func (d *Dispatcher) invoke(ctx context.Context, handler RequestHandler, method mcp.Method, id *jsonrpc.RequestID, params json.RawMessage) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: handler for %s panicked: %v", method, r)
		}
	}()

	hc := &HandlerContext{ctx: ctx, method: string(method), id: id, progressToken: extractProgressToken(params), logger: d.Logger, peer: d.Peer}
	return handler(ctx, hc, params)
}

// extractProgressToken pulls _meta.progressToken out of a request's raw
// params, if present (§6, Progress piggyback). progressToken is a
// string|number union on the wire, same as mcp.ProgressToken, so the
// envelope field is typed any and normalized with the peer's own
// fmt.Sprintf("%v", ...) convention (handleProgress) rather than assuming
// string and silently dropping numeric tokens. Params that aren't a JSON
// object, or that carry no _meta, yield an empty string.
func extractProgressToken(params json.RawMessage) string {
	var envelope struct {
		Meta struct {
			ProgressToken any `json:"progressToken"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(params, &envelope); err != nil {
		return ""
	}
	if envelope.Meta.ProgressToken == nil {
		return ""
	}
	return fmt.Sprintf("%v", envelope.Meta.ProgressToken)
}

func errorResponseFor(id *jsonrpc.RequestID, err error) *jsonrpc.Response {
	var ce *CodedError
	if e, ok := err.(*CodedError); ok {
		ce = e
	}
	if ce != nil {
		return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCode(ce.Code), ce.Message, ce.Data)
	}
	return jsonrpc.NewErrorResponse(id, jsonrpc.ErrorCodeInternalError, err.Error(), nil)
}

func (d *Dispatcher) sendResponse(ctx context.Context, resp *jsonrpc.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		d.Logger.ErrorContext(ctx, "dispatch.response.marshal_error", slog.String("error", err.Error()))
		return
	}
	if err := d.Transport.Send(ctx, b); err != nil {
		// Write failures on a response are logged, not fatal (§4.10).
		d.Logger.WarnContext(ctx, "dispatch.response.send_error", slog.String("error", err.Error()))
	}
}

// SignalDisconnecting cancels every in-flight inbound request's context,
// called when the owning session begins disconnecting.
func (d *Dispatcher) SignalDisconnecting() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, inf := range d.inflight {
		inf.cancel(errs.ErrConnectionClosed)
	}
}
