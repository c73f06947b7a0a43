package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcprotocol/sessioncore/capability"
	"github.com/mcprotocol/sessioncore/internal/dispatch"
	"github.com/mcprotocol/sessioncore/internal/errs"
	"github.com/mcprotocol/sessioncore/internal/logctx"
	"github.com/mcprotocol/sessioncore/mcp"
	"github.com/mcprotocol/sessioncore/transport"
	"golang.org/x/sync/errgroup"
)

// Connect starts the reader, performs the client-side initialize handshake,
// and transitions to Initialized (§4.7). Fails with ErrVersionMismatch or
// ErrConnectionClosed.
func (s *Session) Connect(ctx context.Context, t transport.Transport) error {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateConnecting)) {
		return errs.ErrAlreadyConnected
	}
	s.registry.Freeze()
	s.startReader(t)

	inferredClientCaps := capability.InferClient(s)
	clientCaps := capability.MergeClient(inferredClientCaps, s.explicitClientCaps)
	unfulfilled, unadvertisedHandler := capability.DiffClient(inferredClientCaps, clientCaps)
	logCapabilityMismatches(ctx, s.logger, unfulfilled, unadvertisedHandler)

	req := mcp.InitializeRequest{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    clientCaps.ToWire(),
		ClientInfo:      s.info,
	}

	handshakeCtx := ctx
	if s.handshakeTimeoutMillis > 0 {
		var cancel context.CancelFunc
		handshakeCtx, cancel = context.WithTimeout(ctx, time.Duration(s.handshakeTimeoutMillis)*time.Millisecond)
		defer cancel()
	}

	raw, err := s.Request(handshakeCtx, string(mcp.InitializeMethod), req, RequestOptions{})
	if err != nil {
		s.failStartup(err)
		return err
	}

	var result mcp.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		err = &errs.ProtocolError{Reason: "malformed InitializeResult: " + err.Error()}
		s.failStartup(err)
		return err
	}
	if result.ProtocolVersion != mcp.LatestProtocolVersion {
		s.failStartup(errs.ErrVersionMismatch)
		return errs.ErrVersionMismatch
	}

	s.mu.Lock()
	s.peerInfo = result.ServerInfo
	s.mu.Unlock()

	if err := s.Notify(string(mcp.InitializedNotificationMethod), mcp.InitializedNotification{}); err != nil {
		s.failStartup(err)
		return err
	}

	s.state.Store(int32(StateInitialized))
	return nil
}

// Accept awaits an inbound initialize, answers with this side's
// capabilities, and waits for the peer's notifications/initialized before
// transitioning to Initialized. Symmetric counterpart to Connect (§4.7).
func (s *Session) Accept(ctx context.Context, t transport.Transport) error {
	if !s.isServer {
		return fmt.Errorf("sessioncore: Accept called on a session constructed with NewClient")
	}
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateConnecting)) {
		return errs.ErrAlreadyConnected
	}
	s.registry.Freeze()

	initializedCh := make(chan struct{}, 1)
	s.dispatcherNotificationHook = func(method mcp.Method, _ json.RawMessage) {
		if method == mcp.InitializedNotificationMethod {
			select {
			case initializedCh <- struct{}{}:
			default:
			}
		}
	}

	s.startReader(t)

	select {
	case <-initializedCh:
		s.state.Store(int32(StateInitialized))
		return nil
	case <-ctx.Done():
		s.failStartup(ctx.Err())
		return ctx.Err()
	}
}

func (s *Session) handleInitialize() dispatch.RequestHandler {
	return func(ctx context.Context, hc *dispatch.HandlerContext, params json.RawMessage) (json.RawMessage, error) {
		var req mcp.InitializeRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &dispatch.CodedError{Code: -32602, Message: "invalid params: " + err.Error()}
		}

		s.mu.Lock()
		s.peerInfo = req.ClientInfo
		s.mu.Unlock()

		if req.ProtocolVersion != mcp.LatestProtocolVersion {
			return nil, &dispatch.CodedError{Code: -32600, Message: "unsupported protocol version: " + req.ProtocolVersion}
		}

		inferredServerCaps := capability.InferServer(s)
		serverCaps := capability.MergeServer(inferredServerCaps, s.explicitServerCaps)
		unfulfilled, unadvertisedHandler := capability.DiffServer(inferredServerCaps, serverCaps)
		logCapabilityMismatches(ctx, s.logger, unfulfilled, unadvertisedHandler)

		return json.Marshal(mcp.InitializeResult{
			ProtocolVersion: mcp.LatestProtocolVersion,
			Capabilities:    serverCaps.ToWire(),
			ServerInfo:      s.info,
			Instructions:    s.instructions,
		})
	}
}

func (s *Session) startReader(t transport.Transport) {
	s.t = t

	runCtx, cancel := context.WithCancel(context.Background())
	runCtx = logctx.WithSessionData(runCtx, &logctx.SessionData{ConnectionID: s.connectionID, State: s.State().String()})
	s.runCancel = cancel

	s.dispatcher = dispatch.NewDispatcher(t, s.registry, s.pendingTable, s.progress, s, s.logger)
	s.dispatcher.OnNotification = func(method mcp.Method, params json.RawMessage) {
		if hook := s.dispatcherNotificationHook; hook != nil {
			hook(method, params)
		}
	}

	s.eg = &errgroup.Group{}
	s.eg.Go(func() error {
		err := s.dispatcher.Run(runCtx)
		if err != nil && err != context.Canceled && err != transport.ErrClosed {
			s.logger.WarnContext(runCtx, "session.reader.exit", slog.String("error", err.Error()))
		}
		s.pendingTable.FailAll(errs.ErrConnectionClosed)
		return err
	})
}

// logCapabilityMismatches logs the two warning events §4.9 requires:
// unfulfilled (advertised, no handler) and unadvertisedHandler (handler
// registered, not advertised). unfulfilled is the more severe of the two.
func logCapabilityMismatches(ctx context.Context, logger *slog.Logger, unfulfilled, unadvertisedHandler []string) {
	for _, name := range unfulfilled {
		logger.WarnContext(ctx, "session.capability.unfulfilled_advertisement", slog.String("capability", name))
	}
	for _, name := range unadvertisedHandler {
		logger.WarnContext(ctx, "session.capability.unadvertised_handler", slog.String("capability", name))
	}
}

// failStartup tears down a partially started session after Connect/Accept
// fails, so it does not leak the reader goroutine.
func (s *Session) failStartup(_ error) {
	if s.runCancel != nil {
		s.runCancel()
	}
	if s.t != nil {
		_ = s.t.Close()
	}
	if s.eg != nil {
		_ = s.eg.Wait()
	}
	s.state.Store(int32(StateClosed))
}
