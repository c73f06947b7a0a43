// Package logctx attaches request- and session-scoped fields to log
// records via context.Context, following the teacher's handler-wrapping
// slog.Handler pattern rather than threading fields through every call
// site by hand.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps a slog.Handler, enriching every record with whatever
// RPCMessage/SessionData values are present on its context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if msg, ok := ctx.Value(rpcMsgKey{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		r.AddAttrs(slog.Group("session",
			slog.String("id", sd.ConnectionID),
			slog.String("peer", sd.PeerName),
			slog.String("protocol_version", sd.ProtocolVersion),
			slog.String("state", sd.State),
		))
	}

	return h.Handler.Handle(ctx, r)
}

type rpcMsgKey struct{}

// RPCMessage describes the envelope currently being processed by the
// Dispatcher, for attaching to log records emitted while handling it.
type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsgKey{}, msg)
}

type sessionDataKey struct{}

// SessionData describes the owning Session, for attaching to every log
// record emitted over its lifetime.
type SessionData struct {
	ConnectionID    string
	PeerName        string
	ProtocolVersion string
	State           string
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}
