// Package handlerkit is ergonomic glue over the Session Core's raw
// json.RawMessage handler signature (§4.12, Handler Registration
// Convenience): it lets a host register a typed Go function directly,
// without hand-marshaling params and results at every call site. It
// performs no schema generation or reflection-based validation; that
// remains out of scope.
package handlerkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcprotocol/sessioncore/internal/dispatch"
)

// HandlerContext is re-exported so callers of Request/Notification do not
// need to import the internal dispatch package directly.
type HandlerContext = dispatch.HandlerContext

// Request wraps a typed function as a dispatch.RequestHandler: params are
// unmarshaled into P before fn is called, and fn's R result is marshaled
// back. A params unmarshal failure is reported to the peer as
// -32602 Invalid params.
func Request[P any, R any](fn func(ctx context.Context, hc *HandlerContext, params P) (R, error)) dispatch.RequestHandler {
	return func(ctx context.Context, hc *HandlerContext, raw json.RawMessage) (json.RawMessage, error) {
		var params P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, &dispatch.CodedError{Code: -32602, Message: fmt.Sprintf("invalid params: %v", err)}
			}
		}

		result, err := fn(ctx, hc, params)
		if err != nil {
			return nil, err
		}

		return json.Marshal(result)
	}
}

// Notification wraps a typed function as a dispatch.NotificationHandler.
// Unlike Request, a params unmarshal failure is simply returned as an
// error: there is no peer to answer, so the error is only logged (§7).
func Notification[P any](fn func(ctx context.Context, params P) error) dispatch.NotificationHandler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var params P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &params); err != nil {
				return fmt.Errorf("handlerkit: invalid notification params: %w", err)
			}
		}
		return fn(ctx, params)
	}
}
