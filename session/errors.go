package session

import "github.com/mcprotocol/sessioncore/internal/errs"

// Error kinds surfaced to callers (§7). Re-exported here so host code never
// needs to import the internal errs package directly.
var (
	ErrConnectionClosed  = errs.ErrConnectionClosed
	ErrCancelled         = errs.ErrCancelled
	ErrVersionMismatch   = errs.ErrVersionMismatch
	ErrHandlersFrozen    = errs.ErrHandlersFrozen
	ErrAlreadyConnected  = errs.ErrAlreadyConnected
)

// RequestTimeoutError, ProtocolError, RemoteError, and TransportError mirror
// their internal/errs counterparts, re-exported under the session package so
// callers can declare `var re *session.RemoteError` and use
// errors.As(err, &re) without reaching into an internal package.
type (
	RequestTimeoutError = errs.RequestTimeoutError
	ProtocolError       = errs.ProtocolError
	RemoteError         = errs.RemoteError
	TransportError       = errs.TransportError
)

// IsMethodNotFound reports whether err is a RemoteError carrying -32601.
func IsMethodNotFound(err error) bool { return errs.IsMethodNotFound(err) }
