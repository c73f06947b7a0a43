package session

import (
	"log/slog"

	"github.com/mcprotocol/sessioncore/capability"
	"github.com/mcprotocol/sessioncore/mcp"
)

// Option configures a Session at construction, following the teacher's
// functional-options convention (EngineOption).
type Option func(*Session)

// WithLogger attaches a structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithImplementationInfo sets the name/version this side advertises during
// the initialize handshake.
func WithImplementationInfo(name, version string) Option {
	return func(s *Session) { s.info = mcp.ImplementationInfo{Name: name, Version: version} }
}

// WithInstructions sets the free-text instructions a server includes in its
// InitializeResult.
func WithInstructions(instructions string) Option {
	return func(s *Session) { s.instructions = instructions }
}

// WithClientCapabilities sets explicit client capability overrides, merged
// field-by-field with the inferred set (§4.9).
func WithClientCapabilities(c capability.Client) Option {
	return func(s *Session) { s.explicitClientCaps = c }
}

// WithServerCapabilities sets explicit server capability overrides.
func WithServerCapabilities(c capability.Server) Option {
	return func(s *Session) { s.explicitServerCaps = c }
}

// WithHandshakeTimeoutMillis bounds how long Connect waits for the peer's
// InitializeResult. Zero means no deadline.
func WithHandshakeTimeoutMillis(ms int64) Option {
	return func(s *Session) { s.handshakeTimeoutMillis = ms }
}
