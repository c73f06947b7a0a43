// Package mcp contains protocol data types and constants shared by every
// other package in this module. It mirrors the wire representation
// specified by the Model Context Protocol while keeping the surface
// Go-friendly (exported structs with json tags, string constants for method
// names and enumerations, helper validation functions).
//
// The package is intentionally free of transport and session logic: it has
// no opinion on how a frame reaches the wire, how a request is correlated
// with its response, or how capabilities are inferred. The transport
// package moves raw frames; internal/jsonrpc decodes the JSON-RPC envelope;
// internal/dispatch and session build requests/responses out of these types
// and route them; capability infers and merges the capability structs
// defined here. This package only supplies the vocabulary they all share.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). Using the constants avoids typographical mistakes
// and ensures a single point of truth if the spec evolves.
//
// # Capabilities
//
// ClientCapabilities and ServerCapabilities capture negotiated feature sets.
// They are thin structs shaped to match the JSON spec; the capability
// package builds them from registered handlers and explicit overrides, and
// session.Connect/Accept exchange them during the initialize handshake.
//
// # Pagination
//
// Many list operations use cursor-based pagination. PaginatedRequest and
// PaginatedResult are embedded in request / result envelopes to keep the core
// list types clean while offering forward-compatible metadata via BaseMetadata.
//
// # Metadata
//
// BaseMetadata allows response producers to attach implementation-defined
// metadata under the _meta key without inflating every struct with an unused
// field. Composition (embedding) keeps serialization cost minimal when unset.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: "text", Text: "hello"}},
//	}
//
// Example (progress notification params):
//
//	prog := mcp.ProgressNotificationParams{ProgressToken: "op1", Progress: 42, Total: 100}
//	// internal/dispatch routes this to the sink registered for "op1"
//
// # Logging Levels
//
// LoggingLevel values mirror syslog severities defined by the spec. Use
// IsValidLoggingLevel to validate user-provided values in handler code.
//
// # Compatibility
//
// The LatestProtocolVersion constant reflects the most recent protocol date
// this module targets. session.Connect and session.Accept check the peer's
// negotiated version against this constant and fail the handshake on a
// mismatch rather than attempting a downgrade.
package mcp
