// Package sessioncore is the root of a Model Context Protocol session
// engine: a bidirectional JSON-RPC 2.0 message loop connecting a client and
// a server over a pluggable transport, with request/response correlation,
// per-request timeouts, cooperative cancellation, and capability
// negotiation at handshake.
//
// The engine itself lives in the session package (the public facade),
// backed by internal/jsonrpc (wire codec), internal/pending (the pending
// request table), internal/timeout (deadlines), internal/progress
// (progress token routing), and internal/dispatch (the handler registry and
// message loop). The transport package and its inmemory/stdio/ws
// subpackages supply concrete duplex channels; handlerkit is an ergonomic
// layer for registering typed Go functions as handlers without hand-rolled
// JSON marshaling.
package sessioncore
