package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the JSON-RPC envelope version this codec speaks. It is
// distinct from mcp.LatestProtocolVersion, the application-level MCP handshake
// version negotiated in `initialize`.
const ProtocolVersion = "2.0"

// Message is the raw, already-framed bytes of one JSON-RPC message, as
// handed to and received from a Transport.
type Message []byte

// AnyMessage is the first-pass decode of an inbound frame: enough structure
// to classify it as a Request, Response, or Notification (§4.1) before the
// Dispatcher decides what to do with it.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (ID present) or notification (ID
// absent); the two share a wire shape and only differ in whether a reply is
// expected.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// IsNotification reports whether this Request carries no id and is
// therefore fire-and-forget.
func (r *Request) IsNotification() bool {
	return r == nil || r.ID == nil || r.ID.IsNil()
}

// Response represents a JSON-RPC response: exactly one of Result or Error is
// set.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// NewRequest builds an outbound request or notification; pass a nil id for
// a notification.
func NewRequest(id *RequestID, method string, params any) (*Request, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: marshal params for %q: %w", method, err)
		}
		raw = b
	}
	return &Request{JSONRPCVersion: ProtocolVersion, Method: method, Params: raw, ID: id}, nil
}

// NewResultResponse builds a successful JSON-RPC response object.
func NewResultResponse(id *RequestID, result any) (*Response, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal result: %w", err)
	}

	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *Response {
	return &Response{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// ParseDecodeError wraps a failure to decode a frame at all (malformed JSON,
// wrong jsonrpc version, or a shape that is neither request nor response).
// The Dispatcher surfaces it as ErrorCodeParseError per §4.1.
type ParseDecodeError struct {
	Cause error
}

func (e *ParseDecodeError) Error() string { return fmt.Sprintf("jsonrpc: parse error: %v", e.Cause) }
func (e *ParseDecodeError) Unwrap() error { return e.Cause }

// UnmarshalJSON implements json.Unmarshaler for AnyMessage. It enforces
// JSON-RPC 2.0 envelope rules (§4.1): the jsonrpc field must be "2.0"; a
// request message must not carry result/error; a response message must
// carry exactly one of result/error.
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type rawMessage struct {
		JSONRPCVersion string          `json:"jsonrpc"`
		Method         string          `json:"method,omitempty"`
		Params         json.RawMessage `json:"params,omitempty"`
		Result         json.RawMessage `json:"result,omitempty"`
		Error          *Error          `json:"error,omitempty"`
		ID             *RequestID      `json:"id,omitempty"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ParseDecodeError{Cause: err}
	}

	if raw.JSONRPCVersion != ProtocolVersion {
		return &ParseDecodeError{Cause: fmt.Errorf("expected jsonrpc %q, got %q", ProtocolVersion, raw.JSONRPCVersion)}
	}

	hasMethod := raw.Method != ""
	hasResult := len(raw.Result) > 0
	hasError := raw.Error != nil

	if hasMethod {
		if hasResult || hasError {
			return &ParseDecodeError{Cause: fmt.Errorf("request message carries result or error")}
		}
	} else {
		if hasResult && hasError {
			return &ParseDecodeError{Cause: fmt.Errorf("response message carries both result and error")}
		}
		if !hasResult && !hasError {
			return &ParseDecodeError{Cause: fmt.Errorf("response message carries neither result nor error")}
		}
	}

	m.JSONRPCVersion = raw.JSONRPCVersion
	m.Method = raw.Method
	m.Params = raw.Params
	m.Result = raw.Result
	m.Error = raw.Error
	m.ID = raw.ID

	return nil
}

// Type classifies the decoded message as "request", "notification", or
// "response".
func (m *AnyMessage) Type() string {
	if m.Method != "" {
		if m.ID == nil {
			return "notification"
		}
		return "request"
	}
	return "response"
}

// AsRequest returns the message as a Request (or notification) if it carries
// a method, otherwise nil.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}
	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the message as a Response if it carries no method,
// otherwise nil.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}
	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}
