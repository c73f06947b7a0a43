// Package jsonrpc implements the wire codec for JSON-RPC 2.0 messages used by
// the Session Core: request/response/notification framing, numeric error
// codes, and an ID type that round-trips both integer and string
// identifiers exactly as the peer sent them.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// RequestID represents a JSON-RPC id, which the spec allows to be either a
// string or a number. The peer must see back exactly the type it sent, so
// this type preserves the original Go value rather than normalizing to a
// single representation.
type RequestID struct {
	value any
}

// NewRequestID wraps a string or numeric value as a RequestID. Any other
// type yields a nil-valued RequestID; callers that generate their own IDs
// should prefer NewRequestID(int64) to stay inside the 64-bit counter space
// the Pending Request Table assumes.
func NewRequestID(value any) *RequestID {
	switch v := value.(type) {
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return &RequestID{value: v}
	default:
		return &RequestID{value: nil}
	}
}

// String renders the ID as a correlation key. It is used as the map key in
// the Pending Request Table and the Dispatcher's in-flight request table,
// and as the requestId of notifications/cancelled: two IDs that look
// "the same" on the wire (e.g. 1 vs "1") would collide here, but since one
// side only ever emits one representation for a given counter, this is safe
// in practice.
func (id *RequestID) String() string {
	if id == nil || id.value == nil {
		return ""
	}

	switch v := id.value.(type) {
	case string:
		return v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", v)
	default:
		panic("jsonrpc: RequestID holds an unsupported type")
	}
}

// Value returns the underlying string or numeric value.
func (id *RequestID) Value() any {
	if id == nil {
		return nil
	}
	return id.value
}

// IsNil reports whether the ID carries no value, which for a Response means
// "no correlatable request" (e.g. a parse-error response to a frame that
// could not be decoded far enough to recover an id).
func (id *RequestID) IsNil() bool {
	return id == nil || id.value == nil
}

// MarshalJSON implements json.Marshaler.
func (id *RequestID) MarshalJSON() ([]byte, error) {
	if id == nil || id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a JSON number
// or a JSON string per the JSON-RPC 2.0 spec.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		if i, err := num.Int64(); err == nil {
			id.value = i
		} else if f, err := num.Float64(); err == nil {
			id.value = f
		} else {
			return fmt.Errorf("jsonrpc: id %q is not a representable number", num.String())
		}
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		id.value = str
		return nil
	}

	return fmt.Errorf("jsonrpc: id must be a string or number, got: %s", string(data))
}
