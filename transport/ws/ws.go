// Package ws implements a Transport over a raw WebSocket connection using
// nhooyr.io/websocket, one text message per frame. It does not implement
// HTTP+SSE request/response framing, chunked event streams, or resumability
// tokens — the excluded non-goal; it is a bare duplex frame channel,
// structurally identical to a stdio pipe (§4.11).
package ws

import (
	"context"

	"github.com/mcprotocol/sessioncore/transport"
	"nhooyr.io/websocket"
)

// Transport adapts a *websocket.Conn to the Transport interface.
type Transport struct {
	conn *websocket.Conn
}

// New wraps an already-established WebSocket connection.
func New(conn *websocket.Conn) *Transport {
	return &Transport{conn: conn}
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		if isCloseError(err) {
			return transport.ErrClosed
		}
		return &transport.IOError{Cause: err}
	}
	return nil
}

func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		if isCloseError(err) {
			return nil, transport.ErrClosed
		}
		return nil, &transport.IOError{Cause: err}
	}
	return data, nil
}

func (t *Transport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "session closed")
}

func isCloseError(err error) bool {
	return websocket.CloseStatus(err) != -1 || err == context.Canceled
}

var _ transport.Transport = (*Transport)(nil)
