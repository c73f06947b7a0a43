// Package inmemory implements an unbuffered in-process Transport pair,
// grounded on the teacher's internal/outbound.Transport contract but
// realized as a plain channel pair rather than a network socket — the
// concrete realization §4.11 calls for tests and same-process wiring.
package inmemory

import (
	"context"
	"sync"

	"github.com/mcprotocol/sessioncore/transport"
)

// closeState is shared by both ends of a pair so that closing either one
// closes both exactly once, without risking a double-close panic on the
// shared channel.
type closeState struct {
	once   sync.Once
	closed chan struct{}
}

// Pipe is one end of an in-memory transport pair.
type Pipe struct {
	out   chan []byte
	in    chan []byte
	state *closeState
}

// NewPair returns two Pipes wired to each other: frames sent on a arrive on
// b's Recv, and vice versa. Closing either end closes both.
func NewPair() (a, b *Pipe) {
	ab := make(chan []byte)
	ba := make(chan []byte)
	state := &closeState{closed: make(chan struct{})}

	a = &Pipe{out: ab, in: ba, state: state}
	b = &Pipe{out: ba, in: ab, state: state}
	return a, b
}

func (p *Pipe) Send(ctx context.Context, frame []byte) error {
	select {
	case p.out <- frame:
		return nil
	case <-p.state.closed:
		return transport.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipe) Recv(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.state.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Pipe) Close() error {
	p.state.once.Do(func() { close(p.state.closed) })
	return nil
}

var _ transport.Transport = (*Pipe)(nil)
