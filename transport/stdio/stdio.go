// Package stdio implements a Transport over newline-delimited JSON frames
// on an io.Reader/io.Writer pair, completing what the teacher's stdio
// package left as an unimplemented stub (§4.11).
package stdio

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/mcprotocol/sessioncore/transport"
)

// Transport reads and writes one JSON-RPC frame per line. A single writer
// mutex serializes concurrent Send calls (§5, "any number of writers... the
// transport is expected to internally serialize writes").
type Transport struct {
	r *bufio.Reader
	w io.Writer

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	closer    io.Closer
}

// New wraps r/w as a Transport. If rw additionally implements io.Closer
// (as os.Stdin/os.Stdout combined via a pipe would not, but a net.Conn or
// os.File individually might), pass it as closer so Close releases the
// underlying resource; pass nil to make Close a no-op on the descriptors
// themselves.
func New(r io.Reader, w io.Writer, closer io.Closer) *Transport {
	return &Transport{
		r:      bufio.NewReader(r),
		w:      w,
		closed: make(chan struct{}),
		closer: closer,
	}
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-t.closed:
		return transport.ErrClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.w.Write(frame); err != nil {
		return &transport.IOError{Cause: err}
	}
	if _, err := t.w.Write([]byte("\n")); err != nil {
		return &transport.IOError{Cause: err}
	}
	return nil
}

// Recv blocks on the underlying reader; ctx cancellation does not interrupt
// an in-flight read (bufio.Reader has no cancellable read), matching the
// teacher's stdio handler, which is likewise a blocking line reader. Close
// unblocks a future Recv call once the current read (if any) returns.
func (t *Transport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-t.closed:
		return nil, transport.ErrClosed
	default:
	}

	line, err := t.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) == 0 {
			return nil, transport.ErrClosed
		}
		if err != io.EOF {
			return nil, &transport.IOError{Cause: err}
		}
	}

	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.closer != nil {
			err = t.closer.Close()
		}
	})
	return err
}

var _ transport.Transport = (*Transport)(nil)
