// Package pending implements the Pending Request Table: the correlation
// point between outbound request IDs and the goroutines awaiting their
// responses.
package pending

import (
	"sync"

	"github.com/mcprotocol/sessioncore/internal/jsonrpc"
)

// Outcome is what a Pending Entry resolves with: either a raw result or an
// error describing why no result is forthcoming.
type Outcome struct {
	Response *jsonrpc.Response
	Err      error
}

// Entry is bookkeeping for one outbound request awaiting its response.
type Entry struct {
	ID     *jsonrpc.RequestID
	Method string

	// done is closed exactly once, by whichever of complete/cancel/failAll
	// gets there first; the result is left in Outcome beforehand.
	done    chan struct{}
	once    sync.Once
	Outcome Outcome
}

// Done returns a channel closed once the entry resolves, for use in a
// select alongside a deadline timer and the caller's own context.
func (e *Entry) Done() <-chan struct{} { return e.done }

// Result returns the entry's outcome. Only meaningful after Done() has
// been observed to close.
func (e *Entry) Result() Outcome { return e.Outcome }

func (e *Entry) resolve(o Outcome) {
	e.once.Do(func() {
		e.Outcome = o
		close(e.done)
	})
}

// Table is a mapping from request ID (by string key) to Pending Entry. It is
// safe for concurrent use by the Session's writer goroutines and the
// Dispatcher's reader goroutine.
type Table struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Insert registers an entry before its request is written to the transport,
// so a fast-arriving response can never be missed.
func (t *Table) Insert(id *jsonrpc.RequestID, method string) *Entry {
	e := &Entry{ID: id, Method: method, done: make(chan struct{})}

	t.mu.Lock()
	t.entries[id.String()] = e
	t.mu.Unlock()

	return e
}

// Lookup returns the entry for key, if any, without removing or resolving
// it. Progress notifications are routed by the progress registry, not
// through this table.
func (t *Table) Lookup(key string) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e, ok
}

// Complete removes the entry for resp's ID and fulfills its caller with the
// response. Reports false if no such entry exists (unknown or already-
// resolved ID; the caller should log and drop).
func (t *Table) Complete(resp *jsonrpc.Response) bool {
	key := resp.ID.String()

	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	e.resolve(Outcome{Response: resp})
	return true
}

// Cancel removes the entry for key, if present, and fulfills it with err
// (Cancelled or RequestTimeout). Returns the removed entry and true only
// when this call removed it, so the caller emits notifications/cancelled at
// most once.
func (t *Table) Cancel(key string, err error) (*Entry, bool) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()

	if !ok {
		return nil, false
	}

	e.resolve(Outcome{Err: err})
	return e, true
}

// FailAll resolves every still-pending entry with err and empties the table.
// Called once, on session close.
func (t *Table) FailAll(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*Entry)
	t.mu.Unlock()

	for _, e := range entries {
		e.resolve(Outcome{Err: err})
	}
}

// Len reports the number of entries currently pending. Intended for tests
// and diagnostics, not for control flow.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
