package pending

import (
	"errors"
	"testing"
	"time"

	"github.com/mcprotocol/sessioncore/internal/jsonrpc"
	"github.com/stretchr/testify/require"
)

func TestCompleteFulfillsTheWaiter(t *testing.T) {
	table := New()
	id := jsonrpc.NewRequestID(int64(1))
	entry := table.Insert(id, "tools/call")

	resp, err := jsonrpc.NewResultResponse(id, map[string]string{"ok": "yes"})
	require.NoError(t, err)

	require.True(t, table.Complete(resp))

	select {
	case <-entry.Done():
	case <-time.After(time.Second):
		t.Fatal("entry never resolved")
	}

	out := entry.Result()
	require.NoError(t, out.Err)
	require.Equal(t, resp, out.Response)
	require.Equal(t, 0, table.Len())
}

func TestCompleteUnknownIDReportsFalse(t *testing.T) {
	table := New()
	resp, err := jsonrpc.NewResultResponse(jsonrpc.NewRequestID(int64(99)), nil)
	require.NoError(t, err)
	require.False(t, table.Complete(resp))
}

func TestCancelFulfillsWithError(t *testing.T) {
	table := New()
	id := jsonrpc.NewRequestID(int64(2))
	entry := table.Insert(id, "ping")

	sentinel := errors.New("boom")
	_, ok := table.Cancel(id.String(), sentinel)
	require.True(t, ok)

	out := entry.Result()
	require.ErrorIs(t, out.Err, sentinel)
}

func TestFailAllResolvesEveryEntry(t *testing.T) {
	table := New()
	var entries []*Entry
	for i := 0; i < 5; i++ {
		id := jsonrpc.NewRequestID(int64(i))
		entries = append(entries, table.Insert(id, "tools/call"))
	}

	sentinel := errors.New("connection closed")
	table.FailAll(sentinel)

	require.Equal(t, 0, table.Len())
	for _, e := range entries {
		require.ErrorIs(t, e.Result().Err, sentinel)
	}
}

func TestCompleteIsIdempotentPerEntry(t *testing.T) {
	table := New()
	id := jsonrpc.NewRequestID(int64(3))
	entry := table.Insert(id, "ping")

	resp, _ := jsonrpc.NewResultResponse(id, nil)
	require.True(t, table.Complete(resp))

	// A second completion for the same id is impossible once removed from
	// the table (Complete returns false), but Cancel racing on an
	// already-completed, already-removed entry must not panic or
	// overwrite the first outcome.
	_, ok := table.Cancel(id.String(), errors.New("late cancel"))
	require.False(t, ok)
	require.Nil(t, entry.Result().Err)
}
