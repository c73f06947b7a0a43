package capability

import (
	"testing"

	"github.com/mcprotocol/sessioncore/mcp"
	"github.com/stretchr/testify/require"
)

type fakeHandlerSet struct {
	requests      map[mcp.Method]bool
	notifications map[mcp.Method]bool
}

func (f fakeHandlerSet) HasRequestHandler(method mcp.Method) bool      { return f.requests[method] }
func (f fakeHandlerSet) HasNotificationHandler(method mcp.Method) bool { return f.notifications[method] }

func TestInferServerToolsListChangedReflectsNotificationHandler(t *testing.T) {
	withoutListChanged := fakeHandlerSet{requests: map[mcp.Method]bool{mcp.ToolsListMethod: true}}
	s := InferServer(withoutListChanged)
	require.NotNil(t, s.Tools)
	require.False(t, s.Tools.ListChanged, "no notifications/tools/list_changed handler is registered")

	withListChanged := fakeHandlerSet{
		requests:      map[mcp.Method]bool{mcp.ToolsListMethod: true},
		notifications: map[mcp.Method]bool{mcp.ToolsListChangedNotificationMethod: true},
	}
	s = InferServer(withListChanged)
	require.NotNil(t, s.Tools)
	require.True(t, s.Tools.ListChanged)
}

func TestInferServerNoHandlersMeansNoCapabilities(t *testing.T) {
	s := InferServer(fakeHandlerSet{})
	require.Nil(t, s.Tools)
	require.Nil(t, s.Prompts)
	require.Nil(t, s.Resources)
	require.Nil(t, s.Logging)
	require.Nil(t, s.Completions)
}

func TestMergeServerOverrideCanClearAnInferredFlag(t *testing.T) {
	inferred := Server{Logging: boolPtr(true), Completions: boolPtr(true)}
	override := Server{Logging: boolPtr(false)}

	out := MergeServer(inferred, override)
	require.NotNil(t, out.Logging)
	require.False(t, *out.Logging, "an explicit false override must win over an inferred true")
	require.NotNil(t, out.Completions)
	require.True(t, *out.Completions, "untouched fields keep the inferred value")
}

func TestMergeServerNilOverrideLeavesInferredUntouched(t *testing.T) {
	inferred := Server{Logging: boolPtr(true)}
	out := MergeServer(inferred, Server{})
	require.NotNil(t, out.Logging)
	require.True(t, *out.Logging)
}

func TestMergeClientOverrideCanClearAnInferredFlag(t *testing.T) {
	inferred := Client{Sampling: boolPtr(true), Elicitation: boolPtr(true)}
	override := Client{Elicitation: boolPtr(false)}

	out := MergeClient(inferred, override)
	require.True(t, *out.Sampling)
	require.NotNil(t, out.Elicitation)
	require.False(t, *out.Elicitation)
}

func TestServerToWireOmitsNilAndFalseFlags(t *testing.T) {
	s := Server{Logging: boolPtr(false)}
	w := s.ToWire()
	require.Nil(t, w.Logging, "an explicit false override must not appear on the wire")
	require.Nil(t, w.Completions)
}

func TestServerToWireIncludesExplicitTrueFlags(t *testing.T) {
	s := Server{Logging: boolPtr(true)}
	w := s.ToWire()
	require.NotNil(t, w.Logging)
}

func TestDiffServerReportsUnfulfilledAdvertisement(t *testing.T) {
	inferred := Server{}
	merged := Server{Logging: boolPtr(true)}

	unfulfilled, unadvertised := DiffServer(inferred, merged)
	require.Equal(t, []string{"logging"}, unfulfilled)
	require.Empty(t, unadvertised)
}

func TestDiffServerReportsUnadvertisedHandler(t *testing.T) {
	inferred := Server{Tools: &ListChanged{Enabled: true}}
	merged := Server{}

	unfulfilled, unadvertised := DiffServer(inferred, merged)
	require.Empty(t, unfulfilled)
	require.Equal(t, []string{"tools"}, unadvertised)
}

func TestDiffServerSilentWhenMergedMatchesInferred(t *testing.T) {
	inferred := Server{Tools: &ListChanged{Enabled: true}, Logging: boolPtr(true)}
	merged := MergeServer(inferred, Server{})

	unfulfilled, unadvertised := DiffServer(inferred, merged)
	require.Empty(t, unfulfilled)
	require.Empty(t, unadvertised)
}

func TestDiffClientReportsUnfulfilledAdvertisement(t *testing.T) {
	inferred := Client{}
	merged := Client{Sampling: boolPtr(true)}

	unfulfilled, unadvertised := DiffClient(inferred, merged)
	require.Equal(t, []string{"sampling"}, unfulfilled)
	require.Empty(t, unadvertised)
}

func TestDiffClientReportsUnadvertisedHandler(t *testing.T) {
	inferred := Client{Roots: &ListChanged{Enabled: true}}
	merged := Client{}

	unfulfilled, unadvertised := DiffClient(inferred, merged)
	require.Empty(t, unfulfilled)
	require.Equal(t, []string{"roots"}, unadvertised)
}
