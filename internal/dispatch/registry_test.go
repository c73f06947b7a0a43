package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcprotocol/sessioncore/mcp"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, _ *HandlerContext, params json.RawMessage) (json.RawMessage, error) {
	return params, nil
}

func TestSpecificHandlerWinsOverFallback(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterRequest(mcp.PingMethod, echoHandler))
	require.NoError(t, r.SetFallbackRequest(func(context.Context, *HandlerContext, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"fallback"`), nil
	}))

	h, ok := r.lookupRequest(mcp.PingMethod)
	require.True(t, ok)
	out, err := h(context.Background(), nil, json.RawMessage(`"specific"`))
	require.NoError(t, err)
	require.JSONEq(t, `"specific"`, string(out))
}

func TestFallbackUsedWhenNoSpecificHandler(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetFallbackRequest(func(context.Context, *HandlerContext, json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"fallback"`), nil
	}))

	h, ok := r.lookupRequest(mcp.ToolsListMethod)
	require.True(t, ok)
	out, err := h(context.Background(), nil, nil)
	require.NoError(t, err)
	require.JSONEq(t, `"fallback"`, string(out))
}

func TestMethodNotFoundWithoutFallback(t *testing.T) {
	r := NewRegistry()
	_, ok := r.lookupRequest(mcp.ToolsListMethod)
	require.False(t, ok)
}

func TestFreezeRejectsFurtherRegistration(t *testing.T) {
	r := NewRegistry()
	r.Freeze()

	err := r.RegisterRequest(mcp.PingMethod, echoHandler)
	require.ErrorIs(t, err, ErrFrozen)
}

func TestHasRequestHandlerIgnoresFallback(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.SetFallbackRequest(echoHandler))
	require.False(t, r.HasRequestHandler(mcp.ToolsListMethod), "fallback must not count as a specific handler for capability inference")

	require.NoError(t, r.RegisterRequest(mcp.ToolsListMethod, echoHandler))
	require.True(t, r.HasRequestHandler(mcp.ToolsListMethod))
}
