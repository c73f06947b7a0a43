package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mcprotocol/sessioncore/capability"
	"github.com/mcprotocol/sessioncore/handlerkit"
	"github.com/mcprotocol/sessioncore/mcp"
	"github.com/mcprotocol/sessioncore/session"
	"github.com/mcprotocol/sessioncore/transport/inmemory"
	"github.com/stretchr/testify/require"
)

// connectPair wires a freshly built client and server over an in-memory
// pipe and blocks until both report Initialized.
func connectPair(t *testing.T, client, server *session.Session) {
	t.Helper()

	clientPipe, serverPipe := inmemory.NewPair()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)

	go func() {
		defer wg.Done()
		errs <- server.Accept(context.Background(), serverPipe)
	}()
	go func() {
		defer wg.Done()
		errs <- client.Connect(context.Background(), clientPipe)
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = client.Disconnect()
		_ = server.Disconnect()
	})
}

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

// TestRoundTripToolCall is seed scenario 1.
func TestRoundTripToolCall(t *testing.T) {
	server := session.NewServer(session.WithImplementationInfo("test-server", "0.1.0"))
	require.NoError(t, server.RegisterRequestHandler(mcp.ToolsListMethod,
		handlerkit.Request(func(_ context.Context, _ *session.HandlerContext, _ mcp.ListToolsRequest) (mcp.ListToolsResult, error) {
			return mcp.ListToolsResult{Tools: []mcp.Tool{{Name: "add", Description: "adds two integers"}}}, nil
		})))
	require.NoError(t, server.RegisterRequestHandler(mcp.ToolsCallMethod,
		handlerkit.Request(func(_ context.Context, _ *session.HandlerContext, req mcp.CallToolRequestReceived) (mcp.CallToolResult, error) {
			if req.Name != "add" {
				return mcp.CallToolResult{}, fmt.Errorf("unknown tool %q", req.Name)
			}
			var args addArgs
			if err := json.Unmarshal(req.Arguments, &args); err != nil {
				return mcp.CallToolResult{}, err
			}
			sum := args.A + args.B
			return mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: strconv.Itoa(sum)}}}, nil
		})))

	client := session.NewClient(session.WithImplementationInfo("test-client", "0.1.0"))
	connectPair(t, client, server)

	listRaw, err := client.Send(context.Background(), string(mcp.ToolsListMethod), mcp.ListToolsRequest{})
	require.NoError(t, err)
	var list mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(listRaw, &list))
	require.Len(t, list.Tools, 1)
	require.Equal(t, "add", list.Tools[0].Name)

	args, _ := json.Marshal(addArgs{A: 1, B: 2})
	callRaw, err := client.Send(context.Background(), string(mcp.ToolsCallMethod), mcp.CallToolRequestReceived{Name: "add", Arguments: args})
	require.NoError(t, err)
	var result mcp.CallToolResult
	require.NoError(t, json.Unmarshal(callRaw, &result))
	require.Len(t, result.Content, 1)
	require.Equal(t, "3", result.Content[0].Text)
}

// capturingHandler is a minimal slog.Handler that records each record's
// message so tests can assert on which warnings were emitted.
type capturingHandler struct {
	mu       *sync.Mutex
	messages *[]string
}

func newCapturingHandler() (slog.Handler, *[]string) {
	var messages []string
	return capturingHandler{mu: &sync.Mutex{}, messages: &messages}, &messages
}

func (h capturingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.messages = append(*h.messages, r.Message)
	return nil
}
func (h capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h capturingHandler) WithGroup(string) slog.Handler      { return h }

// TestCapabilityOverrideLogsUnfulfilledAdvertisement covers §4.9's warning
// for a capability advertised with no matching handler registered.
func TestCapabilityOverrideLogsUnfulfilledAdvertisement(t *testing.T) {
	handler, messages := newCapturingHandler()

	server := session.NewServer(
		session.WithLogger(slog.New(handler)),
		session.WithServerCapabilities(capability.Server{Logging: boolPtrForTest(true)}),
	)
	client := session.NewClient()
	connectPair(t, client, server)

	require.Eventually(t, func() bool {
		for _, m := range *messages {
			if m == "session.capability.unfulfilled_advertisement" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func boolPtrForTest(b bool) *bool { return &b }

// TestPing is seed scenario 2.
func TestPing(t *testing.T) {
	server := session.NewServer()
	client := session.NewClient()
	connectPair(t, client, server)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	raw, err := client.Send(ctx, string(mcp.PingMethod), mcp.PingRequest{})
	require.NoError(t, err)

	var result mcp.EmptyResult
	require.NoError(t, json.Unmarshal(raw, &result))
}

// TestTimeoutEmitsCancellation is seed scenario 3, scaled down by 10x to
// keep the suite fast while preserving the timeout << handler-duration
// ratio.
func TestTimeoutEmitsCancellation(t *testing.T) {
	handlerCancelled := make(chan struct{}, 1)

	server := session.NewServer()
	require.NoError(t, server.RegisterRequestHandler(mcp.Method("test/slow"),
		func(ctx context.Context, hc *session.HandlerContext, _ json.RawMessage) (json.RawMessage, error) {
			select {
			case <-hc.Context().Done():
				handlerCancelled <- struct{}{}
			case <-time.After(time.Second):
			}
			return json.RawMessage(`{}`), nil
		}))

	client := session.NewClient()
	connectPair(t, client, server)

	start := time.Now()
	_, err := client.Send(context.Background(), "test/slow", nil, session.WithTimeout(20*time.Millisecond))
	elapsed := time.Since(start)

	var timeoutErr *session.RequestTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.GreaterOrEqual(t, elapsed, 20*time.Millisecond)

	select {
	case <-handlerCancelled:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("server handler did not observe cancellation after client timeout")
	}
}

// TestProgressResetsDeadline is seed scenario 4.
func TestProgressResetsDeadline(t *testing.T) {
	server := session.NewServer()
	require.NoError(t, server.RegisterRequestHandler(mcp.Method("test/progress"),
		func(ctx context.Context, hc *session.HandlerContext, _ json.RawMessage) (json.RawMessage, error) {
			for i := 1; i <= 5; i++ {
				time.Sleep(10 * time.Millisecond)
				_ = hc.ReportProgress(float64(i), 5, fmt.Sprintf("step %d", i))
			}
			time.Sleep(10 * time.Millisecond)
			return json.RawMessage(`{}`), nil
		}))

	client := session.NewClient()
	connectPair(t, client, server)

	var progressCount int
	_, err := client.Send(context.Background(), "test/progress", nil,
		session.WithTimeout(20*time.Millisecond),
		session.WithResetOnProgress(),
		session.WithProgress(func(value, total float64, _ string) { progressCount++ }),
	)
	require.NoError(t, err)
	require.Greater(t, progressCount, 0)
}

// TestHardCeilingFiresDespiteProgress is seed scenario 5.
func TestHardCeilingFiresDespiteProgress(t *testing.T) {
	server := session.NewServer()
	require.NoError(t, server.RegisterRequestHandler(mcp.Method("test/progress"),
		func(ctx context.Context, hc *session.HandlerContext, _ json.RawMessage) (json.RawMessage, error) {
			for i := 1; i <= 10; i++ {
				select {
				case <-hc.Context().Done():
					return nil, hc.Context().Err()
				case <-time.After(10 * time.Millisecond):
				}
				_ = hc.ReportProgress(float64(i), 10, "")
			}
			return json.RawMessage(`{}`), nil
		}))

	client := session.NewClient()
	connectPair(t, client, server)

	start := time.Now()
	_, err := client.Send(context.Background(), "test/progress", nil,
		session.WithTimeout(15*time.Millisecond),
		session.WithResetOnProgress(),
		session.WithMaxTotal(30*time.Millisecond),
		session.WithProgress(func(float64, float64, string) {}),
	)
	elapsed := time.Since(start)

	var timeoutErr *session.RequestTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.True(t, timeoutErr.Hard)
	require.InDelta(t, 30*time.Millisecond, elapsed, float64(40*time.Millisecond))
}

// TestFallbackNotificationHandler is seed scenario 6.
func TestFallbackNotificationHandler(t *testing.T) {
	server := session.NewServer()
	client := session.NewClient()

	var mu sync.Mutex
	var fallbackMethods []string
	require.NoError(t, client.SetFallbackNotificationHandler(func(_ context.Context, _ json.RawMessage) error {
		mu.Lock()
		fallbackMethods = append(fallbackMethods, string(mcp.ToolsListChangedNotificationMethod))
		mu.Unlock()
		return nil
	}))

	connectPair(t, client, server)

	require.NoError(t, server.Notify(string(mcp.ToolsListChangedNotificationMethod), mcp.ToolListChangedNotification{}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fallbackMethods) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestSpecificHandlerPreemptsFallback completes seed scenario 6: once a
// specific handler is registered for a method, the fallback no longer fires
// for it. The specific handler must be registered before Connect, since the
// handler registry freezes as soon as Connect/Accept begins.
func TestSpecificHandlerPreemptsFallback(t *testing.T) {
	server := session.NewServer()
	client := session.NewClient()

	var mu sync.Mutex
	var fallbackCount, specificCount int
	require.NoError(t, client.SetFallbackNotificationHandler(func(_ context.Context, _ json.RawMessage) error {
		mu.Lock()
		fallbackCount++
		mu.Unlock()
		return nil
	}))
	require.NoError(t, client.RegisterNotificationHandler(mcp.ToolsListChangedNotificationMethod,
		func(_ context.Context, _ json.RawMessage) error {
			mu.Lock()
			specificCount++
			mu.Unlock()
			return nil
		}))

	connectPair(t, client, server)

	require.NoError(t, server.Notify(string(mcp.ToolsListChangedNotificationMethod), mcp.ToolListChangedNotification{}))
	require.NoError(t, server.Notify(string(mcp.PromptsListChangedNotificationMethod), mcp.PromptListChangedNotification{}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return specificCount == 1 && fallbackCount == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, specificCount, "specific handler must fire for its registered method")
	require.Equal(t, 1, fallbackCount, "fallback must fire only for the method with no specific handler")
}
