// Package integration exercises the assembled relay: a real HTTP server,
// real WebSocket connections, and the full persist, claim, and broadcast
// path per message.
package integration

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/imjasonh/webpush"
	"github.com/imjasonh/webpush/keys"
	"github.com/stretchr/testify/require"

	"pushchat/internal/push"
	"pushchat/internal/server"
	"pushchat/internal/store"
	"pushchat/internal/subs"
)

// registerWait gives the hub loop time to process a new registration before
// the test broadcasts to it.
const registerWait = 200 * time.Millisecond

func testVAPIDKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func startRelay(t *testing.T, mem *store.Memory) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	signer, err := keys.NewFileSignerFromBase64(testVAPIDKey(t))
	require.NoError(t, err)

	registry := subs.NewRegistry()
	dispatcher := push.NewDispatcher(webpush.NewClient(signer, "mailto:admin@example.com"), registry, log, time.Second)
	coordinator := push.NewCoordinator(mem)

	hub := server.NewHub(log)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })

	opts := server.Options{
		AllowedOrigins:  []string{"*"},
		MaxMessageSize:  512,
		HistoryLimit:    100,
		RateLimitBurst:  100,
		RateLimitRefill: time.Second,
	}

	engine := server.NewEngine(mem, coordinator, dispatcher, hub, log, opts.HistoryLimit, time.Second)
	handlers := server.NewHandlers(hub, engine, registry, signer.PublicKeyBase64(), opts, log)

	ts := httptest.NewServer(handlers.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(frame)
}

func expectNoFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, frame, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %q", frame)
	}
	netErr, ok := err.(net.Error)
	require.True(t, ok && netErr.Timeout(), "unexpected read error: %v", err)
}

func TestMessageReachesEveryClientAndIsPersisted(t *testing.T) {
	mem := store.NewMemory()
	ts := startRelay(t, mem)

	alice := dialWS(t, ts)
	bob := dialWS(t, ts)
	time.Sleep(registerWait)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("alice|hi")))

	require.Equal(t, "<b>alice</b>: hi", readFrame(t, alice, 2*time.Second))
	require.Equal(t, "<b>alice</b>: hi", readFrame(t, bob, 2*time.Second))

	messages, err := mem.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "alice", messages[0].Author)
	require.Equal(t, "hi", messages[0].Content)

	// The broadcast path claims the notification flag even with no
	// subscribers registered.
	notified, err := mem.Notified(context.Background(), messages[0].ID)
	require.NoError(t, err)
	require.True(t, notified)
}

func TestNewClientReceivesHistoryOldestFirst(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	for _, content := range []string{"one", "two", "three"} {
		_, err := mem.Append(ctx, "alice", content)
		require.NoError(t, err)
	}

	ts := startRelay(t, mem)
	conn := dialWS(t, ts)

	require.Equal(t, "HISTORY:<b>alice</b>: one", readFrame(t, conn, 2*time.Second))
	require.Equal(t, "HISTORY:<b>alice</b>: two", readFrame(t, conn, 2*time.Second))
	require.Equal(t, "HISTORY:<b>alice</b>: three", readFrame(t, conn, 2*time.Second))
	expectNoFrame(t, conn, 300*time.Millisecond)
}

func TestMalformedFrameIsDroppedSilently(t *testing.T) {
	mem := store.NewMemory()
	ts := startRelay(t, mem)

	alice := dialWS(t, ts)
	bob := dialWS(t, ts)
	time.Sleep(registerWait)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("no separator here")))
	expectNoFrame(t, bob, 300*time.Millisecond)

	messages, err := mem.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, messages)

	// The connection survives the bad frame.
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("alice|still here")))
	require.Equal(t, "<b>alice</b>: still here", readFrame(t, bob, 2*time.Second))
}
