package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func httpHandler(h *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWebSocket)
	return mux
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_EmptySubscription(t *testing.T) {
	client := &Client{}
	if !shouldSend(client, &Event{Type: "plan_added", SessionID: "s1"}) {
		t.Error("Empty subscription should receive everything")
	}
}

func TestShouldSend_SessionFilter(t *testing.T) {
	client := &Client{sub: Subscription{SessionID: "s1"}}

	if !shouldSend(client, &Event{Type: "plan_added", SessionID: "s1"}) {
		t.Error("Should receive events of own session")
	}
	if shouldSend(client, &Event{Type: "plan_added", SessionID: "s2"}) {
		t.Error("Should not receive events of other sessions")
	}
	if !shouldSend(client, &Event{Type: EventCatalogReloaded}) {
		t.Error("Global events reach every session")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	client := &Client{sub: Subscription{EventTypes: []string{"output_generated"}}}

	assert.True(t, shouldSend(client, &Event{Type: "output_generated"}))
	assert.False(t, shouldSend(client, &Event{Type: "tariff_added"}))
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_Stats_Initial(t *testing.T) {
	stats := testHub().Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("Expected 0 connected clients, got %v", stats["connectedClients"])
	}
	if stats["totalEvents"].(int64) != 0 {
		t.Errorf("Expected 0 total events, got %v", stats["totalEvents"])
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := runHub(t)
	client := &Client{hub: h, send: make(chan []byte, 8)}

	h.register <- client
	require.Eventually(t, func() bool { return h.Stats()["connectedClients"].(int) == 1 }, time.Second, 5*time.Millisecond)

	h.unregister <- client
	require.Eventually(t, func() bool { return h.Stats()["connectedClients"].(int) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), h.Stats()["peakClients"].(int64))
}

func TestHub_EmitEditorEvent(t *testing.T) {
	h := runHub(t)
	mine := &Client{hub: h, send: make(chan []byte, 8), sub: Subscription{SessionID: "s1"}}
	other := &Client{hub: h, send: make(chan []byte, 8), sub: Subscription{SessionID: "s2"}}
	h.register <- mine
	h.register <- other

	h.EmitEditorEvent("s1", "tariff_added", map[string]interface{}{"tariffKey": "trf_1"})

	select {
	case msg := <-mine.send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, "tariff_added", ev.Type)
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, "trf_1", ev.Data["tariffKey"])
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
	}

	h.EmitCatalogReloaded(2)
	select {
	case msg := <-other.send:
		assert.Contains(t, string(msg), EventCatalogReloaded)
	case <-time.After(time.Second):
		t.Fatal("Global event should reach other sessions")
	}
	assert.Empty(t, other.send, "other session must not see s1 events")
}

func TestHub_ContextCancellation(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Hub did not stop after context cancellation")
	}
}

func TestHub_WebSocketSessionQuery(t *testing.T) {
	h := runHub(t)
	srv := httptest.NewServer(httpHandler(h))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=s1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Stats()["connectedClients"].(int) == 1 }, time.Second, 5*time.Millisecond)

	h.EmitEditorEvent("s2", "plan_added", nil)
	h.EmitEditorEvent("s1", "plan_removed", nil)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"type":"plan_removed"`)
}
