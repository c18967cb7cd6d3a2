package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kepler-sentinel-go/internal/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func alertEvent(seq uint64) models.Event {
	return models.Event{
		Sequence: seq,
		Type:     models.EventTypeAlert,
		Alert:    &models.Alert{ID: "a-1", ZoneID: "gate", Kind: models.AlertKindZoneEntry},
	}
}

func TestHubBroadcastsEvents(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv, "")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Deliver(context.Background(), alertEvent(7)))

	msg := readMessage(t, conn)
	assert.Equal(t, "alert", msg["type"])
	data, ok := msg["data"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 7, data["sequence"])
	alert, ok := data["alert"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "gate", alert["zone_id"])
}

func TestHubTypeFilter(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv, "?types=state_snapshot")

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Deliver(context.Background(), alertEvent(1)))
	require.NoError(t, hub.Deliver(context.Background(), models.Event{
		Sequence: 2,
		Type:     models.EventTypeSnapshot,
		Snapshot: &models.StateSnapshot{FrameCount: 42},
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "state_snapshot", msg["type"], "alert must be filtered out")
}

func TestHubPingPong(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypePing}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePong, msg["type"])
}

func TestHubUnregistersOnClose(t *testing.T) {
	t.Parallel()

	hub, srv := startHub(t)
	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHubDeliverWithoutServe(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	for i := 0; i < cap(hub.broadcast); i++ {
		require.NoError(t, hub.Deliver(context.Background(), alertEvent(uint64(i))))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, hub.Deliver(ctx, alertEvent(999)), context.Canceled)
}

func TestHubServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.Equal(t, "websocket", hub.Name())
	assert.Equal(t, "websocket-hub", hub.String())
}
