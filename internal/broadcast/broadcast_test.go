package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangpro267200/omen/internal/domain"
)

func TestHub_BroadcastLocalDeliversToSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register("signals", conn)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer clientConn.Close()

	// Give the server goroutine a moment to register the connection.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount("signals") == 1
	}, time.Second, 10*time.Millisecond)

	sent := hub.BroadcastLocal("signals", []byte(`{"event_type":"signal_emitted"}`))
	assert.Equal(t, 1, sent)

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event_type":"signal_emitted"}`, string(data))
}

func TestBroadcaster_LocalOnlyWhenRedisNotConfigured(t *testing.T) {
	b := New(Config{}, zerolog.Nop())
	defer b.Close()

	assert.Nil(t, b.redis)
	assert.NotNil(t, b.Hub())
}

func TestBroadcaster_NotifyEmitReachesLocalSubscriber(t *testing.T) {
	b := New(Config{}, zerolog.Nop())
	defer b.Close()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		b.Hub().Register(SignalsChannel, conn)
	}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer clientConn.Close()

	require.Eventually(t, func() bool {
		return b.Hub().SubscriberCount(SignalsChannel) == 1
	}, time.Second, 10*time.Millisecond)

	signal := domain.OmenSignal{SignalID: "s1", Title: "Red Sea disruption", Category: domain.CategoryGeopolitical}
	b.NotifyEmit(context.Background(), signal, domain.EmitDelivered)

	clientConn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "signal_emitted", msg.EventType)
	assert.Equal(t, "s1", msg.SignalID)
	assert.Equal(t, "DELIVERED", msg.Status)
}
