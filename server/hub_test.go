package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fightarena "github.com/arenabets/fightarena"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func testHub() *Hub {
	return NewHub(slog.Disabled, func() StateSnapshot {
		return StateSnapshot{Phase: fightarena.PhaseBetting, Cycle: 7}
	})
}

func TestHubSnapshotOnConnect(t *testing.T) {
	conn := dialHub(t, testHub())

	var ev fightarena.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, fightarena.EventCurrentState, ev.Type)

	raw, err := json.Marshal(ev.Payload)
	require.NoError(t, err)
	var snap StateSnapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, uint64(7), snap.Cycle)
	assert.Equal(t, fightarena.PhaseBetting, snap.Phase)
}

func TestHubBroadcast(t *testing.T) {
	hub := testHub()
	conn := dialHub(t, hub)

	var ev fightarena.Event
	require.NoError(t, conn.ReadJSON(&ev)) // snapshot

	// The hub counts the client once the snapshot round trip is done.
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 5*time.Millisecond)

	hub.Broadcast(fightarena.Event{
		Type:    fightarena.EventCountdownTick,
		Payload: fightarena.CountdownTick{Cycle: 7, SecondsRemaining: 10},
	})

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, fightarena.EventCountdownTick, ev.Type)
}

func TestHubChatRelay(t *testing.T) {
	hub := testHub()
	conn := dialHub(t, hub)

	var ev fightarena.Event
	require.NoError(t, conn.ReadJSON(&ev)) // snapshot

	require.NoError(t, conn.WriteJSON(fightarena.Event{
		Type:    fightarena.EventChatMessage,
		Payload: fightarena.ChatMessage{User: "viewer1", Message: "go ryu"},
	}))

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, fightarena.EventChatMessage, ev.Type)

	raw, err := json.Marshal(ev.Payload)
	require.NoError(t, err)
	var msg fightarena.ChatMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "viewer1", msg.User)
	assert.Equal(t, "go ryu", msg.Message)
	assert.False(t, msg.At.IsZero(), "relay stamps the time")
}

func TestHubIgnoresNonChatInput(t *testing.T) {
	hub := testHub()
	conn := dialHub(t, hub)

	var ev fightarena.Event
	require.NoError(t, conn.ReadJSON(&ev)) // snapshot

	// Clients cannot inject arena events.
	require.NoError(t, conn.WriteJSON(fightarena.Event{
		Type:    fightarena.EventPayoutSent,
		Payload: fightarena.PayoutSent{Amount: 9999},
	}))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	hub.Broadcast(fightarena.Event{Type: fightarena.EventCountdownTick})
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, fightarena.EventCountdownTick, ev.Type, "injected event was relayed")
}
