package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, hub *Hub, userID uint, staff bool) *websocket.Conn {
	t.Helper()
	before := hub.ClientCount()
	manager := NewManager(hub)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, userID, staff, manager.HandleMessage)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() > before }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &event))
	return event
}

func TestHub_NotifyUser(t *testing.T) {
	hub := NewHub()
	conn := startServer(t, hub, 42, false)

	hub.NotifyUser(42, ORDER_STATUS, map[string]interface{}{"orderId": 7, "status": "Prepared"})
	hub.NotifyUser(99, ORDER_STATUS, map[string]interface{}{"orderId": 8})

	event := readEvent(t, conn)
	assert.Equal(t, ORDER_STATUS, event["type"])
	data := event["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["orderId"])
	assert.Equal(t, "Prepared", data["status"])
}

func TestHub_NotifyStaff(t *testing.T) {
	hub := NewHub()
	student := startServer(t, hub, 42, false)
	staff := startServer(t, hub, 7, true)
	assert.Equal(t, 1, hub.StaffCount())

	hub.NotifyStaff(ORDER_STATUS, map[string]interface{}{"orderId": 3, "userId": 42, "status": "Picked Up"})
	hub.NotifyUser(42, ORDER_STATUS, map[string]interface{}{"orderId": 4})

	data := readEvent(t, staff)["data"].(map[string]interface{})
	assert.Equal(t, float64(3), data["orderId"])
	assert.Equal(t, float64(42), data["userId"])

	// The student's first event is its own, not the staff broadcast.
	data = readEvent(t, student)["data"].(map[string]interface{})
	assert.Equal(t, float64(4), data["orderId"])

	staff.Close()
	assert.Eventually(t, func() bool { return hub.StaffCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_HeartbeatAndUnknownType(t *testing.T) {
	hub := NewHub()
	conn := startServer(t, hub, 1, false)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": USER_HEARTBEAT}))
	assert.Equal(t, SERVER_HEARTBEAT, readEvent(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "nope"}))
	event := readEvent(t, conn)
	assert.Equal(t, SERVER_ERROR, event["type"])
	assert.Equal(t, "unknown_message_type", event["data"].(map[string]interface{})["code"])
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := startServer(t, hub, 5, false)
	assert.Equal(t, 1, hub.ClientCount())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	startServer(t, hub, 5, false)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())
	hub.NotifyUser(5, ORDER_STATUS, nil)
}
