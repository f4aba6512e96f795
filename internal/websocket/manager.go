package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// Manager dispatches inbound client messages by type.
type Manager struct {
	hub            *Hub
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

func NewManager(hub *Hub) *Manager {
	m := &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
	m.RegisterHandler(USER_HEARTBEAT, func(data json.RawMessage, client *Client) error {
		return m.hub.SendJSONToUser(client.UserID, SERVER_HEARTBEAT, map[string]interface{}{
			"timestamp": time.Now().UnixMilli(),
		})
	})
	return m
}

func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
}

// HandleMessage returns an error only when the connection should be closed.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}
	if err := handler(event.Data, client); err != nil {
		log.Printf("[WebSocketManager] handler for %q failed for UserID: %d: %v", event.Type, client.UserID, err)
		return err
	}
	return nil
}

// SendErrorToClient reports a problem without closing the connection.
func (m *Manager) SendErrorToClient(client *Client, code, message string) {
	if err := m.hub.SendJSONToUser(client.UserID, SERVER_ERROR, map[string]string{
		"code":    code,
		"message": message,
	}); err != nil {
		log.Printf("[WebSocketManager] sending error to UserID: %d failed: %v", client.UserID, err)
	}
}
