package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks open sockets per user and fans messages out to them. Staff sockets
// also join a shared set that receives every order update.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
	staff   map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[*Client]struct{}),
		staff:   make(map[*Client]struct{}),
	}
}

// Serve registers conn for userID and runs its pumps. It returns immediately.
func (h *Hub) Serve(conn *websocket.Conn, userID uint, staff bool, handle func(message []byte, client *Client) error) *Client {
	client := newClient(h, conn, userID)
	client.Staff = staff
	h.register(client)
	go client.writePump()
	go client.readPump(handle)
	return client
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	if c.Staff {
		h.staff[c] = struct{}{}
	}
	h.mu.Unlock()

	activeConnections.Inc()
	totalConnections.Inc()
	log.Printf("[WebSocket] client registered UserID: %d, ConnID: %s, Staff: %t", c.UserID, c.ConnectionID, c.Staff)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			delete(h.staff, c)
			if len(set) == 0 {
				delete(h.clients, c.UserID)
			}
			activeConnections.Dec()
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	if ok {
		c.closeSend()
		log.Printf("[WebSocket] client unregistered UserID: %d, ConnID: %s", c.UserID, c.ConnectionID)
	}
}

// SendJSONToUser queues v to every socket of userID. Slow clients are disconnected.
func (h *Hub) SendJSONToUser(userID uint, eventType string, v interface{}) error {
	return h.deliver(eventType, v, func() map[*Client]struct{} { return h.clients[userID] })
}

// SendJSONToStaff queues v to every staff socket.
func (h *Hub) SendJSONToStaff(eventType string, v interface{}) error {
	return h.deliver(eventType, v, func() map[*Client]struct{} { return h.staff })
}

// deliver calls recipients under the read lock.
func (h *Hub) deliver(eventType string, v interface{}, recipients func() map[*Client]struct{}) error {
	message, err := json.Marshal(Event{Type: eventType, Data: v})
	if err != nil {
		return err
	}

	// Sends happen under the read lock so unregister cannot close a channel mid-send.
	var slow []*Client
	h.mu.RLock()
	for c := range recipients() {
		if c.enqueue(message) {
			messagesSent.WithLabelValues(eventType).Inc()
			continue
		}
		slow = append(slow, c)
	}
	h.mu.RUnlock()

	for _, c := range slow {
		messagesDropped.Inc()
		log.Printf("[WebSocket] buffer full for UserID: %d, ConnID: %s; disconnecting", c.UserID, c.ConnectionID)
		h.unregister(c)
	}
	return nil
}

// NotifyUser pushes a best-effort event to the user's sockets.
func (h *Hub) NotifyUser(userID uint, eventType string, payload interface{}) {
	if err := h.SendJSONToUser(userID, eventType, payload); err != nil {
		log.Printf("[WebSocket] notify UserID: %d failed: %v", userID, err)
	}
}

// NotifyStaff pushes a best-effort event to every staff socket.
func (h *Hub) NotifyStaff(eventType string, payload interface{}) {
	if err := h.SendJSONToStaff(eventType, payload); err != nil {
		log.Printf("[WebSocket] notify staff failed: %v", err)
	}
}

// StaffCount returns the number of open staff sockets.
func (h *Hub) StaffCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.staff)
}

// ClientCount returns the number of open sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}
