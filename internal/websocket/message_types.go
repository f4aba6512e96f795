package websocket

// Message types exchanged over the socket.
const (
	// ORDER_STATUS carries an order status change to its owner.
	ORDER_STATUS = "order_status"

	// USER_HEARTBEAT is sent by the client to keep the connection warm.
	USER_HEARTBEAT = "user:heartbeat"

	// SERVER_HEARTBEAT answers USER_HEARTBEAT.
	SERVER_HEARTBEAT = "server:heartbeat"

	// SERVER_ERROR reports a problem with a client message without closing the socket.
	SERVER_ERROR = "server:error"
)

// Event is the envelope of every socket message.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
