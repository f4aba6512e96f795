package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/ulaundry/laundry-api/internal/domain/entity"
	"github.com/ulaundry/laundry-api/internal/middleware"
	"github.com/ulaundry/laundry-api/internal/websocket"
)

// WSHandler upgrades authenticated requests to order-status sockets. Roles that
// can view all orders join the staff feed.
type WSHandler struct {
	hub      *websocket.Hub
	manager  *websocket.Manager
	upgrader gorillaws.Upgrader
}

// NewWSHandler allows non-browser clients (no Origin) and the configured CORS origins.
func NewWSHandler(hub *websocket.Hub, manager *websocket.Manager, allowedOrigins []string) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		hub:     hub,
		manager: manager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				log.Printf("[WSHandler] rejected origin: %s", origin)
				return false
			},
		},
	}
}

func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized request", "error_type": "unauthenticated"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Printf("[WSHandler] upgrade failed for user ID=%d: %v", userID, err)
		return
	}
	role, _ := middleware.GetRole(c)
	h.hub.Serve(conn, userID, role.Can(entity.CapOrdersViewAll), h.manager.HandleMessage)
}
