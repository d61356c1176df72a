package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/binsarkiel/chatto/internal/realtime"
	"github.com/binsarkiel/chatto/internal/services"
)

type WebSocketHandler struct {
	Hub         *realtime.Hub
	AuthService *services.AuthService
	Logger      *slog.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, authService *services.AuthService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		Hub:         hub,
		AuthService: authService,
		Logger:      logger,
	}
}

// HandleWebSocket upgrades the connection. A token may ride along as a query
// parameter to skip the identify round-trip; without one the socket connects
// unidentified and must send an identify event before joining rooms.
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	var userID string
	if token := c.Query("token"); token != "" {
		user, err := h.AuthService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			h.Logger.Warn("websocket token rejected", "error", err)
		} else {
			userID = user.ID
		}
	}

	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &realtime.Client{
		Hub:    h.Hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		UserID: userID,
		Rooms:  make(map[realtime.Room]bool),
	}

	client.Hub.Register <- client
	if userID != "" {
		client.Hub.Identify(client, userID)
	}

	go client.WritePump()
	go client.ReadPump()

	h.Logger.Info("websocket connection established", "userID", userID)
}
