package handlers

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/lostmarbl3/fai-trainsmart/internal/middleware"
	sessionws "github.com/lostmarbl3/fai-trainsmart/internal/websocket"
)

type SessionFeedHandler struct {
	hub *sessionws.Hub
}

func NewSessionFeedHandler(hub *sessionws.Hub) *SessionFeedHandler {
	return &SessionFeedHandler{hub: hub}
}

func (h *SessionFeedHandler) RequireUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}
	return c.Next()
}

func (h *SessionFeedHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(string)
	client := sessionws.NewClient(h.hub, conn, userID)

	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}
	go client.WritePump()
	client.ReadPump()
}
