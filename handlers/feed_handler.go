package handlers

import (
	"github.com/elimuhub/learning_platform/websocket"
	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// ServeQueueFeed attaches a reviewer to the live approval-queue feed. The
// connection only reads; events are pushed by the hub.
func ServeQueueFeed(conn *fiberws.Conn) {
	token, ok := conn.Locals("user").(*jwt.Token)
	if !ok {
		conn.Close()
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		conn.Close()
		return
	}
	subject, ok := claims["user_id"].(string)
	if !ok {
		conn.Close()
		return
	}
	reviewerID, err := uuid.Parse(subject)
	if err != nil {
		conn.Close()
		return
	}

	client := &websocket.Client{UserID: reviewerID, Conn: conn}
	websocket.Register <- client
	defer func() {
		websocket.Unregister <- client
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
