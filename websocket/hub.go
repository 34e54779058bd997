package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// The hub pushes request-lifecycle events to connected reviewer dashboards
// so the approval queue updates without polling.

type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
}

type QueueEvent struct {
	Kind      string    `json:"kind"`
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	At        time.Time `json:"at"`
}

var clients = make(map[uuid.UUID]*websocket.Conn)
var clientsMu sync.RWMutex
var Register = make(chan *Client)
var Unregister = make(chan *Client)
var Broadcast = make(chan QueueEvent, 64)

func RunHub() {
	for {
		select {
		case client := <-Register:
			log.Printf("Reviewer connected to queue feed: %s", client.UserID)
			clientsMu.Lock()
			clients[client.UserID] = client.Conn
			clientsMu.Unlock()
		case client := <-Unregister:
			log.Printf("Reviewer disconnected from queue feed: %s", client.UserID)
			clientsMu.Lock()
			if conn, ok := clients[client.UserID]; ok && conn == client.Conn {
				delete(clients, client.UserID)
			}
			clientsMu.Unlock()
		case event := <-Broadcast:
			clientsMu.RLock()
			var stale []uuid.UUID
			for reviewerID, conn := range clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Error pushing queue event to reviewer %s: %v", reviewerID, err)
					conn.Close()
					stale = append(stale, reviewerID)
				}
			}
			clientsMu.RUnlock()

			if len(stale) > 0 {
				clientsMu.Lock()
				for _, reviewerID := range stale {
					delete(clients, reviewerID)
				}
				clientsMu.Unlock()
			}
		}
	}
}

// Publish enqueues an event without blocking the caller; the feed is a
// convenience view, dropping an event is acceptable.
func Publish(event QueueEvent) {
	select {
	case Broadcast <- event:
	default:
	}
}
