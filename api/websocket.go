package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"macrostudio/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // 54 seconds
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Client struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	send chan []byte
}

// WebSocketHub fans playback frames out to every connected visualizer.
type WebSocketHub struct {
	clients    map[*Client]bool
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *WebSocketHub) Run() {
	for {
		select {
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("Visualizer disconnected (total: %d)", total)

		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// add registers client with first queued ahead of any broadcast. It reports
// false once the hub is closed.
func (h *WebSocketHub) add(client *Client, first []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
		return false
	default:
	}
	if first != nil {
		client.send <- first
	}
	h.clients[client] = true
	log.Printf("Visualizer connected (total: %d)", len(h.clients))
	return true
}

// Close stops Run and disconnects every client.
func (h *WebSocketHub) Close() {
	close(h.done)
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish implements service.FrameSink.
func (h *WebSocketHub) Publish(frame models.PlaybackFrame) {
	h.BroadcastToAll(frame)
}

// BroadcastToAll sends a message to all connected clients
func (h *WebSocketHub) BroadcastToAll(message interface{}) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- messageBytes:
		default:
			// Channel full - drop oldest and try again
			select {
			case <-client.send:
			default:
			}
			select {
			case client.send <- messageBytes:
			default:
				log.Printf("⚠️ Client channel full, skipping frame")
			}
		}
	}
}

// HandleWebSocket upgrades the request and sends the current frame first so a
// late-joining visualizer doesn't wait for the next step. attach runs its
// callback with no step in flight; the client joins the hub inside it, so the
// first frame and the broadcasts after it leave no gap.
func HandleWebSocket(hub *WebSocketHub, attach func(func(models.PlaybackFrame)), c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 64),
	}

	var added bool
	if attach != nil {
		attach(func(frame models.PlaybackFrame) {
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("Failed to marshal frame: %v", err)
				data = nil
			}
			added = hub.add(client, data)
		})
	} else {
		added = hub.add(client, nil)
	}
	if !added {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only watches for close and pong; visualizers don't send commands.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
