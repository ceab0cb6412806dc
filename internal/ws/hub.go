package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"queue-kiosk/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // kiosks and displays connect from the local network
	},
}

// Envelope is the wire format for every broadcast event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one connected observer (display screen, counter terminal or
// kiosk).
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub broadcasts events to all connected observers. Delivery is best-effort:
// a slow client gets dropped rather than slowing down the emitter, and with
// no clients connected Emit is a no-op.
type Hub struct {
	logger *logger.Logger

	clients    map[string]*Client
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		logger:     log,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
	}
}

// Run processes register/unregister/broadcast events. Start it once, in its
// own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.LogWebSocket("CONNECT", client.id, fmt.Sprintf("%d clients connected", h.ClientCount()))
			}
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.LogWebSocket("DISCONNECT", client.id, fmt.Sprintf("%d clients connected", h.ClientCount()))
			}
		case message := <-h.broadcast:
			h.mu.Lock()
			for id, client := range h.clients {
				// Non-blocking send: drop clients whose buffer is full
				// instead of stalling everyone else.
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Emit broadcasts an event to every connected observer. Fire-and-forget: it
// never blocks and never reports failure to the caller.
func (h *Hub) Emit(event string, payload any) {
	msg, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("WEBSOCKET", fmt.Sprintf("failed to marshal %s event: %v", event, err))
		}
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		// Broadcast queue full; the event is dropped. At-least-once delivery
		// is not promised.
		if h.logger != nil {
			h.logger.Warn("WEBSOCKET", fmt.Sprintf("broadcast queue full, dropped %s event", event))
		}
	}
}

// ClientCount returns the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request to a WebSocket connection and keeps it
// subscribed until the peer goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("WEBSOCKET", fmt.Sprintf("upgrade failed: %v", err))
		}
		return
	}

	client := &Client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, 16),
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	// Hub closed the channel: say goodbye properly.
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readPump discards inbound frames; observers are listen-only. It exists to
// notice the peer closing the connection.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// NoopNotifier satisfies the notifier contract while delivering nothing.
// Used in tests and headless runs.
type NoopNotifier struct{}

func (NoopNotifier) Emit(event string, payload any) {}
