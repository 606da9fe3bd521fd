package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/your-org/greeter/internal/observability"
	"github.com/your-org/greeter/pkg/dto"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the dashboard is served cross-origin during development
	},
}

// Client represents a connected WebSocket client.
type Client struct {
	conn *websocket.Conn
	send chan []byte
}

type outbound struct {
	data   []byte
	except *Client // skip this client (used for rebroadcasts)
}

// IdentifyFunc applies a client-submitted visitor identification and returns
// the sanitized name that was stored.
type IdentifyFunc func(ctx context.Context, visitorID int64, name string) (string, error)

// Hub maintains the set of connected clients and broadcasts events to them.
// Connect/disconnect and broadcast all funnel through the run loop, so the
// client set needs no further synchronization.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// Identify handles the inbound identifyVisitor command. Optional.
	Identify IdentifyFunc
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub event loop. Call this in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			observability.WSConnections.Inc()
			slog.Debug("ws client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			observability.WSConnections.Dec()
			slog.Debug("ws client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client == msg.except {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Client buffer full, disconnect it
					h.mu.RUnlock()
					h.mu.Lock()
					delete(h.clients, client)
					close(client.send)
					h.mu.Unlock()
					h.mu.RLock()
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast sends a named event to all connected clients. With no clients
// connected this is a no-op.
func (h *Hub) Broadcast(event string, data any) {
	h.send(event, data, nil)
}

// BroadcastExcept sends a named event to all clients except one.
func (h *Hub) BroadcastExcept(except *Client, event string, data any) {
	h.send(event, data, except)
}

func (h *Hub) send(event string, data any, except *Client) {
	payload, err := json.Marshal(dto.WSMessage{Type: event, Data: data})
	if err != nil {
		slog.Error("marshal ws event", "event", event, "error", err)
		return
	}
	h.broadcast <- outbound{data: payload, except: except}
}

// HandleWS handles WebSocket upgrade requests.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 64),
	}

	// Queue the robot status greeting before registering: once the client is
	// registered, a disconnect can close the send channel at any time.
	if payload, err := json.Marshal(dto.WSMessage{
		Type: "robotStatus",
		Data: dto.RobotStatus{Status: "online", Message: "Robot Greeter is ready to assist!"},
	}); err == nil {
		client.send <- payload
	}

	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleInbound(c, data)
	}
}

// handleInbound processes a client→server command. Malformed frames are
// ignored.
func (h *Hub) handleInbound(sender *Client, data []byte) {
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("ignoring malformed ws frame", "error", err)
		return
	}

	if msg.Type != "identifyVisitor" || h.Identify == nil {
		return
	}

	var cmd dto.IdentifyCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		slog.Debug("ignoring malformed identifyVisitor command", "error", err)
		return
	}

	name, err := h.Identify(context.Background(), cmd.VisitorID, cmd.Name)
	if err != nil {
		slog.Warn("identify visitor via ws", "visitor_id", cmd.VisitorID, "error", err)
		return
	}

	h.BroadcastExcept(sender, "visitorIdentified",
		dto.VisitorIdentifiedPayload{ID: cmd.VisitorID, Name: name})
}
