package www

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	ws "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

const messagePrices = "current_prices"

type message struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
	Data  any    `json:"data"`
}

func newMessage(kind, runID string, data any) ([]byte, error) {
	return json.Marshal(message{Type: kind, RunID: runID, Data: data})
}

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Client struct {
	logger *slog.Logger
	hub    *Hub
	conn   *ws.Conn
	send   chan []byte
	name   string
}

func NewWebSocketHandler(logger *slog.Logger, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}

		name := r.Header.Get("User-Agent")
		client := &Client{
			logger: hub.logger.With(slog.String("client", name)),
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 16),
			name:   name,
		}
		if !hub.register(client) {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}
}

// ReadPump discards incoming messages and keeps the read deadline moving on
// pongs. It unregisters the client once the connection is gone.
func (c *Client) ReadPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				c.logger.Debug("web socket read failed", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("web socket set write deadline failed", slog.Any("error", err))
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(ws.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("web socket close message failed", slog.Any("error", err))
				}
				return
			}

			if err := c.conn.WriteMessage(ws.TextMessage, message); err != nil {
				c.logger.Warn("web socket write failed", slog.Any("error", err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("web socket set write deadline failed", slog.Any("error", err))
				return
			}
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				c.logger.Debug("web socket ping message failed", slog.Any("error", err))
				return
			}
		}
	}
}

// Hub maintains the set of active clients and broadcasts messages to them.
// The last broadcast message is replayed to clients that connect later.
type Hub struct {
	logger    *slog.Logger
	broadcast chan []byte
	registry  chan *Client
	leaving   chan *Client
	done      chan struct{}
	clients   map[*Client]bool
	last      []byte
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logger,
		broadcast: make(chan []byte, 1),
		registry:  make(chan *Client),
		leaving:   make(chan *Client),
		done:      make(chan struct{}),
		clients:   make(map[*Client]bool),
	}
}

// Publish hands a message to the hub without blocking. When a previous
// message is still pending it is replaced.
func (h *Hub) Publish(msg []byte) {
	for {
		select {
		case h.broadcast <- msg:
			return
		default:
		}
		select {
		case <-h.broadcast:
		default:
		}
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.registry <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.leaving <- c:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			close(client.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.registry:
			h.logger.Debug("registering client", slog.String("clientName", client.name))
			h.clients[client] = true
			if h.last != nil {
				client.send <- h.last
			}

		case client := <-h.leaving:
			if _, ok := h.clients[client]; ok {
				h.logger.Debug("unregistering client", slog.String("clientName", client.name))
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			h.last = message
			for client := range h.clients {
				select {
				case client.send <- message:
				default: // Client's channel is full, drop the message
					h.logger.Warn("client send buffer full, dropping message", slog.String("clientName", client.name))
				}
			}
		}
	}
}
