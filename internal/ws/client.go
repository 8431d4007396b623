package ws

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the admin panel and the game web app run on separate origins
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client is one live WebSocket connection bound to a user.
type Client struct {
	userID int64
	conn   *websocket.Conn

	// mu serializes enqueue against close: the hub may still hold a
	// reference to a replaced client, so the channel must never be
	// closed while a send on it is possible.
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// confirmation is sent right after a successful upgrade.
type confirmation struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
}

// Handler upgrades incoming connections and runs their pumps.
type Handler struct {
	hub *Hub
	log *slog.Logger
}

// NewHandler constructs the WebSocket ingress handler.
func NewHandler(hub *Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{hub: hub, log: log}
}

// Serve handles GET /ws?userId=<id>: upgrade, register, confirm, and pump
// until the connection dies.
func (h *Handler) Serve(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "valid userId query parameter is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}

	client := &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	h.hub.Register(client)
	h.hub.SendIfConnected(userID, confirmation{Type: "connected", UserID: userID})

	go client.writePump(h.hub, h.log)
	go client.readPump(h.hub)
}

func (c *Client) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

// readPump discards inbound frames; the core does not consume client
// messages. It exists to process control frames and detect disconnects.
func (c *Client) readPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump(hub *Hub, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("ws write failed", slog.Int64("user_id", c.userID), slog.Any("error", err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
