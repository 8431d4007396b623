// Package ws implements the live-connection gateway: a registry of per-user
// WebSocket connections and a best-effort push adapter over it.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coinrush-app/coinrush-backend/pkg/metrics"
)

// Hub owns the mapping from user ID to live connection. All mutation goes
// through Register and Unregister, driven by connection lifecycle events.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]*Client
	log     *slog.Logger
}

// NewHub constructs an empty Hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}

	return &Hub{
		clients: make(map[int64]*Client),
		log:     log,
	}
}

// Register stores the connection for the user, closing any previous one.
func (h *Hub) Register(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	previous := h.clients[client.userID]
	h.clients[client.userID] = client
	h.mu.Unlock()

	if previous != nil {
		previous.close()
	}

	metrics.WSConnected()
	h.log.Debug("ws client connected", slog.Int64("user_id", client.userID))
}

// Unregister removes the connection if it is still the registered one for
// the user.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	current, ok := h.clients[client.userID]
	if ok && current == client {
		delete(h.clients, client.userID)
	}
	h.mu.Unlock()

	if ok && current == client {
		metrics.WSDisconnected()
		h.log.Debug("ws client disconnected", slog.Int64("user_id", client.userID))
	}
}

// SendIfConnected pushes the payload to the user's live connection. A
// missing connection or a full outbound buffer is a silent skip, never an
// error: socket delivery is best-effort by contract.
func (h *Hub) SendIfConnected(userID int64, payload any) bool {
	h.mu.RLock()
	client := h.clients[userID]
	h.mu.RUnlock()

	if client == nil {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("ws payload encoding failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return false
	}

	return client.enqueue(data)
}

// Connected reports whether the user currently has a live connection.
func (h *Hub) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.clients[userID] != nil
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
