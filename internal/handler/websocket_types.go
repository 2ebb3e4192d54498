// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	mutex  sync.Mutex
	closed bool
}

// enqueue queues message without blocking. It reports false when the client
// is gone or its buffer is full.
func (c *Client) enqueue(message []byte) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

// close ends the write pump; safe to call more than once
func (c *Client) close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ClientRegistry tracks connected WebSocket clients
type ClientRegistry struct {
	clients map[string]*Client
	mutex   sync.RWMutex
}

// NewClientRegistry creates an empty registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client
func (r *ClientRegistry) Register(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.clients[client.ID] = client
}

// Unregister removes a client and closes its send channel
func (r *ClientRegistry) Unregister(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.clients[client.ID]; ok {
		delete(r.clients, client.ID)
	}
	client.close()
}

// Broadcast queues message for every client and returns the IDs of clients
// that could not take it
func (r *ClientRegistry) Broadcast(message []byte) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var dropped []string
	for id, client := range r.clients {
		if !client.enqueue(message) {
			dropped = append(dropped, id)
		}
	}
	return dropped
}

// CloseAll disconnects every client
func (r *ClientRegistry) CloseAll() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, client := range r.clients {
		client.close()
		delete(r.clients, id)
	}
}

// GetStats returns connection statistics
func (r *ClientRegistry) GetStats() *ConnectionStats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := &ConnectionStats{
		TotalConnections: len(r.clients),
		Clients:          make([]*Client, 0, len(r.clients)),
	}
	for _, client := range r.clients {
		stats.Clients = append(stats.Clients, client)
	}
	return stats
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int       `json:"total_connections"`
	Clients          []*Client `json:"clients"`
}
