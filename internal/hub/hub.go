// Package hub fans run events out to WebSocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// AllRuns is the topic of connections that follow every run.
const AllRuns = ""

const sendBufferSize = 256

// Connection represents a single WebSocket connection.
type Connection struct {
	ID    string
	RunID string // subscribed run, AllRuns for every run
	Conn  *websocket.Conn
	Send  chan []byte
	hub   *Hub
	mu    sync.Mutex

	// closed is set, under Hub.mu, when the hub closes Send.
	closed bool
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// topics maps run_id to set of connection IDs
	topics map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *RunMessage

	done chan struct{}
	mu   sync.RWMutex
}

// RunMessage is used to broadcast a message about one run.
type RunMessage struct {
	RunID string
	Data  []byte
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		topics:      make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *RunMessage, sendBufferSize),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled and
// closes every remaining connection's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, conn := range h.connections {
			delete(h.connections, id)
			conn.closed = true
			close(conn.Send)
		}
		h.topics = make(map[string]map[string]bool)
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.subscribe(conn, conn.RunID)
			h.mu.Unlock()
			log.Printf("INFO: connection registered: %s (run: %q)", conn.ID, conn.RunID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				h.unsubscribe(conn)
				conn.closed = true
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Printf("INFO: connection unregistered: %s", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			h.deliver(msg.RunID, msg.Data)
			if msg.RunID != AllRuns {
				h.deliver(AllRuns, msg.Data)
			}
			h.mu.RUnlock()
		}
	}
}

// deliver must be called with h.mu held.
func (h *Hub) deliver(topic string, data []byte) {
	for connID := range h.topics[topic] {
		conn, exists := h.connections[connID]
		if !exists {
			continue
		}
		select {
		case conn.Send <- data:
		default:
			// Buffer full, close the connection
			log.Printf("WARN: connection %s buffer full, closing", connID)
			go h.Unregister(conn)
		}
	}
}

// subscribe must be called with h.mu held.
func (h *Hub) subscribe(conn *Connection, runID string) {
	conn.RunID = runID
	if h.topics[runID] == nil {
		h.topics[runID] = make(map[string]bool)
	}
	h.topics[runID][conn.ID] = true
}

// unsubscribe must be called with h.mu held.
func (h *Hub) unsubscribe(conn *Connection) {
	if h.topics[conn.RunID] == nil {
		return
	}
	delete(h.topics[conn.RunID], conn.ID)
	if len(h.topics[conn.RunID]) == 0 {
		delete(h.topics, conn.RunID)
	}
}

// NewConnection creates a new connection following runID.
func (h *Hub) NewConnection(ws *websocket.Conn, runID string) *Connection {
	return &Connection{
		ID:    uuid.New().String(),
		RunID: runID,
		Conn:  ws,
		Send:  make(chan []byte, sendBufferSize),
		hub:   h,
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
		h.mu.Lock()
		if !conn.closed {
			conn.closed = true
			close(conn.Send)
		}
		h.mu.Unlock()
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Subscribe moves a connection to another run. AllRuns follows every run.
func (h *Hub) Subscribe(conn *Connection, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn.ID]; !ok {
		conn.RunID = runID
		return
	}
	h.unsubscribe(conn)
	h.subscribe(conn, runID)
}

// Broadcast queues data for every subscriber of runID and of AllRuns.
// The message is dropped when the queue is full.
func (h *Hub) Broadcast(runID string, data []byte) {
	select {
	case h.broadcast <- &RunMessage{RunID: runID, Data: data}:
	default:
		log.Printf("WARN: hub broadcast queue full, dropping message for run %s", runID)
	}
}

// BroadcastJSON sends a JSON message to the subscribers of a run.
func (h *Hub) BroadcastJSON(runID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(runID, data)
	return nil
}

// SendToConnection sends a message to a specific connection. It returns
// ErrConnectionClosed once the hub has closed the connection's send channel.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if conn.closed {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasSubscribers reports whether anyone follows runID, directly or through AllRuns.
func (h *Hub) HasSubscribers(runID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[runID]) > 0 || len(h.topics[AllRuns]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ErrConnectionClosed is returned when sending to a connection the hub has closed.
var ErrConnectionClosed = errors.New("connection closed")

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = &BufferFullError{}

// BufferFullError represents a buffer full error.
type BufferFullError struct{}

func (e *BufferFullError) Error() string {
	return "send buffer full"
}
