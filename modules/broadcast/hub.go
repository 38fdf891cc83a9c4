package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	nanoid "github.com/jaevor/go-nanoid"
)

// Realtime event names.
const (
	EventConnected    = "connected"
	EventRefreshTasks = "refresh-tasks"
	SignalNewTask     = "new-task"
	SignalUpdateTask  = "update-task"
)

// Conn is the write side of a realtime connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second
	// sendQueueSize is how many frames may wait for a slow client before it is dropped.
	sendQueueSize = 32
)

// Notification is the JSON frame sent to realtime clients.
type Notification struct {
	Event    string `json:"event"`
	ClientID string `json:"clientId,omitempty"`
	TaskID   string `json:"taskId,omitempty"`
}

// Client is a connected realtime client. Frames fanned out by the hub are
// queued and written by the client's own writer goroutine.
type Client struct {
	ID   string
	conn Conn
	mu   sync.Mutex // one writer at a time

	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

// NewClient wraps conn with a fresh client id.
func NewClient(conn Conn) (*Client, error) {
	id, err := newClientID()
	if err != nil {
		return nil, err
	}
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}, nil
}

// Send writes a notification to the client directly.
func (c *Client) Send(n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// enqueue queues data for the writer goroutine. It reports false when the
// client's queue is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.write(data); err != nil {
				log.Printf("[hub] Failed to send to client %s: %v", c.ID, err)
			}
		}
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

var (
	idGenOnce sync.Once
	idGen     func() string
	idGenErr  error
)

func newClientID() (string, error) {
	idGenOnce.Do(func() {
		idGen, idGenErr = nanoid.Standard(21)
	})
	if idGenErr != nil {
		return "", fmt.Errorf("failed to create client id generator: %w", idGenErr)
	}
	return idGen(), nil
}

type outbound struct {
	originID     string
	notification Notification
}

// Hub tracks realtime clients and fans notifications out to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.stop()
		_ = client.conn.Close()
	}
	h.clients = make(map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	go client.writePump()
	log.Printf("[hub] Client %s connected (%d online)", client.ID, len(h.clients))
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		client.stop()
		log.Printf("[hub] Client %s disconnected (%d online)", client.ID, len(h.clients))
	}
}

func (h *Hub) handleBroadcast(msg outbound) {
	data, err := json.Marshal(msg.notification)
	if err != nil {
		log.Printf("[hub] Failed to marshal notification: %v", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		if id != msg.originID {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.enqueue(data) {
			h.drop(client)
		}
	}
}

// drop disconnects a client whose send queue is full.
func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	delete(h.clients, client.ID)
	h.mu.Unlock()

	client.stop()
	_ = client.conn.Close()
	log.Printf("[hub] Dropped slow client %s", client.ID)
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues n for every client except originID. An empty originID
// reaches every client.
func (h *Hub) Broadcast(originID string, n Notification) {
	select {
	case h.broadcast <- outbound{originID: originID, notification: n}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
