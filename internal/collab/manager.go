package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"taskthread/internal/thread"
)

// Client is one WebSocket subscriber to a task's comment events
type Client struct {
	ID     string
	UserID int64
	TaskID int64
	Conn   *websocket.Conn
	Send   chan []byte

	manager  *Manager
	closedMu sync.Mutex
	closed   bool
}

// Message is the frame written to subscribers
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// BroadcastMessage is a frame addressed to every client of a task
type BroadcastMessage struct {
	TaskID  int64
	Message []byte
}

// Manager fans comment events out to the clients watching each task
type Manager struct {
	// rooms maps task ID to connected clients
	rooms map[int64]map[*Client]bool

	broadcast  chan *BroadcastMessage
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger *zap.Logger
	ctx    context.Context

	upgrader websocket.Upgrader
}

// Option configures a Manager
type Option func(*Manager)

// WithAllowedOrigins restricts WebSocket upgrades to the given origins.
// "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(m *Manager) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			allowed[o] = true
		}
		m.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		}
	}
}

// NewManager creates a manager whose event loop runs until ctx is done
func NewManager(ctx context.Context, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		rooms:      make(map[int64]map[*Client]bool),
		broadcast:  make(chan *BroadcastMessage, 256),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		logger:     logger,
		ctx:        ctx,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.run()

	return m
}

var _ thread.Publisher = (*Manager)(nil)

func (m *Manager) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Info("WebSocket manager shutting down")
			m.closeAllConnections()
			return

		case client := <-m.register:
			m.registerClient(client)

		case client := <-m.unregister:
			m.unregisterClient(client)

		case msg := <-m.broadcast:
			m.broadcastToRoom(msg)

		case <-ticker.C:
			m.mu.RLock()
			roomCount := len(m.rooms)
			clientCount := 0
			for _, clients := range m.rooms {
				clientCount += len(clients)
			}
			m.mu.RUnlock()

			m.logger.Debug("WebSocket stats",
				zap.Int("rooms", roomCount),
				zap.Int("clients", clientCount),
			)
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to taskID
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request, taskID, userID int64) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	m.RegisterClient(&Client{
		ID:     uuid.New().String(),
		UserID: userID,
		TaskID: taskID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	})
	return nil
}

// RegisterClient adds a client to its task's room
func (m *Manager) RegisterClient(client *Client) {
	client.manager = m
	select {
	case m.register <- client:
	case <-m.ctx.Done():
		client.Conn.Close()
	}
}

// UnregisterClient removes a client from its room
func (m *Manager) UnregisterClient(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.ctx.Done():
	}
}

// Publish implements thread.Publisher. Events are dropped once the manager
// has shut down.
func (m *Manager) Publish(ev thread.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		m.logger.Error("Failed to encode thread event", zap.Error(err))
		return
	}
	frame, err := json.Marshal(Message{Type: string(ev.Type), Payload: payload})
	if err != nil {
		m.logger.Error("Failed to encode thread event", zap.Error(err))
		return
	}
	m.Broadcast(ev.TaskID, frame)
}

// Broadcast sends a frame to every client watching taskID
func (m *Manager) Broadcast(taskID int64, message []byte) {
	select {
	case m.broadcast <- &BroadcastMessage{TaskID: taskID, Message: message}:
	case <-m.ctx.Done():
	}
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[client.TaskID] == nil {
		m.rooms[client.TaskID] = make(map[*Client]bool)
	}
	m.rooms[client.TaskID][client] = true

	m.logger.Info("Client subscribed to task",
		zap.String("client_id", client.ID),
		zap.Int64("user_id", client.UserID),
		zap.Int64("task_id", client.TaskID),
		zap.Int("room_size", len(m.rooms[client.TaskID])),
	)

	go client.writePump()
	go client.readPump()
}

func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clients, ok := m.rooms[client.TaskID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}

	delete(clients, client)
	client.closeSend()
	if len(clients) == 0 {
		delete(m.rooms, client.TaskID)
	}

	m.logger.Info("Client unsubscribed from task",
		zap.String("client_id", client.ID),
		zap.Int64("task_id", client.TaskID),
		zap.Int("room_size", len(clients)),
	)
}

func (m *Manager) broadcastToRoom(msg *BroadcastMessage) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for client := range m.rooms[msg.TaskID] {
		select {
		case client.Send <- msg.Message:
		default:
			m.logger.Warn("Client send buffer full, dropping message",
				zap.String("client_id", client.ID),
			)
		}
	}
}

func (m *Manager) closeAllConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for taskID, clients := range m.rooms {
		for client := range clients {
			if client.closeSend() {
				client.Conn.Close()
			}
		}
		delete(m.rooms, taskID)
	}
}

// RoomSize returns the number of clients watching taskID
func (m *Manager) RoomSize(taskID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.rooms[taskID])
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames
	maxMessageSize = 4 * 1024
)

// closeSend closes the send channel once and reports whether it did.
func (c *Client) closeSend() bool {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return false
	}
	close(c.Send)
	c.closed = true
	return true
}

// readPump keeps the read side alive so pongs and close frames are seen.
// Data frames from subscribers are discarded.
func (c *Client) readPump() {
	defer func() {
		c.manager.UnregisterClient(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.logger.Warn("WebSocket read error",
					zap.String("client_id", c.ID),
					zap.Error(err),
				)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
