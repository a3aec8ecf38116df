package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
)

// Connection represents a WebSocket connection to an authenticated player
type Connection struct {
	conn          *websocket.Conn
	send          chan *Message
	email         string
	subscriptions map[string]bool
	table         Table
	clock         quartz.Clock
	logger        *log.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.RWMutex
	closeOnce     sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, email string, tbl Table, clock quartz.Clock, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:          conn,
		send:          make(chan *Message, 256),
		email:         email,
		subscriptions: make(map[string]bool),
		table:         tbl,
		clock:         clock,
		logger:        logger.WithPrefix("conn").With("player", email),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// Player returns the email the socket authenticated as.
func (c *Connection) Player() string {
	return c.email
}

// Subscribe adds gameID to the rooms this socket follows.
func (c *Connection) Subscribe(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[gameID] = true
}

// Unsubscribe removes gameID from the rooms this socket follows.
func (c *Connection) Unsubscribe(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, gameID)
}

// Subscribed reports whether the socket follows gameID.
func (c *Connection) Subscribed(gameID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[gameID]
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := c.clock.NewTicker(pingPeriod, "conn", "ping")
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type)

	switch msg.Type {
	case MessageTypeSubscribe:
		var data SubscriptionData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.GameID == "" {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse subscription data")
			return
		}
		c.handleSubscribe(msg.RequestID, data)

	case MessageTypeUnsubscribe:
		var data SubscriptionData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.GameID == "" {
			c.sendError(msg.RequestID, "invalid_message", "Failed to parse subscription data")
			return
		}
		c.Unsubscribe(data.GameID)
		c.logger.Debug("Unsubscribed", "room", Room(data.GameID))

	default:
		c.sendError(msg.RequestID, "unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

// handleSubscribe joins the game's room after checking the player is seated
// there, and answers with the current state.
func (c *Connection) handleSubscribe(requestID string, data SubscriptionData) {
	state, err := c.table.State(c.ctx, c.email, data.GameID)
	if err != nil {
		status, message := classify(err)
		c.sendError(requestID, errorCode(status), message)
		return
	}

	c.Subscribe(data.GameID)
	c.logger.Debug("Subscribed", "room", Room(data.GameID))

	msg, err := NewMessage(MessageTypeGameUpdate, state)
	if err != nil {
		c.logger.Error("Failed to create game update", "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg) // Ignore send errors
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}
	errorMsg.RequestID = requestID

	if err := c.SendMessage(errorMsg); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("Failed to send error", "error", err)
	}
}
