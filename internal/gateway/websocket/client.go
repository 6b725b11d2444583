package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024
)

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// Request is a control frame sent by the browser.
type Request struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

// Reply acknowledges a Request.
type Reply struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Client represents a single WebSocket connection
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	// guarded by hub.mu
	sessions map[string]bool
	closed   bool

	logger *logger.Logger
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub, log *logger.Logger) *Client {
	return &Client{
		ID:       id,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		sessions: make(map[string]bool),
		logger:   log.WithFields(zap.String("client_id", id)),
	}
}

// ReadPump reads control frames until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error", zap.Error(err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(Reply{Error: "invalid message format"})
			continue
		}
		c.handleRequest(req)
	}
}

func (c *Client) handleRequest(req Request) {
	c.logger.Debug("received request",
		zap.String("action", req.Action),
		zap.String("session_id", req.SessionID))

	if req.SessionID == "" {
		c.reply(Reply{Action: req.Action, Error: "session_id is required"})
		return
	}
	switch req.Action {
	case ActionSubscribe:
		c.hub.Subscribe(c, req.SessionID)
	case ActionUnsubscribe:
		c.hub.Unsubscribe(c, req.SessionID)
	default:
		c.reply(Reply{Action: req.Action, SessionID: req.SessionID, Error: "unknown action"})
		return
	}
	c.reply(Reply{Action: req.Action, SessionID: req.SessionID, Success: true})
}

func (c *Client) reply(r Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Error("failed to marshal reply", zap.Error(err))
		return
	}
	c.hub.deliver(c, data)
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
