// Package websocket pushes tree and diff change notifications to browser
// clients over WebSocket connections.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bordumb/RadicleApp/internal/common/logger"
	"github.com/bordumb/RadicleApp/internal/events"
	"github.com/bordumb/RadicleApp/internal/events/bus"
)

// Notification is the frame pushed to subscribed clients.
type Notification struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Hub tracks connected clients and the sessions each one follows.
type Hub struct {
	clients     map[*Client]bool
	subscribers map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	subs []bus.Subscription

	mu     sync.RWMutex
	logger *logger.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Default()
	}
	return &Hub{
		clients:     make(map[*Client]bool),
		subscribers: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		logger:      log.WithFields(zap.String("component", "ws_hub")),
	}
}

// Listen subscribes the hub to every tree and diff event on eventBus.
func (h *Hub) Listen(eventBus bus.EventBus) error {
	for _, pattern := range []string{events.AllTreeEvents, events.AllDiffEvents} {
		sub, err := eventBus.Subscribe(pattern, h.handleEvent)
		if err != nil {
			h.stopListening()
			return fmt.Errorf("subscribe to %s: %w", pattern, err)
		}
		h.mu.Lock()
		h.subs = append(h.subs, sub)
		h.mu.Unlock()
	}
	return nil
}

// Run processes client registration until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer h.logger.Info("WebSocket hub stopped")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.stopListening()
			h.closeAllClients()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("client_id", client.ID))
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe routes notifications of sessionID to client.
func (h *Hub) Subscribe(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client.closed {
		return
	}
	if _, ok := h.subscribers[sessionID]; !ok {
		h.subscribers[sessionID] = make(map[*Client]bool)
	}
	h.subscribers[sessionID][client] = true
	client.sessions[sessionID] = true
}

// Unsubscribe stops routing notifications of sessionID to client.
func (h *Hub) Unsubscribe(client *Client, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, sessionID)
}

func (h *Hub) unsubscribeLocked(client *Client, sessionID string) {
	delete(client.sessions, sessionID)
	if clients, ok := h.subscribers[sessionID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.subscribers, sessionID)
		}
	}
}

func (h *Hub) handleEvent(_ context.Context, event *bus.Event) error {
	sessionID := event.SessionID
	if sessionID == "" {
		return nil
	}
	data, err := json.Marshal(Notification{
		Type:      event.Type,
		SessionID: sessionID,
		Timestamp: event.Timestamp,
		Data:      event.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.subscribers[sessionID] {
		h.deliverLocked(client, data)
	}
	return nil
}

// deliver queues data on the client's send buffer unless the client is gone.
func (h *Hub) deliver(client *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(client, data)
}

func (h *Hub) deliverLocked(client *Client, data []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("client send buffer full, dropping message", zap.String("client_id", client.ID))
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for sessionID := range client.sessions {
		h.unsubscribeLocked(client, sessionID)
	}
	client.closed = true
	close(client.send)
	h.logger.Debug("client unregistered", zap.String("client_id", client.ID))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closed = true
		close(client.send)
		delete(h.clients, client)
	}
	h.subscribers = make(map[string]map[*Client]bool)
}

func (h *Hub) stopListening() {
	h.mu.Lock()
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
}
