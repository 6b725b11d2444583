// Package bus fans out tree and diff session changes to subscribers, either
// in process or across browser instances over NATS.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one change to a browsing session. SessionID is empty for events
// that concern no particular tree or diff.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	SessionID string                 `json:"session_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewEvent stamps a session event with a fresh id and the current UTC time.
func NewEvent(eventType, source, sessionID string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Handler receives delivered events. Errors are logged by the bus and never
// reach the publisher.
type Handler func(ctx context.Context, event *Event) error

// Subscription is a live interest in a subject pattern.
type Subscription interface {
	Unsubscribe() error
	Active() bool
}

// EventBus publishes events to subjects and delivers them to subscribers.
// Subjects are dot separated; subscriptions accept NATS wildcards, "*" for
// one token and ">" for the remaining tokens.
type EventBus interface {
	Publish(ctx context.Context, subject string, event *Event) error
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close()
	IsConnected() bool
}
