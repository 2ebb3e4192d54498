// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventDataReceived EventType = "DATA_RECEIVED"
	EventError        EventType = "ERROR"
	EventConnected    EventType = "CONNECTED"
	EventStateChanged EventType = "STATE_CHANGED"
)

// Event is a single notification raised by the connection manager
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Data      string          `json:"data,omitempty"`
	State     ConnectionState `json:"state,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates an event stamped with a fresh ID and the current time
func NewEvent(eventType EventType, data string) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewStateEvent creates a STATE_CHANGED event
func NewStateEvent(state ConnectionState, reason string) Event {
	e := NewEvent(EventStateChanged, reason)
	e.State = state
	return e
}
