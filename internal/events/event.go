// Package events carries engine lifecycle notifications to in-process and
// external consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/yourusername/cat-engine/internal/domain/entity"
)

// Event types
const (
	TypeSessionStarted    = "cat.session.started"
	TypeSessionCompleted  = "cat.session.completed"
	TypeSessionTerminated = "cat.session.terminated"
	TypeItemSelected      = "cat.item.selected"
	TypeResponseProcessed = "cat.response.processed"
	TypeParametersUpdated = "cat.parameters.updated"
	TypeExposureReset     = "cat.exposure.reset"
)

// Event is a single lifecycle notification. Session, when present, is a
// snapshot taken at the time of the transition.
type Event struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	SessionID  string                 `json:"session_id,omitempty"`
	Session    *entity.CATSession     `json:"session,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New creates an event stamped with a fresh id and the current time
func New(eventType string, session *entity.CATSession, payload map[string]interface{}) Event {
	e := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Session:    session,
		Payload:    payload,
		OccurredAt: time.Now(),
	}
	if session != nil {
		e.SessionID = session.ID
	}
	return e
}

// Publisher accepts events for delivery. Publish must not block the caller.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher discards every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}

// Decode reads an event back from a bus message
func Decode(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event %s: %w", msg.UUID, err)
	}
	return e, nil
}
