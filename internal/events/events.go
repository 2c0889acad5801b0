// Package events publishes and consumes activity lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies an activity lifecycle event.
type Type string

// Activity event types.
const (
	ActivityCreated Type = "activity.created"
	ActivityUpdated Type = "activity.updated"
	ActivityDeleted Type = "activity.deleted"
)

// ErrUnknownType is returned when decoding an event with an unrecognized type.
var ErrUnknownType = errors.New("unknown event type")

// Event is the message body shared by every transport.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	ActivityID string    `json:"activityId"`
	UserID     string    `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// New builds an event with a fresh ID and the current time.
func New(t Type, activityID, userID string) Event {
	return Event{
		ID:         "evt_" + uuid.New().String()[:22],
		Type:       t,
		ActivityID: activityID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

// Encode serializes e as JSON.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a JSON event and checks its type.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	switch e.Type {
	case ActivityCreated, ActivityUpdated, ActivityDeleted:
		return e, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
}

// Publisher sends events to a transport.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Handler processes one event. A non-nil error requests redelivery.
type Handler func(ctx context.Context, e Event) error

// Subscriber delivers events to a handler until ctx is done.
type Subscriber interface {
	Receive(ctx context.Context, h Handler) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
