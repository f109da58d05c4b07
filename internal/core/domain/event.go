package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Pre-defined errors for event validation.
var (
	ErrUnknownEventType     = errors.New("unknown event type")
	ErrAmbiguousDestination = errors.New("exactly one of target user or room key must be set")
)

// EventType defines the type of real-time event.
type EventType string

const (
	EventMessage        EventType = "message"
	EventBidPlaced      EventType = "bid_placed"
	EventBidOutbid      EventType = "bid_outbid"
	EventNotification   EventType = "notification"
	EventPresenceChange EventType = "presence_change"
)

// notificationWorthy lists the event types that produce a durable notification
// row when they target a specific user.
var notificationWorthy = map[EventType]bool{
	EventMessage:      true,
	EventBidOutbid:    true,
	EventNotification: true,
}

// IsNotificationWorthy reports whether a direct event of this type must be
// written through to the notification store.
func (t EventType) IsNotificationWorthy() bool {
	return notificationWorthy[t]
}

// IsDurable reports whether the event must keep a durable record even when it
// was delivered live. The notification center is the system of record for
// explicit notifications, so they persist regardless of delivery.
func (t EventType) IsDurable() bool {
	return t == EventNotification
}

// IsValid reports whether the event type is one of the known types.
func (t EventType) IsValid() bool {
	switch t {
	case EventMessage, EventBidPlaced, EventBidOutbid, EventNotification, EventPresenceChange:
		return true
	}
	return false
}

// Event is the immutable payload routed through the system and sent over a
// live connection. Exactly one of TargetUserID or RoomKey must be set: direct
// events go to a single user, room events fan out to a room's members.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	Type         EventType       `json:"type"`
	SourceUserID uuid.UUID       `json:"sourceUserId"`
	TargetUserID *uuid.UUID      `json:"targetUserId,omitempty"`
	RoomKey      string          `json:"roomKey,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is a logical clock assigned by the router, monotonic per
	// router instance. Sequence is monotonic per target scope (user or room).
	CreatedAt uint64 `json:"createdAt"`
	Sequence  uint64 `json:"sequence"`
}

// NewEventParams defines the input for constructing an event.
type NewEventParams struct {
	Type         EventType
	SourceUserID uuid.UUID
	TargetUserID *uuid.UUID
	RoomKey      string
	Payload      json.RawMessage
}

// NewEvent creates an event with a fresh id. Routing metadata (CreatedAt,
// Sequence) is assigned later by the router.
func NewEvent(params NewEventParams) (Event, error) {
	ev := Event{
		ID:           uuid.New(),
		Type:         params.Type,
		SourceUserID: params.SourceUserID,
		TargetUserID: params.TargetUserID,
		RoomKey:      params.RoomKey,
		Payload:      params.Payload,
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Validate enforces the structural invariants of an event.
func (e Event) Validate() error {
	if !e.Type.IsValid() {
		return ErrUnknownEventType
	}
	hasTarget := e.TargetUserID != nil && *e.TargetUserID != uuid.Nil
	hasRoom := e.RoomKey != ""
	if hasTarget == hasRoom {
		// Both set or neither set.
		return ErrAmbiguousDestination
	}
	return nil
}

// IsDirect reports whether the event addresses a single user.
func (e Event) IsDirect() bool {
	return e.TargetUserID != nil && *e.TargetUserID != uuid.Nil
}

// Scope returns the ordering scope key for sequence assignment: the target
// user id for direct events, the room key for broadcasts.
func (e Event) Scope() string {
	if e.IsDirect() {
		return "user:" + e.TargetUserID.String()
	}
	return "room:" + e.RoomKey
}

// PresenceChangePayload is the payload carried by presence_change events.
type PresenceChangePayload struct {
	UserID   uuid.UUID `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}
