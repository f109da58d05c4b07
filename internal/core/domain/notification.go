package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Pre-defined errors for notification validation.
var (
	ErrRecipientRequired = errors.New("recipient user id is required")
	ErrUnknownFilter     = errors.New("unknown notification filter")
)

// notificationNamespace is the fixed UUID namespace for deriving notification
// ids from source events. Changing it breaks dedup across deployments.
var notificationNamespace = uuid.MustParse("8f3c1a6e-25d4-4c8a-9e71-04b2d9f5c663")

// NotificationFilter selects which notifications to list.
type NotificationFilter string

const (
	FilterAll    NotificationFilter = "all"
	FilterUnread NotificationFilter = "unread"
	FilterRead   NotificationFilter = "read"
)

// IsValid reports whether the filter is one of the known values.
func (f NotificationFilter) IsValid() bool {
	switch f {
	case FilterAll, FilterUnread, FilterRead:
		return true
	}
	return false
}

// Notification is the durable record created for a user when a
// notification-worthy event targets them. (UserID, ID) uniquely identifies a
// notification; the id is derived from the source event so that re-delivery
// of the same event never creates a duplicate row.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Type      EventType `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// DeriveNotificationID deterministically derives the notification id for a
// (source event, recipient) pair. This is the dedup boundary: any number of
// delivery retries of the same event to the same user map to the same id.
func DeriveNotificationID(eventID, userID uuid.UUID) uuid.UUID {
	name := make([]byte, 0, 32)
	name = append(name, eventID[:]...)
	name = append(name, userID[:]...)
	return uuid.NewSHA1(notificationNamespace, name)
}

// NewNotificationFromEvent builds the durable record for a recipient of an
// event. Title and message come from the event payload envelope; callers that
// have no structured envelope get a type-derived title.
func NewNotificationFromEvent(ev Event, userID uuid.UUID, title, message string) (*Notification, error) {
	if userID == uuid.Nil {
		return nil, ErrRecipientRequired
	}
	if title == "" {
		title = defaultTitle(ev.Type)
	}
	return &Notification{
		ID:        DeriveNotificationID(ev.ID, userID),
		UserID:    userID,
		Type:      ev.Type,
		Title:     title,
		Message:   message,
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func defaultTitle(t EventType) string {
	switch t {
	case EventMessage:
		return "New message"
	case EventBidOutbid:
		return "You have been outbid"
	case EventBidPlaced:
		return "New bid"
	default:
		return "Notification"
	}
}
