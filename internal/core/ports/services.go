package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
)

// EmitParams defines the input for producing a new event.
type EmitParams struct {
	Type         domain.EventType
	SourceUserID uuid.UUID
	TargetUserID *uuid.UUID
	RoomKey      string
	Payload      json.RawMessage
	Title        string
	Message      string
}

// EventRouter classifies events and dispatches them to the presence registry
// (direct) or room registry (broadcast), writing through to the notification
// store for recipients who must see the event durably.
type EventRouter interface {
	// Emit validates, constructs and routes a new event.
	Emit(ctx context.Context, params EmitParams) (domain.RouteOutcome, error)

	// Route dispatches an already-constructed event. It returns
	// ErrMalformedEvent for structural violations; a degraded write-through
	// is reported on the outcome, never by rolling back live delivery.
	Route(ctx context.Context, event domain.Event) (domain.RouteOutcome, error)
}

// SyncFeed is the server-side response for one polling sync: the full
// notification view plus a watermark the client uses to detect new arrivals.
type SyncFeed struct {
	Notifications []*domain.Notification `json:"notifications"`
	UnreadCount   int                    `json:"unreadCount"`
	ServerTime    time.Time              `json:"serverTime"`
}

// NotificationService exposes the client-facing notification feed.
type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error

	// Sync serves the polling fallback for clients without a live
	// connection.
	Sync(ctx context.Context, userID uuid.UUID) (*SyncFeed, error)
}
