package ports

import (
	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
)

// PresenceHook is invoked when a user transitions online or offline (first
// connection registered / last connection gone). The registry calls it outside
// of its own locks.
type PresenceHook func(userID uuid.UUID, online bool)

// PresenceRegistry tracks which users currently hold live connections and
// delivers direct events to them.
type PresenceRegistry interface {
	// Register adds a connection to its user's connection set. It returns
	// ErrAlreadyClosed if the connection is already terminated.
	Register(conn Connection) (uuid.UUID, error)

	// Unregister removes the connection and closes it. Removing a user's
	// last connection marks them offline.
	Unregister(connID uuid.UUID)

	// Heartbeat records liveness for a connection. Unknown ids are ignored.
	Heartbeat(connID uuid.UUID)

	// IsOnline reports whether the user has at least one live connection.
	IsOnline(userID uuid.UUID) bool

	// SendToUser fans one event out to all of the user's connections. A send
	// failure on one connection does not affect the others. The result is
	// Delivered if at least one connection accepted the event.
	SendToUser(userID uuid.UUID, event domain.Event) (domain.DeliveryResult, int)

	// ConnectionCount returns the number of live connections for a user.
	ConnectionCount(userID uuid.UUID) int
}

// RoomRegistry maps room keys to subscribed users and fans room events out to
// the online members.
type RoomRegistry interface {
	// Subscribe adds the user to the room, creating the room on first
	// subscribe. Subscribing twice is a no-op.
	Subscribe(roomKey string, userID uuid.UUID)

	// Unsubscribe removes the user; unsubscribing a non-member is a no-op.
	// The room is destroyed when its last member leaves.
	Unsubscribe(roomKey string, userID uuid.UUID)

	// Broadcast delivers the event to every online member except the
	// excluded originator and returns the number of members that received
	// it on at least one connection. Offline members are skipped; their
	// durability is the notification store's job.
	Broadcast(roomKey string, event domain.Event, excludeUserID *uuid.UUID) int

	// Members returns a snapshot of the room's member set.
	Members(roomKey string) []uuid.UUID

	// RoomsOf returns a snapshot of the rooms the user belongs to.
	RoomsOf(userID uuid.UUID) []string

	// RoomCount returns the number of live rooms.
	RoomCount() int
}
