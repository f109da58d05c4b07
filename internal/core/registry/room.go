package registry

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// room holds one broadcast group. The per-room lock serializes membership
// mutation and fan-out enqueue, which is what guarantees that two broadcasts
// into the same room reach every member connection in the same relative
// order. It is never held across a network write; enqueue is non-blocking.
type room struct {
	mu      sync.Mutex
	members map[uuid.UUID]struct{}
}

// Rooms maps room keys to subscribed users. Rooms are created on first
// subscribe and destroyed when the last member leaves; no empty room
// persists.
type Rooms struct {
	// mu protects the rooms and userRooms maps.
	mu        sync.RWMutex
	rooms     map[string]*room
	userRooms map[uuid.UUID]map[string]struct{}

	presence ports.PresenceRegistry
	logger   *slog.Logger
}

// Ensure Rooms implements the RoomRegistry interface.
var _ ports.RoomRegistry = (*Rooms)(nil)

// NewRooms creates a new room registry delivering through the given presence
// registry.
func NewRooms(presence ports.PresenceRegistry, logger *slog.Logger) *Rooms {
	return &Rooms{
		rooms:     make(map[string]*room),
		userRooms: make(map[uuid.UUID]map[string]struct{}),
		presence:  presence,
		logger:    logger.With("component", "room_registry"),
	}
}

// Subscribe adds the user to the room. Idempotent.
func (r *Rooms) Subscribe(roomKey string, userID uuid.UUID) {
	r.mu.Lock()
	rm, ok := r.rooms[roomKey]
	if !ok {
		rm = &room{members: make(map[uuid.UUID]struct{})}
		r.rooms[roomKey] = rm
	}
	if r.userRooms[userID] == nil {
		r.userRooms[userID] = make(map[string]struct{})
	}
	r.userRooms[userID][roomKey] = struct{}{}

	// The member must be added before r.mu is released. Otherwise a
	// concurrent last-member Unsubscribe could delete the room between the
	// map section and the member add, stranding this user in an orphaned
	// room struct that broadcasts can no longer find.
	rm.mu.Lock()
	rm.members[userID] = struct{}{}
	rm.mu.Unlock()
	r.mu.Unlock()

	r.logger.Debug("user subscribed",
		"room_key", roomKey,
		"user_id", userID,
	)
}

// Unsubscribe removes the user from the room. Idempotent; the room is
// destroyed when its last member leaves.
func (r *Rooms) Unsubscribe(roomKey string, userID uuid.UUID) {
	r.mu.Lock()
	rm, ok := r.rooms[roomKey]
	if !ok {
		r.mu.Unlock()
		return
	}

	rm.mu.Lock()
	delete(rm.members, userID)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if empty {
		delete(r.rooms, roomKey)
	}
	if set, ok := r.userRooms[userID]; ok {
		delete(set, roomKey)
		if len(set) == 0 {
			delete(r.userRooms, userID)
		}
	}
	r.mu.Unlock()

	r.logger.Debug("user unsubscribed",
		"room_key", roomKey,
		"user_id", userID,
		"room_removed", empty,
	)
}

// Broadcast fans the event out to every online member except the excluded
// originator. The room lock is held across the enqueue loop to serialize
// broadcasts into the same room; each member's enqueue is non-blocking so the
// lock never waits on the network.
func (r *Rooms) Broadcast(roomKey string, event domain.Event, excludeUserID *uuid.UUID) int {
	r.mu.RLock()
	rm, ok := r.rooms[roomKey]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	delivered := 0
	rm.mu.Lock()
	for userID := range rm.members {
		if excludeUserID != nil && userID == *excludeUserID {
			continue
		}
		if result, _ := r.presence.SendToUser(userID, event); result == domain.Delivered {
			delivered++
		}
	}
	rm.mu.Unlock()

	r.logger.Debug("broadcast",
		"room_key", roomKey,
		"event_type", event.Type,
		"delivered", delivered,
	)
	return delivered
}

// Members returns a snapshot of the room's member set.
func (r *Rooms) Members(roomKey string) []uuid.UUID {
	r.mu.RLock()
	rm, ok := r.rooms[roomKey]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	members := make([]uuid.UUID, 0, len(rm.members))
	for userID := range rm.members {
		members = append(members, userID)
	}
	return members
}

// RoomsOf returns a snapshot of the rooms the user belongs to.
func (r *Rooms) RoomsOf(userID uuid.UUID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.userRooms[userID]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	return keys
}

// RoomCount returns the number of live rooms.
func (r *Rooms) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
