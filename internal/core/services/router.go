package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// Router classifies inbound events and dispatches them to the presence
// registry (direct) or room registry (broadcast), writing through to the
// notification store so offline recipients still see the event on their next
// poll or reconnect.
type Router struct {
	presence ports.PresenceRegistry
	rooms    ports.RoomRegistry
	store    ports.NotificationRepository
	logger   *slog.Logger

	// mu protects the logical clock and per-scope sequence counters. Counters
	// are kept for the process lifetime: evicting a quiet scope would restart
	// its sequence at 1 if traffic resumed, breaking monotonic ordering for
	// consumers that compare sequence numbers. Each entry is one uint64 plus a
	// mutex per user or room ever routed, negligible next to the connection
	// state those scopes already carry.
	mu    sync.Mutex
	clock uint64
	seqs  map[string]uint64

	// scopeLocks serializes stamp+dispatch per target scope so events
	// committed to the same room (or user) are enqueued in sequence order.
	// The lock is released before any durable write. Retained with seqs.
	scopeMu    sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

// Ensure Router implements the EventRouter interface.
var _ ports.EventRouter = (*Router)(nil)

// NewRouter creates a new event router.
func NewRouter(
	presence ports.PresenceRegistry,
	rooms ports.RoomRegistry,
	store ports.NotificationRepository,
	logger *slog.Logger,
) *Router {
	return &Router{
		presence:   presence,
		rooms:      rooms,
		store:      store,
		logger:     logger.With("component", "event_router"),
		seqs:       make(map[string]uint64),
		scopeLocks: make(map[string]*sync.Mutex),
	}
}

// notificationEnvelope is the optional structured part of an event payload
// used to render the durable notification row.
type notificationEnvelope struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Emit validates, constructs and routes a new event.
func (r *Router) Emit(ctx context.Context, params ports.EmitParams) (domain.RouteOutcome, error) {
	payload := params.Payload
	if payload == nil && (params.Title != "" || params.Message != "") {
		raw, err := json.Marshal(notificationEnvelope{Title: params.Title, Message: params.Message})
		if err != nil {
			return domain.RouteOutcome{}, apperrors.NewInternalError(err)
		}
		payload = raw
	}

	event, err := domain.NewEvent(domain.NewEventParams{
		Type:         params.Type,
		SourceUserID: params.SourceUserID,
		TargetUserID: params.TargetUserID,
		RoomKey:      params.RoomKey,
		Payload:      payload,
	})
	if err != nil {
		return domain.RouteOutcome{}, apperrors.NewMalformedEventError(err)
	}
	return r.Route(ctx, event)
}

// Route dispatches an event. Live delivery is at-least-once relative to the
// durable store: a failed write-through after a successful send is reported
// as a persistence-degraded outcome, never rolled back.
func (r *Router) Route(ctx context.Context, event domain.Event) (domain.RouteOutcome, error) {
	if err := event.Validate(); err != nil {
		return domain.RouteOutcome{}, apperrors.NewMalformedEventError(err)
	}

	scope := event.Scope()
	lock := r.scopeLock(scope)

	// Stamp and dispatch under the scope lock: enqueue order equals
	// sequence order for every observer of this scope. Enqueue is
	// non-blocking, so the lock never waits on the network.
	lock.Lock()
	r.stamp(&event, scope)

	outcome := domain.RouteOutcome{Event: event}
	var offline []uuid.UUID
	var live []uuid.UUID

	if event.IsDirect() {
		result, n := r.presence.SendToUser(*event.TargetUserID, event)
		outcome.Delivery = result
		outcome.DeliveredCount = n
	} else {
		members := r.rooms.Members(event.RoomKey)
		delivered := r.rooms.Broadcast(event.RoomKey, event, &event.SourceUserID)
		outcome.DeliveredCount = delivered
		if delivered > 0 {
			outcome.Delivery = domain.Delivered
		} else {
			outcome.Delivery = domain.NoConnection
		}
		for _, member := range members {
			if member == event.SourceUserID {
				continue
			}
			if r.presence.IsOnline(member) {
				live = append(live, member)
			} else {
				offline = append(offline, member)
			}
		}
	}
	lock.Unlock()

	// Durable write-through happens outside every lock.
	recipients := r.durableRecipients(event, offline, live)
	degraded := false
	for _, userID := range recipients {
		id, err := r.persist(ctx, event, userID)
		if err != nil {
			degraded = true
			r.logger.Error("notification write-through failed",
				"event_id", event.ID,
				"user_id", userID,
				"error", err,
			)
			continue
		}
		outcome.NotificationIDs = append(outcome.NotificationIDs, id)
	}

	if degraded {
		outcome.PersistenceDegraded = true
		return outcome, fmt.Errorf("route event %s: %w", event.ID, apperrors.ErrPersistenceDegraded)
	}
	return outcome, nil
}

// durableRecipients decides who gets a notification row.
//
// Direct events: the target, for notification-worthy types, regardless of
// delivery result. Room events: every offline member, plus online members
// when the type demands a durable record even after live delivery (the
// notification center is the system of record for explicit notifications).
func (r *Router) durableRecipients(event domain.Event, offline, live []uuid.UUID) []uuid.UUID {
	if event.IsDirect() {
		if event.Type.IsNotificationWorthy() {
			return []uuid.UUID{*event.TargetUserID}
		}
		return nil
	}

	if event.Type == domain.EventPresenceChange {
		return nil
	}

	recipients := append([]uuid.UUID(nil), offline...)
	if event.Type.IsDurable() {
		recipients = append(recipients, live...)
	}
	return recipients
}

func (r *Router) persist(ctx context.Context, event domain.Event, userID uuid.UUID) (uuid.UUID, error) {
	var env notificationEnvelope
	if len(event.Payload) > 0 {
		// Best effort: payloads without an envelope fall back to a
		// type-derived title.
		_ = json.Unmarshal(event.Payload, &env)
	}

	n, err := domain.NewNotificationFromEvent(event, userID, env.Title, env.Message)
	if err != nil {
		return uuid.Nil, err
	}

	stored, created, err := r.store.CreateIfAbsent(ctx, n)
	if err != nil {
		return uuid.Nil, err
	}
	if !created {
		r.logger.Debug("duplicate delivery suppressed",
			"event_id", event.ID,
			"notification_id", stored.ID,
		)
	}
	return stored.ID, nil
}

// HandlePresenceChange is the hook wired into the presence registry. It fans
// a presence_change event out to every room the user belongs to.
func (r *Router) HandlePresenceChange(userID uuid.UUID, online bool) {
	payload, err := json.Marshal(domain.PresenceChangePayload{
		UserID:   userID,
		Online:   online,
		LastSeen: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	for _, roomKey := range r.rooms.RoomsOf(userID) {
		event, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventPresenceChange,
			SourceUserID: userID,
			RoomKey:      roomKey,
			Payload:      payload,
		})
		if err != nil {
			continue
		}
		if _, err := r.Route(context.Background(), event); err != nil {
			r.logger.Warn("presence change routing failed",
				"user_id", userID,
				"room_key", roomKey,
				"error", err,
			)
		}
	}
}

// stamp assigns the logical timestamp and per-scope sequence number.
// Callers hold the scope lock.
func (r *Router) stamp(event *domain.Event, scope string) {
	r.mu.Lock()
	r.clock++
	r.seqs[scope]++
	event.CreatedAt = r.clock
	event.Sequence = r.seqs[scope]
	r.mu.Unlock()
}

func (r *Router) scopeLock(scope string) *sync.Mutex {
	r.scopeMu.Lock()
	defer r.scopeMu.Unlock()
	lock, ok := r.scopeLocks[scope]
	if !ok {
		lock = &sync.Mutex{}
		r.scopeLocks[scope] = lock
	}
	return lock
}
