package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/mocks"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/registry"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory ports.NotificationRepository with the same
// (user_id, id) conflict semantics as the Postgres adapter.
type memStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]map[uuid.UUID]*domain.Notification
	failing bool
}

var _ ports.NotificationRepository = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID]map[uuid.UUID]*domain.Notification)}
}

func (s *memStore) setFailing(failing bool) {
	s.mu.Lock()
	s.failing = failing
	s.mu.Unlock()
}

func (s *memStore) CreateIfAbsent(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, false, errors.New("connection refused")
	}
	user := s.rows[n.UserID]
	if user == nil {
		user = make(map[uuid.UUID]*domain.Notification)
		s.rows[n.UserID] = user
	}
	if existing, ok := user[n.ID]; ok {
		return existing, false, nil
	}
	stored := *n
	user[n.ID] = &stored
	return &stored, true, nil
}

func (s *memStore) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[userID][notificationID]
	if !ok {
		return apperrors.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (s *memStore) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for _, n := range s.rows[userID] {
		if !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (s *memStore) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[userID][notificationID]; !ok {
		return apperrors.ErrNotificationNotFound
	}
	delete(s.rows[userID], notificationID)
	return nil
}

func (s *memStore) List(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.rows[userID] {
		switch filter {
		case domain.FilterUnread:
			if n.IsRead {
				continue
			}
		case domain.FilterRead:
			if !n.IsRead {
				continue
			}
		}
		copied := *n
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memStore) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.rows[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for _, user := range s.rows {
		for id, n := range user {
			if n.CreatedAt.Before(before) {
				delete(user, id)
				deleted++
			}
		}
	}
	return deleted, nil
}

func (s *memStore) count(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows[userID])
}

// routerFixture wires a router over real registries and the in-memory store.
type routerFixture struct {
	presence *registry.Presence
	rooms    *registry.Rooms
	store    *memStore
	router   *services.Router
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	presence := registry.NewPresence(registry.PresenceConfig{}, testLogger())
	rooms := registry.NewRooms(presence, testLogger())
	store := newMemStore()
	router := services.NewRouter(presence, rooms, store, testLogger())
	presence.SetPresenceHook(router.HandlePresenceChange)
	return &routerFixture{presence: presence, rooms: rooms, store: store, router: router}
}

func (f *routerFixture) connect(t *testing.T, userID uuid.UUID) *mocks.FakeConnection {
	t.Helper()
	conn := mocks.NewFakeConnection(userID)
	_, err := f.presence.Register(conn)
	require.NoError(t, err)
	return conn
}

func TestRouter_Route_Malformed(t *testing.T) {
	f := newRouterFixture(t)
	target := uuid.New()

	t.Run("both destinations set", func(t *testing.T) {
		_, err := f.router.Route(context.Background(), domain.Event{
			ID:           uuid.New(),
			Type:         domain.EventMessage,
			SourceUserID: uuid.New(),
			TargetUserID: &target,
			RoomKey:      "listing:1",
		})

		assert.ErrorIs(t, err, apperrors.ErrMalformedEvent)
		assert.ErrorIs(t, err, domain.ErrAmbiguousDestination)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := f.router.Route(context.Background(), domain.Event{
			ID:           uuid.New(),
			Type:         domain.EventType("typo"),
			SourceUserID: uuid.New(),
			TargetUserID: &target,
		})

		assert.ErrorIs(t, err, apperrors.ErrMalformedEvent)
	})
}

func TestRouter_Route_Direct(t *testing.T) {
	t.Run("online target gets live delivery and a durable row", func(t *testing.T) {
		f := newRouterFixture(t)
		target := uuid.New()
		conn := f.connect(t, target)

		outcome, err := f.router.Emit(context.Background(), ports.EmitParams{
			Type:         domain.EventMessage,
			SourceUserID: uuid.New(),
			TargetUserID: &target,
			Title:        "New message",
			Message:      "hi",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.Delivered, outcome.Delivery)
		assert.Equal(t, 1, outcome.DeliveredCount)
		require.Len(t, outcome.NotificationIDs, 1)
		assert.Len(t, conn.Events(), 1)
		assert.Equal(t, 1, f.store.count(target))
	})

	t.Run("offline target gets only the durable row", func(t *testing.T) {
		f := newRouterFixture(t)
		target := uuid.New()

		outcome, err := f.router.Emit(context.Background(), ports.EmitParams{
			Type:         domain.EventMessage,
			SourceUserID: uuid.New(),
			TargetUserID: &target,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.NoConnection, outcome.Delivery)
		assert.Zero(t, outcome.DeliveredCount)
		assert.Len(t, outcome.NotificationIDs, 1)
		assert.Equal(t, 1, f.store.count(target))
	})

	t.Run("bid_placed never persists", func(t *testing.T) {
		f := newRouterFixture(t)
		target := uuid.New()
		f.connect(t, target)

		outcome, err := f.router.Emit(context.Background(), ports.EmitParams{
			Type:         domain.EventBidPlaced,
			SourceUserID: uuid.New(),
			TargetUserID: &target,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.Delivered, outcome.Delivery)
		assert.Empty(t, outcome.NotificationIDs)
		assert.Zero(t, f.store.count(target))
	})

	t.Run("re-routing the same event dedups the row", func(t *testing.T) {
		f := newRouterFixture(t)
		target := uuid.New()

		event, err := domain.NewEvent(domain.NewEventParams{
			Type:         domain.EventMessage,
			SourceUserID: uuid.New(),
			TargetUserID: &target,
		})
		require.NoError(t, err)

		first, err := f.router.Route(context.Background(), event)
		require.NoError(t, err)
		second, err := f.router.Route(context.Background(), event)
		require.NoError(t, err)

		assert.Equal(t, first.NotificationIDs, second.NotificationIDs)
		assert.Equal(t, 1, f.store.count(target))
	})
}

func TestRouter_Route_Room(t *testing.T) {
	t.Run("offline members get rows, online members do not", func(t *testing.T) {
		f := newRouterFixture(t)
		source := uuid.New()
		online := uuid.New()
		offline := uuid.New()

		onlineConn := f.connect(t, online)
		f.rooms.Subscribe("listing:1", source)
		f.rooms.Subscribe("listing:1", online)
		f.rooms.Subscribe("listing:1", offline)

		outcome, err := f.router.Emit(context.Background(), ports.EmitParams{
			Type:         domain.EventMessage,
			SourceUserID: source,
			RoomKey:      "listing:1",
		})

		require.NoError(t, err)
		assert.Equal(t, 1, outcome.DeliveredCount)
		assert.Len(t, onlineConn.Events(), 1)
		assert.Zero(t, f.store.count(online))
		assert.Equal(t, 1, f.store.count(offline))
		// The originator never notifies itself.
		assert.Zero(t, f.store.count(source))
	})

	t.Run("notification type persists for online members too", func(t *testing.T) {
		f := newRouterFixture(t)
		source := uuid.New()
		online := uuid.New()

		f.connect(t, online)
		f.rooms.Subscribe("listing:1", source)
		f.rooms.Subscribe("listing:1", online)

		_, err := f.router.Emit(context.Background(), ports.EmitParams{
			Type:         domain.EventNotification,
			SourceUserID: source,
			RoomKey:      "listing:1",
			Title:        "Listing updated",
		})

		require.NoError(t, err)
		assert.Equal(t, 1, f.store.count(online))
	})

	t.Run("per-room sequence is monotonic", func(t *testing.T) {
		f := newRouterFixture(t)
		source := uuid.New()
		member := uuid.New()
		conn := f.connect(t, member)
		f.rooms.Subscribe("listing:1", member)

		for i := 0; i < 3; i++ {
			_, err := f.router.Emit(context.Background(), ports.EmitParams{
				Type:         domain.EventBidPlaced,
				SourceUserID: source,
				RoomKey:      "listing:1",
			})
			require.NoError(t, err)
		}

		events := conn.Events()
		require.Len(t, events, 3)
		for i, ev := range events {
			assert.Equal(t, uint64(i+1), ev.Sequence)
		}
	})
}

func TestRouter_Route_PersistenceDegraded(t *testing.T) {
	f := newRouterFixture(t)
	target := uuid.New()
	conn := f.connect(t, target)
	f.store.setFailing(true)

	outcome, err := f.router.Emit(context.Background(), ports.EmitParams{
		Type:         domain.EventMessage,
		SourceUserID: uuid.New(),
		TargetUserID: &target,
	})

	// Live delivery is never rolled back.
	require.ErrorIs(t, err, apperrors.ErrPersistenceDegraded)
	assert.True(t, outcome.PersistenceDegraded)
	assert.Equal(t, domain.Delivered, outcome.Delivery)
	assert.Len(t, conn.Events(), 1)
	assert.Empty(t, outcome.NotificationIDs)
}

func TestRouter_HandlePresenceChange(t *testing.T) {
	f := newRouterFixture(t)
	watcher := uuid.New()
	leaver := uuid.New()

	watcherConn := f.connect(t, watcher)
	leaverID, err := f.presence.Register(mocks.NewFakeConnection(leaver))
	require.NoError(t, err)

	f.rooms.Subscribe("listing:1", watcher)
	f.rooms.Subscribe("listing:1", leaver)

	f.presence.Unregister(leaverID)

	var presenceEvents []domain.Event
	for _, ev := range watcherConn.Events() {
		if ev.Type == domain.EventPresenceChange {
			presenceEvents = append(presenceEvents, ev)
		}
	}
	require.Len(t, presenceEvents, 1)
	assert.Equal(t, leaver, presenceEvents[0].SourceUserID)

	// Presence changes are ephemeral, never persisted.
	assert.Zero(t, f.store.count(watcher))
}
