package polling_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/pkg/polling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sourceFunc adapts a function to polling.Source.
type sourceFunc func(ctx context.Context) (*polling.Feed, error)

func (f sourceFunc) Fetch(ctx context.Context) (*polling.Feed, error) { return f(ctx) }

func testConfig() polling.Config {
	return polling.Config{
		BaseInterval:  10 * time.Millisecond,
		MaxInterval:   40 * time.Millisecond,
		SeenCacheSize: 16,
	}
}

func unreadNotification(userID uuid.UUID) polling.Notification {
	return polling.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      "message",
		Title:     "New message",
		CreatedAt: time.Now().UTC(),
	}
}

func TestClient_Sync_Reconciliation(t *testing.T) {
	userID := uuid.New()
	first := unreadNotification(userID)
	second := unreadNotification(userID)
	serverFeed := &polling.Feed{
		Notifications: []polling.Notification{first, second},
		UnreadCount:   2,
		ServerTime:    time.Now().UTC(),
	}

	client, err := polling.NewClient(sourceFunc(func(ctx context.Context) (*polling.Feed, error) {
		return serverFeed, nil
	}), testConfig())
	require.NoError(t, err)

	sessionRead := map[uuid.UUID]bool{first.ID: true}
	view, err := client.Sync(context.Background(), sessionRead)
	require.NoError(t, err)

	// Session read state is overlaid on the view only.
	require.Len(t, view.Notifications, 2)
	assert.True(t, view.Notifications[0].IsRead)
	assert.False(t, view.Notifications[1].IsRead)
	assert.Equal(t, 1, view.UnreadCount)
	assert.Equal(t, serverFeed.ServerTime, view.LastChecked)
	assert.Equal(t, serverFeed.ServerTime, client.LastChecked())

	// The server rows themselves are untouched.
	assert.False(t, serverFeed.Notifications[0].IsRead)
	assert.Equal(t, 2, serverFeed.UnreadCount)
}

func TestClient_Sync_NewArrivals(t *testing.T) {
	userID := uuid.New()
	first := unreadNotification(userID)

	var mu sync.Mutex
	feed := &polling.Feed{
		Notifications: []polling.Notification{first},
		UnreadCount:   1,
		ServerTime:    time.Now().UTC(),
	}

	client, err := polling.NewClient(sourceFunc(func(ctx context.Context) (*polling.Feed, error) {
		mu.Lock()
		defer mu.Unlock()
		copied := *feed
		return &copied, nil
	}), testConfig())
	require.NoError(t, err)

	view, err := client.Sync(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, view.NewArrivals, 1)
	assert.Equal(t, first.ID, view.NewArrivals[0].ID)

	// Same feed again: nothing re-alerts.
	view, err = client.Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, view.NewArrivals)

	// A fresh notification is the only arrival.
	newcomer := unreadNotification(userID)
	mu.Lock()
	feed.Notifications = append(feed.Notifications, newcomer)
	feed.UnreadCount = 2
	mu.Unlock()

	view, err = client.Sync(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, view.NewArrivals, 1)
	assert.Equal(t, newcomer.ID, view.NewArrivals[0].ID)
}

func TestClient_Sync_RateLimitBackoff(t *testing.T) {
	userID := uuid.New()
	goodFeed := &polling.Feed{
		Notifications: []polling.Notification{unreadNotification(userID)},
		UnreadCount:   1,
		ServerTime:    time.Now().UTC(),
	}

	var mu sync.Mutex
	limited := false
	client, err := polling.NewClient(sourceFunc(func(ctx context.Context) (*polling.Feed, error) {
		mu.Lock()
		defer mu.Unlock()
		if limited {
			return nil, &polling.RateLimitError{RetryAfter: time.Second}
		}
		return goodFeed, nil
	}), testConfig())
	require.NoError(t, err)

	// Establish state with one successful sync.
	_, err = client.Sync(context.Background(), nil)
	require.NoError(t, err)
	checked := client.LastChecked()

	mu.Lock()
	limited = true
	mu.Unlock()

	cfg := testConfig()
	for i := 0; i < 50; i++ {
		_, err := client.Sync(context.Background(), nil)
		require.ErrorIs(t, err, polling.ErrRateLimited)

		// The interval grows but never exceeds the cap, and client state
		// is never abandoned.
		interval := client.NextInterval()
		assert.GreaterOrEqual(t, interval, cfg.BaseInterval)
		assert.LessOrEqual(t, interval, cfg.MaxInterval)
		assert.Equal(t, checked, client.LastChecked())
	}

	// Recovery resets the interval to the base.
	mu.Lock()
	limited = false
	mu.Unlock()

	view, err := client.Sync(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, view.NewArrivals)
	assert.Equal(t, cfg.BaseInterval, client.NextInterval())
}

func TestClient_Sync_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	var calls int32
	client, err := polling.NewClient(sourceFunc(func(ctx context.Context) (*polling.Feed, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return &polling.Feed{ServerTime: time.Now().UTC()}, nil
	}), testConfig())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := client.Sync(context.Background(), nil)
		done <- err
	}()

	<-started
	_, err = client.Sync(context.Background(), nil)
	assert.ErrorIs(t, err, polling.ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)

	// A finished sync no longer suppresses the next one.
	_, err = client.Sync(context.Background(), nil)
	assert.NoError(t, err)
}
