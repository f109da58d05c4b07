// Package polling implements the reconciliation fallback for clients without
// a live connection. It periodically fetches the server-authoritative
// notification feed, overlays session-local read state, and tracks which
// notifications are new since the previous poll.
package polling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrSyncInProgress is returned when Sync is called while another sync
	// is still running. The caller keeps its current view and retries after
	// NextInterval.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrRateLimited is returned when the server throttled the sync. The
	// client backs off; its feed state is untouched.
	ErrRateLimited = errors.New("sync rate limited by server")
)

// Notification mirrors the server's notification record.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feed is the raw server response for one sync.
type Feed struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
	ServerTime    time.Time      `json:"serverTime"`
}

// ReconciledFeed is the client-side view after one successful sync. Session
// read overlays are applied to the view only; the server rows are not
// modified.
type ReconciledFeed struct {
	Notifications []Notification
	UnreadCount   int

	// NewArrivals are notifications first seen by this client instance.
	// Re-fetching a known notification never re-alerts.
	NewArrivals []Notification

	// LastChecked is the server time of the sync that produced this view.
	LastChecked time.Time
}

// Source fetches the feed from the server. Implementations must return
// ErrRateLimited (possibly wrapped) when throttled.
type Source interface {
	Fetch(ctx context.Context) (*Feed, error)
}

// Config controls poll pacing and arrival tracking.
type Config struct {
	// BaseInterval is the steady-state poll interval and the backoff floor.
	BaseInterval time.Duration

	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration

	// SeenCacheSize bounds the id set used for NewArrivals detection.
	SeenCacheSize int

	// RandomizationFactor spreads poll times across clients. Zero gives
	// deterministic intervals.
	RandomizationFactor float64
}

// DefaultConfig returns the standard poll pacing.
func DefaultConfig() Config {
	return Config{
		BaseInterval:  5 * time.Minute,
		MaxInterval:   15 * time.Minute,
		SeenCacheSize: 512,
	}
}

// Client polls the notification feed with capped exponential backoff on
// failure. All methods are safe for concurrent use.
type Client struct {
	source Source

	mu      sync.Mutex
	syncing bool

	// seen tracks notification ids already surfaced as arrivals.
	seen *lru.Cache[uuid.UUID, struct{}]

	backoff *backoff.ExponentialBackOff

	// next is the wait before the next poll attempt. Reset to the base
	// interval on success, grown by the backoff on failure.
	next time.Duration

	lastChecked time.Time
	cfg         Config
}

// NewClient creates a polling client over the given source.
func NewClient(source Source, cfg Config) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = def.BaseInterval
	}
	if cfg.MaxInterval < cfg.BaseInterval {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.SeenCacheSize <= 0 {
		cfg.SeenCacheSize = def.SeenCacheSize
	}

	seen, err := lru.New[uuid.UUID, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseInterval
	bo.MaxInterval = cfg.MaxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = cfg.RandomizationFactor
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &Client{
		source:  source,
		seen:    seen,
		backoff: bo,
		next:    cfg.BaseInterval,
		cfg:     cfg,
	}, nil
}

// Sync fetches the feed once and reconciles it with session-local read state.
// Notification ids in sessionReadIDs are presented as read in the returned
// view; the server is not told about them here.
//
// A failed fetch grows the poll interval up to the cap and leaves all client
// state exactly as it was. Polling is never abandoned.
func (c *Client) Sync(ctx context.Context, sessionReadIDs map[uuid.UUID]bool) (*ReconciledFeed, error) {
	c.mu.Lock()
	if c.syncing {
		c.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	c.syncing = true
	c.mu.Unlock()

	feed, err := c.source.Fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncing = false

	if err != nil {
		c.next = c.backoff.NextBackOff()
		if c.next > c.cfg.MaxInterval {
			c.next = c.cfg.MaxInterval
		}
		return nil, err
	}

	c.backoff.Reset()
	c.next = c.cfg.BaseInterval
	c.lastChecked = feed.ServerTime

	return c.reconcile(feed, sessionReadIDs), nil
}

// reconcile overlays session read state and computes new arrivals. Caller
// holds c.mu.
func (c *Client) reconcile(feed *Feed, sessionReadIDs map[uuid.UUID]bool) *ReconciledFeed {
	view := &ReconciledFeed{
		Notifications: make([]Notification, 0, len(feed.Notifications)),
		UnreadCount:   feed.UnreadCount,
		LastChecked:   feed.ServerTime,
	}

	for _, n := range feed.Notifications {
		if !n.IsRead && sessionReadIDs[n.ID] {
			n.IsRead = true
			view.UnreadCount--
		}
		view.Notifications = append(view.Notifications, n)

		if _, known := c.seen.Get(n.ID); !known {
			c.seen.Add(n.ID, struct{}{})
			view.NewArrivals = append(view.NewArrivals, n)
		}
	}

	if view.UnreadCount < 0 {
		view.UnreadCount = 0
	}

	return view
}

// NextInterval returns the wait before the next poll attempt.
func (c *Client) NextInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// LastChecked returns the server time of the last successful sync, zero if
// none has succeeded yet.
func (c *Client) LastChecked() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastChecked
}
