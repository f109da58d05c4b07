package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// userEntry holds one user's connection set. Each entry carries its own lock
// so that one user's connection churn never blocks another's.
type userEntry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]ports.Connection
}

// PresenceConfig holds presence registry configuration.
type PresenceConfig struct {
	// HeartbeatTimeout bounds presence staleness: a connection silent for
	// longer than this is unregistered by the sweep.
	HeartbeatTimeout time.Duration

	// SweepInterval is how often the staleness sweep runs.
	SweepInterval time.Duration
}

// DefaultPresenceConfig returns a sensible default configuration.
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		HeartbeatTimeout: 30 * time.Second,
		SweepInterval:    10 * time.Second,
	}
}

// Presence maps users to their live connections and tracks online/offline
// state. It owns registered connections for their lifetime.
type Presence struct {
	// mu protects the users and index maps, never held across a send.
	mu    sync.RWMutex
	users map[uuid.UUID]*userEntry
	index map[uuid.UUID]uuid.UUID // connection id -> user id

	hook ports.PresenceHook
	cfg  PresenceConfig

	logger *slog.Logger
}

// Ensure Presence implements the PresenceRegistry interface.
var _ ports.PresenceRegistry = (*Presence)(nil)

// NewPresence creates a new presence registry. The hook may be nil.
func NewPresence(cfg PresenceConfig, logger *slog.Logger) *Presence {
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultPresenceConfig().HeartbeatTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = cfg.HeartbeatTimeout / 3
	}
	return &Presence{
		users:  make(map[uuid.UUID]*userEntry),
		index:  make(map[uuid.UUID]uuid.UUID),
		cfg:    cfg,
		logger: logger.With("component", "presence_registry"),
	}
}

// SetPresenceHook installs the callback fired on online/offline transitions.
// Must be called before connections register.
func (p *Presence) SetPresenceHook(hook ports.PresenceHook) {
	p.hook = hook
}

// Register adds a connection to its user's connection set and marks the user
// online if it was the first one.
func (p *Presence) Register(conn ports.Connection) (uuid.UUID, error) {
	if conn.Closed() {
		return uuid.Nil, apperrors.ErrAlreadyClosed
	}

	userID := conn.UserID()

	p.mu.Lock()
	entry, ok := p.users[userID]
	if !ok {
		entry = &userEntry{conns: make(map[uuid.UUID]ports.Connection)}
		p.users[userID] = entry
	}
	p.index[conn.ID()] = userID

	// The connection must land in the entry before p.mu is released.
	// Otherwise a concurrent Unregister of the user's last other connection
	// could pass its emptiness re-check in that window and delete the entry
	// from the users map, leaving this connection registered but invisible.
	entry.mu.Lock()
	entry.conns[conn.ID()] = conn
	first := len(entry.conns) == 1
	entry.mu.Unlock()
	p.mu.Unlock()

	p.logger.Info("connection registered",
		"user_id", userID,
		"connection_id", conn.ID(),
	)

	if first && p.hook != nil {
		p.hook(userID, true)
	}
	return conn.ID(), nil
}

// Unregister removes the connection, closes it, and marks the user offline if
// it was their last one.
func (p *Presence) Unregister(connID uuid.UUID) {
	p.mu.Lock()
	userID, ok := p.index[connID]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.index, connID)
	entry := p.users[userID]
	p.mu.Unlock()

	if entry == nil {
		return
	}

	entry.mu.Lock()
	conn, had := entry.conns[connID]
	delete(entry.conns, connID)
	last := had && len(entry.conns) == 0
	entry.mu.Unlock()

	if !had {
		return
	}

	// Closing cancels all pending sends queued on this connection.
	conn.Close()

	if last {
		p.mu.Lock()
		// Re-check under the map lock: a new connection may have arrived.
		entry.mu.RLock()
		empty := len(entry.conns) == 0
		entry.mu.RUnlock()
		if empty {
			delete(p.users, userID)
		}
		p.mu.Unlock()

		if empty {
			p.logger.Info("user offline", "user_id", userID)
			if p.hook != nil {
				p.hook(userID, false)
			}
		}
	}
}

// Heartbeat records liveness for a connection. Unknown ids are ignored.
func (p *Presence) Heartbeat(connID uuid.UUID) {
	if conn := p.lookup(connID); conn != nil {
		conn.Touch()
	}
}

// IsOnline reports whether the user has at least one live connection.
func (p *Presence) IsOnline(userID uuid.UUID) bool {
	p.mu.RLock()
	entry, ok := p.users[userID]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return len(entry.conns) > 0
}

// ConnectionCount returns the number of live connections for a user.
func (p *Presence) ConnectionCount(userID uuid.UUID) int {
	p.mu.RLock()
	entry, ok := p.users[userID]
	p.mu.RUnlock()
	if !ok {
		return 0
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return len(entry.conns)
}

// SendToUser fans the event out to all of the user's connections. Each send
// is independent: an overflowed connection is disconnected without affecting
// delivery to the others.
func (p *Presence) SendToUser(userID uuid.UUID, event domain.Event) (domain.DeliveryResult, int) {
	p.mu.RLock()
	entry, ok := p.users[userID]
	p.mu.RUnlock()
	if !ok {
		return domain.NoConnection, 0
	}

	// Snapshot the connection list so no lock is held across Enqueue.
	entry.mu.RLock()
	conns := make([]ports.Connection, 0, len(entry.conns))
	for _, c := range entry.conns {
		conns = append(conns, c)
	}
	entry.mu.RUnlock()

	delivered := 0
	var overflowed []uuid.UUID
	for _, conn := range conns {
		err := conn.Enqueue(event)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, apperrors.ErrQueueOverflow):
			// Bounded queue full: the client is too slow, drop it.
			p.logger.Warn("send queue overflow, disconnecting",
				"user_id", userID,
				"connection_id", conn.ID(),
			)
			overflowed = append(overflowed, conn.ID())
		default:
			// Already closed, the sweep or the read pump will reap it.
		}
	}

	// Unregister asynchronously: SendToUser may run under a room lock and
	// unregistering can re-enter the room registry via the presence hook.
	for _, id := range overflowed {
		go p.Unregister(id)
	}

	if delivered == 0 {
		return domain.NoConnection, 0
	}
	return domain.Delivered, delivered
}

// Run starts the heartbeat staleness sweep and blocks until the context is
// cancelled. The sweep runs off the send hot path.
func (p *Presence) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep unregisters every connection whose last heartbeat is older than the
// configured timeout.
func (p *Presence) sweep() {
	cutoff := time.Now().Add(-p.cfg.HeartbeatTimeout)

	p.mu.RLock()
	entries := make([]*userEntry, 0, len(p.users))
	for _, e := range p.users {
		entries = append(entries, e)
	}
	p.mu.RUnlock()

	var stale []uuid.UUID
	for _, entry := range entries {
		entry.mu.RLock()
		for id, conn := range entry.conns {
			if conn.LastHeartbeat().Before(cutoff) {
				stale = append(stale, id)
			}
		}
		entry.mu.RUnlock()
	}

	for _, id := range stale {
		p.logger.Info("heartbeat timeout", "connection_id", id)
		p.Unregister(id)
	}
}

func (p *Presence) lookup(connID uuid.UUID) ports.Connection {
	p.mu.RLock()
	userID, ok := p.index[connID]
	if !ok {
		p.mu.RUnlock()
		return nil
	}
	entry := p.users[userID]
	p.mu.RUnlock()
	if entry == nil {
		return nil
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.conns[connID]
}
