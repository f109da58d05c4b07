package mocks

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// FakeConnection is an in-memory ports.Connection that records every enqueued
// event in order. Used to assert delivery and ordering without a socket.
type FakeConnection struct {
	id     uuid.UUID
	userID uuid.UUID

	mu        sync.Mutex
	events    []domain.Event
	closed    bool
	lastBeat  time.Time
	queueSize int // 0 means unbounded
}

var _ ports.Connection = (*FakeConnection)(nil)

// NewFakeConnection creates an open fake connection for the user.
func NewFakeConnection(userID uuid.UUID) *FakeConnection {
	return &FakeConnection{
		id:       uuid.New(),
		userID:   userID,
		lastBeat: time.Now(),
	}
}

// WithQueueSize bounds the fake's queue to exercise overflow behavior.
func (c *FakeConnection) WithQueueSize(n int) *FakeConnection {
	c.queueSize = n
	return c
}

func (c *FakeConnection) ID() uuid.UUID     { return c.id }
func (c *FakeConnection) UserID() uuid.UUID { return c.userID }

func (c *FakeConnection) Enqueue(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return apperrors.ErrAlreadyClosed
	}
	if c.queueSize > 0 && len(c.events) >= c.queueSize {
		return apperrors.ErrQueueOverflow
	}
	c.events = append(c.events, event)
	return nil
}

func (c *FakeConnection) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *FakeConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *FakeConnection) Touch() {
	c.mu.Lock()
	c.lastBeat = time.Now()
	c.mu.Unlock()
}

// SetLastHeartbeat backdates the heartbeat to exercise the staleness sweep.
func (c *FakeConnection) SetLastHeartbeat(t time.Time) {
	c.mu.Lock()
	c.lastBeat = t
	c.mu.Unlock()
}

func (c *FakeConnection) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastBeat
}

// Events returns a copy of the events enqueued so far, in order.
func (c *FakeConnection) Events() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Event, len(c.events))
	copy(out, c.events)
	return out
}
