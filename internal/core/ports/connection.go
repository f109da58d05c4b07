package ports

import (
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
)

// Connection is a single live duplex channel to one user. A user may hold
// several at once (multiple tabs/devices). Implementations own a bounded
// outbound queue; Enqueue never blocks on the network.
//
// The presence registry owns a connection for its registered lifetime. Closed
// connections are removed, never reused.
type Connection interface {
	// ID uniquely identifies this physical channel.
	ID() uuid.UUID

	// UserID identifies the authenticated owner of the channel.
	UserID() uuid.UUID

	// Enqueue places an event on the connection's outbound queue. It returns
	// ErrAlreadyClosed if the connection is terminated and ErrQueueOverflow
	// if the bounded queue is full. It never blocks on a slow peer.
	Enqueue(event domain.Event) error

	// Close terminates the connection and cancels all pending sends.
	// Safe to call more than once.
	Close()

	// Closed reports whether the connection has been terminated.
	Closed() bool

	// Touch records that the peer was just heard from.
	Touch()

	// LastHeartbeat returns the time the peer was last heard from.
	LastHeartbeat() time.Time
}
