package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
)

// NotificationRepository is the durable store for notifications, keyed by
// (user_id, id).
type NotificationRepository interface {
	// CreateIfAbsent inserts the notification unless a row with the same
	// (user_id, id) already exists, in which case the existing row is
	// returned untouched with created=false. This is the dedup boundary
	// that makes event re-delivery safe.
	CreateIfAbsent(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error)

	// MarkRead flags the notification as read. It returns
	// ErrNotificationNotFound if absent and is idempotent when already read.
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error

	// MarkAllRead flags every unread notification for the user and returns
	// how many rows changed.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)

	// Delete removes the notification. It returns ErrNotificationNotFound
	// if absent.
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error

	// List returns the user's notifications matching the filter, newest
	// first.
	List(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]*domain.Notification, error)

	// CountUnread returns the number of unread notifications for the user.
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)

	// DeleteExpired removes notifications created before the cutoff and
	// returns how many rows were deleted. Used by retention maintenance.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
