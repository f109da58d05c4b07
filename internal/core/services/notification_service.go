package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// NotificationService implements the client-facing notification feed over the
// durable store.
type NotificationService struct {
	store  ports.NotificationRepository
	logger *slog.Logger
}

var _ ports.NotificationService = (*NotificationService)(nil)

// NewNotificationService creates a new notification service.
func NewNotificationService(store ports.NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:  store,
		logger: logger.With("component", "notification_service"),
	}
}

// List returns the user's notifications matching the filter, newest first.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	if filter == "" {
		filter = domain.FilterAll
	}
	if !filter.IsValid() {
		return nil, domain.ErrUnknownFilter
	}
	return s.store.List(ctx, userID, filter)
}

// CountUnread returns the user's unread count.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead flags a notification as read. Server state is authoritative once
// confirmed; a subsequent sync returns the notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

// MarkAllRead flags every unread notification for the user.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// Delete removes a notification.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	return s.store.Delete(ctx, userID, notificationID)
}

// Sync serves the polling fallback: the full feed plus a server watermark the
// client uses to detect arrivals since its previous sync.
func (s *NotificationService) Sync(ctx context.Context, userID uuid.UUID) (*ports.SyncFeed, error) {
	notifications, err := s.store.List(ctx, userID, domain.FilterAll)
	if err != nil {
		return nil, err
	}
	unread := 0
	for _, n := range notifications {
		if !n.IsRead {
			unread++
		}
	}
	return &ports.SyncFeed{
		Notifications: notifications,
		UnreadCount:   unread,
		ServerTime:    time.Now().UTC(),
	}, nil
}
