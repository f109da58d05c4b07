package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/domain"
	apperrors "github.com/sprauser-coder/Cataloro-sub005/internal/core/errors"
	"github.com/sprauser-coder/Cataloro-sub005/internal/core/ports"
)

// NotificationRepository is the secondary adapter for notification
// persistence. (user_id, id) is the primary key; inserts of an existing key
// are ignored, which makes event re-delivery safe.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// Ensure NotificationRepository implements the ports.NotificationRepository interface.
var _ ports.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(pool *pgxpool.Pool) ports.NotificationRepository {
	return &NotificationRepository{pool: pool}
}

type dbNotification struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	Type      string
	Title     string
	Message   string
	IsRead    bool
	CreatedAt pgtype.Timestamptz
}

func mapDBNotificationToDomain(row dbNotification) *domain.Notification {
	return &domain.Notification{
		ID:        row.ID.Bytes,
		UserID:    row.UserID.Bytes,
		Type:      domain.EventType(row.Type),
		Title:     row.Title,
		Message:   row.Message,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt.Time,
	}
}

const createIfAbsentSQL = `
INSERT INTO notifications (id, user_id, type, title, message, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, id) DO NOTHING
RETURNING id, user_id, type, title, message, is_read, created_at`

const getNotificationSQL = `
SELECT id, user_id, type, title, message, is_read, created_at
FROM notifications
WHERE user_id = $1 AND id = $2`

// CreateIfAbsent inserts the notification unless the (user_id, id) key
// already exists; in that case the existing row is returned untouched.
func (r *NotificationRepository) CreateIfAbsent(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var row dbNotification
	err := r.pool.QueryRow(ctx, createIfAbsentSQL,
		pgtype.UUID{Bytes: n.ID, Valid: true},
		pgtype.UUID{Bytes: n.UserID, Valid: true},
		string(n.Type),
		n.Title,
		n.Message,
		n.IsRead,
		pgtype.Timestamptz{Time: createdAt, Valid: true},
	).Scan(&row.ID, &row.UserID, &row.Type, &row.Title, &row.Message, &row.IsRead, &row.CreatedAt)

	if err == nil {
		return mapDBNotificationToDomain(row), true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Conflict: RETURNING yields no row, fetch the existing record.
	err = r.pool.QueryRow(ctx, getNotificationSQL,
		pgtype.UUID{Bytes: n.UserID, Valid: true},
		pgtype.UUID{Bytes: n.ID, Valid: true},
	).Scan(&row.ID, &row.UserID, &row.Type, &row.Title, &row.Message, &row.IsRead, &row.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	return mapDBNotificationToDomain(row), false, nil
}

// MarkRead flags the notification as read. Idempotent when already read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND id = $2`,
		pgtype.UUID{Bytes: userID, Valid: true},
		pgtype.UUID{Bytes: notificationID, Valid: true},
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flags every unread notification for the user.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`,
		pgtype.UUID{Bytes: userID, Valid: true},
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes the notification.
func (r *NotificationRepository) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND id = $2`,
		pgtype.UUID{Bytes: userID, Valid: true},
		pgtype.UUID{Bytes: notificationID, Valid: true},
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotificationNotFound
	}
	return nil
}

// List returns the user's notifications matching the filter, newest first.
func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]*domain.Notification, error) {
	query := `
SELECT id, user_id, type, title, message, is_read, created_at
FROM notifications
WHERE user_id = $1`

	switch filter {
	case domain.FilterUnread:
		query += ` AND is_read = FALSE`
	case domain.FilterRead:
		query += ` AND is_read = TRUE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		var row dbNotification
		if err := rows.Scan(&row.ID, &row.UserID, &row.Type, &row.Title, &row.Message, &row.IsRead, &row.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, mapDBNotificationToDomain(row))
	}
	return notifications, rows.Err()
}

// CountUnread returns the number of unread notifications for the user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		pgtype.UUID{Bytes: userID, Valid: true},
	).Scan(&count)
	return count, err
}

// DeleteExpired removes notifications created before the cutoff.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`,
		pgtype.Timestamptz{Time: before, Valid: true},
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
