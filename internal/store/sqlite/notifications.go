package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"leaveflow/internal/domain/notifications"
)

// NotificationStore implements notifications.StoreAPI.
type NotificationStore struct {
	db *sql.DB
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) CreateNotification(ctx context.Context, tenantID, userID, ntype, title, body string) error {
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO notifications (id, tenant_id, user_id, type, title, body, created_at)
    VALUES (?,?,?,?,?,?,?)`, newID(), tenantID, userID, ntype, title, body, utcNow())
	return err
}

func (s *NotificationStore) ListNotifications(ctx context.Context, tenantID, userID string, unreadOnly bool, limit, offset int) ([]notifications.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
    SELECT id, type, title, body, read_at, created_at
    FROM notifications
    WHERE tenant_id = ? AND user_id = ? AND (? = 0 OR read_at IS NULL)
    ORDER BY created_at DESC
    LIMIT ? OFFSET ?`, tenantID, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notifications.Notification
	for rows.Next() {
		var n notifications.Notification
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.ReadAt = nullTime(readAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *NotificationStore) CountNotifications(ctx context.Context, tenantID, userID string, unreadOnly bool) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
    SELECT COUNT(1) FROM notifications
    WHERE tenant_id = ? AND user_id = ? AND (? = 0 OR read_at IS NULL)`, tenantID, userID, unreadOnly).Scan(&total)
	return total, err
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
    UPDATE notifications SET read_at = ?
    WHERE tenant_id = ? AND user_id = ? AND read_at IS NULL`, utcNow(), tenantID, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *NotificationStore) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	res, err := s.db.ExecContext(ctx, `
    UPDATE notifications SET read_at = COALESCE(read_at, ?)
    WHERE tenant_id = ? AND user_id = ? AND id = ?`, utcNow(), tenantID, userID, notificationID)
	return affected(res, err, notifications.ErrNotFound)
}

func (s *NotificationStore) EmailSettings(ctx context.Context, tenantID string) (notifications.Settings, error) {
	var settings notifications.Settings
	var from sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT email_notifications_enabled, email_from FROM tenant_settings WHERE tenant_id = ?",
		tenantID).Scan(&settings.EmailEnabled, &from)
	if errors.Is(err, sql.ErrNoRows) {
		return notifications.Settings{}, nil
	}
	settings.EmailFrom = from.String
	return settings, err
}

func (s *NotificationStore) UpdateSettings(ctx context.Context, tenantID string, settings notifications.Settings) error {
	var from any
	if settings.EmailFrom != "" {
		from = settings.EmailFrom
	}
	_, err := s.db.ExecContext(ctx, `
    INSERT INTO tenant_settings (tenant_id, email_notifications_enabled, email_from, updated_at)
    VALUES (?,?,?,?)
    ON CONFLICT (tenant_id) DO UPDATE
      SET email_notifications_enabled = excluded.email_notifications_enabled,
          email_from = excluded.email_from,
          updated_at = excluded.updated_at`,
		tenantID, settings.EmailEnabled, from, utcNow())
	return err
}
