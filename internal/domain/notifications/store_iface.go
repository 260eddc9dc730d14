package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, tenantID, userID, ntype, title, body string) error
	ListNotifications(ctx context.Context, tenantID, userID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, tenantID, userID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, tenantID, userID, notificationID string) error
	// MarkAllRead stamps every unread notification and reports how many changed.
	MarkAllRead(ctx context.Context, tenantID, userID string) (int, error)
	EmailSettings(ctx context.Context, tenantID string) (Settings, error)
	UpdateSettings(ctx context.Context, tenantID string, settings Settings) error
}

// EmailLookup resolves a recipient's address.
type EmailLookup interface {
	ApproverEmail(ctx context.Context, tenantID, userID string) (string, error)
}
