package notifications

import (
	"context"
	"errors"
	"log/slog"

	"leaveflow/internal/platform/events"
)

var ErrNotFound = errors.New("notification not found")

type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

type Service struct {
	store       StoreAPI
	Mailer      Mailer
	Emails      EmailLookup
	Publisher   events.Publisher
	DefaultFrom string
}

func New(store StoreAPI, mailer Mailer, emails EmailLookup, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{store: store, Mailer: mailer, Emails: emails, Publisher: publisher, DefaultFrom: "no-reply@example.com"}
}

// Notify stores an in-app notification, then emails and publishes it.
// Only the in-app write can fail the call; delivery errors are logged.
func (s *Service) Notify(ctx context.Context, ev Event) error {
	if ev.RecipientID != "" {
		if err := s.store.CreateNotification(ctx, ev.TenantID, ev.RecipientID, ev.Type, ev.Title, ev.Body); err != nil {
			return err
		}
		s.sendEmail(ctx, ev)
	}
	if err := s.Publisher.Publish(ctx, ev.Type, ev); err != nil {
		slog.Warn("notification publish failed", "tenantId", ev.TenantID, "type", ev.Type, "err", err)
	}
	return nil
}

func (s *Service) sendEmail(ctx context.Context, ev Event) {
	if s.Mailer == nil || s.Emails == nil {
		return
	}
	settings, err := s.store.EmailSettings(ctx, ev.TenantID)
	if err != nil {
		slog.Warn("notification settings lookup failed", "tenantId", ev.TenantID, "err", err)
		return
	}
	if !settings.EmailEnabled {
		return
	}
	from := settings.EmailFrom
	if from == "" {
		from = s.DefaultFrom
	}
	to, err := s.Emails.ApproverEmail(ctx, ev.TenantID, ev.RecipientID)
	if err != nil {
		slog.Warn("notification email lookup failed", "tenantId", ev.TenantID, "userId", ev.RecipientID, "err", err)
		return
	}
	if to == "" {
		return
	}
	if err := s.Mailer.Send(ctx, Email{From: from, To: to, Subject: ev.Title, Body: ev.Body, Type: ev.Type, ApprovalID: ev.ApprovalID}); err != nil {
		slog.Warn("notification email send failed", "tenantId", ev.TenantID, "type", ev.Type, "err", err)
	}
}

func (s *Service) List(ctx context.Context, tenantID, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.store.ListNotifications(ctx, tenantID, userID, unreadOnly, limit, offset)
}

func (s *Service) Count(ctx context.Context, tenantID, userID string, unreadOnly bool) (int, error) {
	return s.store.CountNotifications(ctx, tenantID, userID, unreadOnly)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID, userID string) (int, error) {
	return s.store.MarkAllRead(ctx, tenantID, userID)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, userID, notificationID string) error {
	return s.store.MarkRead(ctx, tenantID, userID, notificationID)
}

func (s *Service) GetSettings(ctx context.Context, tenantID string) (Settings, error) {
	return s.store.EmailSettings(ctx, tenantID)
}

func (s *Service) UpdateSettings(ctx context.Context, tenantID string, settings Settings) error {
	return s.store.UpdateSettings(ctx, tenantID, settings)
}
