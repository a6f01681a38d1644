package service

import (
	"context"
	"log/slog"

	"github.com/openworkhq/agentgate/internal/port/notifier"
)

// NotificationService dispatches notifications to all registered notifiers.
// Delivery is best-effort: a failing notifier is logged and skipped, never
// allowed to interrupt delivery to the others or the caller.
type NotificationService struct {
	notifiers []notifier.Notifier
}

// NewNotificationService creates a NotificationService with the given notifiers.
func NewNotificationService(notifiers []notifier.Notifier) *NotificationService {
	return &NotificationService{notifiers: notifiers}
}

// Notify sends a notification to all registered notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	for _, nf := range s.notifiers {
		if err := nf.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"notifier", nf.Name(),
				"title", n.Title,
				"error", err,
			)
			continue
		}
		slog.Debug("notification sent", "notifier", nf.Name(), "title", n.Title)
	}
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}
