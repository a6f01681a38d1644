// Package notifier defines the notification port (interface).
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier. Delivery is
// fire-and-forget: failures are logged and never abort the operation that
// triggered the notification.
type Notification struct {
	Recipient string         `json:"recipient"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Level     string         `json:"level"`    // "info", "warning", "error"
	Template  string         `json:"template"` // e.g. "usage-warning", "usage-limit-reached"
	Data      map[string]any `json:"data,omitempty"`
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack", "email").
	Name() string

	// Send delivers a notification.
	Send(ctx context.Context, notification Notification) error
}
