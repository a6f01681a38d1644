// Package broadcast defines the port for pushing real-time events to
// connected dashboard clients.
package broadcast

import "context"

// Broadcaster fans a typed event out to every connected client. Delivery is
// best-effort; slow or gone clients are dropped, never waited on.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
