// Package plans defines the workspace plan lookup port. Subscription
// management itself lives outside this service; the core only needs each
// workspace's active limits.
package plans

import "context"

// Limits are the plan limits the core consumes. MonthlyQuota <= 0 means
// unlimited.
type Limits struct {
	RequestsPerMinute int   `json:"requests_per_minute"`
	MonthlyQuota      int64 `json:"monthly_quota"`
}

// Resolver is the port interface for plan limit lookups.
type Resolver interface {
	// GetPlanLimits returns the active plan limits for a workspace.
	GetPlanLimits(ctx context.Context, workspaceID string) (*Limits, error)
}
