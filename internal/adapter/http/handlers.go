package http

import (
	"context"

	"github.com/openworkhq/agentgate/internal/service"
)

// HealthProbes exposes liveness signals from collaborators the API depends
// on. Probes may be nil when a collaborator is not wired (tests).
type HealthProbes struct {
	Database        func(ctx context.Context) error
	QueueConnected  func() bool
	ProviderBreaker func() string
}

// Handlers bundles the services the REST API dispatches to.
type Handlers struct {
	Agents        *service.AgentService
	Conversations *service.OrchestratorService
	ToolCalls     *service.LifecycleService
	Usage         *service.UsageService
	Probes        HealthProbes
}
