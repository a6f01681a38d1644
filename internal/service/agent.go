package service

import (
	"context"
	"fmt"

	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/port/database"
)

// AgentService manages agent configurations.
type AgentService struct {
	store database.Store
}

// NewAgentService creates an AgentService.
func NewAgentService(store database.Store) *AgentService {
	return &AgentService{store: store}
}

// Create validates the request, applies defaults and persists the agent.
func (s *AgentService) Create(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.CreateAgent(ctx, req)
}

// Get returns an agent by id.
func (s *AgentService) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// List returns all agents in a workspace.
func (s *AgentService) List(ctx context.Context, workspaceID string) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx, workspaceID)
}

// Update applies a partial configuration update. Nil fields are unchanged.
func (s *AgentService) Update(ctx context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error) {
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return nil, fmt.Errorf("%w: temperature must be in [0, 2]", domain.ErrValidation)
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max_tokens must be positive", domain.ErrValidation)
	}
	if req.Name != nil && *req.Name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
	}
	return s.store.UpdateAgent(ctx, id, req)
}
