// Package agent defines the Agent domain entity: a configured binding of a
// model, a system prompt, and a security/capability policy, owned by a
// workspace.
package agent

import (
	"fmt"
	"time"

	"github.com/openworkhq/agentgate/internal/domain"
)

// Provider identifies a model provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Capabilities declares which tool categories an agent may use at all.
// A disabled category is never offered to the model and never executable.
type Capabilities struct {
	Filesystem bool `json:"filesystem"`
	Shell      bool `json:"shell"`
	WebSearch  bool `json:"web_search"`
}

// ApprovalPolicy holds the per-category human approval requirements.
type ApprovalPolicy struct {
	Filesystem bool `json:"filesystem"`
	Shell      bool `json:"shell"`
	Web        bool `json:"web"`
}

// Restrictions is the agent's restriction policy: path and command
// allow/block lists plus approval requirements. Lists are evaluated by the
// security validator; an empty allow list means "no allow list declared".
type Restrictions struct {
	AllowedPaths    []string       `json:"allowed_paths,omitempty"`
	BlockedPaths    []string       `json:"blocked_paths,omitempty"`
	AllowedCommands []string       `json:"allowed_commands,omitempty"`
	BlockedCommands []string       `json:"blocked_commands,omitempty"`
	RequireApproval ApprovalPolicy `json:"require_approval"`
}

// Usage holds an agent's cumulative usage counters. Counters are updated
// with atomic SQL increments, never read-modify-write.
type Usage struct {
	TotalTokens   int64      `json:"total_tokens"`
	TotalRequests int64      `json:"total_requests"`
	TotalCostUSD  float64    `json:"total_cost_usd"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
}

// Agent is a workspace-owned agent configuration. Immutable except through
// explicit configuration updates.
type Agent struct {
	ID           string       `json:"id"`
	WorkspaceID  string       `json:"workspace_id"`
	UserID       string       `json:"user_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Provider     Provider     `json:"provider"`
	Model        string       `json:"model"`
	SystemPrompt string       `json:"system_prompt"`
	Temperature  float64      `json:"temperature"`
	MaxTokens    int          `json:"max_tokens"`
	Capabilities Capabilities `json:"capabilities"`
	Restrictions Restrictions `json:"restrictions"`
	Usage        Usage        `json:"usage"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// CreateRequest is the payload for creating an agent.
type CreateRequest struct {
	WorkspaceID  string        `json:"workspace_id"`
	UserID       string        `json:"user_id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Provider     Provider      `json:"provider"`
	Model        string        `json:"model"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Restrictions *Restrictions `json:"restrictions,omitempty"`
}

// UpdateRequest carries an explicit configuration update. Nil fields are
// left unchanged.
type UpdateRequest struct {
	Name         *string       `json:"name,omitempty"`
	Description  *string       `json:"description,omitempty"`
	SystemPrompt *string       `json:"system_prompt,omitempty"`
	Temperature  *float64      `json:"temperature,omitempty"`
	MaxTokens    *int          `json:"max_tokens,omitempty"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Restrictions *Restrictions `json:"restrictions,omitempty"`
	Active       *bool         `json:"active,omitempty"`
}

const defaultSystemPrompt = "You are a helpful AI assistant with filesystem access."

// ApplyDefaults fills zero-valued optional fields with their defaults.
func (r *CreateRequest) ApplyDefaults() {
	if r.SystemPrompt == "" {
		r.SystemPrompt = defaultSystemPrompt
	}
	if r.Temperature == nil {
		t := 0.7
		r.Temperature = &t
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = 4096
	}
	if r.Capabilities == nil {
		r.Capabilities = &Capabilities{WebSearch: true}
	}
	if r.Restrictions == nil {
		r.Restrictions = &Restrictions{
			RequireApproval: ApprovalPolicy{Filesystem: true, Shell: true},
		}
	}
}

// Validate checks a create request against domain constraints.
func (r *CreateRequest) Validate() error {
	if r.WorkspaceID == "" {
		return fmt.Errorf("%w: workspace_id is required", domain.ErrValidation)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	switch r.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle:
	default:
		return fmt.Errorf("%w: unsupported provider %q", domain.ErrValidation, r.Provider)
	}
	if r.Model == "" {
		return fmt.Errorf("%w: model is required", domain.ErrValidation)
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("%w: temperature must be in [0, 2]", domain.ErrValidation)
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must be positive", domain.ErrValidation)
	}
	return nil
}
