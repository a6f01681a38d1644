// Package provider defines the model provider port: the single call the
// orchestrator makes to obtain the next conversation turn.
package provider

import (
	"context"
	"encoding/json"

	"github.com/openworkhq/agentgate/internal/domain/conversation"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
)

// ToolDef describes one tool offered to the model. The set offered must be
// filtered to exactly the categories the agent's capability set enables.
type ToolDef struct {
	Name        toolcall.Kind   `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

// ToolCallRequest is a tool invocation proposed by the model.
type ToolCallRequest struct {
	ID        string          `json:"id"`
	Tool      toolcall.Kind   `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is the model's reply to one SendTurn call.
type Turn struct {
	Text      string                  `json:"text"`
	ToolCalls []ToolCallRequest       `json:"tool_calls,omitempty"`
	Usage     conversation.TokenUsage `json:"usage"`
}

// Request carries everything a provider needs for one completion.
type Request struct {
	Model        string                 `json:"model"`
	SystemPrompt string                 `json:"system_prompt"`
	Temperature  float64                `json:"temperature"`
	MaxTokens    int                    `json:"max_tokens"`
	History      []conversation.Message `json:"history"`
	Tools        []ToolDef              `json:"tools,omitempty"`
}

// Provider is the port interface for external model providers.
type Provider interface {
	// Name returns the provider identifier (e.g. "anthropic").
	Name() string

	// SendTurn requests the next assistant turn for the given history.
	SendTurn(ctx context.Context, req Request) (*Turn, error)
}
