// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/domain/usage"
)

// ToolCallFilter selects tool calls by compound criteria.
type ToolCallFilter struct {
	WorkspaceID string
	Status      toolcall.Status
	Since       time.Time
	Until       time.Time
	Limit       int
}

// Store is the port interface for persistence. Implementations must make the
// tool-call status transitions atomic compare-and-set operations: a
// transition succeeds only when the record's current status matches the
// expected precondition, otherwise domain.ErrInvalidState is returned.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error)
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	ListAgents(ctx context.Context, workspaceID string) ([]agent.Agent, error)
	UpdateAgent(ctx context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error)
	// RecordAgentUse atomically increments the agent's cumulative counters.
	RecordAgentUse(ctx context.Context, id string, tokens int64, costUSD float64) error

	// Conversations
	CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error)
	GetConversation(ctx context.Context, id string) (*conversation.Conversation, error)
	ListConversations(ctx context.Context, workspaceID string) ([]conversation.Conversation, error)
	AppendMessage(ctx context.Context, m *conversation.Message) (*conversation.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
	// AddConversationUsage atomically adds to the running token and cost totals.
	AddConversationUsage(ctx context.Context, id string, tokens int64, costUSD float64) error

	// Tool calls
	CreateToolCall(ctx context.Context, tc *toolcall.Request) (*toolcall.Request, error)
	GetToolCall(ctx context.Context, id string) (*toolcall.Request, error)
	ListToolCalls(ctx context.Context, filter ToolCallFilter) ([]toolcall.Request, error)
	// MarkToolCallApproved transitions pending -> approved.
	MarkToolCallApproved(ctx context.Context, id, approver string) error
	// MarkToolCallRejected transitions pending -> rejected.
	MarkToolCallRejected(ctx context.Context, id, rejector, reason string) error
	// MarkToolCallExecuted transitions approved -> executed with the result.
	MarkToolCallExecuted(ctx context.Context, id string, result *toolcall.Result, duration time.Duration) error
	// MarkToolCallFailed transitions approved -> failed with the last error.
	MarkToolCallFailed(ctx context.Context, id, errMsg string) error

	// Usage ledger
	CreateLedgerEntry(ctx context.Context, e *usage.LedgerEntry) (*usage.LedgerEntry, error)
	// WorkspaceUsage returns the workspace's aggregate usage since a point in time.
	WorkspaceUsage(ctx context.Context, workspaceID string, since time.Time) (*usage.Summary, error)
	UsageByModel(ctx context.Context, workspaceID string, since time.Time) ([]usage.ModelSummary, error)
}
