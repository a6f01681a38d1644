// Package conversation defines the conversation and message domain types.
// A conversation is an ordered, append-only sequence of turns belonging to
// one agent and one requester.
package conversation

import (
	"time"
)

// Role identifies who produced a message turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// TokenUsage holds the token counts reported for one model call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Message is a single turn in a conversation. Assistant turns may carry
// zero or more tool-call requests, referenced by id.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	ToolCallIDs    []string   `json:"tool_call_ids,omitempty"`
	Tokens         TokenUsage `json:"tokens,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Conversation accumulates a running token total across its turns.
type Conversation struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	WorkspaceID string    `json:"workspace_id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	TotalTokens int64     `json:"total_tokens"`
	TotalCost   float64   `json:"total_cost_usd"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the payload for starting a conversation.
type CreateRequest struct {
	AgentID        string `json:"agent_id"`
	WorkspaceID    string `json:"workspace_id"`
	UserID         string `json:"user_id"`
	InitialMessage string `json:"initial_message"`
}

// maxTitleLen caps the auto-generated title taken from the first message,
// counted in runes so truncation never splits a multi-byte character.
const maxTitleLen = 50

// TitleFrom derives a conversation title from its first message.
func TitleFrom(message string) string {
	runes := []rune(message)
	if len(runes) <= maxTitleLen {
		return message
	}
	return string(runes[:maxTitleLen])
}
