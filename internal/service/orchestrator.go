package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openworkhq/agentgate/internal/adapter/otel"
	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/port/database"
	"github.com/openworkhq/agentgate/internal/port/provider"
)

// TurnResult is everything one user message produced: the assistant's
// reply, the tool calls it proposed (already persisted as pending or
// approved records) and the accounted cost of the model call.
type TurnResult struct {
	Message   conversation.Message `json:"message"`
	ToolCalls []toolcall.Request   `json:"tool_calls,omitempty"`
	CostUSD   float64              `json:"cost_usd"`
}

// OrchestratorService drives the conversation loop: admission checks, the
// model round-trip, usage accounting and handing proposed tool calls to the
// lifecycle service.
type OrchestratorService struct {
	store     database.Store
	provider  provider.Provider
	lifecycle *LifecycleService
	usage     *UsageService
	rate      *RateLimitService
}

// NewOrchestratorService creates an OrchestratorService.
func NewOrchestratorService(store database.Store, p provider.Provider, lifecycle *LifecycleService, usage *UsageService, rate *RateLimitService) *OrchestratorService {
	return &OrchestratorService{
		store:     store,
		provider:  p,
		lifecycle: lifecycle,
		usage:     usage,
		rate:      rate,
	}
}

// CreateConversation starts a conversation bound to one agent. The title is
// derived from the initial message when one is given.
func (s *OrchestratorService) CreateConversation(ctx context.Context, req conversation.CreateRequest) (*conversation.Conversation, error) {
	if req.AgentID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", domain.ErrValidation)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrValidation)
	}

	a, err := s.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = a.WorkspaceID
	}
	if req.WorkspaceID != a.WorkspaceID {
		return nil, fmt.Errorf("%w: agent belongs to a different workspace", domain.ErrValidation)
	}

	c := &conversation.Conversation{
		AgentID:     req.AgentID,
		WorkspaceID: req.WorkspaceID,
		UserID:      req.UserID,
		Title:       "New Conversation",
	}
	if req.InitialMessage != "" {
		c.Title = conversation.TitleFrom(req.InitialMessage)
	}
	return s.store.CreateConversation(ctx, c)
}

// GetConversation returns a conversation by id.
func (s *OrchestratorService) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// ListConversations returns the conversations in a workspace.
func (s *OrchestratorService) ListConversations(ctx context.Context, workspaceID string) ([]conversation.Conversation, error) {
	return s.store.ListConversations(ctx, workspaceID)
}

// ListMessages returns a conversation's messages in order.
func (s *OrchestratorService) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	return s.store.ListMessages(ctx, conversationID)
}

// SendMessage runs one conversation turn. Admission is checked before any
// state changes: the rate limit window is counted and the monthly quota
// consulted, and a refused turn leaves no trace in the conversation. After
// the model answers, the user and assistant messages are appended, usage is
// accounted, and any proposed tool calls are recorded by the lifecycle
// service under the agent's current policy.
func (s *OrchestratorService) SendMessage(ctx context.Context, conversationID, userID, text string) (*TurnResult, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrValidation)
	}

	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	a, err := s.store.GetAgent(ctx, c.AgentID)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, fmt.Errorf("%w: agent %s is disabled", domain.ErrPolicyViolation, a.ID)
	}

	if err := s.rate.Check(ctx, c.WorkspaceID); err != nil {
		return nil, err
	}
	exhausted, err := s.usage.QuotaExhausted(ctx, c.WorkspaceID)
	if err != nil {
		slog.Warn("quota check failed, allowing turn", "workspace_id", c.WorkspaceID, "error", err)
	} else if exhausted {
		return nil, fmt.Errorf("%w: monthly token quota exhausted", domain.ErrQuotaExceeded)
	}

	userMsg := &conversation.Message{
		ConversationID: conversationID,
		Role:           conversation.RoleUser,
		Content:        text,
	}
	if _, err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	history, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	spanCtx, span := otel.StartTurnSpan(ctx, conversationID, a.Model)
	turn, err := s.provider.SendTurn(spanCtx, provider.Request{
		Model:        a.Model,
		SystemPrompt: a.SystemPrompt,
		Temperature:  a.Temperature,
		MaxTokens:    a.MaxTokens,
		History:      history,
		Tools:        EnabledTools(a.Capabilities),
	})
	span.End()
	if err != nil {
		return nil, fmt.Errorf("model turn: %w", err)
	}

	cost, err := s.usage.Record(ctx, a, conversationID, turn.Usage)
	if err != nil {
		slog.Error("usage accounting failed", "conversation_id", conversationID, "error", err)
	}

	created, err := s.lifecycle.CreateFromTurn(ctx, a, conversationID, userID, turn.ToolCalls)
	if err != nil {
		return nil, err
	}

	assistantMsg := &conversation.Message{
		ConversationID: conversationID,
		Role:           conversation.RoleAssistant,
		Content:        turn.Text,
		Tokens:         turn.Usage,
	}
	for _, tc := range created {
		assistantMsg.ToolCallIDs = append(assistantMsg.ToolCallIDs, tc.ID)
	}
	stored, err := s.store.AppendMessage(ctx, assistantMsg)
	if err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	return &TurnResult{
		Message:   *stored,
		ToolCalls: created,
		CostUSD:   cost,
	}, nil
}
