package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openworkhq/agentgate/internal/adapter/otel"
	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/security"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/executor"
	"github.com/openworkhq/agentgate/internal/port/broadcast"
	"github.com/openworkhq/agentgate/internal/port/database"
	"github.com/openworkhq/agentgate/internal/port/messagequeue"
	"github.com/openworkhq/agentgate/internal/port/provider"
)

// WebSocket event types broadcast to operators.
const (
	EventToolCallPending  = "toolcall.pending"
	EventToolCallResolved = "toolcall.resolved"
)

// ToolCallEvent is the payload for tool-call broadcasts.
type ToolCallEvent struct {
	ID          string        `json:"id"`
	WorkspaceID string        `json:"workspace_id"`
	Tool        toolcall.Kind `json:"tool"`
	Risk        toolcall.Risk `json:"risk_level"`
	Status      string        `json:"status"`
}

// LifecycleService owns the tool-call state machine. It is the only creator
// of tool-call records; all mutations go through the approve/reject/execute
// transitions, which are store-level compare-and-set operations.
type LifecycleService struct {
	store   database.Store
	exec    *executor.Executor
	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	metrics *otel.Metrics
}

// NewLifecycleService creates a LifecycleService.
func NewLifecycleService(store database.Store, exec *executor.Executor, queue messagequeue.Queue, hub broadcast.Broadcaster, metrics *otel.Metrics) *LifecycleService {
	return &LifecycleService{
		store:   store,
		exec:    exec,
		queue:   queue,
		hub:     hub,
		metrics: metrics,
	}
}

// CreateFromTurn turns the model's proposed tool calls into persisted
// tool-call records. Risk level and the approval requirement are computed
// here, from the agent's policy as it exists now, and frozen for the life of
// the record. Calls that need no approval are created already approved and
// published to the execution queue; the rest wait as pending for a human.
func (s *LifecycleService) CreateFromTurn(ctx context.Context, a *agent.Agent, conversationID, userID string, proposed []provider.ToolCallRequest) ([]toolcall.Request, error) {
	created := make([]toolcall.Request, 0, len(proposed))

	for _, p := range proposed {
		if !p.Tool.Valid() {
			return created, fmt.Errorf("%w: unknown tool %q", domain.ErrValidation, p.Tool)
		}
		if !categoryEnabled(a.Capabilities, p.Tool.Category()) {
			return created, fmt.Errorf("%w: tool %s is disabled for this agent", domain.ErrPolicyViolation, p.Tool)
		}

		args, err := toolcall.ParseArgs(p.Tool, p.Arguments)
		if err != nil {
			return created, err
		}

		tc := &toolcall.Request{
			ConversationID:   conversationID,
			WorkspaceID:      a.WorkspaceID,
			AgentID:          a.ID,
			UserID:           userID,
			Tool:             p.Tool,
			Arguments:        p.Arguments,
			Risk:             security.AssessRisk(args),
			RequiresApproval: requiresApproval(a.Restrictions.RequireApproval, p.Tool.Category()),
		}
		if tc.RequiresApproval {
			tc.Status = toolcall.StatusPending
		} else {
			tc.Status = toolcall.StatusApproved
		}

		stored, err := s.store.CreateToolCall(ctx, tc)
		if err != nil {
			return created, fmt.Errorf("create tool call: %w", err)
		}
		s.metrics.ToolCallsCreated.Add(ctx, 1)

		if stored.RequiresApproval {
			s.hub.BroadcastEvent(ctx, EventToolCallPending, ToolCallEvent{
				ID:          stored.ID,
				WorkspaceID: stored.WorkspaceID,
				Tool:        stored.Tool,
				Risk:        stored.Risk,
				Status:      string(stored.Status),
			})
			slog.Info("tool call awaiting approval",
				"tool_call_id", stored.ID,
				"tool", stored.Tool,
				"risk", stored.Risk,
			)
		} else if err := s.enqueue(ctx, stored); err != nil {
			return created, err
		}

		created = append(created, *stored)
	}

	return created, nil
}

// enqueue publishes an approved call to the execution queue.
func (s *LifecycleService) enqueue(ctx context.Context, tc *toolcall.Request) error {
	job := toolcall.Job{
		ToolCallID: tc.ID,
		Tool:       tc.Tool,
		Arguments:  tc.Arguments,
		AgentID:    tc.AgentID,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectToolCallExecute, data); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	slog.Info("tool call queued for execution", "tool_call_id", tc.ID, "tool", tc.Tool)
	return nil
}

// Approve transitions a pending call to approved and executes it once,
// synchronously. The approver has signed off expecting immediate feedback,
// so there is no retry; execution failure resolves the call as failed.
// Arguments are re-validated at execution time: policy may have tightened
// between creation and approval.
func (s *LifecycleService) Approve(ctx context.Context, id, approver string) (*toolcall.Request, error) {
	ctx, span := otel.StartToolCallSpan(ctx, id, "approve")
	defer span.End()

	if err := s.store.MarkToolCallApproved(ctx, id, approver); err != nil {
		return nil, err
	}
	s.metrics.ToolCallsApproved.Add(ctx, 1)

	tc, err := s.store.GetToolCall(ctx, id)
	if err != nil {
		s.failApproved(ctx, id, nil, err)
		return nil, err
	}

	a, err := s.store.GetAgent(ctx, tc.AgentID)
	if err != nil {
		s.failApproved(ctx, id, tc, err)
		return nil, err
	}

	args, err := toolcall.ParseArgs(tc.Tool, tc.Arguments)
	if err != nil {
		s.failApproved(ctx, id, tc, err)
		return nil, err
	}

	start := time.Now()
	result, execErr := s.exec.Execute(ctx, args, a.Restrictions)
	duration := time.Since(start)

	if execErr != nil {
		if err := s.store.MarkToolCallFailed(ctx, id, execErr.Error()); err != nil {
			slog.Error("mark tool call failed", "tool_call_id", id, "error", err)
		}
		s.broadcastResolved(ctx, tc, toolcall.StatusFailed)
		return nil, execErr
	}

	if err := s.store.MarkToolCallExecuted(ctx, id, result, duration); err != nil {
		return nil, err
	}
	s.broadcastResolved(ctx, tc, toolcall.StatusExecuted)

	slog.Info("tool call approved and executed",
		"tool_call_id", id,
		"approver", approver,
		"duration", duration,
	)

	return s.store.GetToolCall(ctx, id)
}

// failApproved resolves an approved call that cannot reach execution. The
// call was never queued, so without this it would sit in approved forever.
func (s *LifecycleService) failApproved(ctx context.Context, id string, tc *toolcall.Request, cause error) {
	if err := s.store.MarkToolCallFailed(ctx, id, cause.Error()); err != nil {
		slog.Error("mark tool call failed", "tool_call_id", id, "error", err)
		return
	}
	s.metrics.ToolCallsFailed.Add(ctx, 1)
	if tc != nil {
		s.broadcastResolved(ctx, tc, toolcall.StatusFailed)
	}
}

// Reject transitions a pending call to rejected. No side effect is ever
// executed for a rejected call.
func (s *LifecycleService) Reject(ctx context.Context, id, rejector, reason string) (*toolcall.Request, error) {
	if err := s.store.MarkToolCallRejected(ctx, id, rejector, reason); err != nil {
		return nil, err
	}
	s.metrics.ToolCallsRejected.Add(ctx, 1)

	tc, err := s.store.GetToolCall(ctx, id)
	if err != nil {
		return nil, err
	}
	s.broadcastResolved(ctx, tc, toolcall.StatusRejected)

	slog.Info("tool call rejected", "tool_call_id", id, "rejector", rejector, "reason", reason)
	return tc, nil
}

// Get returns a tool call by id.
func (s *LifecycleService) Get(ctx context.Context, id string) (*toolcall.Request, error) {
	return s.store.GetToolCall(ctx, id)
}

// ListPending returns the pending tool calls for a workspace, the operator
// approval inbox.
func (s *LifecycleService) ListPending(ctx context.Context, workspaceID string) ([]toolcall.Request, error) {
	return s.store.ListToolCalls(ctx, database.ToolCallFilter{
		WorkspaceID: workspaceID,
		Status:      toolcall.StatusPending,
	})
}

// List returns tool calls matching the filter.
func (s *LifecycleService) List(ctx context.Context, filter database.ToolCallFilter) ([]toolcall.Request, error) {
	return s.store.ListToolCalls(ctx, filter)
}

func (s *LifecycleService) broadcastResolved(ctx context.Context, tc *toolcall.Request, status toolcall.Status) {
	s.hub.BroadcastEvent(ctx, EventToolCallResolved, ToolCallEvent{
		ID:          tc.ID,
		WorkspaceID: tc.WorkspaceID,
		Tool:        tc.Tool,
		Risk:        tc.Risk,
		Status:      string(status),
	})
}

// EnabledTools returns the tool definitions to offer the model, filtered to
// exactly the categories the agent's capability set enables.
func EnabledTools(caps agent.Capabilities) []provider.ToolDef {
	var defs []provider.ToolDef
	for _, d := range allToolDefs {
		if categoryEnabled(caps, d.Name.Category()) {
			defs = append(defs, d)
		}
	}
	return defs
}

func categoryEnabled(caps agent.Capabilities, c toolcall.Category) bool {
	switch c {
	case toolcall.CategoryFilesystem:
		return caps.Filesystem
	case toolcall.CategoryShell:
		return caps.Shell
	default:
		return caps.WebSearch
	}
}

func requiresApproval(p agent.ApprovalPolicy, c toolcall.Category) bool {
	switch c {
	case toolcall.CategoryFilesystem:
		return p.Filesystem
	case toolcall.CategoryShell:
		return p.Shell
	default:
		return p.Web
	}
}

// allToolDefs declares the fixed tool surface offered to models.
var allToolDefs = []provider.ToolDef{
	{
		Name:        toolcall.KindReadFile,
		Description: "Read the contents of a file from the filesystem",
		Schema:      json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The file path to read"}},"required":["path"]}`),
	},
	{
		Name:        toolcall.KindWriteFile,
		Description: "Write content to a file on the filesystem",
		Schema:      json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The file path to write to"},"content":{"type":"string","description":"The content to write"}},"required":["path","content"]}`),
	},
	{
		Name:        toolcall.KindListDirectory,
		Description: "List contents of a directory",
		Schema:      json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The directory path to list"}},"required":["path"]}`),
	},
	{
		Name:        toolcall.KindExecuteCommand,
		Description: "Execute a shell command (requires approval)",
		Schema:      json.RawMessage(`{"type":"object","properties":{"command":{"type":"string","description":"The shell command to execute"}},"required":["command"]}`),
	},
	{
		Name:        toolcall.KindSearchWeb,
		Description: "Search the web for information",
		Schema:      json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The search query"}},"required":["query"]}`),
	},
}
