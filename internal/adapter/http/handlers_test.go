package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	aghttp "github.com/openworkhq/agentgate/internal/adapter/http"
	"github.com/openworkhq/agentgate/internal/adapter/otel"
	"github.com/openworkhq/agentgate/internal/config"
	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/domain/usage"
	"github.com/openworkhq/agentgate/internal/executor"
	"github.com/openworkhq/agentgate/internal/port/database"
	"github.com/openworkhq/agentgate/internal/port/messagequeue"
	"github.com/openworkhq/agentgate/internal/port/plans"
	"github.com/openworkhq/agentgate/internal/port/provider"
	"github.com/openworkhq/agentgate/internal/service"
)

// memStore is an in-memory database.Store for API tests.
type memStore struct {
	mu            sync.Mutex
	agents        map[string]*agent.Agent
	conversations map[string]*conversation.Conversation
	messages      map[string][]conversation.Message
	toolCalls     map[string]*toolcall.Request
	ledger        []usage.LedgerEntry
	seq           int
}

func newMemStore() *memStore {
	return &memStore{
		agents:        make(map[string]*agent.Agent),
		conversations: make(map[string]*conversation.Conversation),
		messages:      make(map[string][]conversation.Message),
		toolCalls:     make(map[string]*toolcall.Request),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) CreateAgent(_ context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &agent.Agent{
		ID:           m.nextID("ag"),
		WorkspaceID:  req.WorkspaceID,
		UserID:       req.UserID,
		Name:         req.Name,
		Description:  req.Description,
		Provider:     req.Provider,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if req.Temperature != nil {
		a.Temperature = *req.Temperature
	}
	if req.Capabilities != nil {
		a.Capabilities = *req.Capabilities
	}
	if req.Restrictions != nil {
		a.Restrictions = *req.Restrictions
	}
	m.agents[a.ID] = a
	return a, nil
}

func (m *memStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAgents(_ context.Context, workspaceID string) ([]agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agent.Agent
	for _, a := range m.agents {
		if a.WorkspaceID == workspaceID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) UpdateAgent(_ context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.Temperature != nil {
		a.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		a.MaxTokens = *req.MaxTokens
	}
	if req.Active != nil {
		a.Active = *req.Active
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memStore) RecordAgentUse(_ context.Context, id string, tokens int64, costUSD float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	a.Usage.TotalTokens += tokens
	a.Usage.TotalRequests++
	a.Usage.TotalCostUSD += costUSD
	now := time.Now()
	a.Usage.LastUsedAt = &now
	return nil
}

func (m *memStore) CreateConversation(_ context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.ID = m.nextID("cv")
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = time.Now()
	m.conversations[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListConversations(_ context.Context, workspaceID string) ([]conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []conversation.Conversation
	for _, c := range m.conversations {
		if c.WorkspaceID == workspaceID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) AppendMessage(_ context.Context, msg *conversation.Message) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	cp.ID = m.nextID("msg")
	cp.CreatedAt = time.Now()
	m.messages[cp.ConversationID] = append(m.messages[cp.ConversationID], cp)
	out := cp
	return &out, nil
}

func (m *memStore) ListMessages(_ context.Context, conversationID string) ([]conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]conversation.Message(nil), m.messages[conversationID]...), nil
}

func (m *memStore) AddConversationUsage(_ context.Context, id string, tokens int64, costUSD float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	c.TotalTokens += tokens
	c.TotalCost += costUSD
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) CreateToolCall(_ context.Context, tc *toolcall.Request) (*toolcall.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tc
	cp.ID = m.nextID("tc")
	cp.CreatedAt = time.Now()
	m.toolCalls[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) GetToolCall(_ context.Context, id string) (*toolcall.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.toolCalls[id]
	if !ok {
		return nil, fmt.Errorf("tool call %s: %w", id, domain.ErrNotFound)
	}
	cp := *tc
	return &cp, nil
}

func (m *memStore) ListToolCalls(_ context.Context, filter database.ToolCallFilter) ([]toolcall.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []toolcall.Request
	for _, tc := range m.toolCalls {
		if filter.WorkspaceID != "" && tc.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.Status != "" && tc.Status != filter.Status {
			continue
		}
		out = append(out, *tc)
	}
	return out, nil
}

func (m *memStore) transition(id string, want toolcall.Status, apply func(*toolcall.Request)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.toolCalls[id]
	if !ok {
		return fmt.Errorf("tool call %s: %w", id, domain.ErrNotFound)
	}
	if tc.Status != want {
		return fmt.Errorf("tool call %s is %s: %w", id, tc.Status, domain.ErrInvalidState)
	}
	apply(tc)
	return nil
}

func (m *memStore) MarkToolCallApproved(_ context.Context, id, approver string) error {
	return m.transition(id, toolcall.StatusPending, func(tc *toolcall.Request) {
		now := time.Now()
		tc.Status = toolcall.StatusApproved
		tc.ApprovedBy = approver
		tc.ApprovedAt = &now
	})
}

func (m *memStore) MarkToolCallRejected(_ context.Context, id, rejector, reason string) error {
	return m.transition(id, toolcall.StatusPending, func(tc *toolcall.Request) {
		now := time.Now()
		tc.Status = toolcall.StatusRejected
		tc.RejectedBy = rejector
		tc.RejectedAt = &now
		tc.RejectionReason = reason
	})
}

func (m *memStore) MarkToolCallExecuted(_ context.Context, id string, result *toolcall.Result, duration time.Duration) error {
	return m.transition(id, toolcall.StatusApproved, func(tc *toolcall.Request) {
		now := time.Now()
		tc.Status = toolcall.StatusExecuted
		tc.Result = result
		tc.Duration = duration
		tc.ExecutedAt = &now
	})
}

func (m *memStore) MarkToolCallFailed(_ context.Context, id, errMsg string) error {
	return m.transition(id, toolcall.StatusApproved, func(tc *toolcall.Request) {
		now := time.Now()
		tc.Status = toolcall.StatusFailed
		tc.Error = errMsg
		tc.ExecutedAt = &now
	})
}

func (m *memStore) CreateLedgerEntry(_ context.Context, e *usage.LedgerEntry) (*usage.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = m.nextID("le")
	cp.CreatedAt = time.Now()
	m.ledger = append(m.ledger, cp)
	out := cp
	return &out, nil
}

func (m *memStore) WorkspaceUsage(_ context.Context, workspaceID string, since time.Time) (*usage.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &usage.Summary{WorkspaceID: workspaceID}
	for _, e := range m.ledger {
		if e.WorkspaceID != workspaceID || e.CreatedAt.Before(since) {
			continue
		}
		s.TotalTokens += int64(e.Tokens.Total)
		s.TotalCostUSD += e.CostUSD
		s.Calls++
	}
	return s, nil
}

func (m *memStore) UsageByModel(_ context.Context, workspaceID string, since time.Time) ([]usage.ModelSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byModel := make(map[string]*usage.ModelSummary)
	for _, e := range m.ledger {
		if e.WorkspaceID != workspaceID || e.CreatedAt.Before(since) {
			continue
		}
		key := e.Provider + "/" + e.Model
		row, ok := byModel[key]
		if !ok {
			row = &usage.ModelSummary{Provider: e.Provider, Model: e.Model}
			byModel[key] = row
		}
		row.TotalTokens += int64(e.Tokens.Total)
		row.TotalCostUSD += e.CostUSD
		row.Calls++
	}
	var out []usage.ModelSummary
	for _, row := range byModel {
		out = append(out, *row)
	}
	return out, nil
}

// stubQueue accepts publishes and drops them.
type stubQueue struct{}

func (stubQueue) Publish(context.Context, string, []byte) error { return nil }
func (stubQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}
func (stubQueue) Drain() error      { return nil }
func (stubQueue) Close() error      { return nil }
func (stubQueue) IsConnected() bool { return true }

type stubHub struct{}

func (stubHub) BroadcastEvent(context.Context, string, any) {}

type stubResolver struct {
	limits plans.Limits
}

func (r *stubResolver) GetPlanLimits(context.Context, string) (*plans.Limits, error) {
	l := r.limits
	return &l, nil
}

type stubCache struct{}

func (stubCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (stubCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
func (stubCache) Delete(context.Context, string) error { return nil }

// stubProvider returns a scripted turn.
type stubProvider struct {
	turn *provider.Turn
}

func (stubProvider) Name() string { return "stub" }

func (p *stubProvider) SendTurn(context.Context, provider.Request) (*provider.Turn, error) {
	return p.turn, nil
}

type apiEnv struct {
	store  *memStore
	router chi.Router
}

func newAPIEnv(t *testing.T, scripted *provider.Turn) *apiEnv {
	t.Helper()

	store := newMemStore()
	metrics, err := otel.NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exec := executor.New(config.Executor{CommandTimeout: 5 * time.Second, MaxOutputBytes: 1 << 20}, nil)
	lifecycle := service.NewLifecycleService(store, exec, stubQueue{}, stubHub{}, metrics)
	notify := service.NewNotificationService(nil)
	resolver := &stubResolver{limits: plans.Limits{RequestsPerMinute: 100, MonthlyQuota: 0}}
	usageSvc := service.NewUsageService(store, resolver, notify, metrics)
	rate := service.NewRateLimitService(config.Rate{
		Window:            time.Minute,
		DefaultPerWindow:  100,
		MaxTrackedWindows: 100,
	}, time.Minute, resolver, stubCache{})
	orch := service.NewOrchestratorService(store, &stubProvider{turn: scripted}, lifecycle, usageSvc, rate)

	h := &aghttp.Handlers{
		Agents:        service.NewAgentService(store),
		Conversations: orch,
		ToolCalls:     lifecycle,
		Usage:         usageSvc,
		Probes: aghttp.HealthProbes{
			Database:        func(context.Context) error { return nil },
			QueueConnected:  func() bool { return true },
			ProviderBreaker: func() string { return "closed" },
		},
	}

	r := chi.NewRouter()
	aghttp.MountRoutes(r, h)

	return &apiEnv{store: store, router: r}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *apiEnv) seedAgent(t *testing.T, allowedPath string) *agent.Agent {
	t.Helper()
	a, err := e.store.CreateAgent(context.Background(), agent.CreateRequest{
		WorkspaceID:  "ws-1",
		UserID:       "user-1",
		Name:         "assistant",
		Provider:     agent.ProviderAnthropic,
		Model:        "claude-sonnet-4.5",
		SystemPrompt: "help",
		MaxTokens:    4096,
		Capabilities: &agent.Capabilities{Filesystem: true, Shell: true, WebSearch: true},
		Restrictions: &agent.Restrictions{
			AllowedPaths: []string{allowedPath},
			RequireApproval: agent.ApprovalPolicy{
				Filesystem: true,
				Shell:      true,
			},
		},
	})
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return a
}

func TestCreateAgent(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})

	rec := env.do(t, http.MethodPost, "/api/v1/agents", map[string]any{
		"workspace_id": "ws-1",
		"user_id":      "user-1",
		"name":         "helper",
		"provider":     "anthropic",
		"model":        "claude-sonnet-4.5",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var a agent.Agent
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.ID == "" || a.Name != "helper" {
		t.Fatalf("unexpected agent: %+v", a)
	}
}

func TestCreateAgentValidation(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})

	rec := env.do(t, http.MethodPost, "/api/v1/agents", map[string]any{
		"workspace_id": "ws-1",
		"user_id":      "user-1",
		"provider":     "anthropic",
		"model":        "claude-sonnet-4.5",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", rec.Code)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})

	rec := env.do(t, http.MethodGet, "/api/v1/agents/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListAgentsRequiresWorkspace(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})

	rec := env.do(t, http.MethodGet, "/api/v1/agents", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without workspace_id, got %d", rec.Code)
	}
}

func TestConversationFlow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	args, _ := json.Marshal(map[string]string{"path": path})
	env := newAPIEnv(t, &provider.Turn{
		Text: "I'll read that file.",
		ToolCalls: []provider.ToolCallRequest{
			{ID: "call_1", Tool: toolcall.KindReadFile, Arguments: args},
		},
		Usage: conversation.TokenUsage{Input: 100, Output: 50, Total: 150},
	})
	a := env.seedAgent(t, dir)

	// Create conversation.
	rec := env.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{
		"agent_id":        a.ID,
		"user_id":         "user-1",
		"initial_message": "please read my notes",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create conversation: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var conv conversation.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("unmarshal conversation: %v", err)
	}
	if conv.WorkspaceID != "ws-1" {
		t.Fatalf("expected inherited workspace, got %q", conv.WorkspaceID)
	}

	// Send a message; the scripted turn proposes one filesystem call.
	rec = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", map[string]string{
		"user_id": "user-1",
		"content": "go ahead",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send message: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result service.TurnResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal turn result: %v", err)
	}
	if len(result.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.ToolCalls))
	}
	tc := result.ToolCalls[0]
	if tc.Status != toolcall.StatusPending {
		t.Fatalf("filesystem call should be held pending, got %s", tc.Status)
	}

	// The pending call shows up in the approval queue.
	rec = env.do(t, http.MethodGet, "/api/v1/toolcalls/pending?workspace_id=ws-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list pending: expected 200, got %d", rec.Code)
	}
	var pending []toolcall.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("unmarshal pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tc.ID {
		t.Fatalf("expected the held call in pending list, got %+v", pending)
	}

	// Approve executes synchronously.
	rec = env.do(t, http.MethodPost, "/api/v1/toolcalls/"+tc.ID+"/approve", map[string]string{
		"approved_by": "admin-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var approved toolcall.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &approved); err != nil {
		t.Fatalf("unmarshal approved: %v", err)
	}
	if approved.Status != toolcall.StatusExecuted {
		t.Fatalf("expected executed, got %s (error %q)", approved.Status, approved.Error)
	}
	if approved.Result == nil || approved.Result.Content != "hello" {
		t.Fatalf("expected file content in result, got %+v", approved.Result)
	}

	// Second approve conflicts.
	rec = env.do(t, http.MethodPost, "/api/v1/toolcalls/"+tc.ID+"/approve", map[string]string{
		"approved_by": "admin-1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("double approve: expected 409, got %d", rec.Code)
	}

	// Usage was accounted and is visible through the summary endpoint.
	rec = env.do(t, http.MethodGet, "/api/v1/usage/summary?workspace_id=ws-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("usage summary: expected 200, got %d", rec.Code)
	}
	var summary usage.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.TotalTokens != 150 || summary.Calls != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestRejectToolCall(t *testing.T) {
	dir := t.TempDir()
	args, _ := json.Marshal(map[string]string{"path": filepath.Join(dir, "x.txt")})
	env := newAPIEnv(t, &provider.Turn{
		Text: "writing",
		ToolCalls: []provider.ToolCallRequest{
			{ID: "call_1", Tool: toolcall.KindReadFile, Arguments: args},
		},
		Usage: conversation.TokenUsage{Input: 10, Output: 5, Total: 15},
	})
	a := env.seedAgent(t, dir)

	rec := env.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{
		"agent_id": a.ID,
		"user_id":  "user-1",
	})
	var conv conversation.Conversation
	_ = json.Unmarshal(rec.Body.Bytes(), &conv)

	rec = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", map[string]string{
		"user_id": "user-1",
		"content": "do it",
	})
	var result service.TurnResult
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	if len(result.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(result.ToolCalls))
	}

	rec = env.do(t, http.MethodPost, "/api/v1/toolcalls/"+result.ToolCalls[0].ID+"/reject", map[string]string{
		"rejected_by": "admin-1",
		"reason":      "not needed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var rejected toolcall.Request
	if err := json.Unmarshal(rec.Body.Bytes(), &rejected); err != nil {
		t.Fatalf("unmarshal rejected: %v", err)
	}
	if rejected.Status != toolcall.StatusRejected || rejected.RejectionReason != "not needed" {
		t.Fatalf("unexpected rejected call: %+v", rejected)
	}
}

func TestListToolCallsBadStatus(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})

	rec := env.do(t, http.MethodGet, "/api/v1/toolcalls?workspace_id=ws-1&status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestSendMessageDisabledAgent(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})
	a := env.seedAgent(t, t.TempDir())

	rec := env.do(t, http.MethodPost, "/api/v1/conversations", map[string]string{
		"agent_id": a.ID,
		"user_id":  "user-1",
	})
	var conv conversation.Conversation
	_ = json.Unmarshal(rec.Body.Bytes(), &conv)

	inactive := false
	if _, err := env.store.UpdateAgent(context.Background(), a.ID, agent.UpdateRequest{Active: &inactive}); err != nil {
		t.Fatal(err)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", map[string]string{
		"user_id": "user-1",
		"content": "hello",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disabled agent, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})

	rec := env.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body.Status != "ok" || body.Checks["database"] != "ok" || body.Checks["queue"] != "ok" {
		t.Fatalf("unexpected health body: %+v", body)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	env := newAPIEnv(t, &provider.Turn{Text: "hi"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
