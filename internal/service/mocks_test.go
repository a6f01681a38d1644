package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/domain/usage"
	"github.com/openworkhq/agentgate/internal/port/database"
	"github.com/openworkhq/agentgate/internal/port/messagequeue"
	"github.com/openworkhq/agentgate/internal/port/notifier"
	"github.com/openworkhq/agentgate/internal/port/plans"
	"github.com/openworkhq/agentgate/internal/port/provider"
)

var errMockNotFound = fmt.Errorf("mock: %w", domain.ErrNotFound)

// errTransient simulates a recoverable infrastructure failure.
var errTransient = errors.New("connection reset")

// mockStore is an in-memory database.Store with the same compare-and-set
// transition semantics the real store guarantees.
type mockStore struct {
	mu            sync.Mutex
	agents        map[string]*agent.Agent
	conversations map[string]*conversation.Conversation
	messages      []conversation.Message
	toolcalls     map[string]*toolcall.Request
	ledger        []usage.LedgerEntry
	seq           int

	// agentFailures makes the next N GetAgent calls fail transiently.
	agentFailures int
	agentGets     int
	agentGetTimes []time.Time
}

func newMockStore() *mockStore {
	return &mockStore{
		agents:        make(map[string]*agent.Agent),
		conversations: make(map[string]*conversation.Conversation),
		toolcalls:     make(map[string]*toolcall.Request),
	}
}

func (m *mockStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockStore) CreateAgent(_ context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &agent.Agent{
		ID:           m.nextID("agent"),
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

func (m *mockStore) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agentGets++
	m.agentGetTimes = append(m.agentGetTimes, time.Now())
	if m.agentFailures > 0 {
		m.agentFailures--
		return nil, errTransient
	}
	a, ok := m.agents[id]
	if !ok {
		return nil, errMockNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) agentGetTimestamps() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.agentGetTimes...)
}

func (m *mockStore) ListAgents(_ context.Context, workspaceID string) ([]agent.Agent, error) {
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

func (m *mockStore) UpdateAgent(_ context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, errMockNotFound
	}
	if req.Name != nil {
		a.Name = *req.Name
	}
	if req.SystemPrompt != nil {
		a.SystemPrompt = *req.SystemPrompt
	}
	if req.Temperature != nil {
		a.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		a.MaxTokens = *req.MaxTokens
	}
	if req.Capabilities != nil {
		a.Capabilities = *req.Capabilities
	}
	if req.Restrictions != nil {
		a.Restrictions = *req.Restrictions
	}
	if req.Active != nil {
		a.Active = *req.Active
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) RecordAgentUse(_ context.Context, id string, tokens int64, costUSD float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return errMockNotFound
	}
	a.Usage.TotalTokens += tokens
	a.Usage.TotalRequests++
	a.Usage.TotalCostUSD += costUSD
	now := time.Now()
	a.Usage.LastUsedAt = &now
	return nil
}

func (m *mockStore) CreateConversation(_ context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.ID = m.nextID("conv")
	cp.CreatedAt = time.Now()
	m.conversations[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockStore) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, errMockNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) ListConversations(_ context.Context, workspaceID string) ([]conversation.Conversation, error) {
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

func (m *mockStore) AppendMessage(_ context.Context, msg *conversation.Message) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	cp.ID = m.nextID("msg")
	cp.CreatedAt = time.Now()
	m.messages = append(m.messages, cp)
	out := cp
	return &out, nil
}

func (m *mockStore) ListMessages(_ context.Context, conversationID string) ([]conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []conversation.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockStore) AddConversationUsage(_ context.Context, id string, tokens int64, costUSD float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return errMockNotFound
	}
	c.TotalTokens += tokens
	c.TotalCost += costUSD
	return nil
}

func (m *mockStore) CreateToolCall(_ context.Context, tc *toolcall.Request) (*toolcall.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tc
	cp.ID = m.nextID("tc")
	cp.CreatedAt = time.Now()
	m.toolcalls[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *mockStore) GetToolCall(_ context.Context, id string) (*toolcall.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.toolcalls[id]
	if !ok {
		return nil, errMockNotFound
	}
	cp := *tc
	return &cp, nil
}

func (m *mockStore) ListToolCalls(_ context.Context, filter database.ToolCallFilter) ([]toolcall.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []toolcall.Request
	for _, tc := range m.toolcalls {
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

func (m *mockStore) MarkToolCallApproved(_ context.Context, id, approver string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.toolcalls[id]
	if !ok {
		return errMockNotFound
	}
	if tc.Status != toolcall.StatusPending {
		return fmt.Errorf("mock: %w: status is %s", domain.ErrInvalidState, tc.Status)
	}
	now := time.Now()
	tc.Status = toolcall.StatusApproved
	tc.ApprovedBy = approver
	tc.ApprovedAt = &now
	return nil
}

func (m *mockStore) MarkToolCallRejected(_ context.Context, id, rejector, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.toolcalls[id]
	if !ok {
		return errMockNotFound
	}
	if tc.Status != toolcall.StatusPending {
		return fmt.Errorf("mock: %w: status is %s", domain.ErrInvalidState, tc.Status)
	}
	now := time.Now()
	tc.Status = toolcall.StatusRejected
	tc.RejectedBy = rejector
	tc.RejectedAt = &now
	tc.RejectionReason = reason
	return nil
}

func (m *mockStore) MarkToolCallExecuted(_ context.Context, id string, result *toolcall.Result, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.toolcalls[id]
	if !ok {
		return errMockNotFound
	}
	if tc.Status != toolcall.StatusApproved {
		return fmt.Errorf("mock: %w: status is %s", domain.ErrInvalidState, tc.Status)
	}
	now := time.Now()
	tc.Status = toolcall.StatusExecuted
	tc.Result = result
	tc.Duration = duration
	tc.ExecutedAt = &now
	return nil
}

func (m *mockStore) MarkToolCallFailed(_ context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.toolcalls[id]
	if !ok {
		return errMockNotFound
	}
	if tc.Status != toolcall.StatusApproved {
		return fmt.Errorf("mock: %w: status is %s", domain.ErrInvalidState, tc.Status)
	}
	now := time.Now()
	tc.Status = toolcall.StatusFailed
	tc.Error = errMsg
	tc.ExecutedAt = &now
	return nil
}

func (m *mockStore) CreateLedgerEntry(_ context.Context, e *usage.LedgerEntry) (*usage.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = m.nextID("ledger")
	cp.CreatedAt = time.Now()
	m.ledger = append(m.ledger, cp)
	out := cp
	return &out, nil
}

func (m *mockStore) WorkspaceUsage(_ context.Context, workspaceID string, since time.Time) (*usage.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &usage.Summary{WorkspaceID: workspaceID}
	for _, e := range m.ledger {
		if e.WorkspaceID != workspaceID || e.CreatedAt.Before(since) {
			continue
		}
		total := int64(e.Tokens.Total)
		if total == 0 {
			total = int64(e.Tokens.Input + e.Tokens.Output)
		}
		s.TotalTokens += total
		s.TotalCostUSD += e.CostUSD
		s.Calls++
	}
	return s, nil
}

func (m *mockStore) UsageByModel(_ context.Context, workspaceID string, since time.Time) ([]usage.ModelSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byModel := make(map[string]*usage.ModelSummary)
	for _, e := range m.ledger {
		if e.WorkspaceID != workspaceID || e.CreatedAt.Before(since) {
			continue
		}
		key := e.Provider + "/" + e.Model
		ms, ok := byModel[key]
		if !ok {
			ms = &usage.ModelSummary{Provider: e.Provider, Model: e.Model}
			byModel[key] = ms
		}
		total := int64(e.Tokens.Total)
		if total == 0 {
			total = int64(e.Tokens.Input + e.Tokens.Output)
		}
		ms.TotalTokens += total
		ms.TotalCostUSD += e.CostUSD
		ms.Calls++
	}
	var out []usage.ModelSummary
	for _, ms := range byModel {
		out = append(out, *ms)
	}
	return out, nil
}

// mockQueue records published messages and delivers them synchronously to
// subscribers.
type mockQueue struct {
	mu       sync.Mutex
	messages []publishedMsg
	handlers map[string][]messagequeue.Handler
}

type publishedMsg struct {
	Subject string
	Data    []byte
}

func newMockQueue() *mockQueue {
	return &mockQueue{handlers: make(map[string][]messagequeue.Handler)}
}

func (m *mockQueue) Publish(ctx context.Context, subject string, data []byte) error {
	m.mu.Lock()
	m.messages = append(m.messages, publishedMsg{Subject: subject, Data: data})
	handlers := append([]messagequeue.Handler(nil), m.handlers[subject]...)
	m.mu.Unlock()
	for _, h := range handlers {
		if err := h(ctx, subject, data); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[subject] = append(m.handlers[subject], handler)
	return func() {}, nil
}

func (m *mockQueue) Drain() error      { return nil }
func (m *mockQueue) Close() error      { return nil }
func (m *mockQueue) IsConnected() bool { return true }

func (m *mockQueue) count(subject string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Subject == subject {
			n++
		}
	}
	return n
}

// mockBroadcaster records broadcast events.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []broadcastedEvent
}

type broadcastedEvent struct {
	EventType string
	Data      any
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, broadcastedEvent{EventType: eventType, Data: data})
}

func (m *mockBroadcaster) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

// mockResolver returns fixed plan limits.
type mockResolver struct {
	mu     sync.Mutex
	limits plans.Limits
	err    error
	calls  int
}

func (m *mockResolver) GetPlanLimits(_ context.Context, _ string) (*plans.Limits, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	l := m.limits
	return &l, nil
}

// mockCache is a TTL-less in-memory cache.
type mockCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{items: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// mockNotifier records sent notifications.
type mockNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
	err  error
}

func (m *mockNotifier) Name() string { return "mock" }

func (m *mockNotifier) Send(_ context.Context, n notifier.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) templates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, n := range m.sent {
		out = append(out, n.Template)
	}
	return out
}

// mockProvider returns a scripted turn.
type mockProvider struct {
	turn *provider.Turn
	err  error

	mu       sync.Mutex
	requests []provider.Request
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) SendTurn(_ context.Context, req provider.Request) (*provider.Turn, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t := *m.turn
	return &t, nil
}
