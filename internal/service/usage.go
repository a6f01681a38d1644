package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openworkhq/agentgate/internal/adapter/otel"
	"github.com/openworkhq/agentgate/internal/domain/agent"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
	"github.com/openworkhq/agentgate/internal/domain/usage"
	"github.com/openworkhq/agentgate/internal/port/database"
	"github.com/openworkhq/agentgate/internal/port/notifier"
	"github.com/openworkhq/agentgate/internal/port/plans"
)

// UsageService records per-call usage and answers aggregation queries.
// Every completed model call produces exactly one immutable ledger entry
// plus atomic counter increments on the agent and the conversation.
type UsageService struct {
	store   database.Store
	plans   plans.Resolver
	notify  *NotificationService
	metrics *otel.Metrics
	nowFunc func() time.Time
}

// NewUsageService creates a UsageService.
func NewUsageService(store database.Store, resolver plans.Resolver, notify *NotificationService, metrics *otel.Metrics) *UsageService {
	return &UsageService{
		store:   store,
		plans:   resolver,
		notify:  notify,
		metrics: metrics,
		nowFunc: time.Now,
	}
}

// Record accounts for one completed model call: it computes the cost,
// writes the ledger entry, bumps the agent and conversation counters, and
// checks the workspace's monthly quota watermarks. Watermark notifications
// are fire-and-forget; the call itself already happened, so accounting
// failures are reported but quota checks never are.
func (s *UsageService) Record(ctx context.Context, a *agent.Agent, conversationID string, tokens conversation.TokenUsage) (float64, error) {
	cost := usage.Cost(a.Provider, a.Model, tokens)
	total := int64(tokens.Total)
	if total == 0 {
		total = int64(tokens.Input + tokens.Output)
	}

	entry := &usage.LedgerEntry{
		WorkspaceID: a.WorkspaceID,
		AgentID:     a.ID,
		Provider:    string(a.Provider),
		Model:       a.Model,
		Tokens:      tokens,
		CostUSD:     cost,
	}
	if _, err := s.store.CreateLedgerEntry(ctx, entry); err != nil {
		return 0, fmt.Errorf("create ledger entry: %w", err)
	}

	if err := s.store.RecordAgentUse(ctx, a.ID, total, cost); err != nil {
		return 0, fmt.Errorf("record agent use: %w", err)
	}
	if err := s.store.AddConversationUsage(ctx, conversationID, total, cost); err != nil {
		return 0, fmt.Errorf("add conversation usage: %w", err)
	}

	s.metrics.TurnCost.Record(ctx, cost)
	s.metrics.TurnTokens.Record(ctx, total)

	s.checkQuota(ctx, a.WorkspaceID)

	return cost, nil
}

// checkQuota compares the workspace's month-to-date token usage against the
// plan quota and notifies at the 80%, 90% and 100% watermarks. The check is
// stateless: a workspace hovering at a boundary re-notifies on every call.
func (s *UsageService) checkQuota(ctx context.Context, workspaceID string) {
	limits, err := s.plans.GetPlanLimits(ctx, workspaceID)
	if err != nil {
		slog.Warn("quota check: plan lookup failed", "workspace_id", workspaceID, "error", err)
		return
	}
	if limits.MonthlyQuota <= 0 {
		return
	}

	summary, err := s.store.WorkspaceUsage(ctx, workspaceID, monthStart(s.nowFunc()))
	if err != nil {
		slog.Warn("quota check: usage lookup failed", "workspace_id", workspaceID, "error", err)
		return
	}

	percent := float64(summary.TotalTokens) / float64(limits.MonthlyQuota) * 100
	band := usage.BandFor(percent)
	if band == usage.WatermarkNone {
		return
	}

	n := notifier.Notification{
		Recipient: workspaceID,
		Level:     "warning",
		Template:  "usage-warning",
		Data: map[string]any{
			"workspace_id": workspaceID,
			"used_tokens":  summary.TotalTokens,
			"quota":        limits.MonthlyQuota,
			"percent":      percent,
		},
	}
	switch band {
	case usage.WatermarkExceeded:
		n.Level = "error"
		n.Template = "usage-limit-reached"
		n.Title = "Monthly quota exceeded"
		n.Message = fmt.Sprintf("Workspace %s has used %.0f%% of its monthly token quota.", workspaceID, percent)
	case usage.Watermark90:
		n.Title = "90% of monthly quota used"
		n.Message = fmt.Sprintf("Workspace %s has used %.0f%% of its monthly token quota.", workspaceID, percent)
	case usage.Watermark80:
		n.Title = "80% of monthly quota used"
		n.Message = fmt.Sprintf("Workspace %s has used %.0f%% of its monthly token quota.", workspaceID, percent)
	}

	s.notify.Notify(ctx, n)
}

// WorkspaceSummary returns aggregate usage for a workspace since a point in
// time. A zero since means month-to-date.
func (s *UsageService) WorkspaceSummary(ctx context.Context, workspaceID string, since time.Time) (*usage.Summary, error) {
	if since.IsZero() {
		since = monthStart(s.nowFunc())
	}
	return s.store.WorkspaceUsage(ctx, workspaceID, since)
}

// ByModel returns a per-model usage breakdown for a workspace.
func (s *UsageService) ByModel(ctx context.Context, workspaceID string, since time.Time) ([]usage.ModelSummary, error) {
	if since.IsZero() {
		since = monthStart(s.nowFunc())
	}
	return s.store.UsageByModel(ctx, workspaceID, since)
}

// QuotaExhausted reports whether the workspace is at or past its monthly
// quota. Used by the orchestrator to refuse new turns.
func (s *UsageService) QuotaExhausted(ctx context.Context, workspaceID string) (bool, error) {
	limits, err := s.plans.GetPlanLimits(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	if limits.MonthlyQuota <= 0 {
		return false, nil
	}
	summary, err := s.store.WorkspaceUsage(ctx, workspaceID, monthStart(s.nowFunc()))
	if err != nil {
		return false, err
	}
	return summary.TotalTokens >= limits.MonthlyQuota, nil
}

// monthStart returns midnight UTC on the first day of t's month.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
