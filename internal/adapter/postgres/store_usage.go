package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/openworkhq/agentgate/internal/domain/usage"
)

func (s *Store) CreateLedgerEntry(ctx context.Context, e *usage.LedgerEntry) (*usage.LedgerEntry, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO usage_ledger (workspace_id, agent_id, provider, model, tokens_input, tokens_output, tokens_total, cost_usd)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, workspace_id, agent_id, provider, model, tokens_input, tokens_output, tokens_total, cost_usd, created_at`,
		e.WorkspaceID, e.AgentID, e.Provider, e.Model,
		e.Tokens.Input, e.Tokens.Output, e.Tokens.Total, e.CostUSD)

	var created usage.LedgerEntry
	err := row.Scan(&created.ID, &created.WorkspaceID, &created.AgentID, &created.Provider, &created.Model,
		&created.Tokens.Input, &created.Tokens.Output, &created.Tokens.Total, &created.CostUSD, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	return &created, nil
}

func (s *Store) WorkspaceUsage(ctx context.Context, workspaceID string, since time.Time) (*usage.Summary, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(GREATEST(tokens_total, tokens_input + tokens_output)), 0),
			COALESCE(SUM(cost_usd), 0), COUNT(*)
		 FROM usage_ledger WHERE workspace_id = $1 AND created_at >= $2`,
		workspaceID, since)

	summary := usage.Summary{WorkspaceID: workspaceID}
	if err := row.Scan(&summary.TotalTokens, &summary.TotalCostUSD, &summary.Calls); err != nil {
		return nil, fmt.Errorf("workspace usage %s: %w", workspaceID, err)
	}
	return &summary, nil
}

func (s *Store) UsageByModel(ctx context.Context, workspaceID string, since time.Time) ([]usage.ModelSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT provider, model,
			COALESCE(SUM(GREATEST(tokens_total, tokens_input + tokens_output)), 0),
			COALESCE(SUM(cost_usd), 0), COUNT(*)
		 FROM usage_ledger WHERE workspace_id = $1 AND created_at >= $2
		 GROUP BY provider, model
		 ORDER BY SUM(cost_usd) DESC`,
		workspaceID, since)
	if err != nil {
		return nil, fmt.Errorf("usage by model %s: %w", workspaceID, err)
	}
	defer rows.Close()

	var out []usage.ModelSummary
	for rows.Next() {
		var ms usage.ModelSummary
		if err := rows.Scan(&ms.Provider, &ms.Model, &ms.TotalTokens, &ms.TotalCostUSD, &ms.Calls); err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}
