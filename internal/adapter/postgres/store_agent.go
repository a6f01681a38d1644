package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/agent"
)

const agentColumns = `id, workspace_id, user_id, name, description, provider, model, system_prompt,
	temperature, max_tokens, capabilities, restrictions,
	total_tokens, total_requests, total_cost_usd, last_used_at, active, created_at, updated_at`

func scanAgent(row scannable) (agent.Agent, error) {
	var (
		a            agent.Agent
		capabilities []byte
		restrictions []byte
	)
	err := row.Scan(
		&a.ID, &a.WorkspaceID, &a.UserID, &a.Name, &a.Description, &a.Provider, &a.Model, &a.SystemPrompt,
		&a.Temperature, &a.MaxTokens, &capabilities, &restrictions,
		&a.Usage.TotalTokens, &a.Usage.TotalRequests, &a.Usage.TotalCostUSD, &a.Usage.LastUsedAt, &a.Active, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return agent.Agent{}, err
	}
	if err := json.Unmarshal(capabilities, &a.Capabilities); err != nil {
		return agent.Agent{}, fmt.Errorf("decode capabilities: %w", err)
	}
	if err := json.Unmarshal(restrictions, &a.Restrictions); err != nil {
		return agent.Agent{}, fmt.Errorf("decode restrictions: %w", err)
	}
	return a, nil
}

func (s *Store) CreateAgent(ctx context.Context, req agent.CreateRequest) (*agent.Agent, error) {
	capabilities, err := json.Marshal(req.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("marshal capabilities: %w", err)
	}
	restrictions, err := json.Marshal(req.Restrictions)
	if err != nil {
		return nil, fmt.Errorf("marshal restrictions: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO agents (workspace_id, user_id, name, description, provider, model, system_prompt, temperature, max_tokens, capabilities, restrictions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+agentColumns,
		req.WorkspaceID, req.UserID, req.Name, req.Description, req.Provider, req.Model,
		req.SystemPrompt, req.Temperature, req.MaxTokens, capabilities, restrictions)

	a, err := scanAgent(row)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return &a, nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context, workspaceID string) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE workspace_id = $1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgent(ctx context.Context, id string, req agent.UpdateRequest) (*agent.Agent, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Description != nil {
		add("description", *req.Description)
	}
	if req.SystemPrompt != nil {
		add("system_prompt", *req.SystemPrompt)
	}
	if req.Temperature != nil {
		add("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		add("max_tokens", *req.MaxTokens)
	}
	if req.Capabilities != nil {
		data, err := json.Marshal(req.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("marshal capabilities: %w", err)
		}
		add("capabilities", data)
	}
	if req.Restrictions != nil {
		data, err := json.Marshal(req.Restrictions)
		if err != nil {
			return nil, fmt.Errorf("marshal restrictions: %w", err)
		}
		add("restrictions", data)
	}
	if req.Active != nil {
		add("active", *req.Active)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE agents SET `+strings.Join(sets, ", ")+` WHERE id = $1 RETURNING `+agentColumns,
		args...)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update agent %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update agent %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) RecordAgentUse(ctx context.Context, id string, tokens int64, costUSD float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET total_tokens = total_tokens + $2,
			total_requests = total_requests + 1,
			total_cost_usd = total_cost_usd + $3,
			last_used_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, tokens, costUSD)
	if err != nil {
		return fmt.Errorf("record agent use %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record agent use %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
