package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/toolcall"
	"github.com/openworkhq/agentgate/internal/port/database"
)

const toolCallColumns = `id, conversation_id, workspace_id, agent_id, user_id, tool, arguments, status, risk_level,
	requires_approval, approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
	result, error, executed_at, duration_ms, created_at, updated_at`

func scanToolCall(row scannable) (toolcall.Request, error) {
	var (
		tc         toolcall.Request
		resultJSON []byte
		durationMS int64
	)
	err := row.Scan(
		&tc.ID, &tc.ConversationID, &tc.WorkspaceID, &tc.AgentID, &tc.UserID, &tc.Tool, &tc.Arguments, &tc.Status, &tc.Risk,
		&tc.RequiresApproval, &tc.ApprovedBy, &tc.ApprovedAt, &tc.RejectedBy, &tc.RejectedAt, &tc.RejectionReason,
		&resultJSON, &tc.Error, &tc.ExecutedAt, &durationMS, &tc.CreatedAt, &tc.UpdatedAt,
	)
	if err != nil {
		return toolcall.Request{}, err
	}
	if len(resultJSON) > 0 {
		tc.Result = &toolcall.Result{}
		if err := json.Unmarshal(resultJSON, tc.Result); err != nil {
			return toolcall.Request{}, fmt.Errorf("decode result: %w", err)
		}
	}
	tc.Duration = time.Duration(durationMS) * time.Millisecond
	return tc, nil
}

func (s *Store) CreateToolCall(ctx context.Context, tc *toolcall.Request) (*toolcall.Request, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tool_calls (conversation_id, workspace_id, agent_id, user_id, tool, arguments, status, risk_level, requires_approval)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+toolCallColumns,
		tc.ConversationID, tc.WorkspaceID, tc.AgentID, tc.UserID, tc.Tool, tc.Arguments,
		tc.Status, tc.Risk, tc.RequiresApproval)

	created, err := scanToolCall(row)
	if err != nil {
		return nil, fmt.Errorf("create tool call: %w", err)
	}
	return &created, nil
}

func (s *Store) GetToolCall(ctx context.Context, id string) (*toolcall.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+toolCallColumns+` FROM tool_calls WHERE id = $1`, id)

	tc, err := scanToolCall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get tool call %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get tool call %s: %w", id, err)
	}
	return &tc, nil
}

func (s *Store) ListToolCalls(ctx context.Context, filter database.ToolCallFilter) ([]toolcall.Request, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.WorkspaceID != "" {
		add("workspace_id = $%d", filter.WorkspaceID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at < $%d", filter.Until)
	}

	query := `SELECT ` + toolCallColumns + ` FROM tool_calls`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tool calls: %w", err)
	}
	defer rows.Close()

	var out []toolcall.Request
	for rows.Next() {
		tc, err := scanToolCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// transition runs one compare-and-set status update. Zero rows affected
// means either the record is gone or its status no longer matches the
// precondition; the follow-up lookup distinguishes the two.
func (s *Store) transition(ctx context.Context, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition tool call %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status toolcall.Status
	err = s.pool.QueryRow(ctx, `SELECT status FROM tool_calls WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("tool call %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("tool call %s: %w", id, err)
	}
	return fmt.Errorf("tool call %s is %s: %w", id, status, domain.ErrInvalidState)
}

func (s *Store) MarkToolCallApproved(ctx context.Context, id, approver string) error {
	return s.transition(ctx, id,
		`UPDATE tool_calls SET status = 'approved', approved_by = $2, approved_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, approver)
}

func (s *Store) MarkToolCallRejected(ctx context.Context, id, rejector, reason string) error {
	return s.transition(ctx, id,
		`UPDATE tool_calls SET status = 'rejected', rejected_by = $2, rejected_at = now(), rejection_reason = $3, updated_at = now()
		 WHERE id = $1 AND status = 'pending'`,
		id, rejector, reason)
}

func (s *Store) MarkToolCallExecuted(ctx context.Context, id string, result *toolcall.Result, duration time.Duration) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.transition(ctx, id,
		`UPDATE tool_calls SET status = 'executed', result = $2, executed_at = now(), duration_ms = $3, updated_at = now()
		 WHERE id = $1 AND status = 'approved'`,
		id, resultJSON, duration.Milliseconds())
}

func (s *Store) MarkToolCallFailed(ctx context.Context, id, errMsg string) error {
	return s.transition(ctx, id,
		`UPDATE tool_calls SET status = 'failed', error = $2, executed_at = now(), updated_at = now()
		 WHERE id = $1 AND status = 'approved'`,
		id, errMsg)
}
