package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openworkhq/agentgate/internal/domain"
	"github.com/openworkhq/agentgate/internal/domain/conversation"
)

const conversationColumns = `id, agent_id, workspace_id, user_id, title, total_tokens, total_cost_usd, created_at, updated_at`

func scanConversation(row scannable) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.AgentID, &c.WorkspaceID, &c.UserID, &c.Title,
		&c.TotalTokens, &c.TotalCost, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *Store) CreateConversation(ctx context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (agent_id, workspace_id, user_id, title)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+conversationColumns,
		c.AgentID, c.WorkspaceID, c.UserID, c.Title)

	created, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &created, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)

	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get conversation %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

func (s *Store) ListConversations(ctx context.Context, workspaceID string) ([]conversation.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE workspace_id = $1 ORDER BY updated_at DESC`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []conversation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) AppendMessage(ctx context.Context, m *conversation.Message) (*conversation.Message, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content, tool_call_ids, tokens_input, tokens_output, tokens_total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, conversation_id, role, content, tool_call_ids, tokens_input, tokens_output, tokens_total, created_at`,
		m.ConversationID, m.Role, m.Content, pgTextArray(m.ToolCallIDs),
		m.Tokens.Input, m.Tokens.Output, m.Tokens.Total)

	stored, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &stored, nil
}

func scanMessage(row scannable) (conversation.Message, error) {
	var m conversation.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.ToolCallIDs,
		&m.Tokens.Input, &m.Tokens.Output, &m.Tokens.Total, &m.CreatedAt)
	return m, err
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, tool_call_ids, tokens_input, tokens_output, tokens_total, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) AddConversationUsage(ctx context.Context, id string, tokens int64, costUSD float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET total_tokens = total_tokens + $2,
			total_cost_usd = total_cost_usd + $3, updated_at = now()
		 WHERE id = $1`,
		id, tokens, costUSD)
	if err != nil {
		return fmt.Errorf("add conversation usage %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("add conversation usage %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
