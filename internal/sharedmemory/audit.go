package sharedmemory

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordToolCall appends an audit row before a tool is executed. This is
// called by the Tool Executor ahead of every HTTP/MCP/builtin dispatch,
// so the log reflects attempts, not just successes.
func (s *Store) RecordToolCall(ctx context.Context, call ToolCall) (int64, error) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (query_id, agent_name, tool_type, tool_name, parameters_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		call.QueryID, call.AgentName, call.ToolType, call.ToolName, call.ParametersRaw, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("insert tool call audit row: %w", err)
	}
	return res.LastInsertId()
}

// GetToolCalls returns the audit log for a query, oldest first.
func (s *Store) GetToolCalls(ctx context.Context, queryID string) ([]ToolCall, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_id, agent_name, tool_type, tool_name, parameters_json, created_at
		FROM tool_calls WHERE query_id = ? ORDER BY id ASC`, queryID)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	var out []ToolCall
	for rows.Next() {
		var c ToolCall
		var createdAt int64
		var qid sql.NullString
		if err := rows.Scan(&c.ID, &qid, &c.AgentName, &c.ToolType, &c.ToolName, &c.ParametersRaw, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tool call row: %w", err)
		}
		c.QueryID = qid.String
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
