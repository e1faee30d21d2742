// Package sharedmemory implements the durable, process-wide store of
// typed memories with semantic search that every agent in a research
// session reads from and writes to.
package sharedmemory

import "time"

// Type identifies the kind of memory a record holds.
type Type string

const (
	TypeDiscovery   Type = "discovery"
	TypeInsight     Type = "insight"
	TypeDeadend     Type = "deadend"
	TypeQueryResult Type = "query_result"
	TypePlan        Type = "plan"
	TypeFeedback    Type = "feedback"
	TypeContext     Type = "context"
)

// Memory is a typed, embedded, timestamped text record visible to every
// agent in the session. Immutable once stored, except via UpdateOrStore.
type Memory struct {
	ID        int64
	Type      Type
	Content   string
	Metadata  map[string]string
	CreatedBy string
	CreatedAt time.Time
	Embedding []float32
}

// QueryID reads the session-scoping query_id out of Metadata, if present.
func (m *Memory) QueryID() (string, bool) {
	if m.Metadata == nil {
		return "", false
	}
	v, ok := m.Metadata["query_id"]
	return v, ok && v != ""
}

// ToolCall is an append-only audit record of one tool invocation.
type ToolCall struct {
	ID            int64
	QueryID       string
	AgentName     string
	ToolType      string
	ToolName      string
	ParametersRaw string
	CreatedAt     time.Time
}

// Stats holds per-type memory counts.
type Stats struct {
	Counts map[Type]int
	Total  int
}
