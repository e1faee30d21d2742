package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/nexus/internal/sharedmemory"
)

// appendMemoryExport appends a "## Research Memory Summary" section
// enumerating per-type counts, tool usage by agent, and every
// Discovery/Insight/Deadend/Feedback memory from the session, then
// clears Shared Memory so the next session starts empty.
func (o *Orchestrator) appendMemoryExport(ctx context.Context, document, queryID string) (string, error) {
	if o.memory == nil {
		return document, nil
	}

	stats, err := o.memory.GetStats(ctx)
	if err != nil {
		return document, fmt.Errorf("read memory stats for export: %w", err)
	}

	toolCalls, err := o.memory.GetToolCalls(ctx, queryID)
	if err != nil {
		return document, fmt.Errorf("read tool call audit log for export: %w", err)
	}

	var b strings.Builder
	b.WriteString(document)
	b.WriteString("\n\n## Research Memory Summary\n\n")

	b.WriteString("**Memory counts by type**\n\n")
	types := make([]string, 0, len(stats.Counts))
	for t := range stats.Counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "- %s: %d\n", t, stats.Counts[sharedmemory.Type(t)])
	}
	fmt.Fprintf(&b, "- total: %d\n\n", stats.Total)

	b.WriteString("**Tool Usage by Agent**\n\n")
	if len(toolCalls) == 0 {
		b.WriteString("- (no tool calls recorded)\n\n")
	} else {
		counts := map[string]int{}
		for _, c := range toolCalls {
			counts[c.AgentName+" / "+c.ToolName]++
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %d call(s)\n", k, counts[k])
		}
		b.WriteString("\n")
	}

	if err := o.appendMemorySection(ctx, &b, "Discoveries", sharedmemory.TypeDiscovery, queryID); err != nil {
		return document, err
	}
	if err := o.appendMemorySection(ctx, &b, "Insights", sharedmemory.TypeInsight, queryID); err != nil {
		return document, err
	}
	if err := o.appendMemorySection(ctx, &b, "Dead Ends", sharedmemory.TypeDeadend, queryID); err != nil {
		return document, err
	}
	if err := o.appendMemorySection(ctx, &b, "Feedback", sharedmemory.TypeFeedback, queryID); err != nil {
		return document, err
	}

	if err := o.memory.Clear(ctx); err != nil {
		return b.String(), fmt.Errorf("clear shared memory after export: %w", err)
	}

	return b.String(), nil
}

func (o *Orchestrator) appendMemorySection(ctx context.Context, b *strings.Builder, title string, memType sharedmemory.Type, queryID string) error {
	memories, err := o.memory.GetByType(ctx, memType, 0)
	if err != nil {
		return fmt.Errorf("read %s memories for export: %w", title, err)
	}

	var matched []sharedmemory.Memory
	for _, m := range memories {
		if id, ok := m.QueryID(); !ok || id == queryID {
			matched = append(matched, m)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	fmt.Fprintf(b, "**%s**\n\n", title)
	for _, m := range matched {
		fmt.Fprintf(b, "- (%s) %s\n", m.CreatedBy, m.Content)
	}
	b.WriteString("\n")
	return nil
}
