package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/sharedmemory"
	"github.com/haasonsaas/nexus/internal/toolexec"
)

// runSupervisor polls Shared Memory on a fixed interval for the
// lifetime of one dispatch round, asking the research LM for a
// critique of progress so far and, once the midpoint threshold is
// reached, for at most one round of gap-filling sub-questions. It
// exits when ctx is cancelled (dispatchWorkers cancels supervisorCtx
// once every worker has reported).
func (o *Orchestrator) runSupervisor(ctx context.Context, queryID string, plan Plan, gapCh chan<- []SubQuestion, initialWorkerCount int, logger *slog.Logger) {
	interval := o.cfg.SupervisorInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	gapOffered := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			completed, ok := o.latestProgress(ctx, queryID)
			if !ok {
				continue
			}

			o.reviewProgress(ctx, queryID, plan, completed, logger)

			if !gapOffered && completed.completed >= o.cfg.MidpointThreshold && initialWorkerCount < o.cfg.MaxWorkerCount {
				gapOffered = true
				o.offerGapQuestions(ctx, queryID, plan, completed, gapCh, logger)
			}
		}
	}
}

type progressSnapshot struct {
	completed int
	total     int
}

// latestProgress reads back the most recent Context memory dispatchWorkers
// wrote via recordProgressContext. Returns ok=false if nothing has been
// recorded yet (nothing to review on the first tick).
func (o *Orchestrator) latestProgress(ctx context.Context, queryID string) (progressSnapshot, bool) {
	if o.memory == nil {
		return progressSnapshot{}, false
	}
	memories, err := o.memory.GetByType(ctx, sharedmemory.TypeContext, 20)
	if err != nil {
		return progressSnapshot{}, false
	}
	for _, m := range memories {
		if id, _ := m.QueryID(); id != queryID {
			continue
		}
		completed, _ := strconv.Atoi(m.Metadata["completed"])
		total, _ := strconv.Atoi(m.Metadata["total"])
		return progressSnapshot{completed: completed, total: total}, true
	}
	return progressSnapshot{}, false
}

// reviewProgress reads recent discoveries (cap 20), insights (cap 10),
// and all deadends, summarizes them along with the plan and progress,
// asks the research LM for a short critique, and stores it as the
// session's single live Feedback memory via UpdateOrStore.
func (o *Orchestrator) reviewProgress(ctx context.Context, queryID string, plan Plan, progress progressSnapshot, logger *slog.Logger) {
	if o.memory == nil {
		return
	}

	discoveries, _ := o.memory.GetByType(ctx, sharedmemory.TypeDiscovery, 20)
	insights, _ := o.memory.GetByType(ctx, sharedmemory.TypeInsight, 10)
	deadends, _ := o.memory.GetByType(ctx, sharedmemory.TypeDeadend, 0)

	if len(discoveries) == 0 && len(insights) == 0 && len(deadends) == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plan strategy: %s\n", plan.Strategy)
	fmt.Fprintf(&b, "Progress: %d/%d workers completed\n\n", progress.completed, progress.total)
	writeMemorySection(&b, "Discoveries", discoveries)
	writeMemorySection(&b, "Insights", insights)
	writeMemorySection(&b, "Dead ends", deadends)

	prompt := fmt.Sprintf(
		"%s\n\nReview the research session below and provide a short critique plus recommended guidance for the remaining workers.\n\n%s",
		o.agents.Lead.SystemPrompt, b.String(),
	)

	client := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: "supervisor"})
	critique, err := client.Query(ctx, prompt)
	if err != nil {
		logger.Warn("supervisor critique query failed", "error", err)
		return
	}

	if _, err := o.memory.UpdateOrStore(ctx, sharedmemory.TypeFeedback, critique, map[string]string{
		"query_id": queryID,
	}, "supervisor"); err != nil {
		logger.Warn("failed to store supervisor feedback", "error", err)
	}
}

// offerGapQuestions asks the research LM to either decline with the
// literal token NO_GAPS or propose up to maxGapWorkersPerSession gap
// sub-questions, and sends any parsed questions on gapCh. This fires
// at most once per session (gated by the caller's gapOffered latch).
func (o *Orchestrator) offerGapQuestions(ctx context.Context, queryID string, plan Plan, progress progressSnapshot, gapCh chan<- []SubQuestion, logger *slog.Logger) {
	prompt := fmt.Sprintf(
		"%s\n\nThe research session below is roughly halfway through worker dispatch. Decide whether any coverage gaps are worth filling with additional workers.\n\nPlan strategy: %s\n%s\nProgress: %d/%d workers completed.\n\nIf no gap is worth filling, respond with exactly NO_GAPS. Otherwise respond with a JSON array of up to %d {\"question\", \"worker\"} assignments for gap-filling sub-questions.",
		o.agents.Lead.SystemPrompt, plan.Strategy, formatSubQuestions(plan.SubQuestions), progress.completed, progress.total, maxGapWorkersPerSession,
	)

	client := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: "supervisor"})
	response, err := client.Query(ctx, prompt)
	if err != nil {
		logger.Warn("supervisor gap-question query failed", "error", err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(response), "NO_GAPS") {
		return
	}

	gapPlan, err := o.parsePlan(response)
	if err != nil {
		logger.Warn("supervisor gap questions unparseable, skipping gap injection", "error", err)
		return
	}
	if len(gapPlan.SubQuestions) == 0 {
		return
	}

	select {
	case gapCh <- gapPlan.SubQuestions:
		o.metrics.incGapInjection()
	default:
	}
}

func writeMemorySection(b *strings.Builder, title string, memories []sharedmemory.Memory) {
	if len(memories) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, m := range memories {
		fmt.Fprintf(b, "- %s\n", truncateForPrompt(m.Content, 500))
	}
	b.WriteString("\n")
}
