package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/nexus/internal/toolexec"
)

// truncationNote is appended to a worker answer that had to be hard-
// truncated because summarization itself failed.
const truncationNote = "...\n\n[Note: content truncated due to length]"

// combineResults builds the combined research document: a header naming
// the original query, then one section per worker result. Any answer
// longer than SummarizationThresholdResearch bytes is summarized first;
// if summarization itself fails, the answer is hard-truncated to the
// per-worker budget (workerSummarizationBudget, scaled by the configured
// context window and the number of workers) instead of being passed
// through whole.
func (o *Orchestrator) combineResults(ctx context.Context, query string, results []WorkerResult, logger *slog.Logger) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Results for: %s\n\n", query)

	threshold := o.cfg.SummarizationThresholdResearch
	budget := o.workerSummarizationBudget(len(results))

	for _, result := range results {
		answer := result.Answer
		if threshold > 0 && len(answer) > threshold {
			summarized, err := o.summarizeWorkerAnswer(ctx, result)
			if err != nil {
				logger.Warn("worker result summarization failed, truncating answer", "worker", result.WorkerName, "error", err)
				answer = truncateAnswer(answer, budget)
			} else {
				answer = summarized
			}
		}

		fmt.Fprintf(&b, "## %s\n**Question:** %s\n\n%s\n\n", result.WorkerName, result.Question, answer)
	}

	return b.String(), nil
}

// workerSummarizationBudget computes the per-worker byte budget: 80% of
// the context window (the remainder reserved for prompt and system
// overhead), split evenly across the workers, converted from tokens to
// bytes at a 4-bytes-per-token heuristic. Falls back to the flat
// SummarizationThresholdResearch when ContextWindow or numWorkers isn't
// usable.
func (o *Orchestrator) workerSummarizationBudget(numWorkers int) int {
	if o.cfg.ContextWindow <= 0 || numWorkers <= 0 {
		return o.cfg.SummarizationThresholdResearch
	}
	availableTokens := int(float64(o.cfg.ContextWindow) * 0.8)
	return (availableTokens / numWorkers) * 4
}

func truncateAnswer(answer string, budget int) string {
	if budget <= 0 || budget >= len(answer) {
		return answer
	}
	return answer[:budget] + truncationNote
}

func (o *Orchestrator) summarizeWorkerAnswer(ctx context.Context, result WorkerResult) (string, error) {
	if err := o.pace(ctx); err != nil {
		return "", err
	}
	client := o.newClient(nil, toolexec.CallContext{AgentName: "combine"})
	return client.Summarize(ctx, result.WorkerName, result.Answer)
}
