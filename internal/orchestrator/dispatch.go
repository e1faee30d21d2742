package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/haasonsaas/nexus/internal/dynamiccontext"
	"github.com/haasonsaas/nexus/internal/sharedmemory"
	"github.com/haasonsaas/nexus/internal/toolexec"
)

// maxGapWorkersPerSession bounds a single supervisor gap injection.
const maxGapWorkersPerSession = 3

// maxFollowUpQuestions bounds the early-results background follow-up.
const maxFollowUpQuestions = 4

// dispatchWorkers runs the initial sub-questions as concurrent worker
// tasks, supervises them with a parallel Supervisor task, admits at most
// one supervisor-driven gap injection, and spawns a background
// follow-up round once enough early results are in. It returns once
// every spawned worker (initial, gap, and follow-up) has reported a
// result.
func (o *Orchestrator) dispatchWorkers(ctx context.Context, queryID string, plan Plan, logger *slog.Logger) ([]WorkerResult, error) {
	initialCount := len(plan.SubQuestions)
	resultsCh := make(chan WorkerResult, initialCount+maxGapWorkersPerSession+maxFollowUpQuestions)
	gapCh := make(chan []SubQuestion, 1)

	supervisorCtx, cancelSupervisor := context.WithCancel(ctx)
	defer cancelSupervisor()

	go o.runSupervisor(supervisorCtx, queryID, plan, gapCh, initialCount, logger)

	for _, subQ := range plan.SubQuestions {
		o.spawnWorker(ctx, queryID, subQ, resultsCh, logger)
	}

	activeWorkers := initialCount
	completed := 0
	extraSpawned := 0 // gap + follow-up workers spawned beyond initialCount, shared against MaxWorkerCount
	gapInjected := false
	followUpFired := false
	var earlyResults []WorkerResult
	var results []WorkerResult

	for activeWorkers > 0 {
		select {
		case <-ctx.Done():
			return results, fmt.Errorf("research session: %w", ErrCancelled)

		case gapQuestions, ok := <-gapCh:
			if !ok || gapInjected {
				continue
			}
			gapInjected = true
			allowed := o.cfg.MaxWorkerCount - initialCount - extraSpawned
			if allowed > maxGapWorkersPerSession {
				allowed = maxGapWorkersPerSession
			}
			if allowed > len(gapQuestions) {
				allowed = len(gapQuestions)
			}
			if allowed < 0 {
				allowed = 0
			}
			for _, subQ := range gapQuestions[:allowed] {
				o.spawnWorker(ctx, queryID, subQ, resultsCh, logger)
				activeWorkers++
				extraSpawned++
			}

		case result := <-resultsCh:
			activeWorkers--
			completed++
			results = append(results, result)
			o.sendProgress(ProgressEvent{Kind: ProgressWorkerCompleted, WorkerName: result.WorkerName})
			o.recordProgressContext(ctx, queryID, completed, initialCount, logger)

			if completed <= o.cfg.EarlyResultsThreshold {
				earlyResults = append(earlyResults, result)
			}
			if !followUpFired && completed == o.cfg.EarlyResultsThreshold && len(earlyResults) > 0 {
				followUpFired = true
				room := o.cfg.MaxWorkerCount - initialCount - extraSpawned
				if room > maxFollowUpQuestions {
					room = maxFollowUpQuestions
				}
				if room > 0 {
					spawned := o.spawnFollowUpWorkers(ctx, queryID, plan, earlyResults, resultsCh, room, logger)
					activeWorkers += spawned
					extraSpawned += spawned
				}
			}
		}
	}

	return results, nil
}

// spawnWorker builds a per-worker LM client with the worker's system
// prompt, tool whitelist, and a fresh dynamic-context pre-prompt, runs a
// single query, and sends the result on resultsCh. Tool errors and
// transport failures both become a worker answer of "Error: ...", per
// the orchestrator's never-abort-for-one-worker policy.
func (o *Orchestrator) spawnWorker(ctx context.Context, queryID string, subQ SubQuestion, resultsCh chan<- WorkerResult, logger *slog.Logger) {
	go func() {
		worker, ok := o.findWorker(subQ.AssignedWorker)
		if !ok {
			resultsCh <- WorkerResult{Question: subQ.Question, WorkerName: subQ.AssignedWorker, Answer: fmt.Sprintf("Error: worker not found: %s", subQ.AssignedWorker)}
			return
		}

		dctx := dynamiccontext.New(subQ.Question, worker.Name, o.memory)
		dctx.NextIteration()
		preamble, err := dctx.BuildPrompt(ctx)
		if err != nil {
			logger.Warn("failed to build dynamic context for worker", "worker", worker.Name, "error", err)
			preamble = fmt.Sprintf("Your assigned task: %s", subQ.Question)
		}

		prompt := fmt.Sprintf("%s\n\n%s", worker.SystemPrompt, preamble)
		client := o.newClient(worker.AvailableTools, toolexec.CallContext{QueryID: queryID, AgentName: worker.Name})

		start := time.Now()
		answer, err := client.QueryStreaming(ctx, prompt, nil)
		o.metrics.observeWorkerDuration(worker.Name, time.Since(start))
		if err != nil {
			answer = fmt.Sprintf("Error: %v", err)
		}

		resultsCh <- WorkerResult{Question: subQ.Question, Answer: answer, WorkerName: worker.Name}
	}()
}

func (o *Orchestrator) findWorker(name string) (AgentRole, bool) {
	for _, w := range o.agents.Workers {
		if w.Name == name {
			return w, true
		}
	}
	return AgentRole{}, false
}

// recordProgressContext writes a Context memory describing dispatch
// progress, which the Supervisor reads instead of sharing mutable state
// directly with the dispatch loop.
func (o *Orchestrator) recordProgressContext(ctx context.Context, queryID string, completed, total int, logger *slog.Logger) {
	if o.memory == nil {
		return
	}
	midpoint := completed >= o.cfg.MidpointThreshold
	_, err := o.memory.Store(ctx, sharedmemory.TypeContext, fmt.Sprintf("Progress: %d/%d workers completed", completed, total), map[string]string{
		"query_id":  queryID,
		"completed": strconv.Itoa(completed),
		"total":     strconv.Itoa(total),
		"midpoint":  strconv.FormatBool(midpoint),
	}, "orchestrator")
	if err != nil {
		logger.Warn("failed to record progress context", "error", err)
	}
}

// spawnFollowUpWorkers asks the lead agent for up to limit follow-up
// sub-questions given the early results, then spawns one worker per
// parsed assignment. It returns the number of workers spawned so the
// caller can adjust its active-worker count.
func (o *Orchestrator) spawnFollowUpWorkers(ctx context.Context, queryID string, plan Plan, early []WorkerResult, resultsCh chan<- WorkerResult, limit int, logger *slog.Logger) int {
	lead := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: o.agents.Lead.Name})

	var findings string
	for _, r := range early {
		findings += fmt.Sprintf("- [%s] %s: %s\n", r.WorkerName, r.Question, truncateForPrompt(r.Answer, 2000))
	}

	prompt := fmt.Sprintf(
		"%s\n\nBased on these early findings, propose up to %d follow-up sub-questions as a JSON array of {\"question\", \"worker\"} assignments. If no follow-up is needed, respond with an empty array.\n\nEarly findings:\n%s",
		o.agents.Lead.SystemPrompt, limit, findings,
	)

	response, err := lead.Query(ctx, prompt)
	if err != nil {
		logger.Warn("follow-up question generation failed", "error", err)
		return 0
	}

	followUpPlan, err := o.parsePlan(response)
	if err != nil {
		logger.Warn("follow-up questions unparseable, skipping", "error", err)
		return 0
	}

	questions := followUpPlan.SubQuestions
	if len(questions) > limit {
		questions = questions[:limit]
	}
	for _, subQ := range questions {
		o.spawnWorker(ctx, queryID, subQ, resultsCh, logger)
	}
	return len(questions)
}

func truncateForPrompt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
