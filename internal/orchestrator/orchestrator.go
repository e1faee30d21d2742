// Package orchestrator sequences a research session: planning, worker
// dispatch with supervisor oversight, combination, debate-driven
// refinement, and document writing, returning a finished markdown
// document with an appended references section.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/nexus/internal/lmclient"
	"github.com/haasonsaas/nexus/internal/sharedmemory"
	"github.com/haasonsaas/nexus/internal/toolexec"
)

// chatClient is the subset of *lmclient.Client the Orchestrator depends
// on, so tests can substitute a stub instead of talking to a real
// inference endpoint.
type chatClient interface {
	Query(ctx context.Context, prompt string) (string, error)
	QueryStreaming(ctx context.Context, prompt string, onChunk lmclient.ChunkFunc) (string, error)
	Summarize(ctx context.Context, label string, content string) (string, error)
}

// clientFactory builds a chatClient for one agent invocation. Workers,
// the refiner and the writer pass their configured availableTools
// whitelist; the lead, critics, debate roles, supervisor and combine
// summarizer pass nil. The LM client treats an empty whitelist as the
// executor's whole catalog.
type clientFactory func(availableTools []string, call toolexec.CallContext) chatClient

// Orchestrator owns one research session's Shared Memory handle, Tool
// Executor handle, agent roster, and tuning config. A fresh session
// calls Research; the Orchestrator itself is reusable across sessions
// (a new QueryId is minted on each call).
type Orchestrator struct {
	cfg    Config
	agents Agents

	memory   *sharedmemory.Store
	executor *toolexec.Executor
	logger   *slog.Logger

	newClient clientFactory

	progress chan<- ProgressEvent
	metrics  *Metrics
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithProgressChannel attaches a channel the Orchestrator sends
// ProgressEvent values to. Sends are non-blocking: a full or absent
// channel never stalls the session.
func WithProgressChannel(ch chan<- ProgressEvent) Option {
	return func(o *Orchestrator) { o.progress = ch }
}

// WithMetrics attaches a Prometheus-backed metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New builds an Orchestrator. lmClientCfg is a template shared by every
// per-agent LM Client instance the session constructs on demand; only
// its AvailableTools field is overridden per call, with each agent's
// own tool whitelist. memory and executor may be nil for
// config-validation-only use (the resulting Orchestrator cannot run a
// session in that case).
func New(cfg Config, agents Agents, memory *sharedmemory.Store, executor *toolexec.Executor, lmClientCfg lmclient.Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "orchestrator")

	o := &Orchestrator{
		cfg:      cfg,
		agents:   agents,
		memory:   memory,
		executor: executor,
		logger:   logger,
	}
	o.newClient = func(availableTools []string, call toolexec.CallContext) chatClient {
		var exec lmclient.ToolExecutor
		if executor != nil {
			exec = executor
		}
		perAgentCfg := lmClientCfg
		perAgentCfg.AvailableTools = availableTools
		return lmclient.New(perAgentCfg, exec, call, logger)
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// pace sleeps for cfg.InterCallPause before the Orchestrator's next
// direct sequential LM call (combine/debate/refiner/writer/critic), the
// Go equivalent of the original's fixed 500ms sleep ahead of each such
// call. A non-positive InterCallPause disables pacing entirely. The
// wait aborts early if ctx is canceled.
func (o *Orchestrator) pace(ctx context.Context) error {
	if o.cfg.InterCallPause <= 0 {
		return nil
	}
	select {
	case <-time.After(o.cfg.InterCallPause):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) sendProgress(ev ProgressEvent) {
	if o.progress == nil {
		return
	}
	select {
	case o.progress <- ev:
	default:
	}
}

// Research is the main entry point: decompose the query, dispatch
// workers under supervision, combine their findings, refine through
// debate, write the document, and append references.
func (o *Orchestrator) Research(ctx context.Context, query string) (string, error) {
	queryID := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
	logger := o.logger.With("query_id", queryID)

	o.sendProgress(ProgressEvent{Kind: ProgressStarted})

	if err := o.clearSessionMemory(ctx); err != nil {
		logger.Warn("failed to clear shared memory at session start", "error", err)
	}

	o.sendProgress(ProgressEvent{Kind: ProgressDecomposing})
	plan, err := o.planQuery(ctx, query, queryID, logger)
	if err != nil {
		return "", fmt.Errorf("plan query: %w", err)
	}
	if len(plan.SubQuestions) == 0 {
		return "Unable to decompose query into sub-questions.", nil
	}

	o.storePlan(ctx, queryID, query, plan, logger)

	o.sendProgress(ProgressEvent{Kind: ProgressWorkersStarted, Count: len(plan.SubQuestions)})
	workerResults, err := o.dispatchWorkers(ctx, queryID, plan, logger)
	if err != nil {
		return "", fmt.Errorf("dispatch workers: %w", err)
	}
	o.recordToolCallMetrics(ctx, queryID, logger)

	o.sendProgress(ProgressEvent{Kind: ProgressCombining})
	combined, err := o.combineResults(ctx, query, workerResults, logger)
	if err != nil {
		return "", fmt.Errorf("combine worker results: %w", err)
	}

	refined, err := o.refinementLoop(ctx, queryID, combined, logger)
	if err != nil {
		return "", fmt.Errorf("refinement loop: %w", err)
	}

	document, err := o.documentWritingLoop(ctx, queryID, query, refined, logger)
	if err != nil {
		return "", fmt.Errorf("document writing loop: %w", err)
	}

	o.sendProgress(ProgressEvent{Kind: ProgressAddingBibliography})
	document = appendReferences(document)

	if o.cfg.ExportMemory {
		document, err = o.appendMemoryExport(ctx, document, queryID)
		if err != nil {
			logger.Warn("memory export failed, returning document without it", "error", err)
		}
	}

	o.sendProgress(ProgressEvent{Kind: ProgressCompleted})
	return document, nil
}

func (o *Orchestrator) clearSessionMemory(ctx context.Context) error {
	if o.memory == nil {
		return nil
	}
	return o.memory.Clear(ctx)
}

// recordToolCallMetrics tallies this session's tool-call audit log into
// the research_tool_calls_total counter, grouped by agent and tool.
func (o *Orchestrator) recordToolCallMetrics(ctx context.Context, queryID string, logger *slog.Logger) {
	if o.memory == nil || o.metrics == nil {
		return
	}
	calls, err := o.memory.GetToolCalls(ctx, queryID)
	if err != nil {
		logger.Warn("failed to read tool call audit log for metrics", "error", err)
		return
	}
	counts := map[[2]string]int{}
	for _, c := range calls {
		counts[[2]string{c.AgentName, c.ToolName}]++
	}
	for key, n := range counts {
		o.metrics.addToolCalls(key[0], key[1], n)
	}
}
