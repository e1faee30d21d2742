package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/haasonsaas/nexus/internal/lmclient"
	"github.com/haasonsaas/nexus/internal/sharedmemory"
	"github.com/haasonsaas/nexus/internal/toolexec"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Dimension() int { return f.dim }
func (f fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dim)
	for i, r := range text {
		vec[i%f.dim] += float32(r % 7)
	}
	return vec, nil
}

func newTestStore(t *testing.T) *sharedmemory.Store {
	t.Helper()
	dir := t.TempDir()
	store, err := sharedmemory.New(context.Background(), filepath.Join(dir, "mem.db"), fakeEmbedder{dim: 8}, discardLogger())
	if err != nil {
		t.Fatalf("sharedmemory.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// fakeClient is a chatClient test double keyed by agent name. Each
// agent name gets its own queue of canned replies consumed in order;
// a queue that runs dry falls back to defaultReply, or to an error if
// failOnEmpty is set.
type fakeClient struct {
	agentName string
	fc        *fakeFactory
}

func (c *fakeClient) Query(ctx context.Context, prompt string) (string, error) {
	return c.fc.next(c.agentName, prompt)
}

func (c *fakeClient) QueryStreaming(ctx context.Context, prompt string, onChunk lmclient.ChunkFunc) (string, error) {
	reply, err := c.fc.next(c.agentName, prompt)
	if err == nil && onChunk != nil {
		onChunk(reply)
	}
	return reply, err
}

func (c *fakeClient) Summarize(ctx context.Context, label, content string) (string, error) {
	if c.fc.summarizeFn != nil {
		return c.fc.summarizeFn(label, content)
	}
	return "summarized: " + content, nil
}

// fakeFactory implements clientFactory over canned, per-agent reply
// queues, and records every prompt it was asked to answer.
type fakeFactory struct {
	mu          sync.Mutex
	replies     map[string][]string
	defaultErr  error
	calls       []fakeCall
	summarizeFn func(label, content string) (string, error)
}

type fakeCall struct {
	agent  string
	prompt string
}

func newFakeFactory(replies map[string][]string) *fakeFactory {
	return &fakeFactory{replies: replies}
}

func (f *fakeFactory) factory() clientFactory {
	return func(availableTools []string, call toolexec.CallContext) chatClient {
		return &fakeClient{agentName: call.AgentName, fc: f}
	}
}

func (f *fakeFactory) next(agent, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{agent: agent, prompt: prompt})

	queue := f.replies[agent]
	if len(queue) == 0 {
		if f.defaultErr != nil {
			return "", f.defaultErr
		}
		return "", errors.New("fakeFactory: no reply queued for agent " + agent)
	}
	reply := queue[0]
	f.replies[agent] = queue[1:]
	return reply, nil
}

func testAgents() Agents {
	return Agents{
		Lead: AgentRole{Name: "lead", Role: "lead", SystemPrompt: "You are the lead researcher."},
		Workers: []AgentRole{
			{Name: "web-researcher", Role: "web", SystemPrompt: "You research the web."},
			{Name: "data-analyst", Role: "data", SystemPrompt: "You analyze data."},
		},
		PlanCritic: AgentRole{Name: "plan-critic", Role: "plan_critic", SystemPrompt: "You critique plans."},
		DebateAgents: []AgentRole{
			{Name: "advocate", Role: debateRoleAdvocate, SystemPrompt: "You advocate for the research."},
			{Name: "skeptic", Role: debateRoleSkeptic, SystemPrompt: "You are skeptical of the research."},
			{Name: "synthesizer", Role: debateRoleSynthesizer, SystemPrompt: "You synthesize a verdict."},
		},
		Refiner:        AgentRole{Name: "refiner", Role: "refiner", SystemPrompt: "You refine the output."},
		Writer:         AgentRole{Name: "writer", Role: "writer", SystemPrompt: "You write the document."},
		DocumentCritic: AgentRole{Name: "document-critic", Role: "document_critic", SystemPrompt: "You critique the document."},
	}
}

func testOrchestrator(t *testing.T, cfg Config, agents Agents, fc *fakeFactory) *Orchestrator {
	t.Helper()
	o := &Orchestrator{
		cfg:       cfg,
		agents:    agents,
		memory:    newTestStore(t),
		logger:    discardLogger(),
		newClient: fc.factory(),
	}
	return o
}
