package dynamiccontext

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/nexus/internal/sharedmemory"
)

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
	store, err := sharedmemory.New(context.Background(), filepath.Join(dir, "mem.db"), fakeEmbedder{dim: 8}, slog.Default())
	if err != nil {
		t.Fatalf("sharedmemory.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	c := New("What is the capital of France?", "worker-1", nil)
	if c.Query() != "What is the capital of France?" {
		t.Errorf("Query() = %q", c.Query())
	}
	if c.AgentName() != "worker-1" {
		t.Errorf("AgentName() = %q", c.AgentName())
	}
	if c.CurrentIteration() != 0 {
		t.Errorf("CurrentIteration() = %d, want 0", c.CurrentIteration())
	}
}

func TestNextIteration(t *testing.T) {
	c := New("q", "a", nil)
	c.NextIteration()
	if c.CurrentIteration() != 1 {
		t.Errorf("CurrentIteration() = %d, want 1", c.CurrentIteration())
	}
	c.NextIteration()
	if c.CurrentIteration() != 2 {
		t.Errorf("CurrentIteration() = %d, want 2", c.CurrentIteration())
	}
}

func TestWorkingNotes(t *testing.T) {
	c := New("q", "a", nil)
	c.AddNote("First observation", NoteObservation)
	c.AddNote("Tool result", NoteToolResult)

	prompt, err := c.BuildPrompt(context.Background())
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "First observation") || !strings.Contains(prompt, "Tool result") {
		t.Errorf("BuildPrompt() = %q, want both notes present", prompt)
	}

	c.ClearNotes()
	prompt2, err := c.BuildPrompt(context.Background())
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if strings.Contains(prompt2, "working notes") {
		t.Errorf("BuildPrompt() after ClearNotes = %q, want no notes section", prompt2)
	}
}

func TestState(t *testing.T) {
	c := New("q", "a", nil)
	c.SetState("key1", "value1")
	c.SetState("key2", "value2")

	if v, ok := c.GetState("key1"); !ok || v != "value1" {
		t.Errorf("GetState(key1) = %q, %v", v, ok)
	}
	if _, ok := c.GetState("nonexistent"); ok {
		t.Error("GetState(nonexistent) should be absent")
	}
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	c := New("What is the capital of France?", "worker-1", nil)
	prompt, err := c.BuildPrompt(context.Background())
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "Current date:") {
		t.Errorf("BuildPrompt() missing global context: %q", prompt)
	}
	if !strings.Contains(prompt, "What is the capital of France?") {
		t.Errorf("BuildPrompt() missing assigned task: %q", prompt)
	}
	for _, absent := range []string{"working notes", "State", "Research Plan", "Leader Feedback", "Recent findings"} {
		if strings.Contains(prompt, absent) {
			t.Errorf("BuildPrompt() should omit empty %q section, got %q", absent, prompt)
		}
	}
}

func TestBuildPrompt_PullsSharedMemoryOncePerIteration(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, sharedmemory.TypePlan, "Investigate primary sources first.", nil, "lead"); err != nil {
		t.Fatalf("Store(plan): %v", err)
	}
	if _, err := store.Store(ctx, sharedmemory.TypeDiscovery, "Found a relevant 2023 paper.", nil, "worker-2"); err != nil {
		t.Fatalf("Store(discovery): %v", err)
	}

	c := New("research topic X", "worker-1", store)

	prompt, err := c.BuildPrompt(ctx)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !strings.Contains(prompt, "Research Plan (by lead)") {
		t.Errorf("BuildPrompt() missing plan section: %q", prompt)
	}
	if !strings.Contains(prompt, "Found a relevant 2023 paper") {
		t.Errorf("BuildPrompt() missing discovery: %q", prompt)
	}

	if _, err := store.Store(ctx, sharedmemory.TypeDiscovery, "A second finding that arrived later.", nil, "worker-3"); err != nil {
		t.Fatalf("Store(discovery 2): %v", err)
	}

	prompt2, err := c.BuildPrompt(ctx)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if strings.Contains(prompt2, "Research Plan") || strings.Contains(prompt2, "A second finding") {
		t.Errorf("BuildPrompt() within the same iteration should not re-sync: %q", prompt2)
	}

	c.NextIteration()
	prompt3, err := c.BuildPrompt(ctx)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if !strings.Contains(prompt3, "A second finding") {
		t.Errorf("BuildPrompt() after NextIteration should re-sync and see new discovery: %q", prompt3)
	}
}

func TestBuildPrompt_FeedbackNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Store(ctx, sharedmemory.TypeFeedback, "First round critique.", nil, "supervisor"); err != nil {
		t.Fatalf("Store(feedback 1): %v", err)
	}
	if _, err := store.Store(ctx, sharedmemory.TypeFeedback, "Second round critique.", nil, "supervisor"); err != nil {
		t.Fatalf("Store(feedback 2): %v", err)
	}

	c := New("q", "worker-1", store)
	prompt, err := c.BuildPrompt(ctx)
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}

	firstIdx := strings.Index(prompt, "Second round critique.")
	secondIdx := strings.Index(prompt, "First round critique.")
	if firstIdx < 0 || secondIdx < 0 || firstIdx > secondIdx {
		t.Errorf("expected newest feedback first: %q", prompt)
	}
}

func TestBuildPrompt_NoMemoryStoreSkipsSection(t *testing.T) {
	c := New("q", "a", nil)
	prompt, err := c.BuildPrompt(context.Background())
	if err != nil {
		t.Fatalf("BuildPrompt() error = %v", err)
	}
	if strings.Contains(prompt, "Research Plan") {
		t.Errorf("BuildPrompt() with nil memory should have no plan section: %q", prompt)
	}
}

func TestGlobalContext(t *testing.T) {
	ctx := globalContext()
	if !strings.Contains(ctx, "Current date:") {
		t.Errorf("globalContext() = %q, missing date", ctx)
	}
	if !strings.Contains(ctx, "System:") {
		t.Errorf("globalContext() = %q, missing system banner", ctx)
	}
}
