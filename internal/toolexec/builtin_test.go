package toolexec

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/nexus/internal/ratelimit"
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

func newExecutorWithMemory(t *testing.T) *Executor {
	t.Helper()
	dir := t.TempDir()
	store, err := sharedmemory.New(context.Background(), filepath.Join(dir, "mem.db"), fakeEmbedder{dim: 8}, slog.Default())
	if err != nil {
		t.Fatalf("sharedmemory.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &Executor{
		config:  Config{Builtin: []string{"memory_store", "memory_search", "memory_get_discoveries", "memory_stats", "current_date"}},
		memory:  store,
		limiter: ratelimit.NewLimiter(),
		client:  &http.Client{},
		logger:  discardLogger(),
	}
}

func TestBuiltinCurrentDate(t *testing.T) {
	e := newExecutorWithMemory(t)
	result, err := e.executeBuiltinTool(context.Background(), CallContext{}, "current_date", nil)
	if err != nil {
		t.Fatalf("current_date: %v", err)
	}
	m := result.(map[string]any)
	if _, ok := m["date"]; !ok {
		t.Errorf("missing date key in %v", m)
	}
}

func TestBuiltinMemoryStoreAndSearch(t *testing.T) {
	e := newExecutorWithMemory(t)
	ctx := context.Background()
	call := CallContext{QueryID: "q1", AgentName: "worker-1"}

	_, err := e.executeBuiltinTool(ctx, call, "memory_store", map[string]string{
		"memory_type": "discovery",
		"content":     "found a relevant paper on scheduler design",
	})
	if err != nil {
		t.Fatalf("memory_store: %v", err)
	}

	results, err := e.executeBuiltinTool(ctx, call, "memory_search", map[string]string{"query": "scheduler design"})
	if err != nil {
		t.Fatalf("memory_search: %v", err)
	}
	list, ok := results.([]map[string]any)
	if !ok || len(list) == 0 {
		t.Fatalf("expected at least one search result, got %#v", results)
	}
}

func TestBuiltinMemoryGetDiscoveries(t *testing.T) {
	e := newExecutorWithMemory(t)
	ctx := context.Background()
	call := CallContext{QueryID: "q1", AgentName: "worker-1"}

	if _, err := e.executeBuiltinTool(ctx, call, "memory_store", map[string]string{
		"memory_type": "discovery", "content": "x",
	}); err != nil {
		t.Fatal(err)
	}

	results, err := e.executeBuiltinTool(ctx, call, "memory_get_discoveries", nil)
	if err != nil {
		t.Fatalf("memory_get_discoveries: %v", err)
	}
	list := results.([]map[string]any)
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
}

func TestBuiltinMemoryStatsWithoutMemoryConfigured(t *testing.T) {
	e := &Executor{config: Config{Builtin: []string{"memory_stats"}}, limiter: ratelimit.NewLimiter(), client: &http.Client{}, logger: discardLogger()}
	if _, err := e.executeBuiltinTool(context.Background(), CallContext{}, "memory_stats", nil); err == nil {
		t.Fatal("expected error when shared memory is not configured")
	}
}

func TestExtractPDFTextFromMinimalStream(t *testing.T) {
	pdf := []byte(`(Hello) Tj (World) Tj`)
	text := extractPDFText(pdf)
	if text != "Hello World" {
		t.Errorf("text = %q, want \"Hello World\"", text)
	}
}

func TestBuiltinPDFExtractDownloadsAndExtracts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`(test document) Tj`))
	}))
	defer srv.Close()

	e := newExecutorWithMemory(t)
	result, err := e.executeBuiltinTool(context.Background(), CallContext{}, "pdf_extract", map[string]string{"url": srv.URL})
	if err != nil {
		t.Fatalf("pdf_extract: %v", err)
	}
	m := result.(map[string]any)
	if m["text"] != "test document" {
		t.Errorf("text = %v", m["text"])
	}
}
