package toolexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/sharedmemory"
)

var builtinDescriptions = map[string]string{
	"pdf_extract":               "Extracts text content from a PDF file at a given URL. Returns the full text content of the PDF document.",
	"memory_store":              "Stores a new typed memory visible to every agent in the session.",
	"memory_search":             "Searches stored memories by semantic similarity to a query.",
	"memory_get_discoveries":    "Returns the most recent Discovery memories.",
	"memory_get_deadends":       "Returns the most recent Deadend memories.",
	"memory_get_insights":       "Returns the most recent Insight memories.",
	"memory_get_feedback":       "Returns every Feedback memory, newest first.",
	"memory_get_plan":           "Returns every Plan memory, newest first.",
	"memory_stats":              "Returns per-type memory counts for the session.",
	"current_date":              "Returns the current UTC date and time.",
}

func (e *Executor) executeBuiltinTool(ctx context.Context, call CallContext, toolName string, params map[string]string) (any, error) {
	switch toolName {
	case "pdf_extract":
		return e.builtinPDFExtract(ctx, params)
	case "memory_store":
		return e.builtinMemoryStore(ctx, call, params)
	case "memory_search":
		return e.builtinMemorySearch(ctx, params)
	case "memory_get_discoveries":
		return e.builtinMemoryGetByType(ctx, sharedmemory.TypeDiscovery, params)
	case "memory_get_deadends":
		return e.builtinMemoryGetByType(ctx, sharedmemory.TypeDeadend, params)
	case "memory_get_insights":
		return e.builtinMemoryGetByType(ctx, sharedmemory.TypeInsight, params)
	case "memory_get_feedback":
		return e.builtinMemoryGetByType(ctx, sharedmemory.TypeFeedback, params)
	case "memory_get_plan":
		return e.builtinMemoryGetByType(ctx, sharedmemory.TypePlan, params)
	case "memory_stats":
		return e.builtinMemoryStats(ctx)
	case "current_date":
		return map[string]any{"date": time.Now().UTC().Format(time.RFC3339)}, nil
	default:
		return nil, fmt.Errorf("unknown built-in tool: %s", toolName)
	}
}

func (e *Executor) builtinPDFExtract(ctx context.Context, params map[string]string) (any, error) {
	url, ok := params["url"]
	if !ok || url == "" {
		return nil, fmt.Errorf("missing 'url' parameter for pdf_extract")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build pdf request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("failed to download pdf: HTTP %d", resp.StatusCode)
	}

	pdfBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}

	text := extractPDFText(pdfBytes)

	return map[string]any{
		"text":   text,
		"length": len(text),
		"source": url,
	}, nil
}

// pdfTextRun matches parenthesized literal strings inside a PDF content
// stream's text-showing operators ("(...)  Tj" / "(...)  '"), the
// simplest layer of the format that carries visible text. PDFs that rely
// on hex strings, embedded fonts with custom encodings, or compressed
// object streams are not fully recovered by this approach; no suitable
// PDF parsing library is available anywhere in the dependency corpus, so
// this heuristic extraction runs on the standard library alone rather
// than reaching for one.
var pdfTextRun = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*(?:Tj|TJ|')`)

func extractPDFText(pdfBytes []byte) string {
	var out bytes.Buffer
	matches := pdfTextRun.FindAllSubmatch(pdfBytes, -1)
	for _, m := range matches {
		unescaped := unescapePDFString(m[1])
		out.Write(unescaped)
		out.WriteByte(' ')
	}
	return strings.TrimSpace(out.String())
}

func unescapePDFString(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			switch raw[i+1] {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case '(', ')', '\\':
				out = append(out, raw[i+1])
			default:
				out = append(out, raw[i+1])
			}
			i++
			continue
		}
		out = append(out, raw[i])
	}
	return out
}

func (e *Executor) requireMemory() error {
	if e.memory == nil {
		return fmt.Errorf("shared memory not configured for this executor")
	}
	return nil
}

func (e *Executor) builtinMemoryStore(ctx context.Context, call CallContext, params map[string]string) (any, error) {
	if err := e.requireMemory(); err != nil {
		return nil, err
	}
	memType := sharedmemory.Type(params["memory_type"])
	content := params["content"]
	if content == "" {
		return nil, fmt.Errorf("missing 'content' parameter for memory_store")
	}

	metadata := map[string]string{"query_id": call.QueryID}
	for k, v := range params {
		if k == "memory_type" || k == "content" {
			continue
		}
		metadata[k] = v
	}

	createdBy := call.AgentName
	if createdBy == "" {
		createdBy = "unknown"
	}

	mem, err := e.memory.Store(ctx, memType, content, metadata, createdBy)
	if err != nil {
		return nil, fmt.Errorf("memory_store: %w", err)
	}
	return map[string]any{"id": mem.ID, "stored": true}, nil
}

func (e *Executor) builtinMemorySearch(ctx context.Context, params map[string]string) (any, error) {
	if err := e.requireMemory(); err != nil {
		return nil, err
	}
	query := params["query"]
	if query == "" {
		return nil, fmt.Errorf("missing 'query' parameter for memory_search")
	}

	var memType *sharedmemory.Type
	if v, ok := params["memory_type"]; ok && v != "" {
		t := sharedmemory.Type(v)
		memType = &t
	}

	limit := 10
	if v, ok := params["limit"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	results, err := e.memory.SearchSimilar(ctx, query, memType, limit)
	if err != nil {
		return nil, fmt.Errorf("memory_search: %w", err)
	}
	return memoriesToJSON(results), nil
}

func (e *Executor) builtinMemoryGetByType(ctx context.Context, memType sharedmemory.Type, params map[string]string) (any, error) {
	if err := e.requireMemory(); err != nil {
		return nil, err
	}
	limit := 0
	if v, ok := params["limit"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	results, err := e.memory.GetByType(ctx, memType, limit)
	if err != nil {
		return nil, fmt.Errorf("memory_get_%s: %w", memType, err)
	}
	return memoriesToJSON(results), nil
}

func (e *Executor) builtinMemoryStats(ctx context.Context) (any, error) {
	if err := e.requireMemory(); err != nil {
		return nil, err
	}
	stats, err := e.memory.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory_stats: %w", err)
	}
	return stats, nil
}

func memoriesToJSON(mems []sharedmemory.Memory) []map[string]any {
	out := make([]map[string]any, len(mems))
	for i, m := range mems {
		out[i] = map[string]any{
			"id":         m.ID,
			"type":       string(m.Type),
			"content":    m.Content,
			"metadata":   m.Metadata,
			"created_by": m.CreatedBy,
			"created_at": m.CreatedAt.Format(time.RFC3339),
		}
	}
	return out
}
