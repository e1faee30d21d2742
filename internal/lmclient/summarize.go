package lmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// criticalFieldNames hints at which object keys must survive a
// structural reduction: dropping them would destroy a citation trail.
var criticalFieldNames = []string{"url", "doi", "author", "title", "date", "citation", "link", "href", "source", "reference"}

// summarize reduces an over-budget tool result. It first tries a
// structural JSON reduction that preserves critical-named fields and
// truncates large arrays; if that still doesn't fit (or the content
// isn't valid JSON), it falls back to an LM summarization call when a
// summarization model is configured; if there is no such model, or that
// call itself fails, it truncates with a notice rather than losing the
// iteration.
func (c *Client) summarize(ctx context.Context, toolName string, raw []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err == nil {
		reduced := reduceJSON(decoded)
		out, err := json.MarshalIndent(reduced, "", "  ")
		if err == nil && len(out) <= c.cfg.SummarizationThreshold {
			return string(out), nil
		}
	}

	if c.cfg.SummarizationModel != "" {
		summary, err := c.summarizeWithModel(ctx, toolName, string(raw))
		if err == nil {
			return summary, nil
		}
		c.logger.Warn("LM summarization fallback failed, truncating", "tool", toolName, "error", err)
	}

	return truncateWithNotice(string(raw), c.cfg.SummarizationThreshold), nil
}

// Summarize exposes the same structural-reduction/model-fallback/
// truncate pipeline summarize uses for over-budget tool results to
// callers outside this package, such as the Orchestrator's combination
// step reducing an over-budget worker answer.
func (c *Client) Summarize(ctx context.Context, label string, content string) (string, error) {
	return c.summarize(ctx, label, []byte(content))
}

func (c *Client) summarizeWithModel(ctx context.Context, toolName, content string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following tool result from '%s' concisely. Do not lose any URLs, DOIs, citations, author names, dates, or numeric data:\n\n%s",
		toolName, content,
	)

	summarizer := &Client{
		cfg:      Config{BaseURL: c.cfg.BaseURL, Model: c.cfg.SummarizationModel, MaxToolTurns: 1},
		executor: nil,
		http:     c.http,
		logger:   c.logger,
	}
	return summarizer.queryWithoutTools(ctx, prompt)
}

func truncateWithNotice(content string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}
	return content[:limit] + fmt.Sprintf("\n\n[truncated: %d of %d bytes shown]", limit, len(content))
}

// reduceJSON applies the structural reduction: arrays over 10 elements
// keep the first 5 and last 2 with a marker in between; objects keep
// every key whose name hints criticality plus any scalar leaves.
func reduceJSON(v any) any {
	switch t := v.(type) {
	case []any:
		if len(t) <= 10 {
			out := make([]any, len(t))
			for i, e := range t {
				out[i] = reduceJSON(e)
			}
			return out
		}
		head := t[:5]
		tail := t[len(t)-2:]
		out := make([]any, 0, 8)
		for _, e := range head {
			out = append(out, reduceJSON(e))
		}
		out = append(out, fmt.Sprintf("...(%d items omitted)...", len(t)-7))
		for _, e := range tail {
			out = append(out, reduceJSON(e))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, val := range t {
			if isCriticalField(key) {
				out[key] = reduceJSON(val)
				continue
			}
			switch val.(type) {
			case map[string]any, []any:
				continue // drop nested non-critical structure to shrink the payload
			default:
				out[key] = val
			}
		}
		return out
	default:
		return v
	}
}

func isCriticalField(name string) bool {
	lower := strings.ToLower(name)
	for _, c := range criticalFieldNames {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
