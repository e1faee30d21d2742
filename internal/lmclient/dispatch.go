package lmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// executeToolCall resolves the catalog-authoritative type for the
// request (the model's own tool_type is advisory only), dispatches it,
// and renders a human-readable record folded back into context.
func (c *Client) executeToolCall(ctx context.Context, req toolRequest) string {
	if _, ok := c.executor.ResolveToolType(req.ToolName); !ok {
		return fmt.Sprintf("Tool '%s' failed with error: tool not found in catalog", req.ToolName)
	}

	params := stringifyParams(req.Parameters)
	paramsStr := formatParamsForDisplay(params)

	result, err := c.executor.Execute(ctx, c.call, req.ToolName, params)
	if err != nil {
		return fmt.Sprintf("Tool '%s' failed with error: %v", req.ToolName, err)
	}

	resultText, err := c.renderResult(ctx, req.ToolName, result)
	if err != nil {
		return fmt.Sprintf("Tool '%s' failed with error: %v", req.ToolName, err)
	}

	return fmt.Sprintf("Tool '%s' was called with:\n%s\n\nAnd returned:\n%s", req.ToolName, paramsStr, resultText)
}

func stringifyParams(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		switch t := v.(type) {
		case string:
			out[k] = t
		default:
			b, err := json.Marshal(v)
			if err != nil {
				out[k] = fmt.Sprintf("%v", v)
				continue
			}
			out[k] = strings.Trim(string(b), `"`)
		}
	}
	return out
}

func formatParamsForDisplay(params map[string]string) string {
	if len(params) == 0 {
		return "No parameters"
	}
	var lines []string
	for k, v := range params {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", k, v))
	}
	return strings.Join(lines, "\n")
}

func (c *Client) renderResult(ctx context.Context, toolName string, result any) (string, error) {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", result), nil
	}
	if len(raw) <= c.cfg.SummarizationThreshold {
		return string(raw), nil
	}
	return c.summarize(ctx, toolName, raw)
}

func joinToolRecords(records []string) string {
	return strings.Join(records, "\n\n---\n\n")
}
