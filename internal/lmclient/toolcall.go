package lmclient

import (
	"encoding/json"
	"strings"
)

// toolRequest is one parsed {tool_type, tool_name, parameters} request.
type toolRequest struct {
	ToolType   string            `json:"tool_type"`
	ToolName   string            `json:"tool_name"`
	Parameters map[string]any    `json:"parameters"`
}

// looksLikeToolCall applies the tool-call detection heuristic: the
// reply contains both marker substrings, or begins with `{`/`[` once
// fenced code markers are stripped.
func looksLikeToolCall(text string) bool {
	if strings.Contains(text, `"tool_type"`) && strings.Contains(text, `"tool_name"`) {
		return true
	}
	if strings.Contains(text, "tool_type") && strings.Contains(text, "tool_name") && strings.Contains(text, "{") {
		return true
	}
	trimmed := deFence(text)
	trimmed = strings.TrimSpace(trimmed)
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// deFence strips a leading ```json or ``` marker and a trailing ```.
func deFence(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	content := text
	switch {
	case strings.Contains(content, "```json"):
		if idx := strings.Index(content, "```json"); idx >= 0 {
			content = content[idx+len("```json"):]
		}
	case strings.HasPrefix(strings.TrimSpace(content), "```"):
		content = strings.TrimPrefix(strings.TrimSpace(content), "```")
	}
	if idx := strings.LastIndex(content, "```"); idx >= 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}

// extractBalancedJSONObject performs a depth-tracking scan from the
// first `{` to find the matching closing brace, honoring quoted
// strings and escape sequences so braces inside string content don't
// throw off the count.
func extractBalancedJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escape {
			escape = false
			continue
		}
		switch ch {
		case '\\':
			escape = true
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// detectToolCalls applies a three-strategy parse order (de-fenced,
// raw-trimmed, depth-scanned-balanced-brace) and accepts an array of
// requests before a single request.
func detectToolCalls(responseText string) ([]toolRequest, bool) {
	if !looksLikeToolCall(responseText) {
		return nil, false
	}

	attempts := []string{deFence(responseText), strings.TrimSpace(responseText)}
	if extracted, ok := extractBalancedJSONObject(responseText); ok {
		attempts = append(attempts, extracted)
	}

	for _, attempt := range attempts {
		var arr []toolRequest
		if err := json.Unmarshal([]byte(attempt), &arr); err == nil && isValidToolRequests(arr) {
			return arr, true
		}
	}
	for _, attempt := range attempts {
		var single toolRequest
		if err := json.Unmarshal([]byte(attempt), &single); err == nil && single.ToolType != "" && single.ToolName != "" {
			return []toolRequest{single}, true
		}
	}
	return nil, false
}

func isValidToolRequests(reqs []toolRequest) bool {
	if len(reqs) == 0 {
		return false
	}
	for _, r := range reqs {
		if r.ToolType == "" || r.ToolName == "" {
			return false
		}
	}
	return true
}
