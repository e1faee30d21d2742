package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// splitMCPName splits a catalog name of the form "server:tool" back into
// its server id and tool name.
func splitMCPName(name string) (server, tool string, err error) {
	idx := strings.IndexByte(name, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("invalid MCP tool name %q, want \"server:tool\"", name)
	}
	return name[:idx], name[idx+1:], nil
}

func (e *Executor) executeMCPTool(ctx context.Context, toolName string, params map[string]string) (any, error) {
	server, tool, err := splitMCPName(toolName)
	if err != nil {
		return nil, err
	}

	args := make(map[string]string, len(params))
	for k, v := range params {
		args[k] = v
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal MCP arguments: %w", err)
	}

	result, err := e.mcp.CallTool(ctx, server, tool, argsJSON)
	if err != nil {
		return nil, fmt.Errorf("call MCP tool %q: %w", toolName, err)
	}

	if len(result.Content) > 0 {
		var texts []string
		for _, c := range result.Content {
			if c.Text != "" {
				texts = append(texts, c.Text)
			}
		}
		return strings.Join(texts, "\n"), nil
	}

	if len(result.Result) > 0 {
		return decodeJSONAny(result.Result)
	}
	return nil, nil
}
