package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/haasonsaas/nexus/internal/mcp"
	"github.com/haasonsaas/nexus/internal/ratelimit"
	"github.com/haasonsaas/nexus/internal/sharedmemory"
)

// ToolType identifies which dispatch path a tool call is routed through.
type ToolType string

const (
	ToolTypeHTTP    ToolType = "http"
	ToolTypeMCP     ToolType = "mcp"
	ToolTypeBuiltin ToolType = "builtin"
)

// Secrets resolves `${VAR}` references used in default parameter values
// and headers: API keys first, then environment variables.
type Secrets interface {
	Lookup(name string) (string, bool)
}

// Executor is the uniform dispatch surface for every tool kind a worker
// or the orchestrator itself can call. One Executor is shared across a
// session; its request context (query id, agent name) is passed to
// Execute per call as a CallContext rather than mutated on the struct.
type Executor struct {
	config  Config
	secrets Secrets
	memory  *sharedmemory.Store
	mcp     *mcp.Manager
	limiter *ratelimit.Limiter
	client  *http.Client
	logger  *slog.Logger
}

// New builds an Executor and starts its MCP servers. A server that
// fails to connect is logged and skipped, never aborting the others.
func New(ctx context.Context, cfg Config, secrets Secrets, memory *sharedmemory.Store, logger *slog.Logger) (*Executor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "toolexec")

	mcpManager := mcp.NewManager(&mcp.Config{Enabled: len(cfg.MCP) > 0, Servers: cfg.MCP}, logger)
	if err := mcpManager.Start(ctx); err != nil {
		return nil, fmt.Errorf("start MCP servers: %w", err)
	}

	return &Executor{
		config:  cfg,
		secrets: secrets,
		memory:  memory,
		mcp:     mcpManager,
		limiter: ratelimit.NewLimiter(),
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}, nil
}

// Close stops every running MCP server. Safe to call once at process
// shutdown; the Executor must not be used afterward.
func (e *Executor) Close() error {
	return e.mcp.Stop()
}

// CallContext scopes a single tool invocation for audit purposes.
type CallContext struct {
	QueryID   string
	AgentName string
}

// DescribedTool is one entry of the tool catalog surfaced to the LM
// client so it can be told what's available and how to call it.
type DescribedTool struct {
	Type        ToolType        `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// DescribeTools returns the full catalog: HTTP tools, discovered MCP
// tools (named "server:tool"), and enabled builtins.
func (e *Executor) DescribeTools() []DescribedTool {
	var out []DescribedTool

	for _, t := range e.config.HTTP {
		params, _ := json.Marshal(t.Parameters)
		out = append(out, DescribedTool{Type: ToolTypeHTTP, Name: t.Name, Description: t.Description, Parameters: params})
	}

	if e.mcp != nil {
		for _, schema := range e.mcp.ToolSchemas() {
			out = append(out, DescribedTool{
				Type:        ToolTypeMCP,
				Name:        ratelimit.CompositeKey(schema.ServerID, schema.Name),
				Description: schema.Description,
				Parameters:  schema.InputSchema,
			})
		}
	}

	for _, name := range e.config.Builtin {
		if desc, ok := builtinDescriptions[name]; ok {
			out = append(out, DescribedTool{Type: ToolTypeBuiltin, Name: name, Description: desc})
		}
	}

	return out
}

// IsBuiltin reports whether name is an enabled built-in tool.
func (e *Executor) IsBuiltin(name string) bool {
	for _, n := range e.config.Builtin {
		if n == name {
			return true
		}
	}
	return false
}

// ResolveToolType looks up the catalog-authoritative type for a tool
// name, so a malformed or LM-guessed tool_type in a request never
// overrides what the tool is actually registered as.
func (e *Executor) ResolveToolType(name string) (ToolType, bool) {
	for _, t := range e.config.HTTP {
		if t.Name == name {
			return ToolTypeHTTP, true
		}
	}
	if e.IsBuiltin(name) {
		return ToolTypeBuiltin, true
	}
	if e.mcp != nil {
		for _, schema := range e.mcp.ToolSchemas() {
			if ratelimit.CompositeKey(schema.ServerID, schema.Name) == name {
				return ToolTypeMCP, true
			}
		}
	}
	return "", false
}

// Execute dispatches a tool call by its catalog-resolved type,
// rate-limiting and audit-logging it first.
func (e *Executor) Execute(ctx context.Context, call CallContext, toolName string, params map[string]string) (any, error) {
	toolType, ok := e.ResolveToolType(toolName)
	if !ok {
		return nil, fmt.Errorf("tool %q not found", toolName)
	}

	delay := e.limiter.Reserve(toolName)
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if e.memory != nil {
		paramsJSON, _ := json.Marshal(params)
		if _, err := e.memory.RecordToolCall(ctx, sharedmemory.ToolCall{
			QueryID:       call.QueryID,
			AgentName:     call.AgentName,
			ToolType:      string(toolType),
			ToolName:      toolName,
			ParametersRaw: string(paramsJSON),
		}); err != nil {
			e.logger.Warn("failed to record tool call audit entry", "tool", toolName, "error", err)
		}
	}

	switch toolType {
	case ToolTypeHTTP:
		return e.executeHTTPTool(ctx, toolName, params)
	case ToolTypeMCP:
		return e.executeMCPTool(ctx, toolName, params)
	case ToolTypeBuiltin:
		return e.executeBuiltinTool(ctx, call, toolName, params)
	default:
		return nil, fmt.Errorf("unknown tool type for %q", toolName)
	}
}
