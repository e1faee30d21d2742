// Package toolexec provides a uniform dispatch surface over HTTP tools,
// MCP servers, and built-in tools, with shared rate limiting and
// audit logging ahead of every execution.
package toolexec

import (
	"encoding/json"

	"github.com/haasonsaas/nexus/internal/mcp"
)

// Config is the parsed shape of tools.json: the catalog of HTTP tools,
// MCP servers, and enabled built-ins an Executor dispatches across.
type Config struct {
	HTTP    []HTTPTool          `json:"http"`
	MCP     []*mcp.ServerConfig `json:"mcp"`
	Builtin []string            `json:"builtin"`
}

// ParameterDef describes one parameter an HTTP tool accepts.
type ParameterDef struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Required    bool            `json:"required"`
	Default     json.RawMessage `json:"default,omitempty"`
}

// HTTPTool describes a single REST-style tool entry in tools.json.
type HTTPTool struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Endpoint    string                  `json:"endpoint"`
	Method      string                  `json:"method"`
	Parameters  map[string]ParameterDef `json:"parameters"`

	// PathParams names parameters substituted into Endpoint rather than
	// sent as query/body values.
	PathParams []string `json:"path_params,omitempty"`

	Headers        map[string]string `json:"headers,omitempty"`
	ResponseFormat string            `json:"response_format"`

	// ResponsePath is a dotted JSON path, optionally with `field[index]`
	// bracket indexing, extracted from the response body.
	ResponsePath string `json:"response_path,omitempty"`

	// ExpectedStatus/AcceptableStatus/ErrorStatus support exact codes
	// ("200") or hundreds-wildcards ("2xx"). ExpectedStatus defaults to
	// ["2xx", "3xx"] when empty.
	ExpectedStatus   []string `json:"expected_status,omitempty"`
	AcceptableStatus []string `json:"acceptable_status,omitempty"`
	ErrorStatus      []string `json:"error_status,omitempty"`
}

func (t HTTPTool) expectedStatus() []string {
	if len(t.ExpectedStatus) == 0 {
		return []string{"2xx", "3xx"}
	}
	return t.ExpectedStatus
}
