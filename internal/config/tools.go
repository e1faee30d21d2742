package config

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/toolexec"
)

// LoadTools reads tools.json (JSON5, $include-aware, ${VAR}-expanded)
// directly into a toolexec.Config, which already defines tools.json's
// wire shape via its own json tags.
func LoadTools(path string) (*toolexec.Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tools file: %w", err)
	}

	var cfg toolexec.Config
	if err := decodeRawJSON(raw, &cfg); err != nil {
		return nil, err
	}

	if err := validateTools(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateTools(cfg toolexec.Config) error {
	var issues []string

	seen := map[string]bool{}
	for i, t := range cfg.HTTP {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			issues = append(issues, fmt.Sprintf("http[%d].name is required", i))
			continue
		}
		if seen[name] {
			issues = append(issues, fmt.Sprintf("duplicate tool name %q", name))
		}
		seen[name] = true
		if strings.TrimSpace(t.Endpoint) == "" {
			issues = append(issues, fmt.Sprintf("http[%q].endpoint is required", name))
		}
		if strings.TrimSpace(t.Method) == "" {
			issues = append(issues, fmt.Sprintf("http[%q].method is required", name))
		}
	}

	for i, server := range cfg.MCP {
		if server == nil {
			issues = append(issues, fmt.Sprintf("mcp[%d] is nil", i))
			continue
		}
		if err := server.Validate(); err != nil {
			issues = append(issues, err.Error())
			continue
		}
		if seen[server.ID] {
			issues = append(issues, fmt.Sprintf("duplicate tool name %q", server.ID))
		}
		seen[server.ID] = true
	}

	for _, name := range cfg.Builtin {
		if seen[name] {
			issues = append(issues, fmt.Sprintf("duplicate tool name %q", name))
		}
		seen[name] = true
	}

	if len(issues) == 0 {
		return nil
	}
	return &ConfigValidationError{Issues: issues}
}
