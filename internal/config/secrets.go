package config

import (
	"fmt"
	"os"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/haasonsaas/nexus/internal/toolexec"
)

// LoadSecrets reads a JSON5 secrets file (a flat map[string]string) into
// a toolexec.MapSecrets.
//
// Unlike the tools/agents/runtime-tuning files, the secrets file is read
// without LoadRaw's blanket os.ExpandEnv pass: that pass replaces an
// unset ${VAR} with the empty string, which would erase the fallback
// chain spec'd for this file. Instead each value is resolved
// individually: a literal "${VAR}" placeholder is looked up in the
// environment, and only if that lookup also misses does the literal
// placeholder text survive into the returned secret.
func LoadSecrets(path string) (toolexec.MapSecrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	secrets := map[string]string{}
	if err := json5.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file: %w", err)
	}

	resolved := make(toolexec.MapSecrets, len(secrets))
	for key, value := range secrets {
		resolved[key] = resolveSecret(value)
	}
	return resolved, nil
}

func resolveSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "${") || !strings.HasSuffix(trimmed, "}") {
		return value
	}
	name := strings.TrimSuffix(strings.TrimPrefix(trimmed, "${"), "}")
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return value
}
