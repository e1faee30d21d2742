package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadRaw_ResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "orchestrator:\n  min_worker_count: 2\n")
	mainPath := writeFile(t, dir, "main.yaml", "$include: base.yaml\norchestrator:\n  max_worker_count: 8\n")

	raw, err := LoadRaw(mainPath)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	orch, ok := raw["orchestrator"].(map[string]any)
	if !ok {
		t.Fatalf("orchestrator section missing or wrong type: %#v", raw["orchestrator"])
	}
	if orch["min_worker_count"] != 2 {
		t.Errorf("min_worker_count = %v, want 2 (from included file)", orch["min_worker_count"])
	}
	if orch["max_worker_count"] != 8 {
		t.Errorf("max_worker_count = %v, want 8 (from main file)", orch["max_worker_count"])
	}
}

func TestLoadRaw_DetectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$include: b.yaml\n")
	bPath := writeFile(t, dir, "b.yaml", "$include: a.yaml\n")

	if _, err := LoadRaw(bPath); err == nil {
		t.Fatal("expected include cycle error")
	}
}

func TestLoadRaw_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RESEARCH_TEST_MODEL", "llama3-test")
	dir := t.TempDir()
	path := writeFile(t, dir, "cfg.yaml", "lm_client:\n  model: ${RESEARCH_TEST_MODEL}\n")

	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	lm := raw["lm_client"].(map[string]any)
	if lm["model"] != "llama3-test" {
		t.Errorf("model = %v, want expanded env var", lm["model"])
	}
}

func TestLoadRaw_JSON5AllowsComments(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tools.json", "{\n  // a comment\n  \"builtin\": [\"current_date\"],\n}\n")

	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	if _, ok := raw["builtin"]; !ok {
		t.Errorf("builtin key missing from parsed json5: %#v", raw)
	}
}

func TestLoadRaw_MissingFile(t *testing.T) {
	if _, err := LoadRaw(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRaw_EmptyPath(t *testing.T) {
	if _, err := LoadRaw(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
