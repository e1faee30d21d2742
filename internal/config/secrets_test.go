package config

import "testing"

func TestLoadSecrets_ExpandsKnownEnvVar(t *testing.T) {
	t.Setenv("RESEARCH_TEST_SECRET", "sk-test-value")
	dir := t.TempDir()
	path := writeFile(t, dir, "secrets.json", `{"api_key": "${RESEARCH_TEST_SECRET}"}`)

	secrets, err := LoadSecrets(path)
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	got, ok := secrets.Lookup("api_key")
	if !ok || got != "sk-test-value" {
		t.Errorf("Lookup(api_key) = %q, %v", got, ok)
	}
}

func TestLoadSecrets_UnresolvedPlaceholderFallsBackToLiteral(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "secrets.json", `{"api_key": "${RESEARCH_TOTALLY_UNSET_VAR}"}`)

	secrets, err := LoadSecrets(path)
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	got, _ := secrets.Lookup("api_key")
	if got != "${RESEARCH_TOTALLY_UNSET_VAR}" {
		t.Errorf("Lookup(api_key) = %q, want literal placeholder preserved", got)
	}
}

func TestLoadSecrets_MissingKeyNotFound(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "secrets.json", `{"api_key": "value"}`)

	secrets, err := LoadSecrets(path)
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if _, ok := secrets.Lookup("missing_key"); ok {
		t.Error("expected missing_key to be not-found")
	}
}
