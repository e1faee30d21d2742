package mcp

import "testing"

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"valid", ServerConfig{ID: "fs", Command: "/usr/bin/mcp-fs", Args: []string{"--root", "/tmp"}}, false},
		{"missing id", ServerConfig{Command: "/usr/bin/mcp-fs"}, true},
		{"missing command", ServerConfig{ID: "fs"}, true},
		{"path traversal in command", ServerConfig{ID: "fs", Command: "../../bin/evil"}, true},
		{"shell metachar in arg", ServerConfig{ID: "fs", Command: "/usr/bin/mcp-fs", Args: []string{"; rm -rf /"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContainsShellMetachars(t *testing.T) {
	cases := map[string]bool{
		"--root /tmp":       false,
		"hello world":        false,
		"$(whoami)":          true,
		"a && b":             true,
		"a | b":              true,
		"a; b":                true,
	}
	for arg, want := range cases {
		if got := containsShellMetachars(arg); got != want {
			t.Errorf("containsShellMetachars(%q) = %v, want %v", arg, got, want)
		}
	}
}
