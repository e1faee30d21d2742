package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "validate-config", "version"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestBuildRunCmdDefaultFlags(t *testing.T) {
	cmd := buildRunCmd()

	for _, tc := range []struct {
		flag string
		want string
	}{
		{"config", "research.yaml"},
		{"tools", "tools.json"},
		{"agents", "agents.json"},
		{"secrets", ""},
	} {
		f := cmd.Flags().Lookup(tc.flag)
		if f == nil {
			t.Fatalf("flag %q not registered", tc.flag)
		}
		if f.DefValue != tc.want {
			t.Errorf("flag %q default = %q, want %q", tc.flag, f.DefValue, tc.want)
		}
	}

	if cmd.Args == nil {
		t.Fatal("expected Args validator on run command")
	}
	if err := cmd.Args(cmd, []string{}); err != nil {
		t.Errorf("run with no args should be accepted for stdin mode: %v", err)
	}
	if err := cmd.Args(cmd, []string{"one query"}); err != nil {
		t.Errorf("run with one arg should be accepted: %v", err)
	}
	if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
		t.Error("run with two args should be rejected")
	}
}

func TestBuildValidateConfigCmdDefaultFlags(t *testing.T) {
	cmd := buildValidateConfigCmd()

	for _, tc := range []struct {
		flag string
		want string
	}{
		{"config", "research.yaml"},
		{"tools", "tools.json"},
		{"agents", "agents.json"},
		{"secrets", ""},
	} {
		f := cmd.Flags().Lookup(tc.flag)
		if f == nil {
			t.Fatalf("flag %q not registered", tc.flag)
		}
		if f.DefValue != tc.want {
			t.Errorf("flag %q default = %q, want %q", tc.flag, f.DefValue, tc.want)
		}
	}
}

func TestBuildVersionCmdRuns(t *testing.T) {
	cmd := buildVersionCmd()
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Errorf("version command: %v", err)
	}
}
