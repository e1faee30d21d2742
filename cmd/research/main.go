// Package main provides the CLI entry point for the research
// orchestrator: a multi-agent pipeline that plans a query, dispatches
// workers under supervision, combines and debates their findings, and
// writes a final cited document.
//
// # Basic Usage
//
// Run a research session:
//
//	research run --config research.yaml --tools tools.json --agents agents.json "What happened to the Mars Climate Orbiter?"
//
// Validate a configuration without running anything:
//
//	research validate-config --config research.yaml --tools tools.json --agents agents.json
//
// # Environment Variables
//
// Configuration can be provided via environment variables inside the
// config files themselves (${VAR}-style expansion):
//
//   - ${VAR} references in the runtime-tuning, tools, and agents files
//   - Secrets referenced from the secrets file by ${VAR} placeholders
//
// The runtime-tuning file's own path is set with --config (default:
// research.yaml); no environment variable selects it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() so tests can exercise it directly.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "research",
		Short: "Multi-agent research orchestrator",
		Long: `research decomposes a query into sub-questions, dispatches worker
agents to investigate them under supervisor oversight, combines and
debates their findings, and writes a cited markdown document.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildValidateConfigCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}
