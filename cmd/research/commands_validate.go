package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/config"
)

// buildValidateConfigCmd loads every configuration artifact and reports
// the first error found, without constructing a session.
func buildValidateConfigCmd() *cobra.Command {
	var (
		configPath  string
		toolsPath   string
		agentsPath  string
		secretsPath string
	)

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Validate the runtime-tuning, tools, agents, and secrets files",
		Long: `validate-config loads the runtime-tuning file, tools.json, agents.json,
and (if provided) a secrets file, reporting every validation issue it
finds without starting a research session.`,
		Example: `  research validate-config --config research.yaml --tools tools.json --agents agents.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(configPath, toolsPath, agentsPath, secretsPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "research.yaml", "path to the runtime-tuning file")
	cmd.Flags().StringVar(&toolsPath, "tools", "tools.json", "path to the tool catalog")
	cmd.Flags().StringVar(&agentsPath, "agents", "agents.json", "path to the agent roster")
	cmd.Flags().StringVar(&secretsPath, "secrets", "", "path to a secrets file (optional)")

	return cmd
}

func runValidateConfig(configPath, toolsPath, agentsPath, secretsPath string) error {
	if _, err := config.Load(configPath); err != nil {
		return fmt.Errorf("config %s: %w", configPath, err)
	}
	fmt.Printf("%s: ok\n", configPath)

	if _, err := config.LoadTools(toolsPath); err != nil {
		return fmt.Errorf("tools %s: %w", toolsPath, err)
	}
	fmt.Printf("%s: ok\n", toolsPath)

	if _, err := config.LoadAgents(agentsPath); err != nil {
		return fmt.Errorf("agents %s: %w", agentsPath, err)
	}
	fmt.Printf("%s: ok\n", agentsPath)

	if secretsPath != "" {
		if _, err := config.LoadSecrets(secretsPath); err != nil {
			return fmt.Errorf("secrets %s: %w", secretsPath, err)
		}
		fmt.Printf("%s: ok\n", secretsPath)
	}

	return nil
}
