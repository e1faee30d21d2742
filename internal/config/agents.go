package config

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// debate role identifiers agents.json must assign across debate_agents.
const (
	debateRoleAdvocate    = "advocate"
	debateRoleSkeptic     = "skeptic"
	debateRoleSynthesizer = "synthesizer"
)

// LoadAgents reads agents.json (JSON5, $include-aware, ${VAR}-expanded)
// directly into an orchestrator.Agents roster. The file's shape already
// matches orchestrator.Agents field-for-field, so no intermediate wire
// type is needed.
func LoadAgents(path string) (orchestrator.Agents, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return orchestrator.Agents{}, fmt.Errorf("failed to read agents file: %w", err)
	}

	var agents orchestrator.Agents
	if err := decodeRawJSON(raw, &agents); err != nil {
		return orchestrator.Agents{}, err
	}

	if err := validateAgents(agents); err != nil {
		return orchestrator.Agents{}, err
	}
	return agents, nil
}

func validateAgents(agents orchestrator.Agents) error {
	var issues []string

	if strings.TrimSpace(agents.Lead.Name) == "" {
		issues = append(issues, "lead agent is required")
	}
	if len(agents.Workers) == 0 {
		issues = append(issues, "at least one worker agent is required")
	}
	for i, w := range agents.Workers {
		if strings.TrimSpace(w.Name) == "" {
			issues = append(issues, fmt.Sprintf("workers[%d].name is required", i))
		}
	}
	if strings.TrimSpace(agents.PlanCritic.Name) == "" {
		issues = append(issues, "plan_critic agent is required")
	}
	if strings.TrimSpace(agents.Refiner.Name) == "" {
		issues = append(issues, "refiner agent is required")
	}
	if strings.TrimSpace(agents.Writer.Name) == "" {
		issues = append(issues, "writer agent is required")
	}
	if strings.TrimSpace(agents.DocumentCritic.Name) == "" {
		issues = append(issues, "document_critic agent is required")
	}

	for _, role := range []string{debateRoleAdvocate, debateRoleSkeptic, debateRoleSynthesizer} {
		if _, ok := findDebateAgent(agents, role); !ok {
			issues = append(issues, fmt.Sprintf("debate_agents must include a %q role", role))
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &ConfigValidationError{Issues: issues}
}

func findDebateAgent(agents orchestrator.Agents, role string) (orchestrator.AgentRole, bool) {
	for _, a := range agents.DebateAgents {
		if a.Role == role {
			return a, true
		}
	}
	return orchestrator.AgentRole{}, false
}
