package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/nexus/internal/sharedmemory"
	"github.com/haasonsaas/nexus/internal/toolexec"
)

// questionAssignment is the wire shape the lead agent is asked to
// produce: one sub-question paired with a worker role name.
type questionAssignment struct {
	Question string `json:"question"`
	Worker   string `json:"worker"`
}

// planQuery runs the planning loop: ask the lead agent for a decomposed
// plan, submit it to the plan critic, and refine until approved or the
// iteration cap is reached, at which point the last plan is used as-is.
func (o *Orchestrator) planQuery(ctx context.Context, query, queryID string, logger *slog.Logger) (Plan, error) {
	lead := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: o.agents.Lead.Name})

	prompt := fmt.Sprintf(
		"%s\n\nWorker count must be between %d and %d.\n\nQuery: %s\n\nRespond with a JSON array of {\"question\", \"worker\"} assignments followed by a short strategy paragraph.",
		o.agents.Lead.SystemPrompt, o.cfg.MinWorkerCount, o.cfg.MaxWorkerCount, query,
	)

	var lastPlan Plan
	var lastErr error

	maxIterations := o.cfg.MaxPlanIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		response, err := lead.Query(ctx, prompt)
		if err != nil {
			return Plan{}, transportErrorf("query lead agent for plan: %v", err)
		}

		plan, err := o.parsePlan(response)
		if err != nil {
			lastErr = err
			logger.Warn("planning iteration produced an unparseable plan", "iteration", iteration, "error", err)
			prompt = fmt.Sprintf("%s\n\nYour previous response could not be parsed (%v). Respond again with a valid JSON array of {\"question\", \"worker\"} assignments.", prompt, err)
			continue
		}
		lastPlan = plan
		lastErr = nil

		critic := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: o.agents.PlanCritic.Name})
		criticPrompt := fmt.Sprintf("%s\n\nProposed plan:\n%s\n\nStrategy: %s", o.agents.PlanCritic.SystemPrompt, formatSubQuestions(plan.SubQuestions), plan.Strategy)
		criticism, err := critic.Query(ctx, criticPrompt)
		if err != nil {
			return Plan{}, transportErrorf("query plan critic: %v", err)
		}

		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(criticism)), "APPROVED") {
			return plan, nil
		}

		prompt = fmt.Sprintf(
			"%s\n\nYour previous plan received this feedback:\n%s\n\nRevise the plan accordingly and respond with a JSON array of {\"question\", \"worker\"} assignments followed by a strategy paragraph.",
			prompt, criticism,
		)
	}

	if lastErr != nil && len(lastPlan.SubQuestions) == 0 {
		return Plan{}, lastErr
	}
	return lastPlan, nil
}

// parsePlan extracts the JSON array of question/worker assignments by
// scanning for the first `[` and last `]`, maps each worker role to a
// concrete agent name (exact role match, then case-insensitive
// name-substring fallback), and rejects unknown roles.
func (o *Orchestrator) parsePlan(response string) (Plan, error) {
	jsonArray, err := extractJSONArray(response)
	if err != nil {
		return Plan{}, protocolErrorf("extract plan JSON array: %v", err)
	}

	var assignments []questionAssignment
	if err := json.Unmarshal([]byte(jsonArray), &assignments); err != nil {
		return Plan{}, protocolErrorf("parse plan JSON array: %v", err)
	}

	subQuestions := make([]SubQuestion, 0, len(assignments))
	for _, a := range assignments {
		worker, ok := o.resolveWorkerRole(a.Worker)
		if !ok {
			return Plan{}, configErrorf("worker role not found: %s", a.Worker)
		}
		subQuestions = append(subQuestions, SubQuestion{Question: a.Question, AssignedWorker: worker.Name})
	}

	strategy := strings.TrimSpace(response[strings.LastIndex(response, "]")+1:])
	return Plan{SubQuestions: subQuestions, Strategy: strategy}, nil
}

// resolveWorkerRole maps a worker role string to a concrete AgentRole:
// exact role match first, else a case-insensitive name-substring match.
func (o *Orchestrator) resolveWorkerRole(role string) (AgentRole, bool) {
	for _, w := range o.agents.Workers {
		if w.Role == role {
			return w, true
		}
	}
	lower := strings.ToLower(role)
	for _, w := range o.agents.Workers {
		if strings.Contains(strings.ToLower(w.Name), lower) {
			return w, true
		}
	}
	return AgentRole{}, false
}

// extractJSONArray finds the first `[` through the last `]` in text, or
// the whole trimmed text if it already starts with `[`.
func extractJSONArray(text string) (string, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1], nil
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		return trimmed, nil
	}
	return "", fmt.Errorf("no JSON array found in response")
}

func formatSubQuestions(subs []SubQuestion) string {
	var b strings.Builder
	for i, s := range subs {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, s.AssignedWorker, s.Question)
	}
	return b.String()
}

func (o *Orchestrator) storePlan(ctx context.Context, queryID, queryText string, plan Plan, logger *slog.Logger) {
	if o.memory == nil {
		return
	}
	content := fmt.Sprintf("Strategy: %s\n\n%s", plan.Strategy, formatSubQuestions(plan.SubQuestions))
	if _, err := o.memory.Store(ctx, sharedmemory.TypePlan, content, map[string]string{
		"query_id":   queryID,
		"query_text": queryText,
	}, o.agents.Lead.Name); err != nil {
		logger.Warn("failed to store plan memory", "error", err)
	}
}
