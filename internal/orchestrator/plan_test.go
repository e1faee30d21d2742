package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestPlanQuery_ApprovedOnFirstIteration(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"lead": {
			`[{"question": "What is the weather?", "worker": "web"}]` + "\n\nStrategy: gather weather data.",
		},
		"plan-critic": {"APPROVED: looks good"},
	})
	o := testOrchestrator(t, DefaultConfig(), testAgents(), fc)

	plan, err := o.planQuery(context.Background(), "What's the weather like?", "q1", discardLogger())
	if err != nil {
		t.Fatalf("planQuery: %v", err)
	}
	if len(plan.SubQuestions) != 1 {
		t.Fatalf("SubQuestions = %d, want 1", len(plan.SubQuestions))
	}
	if plan.SubQuestions[0].AssignedWorker != "web-researcher" {
		t.Errorf("AssignedWorker = %q, want web-researcher", plan.SubQuestions[0].AssignedWorker)
	}
	if !strings.Contains(plan.Strategy, "gather weather data") {
		t.Errorf("Strategy = %q", plan.Strategy)
	}
}

func TestPlanQuery_RevisesAfterCriticRejection(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"lead": {
			`[{"question": "Q1", "worker": "web"}]`,
			`[{"question": "Q1", "worker": "web"}, {"question": "Q2", "worker": "data"}]`,
		},
		"plan-critic": {
			"Needs more coverage of the data angle.",
			"APPROVED",
		},
	})
	o := testOrchestrator(t, DefaultConfig(), testAgents(), fc)

	plan, err := o.planQuery(context.Background(), "query", "q1", discardLogger())
	if err != nil {
		t.Fatalf("planQuery: %v", err)
	}
	if len(plan.SubQuestions) != 2 {
		t.Fatalf("SubQuestions = %d, want 2", len(plan.SubQuestions))
	}
}

func TestPlanQuery_CapsOutAndReturnsLastPlan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPlanIterations = 2
	fc := newFakeFactory(map[string][]string{
		"lead": {
			`[{"question": "Q1", "worker": "web"}]`,
			`[{"question": "Q1", "worker": "web"}]`,
		},
		"plan-critic": {
			"Not good enough.",
			"Still not good enough.",
		},
	})
	o := testOrchestrator(t, cfg, testAgents(), fc)

	plan, err := o.planQuery(context.Background(), "query", "q1", discardLogger())
	if err != nil {
		t.Fatalf("planQuery: %v", err)
	}
	if len(plan.SubQuestions) != 1 {
		t.Fatalf("SubQuestions = %d, want 1", len(plan.SubQuestions))
	}
}

func TestPlanQuery_UnknownWorkerRoleIsConfigError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPlanIterations = 1
	fc := newFakeFactory(map[string][]string{
		"lead": {`[{"question": "Q1", "worker": "nonexistent"}]`},
	})
	o := testOrchestrator(t, cfg, testAgents(), fc)

	_, err := o.planQuery(context.Background(), "query", "q1", discardLogger())
	if err == nil {
		t.Fatal("expected error for unknown worker role")
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("err = %v, want wrapping ErrConfig", err)
	}
}

func TestParsePlan_ExtractsStrategyAfterArray(t *testing.T) {
	o := testOrchestrator(t, DefaultConfig(), testAgents(), newFakeFactory(nil))
	response := `[{"question": "Q1", "worker": "web"}]` + "\n\nStrategy: focus on recency."

	plan, err := o.parsePlan(response)
	if err != nil {
		t.Fatalf("parsePlan: %v", err)
	}
	if plan.Strategy != "Strategy: focus on recency." {
		t.Errorf("Strategy = %q", plan.Strategy)
	}
}

func TestResolveWorkerRole_ExactRoleThenNameSubstring(t *testing.T) {
	o := testOrchestrator(t, DefaultConfig(), testAgents(), newFakeFactory(nil))

	role, ok := o.resolveWorkerRole("web")
	if !ok || role.Name != "web-researcher" {
		t.Fatalf("resolveWorkerRole(web) = %+v, %v", role, ok)
	}

	role, ok = o.resolveWorkerRole("Analyst")
	if !ok || role.Name != "data-analyst" {
		t.Fatalf("resolveWorkerRole(Analyst) = %+v, %v", role, ok)
	}

	_, ok = o.resolveWorkerRole("nonexistent")
	if ok {
		t.Fatal("expected resolveWorkerRole to fail for unknown role")
	}
}

func TestExtractJSONArray(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain array", `[{"a":1}]`, `[{"a":1}]`},
		{"array with trailing prose", `[{"a":1}]\nSome strategy text.`, `[{"a":1}]`},
		{"array with leading prose", "Here is the plan:\n[{\"a\":1}]", `[{"a":1}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractJSONArray(tc.in)
			if err != nil {
				t.Fatalf("extractJSONArray: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractJSONArray_NoArrayIsError(t *testing.T) {
	if _, err := extractJSONArray("no array here"); err == nil {
		t.Fatal("expected error")
	}
}
