package orchestrator

import (
	"context"
	"testing"
)

func TestRefinementLoop_ApprovalShortCircuits(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"advocate":    {"The output is thorough and well cited."},
		"skeptic":     {"I have no major objections."},
		"synthesizer": {"APPROVED: solid coverage"},
	})
	cfg := DefaultConfig()
	cfg.MaxDebateRounds = 1
	cfg.MaxRefinementIterations = 3
	o := testOrchestrator(t, cfg, testAgents(), fc)

	out, err := o.refinementLoop(context.Background(), "q1", "original output", discardLogger())
	if err != nil {
		t.Fatalf("refinementLoop: %v", err)
	}
	if out != "original output" {
		t.Errorf("out = %q, want unchanged original output", out)
	}

	for _, c := range fc.calls {
		if c.agent == "refiner" {
			t.Fatal("refiner should not have been called after an approved verdict")
		}
	}
}

func TestRefinementLoop_NonApprovalTriggersRefiner(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"advocate":    {"Defense round 1"},
		"skeptic":     {"This is missing key sources."},
		"synthesizer": {"Needs more citations before approval."},
		"refiner":     {"revised output with citations"},
	})
	cfg := DefaultConfig()
	cfg.MaxDebateRounds = 1
	cfg.MaxRefinementIterations = 1
	o := testOrchestrator(t, cfg, testAgents(), fc)

	out, err := o.refinementLoop(context.Background(), "q1", "original output", discardLogger())
	if err != nil {
		t.Fatalf("refinementLoop: %v", err)
	}
	if out != "revised output with citations" {
		t.Errorf("out = %q, want the refiner's revision", out)
	}
}

func TestRefinementLoop_IterationCapStopsRetrying(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"advocate":    {"Defense 1", "Defense 2"},
		"skeptic":     {"Critique 1", "Critique 2"},
		"synthesizer": {"Needs more work, iteration 1", "Needs more work, iteration 2"},
		"refiner":     {"revision 1", "revision 2"},
	})
	cfg := DefaultConfig()
	cfg.MaxDebateRounds = 1
	cfg.MaxRefinementIterations = 2
	o := testOrchestrator(t, cfg, testAgents(), fc)

	out, err := o.refinementLoop(context.Background(), "q1", "original output", discardLogger())
	if err != nil {
		t.Fatalf("refinementLoop: %v", err)
	}
	if out != "revision 2" {
		t.Errorf("out = %q, want the last refiner revision after hitting the iteration cap", out)
	}
}

func TestRunDebate_MultiRoundRespondsToLastTurn(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"advocate":    {"Opening defense", "Response to skeptic"},
		"skeptic":     {"First critique", "Second critique"},
		"synthesizer": {"APPROVED: after two rounds"},
	})
	cfg := DefaultConfig()
	cfg.MaxDebateRounds = 2
	o := testOrchestrator(t, cfg, testAgents(), fc)

	verdict, err := o.runDebate(context.Background(), "q1", "output")
	if err != nil {
		t.Fatalf("runDebate: %v", err)
	}
	if verdict != "APPROVED: after two rounds" {
		t.Errorf("verdict = %q", verdict)
	}

	var advocateCalls, skepticCalls int
	for _, c := range fc.calls {
		switch c.agent {
		case "advocate":
			advocateCalls++
		case "skeptic":
			skepticCalls++
		}
	}
	if advocateCalls != 2 || skepticCalls != 2 {
		t.Errorf("advocateCalls=%d skepticCalls=%d, want 2 and 2", advocateCalls, skepticCalls)
	}
}
