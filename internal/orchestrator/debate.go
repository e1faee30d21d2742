package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haasonsaas/nexus/internal/toolexec"
)

const (
	debateRoleAdvocate    = "advocate"
	debateRoleSkeptic     = "skeptic"
	debateRoleSynthesizer = "synthesizer"
)

// refinementLoop runs the debate-then-refine cycle up to
// MaxRefinementIterations times, replacing currentOutput with the
// refiner's revision whenever the debate's verdict isn't an approval.
func (o *Orchestrator) refinementLoop(ctx context.Context, queryID, currentOutput string, logger *slog.Logger) (string, error) {
	maxIterations := o.cfg.MaxRefinementIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		o.sendProgress(ProgressEvent{Kind: ProgressRefining, Iteration: iteration, MaxIterations: maxIterations})

		verdict, err := o.runDebate(ctx, queryID, currentOutput)
		if err != nil {
			return "", transportErrorf("run debate round %d: %v", iteration, err)
		}

		if strings.Contains(strings.ToUpper(verdict), "APPROVED") {
			return currentOutput, nil
		}

		refined, err := o.runRefiner(ctx, queryID, currentOutput, verdict)
		if err != nil {
			return "", transportErrorf("query refiner: %v", err)
		}
		currentOutput = refined
	}

	return currentOutput, nil
}

// runDebate runs one multi-round advocate/skeptic exchange followed by
// a synthesizer verdict. Round 1: advocate defends the current output,
// skeptic critiques the defense. Rounds 2..MaxDebateRounds: each side
// responds to the other's immediately preceding turn.
func (o *Orchestrator) runDebate(ctx context.Context, queryID, currentOutput string) (string, error) {
	advocateRole, _ := o.agents.debateAgent(debateRoleAdvocate)
	skepticRole, _ := o.agents.debateAgent(debateRoleSkeptic)
	synthesizerRole, _ := o.agents.debateAgent(debateRoleSynthesizer)

	maxRounds := o.cfg.MaxDebateRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	advocate := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: advocateRole.Name})
	skeptic := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: skepticRole.Name})

	var advocateTurn, skepticTurn string
	var err error

	for round := 1; round <= maxRounds; round++ {
		o.metrics.incDebateRound()
		if err = o.pace(ctx); err != nil {
			return "", fmt.Errorf("advocate round %d: %w", round, err)
		}
		if round == 1 {
			advocateTurn, err = advocate.Query(ctx, fmt.Sprintf(
				"%s\n\nDefend the following research output as thorough and well-supported:\n\n%s",
				advocateRole.SystemPrompt, currentOutput,
			))
		} else {
			advocateTurn, err = advocate.Query(ctx, fmt.Sprintf(
				"%s\n\nThe skeptic raised this critique of your defense:\n\n%s\n\nRespond to it.",
				advocateRole.SystemPrompt, skepticTurn,
			))
		}
		if err != nil {
			return "", fmt.Errorf("advocate round %d: %w", round, err)
		}

		if err = o.pace(ctx); err != nil {
			return "", fmt.Errorf("skeptic round %d: %w", round, err)
		}
		skepticTurn, err = skeptic.Query(ctx, fmt.Sprintf(
			"%s\n\nCritique this defense of the research output:\n\n%s\n\nOriginal output:\n\n%s",
			skepticRole.SystemPrompt, advocateTurn, currentOutput,
		))
		if err != nil {
			return "", fmt.Errorf("skeptic round %d: %w", round, err)
		}
	}

	o.sendProgress(ProgressEvent{Kind: ProgressCriticReviewing})
	synthesizer := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: synthesizerRole.Name})
	if err := o.pace(ctx); err != nil {
		return "", fmt.Errorf("synthesizer verdict: %w", err)
	}
	verdict, err := synthesizer.Query(ctx, fmt.Sprintf(
		"%s\n\nGiven this debate about the research output, produce a verdict. If the output is sufficiently thorough, respond starting with \"APPROVED\" followed by a short justification. Otherwise explain what must be improved.\n\nAdvocate's final position:\n%s\n\nSkeptic's final position:\n%s",
		synthesizerRole.SystemPrompt, advocateTurn, skepticTurn,
	))
	if err != nil {
		return "", fmt.Errorf("synthesizer verdict: %w", err)
	}

	return verdict, nil
}

func (o *Orchestrator) runRefiner(ctx context.Context, queryID, currentOutput, verdict string) (string, error) {
	refiner := o.newClient(o.agents.Refiner.AvailableTools, toolexec.CallContext{QueryID: queryID, AgentName: o.agents.Refiner.Name})
	if err := o.pace(ctx); err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(
		"%s\n\nRevise the research output below to address the following critique.\n\nCritique:\n%s\n\nCurrent output:\n%s",
		o.agents.Refiner.SystemPrompt, verdict, currentOutput,
	)
	return refiner.Query(ctx, prompt)
}
