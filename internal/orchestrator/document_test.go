package orchestrator

import (
	"context"
	"strings"
	"testing"
)

func TestDocumentWritingLoop_ApprovedOnFirstIteration(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"writer":          {"final document draft"},
		"document-critic": {"APPROVED"},
	})
	o := testOrchestrator(t, DefaultConfig(), testAgents(), fc)

	doc, err := o.documentWritingLoop(context.Background(), "q1", "original query", "research findings", discardLogger())
	if err != nil {
		t.Fatalf("documentWritingLoop: %v", err)
	}
	if doc != "final document draft" {
		t.Errorf("doc = %q", doc)
	}
}

func TestDocumentWritingLoop_RequiresExactApprovedEquality(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"writer": {"draft 1", "draft 2"},
		"document-critic": {
			"APPROVED, but consider adding more detail", // not an exact match, triggers a revision
			"APPROVED",
		},
	})
	cfg := DefaultConfig()
	cfg.MaxDocumentIterations = 3
	o := testOrchestrator(t, cfg, testAgents(), fc)

	doc, err := o.documentWritingLoop(context.Background(), "q1", "original query", "research findings", discardLogger())
	if err != nil {
		t.Fatalf("documentWritingLoop: %v", err)
	}
	if doc != "draft 2" {
		t.Errorf("doc = %q, want second draft after non-exact APPROVED match forced a revision", doc)
	}
}

func TestDocumentWritingLoop_RevisionUsesLastCritique(t *testing.T) {
	fc := newFakeFactory(map[string][]string{
		"writer":          {"draft 1", "draft 2"},
		"document-critic": {"missing the cost analysis section", "APPROVED"},
	})
	cfg := DefaultConfig()
	cfg.MaxDocumentIterations = 3
	o := testOrchestrator(t, cfg, testAgents(), fc)

	_, err := o.documentWritingLoop(context.Background(), "q1", "original query", "research findings", discardLogger())
	if err != nil {
		t.Fatalf("documentWritingLoop: %v", err)
	}

	var secondWriterPrompt string
	var writerCallCount int
	for _, c := range fc.calls {
		if c.agent == "writer" {
			writerCallCount++
			if writerCallCount == 2 {
				secondWriterPrompt = c.prompt
			}
		}
	}
	if !strings.Contains(secondWriterPrompt, "missing the cost analysis section") {
		t.Errorf("second writer prompt missing last critique: %q", secondWriterPrompt)
	}
	if !strings.Contains(secondWriterPrompt, "draft 1") {
		t.Errorf("second writer prompt missing prior draft: %q", secondWriterPrompt)
	}
}

func TestAppendReferences_ExtractsAndSplitsSources(t *testing.T) {
	document := "Findings [Source: https://example.com/a] and (Source: Internal Memo 12) plus another link https://example.org/b."

	out := appendReferences(document)

	if !strings.Contains(out, "## References") {
		t.Fatalf("missing References section: %q", out)
	}
	if !strings.Contains(out, "**Web Sources**") {
		t.Errorf("missing Web Sources subheading: %q", out)
	}
	if !strings.Contains(out, "**Additional Sources**") {
		t.Errorf("missing Additional Sources subheading: %q", out)
	}
	if !strings.Contains(out, "https://example.org/b") {
		t.Errorf("missing bare URL not captured by [Source:]: %q", out)
	}
	if !strings.Contains(out, "Internal Memo 12") {
		t.Errorf("missing parenthesized source: %q", out)
	}

	// The bracketed form and the document body together should produce
	// exactly one reference entry for example.com/a: once in the body,
	// once in the References list, and no third (deduplicated) copy.
	if strings.Count(out, "https://example.com/a") != 2 {
		t.Errorf("expected https://example.com/a to appear twice (body + one deduplicated reference entry), got count %d in %q", strings.Count(out, "https://example.com/a"), out)
	}
}

func TestAppendReferences_NoSourcesLeavesDocumentUnchanged(t *testing.T) {
	document := "A document with no citations at all."
	if got := appendReferences(document); got != document {
		t.Errorf("got %q, want document unchanged", got)
	}
}
