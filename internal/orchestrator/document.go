package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/haasonsaas/nexus/internal/toolexec"
)

// documentWritingLoop runs the writer/document-critic cycle up to
// MaxDocumentIterations times. The first iteration writes from the
// research content alone; later iterations revise the prior draft
// using the research content plus the last critique.
func (o *Orchestrator) documentWritingLoop(ctx context.Context, queryID, originalQuery, researchContent string, logger *slog.Logger) (string, error) {
	maxIterations := o.cfg.MaxDocumentIterations
	if maxIterations <= 0 {
		maxIterations = 1
	}

	writer := o.newClient(o.agents.Writer.AvailableTools, toolexec.CallContext{QueryID: queryID, AgentName: o.agents.Writer.Name})
	critic := o.newClient(nil, toolexec.CallContext{QueryID: queryID, AgentName: o.agents.DocumentCritic.Name})

	var document string
	var lastCritique string

	for iteration := 1; iteration <= maxIterations; iteration++ {
		o.sendProgress(ProgressEvent{Kind: ProgressWritingDocument, Iteration: iteration, MaxIterations: maxIterations})

		var prompt string
		if iteration == 1 {
			prompt = fmt.Sprintf(
				"%s\n\nOriginal query: %s\n\nWrite a complete, well-organized document from the research findings below.\n\n%s",
				o.agents.Writer.SystemPrompt, originalQuery, researchContent,
			)
		} else {
			prompt = fmt.Sprintf(
				"%s\n\nOriginal query: %s\n\nRevise the draft below to address the critique, using the research findings as supporting material.\n\nCritique:\n%s\n\nResearch findings:\n%s\n\nPrior draft:\n%s",
				o.agents.Writer.SystemPrompt, originalQuery, lastCritique, researchContent, document,
			)
		}

		if err := o.pace(ctx); err != nil {
			return "", transportErrorf("query writer on document iteration %d: %v", iteration, err)
		}
		revised, err := writer.Query(ctx, prompt)
		if err != nil {
			return "", transportErrorf("query writer on document iteration %d: %v", iteration, err)
		}
		document = revised

		o.sendProgress(ProgressEvent{Kind: ProgressDocumentReviewing, Iteration: iteration, MaxIterations: maxIterations})
		if err := o.pace(ctx); err != nil {
			return "", transportErrorf("query document critic on iteration %d: %v", iteration, err)
		}
		critique, err := critic.Query(ctx, fmt.Sprintf(
			"%s\n\nReview the document below. If it fully and accurately answers the original query, respond with exactly APPROVED. Otherwise explain what must change.\n\nOriginal query: %s\n\nDocument:\n%s",
			o.agents.DocumentCritic.SystemPrompt, originalQuery, document,
		))
		if err != nil {
			return "", transportErrorf("query document critic on iteration %d: %v", iteration, err)
		}

		if strings.ToUpper(strings.TrimSpace(critique)) == "APPROVED" {
			return document, nil
		}
		lastCritique = critique
	}

	return document, nil
}

var (
	bracketSourcePattern = regexp.MustCompile(`\[Source:\s*([^\]]+)\]`)
	parenSourcePattern   = regexp.MustCompile(`\(Source:\s*([^)]+)\)`)
	bareURLPattern       = regexp.MustCompile(`https?://[^\s)\]]+`)
)

// appendReferences extracts references from the document by three
// regexes, de-duplicates bare URLs against wrapped [Source:] forms,
// sorts them, and appends a References section splitting Web Sources
// (http/https) from Additional Sources.
func appendReferences(document string) string {
	sources := map[string]struct{}{}

	for _, m := range bracketSourcePattern.FindAllStringSubmatch(document, -1) {
		sources[strings.TrimSpace(m[1])] = struct{}{}
	}
	for _, m := range parenSourcePattern.FindAllStringSubmatch(document, -1) {
		sources[strings.TrimSpace(m[1])] = struct{}{}
	}
	for _, m := range bareURLPattern.FindAllString(document, -1) {
		sources[strings.TrimSpace(m)] = struct{}{}
	}

	if len(sources) == 0 {
		return document
	}

	var webSources, additionalSources []string
	for s := range sources {
		if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
			webSources = append(webSources, s)
		} else {
			additionalSources = append(additionalSources, s)
		}
	}
	sort.Strings(webSources)
	sort.Strings(additionalSources)

	var b strings.Builder
	b.WriteString(document)
	b.WriteString("\n\n## References\n\n")
	if len(webSources) > 0 {
		b.WriteString("**Web Sources**\n\n")
		for _, s := range webSources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(additionalSources) > 0 {
		b.WriteString("**Additional Sources**\n\n")
		for _, s := range additionalSources {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	return b.String()
}
