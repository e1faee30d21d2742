package lmclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/nexus/internal/toolexec"
)

const formattingReminder = `Remember:
- You can call multiple tools in one response by using a JSON array
- If tools are needed, respond with ONLY the JSON (no markdown, no formatting)
- If no tools are needed, respond in clean markdown (headers, lists, code blocks as appropriate)
- Never use markdown tables; use bullet points with bold labels instead`

const toolRequestProtocol = `If the task requires using a tool from the list below, respond with ONLY valid JSON in one of these shapes (no other text):

Single tool:
{"tool_type": "<type>", "tool_name": "<name>", "parameters": {<params>}}

Multiple tools (independent, may run in any order):
[
  {"tool_type": "<type>", "tool_name": "<name>", "parameters": {<params>}},
  {"tool_type": "<type>", "tool_name": "<name>", "parameters": {<params>}}
]`

func (c *Client) buildEnvelope(allowTools bool, originalQuestion, toolResultsContext, promptForIteration string) string {
	var context string
	if toolResultsContext != "" {
		context = fmt.Sprintf("Original question: %s\n\n%s\n\nCurrent task: %s", originalQuestion, toolResultsContext, promptForIteration)
	} else {
		context = fmt.Sprintf("Question: %s", promptForIteration)
	}

	if !allowTools || c.executor == nil {
		return fmt.Sprintf("%s\n\n%s", formattingReminder, context)
	}

	tools := c.filteredTools()
	if len(tools) == 0 {
		return fmt.Sprintf("%s\n\n%s", formattingReminder, context)
	}

	toolsJSON, _ := json.MarshalIndent(tools, "", "  ")
	return fmt.Sprintf("%s\n\nAvailable tools:\n%s\n\n%s\n\n%s", toolRequestProtocol, toolsJSON, context, formattingReminder)
}

func (c *Client) filteredTools() []toolexec.DescribedTool {
	all := c.executor.DescribeTools()
	if len(c.cfg.AvailableTools) == 0 {
		return all
	}
	allowed := make(map[string]bool, len(c.cfg.AvailableTools))
	for _, name := range c.cfg.AvailableTools {
		allowed[name] = true
	}
	var out []toolexec.DescribedTool
	for _, t := range all {
		if allowed[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// nextIterationInstruction is reused by the main loop after folding in
// tool results; kept as a helper so a future variant can customize it.
func nextIterationInstruction() string {
	return strings.TrimSpace(`Based on the tool results above, either call more tools if additional information is needed, or provide the final answer in clean markdown.`)
}
