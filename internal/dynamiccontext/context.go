// Package dynamiccontext builds the per-worker pre-prompt: a short-term
// working memory distinct from sharedmemory's cross-agent long-term
// store. Each worker owns one Context and calls BuildPrompt once per
// tool-calling iteration to assemble what goes in front of the model.
package dynamiccontext

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/nexus/internal/sharedmemory"
)

// NoteType classifies a working note recorded mid-run.
type NoteType string

const (
	NoteObservation  NoteType = "observation"
	NotePartialAnswer NoteType = "partial_answer"
	NoteFollowUp     NoteType = "follow_up"
	NoteToolResult   NoteType = "tool_result"
	NoteThought      NoteType = "thought"
)

// WorkingNote is one short-term finding attached to a specific
// iteration. Unlike sharedmemory.Memory, these never leave the worker.
type WorkingNote struct {
	Content   string
	Type      NoteType
	Iteration int
}

// Context is per-worker pre-prompt state: the assigned question, an
// iteration counter, accumulated working notes and key-value state, and
// a handle on Shared Memory for the once-per-iteration sync.
type Context struct {
	mu sync.Mutex

	originalQuery string
	agentName     string
	iteration     int
	notes         []WorkingNote
	state         map[string]string

	memory         *sharedmemory.Store
	lastMemorySync int
}

// New builds a Context for one worker. memory may be nil, in which case
// BuildPrompt never includes a shared-memory section.
func New(originalQuery, agentName string, memory *sharedmemory.Store) *Context {
	return &Context{
		originalQuery: originalQuery,
		agentName:     agentName,
		state:         make(map[string]string),
		memory:        memory,
		// -1 so the first BuildPrompt (iteration 0) syncs.
		lastMemorySync: -1,
	}
}

// NextIteration advances the iteration counter at the start of each
// tool-calling turn.
func (c *Context) NextIteration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iteration++
}

// CurrentIteration returns the iteration counter.
func (c *Context) CurrentIteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iteration
}

// AddNote records a short-term working note tagged with the current
// iteration.
func (c *Context) AddNote(content string, noteType NoteType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, WorkingNote{Content: content, Type: noteType, Iteration: c.iteration})
}

// ClearNotes discards all working notes, e.g. once a task completes.
func (c *Context) ClearNotes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = nil
}

// SetState stores an arbitrary key-value pair in per-worker state.
func (c *Context) SetState(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[key] = value
}

// GetState reads a per-worker state value.
func (c *Context) GetState(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.state[key]
	return v, ok
}

// BuildPrompt assembles the complete pre-prompt: global context,
// assigned question, a once-per-iteration shared-memory sync, working
// notes, and state — omitting any section with nothing to show.
func (c *Context) BuildPrompt(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sections []string
	sections = append(sections, globalContext())
	sections = append(sections, fmt.Sprintf("Your assigned task: %s", c.originalQuery))

	memorySection, err := c.syncFromSharedMemoryLocked(ctx)
	if err != nil {
		return "", err
	}
	if memorySection != "" {
		sections = append(sections, memorySection)
	}

	if len(c.notes) > 0 {
		var lines []string
		for _, n := range c.notes {
			lines = append(lines, fmt.Sprintf("[Iteration %d, %s] %s", n.Iteration, n.Type, n.Content))
		}
		sections = append(sections, fmt.Sprintf("=== Your working notes ===\n%s\n==========================", strings.Join(lines, "\n")))
	}

	if len(c.state) > 0 {
		var lines []string
		for k, v := range c.state {
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
		sections = append(sections, fmt.Sprintf("=== State ===\n%s\n=============", strings.Join(lines, "\n")))
	}

	return strings.Join(sections, "\n\n"), nil
}

// syncFromSharedMemoryLocked pulls the latest plan, feedback, and recent
// findings. It runs at most once per iteration; subsequent calls within
// the same iteration return "" so a multi-step tool loop doesn't re-pull
// on every turn.
func (c *Context) syncFromSharedMemoryLocked(ctx context.Context) (string, error) {
	if c.lastMemorySync >= c.iteration {
		return "", nil
	}
	if c.memory == nil {
		return "", nil
	}
	c.lastMemorySync = c.iteration

	var sections []string

	plans, err := c.memory.GetByType(ctx, sharedmemory.TypePlan, 1)
	if err != nil {
		return "", fmt.Errorf("sync plan from shared memory: %w", err)
	}
	if len(plans) > 0 {
		latest := plans[0]
		sections = append(sections, fmt.Sprintf(
			"=== Research Plan (by %s) ===\n%s\n================================",
			latest.CreatedBy, latest.Content,
		))
	}

	feedback, err := c.memory.GetByType(ctx, sharedmemory.TypeFeedback, 0)
	if err != nil {
		return "", fmt.Errorf("sync feedback from shared memory: %w", err)
	}
	if len(feedback) > 0 {
		var lines []string
		for _, f := range feedback {
			lines = append(lines, fmt.Sprintf("• %s (by %s)", f.Content, f.CreatedBy))
		}
		sections = append(sections, fmt.Sprintf(
			"=== Leader Feedback & Adjustments ===\n%s\n=====================================",
			strings.Join(lines, "\n"),
		))
	}

	findings, err := c.recentFindings(ctx)
	if err != nil {
		return "", err
	}
	if len(findings) > 0 {
		var lines []string
		for _, f := range findings {
			lines = append(lines, fmt.Sprintf("• [%s] %s (by %s)", f.Type, f.Content, f.CreatedBy))
		}
		sections = append(sections, fmt.Sprintf(
			"=== Recent findings from other agents ===\n%s\n=========================================",
			strings.Join(lines, "\n"),
		))
	}

	if len(sections) == 0 {
		return "", nil
	}
	return strings.Join(sections, "\n\n"), nil
}

// recentFindings combines the 3 most recent discoveries, 2 insights, and
// 2 deadends (each already newest-first from Shared Memory).
func (c *Context) recentFindings(ctx context.Context) ([]sharedmemory.Memory, error) {
	var findings []sharedmemory.Memory

	discoveries, err := c.memory.GetByType(ctx, sharedmemory.TypeDiscovery, 3)
	if err != nil {
		return nil, fmt.Errorf("sync discoveries from shared memory: %w", err)
	}
	findings = append(findings, discoveries...)

	insights, err := c.memory.GetByType(ctx, sharedmemory.TypeInsight, 2)
	if err != nil {
		return nil, fmt.Errorf("sync insights from shared memory: %w", err)
	}
	findings = append(findings, insights...)

	deadends, err := c.memory.GetByType(ctx, sharedmemory.TypeDeadend, 2)
	if err != nil {
		return nil, fmt.Errorf("sync deadends from shared memory: %w", err)
	}
	findings = append(findings, deadends...)

	return findings, nil
}

var weekdayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// globalContext renders the current UTC date and OS/arch banner every
// prompt envelope opens with.
func globalContext() string {
	now := time.Now().UTC()
	return fmt.Sprintf(
		"=== Context ===\nCurrent date: %s %d, %d (%s)\nSystem: %s (%s)\n===============",
		now.Month().String(), now.Day(), now.Year(), weekdayNames[now.Weekday()],
		runtime.GOOS, runtime.GOARCH,
	)
}

// Query returns the original assigned question.
func (c *Context) Query() string {
	return c.originalQuery
}

// AgentName returns the owning worker's name.
func (c *Context) AgentName() string {
	return c.agentName
}
