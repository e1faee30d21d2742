package orchestrator

import "time"

// AgentRole is a named role with a system prompt and a tool whitelist.
// Workers, the plan critic, the debate agents, the refiner, the writer,
// and the document critic are all instances of this shape, distinguished
// by Role and loaded from the agents configuration file.
type AgentRole struct {
	Name            string   `json:"name"`
	Role            string   `json:"role"`
	Description     string   `json:"description"`
	SystemPrompt    string   `json:"system_prompt"`
	AvailableTools  []string `json:"available_tools"`
}

// Agents is the full agent roster for one research session.
type Agents struct {
	Lead           AgentRole   `json:"lead"`
	Workers        []AgentRole `json:"workers"`
	PlanCritic     AgentRole   `json:"plan_critic"`
	DebateAgents   []AgentRole `json:"debate_agents"` // roles: advocate, skeptic, synthesizer
	Refiner        AgentRole   `json:"refiner"`
	Writer         AgentRole   `json:"writer"`
	DocumentCritic AgentRole   `json:"document_critic"`
}

// debateAgent returns the debate agent with the given Role, or false.
func (a Agents) debateAgent(role string) (AgentRole, bool) {
	for _, ag := range a.DebateAgents {
		if ag.Role == role {
			return ag, true
		}
	}
	return AgentRole{}, false
}

// SubQuestion is one decomposed piece of a query with its worker
// assignment.
type SubQuestion struct {
	Question       string `json:"question"`
	AssignedWorker string `json:"assigned_worker"`
}

// Plan is the parsed output of the planning loop: an ordered sequence of
// sub-questions plus a free-form strategy paragraph.
type Plan struct {
	SubQuestions []SubQuestion
	Strategy     string
}

// WorkerResult is one worker's answer to its assigned sub-question.
type WorkerResult struct {
	Question   string
	Answer     string
	WorkerName string
}

// ProgressKind identifies which stage of the pipeline a ProgressEvent
// describes, mirroring the original's ResearchProgress enum variants.
type ProgressKind string

const (
	ProgressStarted            ProgressKind = "started"
	ProgressDecomposing        ProgressKind = "decomposing"
	ProgressWorkersStarted     ProgressKind = "workers_started"
	ProgressWorkerCompleted    ProgressKind = "worker_completed"
	ProgressCombining          ProgressKind = "combining"
	ProgressRefining           ProgressKind = "refining"
	ProgressCriticReviewing    ProgressKind = "critic_reviewing"
	ProgressAddingBibliography ProgressKind = "adding_bibliography"
	ProgressWritingDocument    ProgressKind = "writing_document"
	ProgressDocumentReviewing  ProgressKind = "document_reviewing"
	ProgressCompleted          ProgressKind = "completed"
)

// ProgressEvent is one tick of the Orchestrator's progress stream. The
// caller (a UI event loop, typically) subscribes to a channel of these;
// the Orchestrator never blocks on a slow or absent subscriber.
type ProgressEvent struct {
	Kind          ProgressKind
	Count         int    // ProgressWorkersStarted: number of workers dispatched
	WorkerName    string // ProgressWorkerCompleted
	Iteration     int    // ProgressRefining / ProgressWritingDocument: current iteration (1-based)
	MaxIterations int    // ProgressRefining / ProgressWritingDocument: iteration cap
}

// Config is the orchestrator's runtime tuning: worker bounds, iteration
// caps, and supervisor timing. Loaded from the operator's runtime-tuning
// file (see internal/config).
type Config struct {
	MinWorkerCount int
	MaxWorkerCount int

	MaxPlanIterations       int
	MaxRefinementIterations int
	MaxDebateRounds         int
	MaxDocumentIterations   int

	SupervisorInterval    time.Duration
	MidpointThreshold     int // completions before the supervisor may inject gap workers
	EarlyResultsThreshold int // completions before the early-results follow-up fires

	ContextWindow                  int // tokens; scales the per-worker truncation budget in combine.go
	SummarizationThresholdResearch int // bytes; a longer worker answer is summarized; also the truncation budget when ContextWindow is unset

	InterCallPause time.Duration // pacing between sequential LM calls the Orchestrator makes directly

	ExportMemory bool
}

// DefaultConfig returns the documented defaults for knobs with an
// explicit baseline; everything else follows the original system's
// literal constants.
func DefaultConfig() Config {
	return Config{
		MinWorkerCount:                 2,
		MaxWorkerCount:                 8,
		MaxPlanIterations:              3,
		MaxRefinementIterations:        5,
		MaxDebateRounds:                3,
		MaxDocumentIterations:          3,
		SupervisorInterval:             15 * time.Second,
		MidpointThreshold:              2,
		EarlyResultsThreshold:          2,
		ContextWindow:                  8192,
		SummarizationThresholdResearch: 50_000,
		InterCallPause:                 0,
		ExportMemory:                   false,
	}
}
