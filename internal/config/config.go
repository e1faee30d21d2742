package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/lmclient"
	"github.com/haasonsaas/nexus/internal/orchestrator"
)

// RuntimeConfig is the operator-facing runtime-tuning file: everything
// that controls how a research session behaves, as opposed to the
// tool/agent catalogs (tools.json, agents.json), which are loaded
// separately via LoadTools/LoadAgents.
type RuntimeConfig struct {
	// Version pins the runtime-tuning schema. Omit to accept CurrentVersion.
	Version int `yaml:"version"`

	Server       ServerConfig       `yaml:"server"`
	LMClient     LMClientConfig     `yaml:"lm_client"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// EmbeddingConfig configures the Shared Memory store's embedding
// backend (the `POST {host}/api/embeddings` contract).
type EmbeddingConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ServerConfig controls the optional metrics endpoint and config
// hot-reload behavior of cmd/research.
type ServerConfig struct {
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// WatchConfig enables fsnotify watching of the tools/agents catalogs
	// so they reload between research sessions without a restart. Never
	// applies mid-session.
	WatchConfig bool `yaml:"watch_config"`

	// MemoryDBPath is the SQLite file backing the Shared Memory store.
	MemoryDBPath string `yaml:"memory_db_path"`
}

// LMClientConfig mirrors lmclient.Config with yaml tags for the
// runtime-tuning file.
type LMClientConfig struct {
	BaseURL                string   `yaml:"base_url"`
	Model                  string   `yaml:"model"`
	SummarizationModel     string   `yaml:"summarization_model"`
	MaxToolTurns           int      `yaml:"max_tool_turns"`
	SummarizationThreshold int      `yaml:"summarization_threshold"`
	AvailableTools         []string `yaml:"available_tools"`
}

// ToLMClient converts to the shape internal/lmclient.New expects.
func (c LMClientConfig) ToLMClient() lmclient.Config {
	return lmclient.Config{
		BaseURL:                c.BaseURL,
		Model:                  c.Model,
		SummarizationModel:     c.SummarizationModel,
		MaxToolTurns:           c.MaxToolTurns,
		SummarizationThreshold: c.SummarizationThreshold,
		AvailableTools:         c.AvailableTools,
	}
}

// OrchestratorConfig mirrors orchestrator.Config with yaml tags and
// human-friendly duration strings for the runtime-tuning file.
type OrchestratorConfig struct {
	MinWorkerCount int `yaml:"min_worker_count"`
	MaxWorkerCount int `yaml:"max_worker_count"`

	MaxPlanIterations       int `yaml:"max_plan_iterations"`
	MaxRefinementIterations int `yaml:"max_refinement_iterations"`
	MaxDebateRounds         int `yaml:"max_debate_rounds"`
	MaxDocumentIterations   int `yaml:"max_document_iterations"`

	SupervisorInterval    time.Duration `yaml:"supervisor_interval"`
	MidpointThreshold     int           `yaml:"midpoint_threshold"`
	EarlyResultsThreshold int           `yaml:"early_results_threshold"`

	ContextWindow                  int `yaml:"context_window"`
	SummarizationThresholdResearch int `yaml:"summarization_threshold_research"`

	InterCallPause time.Duration `yaml:"inter_call_pause"`

	ExportMemory bool `yaml:"export_memory"`
}

// ToOrchestrator converts to the shape orchestrator.New expects.
func (c OrchestratorConfig) ToOrchestrator() orchestrator.Config {
	return orchestrator.Config{
		MinWorkerCount:                 c.MinWorkerCount,
		MaxWorkerCount:                 c.MaxWorkerCount,
		MaxPlanIterations:              c.MaxPlanIterations,
		MaxRefinementIterations:        c.MaxRefinementIterations,
		MaxDebateRounds:                c.MaxDebateRounds,
		MaxDocumentIterations:          c.MaxDocumentIterations,
		SupervisorInterval:             c.SupervisorInterval,
		MidpointThreshold:              c.MidpointThreshold,
		EarlyResultsThreshold:          c.EarlyResultsThreshold,
		ContextWindow:                  c.ContextWindow,
		SummarizationThresholdResearch: c.SummarizationThresholdResearch,
		InterCallPause:                 c.InterCallPause,
		ExportMemory:                   c.ExportMemory,
	}
}

// Load reads a runtime-tuning file (YAML, with $include support and
// ${VAR} expansion), applies defaults for anything left zero-valued,
// validates the result, and returns it.
func Load(path string) (*RuntimeConfig, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg RuntimeConfig
	if err := decodeRawYAML(raw, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if err := ValidateVersion(cfg.Version); err != nil {
		return nil, err
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *RuntimeConfig) {
	def := orchestrator.DefaultConfig()

	if cfg.Orchestrator.MinWorkerCount == 0 {
		cfg.Orchestrator.MinWorkerCount = def.MinWorkerCount
	}
	if cfg.Orchestrator.MaxWorkerCount == 0 {
		cfg.Orchestrator.MaxWorkerCount = def.MaxWorkerCount
	}
	if cfg.Orchestrator.MaxPlanIterations == 0 {
		cfg.Orchestrator.MaxPlanIterations = def.MaxPlanIterations
	}
	if cfg.Orchestrator.MaxRefinementIterations == 0 {
		cfg.Orchestrator.MaxRefinementIterations = def.MaxRefinementIterations
	}
	if cfg.Orchestrator.MaxDebateRounds == 0 {
		cfg.Orchestrator.MaxDebateRounds = def.MaxDebateRounds
	}
	if cfg.Orchestrator.MaxDocumentIterations == 0 {
		cfg.Orchestrator.MaxDocumentIterations = def.MaxDocumentIterations
	}
	if cfg.Orchestrator.SupervisorInterval == 0 {
		cfg.Orchestrator.SupervisorInterval = def.SupervisorInterval
	}
	if cfg.Orchestrator.MidpointThreshold == 0 {
		cfg.Orchestrator.MidpointThreshold = def.MidpointThreshold
	}
	if cfg.Orchestrator.EarlyResultsThreshold == 0 {
		cfg.Orchestrator.EarlyResultsThreshold = def.EarlyResultsThreshold
	}
	if cfg.Orchestrator.ContextWindow == 0 {
		cfg.Orchestrator.ContextWindow = def.ContextWindow
	}
	if cfg.Orchestrator.SummarizationThresholdResearch == 0 {
		cfg.Orchestrator.SummarizationThresholdResearch = def.SummarizationThresholdResearch
	}

	if cfg.LMClient.BaseURL == "" {
		cfg.LMClient.BaseURL = "http://localhost:11434"
	}
	if cfg.LMClient.MaxToolTurns == 0 {
		cfg.LMClient.MaxToolTurns = 10
	}
	if cfg.LMClient.SummarizationThreshold == 0 {
		cfg.LMClient.SummarizationThreshold = def.SummarizationThresholdResearch
	}

	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9090"
	}
	if cfg.Server.MemoryDBPath == "" {
		cfg.Server.MemoryDBPath = "research-memory.db"
	}

	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.LMClient.BaseURL
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 768
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
}

// ConfigValidationError aggregates every validation failure found in a
// single pass so an operator sees all of them at once, not one per run.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *RuntimeConfig) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Orchestrator.MinWorkerCount < 1 {
		issues = append(issues, "orchestrator.min_worker_count must be >= 1")
	}
	if cfg.Orchestrator.MaxWorkerCount < cfg.Orchestrator.MinWorkerCount {
		issues = append(issues, "orchestrator.max_worker_count must be >= orchestrator.min_worker_count")
	}
	if cfg.Orchestrator.MaxPlanIterations < 1 {
		issues = append(issues, "orchestrator.max_plan_iterations must be >= 1")
	}
	if cfg.Orchestrator.MaxDebateRounds < 1 {
		issues = append(issues, "orchestrator.max_debate_rounds must be >= 1")
	}
	if cfg.Orchestrator.MaxDocumentIterations < 1 {
		issues = append(issues, "orchestrator.max_document_iterations must be >= 1")
	}
	if cfg.Orchestrator.SupervisorInterval < 0 {
		issues = append(issues, "orchestrator.supervisor_interval must be >= 0")
	}
	if cfg.Orchestrator.SummarizationThresholdResearch < 0 {
		issues = append(issues, "orchestrator.summarization_threshold_research must be >= 0")
	}
	if cfg.Orchestrator.InterCallPause < 0 {
		issues = append(issues, "orchestrator.inter_call_pause must be >= 0")
	}

	if strings.TrimSpace(cfg.LMClient.BaseURL) == "" {
		issues = append(issues, "lm_client.base_url is required")
	}
	if strings.TrimSpace(cfg.LMClient.Model) == "" {
		issues = append(issues, "lm_client.model is required")
	}
	if cfg.LMClient.MaxToolTurns < 1 {
		issues = append(issues, "lm_client.max_tool_turns must be >= 1")
	}

	if cfg.Embedding.Dimension < 1 {
		issues = append(issues, "embedding.dimension must be >= 1")
	}
	if strings.TrimSpace(cfg.Server.MemoryDBPath) == "" {
		issues = append(issues, "server.memory_db_path is required")
	}

	if len(issues) == 0 {
		return nil
	}
	return &ConfigValidationError{Issues: issues}
}
