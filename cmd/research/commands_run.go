package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/orchestrator"
	"github.com/haasonsaas/nexus/internal/sharedmemory"
	"github.com/haasonsaas/nexus/internal/toolexec"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRunCmd assembles a research session from the four config
// artifacts. Given a query argument it runs once and exits; given none,
// it reads queries one per line from stdin until EOF, reusing the same
// Shared Memory store and (if server.watch_config is set) picking up
// tools/agents catalog edits between queries.
func buildRunCmd() *cobra.Command {
	var (
		configPath  string
		toolsPath   string
		agentsPath  string
		secretsPath string
	)

	cmd := &cobra.Command{
		Use:   "run [query]",
		Short: "Run a research session and print the resulting document",
		Long: `run loads the runtime-tuning file, tool catalog, agent roster, and an
optional secrets file, then decomposes a query, dispatches worker
agents under supervision, debates their findings, and writes a cited
markdown document to stdout.

With a query argument, run executes one session and exits. With none,
it reads queries one per line from stdin, reusing the same Shared
Memory store across them. If server.watch_config is set in the
runtime-tuning file, edits to the tools/agents catalogs are picked up
between queries, never mid-session.`,
		Example: `  research run --config research.yaml --tools tools.json --agents agents.json "What caused the 2003 Northeast blackout?"`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			return runResearch(cmd.Context(), configPath, toolsPath, agentsPath, secretsPath, query)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "research.yaml", "path to the runtime-tuning file")
	cmd.Flags().StringVar(&toolsPath, "tools", "tools.json", "path to the tool catalog")
	cmd.Flags().StringVar(&agentsPath, "agents", "agents.json", "path to the agent roster")
	cmd.Flags().StringVar(&secretsPath, "secrets", "", "path to a secrets file (optional)")

	return cmd
}

// session holds everything that's rebuilt when the tools/agents
// catalogs are hot-reloaded. reload replaces its fields under mu at any
// time, including while a Research call runs; each call works on the
// pair snapshot returned when it started.
type session struct {
	mu       sync.Mutex
	agents   orchestrator.Agents
	executor *toolexec.Executor
}

func (s *session) snapshot() (orchestrator.Agents, *toolexec.Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agents, s.executor
}

func runResearch(ctx context.Context, configPath, toolsPath, agentsPath, secretsPath, query string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var secrets toolexec.MapSecrets
	if secretsPath != "" {
		secrets, err = config.LoadSecrets(secretsPath)
		if err != nil {
			return fmt.Errorf("load secrets: %w", err)
		}
	} else {
		secrets = toolexec.MapSecrets{}
	}

	embedder := sharedmemory.NewHTTPEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimension, cfg.Embedding.Timeout)

	memory, err := sharedmemory.New(ctx, cfg.Server.MemoryDBPath, embedder, logger)
	if err != nil {
		return fmt.Errorf("open shared memory: %w", err)
	}
	defer func() {
		if err := memory.Close(); err != nil {
			logger.Warn("failed to close shared memory", "error", err)
		}
	}()

	sess := &session{}
	if err := sess.reload(ctx, toolsPath, agentsPath, secrets, memory, logger); err != nil {
		return fmt.Errorf("load catalogs: %w", err)
	}
	defer func() {
		_, executor := sess.snapshot()
		if executor == nil {
			return
		}
		if err := executor.Close(); err != nil {
			logger.Warn("failed to stop tool executor", "error", err)
		}
	}()

	if cfg.Server.WatchConfig {
		stop, err := watchCatalogs(ctx, toolsPath, agentsPath, secrets, memory, logger, sess)
		if err != nil {
			logger.Warn("config hot-reload watcher unavailable", "error", err)
		} else {
			defer stop()
		}
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	metrics := orchestrator.NewMetrics()

	runOne := func(q string) error {
		agents, executor := sess.snapshot()

		progress := make(chan orchestrator.ProgressEvent, 16)
		done := make(chan struct{})
		go func() {
			defer close(done)
			logProgress(logger, progress)
		}()

		orch := orchestrator.New(
			cfg.Orchestrator.ToOrchestrator(), agents, memory, executor, cfg.LMClient.ToLMClient(), logger,
			orchestrator.WithMetrics(metrics),
			orchestrator.WithProgressChannel(progress),
		)

		doc, err := orch.Research(ctx, q)
		close(progress)
		<-done
		if err != nil {
			return fmt.Errorf("research session failed: %w", err)
		}
		fmt.Println(doc)
		return nil
	}

	if query != "" {
		return runOne(query)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := runOne(line); err != nil {
			logger.Error("query failed", "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

// reload loads the tools and agents catalogs and swaps the session's
// Tool Executor, closing the previous one (if any) once replaced.
func (s *session) reload(ctx context.Context, toolsPath, agentsPath string, secrets toolexec.MapSecrets, memory *sharedmemory.Store, logger *slog.Logger) error {
	toolsCfg, err := config.LoadTools(toolsPath)
	if err != nil {
		return fmt.Errorf("load tools: %w", err)
	}
	agents, err := config.LoadAgents(agentsPath)
	if err != nil {
		return fmt.Errorf("load agents: %w", err)
	}
	executor, err := toolexec.New(ctx, *toolsCfg, secrets, memory, logger)
	if err != nil {
		return fmt.Errorf("start tool executor: %w", err)
	}

	s.mu.Lock()
	prev := s.executor
	s.agents = agents
	s.executor = executor
	s.mu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			logger.Warn("failed to stop previous tool executor", "error", err)
		}
	}
	return nil
}

// watchCatalogs watches the tools/agents files for writes and reloads
// the session between queries. Reloads never interrupt a session
// already in flight: session.reload only swaps the pointer a future
// query will read via session.snapshot.
func watchCatalogs(ctx context.Context, toolsPath, agentsPath string, secrets toolexec.MapSecrets, memory *sharedmemory.Store, logger *slog.Logger, sess *session) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(toolsPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", toolsPath, err)
	}
	if err := watcher.Add(agentsPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", agentsPath, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				logger.Info("reloading tool/agent catalogs", "file", ev.Name)
				if err := sess.reload(ctx, toolsPath, agentsPath, secrets, memory, logger); err != nil {
					logger.Error("catalog reload failed, keeping previous catalogs", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("catalog watcher error", "error", err)
			}
		}
	}()

	return func() { watcher.Close() }, nil
}

// logProgress drains the progress channel until it's closed, logging a
// terse line per pipeline stage.
func logProgress(logger *slog.Logger, ch <-chan orchestrator.ProgressEvent) {
	for ev := range ch {
		fields := []any{"stage", string(ev.Kind)}
		if ev.Count > 0 {
			fields = append(fields, "count", ev.Count)
		}
		if ev.WorkerName != "" {
			fields = append(fields, "worker", ev.WorkerName)
		}
		if ev.MaxIterations > 0 {
			fields = append(fields, "iteration", fmt.Sprintf("%d/%d", ev.Iteration, ev.MaxIterations))
		}
		logger.Info("progress", fields...)
	}
}
