// reagent-server runs the research agent engine behind an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reagent/internal/agent"
	"reagent/internal/config"
	reerrors "reagent/internal/errors"
	"reagent/internal/llm"
	"reagent/internal/logging"
	"reagent/internal/memory"
	"reagent/internal/metrics"
	"reagent/internal/orchestrator"
	"reagent/internal/prompts"
	serverhttp "reagent/internal/server/http"
	"reagent/internal/toolhub"
	"reagent/internal/tools"
	"reagent/internal/workflow"
)

const version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "reagent-server",
		Short:         "Research agent engine",
		Long:          "reagent-server plans, executes and verifies multi-step research requests over a registry of tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to reagent.yaml (default: search working directory)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("reagent-server %s\n", version)
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.Logging.Level))
	logger := logging.NewComponentLogger("server")

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Warn("metrics disabled: %v", err)
		collector = metrics.Nop()
	}

	client, err := llm.NewFromConfig(cfg.Model, reerrors.DefaultRetryConfig(), logger, collector)
	if err != nil {
		return fmt.Errorf("build model client: %w", err)
	}
	logger.Info("model provider %q (%s)", cfg.Model.Provider, client.Model())

	conv := memory.NewConversation(cfg.Memory.ShortTermSize)
	hub := toolhub.New(toolhub.Config{
		Timeout:    cfg.Tools.Timeout,
		MaxRetries: cfg.Tools.MaxRetries,
	}, logger, collector)
	if err := registerBuiltins(hub, conv); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	logger.Info("registered %d tools", len(hub.Inventory()))

	loader, err := prompts.NewLoader()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	if cfg.Model.Provider != "mock" {
		hub.SetSynthesizer(client, loader)
	}

	engine := workflow.NewEngine(workflow.Config{
		Planner:  agent.NewPlanner(client, loader, logger),
		Executor: agent.NewExecutor(hub, client, loader, logger),
		Verifier: agent.NewVerifier(logger),
		Hub:      hub,
		Client:   client,
		Prompts:  loader,
		// The deterministic mock model cannot write answers, so final
		// synthesis falls back to the best step result under it.
		SynthesizeWithLLM: cfg.Model.Provider != "mock",
		Logger:            logger,
	})

	orch := orchestrator.New(orchestrator.Deps{
		Conversation: conv,
		Hub:          hub,
		Engine:       engine,
		Router:       agent.NewRouter(client, loader, logger),
		Config:       cfg,
		Collector:    collector,
		Logger:       logger,
	})

	srv := serverhttp.New(cfg, orch, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
	if err := collector.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown: %v", err)
	}
	return nil
}

func registerBuiltins(hub *toolhub.Hub, conv *memory.Conversation) error {
	workdir, err := os.Getwd()
	if err != nil {
		workdir = "."
	}
	regs := []toolhub.Registration{
		{Tool: tools.NewCalculator(), Capabilities: []string{"calculate"}},
		{Tool: tools.NewClock(), Capabilities: []string{"time"}},
		{Tool: tools.NewWebSearch(), Capabilities: []string{"search", "web"}},
		{Tool: tools.NewHistory(conv), Capabilities: []string{"history"}},
		{Tool: tools.NewWorkspaceFiles(workdir), Capabilities: []string{"filesystem"}},
	}
	for _, reg := range regs {
		if err := hub.Register(reg); err != nil {
			return err
		}
	}
	return nil
}
