package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/username/llm-orchestrator/internal/config"
	"github.com/username/llm-orchestrator/internal/orchestrator"
	"github.com/username/llm-orchestrator/internal/performance"
	"github.com/username/llm-orchestrator/internal/prompt"
	"github.com/username/llm-orchestrator/internal/providers"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "llm-orchestrator",
		Short: "Fan a prompt out across LLM providers and settle on one answer",
		Long:  "Runs a prompt through multiple LLM providers in parallel, validates and scores each reply, and reconciles them into a single consensus answer.",
	}

	root.AddCommand(newOrchestrateCmd())
	root.AddCommand(newProvidersCmd())
	root.AddCommand(newTemplatesCmd())
	return root
}

// app bundles everything bootstrap wires together, so subcommands that need
// more than the Orchestrator facade (providers list, templates list) aren't
// forced to reach back into it for accessors it has no reason to expose.
type app struct {
	orchestrator *orchestrator.Orchestrator
	registry     *providers.Registry
	templates    *prompt.Library
	tracker      *performance.PerformanceTracker
	close        func()
}

// bootstrap loads configuration, wires the logger, connection pool,
// provider registry, and performance tracker, and returns an app holding the
// Orchestrator, registry, template library, tracker, and a close function.
// Mirrors the teacher's main()'s own load/initLogger/
// initProviders sequence, just without an http.Server at the end of it.
func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	initLogger(cfg)

	performance.InitGlobalPool(performance.DefaultPoolConfig())
	closeFn := performance.CloseGlobalPool

	registry := initProviders(cfg)
	tracker := performance.NewPerformanceTracker()
	templates := prompt.NewLibrary()

	execStrategy, err := cfg.ExecutionStrategy()
	if err != nil {
		closeFn()
		return nil, err
	}
	consensusStrategy, err := cfg.ConsensusStrategy()
	if err != nil {
		closeFn()
		return nil, err
	}
	retryPolicy, err := cfg.RetryPolicy()
	if err != nil {
		closeFn()
		return nil, err
	}

	defaults := orchestrator.Defaults{
		Execution:      execStrategy,
		Consensus:      consensusStrategy,
		ScoringWeights: cfg.Scoring.Weights,
		MaxAttempts:    cfg.Reliability.Retry.MaxAttempts,
		RetryPolicy:    retryPolicy,
	}

	return &app{
		orchestrator: orchestrator.New(registry, templates, tracker, defaults),
		registry:     registry,
		templates:    templates,
		tracker:      tracker,
		close:        closeFn,
	}, nil
}

func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Format == "pretty" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339Nano
	}

	log.Logger = log.With().
		Str("service", "llm-orchestrator").
		Str("version", cfg.Version).
		Logger()
}

func initProviders(cfg *config.Config) *providers.Registry {
	registry := providers.NewRegistry()
	for _, kind := range []string{"openai", "anthropic", "gemini", "ollama"} {
		mc, ok := cfg.ModelConfig(kind)
		if !ok {
			continue
		}
		p, err := providers.NewFromConfig(kind, mc)
		if err != nil {
			log.Warn().Err(err).Str("provider", kind).Msg("provider not wired")
			continue
		}
		if !p.IsConfigured() {
			continue
		}
		registry.Register(p)
		log.Info().Str("provider", kind).Msg("provider registered")
	}
	return registry
}
