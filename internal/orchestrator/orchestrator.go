// Package orchestrator exposes the two call shapes a caller actually uses
// (orchestrate and orchestrateFromTemplate) over the lower-level pipeline,
// provider registry, template library, and performance tracker, the same
// way the teacher's proxy.Router sits in front of its provider registry
// and reliability wrapping.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/username/llm-orchestrator/internal/consensus"
	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/execution"
	"github.com/username/llm-orchestrator/internal/performance"
	"github.com/username/llm-orchestrator/internal/pipeline"
	"github.com/username/llm-orchestrator/internal/prompt"
	"github.com/username/llm-orchestrator/internal/providers"
	"github.com/username/llm-orchestrator/internal/reliability"
	"github.com/username/llm-orchestrator/internal/scoring"
	"github.com/username/llm-orchestrator/internal/validation"
)

// Known scorer names an Overrides.ScoringWeights map may reference.
const (
	ScorerResponseTime    = "ResponseTime"
	ScorerConsensus       = "Consensus"
	ScorerTokenEfficiency = "TokenEfficiency"
)

// ErrUnknownScorer is returned when a ScoringWeights key names a scorer the
// orchestrator doesn't recognise.
var ErrUnknownScorer = errors.New("orchestrator: unknown scorer name")

// Overrides carries the per-call knobs orchestrate/orchestrateFromTemplate
// accept in place of the orchestrator's configured defaults.
type Overrides struct {
	ProviderNames  []string
	Execution      execution.Strategy
	Consensus      consensus.Strategy
	Validators     []validation.Validator
	SystemPrompt   string
	ScoringWeights map[string]float64
	MaxAttempts    int
}

// Defaults bundles the orchestrator-wide fallbacks used when an Overrides
// field is left zero.
type Defaults struct {
	Execution      execution.Strategy
	Consensus      consensus.Strategy
	Validators     []validation.Validator
	ScoringWeights map[string]float64
	MaxAttempts    int
	RetryPolicy    reliability.RetryPolicy
}

// Orchestrator is the facade: it resolves providers, builds a pipeline run
// from configured defaults plus per-call overrides, retries the whole pass
// on failure, and records outcomes on the performance tracker.
type Orchestrator struct {
	registry  *providers.Registry
	templates *prompt.Library
	tracker   *performance.PerformanceTracker
	defaults  Defaults
}

// New builds an Orchestrator. tracker may be nil if the caller doesn't
// need performance analytics.
func New(registry *providers.Registry, templates *prompt.Library, tracker *performance.PerformanceTracker, defaults Defaults) *Orchestrator {
	if defaults.MaxAttempts < 1 {
		defaults.MaxAttempts = 1
	}
	return &Orchestrator{registry: registry, templates: templates, tracker: tracker, defaults: defaults}
}

// Orchestrate runs a single prompt through the pipeline, retrying the whole
// pass per the retry policy until success or attempt budget exhaustion.
func (o *Orchestrator) Orchestrate(ctx context.Context, promptText string, overrides Overrides) (domain.ConsensusOutcome, error) {
	provs, err := o.resolveProviders(overrides.ProviderNames)
	if err != nil {
		return domain.ConsensusOutcome{}, err
	}

	scorer, err := o.buildScorer(overrides.ScoringWeights)
	if err != nil {
		return domain.ConsensusOutcome{}, err
	}

	execStrategy := firstNonNilExecution(overrides.Execution, o.defaults.Execution)
	consensusStrategy := firstNonNilConsensus(overrides.Consensus, o.defaults.Consensus)
	validators := overrides.Validators
	if validators == nil {
		validators = o.defaults.Validators
	}
	maxAttempts := overrides.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = o.defaults.MaxAttempts
	}

	var outcome domain.ConsensusOutcome
	var lastPctx pipeline.PipelineContext

	runOnce := func() error {
		pctx, runErr := pipeline.New(promptText).
			WithSystemPrompt(overrides.SystemPrompt).
			WithProviders(provs...).
			WithExecutionStrategy(execStrategy).
			WithValidators(validators...).
			WithScorer(scorer).
			WithConsensus(consensusStrategy).
			Run(ctx)

		lastPctx = pctx
		outcome = pctx.Outcome
		return runErr
	}

	policy := o.retryPolicy(maxAttempts)
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		lastErr = runOnce()
		if lastErr == nil {
			break
		}
		if attempt == maxAttempts {
			break
		}
		delay, retry := policy.NextDelay(attempt, lastErr, nil)
		if !retry {
			break
		}

		log.Warn().Str("operation", "orchestrate").Int("attempt", attempt).Dur("delay", delay).Err(lastErr).Msg("orchestration pass failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcome, ctx.Err()
		case <-timer.C:
		}
	}

	o.recordOutcome(lastPctx, provs)

	if lastErr != nil && !outcome.ConsensusReached {
		return outcome, fmt.Errorf("orchestrator: %w", lastErr)
	}
	return outcome, nil
}

// OrchestrateFromTemplate renders name from the template library with vars,
// then orchestrates the rendered prompt. The rendered system prompt becomes
// Overrides.SystemPrompt unless the caller already set one.
func (o *Orchestrator) OrchestrateFromTemplate(ctx context.Context, name string, vars map[string]string, overrides Overrides) (domain.ConsensusOutcome, error) {
	if o.templates == nil {
		return domain.ConsensusOutcome{}, fmt.Errorf("orchestrator: no template library configured")
	}
	userPrompt, systemPrompt, err := o.templates.Render(name, vars)
	if err != nil {
		return domain.ConsensusOutcome{}, fmt.Errorf("orchestrator: %w", err)
	}
	if overrides.SystemPrompt == "" {
		overrides.SystemPrompt = systemPrompt
	}
	return o.Orchestrate(ctx, userPrompt, overrides)
}

func (o *Orchestrator) resolveProviders(names []string) ([]providers.Provider, error) {
	var provs []providers.Provider
	if len(names) > 0 {
		provs = o.registry.ByNames(names...)
	} else {
		provs = o.registry.Configured()
	}
	if len(provs) == 0 {
		return nil, errors.New("orchestrator: no configured providers available")
	}
	return provs, nil
}

func (o *Orchestrator) buildScorer(weights map[string]float64) (scoring.Scorer, error) {
	if len(weights) == 0 {
		weights = o.defaults.ScoringWeights
	}
	if len(weights) == 0 {
		return nil, nil
	}

	w := scoring.NewWeighted()
	for name, weight := range weights {
		s, err := namedScorer(name)
		if err != nil {
			return nil, err
		}
		w.Add(s, weight)
	}
	return w, nil
}

func namedScorer(name string) (scoring.Scorer, error) {
	switch name {
	case ScorerResponseTime:
		return scoring.ResponseTime{}, nil
	case ScorerConsensus:
		return scoring.Consensus{}, nil
	case ScorerTokenEfficiency:
		return scoring.TokenEfficiency{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScorer, name)
	}
}

func firstNonNilExecution(a, b execution.Strategy) execution.Strategy {
	if a != nil {
		return a
	}
	return b
}

func firstNonNilConsensus(a, b consensus.Strategy) consensus.Strategy {
	if a != nil {
		return a
	}
	return b
}

func (o *Orchestrator) retryPolicy(maxAttempts int) reliability.RetryPolicy {
	if o.defaults.RetryPolicy != nil {
		return o.defaults.RetryPolicy
	}
	return reliability.FixedDelay{Delay: 0, MaxAttempts: maxAttempts}
}

// recordOutcome updates the performance tracker with every reply from the
// most recent pipeline pass: successes (with a won flag for the consensus
// winner), failures, and each participating provider's current circuit
// breaker state.
func (o *Orchestrator) recordOutcome(pctx pipeline.PipelineContext, provs []providers.Provider) {
	if o.tracker == nil {
		return
	}

	for _, failed := range pctx.ExecutionResult.Failed() {
		o.tracker.RecordFailure(failed.ProviderName)
	}

	for _, scored := range pctx.Scored {
		won := pctx.Outcome.ConsensusReached && scored.ProviderName == pctx.Outcome.BestProvider
		o.tracker.RecordSuccess(scored.ProviderName, scored.ResponseTime.Milliseconds(), scored.Score, int64(scored.TotalTokens), won)
	}

	for _, p := range provs {
		o.tracker.SetBreakerState(p.Name(), breakerStateFor(p.CircuitState()))
	}

	log.Debug().
		Int("providers_failed", len(pctx.ExecutionResult.Failed())).
		Int("providers_scored", len(pctx.Scored)).
		Bool("consensus_reached", pctx.Outcome.ConsensusReached).
		Msg("orchestration pass recorded")
}

func breakerStateFor(s domain.CircuitState) performance.BreakerState {
	switch s {
	case domain.StateOpen:
		return performance.BreakerOpen
	case domain.StateHalfOpen:
		return performance.BreakerHalfOpen
	default:
		return performance.BreakerClosed
	}
}
