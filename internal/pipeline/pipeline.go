// Package pipeline composes the five fixed-order orchestration steps
// (prompt enrichment, execution, validation, scoring, consensus) into a
// single pass over a PipelineContext, the way internal/config layers
// defaults then overrides then validation into one Load call.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/username/llm-orchestrator/internal/consensus"
	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/execution"
	"github.com/username/llm-orchestrator/internal/providers"
	"github.com/username/llm-orchestrator/internal/scoring"
	"github.com/username/llm-orchestrator/internal/validation"
)

// Step names, used both as PipelineEvent.Step values and as span names.
const (
	StepPromptEnrichment = "PromptEnrichment"
	StepExecution        = "Execution"
	StepValidation       = "Validation"
	StepScoring          = "Scoring"
	StepConsensus        = "Consensus"
)

// ErrAllProvidersFailed is recorded on PipelineContext when the execution
// step produces zero successful replies.
var ErrAllProvidersFailed = errors.New("pipeline: all providers failed")

// PipelineEvent records one step's outcome, including its trace span.
type PipelineEvent struct {
	Step     string
	Span     *Span
	Err      error
	Duration time.Duration
}

// PipelineContext is materialised fresh for exactly one pipeline pass; it
// is never shared across passes or goroutines.
type PipelineContext struct {
	Prompt             string
	BaseSystemPrompt   string
	SystemPrompt       string
	SystemPromptPrefix string
	SystemPromptSuffix string

	Providers         []providers.Provider
	ExecutionStrategy execution.Strategy
	Validators        []validation.Validator
	Scorer            scoring.Scorer
	Consensus         consensus.Strategy

	ExecutionResult execution.ExecutionResult
	Validations     map[string][]domain.ValidationOutcome
	Scored          []domain.ScoredReply
	Outcome         domain.ConsensusOutcome

	Events []PipelineEvent
	Err    error
}

// Pipeline is a fluent builder over PipelineContext. Each With* call
// mutates and returns the same Pipeline, mirroring config's
// defaults-then-overrides layering but expressed as a chain instead of a
// single struct literal.
type Pipeline struct {
	ctx    PipelineContext
	tracer *Tracer
}

// New starts a pipeline for prompt.
func New(prompt string) *Pipeline {
	return &Pipeline{ctx: PipelineContext{Prompt: prompt}, tracer: NewTracer()}
}

// WithSystemPrompt sets the base system prompt that PromptEnrichment wraps
// with prefix/suffix.
func (p *Pipeline) WithSystemPrompt(base string) *Pipeline {
	p.ctx.BaseSystemPrompt = base
	return p
}

// WithPromptEnrichment sets the fixed prefix/suffix PromptEnrichment joins
// around the base system prompt with a blank line.
func (p *Pipeline) WithPromptEnrichment(prefix, suffix string) *Pipeline {
	p.ctx.SystemPromptPrefix = prefix
	p.ctx.SystemPromptSuffix = suffix
	return p
}

func (p *Pipeline) WithProviders(provs ...providers.Provider) *Pipeline {
	p.ctx.Providers = provs
	return p
}

func (p *Pipeline) WithExecutionStrategy(s execution.Strategy) *Pipeline {
	p.ctx.ExecutionStrategy = s
	return p
}

func (p *Pipeline) WithValidators(v ...validation.Validator) *Pipeline {
	p.ctx.Validators = v
	return p
}

func (p *Pipeline) WithScorer(s scoring.Scorer) *Pipeline {
	p.ctx.Scorer = s
	return p
}

func (p *Pipeline) WithConsensus(c consensus.Strategy) *Pipeline {
	p.ctx.Consensus = c
	return p
}

// Run executes the five steps in order, stopping early if execution
// produces no successful replies.
func (p *Pipeline) Run(ctx context.Context) (PipelineContext, error) {
	p.runStep(StepPromptEnrichment, func() error {
		p.enrichPrompt()
		return nil
	})

	if err := p.runStep(StepExecution, func() error {
		return p.execute(ctx)
	}); err != nil {
		return p.ctx, err
	}

	p.runStep(StepValidation, func() error {
		p.validate(ctx)
		return nil
	})

	p.runStep(StepScoring, func() error {
		p.score(ctx)
		return nil
	})

	p.runStep(StepConsensus, func() error {
		p.decideConsensus()
		return nil
	})

	return p.ctx, p.ctx.Err
}

func (p *Pipeline) runStep(name string, fn func() error) error {
	span := p.tracer.StartSpan(name)
	err := fn()
	span.End()

	p.ctx.Events = append(p.ctx.Events, PipelineEvent{
		Step:     name,
		Span:     span,
		Err:      err,
		Duration: span.Duration(),
	})
	if err != nil {
		p.ctx.Err = err
	}
	return err
}

func (p *Pipeline) enrichPrompt() {
	parts := make([]string, 0, 3)
	if p.ctx.SystemPromptPrefix != "" {
		parts = append(parts, p.ctx.SystemPromptPrefix)
	}
	if p.ctx.BaseSystemPrompt != "" {
		parts = append(parts, p.ctx.BaseSystemPrompt)
	}
	if p.ctx.SystemPromptSuffix != "" {
		parts = append(parts, p.ctx.SystemPromptSuffix)
	}
	p.ctx.SystemPrompt = strings.Join(parts, "\n\n")
}

func (p *Pipeline) execute(ctx context.Context) error {
	if p.ctx.ExecutionStrategy == nil {
		return errors.New("pipeline: no execution strategy configured")
	}
	result, err := p.ctx.ExecutionStrategy.Execute(ctx, p.ctx.Providers, p.ctx.Prompt, p.ctx.SystemPrompt)
	p.ctx.ExecutionResult = result
	if err != nil {
		return err
	}
	if len(result.Successful()) == 0 {
		return ErrAllProvidersFailed
	}
	return nil
}

func (p *Pipeline) validate(ctx context.Context) {
	outcomes := make(map[string][]domain.ValidationOutcome, len(p.ctx.ExecutionResult.Order))
	for _, name := range p.ctx.ExecutionResult.Order {
		reply := p.ctx.ExecutionResult.Replies[name]
		if !reply.Success {
			continue
		}
		var perReply []domain.ValidationOutcome
		for _, v := range p.ctx.Validators {
			perReply = append(perReply, v.Validate(ctx, reply.Content))
		}
		outcomes[name] = perReply
	}
	p.ctx.Validations = outcomes
}

func (p *Pipeline) score(ctx context.Context) {
	successful := make([]domain.Reply, 0, len(p.ctx.ExecutionResult.Order))
	for _, name := range p.ctx.ExecutionResult.Order {
		if reply := p.ctx.ExecutionResult.Replies[name]; reply.Success {
			successful = append(successful, reply)
		}
	}

	scored := make([]domain.ScoredReply, 0, len(successful))
	for _, reply := range successful {
		sr := domain.ScoredReply{
			ProviderName: reply.ProviderName,
			Content:      reply.Content,
			ResponseTime: reply.Duration,
			TotalTokens:  reply.TotalTokens,
		}
		switch {
		case p.ctx.Scorer == nil:
			sr.Score = 1.0
		default:
			if weighted, ok := p.ctx.Scorer.(*scoring.Weighted); ok {
				sr.Score, sr.Breakdown = weighted.ScoreDetailed(ctx, reply, successful)
			} else {
				sr.Score = p.ctx.Scorer.Score(ctx, reply, successful)
			}
		}
		scored = append(scored, sr)
	}
	p.ctx.Scored = scored
}

func (p *Pipeline) decideConsensus() {
	if p.ctx.Consensus == nil {
		p.ctx.Outcome = domain.ConsensusOutcome{AllScored: p.ctx.Scored}
		return
	}
	p.ctx.Outcome = p.ctx.Consensus.Decide(p.ctx.Scored)
}
