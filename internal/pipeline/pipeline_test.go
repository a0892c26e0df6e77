package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/username/llm-orchestrator/internal/consensus"
	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/execution"
	"github.com/username/llm-orchestrator/internal/providers"
	"github.com/username/llm-orchestrator/internal/scoring"
	"github.com/username/llm-orchestrator/internal/validation"
)

type stubProvider struct {
	name  string
	reply domain.Reply
	err   error
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) ModelID() string     { return "stub-model" }
func (s *stubProvider) DisplayName() string { return s.name + "/stub-model" }
func (s *stubProvider) IsConfigured() bool  { return true }
func (s *stubProvider) CircuitState() domain.CircuitState { return domain.StateClosed }
func (s *stubProvider) Generate(ctx context.Context, prompt, systemPrompt string) (domain.Reply, error) {
	if s.err != nil {
		return domain.Reply{}, s.err
	}
	return s.reply, nil
}

func asProviders(stubs ...*stubProvider) []providers.Provider {
	out := make([]providers.Provider, len(stubs))
	for i, s := range stubs {
		out[i] = s
	}
	return out
}

func TestPipeline_HappyPathReachesConsensus(t *testing.T) {
	a := &stubProvider{name: "a", reply: domain.Reply{ProviderName: "a", Success: true, Content: "paris is the capital of france"}}
	b := &stubProvider{name: "b", reply: domain.Reply{ProviderName: "b", Success: true, Content: "paris is the capital of france"}}

	pctx, err := New("what is the capital of france?").
		WithProviders(asProviders(a, b)...).
		WithExecutionStrategy(execution.Parallel{}).
		WithScorer(scoring.ResponseTime{}).
		WithConsensus(consensus.MajorityVote{Threshold: 0.5}).
		Run(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pctx.Outcome.ConsensusReached {
		t.Fatalf("expected consensus reached, got %+v", pctx.Outcome)
	}
	if len(pctx.Scored) != 2 {
		t.Fatalf("expected 2 scored replies, got %d", len(pctx.Scored))
	}
	wantSteps := []string{StepPromptEnrichment, StepExecution, StepValidation, StepScoring, StepConsensus}
	if len(pctx.Events) != len(wantSteps) {
		t.Fatalf("expected %d events, got %d", len(wantSteps), len(pctx.Events))
	}
	for i, step := range wantSteps {
		if pctx.Events[i].Step != step {
			t.Fatalf("event %d = %q, want %q", i, pctx.Events[i].Step, step)
		}
	}
}

func TestPipeline_AllProvidersFailShortCircuits(t *testing.T) {
	a := &stubProvider{name: "a", reply: domain.Reply{ProviderName: "a", Success: false, Error: "boom"}}

	pctx, err := New("prompt").
		WithProviders(asProviders(a)...).
		WithExecutionStrategy(execution.Parallel{}).
		Run(context.Background())

	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	if pctx.Validations != nil || pctx.Scored != nil {
		t.Fatalf("expected validation/scoring to be skipped after short-circuit, got %+v / %+v", pctx.Validations, pctx.Scored)
	}
	var events []string
	for _, e := range pctx.Events {
		events = append(events, e.Step)
	}
	if len(events) != 2 || events[0] != StepPromptEnrichment || events[1] != StepExecution {
		t.Fatalf("expected pipeline to stop after Execution, got %v", events)
	}
}

func TestPipeline_ValidationRunsPerSuccessfulReply(t *testing.T) {
	a := &stubProvider{name: "a", reply: domain.Reply{ProviderName: "a", Success: true, Content: "hello world"}}

	pctx, err := New("prompt").
		WithProviders(asProviders(a)...).
		WithExecutionStrategy(execution.Parallel{}).
		WithValidators(validation.Length{Min: 1, Max: 100}).
		Run(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outcomes, ok := pctx.Validations["a"]
	if !ok || len(outcomes) != 1 || !outcomes[0].Valid {
		t.Fatalf("unexpected validation outcomes: %+v", pctx.Validations)
	}
}

func TestPipeline_NoScorerDefaultsToOne(t *testing.T) {
	a := &stubProvider{name: "a", reply: domain.Reply{ProviderName: "a", Success: true, Content: "x"}}

	pctx, err := New("prompt").
		WithProviders(asProviders(a)...).
		WithExecutionStrategy(execution.Parallel{}).
		Run(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pctx.Scored) != 1 || pctx.Scored[0].Score != 1.0 {
		t.Fatalf("expected default score of 1.0, got %+v", pctx.Scored)
	}
}

func TestPipeline_PromptEnrichmentWrapsSystemPromptWithBlankLine(t *testing.T) {
	a := &stubProvider{name: "a", reply: domain.Reply{ProviderName: "a", Success: true, Content: "x"}}

	pctx, err := New("prompt").
		WithSystemPrompt("base instructions").
		WithPromptEnrichment("prefix", "suffix").
		WithProviders(asProviders(a)...).
		WithExecutionStrategy(execution.Parallel{}).
		Run(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "prefix\n\nbase instructions\n\nsuffix"
	if pctx.SystemPrompt != want {
		t.Fatalf("system prompt = %q, want %q", pctx.SystemPrompt, want)
	}
}

func TestPipeline_WeightedScorerPopulatesBreakdown(t *testing.T) {
	a := &stubProvider{name: "a", reply: domain.Reply{ProviderName: "a", Success: true, Content: "x"}}

	w := scoring.NewWeighted().Add(scoring.ResponseTime{}, 1)
	pctx, err := New("prompt").
		WithProviders(asProviders(a)...).
		WithExecutionStrategy(execution.Parallel{}).
		WithScorer(w).
		Run(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pctx.Scored[0].Breakdown == nil {
		t.Fatalf("expected a breakdown from the weighted scorer")
	}
}
