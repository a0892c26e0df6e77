package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/providers"
	"github.com/username/llm-orchestrator/internal/validation"
)

type stubProvider struct {
	name    string
	reply   domain.Reply
	err     error
	delay   time.Duration
	invoked int
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) ModelID() string     { return "stub-model" }
func (s *stubProvider) DisplayName() string { return s.name + "/stub-model" }
func (s *stubProvider) IsConfigured() bool  { return true }
func (s *stubProvider) CircuitState() domain.CircuitState { return domain.StateClosed }
func (s *stubProvider) Generate(ctx context.Context, prompt, systemPrompt string) (domain.Reply, error) {
	s.invoked++
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return domain.Reply{}, s.err
	}
	return s.reply, nil
}

func success(name string) *stubProvider {
	return &stubProvider{name: name, reply: domain.Reply{ProviderName: name, Success: true, Content: "ok from " + name}}
}

func failure(name, reason string) *stubProvider {
	return &stubProvider{name: name, reply: domain.Reply{ProviderName: name, Success: false, Error: reason}}
}

func asProviders(stubs ...*stubProvider) []providers.Provider {
	out := make([]providers.Provider, len(stubs))
	for i, s := range stubs {
		out[i] = s
	}
	return out
}

func TestParallel_RejectsEmptyProviderList(t *testing.T) {
	if _, err := (Parallel{}).Execute(context.Background(), nil, "p", ""); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestParallel_RunsAllConcurrentlyAndRecordsEach(t *testing.T) {
	a, b, c := success("a"), failure("b", "boom"), success("c")
	result, err := (Parallel{}).Execute(context.Background(), asProviders(a, b, c), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Replies) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(result.Replies))
	}
	if len(result.Successful()) != 2 || len(result.Failed()) != 1 {
		t.Fatalf("unexpected split: %d successful, %d failed", len(result.Successful()), len(result.Failed()))
	}
}

func TestParallel_OneFailureDoesNotCancelOthers(t *testing.T) {
	slow := success("slow")
	slow.delay = 20 * time.Millisecond
	fast := failure("fast", "immediate failure")

	result, err := (Parallel{}).Execute(context.Background(), asProviders(slow, fast), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Replies["slow"].Success {
		t.Fatalf("expected slow provider to still complete successfully")
	}
}

func TestSequential_StopsAtFirstSuccess(t *testing.T) {
	a, b, c := failure("a", "no"), success("b"), success("c")
	result, err := (Sequential{}).Execute(context.Background(), asProviders(a, b, c), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Replies) != 2 {
		t.Fatalf("expected 2 attempted providers, got %d", len(result.Replies))
	}
	if c.invoked != 0 {
		t.Fatalf("provider after success should not be invoked")
	}
}

func TestSequential_AllFailReturnsEveryAttempt(t *testing.T) {
	a, b := failure("a", "no"), failure("b", "no")
	result, err := (Sequential{}).Execute(context.Background(), asProviders(a, b), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Replies) != 2 || len(result.Successful()) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestFallback_TimeoutTriggerAdvances(t *testing.T) {
	a := failure("a", "request timed out")
	b := success("b")
	f := Fallback{Triggers: TriggerTimeout}

	result, err := f.Execute(context.Background(), asProviders(a, b), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Replies["b"].Success || b.invoked != 1 {
		t.Fatalf("expected fallback to advance to b on timeout, got %+v", result)
	}
}

func TestFallback_NonTriggeringFailureHaltsChain(t *testing.T) {
	a := failure("a", "invalid api key")
	b := success("b")
	f := Fallback{Triggers: TriggerTimeout}

	_, err := f.Execute(context.Background(), asProviders(a, b), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.invoked != 0 {
		t.Fatalf("expected chain to halt before reaching b")
	}
}

func TestFallback_ValidationFailureAdvancesPastSuccess(t *testing.T) {
	a := success("a")
	b := success("b")
	rejectAll := validation.Custom{CustomName: "reject", Fn: func(string) bool { return false }, Msg: "rejected"}
	f := Fallback{Triggers: TriggerValidationFailure, Validators: []validation.Validator{rejectAll}}

	result, err := f.Execute(context.Background(), asProviders(a, b), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.invoked != 1 || b.invoked != 1 {
		t.Fatalf("expected both providers invoked, a=%d b=%d", a.invoked, b.invoked)
	}
	if len(result.Replies) != 2 {
		t.Fatalf("expected 2 recorded replies, got %d", len(result.Replies))
	}
}

func TestFallback_AllTriggerAdvancesOnException(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("network error")}
	b := success("b")
	f := Fallback{Triggers: TriggerAll}

	result, err := f.Execute(context.Background(), asProviders(a, b), "p", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Replies["b"].Success {
		t.Fatalf("expected chain to advance to b after exception")
	}
}
