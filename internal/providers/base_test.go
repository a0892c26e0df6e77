package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/reliability"
)

func testBreaker() *reliability.CircuitBreaker {
	return reliability.NewCircuitBreaker("test", domain.CircuitBreakerConfig{
		Enabled:                  true,
		FailureThreshold:         2,
		OpenDuration:             50 * time.Millisecond,
		HalfOpenSuccessThreshold: 1,
	})
}

func TestRunGenerate_RejectsEmptyPrompt(t *testing.T) {
	_, err := runGenerate(context.Background(), testBreaker(), "p", "m", time.Second, "", func(ctx context.Context) (generationOutcome, error) {
		t.Fatal("send should not be called for an empty prompt")
		return generationOutcome{}, nil
	})
	if err == nil {
		t.Fatal("expected an error for empty prompt")
	}
}

func TestRunGenerate_SuccessRecordsBreakerSuccess(t *testing.T) {
	cb := testBreaker()
	reply, err := runGenerate(context.Background(), cb, "p", "m", time.Second, "hi", func(ctx context.Context) (generationOutcome, error) {
		return generationOutcome{Content: "hello", PromptTokens: 3, CompletionTokens: 5, HTTPStatus: http.StatusOK}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.Success || reply.Content != "hello" || reply.TotalTokens != 8 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if cb.State() != domain.StateClosed {
		t.Fatalf("expected breaker to stay closed, got %s", cb.State())
	}
}

func TestRunGenerate_FailureRecordsBreakerFailure(t *testing.T) {
	cb := testBreaker()
	for i := 0; i < 2; i++ {
		_, _ = runGenerate(context.Background(), cb, "p", "m", time.Second, "hi", func(ctx context.Context) (generationOutcome, error) {
			return generationOutcome{HTTPStatus: http.StatusInternalServerError}, errors.New("boom")
		})
	}
	if cb.State() != domain.StateOpen {
		t.Fatalf("expected breaker to open after repeated failures, got %s", cb.State())
	}
}

func TestRunGenerate_CancellationDoesNotChargeBreaker(t *testing.T) {
	cb := testBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 5; i++ {
		_, _ = runGenerate(ctx, cb, "p", "m", time.Second, "hi", func(ctx context.Context) (generationOutcome, error) {
			return generationOutcome{}, context.Canceled
		})
	}
	if cb.State() != domain.StateClosed {
		t.Fatalf("cancellation must not open the breaker, got %s", cb.State())
	}
}

func TestRunGenerate_OpenBreakerShortCircuits(t *testing.T) {
	cb := testBreaker()
	for i := 0; i < 2; i++ {
		_, _ = runGenerate(context.Background(), cb, "p", "m", time.Second, "hi", func(ctx context.Context) (generationOutcome, error) {
			return generationOutcome{}, errors.New("boom")
		})
	}

	called := false
	reply, err := runGenerate(context.Background(), cb, "p", "m", time.Second, "hi", func(ctx context.Context) (generationOutcome, error) {
		called = true
		return generationOutcome{}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("send should not be invoked while the breaker is open")
	}
	if reply.Success {
		t.Fatalf("expected a failed reply while the breaker is open, got %+v", reply)
	}
}

func TestRunGenerate_MarksRateLimited(t *testing.T) {
	reply, err := runGenerate(context.Background(), testBreaker(), "p", "m", time.Second, "hi", func(ctx context.Context) (generationOutcome, error) {
		return generationOutcome{HTTPStatus: http.StatusTooManyRequests}, errors.New("rate limited")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reply.RateLimited {
		t.Fatalf("expected RateLimited to be set, got %+v", reply)
	}
}

func TestParseRateLimitHeaders_AllPresent(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	h.Set("X-RateLimit-Remaining", "10")
	h.Set("X-RateLimit-Limit", "100")
	h.Set("X-RateLimit-Reset", "1700000000")

	info := parseRateLimitHeaders(h)
	if info == nil {
		t.Fatal("expected non-nil RateLimitInfo")
	}
	if !info.HasRetryAfter || info.RetryAfter != 30*time.Second {
		t.Fatalf("unexpected RetryAfter: %+v", info)
	}
	if !info.HasRemaining || info.RemainingRequests != 10 {
		t.Fatalf("unexpected RemainingRequests: %+v", info)
	}
	if !info.HasLimit || info.Limit != 100 {
		t.Fatalf("unexpected Limit: %+v", info)
	}
	if !info.HasResetAt {
		t.Fatalf("unexpected ResetAt: %+v", info)
	}
}

func TestParseRateLimitHeaders_NoneReturnsNil(t *testing.T) {
	if info := parseRateLimitHeaders(http.Header{}); info != nil {
		t.Fatalf("expected nil, got %+v", info)
	}
}

func TestParseRateLimitHeaders_HTTPDateRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", time.Now().Add(10*time.Second).UTC().Format(http.TimeFormat))

	info := parseRateLimitHeaders(h)
	if info == nil || !info.HasRetryAfter {
		t.Fatalf("expected a parsed RetryAfter, got %+v", info)
	}
	if info.RetryAfter <= 0 || info.RetryAfter > 11*time.Second {
		t.Fatalf("unexpected RetryAfter duration: %v", info.RetryAfter)
	}
}

func TestNewFromConfig_UnknownKind(t *testing.T) {
	_, err := NewFromConfig("not-a-kind", domain.ModelConfig{Model: "x"})
	var unknown *UnknownKindError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownKindError, got %v", err)
	}
}

func TestNewFromConfig_KnownKinds(t *testing.T) {
	for _, kind := range []string{"openai", "anthropic", "gemini", "ollama"} {
		p, err := NewFromConfig(kind, domain.ModelConfig{Model: "x", APIKey: "key"})
		if err != nil {
			t.Fatalf("kind %s: unexpected error: %v", kind, err)
		}
		if p.Name() != kind {
			t.Fatalf("kind %s: got provider named %s", kind, p.Name())
		}
	}
}

func TestOllamaProvider_IsConfiguredNeedsNoAPIKey(t *testing.T) {
	p, err := NewOllamaProvider(domain.ModelConfig{Model: "llama3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.IsConfigured() {
		t.Fatalf("ollama provider should be configured without an API key")
	}
}

func TestOllamaProvider_DefaultsBaseURL(t *testing.T) {
	p, err := NewFromConfig("ollama", domain.ModelConfig{Model: "llama3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	op, ok := p.(*OllamaProvider)
	if !ok {
		t.Fatalf("expected *OllamaProvider, got %T", p)
	}
	if op.cfg.BaseURL == "" {
		t.Fatalf("expected a default BaseURL to be set")
	}
	if _, err := url.Parse(op.cfg.BaseURL); err != nil {
		t.Fatalf("default BaseURL is not a valid URL: %v", err)
	}
}
