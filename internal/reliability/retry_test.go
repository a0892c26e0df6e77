package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/username/llm-orchestrator/internal/domain"
)

func TestIsRetryableStatusCode(t *testing.T) {
	cases := map[int]bool{
		200: false,
		400: false,
		404: false,
		429: true,
		500: true,
		502: true,
		503: true,
		504: true,
	}
	for code, want := range cases {
		if got := IsRetryableStatusCode(code); got != want {
			t.Errorf("IsRetryableStatusCode(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestFixedDelay_NextDelay(t *testing.T) {
	p := FixedDelay{Delay: 10 * time.Millisecond, MaxAttempts: 3}

	delay, retry := p.NextDelay(1, errors.New("boom"), nil)
	if !retry || delay != 10*time.Millisecond {
		t.Fatalf("attempt 1: got (%v, %v)", delay, retry)
	}

	_, retry = p.NextDelay(3, errors.New("boom"), nil)
	if retry {
		t.Fatalf("expected no retry once maxAttempts reached")
	}
}

func TestFixedDelay_NonRetryableError(t *testing.T) {
	p := FixedDelay{Delay: 10 * time.Millisecond, MaxAttempts: 5}
	err := NewRetryableError(errors.New("bad request"), 400, false)
	if _, retry := p.NextDelay(1, err, nil); retry {
		t.Fatalf("expected non-retryable error to refuse a retry")
	}
}

func TestFixedDelay_CancellationNeverRetries(t *testing.T) {
	p := FixedDelay{Delay: 10 * time.Millisecond, MaxAttempts: 5}
	if _, retry := p.NextDelay(1, context.Canceled, nil); retry {
		t.Fatalf("context.Canceled must never be retried")
	}
	if _, retry := p.NextDelay(1, context.DeadlineExceeded, nil); retry {
		t.Fatalf("context.DeadlineExceeded must never be retried")
	}
}

func TestExponentialBackoff_Doubles(t *testing.T) {
	p := ExponentialBackoff{Base: 100 * time.Millisecond, Cap: 10 * time.Second, Jitter: false, MaxAttempts: 10}

	d1 := p.delayForAttempt(1)
	d2 := p.delayForAttempt(2)
	d3 := p.delayForAttempt(3)

	if d1 != 100*time.Millisecond {
		t.Fatalf("attempt 1 = %v, want 100ms", d1)
	}
	if d2 != 200*time.Millisecond {
		t.Fatalf("attempt 2 = %v, want 200ms", d2)
	}
	if d3 != 400*time.Millisecond {
		t.Fatalf("attempt 3 = %v, want 400ms", d3)
	}
}

func TestExponentialBackoff_RespectsCap(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Cap: 3 * time.Second, Jitter: false, MaxAttempts: 20}
	d := p.delayForAttempt(10)
	if d > 3*time.Second {
		t.Fatalf("delay %v exceeds cap", d)
	}
}

func TestExponentialBackoff_JitterBounded(t *testing.T) {
	p := ExponentialBackoff{Base: time.Second, Cap: time.Second, Jitter: true, MaxAttempts: 20}
	for i := 0; i < 50; i++ {
		d := p.delayForAttempt(1)
		if d < time.Second || d > time.Second+300*time.Millisecond {
			t.Fatalf("jittered delay %v out of [1s, 1.3s] bound", d)
		}
	}
}

func TestRateLimitAware_PrefersRetryAfter(t *testing.T) {
	p := RateLimitAware{Base: time.Second, Cap: 30 * time.Second, MaxAttempts: 5}
	rl := &domain.RateLimitInfo{RetryAfter: 7 * time.Second, HasRetryAfter: true}

	delay, retry := p.NextDelay(1, errors.New("429"), rl)
	if !retry || delay != 7*time.Second {
		t.Fatalf("got (%v, %v), want (7s, true)", delay, retry)
	}
}

func TestRateLimitAware_CapsRetryAfter(t *testing.T) {
	p := RateLimitAware{Base: time.Second, Cap: 5 * time.Second, MaxAttempts: 5}
	rl := &domain.RateLimitInfo{RetryAfter: 60 * time.Second, HasRetryAfter: true}

	delay, _ := p.NextDelay(1, errors.New("429"), rl)
	if delay > 5*time.Second {
		t.Fatalf("delay %v exceeds cap", delay)
	}
}

func TestRateLimitAware_FallsBackToBackoff(t *testing.T) {
	p := RateLimitAware{Base: 100 * time.Millisecond, Cap: 10 * time.Second, MaxAttempts: 5}
	delay, retry := p.NextDelay(1, errors.New("503"), nil)
	if !retry || delay < 100*time.Millisecond {
		t.Fatalf("got (%v, %v)", delay, retry)
	}
}

func TestRetryer_ExecuteSucceedsFirstTry(t *testing.T) {
	r := NewRetryer(FixedDelay{Delay: time.Millisecond, MaxAttempts: 3}, "test-op")
	calls := 0
	result := r.Execute(context.Background(), func() error {
		calls++
		return nil
	})
	if !result.Successful || result.Attempts != 1 || calls != 1 {
		t.Fatalf("unexpected result: %+v, calls=%d", result, calls)
	}
}

func TestRetryer_ExecuteRetriesUntilSuccess(t *testing.T) {
	r := NewRetryer(FixedDelay{Delay: time.Millisecond, MaxAttempts: 5}, "test-op")
	calls := 0
	result := r.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if !result.Successful || calls != 3 {
		t.Fatalf("expected success on 3rd call, got %+v, calls=%d", result, calls)
	}
}

func TestRetryer_ExecuteExhaustsAttempts(t *testing.T) {
	r := NewRetryer(FixedDelay{Delay: time.Millisecond, MaxAttempts: 3}, "test-op")
	calls := 0
	result := r.Execute(context.Background(), func() error {
		calls++
		return errors.New("always fails")
	})
	if result.Successful || calls != 3 {
		t.Fatalf("expected exhaustion after 3 calls, got %+v, calls=%d", result, calls)
	}
}

func TestRetryer_ExecuteHonoursCancellation(t *testing.T) {
	r := NewRetryer(FixedDelay{Delay: time.Second, MaxAttempts: 10}, "test-op")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan RetryResult, 1)
	go func() {
		done <- r.Execute(ctx, func() error {
			calls++
			return errors.New("retry me")
		})
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case result := <-done:
		if result.Successful {
			t.Fatalf("expected failure after cancellation")
		}
		if !errors.Is(result.LastError, context.Canceled) {
			t.Fatalf("expected LastError to be context.Canceled, got %v", result.LastError)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not respect cancellation")
	}
}

func TestRetryer_ExecuteWithRateLimit_ThreadsRateLimitInfo(t *testing.T) {
	r := NewRetryer(RateLimitAware{Base: time.Millisecond, Cap: 50 * time.Millisecond, MaxAttempts: 3}, "test-op")
	calls := 0
	reply, result := r.ExecuteWithRateLimit(context.Background(), func() (domain.Reply, error) {
		calls++
		if calls == 1 {
			return domain.Reply{RateLimit: &domain.RateLimitInfo{RetryAfter: 5 * time.Millisecond, HasRetryAfter: true}}, errors.New("429")
		}
		return domain.Reply{Success: true}, nil
	})
	if !result.Successful || !reply.Success || calls != 2 {
		t.Fatalf("unexpected result: %+v, reply=%+v, calls=%d", result, reply, calls)
	}
}
