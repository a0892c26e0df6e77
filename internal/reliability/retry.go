package reliability

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/username/llm-orchestrator/internal/domain"
)

// RetryableError wraps a failure with whether it is worth retrying and, for
// HTTP-backed providers, the status code that produced it.
type RetryableError struct {
	Err        error
	StatusCode int
	Retryable  bool
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryableError constructs a RetryableError.
func NewRetryableError(err error, statusCode int, retryable bool) *RetryableError {
	return &RetryableError{Err: err, StatusCode: statusCode, Retryable: retryable}
}

var defaultRetryableStatusCodes = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// IsRetryableStatusCode reports whether statusCode is one the default
// policies consider worth retrying.
func IsRetryableStatusCode(statusCode int) bool {
	for _, code := range defaultRetryableStatusCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// RetryPolicy decides the delay before the next attempt, or refuses to
// retry at all. Attempt numbering is 1-based: NextDelay(1, ...) is the
// delay before the *second* try.
type RetryPolicy interface {
	// NextDelay returns the delay before the next attempt and whether a
	// retry should happen at all. lastErr and rateLimit describe the most
	// recent failure; rateLimit may be nil.
	NextDelay(attempt int, lastErr error, rateLimit *domain.RateLimitInfo) (time.Duration, bool)
}

func isRetryableErr(maxAttempts, attempt int, err error) bool {
	if attempt >= maxAttempts {
		return false
	}
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return true
	}
	return true
}

// FixedDelay retries with the same delay on every attempt, up to maxAttempts.
type FixedDelay struct {
	Delay       time.Duration
	MaxAttempts int
}

func (p FixedDelay) NextDelay(attempt int, lastErr error, _ *domain.RateLimitInfo) (time.Duration, bool) {
	if !isRetryableErr(p.MaxAttempts, attempt, lastErr) {
		return 0, false
	}
	return p.Delay, true
}

// ExponentialBackoff doubles the delay each attempt, capped, with an
// optional asymmetric jitter of [0, 0.3*delay] added on top. The underlying
// progression is computed by cenkalti/backoff/v5's ExponentialBackOff
// rather than hand-rolled math.Pow arithmetic.
type ExponentialBackoff struct {
	Base        time.Duration
	Cap         time.Duration
	Jitter      bool
	MaxAttempts int
}

func (p ExponentialBackoff) NextDelay(attempt int, lastErr error, _ *domain.RateLimitInfo) (time.Duration, bool) {
	if !isRetryableErr(p.MaxAttempts, attempt, lastErr) {
		return 0, false
	}
	return p.delayForAttempt(attempt), true
}

func (p ExponentialBackoff) delayForAttempt(attempt int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Base
	bo.MaxInterval = p.Cap
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0

	var delay time.Duration
	for i := 0; i < attempt; i++ {
		d := bo.NextBackOff()
		if d == backoff.Stop {
			delay = p.Cap
			break
		}
		delay = d
	}
	if delay > p.Cap {
		delay = p.Cap
	}

	if p.Jitter {
		delay += time.Duration(rand.Float64() * 0.3 * float64(delay))
	}
	return delay
}

// RateLimitAware prefers the provider's own Retry-After hint, falling back
// to ExponentialBackoff with jitter when no hint is available.
type RateLimitAware struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

func (p RateLimitAware) NextDelay(attempt int, lastErr error, rateLimit *domain.RateLimitInfo) (time.Duration, bool) {
	if !isRetryableErr(p.MaxAttempts, attempt, lastErr) {
		return 0, false
	}
	if rateLimit != nil && rateLimit.HasRetryAfter {
		delay := rateLimit.RetryAfter
		if delay > p.Cap {
			delay = p.Cap
		}
		return delay, true
	}
	fallback := ExponentialBackoff{Base: p.Base, Cap: p.Cap, Jitter: true, MaxAttempts: p.MaxAttempts}
	return fallback.delayForAttempt(attempt), true
}

// RetryResult reports what happened across every attempt of an Execute call.
type RetryResult struct {
	Attempts   int
	TotalTime  time.Duration
	LastError  error
	Successful bool
}

// Retryer drives a RetryPolicy against an operation, honouring context
// cancellation at every suspension point.
type Retryer struct {
	policy    RetryPolicy
	operation string
}

// NewRetryer builds a Retryer for a named operation (used only for logging).
func NewRetryer(policy RetryPolicy, operation string) *Retryer {
	return &Retryer{policy: policy, operation: operation}
}

// Execute runs fn, retrying per the policy until success, refusal, or
// context cancellation.
func (r *Retryer) Execute(ctx context.Context, fn func() error) RetryResult {
	result := RetryResult{}
	start := time.Now()

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = err
			result.TotalTime = time.Since(start)
			return result
		}

		err := fn()
		if err == nil {
			result.Successful = true
			result.TotalTime = time.Since(start)
			if attempt > 1 {
				log.Info().Str("operation", r.operation).Int("attempts", attempt).Msg("operation succeeded after retry")
			}
			return result
		}
		result.LastError = err

		delay, retry := r.policy.NextDelay(attempt, err, nil)
		if !retry {
			result.TotalTime = time.Since(start)
			return result
		}

		log.Warn().Str("operation", r.operation).Int("attempt", attempt).Dur("delay", delay).Err(err).Msg("operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalTime = time.Since(start)
			return result
		case <-timer.C:
		}
	}
}

// ExecuteWithRateLimit behaves like Execute but threads rate-limit hints
// extracted by the caller from the previous failure into the policy.
func (r *Retryer) ExecuteWithRateLimit(ctx context.Context, fn func() (domain.Reply, error)) (domain.Reply, RetryResult) {
	result := RetryResult{}
	start := time.Now()
	var lastReply domain.Reply

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = err
			result.TotalTime = time.Since(start)
			return lastReply, result
		}

		reply, err := fn()
		lastReply = reply
		if err == nil {
			result.Successful = true
			result.TotalTime = time.Since(start)
			return lastReply, result
		}
		result.LastError = err

		delay, retry := r.policy.NextDelay(attempt, err, reply.RateLimit)
		if !retry {
			result.TotalTime = time.Since(start)
			return lastReply, result
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.LastError = ctx.Err()
			result.TotalTime = time.Since(start)
			return lastReply, result
		case <-timer.C:
		}
	}
}
