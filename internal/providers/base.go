package providers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/reliability"
)

// parseRateLimitHeaders extracts RateLimitInfo from a raw HTTP response.
// Malformed values are silently dropped rather than causing an error.
func parseRateLimitHeaders(h http.Header) *domain.RateLimitInfo {
	info := &domain.RateLimitInfo{}
	any := false

	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			info.RetryAfter = time.Duration(secs) * time.Second
			info.HasRetryAfter = true
			any = true
		} else if when, err := http.ParseTime(v); err == nil {
			if d := time.Until(when); d > 0 {
				info.RetryAfter = d
				info.HasRetryAfter = true
				any = true
			}
		}
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.RemainingRequests = n
			info.HasRemaining = true
			any = true
		}
	}
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Limit = n
			info.HasLimit = true
			any = true
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.ResetAt = time.Unix(secs, 0)
			info.HasResetAt = true
			any = true
		}
	}

	if !any {
		return nil
	}
	return info
}

// generationOutcome is what a concrete adapter's sendRequest reports back to
// the shared Generate wrapper.
type generationOutcome struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	HTTPStatus       int
	RateLimit        *domain.RateLimitInfo
}

// runGenerate implements the common Generate control flow described in the
// spec's provider adapter section: empty-prompt rejection, breaker
// short-circuit, per-call timeout, and fault classification (cancellation
// never charges the breaker; any other fault does).
func runGenerate(
	ctx context.Context,
	breaker *reliability.CircuitBreaker,
	providerName, modelID string,
	timeout time.Duration,
	prompt string,
	send func(ctx context.Context) (generationOutcome, error),
) (domain.Reply, error) {
	if prompt == "" {
		return domain.Reply{}, errors.New("prompt must not be empty")
	}

	if breaker != nil && !breaker.Allow() {
		return domain.Reply{
			ProviderName: providerName,
			ModelID:      modelID,
			Success:      false,
			Error:        "circuit open",
		}, nil
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	outcome, err := send(callCtx)
	duration := time.Since(start)

	if err == nil {
		reply := domain.Reply{
			ProviderName:     providerName,
			ModelID:          modelID,
			Content:          outcome.Content,
			PromptTokens:     outcome.PromptTokens,
			CompletionTokens: outcome.CompletionTokens,
			TotalTokens:      outcome.PromptTokens + outcome.CompletionTokens,
			Duration:         duration,
			Success:          true,
			HTTPStatus:       outcome.HTTPStatus,
		}
		if breaker != nil {
			breaker.RecordSuccess()
		}
		return reply, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.Reply{
			ProviderName: providerName,
			ModelID:      modelID,
			Success:      false,
			Error:        "cancelled or timed out",
			Duration:     duration,
		}, nil
	}

	reply := domain.Reply{
		ProviderName: providerName,
		ModelID:      modelID,
		Success:      false,
		Error:        err.Error(),
		Duration:     duration,
		HTTPStatus:   outcome.HTTPStatus,
		RateLimit:    outcome.RateLimit,
	}
	if outcome.HTTPStatus == http.StatusTooManyRequests {
		reply.RateLimited = true
	}
	if breaker != nil {
		breaker.RecordFailure()
	}
	return reply, nil
}
