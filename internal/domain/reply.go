// Package domain holds the value types exchanged between orchestration
// components: provider replies, validation and scoring outcomes, consensus
// results, and the configuration shapes that drive them.
package domain

import "time"

// Reply is what a provider adapter produces for a single generation call.
// A failed call still produces a Reply; adapters never propagate remote
// or network faults as Go errors.
type Reply struct {
	ProviderName     string
	ModelID          string
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Duration         time.Duration
	Success          bool
	Error            string
	RateLimited      bool
	HTTPStatus       int
	RateLimit        *RateLimitInfo
}

// RateLimitInfo captures what a provider told the caller about its own
// rate limiting, parsed only when a request fails with a 429.
type RateLimitInfo struct {
	RetryAfter        time.Duration
	HasRetryAfter     bool
	RemainingRequests int
	HasRemaining      bool
	ResetAt           time.Time
	HasResetAt        bool
	Limit             int
	HasLimit          bool
}

// NewFailedReply builds a Reply representing a non-success outcome. Callers
// never construct a zero-value Reply with Success left false by accident.
func NewFailedReply(provider, model, reason string, d time.Duration) Reply {
	return Reply{
		ProviderName: provider,
		ModelID:      model,
		Success:      false,
		Error:        reason,
		Duration:     d,
	}
}
