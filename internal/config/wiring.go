package config

import (
	"fmt"
	"os"

	"github.com/username/llm-orchestrator/internal/consensus"
	"github.com/username/llm-orchestrator/internal/domain"
	"github.com/username/llm-orchestrator/internal/execution"
	"github.com/username/llm-orchestrator/internal/reliability"
)

// ModelConfig resolves the named provider's API key from its configured
// environment variable (secret acquisition is an out-of-scope collaborator;
// this is the one place that boundary is crossed) and returns a
// domain.ModelConfig ready for providers.NewFromConfig.
func (c *Config) ModelConfig(name string) (domain.ModelConfig, bool) {
	pc, ok := c.providerConfig(name)
	if !ok {
		return domain.ModelConfig{}, false
	}
	apiKey := ""
	if pc.APIKeyEnv != "" {
		apiKey = os.Getenv(pc.APIKeyEnv)
	}
	return domain.ModelConfig{
		ProviderName: name,
		APIKey:       apiKey,
		Model:        pc.Model,
		BaseURL:      pc.BaseURL,
		MaxTokens:    pc.MaxTokens,
		Timeout:      pc.Timeout,
		Temperature:  pc.Temperature,
	}, true
}

// CircuitBreakerConfig adapts the configured circuit breaker defaults into
// the shape reliability.NewCircuitBreaker expects.
func (c *Config) CircuitBreakerConfig() domain.CircuitBreakerConfig {
	cb := c.Reliability.CircuitBreaker
	return domain.CircuitBreakerConfig{
		Enabled:                  cb.Enabled,
		FailureThreshold:         cb.FailureThreshold,
		OpenDuration:             cb.OpenDuration,
		HalfOpenSuccessThreshold: cb.HalfOpenSuccessThreshold,
	}
}

// RetryPolicy builds the configured RetryPolicy implementation.
func (c *Config) RetryPolicy() (reliability.RetryPolicy, error) {
	r := c.Reliability.Retry
	switch r.Policy {
	case "fixed":
		return reliability.FixedDelay{Delay: r.BaseDelay, MaxAttempts: r.MaxAttempts}, nil
	case "exponential":
		return reliability.ExponentialBackoff{Base: r.BaseDelay, Cap: r.MaxDelay, Jitter: r.Jitter, MaxAttempts: r.MaxAttempts}, nil
	case "rate_limit_aware":
		return reliability.RateLimitAware{Base: r.BaseDelay, Cap: r.MaxDelay, MaxAttempts: r.MaxAttempts}, nil
	default:
		return nil, fmt.Errorf("config: unknown retry policy %q", r.Policy)
	}
}

// ExecutionStrategy builds the configured default execution strategy.
func (c *Config) ExecutionStrategy() (execution.Strategy, error) {
	switch c.Execution.Strategy {
	case "parallel":
		return execution.Parallel{}, nil
	case "sequential":
		return execution.Sequential{}, nil
	case "fallback":
		return execution.Fallback{Triggers: fallbackTriggers(c.Execution.FallbackTriggers)}, nil
	default:
		return nil, fmt.Errorf("config: unknown execution strategy %q", c.Execution.Strategy)
	}
}

func fallbackTriggers(names []string) execution.FallbackTrigger {
	if len(names) == 0 {
		return execution.TriggerAll
	}
	var triggers execution.FallbackTrigger
	for _, name := range names {
		switch name {
		case "timeout":
			triggers |= execution.TriggerTimeout
		case "validation_failure":
			triggers |= execution.TriggerValidationFailure
		case "exception":
			triggers |= execution.TriggerException
		}
	}
	return triggers
}

// ConsensusStrategy builds the configured default consensus strategy.
func (c *Config) ConsensusStrategy() (consensus.Strategy, error) {
	switch c.Consensus.Strategy {
	case "highest_score":
		return consensus.HighestScore{}, nil
	case "majority_vote":
		return consensus.MajorityVote{Threshold: c.Consensus.SimilarityThreshold}, nil
	case "quorum":
		return consensus.NewQuorum(c.Consensus.QuorumRequired, c.Consensus.SimilarityThreshold)
	default:
		return nil, fmt.Errorf("config: unknown consensus strategy %q", c.Consensus.Strategy)
	}
}
