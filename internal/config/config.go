// Package config loads engine configuration the way the teacher gateway
// loads its own: viper for layered file/env/default resolution, a single
// Validate() boundary check, and no hidden global state.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every tunable the orchestration engine needs.
type Config struct {
	Version     string            `mapstructure:"version"`
	Log         LogConfig         `mapstructure:"log"`
	Providers   ProvidersConfig   `mapstructure:"providers"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Execution   ExecutionConfig   `mapstructure:"execution"`
	Consensus   ConsensusConfig   `mapstructure:"consensus"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProvidersConfig holds every provider this engine may fan out to.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
	Ollama    ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig is the per-provider shape: API key env var name, not the
// key itself (secret acquisition is an out-of-scope collaborator), plus
// model, base URL, timeout, and generation parameters.
type ProviderConfig struct {
	APIKeyEnv   string        `mapstructure:"api_key_env"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// ReliabilityConfig holds circuit breaker and retry settings. The retry
// block feeds RetryPolicy(), which drives the orchestrator's outer retry
// loop. The circuit breaker block is exposed through CircuitBreakerConfig();
// the provider adapters build their breakers from
// reliability.DefaultCircuitBreakerConfig and do not read it.
type ReliabilityConfig struct {
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retry          RetryConfig          `mapstructure:"retry"`
}

// CircuitBreakerConfig mirrors domain.CircuitBreakerConfig's fields under
// viper-friendly tags.
type CircuitBreakerConfig struct {
	Enabled                  bool          `mapstructure:"enabled"`
	FailureThreshold         int           `mapstructure:"failure_threshold"`
	OpenDuration             time.Duration `mapstructure:"open_duration"`
	HalfOpenSuccessThreshold int           `mapstructure:"half_open_success_threshold"`
}

// RetryConfig picks the retry policy kind and its parameters.
type RetryConfig struct {
	Policy      string        `mapstructure:"policy"` // "fixed", "exponential", "rate_limit_aware"
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Jitter      bool          `mapstructure:"jitter"`
}

// ExecutionConfig picks the default execution strategy.
type ExecutionConfig struct {
	Strategy         string `mapstructure:"strategy"` // "parallel", "sequential", "fallback"
	FallbackTriggers []string `mapstructure:"fallback_triggers"`
}

// ConsensusConfig picks the default consensus strategy and its parameters.
type ConsensusConfig struct {
	Strategy           string  `mapstructure:"strategy"` // "highest_score", "majority_vote", "quorum"
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	QuorumRequired     int     `mapstructure:"quorum_required"`
}

// ScoringConfig maps scorer name to weight for the default Weighted scorer.
type ScoringConfig struct {
	Weights map[string]float64 `mapstructure:"weights"`
}

// Load reads configuration from file and environment variables, matching
// the teacher's config.Load shape: optional file, env override, defaults
// for every tunable, then a single Validate() call.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/llm-orchestrator")

	setDefaults(v)

	v.SetEnvPrefix("LLM_ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// viper lower-cases map keys; restore the scorer names' canonical casing.
	weights := make(map[string]float64, len(cfg.Scoring.Weights))
	for name, w := range cfg.Scoring.Weights {
		for _, known := range []string{"ResponseTime", "Consensus", "TokenEfficiency", "ValidationPass"} {
			if strings.EqualFold(name, known) {
				name = known
			}
		}
		weights[name] = w
	}
	cfg.Scoring.Weights = weights

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "0.1.0")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("providers.openai.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.timeout", "60s")
	v.SetDefault("providers.openai.max_tokens", 1024)
	v.SetDefault("providers.openai.temperature", 0.7)

	v.SetDefault("providers.anthropic.api_key_env", "ANTHROPIC_API_KEY")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("providers.anthropic.timeout", "60s")
	v.SetDefault("providers.anthropic.max_tokens", 1024)
	v.SetDefault("providers.anthropic.temperature", 0.7)

	v.SetDefault("providers.gemini.api_key_env", "GEMINI_API_KEY")
	v.SetDefault("providers.gemini.timeout", "60s")
	v.SetDefault("providers.gemini.max_tokens", 1024)
	v.SetDefault("providers.gemini.temperature", 0.7)

	v.SetDefault("providers.ollama.base_url", "http://localhost:11434")
	v.SetDefault("providers.ollama.timeout", "120s")
	v.SetDefault("providers.ollama.max_tokens", 1024)
	v.SetDefault("providers.ollama.temperature", 0.7)

	v.SetDefault("reliability.circuit_breaker.enabled", true)
	v.SetDefault("reliability.circuit_breaker.failure_threshold", 5)
	v.SetDefault("reliability.circuit_breaker.open_duration", "30s")
	v.SetDefault("reliability.circuit_breaker.half_open_success_threshold", 2)

	v.SetDefault("reliability.retry.policy", "exponential")
	v.SetDefault("reliability.retry.max_attempts", 3)
	v.SetDefault("reliability.retry.base_delay", "500ms")
	v.SetDefault("reliability.retry.max_delay", "30s")
	v.SetDefault("reliability.retry.jitter", true)

	v.SetDefault("execution.strategy", "parallel")

	v.SetDefault("consensus.strategy", "highest_score")
	v.SetDefault("consensus.similarity_threshold", 0.5)
	v.SetDefault("consensus.quorum_required", 2)

	v.SetDefault("scoring.weights", map[string]interface{}{
		"ResponseTime": 0.3,
		"Consensus":    0.5,
		"TokenEfficiency": 0.2,
	})
}

// Validate rejects configuration values the engine cannot act on.
func (c *Config) Validate() error {
	switch c.Execution.Strategy {
	case "parallel", "sequential", "fallback":
	default:
		return fmt.Errorf("invalid execution strategy: %q", c.Execution.Strategy)
	}

	switch c.Consensus.Strategy {
	case "highest_score", "majority_vote", "quorum":
	default:
		return fmt.Errorf("invalid consensus strategy: %q", c.Consensus.Strategy)
	}

	if c.Consensus.SimilarityThreshold < 0 || c.Consensus.SimilarityThreshold > 1 {
		return fmt.Errorf("consensus similarity threshold must be in [0,1]: %v", c.Consensus.SimilarityThreshold)
	}

	if c.Consensus.Strategy == "quorum" && c.Consensus.QuorumRequired < 1 {
		return fmt.Errorf("quorum required count must be >= 1")
	}

	if c.Reliability.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be >= 1")
	}

	return nil
}

func (c *Config) providerConfig(name string) (ProviderConfig, bool) {
	switch name {
	case "openai":
		return c.Providers.OpenAI, true
	case "anthropic":
		return c.Providers.Anthropic, true
	case "gemini":
		return c.Providers.Gemini, true
	case "ollama":
		return c.Providers.Ollama, true
	default:
		return ProviderConfig{}, false
	}
}

// ProviderConfig returns the named provider's configuration block, if any.
func (c *Config) ProviderConfig(name string) (ProviderConfig, bool) {
	return c.providerConfig(name)
}
