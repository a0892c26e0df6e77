// Package providers adapts remote language-model services to a single
// Generate capability, and keeps a thread-safe directory of the adapters an
// orchestration run may pick from.
package providers

import (
	"context"

	"github.com/username/llm-orchestrator/internal/domain"
)

// Provider is the uniform capability every adapter exposes. Generate never
// returns a non-nil error for remote/transient faults; those are encoded in
// the returned Reply. A non-nil error means the call was rejected at the
// argument boundary (empty prompt).
type Provider interface {
	Name() string
	ModelID() string
	DisplayName() string
	IsConfigured() bool
	CircuitState() domain.CircuitState
	Generate(ctx context.Context, prompt, systemPrompt string) (domain.Reply, error)
}

// ConstructorFunc builds a Provider from a ModelConfig. Providers register
// one of these per adapter kind instead of being constructed through
// reflection; see NewFromConfig.
type ConstructorFunc func(cfg domain.ModelConfig) (Provider, error)

// constructors is the explicit kind -> constructor table replacing dynamic
// reflective construction.
var constructors = map[string]ConstructorFunc{
	"openai":    NewOpenAIProvider,
	"anthropic": NewAnthropicProvider,
	"gemini":    NewGeminiProvider,
	"ollama":    NewOllamaProvider,
}

// NewFromConfig looks up the constructor registered for kind and builds a
// Provider from cfg.
func NewFromConfig(kind string, cfg domain.ModelConfig) (Provider, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, &UnknownKindError{Kind: kind}
	}
	return ctor(cfg)
}

// UnknownKindError is returned by NewFromConfig for an unregistered kind.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return "unknown provider kind: " + e.Kind
}
